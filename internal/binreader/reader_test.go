package binreader

import (
	"errors"
	"math"
	"testing"
)

func TestPrimitives(t *testing.T) {
	data := []byte{
		0xff,       // i8 -1
		0x34, 0x12, // u16
		0xfe, 0xff, // i16 -2
		0x78, 0x56, 0x34, 0x12, // u32
		0x00, 0x00, 0x80, 0x3f, // f32 1.0
	}
	r := New(data)

	i8, err := r.I8()
	if err != nil || i8 != -1 {
		t.Fatalf("I8 = %d, %v", i8, err)
	}
	u16, _ := r.U16()
	if u16 != 0x1234 {
		t.Errorf("U16 = %#x", u16)
	}
	i16, _ := r.I16()
	if i16 != -2 {
		t.Errorf("I16 = %d", i16)
	}
	u32, _ := r.U32()
	if u32 != 0x12345678 {
		t.Errorf("U32 = %#x", u32)
	}
	f, _ := r.F32()
	if f != 1 {
		t.Errorf("F32 = %v", f)
	}
	if r.Remaining() != 0 {
		t.Errorf("remaining = %d", r.Remaining())
	}

	_, err = r.U8()
	if !errors.Is(err, ErrUnexpectedEOD) {
		t.Fatalf("read past end: got %v", err)
	}
	var re *RangeError
	if !errors.As(err, &re) || re.Offset != len(data) {
		t.Fatalf("range error offset: %+v", re)
	}
}

func TestStrings(t *testing.T) {
	data := []byte("abc\x00\x00\x00\x00\x00hello\x00tail")
	r := New(data)

	s, err := r.String(8)
	if err != nil || s != "abc" {
		t.Fatalf("String(8) = %q, %v", s, err)
	}
	s, _ = r.String(0)
	if s != "hello" {
		t.Errorf("CString = %q", s)
	}
	pos := r.Pos()
	s, _ = r.StringAt(0, 0)
	if s != "abc" {
		t.Errorf("StringAt = %q", s)
	}
	if r.Pos() != pos {
		t.Errorf("StringAt moved cursor from %d to %d", pos, r.Pos())
	}
	s, _ = r.CString()
	if s != "tail" {
		t.Errorf("unterminated CString = %q", s)
	}
	if _, err := r.StringAt(len(data)+1, 4); !errors.Is(err, ErrUnexpectedEOD) {
		t.Errorf("StringAt out of range: %v", err)
	}
}

func TestSeekAlign(t *testing.T) {
	r := New(make([]byte, 16))
	if err := r.Seek(5); err != nil {
		t.Fatal(err)
	}
	if err := r.Align(4); err != nil || r.Pos() != 8 {
		t.Fatalf("Align: pos %d err %v", r.Pos(), err)
	}
	if err := r.Align(4); err != nil || r.Pos() != 8 {
		t.Fatalf("Align on boundary moved to %d", r.Pos())
	}
	if err := r.Skip(8); err != nil || r.Pos() != 16 {
		t.Fatalf("Skip to end: pos %d err %v", r.Pos(), err)
	}
	if err := r.Skip(1); !errors.Is(err, ErrUnexpectedEOD) {
		t.Fatalf("Skip past end: %v", err)
	}
	if err := r.Seek(-1); !errors.Is(err, ErrUnexpectedEOD) {
		t.Fatalf("negative seek: %v", err)
	}
}

func TestArrays(t *testing.T) {
	data := []byte{
		0x80, 0x7f, // bytes
		0x00, 0x80, 0xff, 0x7f, // shorts
		0x00, 0x00, 0xc0, 0xbf, // float -1.5
	}
	r := New(data)
	b, err := r.Array(Byte, 2)
	if err != nil || b[0] != -128 || b[1] != 127 {
		t.Fatalf("Array(Byte) = %v, %v", b, err)
	}
	s, _ := r.Array(Short, 2)
	if s[0] != math.MinInt16 || s[1] != math.MaxInt16 {
		t.Errorf("Array(Short) = %v", s)
	}
	f, _ := r.Array(Float, 1)
	if f[0] != -1.5 {
		t.Errorf("Array(Float) = %v", f)
	}
	if _, err := r.Array(Float, 1); !errors.Is(err, ErrUnexpectedEOD) {
		t.Errorf("short array: %v", err)
	}
	if _, err := New(data).Array(DataType(0x1234), 1); err == nil {
		t.Error("unknown data type accepted")
	}
}

func TestIndices(t *testing.T) {
	r := New([]byte{1, 0, 2, 0, 3, 0})
	idx, err := r.Indices(UShort, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []uint32{1, 2, 3} {
		if idx[i] != want {
			t.Errorf("idx[%d] = %d, want %d", i, idx[i], want)
		}
	}
	if _, err := New(nil).Indices(Float, 1); err == nil {
		t.Error("float index type accepted")
	}
}

func TestDataTypeSize(t *testing.T) {
	for _, c := range []struct {
		t    DataType
		size int
	}{
		{Byte, 1}, {UByte, 1}, {Short, 2}, {UShort, 2}, {Int, 4}, {UInt, 4}, {Float, 4}, {0, 0},
	} {
		if got := c.t.Size(); got != c.size {
			t.Errorf("%s.Size() = %d, want %d", c.t, got, c.size)
		}
	}
}
