package binreader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrUnexpectedEOD is returned for any read or seek outside the data.
var ErrUnexpectedEOD = errors.New("unexpected end of data")

// RangeError reports the offset of a failed access.
type RangeError struct {
	Offset int
	Want   int
	Len    int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("binreader: need %d bytes at offset 0x%x, have %d", e.Want, e.Offset, e.Len)
}

func (e *RangeError) Unwrap() error { return ErrUnexpectedEOD }

// Reader is a little-endian cursor over an in-memory buffer.
// Unlike a clamping reader, every short read is an error.
type Reader struct {
	data []byte
	off  int
}

// New returns a Reader positioned at the start of data.
func New(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) Pos() int { return r.off }
func (r *Reader) Len() int { return len(r.data) }

// Data returns the whole underlying buffer.
func (r *Reader) Data() []byte { return r.data }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.off }

func (r *Reader) need(n int) error {
	if n < 0 || r.off < 0 || r.off+n > len(r.data) {
		return &RangeError{Offset: r.off, Want: n, Len: len(r.data)}
	}
	return nil
}

// Seek moves to an absolute offset. Seeking to Len() is allowed.
func (r *Reader) Seek(off int) error {
	if off < 0 || off > len(r.data) {
		return &RangeError{Offset: off, Want: 0, Len: len(r.data)}
	}
	r.off = off
	return nil
}

// Skip moves relative to the current position.
func (r *Reader) Skip(n int) error {
	return r.Seek(r.off + n)
}

// Align advances to the next multiple of n.
func (r *Reader) Align(n int) error {
	if n <= 1 {
		return nil
	}
	if rem := r.off % n; rem != 0 {
		return r.Skip(n - rem)
	}
	return nil
}

// Bytes returns the next n bytes without copying.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

// Sub returns a reader over data[off:off+n]. The parent position is unchanged.
func (r *Reader) Sub(off, n int) (*Reader, error) {
	if off < 0 || n < 0 || off+n > len(r.data) {
		return nil, &RangeError{Offset: off, Want: n, Len: len(r.data)}
	}
	return New(r.data[off : off+n]), nil
}

func (r *Reader) U8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.off]
	r.off++
	return v, nil
}

func (r *Reader) I8() (int8, error) {
	v, err := r.U8()
	return int8(v), err
}

func (r *Reader) U16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v, nil
}

func (r *Reader) I16() (int16, error) {
	v, err := r.U16()
	return int16(v), err
}

func (r *Reader) U32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

func (r *Reader) I32() (int32, error) {
	v, err := r.U32()
	return int32(v), err
}

func (r *Reader) F32() (float32, error) {
	v, err := r.U32()
	return math.Float32frombits(v), err
}

// Vec3 reads three consecutive float32 values.
func (r *Reader) Vec3() ([3]float32, error) {
	var v [3]float32
	for i := range v {
		f, err := r.F32()
		if err != nil {
			return v, err
		}
		v[i] = f
	}
	return v, nil
}

// String reads exactly n bytes and strips NUL padding.
// With n <= 0 it reads a NUL-terminated run instead.
func (r *Reader) String(n int) (string, error) {
	if n <= 0 {
		return r.CString()
	}
	b, err := r.Bytes(n)
	if err != nil {
		return "", err
	}
	return trimNUL(b), nil
}

// CString reads up to and including the next NUL. A run that reaches the end
// of the data without a terminator is returned as-is.
func (r *Reader) CString() (string, error) {
	if r.off > len(r.data) {
		return "", &RangeError{Offset: r.off, Want: 1, Len: len(r.data)}
	}
	start := r.off
	for r.off < len(r.data) {
		if r.data[r.off] == 0 {
			s := string(r.data[start:r.off])
			r.off++
			return s, nil
		}
		r.off++
	}
	return string(r.data[start:]), nil
}

// StringAt reads a string at an absolute offset and restores the position.
func (r *Reader) StringAt(off, n int) (string, error) {
	saved := r.off
	if err := r.Seek(off); err != nil {
		return "", err
	}
	s, err := r.String(n)
	r.off = saved
	return s, err
}

func trimNUL(b []byte) string {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if c != 0 {
			out = append(out, c)
		}
	}
	return string(out)
}
