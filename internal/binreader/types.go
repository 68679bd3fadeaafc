package binreader

import "fmt"

// DataType is the GL component type tag used by vertex streams and index buffers.
type DataType uint16

const (
	Byte   DataType = 0x1400
	UByte  DataType = 0x1401
	Short  DataType = 0x1402
	UShort DataType = 0x1403
	Int    DataType = 0x1404
	UInt   DataType = 0x1405
	Float  DataType = 0x1406
)

func (t DataType) Valid() bool {
	return t >= Byte && t <= Float
}

// Size returns the element size in bytes, 0 for unknown tags.
func (t DataType) Size() int {
	switch t {
	case Byte, UByte:
		return 1
	case Short, UShort:
		return 2
	case Int, UInt, Float:
		return 4
	}
	return 0
}

func (t DataType) String() string {
	switch t {
	case Byte:
		return "byte"
	case UByte:
		return "ubyte"
	case Short:
		return "short"
	case UShort:
		return "ushort"
	case Int:
		return "int"
	case UInt:
		return "uint"
	case Float:
		return "float"
	}
	return fmt.Sprintf("DataType(0x%04x)", uint16(t))
}

// Value reads one element of type t and widens it to float64.
func (r *Reader) Value(t DataType) (float64, error) {
	switch t {
	case Byte:
		v, err := r.I8()
		return float64(v), err
	case UByte:
		v, err := r.U8()
		return float64(v), err
	case Short:
		v, err := r.I16()
		return float64(v), err
	case UShort:
		v, err := r.U16()
		return float64(v), err
	case Int:
		v, err := r.I32()
		return float64(v), err
	case UInt:
		v, err := r.U32()
		return float64(v), err
	case Float:
		v, err := r.F32()
		return float64(v), err
	}
	return 0, fmt.Errorf("binreader: unknown data type 0x%04x at offset 0x%x", uint16(t), r.off)
}

// Array reads n elements of type t.
func (r *Reader) Array(t DataType, n int) ([]float64, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("binreader: unknown data type 0x%04x at offset 0x%x", uint16(t), r.off)
	}
	if err := r.need(n * t.Size()); err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		v, err := r.Value(t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// U32Array reads n little-endian uint32 values.
func (r *Reader) U32Array(n int) ([]uint32, error) {
	if err := r.need(n * 4); err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := range out {
		out[i], _ = r.U32()
	}
	return out, nil
}

// U16Array reads n little-endian uint16 values.
func (r *Reader) U16Array(n int) ([]uint16, error) {
	if err := r.need(n * 2); err != nil {
		return nil, err
	}
	out := make([]uint16, n)
	for i := range out {
		out[i], _ = r.U16()
	}
	return out, nil
}

// Indices reads n unsigned index values of type t (UByte, UShort or UInt).
func (r *Reader) Indices(t DataType, n int) ([]uint32, error) {
	switch t {
	case UByte, UShort, UInt:
	default:
		return nil, fmt.Errorf("binreader: invalid index type %s at offset 0x%x", t, r.off)
	}
	if err := r.need(n * t.Size()); err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := range out {
		switch t {
		case UByte:
			v, _ := r.U8()
			out[i] = uint32(v)
		case UShort:
			v, _ := r.U16()
			out[i] = uint32(v)
		default:
			out[i], _ = r.U32()
		}
	}
	return out, nil
}
