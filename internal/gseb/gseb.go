// Package gseb reads scene placement tables: a header, a field layout and
// fixed-size item records, one per placed object.
package gseb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"

	"ctr-asset-decoder/internal/binreader"
	"ctr-asset-decoder/internal/mathutil"
)

var (
	// ErrCorruptTable is returned when the field layout does not fit the items.
	ErrCorruptTable = errors.New("corrupt scene table")
	// ErrUnresolvedReference is returned when an object's model is not on disk.
	ErrUnresolvedReference = errors.New("unresolved model reference")
)

// NullModel marks an object without a model.
const NullModel = "(null)"

// FieldType is the declared storage type of a field.
type FieldType uint8

const (
	UInt   FieldType = 0
	String FieldType = 1
	Float  FieldType = 2
)

func (t FieldType) String() string {
	switch t {
	case UInt:
		return "uint"
	case String:
		return "string"
	case Float:
		return "float"
	}
	return fmt.Sprintf("FieldType(%d)", uint8(t))
}

// Field ids with known meaning.
const (
	FieldRoomNo         = 45
	FieldRotationX      = 100
	FieldVerticalOffset = 129
	FieldBoundsX        = 170
	FieldModelName      = 198
	FieldRoomModelName  = 205
	FieldPositionX      = 217
)

// knownTypes fixes the storage of the fields with a meaning; their declared
// type is not trusted.
var knownTypes = map[int]FieldType{
	FieldRoomNo:         UInt,
	FieldVerticalOffset: Float,
	FieldModelName:      String,
	FieldRoomModelName:  String,
}

func typeOf(f Field) FieldType {
	id := int(f.ID)
	switch {
	case id >= FieldBoundsX && id < FieldBoundsX+3:
		return UInt
	case id >= FieldPositionX && id < FieldPositionX+3, id >= FieldRotationX && id < FieldRotationX+3:
		return Float
	}
	if t, ok := knownTypes[id]; ok {
		return t
	}
	return f.Type
}

// Field describes one column of the item records.
type Field struct {
	ID     uint8
	Offset int
	Size   int
	Type   FieldType
}

// Value is a decoded field of one item.
type Value struct {
	Type FieldType
	U    uint32
	F    float32
	S    string
}

func (v Value) String() string {
	switch v.Type {
	case UInt:
		return fmt.Sprint(v.U)
	case Float:
		return fmt.Sprint(v.F)
	}
	return v.S
}

// Object is one placed item.
type Object struct {
	ModelName string
	// FromModelFolder is set when the name came from field 198 and lives
	// under romfs/model rather than the room folder.
	FromModelFolder bool
	RoomNo          int
	VerticalOffset  float32
	Bounds          [3]uint32
	Position        [3]float32
	Rotation        [3]float32 // degrees
	Values          map[uint8]Value
}

// HasModel reports whether the object names a model.
func (o *Object) HasModel() bool {
	return o.ModelName != "" && o.ModelName != NullModel
}

// Transform is T(position) · Rz · Ry · Rx with the rotation in degrees.
func (o *Object) Transform() mgl32.Mat4 {
	return mathutil.Compose(o.Position, mathutil.DegreesToRadians(o.Rotation))
}

// BoundsTransform places a unit cube over the object's bounds, raised so that
// it rests on the object's origin.
func (o *Object) BoundsTransform() mgl32.Mat4 {
	b := [3]float32{float32(o.Bounds[0]), float32(o.Bounds[1]), float32(o.Bounds[2])}
	return o.Transform().
		Mul4(mgl32.Translate3D(0, b[1]/2, 0)).
		Mul4(mgl32.Scale3D(b[0], b[1], b[2]))
}

// Table is a parsed scene table.
type Table struct {
	ItemSize int
	Fields   []Field
	Objects  []Object
}

// Rooms returns the distinct room numbers in first-seen order.
func (t *Table) Rooms() []int {
	var out []int
	seen := make(map[int]bool)
	for _, o := range t.Objects {
		if !seen[o.RoomNo] {
			seen[o.RoomNo] = true
			out = append(out, o.RoomNo)
		}
	}
	return out
}

// Load reads and parses a scene table from disk.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gseb: read %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// Parse decodes a scene table. Item i starts at itemsOffset + i*itemSize and
// each field runs up to the next field's offset, the last one to itemSize.
func Parse(data []byte) (*Table, error) {
	r := binreader.New(data)
	var hdr [4]uint32
	for i := range hdr {
		v, err := r.U32()
		if err != nil {
			return nil, fmt.Errorf("gseb: header: %w", err)
		}
		hdr[i] = v
	}
	items, fields, itemsOff, itemSize := int(hdr[0]), int(hdr[1]), int(hdr[2]), int(hdr[3])

	t := &Table{ItemSize: itemSize}
	for i := 0; i < fields; i++ {
		b, err := r.Bytes(12)
		if err != nil {
			return nil, fmt.Errorf("gseb: field %d: %w", i, err)
		}
		f := Field{
			ID:     b[0],
			Offset: int(b[8]) | int(b[9])<<8,
			Type:   FieldType(b[11]),
		}
		if f.Type > Float {
			return nil, fmt.Errorf("gseb: field %d has type %d: %w", i, b[11], ErrCorruptTable)
		}
		t.Fields = append(t.Fields, f)
	}
	for i := range t.Fields {
		end := itemSize
		if i+1 < len(t.Fields) {
			end = t.Fields[i+1].Offset
		}
		t.Fields[i].Size = end - t.Fields[i].Offset
		if t.Fields[i].Size < 0 || end > itemSize {
			return nil, fmt.Errorf("gseb: field %d at 0x%x overruns item size 0x%x: %w",
				i, t.Fields[i].Offset, itemSize, ErrCorruptTable)
		}
	}

	for i := 0; i < items; i++ {
		sub, err := r.Sub(itemsOff+i*itemSize, itemSize)
		if err != nil {
			return nil, fmt.Errorf("gseb: item %d: %w", i, err)
		}
		obj, err := t.object(sub)
		if err != nil {
			return nil, fmt.Errorf("gseb: item %d: %w", i, err)
		}
		t.Objects = append(t.Objects, obj)
	}
	return t, nil
}

func (t *Table) object(r *binreader.Reader) (Object, error) {
	o := Object{Values: make(map[uint8]Value, len(t.Fields))}
	for _, f := range t.Fields {
		if err := r.Seek(f.Offset); err != nil {
			return o, err
		}
		v := Value{Type: typeOf(f)}
		var err error
		switch v.Type {
		case String:
			v.S, err = r.String(f.Size)
		case Float:
			v.F, err = r.F32()
		default:
			v.U, err = r.U32()
		}
		if err != nil {
			return o, fmt.Errorf("field %d: %w", f.ID, err)
		}
		o.Values[f.ID] = v

		switch id := int(f.ID); {
		case id == FieldModelName:
			o.ModelName, o.FromModelFolder = v.S, true
		case id == FieldRoomModelName:
			o.ModelName = v.S
		case id == FieldRoomNo:
			o.RoomNo = int(v.U)
		case id == FieldVerticalOffset:
			o.VerticalOffset = v.F
		case id >= FieldBoundsX && id < FieldBoundsX+3:
			o.Bounds[id-FieldBoundsX] = v.U
		case id >= FieldPositionX && id < FieldPositionX+3:
			o.Position[id-FieldPositionX] = v.F
		case id >= FieldRotationX && id < FieldRotationX+3:
			o.Rotation[id-FieldRotationX] = v.F
		}
	}
	return o, nil
}
