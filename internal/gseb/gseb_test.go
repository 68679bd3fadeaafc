package gseb

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"ctr-asset-decoder/internal/binreader"
)

type fieldSpec struct {
	id     uint8
	offset int
	typ    FieldType
}

// layout: name(16) room(4) pos xyz(12) rot y(4) bounds xyz(12)
var sceneFields = []fieldSpec{
	{FieldRoomModelName, 0, String},
	{FieldRoomNo, 16, UInt},
	{FieldPositionX, 20, Float},
	{FieldPositionX + 1, 24, Float},
	{FieldPositionX + 2, 28, Float},
	{FieldRotationX + 1, 32, Float},
	{FieldBoundsX, 36, UInt},
	{FieldBoundsX + 1, 40, UInt},
	{FieldBoundsX + 2, 44, UInt},
}

const sceneItemSize = 48

type item struct {
	name   string
	room   uint32
	pos    [3]float32
	rotY   float32
	bounds [3]uint32
}

func buildGSEB(fields []fieldSpec, items []item) []byte {
	hdr := 16 + 12*len(fields)
	b := make([]byte, hdr+sceneItemSize*len(items))
	binary.LittleEndian.PutUint32(b[0:], uint32(len(items)))
	binary.LittleEndian.PutUint32(b[4:], uint32(len(fields)))
	binary.LittleEndian.PutUint32(b[8:], uint32(hdr))
	binary.LittleEndian.PutUint32(b[12:], sceneItemSize)
	for i, f := range fields {
		rec := b[16+12*i:]
		rec[0] = f.id
		binary.LittleEndian.PutUint16(rec[8:], uint16(f.offset))
		rec[11] = uint8(f.typ)
	}
	for i, it := range items {
		rec := b[hdr+sceneItemSize*i:]
		copy(rec[0:16], it.name)
		binary.LittleEndian.PutUint32(rec[16:], it.room)
		for k := 0; k < 3; k++ {
			binary.LittleEndian.PutUint32(rec[20+4*k:], math.Float32bits(it.pos[k]))
			binary.LittleEndian.PutUint32(rec[36+4*k:], it.bounds[k])
		}
		binary.LittleEndian.PutUint32(rec[32:], math.Float32bits(it.rotY))
	}
	return b
}

func TestParse(t *testing.T) {
	data := buildGSEB(sceneFields, []item{
		{name: "tree", room: 3, pos: [3]float32{1, 2, 3}, rotY: 90, bounds: [3]uint32{2, 4, 2}},
		{name: NullModel, room: 5},
	})
	tbl, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(tbl.Fields) != len(sceneFields) || tbl.Fields[0].Size != 16 || tbl.Fields[len(sceneFields)-1].Size != 4 {
		t.Fatalf("fields = %+v", tbl.Fields)
	}
	if len(tbl.Objects) != 2 {
		t.Fatalf("objects = %d", len(tbl.Objects))
	}
	o := tbl.Objects[0]
	if o.ModelName != "tree" || o.FromModelFolder || o.RoomNo != 3 {
		t.Fatalf("object = %+v", o)
	}
	if o.Position != [3]float32{1, 2, 3} || o.Rotation != [3]float32{0, 90, 0} || o.Bounds != [3]uint32{2, 4, 2} {
		t.Fatalf("object = %+v", o)
	}
	if tbl.Objects[1].HasModel() {
		t.Fatal("(null) object reports a model")
	}
	if rooms := tbl.Rooms(); len(rooms) != 2 || rooms[0] != 3 || rooms[1] != 5 {
		t.Fatalf("rooms = %v", rooms)
	}
}

func TestTransforms(t *testing.T) {
	o := Object{Position: [3]float32{1, 2, 3}, Rotation: [3]float32{0, 90, 0}, Bounds: [3]uint32{2, 4, 2}}
	got := o.Transform().Mul4x1(mgl32.Vec4{0, 0, 1, 1})
	// Ry(90°) sends +Z to +X.
	if !got.ApproxEqualThreshold(mgl32.Vec4{2, 2, 3, 1}, 1e-5) {
		t.Fatalf("Transform = %v", got)
	}
	// The unit cube's bottom face sits at the object's origin.
	bottom := o.BoundsTransform().Mul4x1(mgl32.Vec4{0, -0.5, 0, 1})
	if !bottom.ApproxEqualThreshold(mgl32.Vec4{1, 2, 3, 1}, 1e-5) {
		t.Fatalf("BoundsTransform = %v", bottom)
	}
}

func TestParseRejects(t *testing.T) {
	overrun := append([]fieldSpec(nil), sceneFields...)
	overrun[len(overrun)-1].offset = 60
	if _, err := Parse(buildGSEB(overrun, nil)); !errors.Is(err, ErrCorruptTable) {
		t.Errorf("overrun: err = %v", err)
	}

	badType := append([]fieldSpec(nil), sceneFields...)
	badType[1].typ = 9
	if _, err := Parse(buildGSEB(badType, nil)); !errors.Is(err, ErrCorruptTable) {
		t.Errorf("type: err = %v", err)
	}

	data := buildGSEB(sceneFields, []item{{name: "x"}})
	if _, err := Parse(data[:len(data)-8]); !errors.Is(err, binreader.ErrUnexpectedEOD) {
		t.Errorf("truncated: err = %v", err)
	}
}

func TestResolve(t *testing.T) {
	romfs := t.TempDir()
	table := filepath.Join(romfs, "scene", "map07", "map07.gseb")
	r, err := ResolverFor(table)
	if err != nil {
		t.Fatal(err)
	}
	if r.RomFS != romfs || r.MapNo != 7 {
		t.Fatalf("resolver = %+v", r)
	}

	room := filepath.Join(romfs, "mapmdl", "map7", "room_03")
	if err := os.MkdirAll(room, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(room, "tree.zar"), []byte("ZAR"), 0o644); err != nil {
		t.Fatal(err)
	}
	models := filepath.Join(romfs, "model")
	if err := os.MkdirAll(models, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"door.cmb", "door.gar"} {
		if err := os.WriteFile(filepath.Join(models, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := r.Resolve(&Object{ModelName: "tree", RoomNo: 3})
	if err != nil || got != filepath.Join(room, "tree.zar") {
		t.Fatalf("room model: %q, %v", got, err)
	}
	got, err = r.Resolve(&Object{ModelName: "door", FromModelFolder: true})
	if err != nil || got != filepath.Join(models, "door.cmb") {
		t.Fatalf("model folder: %q, %v", got, err)
	}
	if _, err := r.Resolve(&Object{ModelName: "rock", RoomNo: 3}); !errors.Is(err, ErrUnresolvedReference) {
		t.Fatalf("missing: err = %v", err)
	}
	if got, err := r.Resolve(&Object{ModelName: NullModel}); got != "" || err != nil {
		t.Fatalf("(null): %q, %v", got, err)
	}

	if _, err := ResolverFor(filepath.Join(romfs, "scene", "x.gseb")); err == nil {
		t.Fatal("non-map directory accepted")
	}
}
