package importer

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ctr-asset-decoder/internal/cmb"
	"ctr-asset-decoder/internal/cmb/cmbtest"
	"ctr-asset-decoder/internal/combiner"
	"ctr-asset-decoder/internal/ctrtex"
	"ctr-asset-decoder/internal/ctxb/ctxbtest"
	"ctr-asset-decoder/internal/gar/gartest"
	"ctr-asset-decoder/internal/gseb"
	"ctr-asset-decoder/internal/mesh"
	"ctr-asset-decoder/internal/skeleton"
)

// buildGSEB writes items of {name(16), room u32}.
func buildGSEB(names []string, rooms []uint32) []byte {
	const itemSize = 20
	hdr := 16 + 12*2
	b := make([]byte, hdr+itemSize*len(names))
	binary.LittleEndian.PutUint32(b[0:], uint32(len(names)))
	binary.LittleEndian.PutUint32(b[4:], 2)
	binary.LittleEndian.PutUint32(b[8:], uint32(hdr))
	binary.LittleEndian.PutUint32(b[12:], itemSize)
	b[16] = gseb.FieldRoomModelName
	b[16+11] = uint8(gseb.String)
	b[28] = gseb.FieldRoomNo
	binary.LittleEndian.PutUint16(b[28+8:], 16)
	for i, n := range names {
		rec := b[hdr+itemSize*i:]
		copy(rec, n)
		binary.LittleEndian.PutUint32(rec[16:], rooms[i])
	}
	return b
}

func writeFile(t *testing.T, path string, data []byte) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func embedded(name string) ctrtex.Texture {
	g := ctxbtest.Gray(name, 0x80)
	return ctrtex.Texture{Name: g.Name, Width: g.Width, Height: g.Height, Format: g.Format, Data: g.Data}
}

func TestDecodeModelEmbeddedTexture(t *testing.T) {
	fx := cmbtest.Triangle()
	fx.Textures = []ctrtex.Texture{embedded("skin")}
	path := writeFile(t, filepath.Join(t.TempDir(), "hero.cmb"), cmbtest.Build(fx))

	a, err := Decode(path)
	if err != nil {
		t.Fatal(err)
	}
	if a.Kind != KindModel || len(a.Models) != 1 || len(a.Images) != 1 {
		t.Fatalf("asset = %v, %d models, %d images", a.Kind, len(a.Models), len(a.Images))
	}
	m := a.Models[0]
	if m.Name != "hero" || len(m.Meshes) != 1 || len(m.Graphs) != 1 || m.Images[0] != 0 {
		t.Fatalf("model = %+v", m)
	}
	if px := a.Images[0].RGBA; px[0] != float32(0x80)/255 || px[3] != 1 {
		t.Fatalf("pixel = %v", px[:4])
	}
	s := a.Stats()
	if s.Meshes != 1 || s.Vertices != 3 || s.Triangles != 1 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestDecodeArchiveResolvesTexturesByName(t *testing.T) {
	fx := cmbtest.Triangle()
	fx.Textures = []ctrtex.Texture{{Name: "skin", Width: 8, Height: 8, Format: ctrtex.L8}}
	data := gartest.System("GAR\x02", "SYSTEM", []gartest.Group{
		{Ext: "cmb", Files: []gartest.File{{Name: "body", Data: cmbtest.Build(fx)}}},
		{Ext: "ctxb", Files: []gartest.File{{Name: "body", Data: ctxbtest.Build([]ctxbtest.Texture{ctxbtest.Gray("skin", 0x80)})}}},
	})
	path := writeFile(t, filepath.Join(t.TempDir(), "body.zar"), data)

	a, err := Decode(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Models) != 1 || len(a.Images) != 1 {
		t.Fatalf("%d models, %d images", len(a.Models), len(a.Images))
	}
	if a.Models[0].Images[0] != 0 || a.Images[0].Name != "skin" {
		t.Fatalf("model images = %v", a.Models[0].Images)
	}
}

func TestArchiveLoadsEveryModel(t *testing.T) {
	one, two := cmbtest.Triangle(), cmbtest.Triangle()
	two.Name = "second"
	data := gartest.Indexed("ZAR\x01", "queen", []gartest.File{
		{Name: "a.cmb", Data: cmbtest.Build(one)},
		{Name: "b.cmb", Data: cmbtest.Build(two)},
	})
	a, err := new(Decoder).DecodeBytes("pack.zar", data)
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Models) != 2 || a.Models[0].Name != "a" || a.Models[1].Name != "b" {
		t.Fatalf("models = %d", len(a.Models))
	}
}

func TestCorruptTextureIsolated(t *testing.T) {
	data := ctxbtest.Build([]ctxbtest.Texture{
		ctxbtest.Gray("good", 0x80),
		{Name: "bad", Width: 8, Height: 8, Format: ctrtex.RGBA8, Data: make([]byte, 10)},
	})
	a, err := new(Decoder).DecodeBytes("pair.ctxb", data)
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Images) != 1 || a.Images[0].Name != "good" {
		t.Fatalf("images = %d", len(a.Images))
	}
	if len(a.Failures) != 1 || !errors.Is(a.Failures[0].Err, ctrtex.ErrCorruptTexture) {
		t.Fatalf("failures = %+v", a.Failures)
	}
}

func TestDecodeScene(t *testing.T) {
	romfs := t.TempDir()
	writeFile(t, filepath.Join(romfs, "mapmdl", "map1", "room_01", "tree.cmb"), cmbtest.Build(cmbtest.Triangle()))
	path := writeFile(t, filepath.Join(romfs, "scene", "map01", "map01.gseb"),
		buildGSEB([]string{"tree", "rock", gseb.NullModel, "tree"}, []uint32{1, 1, 2, 1}))

	a, err := Decode(path)
	if err != nil {
		t.Fatal(err)
	}
	if a.Kind != KindScene || len(a.Placements) != 4 {
		t.Fatalf("placements = %d", len(a.Placements))
	}
	if p := a.Placements[0]; p.Asset == nil || p.Err != nil || len(p.Asset.Models) != 1 {
		t.Fatalf("tree placement = %+v", p)
	}
	if a.Placements[3].Asset != a.Placements[0].Asset {
		t.Fatal("scene model decoded twice")
	}
	if p := a.Placements[1]; p.Asset != nil || !errors.Is(p.Err, gseb.ErrUnresolvedReference) {
		t.Fatalf("rock placement = %+v", p)
	}
	if p := a.Placements[2]; p.Asset != nil || p.Err != nil {
		t.Fatalf("(null) placement = %+v", p)
	}
	if len(a.Failures) != 1 {
		t.Fatalf("failures = %+v", a.Failures)
	}

	skip := Decoder{SkipSceneModels: true}
	b, err := skip.Decode(path)
	if err != nil {
		t.Fatal(err)
	}
	if b.Placements[0].Asset != nil || len(b.Failures) != 0 {
		t.Fatal("SkipSceneModels still loaded models")
	}
}

func TestUnknownKind(t *testing.T) {
	if _, err := new(Decoder).DecodeBytes("notes.txt", []byte("hello")); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("err = %v", err)
	}
	if k := DetectKind("blob", []byte("cmb \x00\x00")); k != KindModel {
		t.Fatalf("magic sniff = %v", k)
	}
}

type recorder struct{ calls []string }

func (r *recorder) AddSkeleton(*Model, []cmb.Bone, *skeleton.Pose) error {
	r.calls = append(r.calls, "skeleton")
	return nil
}

func (r *recorder) AddImage(string, int, int, []float32) error {
	r.calls = append(r.calls, "image")
	return nil
}

func (r *recorder) AddMesh(*Model, *mesh.Mesh) error {
	r.calls = append(r.calls, "mesh")
	return nil
}

func (r *recorder) AddMaterial(*Model, int, *cmb.Material, *combiner.Graph) error {
	r.calls = append(r.calls, "material")
	return nil
}

func (r *recorder) AddPlacement(*Placement) error {
	r.calls = append(r.calls, "placement")
	return nil
}

var _ Sink = (*recorder)(nil)

func TestDeliverOrder(t *testing.T) {
	fx := cmbtest.Triangle()
	fx.Textures = []ctrtex.Texture{embedded("skin")}
	a, err := new(Decoder).DecodeBytes("hero.cmb", cmbtest.Build(fx))
	if err != nil {
		t.Fatal(err)
	}
	r := &recorder{}
	if err := Deliver(a, r); err != nil {
		t.Fatal(err)
	}
	want := []string{"image", "skeleton", "material", "mesh"}
	if len(r.calls) != len(want) {
		t.Fatalf("calls = %v", r.calls)
	}
	for i := range want {
		if r.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", r.calls, want)
		}
	}

	type imagesOnly struct{ ImageSink }
	n := 0
	if err := Deliver(a, imagesOnly{sinkFunc(func() { n++ })}); err != nil || n != 1 {
		t.Fatalf("partial sink: %d images, %v", n, err)
	}
}

type sinkFunc func()

func (f sinkFunc) AddImage(string, int, int, []float32) error {
	f()
	return nil
}

func TestDecodeSceneRomFSOverride(t *testing.T) {
	romfs := t.TempDir()
	writeFile(t, filepath.Join(romfs, "model", "chest.cmb"), cmbtest.Build(cmbtest.Triangle()))
	data := buildGSEB([]string{"chest"}, []uint32{0})
	// Field 205 becomes 198, which resolves under romfs/model.
	data[16] = gseb.FieldModelName
	path := writeFile(t, filepath.Join(t.TempDir(), "dump", "map07", "map07.gseb"), data)

	d := Decoder{RomFS: romfs}
	a, err := d.Decode(path)
	if err != nil {
		t.Fatal(err)
	}
	if p := a.Placements[0]; p.Asset == nil || !p.Object.FromModelFolder {
		t.Fatalf("placement = %+v", p)
	}
}
