package mesh_test

import (
	"errors"
	"math"
	"testing"

	"ctr-asset-decoder/internal/binreader"
	"ctr-asset-decoder/internal/cmb"
	"ctr-asset-decoder/internal/cmb/cmbtest"
	"ctr-asset-decoder/internal/mesh"
	"ctr-asset-decoder/internal/skeleton"
)

func load(t *testing.T, fx cmbtest.Model) (*cmb.Model, *skeleton.Pose) {
	t.Helper()
	m, err := cmb.Parse(cmbtest.Build(fx))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	pose, err := skeleton.Resolve(m.Bones)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return m, pose
}

func near(a, b float32) bool { return math.Abs(float64(a-b)) < 1e-5 }

func checkInvariants(t *testing.T, m *mesh.Mesh) {
	t.Helper()
	top := -1
	for _, tri := range m.Triangles {
		for _, i := range tri {
			top = max(top, int(i))
		}
	}
	if len(m.Triangles) > 0 && top >= m.VertexCount() {
		t.Errorf("triangle index %d beyond %d vertices", top, m.VertexCount())
	}
	for v, inf := range m.Influences {
		if len(inf) == 0 {
			t.Errorf("vertex %d has no binding", v)
			continue
		}
		var sum float32
		for _, b := range inf {
			sum += b.Weight
		}
		if sum <= 0 || sum > 1+1e-6 {
			t.Errorf("vertex %d weight sum %v", v, sum)
		}
	}
}

func TestSingleBoundTriangle(t *testing.T) {
	model, pose := load(t, cmbtest.Triangle())
	m, err := mesh.Assemble(model, pose, 0)
	if err != nil {
		t.Fatal(err)
	}
	local := [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 0, 1}}
	if m.VertexCount() != 3 {
		t.Fatalf("VertexCount = %d", m.VertexCount())
	}
	for i, p := range m.Positions {
		want := local[i]
		want[1] += 1
		if p != want {
			t.Errorf("vertex %d at %v, want %v", i, p, want)
		}
		if !near(m.Normals[i][1], 1) {
			t.Errorf("normal %d = %v", i, m.Normals[i])
		}
		if m.Influences[i][0] != (mesh.Influence{Bone: 1, Weight: 1}) {
			t.Errorf("vertex %d binding %v", i, m.Influences[i])
		}
	}
	if len(m.Triangles) != 1 || m.Triangles[0] != [3]uint32{0, 1, 2} {
		t.Fatalf("triangles = %v", m.Triangles)
	}
	if m.Smooth() {
		t.Fatal("single-bound mesh reported as smooth")
	}
	b := m.Bounds()
	if b.Min != [3]float32{0, 1, 0} || b.Max != [3]float32{1, 1, 1} {
		t.Fatalf("bounds = %v..%v", b.Min, b.Max)
	}
	checkInvariants(t, m)
}

func TestAssembleWithoutPose(t *testing.T) {
	model, _ := load(t, cmbtest.Triangle())
	m, err := mesh.Assemble(model, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if m.Positions[1] != [3]float32{1, 0, 0} {
		t.Fatalf("position moved without a pose: %v", m.Positions[1])
	}
}

func TestSmoothWeights(t *testing.T) {
	fx := cmbtest.Triangle()
	sh := &fx.Shapes[0]
	sh.Channels[cmb.Position] = cmbtest.Attr{Type: binreader.Float, Scale: 1, Values: []float64{
		0, 0, 0,
		1, 0, 0,
		0, 0, 1,
		1, 0, 1,
	}}
	delete(sh.Channels, cmb.Normal)
	sh.BoneDimensions = 2
	sh.Channels[cmb.BoneIndices] = cmbtest.Attr{Type: binreader.UByte, Scale: 1, Values: []float64{
		0, 1,
		1, 0,
		0, 1,
		0, 1,
	}}
	sh.Channels[cmb.BoneWeights] = cmbtest.Attr{Type: binreader.UByte, Scale: 0.01, Values: []float64{
		50, 50,
		100, 0,
		0, 0,
		70, 70,
	}}
	sh.Sets = []cmbtest.PrimSet{{Skinning: cmb.Smooth, BoneTable: []int{0, 1}, Indices: []uint32{0, 1, 2, 1, 3, 2}}}

	model, pose := load(t, fx)
	m, err := mesh.Assemble(model, pose, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !m.Smooth() || m.VertexCount() != 4 {
		t.Fatalf("smooth %v, %d vertices", m.Smooth(), m.VertexCount())
	}
	want := [][]mesh.Influence{
		{{Bone: 0, Weight: 0.5}, {Bone: 1, Weight: 0.5}},
		{{Bone: 1, Weight: 1}},
		{{Bone: 0, Weight: 1}},
		{{Bone: 0, Weight: 0.5}, {Bone: 1, Weight: 0.5}},
	}
	for v, inf := range m.Influences {
		if len(inf) != len(want[v]) {
			t.Fatalf("vertex %d: %v, want %v", v, inf, want[v])
		}
		for k := range inf {
			if inf[k].Bone != want[v][k].Bone || !near(inf[k].Weight, want[v][k].Weight) {
				t.Fatalf("vertex %d: %v, want %v", v, inf, want[v])
			}
		}
	}
	// Smooth vertices stay in bind space.
	if m.Positions[3] != [3]float32{1, 0, 1} {
		t.Fatalf("smooth vertex moved to %v", m.Positions[3])
	}
	if len(m.Triangles) != 2 {
		t.Fatalf("triangles = %v", m.Triangles)
	}
	checkInvariants(t, m)
}

func TestRigidBinding(t *testing.T) {
	fx := cmbtest.Triangle()
	sh := &fx.Shapes[0]
	sh.BoneDimensions = 1
	sh.Channels[cmb.BoneIndices] = cmbtest.Attr{Type: binreader.UByte, Scale: 1, Values: []float64{0, 1, 0}}
	sh.Sets = []cmbtest.PrimSet{{Skinning: cmb.Rigid, BoneTable: []int{0, 1}, Indices: []uint32{0, 1, 2}}}

	model, pose := load(t, fx)
	m, err := mesh.Assemble(model, pose, 0)
	if err != nil {
		t.Fatal(err)
	}
	if m.Positions[0] != [3]float32{0, 0, 0} || m.Positions[1] != [3]float32{1, 1, 0} {
		t.Fatalf("positions = %v", m.Positions)
	}
	if m.Influences[1][0].Bone != 1 || m.Skinning[1] != cmb.Rigid {
		t.Fatalf("vertex 1: %v %s", m.Influences[1], m.Skinning[1])
	}

	sh.Channels[cmb.BoneIndices] = cmbtest.Attr{Type: binreader.UByte, Scale: 1, Values: []float64{0, 4, 0}}
	model, pose = load(t, fx)
	if _, err := mesh.Assemble(model, pose, 0); !errors.Is(err, cmb.ErrCorruptModel) {
		t.Fatalf("bad bone slot: err = %v", err)
	}
}

func TestTriangleFiltering(t *testing.T) {
	fx := cmbtest.Triangle()
	fx.Shapes[0].Sets[0].Indices = []uint32{0, 1, 2, 2, 1, 0, 0, 0, 1, 1, 2, 0}
	model, pose := load(t, fx)
	m, err := mesh.Assemble(model, pose, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Triangles) != 1 {
		t.Fatalf("triangles = %v", m.Triangles)
	}
}

func TestUnreferencedVertex(t *testing.T) {
	fx := cmbtest.Triangle()
	sh := &fx.Shapes[0]
	sh.Channels[cmb.Position] = cmbtest.Attr{Type: binreader.Float, Scale: 1, Values: []float64{
		0, 0, 0,
		1, 0, 0,
		5, 5, 5,
		0, 0, 1,
	}}
	delete(sh.Channels, cmb.Normal)
	sh.Sets[0].Indices = []uint32{0, 1, 3}

	model, pose := load(t, fx)
	m, err := mesh.Assemble(model, pose, 0)
	if err != nil {
		t.Fatal(err)
	}
	if m.VertexCount() != 4 {
		t.Fatalf("VertexCount = %d", m.VertexCount())
	}
	if m.Skinning[2] != cmb.Single || m.Influences[2][0].Bone != 1 || m.Positions[2] != [3]float32{5, 6, 5} {
		t.Fatalf("vertex 2: %s %v at %v", m.Skinning[2], m.Influences[2], m.Positions[2])
	}
	checkInvariants(t, m)
}

func TestConstantColorAndUVs(t *testing.T) {
	fx := cmbtest.Triangle()
	sh := &fx.Shapes[0]
	red := [4]float32{1, 0, 0, 1}
	sh.Channels[cmb.ColorChannel] = cmbtest.Attr{Constant: &red}
	sh.Channels[cmb.UV0] = cmbtest.Attr{Type: binreader.Short, Scale: 1.0 / 256, Values: []float64{
		0, 0,
		512, 0,
		-256, 256,
	}}
	model, pose := load(t, fx)
	m, err := mesh.Assemble(model, pose, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range m.Colors {
		if c != red {
			t.Errorf("color %d = %v", i, c)
		}
	}
	if m.UVs[0][1] != [2]float32{2, 0} || m.UVs[0][2] != [2]float32{-1, 1} {
		t.Fatalf("uv0 = %v", m.UVs[0])
	}
	r, ok := m.UVWrapReport(0)
	if !ok || !r.WrapU || r.WrapV || r.Min[0] != -1 || r.Max[0] != 2 {
		t.Fatalf("UVWrapReport = %+v, %v", r, ok)
	}
	if _, ok := m.UVWrapReport(1); ok {
		t.Fatal("absent uv set reported")
	}
}

func TestAssembleAll(t *testing.T) {
	fx := cmbtest.Triangle()
	fx.Meshes = append(fx.Meshes, cmb.Mesh{ShapeIndex: 0, MaterialIndex: 0, ID: 3})
	model, pose := load(t, fx)
	ms, err := mesh.AssembleAll(model, pose)
	if err != nil {
		t.Fatal(err)
	}
	if len(ms) != 2 || ms[1].Index != 1 || ms[1].ID != 3 {
		t.Fatalf("meshes = %d", len(ms))
	}
	if _, err := mesh.Assemble(model, pose, 2); err == nil {
		t.Fatal("out of range mesh index accepted")
	}
}

func TestIndexPastVertexData(t *testing.T) {
	m, pose := load(t, cmbtest.Triangle())
	m.Shapes[0].PrimitiveSets[0].Primitives[0].Indices = []uint32{0, 1, 0xFFFFFFFF}
	if _, err := mesh.Assemble(m, pose, 0); !errors.Is(err, cmb.ErrCorruptModel) {
		t.Fatalf("err = %v, want ErrCorruptModel", err)
	}
}
