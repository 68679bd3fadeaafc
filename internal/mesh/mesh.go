// Package mesh turns CMB shapes into flat vertex arrays, triangle lists and
// per-vertex bone bindings.
package mesh

import (
	"ctr-asset-decoder/internal/cmb"
	"ctr-asset-decoder/internal/mathutil"
)

// Influence binds a vertex to a bone by global bone id.
type Influence struct {
	Bone   int
	Weight float32
}

// Mesh is one assembled CMB mesh. Optional channels are nil when the shape
// does not carry them.
type Mesh struct {
	Index         int // position in the model's mesh table
	ShapeIndex    int
	MaterialIndex int
	ID            int

	Positions [][3]float32
	Normals   [][3]float32
	Tangents  [][3]float32
	Colors    [][4]float32
	UVs       [3][][2]float32

	// Skinning is the mode of the primitive set that first referenced
	// each vertex. Non-smooth vertices are already in model space.
	Skinning   []cmb.SkinningMode
	Influences [][]Influence

	Triangles [][3]uint32
}

// VertexCount is the number of assembled vertices.
func (m *Mesh) VertexCount() int { return len(m.Positions) }

// Smooth reports whether any vertex is left in bind space for runtime skinning.
func (m *Mesh) Smooth() bool {
	for _, s := range m.Skinning {
		if s == cmb.Smooth {
			return true
		}
	}
	return false
}

// Bounds is the axis-aligned box of all positions.
func (m *Mesh) Bounds() mathutil.Bounds {
	b := mathutil.NewBounds()
	for _, p := range m.Positions {
		b.Add(p)
	}
	return b
}

// UVRange summarizes one UV set.
type UVRange struct {
	Min, Max     [2]float32
	WrapU, WrapV bool // coordinates leave [0,1] on that axis
}

// UVWrapReport returns the range of UV set n and whether it relies on
// texture wrapping. ok is false when the set is absent.
func (m *Mesh) UVWrapReport(n int) (r UVRange, ok bool) {
	if n < 0 || n >= len(m.UVs) || len(m.UVs[n]) == 0 {
		return r, false
	}
	uv := m.UVs[n]
	r.Min, r.Max = uv[0], uv[0]
	for _, t := range uv[1:] {
		for k := 0; k < 2; k++ {
			r.Min[k] = min(r.Min[k], t[k])
			r.Max[k] = max(r.Max[k], t[k])
		}
	}
	r.WrapU = r.Min[0] < 0 || r.Max[0] > 1
	r.WrapV = r.Min[1] < 0 || r.Max[1] > 1
	return r, true
}
