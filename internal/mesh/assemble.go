package mesh

import (
	"fmt"
	"math"

	"ctr-asset-decoder/internal/binreader"
	"ctr-asset-decoder/internal/cmb"
	"ctr-asset-decoder/internal/skeleton"
)

// stream reads one channel of a shape out of the model's vertex data.
type stream struct {
	ch    cmb.Channel
	attr  cmb.Attribute
	r     *binreader.Reader
	base  int
	n     int
	buf   []float32
	valid bool
}

func newStream(m *cmb.Model, s *cmb.Shape, ch cmb.Channel, n int) *stream {
	st := &stream{ch: ch, attr: s.Attributes[ch], n: n, buf: make([]float32, n)}
	if !s.Has(ch) {
		return st
	}
	st.valid = true
	st.r = binreader.New(m.VertexData)
	st.base = int(m.VertexSlices[ch].Start) + int(st.attr.Start)
	return st
}

// read returns the scaled samples of vertex i. The result is reused by the
// next call.
func (s *stream) read(i int) ([]float32, error) {
	if s.attr.Mode == cmb.AttributeConstant {
		for k := range s.buf {
			if k < len(s.attr.Constant) {
				s.buf[k] = s.attr.Constant[k]
			} else {
				s.buf[k] = 0
			}
		}
		return s.buf, nil
	}
	off := s.base + s.n*s.attr.Type.Size()*i
	if err := s.r.Seek(off); err != nil {
		return nil, fmt.Errorf("%s of vertex %d: %w: %w", s.ch, i, cmb.ErrCorruptModel, err)
	}
	for k := range s.buf {
		v, err := s.r.Value(s.attr.Type)
		if err != nil {
			return nil, fmt.Errorf("%s of vertex %d: %w: %w", s.ch, i, cmb.ErrCorruptModel, err)
		}
		s.buf[k] = float32(v) * s.attr.Scale
	}
	return s.buf, nil
}

// round2 rounds to two decimals, half away from zero.
func round2(w float32) float32 {
	return float32(math.Round(float64(w)*100) / 100)
}

// AssembleAll assembles every mesh of the model in table order.
func AssembleAll(model *cmb.Model, pose *skeleton.Pose) ([]*Mesh, error) {
	out := make([]*Mesh, 0, len(model.Meshes))
	for i := range model.Meshes {
		m, err := Assemble(model, pose, i)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Assemble decodes mesh meshIndex of the model. The vertex count is one past
// the highest index any primitive references. Vertices of Single and Rigid
// primitive sets are moved into model space by their bone's world matrix
// when pose is non-nil; Smooth vertices stay in bind space.
func Assemble(model *cmb.Model, pose *skeleton.Pose, meshIndex int) (*Mesh, error) {
	if meshIndex < 0 || meshIndex >= len(model.Meshes) {
		return nil, fmt.Errorf("mesh: index %d of %d", meshIndex, len(model.Meshes))
	}
	src := model.Meshes[meshIndex]
	shape := &model.Shapes[src.ShapeIndex]
	out := &Mesh{
		Index:         meshIndex,
		ShapeIndex:    src.ShapeIndex,
		MaterialIndex: src.MaterialIndex,
		ID:            src.ID,
	}

	count := 0
	for i := range shape.PrimitiveSets {
		for _, idx := range shape.PrimitiveSets[i].Indices() {
			count = max(count, int(idx)+1)
		}
	}
	if count == 0 {
		return out, nil
	}
	if limit := model.VertexCapacity(shape); count > limit {
		return nil, fmt.Errorf("mesh %d: index %d past %d vertices: %w", meshIndex, count-1, limit, cmb.ErrCorruptModel)
	}

	if err := bind(model, shape, out, count); err != nil {
		return nil, fmt.Errorf("mesh %d: %w", meshIndex, err)
	}
	if err := decode(model, shape, out, count); err != nil {
		return nil, fmt.Errorf("mesh %d: %w", meshIndex, err)
	}
	if pose != nil {
		pretransform(pose, out)
	}
	out.Triangles = triangles(shape)
	return out, nil
}

// bind resolves every vertex's bone influences. The first primitive set that
// references a vertex decides its binding.
func bind(model *cmb.Model, shape *cmb.Shape, out *Mesh, count int) error {
	out.Skinning = make([]cmb.SkinningMode, count)
	out.Influences = make([][]Influence, count)
	dims := max(shape.BoneDimensions, 1)
	indices := newStream(model, shape, cmb.BoneIndices, dims)
	weights := newStream(model, shape, cmb.BoneWeights, dims)

	for si := range shape.PrimitiveSets {
		ps := &shape.PrimitiveSets[si]
		for _, idx := range ps.Indices() {
			v := int(idx)
			if out.Influences[v] != nil {
				continue
			}
			inf, err := bindVertex(ps, indices, weights, v)
			if err != nil {
				return fmt.Errorf("primitive set %d: %w", si, err)
			}
			out.Skinning[v], out.Influences[v] = ps.Skinning, inf
		}
	}

	if len(shape.PrimitiveSets) == 0 {
		return nil
	}
	first := shape.PrimitiveSets[0].BoneTable[0]
	for v := range out.Influences {
		if out.Influences[v] == nil {
			out.Skinning[v] = cmb.Single
			out.Influences[v] = []Influence{{Bone: first, Weight: 1}}
		}
	}
	return nil
}

func bindVertex(ps *cmb.PrimitiveSet, indices, weights *stream, v int) ([]Influence, error) {
	lookup := func(local float32) (int, error) {
		i := int(local)
		if i < 0 || i >= len(ps.BoneTable) {
			return 0, fmt.Errorf("vertex %d uses bone slot %d of %d: %w", v, i, len(ps.BoneTable), cmb.ErrCorruptModel)
		}
		return ps.BoneTable[i], nil
	}

	switch ps.Skinning {
	case cmb.Single:
		return []Influence{{Bone: ps.BoneTable[0], Weight: 1}}, nil
	case cmb.Rigid:
		idx, err := indices.read(v)
		if err != nil {
			return nil, err
		}
		b, err := lookup(idx[0])
		if err != nil {
			return nil, err
		}
		return []Influence{{Bone: b, Weight: 1}}, nil
	}

	idx, err := indices.read(v)
	if err != nil {
		return nil, err
	}
	bones := make([]int, len(idx))
	for k, local := range idx {
		if bones[k], err = lookup(local); err != nil {
			return nil, err
		}
	}
	var w []float32
	if weights.valid {
		if w, err = weights.read(v); err != nil {
			return nil, err
		}
	}

	var inf []Influence
	var sum float32
	for k, b := range bones {
		if k >= len(w) {
			break
		}
		if wk := round2(w[k]); wk > 0 {
			inf = append(inf, Influence{Bone: b, Weight: wk})
			sum += wk
		}
	}
	if len(inf) == 0 {
		return []Influence{{Bone: bones[0], Weight: 1}}, nil
	}
	if sum > 1 {
		for k := range inf {
			inf[k].Weight /= sum
		}
	}
	return inf, nil
}

// decode reads every present geometric channel for all vertices.
func decode(model *cmb.Model, shape *cmb.Shape, out *Mesh, count int) error {
	read3 := func(ch cmb.Channel) ([][3]float32, error) {
		if !shape.Has(ch) {
			return nil, nil
		}
		st := newStream(model, shape, ch, shape.Components(ch))
		vs := make([][3]float32, count)
		for i := range vs {
			s, err := st.read(i)
			if err != nil {
				return nil, err
			}
			copy(vs[i][:], s)
		}
		return vs, nil
	}

	var err error
	if out.Positions, err = read3(cmb.Position); err != nil {
		return err
	}
	if out.Normals, err = read3(cmb.Normal); err != nil {
		return err
	}
	if out.Tangents, err = read3(cmb.Tangent); err != nil {
		return err
	}

	if shape.Has(cmb.ColorChannel) {
		st := newStream(model, shape, cmb.ColorChannel, shape.Components(cmb.ColorChannel))
		out.Colors = make([][4]float32, count)
		for i := range out.Colors {
			s, err := st.read(i)
			if err != nil {
				return err
			}
			copy(out.Colors[i][:], s)
		}
	}

	for n, ch := range []cmb.Channel{cmb.UV0, cmb.UV1, cmb.UV2} {
		if !shape.Has(ch) {
			continue
		}
		st := newStream(model, shape, ch, shape.Components(ch))
		uv := make([][2]float32, count)
		for i := range uv {
			s, err := st.read(i)
			if err != nil {
				return err
			}
			copy(uv[i][:], s)
		}
		out.UVs[n] = uv
	}
	return nil
}

// pretransform moves every non-smooth vertex into model space.
func pretransform(pose *skeleton.Pose, out *Mesh) {
	for v, inf := range out.Influences {
		if out.Skinning[v] == cmb.Smooth || len(inf) == 0 || inf[0].Bone >= pose.Len() {
			continue
		}
		b := inf[0].Bone
		out.Positions[v] = pose.TransformPoint(b, out.Positions[v])
		if out.Normals != nil {
			out.Normals[v] = pose.TransformNormal(b, out.Normals[v])
		}
		if out.Tangents != nil {
			out.Tangents[v] = pose.TransformNormal(b, out.Tangents[v])
		}
	}
}

// triangles reads each primitive set's indices as consecutive triples,
// dropping degenerate faces and faces already emitted with the same vertices.
func triangles(shape *cmb.Shape) [][3]uint32 {
	var out [][3]uint32
	seen := make(map[[3]uint32]struct{})
	for i := range shape.PrimitiveSets {
		idx := shape.PrimitiveSets[i].Indices()
		for k := 0; k+2 < len(idx); k += 3 {
			t := [3]uint32{idx[k], idx[k+1], idx[k+2]}
			if t[0] == t[1] || t[1] == t[2] || t[0] == t[2] {
				continue
			}
			key := sortedKey(t)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

func sortedKey(t [3]uint32) [3]uint32 {
	if t[0] > t[1] {
		t[0], t[1] = t[1], t[0]
	}
	if t[1] > t[2] {
		t[1], t[2] = t[2], t[1]
	}
	if t[0] > t[1] {
		t[0], t[1] = t[1], t[0]
	}
	return t
}
