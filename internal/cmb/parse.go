package cmb

import (
	"fmt"
	"os"
	"path/filepath"

	"ctr-asset-decoder/internal/binreader"
	"ctr-asset-decoder/internal/ctrtex"
)

const (
	materialSize = 284
	combinerSize = 40
	textureSize  = 36
	maxStages    = 6
	maxMappers   = 4
)

// corrupt builds an ErrCorruptModel error.
func corrupt(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrCorruptModel)...)
}

// wrap marks a cursor failure as a corrupt model while keeping the offset.
func wrap(what string, err error) error {
	return fmt.Errorf("%s: %w: %w", what, ErrCorruptModel, err)
}

type header struct {
	faceIndexCount uint32
	skl, qtrs      uint32
	mats, tex      uint32
	sklm, luts     uint32
	vatr           uint32
	faceIndices    uint32
	texData        uint32
	unknown        uint32
}

type parser struct {
	r     *binreader.Reader
	m     *Model
	h     header
	faces *binreader.Reader
}

// Load reads and parses a CMB file from disk.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cmb: read %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return m, nil
}

// Parse decodes a CMB container. Any structural inconsistency is reported
// as ErrCorruptModel.
func Parse(data []byte) (*Model, error) {
	p := &parser{r: binreader.New(data), m: &Model{}}
	steps := []func() error{
		p.header,
		p.skeleton,
		p.textures,
		p.materials,
		p.vertexSlices,
		p.sklm,
		p.validate,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, fmt.Errorf("cmb: %w", err)
		}
	}
	return p.m, nil
}

func (p *parser) v6() bool  { return p.m.Version > 6 }
func (p *parser) v10() bool { return p.m.Version > 10 }

// u32s reads consecutive uint32 values; nil destinations are skipped.
func (p *parser) u32s(dst ...*uint32) error {
	for _, d := range dst {
		v, err := p.r.U32()
		if err != nil {
			return err
		}
		if d != nil {
			*d = v
		}
	}
	return nil
}

// chunk seeks to off, checks the magic and returns the chunk size.
func (p *parser) chunk(off uint32, magic string) (uint32, error) {
	if err := p.r.Seek(int(off)); err != nil {
		return 0, wrap(magic+" chunk", err)
	}
	got, err := p.r.String(4)
	if err != nil {
		return 0, wrap(magic+" chunk", err)
	}
	if got != magic {
		return 0, corrupt("expected %q chunk at 0x%x, found %q", magic, off, got)
	}
	size, err := p.r.U32()
	if err != nil {
		return 0, wrap(magic+" chunk", err)
	}
	return size, nil
}

func (p *parser) header() error {
	m, h := p.m, &p.h
	magic, err := p.r.String(4)
	if err != nil {
		return wrap("header", err)
	}
	if magic != Magic {
		return corrupt("bad magic %q", magic)
	}
	if err := p.u32s(&m.Size, &m.Version, nil); err != nil {
		return wrap("header", err)
	}
	if m.Name, err = p.r.String(16); err != nil {
		return wrap("header", err)
	}
	fields := []*uint32{&h.faceIndexCount, &h.skl}
	if p.v6() {
		fields = append(fields, &h.qtrs)
	}
	fields = append(fields, &h.mats, &h.tex, &h.sklm, &h.luts, &h.vatr, &h.faceIndices, &h.texData)
	if p.v10() {
		fields = append(fields, &h.unknown)
	}
	if err := p.u32s(fields...); err != nil {
		return wrap("header", err)
	}
	if int(h.faceIndices) > p.r.Len() {
		return corrupt("face index offset 0x%x beyond 0x%x bytes", h.faceIndices, p.r.Len())
	}
	p.faces = binreader.New(p.r.Data()[h.faceIndices:])
	return nil
}

func (p *parser) skeleton() error {
	if _, err := p.chunk(p.h.skl, "skl "); err != nil {
		return err
	}
	var count uint32
	if err := p.u32s(&count, nil); err != nil {
		return wrap("skl", err)
	}
	rec := 40
	if p.v6() {
		rec = 44
	}
	for i := 0; i < int(count); i++ {
		b, err := p.r.Bytes(rec)
		if err != nil {
			return wrap(fmt.Sprintf("bone %d", i), err)
		}
		br := binreader.New(b)
		id, _ := br.U16()
		parent, _ := br.I16()
		bone := Bone{ID: int(id & 0xFFF), Flags: id &^ 0xFFF, Parent: int(parent)}
		bone.Scale, _ = br.Vec3()
		bone.Rotation, _ = br.Vec3()
		bone.Translation, _ = br.Vec3()
		if bone.ID != i {
			return corrupt("bone %d stores id %d", i, bone.ID)
		}
		if bone.Parent != -1 && (bone.Parent < 0 || bone.Parent >= bone.ID) {
			return corrupt("bone %d has parent %d, which is not an earlier bone", i, bone.Parent)
		}
		p.m.Bones = append(p.m.Bones, bone)
	}
	return nil
}

func (p *parser) textures() error {
	if _, err := p.chunk(p.h.tex, "tex "); err != nil {
		return err
	}
	var count uint32
	if err := p.u32s(&count); err != nil {
		return wrap("tex", err)
	}
	p.m.EmbeddedTextures = p.h.texData != 0
	for i := 0; i < int(count); i++ {
		b, err := p.r.Bytes(textureSize)
		if err != nil {
			return wrap(fmt.Sprintf("texture %d", i), err)
		}
		br := binreader.New(b)
		size, _ := br.U32()
		levels, _ := br.U16()
		etc, _ := br.U8()
		br.U8() // cube map
		w, _ := br.U16()
		h, _ := br.U16()
		format, _ := br.U32()
		off, _ := br.U32()
		name, _ := br.String(16)

		t := ctrtex.Texture{
			Name:            name,
			Width:           int(w),
			Height:          int(h),
			Levels:          max(int(levels), 1),
			Format:          ctrtex.Format(format),
			BlockCompressed: etc != 0,
		}
		if p.m.EmbeddedTextures {
			sub, err := p.r.Sub(int(p.h.texData)+int(off), int(size))
			if err != nil {
				return wrap(fmt.Sprintf("texture %q payload", name), err)
			}
			t.Data = sub.Data()
		}
		p.m.Textures = append(p.m.Textures, t)
	}
	return nil
}

func (p *parser) materials() error {
	if _, err := p.chunk(p.h.mats, "mats"); err != nil {
		return err
	}
	var count uint32
	if err := p.u32s(&count); err != nil {
		return wrap("mats", err)
	}
	tableOff := p.r.Pos() + int(count)*materialSize

	stageIdx := make([][]int, count)
	tableLen := 0
	for i := 0; i < int(count); i++ {
		b, err := p.r.Bytes(materialSize)
		if err != nil {
			return wrap(fmt.Sprintf("material %d", i), err)
		}
		mat, idx, err := p.material(b)
		if err != nil {
			return fmt.Errorf("material %d: %w", i, err)
		}
		for _, k := range idx {
			tableLen = max(tableLen, k+1)
		}
		stageIdx[i] = idx
		p.m.Materials = append(p.m.Materials, mat)
	}

	if err := p.r.Seek(tableOff); err != nil {
		return wrap("combiner table", err)
	}
	table := make([]Combiner, tableLen)
	for i := range table {
		b, err := p.r.Bytes(combinerSize)
		if err != nil {
			return wrap(fmt.Sprintf("combiner %d", i), err)
		}
		if table[i], err = combiner(b); err != nil {
			return fmt.Errorf("combiner %d: %w", i, err)
		}
	}
	for i := range p.m.Materials {
		for _, k := range stageIdx[i] {
			p.m.Materials[i].Stages = append(p.m.Materials[i].Stages, table[k])
		}
	}
	return nil
}

func readColor(r *binreader.Reader) Color {
	var c Color
	b, _ := r.Bytes(4)
	copy(c[:], b)
	return c
}

// material decodes one fixed-size record and returns its stage indices.
func (p *parser) material(b []byte) (Material, []int, error) {
	var mat Material
	r := binreader.New(b)
	flags, _ := r.Bytes(6)
	mat.FragmentLighting = flags[0] != 0
	mat.VertexLighting = flags[1] != 0
	mat.HemiLighting = flags[2] != 0
	mat.HemiOcclusion = flags[3] != 0
	mat.CullMode = flags[4]
	mat.PolygonOffsetEnabled = flags[5] != 0
	mat.PolygonOffset, _ = r.I16()
	mappers, _ := r.U32()
	coords, _ := r.U32()
	if mappers > maxMappers || coords > maxMappers {
		return mat, nil, corrupt("%d texture mappers, %d coordinate sets", mappers, coords)
	}

	for k := 0; k < maxMappers; k++ {
		var tm TextureMapper
		id, _ := r.I16()
		r.Skip(2)
		tm.TextureID = int(id)
		tm.MinFilter, _ = r.U16()
		tm.MagFilter, _ = r.U16()
		ws, _ := r.U16()
		wt, _ := r.U16()
		tm.WrapS, tm.WrapT = WrapMode(ws), WrapMode(wt)
		tm.MinLODBias, _ = r.F32()
		tm.LODBias, _ = r.F32()
		tm.Border = readColor(r)
		if k >= int(mappers) {
			continue
		}
		if !tm.WrapS.valid() || !tm.WrapT.valid() {
			return mat, nil, corrupt("mapper %d wrap %s/%s", k, tm.WrapS, tm.WrapT)
		}
		if tm.TextureID < -1 || tm.TextureID >= len(p.m.Textures) {
			return mat, nil, corrupt("mapper %d references texture %d of %d", k, tm.TextureID, len(p.m.Textures))
		}
		mat.Mappers = append(mat.Mappers, tm)
	}

	for k := 0; k < maxMappers; k++ {
		var tc TextureCoord
		head, _ := r.Bytes(4)
		tc.MatrixMode, tc.ReferenceCamera, tc.MappingMethod = head[0], head[1], head[2]
		tc.UVChannel = int(head[3])
		tc.Scale[0], _ = r.F32()
		tc.Scale[1], _ = r.F32()
		tc.Rotation, _ = r.F32()
		tc.Translation[0], _ = r.F32()
		tc.Translation[1], _ = r.F32()
		if k >= int(coords) {
			continue
		}
		if tc.UVChannel > 2 {
			return mat, nil, corrupt("coordinate set %d uses uv channel %d", k, tc.UVChannel)
		}
		mat.Coords = append(mat.Coords, tc)
	}

	mat.Emission = readColor(r)
	mat.Ambient = readColor(r)
	mat.Diffuse = readColor(r)
	mat.Specular0 = readColor(r)
	mat.Specular1 = readColor(r)
	for k := range mat.Constants {
		mat.Constants[k] = readColor(r)
	}
	mat.Buffer = readColor(r)

	stages, _ := r.U32()
	if stages > maxStages {
		return mat, nil, corrupt("%d combiner stages", stages)
	}
	var idx []int
	for k := 0; k < maxStages; k++ {
		v, _ := r.I16()
		if k >= int(stages) {
			continue
		}
		if v < 0 {
			return mat, nil, corrupt("stage %d has combiner index %d", k, v)
		}
		idx = append(idx, int(v))
	}

	tail, _ := r.Bytes(12)
	mat.AlphaTest = tail[0] != 0
	mat.AlphaRef = tail[1]
	mat.AlphaFunc = uint16(tail[2]) | uint16(tail[3])<<8
	mat.DepthTest = tail[4] != 0
	mat.DepthWrite = tail[5] != 0
	mat.DepthFunc = uint16(tail[6]) | uint16(tail[7])<<8
	mat.BlendMode = tail[8]
	return mat, idx, nil
}

func combiner(b []byte) (Combiner, error) {
	var c Combiner
	r := binreader.New(b)
	v, _ := r.U16Array(18)
	c.Color.Mode, c.Alpha.Mode = CombineMode(v[0]), CombineMode(v[1])
	c.Color.Scale, c.Alpha.Scale = int(v[2]), int(v[3])
	c.BufferInputColor, c.BufferInputAlpha = v[4], v[5]
	for k := 0; k < 3; k++ {
		c.Color.Sources[k] = Source(v[6+k])
		c.Color.Operands[k] = Operand(v[9+k])
		c.Alpha.Sources[k] = Source(v[12+k])
		c.Alpha.Operands[k] = Operand(v[15+k])
	}
	ci, _ := r.U32()
	c.ConstantIndex = int(ci)

	for _, ch := range []struct {
		name string
		c    *CombinerChannel
	}{{"color", &c.Color}, {"alpha", &c.Alpha}} {
		if !validCombineMode(ch.c.Mode) {
			return c, corrupt("%s mode %s", ch.name, ch.c.Mode)
		}
		if !validScale(ch.c.Scale) {
			return c, corrupt("%s scale %d", ch.name, ch.c.Scale)
		}
		for k := 0; k < 3; k++ {
			if !validSource(ch.c.Sources[k]) {
				return c, corrupt("%s source %d is %s", ch.name, k, ch.c.Sources[k])
			}
			if !validOperand(ch.c.Operands[k]) {
				return c, corrupt("%s operand %d is %s", ch.name, k, ch.c.Operands[k])
			}
		}
	}
	if c.ConstantIndex >= 6 {
		return c, corrupt("constant color index %d", c.ConstantIndex)
	}
	return c, nil
}

func (p *parser) vertexSlices() error {
	size, err := p.chunk(p.h.vatr, "vatr")
	if err != nil {
		return err
	}
	sub, err := p.r.Sub(int(p.h.vatr), int(size))
	if err != nil {
		return wrap("vatr data", err)
	}
	p.m.VertexData = sub.Data()
	if err := p.u32s(&p.m.MaxIndex); err != nil {
		return wrap("vatr", err)
	}
	for c := Position; c < NumChannels; c++ {
		if c == Tangent && !p.v6() {
			continue
		}
		s := &p.m.VertexSlices[c]
		if err := p.u32s(&s.Size, &s.Start); err != nil {
			return wrap("vatr "+c.String(), err)
		}
		if int(s.Start)+int(s.Size) > len(p.m.VertexData) {
			return corrupt("%s slice [0x%x,+0x%x) outside vatr (0x%x bytes)",
				c, s.Start, s.Size, len(p.m.VertexData))
		}
	}
	return nil
}

func (p *parser) sklm() error {
	base := p.h.sklm
	if _, err := p.chunk(base, "sklm"); err != nil {
		return err
	}
	var mshs, shp uint32
	if err := p.u32s(&mshs, &shp); err != nil {
		return wrap("sklm", err)
	}
	if err := p.meshes(base + mshs); err != nil {
		return err
	}
	return p.shapes(base + shp)
}

func (p *parser) meshes(off uint32) error {
	if _, err := p.chunk(off, "mshs"); err != nil {
		return err
	}
	var count uint32
	if err := p.u32s(&count); err != nil {
		return wrap("mshs", err)
	}
	opaque, err := p.r.U16()
	if err != nil {
		return wrap("mshs", err)
	}
	ids, err := p.r.U16()
	if err != nil {
		return wrap("mshs", err)
	}
	p.m.OpaqueMeshes, p.m.MeshIDCount = int(opaque), int(ids)
	rec := 4
	if p.v6() {
		rec = 8
	}
	for i := 0; i < int(count); i++ {
		b, err := p.r.Bytes(rec)
		if err != nil {
			return wrap(fmt.Sprintf("mesh %d", i), err)
		}
		p.m.Meshes = append(p.m.Meshes, Mesh{
			ShapeIndex:    int(uint16(b[0]) | uint16(b[1])<<8),
			MaterialIndex: int(b[2]),
			ID:            int(b[3]),
		})
	}
	return nil
}

func (p *parser) shapes(off uint32) error {
	if _, err := p.chunk(off, "shp "); err != nil {
		return err
	}
	var count uint32
	if err := p.u32s(&count, nil); err != nil {
		return wrap("shp", err)
	}
	offs, err := p.r.U16Array(int(count))
	if err != nil {
		return wrap("shp offsets", err)
	}
	for i, o := range offs {
		s, err := p.shape(off + uint32(o))
		if err != nil {
			return fmt.Errorf("shape %d: %w", i, err)
		}
		p.m.Shapes = append(p.m.Shapes, s)
	}
	return nil
}

// flagBit maps a channel to its bit in the sepd vertex flags. From version 7
// on the tangent bit shifts every later channel by one.
func (p *parser) flagBit(c Channel) int {
	switch c {
	case Position:
		return 0
	case Normal:
		return 1
	case Tangent:
		return 2
	}
	bit := int(c) - 1
	if p.v6() {
		bit++
	}
	return bit
}

func (p *parser) shape(off uint32) (Shape, error) {
	var s Shape
	if _, err := p.chunk(off, "sepd"); err != nil {
		return s, err
	}
	r := p.r
	sets, err := r.U16()
	if err != nil {
		return s, wrap("sepd", err)
	}
	if s.Flags, err = r.U16(); err != nil {
		return s, wrap("sepd", err)
	}
	vecs := []*[3]float32{&s.Center, &s.PositionOffset}
	if p.v10() {
		vecs = append(vecs, &s.Min, &s.Max)
	}
	for _, v := range vecs {
		if *v, err = r.Vec3(); err != nil {
			return s, wrap("sepd", err)
		}
	}

	for c := Position; c < NumChannels; c++ {
		if c == Tangent && !p.v6() {
			continue
		}
		b, err := r.Bytes(28)
		if err != nil {
			return s, wrap("sepd "+c.String(), err)
		}
		br := binreader.New(b)
		a := &s.Attributes[c]
		a.Start, _ = br.U32()
		a.Scale, _ = br.F32()
		t, _ := br.U16()
		mode, _ := br.U16()
		a.Type, a.Mode = binreader.DataType(t), AttributeMode(mode)
		for k := range a.Constant {
			a.Constant[k], _ = br.F32()
		}
		s.Present[c] = c == Position || s.Flags>>p.flagBit(c)&1 != 0
		if !s.Present[c] {
			continue
		}
		switch a.Mode {
		case AttributeArray:
			if !a.Type.Valid() {
				return s, corrupt("%s has data type %s", c, a.Type)
			}
		case AttributeConstant:
		default:
			return s, corrupt("%s has attribute mode %d", c, a.Mode)
		}
	}

	dims, err := r.U16()
	if err != nil {
		return s, wrap("sepd", err)
	}
	s.BoneDimensions = int(dims)
	if s.ConstantFlags, err = r.U16(); err != nil {
		return s, wrap("sepd", err)
	}
	setOffs, err := r.U16Array(int(sets))
	if err != nil {
		return s, wrap("sepd primitive sets", err)
	}
	for i, o := range setOffs {
		ps, err := p.primitiveSet(off + uint32(o))
		if err != nil {
			return s, fmt.Errorf("primitive set %d: %w", i, err)
		}
		if ps.Skinning != Single && !s.Has(BoneIndices) {
			return s, corrupt("primitive set %d is %s without bone indices", i, ps.Skinning)
		}
		s.PrimitiveSets = append(s.PrimitiveSets, ps)
	}
	return s, nil
}

func (p *parser) primitiveSet(off uint32) (PrimitiveSet, error) {
	var ps PrimitiveSet
	if _, err := p.chunk(off, "prms"); err != nil {
		return ps, err
	}
	var prims, tableOff, primOff uint32
	if err := p.u32s(&prims); err != nil {
		return ps, wrap("prms", err)
	}
	skin, err := p.r.U16()
	if err != nil {
		return ps, wrap("prms", err)
	}
	tableLen, err := p.r.U16()
	if err != nil {
		return ps, wrap("prms", err)
	}
	if err := p.u32s(&tableOff, &primOff); err != nil {
		return ps, wrap("prms", err)
	}
	ps.Skinning = SkinningMode(skin)
	if !ps.Skinning.valid() {
		return ps, corrupt("skinning mode %d", skin)
	}

	if err := p.r.Seek(int(off + tableOff)); err != nil {
		return ps, wrap("bone table", err)
	}
	table, err := p.r.U16Array(int(tableLen))
	if err != nil {
		return ps, wrap("bone table", err)
	}
	if len(table) == 0 {
		return ps, corrupt("empty bone table")
	}
	for _, b := range table {
		if int(b) >= len(p.m.Bones) {
			return ps, corrupt("bone table references bone %d of %d", b, len(p.m.Bones))
		}
		ps.BoneTable = append(ps.BoneTable, int(b))
	}

	next := off + primOff
	for i := 0; i < int(prims); i++ {
		pr, size, err := p.primitive(next)
		if err != nil {
			return ps, fmt.Errorf("primitive %d: %w", i, err)
		}
		ps.Primitives = append(ps.Primitives, pr)
		next += size
	}
	return ps, nil
}

func (p *parser) primitive(off uint32) (Primitive, uint32, error) {
	var pr Primitive
	size, err := p.chunk(off, "prm ")
	if err != nil {
		return pr, 0, err
	}
	var visible, mode, typ uint32
	if err := p.u32s(&visible, &mode, &typ); err != nil {
		return pr, 0, wrap("prm", err)
	}
	count, err := p.r.U16()
	if err != nil {
		return pr, 0, wrap("prm", err)
	}
	first, err := p.r.U16()
	if err != nil {
		return pr, 0, wrap("prm", err)
	}
	pr.Visible, pr.Mode, pr.IndexType = visible != 0, mode, binreader.DataType(typ)
	if pr.IndexType.Size() == 0 {
		return pr, 0, corrupt("index type 0x%x", typ)
	}
	if err := p.faces.Seek(int(first) * pr.IndexType.Size()); err != nil {
		return pr, 0, wrap("face indices", err)
	}
	if pr.Indices, err = p.faces.Indices(pr.IndexType, int(count)); err != nil {
		return pr, 0, wrap("face indices", err)
	}
	if size < 24 {
		size = 24
	}
	return pr, size, nil
}

func (p *parser) validate() error {
	m := p.m
	for i, mesh := range m.Meshes {
		if mesh.ShapeIndex >= len(m.Shapes) {
			return corrupt("mesh %d uses shape %d of %d", i, mesh.ShapeIndex, len(m.Shapes))
		}
		if mesh.MaterialIndex >= len(m.Materials) {
			return corrupt("mesh %d uses material %d of %d", i, mesh.MaterialIndex, len(m.Materials))
		}
	}
	for i := range m.Shapes {
		s := &m.Shapes[i]
		limit := m.VertexCapacity(s)
		for j := range s.PrimitiveSets {
			for k, pr := range s.PrimitiveSets[j].Primitives {
				for _, idx := range pr.Indices {
					if int64(idx) >= int64(limit) {
						return corrupt("shape %d primitive %d/%d references vertex %d of %d", i, j, k, idx, limit)
					}
				}
			}
		}
	}
	return nil
}
