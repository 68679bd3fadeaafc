// Package cmbtest assembles small CMB files in memory for tests.
package cmbtest

import (
	"encoding/binary"
	"math"

	"ctr-asset-decoder/internal/binreader"
	"ctr-asset-decoder/internal/cmb"
	"ctr-asset-decoder/internal/ctrtex"
)

// Attr is one vertex channel of a shape. Values are raw samples, before
// Scale, laid out vertex after vertex.
type Attr struct {
	Type     binreader.DataType
	Scale    float32
	Values   []float64
	Constant *[4]float32 // constant mode when set
}

type PrimSet struct {
	Skinning  cmb.SkinningMode
	BoneTable []int
	Indices   []uint32
	IndexType binreader.DataType // UShort when zero
}

type Shape struct {
	Channels       map[cmb.Channel]Attr
	BoneDimensions int
	Sets           []PrimSet
}

// Model describes a CMB file. Textures with Data are embedded; when none
// has Data the texture data offset is left at zero.
type Model struct {
	Name      string
	Version   uint32
	Bones     []cmb.Bone
	Textures  []ctrtex.Texture
	Materials []cmb.Material
	Shapes    []Shape
	Meshes    []cmb.Mesh
}

type buf struct{ b []byte }

func (w *buf) pos() int { return len(w.b) }
func (w *buf) u8(v uint8) { w.b = append(w.b, v) }
func (w *buf) u16(v uint16) { w.b = binary.LittleEndian.AppendUint16(w.b, v) }
func (w *buf) i16(v int16) { w.u16(uint16(v)) }
func (w *buf) u32(v uint32) { w.b = binary.LittleEndian.AppendUint32(w.b, v) }
func (w *buf) f32(v float32) { w.u32(math.Float32bits(v)) }
func (w *buf) raw(p []byte) { w.b = append(w.b, p...) }
func (w *buf) vec3(v [3]float32) {
	for _, f := range v {
		w.f32(f)
	}
}

func (w *buf) str(s string, n int) {
	p := make([]byte, n)
	copy(p, s)
	w.raw(p)
}

func (w *buf) align(n int) {
	for len(w.b)%n != 0 {
		w.b = append(w.b, 0)
	}
}

func (w *buf) put16(at int, v uint16) { binary.LittleEndian.PutUint16(w.b[at:], v) }
func (w *buf) put32(at int, v uint32) { binary.LittleEndian.PutUint32(w.b[at:], v) }

// chunk writes a magic and a size placeholder, returning the chunk start.
func (w *buf) chunk(magic string) int {
	start := w.pos()
	w.str(magic, 4)
	w.u32(0)
	return start
}

func (w *buf) end(start int) { w.put32(start+4, uint32(w.pos()-start)) }

func (w *buf) value(t binreader.DataType, v float64) {
	switch t {
	case binreader.Byte:
		w.u8(uint8(int8(v)))
	case binreader.UByte:
		w.u8(uint8(v))
	case binreader.Short:
		w.i16(int16(v))
	case binreader.UShort:
		w.u16(uint16(v))
	case binreader.Int:
		w.u32(uint32(int32(v)))
	case binreader.UInt:
		w.u32(uint32(v))
	case binreader.Float:
		w.f32(float32(v))
	}
}

func channels(version uint32) []cmb.Channel {
	var out []cmb.Channel
	for c := cmb.Position; c < cmb.NumChannels; c++ {
		if c == cmb.Tangent && version <= 6 {
			continue
		}
		out = append(out, c)
	}
	return out
}

func flagBit(version uint32, c cmb.Channel) int {
	switch c {
	case cmb.Position, cmb.Normal, cmb.Tangent:
		return int(c)
	}
	bit := int(c) - 1
	if version > 6 {
		bit++
	}
	return bit
}

// Build serializes m.
func Build(m Model) []byte {
	if m.Version == 0 {
		m.Version = 6
	}
	w := &buf{}
	w.str(cmb.Magic, 4)
	w.u32(0) // file size
	w.u32(m.Version)
	w.u32(0)
	w.str(m.Name, 16)
	faceCountAt := w.pos()
	w.u32(0)

	offs := map[string]int{}
	names := []string{"skl"}
	if m.Version > 6 {
		names = append(names, "qtrs")
	}
	names = append(names, "mats", "tex", "sklm", "luts", "vatr", "faces", "texData")
	if m.Version > 10 {
		names = append(names, "unknown")
	}
	for _, n := range names {
		offs[n] = w.pos()
		w.u32(0)
	}
	set := func(name string) { w.put32(offs[name], uint32(w.pos())) }

	set("skl")
	c := w.chunk("skl ")
	w.u32(uint32(len(m.Bones)))
	w.u32(0)
	for _, b := range m.Bones {
		w.u16(uint16(b.ID) | b.Flags)
		w.i16(int16(b.Parent))
		scale := b.Scale
		if scale == ([3]float32{}) {
			scale = [3]float32{1, 1, 1}
		}
		w.vec3(scale)
		w.vec3(b.Rotation)
		w.vec3(b.Translation)
		if m.Version > 6 {
			w.u32(0)
		}
	}
	w.end(c)

	if m.Version > 6 {
		set("qtrs")
		w.end(w.chunk("qtrs"))
	}

	set("mats")
	writeMaterials(w, m.Materials)

	set("tex")
	embedded := false
	for _, t := range m.Textures {
		if t.Data != nil {
			embedded = true
		}
	}
	c = w.chunk("tex ")
	w.u32(uint32(len(m.Textures)))
	var texData []byte
	for _, t := range m.Textures {
		w.u32(uint32(len(t.Data)))
		w.u16(uint16(max(t.Levels, 1)))
		if t.BlockCompressed {
			w.u8(1)
		} else {
			w.u8(0)
		}
		w.u8(0)
		w.u16(uint16(t.Width))
		w.u16(uint16(t.Height))
		w.u32(uint32(t.Format))
		w.u32(uint32(len(texData)))
		w.str(t.Name, 16)
		texData = append(texData, t.Data...)
	}
	w.end(c)

	// Vertex streams are laid out before sklm is written so shapes know
	// their starts; the vatr chunk itself is emitted later.
	vatr, starts := buildVatr(m)

	faces := &buf{}
	set("sklm")
	writeSklm(w, m, starts, faces)

	set("luts")
	w.end(w.chunk("luts"))

	set("vatr")
	w.raw(vatr)
	w.align(4)

	set("faces")
	w.raw(faces.b)
	w.put32(faceCountAt, uint32(len(faces.b)/2))
	w.align(4)

	if embedded {
		set("texData")
		w.raw(texData)
	}
	w.put32(4, uint32(w.pos()))
	return w.b
}

func writeMaterials(w *buf, mats []cmb.Material) {
	c := w.chunk("mats")
	w.u32(uint32(len(mats)))
	var table []cmb.Combiner
	for _, mat := range mats {
		bools := []bool{mat.FragmentLighting, mat.VertexLighting, mat.HemiLighting, mat.HemiOcclusion}
		for _, b := range bools {
			w.u8(boolByte(b))
		}
		w.u8(mat.CullMode)
		w.u8(boolByte(mat.PolygonOffsetEnabled))
		w.i16(mat.PolygonOffset)
		w.u32(uint32(len(mat.Mappers)))
		w.u32(uint32(len(mat.Coords)))
		for k := 0; k < 4; k++ {
			tm := cmb.TextureMapper{TextureID: -1, WrapS: cmb.Repeat, WrapT: cmb.Repeat}
			if k < len(mat.Mappers) {
				tm = mat.Mappers[k]
			}
			w.i16(int16(tm.TextureID))
			w.u16(0)
			w.u16(tm.MinFilter)
			w.u16(tm.MagFilter)
			w.u16(uint16(tm.WrapS))
			w.u16(uint16(tm.WrapT))
			w.f32(tm.MinLODBias)
			w.f32(tm.LODBias)
			w.raw(tm.Border[:])
		}
		for k := 0; k < 4; k++ {
			tc := cmb.TextureCoord{Scale: [2]float32{1, 1}}
			if k < len(mat.Coords) {
				tc = mat.Coords[k]
			}
			w.raw([]byte{tc.MatrixMode, tc.ReferenceCamera, tc.MappingMethod, uint8(tc.UVChannel)})
			w.f32(tc.Scale[0])
			w.f32(tc.Scale[1])
			w.f32(tc.Rotation)
			w.f32(tc.Translation[0])
			w.f32(tc.Translation[1])
		}
		for _, col := range []cmb.Color{mat.Emission, mat.Ambient, mat.Diffuse, mat.Specular0, mat.Specular1} {
			w.raw(col[:])
		}
		for _, col := range mat.Constants {
			w.raw(col[:])
		}
		w.raw(mat.Buffer[:])
		w.u32(uint32(len(mat.Stages)))
		for k := 0; k < 6; k++ {
			if k < len(mat.Stages) {
				w.i16(int16(len(table)))
				table = append(table, mat.Stages[k])
			} else {
				w.i16(-1)
			}
		}
		w.u8(boolByte(mat.AlphaTest))
		w.u8(mat.AlphaRef)
		w.u16(mat.AlphaFunc)
		w.u8(boolByte(mat.DepthTest))
		w.u8(boolByte(mat.DepthWrite))
		w.u16(mat.DepthFunc)
		w.u8(mat.BlendMode)
		w.raw([]byte{0, 0, 0})
	}
	for _, st := range table {
		w.u16(uint16(st.Color.Mode))
		w.u16(uint16(st.Alpha.Mode))
		w.u16(uint16(st.Color.Scale))
		w.u16(uint16(st.Alpha.Scale))
		w.u16(st.BufferInputColor)
		w.u16(st.BufferInputAlpha)
		for _, v := range st.Color.Sources {
			w.u16(uint16(v))
		}
		for _, v := range st.Color.Operands {
			w.u16(uint16(v))
		}
		for _, v := range st.Alpha.Sources {
			w.u16(uint16(v))
		}
		for _, v := range st.Alpha.Operands {
			w.u16(uint16(v))
		}
		w.u32(uint32(st.ConstantIndex))
	}
	w.end(c)
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// buildVatr returns the vatr chunk and, per shape and channel, the start of
// that shape's samples inside the channel slice.
func buildVatr(m Model) ([]byte, [][cmb.NumChannels]uint32) {
	w := &buf{}
	c := w.chunk("vatr")
	maxIndex := 0
	for _, s := range m.Shapes {
		for _, ps := range s.Sets {
			for _, i := range ps.Indices {
				maxIndex = max(maxIndex, int(i))
			}
		}
	}
	w.u32(uint32(maxIndex))
	chs := channels(m.Version)
	sliceAt := map[cmb.Channel]int{}
	for _, ch := range chs {
		sliceAt[ch] = w.pos()
		w.u32(0)
		w.u32(0)
	}

	starts := make([][cmb.NumChannels]uint32, len(m.Shapes))
	for _, ch := range chs {
		sliceStart := w.pos()
		for si, s := range m.Shapes {
			a, ok := s.Channels[ch]
			if !ok || a.Constant != nil {
				continue
			}
			starts[si][ch] = uint32(w.pos() - sliceStart)
			for _, v := range a.Values {
				w.value(a.Type, v)
			}
			w.align(4)
		}
		w.put32(sliceAt[ch], uint32(w.pos()-sliceStart))
		w.put32(sliceAt[ch]+4, uint32(sliceStart-c))
	}
	w.end(c)
	return w.b, starts
}

func writeSklm(w *buf, m Model, starts [][cmb.NumChannels]uint32, faces *buf) {
	sklm := w.chunk("sklm")
	mshsAt := w.pos()
	w.u32(0)
	shpAt := w.pos()
	w.u32(0)

	w.put32(mshsAt, uint32(w.pos()-sklm))
	c := w.chunk("mshs")
	w.u32(uint32(len(m.Meshes)))
	w.u16(uint16(len(m.Meshes)))
	w.u16(0)
	for _, mesh := range m.Meshes {
		w.u16(uint16(mesh.ShapeIndex))
		w.u8(uint8(mesh.MaterialIndex))
		w.u8(uint8(mesh.ID))
		if m.Version > 6 {
			w.u32(0)
		}
	}
	w.end(c)

	w.put32(shpAt, uint32(w.pos()-sklm))
	shp := w.chunk("shp ")
	w.u32(uint32(len(m.Shapes)))
	w.u32(0)
	offAt := w.pos()
	for range m.Shapes {
		w.u16(0)
	}
	w.align(4)
	for si, s := range m.Shapes {
		w.put16(offAt+2*si, uint16(w.pos()-shp))
		writeShape(w, m.Version, s, starts[si], faces)
	}
	w.end(shp)
	w.end(sklm)
}

func writeShape(w *buf, version uint32, s Shape, starts [cmb.NumChannels]uint32, faces *buf) {
	sepd := w.chunk("sepd")
	w.u16(uint16(len(s.Sets)))
	var flags uint16
	for ch := range s.Channels {
		flags |= 1 << flagBit(version, ch)
	}
	w.u16(flags)
	w.vec3([3]float32{})
	w.vec3([3]float32{})
	if version > 10 {
		w.vec3([3]float32{})
		w.vec3([3]float32{})
	}
	for _, ch := range channels(version) {
		a := s.Channels[ch]
		if a.Type == 0 {
			a.Type = binreader.Float
		}
		if a.Scale == 0 {
			a.Scale = 1
		}
		w.u32(starts[ch])
		w.f32(a.Scale)
		w.u16(uint16(a.Type))
		if a.Constant != nil {
			w.u16(uint16(cmb.AttributeConstant))
			for _, v := range a.Constant {
				w.f32(v)
			}
		} else {
			w.u16(uint16(cmb.AttributeArray))
			w.vec3([3]float32{})
			w.f32(0)
		}
	}
	w.u16(uint16(s.BoneDimensions))
	w.u16(0)
	offAt := w.pos()
	for range s.Sets {
		w.u16(0)
	}
	w.align(4)

	for i, ps := range s.Sets {
		w.put16(offAt+2*i, uint16(w.pos()-sepd))
		prms := w.chunk("prms")
		w.u32(1)
		w.u16(uint16(ps.Skinning))
		w.u16(uint16(len(ps.BoneTable)))
		w.u32(24)
		primAt := w.pos()
		w.u32(0)
		for _, b := range ps.BoneTable {
			w.u16(uint16(b))
		}
		w.align(4)
		w.put32(primAt, uint32(w.pos()-prms))

		it := ps.IndexType
		if it == 0 {
			it = binreader.UShort
		}
		faces.align(it.Size())
		prm := w.chunk("prm ")
		w.u32(1)
		w.u32(0)
		w.u32(uint32(it))
		w.u16(uint16(len(ps.Indices)))
		w.u16(uint16(len(faces.b) / it.Size()))
		for _, i := range ps.Indices {
			faces.value(it, float64(i))
		}
		w.end(prm)
		w.end(prms)
	}
	w.end(sepd)
}
