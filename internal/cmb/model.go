// Package cmb decodes CMB model containers: skeleton, textures, materials,
// vertex attribute streams, shapes and meshes.
package cmb

import (
	"errors"

	"ctr-asset-decoder/internal/binreader"
	"ctr-asset-decoder/internal/ctrtex"
)

// ErrCorruptModel wraps every structural failure of a model container.
var ErrCorruptModel = errors.New("corrupt model")

const Magic = "cmb "

// Model is a fully parsed CMB file. Everything is owned by the Model; slices
// of the input alias the buffer passed to Parse.
type Model struct {
	Name    string
	Version uint32
	Size    uint32

	Bones     []Bone
	Textures  []ctrtex.Texture
	Materials []Material
	Shapes    []Shape
	Meshes    []Mesh

	// EmbeddedTextures is false when the textures live in a CTXB next to
	// the model and only their records are stored here.
	EmbeddedTextures bool

	VertexData   []byte // the vatr chunk; slice starts are relative to it
	VertexSlices [NumChannels]Slice
	MaxIndex     uint32
	OpaqueMeshes int
	MeshIDCount  int
}

// Bone is one skeleton entry. Parent is -1 for roots and always below ID.
type Bone struct {
	ID          int
	Parent      int
	Flags       uint16 // upper bits of the id field
	Scale       [3]float32
	Rotation    [3]float32 // Euler radians
	Translation [3]float32
}

// Color is an 8-bit RGBA color.
type Color [4]uint8

// Float returns c scaled to 0..1.
func (c Color) Float() [4]float32 {
	return [4]float32{float32(c[0]) / 255, float32(c[1]) / 255, float32(c[2]) / 255, float32(c[3]) / 255}
}

type TextureMapper struct {
	TextureID  int // -1 when unbound
	MinFilter  uint16
	MagFilter  uint16
	WrapS      WrapMode
	WrapT      WrapMode
	MinLODBias float32
	LODBias    float32
	Border     Color
}

type TextureCoord struct {
	MatrixMode      uint8
	ReferenceCamera uint8
	MappingMethod   uint8
	UVChannel       int
	Scale           [2]float32
	Rotation        float32
	Translation     [2]float32
}

// CombinerChannel is the color or alpha half of a combiner stage.
type CombinerChannel struct {
	Mode     CombineMode
	Scale    int
	Sources  [3]Source
	Operands [3]Operand
}

type Combiner struct {
	Color            CombinerChannel
	Alpha            CombinerChannel
	BufferInputColor uint16
	BufferInputAlpha uint16
	ConstantIndex    int
}

type Material struct {
	FragmentLighting     bool
	VertexLighting       bool
	HemiLighting         bool
	HemiOcclusion        bool
	CullMode             uint8
	PolygonOffsetEnabled bool
	PolygonOffset        int16

	Mappers []TextureMapper // used mappers only
	Coords  []TextureCoord  // used coordinate sets only

	Emission  Color
	Ambient   Color
	Diffuse   Color
	Specular0 Color
	Specular1 Color
	Constants [6]Color
	Buffer    Color

	Stages []Combiner

	AlphaTest  bool
	AlphaRef   uint8
	AlphaFunc  uint16
	DepthTest  bool
	DepthWrite bool
	DepthFunc  uint16
	BlendMode  uint8
}

// Channel names a vertex attribute stream.
type Channel int

const (
	Position Channel = iota
	Normal
	Tangent
	ColorChannel
	UV0
	UV1
	UV2
	BoneIndices
	BoneWeights
	NumChannels
)

var channelNames = [NumChannels]string{
	"position", "normal", "tangent", "color", "uv0", "uv1", "uv2", "boneIndices", "boneWeights",
}

func (c Channel) String() string {
	if c >= 0 && c < NumChannels {
		return channelNames[c]
	}
	return "channel?"
}

// Slice is a vatr entry: a byte range inside VertexData.
type Slice struct {
	Size  uint32
	Start uint32
}

// Attribute is a shape's view of one channel.
type Attribute struct {
	Start    uint32
	Scale    float32
	Type     binreader.DataType
	Mode     AttributeMode
	Constant [4]float32
}

type Shape struct {
	Flags          uint16
	Center         [3]float32
	PositionOffset [3]float32
	Min, Max       [3]float32 // zero before version 11

	Attributes     [NumChannels]Attribute
	Present        [NumChannels]bool
	BoneDimensions int
	ConstantFlags  uint16

	PrimitiveSets []PrimitiveSet
}

// Has reports whether the shape carries channel c.
func (s *Shape) Has(c Channel) bool { return s.Present[c] }

// Components is the number of samples per vertex in channel c.
func (s *Shape) Components(c Channel) int {
	switch c {
	case Position, Normal, Tangent:
		return 3
	case ColorChannel:
		return 4
	case UV0, UV1, UV2:
		return 2
	}
	return max(s.BoneDimensions, 1)
}

// MaxConstantVertices caps shapes whose geometric channels are all constant,
// where the vertex data puts no bound on the vertex count.
const MaxConstantVertices = 1 << 16

// VertexCapacity is the number of vertices the shape's streamed geometric
// channels can supply, each bounded by its vatr slice. A slice with no
// size is bounded by the end of the vertex data.
func (m *Model) VertexCapacity(s *Shape) int {
	capacity := -1
	for c := Position; c < BoneIndices; c++ {
		a := &s.Attributes[c]
		if !s.Has(c) || a.Mode == AttributeConstant {
			continue
		}
		sl := m.VertexSlices[c]
		end := len(m.VertexData)
		if sl.Size > 0 {
			end = min(end, int(sl.Start)+int(sl.Size))
		}
		n := 0
		stride := s.Components(c) * a.Type.Size()
		base := int(sl.Start) + int(a.Start)
		if stride > 0 && base < end {
			n = (end - base) / stride
		}
		if capacity < 0 || n < capacity {
			capacity = n
		}
	}
	if capacity < 0 {
		return MaxConstantVertices
	}
	return capacity
}

type PrimitiveSet struct {
	Skinning   SkinningMode
	BoneTable  []int
	Primitives []Primitive
}

// Indices concatenates the index lists of every primitive.
func (p *PrimitiveSet) Indices() []uint32 {
	if len(p.Primitives) == 1 {
		return p.Primitives[0].Indices
	}
	var out []uint32
	for _, pr := range p.Primitives {
		out = append(out, pr.Indices...)
	}
	return out
}

type Primitive struct {
	Visible   bool
	Mode      uint32
	IndexType binreader.DataType
	Indices   []uint32
}

// Mesh binds a shape to a material. ID groups meshes for visibility.
type Mesh struct {
	ShapeIndex    int
	MaterialIndex int
	ID            int
}

// TextureByName returns the index of the first texture called name.
func (m *Model) TextureByName(name string) (int, bool) {
	for i := range m.Textures {
		if m.Textures[i].Name == name {
			return i, true
		}
	}
	return -1, false
}
