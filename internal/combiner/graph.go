// Package combiner turns a material's texture combiner stages into an
// expression graph that hosts can translate or evaluate.
package combiner

import (
	"fmt"

	"ctr-asset-decoder/internal/cmb"
)

// Value is an RGBA quadruple in 0..1 (not clamped).
type Value [4]float32

// Node is one of *Input, *Operand, *Combine or *Scale.
type Node interface {
	node()
}

// InputKind names a leaf of the graph.
type InputKind int

const (
	TextureInput InputKind = iota
	VertexColorInput
	ConstantInput
	BufferInput
	FragmentPrimaryInput
	FragmentSecondaryInput
)

var inputNames = [...]string{"Texture", "VertexColor", "Constant", "Buffer", "FragmentPrimary", "FragmentSecondary"}

func (k InputKind) String() string {
	if int(k) < len(inputNames) {
		return inputNames[k]
	}
	return fmt.Sprintf("InputKind(%d)", int(k))
}

// Input is a leaf. Texture inputs carry their unit, the bound texture id
// (-1 when the unit has no mapper) and the UV channel of the unit's
// coordinate set. Constant, buffer and fragment inputs carry their value.
type Input struct {
	Kind      InputKind
	Unit      int
	TextureID int
	UVChannel int
	Wrap      [2]cmb.WrapMode
	Index     int // constant color slot
	Value     Value
}

// Operand selects part of a source. RGB supplies the color components and
// A the alpha; they are the same node for every source but a previous stage,
// whose color and alpha come from separate pipelines.
type Operand struct {
	Op  cmb.Operand
	RGB Node
	A   Node
}

// Combine applies a combine mode to its arguments, len(Args) == Mode.Arity().
type Combine struct {
	Mode cmb.CombineMode
	Args []Node
}

// Scale multiplies its argument by 2 or 4.
type Scale struct {
	Factor float32
	Arg    Node
}

func (*Input) node()   {}
func (*Operand) node() {}
func (*Combine) node() {}
func (*Scale) node()   {}

// Stage is the output of one combiner stage.
type Stage struct {
	Color Node
	Alpha Node
}

// Graph is a resolved material. Color and Alpha are the last stage's outputs,
// or the buffer color for a material without stages.
type Graph struct {
	Color  Node
	Alpha  Node
	Stages []Stage
	Buffer *Input
}

// pair is an RGBA source split into its color and alpha producers.
type pair struct{ rgb, a Node }

type fold struct {
	previous       pair
	previousBuffer pair
}

type builder struct {
	mat       *cmb.Material
	textures  [4]*Input
	vertex    *Input
	constants [6]*Input
	diffuse   *Input
	secondary *Input
}

// Build folds the stages of mat into a graph. Both running values start as
// the material's buffer color; after each stage the previous output becomes
// the previous buffer.
func Build(mat *cmb.Material) (*Graph, error) {
	b := &builder{mat: mat}
	buffer := &Input{Kind: BufferInput, Value: colorValue(mat.Buffer)}
	g := &Graph{Buffer: buffer}
	st := fold{previous: pair{buffer, buffer}, previousBuffer: pair{buffer, buffer}}

	for i, s := range mat.Stages {
		color, err := b.channel(s, s.Color, st)
		if err != nil {
			return nil, fmt.Errorf("combiner: stage %d color: %w", i, err)
		}
		alpha, err := b.channel(s, s.Alpha, st)
		if err != nil {
			return nil, fmt.Errorf("combiner: stage %d alpha: %w", i, err)
		}
		g.Stages = append(g.Stages, Stage{Color: color, Alpha: alpha})
		st = fold{previous: pair{color, alpha}, previousBuffer: st.previous}
	}
	g.Color, g.Alpha = st.previous.rgb, st.previous.a
	return g, nil
}

func (b *builder) channel(s cmb.Combiner, ch cmb.CombinerChannel, st fold) (Node, error) {
	n := ch.Mode.Arity()
	args := make([]Node, n)
	for k := 0; k < n; k++ {
		src, err := b.source(s, ch.Sources[k], st)
		if err != nil {
			return nil, err
		}
		args[k] = &Operand{Op: ch.Operands[k], RGB: src.rgb, A: src.a}
	}
	var out Node = &Combine{Mode: ch.Mode, Args: args}
	switch ch.Scale {
	case 1:
	case 2, 4:
		out = &Scale{Factor: float32(ch.Scale), Arg: out}
	default:
		return nil, fmt.Errorf("scale %d: %w", ch.Scale, cmb.ErrCorruptModel)
	}
	return out, nil
}

func (b *builder) source(s cmb.Combiner, src cmb.Source, st fold) (pair, error) {
	var in *Input
	switch src {
	case cmb.Previous:
		return st.previous, nil
	case cmb.PreviousBuffer:
		return st.previousBuffer, nil
	case cmb.Texture0, cmb.Texture1, cmb.Texture2, cmb.Texture3:
		unit, _ := src.TextureUnit()
		in = b.texture(unit)
	case cmb.PrimaryColor:
		if b.vertex == nil {
			b.vertex = &Input{Kind: VertexColorInput}
		}
		in = b.vertex
	case cmb.Constant:
		k := s.ConstantIndex
		if k < 0 || k >= len(b.constants) {
			return pair{}, fmt.Errorf("constant slot %d: %w", k, cmb.ErrCorruptModel)
		}
		if b.constants[k] == nil {
			b.constants[k] = &Input{Kind: ConstantInput, Index: k, Value: colorValue(b.mat.Constants[k])}
		}
		in = b.constants[k]
	case cmb.FragmentPrimaryColor:
		if b.diffuse == nil {
			b.diffuse = &Input{Kind: FragmentPrimaryInput, Value: colorValue(b.mat.Diffuse)}
		}
		in = b.diffuse
	case cmb.FragmentSecondaryColor:
		if b.secondary == nil {
			b.secondary = &Input{Kind: FragmentSecondaryInput, Value: Value{0, 0, 0, 1}}
		}
		in = b.secondary
	default:
		return pair{}, fmt.Errorf("source %s: %w", src, cmb.ErrCorruptModel)
	}
	return pair{in, in}, nil
}

func (b *builder) texture(unit int) *Input {
	if b.textures[unit] != nil {
		return b.textures[unit]
	}
	in := &Input{Kind: TextureInput, Unit: unit, TextureID: -1}
	if unit < len(b.mat.Mappers) {
		tm := b.mat.Mappers[unit]
		in.TextureID = tm.TextureID
		in.Wrap = [2]cmb.WrapMode{tm.WrapS, tm.WrapT}
	}
	if unit < len(b.mat.Coords) {
		in.UVChannel = b.mat.Coords[unit].UVChannel
	}
	b.textures[unit] = in
	return in
}

func colorValue(c cmb.Color) Value {
	return Value(c.Float())
}
