package combiner

import (
	"strings"
	"testing"

	"ctr-asset-decoder/internal/cmb"
	"ctr-asset-decoder/internal/cmb/cmbtest"
)

func build(t *testing.T, mat cmb.Material) *Graph {
	t.Helper()
	g, err := Build(&mat)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func TestReplacePreviousYieldsBuffer(t *testing.T) {
	mat := cmbtest.Material()
	mat.Buffer = cmb.Color{51, 102, 153, 204}
	mat.Stages = []cmb.Combiner{cmbtest.Stage(cmb.Replace, cmb.Previous)}
	g := build(t, mat)
	if got, want := g.EvalRGBA(&Env{}), Value(mat.Buffer.Float()); got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	if u := g.Uses(); !u.Buffer || u.FragmentPrimary {
		t.Fatalf("uses = %+v", u)
	}
}

func TestNoStagesIsBuffer(t *testing.T) {
	mat := cmbtest.Material()
	mat.Stages = nil
	g := build(t, mat)
	if g.Color != g.Buffer || g.Alpha != g.Buffer {
		t.Fatal("empty stage list does not resolve to the buffer color")
	}
}

func TestInterpolateEndpoints(t *testing.T) {
	for _, fac := range []uint8{0, 255} {
		mat := cmbtest.Material()
		mat.Diffuse = cmb.Color{255, 128, 0, 255}
		mat.Constants[2] = cmb.Color{fac, fac, fac, fac}
		st := cmbtest.Stage(cmb.Interpolate, cmb.FragmentPrimaryColor, cmb.FragmentSecondaryColor, cmb.Constant)
		st.ConstantIndex = 2
		mat.Stages = []cmb.Combiner{st}
		got := build(t, mat).EvalRGBA(&Env{})

		want := Value{0, 0, 0, 1}
		if fac == 255 {
			want = Value(mat.Diffuse.Float())
		}
		if got != want {
			t.Errorf("fac %d: got %v, want %v", fac, got, want)
		}
	}
}

func TestPreviousBufferLagsTwoStages(t *testing.T) {
	mat := cmbtest.Material()
	mat.Diffuse = cmb.Color{255, 0, 0, 255}
	mat.Constants[0] = cmb.Color{0, 255, 0, 255}
	mat.Stages = []cmb.Combiner{
		cmbtest.Stage(cmb.Replace, cmb.FragmentPrimaryColor),
		cmbtest.Stage(cmb.Replace, cmb.Constant),
		cmbtest.Stage(cmb.Replace, cmb.PreviousBuffer),
	}
	g := build(t, mat)
	if got := g.EvalRGBA(&Env{}); got != (Value{1, 0, 0, 1}) {
		t.Fatalf("got %v", got)
	}
	if len(g.Stages) != 3 {
		t.Fatalf("stages = %d", len(g.Stages))
	}
	if got := Eval(g.Stages[1].Color, &Env{}); got[1] != 1 {
		t.Fatalf("stage 1 = %v", got)
	}
	u := g.Uses()
	if !u.FragmentPrimary || u.Constants[0] {
		t.Fatalf("uses = %+v", u)
	}
}

func TestModulateTextureScaled(t *testing.T) {
	mat := cmbtest.Material()
	mat.Mappers = []cmb.TextureMapper{{TextureID: 3, WrapS: cmb.Mirror, WrapT: cmb.Repeat}}
	mat.Coords = []cmb.TextureCoord{{UVChannel: 1}}
	st := cmbtest.Stage(cmb.Modulate, cmb.Texture0, cmb.PrimaryColor)
	st.Color.Scale = 2
	mat.Stages = []cmb.Combiner{st}
	g := build(t, mat)

	var seen *Input
	env := &Env{
		Texture: func(in *Input) Value {
			seen = in
			return Value{0.25, 0.5, 0.125, 1}
		},
		VertexColor: Value{1, 1, 0.5, 0.5},
	}
	got := g.EvalRGBA(env)
	if got != (Value{0.5, 1, 0.125, 0.5}) {
		t.Fatalf("got %v", got)
	}
	if seen == nil || seen.TextureID != 3 || seen.UVChannel != 1 || seen.Wrap[0] != cmb.Mirror {
		t.Fatalf("texture input = %+v", seen)
	}
	u := g.Uses()
	if !u.Textures[0] || !u.VertexColor || u.Textures[1] || u.Buffer {
		t.Fatalf("uses = %+v", u)
	}
	if s := String(g.Color); !strings.HasPrefix(s, "2*Modulate(tex0.Color") {
		t.Fatalf("String = %q", s)
	}
}

func TestUnboundTextureUnit(t *testing.T) {
	mat := cmbtest.Material()
	mat.Stages = []cmb.Combiner{cmbtest.Stage(cmb.Replace, cmb.Texture2)}
	g := build(t, mat)
	in := g.Color.(*Combine).Args[0].(*Operand).RGB.(*Input)
	if in.Kind != TextureInput || in.Unit != 2 || in.TextureID != -1 {
		t.Fatalf("input = %+v", in)
	}
	if got := g.EvalRGBA(&Env{}); got != white {
		t.Fatalf("got %v", got)
	}
}

func TestOperands(t *testing.T) {
	mat := cmbtest.Material()
	mat.Diffuse = cmb.Color{255, 51, 102, 0}
	st := cmbtest.Stage(cmb.Replace, cmb.FragmentPrimaryColor)
	cases := []struct {
		op   cmb.Operand
		want Value
	}{
		{cmb.OpAlpha, Value{0, 0, 0, 0}},
		{cmb.OpOneMinusAlpha, Value{1, 1, 1, 1}},
		{cmb.OpRed, Value{1, 1, 1, 1}},
		{cmb.OpOneMinusRed, Value{0, 0, 0, 0}},
		{cmb.OpGreen, Value{0.2, 0.2, 0.2, 0.2}},
	}
	for _, c := range cases {
		st.Color.Operands[0] = c.op
		mat.Stages = []cmb.Combiner{st}
		got := Eval(build(t, mat).Color, &Env{})
		for k := 0; k < 3; k++ {
			if d := got[k] - c.want[k]; d > 1e-6 || d < -1e-6 {
				t.Errorf("%s: got %v, want %v", c.op, got, c.want)
				break
			}
		}
	}
}

func TestDotProductBroadcast(t *testing.T) {
	mat := cmbtest.Material()
	mat.Diffuse = cmb.Color{255, 255, 0, 255}
	mat.Constants[0] = cmb.Color{255, 0, 255, 0}
	mat.Stages = []cmb.Combiner{cmbtest.Stage(cmb.DotProduct3Rgb, cmb.FragmentPrimaryColor, cmb.Constant)}
	got := Eval(build(t, mat).Color, &Env{})
	if got != (Value{1, 1, 1, 1}) {
		t.Fatalf("got %v", got)
	}
}

func TestBuildRejectsScale(t *testing.T) {
	mat := cmbtest.Material()
	mat.Stages[0].Alpha.Scale = 3
	if _, err := Build(&mat); err == nil {
		t.Fatal("scale 3 accepted")
	}
}

func TestEvalSharesStageOutputs(t *testing.T) {
	mat := cmbtest.Material()
	mat.Mappers = []cmb.TextureMapper{{TextureID: 0, WrapS: cmb.Repeat, WrapT: cmb.Repeat}}
	mat.Stages = []cmb.Combiner{cmbtest.Stage(cmb.Replace, cmb.Texture0)}
	for i := 0; i < 5; i++ {
		mat.Stages = append(mat.Stages, cmbtest.Stage(cmb.Add, cmb.Previous, cmb.Previous))
	}
	g := build(t, mat)

	samples := 0
	env := &Env{Texture: func(*Input) Value {
		samples++
		return Value{0.125, 0.25, 0.5, 0.25}
	}}
	if got := g.EvalRGBA(env); got != (Value{4, 8, 16, 8}) {
		t.Fatalf("got %v", got)
	}
	if samples != 1 {
		t.Fatalf("texture sampled %d times, want 1", samples)
	}
}
