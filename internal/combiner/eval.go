package combiner

import (
	"fmt"
	"strings"

	"ctr-asset-decoder/internal/cmb"
)

// Env supplies the per-fragment inputs of a graph.
type Env struct {
	// Texture samples a texture input. A nil func samples white.
	Texture     func(in *Input) Value
	VertexColor Value
}

var white = Value{1, 1, 1, 1}

// Eval computes a node. Color nodes are meaningful in their first three
// components and alpha nodes in the fourth. Every node is computed once per
// call, however many later stages read it.
func Eval(n Node, env *Env) Value {
	e := evaluator{env: env, memo: make(map[Node]Value)}
	return e.eval(n)
}

type evaluator struct {
	env  *Env
	memo map[Node]Value
}

func (e *evaluator) eval(n Node) Value {
	if v, ok := e.memo[n]; ok {
		return v
	}
	var v Value
	switch n := n.(type) {
	case *Input:
		v = e.input(n)
	case *Operand:
		v = e.operand(n)
	case *Combine:
		v = e.combine(n)
	case *Scale:
		v = e.eval(n.Arg)
		for k := range v {
			v[k] *= n.Factor
		}
	default:
		panic(fmt.Sprintf("combiner: unknown node %T", n))
	}
	e.memo[n] = v
	return v
}

func (e *evaluator) input(n *Input) Value {
	switch n.Kind {
	case TextureInput:
		if e.env.Texture == nil {
			return white
		}
		return e.env.Texture(n)
	case VertexColorInput:
		return e.env.VertexColor
	}
	return n.Value
}

func (e *evaluator) operand(o *Operand) Value {
	var v Value
	switch o.Op.Base() {
	case cmb.OpColor:
		c, a := e.eval(o.RGB), e.eval(o.A)
		v = Value{c[0], c[1], c[2], a[3]}
	case cmb.OpAlpha:
		a := e.eval(o.A)[3]
		v = Value{a, a, a, a}
	case cmb.OpRed, cmb.OpGreen, cmb.OpBlue:
		c := e.eval(o.RGB)[o.Op.Base()-cmb.OpRed]
		v = Value{c, c, c, c}
	}
	if o.Op.Inverted() {
		for k := range v {
			v[k] = 1 - v[k]
		}
	}
	return v
}

func (e *evaluator) combine(c *Combine) Value {
	var a [3]Value
	for k, arg := range c.Args {
		a[k] = e.eval(arg)
	}
	var v Value
	switch c.Mode {
	case cmb.DotProduct3Rgb, cmb.DotProduct3Rgba:
		d := a[0][0]*a[1][0] + a[0][1]*a[1][1] + a[0][2]*a[1][2]
		return Value{d, d, d, d}
	}
	for k := range v {
		x, y, z := a[0][k], a[1][k], a[2][k]
		switch c.Mode {
		case cmb.Replace:
			v[k] = x
		case cmb.Modulate:
			v[k] = x * y
		case cmb.Add, cmb.AddSigned:
			v[k] = x + y
		case cmb.Subtract:
			v[k] = x - y
		case cmb.Interpolate:
			v[k] = x*z + y*(1-z)
		case cmb.MultAdd:
			v[k] = x*y + z
		case cmb.AddMult:
			v[k] = (x + y) * z
		}
	}
	return v
}

// EvalRGBA evaluates the final color and alpha of g into one value.
func (g *Graph) EvalRGBA(env *Env) Value {
	e := evaluator{env: env, memo: make(map[Node]Value)}
	c, a := e.eval(g.Color), e.eval(g.Alpha)
	return Value{c[0], c[1], c[2], a[3]}
}

// Usage lists the inputs a graph's outputs depend on.
type Usage struct {
	Textures          [4]bool
	VertexColor       bool
	Constants         [6]bool
	Buffer            bool
	FragmentPrimary   bool
	FragmentSecondary bool
}

// Uses walks the graph from Color and Alpha. Inputs only feeding stages
// whose output is later discarded are not reported.
func (g *Graph) Uses() Usage {
	var u Usage
	seen := make(map[Node]bool)
	var walk func(Node)
	walk = func(n Node) {
		if n == nil || seen[n] {
			return
		}
		seen[n] = true
		switch n := n.(type) {
		case *Input:
			switch n.Kind {
			case TextureInput:
				u.Textures[n.Unit] = true
			case VertexColorInput:
				u.VertexColor = true
			case ConstantInput:
				u.Constants[n.Index] = true
			case BufferInput:
				u.Buffer = true
			case FragmentPrimaryInput:
				u.FragmentPrimary = true
			case FragmentSecondaryInput:
				u.FragmentSecondary = true
			}
		case *Operand:
			switch n.Op.Base() {
			case cmb.OpColor:
				walk(n.RGB)
				walk(n.A)
			case cmb.OpAlpha:
				walk(n.A)
			default:
				walk(n.RGB)
			}
		case *Combine:
			for _, a := range n.Args {
				walk(a)
			}
		case *Scale:
			walk(n.Arg)
		}
	}
	walk(g.Color)
	walk(g.Alpha)
	return u
}

// String renders n as a nested expression.
func String(n Node) string {
	var sb strings.Builder
	write(&sb, n)
	return sb.String()
}

func (g *Graph) String() string {
	return "color=" + String(g.Color) + " alpha=" + String(g.Alpha)
}

func write(sb *strings.Builder, n Node) {
	switch n := n.(type) {
	case *Input:
		switch n.Kind {
		case TextureInput:
			fmt.Fprintf(sb, "tex%d", n.Unit)
		case ConstantInput:
			fmt.Fprintf(sb, "const%d", n.Index)
		default:
			sb.WriteString(n.Kind.String())
		}
	case *Operand:
		if n.RGB == n.A {
			write(sb, n.RGB)
		} else {
			sb.WriteString("(")
			write(sb, n.RGB)
			sb.WriteString(", ")
			write(sb, n.A)
			sb.WriteString(")")
		}
		sb.WriteString(".")
		sb.WriteString(n.Op.String())
	case *Combine:
		sb.WriteString(n.Mode.String())
		sb.WriteString("(")
		for k, a := range n.Args {
			if k > 0 {
				sb.WriteString(", ")
			}
			write(sb, a)
		}
		sb.WriteString(")")
	case *Scale:
		fmt.Fprintf(sb, "%g*", n.Factor)
		write(sb, n.Arg)
	}
}
