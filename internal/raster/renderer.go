package raster

import (
	"image"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"ctr-asset-decoder/internal/cmb"
	"ctr-asset-decoder/internal/importer"
	"ctr-asset-decoder/internal/mathutil"
	"ctr-asset-decoder/internal/mesh"
	"ctr-asset-decoder/internal/texture"
	"ctr-asset-decoder/internal/viewmatrix"
)

// draw is one mesh placed in the world.
type draw struct {
	model    *importer.Model
	mesh     *mesh.Mesh
	world    mgl32.Mat4
	textures texture.Resolver
}

// Render draws every model of a, and every placed model of a scene, into a
// size×size image. The frame is rendered supersample times larger; callers
// downsample.
func Render(a *importer.Asset, size, supersample int) *image.NRGBA {
	var draws []draw
	collect(&draws, a, mgl32.Ident4())
	return render(draws, size, supersample)
}

// RenderModel draws one model with textures from textures.
func RenderModel(m *importer.Model, textures texture.Resolver, size, supersample int) *image.NRGBA {
	var draws []draw
	for _, me := range m.Meshes {
		draws = append(draws, draw{model: m, mesh: me, world: mgl32.Ident4(), textures: textures})
	}
	return render(draws, size, supersample)
}

func collect(draws *[]draw, a *importer.Asset, world mgl32.Mat4) {
	cache := texture.NewCache(a.Images)
	for _, m := range a.Models {
		for _, me := range m.Meshes {
			*draws = append(*draws, draw{model: m, mesh: me, world: world, textures: cache})
		}
	}
	for _, p := range a.Placements {
		if p.Asset != nil {
			collect(draws, p.Asset, world.Mul4(p.Transform))
		}
	}
}

func render(draws []draw, size, supersample int) *image.NRGBA {
	supersample = max(supersample, 1)
	renderSize := size * supersample
	fb := NewFrameBuffer(renderSize, renderSize)
	if len(draws) == 0 {
		return fb.Image()
	}

	// Fit the view-space bounds of everything into the frame.
	bounds := mathutil.NewBounds()
	for _, d := range draws {
		m := viewmatrix.Preview.Mul4(d.world)
		for _, p := range d.mesh.Positions {
			bounds.Add(mathutil.TransformPoint(m, p))
		}
	}
	proj, ok := viewmatrix.Fit(bounds, renderSize, 16*supersample)
	if !ok {
		return fb.Image()
	}

	lc := DefaultLightConfig()
	for _, d := range draws {
		s := surfaceFor(d)
		uvCh := 0
		if mat := material(d); mat != nil && len(mat.Coords) > 0 {
			uvCh = mat.Coords[0].UVChannel
		}
		m := viewmatrix.Preview.Mul4(d.world)
		me := d.mesh
		verts := make([]vertex, me.VertexCount())
		for i, p := range me.Positions {
			vp := mathutil.TransformPoint(m, p)
			x, y := proj.Project(vp)
			verts[i] = vertex{
				view:  mgl32.Vec3(vp),
				x:     x,
				y:     y,
				color: [4]float32{1, 1, 1, 1},
			}
			if uvCh < len(me.UVs) && i < len(me.UVs[uvCh]) {
				verts[i].uv = me.UVs[uvCh][i]
			}
			if i < len(me.Colors) {
				verts[i].color = me.Colors[i]
			}
		}
		for _, t := range me.Triangles {
			rasterizeTriangle(fb, [3]vertex{verts[t[0]], verts[t[1]], verts[t[2]]}, &s, &lc)
		}
	}
	return fb.Image()
}

func material(d draw) *cmb.Material {
	i := d.mesh.MaterialIndex
	if i < 0 || i >= len(d.model.Source.Materials) {
		return nil
	}
	return &d.model.Source.Materials[i]
}

// surfaceFor samples texture unit 0 when it is bound and decoded; otherwise
// the mesh is flat shaded in its diffuse color.
func surfaceFor(d draw) surface {
	s := surface{base: [4]uint8{160, 160, 170, 255}, colored: len(d.mesh.Colors) > 0}
	mat := material(d)
	if mat == nil {
		return s
	}
	s.base = mat.Diffuse
	if mat.AlphaTest {
		s.alphaRef = mat.AlphaRef
	}
	if len(mat.Mappers) == 0 || d.textures == nil {
		return s
	}
	tm := mat.Mappers[0]
	if tm.TextureID < 0 || tm.TextureID >= len(d.model.Images) {
		return s
	}
	if tex := d.textures.Resolve(d.model.Images[tm.TextureID]); tex != nil && tex.Rect.Dx() > 0 {
		s.tex = tex
		s.wrap = [2]cmb.WrapMode{tm.WrapS, tm.WrapT}
	}
	return s
}

// Coverage is the fraction of pixels with any alpha.
func Coverage(img *image.NRGBA) float64 {
	n := 0
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] > 0 {
			n++
		}
	}
	return float64(n) / math.Max(float64(len(img.Pix)/4), 1)
}
