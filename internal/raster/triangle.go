package raster

import (
	"image"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"ctr-asset-decoder/internal/cmb"
)

// vertex is a projected vertex: screen x and y, view depth, and the
// attributes interpolated across the face.
type vertex struct {
	view  mgl32.Vec3
	x, y  float64
	uv    [2]float32
	color [4]float32
}

// surface is what a mesh's material contributes to shading.
type surface struct {
	tex      *image.NRGBA
	wrap     [2]cmb.WrapMode
	base     [4]uint8
	alphaRef uint8
	colored  bool // multiply by vertex color
}

// rasterizeTriangle fills one triangle with flat lighting, z-buffering and
// ACES tone mapping. Texels below the alpha reference are discarded.
func rasterizeTriangle(fb *FrameBuffer, v [3]vertex, s *surface, lc *LightConfig) {
	n := v[1].view.Sub(v[0].view).Cross(v[2].view.Sub(v[0].view))
	if n.Len() < 1e-8 {
		return
	}
	shade := lc.Shade(n.Normalize())

	minX := max(int(math.Min(math.Min(v[0].x, v[1].x), v[2].x)), 0)
	maxX := min(int(math.Max(math.Max(v[0].x, v[1].x), v[2].x))+1, fb.Width-1)
	minY := max(int(math.Min(math.Min(v[0].y, v[1].y), v[2].y)), 0)
	maxY := min(int(math.Max(math.Max(v[0].y, v[1].y), v[2].y))+1, fb.Height-1)
	if minX > maxX || minY > maxY {
		return
	}

	x0, y0 := v[0].x, v[0].y
	x1, y1 := v[1].x, v[1].y
	x2, y2 := v[2].x, v[2].y
	det := (y1-y2)*(x0-x2) + (x2-x1)*(y0-y2)
	if det > -1e-8 && det < 1e-8 {
		return
	}
	invDet := 1.0 / det
	dy12, dx21 := y1-y2, x2-x1
	dy20, dx02 := y2-y0, x0-x2

	for sy := minY; sy <= maxY; sy++ {
		dsy := float64(sy) + 0.5 - y2
		for sx := minX; sx <= maxX; sx++ {
			dsx := float64(sx) + 0.5 - x2
			w0 := (dy12*dsx + dx21*dsy) * invDet
			w1 := (dy20*dsx + dx02*dsy) * invDet
			w2 := 1.0 - w0 - w1
			if w0 < -0.001 || w1 < -0.001 || w2 < -0.001 {
				continue
			}

			z := float32(w0)*v[0].view[2] + float32(w1)*v[1].view[2] + float32(w2)*v[2].view[2]
			zi := sy*fb.Width + sx
			if z <= fb.ZBuf[zi] {
				continue
			}

			c := s.base
			if s.tex != nil {
				u := w0*float64(v[0].uv[0]) + w1*float64(v[1].uv[0]) + w2*float64(v[2].uv[0])
				t := w0*float64(v[0].uv[1]) + w1*float64(v[1].uv[1]) + w2*float64(v[2].uv[1])
				c[0], c[1], c[2], c[3] = SampleTexture(s.tex, u, t, s.wrap[0], s.wrap[1])
			}
			if s.colored {
				for k := 0; k < 4; k++ {
					f := w0*float64(v[0].color[k]) + w1*float64(v[1].color[k]) + w2*float64(v[2].color[k])
					c[k] = clamp255(float64(c[k]) * f)
				}
			}
			if c[3] < max(s.alphaRef, 8) {
				continue
			}
			fb.ZBuf[zi] = z

			pi := zi * 4
			fb.Color[pi] = lc.Tone(c[0], shade)
			fb.Color[pi+1] = lc.Tone(c[1], shade)
			fb.Color[pi+2] = lc.Tone(c[2], shade)
			fb.Color[pi+3] = c[3]
		}
	}
}
