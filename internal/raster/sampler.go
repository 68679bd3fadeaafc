package raster

import (
	"image"
	"math"

	"ctr-asset-decoder/internal/cmb"
)

// wrap folds a texture coordinate into 0..1 by the mapper's mode. Clamp to
// border is treated as clamp to edge.
func wrap(t float64, mode cmb.WrapMode) float64 {
	switch mode {
	case cmb.Repeat:
		return t - math.Floor(t)
	case cmb.Mirror:
		t = math.Mod(math.Abs(t), 2)
		if t > 1 {
			t = 2 - t
		}
		return t
	}
	return min(max(t, 0), 1)
}

// SampleTexture filters tex bilinearly at (u, v). V runs bottom to top
// while the image is stored top row first.
func SampleTexture(tex *image.NRGBA, u, v float64, ws, wt cmb.WrapMode) (r, g, b, a uint8) {
	w := tex.Rect.Dx()
	h := tex.Rect.Dy()

	fx := wrap(u, ws) * float64(w-1)
	fy := (1 - wrap(v, wt)) * float64(h-1)
	x0 := int(fx)
	y0 := int(fy)
	x1 := min(x0+1, w-1)
	y1 := min(y0+1, h-1)
	dx := fx - float64(x0)
	dy := fy - float64(y0)

	stride := tex.Stride
	pix := tex.Pix
	i00 := y0*stride + x0*4
	i10 := y0*stride + x1*4
	i01 := y1*stride + x0*4
	i11 := y1*stride + x1*4

	w00 := (1 - dx) * (1 - dy)
	w10 := dx * (1 - dy)
	w01 := (1 - dx) * dy
	w11 := dx * dy

	var out [4]uint8
	for k := 0; k < 4; k++ {
		f := float64(pix[i00+k])*w00 + float64(pix[i10+k])*w10 + float64(pix[i01+k])*w01 + float64(pix[i11+k])*w11
		out[k] = uint8(f + 0.5)
	}
	return out[0], out[1], out[2], out[3]
}
