package raster

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// LightConfig holds precomputed lighting parameters.
type LightConfig struct {
	LightDir mgl32.Vec3
	RimDir   mgl32.Vec3
	HalfMain mgl32.Vec3 // half-vector for Blinn-Phong
	Ambient  float64
	Hemi     float64
	Direct   float64
	Rim      float64
	SpecInt  float64
	SpecPow  float64
	Exposure float64
	InvGamma float64
}

// DefaultLightConfig is a key light from the upper right, a cool rim from
// behind and a soft hemisphere fill.
func DefaultLightConfig() LightConfig {
	lightDir := mgl32.Vec3{180, 260, 140}.Normalize()
	viewDir := mgl32.Vec3{0, -110, -400}.Normalize()
	return LightConfig{
		LightDir: lightDir,
		RimDir:   mgl32.Vec3{-160, 130, -210}.Normalize(),
		HalfMain: lightDir.Sub(viewDir).Normalize(),
		Ambient:  0.55,
		Hemi:     0.50,
		Direct:   1.50,
		Rim:      0.60,
		SpecInt:  0.45,
		SpecPow:  12.0,
		Exposure: 1.05,
		InvGamma: 1.0 / 2.2,
	}
}

// Shade returns the lighting scalar for a unit face normal. Faces are lit
// from both sides.
func (lc *LightConfig) Shade(n mgl32.Vec3) float64 {
	ndlMain := math.Abs(float64(n.Dot(lc.LightDir)))
	ndlRim := math.Abs(float64(n.Dot(lc.RimDir)))
	hemi := (1.0-math.Abs(float64(n[1])))*0.5 + 0.5
	ndh := max(float64(n.Dot(lc.HalfMain)), 0)
	spec := math.Pow(ndh, lc.SpecPow) * lc.SpecInt
	return lc.Ambient + hemi*lc.Hemi + ndlMain*lc.Direct + ndlRim*lc.Rim + spec
}

// Tone lights an sRGB channel value and maps it back to sRGB.
func (lc *LightConfig) Tone(c uint8, shade float64) uint8 {
	lin := srgbToLinear[c] * shade * lc.Exposure
	return clamp255(math.Pow(acesTonemap(lin), lc.InvGamma) * 255)
}

var srgbToLinear [256]float64

func init() {
	for i := 0; i < 256; i++ {
		srgbToLinear[i] = math.Pow(float64(i)/255.0, 2.2)
	}
}

// acesTonemap is the ACES filmic curve fit.
func acesTonemap(x float64) float64 {
	return (x * (2.51*x + 0.03)) / (x*(2.43*x+0.59) + 0.14)
}

func clamp255(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
