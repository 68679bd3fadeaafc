// Package viewmatrix places previews on screen: a fixed three-quarter camera
// and an orthographic fit of view-space bounds into a square frame.
package viewmatrix

import (
	"github.com/go-gl/mathgl/mgl32"

	"ctr-asset-decoder/internal/mathutil"
)

// Preview is the three-quarter camera: yaw -35°, then pitch 25°.
var Preview = mgl32.HomogRotate3DX(mgl32.DegToRad(25)).Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(-35)))

// Projection maps view-space points to pixels. Y grows downward.
type Projection struct {
	Center [3]float32
	Scale  float64
	Half   float64
}

// Fit centers b in a size×size frame, leaving margin pixels on every side.
// ok is false for empty bounds.
func Fit(b mathutil.Bounds, size, margin int) (p Projection, ok bool) {
	if b.Empty {
		return p, false
	}
	span := max(float64(b.Max[0]-b.Min[0]), float64(b.Max[1]-b.Min[1]), 0.001)
	inner := max(size-2*margin, 1)
	return Projection{
		Center: b.Center(),
		Scale:  float64(inner) / span,
		Half:   float64(size) / 2,
	}, true
}

// Project returns the screen position of a view-space point.
func (p Projection) Project(v [3]float32) (x, y float64) {
	x = p.Half + float64(v[0]-p.Center[0])*p.Scale
	y = p.Half - float64(v[1]-p.Center[1])*p.Scale
	return x, y
}
