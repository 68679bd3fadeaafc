// Package mathutil holds the small amount of transform math shared by the
// skeleton, vertex assembler, scene table and preview renderer.
package mathutil

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// EulerMatrix returns Rz · Ry · Rx for angles in radians, so X is applied first.
func EulerMatrix(r [3]float32) mgl32.Mat4 {
	return mgl32.HomogRotate3DZ(r[2]).
		Mul4(mgl32.HomogRotate3DY(r[1])).
		Mul4(mgl32.HomogRotate3DX(r[0]))
}

// EulerQuat is the rotation of EulerMatrix as a unit quaternion.
func EulerQuat(r [3]float32) mgl32.Quat {
	return mgl32.Mat4ToQuat(EulerMatrix(r)).Normalize()
}

// Compose builds T(t) · Rz · Ry · Rx.
func Compose(t, r [3]float32) mgl32.Mat4 {
	return mgl32.Translate3D(t[0], t[1], t[2]).Mul4(EulerMatrix(r))
}

// ComposeScaled builds T(t) · Rz · Ry · Rx · S(s).
func ComposeScaled(t, r, s [3]float32) mgl32.Mat4 {
	return Compose(t, r).Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
}

// DegreesToRadians converts each component.
func DegreesToRadians(d [3]float32) [3]float32 {
	return [3]float32{mgl32.DegToRad(d[0]), mgl32.DegToRad(d[1]), mgl32.DegToRad(d[2])}
}

// TransformPoint applies m to p with w = 1.
func TransformPoint(m mgl32.Mat4, p [3]float32) [3]float32 {
	v := m.Mul4x1(mgl32.Vec4{p[0], p[1], p[2], 1})
	return [3]float32{v[0], v[1], v[2]}
}

// NormalMatrix is the inverse-transpose of the upper 3×3 of m. A singular
// matrix yields the plain upper 3×3.
func NormalMatrix(m mgl32.Mat4) mgl32.Mat3 {
	u := m.Mat3()
	if math.Abs(float64(u.Det())) < 1e-12 {
		return u
	}
	return u.Inv().Transpose()
}

// TransformNormal applies a normal matrix and renormalizes. Zero vectors stay zero.
func TransformNormal(nm mgl32.Mat3, n [3]float32) [3]float32 {
	v := nm.Mul3x1(mgl32.Vec3{n[0], n[1], n[2]})
	l := v.Len()
	if l < 1e-12 {
		return [3]float32{}
	}
	v = v.Mul(1 / l)
	return [3]float32{v[0], v[1], v[2]}
}

// Bounds tracks an axis-aligned box.
type Bounds struct {
	Min, Max [3]float32
	Empty    bool
}

// NewBounds returns an empty box.
func NewBounds() Bounds {
	inf := float32(math.Inf(1))
	return Bounds{
		Min:   [3]float32{inf, inf, inf},
		Max:   [3]float32{-inf, -inf, -inf},
		Empty: true,
	}
}

// Add grows b to contain p.
func (b *Bounds) Add(p [3]float32) {
	for k := 0; k < 3; k++ {
		b.Min[k] = min(b.Min[k], p[k])
		b.Max[k] = max(b.Max[k], p[k])
	}
	b.Empty = false
}

// Union grows b to contain o.
func (b *Bounds) Union(o Bounds) {
	if o.Empty {
		return
	}
	b.Add(o.Min)
	b.Add(o.Max)
}

// Center is the midpoint of the box; the origin when empty.
func (b Bounds) Center() [3]float32 {
	if b.Empty {
		return [3]float32{}
	}
	return [3]float32{(b.Min[0] + b.Max[0]) / 2, (b.Min[1] + b.Max[1]) / 2, (b.Min[2] + b.Max[2]) / 2}
}

// Extent is the largest side length.
func (b Bounds) Extent() float32 {
	if b.Empty {
		return 0
	}
	return max(b.Max[0]-b.Min[0], b.Max[1]-b.Min[1], b.Max[2]-b.Min[2])
}
