package motion

import (
	"math"

	"github.com/chewxy/math32"
)

// Affine is a 2x3 affine matrix stored row-major:
//
//	| A[0] A[1] A[2] |
//	| A[3] A[4] A[5] |
type Affine [6]float64

// Identity returns the identity transform.
func Identity() Affine {
	return Affine{1, 0, 0, 0, 1, 0}
}

// Compensation builds the rotation-plus-translation matrix
// (cos θ, −sin θ, dx, sin θ, cos θ, dy) for a residual delta.
//
// The warp consumes a 32-bit float matrix, so the trigonometry is done in
// float32 and every element is exactly representable in the Mat it is
// copied into.
func Compensation(d Delta) Affine {
	sin, cos := math32.Sincos(float32(d.DTheta))
	return Affine{
		float64(cos), float64(-sin), float64(float32(d.DX)),
		float64(sin), float64(cos), float64(float32(d.DY)),
	}
}

// CropTransform returns the fixed zoom about the frame center that pushes
// the warp's black borders out of view. It matches a zero-angle rotation
// matrix about (width/2, height/2), integer center, with the given scale.
func CropTransform(width, height int, scale float64) Affine {
	cx := float64(width / 2)
	cy := float64(height / 2)
	return Affine{
		scale, 0, (1 - scale) * cx,
		0, scale, (1 - scale) * cy,
	}
}

// Decompose extracts (dx, dy, dθ) from a similarity or rigid transform.
func (a Affine) Decompose() Delta {
	return Delta{
		DX:     a[2],
		DY:     a[5],
		DTheta: math.Atan2(a[3], a[0]),
	}
}

// Apply maps p through the transform.
func (a Affine) Apply(p Point) Point {
	return Point{
		X: a[0]*p.X + a[1]*p.Y + a[2],
		Y: a[3]*p.X + a[4]*p.Y + a[5],
	}
}

// Invert returns the inverse transform and whether one exists.
func (a Affine) Invert() (Affine, bool) {
	det := a[0]*a[4] - a[1]*a[3]
	if det == 0 || math.IsNaN(det) {
		return Affine{}, false
	}
	inv := 1 / det
	i0 := a[4] * inv
	i1 := -a[1] * inv
	i3 := -a[3] * inv
	i4 := a[0] * inv
	return Affine{
		i0, i1, -(i0*a[2] + i1*a[5]),
		i3, i4, -(i3*a[2] + i4*a[5]),
	}, true
}
