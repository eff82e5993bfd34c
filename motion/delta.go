// Package motion holds the pure-Go half of the stabilizer: frame-to-frame
// motion deltas, the bounded trajectory they accumulate into, the clamp that
// bounds the residual shake, and the affine transforms built from them.
//
// Nothing in this package touches image memory, so every operation is
// deterministic and testable without OpenCV.
//
//	correspondences ──► estimator ──► Delta ──► Trajectory.Push
//	                                              │
//	                              SmoothedAverage ┘
//	                                    │
//	                 Delta − average ──►Clamp ──► Compensation ──► warp
package motion

import (
	"math"

	"github.com/pkg/errors"
)

var (
	// ErrDegenerateFit is returned when the correspondences do not constrain a transform.
	ErrDegenerateFit = errors.New("degenerate motion fit")
	// ErrMismatchedPoints is returned when correspondence buffers disagree in length.
	ErrMismatchedPoints = errors.New("mismatched point buffers")
)

// Point is a sub-pixel image location.
type Point struct {
	X float64
	Y float64
}

// Delta is the rigid motion between two consecutive frames.
type Delta struct {
	// DX is the horizontal translation in pixels.
	DX float64
	// DY is the vertical translation in pixels.
	DY float64
	// DTheta is the rotation in radians.
	DTheta float64
}

// Sub returns d - o, component-wise.
func (d Delta) Sub(o Delta) Delta {
	return Delta{DX: d.DX - o.DX, DY: d.DY - o.DY, DTheta: d.DTheta - o.DTheta}
}

// Add returns d + o, component-wise.
func (d Delta) Add(o Delta) Delta {
	return Delta{DX: d.DX + o.DX, DY: d.DY + o.DY, DTheta: d.DTheta + o.DTheta}
}

// Finite reports whether no component is NaN or infinite.
func (d Delta) Finite() bool {
	for _, v := range []float64{d.DX, d.DY, d.DTheta} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Correspondence pairs the points tracked from the previous frame with their
// locations in the current frame. All three slices have the same length;
// Valid[i] reports whether Curr[i] is a trustworthy match for Prev[i].
type Correspondence struct {
	Prev  []Point
	Curr  []Point
	Valid []bool
}

// Check verifies the three buffers are aligned.
func (c Correspondence) Check() error {
	if len(c.Prev) != len(c.Curr) || len(c.Prev) != len(c.Valid) {
		return errors.Wrapf(ErrMismatchedPoints, "prev=%d curr=%d valid=%d",
			len(c.Prev), len(c.Curr), len(c.Valid))
	}
	return nil
}

// Tracked returns the number of valid pairs.
func (c Correspondence) Tracked() int {
	n := 0
	for _, ok := range c.Valid {
		if ok {
			n++
		}
	}
	return n
}

// Pairs returns the valid pairs only, in their original order.
func (c Correspondence) Pairs() (prev, curr []Point) {
	prev = make([]Point, 0, len(c.Prev))
	curr = make([]Point, 0, len(c.Curr))
	for i, ok := range c.Valid {
		if !ok {
			continue
		}
		prev = append(prev, c.Prev[i])
		curr = append(curr, c.Curr[i])
	}
	return prev, curr
}

// Clamp bounds DX and DY independently to [-thresh, +thresh]. An out-of-range
// component is replaced with thresh carrying the component's sign. DTheta is
// returned unchanged. Clamp(Clamp(d)) == Clamp(d).
func Clamp(d Delta, thresh float64) Delta {
	return Delta{
		DX:     clampAxis(d.DX, thresh),
		DY:     clampAxis(d.DY, thresh),
		DTheta: d.DTheta,
	}
}

func clampAxis(v, thresh float64) float64 {
	if math.Abs(v) > thresh {
		return thresh * sign(v)
	}
	return v
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
