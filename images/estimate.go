package images

import (
	"github.com/nvr-ai/go-stabilize/motion"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// AffineEstimator fits a partial affine transform (rotation, translation and
// uniform scale, no shear) to tracked pairs with OpenCV's RANSAC estimator
// and decomposes it into a motion.Delta.
type AffineEstimator struct {
	// MinPoints is the smallest number of valid pairs a fit is attempted on.
	MinPoints int
}

// NewAffineEstimator returns a RANSAC estimator requiring minPoints valid pairs.
func NewAffineEstimator(minPoints int) *AffineEstimator {
	return &AffineEstimator{MinPoints: max(minPoints, 3)}
}

// Estimate fits the valid pairs of c.
//
// Returns:
//   - motion.Delta: dx = H[0][2], dy = H[1][2], dθ = atan2(H[1][0], H[0][0]).
//   - error: motion.ErrDegenerateFit when too few pairs are valid, the fit is
//     empty or any component is non-finite.
func (e *AffineEstimator) Estimate(c motion.Correspondence) (motion.Delta, error) {
	if err := c.Check(); err != nil {
		return motion.Delta{}, err
	}

	prev, curr := c.Pairs()
	if len(prev) < e.MinPoints {
		return motion.Delta{}, errors.Wrapf(motion.ErrDegenerateFit, "%d of %d pairs valid, need %d",
			len(prev), len(c.Prev), e.MinPoints)
	}

	a, ok := fitPartialAffine(prev, curr)
	if !ok {
		return motion.Delta{}, errors.Wrap(motion.ErrDegenerateFit, "estimator returned no transform")
	}

	d := a.Decompose()
	if !d.Finite() {
		return motion.Delta{}, errors.Wrap(motion.ErrDegenerateFit, "non-finite transform")
	}
	return d, nil
}

// fitPartialAffine runs the RANSAC fit. The result always has the form
// [a -b tx; b a ty].
func fitPartialAffine(prev, curr []motion.Point) (motion.Affine, bool) {
	from := gocv.NewPoint2fVectorFromPoints(toPoint2f(prev))
	defer from.Close()
	to := gocv.NewPoint2fVectorFromPoints(toPoint2f(curr))
	defer to.Close()

	h := gocv.EstimateAffinePartial2D(from, to)
	defer h.Close()
	return affineFromMat(h)
}

// affineFromMat reads a 2x3 CV_64F matrix.
func affineFromMat(m gocv.Mat) (motion.Affine, bool) {
	if m.Empty() || m.Rows() != 2 || m.Cols() != 3 {
		return motion.Affine{}, false
	}
	var a motion.Affine
	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			a[r*3+c] = m.GetDoubleAt(r, c)
		}
	}
	return a, true
}

// affineToMat writes a into a 2x3 CV_32F matrix.
func affineToMat(a motion.Affine) gocv.Mat {
	m := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV32F)
	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			m.SetFloatAt(r, c, float32(a[r*3+c]))
		}
	}
	return m
}
