package motion

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// RigidEstimator fits a rotation plus translation to point correspondences
// by closed-form least squares, then trims pairs whose residual exceeds
// TrimFactor times the median residual and refits.
type RigidEstimator struct {
	// MinPoints is the smallest number of valid pairs a fit is attempted on.
	MinPoints int
	// TrimFactor scales the median residual into the outlier cut-off.
	TrimFactor float64
	// Iterations bounds the number of trim-and-refit rounds.
	Iterations int
}

// NewRigidEstimator returns an estimator with a 3x median cut-off and three refits.
func NewRigidEstimator(minPoints int) *RigidEstimator {
	return &RigidEstimator{
		MinPoints:  max(minPoints, 2),
		TrimFactor: 3,
		Iterations: 3,
	}
}

// Estimate fits the valid pairs of c and decomposes the fit into a Delta.
//
// Arguments:
//   - c: The tracked correspondences. Invalid pairs are ignored.
//
// Returns:
//   - Delta: The translation and rotation mapping Prev onto Curr.
//   - error: ErrDegenerateFit when too few pairs remain or the points do not
//     constrain a rotation.
func (e *RigidEstimator) Estimate(c Correspondence) (Delta, error) {
	if err := c.Check(); err != nil {
		return Delta{}, err
	}

	prev, curr := c.Pairs()
	if len(prev) < e.MinPoints {
		return Delta{}, errors.Wrapf(ErrDegenerateFit, "%d of %d pairs valid, need %d",
			len(prev), len(c.Prev), e.MinPoints)
	}

	fit, err := fitRigid(prev, curr)
	if err != nil {
		return Delta{}, err
	}

	for i := 0; i < e.Iterations; i++ {
		keptPrev, keptCurr := e.trim(fit, prev, curr)
		if len(keptPrev) == len(prev) || len(keptPrev) < e.MinPoints {
			break
		}
		prev, curr = keptPrev, keptCurr
		if fit, err = fitRigid(prev, curr); err != nil {
			return Delta{}, err
		}
	}

	d := fit.Decompose()
	if !d.Finite() {
		return Delta{}, errors.Wrap(ErrDegenerateFit, "non-finite fit")
	}
	return d, nil
}

func (e *RigidEstimator) trim(fit Affine, prev, curr []Point) ([]Point, []Point) {
	residuals := make([]float64, len(prev))
	for i := range prev {
		p := fit.Apply(prev[i])
		residuals[i] = math.Hypot(p.X-curr[i].X, p.Y-curr[i].Y)
	}

	sorted := append([]float64(nil), residuals...)
	sort.Float64s(sorted)
	median := stat.Quantile(0.5, stat.Empirical, sorted, nil)
	cutoff := e.TrimFactor * math.Max(median, 1e-3)

	keptPrev := make([]Point, 0, len(prev))
	keptCurr := make([]Point, 0, len(curr))
	for i, r := range residuals {
		if r <= cutoff {
			keptPrev = append(keptPrev, prev[i])
			keptCurr = append(keptCurr, curr[i])
		}
	}
	return keptPrev, keptCurr
}

// fitRigid solves min Σ|R·p + t − q|² for a proper rotation R (Kabsch).
func fitRigid(prev, curr []Point) (Affine, error) {
	n := float64(len(prev))
	var pcx, pcy, qcx, qcy float64
	for i := range prev {
		pcx += prev[i].X
		pcy += prev[i].Y
		qcx += curr[i].X
		qcy += curr[i].Y
	}
	pcx, pcy, qcx, qcy = pcx/n, pcy/n, qcx/n, qcy/n

	var spread float64
	cov := mat.NewDense(2, 2, nil)
	for i := range prev {
		px, py := prev[i].X-pcx, prev[i].Y-pcy
		qx, qy := curr[i].X-qcx, curr[i].Y-qcy
		spread += px*px + py*py
		cov.Set(0, 0, cov.At(0, 0)+px*qx)
		cov.Set(0, 1, cov.At(0, 1)+px*qy)
		cov.Set(1, 0, cov.At(1, 0)+py*qx)
		cov.Set(1, 1, cov.At(1, 1)+py*qy)
	}
	if spread < 1e-9 {
		return Affine{}, errors.Wrap(ErrDegenerateFit, "points are coincident")
	}

	var svd mat.SVD
	if ok := svd.Factorize(cov, mat.SVDFull); !ok {
		return Affine{}, errors.Wrap(ErrDegenerateFit, "svd did not converge")
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var r mat.Dense
	r.Mul(&v, u.T())
	if mat.Det(&r) < 0 {
		// Reflection: flip the axis of the smallest singular value.
		v.Set(0, 1, -v.At(0, 1))
		v.Set(1, 1, -v.At(1, 1))
		r.Mul(&v, u.T())
	}

	r00, r01 := r.At(0, 0), r.At(0, 1)
	r10, r11 := r.At(1, 0), r.At(1, 1)
	return Affine{
		r00, r01, qcx - (r00*pcx + r01*pcy),
		r10, r11, qcy - (r10*pcx + r11*pcy),
	}, nil
}
