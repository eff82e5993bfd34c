package images

import (
	"github.com/nvr-ai/go-stabilize/motion"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

var (
	// ErrEmptyFrame is returned when a stage is handed an empty Mat.
	ErrEmptyFrame = errors.New("empty frame")
	// ErrNoPoints is returned when the tracker is handed no points to follow.
	ErrNoPoints = errors.New("no points to track")
)

// FlowTracker follows a sparse set of points from one grayscale frame to the
// next with pyramidal Lucas–Kanade optical flow.
type FlowTracker struct {
	next   gocv.Mat
	status gocv.Mat
	errs   gocv.Mat
}

// NewFlowTracker allocates the tracker's output buffers.
func NewFlowTracker() *FlowTracker {
	return &FlowTracker{
		next:   gocv.NewMat(),
		status: gocv.NewMat(),
		errs:   gocv.NewMat(),
	}
}

// Track locates pts, found in prev, inside curr.
//
// The returned correspondence always holds len(pts) entries in each buffer;
// points the flow could not follow are flagged invalid, never dropped.
//
// Arguments:
//   - prev: The grayscale frame pts were detected in.
//   - curr: The grayscale frame to track into.
//   - pts: The points to follow.
//
// Returns:
//   - motion.Correspondence: Prev is pts, Curr and Valid are aligned with it.
//   - error: ErrEmptyFrame or ErrNoPoints on unusable input.
func (t *FlowTracker) Track(prev, curr gocv.Mat, pts []motion.Point) (motion.Correspondence, error) {
	if prev.Empty() || curr.Empty() {
		return motion.Correspondence{}, ErrEmptyFrame
	}
	if len(pts) == 0 {
		return motion.Correspondence{}, ErrNoPoints
	}

	prevVec := gocv.NewPoint2fVectorFromPoints(toPoint2f(pts))
	defer prevVec.Close()
	prevPts := gocv.NewMatFromPoint2fVector(prevVec, true)
	defer prevPts.Close()

	gocv.CalcOpticalFlowPyrLK(prev, curr, prevPts, t.next, &t.status, &t.errs)

	out := motion.Correspondence{
		Prev:  pts,
		Curr:  make([]motion.Point, len(pts)),
		Valid: make([]bool, len(pts)),
	}

	tracked := min(t.next.Rows(), t.status.Rows(), len(pts))
	for i := 0; i < tracked; i++ {
		v := t.next.GetVecfAt(i, 0)
		if len(v) < 2 {
			continue
		}
		out.Curr[i] = motion.Point{X: float64(v[0]), Y: float64(v[1])}
		out.Valid[i] = t.status.GetUCharAt(i, 0) == 1
	}
	for i := tracked; i < len(pts); i++ {
		out.Curr[i] = pts[i]
	}

	return out, nil
}

// Close releases the output buffers.
func (t *FlowTracker) Close() error {
	t.next.Close()
	t.status.Close()
	return t.errs.Close()
}

func toPoint2f(pts []motion.Point) []gocv.Point2f {
	out := make([]gocv.Point2f, len(pts))
	for i, p := range pts {
		out[i] = gocv.Point2f{X: float32(p.X), Y: float32(p.Y)}
	}
	return out
}
