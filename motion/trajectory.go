package motion

import (
	"github.com/bmharper/ringbuffer"
	"gonum.org/v1/gonum/stat"
)

// Trajectory is the bounded history of frame-to-frame motion deltas of one
// stabilizer instance. It starts empty and never holds more than its limit;
// pushing at capacity evicts the oldest delta.
type Trajectory struct {
	history ringbuffer.RingP[Delta]
	limit   int
}

// NewTrajectory creates an empty trajectory holding at most limit deltas.
//
// Arguments:
//   - limit: The history capacity, must be positive.
//
// Returns:
//   - *Trajectory: The empty trajectory.
//
// @example
// traj := motion.NewTrajectory(cfg.HistoryLimit)
// traj.Push(delta)
// residual := motion.Clamp(traj.Residual(delta, cfg.SmoothingRadius), cfg.MotionThresh)
func NewTrajectory(limit int) *Trajectory {
	limit = max(limit, 1)
	return &Trajectory{
		history: ringbuffer.NewRingP[Delta](ringSize(limit)),
		limit:   limit,
	}
}

// ringSize returns the smallest power of two that holds limit entries. The
// ring keeps one slot free, so it must be at least limit+1.
func ringSize(limit int) int {
	size := 2
	for size < limit+1 {
		size <<= 1
	}
	return size
}

// Push appends d as the newest entry, evicting the oldest at the limit.
func (t *Trajectory) Push(d Delta) {
	if t.history.Len() >= t.limit {
		t.history.Next()
	}
	t.history.Add(d)
}

// Len returns the number of deltas held.
func (t *Trajectory) Len() int {
	return t.history.Len()
}

// Limit returns the capacity.
func (t *Trajectory) Limit() int {
	return t.limit
}

// Deltas returns a copy of the history, oldest first.
func (t *Trajectory) Deltas() []Delta {
	out := make([]Delta, t.history.Len())
	for i := range out {
		out[i] = t.history.Peek(i)
	}
	return out
}

// SmoothedAverage returns the mean of the entries within radius positions of
// the newest entry. The window is clipped at the buffer ends: with fewer
// than radius+1 entries every entry is averaged. An empty history averages
// to the zero delta.
func (t *Trajectory) SmoothedAverage(radius int) Delta {
	n := t.history.Len()
	if n == 0 {
		return Delta{}
	}
	if radius < 0 {
		radius = 0
	}

	newest := n - 1
	from := max(newest-radius, 0)

	count := newest - from + 1
	xs := make([]float64, 0, count)
	ys := make([]float64, 0, count)
	thetas := make([]float64, 0, count)
	for i := from; i <= newest; i++ {
		d := t.history.Peek(i)
		xs = append(xs, d.DX)
		ys = append(ys, d.DY)
		thetas = append(thetas, d.DTheta)
	}

	return Delta{
		DX:     stat.Mean(xs, nil),
		DY:     stat.Mean(ys, nil),
		DTheta: stat.Mean(thetas, nil),
	}
}

// Residual returns d minus the smoothed average of the history.
func (t *Trajectory) Residual(d Delta, radius int) Delta {
	return d.Sub(t.SmoothedAverage(radius))
}
