package stabilizer

import (
	"sync/atomic"

	"github.com/nvr-ai/go-stabilize/capture"
	"github.com/nvr-ai/go-stabilize/config"
	"github.com/nvr-ai/go-stabilize/display"
	"github.com/nvr-ai/go-stabilize/images"
	"github.com/nvr-ai/go-stabilize/motion"
	"gocv.io/x/gocv"
)

// MockSource replays frames in order, cycling when loop is set.
type MockSource struct {
	frames []gocv.Mat
	next   int
	loop   bool
	closed bool
}

func newMockSource(n int, loop bool) *MockSource {
	gen := images.NewPatternGenerator(160, 120)
	src := &MockSource{loop: loop}
	for i := 0; i < n; i++ {
		src.frames = append(src.frames, gen.Frame(0, 0))
	}
	return src
}

func (m *MockSource) Read(dst *gocv.Mat) bool {
	if m.next >= len(m.frames) {
		if !m.loop || len(m.frames) == 0 {
			return false
		}
		m.next = 0
	}
	m.frames[m.next].CopyTo(dst)
	m.next++
	return true
}

func (m *MockSource) Props() capture.Props {
	return capture.Props{FPS: 30, FourCC: "MJPG", Width: 160, Height: 120}
}

func (m *MockSource) Close() error {
	m.closed = true
	for i := range m.frames {
		m.frames[i].Close()
	}
	return nil
}

// MockDetector returns scripted point sets, repeating the last one.
type MockDetector struct {
	script [][]motion.Point
	calls  int
	closed bool
}

func (m *MockDetector) DetectPoints(gocv.Mat) []motion.Point {
	m.calls++
	if len(m.script) == 0 {
		return nil
	}
	i := min(m.calls-1, len(m.script)-1)
	return m.script[i]
}

func (m *MockDetector) Close() error {
	m.closed = true
	return nil
}

// MockTracker records the points it was asked to follow and reports them
// unmoved.
type MockTracker struct {
	inputs [][]motion.Point
	closed bool
}

func (m *MockTracker) Track(_, _ gocv.Mat, pts []motion.Point) (motion.Correspondence, error) {
	m.inputs = append(m.inputs, pts)
	valid := make([]bool, len(pts))
	for i := range valid {
		valid[i] = true
	}
	return motion.Correspondence{Prev: pts, Curr: pts, Valid: valid}, nil
}

func (m *MockTracker) Close() error {
	m.closed = true
	return nil
}

// MockEstimator returns scripted results, then zero deltas.
type MockEstimator struct {
	deltas []motion.Delta
	errs   []error
	calls  int
}

func (m *MockEstimator) Estimate(motion.Correspondence) (motion.Delta, error) {
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return motion.Delta{}, m.errs[i]
	}
	if i < len(m.deltas) {
		return m.deltas[i], nil
	}
	return motion.Delta{}, nil
}

// MockSurface keeps a copy of the last frame shown. The copy outlives
// Close so tests can inspect it once the instance has stopped.
type MockSurface struct {
	shown  int
	closes int
	last   gocv.Mat
}

func newMockSurface() *MockSurface {
	return &MockSurface{last: gocv.NewMat()}
}

func (m *MockSurface) Show(rgb gocv.Mat) error {
	m.shown++
	rgb.CopyTo(&m.last)
	return nil
}

func (m *MockSurface) Close() error {
	m.closes++
	return nil
}

// MockWarper fails every call with err.
type MockWarper struct {
	err    error
	calls  int
	closed bool
}

func (m *MockWarper) Apply(gocv.Mat, motion.Delta, *gocv.Mat) error {
	m.calls++
	return m.err
}

func (m *MockWarper) Close() error {
	m.closed = true
	return nil
}

// MockRecorder counts recorded pairs.
type MockRecorder struct {
	records int
	closed  bool
}

func (m *MockRecorder) Record(_, _ gocv.Mat) error {
	m.records++
	return nil
}

func (m *MockRecorder) Close() error {
	m.closed = true
	return nil
}

// harness wires mocks into Options and Shared.
type harness struct {
	source    *MockSource
	detector  *MockDetector
	tracker   *MockTracker
	estimator *MockEstimator
	surface   *MockSurface
	recorder  *MockRecorder
	running   *atomic.Bool
	stats     []FrameStats
}

func newHarness(frames int, loop bool) *harness {
	running := &atomic.Bool{}
	running.Store(true)
	return &harness{
		source:    newMockSource(frames, loop),
		detector:  &MockDetector{script: [][]motion.Point{{{X: 10, Y: 10}, {X: 50, Y: 20}, {X: 90, Y: 80}}}},
		tracker:   &MockTracker{},
		estimator: &MockEstimator{},
		surface:   newMockSurface(),
		recorder:  &MockRecorder{},
		running:   running,
	}
}

func (h *harness) options(cfg config.Config) Options {
	return Options{
		Source:   "mock",
		Instance: 0,
		Config:   cfg,
		Observer: func(s FrameStats) { h.stats = append(h.stats, s) },
		Stages: Stages{
			OpenSource:   func(string) (capture.Source, error) { return h.source, nil },
			NewDetector:  func(config.Config) (Detector, error) { return h.detector, nil },
			NewTracker:   func(config.Config) (Tracker, error) { return h.tracker, nil },
			NewEstimator: func(config.Config) (Estimator, error) { return h.estimator, nil },
			NewRecorder: func(string, capture.Props, config.Config) (Recorder, error) {
				return h.recorder, nil
			},
		},
	}
}

func (h *harness) shared() Shared {
	return Shared{
		Running:  h.running,
		Surfaces: display.NewTable(1, func(int) display.Surface { return h.surface }),
	}
}

func (h *harness) close() {
	h.surface.last.Close()
}
