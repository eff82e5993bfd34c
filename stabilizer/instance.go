// Package stabilizer runs one per-camera stabilization instance: it binds a
// device, opens the source, warms up on the first frame until key points
// exist, then loops frame by frame until the stream ends or the shared
// keep-running flag is cleared.
//
// Per iteration, strictly in order:
//
//	read ─► gray ─► track ─► estimate ─► smooth/clamp ─► enhance|RGB ─► warp+crop ─► record ─► show ─► swap ─► re-detect
package stabilizer

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/nvr-ai/go-stabilize/config"
	"github.com/nvr-ai/go-stabilize/display"
	"github.com/nvr-ai/go-stabilize/motion"
	"github.com/nvr-ai/go-stabilize/profiler"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

var (
	// ErrNoFrame is returned when the first frame cannot be read.
	ErrNoFrame = errors.New("can't get frame")
	// ErrNoKeypoints is returned when warm-up exhausts its attempts.
	ErrNoKeypoints = errors.New("no key points in first frame")
	// ErrStopped is returned when the keep-running flag clears during warm-up.
	ErrStopped = errors.New("stopped")
)

// Options selects what one instance processes.
type Options struct {
	// Source is a device index or a path/URI.
	Source string
	// Instance is the slot index in the shared surface table.
	Instance int
	// Device is the accelerator ordinal.
	Device int
	// Enhance enables the enhancement stage.
	Enhance bool
	// Config holds the tunables.
	Config config.Config
	// Observer, when set, receives the stats of every processed frame.
	Observer func(FrameStats)
	// Stages overrides collaborator construction.
	Stages Stages
}

// Shared is the state every instance of a process sees.
type Shared struct {
	// Running is polled once per iteration; clearing it stops every instance
	// before its next frame.
	Running *atomic.Bool
	// Surfaces is the pre-sized surface table, indexed by Options.Instance.
	Surfaces *display.Table
}

// FrameStats describes one iteration of the loop.
type FrameStats struct {
	Index int
	// Points is the number of points handed to the tracker.
	Points int
	// Tracked is the number of valid correspondences.
	Tracked int
	// Delta is the estimated frame-to-frame motion.
	Delta motion.Delta
	// Residual is the clamped shake that was compensated.
	Residual motion.Delta
	// Dropped is true when the fit was degenerate and the frame passed
	// through with identity compensation.
	Dropped bool
	// Redetected is false when detection found nothing and the previous
	// points were kept.
	Redetected bool
}

// Instance is one stabilizer bound to one source and one surface.
type Instance struct {
	opts   Options
	shared Shared
	log    zerolog.Logger
	stages Stages

	state  atomic.Int32
	mu     sync.Mutex
	err    error
	reason StopReason
	frames int
	drops  int

	trajectory *motion.Trajectory
	prof       *profiler.RuntimeProfiler
}

// New prepares an instance. Nothing is acquired until Run.
func New(opts Options, shared Shared, log zerolog.Logger) *Instance {
	return &Instance{
		opts:   opts,
		shared: shared,
		log:    log,
		stages: opts.Stages.withDefaults(),
	}
}

// Run is the instance entry point: it blocks until the instance stops and
// reports status only through log lines.
//
// @example
// go stabilizer.Run(stabilizer.Options{Source: "0", Config: config.Default()}, shared, log)
func Run(opts Options, shared Shared, log zerolog.Logger) {
	_ = New(opts, shared, log).Run()
}

// State returns the current lifecycle state. Safe from any goroutine.
func (in *Instance) State() State {
	return State(in.state.Load())
}

// Err returns the failure that stopped the instance, nil for a normal stop.
func (in *Instance) Err() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.err
}

// Reason returns why the instance stopped.
func (in *Instance) Reason() StopReason {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.reason
}

// Frames returns the number of frames processed by the loop.
func (in *Instance) Frames() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.frames
}

// Dropped returns the number of frames passed through on a degenerate fit.
func (in *Instance) Dropped() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.drops
}

// Trajectory returns the motion history. It must only be read once the
// instance has stopped.
func (in *Instance) Trajectory() *motion.Trajectory {
	return in.trajectory
}

func (in *Instance) setState(s State) {
	in.state.Store(int32(s))
}

func (in *Instance) stop(reason StopReason, err error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.reason == ReasonNone {
		in.reason = reason
		in.err = err
	}
}

func (in *Instance) running() bool {
	return in.shared.Running == nil || in.shared.Running.Load()
}

// Run acquires every resource, warms up and loops. Every acquired resource
// is released on return, whichever path stopped the instance.
func (in *Instance) Run() (err error) {
	cfg := in.opts.Config
	log := in.log

	defer func() {
		if err != nil {
			in.stop(ReasonFailure, err)
		}
		in.setState(Stopped)
		log.Info().Stringer("reason", in.Reason()).Int("frames", in.Frames()).
			Msgf("closing %s", in.opts.Source)
	}()

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("invalid config")
		return err
	}

	dev, err := in.stages.Bind(in.opts.Device)
	if err != nil {
		log.Error().Err(err).Msgf("can't bind device %d", in.opts.Device)
		return err
	}
	in.stages = in.opts.Stages.forDevice(dev).withDefaults()
	log.Debug().Str("backend", string(dev.Backend)).Int("ordinal", dev.Ordinal).Msg("device bound")

	src, err := in.stages.OpenSource(in.opts.Source)
	if err != nil {
		log.Error().Err(err).Msgf("can't init input %s", in.opts.Source)
		return err
	}
	defer src.Close()

	surface, err := in.shared.Surfaces.Slot(in.opts.Instance)
	if err != nil {
		log.Error().Err(err).Msg("can't get display surface")
		return err
	}
	defer func() {
		if err := in.shared.Surfaces.Release(in.opts.Instance); err != nil {
			log.Warn().Err(err).Msg("can't release display surface")
		}
	}()

	det, err := in.stages.NewDetector(cfg)
	if err != nil {
		log.Error().Err(err).Msg("can't init detection engine")
		return err
	}
	defer det.Close()

	tracker, err := in.stages.NewTracker(cfg)
	if err != nil {
		log.Error().Err(err).Msg("can't init tracking engine")
		return err
	}
	defer tracker.Close()

	estimator, err := in.stages.NewEstimator(cfg)
	if err != nil {
		log.Error().Err(err).Msg("can't init motion estimator")
		return err
	}

	frame := gocv.NewMat()
	defer frame.Close()
	prevGray := gocv.NewMat()
	defer func() { prevGray.Close() }()
	gray := gocv.NewMat()
	defer func() { gray.Close() }()
	rgb := gocv.NewMat()
	defer rgb.Close()
	stabilized := gocv.NewMat()
	defer stabilized.Close()

	in.setState(SeekingKeypoints)

	if !src.Read(&frame) {
		log.Error().Msg("can't get frame")
		return ErrNoFrame
	}

	var pts []motion.Point
	attempts, err := Retry(cfg.WarmupAttempts, func(int) (bool, error) {
		if !in.running() {
			return false, ErrStopped
		}
		gocv.CvtColor(frame, &prevGray, gocv.ColorBGRToGray)
		pts = det.DetectPoints(prevGray)
		return len(pts) > 0, nil
	})
	if errors.Is(err, ErrStopped) {
		in.stop(ReasonSignal, nil)
		return nil
	}
	if err != nil {
		err = errors.Wrapf(ErrNoKeypoints, "%v", err)
		log.Error().Err(err).Msg("can't find key points")
		return err
	}
	log.Debug().Int("attempts", attempts).Int("points", len(pts)).Msg("key points found")

	var enhancer Enhancer
	if in.opts.Enhance {
		if enhancer, err = in.stages.NewEnhancer(cfg); err != nil {
			log.Error().Err(err).Msg("can't init filter engine")
			return err
		}
		defer enhancer.Close()
	}

	warper, err := in.stages.NewWarper(cfg)
	if err != nil {
		log.Error().Err(err).Msg("can't init warp engine")
		return err
	}
	defer warper.Close()

	var recorder Recorder
	if cfg.Debug {
		recorder, err = in.stages.NewRecorder(strconv.Itoa(in.opts.Instance), src.Props(), cfg)
		if err != nil {
			log.Warn().Err(err).Msg("debug recorder disabled")
			recorder = nil
		} else {
			defer recorder.Close()
		}
	}

	if cfg.ReportInterval > 0 {
		in.prof = profiler.NewRuntimeProfiler(profiler.ProfilingOptions{
			ReportInterval: cfg.ReportInterval,
			Logger:         log,
		})
		in.prof.Start()
		defer in.prof.Stop()
	}

	in.trajectory = motion.NewTrajectory(cfg.HistoryLimit)
	in.setState(Running)
	log.Info().Bool("enhance", in.opts.Enhance).Int("points", len(pts)).Msg("stabilizer running")

	loop := &loop{
		in:         in,
		src:        src,
		surface:    surface,
		det:        det,
		tracker:    tracker,
		estimator:  estimator,
		enhancer:   enhancer,
		warper:     warper,
		recorder:   recorder,
		frame:      &frame,
		prevGray:   &prevGray,
		gray:       &gray,
		rgb:        &rgb,
		stabilized: &stabilized,
		pts:        pts,
	}

	for {
		if !in.running() {
			in.stop(ReasonSignal, nil)
			return nil
		}
		if !loop.step() {
			in.stop(ReasonStreamEnded, nil)
			return nil
		}
	}
}

// timed starts a stage timer when profiling is enabled.
func (in *Instance) timed(stage string) func() {
	if in.prof == nil {
		return func() {}
	}
	return in.prof.StartOperation(stage)
}

func (in *Instance) metric(name string, v float64) {
	if in.prof != nil {
		in.prof.RecordMetric(name, v)
	}
}
