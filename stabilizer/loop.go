package stabilizer

import (
	"github.com/nvr-ai/go-stabilize/capture"
	"github.com/nvr-ai/go-stabilize/display"
	"github.com/nvr-ai/go-stabilize/images"
	"github.com/nvr-ai/go-stabilize/motion"
	"github.com/nvr-ai/go-stabilize/profiler"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// loop holds the per-iteration working set of a running instance. The Mats
// are owned by Instance.Run; loop only overwrites them.
type loop struct {
	in        *Instance
	src       capture.Source
	surface   display.Surface
	det       Detector
	tracker   Tracker
	estimator Estimator
	enhancer  Enhancer
	warper    Warper
	recorder  Recorder

	frame      *gocv.Mat
	prevGray   *gocv.Mat
	gray       *gocv.Mat
	rgb        *gocv.Mat
	stabilized *gocv.Mat

	pts   []motion.Point
	index int
}

// step processes one frame. It returns false when the source is exhausted.
func (l *loop) step() bool {
	in := l.in
	cfg := in.opts.Config
	doneFrame := in.timed(profiler.StageFrame)
	defer doneFrame()

	done := in.timed(profiler.StageCapture)
	ok := l.src.Read(l.frame)
	done()
	if !ok {
		in.log.Info().Int("frame", l.index).Msg("can't get frame")
		return false
	}
	gocv.CvtColor(*l.frame, l.gray, gocv.ColorBGRToGray)

	stats := FrameStats{Index: l.index, Points: len(l.pts)}

	done = in.timed(profiler.StageTrack)
	corr, err := l.tracker.Track(*l.prevGray, *l.gray, l.pts)
	done()

	done = in.timed(profiler.StageEstimate)
	if err == nil {
		stats.Tracked = corr.Tracked()
		stats.Delta, err = l.estimator.Estimate(corr)
	}
	done()

	if err != nil {
		// Degenerate fit: pass the frame through and keep the history clean.
		stats.Dropped = true
		in.log.Debug().Err(err).Int("frame", l.index).Msg("motion fit dropped")
	} else {
		in.trajectory.Push(stats.Delta)
		stats.Residual = motion.Clamp(in.trajectory.Residual(stats.Delta, cfg.SmoothingRadius), cfg.MotionThresh)
	}

	if err := l.render(stats.Residual); err != nil {
		in.log.Warn().Err(err).Int("frame", l.index).Msg("frame not presented")
	}

	*l.prevGray, *l.gray = *l.gray, *l.prevGray

	done = in.timed(profiler.StageDetect)
	if pts := l.det.DetectPoints(*l.prevGray); len(pts) > 0 {
		l.pts = pts
		stats.Redetected = true
	}
	done()

	in.mu.Lock()
	in.frames++
	if stats.Dropped {
		in.drops++
	}
	in.mu.Unlock()

	in.metric("points", float64(stats.Points))
	in.metric("residual_dx", stats.Residual.DX)
	in.metric("residual_dy", stats.Residual.DY)

	if in.opts.Observer != nil {
		in.opts.Observer(stats)
	}
	l.index++
	return true
}

// render runs the color stage, the warp and the outputs for the current
// frame. A failing stage skips the rest of the frame; the caller still
// advances the tracking state.
func (l *loop) render(residual motion.Delta) error {
	in := l.in

	done := in.timed(profiler.StageEnhance)
	var err error
	if l.enhancer != nil {
		err = l.enhancer.Apply(*l.frame, l.rgb)
	} else {
		err = images.ToRGB(*l.frame, l.rgb)
	}
	done()
	if err != nil {
		return errors.Wrap(err, "color stage")
	}

	done = in.timed(profiler.StageWarp)
	err = l.warper.Apply(*l.rgb, residual, l.stabilized)
	done()
	if err != nil {
		return errors.Wrap(err, "warp")
	}

	if l.recorder != nil {
		if err := l.recorder.Record(*l.frame, *l.stabilized); err != nil {
			in.log.Warn().Err(err).Msg("debug record failed")
		}
	}

	done = in.timed(profiler.StagePresent)
	defer done()
	return errors.Wrap(l.surface.Show(*l.stabilized), "present")
}
