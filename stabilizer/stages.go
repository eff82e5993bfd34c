package stabilizer

import (
	"github.com/nvr-ai/go-stabilize/accel"
	"github.com/nvr-ai/go-stabilize/capture"
	"github.com/nvr-ai/go-stabilize/config"
	"github.com/nvr-ai/go-stabilize/display"
	"github.com/nvr-ai/go-stabilize/images"
	"github.com/nvr-ai/go-stabilize/motion"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Detector finds trackable points in a grayscale frame.
type Detector interface {
	DetectPoints(gray gocv.Mat) []motion.Point
	Close() error
}

// Tracker follows points from one grayscale frame into the next.
type Tracker interface {
	Track(prev, curr gocv.Mat, pts []motion.Point) (motion.Correspondence, error)
	Close() error
}

// Estimator fits frame-to-frame motion to tracked points.
type Estimator interface {
	Estimate(c motion.Correspondence) (motion.Delta, error)
}

// Enhancer turns a BGR frame into an enhanced RGB frame.
type Enhancer interface {
	Apply(src gocv.Mat, dst *gocv.Mat) error
	Close() error
}

// Warper applies the compensation and crop to an RGB frame.
type Warper interface {
	Apply(src gocv.Mat, residual motion.Delta, dst *gocv.Mat) error
	Close() error
}

// Recorder observes each original and stabilized frame pair.
type Recorder interface {
	Record(original, stabilized gocv.Mat) error
	Close() error
}

// Stages constructs every collaborator of an instance. A nil field falls
// back to the gocv-backed default.
type Stages struct {
	Bind         func(ordinal int) (accel.Device, error)
	OpenSource   func(source string) (capture.Source, error)
	NewDetector  func(cfg config.Config) (Detector, error)
	NewTracker   func(cfg config.Config) (Tracker, error)
	NewEstimator func(cfg config.Config) (Estimator, error)
	NewEnhancer  func(cfg config.Config) (Enhancer, error)
	NewWarper    func(cfg config.Config) (Warper, error)
	NewRecorder  func(name string, props capture.Props, cfg config.Config) (Recorder, error)
}

// withDefaults fills every nil constructor.
func (s Stages) withDefaults() Stages {
	if s.Bind == nil {
		s.Bind = accel.Bind
	}
	if s.OpenSource == nil {
		s.OpenSource = capture.Open
	}
	if s.NewDetector == nil {
		s.NewDetector = func(cfg config.Config) (Detector, error) {
			det, err := images.NewFeatureDetector(cfg.DetectorThreshold)
			if err != nil {
				return nil, err
			}
			return det, nil
		}
	}
	if s.NewTracker == nil {
		s.NewTracker = func(config.Config) (Tracker, error) {
			return images.NewFlowTracker(), nil
		}
	}
	if s.NewEstimator == nil {
		s.NewEstimator = newEstimator
	}
	if s.NewEnhancer == nil {
		s.NewEnhancer = func(cfg config.Config) (Enhancer, error) {
			enh, err := images.NewEnhancer(images.EnhancerConfig{
				Diameter:   cfg.BilateralDiameter,
				SigmaColor: cfg.BilateralSigmaColor,
				SigmaSpace: cfg.BilateralSigmaSpace,
			})
			if err != nil {
				return nil, err
			}
			return enh, nil
		}
	}
	if s.NewWarper == nil {
		s.NewWarper = func(cfg config.Config) (Warper, error) {
			return images.NewWarper(cfg.ScaleFactor), nil
		}
	}
	if s.NewRecorder == nil {
		s.NewRecorder = func(name string, props capture.Props, cfg config.Config) (Recorder, error) {
			rec, err := display.NewRecorder(display.RecorderConfig{
				Name:   name,
				FourCC: props.FourCC,
				FPS:    props.FPS,
				Width:  props.Width,
				Height: props.Height,
				Window: true,
			})
			if err != nil {
				return nil, err
			}
			return rec, nil
		}
	}
	return s
}

func newEstimator(cfg config.Config) (Estimator, error) {
	switch cfg.Estimator {
	case config.EstimatorRANSAC:
		return images.NewAffineEstimator(cfg.MinCorrespondences), nil
	case config.EstimatorLeastSquares:
		return motion.NewRigidEstimator(cfg.MinCorrespondences), nil
	default:
		return nil, errors.Errorf("unknown estimator %q", cfg.Estimator)
	}
}
