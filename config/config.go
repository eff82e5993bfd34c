// Package config holds the tunable parameters of a stabilizer instance.
package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
)

const (
	// EstimatorRANSAC fits a partial affine transform with RANSAC.
	EstimatorRANSAC = "ransac"
	// EstimatorLeastSquares fits a rigid transform in closed form with residual trimming.
	EstimatorLeastSquares = "lsq"
)

// ErrInvalidConfig is returned by Validate when a parameter is out of range.
var ErrInvalidConfig = errors.New("invalid config")

// Config contains the parameters shared by every stage of the per-frame loop.
type Config struct {
	// HistoryLimit is the capacity of the trajectory history.
	HistoryLimit int `json:"historyLimit"`
	// SmoothingRadius is the half-width of the moving-average window, in entries.
	SmoothingRadius int `json:"smoothingRadius"`
	// MotionThresh bounds the per-axis translation residual, in pixels.
	MotionThresh float64 `json:"motionThresh"`
	// ScaleFactor is the zoom applied by the fixed crop transform, >= 1.
	ScaleFactor float64 `json:"scaleFactor"`

	// DetectorThreshold is the FAST corner-response threshold.
	DetectorThreshold int `json:"detectorThreshold"`
	// Estimator selects the motion estimator, EstimatorRANSAC or EstimatorLeastSquares.
	Estimator string `json:"estimator"`
	// MinCorrespondences is the smallest number of tracked pairs a fit is attempted on.
	MinCorrespondences int `json:"minCorrespondences"`

	// BilateralDiameter is the pixel neighbourhood of the bilateral passes.
	BilateralDiameter int `json:"bilateralDiameter"`
	// BilateralSigmaColor is the color-space sigma of the bilateral passes.
	BilateralSigmaColor float64 `json:"bilateralSigmaColor"`
	// BilateralSigmaSpace is the coordinate-space sigma of the bilateral passes.
	BilateralSigmaSpace float64 `json:"bilateralSigmaSpace"`

	// WarmupAttempts caps key-point detection during warm-up. Zero retries forever.
	WarmupAttempts int `json:"warmupAttempts"`
	// Debug enables the side-by-side recorder.
	Debug bool `json:"debug"`
	// ReportInterval enables periodic stage timing reports when non-zero.
	ReportInterval time.Duration `json:"reportInterval"`
}

// Default returns the stock configuration.
//
// Returns:
//   - Config: history of 30, smoothing radius of 10, 15px clamp and a 1.04 zoom.
//
// @example
// cfg := config.Default()
// cfg.MotionThresh = 20
func Default() Config {
	return Config{
		HistoryLimit:        30,
		SmoothingRadius:     10,
		MotionThresh:        15.0,
		ScaleFactor:         1.04,
		DetectorThreshold:   10,
		Estimator:           EstimatorRANSAC,
		MinCorrespondences:  3,
		BilateralDiameter:   5,
		BilateralSigmaColor: 45,
		BilateralSigmaSpace: 45,
	}
}

// Validate checks that every parameter is usable by the pipeline.
func (c Config) Validate() error {
	switch {
	case c.HistoryLimit <= 0:
		return errors.Wrapf(ErrInvalidConfig, "history limit %d must be positive", c.HistoryLimit)
	case c.SmoothingRadius < 0:
		return errors.Wrapf(ErrInvalidConfig, "smoothing radius %d must not be negative", c.SmoothingRadius)
	case c.SmoothingRadius >= c.HistoryLimit:
		return errors.Wrapf(ErrInvalidConfig, "smoothing radius %d must be below history limit %d",
			c.SmoothingRadius, c.HistoryLimit)
	case c.MotionThresh < 0:
		return errors.Wrapf(ErrInvalidConfig, "motion threshold %.2f must not be negative", c.MotionThresh)
	case c.ScaleFactor < 1:
		return errors.Wrapf(ErrInvalidConfig, "scale factor %.3f must be at least 1", c.ScaleFactor)
	case c.DetectorThreshold <= 0:
		return errors.Wrapf(ErrInvalidConfig, "detector threshold %d must be positive", c.DetectorThreshold)
	case c.MinCorrespondences < 3:
		return errors.Wrapf(ErrInvalidConfig, "min correspondences %d must be at least 3", c.MinCorrespondences)
	case c.BilateralDiameter <= 0:
		return errors.Wrapf(ErrInvalidConfig, "bilateral diameter %d must be positive", c.BilateralDiameter)
	case c.WarmupAttempts < 0:
		return errors.Wrapf(ErrInvalidConfig, "warmup attempts %d must not be negative", c.WarmupAttempts)
	}

	switch c.Estimator {
	case EstimatorRANSAC, EstimatorLeastSquares:
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown estimator %q", c.Estimator)
	}

	return nil
}

// Load reads a JSON file on top of Default and validates the result.
//
// Arguments:
//   - path: The JSON file to read. Fields missing from the file keep their default.
//
// Returns:
//   - Config: The merged configuration.
//   - error: An error if the file cannot be read, parsed or validated.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}
