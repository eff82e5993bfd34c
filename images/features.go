// Package images - This file contains the gocv-backed stages of the
// stabilization loop: corner detection, sparse optical flow, robust motion
// estimation, enhancement and warping.
//
// Pipeline Overview:
//
// ┌──────────────┐      ┌──────────────────────┐
// │ Gray frame   │─────►│ FeatureDetector      │ FAST corners
// └──────┬───────┘      └──────────┬───────────┘
// ┌──────▼─────────────────────────▼───────────┐
// │ FlowTracker (pyramidal Lucas–Kanade)       │ points from the previous iteration
// └──────┬─────────────────────────────────────┘
// ┌──────▼───────────────────┐
// │ AffineEstimator (RANSAC) │──► motion.Delta
// └──────────────────────────┘
// ┌──────────────────┐   ┌────────────────────────────────┐
// │ Color frame      │──►│ Enhancer / ToRGB ─► Warper     │──► surface
// └──────────────────┘   └────────────────────────────────┘
//
// Every stage owns its scratch Mats and must be closed when the instance
// stops. None of them are safe for concurrent use.
package images

import (
	"github.com/nvr-ai/go-stabilize/motion"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrDetectorInit is returned when the corner detector cannot be constructed.
var ErrDetectorInit = errors.New("can't init detection engine")

// FeatureDetector finds FAST corners in a grayscale frame.
type FeatureDetector struct {
	fast gocv.FastFeatureDetector
}

// NewFeatureDetector creates a FAST detector with non-max suppression.
//
// Arguments:
//   - threshold: The corner-response threshold, must be positive.
//
// Returns:
//   - *FeatureDetector: The detector. Call Close when done.
//   - error: ErrDetectorInit when the threshold is unusable.
//
// @example
// det, _ := images.NewFeatureDetector(cfg.DetectorThreshold)
// defer det.Close()
// points := images.KeyPointsToPoints(det.Detect(gray))
func NewFeatureDetector(threshold int) (*FeatureDetector, error) {
	if threshold <= 0 {
		return nil, errors.Wrapf(ErrDetectorInit, "threshold %d", threshold)
	}
	return &FeatureDetector{
		fast: gocv.NewFastFeatureDetectorWithParams(threshold, true, gocv.FastFeatureDetectorType916),
	}, nil
}

// Detect returns the corners of gray. An empty result is not an error.
func (d *FeatureDetector) Detect(gray gocv.Mat) []gocv.KeyPoint {
	if gray.Empty() {
		return nil
	}
	return d.fast.Detect(gray)
}

// DetectPoints is Detect followed by KeyPointsToPoints.
func (d *FeatureDetector) DetectPoints(gray gocv.Mat) []motion.Point {
	return KeyPointsToPoints(d.Detect(gray))
}

// Close releases the native detector.
func (d *FeatureDetector) Close() error {
	return d.fast.Close()
}

// KeyPointsToPoints keeps only the locations of kps.
func KeyPointsToPoints(kps []gocv.KeyPoint) []motion.Point {
	pts := make([]motion.Point, len(kps))
	for i, kp := range kps {
		pts[i] = motion.Point{X: kp.X, Y: kp.Y}
	}
	return pts
}
