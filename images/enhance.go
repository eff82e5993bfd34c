package images

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrFilterInit is returned when the sharpening filter cannot be built.
var ErrFilterInit = errors.New("can't init filter engine")

// sharpenKernel is the 3x3 unsharp mask: center 5, four-connected -1, corners 0.
var sharpenKernel = [9]float64{
	0, -1, 0,
	-1, 5, -1,
	0, -1, 0,
}

// EnhancerConfig holds the bilateral filter parameters used by both passes.
type EnhancerConfig struct {
	Diameter   int
	SigmaColor float64
	SigmaSpace float64
}

// Enhancer runs the optional enhancement stage on a BGR frame and produces
// an RGB-ordered frame:
//
//  1. bilateral smoothing
//  2. per-channel sharpening with sharpenKernel
//  3. HSV round trip with the saturation channel histogram-equalized, back to RGB
//  4. a second bilateral pass
type Enhancer struct {
	cfg    EnhancerConfig
	kernel gocv.Mat
	smooth gocv.Mat
	sharp  gocv.Mat
	hsv    gocv.Mat
	rgb    gocv.Mat
}

// NewEnhancer builds the sharpening kernel and scratch buffers.
//
// Arguments:
//   - cfg: The bilateral filter parameters.
//
// Returns:
//   - *Enhancer: The enhancer. Call Close when done.
//   - error: ErrFilterInit if the kernel could not be allocated or cfg is unusable.
func NewEnhancer(cfg EnhancerConfig) (*Enhancer, error) {
	if cfg.Diameter <= 0 {
		return nil, errors.Wrapf(ErrFilterInit, "bilateral diameter %d", cfg.Diameter)
	}

	kernel := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	if kernel.Empty() {
		kernel.Close()
		return nil, errors.Wrap(ErrFilterInit, "kernel allocation")
	}
	for i, v := range sharpenKernel {
		kernel.SetDoubleAt(i/3, i%3, v)
	}

	return &Enhancer{
		cfg:    cfg,
		kernel: kernel,
		smooth: gocv.NewMat(),
		sharp:  gocv.NewMat(),
		hsv:    gocv.NewMat(),
		rgb:    gocv.NewMat(),
	}, nil
}

// Apply enhances the BGR frame src into dst as RGB.
func (e *Enhancer) Apply(src gocv.Mat, dst *gocv.Mat) error {
	if src.Empty() {
		return ErrEmptyFrame
	}
	if src.Channels() != 3 {
		return errors.Errorf("enhance expects 3 channels, got %d", src.Channels())
	}

	gocv.BilateralFilter(src, &e.smooth, e.cfg.Diameter, e.cfg.SigmaColor, e.cfg.SigmaSpace)

	channels := gocv.Split(e.smooth)
	for i := range channels {
		gocv.Filter2D(channels[i], &channels[i], -1, e.kernel, image.Pt(-1, -1), 0, gocv.BorderDefault)
	}
	gocv.Merge(channels, &e.sharp)
	closeAll(channels)

	gocv.CvtColor(e.sharp, &e.hsv, gocv.ColorBGRToHSV)
	planes := gocv.Split(e.hsv)
	gocv.EqualizeHist(planes[1], &planes[1])
	gocv.Merge(planes, &e.hsv)
	closeAll(planes)
	gocv.CvtColor(e.hsv, &e.rgb, gocv.ColorHSVToRGB)

	gocv.BilateralFilter(e.rgb, dst, e.cfg.Diameter, e.cfg.SigmaColor, e.cfg.SigmaSpace)
	return nil
}

// Close releases the kernel and scratch buffers.
func (e *Enhancer) Close() error {
	for _, m := range []*gocv.Mat{&e.smooth, &e.sharp, &e.hsv, &e.rgb} {
		m.Close()
	}
	return e.kernel.Close()
}

// ToRGB reorders a BGR frame to RGB. It is the whole color stage when
// enhancement is disabled.
func ToRGB(src gocv.Mat, dst *gocv.Mat) error {
	if src.Empty() {
		return ErrEmptyFrame
	}
	gocv.CvtColor(src, dst, gocv.ColorBGRToRGB)
	return nil
}

func closeAll(mats []gocv.Mat) {
	for i := range mats {
		mats[i].Close()
	}
}
