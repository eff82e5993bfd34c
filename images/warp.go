package images

import (
	"image"
	"image/color"

	"github.com/nvr-ai/go-stabilize/motion"
	"gocv.io/x/gocv"
)

// Warper applies the per-frame compensation followed by the fixed crop/zoom.
//
// The crop matrix is computed from the first frame's dimensions and reused,
// bit-for-bit, for every later frame.
type Warper struct {
	scale float64
	crop  gocv.Mat
	size  image.Point
	stage gocv.Mat
}

// NewWarper creates a warper zooming by scale (>= 1) about the frame center.
func NewWarper(scale float64) *Warper {
	return &Warper{
		scale: scale,
		crop:  gocv.NewMat(),
		stage: gocv.NewMat(),
	}
}

// Apply warps src by the compensation for residual, then crops, into dst.
// Output dimensions equal the input dimensions.
func (w *Warper) Apply(src gocv.Mat, residual motion.Delta, dst *gocv.Mat) error {
	if src.Empty() {
		return ErrEmptyFrame
	}

	if w.crop.Empty() {
		w.size = image.Pt(src.Cols(), src.Rows())
		w.crop.Close()
		w.crop = gocv.GetRotationMatrix2D(image.Pt(src.Cols()/2, src.Rows()/2), 0, w.scale)
	}

	size := image.Pt(src.Cols(), src.Rows())

	comp := affineToMat(motion.Compensation(residual))
	defer comp.Close()

	gocv.WarpAffineWithParams(src, &w.stage, comp, size,
		gocv.InterpolationLinear|gocv.WarpInverseMap, gocv.BorderConstant, color.RGBA{})
	gocv.WarpAffine(w.stage, dst, w.crop, size)
	return nil
}

// CropMatrix returns the crop transform once it has been computed.
func (w *Warper) CropMatrix() (motion.Affine, bool) {
	return affineFromMat(w.crop)
}

// Size returns the frame dimensions the crop was computed for.
func (w *Warper) Size() image.Point {
	return w.size
}

// Close releases the crop matrix and staging buffer.
func (w *Warper) Close() error {
	w.stage.Close()
	return w.crop.Close()
}
