//go:build cuda

package images

import (
	"image"
	"image/color"

	"github.com/nvr-ai/go-stabilize/motion"
	"gocv.io/x/gocv"
	"gocv.io/x/gocv/cuda"
)

// CUDAWarper is the Warper on the bound CUDA device. The frame is uploaded
// once, both warps run in device memory, and only the result is downloaded
// for presentation.
type CUDAWarper struct {
	scale float64
	crop  gocv.Mat
	size  image.Point
	src   cuda.GpuMat
	stage cuda.GpuMat
	out   cuda.GpuMat
}

// NewCUDAWarper creates a device warper zooming by scale (>= 1).
func NewCUDAWarper(scale float64) *CUDAWarper {
	return &CUDAWarper{
		scale: scale,
		crop:  gocv.NewMat(),
		src:   cuda.NewGpuMat(),
		stage: cuda.NewGpuMat(),
		out:   cuda.NewGpuMat(),
	}
}

// Apply warps src by the compensation for residual, then crops, into dst.
func (w *CUDAWarper) Apply(src gocv.Mat, residual motion.Delta, dst *gocv.Mat) error {
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

	w.src.Upload(src)
	cuda.WarpAffine(w.src, &w.stage, comp, size,
		cuda.InterpolationLinear|cuda.InterpolationFlags(gocv.WarpInverseMap), cuda.BorderConstant, color.RGBA{})
	cuda.WarpAffine(w.stage, &w.out, w.crop, size,
		cuda.InterpolationLinear, cuda.BorderConstant, color.RGBA{})
	w.out.Download(dst)
	return nil
}

// CropMatrix returns the crop transform once it has been computed.
func (w *CUDAWarper) CropMatrix() (motion.Affine, bool) {
	return affineFromMat(w.crop)
}

// Close releases the device buffers and the crop matrix.
func (w *CUDAWarper) Close() error {
	w.src.Close()
	w.stage.Close()
	w.out.Close()
	return w.crop.Close()
}
