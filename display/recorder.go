package display

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// RecorderConfig describes the debug recording of one instance.
type RecorderConfig struct {
	// Name keys the window title and the "<Name>.avi" output file.
	Name string
	// Dir is the directory the video file is written to.
	Dir string
	// FourCC is the codec, usually the source's own.
	FourCC string
	// FPS is the output rate, usually the source's own.
	FPS float64
	// Width and Height are the dimensions of one input frame.
	Width  int
	Height int
	// Window also shows the composite in a highgui window.
	Window bool
}

// Recorder writes a side-by-side (original | stabilized) composite of every
// frame to a video file, and optionally to a window. It only observes the
// loop.
type Recorder struct {
	writer    *gocv.VideoWriter
	window    *gocv.Window
	bgr       gocv.Mat
	composite gocv.Mat
	frames    int
}

// NewRecorder opens the output file, twice as wide as the input.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.Errorf("recorder %s: invalid size %dx%d", cfg.Name, cfg.Width, cfg.Height)
	}

	fourcc := cfg.FourCC
	if len(fourcc) != 4 {
		fourcc = "MJPG"
	}
	fps := cfg.FPS
	if fps <= 0 {
		fps = 30
	}

	path := filepath.Join(cfg.Dir, fmt.Sprintf("%s.avi", cfg.Name))

	writer, err := gocv.VideoWriterFile(path, fourcc, fps, cfg.Width*2, cfg.Height, true)
	if err != nil {
		return nil, errors.Wrapf(err, "open recording %s", path)
	}

	r := &Recorder{
		writer:    writer,
		bgr:       gocv.NewMat(),
		composite: gocv.NewMat(),
	}
	if cfg.Window {
		r.window = gocv.NewWindow(cfg.Name)
	}
	return r, nil
}

// Record writes original (BGR) next to stabilized (RGB).
func (r *Recorder) Record(original, stabilized gocv.Mat) error {
	if original.Empty() || stabilized.Empty() {
		return errors.New("recorder: empty frame")
	}

	gocv.CvtColor(stabilized, &r.bgr, gocv.ColorRGBToBGR)
	gocv.Hconcat(original, r.bgr, &r.composite)

	if err := r.writer.Write(r.composite); err != nil {
		return errors.Wrap(err, "write composite")
	}
	r.frames++

	if r.window != nil {
		r.window.IMShow(r.composite)
		r.window.WaitKey(1)
	}
	return nil
}

// Frames returns the number of composites written.
func (r *Recorder) Frames() int {
	return r.frames
}

// Close flushes the video file and closes the window.
func (r *Recorder) Close() error {
	r.bgr.Close()
	r.composite.Close()
	if r.window != nil {
		r.window.Close()
	}
	return r.writer.Close()
}
