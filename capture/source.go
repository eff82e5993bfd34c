// Package capture opens the frame sources a stabilizer instance reads from:
// capture devices, video files or streams, and directories of still frames.
package capture

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrOpen is returned when a source cannot be opened.
var ErrOpen = errors.New("can't init input")

// Kind identifies how a source string was interpreted.
type Kind int

const (
	// KindDevice is a numeric capture device index.
	KindDevice Kind = iota
	// KindFile is a video file path or stream URI.
	KindFile
	// KindDirectory is a directory of frame-N image files.
	KindDirectory
)

func (k Kind) String() string {
	switch k {
	case KindDevice:
		return "device"
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// Location is a parsed source string.
type Location struct {
	Kind   Kind
	Device int
	Path   string
}

// Props describes the stream a source produces.
type Props struct {
	FPS    float64
	FourCC string
	Width  int
	Height int
}

// Source produces BGR frames, one per Read.
type Source interface {
	// Read decodes the next frame into dst and reports whether one was available.
	Read(dst *gocv.Mat) bool
	Props() Props
	Close() error
}

// ParseSource interprets s. A string that parses entirely as an integer is a
// device index; an existing directory is a frame directory; anything else
// is handed to the video backend as a path or URI.
func ParseSource(s string) Location {
	if id, err := strconv.Atoi(s); err == nil {
		return Location{Kind: KindDevice, Device: id}
	}
	if info, err := os.Stat(s); err == nil && info.IsDir() {
		return Location{Kind: KindDirectory, Path: s}
	}
	return Location{Kind: KindFile, Path: s}
}

// Open parses s and opens the matching source.
//
// Arguments:
//   - s: A device index, a video path/URI or a frame directory.
//
// Returns:
//   - Source: The opened source. Call Close when done.
//   - error: ErrOpen wrapped with the source string on failure.
func Open(s string) (Source, error) {
	loc := ParseSource(s)
	if loc.Kind == KindDirectory {
		src, err := OpenDirectory(loc.Path, 0)
		if err != nil {
			return nil, err
		}
		return src, nil
	}

	src, err := OpenVideo(loc)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// VideoSource reads from a gocv capture device or file.
type VideoSource struct {
	capture *gocv.VideoCapture
}

// OpenVideo opens a device or file location.
func OpenVideo(loc Location) (*VideoSource, error) {
	var (
		vc  *gocv.VideoCapture
		err error
	)
	switch loc.Kind {
	case KindDevice:
		vc, err = gocv.VideoCaptureDevice(loc.Device)
	case KindFile:
		vc, err = gocv.VideoCaptureFile(loc.Path)
	default:
		return nil, errors.Wrapf(ErrOpen, "%s is not a video location", loc.Kind)
	}
	if err != nil {
		return nil, errors.Wrapf(ErrOpen, "%s %s%s: %v", loc.Kind, loc.Path, deviceSuffix(loc), err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, errors.Wrapf(ErrOpen, "%s %s%s not opened", loc.Kind, loc.Path, deviceSuffix(loc))
	}
	return &VideoSource{capture: vc}, nil
}

func deviceSuffix(loc Location) string {
	if loc.Kind != KindDevice {
		return ""
	}
	return strconv.Itoa(loc.Device)
}

// Read implements Source.
func (v *VideoSource) Read(dst *gocv.Mat) bool {
	return v.capture.Read(dst) && !dst.Empty()
}

// Props implements Source.
func (v *VideoSource) Props() Props {
	return Props{
		FPS:    v.capture.Get(gocv.VideoCaptureFPS),
		FourCC: v.capture.CodecString(),
		Width:  int(v.capture.Get(gocv.VideoCaptureFrameWidth)),
		Height: int(v.capture.Get(gocv.VideoCaptureFrameHeight)),
	}
}

// Close implements Source.
func (v *VideoSource) Close() error {
	return v.capture.Close()
}
