package capture

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// DefaultDirectoryFPS is reported for frame directories when no rate is given.
const DefaultDirectoryFPS = 30.0

// FrameFile is one still frame of a frame directory.
type FrameFile struct {
	// Path is the path to the image file.
	Path string
	// Frame is the number parsed from the frame-N file name.
	Frame int
}

// ListFrameFiles returns the frame-N.{jpg,jpeg,png,bmp} files of dir in frame order.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []FrameFile: The frames, sorted by frame number.
// - error: Error if the directory cannot be read or a name has no frame number.
func ListFrameFiles(dir string) ([]FrameFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read frame directory %s", dir)
	}

	var frames []FrameFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		switch ext {
		case ".jpg", ".jpeg", ".png", ".bmp":
		default:
			continue
		}

		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		n, err := strconv.Atoi(strings.TrimPrefix(stem, "frame-"))
		if err != nil {
			return nil, errors.Wrapf(err, "frame number of %s", entry.Name())
		}
		frames = append(frames, FrameFile{Path: filepath.Join(dir, entry.Name()), Frame: n})
	}

	sort.Slice(frames, func(i, j int) bool {
		return frames[i].Frame < frames[j].Frame
	})

	return frames, nil
}

// DirectorySource replays a frame directory once, in frame order.
type DirectorySource struct {
	frames []FrameFile
	next   int
	props  Props
}

// OpenDirectory lists dir and decodes its first frame for dimensions.
//
// Arguments:
// - dir: The frame directory.
// - fps: The rate to report, DefaultDirectoryFPS when zero.
//
// Returns:
// - *DirectorySource: The source, positioned at the first frame.
// - error: ErrOpen when the directory is unreadable, empty or its first frame is undecodable.
func OpenDirectory(dir string, fps float64) (*DirectorySource, error) {
	frames, err := ListFrameFiles(dir)
	if err != nil {
		return nil, errors.Wrapf(ErrOpen, "%v", err)
	}
	if len(frames) == 0 {
		return nil, errors.Wrapf(ErrOpen, "no frames in %s", dir)
	}
	if fps <= 0 {
		fps = DefaultDirectoryFPS
	}

	first, err := decode(frames[0].Path)
	if err != nil {
		return nil, errors.Wrapf(ErrOpen, "%v", err)
	}
	defer first.Close()

	return &DirectorySource{
		frames: frames,
		props: Props{
			FPS:    fps,
			FourCC: "MJPG",
			Width:  first.Cols(),
			Height: first.Rows(),
		},
	}, nil
}

// Read implements Source. It returns false once every frame has been read
// or when a frame fails to decode.
func (d *DirectorySource) Read(dst *gocv.Mat) bool {
	if d.next >= len(d.frames) {
		return false
	}
	img, err := decode(d.frames[d.next].Path)
	d.next++
	if err != nil {
		return false
	}
	defer img.Close()
	img.CopyTo(dst)
	return true
}

// Props implements Source.
func (d *DirectorySource) Props() Props {
	return d.props
}

// Len returns the number of frames in the directory.
func (d *DirectorySource) Len() int {
	return len(d.frames)
}

// Close implements Source.
func (d *DirectorySource) Close() error {
	d.next = len(d.frames)
	return nil
}

func decode(path string) (gocv.Mat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return gocv.NewMat(), errors.Wrapf(err, "read %s", path)
	}
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return img, errors.Wrapf(err, "decode %s", path)
	}
	if img.Empty() {
		return img, errors.Errorf("decode %s: empty image", path)
	}
	return img, nil
}
