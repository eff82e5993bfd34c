package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/go-stabilize/images"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestParseSource(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		in   string
		want Location
	}{
		{"device zero", "0", Location{Kind: KindDevice, Device: 0}},
		{"device two", "2", Location{Kind: KindDevice, Device: 2}},
		{"file", "clip.mp4", Location{Kind: KindFile, Path: "clip.mp4"}},
		{"uri", "rtsp://cam/stream", Location{Kind: KindFile, Path: "rtsp://cam/stream"}},
		{"numeric prefix is a path", "0.avi", Location{Kind: KindFile, Path: "0.avi"}},
		{"directory", dir, Location{Kind: KindDirectory, Path: dir}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSource(tt.in))
		})
	}
}

func TestListFrameFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"frame-10.jpg", "frame-2.png", "frame-1.bmp", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "frame-3.jpg"), 0o755))

	frames, err := ListFrameFiles(dir)
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{frames[0].Frame, frames[1].Frame, frames[2].Frame})
	assert.Equal(t, filepath.Join(dir, "frame-10.jpg"), frames[2].Path)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "cover.jpg"), []byte("x"), 0o644))
	_, err = ListFrameFiles(dir)
	assert.Error(t, err)
}

func TestDirectorySource(t *testing.T) {
	dir := t.TempDir()
	gen := images.NewPatternGenerator(64, 48)
	for i := 0; i < 3; i++ {
		frame := gen.Frame(i, 0)
		require.True(t, gocv.IMWrite(filepath.Join(dir, fmt.Sprintf("frame-%d.png", i)), frame))
		frame.Close()
	}

	src, err := Open(dir)
	require.NoError(t, err)
	defer src.Close()

	props := src.Props()
	assert.Equal(t, 64, props.Width)
	assert.Equal(t, 48, props.Height)
	assert.Equal(t, DefaultDirectoryFPS, props.FPS)

	mat := gocv.NewMat()
	defer mat.Close()

	reads := 0
	for src.Read(&mat) {
		reads++
		assert.Equal(t, 3, mat.Channels())
	}
	assert.Equal(t, 3, reads)
	assert.False(t, src.Read(&mat))
}

func TestOpenFailures(t *testing.T) {
	t.Run("empty directory", func(t *testing.T) {
		_, err := OpenDirectory(t.TempDir(), 0)
		assert.Equal(t, ErrOpen, errors.Cause(err))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Open(filepath.Join(t.TempDir(), "missing.avi"))
		assert.Equal(t, ErrOpen, errors.Cause(err))
	})
}
