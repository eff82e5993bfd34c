//go:build cuda

package images

import (
	"testing"

	"github.com/nvr-ai/go-stabilize/motion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestCUDAWarperMatchesHost(t *testing.T) {
	frame := NewPatternGenerator(320, 240).Frame(0, 0)
	defer frame.Close()
	residual := motion.Delta{DX: 3, DY: -2, DTheta: 0.01}

	host := NewWarper(1.04)
	defer host.Close()
	want := gocv.NewMat()
	defer want.Close()
	require.NoError(t, host.Apply(frame, residual, &want))

	device := NewCUDAWarper(1.04)
	defer device.Close()
	got := gocv.NewMat()
	defer got.Close()
	require.NoError(t, device.Apply(frame, residual, &got))

	hostCrop, _ := host.CropMatrix()
	deviceCrop, ok := device.CropMatrix()
	require.True(t, ok)
	assert.Equal(t, hostCrop, deviceCrop)
	assert.LessOrEqual(t, maxChannelDiff(got, want), 2.0)
}
