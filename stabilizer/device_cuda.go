//go:build cuda

package stabilizer

import (
	"github.com/nvr-ai/go-stabilize/accel"
	"github.com/nvr-ai/go-stabilize/config"
	"github.com/nvr-ai/go-stabilize/images"
)

// forDevice moves the warp onto a bound CUDA device unless the caller
// supplied its own warper.
func (s Stages) forDevice(dev accel.Device) Stages {
	if dev.Backend != accel.CUDABackend || s.NewWarper != nil {
		return s
	}
	s.NewWarper = func(cfg config.Config) (Warper, error) {
		return images.NewCUDAWarper(cfg.ScaleFactor), nil
	}
	return s
}
