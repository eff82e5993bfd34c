//go:build cuda

package accel

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv/cuda"
)

func bind(ordinal int) (Device, error) {
	count := cuda.GetCudaEnabledDeviceCount()
	if ordinal >= count {
		return Device{}, errors.Wrapf(ErrBind, "ordinal %d of %d cuda devices", ordinal, count)
	}
	cuda.SetDevice(ordinal)
	return Device{Ordinal: ordinal, Backend: CUDABackend}, nil
}
