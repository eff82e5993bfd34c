// Package accel binds a stabilizer instance to its accelerator device before
// any frame work starts.
package accel

import (
	"github.com/pkg/errors"
)

// Backend names the execution backend a device runs on.
type Backend string

const (
	// CPUBackend runs every stage on the host.
	CPUBackend Backend = "cpu"
	// CUDABackend runs on an NVIDIA device selected through OpenCV's CUDA module.
	CUDABackend Backend = "cuda"
)

// ErrBind is returned when a device ordinal cannot be selected.
var ErrBind = errors.New("can't bind device")

// Device is the accelerator an instance was bound to.
type Device struct {
	Ordinal int
	Backend Backend
}

// Bind selects the device with the given ordinal for the calling instance.
// It must run once, before the first frame is read.
//
// Arguments:
//   - ordinal: The zero-based device index.
//
// Returns:
//   - Device: The bound device.
//   - error: ErrBind when the ordinal is negative or the backend rejects it.
func Bind(ordinal int) (Device, error) {
	if ordinal < 0 {
		return Device{}, errors.Wrapf(ErrBind, "ordinal %d", ordinal)
	}
	return bind(ordinal)
}
