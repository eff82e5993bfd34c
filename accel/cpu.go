//go:build !cuda

package accel

// bind accepts any ordinal on the host backend. Ordinals still partition
// instances in logs.
func bind(ordinal int) (Device, error) {
	return Device{Ordinal: ordinal, Backend: CPUBackend}, nil
}
