//go:build !cuda

package stabilizer

import "github.com/nvr-ai/go-stabilize/accel"

// forDevice keeps every stage on the host.
func (s Stages) forDevice(accel.Device) Stages {
	return s
}
