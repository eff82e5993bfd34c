//go:build !cuda

package accel

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBind(t *testing.T) {
	dev, err := Bind(3)
	require.NoError(t, err)
	assert.Equal(t, Device{Ordinal: 3, Backend: CPUBackend}, dev)

	_, err = Bind(-1)
	assert.Equal(t, ErrBind, errors.Cause(err))
}
