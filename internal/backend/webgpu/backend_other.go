//go:build !windows

package webgpu

import (
	"fmt"
	"runtime"

	"github.com/born-ml/aslconv/internal/conv1"
)

var _ conv1.Applier = (*Backend)(nil)

// Backend is a placeholder on platforms without the go-webgpu loader.
type Backend struct{}

// New always fails with ErrUnavailable on this platform.
func New(*conv1.Params) (*Backend, error) {
	return nil, fmt.Errorf("%w: unsupported on %s", ErrUnavailable, runtime.GOOS)
}

// IsAvailable reports false on this platform.
func IsAvailable() bool { return false }

// Name returns the backend name.
func (b *Backend) Name() string { return "webgpu" }

// Apply always fails with ErrUnavailable.
func (b *Backend) Apply(input, output []float32) error {
	return ErrUnavailable
}

// Release is a no-op.
func (b *Backend) Release() {}
