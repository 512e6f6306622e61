package conv1

import (
	"errors"
	"fmt"
)

// Contract violations reported by Apply and the table constructors.
var (
	ErrInvalidInputSize      = errors.New("conv1: invalid input size")
	ErrInvalidOutputCapacity = errors.New("conv1: invalid output capacity")
	ErrShapeMismatch         = errors.New("conv1: shape mismatch")
)

// ShapeError describes a weight or bias table whose shape does not match
// the layer geometry. It matches ErrShapeMismatch under errors.Is.
type ShapeError struct {
	Tensor   string // Table name (e.g., "conv1.weight")
	Expected []int  // Shape required by the layer
	Actual   []int  // Shape that was supplied
	Details  string // Additional details
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	msg := fmt.Sprintf("conv1: shape mismatch: tensor %q: expected %v, got %v", e.Tensor, e.Expected, e.Actual)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

// Unwrap lets errors.Is(err, ErrShapeMismatch) succeed.
func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}
