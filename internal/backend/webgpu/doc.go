// Package webgpu runs the conv1 layer on the GPU through WebGPU.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
//
// The whole layer is one compute shader: each invocation owns one pooled
// output cell, computes the four conv sums of its 2x2 block in the same
// bias-first, ky/kx/ic order as the CPU kernel, applies ReLU and takes the
// max. GPUs may contract multiply-add into FMA, so results agree with the
// CPU kernel to within float32 rounding rather than bit for bit.
//
// The backend is only built on Windows, where the wgpu_native library is
// loaded without cgo. Elsewhere New returns ErrUnavailable.
package webgpu

import "errors"

// ErrUnavailable is returned when no WebGPU adapter can be used.
var ErrUnavailable = errors.New("webgpu: not available")

// workgroupSize must match @workgroup_size in conv1Shader.
const workgroupSize = 64
