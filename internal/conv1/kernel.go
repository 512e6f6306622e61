package conv1

import (
	"fmt"
	"sync"

	"github.com/born-ml/aslconv/internal/parallel"
)

// Applier runs the layer on one input. Implemented by *Kernel and by the
// GPU backend.
type Applier interface {
	Apply(input, output []float32) error
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithParallel sets the worker pool used by the convolution stage.
func WithParallel(cfg parallel.Config) Option {
	return func(k *Kernel) {
		k.cfg = cfg
	}
}

// Kernel is the CPU implementation of the layer.
type Kernel struct {
	params *Params
	cfg    parallel.Config
}

// New creates a kernel over a private copy of p.
func New(p *Params, opts ...Option) (*Kernel, error) {
	if p == nil {
		return nil, &ShapeError{
			Tensor:   WeightName,
			Expected: WeightShape(),
			Details:  "nil params",
		}
	}
	k := &Kernel{
		params: p.Clone(),
		cfg:    parallel.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k, nil
}

// Params returns a copy of the tables the kernel was built with.
func (k *Kernel) Params() *Params {
	return k.params.Clone()
}

// Apply runs ingest, conv+ReLU and pooling, writing OutputLen values to output.
func (k *Kernel) Apply(input, output []float32) error {
	return apply(k.params, input, output, k.cfg)
}

// Apply runs the layer on the calling goroutine.
func Apply(p *Params, input, output []float32) error {
	if p == nil {
		return &ShapeError{Tensor: WeightName, Expected: WeightShape(), Details: "nil params"}
	}
	return apply(p, input, output, parallel.Sequential())
}

// ValidateBuffers checks both buffers against the layer geometry.
// Output may be longer than OutputLen; only the prefix is written.
func ValidateBuffers(input, output []float32) error {
	if len(input) != InputLen {
		return fmt.Errorf("%w: got %d elements, want %d", ErrInvalidInputSize, len(input), InputLen)
	}
	if len(output) < OutputLen {
		return fmt.Errorf("%w: got %d elements, need %d", ErrInvalidOutputCapacity, len(output), OutputLen)
	}
	return nil
}

// scratch is the per-invocation working set. Every cell is overwritten on
// each call, so pooled values never need clearing.
type scratch struct {
	img Image
	act Activations
}

var scratchPool = sync.Pool{
	New: func() any { return new(scratch) },
}

func apply(p *Params, input, output []float32, cfg parallel.Config) error {
	if err := ValidateBuffers(input, output); err != nil {
		return err
	}

	s := scratchPool.Get().(*scratch)
	defer scratchPool.Put(s)

	Ingest((*[InputLen]float32)(input), &s.img)
	ConvReLU(&s.img, p, &s.act, cfg)
	MaxPool(&s.act, (*[OutputLen]float32)(output[:OutputLen]))
	return nil
}

// Ingest copies a flat input into the structured view. Values are not changed.
func Ingest(input *[InputLen]float32, img *Image) {
	idx := 0
	for h := 0; h < ImgH; h++ {
		for w := 0; w < ImgW; w++ {
			for c := 0; c < ImgC; c++ {
				img[h][w][c] = input[idx]
				idx++
			}
		}
	}
}

// ConvReLU fills act with ReLU(bias + conv(img, weights)) for every
// (y, x, oc). Each (y, x) cell is owned by exactly one worker.
func ConvReLU(img *Image, p *Params, act *Activations, cfg parallel.Config) {
	parallel.ForGrid(ConvSize, ConvSize, func(y, x int) {
		cell := &act[y][x]
		for oc := 0; oc < OutC; oc++ {
			cell[oc] = relu(convAt(img, p, y, x, oc))
		}
	}, cfg)
}

// convAt returns the pre-activation sum at (y, x, oc).
func convAt(img *Image, p *Params, y, x, oc int) float32 {
	sum := p.Bias[oc]
	for ky := 0; ky < K; ky++ {
		for kx := 0; kx < K; kx++ {
			for ic := 0; ic < ImgC; ic++ {
				// float32() stops the compiler fusing into an FMA, so rounding
				// is the same on every GOARCH.
				sum += float32(img[y+ky][x+kx][ic] * p.Weights[ky][kx][ic][oc])
			}
		}
	}
	return sum
}

// relu maps anything that is not strictly positive, NaN included, to 0.
func relu(v float32) float32 {
	if v > 0 {
		return v
	}
	return 0
}

// MaxPool reduces each non-overlapping 2x2 block per channel to its maximum
// and writes the result in output order. Blocks are scanned top-left,
// top-right, bottom-left, bottom-right; a later value replaces the running
// max only when strictly greater.
func MaxPool(act *Activations, out *[OutputLen]float32) {
	idx := 0
	for y := 0; y < PooledSize; y++ {
		top := &act[2*y]
		bottom := &act[2*y+1]
		for x := 0; x < PooledSize; x++ {
			for oc := 0; oc < OutC; oc++ {
				m := top[2*x][oc]
				if v := top[2*x+1][oc]; v > m {
					m = v
				}
				if v := bottom[2*x][oc]; v > m {
					m = v
				}
				if v := bottom[2*x+1][oc]; v > m {
					m = v
				}
				out[idx] = m
				idx++
			}
		}
	}
}
