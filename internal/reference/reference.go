// Package reference is an independent float64 model of the conv1 layer,
// used to cross-check the CPU and GPU kernels.
//
// It computes the convolution with im2col and a dense matrix product
// (gonum), so it shares no indexing code with the kernels it checks.
package reference

import (
	"fmt"
	"math"

	"github.com/born-ml/aslconv/internal/conv1"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const patchLen = conv1.K * conv1.K * conv1.ImgC

// Apply returns the float64 layer output for input, in conv1 output order.
func Apply(p *conv1.Params, input []float32) ([]float64, error) {
	if p == nil {
		return nil, fmt.Errorf("reference: %w: nil params", conv1.ErrShapeMismatch)
	}
	if len(input) != conv1.InputLen {
		return nil, fmt.Errorf("reference: %w: got %d elements, want %d",
			conv1.ErrInvalidInputSize, len(input), conv1.InputLen)
	}

	cols := im2col(input)
	weights := mat.NewDense(patchLen, conv1.OutC, toFloat64(p.FlatWeights()))

	// [positions, patch] x [patch, OutC] -> [positions, OutC]
	var conv mat.Dense
	conv.Mul(cols, weights)

	bias := toFloat64(p.FlatBias())
	act := make([]float64, conv1.ConvSize*conv1.ConvSize*conv1.OutC)
	for pos := 0; pos < conv1.ConvSize*conv1.ConvSize; pos++ {
		row := act[pos*conv1.OutC : (pos+1)*conv1.OutC]
		mat.Row(row, pos, &conv)
		floats.Add(row, bias)
		// NaN maps to 0, as in conv1.
		for i, v := range row {
			if v > 0 {
				row[i] = v
			} else {
				row[i] = 0
			}
		}
	}

	return maxPool(act), nil
}

// im2col lays every 3x3 patch out as one row, columns in (ky, kx, ic) order.
func im2col(input []float32) *mat.Dense {
	positions := conv1.ConvSize * conv1.ConvSize
	buf := make([]float64, positions*patchLen)

	idx := 0
	for y := 0; y < conv1.ConvSize; y++ {
		for x := 0; x < conv1.ConvSize; x++ {
			for ky := 0; ky < conv1.K; ky++ {
				for kx := 0; kx < conv1.K; kx++ {
					for ic := 0; ic < conv1.ImgC; ic++ {
						buf[idx] = float64(input[conv1.InputIndex(y+ky, x+kx, ic)])
						idx++
					}
				}
			}
		}
	}
	return mat.NewDense(positions, patchLen, buf)
}

// maxPool scans each block top-left, top-right, bottom-left, bottom-right
// and keeps the first value unless a later one is strictly greater.
func maxPool(act []float64) []float64 {
	at := func(y, x, oc int) float64 {
		return act[(y*conv1.ConvSize+x)*conv1.OutC+oc]
	}

	out := make([]float64, conv1.OutputLen)
	for y := 0; y < conv1.PooledSize; y++ {
		for x := 0; x < conv1.PooledSize; x++ {
			for oc := 0; oc < conv1.OutC; oc++ {
				m := at(2*y, 2*x, oc)
				for _, v := range [...]float64{
					at(2*y, 2*x+1, oc),
					at(2*y+1, 2*x, oc),
					at(2*y+1, 2*x+1, oc),
				} {
					if v > m {
						m = v
					}
				}
				out[conv1.OutputIndex(y, x, oc)] = m
			}
		}
	}
	return out
}

func toFloat64(src []float32) []float64 {
	dst := make([]float64, len(src))
	for i, v := range src {
		dst[i] = float64(v)
	}
	return dst
}

// Compare returns the largest absolute difference between got and want
// and the index where it occurs. A length mismatch or NaN yields +Inf.
func Compare(got []float32, want []float64) (maxAbs float64, idx int) {
	if len(got) < len(want) {
		return math.Inf(1), len(got)
	}
	idx = -1
	for i, w := range want {
		d := math.Abs(float64(got[i]) - w)
		if math.IsNaN(d) {
			return math.Inf(1), i
		}
		if d > maxAbs || idx < 0 {
			maxAbs, idx = d, i
		}
	}
	return maxAbs, idx
}
