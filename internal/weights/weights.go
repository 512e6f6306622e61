// Package weights provides the weight and bias tables for the conv1 layer.
//
// Tables are stored in SafeTensors format with two F32 tensors:
//
//	conv1.weight  [3, 3, 1, 32]  laid out [ky][kx][ic][oc]
//	conv1.bias    [32]
//
// Any other tensors in the file are ignored, so a full classifier checkpoint
// can be loaded directly.
package weights

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"sync"

	"github.com/born-ml/aslconv/internal/conv1"
)

// DefaultSeed seeds the compiled-in table returned by Default.
const DefaultSeed = 20240817

// Load reads conv1 tables and the file metadata from a SafeTensors file.
func Load(path string) (*conv1.Params, map[string]string, error) {
	//nolint:gosec // G304: weight paths come from the operator.
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("weights: failed to open file: %w", err)
	}
	defer f.Close()

	return Read(bufio.NewReader(f))
}

// Read decodes conv1 tables from a SafeTensors stream.
func Read(r io.Reader) (*conv1.Params, map[string]string, error) {
	st, err := decode(r)
	if err != nil {
		return nil, nil, err
	}

	w, err := st.float32s(conv1.WeightName, conv1.WeightShape())
	if err != nil {
		return nil, nil, err
	}
	b, err := st.float32s(conv1.BiasName, conv1.BiasShape())
	if err != nil {
		return nil, nil, err
	}

	p, err := conv1.NewParams(w, b)
	if err != nil {
		return nil, nil, err
	}
	return p, st.metadata, nil
}

// Save writes p to path in SafeTensors format.
func Save(path string, p *conv1.Params, metadata map[string]string) (err error) {
	//nolint:gosec // G304: weight paths come from the operator.
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("weights: failed to create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("weights: failed to close file: %w", cerr)
		}
	}()

	bw := bufio.NewWriter(f)
	if err := Write(bw, p, metadata); err != nil {
		return err
	}
	return bw.Flush()
}

// Write encodes p as SafeTensors.
func Write(w io.Writer, p *conv1.Params, metadata map[string]string) error {
	if p == nil {
		return fmt.Errorf("weights: %w: nil params", conv1.ErrShapeMismatch)
	}
	return encode(w, map[string]tensor{
		conv1.WeightName: {shape: conv1.WeightShape(), data: p.FlatWeights()},
		conv1.BiasName:   {shape: conv1.BiasShape(), data: p.FlatBias()},
	}, metadata)
}

// HeNormal returns tables with He-normal weights and zero bias.
//
// Weights are drawn from N(0, 2/fanIn) with fanIn = K*K*ImgC, from a
// generator seeded with seed, so equal seeds give equal tables.
func HeNormal(seed int64) *conv1.Params {
	//nolint:gosec // Using math/rand for weight initialization (not security-critical)
	rng := rand.New(rand.NewSource(seed))
	stddev := math.Sqrt(2.0 / float64(conv1.K*conv1.K*conv1.ImgC))

	p := &conv1.Params{}
	for ky := range p.Weights {
		for kx := range p.Weights[ky] {
			for ic := range p.Weights[ky][kx] {
				for oc := range p.Weights[ky][kx][ic] {
					p.Weights[ky][kx][ic][oc] = float32(rng.NormFloat64() * stddev)
				}
			}
		}
	}
	return p
}

var defaultParams = sync.OnceValue(func() *conv1.Params {
	return HeNormal(DefaultSeed)
})

// Default returns the built-in tables. Trained tables are supplied with Load;
// these exist so the layer runs without a weights file. Each call returns a
// fresh copy.
func Default() *conv1.Params {
	return defaultParams().Clone()
}
