package conv1

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParams_Layout(t *testing.T) {
	weights := make([]float32, K*K*ImgC*OutC)
	for i := range weights {
		weights[i] = float32(i)
	}
	bias := make([]float32, OutC)
	for i := range bias {
		bias[i] = float32(-i)
	}

	p, err := NewParams(weights, bias)
	require.NoError(t, err)

	// [ky][kx][ic][oc] with oc fastest.
	assert.Equal(t, float32(0), p.Weights[0][0][0][0])
	assert.Equal(t, float32(1), p.Weights[0][0][0][1])
	assert.Equal(t, float32(OutC), p.Weights[0][1][0][0])
	assert.Equal(t, float32(K*OutC), p.Weights[1][0][0][0])
	assert.Equal(t, float32(len(weights)-1), p.Weights[K-1][K-1][ImgC-1][OutC-1])
	assert.Equal(t, float32(-5), p.Bias[5])

	assert.Equal(t, weights, p.FlatWeights())
	assert.Equal(t, bias, p.FlatBias())
}

func TestNewParams_ShapeMismatch(t *testing.T) {
	tests := []struct {
		name    string
		weights int
		bias    int
		tensor  string
	}{
		{"short weights", K*K*ImgC*OutC - 1, OutC, WeightName},
		{"long weights", K*K*ImgC*OutC + OutC, OutC, WeightName},
		{"short bias", K * K * ImgC * OutC, OutC - 1, BiasName},
		{"no bias", K * K * ImgC * OutC, 0, BiasName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParams(make([]float32, tt.weights), make([]float32, tt.bias))
			require.ErrorIs(t, err, ErrShapeMismatch)

			var shapeErr *ShapeError
			require.True(t, errors.As(err, &shapeErr))
			assert.Equal(t, tt.tensor, shapeErr.Tensor)
			assert.Contains(t, err.Error(), tt.tensor)
		})
	}
}

func TestParams_CloneIsDeep(t *testing.T) {
	p := &Params{}
	p.Weights[2][1][0][3] = 4
	c := p.Clone()
	c.Weights[2][1][0][3] = 5
	c.Bias[0] = 1

	assert.Equal(t, float32(4), p.Weights[2][1][0][3])
	assert.Equal(t, float32(0), p.Bias[0])
}

func TestShapeError_Message(t *testing.T) {
	err := &ShapeError{Tensor: BiasName, Expected: BiasShape(), Actual: []int{31}, Details: "bad"}
	assert.Equal(t, `conv1: shape mismatch: tensor "conv1.bias": expected [32], got [31]: bad`, err.Error())
}
