package weights

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/born-ml/aslconv/internal/conv1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rawFile builds a SafeTensors stream from an arbitrary header and payload.
func rawFile(t *testing.T, header map[string]any, data []byte) []byte {
	t.Helper()
	h, err := json.Marshal(header)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(len(h))))
	buf.Write(h)
	buf.Write(data)
	return buf.Bytes()
}

func TestSaveLoad(t *testing.T) {
	p := HeNormal(7)
	p.Bias[3] = 0.5
	path := filepath.Join(t.TempDir(), "conv1.safetensors")

	require.NoError(t, Save(path, p, map[string]string{"source": "test"}))

	loaded, meta, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, *p, *loaded)
	assert.Equal(t, "test", meta["source"])
}

func TestRead_IgnoresOtherTensors(t *testing.T) {
	p := HeNormal(1)
	var buf bytes.Buffer
	require.NoError(t, encode(&buf, map[string]tensor{
		conv1.WeightName: {shape: conv1.WeightShape(), data: p.FlatWeights()},
		conv1.BiasName:   {shape: conv1.BiasShape(), data: p.FlatBias()},
		"fc.weight":      {shape: []int{2, 2}, data: []float32{1, 2, 3, 4}},
	}, nil))

	loaded, meta, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, *p, *loaded)
	assert.Nil(t, meta)
}

func TestRead_ShapeMismatch(t *testing.T) {
	bias := make([]byte, conv1.OutC*4)
	weights := make([]byte, conv1.K*conv1.K*conv1.ImgC*conv1.OutC*4)
	wEnd := int64(len(weights))
	bEnd := wEnd + int64(len(bias))
	payload := append(append([]byte{}, weights...), bias...)

	tests := []struct {
		name   string
		weight map[string]any
		bias   map[string]any
		tensor string
	}{
		{
			name:   "transposed weight",
			weight: map[string]any{"dtype": "F32", "shape": []int{32, 1, 3, 3}, "data_offsets": []int64{0, wEnd}},
			bias:   map[string]any{"dtype": "F32", "shape": []int{32}, "data_offsets": []int64{wEnd, bEnd}},
			tensor: conv1.WeightName,
		},
		{
			name:   "f64 weight",
			weight: map[string]any{"dtype": "F64", "shape": []int{3, 3, 1, 32}, "data_offsets": []int64{0, wEnd}},
			bias:   map[string]any{"dtype": "F32", "shape": []int{32}, "data_offsets": []int64{wEnd, bEnd}},
			tensor: conv1.WeightName,
		},
		{
			name:   "short bias",
			weight: map[string]any{"dtype": "F32", "shape": []int{3, 3, 1, 32}, "data_offsets": []int64{0, wEnd}},
			bias:   map[string]any{"dtype": "F32", "shape": []int{16}, "data_offsets": []int64{wEnd, wEnd + 64}},
			tensor: conv1.BiasName,
		},
		{
			name:   "bias byte length",
			weight: map[string]any{"dtype": "F32", "shape": []int{3, 3, 1, 32}, "data_offsets": []int64{0, wEnd}},
			bias:   map[string]any{"dtype": "F32", "shape": []int{32}, "data_offsets": []int64{wEnd, bEnd - 4}},
			tensor: conv1.BiasName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := rawFile(t, map[string]any{
				conv1.WeightName: tt.weight,
				conv1.BiasName:   tt.bias,
			}, payload)

			_, _, err := Read(bytes.NewReader(data))
			require.ErrorIs(t, err, conv1.ErrShapeMismatch)

			var shapeErr *conv1.ShapeError
			require.True(t, errors.As(err, &shapeErr))
			assert.Equal(t, tt.tensor, shapeErr.Tensor)
		})
	}
}

func TestRead_MissingTensor(t *testing.T) {
	data := rawFile(t, map[string]any{
		conv1.WeightName: map[string]any{"dtype": "F32", "shape": []int{3, 3, 1, 32}, "data_offsets": []int64{0, 1152}},
	}, make([]byte, 1152))

	_, _, err := Read(bytes.NewReader(data))
	require.ErrorIs(t, err, ErrMissingTensor)
	assert.Contains(t, err.Error(), conv1.BiasName)
}

func TestRead_BadOffsets(t *testing.T) {
	data := rawFile(t, map[string]any{
		conv1.WeightName: map[string]any{"dtype": "F32", "shape": []int{3, 3, 1, 32}, "data_offsets": []int64{0, 4096}},
		conv1.BiasName:   map[string]any{"dtype": "F32", "shape": []int{32}, "data_offsets": []int64{0, 128}},
	}, make([]byte, 1280))

	_, _, err := Read(bytes.NewReader(data))
	require.ErrorIs(t, err, ErrBadOffsets)
}

func TestRead_Truncated(t *testing.T) {
	_, _, err := Read(bytes.NewReader([]byte{1, 2, 3}))
	require.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(100)))
	buf.WriteString("{}")
	_, _, err = Read(&buf)
	require.Error(t, err)
}

func TestRead_HeaderTooLarge(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(maxHeaderSize+1)))
	_, _, err := Read(&buf)
	require.ErrorIs(t, err, ErrHeaderTooLarge)
}

func TestLoad_MissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.safetensors"))
	require.Error(t, err)
}

func TestWrite_NilParams(t *testing.T) {
	err := Write(&bytes.Buffer{}, nil, nil)
	require.ErrorIs(t, err, conv1.ErrShapeMismatch)
}

func TestHeNormal(t *testing.T) {
	a := HeNormal(42)
	b := HeNormal(42)
	c := HeNormal(43)

	assert.Equal(t, *a, *b)
	assert.NotEqual(t, *a, *c)
	assert.Equal(t, [conv1.OutC]float32{}, a.Bias)

	var sumSq float64
	w := a.FlatWeights()
	for _, v := range w {
		sumSq += float64(v) * float64(v)
	}
	// Expected variance is 2/9; 288 samples keep the estimate well inside this band.
	variance := sumSq / float64(len(w))
	assert.InDelta(t, 2.0/9.0, variance, 0.1)
}

func TestDefault_ReturnsCopies(t *testing.T) {
	a := Default()
	a.Bias[0] = 99
	b := Default()
	assert.Equal(t, float32(0), b.Bias[0])
	assert.Equal(t, *HeNormal(DefaultSeed), *b)
}
