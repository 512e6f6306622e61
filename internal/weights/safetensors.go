package weights

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"sort"

	"github.com/born-ml/aslconv/internal/conv1"
)

// SafeTensors format:
// [8 bytes: header_size (uint64 LE)]
// [header_size bytes: JSON header]
// [tensor data: raw bytes]

// maxHeaderSize bounds the JSON header; a conv1 header is a few hundred bytes.
const maxHeaderSize = 1 << 20

// Errors returned by the safetensors codec.
var (
	ErrMissingTensor  = errors.New("weights: tensor not found")
	ErrHeaderTooLarge = errors.New("weights: header exceeds maximum size")
	ErrBadOffsets     = errors.New("weights: invalid data offsets")
)

// tensorInfo describes one tensor in the header.
type tensorInfo struct {
	DType       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"` // [start, end) relative to data section
}

// file is a decoded safetensors file held in memory.
type file struct {
	metadata map[string]string
	tensors  map[string]tensorInfo
	data     []byte
}

func decode(r io.Reader) (*file, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, fmt.Errorf("weights: failed to read header size: %w", err)
	}
	if headerSize > maxHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, fmt.Errorf("weights: failed to read header: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(headerBytes, &raw); err != nil {
		return nil, fmt.Errorf("weights: failed to parse header JSON: %w", err)
	}

	f := &file{tensors: make(map[string]tensorInfo)}
	for key, value := range raw {
		if key == "__metadata__" {
			if err := json.Unmarshal(value, &f.metadata); err != nil {
				return nil, fmt.Errorf("weights: failed to unmarshal metadata: %w", err)
			}
			continue
		}
		var info tensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return nil, fmt.Errorf("weights: failed to unmarshal tensor %s: %w", key, err)
		}
		f.tensors[key] = info
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("weights: failed to read tensor data: %w", err)
	}
	f.data = data
	return f, nil
}

// float32s returns the F32 payload of name after checking dtype, shape and
// byte length against the layer geometry.
func (f *file) float32s(name string, shape []int) ([]float32, error) {
	t, ok := f.tensors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingTensor, name)
	}
	if t.DType != "F32" {
		return nil, &conv1.ShapeError{Tensor: name, Expected: shape, Actual: t.Shape,
			Details: fmt.Sprintf("dtype %s, want F32", t.DType)}
	}
	if !slices.Equal(t.Shape, shape) {
		return nil, &conv1.ShapeError{Tensor: name, Expected: shape, Actual: t.Shape}
	}

	start, end := t.DataOffsets[0], t.DataOffsets[1]
	if start < 0 || end < start || end > int64(len(f.data)) {
		return nil, fmt.Errorf("%w: tensor %s [%d, %d) in %d bytes", ErrBadOffsets, name, start, end, len(f.data))
	}
	if want := int64(numElements(shape) * 4); end-start != want {
		return nil, &conv1.ShapeError{Tensor: name, Expected: shape, Actual: t.Shape,
			Details: fmt.Sprintf("byte length %d, want %d", end-start, want)}
	}

	buf := f.data[start:end]
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out, nil
}

// tensor is one entry to encode.
type tensor struct {
	shape []int
	data  []float32
}

func encode(w io.Writer, tensors map[string]tensor, metadata map[string]string) error {
	// Sort tensor names alphabetically (SafeTensors requirement)
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(names)+1)
	if len(metadata) > 0 {
		header["__metadata__"] = metadata
	}

	var offset int64
	for _, name := range names {
		size := int64(len(tensors[name].data) * 4)
		header[name] = tensorInfo{
			DType:       "F32",
			Shape:       tensors[name].shape,
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("weights: failed to marshal header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("weights: failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("weights: failed to write header: %w", err)
	}

	for _, name := range names {
		data := tensors[name].data
		buf := make([]byte, len(data)*4)
		for i, v := range data {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("weights: failed to write tensor %s: %w", name, err)
		}
	}
	return nil
}

func numElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
