package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// readFloat32File reads a little-endian float32 file of exactly n values.
func readFloat32File(path string, n int) ([]float32, error) {
	//nolint:gosec // G304: input paths come from the operator.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) != n*4 {
		return nil, fmt.Errorf("%s: %d bytes, want %d (%d float32 values)", path, len(data), n*4, n)
	}

	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out, nil
}

// writeFloat32s writes values as little-endian float32.
func writeFloat32s(w io.Writer, values []float32) error {
	bw := bufio.NewWriter(w)
	var buf [4]byte
	for _, v := range values {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		if _, err := bw.Write(buf[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// writeFloat32File writes values to path, or to stdout when path is "-".
func writeFloat32File(path string, values []float32, stdout io.Writer) (err error) {
	if path == "-" {
		return writeFloat32s(stdout, values)
	}

	//nolint:gosec // G304: output paths come from the operator.
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return writeFloat32s(f, values)
}
