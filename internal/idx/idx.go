// Package idx reads image files in the IDX format used by MNIST-style
// datasets and turns them into conv1 inputs.
//
// IDX file format for images:
//
//	magic number: 0x00000803 (2051)
//	number of images: 4 bytes
//	number of rows: 4 bytes
//	number of cols: 4 bytes
//	pixel data: unsigned bytes (0-255), row-major
package idx

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/aslconv/internal/conv1"
)

// ImageMagic is the IDX magic number for unsigned-byte 3-D data.
const ImageMagic = 2051

// maxPixels bounds count*rows*cols so a corrupt header cannot exhaust memory.
const maxPixels = 1 << 31

// Errors returned by the reader.
var (
	ErrInvalidMagic = errors.New("idx: invalid magic number")
	ErrOutOfRange   = errors.New("idx: image index out of range")
	ErrTooLarge     = errors.New("idx: dimensions too large")
)

// Images holds a decoded image set.
type Images struct {
	Rows, Cols int
	pixels     []byte
	count      int
}

// ReadImagesFile reads an IDX image file from disk.
func ReadImagesFile(path string) (*Images, error) {
	//nolint:gosec // G304: dataset paths come from the operator.
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadImages(bufio.NewReader(f))
}

// ReadImages decodes an IDX image stream.
func ReadImages(r io.Reader) (*Images, error) {
	var header [4]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("idx: failed to read header: %w", err)
	}
	magic, count, rows, cols := header[0], header[1], header[2], header[3]
	if magic != ImageMagic {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidMagic, magic, ImageMagic)
	}

	total := uint64(count) * uint64(rows) * uint64(cols)
	if total > maxPixels {
		return nil, fmt.Errorf("%w: %d x %d x %d", ErrTooLarge, count, rows, cols)
	}

	pixels := make([]byte, total)
	if _, err := io.ReadFull(r, pixels); err != nil {
		return nil, fmt.Errorf("idx: failed to read %d images: %w", count, err)
	}

	return &Images{
		Rows:   int(rows),
		Cols:   int(cols),
		pixels: pixels,
		count:  int(count),
	}, nil
}

// Len returns the number of images.
func (im *Images) Len() int { return im.count }

// Pixels returns the raw bytes of image i.
func (im *Images) Pixels(i int) ([]byte, error) {
	if i < 0 || i >= im.count {
		return nil, fmt.Errorf("%w: %d of %d", ErrOutOfRange, i, im.count)
	}
	size := im.Rows * im.Cols
	return im.pixels[i*size : (i+1)*size], nil
}

// Input returns image i as a conv1 input, pixels scaled to [0, 1].
func (im *Images) Input(i int) ([]float32, error) {
	if im.Rows != conv1.ImgH || im.Cols != conv1.ImgW {
		return nil, &conv1.ShapeError{
			Tensor:   "image",
			Expected: []int{conv1.ImgH, conv1.ImgW},
			Actual:   []int{im.Rows, im.Cols},
		}
	}
	px, err := im.Pixels(i)
	if err != nil {
		return nil, err
	}

	input := make([]float32, conv1.InputLen)
	for j, v := range px {
		input[j] = float32(v) / 255
	}
	return input, nil
}
