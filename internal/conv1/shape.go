package conv1

// Layer geometry. These are fixed for the layer and are not runtime parameters.
const (
	ImgH = 28 // input rows
	ImgW = 28 // input columns
	ImgC = 1  // input channels
	OutC = 32 // output channels
	K    = 3  // kernel size

	// ConvSize is the valid-convolution output size, ImgH-K+1.
	ConvSize = ImgH - K + 1

	// PoolWindow is both the pooling window and its stride.
	PoolWindow = 2

	// PooledSize is the spatial size after pooling.
	PooledSize = ConvSize / PoolWindow

	InputLen  = ImgH * ImgW * ImgC
	OutputLen = PooledSize * PooledSize * OutC
)

// Pooling must tile the conv output exactly; this fails to compile otherwise.
var _ [0]struct{} = [ConvSize % PoolWindow]struct{}{}

// Image is the structured view of one input, indexed [row][col][channel].
type Image [ImgH][ImgW][ImgC]float32

// Activations is the post-ReLU conv output, indexed [row][col][channel].
type Activations [ConvSize][ConvSize][OutC]float32

// InputIndex returns the flat input offset of (row, col, ch).
func InputIndex(row, col, ch int) int {
	return row*ImgW*ImgC + col*ImgC + ch
}

// OutputIndex returns the flat output offset of (row, col, oc).
func OutputIndex(row, col, oc int) int {
	return row*PooledSize*OutC + col*OutC + oc
}
