// Package conv1 implements the first layer of the sign-language classifier:
// a 3x3 valid convolution over a 28x28x1 image into 32 channels, bias,
// ReLU, and 2x2 stride-2 max pooling, producing a 13x13x32 feature map.
//
// All shapes are compile-time constants. Buffers are flat float32 slices in
// row-major, channel-fastest order:
//
//	input[row*ImgW*ImgC + col*ImgC + ch]
//	output[row*PooledSize*OutC + col*OutC + oc]
//
// The kernel is a pure function of its input and the Params tables. It keeps
// no state between calls and never writes to the output unless every
// buffer check has passed.
//
// Accumulation order is fixed: each conv sum starts at bias[oc] and adds
// input*weight terms with ky outermost, then kx, then ic. Parallel
// execution does not change this order, so results are bit-identical for
// any worker count.
package conv1
