package main

import (
	"fmt"
	"io"

	"github.com/born-ml/aslconv/internal/backend/webgpu"
	"github.com/born-ml/aslconv/internal/conv1"
	"github.com/born-ml/aslconv/internal/parallel"
	"github.com/klauspost/cpuid/v2"
)

func infoCmd(stdout io.Writer) error {
	cfg := parallel.DefaultConfig()

	fmt.Fprintf(stdout, "layer:    %dx%dx%d -> conv %dx%d k=%d -> relu -> maxpool %d -> %dx%dx%d\n",
		conv1.ImgH, conv1.ImgW, conv1.ImgC, conv1.ConvSize, conv1.ConvSize, conv1.K,
		conv1.PoolWindow, conv1.PooledSize, conv1.PooledSize, conv1.OutC)
	fmt.Fprintf(stdout, "buffers:  input %d, output %d float32\n", conv1.InputLen, conv1.OutputLen)
	fmt.Fprintf(stdout, "cpu:      %s (%d physical, %d logical)\n",
		cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores)
	fmt.Fprintf(stdout, "features: avx2=%v fma3=%v avx512f=%v asimd=%v\n",
		cpuid.CPU.Supports(cpuid.AVX2), cpuid.CPU.Supports(cpuid.FMA3),
		cpuid.CPU.Supports(cpuid.AVX512F), cpuid.CPU.Supports(cpuid.ASIMD))
	fmt.Fprintf(stdout, "workers:  %d (parallel=%v, %s to override)\n", cfg.NumWorkers, cfg.Enabled, parallel.WorkersEnv)
	fmt.Fprintf(stdout, "webgpu:   %v\n", webgpu.IsAvailable())
	return nil
}
