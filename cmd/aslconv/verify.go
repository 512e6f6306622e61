package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"

	"github.com/born-ml/aslconv/internal/backend/webgpu"
	"github.com/born-ml/aslconv/internal/conv1"
	"github.com/born-ml/aslconv/internal/idx"
	"github.com/born-ml/aslconv/internal/reference"
)

func verifyCmd(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	var (
		weightsPath = fs.String("weights", "", "SafeTensors weights file (default: built-in table)")
		idxPath     = fs.String("idx", "", "IDX image file (default: random images)")
		count       = fs.Int("count", 16, "Number of images to check")
		tol         = fs.Float64("tol", 1e-4, "Maximum absolute difference from the reference")
		seed        = fs.Int64("seed", 1, "Seed for random images")
		workers     = fs.Int("workers", 0, "CPU worker goroutines (0 = auto)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	params, err := loadParams(*weightsPath)
	if err != nil {
		return err
	}
	inputs, err := verifyInputs(*idxPath, *count, *seed)
	if err != nil {
		return err
	}

	cpu, err := conv1.New(params, conv1.WithParallel(workerConfig(*workers)))
	if err != nil {
		return err
	}
	appliers := map[string]conv1.Applier{"cpu": cpu}
	if gpu, err := webgpu.New(params); err == nil {
		defer gpu.Release()
		appliers["webgpu"] = gpu
	} else {
		log.Printf("skipping webgpu: %v", err)
	}

	failed := 0
	for _, name := range []string{"cpu", "webgpu"} {
		applier, ok := appliers[name]
		if !ok {
			continue
		}
		worst, err := checkApplier(applier, params, inputs, *tol)
		if err != nil {
			failed++
			fmt.Fprintf(stdout, "%-7s FAIL %v\n", name, err)
			continue
		}
		fmt.Fprintf(stdout, "%-7s ok   %d images, max abs diff %.3g\n", name, len(inputs), worst)
	}
	if failed > 0 {
		return fmt.Errorf("%d backend(s) disagree with the reference", failed)
	}
	return nil
}

func checkApplier(a conv1.Applier, p *conv1.Params, inputs [][]float32, tol float64) (float64, error) {
	var worst float64
	got := make([]float32, conv1.OutputLen)
	for i, input := range inputs {
		want, err := reference.Apply(p, input)
		if err != nil {
			return worst, err
		}
		if err := a.Apply(input, got); err != nil {
			return worst, fmt.Errorf("image %d: %w", i, err)
		}
		diff, at := reference.Compare(got, want)
		if diff > tol {
			return diff, fmt.Errorf("image %d: diff %.3g at output %d exceeds %.3g", i, diff, at, tol)
		}
		worst = max(worst, diff)
	}
	return worst, nil
}

func verifyInputs(idxPath string, count int, seed int64) ([][]float32, error) {
	if count <= 0 {
		return nil, fmt.Errorf("-count must be positive, got %d", count)
	}

	if idxPath != "" {
		images, err := idx.ReadImagesFile(idxPath)
		if err != nil {
			return nil, err
		}
		if images.Len() == 0 {
			return nil, fmt.Errorf("%s: no images to verify", idxPath)
		}
		n := min(count, images.Len())
		inputs := make([][]float32, n)
		for i := range inputs {
			if inputs[i], err = images.Input(i); err != nil {
				return nil, err
			}
		}
		return inputs, nil
	}

	//nolint:gosec // Random test images, not security-critical.
	rng := rand.New(rand.NewSource(seed))
	inputs := make([][]float32, count)
	for i := range inputs {
		inputs[i] = make([]float32, conv1.InputLen)
		for j := range inputs[i] {
			inputs[i][j] = rng.Float32()
		}
	}
	return inputs, nil
}
