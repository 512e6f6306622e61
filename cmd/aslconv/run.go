package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"

	"github.com/born-ml/aslconv/internal/backend/webgpu"
	"github.com/born-ml/aslconv/internal/conv1"
	"github.com/born-ml/aslconv/internal/idx"
	"github.com/born-ml/aslconv/internal/parallel"
	"github.com/born-ml/aslconv/internal/weights"
)

func runCmd(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var (
		weightsPath = fs.String("weights", "", "SafeTensors weights file (default: built-in table)")
		inputPath   = fs.String("input", "", "Raw input: 784 little-endian float32 values")
		idxPath     = fs.String("idx", "", "IDX image file (alternative to -input)")
		index       = fs.Int("index", 0, "Image index within -idx")
		outputPath  = fs.String("output", "-", "Output file for 5408 float32 values (- = stdout)")
		backend     = fs.String("backend", "cpu", "Backend: cpu or webgpu")
		workers     = fs.Int("workers", 0, "CPU worker goroutines (0 = auto)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	params, err := loadParams(*weightsPath)
	if err != nil {
		return err
	}
	input, err := loadInput(*inputPath, *idxPath, *index)
	if err != nil {
		return err
	}

	applier, release, err := newApplier(*backend, params, *workers)
	if err != nil {
		return err
	}
	defer release()

	output := make([]float32, conv1.OutputLen)
	if err := applier.Apply(input, output); err != nil {
		return fmt.Errorf("apply: %w", err)
	}
	return writeFloat32File(*outputPath, output, stdout)
}

func loadParams(path string) (*conv1.Params, error) {
	if path == "" {
		return weights.Default(), nil
	}
	p, meta, err := weights.Load(path)
	if err != nil {
		return nil, err
	}
	if src, ok := meta["source"]; ok {
		log.Printf("weights %s (source: %s)", path, src)
	}
	return p, nil
}

func loadInput(inputPath, idxPath string, index int) ([]float32, error) {
	switch {
	case inputPath != "" && idxPath != "":
		return nil, errors.New("-input and -idx are mutually exclusive")
	case inputPath != "":
		return readFloat32File(inputPath, conv1.InputLen)
	case idxPath != "":
		images, err := idx.ReadImagesFile(idxPath)
		if err != nil {
			return nil, err
		}
		return images.Input(index)
	default:
		return nil, errors.New("one of -input or -idx is required")
	}
}

func workerConfig(workers int) parallel.Config {
	if workers <= 0 {
		return parallel.DefaultConfig()
	}
	cfg := parallel.DefaultConfig()
	cfg.Enabled = workers > 1
	cfg.NumWorkers = workers
	return cfg
}

func newApplier(name string, p *conv1.Params, workers int) (conv1.Applier, func(), error) {
	switch name {
	case "cpu":
		k, err := conv1.New(p, conv1.WithParallel(workerConfig(workers)))
		if err != nil {
			return nil, nil, err
		}
		return k, func() {}, nil
	case "webgpu":
		b, err := webgpu.New(p)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Release, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q (want cpu or webgpu)", name)
	}
}
