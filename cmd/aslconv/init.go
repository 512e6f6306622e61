package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"

	"github.com/born-ml/aslconv/internal/weights"
)

func initCmd(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	var (
		out  = fs.String("out", "conv1.safetensors", "Output SafeTensors file")
		seed = fs.Int64("seed", weights.DefaultSeed, "Deterministic seed")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	p := weights.HeNormal(*seed)
	meta := map[string]string{
		"source": "he-normal",
		"seed":   strconv.FormatInt(*seed, 10),
	}
	if err := weights.Save(*out, p, meta); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s (seed %d)\n", *out, *seed)
	return nil
}
