// Command aslconv runs the first convolution layer of the sign-language
// classifier on single images.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
)

const version = "v0.1.0"

func main() {
	log.SetFlags(0)
	log.SetPrefix("aslconv: ")

	if err := dispatch(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

func dispatch(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		usage(stdout)
		return nil
	}

	switch args[0] {
	case "run":
		return runCmd(args[1:], stdout)
	case "init":
		return initCmd(args[1:], stdout)
	case "verify":
		return verifyCmd(args[1:], stdout)
	case "info":
		return infoCmd(stdout)
	case "version":
		fmt.Fprintf(stdout, "aslconv %s\n", version)
		return nil
	case "help", "-h", "--help":
		usage(stdout)
		return nil
	default:
		usage(os.Stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "aslconv - conv1 layer (3x3 conv, ReLU, 2x2 max pool) for 28x28 images")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run      Run the layer on one image and write 13x13x32 float32 values")
	fmt.Fprintln(w, "  init     Write He-initialised weights as SafeTensors")
	fmt.Fprintln(w, "  verify   Check the kernels against the float64 reference")
	fmt.Fprintln(w, "  info     Show layer geometry, CPU features and GPU availability")
	fmt.Fprintln(w, "  version  Show version")
}
