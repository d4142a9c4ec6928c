// Command mlmrun runs a script from a file or standard input and prints its
// output.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/antibyte/chayakada/pkg/interpreter"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("mlmrun", flag.ContinueOnError)
	fs.SetOutput(stderr)
	pause := fs.Duration("pause", interpreter.DefaultPauseDuration, "length of a tea break")
	normalize := fs.Bool("nfc", true, "normalize the source to Unicode NFC before running")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 1 {
		fmt.Fprintln(stderr, "usage: mlmrun [options] [file.mlm|-]")
		fs.PrintDefaults()
		return 2
	}

	src, err := readSource(fs.Arg(0), stdin)
	if err != nil {
		fmt.Fprintln(stderr, "mlmrun:", err)
		return 1
	}
	if *normalize {
		src = interpreter.NormalizeSource(src)
	}

	output := interpreter.New(interpreter.WithPauseDuration(*pause)).Run(src)
	if output != "" {
		fmt.Fprintln(stdout, output)
	}
	return 0
}

func readSource(path string, stdin io.Reader) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}
