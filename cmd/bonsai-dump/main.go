// Command bonsai-dump prints every compilation stage of a C source file:
// preprocessed source, tokens, parse tree, symbols, typed IR and wast.
package main

import (
	"os"
	"path/filepath"

	"github.com/tebeka/atexit"

	"bonsaic/pkg/compiler"
	"bonsaic/pkg/logging"
)

const testSource = `int x = 10;
int y = 20;
int main() { return x + y; }
`

func main() {
	logging.Initialize("silent")

	src := testSource
	baseDir := "."
	if len(os.Args) > 1 {
		data, err := os.ReadFile(os.Args[1])
		if err != nil {
			logging.PrintErrorMessage("Read Error", err)
			atexit.Exit(1)
		}
		src = string(data)
		baseDir = filepath.Dir(os.Args[1])
	}

	if err := compiler.Dump(os.Stdout, src, baseDir); err != nil {
		logging.PrintErrorMessage("Compile Error", err)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}
