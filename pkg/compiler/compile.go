// Package compiler drives the whole pipeline: C source -> Preprocess -> Lex
// -> Parse -> Abstract -> one of the asm.js, wast, wasm or LLVM backends.
package compiler

import (
	"fmt"

	"bonsaic/pkg/abstract"
	"bonsaic/pkg/asmjs"
	"bonsaic/pkg/config"
	"bonsaic/pkg/cparse"
	"bonsaic/pkg/ir"
	"bonsaic/pkg/llvmgen"
	"bonsaic/pkg/logging"
	"bonsaic/pkg/wasm"
)

// Options selects the backend and its parameters.
type Options struct {
	Format     string // one of the config.Format* names
	ModuleName string // asm.js module function name

	// Roots, when non-empty, drops every function not reachable from them.
	Roots []string
}

// Result holds the output of a compilation. Text is empty for the wasm
// format and Binary is set only for it; Wasm is set for wast and wasm.
type Result struct {
	Text   string
	Binary []byte
	Module *ir.Module
	Wasm   *wasm.Module
}

// Frontend preprocesses, parses and abstracts src into a typed module.
func Frontend(src string, baseDir string) (*ir.Module, error) {
	logging.BeginPhase("Parsing")
	src, err := cparse.Preprocess(src, baseDir)
	if err != nil {
		logging.EndPhase(false)
		return nil, fmt.Errorf("preprocess error: %w", err)
	}
	unit, err := cparse.ParseSource(src)
	if err != nil {
		logging.EndPhase(false)
		return nil, fmt.Errorf("parse error: %w", err)
	}
	logging.EndPhase(true)

	logging.BeginPhase("Checking")
	mod, err := abstract.Abstract(unit)
	logging.EndPhase(err == nil)
	return mod, err
}

func Compile(src string, baseDir string, opts Options) (*Result, error) {
	mod, err := Frontend(src, baseDir)
	if err != nil {
		return nil, err
	}
	if len(opts.Roots) > 0 {
		if mod, err = Prune(mod, opts.Roots...); err != nil {
			return nil, err
		}
	}

	res := &Result{Module: mod}
	logging.BeginPhase("Generating")
	err = res.generate(opts)
	logging.EndPhase(err == nil)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (res *Result) generate(opts Options) error {
	var err error
	switch opts.Format {
	case config.FormatWast, config.FormatWasm:
		if res.Wasm, err = wasm.Assemble(res.Module); err != nil {
			return err
		}
		if opts.Format == config.FormatWasm {
			res.Binary = res.Wasm.Encode()
		} else {
			res.Text = res.Wasm.Text()
		}
	case config.FormatAsmJS:
		name := opts.ModuleName
		if name == "" {
			name = "module"
		}
		res.Text, err = asmjs.Generate(res.Module, name)
	case config.FormatLLVM:
		res.Text, err = llvmgen.Text(res.Module)
	default:
		err = fmt.Errorf("unknown output format `%s`", opts.Format)
	}
	return err
}
