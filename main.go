package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ComedicChimera/olive"
	"github.com/tebeka/atexit"

	"bonsaic/pkg/compiler"
	"bonsaic/pkg/config"
	"bonsaic/pkg/logging"
	"bonsaic/pkg/vm"
)

const version = "0.1.0"

func main() {
	cli := olive.NewCLI("bonsaic", "bonsaic compiles a small subset of C to asm.js, WebAssembly and LLVM IR", true)
	cli.AddSelectorArg("loglevel", "ll", "the compiler log level", false, []string{"silent", "error", "warning", "verbose"})

	buildCmd := cli.AddSubcommand("build", "compile a C source file", true)
	buildCmd.AddPrimaryArg("file", "the C source file", true)
	buildCmd.AddSelectorArg("format", "f", "the output format", false, []string{config.FormatAsmJS, config.FormatWast, config.FormatWasm, config.FormatLLVM})
	buildCmd.AddStringArg("output", "o", "the output file (text formats default to stdout)", false)
	buildCmd.AddStringArg("module-name", "m", "the asm.js module name", false)
	buildCmd.AddStringArg("keep", "k", "comma separated functions to keep; unreachable functions are dropped", false)

	runCmd := cli.AddSubcommand("run", "compile a C source file and run a function on the VM", true)
	runCmd.AddPrimaryArg("file", "the C source file", true)
	runCmd.AddStringArg("entry", "e", "the function to call", false)
	runCmd.AddStringArg("args", "a", "comma separated arguments for the entry function", false)
	runCmd.AddStringArg("snapshot", "s", "a VM state archive restored before the call and saved after it", false)

	cli.AddSubcommand("version", "print the bonsaic version", false)

	result, err := olive.ParseArgs(cli, os.Args)
	if err != nil {
		logging.PrintErrorMessage("CLI Usage Error", err)
		atexit.Exit(2)
	}

	subcmdName, subResult, _ := result.Subcommand()
	if subcmdName == "version" {
		logging.PrintInfoMessage("bonsaic Version", version)
		atexit.Exit(0)
	}

	relPath, _ := subResult.PrimaryArg()
	path, err := filepath.Abs(relPath)
	if err != nil {
		logging.PrintErrorMessage("Path Error", err)
		atexit.Exit(1)
	}
	source, err := os.ReadFile(path)
	if err != nil {
		logging.PrintErrorMessage("Input Error", err)
		atexit.Exit(1)
	}
	cfg, err := config.Load(filepath.Dir(path))
	if err != nil {
		logging.PrintErrorMessage("Config Error", err)
		atexit.Exit(1)
	}
	if level, ok := result.Arguments["loglevel"]; ok {
		cfg.Log.Level = level.(string)
	}
	logging.Initialize(cfg.Log.Level)

	switch subcmdName {
	case "build":
		err = execBuildCommand(subResult, cfg, path, string(source))
	case "run":
		err = execRunCommand(subResult, cfg, path, string(source))
	}
	if err != nil {
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

// stringArg returns the named argument, or def when it was not given.
func stringArg(result *olive.ArgParseResult, name, def string) string {
	if v, ok := result.Arguments[name]; ok {
		return v.(string)
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// errReported marks an error that has already been shown to the user.
var errReported = errors.New("reported")

func compile(path, source string, opts compiler.Options) (*compiler.Result, error) {
	res, err := compiler.Compile(source, filepath.Dir(path), opts)
	if err != nil {
		logging.ReportCompileError(filepath.Base(path), source, err)
		logging.Finish()
		return nil, errReported
	}
	return res, nil
}

func execBuildCommand(result *olive.ArgParseResult, cfg *config.Config, path, source string) error {
	cfg.Build.Format = stringArg(result, "format", cfg.Build.Format)
	cfg.Build.Output = stringArg(result, "output", cfg.Build.Output)
	cfg.Build.ModuleName = stringArg(result, "module-name", cfg.Build.ModuleName)
	if err := cfg.Validate(); err != nil {
		logging.PrintErrorMessage("Config Error", err)
		return err
	}

	res, err := compile(path, source, compiler.Options{
		Format:     cfg.Build.Format,
		ModuleName: cfg.Build.ModuleName,
		Roots:      splitList(stringArg(result, "keep", "")),
	})
	if err != nil {
		return err
	}

	output := cfg.Build.Output
	if output == "" && !config.IsTextFormat(cfg.Build.Format) {
		output = defaultOutputPath(path, ".wasm")
	}
	if output == "" {
		fmt.Print(res.Text)
		return nil
	}

	data := res.Binary
	if config.IsTextFormat(cfg.Build.Format) {
		data = []byte(res.Text)
	}
	if err := writeOutput(output, data); err != nil {
		logging.PrintErrorMessage("Output Error", err)
		return err
	}
	logging.Finish()
	return nil
}

func execRunCommand(result *olive.ArgParseResult, cfg *config.Config, path, source string) error {
	cfg.Run.Entry = stringArg(result, "entry", cfg.Run.Entry)

	res, err := compile(path, source, compiler.Options{Format: config.FormatWast})
	if err != nil {
		return err
	}

	machine, err := vm.New(res.Wasm)
	if err != nil {
		logging.PrintErrorMessage("Load Error", err)
		return err
	}
	machine.StepLimit = int(cfg.Run.MaxSteps)

	snapshot := stringArg(result, "snapshot", "")
	if snapshot != "" {
		restored, err := machine.RestoreFromFile(snapshot)
		if err != nil {
			logging.PrintErrorMessage("Snapshot Error", err)
			return err
		}
		if restored {
			logging.PrintInfoMessage("Snapshot", "restored "+snapshot)
		}
	}

	fn, _ := res.Wasm.Function(cfg.Run.Entry)
	if fn == nil {
		err := fmt.Errorf("no function named `%s`", cfg.Run.Entry)
		logging.PrintErrorMessage("Run Error", err)
		return err
	}
	args, err := vm.ParseArgs(fn, splitList(stringArg(result, "args", "")))
	if err != nil {
		logging.PrintErrorMessage("Argument Error", err)
		return err
	}

	value, err := machine.Call(cfg.Run.Entry, args...)
	if err != nil {
		logging.PrintErrorMessage("Runtime Error", err)
		return err
	}
	if len(fn.Result) > 0 {
		logging.PrintInfoMessage("Result", value.String())
	}
	logging.PrintInfoMessage("Steps", fmt.Sprint(machine.Steps))

	if snapshot != "" {
		if err := machine.SnapshotToFile(snapshot); err != nil {
			logging.PrintErrorMessage("Snapshot Error", err)
			return err
		}
	}
	return nil
}

func defaultOutputPath(inPath, ext string) string {
	return strings.TrimSuffix(inPath, filepath.Ext(inPath)) + ext
}

// writeOutput writes data to path, removing a partial file if the process
// exits before the write completes.
func writeOutput(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	done := false
	atexit.Register(func() {
		if !done {
			f.Close()
			os.Remove(path)
		}
	})
	if _, err := f.Write(data); err != nil {
		return err
	}
	done = true
	return f.Close()
}
