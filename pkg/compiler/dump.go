package compiler

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/kr/pretty"

	"bonsaic/pkg/abstract"
	"bonsaic/pkg/cparse"
	"bonsaic/pkg/ir"
	"bonsaic/pkg/wasm"
)

// Dump writes every stage of compiling src to w: the preprocessed source,
// the tokens, the parse tree, a symbol table, the typed IR and the wast text.
// It stops at the first failing stage and returns its error.
func Dump(w io.Writer, src string, baseDir string) error {
	src, err := cparse.Preprocess(src, baseDir)
	if err != nil {
		return fmt.Errorf("preprocess error: %w", err)
	}
	fmt.Fprintf(w, "Source:\n%s\n", src)

	tokens, err := cparse.Lex(src)
	if err != nil {
		return fmt.Errorf("lex error: %w", err)
	}
	fmt.Fprintf(w, "Tokens (%d)\n", len(tokens))
	for _, tok := range tokens {
		fmt.Fprintln(w, " ", tok)
	}
	fmt.Fprintln(w)

	unit, err := cparse.Parse(tokens, src)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	fmt.Fprintln(w, "Parse Tree")
	for _, n := range unit {
		fmt.Fprintln(w, " ", n)
	}
	fmt.Fprintln(w)

	mod, err := abstract.Abstract(unit)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Symbols")
	fmt.Fprintln(w, SymbolTable(mod))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "IR")
	for _, f := range mod.Functions {
		fmt.Fprintf(w, "%s %s\n", f.Name, f.Type)
		fmt.Fprintf(w, "%# v\n", pretty.Formatter(f.Body))
	}
	fmt.Fprintln(w)

	wm, err := wasm.Assemble(mod)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Generated Wast")
	fmt.Fprint(w, wm.Text())
	return nil
}

// SymbolTable renders the module-level names of mod: globals with their
// initial values, then functions, each with its wasm index.
func SymbolTable(mod *ir.Module) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Name", "Kind", "Type", "Index", "Initial"})
	for i, v := range mod.Globals {
		init := "0"
		if v.InitialValue != nil {
			init = fmt.Sprint(*v.InitialValue)
		}
		t.AppendRow(table.Row{v.Name, "global", v.Type.String(), i, init})
	}
	for i, f := range mod.Functions {
		t.AppendRow(table.Row{f.Name, "function", f.Type.String(), i, ""})
	}
	return t.Render()
}
