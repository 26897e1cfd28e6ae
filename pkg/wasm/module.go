package wasm

import (
	"fmt"
	"strings"

	"bonsaic/pkg/ctype"
	"bonsaic/pkg/ir"
)

// Function is one lowered function. Every function is exported under its
// source name.
type Function struct {
	Name   string
	Params []ValType
	Result []ValType
	Locals []ValType
	Body   []Instruction
}

// Global is a mutable module global with a constant initial value.
type Global struct {
	Name string
	Type ValType
	Init int64
}

// Module is an assembled module: globals and functions in source order.
type Module struct {
	Globals   []Global
	Functions []*Function

	// Memory is set when any function loads or stores; the module then
	// declares one page of linear memory.
	Memory bool
}

// Assemble lowers every function of mod. Global and function indexes are
// fixed before the first body is compiled, so calls may refer forward.
func Assemble(mod *ir.Module) (*Module, error) {
	gctx := NewGlobalContext(mod)
	out := &Module{}

	for _, v := range mod.Globals {
		t, err := FromCType(v.Type)
		if err != nil {
			return nil, fmt.Errorf("global %s: %w", v.Name, err)
		}
		g := Global{Name: v.Name, Type: t}
		if v.InitialValue != nil {
			g.Init = *v.InitialValue
		}
		out.Globals = append(out.Globals, g)
	}

	for _, fn := range mod.Functions {
		f, usesMemory, err := CompileFunction(fn, gctx)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", fn.Name, err)
		}
		out.Functions = append(out.Functions, f)
		out.Memory = out.Memory || usesMemory
	}
	return out, nil
}

// CompileFunction lowers one function definition. The second result reports
// whether the body touches linear memory.
func CompileFunction(fn *ir.FunctionDef, gctx *GlobalContext) (*Function, bool, error) {
	ctx := NewContext(gctx)
	f := &Function{Name: fn.Name}

	for _, p := range fn.Params {
		t, err := FromCType(p.Type)
		if err != nil {
			return nil, false, err
		}
		ctx.DeclareParam(p.Var.ID, t)
		f.Params = append(f.Params, t)
	}
	var result ValType
	if !fn.ReturnType.Is(ctype.Void) {
		t, err := FromCType(fn.ReturnType)
		if err != nil {
			return nil, false, err
		}
		result = t
		f.Result = []ValType{t}
	}

	g := &codeGen{ctx: ctx}
	for _, s := range fn.Body.Stmts {
		if err := g.compileStatement(s, noLoop, noLoop); err != nil {
			return nil, false, err
		}
	}

	// Falling off the end of a value-returning function yields zero.
	if result != 0 && !endsWithReturn(fn.Body) {
		g.emit(Const(result, 0))
	}

	f.Locals = ctx.Locals()
	f.Body = g.out
	return f, g.usesMemory, nil
}

func endsWithReturn(b *ir.Block) bool {
	if len(b.Stmts) == 0 {
		return false
	}
	_, ok := b.Stmts[len(b.Stmts)-1].(*ir.Return)
	return ok
}

// Function returns the function with the given name and its index.
func (m *Module) Function(name string) (*Function, int) {
	for i, f := range m.Functions {
		if f.Name == name {
			return f, i
		}
	}
	return nil, -1
}

// Text renders the module in s-expression text form, one instruction per
// line, indented by block nesting.
func (m *Module) Text() string {
	var sb strings.Builder
	sb.WriteString("(module\n")
	if m.Memory {
		sb.WriteString("  (memory 1)\n")
	}
	for _, g := range m.Globals {
		init := Const(g.Type, g.Init)
		fmt.Fprintf(&sb, "  (global $%s (mut %s) (%s))\n", g.Name, g.Type, init)
	}
	for _, f := range m.Functions {
		f.writeText(&sb)
	}
	sb.WriteString(")\n")
	return sb.String()
}

func (f *Function) writeText(sb *strings.Builder) {
	fmt.Fprintf(sb, "  (func $%s (export %q)", f.Name, f.Name)
	for _, p := range f.Params {
		fmt.Fprintf(sb, " (param %s)", p)
	}
	for _, r := range f.Result {
		fmt.Fprintf(sb, " (result %s)", r)
	}
	sb.WriteString("\n")
	for _, l := range f.Locals {
		fmt.Fprintf(sb, "    (local %s)\n", l)
	}

	depth := 0
	for _, ins := range f.Body {
		level := depth
		if ins.Op == OpEnd || ins.Op == OpElse {
			level--
		}
		sb.WriteString(strings.Repeat("  ", level+2))
		sb.WriteString(ins.String())
		sb.WriteString("\n")
		depth += ins.nesting()
	}
	sb.WriteString("  )\n")
}

// Listing returns the instruction mnemonics of a function body, without
// indentation.
func (f *Function) Listing() []string {
	out := make([]string, len(f.Body))
	for i, ins := range f.Body {
		out[i] = ins.String()
	}
	return out
}
