// Package asmjs renders the typed IR as an asm.js module: a JavaScript
// function with "use asm" whose ints are coerced with |0 and doubles with
// unary +.
package asmjs

import (
	"fmt"
	"strconv"
	"strings"

	"bonsaic/pkg/ctype"
	"bonsaic/pkg/diag"
	"bonsaic/pkg/ir"
)

// reserved holds JavaScript keywords and the names the module wrapper binds.
var reserved = map[string]bool{
	"stdlib": true, "foreign": true, "heap": true,
	"HEAP32": true, "HEAPF64": true, "imul": true,
	"break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true,
	"do": true, "else": true, "export": true, "extends": true, "finally": true,
	"for": true, "function": true, "if": true, "import": true, "in": true,
	"instanceof": true, "let": true, "new": true, "return": true, "super": true,
	"switch": true, "this": true, "throw": true, "try": true, "typeof": true,
	"var": true, "void": true, "while": true, "with": true, "yield": true,
	"null": true, "true": true, "false": true, "arguments": true, "eval": true,
}

// unique picks a JavaScript name for name that is not yet taken.
func unique(name string, taken map[string]bool) string {
	out := name
	for i := 1; taken[out] || reserved[out]; i++ {
		out = name + "_" + strconv.Itoa(i)
	}
	taken[out] = true
	return out
}

type generator struct {
	names map[int]string
	taken map[string]bool

	usesHeap32  bool
	usesHeapF64 bool
	usesImul    bool
}

// Generate renders mod as an asm.js module function called name. Every
// function is exported under its C name.
func Generate(mod *ir.Module, name string) (string, error) {
	g := &generator{names: make(map[int]string), taken: make(map[string]bool)}

	for _, v := range mod.Globals {
		g.names[v.ID] = unique(v.Name, g.taken)
	}
	for _, f := range mod.Functions {
		g.names[f.Var.ID] = unique(f.Name, g.taken)
	}

	var funcs strings.Builder
	for _, f := range mod.Functions {
		text, err := g.function(f)
		if err != nil {
			return "", fmt.Errorf("function %s: %w", f.Name, err)
		}
		funcs.WriteString("\n")
		funcs.WriteString(text)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "function %s(stdlib, foreign, heap) {\n", name)
	sb.WriteString("\t\"use asm\";\n")
	if g.usesHeap32 || g.usesHeapF64 || g.usesImul || len(mod.Globals) > 0 {
		sb.WriteString("\n")
	}
	if g.usesHeap32 {
		sb.WriteString("\tvar HEAP32 = new stdlib.Int32Array(heap);\n")
	}
	if g.usesHeapF64 {
		sb.WriteString("\tvar HEAPF64 = new stdlib.Float64Array(heap);\n")
	}
	if g.usesImul {
		sb.WriteString("\tvar imul = stdlib.Math.imul;\n")
	}
	for _, v := range mod.Globals {
		var init int64
		if v.InitialValue != nil {
			init = *v.InitialValue
		}
		fmt.Fprintf(&sb, "\tvar %s = %s;\n", g.names[v.ID], literal(v.Type, init))
	}
	sb.WriteString(funcs.String())

	sb.WriteString("\n\treturn {\n")
	for i, f := range mod.Functions {
		sep := ","
		if i == len(mod.Functions)-1 {
			sep = ""
		}
		fmt.Fprintf(&sb, "\t\t%s: %s%s\n", f.Name, g.names[f.Var.ID], sep)
	}
	sb.WriteString("\t};\n}\n")
	return sb.String(), nil
}

// literal renders a constant; doubles always carry a decimal point.
func literal(t *ctype.Type, v int64) string {
	s := strconv.FormatInt(v, 10)
	if t.Is(ctype.Double) {
		s += ".0"
	}
	if v < 0 {
		return "(" + s + ")"
	}
	return s
}

func asInt(js string) string    { return "((" + js + ")|0)" }
func asDouble(js string) string { return "(+(" + js + "))" }

// coerce annotates js with the asm.js coercion for t.
func coerce(t *ctype.Type, js string) string {
	if t.Is(ctype.Double) {
		return asDouble(js)
	}
	return asInt(js)
}

type funcGen struct {
	*generator
	taken   map[string]bool
	body    strings.Builder
	indent  int
	hoisted []string
	loops   int
}

func (g *generator) function(f *ir.FunctionDef) (string, error) {
	fg := &funcGen{generator: g, taken: make(map[string]bool), indent: 2}
	for n := range g.taken {
		fg.taken[n] = true
	}

	params := make([]string, len(f.Params))
	var annotations []string
	for i, p := range f.Params {
		name := unique(p.Name, fg.taken)
		g.names[p.Var.ID] = name
		params[i] = name
		if p.Type.Is(ctype.Double) {
			annotations = append(annotations, fmt.Sprintf("%s = +%s;", name, name))
		} else {
			annotations = append(annotations, fmt.Sprintf("%s = %s|0;", name, name))
		}
	}

	for _, s := range f.Body.Stmts {
		if err := fg.stmt(s); err != nil {
			return "", err
		}
	}
	if !f.ReturnType.Is(ctype.Void) && !endsWithReturn(f.Body) {
		fg.line("return %s;", literal(f.ReturnType, 0))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "\tfunction %s(%s) {\n", g.names[f.Var.ID], strings.Join(params, ", "))
	for _, a := range annotations {
		sb.WriteString("\t\t" + a + "\n")
	}
	for _, h := range fg.hoisted {
		sb.WriteString("\t\t" + h + "\n")
	}
	if len(annotations)+len(fg.hoisted) > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString(fg.body.String())
	sb.WriteString("\t}\n")
	return sb.String(), nil
}

func endsWithReturn(b *ir.Block) bool {
	if len(b.Stmts) == 0 {
		return false
	}
	_, ok := b.Stmts[len(b.Stmts)-1].(*ir.Return)
	return ok
}

func (fg *funcGen) line(format string, args ...any) {
	fg.body.WriteString(strings.Repeat("\t", fg.indent))
	fmt.Fprintf(&fg.body, format, args...)
	fg.body.WriteString("\n")
}

// nestedBody emits s inside braces opened by the caller's header line.
func (fg *funcGen) nestedBody(s ir.Stmt) error {
	fg.indent++
	defer func() { fg.indent-- }()
	if b, ok := s.(*ir.Block); ok {
		for _, inner := range b.Stmts {
			if err := fg.stmt(inner); err != nil {
				return err
			}
		}
		return nil
	}
	return fg.stmt(s)
}

func (fg *funcGen) loop(header string, body ir.Stmt, footer string) error {
	fg.line("%s {", header)
	fg.loops++
	err := fg.nestedBody(body)
	fg.loops--
	if err != nil {
		return err
	}
	fg.line("}%s", footer)
	return nil
}

func (fg *funcGen) stmt(s ir.Stmt) error {
	switch s := s.(type) {
	case *ir.ExprStmt:
		js, err := fg.effect(s.Expr)
		if err != nil {
			return err
		}
		fg.line("%s;", js)
		return nil

	case *ir.Decl:
		for _, vd := range s.Vars {
			name := unique(vd.Var.Name, fg.taken)
			fg.names[vd.Var.ID] = name
			fg.hoisted = append(fg.hoisted, fmt.Sprintf("var %s = %s;", name, literal(vd.Var.Type, 0)))
			init, err := fg.expr(vd.Init)
			if err != nil {
				return err
			}
			init, err = fg.cast(vd.Init.Type(), vd.Var.Type, init)
			if err != nil {
				return err
			}
			fg.line("%s = %s;", name, init)
		}
		return nil

	case *ir.Block:
		fg.line("{")
		if err := fg.nestedBody(s); err != nil {
			return err
		}
		fg.line("}")
		return nil

	case *ir.If:
		test, err := fg.expr(s.Test)
		if err != nil {
			return err
		}
		fg.line("if (%s) {", test)
		if err := fg.nestedBody(s.Then); err != nil {
			return err
		}
		if s.Else != nil {
			fg.line("} else {")
			if err := fg.nestedBody(s.Else); err != nil {
				return err
			}
		}
		fg.line("}")
		return nil

	case *ir.While:
		test, err := fg.expr(s.Test)
		if err != nil {
			return err
		}
		return fg.loop("while ("+test+")", s.Body, "")

	case *ir.DoWhile:
		test, err := fg.expr(s.Test)
		if err != nil {
			return err
		}
		return fg.loop("do", s.Body, " while ("+test+");")

	case *ir.For:
		if s.Init != nil {
			if err := fg.stmt(s.Init); err != nil {
				return err
			}
		}
		var test, update string
		var err error
		if s.Test != nil {
			if test, err = fg.expr(s.Test); err != nil {
				return err
			}
		}
		if s.Update != nil {
			if update, err = fg.effect(s.Update); err != nil {
				return err
			}
		}
		if test != "" {
			test = " " + test
		}
		if update != "" {
			update = " " + update
		}
		return fg.loop("for (;"+test+";"+update+")", s.Body, "")

	case *ir.Break:
		if fg.loops == 0 {
			return diag.New(diag.BreakOutsideLoop, "break", "not inside a loop")
		}
		fg.line("break;")
		return nil

	case *ir.Continue:
		if fg.loops == 0 {
			return diag.New(diag.ContinueOutsideLoop, "continue", "not inside a loop")
		}
		fg.line("continue;")
		return nil

	case *ir.Return:
		if s.Expr == nil {
			fg.line("return;")
			return nil
		}
		js, err := fg.expr(s.Expr)
		if err != nil {
			return err
		}
		if js, err = fg.cast(s.Expr.Type(), s.ReturnType, js); err != nil {
			return err
		}
		if _, bare := s.Expr.(*ir.VarRef); bare && ctype.Equal(s.Expr.Type(), s.ReturnType) {
			js = coerce(s.ReturnType, js)
		}
		fg.line("return %s;", js)
		return nil

	case *ir.Null:
		return nil
	}
	return diag.New(diag.UnrecognisedConstruct, "statement", "%T", s)
}
