package wasm

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"bonsaic/pkg/abstract"
	"bonsaic/pkg/cparse"
	"bonsaic/pkg/diag"
)

func assemble(t *testing.T, src string) (*Module, error) {
	t.Helper()
	unit, err := cparse.ParseSource(src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	mod, err := abstract.Abstract(unit)
	if err != nil {
		return nil, err
	}
	return Assemble(mod)
}

func mustAssemble(t *testing.T, src string) *Module {
	t.Helper()
	m, err := assemble(t, src)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	return m
}

func listing(t *testing.T, m *Module, name string) []string {
	t.Helper()
	f, _ := m.Function(name)
	if f == nil {
		t.Fatalf("function %s not found", name)
	}
	return f.Listing()
}

func TestCompileFunction(t *testing.T) {
	tests := []struct {
		name string
		src  string
		fn   string
		want []string
	}{
		{
			name: "Literal",
			src:  "int f() { return 42; }",
			want: []string{"i32.const 42", "return"},
		},
		{
			name: "Folded Sum",
			src:  "int f() { return 1 + 2; }",
			want: []string{"i32.const 3", "return"},
		},
		{
			name: "Zero Initialized Local",
			src:  "int f() { int x; return x; }",
			want: []string{"i32.const 0", "set_local 0", "get_local 0", "return"},
		},
		{
			name: "Int Negate",
			src:  "int f(int a) { return -a; }",
			want: []string{"i32.const 0", "get_local 0", "i32.sub", "return"},
		},
		{
			name: "Double Negate",
			src:  "double f(double d) { return -d; }",
			want: []string{"get_local 0", "f64.neg", "return"},
		},
		{
			name: "Double Arithmetic",
			src:  "double f(double a, double b) { return a / b; }",
			want: []string{"get_local 0", "get_local 1", "f64.div", "return"},
		},
		{
			name: "Double Comparison",
			src:  "int f(double a, double b) { return a < b; }",
			want: []string{"get_local 0", "get_local 1", "f64.lt", "return"},
		},
		{
			name: "Truncating Return",
			src:  "int f(double d) { return d; }",
			want: []string{"get_local 0", "i32.trunc_s/f64", "return"},
		},
		{
			name: "Logical And",
			src:  "int f(int a, int b) { return a && b; }",
			want: []string{
				"get_local 0", "if (result i32)",
				"get_local 1", "i32.eqz", "i32.eqz",
				"else", "i32.const 0",
				"end", "return",
			},
		},
		{
			name: "Logical Or",
			src:  "int f(int a, int b) { return a || b; }",
			want: []string{
				"get_local 0", "if (result i32)",
				"i32.const 1",
				"else", "get_local 1", "i32.eqz", "i32.eqz",
				"end", "return",
			},
		},
		{
			name: "Not",
			src:  "int f(int a) { return !a; }",
			want: []string{"get_local 0", "i32.eqz", "return"},
		},
		{
			name: "Conditional",
			src:  "int f(int a) { return a ? 1 : 2; }",
			want: []string{
				"get_local 0", "if (result i32)", "i32.const 1", "else", "i32.const 2", "end", "return",
			},
		},
		{
			name: "Comma Discards Left",
			src:  "int f(int a) { return (a = 1, a); }",
			want: []string{"i32.const 1", "set_local 0", "get_local 0", "return"},
		},
		{
			name: "Used Local Assignment",
			src:  "int f(int a) { return a = 2; }",
			want: []string{"i32.const 2", "tee_local 0", "return"},
		},
		{
			name: "Used Global Assignment",
			src:  "int g; int f() { return g = 2; }",
			want: []string{"i32.const 2", "set_global 0", "get_global 0", "return"},
		},
		{
			name: "Compound Assignment",
			src:  "void f(int a) { a += 3; }",
			want: []string{"get_local 0", "i32.const 3", "i32.add", "set_local 0"},
		},
		{
			name: "Store Through Pointer",
			src:  "void f(int *p) { *p = 3; }",
			want: []string{"get_local 0", "i32.const 3", "i32.store"},
		},
		{
			name: "Load Through Pointer",
			src:  "double f(double *p) { return *p; }",
			want: []string{"get_local 0", "f64.load", "return"},
		},
		{
			name: "Forward Call",
			src:  "int f() { return g(1); } int g(int a) { return a; }",
			want: []string{"i32.const 1", "call 1", "return"},
		},
		{
			name: "Argument Coercion",
			src:  "int g(int a) { return a; } int f(double d) { return g(d); }",
			fn:   "f",
			want: []string{"get_local 0", "i32.trunc_s/f64", "call 0", "return"},
		},
		{
			name: "Void Call Statement",
			src:  "void g() { } void f() { g(); }",
			fn:   "f",
			want: []string{"call 0"},
		},
		{
			name: "Discarded Value",
			src:  "void f(int a) { a; }",
			want: []string{"get_local 0", "drop"},
		},
		{
			name: "Fall Through Yields Zero",
			src:  "int f(int a) { if (a) return 1; }",
			want: []string{"get_local 0", "if", "i32.const 1", "return", "end", "i32.const 0"},
		},
		{
			name: "If Else",
			src:  "void f(int a) { if (a) a = 1; else a = 2; }",
			want: []string{
				"get_local 0", "if", "i32.const 1", "set_local 0", "else", "i32.const 2", "set_local 0", "end",
			},
		},
		{
			name: "While Depths",
			src:  "int f(int n) { while (n) { if (n) break; continue; } return n; }",
			want: []string{
				"block", "loop", "get_local 0", "if",
				"get_local 0", "if", "br 3", "end",
				"br 1",
				"br 1", "end", "end", "end",
				"get_local 0", "return",
			},
		},
		{
			name: "Do While",
			src:  "void f(int a) { do { a -= 1; } while (a); }",
			want: []string{
				"block", "loop", "block",
				"get_local 0", "i32.const 1", "i32.sub", "set_local 0",
				"end",
				"get_local 0", "if", "br 1", "end",
				"end", "end",
			},
		},
		{
			name: "For With Test",
			src:  "int f() { int s = 0; for (int i = 0; i < 3; i++) s += i; return s; }",
			want: []string{
				"i32.const 0", "set_local 0",
				"i32.const 0", "set_local 1",
				"block", "loop",
				"get_local 1", "i32.const 3", "i32.lt_s", "if",
				"block", "get_local 0", "get_local 1", "i32.add", "set_local 0", "end",
				"get_local 1", "i32.const 1", "i32.add", "set_local 1",
				"br 1", "end", "end", "end",
				"get_local 0", "return",
			},
		},
		{
			name: "For Without Test",
			src:  "void f() { for (;;) { break; } }",
			want: []string{"block", "loop", "block", "br 2", "end", "br 0", "end", "end"},
		},
		{
			name: "Continue In For",
			src:  "void f(int a) { for (; a; a--) { if (a) continue; } }",
			want: []string{
				"block", "loop", "get_local 0", "if",
				"block", "get_local 0", "if", "br 1", "end", "end",
				"get_local 0", "i32.const 1", "i32.sub", "set_local 0",
				"br 1", "end", "end", "end",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := tt.fn
			if fn == "" {
				fn = "f"
			}
			m := mustAssemble(t, tt.src)
			if diff := cmp.Diff(tt.want, listing(t, m, fn)); diff != "" {
				t.Errorf("listing mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGlobalShadowedByParameter(t *testing.T) {
	m := mustAssemble(t, `
int x = 5;
int f(int x) { return x; }
int g() { return x; }`)

	if diff := cmp.Diff([]string{"get_local 0", "return"}, listing(t, m, "f")); diff != "" {
		t.Errorf("f (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"get_global 0", "return"}, listing(t, m, "g")); diff != "" {
		t.Errorf("g (-want +got):\n%s", diff)
	}
	if len(m.Globals) != 1 || m.Globals[0].Init != 5 {
		t.Errorf("globals = %+v, want x initialized to 5", m.Globals)
	}
}

func TestPostIncrementDiscardedIsShorter(t *testing.T) {
	m := mustAssemble(t, "int f(int x) { int y; x++; y = x++; return y; }")
	want := []string{
		"i32.const 0", "set_local 1",
		// x++;
		"get_local 0", "i32.const 1", "i32.add", "set_local 0",
		// y = x++;
		"get_local 0", "get_local 0", "i32.const 1", "i32.add", "set_local 0", "set_local 1",
		"get_local 1", "return",
	}
	if diff := cmp.Diff(want, listing(t, m, "f")); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}
}

func TestPostIncrementGlobalDiscardedIsShorter(t *testing.T) {
	m := mustAssemble(t, "int g; int y; void f() { g++; y = g++; }")
	want := []string{
		// g++;
		"get_global 0", "i32.const 1", "i32.add", "set_global 0",
		// y = g++;
		"get_global 0", "get_global 0", "i32.const 1", "i32.add", "set_global 0", "set_global 1",
	}
	if diff := cmp.Diff(want, listing(t, m, "f")); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}
}

func TestLocalsAndParams(t *testing.T) {
	m := mustAssemble(t, "double f(int a, double b) { int x; double y; { int x; } return y; }")
	f, idx := m.Function("f")
	if idx != 0 {
		t.Fatalf("index = %d", idx)
	}
	if diff := cmp.Diff([]ValType{I32, F64}, f.Params); diff != "" {
		t.Errorf("params (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]ValType{F64}, f.Result); diff != "" {
		t.Errorf("result (-want +got):\n%s", diff)
	}
	// The shadowing x in the inner block gets a slot of its own.
	if diff := cmp.Diff([]ValType{I32, F64, I32}, f.Locals); diff != "" {
		t.Errorf("locals (-want +got):\n%s", diff)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind diag.Kind
	}{
		{"Assign Double To Int", "int f(double y) { int x; x = y; return x; }", diag.TypeMismatch},
		{"Arity", "int g(int a) { return a; } int f() { return g(); }", diag.TypeMismatch},
		{"Void Argument", "void v() { } int g(int a) { return a; } int f() { return g(v()); }", diag.TypeMismatch},
		{"Break Outside Loop", "void f() { break; }", diag.BreakOutsideLoop},
		{"Continue Outside Loop", "void f() { if (1) continue; }", diag.ContinueOutsideLoop},
		{"Used Pointer Store", "int f(int *p) { return *p = 3; }", diag.UnsupportedOperator},
		{"Undefined Function", "int g(int); int f() { return g(1); }", diag.UnsupportedCallTarget},
		{"Int To Double Argument", "double g(double d) { return d; } double f() { return g(1); }", diag.UnsupportedCast},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := assemble(t, tt.src)
			if err == nil {
				t.Fatalf("expected %s", tt.kind)
			}
			if !diag.Is(err, tt.kind) {
				t.Errorf("expected %s, got %v", tt.kind, err)
			}
		})
	}
}

func TestMemoryOnlyWhenUsed(t *testing.T) {
	if m := mustAssemble(t, "int f(int a) { return a; }"); m.Memory {
		t.Errorf("module without loads declares memory")
	}
	if m := mustAssemble(t, "int f(int *p) { return *p; }"); !m.Memory {
		t.Errorf("module with a load has no memory")
	}
}
