package asmjs

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"bonsaic/pkg/abstract"
	"bonsaic/pkg/cparse"
	"bonsaic/pkg/diag"
)

func generate(t *testing.T, src string) (string, error) {
	t.Helper()
	unit, err := cparse.ParseSource(src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	mod, err := abstract.Abstract(unit)
	if err != nil {
		t.Fatalf("Abstract failed: %v", err)
	}
	return Generate(mod, "m")
}

func mustGenerate(t *testing.T, src string) string {
	t.Helper()
	out, err := generate(t, src)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return out
}

func TestGenerateModule(t *testing.T) {
	got := mustGenerate(t, "int add(int a, int b) { return a + b; }")
	want := `function m(stdlib, foreign, heap) {
	"use asm";

	function add(a, b) {
		a = a|0;
		b = b|0;

		return ((a + b)|0);
	}

	return {
		add: add
	};
}
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("module mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateFragments(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		want    []string
		notWant []string
	}{
		{
			name: "Double Parameter And Local",
			src:  "double f(double d) { double y; y = d; return y; }",
			want: []string{"d = +d;", "var y = 0.0;", "y = 0.0;", "y = d;", "return (+(y));"},
		},
		{
			name: "Globals",
			src:  "int counter = 7; double scale; int f() { return counter; }",
			want: []string{"\tvar counter = 7;\n", "\tvar scale = 0.0;\n"},
		},
		{
			name:    "Multiply Uses Imul",
			src:     "int f(int a) { return a * 3; }",
			want:    []string{"var imul = stdlib.Math.imul;", "imul(a, 3)"},
			notWant: []string{"HEAP32", "HEAPF64"},
		},
		{
			name:    "Heap Views Only When Used",
			src:     "int f(int *p) { *p = 4; return *p; }",
			want:    []string{"var HEAP32 = new stdlib.Int32Array(heap);", "HEAP32[p >> 2] = 4;", "((HEAP32[p >> 2])|0)"},
			notWant: []string{"HEAPF64", "imul"},
		},
		{
			name: "Double Heap",
			src:  "double f(double *p) { return *p; }",
			want: []string{"var HEAPF64 = new stdlib.Float64Array(heap);", "(+(HEAPF64[p >> 3]))"},
		},
		{
			name: "Truncation",
			src:  "int f(double d) { return d; }",
			want: []string{"return (~~d);"},
		},
		{
			name: "Shadowed Local Renamed",
			src:  "int f() { int x = 1; { int x = 2; } return x; }",
			want: []string{"var x = 0;", "var x_1 = 0;", "x = 1;", "x_1 = 2;", "return ((x)|0);"},
		},
		{
			name: "Reserved Name Renamed",
			src:  "int f(int heap) { return heap; }",
			want: []string{"function f(heap_1)", "heap_1 = heap_1|0;"},
		},
		{
			name: "Loops",
			src:  "void f(int n) { int i; for (i = 0; i < n; i++) { if (i == 2) continue; } while (n) { n -= 1; break; } do { } while (0); for (;;) { break; } }",
			want: []string{
				"for (; ((i < n)|0); i = ((i + 1)|0)) {",
				"continue;",
				"while (n) {",
				"n = ((n - 1)|0);",
				"} while (0);",
				"for (;;) {",
			},
		},
		{
			name: "Post Increment Value",
			src:  "int f(int x) { int y; y = x++; return y; }",
			want: []string{"y = (((x = ((x + 1)|0)) - 1)|0);"},
		},
		{
			name: "Logical And Conditional",
			src:  "int f(int a, int b) { return a && b ? a || b : !a; }",
			want: []string{"((a ? (b != 0) : 0)|0)", "((a ? 1 : (b != 0))|0)", "((!a)|0)"},
		},
		{
			name: "Calls",
			src:  "int g(int a) { return a; } void h() { } int f(double d) { h(); return g(d); }",
			want: []string{"\t\th();\n", "return ((g((~~d)))|0);", "g: g,", "h: h,", "f: f\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := mustGenerate(t, tt.src)
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output is missing %q:\n%s", w, out)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Errorf("output unexpectedly contains %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestFallThroughReturnsZero(t *testing.T) {
	out := mustGenerate(t, "int f(int a) { if (a) return 1; }")
	if !strings.Contains(out, "\t\t}\n\t\treturn 0;\n\t}\n") {
		t.Errorf("missing trailing return:\n%s", out)
	}
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind diag.Kind
	}{
		{"Break Outside Loop", "void f() { break; }", diag.BreakOutsideLoop},
		{"Continue Outside Loop", "void f() { continue; }", diag.ContinueOutsideLoop},
		{"Undefined Function", "int g(int); int f() { return g(1); }", diag.UnsupportedCallTarget},
		{"Arity", "int g(int a) { return a; } int f() { return g(); }", diag.TypeMismatch},
		{"Int To Double", "double g(double d) { return d; } double f() { return g(1); }", diag.UnsupportedCast},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := generate(t, tt.src)
			if !diag.Is(err, tt.kind) {
				t.Errorf("expected %s, got %v", tt.kind, err)
			}
		})
	}
}
