package compiler

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"bonsaic/pkg/config"
	"bonsaic/pkg/diag"
	"bonsaic/pkg/logging"
)

func TestMain(m *testing.M) {
	logging.Initialize("silent")
	os.Exit(m.Run())
}

const program = `
int counter = 2;
int square(int x) { return x * x; }
int unused() { return 0; }
int main() { counter += 1; return square(counter); }
`

func TestCompileFormats(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{config.FormatWast, "(func $square (export \"square\")"},
		{config.FormatAsmJS, "function calc(stdlib, foreign, heap) {"},
		{config.FormatLLVM, "define i32 @square(i32 %x)"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			res, err := Compile(program, ".", Options{Format: tt.format, ModuleName: "calc"})
			if err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			if !strings.Contains(res.Text, tt.want) {
				t.Errorf("output is missing %q:\n%s", tt.want, res.Text)
			}
			if res.Binary != nil {
				t.Errorf("text format produced a binary")
			}
		})
	}
}

func TestCompileBinary(t *testing.T) {
	res, err := Compile(program, ".", Options{Format: config.FormatWasm})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if !bytes.HasPrefix(res.Binary, []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}) {
		t.Errorf("missing wasm header: % x", res.Binary[:8])
	}
	if res.Text != "" || res.Wasm == nil {
		t.Errorf("unexpected result: text %q, module %v", res.Text, res.Wasm)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind diag.Kind
	}{
		{"Type Mismatch", "int f() { int x; double y; x = y; return x; }", diag.TypeMismatch},
		{"Undeclared", "int f() { return y; }", diag.UndeclaredVariable},
		{"Break Outside Loop", "void f() { break; }", diag.BreakOutsideLoop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Compile(tt.src, ".", Options{Format: config.FormatWast})
			if !diag.Is(err, tt.kind) {
				t.Errorf("expected %s, got %v", tt.kind, err)
			}
			if res != nil {
				t.Errorf("expected no output on error")
			}
		})
	}

	if _, err := Compile("int f( {", ".", Options{Format: config.FormatWast}); err == nil {
		t.Errorf("expected a parse error")
	}
	if _, err := Compile(program, ".", Options{Format: "exe"}); err == nil {
		t.Errorf("expected an unknown format error")
	}
}

func TestCompileInclude(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "lib.h"), []byte("int one() { return 1; }\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	res, err := Compile("#include \"lib.h\"\nint two() { return one() + one(); }\n", dir, Options{Format: config.FormatWast})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if res.Module.Function("one") == nil || res.Module.Function("two") == nil {
		t.Errorf("included function missing")
	}
}

func TestPrune(t *testing.T) {
	res, err := Compile(program, ".", Options{Format: config.FormatWast, Roots: []string{"main"}})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	var got []string
	for _, f := range res.Wasm.Functions {
		got = append(got, f.Name)
	}
	if diff := cmp.Diff([]string{"square", "main"}, got); diff != "" {
		t.Errorf("functions mismatch (-want +got):\n%s", diff)
	}
	if len(res.Module.Globals) != 1 {
		t.Errorf("globals were pruned")
	}
}

func TestPruneFollowsNestedCalls(t *testing.T) {
	mod, err := Frontend(`
int leaf() { return 1; }
int mid(int a) { return a ? leaf() : 0; }
int top() { int i; for (i = 0; i < 2; i++) { while (mid(i)) { } } return 0; }
int other() { return leaf(); }
`, ".")
	if err != nil {
		t.Fatalf("Frontend failed: %v", err)
	}
	pruned, err := Prune(mod, "top")
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	var got []string
	for _, f := range pruned.Functions {
		got = append(got, f.Name)
	}
	if diff := cmp.Diff([]string{"leaf", "mid", "top"}, got); diff != "" {
		t.Errorf("functions mismatch (-want +got):\n%s", diff)
	}
	if len(mod.Functions) != 4 {
		t.Errorf("Prune modified its input")
	}
}

func TestPruneUnknownRoot(t *testing.T) {
	_, err := Compile(program, ".", Options{Format: config.FormatWast, Roots: []string{"main", "mian"}})
	if err == nil || !strings.Contains(err.Error(), "`mian`") {
		t.Errorf("expected an error naming mian, got %v", err)
	}
}

func TestDump(t *testing.T) {
	var buf bytes.Buffer
	if err := Dump(&buf, program, "."); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Source:", "Tokens (", "Parse Tree", "Symbols", "IR", "Generated Wast", "counter", "global", "function", "(module"} {
		if !strings.Contains(out, want) {
			t.Errorf("dump is missing %q", want)
		}
	}
}

func TestDumpStopsAtError(t *testing.T) {
	var buf bytes.Buffer
	err := Dump(&buf, "int f() { return y; }", ".")
	if !diag.Is(err, diag.UndeclaredVariable) {
		t.Errorf("expected UndeclaredVariable, got %v", err)
	}
	if strings.Contains(buf.String(), "Generated Wast") {
		t.Errorf("dump continued past the error")
	}
}
