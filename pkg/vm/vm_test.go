package vm

import (
	"errors"
	"testing"

	"bonsaic/pkg/abstract"
	"bonsaic/pkg/cparse"
	"bonsaic/pkg/wasm"
)

func load(t *testing.T, src string) *VM {
	t.Helper()
	unit, err := cparse.ParseSource(src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	mod, err := abstract.Abstract(unit)
	if err != nil {
		t.Fatalf("Abstract failed: %v", err)
	}
	m, err := wasm.Assemble(mod)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	v, err := New(m)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return v
}

func TestPrograms(t *testing.T) {
	tests := []struct {
		name string
		src  string
		args []Value
		want Value
	}{
		{
			name: "Infinite For With Break",
			src:  "int f() { for (;;) { break; } return 7; }",
			want: I32(7),
		},
		{
			name: "Recursive Factorial",
			src:  "int f(int n) { if (n <= 1) return 1; return n * f(n - 1); }",
			args: []Value{I32(5)},
			want: I32(120),
		},
		{
			name: "Iterative Fibonacci",
			src: `
int f(int n) {
	int a = 0, b = 1;
	while (n > 0) {
		int t = a + b;
		a = b;
		b = t;
		n--;
	}
	return a;
}`,
			args: []Value{I32(10)},
			want: I32(55),
		},
		{
			name: "Post Increment Yields Old Value",
			src:  "int f() { int x = 5; int y = x++; return y * 10 + x; }",
			want: I32(56),
		},
		{
			name: "Truncating Division",
			src:  "int f(int a, int b) { return a / b * 10 + a % b; }",
			args: []Value{I32(-7), I32(2)},
			want: I32(-31),
		},
		{
			name: "Double Arithmetic",
			src:  "double f(double a, double b) { return a * b - a / b; }",
			args: []Value{F64(3), F64(2)},
			want: F64(4.5),
		},
		{
			name: "Truncation Toward Zero",
			src:  "int f(double d) { return d; }",
			args: []Value{F64(-2.7)},
			want: I32(-2),
		},
		{
			name: "Continue Skips Even",
			src: `
int f(int n) {
	int s = 0;
	for (int i = 0; i < n; i++) {
		if (i % 2 == 0) continue;
		s += i;
	}
	return s;
}`,
			args: []Value{I32(10)},
			want: I32(25),
		},
		{
			name: "Do While Runs Once",
			src:  "int f(int n) { int c = 0; do { c++; n -= 1; } while (n > 0); return c; }",
			args: []Value{I32(0)},
			want: I32(1),
		},
		{
			name: "Break From Nested If",
			src:  "int f() { int i = 0; while (1) { if (i == 4) break; i++; } return i; }",
			want: I32(4),
		},
		{
			name: "Conditional",
			src:  "int f(int a) { return a > 0 ? a : -a; }",
			args: []Value{I32(-5)},
			want: I32(5),
		},
		{
			name: "Short Circuit",
			src: `
int g;
int touch() { g = 1; return 1; }
int f(int a) { a && touch(); !a || touch(); return g; }`,
			args: []Value{I32(0)},
			want: I32(0),
		},
		{
			name: "Fall Through Yields Zero",
			src:  "int f(int a) { if (a) return 1; }",
			args: []Value{I32(0)},
			want: I32(0),
		},
		{
			name: "Shadowed Global",
			src:  "int x = 3; int f(int x) { { int x = 100; } return x; }",
			args: []Value{I32(9)},
			want: I32(9),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := load(t, tt.src)
			got, err := v.Call("f", tt.args...)
			if err != nil {
				t.Fatalf("Call failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("f() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGlobalsPersistAcrossCalls(t *testing.T) {
	v := load(t, "int counter = 10; int bump() { counter += 1; return counter; }")
	for i := 0; i < 2; i++ {
		if _, err := v.Call("bump"); err != nil {
			t.Fatalf("Call failed: %v", err)
		}
	}
	got, _ := v.Call("bump")
	if got != I32(13) {
		t.Errorf("third bump = %v, want 13", got)
	}
}

func TestMemory(t *testing.T) {
	v := load(t, `
void put(int *p, int v) { *p = v; }
int get(int *p) { return *p; }
double twice(double *d) { return *d + *d; }`)

	if _, err := v.Call("put", I32(16), I32(99)); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if n, _ := v.Read32(16); n != 99 {
		t.Errorf("memory[16] = %d, want 99", n)
	}
	if got, _ := v.Call("get", I32(16)); got != I32(99) {
		t.Errorf("get(16) = %v, want 99", got)
	}

	if err := v.WriteF64(64, 5); err != nil {
		t.Fatalf("WriteF64 failed: %v", err)
	}
	if got, _ := v.Call("twice", I32(64)); got != F64(10) {
		t.Errorf("twice = %v, want 10", got)
	}

	_, err := v.Call("get", I32(MemorySize-2))
	var trap *Trap
	if !errors.As(err, &trap) || trap.Reason != "out of bounds memory access" {
		t.Errorf("expected out of bounds trap, got %v", err)
	}
}

func TestTraps(t *testing.T) {
	v := load(t, "int div(int a, int b) { return a / b; } int conv(double d) { return d; }")

	tests := []struct {
		name   string
		fn     string
		args   []Value
		reason string
	}{
		{"Divide By Zero", "div", []Value{I32(1), I32(0)}, "integer divide by zero"},
		{"Division Overflow", "div", []Value{I32(-2147483648), I32(-1)}, "integer overflow"},
		{"Conversion Overflow", "conv", []Value{F64(1e10)}, "integer overflow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Call(tt.fn, tt.args...)
			var trap *Trap
			if !errors.As(err, &trap) {
				t.Fatalf("expected a trap, got %v", err)
			}
			if trap.Reason != tt.reason || trap.Func != tt.fn {
				t.Errorf("trap = %+v, want %q in %s", trap, tt.reason, tt.fn)
			}
		})
	}
}

func TestLimits(t *testing.T) {
	v := load(t, "int spin() { while (1) { } return 0; } int deep(int n) { return deep(n + 1); }")

	v.StepLimit = 1000
	if _, err := v.Call("spin"); !errors.Is(err, ErrStepLimit) {
		t.Errorf("spin: expected ErrStepLimit, got %v", err)
	}

	v.StepLimit = 0
	v.MaxCallDepth = 50
	if _, err := v.Call("deep", I32(0)); !errors.Is(err, ErrCallDepth) {
		t.Errorf("deep: expected ErrCallDepth, got %v", err)
	}
	if v.CallDepth != 0 {
		t.Errorf("call depth not unwound: %d", v.CallDepth)
	}
}

func TestCallChecksArguments(t *testing.T) {
	v := load(t, "int f(int a) { return a; }")
	if _, err := v.Call("missing"); err == nil {
		t.Errorf("expected an error for an unknown function")
	}
	if _, err := v.Call("f"); err == nil {
		t.Errorf("expected an arity error")
	}
	if _, err := v.Call("f", F64(1)); err == nil {
		t.Errorf("expected a type error")
	}
}

func TestParseArgs(t *testing.T) {
	f := &wasm.Function{Name: "f", Params: []wasm.ValType{wasm.I32, wasm.F64}}
	got, err := ParseArgs(f, []string{"0x10", "2.5"})
	if err != nil {
		t.Fatalf("ParseArgs failed: %v", err)
	}
	if got[0] != I32(16) || got[1] != F64(2.5) {
		t.Errorf("ParseArgs = %v", got)
	}
	if _, err := ParseArgs(f, []string{"1"}); err == nil {
		t.Errorf("expected an arity error")
	}
	if _, err := ParseArgs(f, []string{"x", "1"}); err == nil {
		t.Errorf("expected a parse error")
	}
}

func TestMalformedBody(t *testing.T) {
	m := &wasm.Module{Functions: []*wasm.Function{{Name: "f", Body: []wasm.Instruction{wasm.Block()}}}}
	if _, err := New(m); err == nil {
		t.Errorf("expected an unterminated block error")
	}
}
