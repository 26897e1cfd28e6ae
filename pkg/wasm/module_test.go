package wasm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestInstructionString(t *testing.T) {
	off := uint32(8)
	tests := []struct {
		ins  Instruction
		want string
	}{
		{ConstI32(-7), "i32.const -7"},
		{ConstF64(2.5), "f64.const 2.5"},
		{Const(F64, 3), "f64.const 3"},
		{GetGlobal(2), "get_global 2"},
		{TeeLocal(1), "tee_local 1"},
		{Numeric(OpDiv, I32), "i32.div_s"},
		{Numeric(OpRem, I32), "i32.rem_s"},
		{Numeric(OpShr, I32), "i32.shr_s"},
		{Numeric(OpGe, F64), "f64.ge"},
		{Numeric(OpTruncS, I32), "i32.trunc_s/f64"},
		{Instruction{Op: OpLoad, Type: I32, Offset: &off}, "i32.load offset=8"},
		{Store(F64), "f64.store"},
		{IfResult(F64), "if (result f64)"},
		{If(), "if"},
		{Br(3), "br 3"},
		{Call(0), "call 0"},
		{Numeric(OpRem, F64), "<invalid op 10 f64>"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.ins.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSupports(t *testing.T) {
	if !OpAdd.Supports(F64) || !OpShl.Supports(I32) {
		t.Errorf("expected add on f64 and shl on i32 to be supported")
	}
	if OpShl.Supports(F64) || OpNeg.Supports(I32) || OpBr.Supports(I32) {
		t.Errorf("unsupported combinations reported as supported")
	}
}

func TestText(t *testing.T) {
	m := mustAssemble(t, `
int counter = 3;
double scale;
int get(int *p) { while (*p) { return 1; } return 0; }`)
	text := m.Text()

	for _, want := range []string{
		"(module\n",
		"  (memory 1)\n",
		"  (global $counter (mut i32) (i32.const 3))\n",
		"  (global $scale (mut f64) (f64.const 0))\n",
		"  (func $get (export \"get\") (param i32) (result i32)\n",
		"    block\n",
		"      loop\n",
		"        i32.load\n",
		"        if\n",
		"          i32.const 1\n",
		"          br 1\n",
		"        end\n",
		"      end\n",
		"    end\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("text is missing %q:\n%s", want, text)
		}
	}
}

func TestEncode(t *testing.T) {
	m := mustAssemble(t, "int f() { return 42; }")
	want := []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x05, 0x01, 0x60, 0x00, 0x01, 0x7f, // type
		0x03, 0x02, 0x01, 0x00, // function
		0x07, 0x05, 0x01, 0x01, 'f', 0x00, 0x00, // export
		0x0a, 0x07, 0x01, 0x05, 0x00, 0x41, 0x2a, 0x0f, 0x0b, // code
	}
	if diff := cmp.Diff(want, m.Encode()); diff != "" {
		t.Errorf("encoding mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeSharesTypes(t *testing.T) {
	m := mustAssemble(t, "int a(int x) { return x; } int b(int y) { return y; } double c(double d) { return d; }")
	out := m.Encode()
	// Two distinct signatures for three functions.
	typeSection := []byte{0x01, 0x0b, 0x02, 0x60, 0x01, 0x7f, 0x01, 0x7f, 0x60, 0x01, 0x7c, 0x01, 0x7c}
	if !bytes.Contains(out, typeSection) {
		t.Errorf("type section not found in % x", out)
	}
	funcSection := []byte{0x03, 0x04, 0x03, 0x00, 0x00, 0x01}
	if !bytes.Contains(out, funcSection) {
		t.Errorf("function section not found in % x", out)
	}
}

func TestLEB128(t *testing.T) {
	if diff := cmp.Diff([]byte{0xe5, 0x8e, 0x26}, encodeU32(624485)); diff != "" {
		t.Errorf("encodeU32 (-want +got):\n%s", diff)
	}
	signed := []struct {
		v    int32
		want []byte
	}{
		{0, []byte{0x00}},
		{-1, []byte{0x7f}},
		{63, []byte{0x3f}},
		{64, []byte{0xc0, 0x00}},
		{-64, []byte{0x40}},
		{-65, []byte{0xbf, 0x7f}},
	}
	for _, tt := range signed {
		if diff := cmp.Diff(tt.want, encodeS32(tt.v)); diff != "" {
			t.Errorf("encodeS32(%d) (-want +got):\n%s", tt.v, diff)
		}
	}
}

func TestEncodeLocalsGroupsRuns(t *testing.T) {
	got := encodeLocals([]ValType{I32, I32, F64, I32})
	want := []byte{0x03, 0x02, 0x7f, 0x01, 0x7c, 0x01, 0x7f}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("encodeLocals (-want +got):\n%s", diff)
	}
}
