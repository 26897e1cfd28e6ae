package vm

import (
	"fmt"
	"strconv"

	"bonsaic/pkg/wasm"
)

// Value is a typed machine value.
type Value struct {
	Type wasm.ValType
	I32  int32
	F64  float64
}

func I32(v int32) Value   { return Value{Type: wasm.I32, I32: v} }
func F64(v float64) Value { return Value{Type: wasm.F64, F64: v} }

func (v Value) String() string {
	if v.Type == wasm.F64 {
		return strconv.FormatFloat(v.F64, 'g', -1, 64)
	}
	return strconv.FormatInt(int64(v.I32), 10)
}

func zero(t wasm.ValType) Value {
	return Value{Type: t}
}

// ParseArgs converts command-line arguments to values of the function's
// parameter types.
func ParseArgs(f *wasm.Function, args []string) ([]Value, error) {
	if len(args) != len(f.Params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", f.Name, len(f.Params), len(args))
	}
	out := make([]Value, len(args))
	for i, s := range args {
		switch f.Params[i] {
		case wasm.F64:
			d, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i+1, err)
			}
			out[i] = F64(d)
		default:
			n, err := strconv.ParseInt(s, 0, 32)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i+1, err)
			}
			out[i] = I32(int32(n))
		}
	}
	return out, nil
}
