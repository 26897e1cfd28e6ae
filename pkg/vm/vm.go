// Package vm executes assembled modules on a structured stack machine. It is
// used to run compiled programs from the command line and to check generated
// code end to end in tests.
package vm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"bonsaic/pkg/wasm"
)

const (
	// MemorySize is one page of linear memory.
	MemorySize = 65536

	DefaultStepLimit    = 10_000_000
	DefaultMaxCallDepth = 1024
)

var (
	ErrStepLimit = errors.New("step limit exceeded")
	ErrCallDepth = errors.New("call stack exhausted")
)

// Trap is a runtime fault raised by an instruction.
type Trap struct {
	Func   string
	PC     int
	Reason string
}

func (t *Trap) Error() string {
	return fmt.Sprintf("trap in %s at instruction %d: %s", t.Func, t.PC, t.Reason)
}

// control holds the precomputed targets of a structured instruction.
type control struct {
	end int // matching end
	els int // matching else of an if, or -1
}

type VM struct {
	Memory  [MemorySize]byte
	Globals []Value

	// StepLimit bounds the instructions executed by one Call; zero means
	// unbounded.
	StepLimit    int
	MaxCallDepth int

	Steps     int
	CallDepth int

	module  *wasm.Module
	targets [][]control
}

// New prepares a module for execution. Globals take their initial values.
func New(m *wasm.Module) (*VM, error) {
	v := &VM{
		StepLimit:    DefaultStepLimit,
		MaxCallDepth: DefaultMaxCallDepth,
		module:       m,
	}
	for _, g := range m.Globals {
		c := wasm.Const(g.Type, g.Init)
		v.Globals = append(v.Globals, Value{Type: g.Type, I32: c.Int, F64: c.Float})
	}
	for _, f := range m.Functions {
		ctl, err := matchBlocks(f.Body)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", f.Name, err)
		}
		v.targets = append(v.targets, ctl)
	}
	return v, nil
}

func matchBlocks(body []wasm.Instruction) ([]control, error) {
	ctl := make([]control, len(body))
	var open []int
	for pc, ins := range body {
		ctl[pc].els = -1
		switch ins.Op {
		case wasm.OpBlock, wasm.OpLoop, wasm.OpIf:
			open = append(open, pc)
		case wasm.OpElse:
			if len(open) == 0 || body[open[len(open)-1]].Op != wasm.OpIf {
				return nil, fmt.Errorf("else at %d outside if", pc)
			}
			ctl[open[len(open)-1]].els = pc
		case wasm.OpEnd:
			if len(open) == 0 {
				return nil, fmt.Errorf("unbalanced end at %d", pc)
			}
			start := open[len(open)-1]
			open = open[:len(open)-1]
			ctl[start].end = pc
			if e := ctl[start].els; e >= 0 {
				ctl[e].end = pc
			}
		}
	}
	if len(open) > 0 {
		return nil, fmt.Errorf("unterminated block at %d", open[len(open)-1])
	}
	return ctl, nil
}

// Call runs the exported function name. A void function returns the zero
// Value.
func (v *VM) Call(name string, args ...Value) (Value, error) {
	f, idx := v.module.Function(name)
	if f == nil {
		return Value{}, fmt.Errorf("no function named %q", name)
	}
	if len(args) != len(f.Params) {
		return Value{}, fmt.Errorf("%s takes %d arguments, got %d", name, len(f.Params), len(args))
	}
	for i, a := range args {
		if a.Type != f.Params[i] {
			return Value{}, fmt.Errorf("%s: argument %d is %s, want %s", name, i+1, a.Type, f.Params[i])
		}
	}
	v.Steps = 0
	return v.invoke(idx, args)
}

type label struct {
	loop   bool
	start  int
	end    int
	height int
	arity  int
}

type frame struct {
	fn     *wasm.Function
	locals []Value
	stack  []Value
	labels []label
}

func (f *frame) push(val Value) { f.stack = append(f.stack, val) }

// pop removes the top of the stack. Assembled modules never underflow; a
// malformed one reads zeros.
func (f *frame) pop() Value {
	if len(f.stack) == 0 {
		return Value{}
	}
	val := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return val
}

// branch unwinds to the label depth levels out and returns the next pc.
func (f *frame) branch(depth int) (int, bool) {
	if depth >= len(f.labels) {
		return 0, false
	}
	target := f.labels[len(f.labels)-1-depth]
	if target.loop {
		f.stack = f.stack[:target.height]
		f.labels = f.labels[:len(f.labels)-depth]
		return target.start + 1, true
	}
	results := f.stack[len(f.stack)-target.arity:]
	f.stack = append(f.stack[:target.height], results...)
	f.labels = f.labels[:len(f.labels)-1-depth]
	return target.end + 1, true
}

func (v *VM) invoke(idx int, args []Value) (Value, error) {
	if v.CallDepth >= v.MaxCallDepth {
		return Value{}, ErrCallDepth
	}
	v.CallDepth++
	defer func() { v.CallDepth-- }()

	fn := v.module.Functions[idx]
	ctl := v.targets[idx]
	fr := &frame{fn: fn, locals: make([]Value, 0, len(args)+len(fn.Locals))}
	fr.locals = append(fr.locals, args...)
	for _, t := range fn.Locals {
		fr.locals = append(fr.locals, zero(t))
	}

	trap := func(pc int, reason string) error {
		return &Trap{Func: fn.Name, PC: pc, Reason: reason}
	}

	for pc := 0; pc < len(fn.Body); {
		v.Steps++
		if v.StepLimit > 0 && v.Steps > v.StepLimit {
			return Value{}, ErrStepLimit
		}

		ins := fn.Body[pc]
		switch ins.Op {
		case wasm.OpConst:
			fr.push(Value{Type: ins.Type, I32: ins.Int, F64: ins.Float})
		case wasm.OpGetLocal:
			fr.push(fr.locals[ins.Index])
		case wasm.OpSetLocal:
			fr.locals[ins.Index] = fr.pop()
		case wasm.OpTeeLocal:
			fr.locals[ins.Index] = fr.stack[len(fr.stack)-1]
		case wasm.OpGetGlobal:
			fr.push(v.Globals[ins.Index])
		case wasm.OpSetGlobal:
			v.Globals[ins.Index] = fr.pop()
		case wasm.OpDrop:
			fr.pop()

		case wasm.OpBlock, wasm.OpLoop:
			fr.labels = append(fr.labels, label{
				loop:   ins.Op == wasm.OpLoop,
				start:  pc,
				end:    ctl[pc].end,
				height: len(fr.stack),
			})
		case wasm.OpIf:
			cond := fr.pop()
			l := label{start: pc, end: ctl[pc].end, height: len(fr.stack)}
			if ins.Type != 0 {
				l.arity = 1
			}
			switch {
			case cond.I32 != 0:
				fr.labels = append(fr.labels, l)
			case ctl[pc].els >= 0:
				fr.labels = append(fr.labels, l)
				pc = ctl[pc].els + 1
				continue
			default:
				pc = ctl[pc].end + 1
				continue
			}
		case wasm.OpElse:
			// End of the taken branch.
			fr.labels = fr.labels[:len(fr.labels)-1]
			pc = ctl[pc].end + 1
			continue
		case wasm.OpEnd:
			fr.labels = fr.labels[:len(fr.labels)-1]
		case wasm.OpBr:
			next, ok := fr.branch(int(ins.Index))
			if !ok {
				return Value{}, trap(pc, "branch depth out of range")
			}
			pc = next
			continue

		case wasm.OpReturn:
			return v.result(fr), nil
		case wasm.OpCall:
			callee := v.module.Functions[ins.Index]
			n := len(callee.Params)
			args := make([]Value, n)
			copy(args, fr.stack[len(fr.stack)-n:])
			fr.stack = fr.stack[:len(fr.stack)-n]
			res, err := v.invoke(int(ins.Index), args)
			if err != nil {
				return Value{}, err
			}
			if len(callee.Result) > 0 {
				fr.push(res)
			}

		case wasm.OpLoad:
			addr := fr.pop()
			val, err := v.load(ins, addr.I32)
			if err != nil {
				return Value{}, trap(pc, err.Error())
			}
			fr.push(val)
		case wasm.OpStore:
			val := fr.pop()
			addr := fr.pop()
			if err := v.store(ins, addr.I32, val); err != nil {
				return Value{}, trap(pc, err.Error())
			}

		case wasm.OpEqz:
			fr.push(boolean(fr.pop().I32 == 0))
		case wasm.OpNeg:
			fr.push(F64(-fr.pop().F64))
		case wasm.OpTruncS:
			d := fr.pop().F64
			if math.IsNaN(d) {
				return Value{}, trap(pc, "invalid conversion to integer")
			}
			d = math.Trunc(d)
			if d < math.MinInt32 || d > math.MaxInt32 {
				return Value{}, trap(pc, "integer overflow")
			}
			fr.push(I32(int32(d)))

		default:
			b := fr.pop()
			a := fr.pop()
			var (
				res    Value
				reason string
			)
			if ins.Type == wasm.F64 {
				res, reason = f64Binary(ins.Op, a.F64, b.F64)
			} else {
				res, reason = i32Binary(ins.Op, a.I32, b.I32)
			}
			if reason != "" {
				return Value{}, trap(pc, reason)
			}
			fr.push(res)
		}
		pc++
	}
	return v.result(fr), nil
}

func (v *VM) result(fr *frame) Value {
	if len(fr.fn.Result) == 0 {
		return Value{}
	}
	return fr.pop()
}

func boolean(b bool) Value {
	if b {
		return I32(1)
	}
	return I32(0)
}

func i32Binary(op wasm.Opcode, a, b int32) (Value, string) {
	switch op {
	case wasm.OpAdd:
		return I32(a + b), ""
	case wasm.OpSub:
		return I32(a - b), ""
	case wasm.OpMul:
		return I32(a * b), ""
	case wasm.OpDiv:
		if b == 0 {
			return Value{}, "integer divide by zero"
		}
		if a == math.MinInt32 && b == -1 {
			return Value{}, "integer overflow"
		}
		return I32(a / b), ""
	case wasm.OpRem:
		if b == 0 {
			return Value{}, "integer divide by zero"
		}
		return I32(a % b), ""
	case wasm.OpShl:
		return I32(a << (uint32(b) & 31)), ""
	case wasm.OpShr:
		return I32(a >> (uint32(b) & 31)), ""
	case wasm.OpEq:
		return boolean(a == b), ""
	case wasm.OpNe:
		return boolean(a != b), ""
	case wasm.OpLt:
		return boolean(a < b), ""
	case wasm.OpLe:
		return boolean(a <= b), ""
	case wasm.OpGt:
		return boolean(a > b), ""
	case wasm.OpGe:
		return boolean(a >= b), ""
	}
	return Value{}, fmt.Sprintf("unsupported i32 instruction %s", wasm.Numeric(op, wasm.I32))
}

func f64Binary(op wasm.Opcode, a, b float64) (Value, string) {
	switch op {
	case wasm.OpAdd:
		return F64(a + b), ""
	case wasm.OpSub:
		return F64(a - b), ""
	case wasm.OpMul:
		return F64(a * b), ""
	case wasm.OpDiv:
		return F64(a / b), ""
	case wasm.OpEq:
		return boolean(a == b), ""
	case wasm.OpNe:
		return boolean(a != b), ""
	case wasm.OpLt:
		return boolean(a < b), ""
	case wasm.OpLe:
		return boolean(a <= b), ""
	case wasm.OpGt:
		return boolean(a > b), ""
	case wasm.OpGe:
		return boolean(a >= b), ""
	}
	return Value{}, fmt.Sprintf("unsupported f64 instruction %s", wasm.Numeric(op, wasm.F64))
}

func (v *VM) address(ins wasm.Instruction, base int32) (uint32, error) {
	size := uint64(4)
	if ins.Type == wasm.F64 {
		size = 8
	}
	ea := uint64(uint32(base))
	if ins.Offset != nil {
		ea += uint64(*ins.Offset)
	}
	if ea+size > MemorySize {
		return 0, errors.New("out of bounds memory access")
	}
	return uint32(ea), nil
}

func (v *VM) load(ins wasm.Instruction, base int32) (Value, error) {
	ea, err := v.address(ins, base)
	if err != nil {
		return Value{}, err
	}
	if ins.Type == wasm.F64 {
		return F64(math.Float64frombits(binary.LittleEndian.Uint64(v.Memory[ea:]))), nil
	}
	return I32(int32(binary.LittleEndian.Uint32(v.Memory[ea:]))), nil
}

func (v *VM) store(ins wasm.Instruction, base int32, val Value) error {
	ea, err := v.address(ins, base)
	if err != nil {
		return err
	}
	if ins.Type == wasm.F64 {
		binary.LittleEndian.PutUint64(v.Memory[ea:], math.Float64bits(val.F64))
		return nil
	}
	binary.LittleEndian.PutUint32(v.Memory[ea:], uint32(val.I32))
	return nil
}

// Read32 reads a little-endian int from memory.
func (v *VM) Read32(addr uint32) (int32, error) {
	val, err := v.load(wasm.Load(wasm.I32), int32(addr))
	return val.I32, err
}

// Write32 writes a little-endian int to memory.
func (v *VM) Write32(addr uint32, n int32) error {
	return v.store(wasm.Store(wasm.I32), int32(addr), I32(n))
}

// WriteF64 writes a little-endian double to memory.
func (v *VM) WriteF64(addr uint32, d float64) error {
	return v.store(wasm.Store(wasm.F64), int32(addr), F64(d))
}
