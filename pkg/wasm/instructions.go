// Package wasm lowers the typed IR to a structured stack-machine instruction
// stream and assembles it into a WebAssembly module, in text or binary form.
package wasm

import (
	"fmt"
	"strconv"

	"bonsaic/pkg/ctype"
	"bonsaic/pkg/diag"
)

// ValType is a machine value type. The values are the binary encodings.
type ValType byte

const (
	I32 ValType = 0x7f
	F64 ValType = 0x7c
)

func (t ValType) String() string {
	switch t {
	case I32:
		return "i32"
	case F64:
		return "f64"
	}
	return fmt.Sprintf("valtype(0x%02x)", byte(t))
}

// FromCType maps a C type to the machine type that holds it. Pointers are
// 32-bit addresses.
func FromCType(t *ctype.Type) (ValType, error) {
	switch t.Category() {
	case ctype.Int, ctype.Pointer:
		return I32, nil
	case ctype.Double:
		return F64, nil
	}
	return 0, diag.New(diag.UnsupportedOperandType, "machine type", "%s", t)
}

// Opcode is the closed instruction vocabulary. Numeric opcodes are generic;
// the operand type selects the concrete (signed, for i32) variant.
type Opcode int

const (
	OpConst Opcode = iota
	OpGetLocal
	OpSetLocal
	OpTeeLocal
	OpGetGlobal
	OpSetGlobal

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpShl
	OpShr
	OpNeg
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpEqz
	OpTruncS // i32.trunc_s/f64

	OpLoad
	OpStore

	OpBlock
	OpLoop
	OpIf
	OpElse
	OpEnd
	OpBr
	OpCall
	OpDrop
	OpReturn
)

// numeric holds the text mnemonic and binary opcode of each typed numeric
// operation; an empty mnemonic means the type is not supported.
type numeric struct {
	i32, f64         string
	i32Code, f64Code byte
}

var numericOps = map[Opcode]numeric{
	OpAdd:    {"i32.add", "f64.add", 0x6a, 0xa0},
	OpSub:    {"i32.sub", "f64.sub", 0x6b, 0xa1},
	OpMul:    {"i32.mul", "f64.mul", 0x6c, 0xa2},
	OpDiv:    {"i32.div_s", "f64.div", 0x6d, 0xa3},
	OpRem:    {"i32.rem_s", "", 0x6f, 0},
	OpShl:    {"i32.shl", "", 0x74, 0},
	OpShr:    {"i32.shr_s", "", 0x75, 0},
	OpNeg:    {"", "f64.neg", 0, 0x9a},
	OpEq:     {"i32.eq", "f64.eq", 0x46, 0x61},
	OpNe:     {"i32.ne", "f64.ne", 0x47, 0x62},
	OpLt:     {"i32.lt_s", "f64.lt", 0x48, 0x63},
	OpLe:     {"i32.le_s", "f64.le", 0x4c, 0x65},
	OpGt:     {"i32.gt_s", "f64.gt", 0x4a, 0x64},
	OpGe:     {"i32.ge_s", "f64.ge", 0x4e, 0x66},
	OpEqz:    {"i32.eqz", "", 0x45, 0},
	OpTruncS: {"i32.trunc_s/f64", "", 0xaa, 0},
	OpLoad:   {"i32.load", "f64.load", 0x28, 0x2b},
	OpStore:  {"i32.store", "f64.store", 0x36, 0x39},
}

func (n numeric) pick(t ValType) (string, byte) {
	if t == F64 {
		return n.f64, n.f64Code
	}
	return n.i32, n.i32Code
}

// Supports reports whether a typed opcode exists for operand type t.
func (op Opcode) Supports(t ValType) bool {
	n, ok := numericOps[op]
	if !ok {
		return false
	}
	name, _ := n.pick(t)
	return name != ""
}

// Instruction is one stack-machine instruction.
type Instruction struct {
	Op Opcode

	// Type is the operand type of numeric, const and memory instructions,
	// and the result type of an if (zero when the if yields nothing).
	Type ValType

	// Index is a local, global or function index, or a branch depth.
	Index uint32

	Int   int32   // i32.const
	Float float64 // f64.const

	// Offset is the static offset of a load or store; nil means none.
	Offset *uint32
}

func ConstI32(v int32) Instruction             { return Instruction{Op: OpConst, Type: I32, Int: v} }
func ConstF64(v float64) Instruction           { return Instruction{Op: OpConst, Type: F64, Float: v} }
func GetLocal(i uint32) Instruction            { return Instruction{Op: OpGetLocal, Index: i} }
func SetLocal(i uint32) Instruction            { return Instruction{Op: OpSetLocal, Index: i} }
func TeeLocal(i uint32) Instruction            { return Instruction{Op: OpTeeLocal, Index: i} }
func GetGlobal(i uint32) Instruction           { return Instruction{Op: OpGetGlobal, Index: i} }
func SetGlobal(i uint32) Instruction           { return Instruction{Op: OpSetGlobal, Index: i} }
func Numeric(op Opcode, t ValType) Instruction { return Instruction{Op: op, Type: t} }
func Load(t ValType) Instruction               { return Instruction{Op: OpLoad, Type: t} }
func Store(t ValType) Instruction              { return Instruction{Op: OpStore, Type: t} }
func Block() Instruction                       { return Instruction{Op: OpBlock} }
func Loop() Instruction                        { return Instruction{Op: OpLoop} }
func If() Instruction                          { return Instruction{Op: OpIf} }
func IfResult(t ValType) Instruction           { return Instruction{Op: OpIf, Type: t} }
func Else() Instruction                        { return Instruction{Op: OpElse} }
func End() Instruction                         { return Instruction{Op: OpEnd} }
func Br(depth uint32) Instruction              { return Instruction{Op: OpBr, Index: depth} }
func Call(index uint32) Instruction            { return Instruction{Op: OpCall, Index: index} }
func Drop() Instruction                        { return Instruction{Op: OpDrop} }
func Return() Instruction                      { return Instruction{Op: OpReturn} }

// Const pushes v as a value of machine type t.
func Const(t ValType, v int64) Instruction {
	if t == F64 {
		return ConstF64(float64(v))
	}
	return ConstI32(int32(v))
}

var plainNames = map[Opcode]string{
	OpGetLocal:  "get_local",
	OpSetLocal:  "set_local",
	OpTeeLocal:  "tee_local",
	OpGetGlobal: "get_global",
	OpSetGlobal: "set_global",
	OpBlock:     "block",
	OpLoop:      "loop",
	OpElse:      "else",
	OpEnd:       "end",
	OpBr:        "br",
	OpCall:      "call",
	OpDrop:      "drop",
	OpReturn:    "return",
}

// String renders the instruction in s-expression text form.
func (ins Instruction) String() string {
	switch ins.Op {
	case OpConst:
		if ins.Type == F64 {
			return "f64.const " + strconv.FormatFloat(ins.Float, 'g', -1, 64)
		}
		return fmt.Sprintf("i32.const %d", ins.Int)
	case OpGetLocal, OpSetLocal, OpTeeLocal, OpGetGlobal, OpSetGlobal, OpBr, OpCall:
		return fmt.Sprintf("%s %d", plainNames[ins.Op], ins.Index)
	case OpIf:
		if ins.Type != 0 {
			return fmt.Sprintf("if (result %s)", ins.Type)
		}
		return "if"
	case OpLoad, OpStore:
		name, _ := numericOps[ins.Op].pick(ins.Type)
		if ins.Offset != nil {
			return fmt.Sprintf("%s offset=%d", name, *ins.Offset)
		}
		return name
	}
	if name, ok := plainNames[ins.Op]; ok {
		return name
	}
	if n, ok := numericOps[ins.Op]; ok {
		if name, _ := n.pick(ins.Type); name != "" {
			return name
		}
	}
	return fmt.Sprintf("<invalid op %d %s>", int(ins.Op), ins.Type)
}

// nesting reports how an instruction changes block nesting for indentation:
// +1 opens, -1 closes, 0 for else (dedent then indent) and plain instructions.
func (ins Instruction) nesting() int {
	switch ins.Op {
	case OpBlock, OpLoop, OpIf:
		return 1
	case OpEnd:
		return -1
	}
	return 0
}
