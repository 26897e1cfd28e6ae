package abstract

import (
	"math"

	"bonsaic/pkg/ir"
)

// wrap32 reduces v to the signed 32-bit range the way i32 arithmetic does.
func wrap32(v int64) int64 {
	return int64(int32(v))
}

func boolValue(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// foldBinary evaluates an int operator on two constants. ok is false when the
// result must be left to run time (division by zero, INT_MIN / -1).
func foldBinary(op ir.BinaryOp, l, r int64) (v int64, ok bool) {
	a, b := int32(l), int32(r)
	switch op {
	case ir.Add:
		return wrap32(int64(a) + int64(b)), true
	case ir.Sub:
		return wrap32(int64(a) - int64(b)), true
	case ir.Mul:
		return wrap32(int64(a) * int64(b)), true
	case ir.Div, ir.Mod:
		if b == 0 || (a == math.MinInt32 && b == -1) {
			return 0, false
		}
		if op == ir.Div {
			return int64(a / b), true
		}
		return int64(a % b), true
	case ir.Shl:
		return int64(a << (uint32(b) & 31)), true
	case ir.Shr:
		return int64(a >> (uint32(b) & 31)), true
	case ir.Eq:
		return boolValue(a == b), true
	case ir.Ne:
		return boolValue(a != b), true
	case ir.Lt:
		return boolValue(a < b), true
	case ir.Le:
		return boolValue(a <= b), true
	case ir.Gt:
		return boolValue(a > b), true
	case ir.Ge:
		return boolValue(a >= b), true
	}
	return 0, false
}

func foldLogical(op ir.LogicalOp, l, r int64) int64 {
	if op == ir.And {
		return boolValue(l != 0 && r != 0)
	}
	return boolValue(l != 0 || r != 0)
}

func foldUnary(op ir.UnaryOp, v int64) int64 {
	if op == ir.LogicalNot {
		return boolValue(v == 0)
	}
	return wrap32(-v)
}
