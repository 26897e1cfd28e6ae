package llvmgen

import (
	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"bonsaic/pkg/ctype"
	"bonsaic/pkg/diag"
	"bonsaic/pkg/ir"
)

var intPreds = map[ir.BinaryOp]enum.IPred{
	ir.Eq: enum.IPredEQ, ir.Ne: enum.IPredNE,
	ir.Lt: enum.IPredSLT, ir.Le: enum.IPredSLE,
	ir.Gt: enum.IPredSGT, ir.Ge: enum.IPredSGE,
}

var floatPreds = map[ir.BinaryOp]enum.FPred{
	ir.Eq: enum.FPredOEQ, ir.Ne: enum.FPredUNE,
	ir.Lt: enum.FPredOLT, ir.Le: enum.FPredOLE,
	ir.Gt: enum.FPredOGT, ir.Ge: enum.FPredOGE,
}

// expr generates e into the current block and returns its value, or nil for
// a call to a void function.
func (fg *funcGen) expr(e ir.Expr) (value.Value, error) {
	if v, ok := e.Constant(); ok {
		return zero(e.Type(), v)
	}

	switch e := e.(type) {
	case *ir.Const:
		return zero(e.Type(), e.Value)

	case *ir.VarRef:
		if e.Var.IsFunction() {
			return nil, diag.New(diag.UnsupportedOperandType, "variable", "function %s used as a value", e.Var.Name)
		}
		addr, err := fg.slot(e.Var)
		if err != nil {
			return nil, err
		}
		t, err := convType(e.Type())
		if err != nil {
			return nil, err
		}
		return fg.block.NewLoad(t, addr), nil

	case *ir.Unary:
		arg, err := fg.expr(e.Arg)
		if err != nil {
			return nil, err
		}
		if e.Op == ir.LogicalNot {
			isZero := fg.block.NewICmp(enum.IPredEQ, arg, constant.NewInt(types.I32, 0))
			return fg.block.NewZExt(isZero, types.I32), nil
		}
		if e.Type().Is(ctype.Double) {
			return fg.block.NewFNeg(arg), nil
		}
		return fg.block.NewSub(constant.NewInt(types.I32, 0), arg), nil

	case *ir.Binary:
		return fg.binary(e)

	case *ir.Logical:
		return fg.logical(e)

	case *ir.Assign:
		return fg.assign(e)

	case *ir.PostUpdate:
		ref, ok := e.Arg.(*ir.VarRef)
		if !ok {
			return nil, diag.New(diag.UnsupportedOperator, "postfix operator", "%s on %T", e.Op, e.Arg)
		}
		addr, err := fg.slot(ref.Var)
		if err != nil {
			return nil, err
		}
		old := fg.block.NewLoad(types.I32, addr)
		one := constant.NewInt(types.I32, 1)
		var updated value.Value
		if e.Op == ir.Decrement {
			updated = fg.block.NewSub(old, one)
		} else {
			updated = fg.block.NewAdd(old, one)
		}
		fg.block.NewStore(updated, addr)
		return old, nil

	case *ir.Deref:
		ptr, err := fg.expr(e.Arg)
		if err != nil {
			return nil, err
		}
		t, err := convType(e.Type())
		if err != nil {
			return nil, err
		}
		return fg.block.NewLoad(t, ptr), nil

	case *ir.Call:
		return fg.call(e)

	case *ir.Comma:
		if _, err := fg.expr(e.Left); err != nil {
			return nil, err
		}
		return fg.expr(e.Right)

	case *ir.Conditional:
		return fg.conditional(e)
	}
	return nil, diag.New(diag.UnrecognisedConstruct, "expression", "%T", e)
}

func (fg *funcGen) binary(e *ir.Binary) (value.Value, error) {
	x, err := fg.expr(e.Left)
	if err != nil {
		return nil, err
	}
	y, err := fg.expr(e.Right)
	if err != nil {
		return nil, err
	}
	b := fg.block

	if e.Op.IsComparison() {
		var cmp value.Value
		if e.Left.Type().Is(ctype.Double) {
			cmp = b.NewFCmp(floatPreds[e.Op], x, y)
		} else {
			cmp = b.NewICmp(intPreds[e.Op], x, y)
		}
		return b.NewZExt(cmp, types.I32), nil
	}

	if e.Type().Is(ctype.Double) {
		switch e.Op {
		case ir.Add:
			return b.NewFAdd(x, y), nil
		case ir.Sub:
			return b.NewFSub(x, y), nil
		case ir.Mul:
			return b.NewFMul(x, y), nil
		case ir.Div:
			return b.NewFDiv(x, y), nil
		}
		return nil, diag.New(diag.UnsupportedOperandType, "binary operator", "%s on %s", e.Op, e.Type())
	}

	switch e.Op {
	case ir.Add:
		return b.NewAdd(x, y), nil
	case ir.Sub:
		return b.NewSub(x, y), nil
	case ir.Mul:
		return b.NewMul(x, y), nil
	case ir.Div:
		return b.NewSDiv(x, y), nil
	case ir.Mod:
		return b.NewSRem(x, y), nil
	case ir.Shl:
		return b.NewShl(x, b.NewAnd(y, constant.NewInt(types.I32, 31))), nil
	case ir.Shr:
		return b.NewAShr(x, b.NewAnd(y, constant.NewInt(types.I32, 31))), nil
	}
	return nil, diag.New(diag.UnrecognisedConstruct, "binary operator", "%s", e.Op)
}

// logical short-circuits && and || through a phi over i1.
func (fg *funcGen) logical(e *ir.Logical) (value.Value, error) {
	left, err := fg.expr(e.Left)
	if err != nil {
		return nil, err
	}
	cond := fg.truth(left)
	from := fg.block

	label := "and"
	if e.Op == ir.Or {
		label = "or"
	}
	rhs, end := fg.newBlock(label+".rhs"), fg.newBlock(label+".end")
	var short constant.Constant
	if e.Op == ir.And {
		from.NewCondBr(cond, rhs, end)
		short = constant.False
	} else {
		from.NewCondBr(cond, end, rhs)
		short = constant.True
	}

	fg.block = rhs
	right, err := fg.expr(e.Right)
	if err != nil {
		return nil, err
	}
	rightCond := fg.truth(right)
	rhsEnd := fg.block
	rhsEnd.NewBr(end)

	fg.block = end
	phi := end.NewPhi(llir.NewIncoming(short, from), llir.NewIncoming(rightCond, rhsEnd))
	return end.NewZExt(phi, types.I32), nil
}

func (fg *funcGen) conditional(e *ir.Conditional) (value.Value, error) {
	test, err := fg.expr(e.Test)
	if err != nil {
		return nil, err
	}
	then, els, end := fg.newBlock("cond.then"), fg.newBlock("cond.else"), fg.newBlock("cond.end")
	fg.block.NewCondBr(fg.truth(test), then, els)

	fg.block = then
	cons, err := fg.expr(e.Consequent)
	if err != nil {
		return nil, err
	}
	thenEnd := fg.block
	thenEnd.NewBr(end)

	fg.block = els
	alt, err := fg.expr(e.Alternate)
	if err != nil {
		return nil, err
	}
	elsEnd := fg.block
	elsEnd.NewBr(end)

	fg.block = end
	if cons == nil || alt == nil {
		return nil, nil
	}
	return end.NewPhi(llir.NewIncoming(cons, thenEnd), llir.NewIncoming(alt, elsEnd)), nil
}

func (fg *funcGen) assign(e *ir.Assign) (value.Value, error) {
	right, err := fg.expr(e.Right)
	if err != nil {
		return nil, err
	}

	var addr value.Value
	switch left := e.Left.(type) {
	case *ir.VarRef:
		if addr, err = fg.slot(left.Var); err != nil {
			return nil, err
		}
	case *ir.Deref:
		if e.Op != ir.Plain {
			return nil, diag.New(diag.UnsupportedOperator, "assignment", "%s through a pointer", e.Op)
		}
		if addr, err = fg.expr(left.Arg); err != nil {
			return nil, err
		}
	default:
		return nil, diag.New(diag.UnrecognisedConstruct, "assignment", "target %T", e.Left)
	}

	var result value.Value
	switch e.Op {
	case ir.Plain:
		if result, err = fg.cast(e.Right.Type(), e.Left.Type(), right); err != nil {
			return nil, err
		}
	case ir.AddAssign:
		result = fg.block.NewAdd(fg.block.NewLoad(types.I32, addr), right)
	case ir.SubAssign:
		result = fg.block.NewSub(fg.block.NewLoad(types.I32, addr), right)
	default:
		return nil, diag.New(diag.UnsupportedOperator, "assignment", "%s", e.Op)
	}
	fg.block.NewStore(result, addr)
	return result, nil
}

func (fg *funcGen) call(e *ir.Call) (value.Value, error) {
	ref, ok := e.Callee.(*ir.VarRef)
	if !ok || !ref.Var.IsFunction() {
		return nil, diag.New(diag.UnsupportedCallTarget, "call", "%s is not a function", e.Callee)
	}
	callee, ok := fg.funcs[ref.Var.ID]
	if !ok {
		return nil, diag.New(diag.UnsupportedCallTarget, "call", "%s is declared but never defined", ref.Var.Name)
	}

	params := ref.Var.Type.Params()
	if len(params) != len(e.Args) {
		return nil, diag.New(diag.TypeMismatch, "call", "%s takes %d arguments, got %d", ref.Var.Name, len(params), len(e.Args))
	}
	args := make([]value.Value, len(e.Args))
	for i, arg := range e.Args {
		v, err := fg.expr(arg)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, diag.New(diag.TypeMismatch, "call", "argument %d of %s yields no value", i+1, ref.Var.Name)
		}
		if args[i], err = fg.cast(arg.Type(), params[i], v); err != nil {
			return nil, err
		}
	}

	call := fg.block.NewCall(callee, args...)
	if e.Type().Is(ctype.Void) {
		return nil, nil
	}
	return call, nil
}
