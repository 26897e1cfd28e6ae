package asmjs

import (
	"strings"

	"bonsaic/pkg/ctype"
	"bonsaic/pkg/diag"
	"bonsaic/pkg/ir"
)

// cast converts a rendered value between C types. Only double to int is
// supported, as a double bitwise negation.
func (fg *funcGen) cast(from, to *ctype.Type, js string) (string, error) {
	switch {
	case ctype.Equal(from, to):
		return js, nil
	case from.Is(ctype.Double) && to.Is(ctype.Int):
		return "(~~" + js + ")", nil
	}
	return "", diag.New(diag.UnsupportedCast, "cast", "%s to %s", from, to)
}

// effect renders an expression evaluated only for its side effects, without
// the parentheses a value position would need.
func (fg *funcGen) effect(e ir.Expr) (string, error) {
	switch e := e.(type) {
	case *ir.Assign:
		return fg.assign(e)
	case *ir.PostUpdate:
		if !e.ResultIsUsed() {
			return fg.update(e)
		}
	}
	return fg.expr(e)
}

func (fg *funcGen) heapRef(d *ir.Deref) (string, error) {
	addr, err := fg.expr(d.Arg)
	if err != nil {
		return "", err
	}
	if d.Type().Is(ctype.Double) {
		fg.usesHeapF64 = true
		return "HEAPF64[" + addr + " >> 3]", nil
	}
	fg.usesHeap32 = true
	return "HEAP32[" + addr + " >> 2]", nil
}

func (fg *funcGen) variable(v *ir.Variable) (string, error) {
	name, ok := fg.names[v.ID]
	if !ok {
		return "", diag.New(diag.UnresolvedVariable, "variable", "%s has no binding", v)
	}
	return name, nil
}

// assign renders a bare assignment, target = value.
func (fg *funcGen) assign(e *ir.Assign) (string, error) {
	right, err := fg.expr(e.Right)
	if err != nil {
		return "", err
	}

	var target string
	switch left := e.Left.(type) {
	case *ir.VarRef:
		if target, err = fg.variable(left.Var); err != nil {
			return "", err
		}
	case *ir.Deref:
		if e.Op != ir.Plain {
			return "", diag.New(diag.UnsupportedOperator, "assignment", "%s through a pointer", e.Op)
		}
		if target, err = fg.heapRef(left); err != nil {
			return "", err
		}
	default:
		return "", diag.New(diag.UnrecognisedConstruct, "assignment", "target %T", e.Left)
	}

	switch e.Op {
	case ir.Plain:
		value, err := fg.cast(e.Right.Type(), e.Left.Type(), right)
		if err != nil {
			return "", err
		}
		return target + " = " + value, nil
	case ir.AddAssign:
		return target + " = " + asInt(target+" + "+right), nil
	case ir.SubAssign:
		return target + " = " + asInt(target+" - "+right), nil
	}
	return "", diag.New(diag.UnsupportedOperator, "assignment", "%s", e.Op)
}

// update renders a bare post-update whose value is not needed.
func (fg *funcGen) update(e *ir.PostUpdate) (string, error) {
	ref, ok := e.Arg.(*ir.VarRef)
	if !ok {
		return "", diag.New(diag.UnsupportedOperator, "postfix operator", "%s on %T", e.Op, e.Arg)
	}
	name, err := fg.variable(ref.Var)
	if err != nil {
		return "", err
	}
	op := " + "
	if e.Op == ir.Decrement {
		op = " - "
	}
	return name + " = " + asInt(name+op+"1"), nil
}

var binarySymbols = map[ir.BinaryOp]string{
	ir.Add: "+", ir.Sub: "-", ir.Mul: "*", ir.Div: "/", ir.Mod: "%",
	ir.Shl: "<<", ir.Shr: ">>",
	ir.Eq: "==", ir.Ne: "!=", ir.Lt: "<", ir.Le: "<=", ir.Gt: ">", ir.Ge: ">=",
}

// expr renders e as a coerced, parenthesized value.
func (fg *funcGen) expr(e ir.Expr) (string, error) {
	if v, ok := e.Constant(); ok {
		return literal(e.Type(), v), nil
	}

	switch e := e.(type) {
	case *ir.Const:
		return literal(e.Type(), e.Value), nil

	case *ir.VarRef:
		if e.Var.IsFunction() {
			return "", diag.New(diag.UnsupportedOperandType, "variable", "function %s used as a value", e.Var.Name)
		}
		return fg.variable(e.Var)

	case *ir.Unary:
		arg, err := fg.expr(e.Arg)
		if err != nil {
			return "", err
		}
		if e.Op == ir.LogicalNot {
			return asInt("!" + arg), nil
		}
		return coerce(e.Type(), "-"+arg), nil

	case *ir.Binary:
		left, err := fg.expr(e.Left)
		if err != nil {
			return "", err
		}
		right, err := fg.expr(e.Right)
		if err != nil {
			return "", err
		}
		if e.Op == ir.Mul && e.Type().Is(ctype.Int) {
			fg.usesImul = true
			return asInt("imul(" + left + ", " + right + ")"), nil
		}
		return coerce(e.Type(), left+" "+binarySymbols[e.Op]+" "+right), nil

	case *ir.Logical:
		left, err := fg.expr(e.Left)
		if err != nil {
			return "", err
		}
		right, err := fg.expr(e.Right)
		if err != nil {
			return "", err
		}
		if e.Op == ir.And {
			return asInt(left + " ? (" + right + " != 0) : 0"), nil
		}
		return asInt(left + " ? 1 : (" + right + " != 0)"), nil

	case *ir.Assign:
		js, err := fg.assign(e)
		if err != nil {
			return "", err
		}
		return "(" + js + ")", nil

	case *ir.PostUpdate:
		js, err := fg.update(e)
		if err != nil {
			return "", err
		}
		undo := " - 1"
		if e.Op == ir.Decrement {
			undo = " + 1"
		}
		return asInt("(" + js + ")" + undo), nil

	case *ir.Deref:
		ref, err := fg.heapRef(e)
		if err != nil {
			return "", err
		}
		return coerce(e.Type(), ref), nil

	case *ir.Call:
		return fg.call(e)

	case *ir.Comma:
		left, err := fg.effect(e.Left)
		if err != nil {
			return "", err
		}
		right, err := fg.expr(e.Right)
		if err != nil {
			return "", err
		}
		return "(" + left + ", " + right + ")", nil

	case *ir.Conditional:
		test, err := fg.expr(e.Test)
		if err != nil {
			return "", err
		}
		cons, err := fg.expr(e.Consequent)
		if err != nil {
			return "", err
		}
		alt, err := fg.expr(e.Alternate)
		if err != nil {
			return "", err
		}
		return coerce(e.Type(), test+" ? "+cons+" : "+alt), nil
	}
	return "", diag.New(diag.UnrecognisedConstruct, "expression", "%T", e)
}

func (fg *funcGen) call(e *ir.Call) (string, error) {
	ref, ok := e.Callee.(*ir.VarRef)
	if !ok || !ref.Var.IsFunction() {
		return "", diag.New(diag.UnsupportedCallTarget, "call", "%s is not a function", e.Callee)
	}
	name, ok := fg.names[ref.Var.ID]
	if !ok {
		return "", diag.New(diag.UnsupportedCallTarget, "call", "%s is declared but never defined", ref.Var.Name)
	}

	params := ref.Var.Type.Params()
	if len(params) != len(e.Args) {
		return "", diag.New(diag.TypeMismatch, "call", "%s takes %d arguments, got %d", ref.Var.Name, len(params), len(e.Args))
	}
	args := make([]string, len(e.Args))
	for i, arg := range e.Args {
		js, err := fg.expr(arg)
		if err != nil {
			return "", err
		}
		if args[i], err = fg.cast(arg.Type(), params[i], js); err != nil {
			return "", err
		}
	}

	call := name + "(" + strings.Join(args, ", ") + ")"
	if e.Type().Is(ctype.Void) {
		return call, nil
	}
	return coerce(e.Type(), call), nil
}
