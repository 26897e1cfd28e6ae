package abstract

import (
	"regexp"
	"strconv"

	"bonsaic/pkg/cparse"
	"bonsaic/pkg/ctype"
	"bonsaic/pkg/diag"
	"bonsaic/pkg/ir"
)

var decimalConstant = regexp.MustCompile(`^\d+$`)

var binaryOps = map[string]ir.BinaryOp{
	"+":  ir.Add,
	"-":  ir.Sub,
	"*":  ir.Mul,
	"/":  ir.Div,
	"%":  ir.Mod,
	"<<": ir.Shl,
	">>": ir.Shr,
	"==": ir.Eq,
	"!=": ir.Ne,
	"<":  ir.Lt,
	"<=": ir.Le,
	">":  ir.Gt,
	">=": ir.Ge,
}

var logicalOps = map[string]ir.LogicalOp{
	"&&": ir.And,
	"||": ir.Or,
}

var assignOps = map[string]ir.AssignOp{
	"=":  ir.Plain,
	"+=": ir.AddAssign,
	"-=": ir.SubAssign,
}

// expr abstracts one expression node in the given scope.
func (a *abstractor) expr(n *cparse.Node, scope *Scope) (ir.Expr, error) {
	e, err := a.exprNode(n, scope)
	if err != nil {
		return nil, diag.AtLine(err, n.Line)
	}
	return e, nil
}

func (a *abstractor) exprNode(n *cparse.Node, scope *Scope) (ir.Expr, error) {
	switch n.Tag {
	case cparse.TagConst:
		return constant(n.Str(0))

	case cparse.TagVar:
		v, err := scope.Get(n.Str(0))
		if err != nil {
			return nil, err
		}
		return ir.NewVarRef(v), nil

	case cparse.TagUnaryOp:
		return a.unary(n.Str(0), n.Child(1), scope)

	case cparse.TagBinaryOp:
		return a.binary(n.Str(0), n.Child(1), n.Child(2), scope)

	case cparse.TagAssign:
		return a.assign(n.Child(0), n.Str(1), n.Child(2), scope)

	case cparse.TagPostupdate:
		return a.postUpdate(n.Str(0), n.Child(1), scope)

	case cparse.TagFunctionCall:
		callee, err := a.expr(n.Child(0), scope)
		if err != nil {
			return nil, err
		}
		if !callee.Type().Is(ctype.Function) {
			return nil, diag.New(diag.UnsupportedCallTarget, "function call", "%s has type %s", callee, callee.Type())
		}
		args := make([]ir.Expr, 0, len(n.List(1)))
		for _, argNode := range n.List(1) {
			arg, err := a.expr(argNode, scope)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		return ir.NewCall(callee, args), nil

	case cparse.TagComma:
		left, err := a.expr(n.Child(0), scope)
		if err != nil {
			return nil, err
		}
		right, err := a.expr(n.Child(1), scope)
		if err != nil {
			return nil, err
		}
		left.SetResultUsed(false)
		return ir.NewComma(left, right), nil

	case cparse.TagConditional:
		test, err := a.condition(n.Child(0), scope, "conditional expression")
		if err != nil {
			return nil, err
		}
		cons, err := a.expr(n.Child(1), scope)
		if err != nil {
			return nil, err
		}
		alt, err := a.expr(n.Child(2), scope)
		if err != nil {
			return nil, err
		}
		if !ctype.Equal(cons.Type(), alt.Type()) {
			return nil, diag.New(diag.TypeMismatch, "conditional expression", "branches are %s and %s", cons.Type(), alt.Type())
		}
		return ir.NewConditional(test, cons, alt), nil
	}
	return nil, diag.New(diag.UnrecognisedConstruct, "expression", "%s", n.Tag)
}

// constant parses an unsigned decimal literal. Values that fit in 32 bits are
// reinterpreted as signed int.
func constant(lexeme string) (ir.Expr, error) {
	if !decimalConstant.MatchString(lexeme) {
		return nil, diag.New(diag.MalformedConstant, "numeric constant", "%s", lexeme)
	}
	v, err := strconv.ParseUint(lexeme, 10, 32)
	if err != nil {
		return nil, diag.New(diag.MalformedConstant, "numeric constant", "%s out of range", lexeme)
	}
	return ir.NewConst(ctype.IntType, int64(int32(uint32(v)))), nil
}

// condition abstracts a test expression, which must be int.
func (a *abstractor) condition(n *cparse.Node, scope *Scope, construct string) (ir.Expr, error) {
	e, err := a.expr(n, scope)
	if err != nil {
		return nil, err
	}
	if !e.Type().Is(ctype.Int) {
		return nil, diag.AtLine(diag.New(diag.TypeMismatch, construct, "condition has type %s", e.Type()), n.Line)
	}
	return e, nil
}

func (a *abstractor) unary(op string, operand *cparse.Node, scope *Scope) (ir.Expr, error) {
	var uop ir.UnaryOp
	switch op {
	case "-":
		uop = ir.Negate
	case "!":
		uop = ir.LogicalNot
	case "*":
		arg, err := a.expr(operand, scope)
		if err != nil {
			return nil, err
		}
		if !arg.Type().Is(ctype.Pointer) {
			return nil, diag.New(diag.TypeMismatch, "dereference", "%s has type %s", arg, arg.Type())
		}
		if !arg.Type().Target().IsArithmetic() && !arg.Type().Target().Is(ctype.Pointer) {
			return nil, diag.New(diag.UnsupportedType, "dereference", "%s", arg.Type())
		}
		return ir.NewDeref(arg), nil
	default:
		return nil, diag.New(diag.UnrecognisedConstruct, "unary operator", "%s", op)
	}

	arg, err := a.expr(operand, scope)
	if err != nil {
		return nil, err
	}
	typ := arg.Type()
	if uop == ir.LogicalNot {
		if !typ.Is(ctype.Int) {
			return nil, diag.New(diag.TypeMismatch, "unary operator", "! on %s", typ)
		}
	} else if !typ.IsArithmetic() {
		return nil, diag.New(diag.UnsupportedOperandType, "unary operator", "- on %s", typ)
	}

	u := ir.NewUnary(uop, arg, typ)
	if v, ok := arg.Constant(); ok && typ.Is(ctype.Int) {
		u.MarkConstant(foldUnary(uop, v))
	}
	return u, nil
}

func (a *abstractor) binary(op string, leftNode, rightNode *cparse.Node, scope *Scope) (ir.Expr, error) {
	bop, isBinary := binaryOps[op]
	lop, isLogical := logicalOps[op]
	if !isBinary && !isLogical {
		return nil, diag.New(diag.UnrecognisedConstruct, "binary operator", "%s", op)
	}

	left, err := a.expr(leftNode, scope)
	if err != nil {
		return nil, err
	}
	right, err := a.expr(rightNode, scope)
	if err != nil {
		return nil, err
	}
	lt, rt := left.Type(), right.Type()

	if isLogical {
		if !lt.Is(ctype.Int) || !rt.Is(ctype.Int) {
			return nil, diag.New(diag.TypeMismatch, "logical operator", "%s %s %s", lt, op, rt)
		}
		l := ir.NewLogical(lop, left, right)
		lv, lok := left.Constant()
		rv, rok := right.Constant()
		if lok && rok {
			l.MarkConstant(foldLogical(lop, lv, rv))
		}
		return l, nil
	}

	if !ctype.Equal(lt, rt) {
		return nil, diag.New(diag.TypeMismatch, "binary operator", "%s %s %s", lt, op, rt)
	}
	if !lt.IsArithmetic() {
		return nil, diag.New(diag.UnsupportedOperandType, "binary operator", "%s on %s", op, lt)
	}
	if (bop == ir.Mod || bop == ir.Shl || bop == ir.Shr) && !lt.Is(ctype.Int) {
		return nil, diag.New(diag.TypeMismatch, "binary operator", "%s requires int operands, got %s", op, lt)
	}

	typ := lt
	if bop.IsComparison() {
		typ = ctype.IntType
	}
	b := ir.NewBinary(bop, left, right, typ)
	if lt.Is(ctype.Int) {
		lv, lok := left.Constant()
		rv, rok := right.Constant()
		if lok && rok {
			if v, ok := foldBinary(bop, lv, rv); ok {
				b.MarkConstant(v)
			}
		}
	}
	return b, nil
}

func (a *abstractor) assign(leftNode *cparse.Node, op string, rightNode *cparse.Node, scope *Scope) (ir.Expr, error) {
	aop, ok := assignOps[op]
	if !ok {
		return nil, diag.New(diag.UnsupportedOperator, "assignment", "%s", op)
	}

	left, err := a.expr(leftNode, scope)
	if err != nil {
		return nil, err
	}
	right, err := a.expr(rightNode, scope)
	if err != nil {
		return nil, err
	}
	if !left.IsAssignable() || left.Type().Is(ctype.Function) {
		return nil, diag.New(diag.TypeMismatch, "assignment", "%s is not assignable", left)
	}
	if !ctype.Equal(left.Type(), right.Type()) {
		return nil, diag.New(diag.TypeMismatch, "assignment", "%s %s %s", left.Type(), op, right.Type())
	}
	if aop != ir.Plain {
		ref, isVar := left.(*ir.VarRef)
		if !isVar || !ref.Type().Is(ctype.Int) {
			return nil, diag.New(diag.UnsupportedOperator, "compound assignment", "%s on %s %s", op, left.Type(), left)
		}
	}
	return ir.NewAssign(aop, left, right), nil
}

func (a *abstractor) postUpdate(op string, operand *cparse.Node, scope *Scope) (ir.Expr, error) {
	var uop ir.UpdateOp
	switch op {
	case "++":
		uop = ir.Increment
	case "--":
		uop = ir.Decrement
	default:
		return nil, diag.New(diag.UnrecognisedConstruct, "postfix operator", "%s", op)
	}

	arg, err := a.expr(operand, scope)
	if err != nil {
		return nil, err
	}
	if _, isVar := arg.(*ir.VarRef); !isVar {
		return nil, diag.New(diag.UnsupportedOperator, "postfix operator", "%s on %s", op, arg)
	}
	if !arg.Type().Is(ctype.Int) {
		return nil, diag.New(diag.UnsupportedOperandType, "postfix operator", "%s on %s", op, arg.Type())
	}
	return ir.NewPostUpdate(uop, arg), nil
}
