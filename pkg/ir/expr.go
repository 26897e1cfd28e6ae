// Package ir is the typed, scope-resolved intermediate representation built
// by the abstractor and consumed by the backends.
//
// Expr and Stmt are sealed: only the node types in this package implement
// them, so a backend's type switch covers a closed set.
package ir

import (
	"fmt"

	"bonsaic/pkg/ctype"
)

// Expr is a typed expression node.
type Expr interface {
	Type() *ctype.Type

	// IsAssignable is true only for variable references and dereferences.
	IsAssignable() bool

	// Constant returns the compile-time value of the expression, if known.
	Constant() (int64, bool)

	// ResultIsUsed is false when the consuming statement ignores the value.
	ResultIsUsed() bool
	SetResultUsed(used bool)

	String() string
	exprNode()
}

type exprBase struct {
	typ      *ctype.Type
	constant *int64
	unused   bool
}

func (b *exprBase) Type() *ctype.Type       { return b.typ }
func (b *exprBase) IsAssignable() bool      { return false }
func (b *exprBase) ResultIsUsed() bool      { return !b.unused }
func (b *exprBase) SetResultUsed(used bool) { b.unused = !used }
func (*exprBase) exprNode()                 {}

func (b *exprBase) Constant() (int64, bool) {
	if b.constant == nil {
		return 0, false
	}
	return *b.constant, true
}

// MarkConstant records that the expression folds to v.
func (b *exprBase) MarkConstant(v int64) {
	b.constant = &v
}

// Const is a numeric literal.
type Const struct {
	exprBase
	Value int64
}

func NewConst(typ *ctype.Type, v int64) *Const {
	c := &Const{exprBase: exprBase{typ: typ}, Value: v}
	c.MarkConstant(v)
	return c
}

func (c *Const) String() string { return fmt.Sprintf("%d", c.Value) }

// VarRef reads or names a variable.
type VarRef struct {
	exprBase
	Var *Variable
}

func NewVarRef(v *Variable) *VarRef {
	return &VarRef{exprBase: exprBase{typ: v.Type}, Var: v}
}

func (*VarRef) IsAssignable() bool { return true }
func (r *VarRef) String() string   { return r.Var.Name }

// UnaryOp enumerates the value-producing unary operators.
type UnaryOp int

const (
	Negate UnaryOp = iota
	LogicalNot
)

func (op UnaryOp) String() string {
	if op == LogicalNot {
		return "!"
	}
	return "-"
}

// Unary is -Arg or !Arg.
type Unary struct {
	exprBase
	Op  UnaryOp
	Arg Expr
}

func NewUnary(op UnaryOp, arg Expr, typ *ctype.Type) *Unary {
	return &Unary{exprBase: exprBase{typ: typ}, Op: op, Arg: arg}
}

func (u *Unary) String() string { return fmt.Sprintf("(%s%s)", u.Op, u.Arg) }

// BinaryOp enumerates arithmetic, shift and comparison operators.
type BinaryOp int

const (
	Add BinaryOp = iota
	Sub
	Mul
	Div
	Mod
	Shl
	Shr
	Eq
	Ne
	Lt
	Le
	Gt
	Ge
)

var binaryOpNames = [...]string{
	Add: "+", Sub: "-", Mul: "*", Div: "/", Mod: "%", Shl: "<<", Shr: ">>",
	Eq: "==", Ne: "!=", Lt: "<", Le: "<=", Gt: ">", Ge: ">=",
}

func (op BinaryOp) String() string { return binaryOpNames[op] }

// IsComparison reports whether the operator yields a truth value.
func (op BinaryOp) IsComparison() bool { return op >= Eq }

// Binary is Left Op Right. Operand types are equal.
type Binary struct {
	exprBase
	Op          BinaryOp
	Left, Right Expr
}

func NewBinary(op BinaryOp, left, right Expr, typ *ctype.Type) *Binary {
	return &Binary{exprBase: exprBase{typ: typ}, Op: op, Left: left, Right: right}
}

func (b *Binary) String() string { return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right) }

// LogicalOp is && or ||.
type LogicalOp int

const (
	And LogicalOp = iota
	Or
)

func (op LogicalOp) String() string {
	if op == Or {
		return "||"
	}
	return "&&"
}

// Logical is a short-circuiting && or ||.
type Logical struct {
	exprBase
	Op          LogicalOp
	Left, Right Expr
}

func NewLogical(op LogicalOp, left, right Expr) *Logical {
	return &Logical{exprBase: exprBase{typ: ctype.IntType}, Op: op, Left: left, Right: right}
}

func (l *Logical) String() string { return fmt.Sprintf("(%s %s %s)", l.Left, l.Op, l.Right) }

// AssignOp is a plain or compound assignment operator.
type AssignOp int

const (
	Plain AssignOp = iota
	AddAssign
	SubAssign
)

func (op AssignOp) String() string {
	switch op {
	case AddAssign:
		return "+="
	case SubAssign:
		return "-="
	}
	return "="
}

// Assign stores Right into the location named by Left.
type Assign struct {
	exprBase
	Op          AssignOp
	Left, Right Expr
}

func NewAssign(op AssignOp, left, right Expr) *Assign {
	return &Assign{exprBase: exprBase{typ: left.Type()}, Op: op, Left: left, Right: right}
}

func (a *Assign) String() string { return fmt.Sprintf("(%s %s %s)", a.Left, a.Op, a.Right) }

// UpdateOp is ++ or --.
type UpdateOp int

const (
	Increment UpdateOp = iota
	Decrement
)

func (op UpdateOp) String() string {
	if op == Decrement {
		return "--"
	}
	return "++"
}

// PostUpdate is Arg++ or Arg--.
type PostUpdate struct {
	exprBase
	Op  UpdateOp
	Arg Expr
}

func NewPostUpdate(op UpdateOp, arg Expr) *PostUpdate {
	return &PostUpdate{exprBase: exprBase{typ: arg.Type()}, Op: op, Arg: arg}
}

func (p *PostUpdate) String() string { return fmt.Sprintf("(%s%s)", p.Arg, p.Op) }

// Deref is *Arg.
type Deref struct {
	exprBase
	Arg Expr
}

func NewDeref(arg Expr) *Deref {
	return &Deref{exprBase: exprBase{typ: arg.Type().Target()}, Arg: arg}
}

func (*Deref) IsAssignable() bool { return true }
func (d *Deref) String() string   { return fmt.Sprintf("(*%s)", d.Arg) }

// Call invokes Callee. Arguments are in source order.
type Call struct {
	exprBase
	Callee Expr
	Args   []Expr
}

func NewCall(callee Expr, args []Expr) *Call {
	return &Call{exprBase: exprBase{typ: callee.Type().Return()}, Callee: callee, Args: args}
}

func (c *Call) String() string { return fmt.Sprintf("%s(%v)", c.Callee, c.Args) }

// Comma evaluates Left for its effects, then yields Right.
type Comma struct {
	exprBase
	Left, Right Expr
}

func NewComma(left, right Expr) *Comma {
	return &Comma{exprBase: exprBase{typ: right.Type()}, Left: left, Right: right}
}

func (c *Comma) String() string { return fmt.Sprintf("(%s, %s)", c.Left, c.Right) }

// Conditional is Test ? Consequent : Alternate.
type Conditional struct {
	exprBase
	Test, Consequent, Alternate Expr
}

func NewConditional(test, consequent, alternate Expr) *Conditional {
	return &Conditional{
		exprBase:   exprBase{typ: consequent.Type()},
		Test:       test,
		Consequent: consequent,
		Alternate:  alternate,
	}
}

func (c *Conditional) String() string {
	return fmt.Sprintf("(%s ? %s : %s)", c.Test, c.Consequent, c.Alternate)
}
