package wasm

import (
	"bonsaic/pkg/ctype"
	"bonsaic/pkg/diag"
	"bonsaic/pkg/ir"
)

// Hints carries what the consumer of an expression needs from it.
type Hints struct {
	// CanDiscardResult lets an expression whose result is unused push
	// nothing at all.
	CanDiscardResult bool
}

// noLoop marks a break or continue depth outside any loop.
const noLoop = -1

// nested adjusts a branch depth for one more enclosing structured block.
func nested(depth int) int {
	if depth == noLoop {
		return noLoop
	}
	return depth + 1
}

// codeGen lowers one function body into an instruction stream.
type codeGen struct {
	ctx        *Context
	out        []Instruction
	usesMemory bool
}

func (g *codeGen) emit(ins ...Instruction) {
	g.out = append(g.out, ins...)
}

func (g *codeGen) drops(n int) {
	for i := 0; i < n; i++ {
		g.emit(Drop())
	}
}

// castResult converts the value on top of the stack from one C type to
// another. Only double to int is supported.
func (g *codeGen) castResult(from, to *ctype.Type) error {
	switch {
	case ctype.Equal(from, to):
		return nil
	case from.Is(ctype.Double) && to.Is(ctype.Int):
		g.emit(Numeric(OpTruncS, I32))
		return nil
	}
	return diag.New(diag.UnsupportedCast, "cast", "%s to %s", from, to)
}

func (g *codeGen) variable(v *ir.Variable) (uint32, error) {
	idx, ok := g.ctx.GetIndex(v.ID)
	if !ok {
		return 0, diag.New(diag.UnresolvedVariable, "variable", "%s has no slot", v)
	}
	return idx, nil
}

func (g *codeGen) get(v *ir.Variable, idx uint32) {
	if v.IsGlobal {
		g.emit(GetGlobal(idx))
	} else {
		g.emit(GetLocal(idx))
	}
}

// store writes the value on top of the stack to v and reports how many
// values remain pushed: none when discarded, otherwise the stored value.
func (g *codeGen) store(v *ir.Variable, idx uint32, discard bool) int {
	switch {
	case discard:
		if v.IsGlobal {
			g.emit(SetGlobal(idx))
		} else {
			g.emit(SetLocal(idx))
		}
		return 0
	case v.IsGlobal:
		g.emit(SetGlobal(idx), GetGlobal(idx))
	default:
		g.emit(TeeLocal(idx))
	}
	return 1
}

var binaryOpcodes = map[ir.BinaryOp]Opcode{
	ir.Add: OpAdd, ir.Sub: OpSub, ir.Mul: OpMul, ir.Div: OpDiv, ir.Mod: OpRem,
	ir.Shl: OpShl, ir.Shr: OpShr,
	ir.Eq: OpEq, ir.Ne: OpNe, ir.Lt: OpLt, ir.Le: OpLe, ir.Gt: OpGt, ir.Ge: OpGe,
}

// CompileExpression emits e and returns the number of values it left on the
// stack: 0 or 1.
func (g *codeGen) CompileExpression(e ir.Expr, h Hints) (int, error) {
	if v, ok := e.Constant(); ok {
		t, err := FromCType(e.Type())
		if err != nil {
			return 0, err
		}
		g.emit(Const(t, v))
		return 1, nil
	}

	discard := h.CanDiscardResult && !e.ResultIsUsed()

	switch e := e.(type) {
	case *ir.Const:
		t, err := FromCType(e.Type())
		if err != nil {
			return 0, err
		}
		g.emit(Const(t, e.Value))
		return 1, nil

	case *ir.VarRef:
		if e.Var.IsFunction() {
			return 0, diag.New(diag.UnsupportedOperandType, "variable", "function %s used as a value", e.Var.Name)
		}
		idx, err := g.variable(e.Var)
		if err != nil {
			return 0, err
		}
		g.get(e.Var, idx)
		return 1, nil

	case *ir.Unary:
		return g.unary(e)

	case *ir.Binary:
		t, err := FromCType(e.Left.Type())
		if err != nil {
			return 0, err
		}
		op := binaryOpcodes[e.Op]
		if !op.Supports(t) {
			return 0, diag.New(diag.UnsupportedOperandType, "binary operator", "%s on %s", e.Op, t)
		}
		if err := g.operands(e.Left, e.Right); err != nil {
			return 0, err
		}
		g.emit(Numeric(op, t))
		return 1, nil

	case *ir.Logical:
		return g.logical(e)

	case *ir.Assign:
		return g.assign(e, discard)

	case *ir.PostUpdate:
		return g.postUpdate(e, discard)

	case *ir.Deref:
		t, err := FromCType(e.Type())
		if err != nil {
			return 0, err
		}
		if err := g.operands(e.Arg); err != nil {
			return 0, err
		}
		g.emit(Load(t))
		g.usesMemory = true
		return 1, nil

	case *ir.Call:
		return g.call(e)

	case *ir.Comma:
		n, err := g.CompileExpression(e.Left, Hints{CanDiscardResult: true})
		if err != nil {
			return 0, err
		}
		g.drops(n)
		return g.CompileExpression(e.Right, h)

	case *ir.Conditional:
		t, err := FromCType(e.Type())
		if err != nil {
			return 0, err
		}
		if err := g.operands(e.Test); err != nil {
			return 0, err
		}
		g.emit(IfResult(t))
		if err := g.operands(e.Consequent); err != nil {
			return 0, err
		}
		g.emit(Else())
		if err := g.operands(e.Alternate); err != nil {
			return 0, err
		}
		g.emit(End())
		return 1, nil
	}
	return 0, diag.New(diag.UnrecognisedConstruct, "expression", "%T", e)
}

// operands emits each expression as a value that must stay on the stack.
func (g *codeGen) operands(es ...ir.Expr) error {
	for _, e := range es {
		n, err := g.CompileExpression(e, Hints{})
		if err != nil {
			return err
		}
		if n != 1 {
			return diag.New(diag.TypeMismatch, "operand", "%s yields no value", e)
		}
	}
	return nil
}

func (g *codeGen) unary(e *ir.Unary) (int, error) {
	switch e.Op {
	case ir.Negate:
		t, err := FromCType(e.Type())
		if err != nil {
			return 0, err
		}
		if t == F64 {
			if err := g.operands(e.Arg); err != nil {
				return 0, err
			}
			g.emit(Numeric(OpNeg, F64))
			return 1, nil
		}
		g.emit(ConstI32(0))
		if err := g.operands(e.Arg); err != nil {
			return 0, err
		}
		g.emit(Numeric(OpSub, I32))
		return 1, nil

	case ir.LogicalNot:
		if err := g.operands(e.Arg); err != nil {
			return 0, err
		}
		g.emit(Numeric(OpEqz, I32))
		return 1, nil
	}
	return 0, diag.New(diag.UnrecognisedConstruct, "unary operator", "%s", e.Op)
}

// logical lowers && and || to an if that yields 0 or 1, skipping the right
// operand when the left decides the result.
func (g *codeGen) logical(e *ir.Logical) (int, error) {
	if err := g.operands(e.Left); err != nil {
		return 0, err
	}
	g.emit(IfResult(I32))
	if e.Op == ir.Or {
		g.emit(ConstI32(1), Else())
	}
	if err := g.operands(e.Right); err != nil {
		return 0, err
	}
	g.emit(Numeric(OpEqz, I32), Numeric(OpEqz, I32))
	if e.Op == ir.And {
		g.emit(Else(), ConstI32(0))
	}
	g.emit(End())
	return 1, nil
}

func (g *codeGen) assign(e *ir.Assign, discard bool) (int, error) {
	switch left := e.Left.(type) {
	case *ir.VarRef:
		idx, err := g.variable(left.Var)
		if err != nil {
			return 0, err
		}
		switch e.Op {
		case ir.Plain:
			if err := g.operands(e.Right); err != nil {
				return 0, err
			}
			if err := g.castResult(e.Right.Type(), left.Type()); err != nil {
				return 0, err
			}
		case ir.AddAssign, ir.SubAssign:
			g.get(left.Var, idx)
			if err := g.operands(e.Right); err != nil {
				return 0, err
			}
			op := OpAdd
			if e.Op == ir.SubAssign {
				op = OpSub
			}
			g.emit(Numeric(op, I32))
		default:
			return 0, diag.New(diag.UnsupportedOperator, "assignment", "%s", e.Op)
		}
		return g.store(left.Var, idx, discard), nil

	case *ir.Deref:
		if e.Op != ir.Plain {
			return 0, diag.New(diag.UnsupportedOperator, "assignment", "%s through a pointer", e.Op)
		}
		if !discard {
			return 0, diag.New(diag.UnsupportedOperator, "assignment", "value of a store through a pointer is used")
		}
		t, err := FromCType(left.Type())
		if err != nil {
			return 0, err
		}
		if err := g.operands(left.Arg, e.Right); err != nil {
			return 0, err
		}
		if err := g.castResult(e.Right.Type(), left.Type()); err != nil {
			return 0, err
		}
		g.emit(Store(t))
		g.usesMemory = true
		return 0, nil
	}
	return 0, diag.New(diag.UnrecognisedConstruct, "assignment", "target %T", e.Left)
}

// postUpdate leaves the value from before the update when the result is
// used.
func (g *codeGen) postUpdate(e *ir.PostUpdate, discard bool) (int, error) {
	ref, ok := e.Arg.(*ir.VarRef)
	if !ok {
		return 0, diag.New(diag.UnsupportedOperator, "postfix operator", "%s on %T", e.Op, e.Arg)
	}
	idx, err := g.variable(ref.Var)
	if err != nil {
		return 0, err
	}
	op := OpAdd
	if e.Op == ir.Decrement {
		op = OpSub
	}

	pushed := 0
	if !discard {
		g.get(ref.Var, idx)
		pushed = 1
	}
	g.get(ref.Var, idx)
	g.emit(ConstI32(1), Numeric(op, I32))
	g.store(ref.Var, idx, true)
	return pushed, nil
}

func (g *codeGen) call(e *ir.Call) (int, error) {
	ref, ok := e.Callee.(*ir.VarRef)
	if !ok || !ref.Var.IsFunction() {
		return 0, diag.New(diag.UnsupportedCallTarget, "call", "%s is not a function", e.Callee)
	}
	idx, ok := g.ctx.Global.FunctionIndex(ref.Var.ID)
	if !ok {
		return 0, diag.New(diag.UnsupportedCallTarget, "call", "%s is declared but never defined", ref.Var.Name)
	}

	params := ref.Var.Type.Params()
	if len(params) != len(e.Args) {
		return 0, diag.New(diag.TypeMismatch, "call", "%s takes %d arguments, got %d", ref.Var.Name, len(params), len(e.Args))
	}
	for i, arg := range e.Args {
		n, err := g.CompileExpression(arg, Hints{})
		if err != nil {
			return 0, err
		}
		if n != 1 {
			return 0, diag.New(diag.TypeMismatch, "call", "argument %d of %s yields no value", i+1, ref.Var.Name)
		}
		if err := g.castResult(arg.Type(), params[i]); err != nil {
			return 0, err
		}
	}
	g.emit(Call(idx))

	if e.Type().Is(ctype.Void) {
		return 0, nil
	}
	return 1, nil
}

// compileStatement emits s. breakDepth and continueDepth are the branch
// depths that leave the innermost loop or reach its next iteration, or
// noLoop outside any loop.
func (g *codeGen) compileStatement(s ir.Stmt, breakDepth, continueDepth int) error {
	switch s := s.(type) {
	case *ir.ExprStmt:
		n, err := g.CompileExpression(s.Expr, Hints{CanDiscardResult: true})
		if err != nil {
			return err
		}
		g.drops(n)
		return nil

	case *ir.Decl:
		for _, vd := range s.Vars {
			t, err := FromCType(vd.Var.Type)
			if err != nil {
				return err
			}
			idx := g.ctx.DeclareVariable(vd.Var.ID, t)
			if err := g.operands(vd.Init); err != nil {
				return err
			}
			if err := g.castResult(vd.Init.Type(), vd.Var.Type); err != nil {
				return err
			}
			g.emit(SetLocal(idx))
		}
		return nil

	case *ir.Block:
		for _, inner := range s.Stmts {
			if err := g.compileStatement(inner, breakDepth, continueDepth); err != nil {
				return err
			}
		}
		return nil

	case *ir.If:
		if err := g.operands(s.Test); err != nil {
			return err
		}
		g.emit(If())
		if err := g.compileStatement(s.Then, nested(breakDepth), nested(continueDepth)); err != nil {
			return err
		}
		if s.Else != nil {
			g.emit(Else())
			if err := g.compileStatement(s.Else, nested(breakDepth), nested(continueDepth)); err != nil {
				return err
			}
		}
		g.emit(End())
		return nil

	case *ir.While:
		g.emit(Block(), Loop())
		if err := g.operands(s.Test); err != nil {
			return err
		}
		g.emit(If())
		if err := g.compileStatement(s.Body, 2, 1); err != nil {
			return err
		}
		g.emit(Br(1), End(), End(), End())
		return nil

	case *ir.DoWhile:
		g.emit(Block(), Loop(), Block())
		if err := g.compileStatement(s.Body, 2, 0); err != nil {
			return err
		}
		g.emit(End())
		if err := g.operands(s.Test); err != nil {
			return err
		}
		g.emit(If(), Br(1), End(), End(), End())
		return nil

	case *ir.For:
		return g.forStmt(s)

	case *ir.Break:
		if breakDepth == noLoop {
			return diag.New(diag.BreakOutsideLoop, "break", "not inside a loop")
		}
		g.emit(Br(uint32(breakDepth)))
		return nil

	case *ir.Continue:
		if continueDepth == noLoop {
			return diag.New(diag.ContinueOutsideLoop, "continue", "not inside a loop")
		}
		g.emit(Br(uint32(continueDepth)))
		return nil

	case *ir.Return:
		if s.Expr != nil {
			if err := g.operands(s.Expr); err != nil {
				return err
			}
			if err := g.castResult(s.Expr.Type(), s.ReturnType); err != nil {
				return err
			}
		}
		g.emit(Return())
		return nil

	case *ir.Null:
		return nil
	}
	return diag.New(diag.UnrecognisedConstruct, "statement", "%T", s)
}

// forStmt lowers a for loop. The body sits in its own block so continue can
// fall through to the update.
func (g *codeGen) forStmt(s *ir.For) error {
	if s.Init != nil {
		if err := g.compileStatement(s.Init, noLoop, noLoop); err != nil {
			return err
		}
	}

	g.emit(Block(), Loop())
	bodyBreak := 2
	if s.Test != nil {
		if err := g.operands(s.Test); err != nil {
			return err
		}
		g.emit(If())
		bodyBreak = 3
	}

	g.emit(Block())
	if err := g.compileStatement(s.Body, bodyBreak, 0); err != nil {
		return err
	}
	g.emit(End())

	if s.Update != nil {
		n, err := g.CompileExpression(s.Update, Hints{CanDiscardResult: true})
		if err != nil {
			return err
		}
		g.drops(n)
	}

	if s.Test != nil {
		g.emit(Br(1), End(), End(), End())
	} else {
		g.emit(Br(0), End(), End())
	}
	return nil
}
