// Package llvmgen lowers the typed IR to LLVM IR using llir/llvm. Every
// variable lives in memory: globals as LLVM globals, parameters and locals
// as allocas in the entry block, which leaves SSA construction to mem2reg.
package llvmgen

import (
	"fmt"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"bonsaic/pkg/ctype"
	"bonsaic/pkg/diag"
	"bonsaic/pkg/ir"
)

// convType maps a C type onto its LLVM equivalent.
func convType(t *ctype.Type) (types.Type, error) {
	switch t.Category() {
	case ctype.Int:
		return types.I32, nil
	case ctype.Double:
		return types.Double, nil
	case ctype.Void:
		return types.Void, nil
	case ctype.Pointer:
		elem, err := convType(t.Target())
		if err != nil {
			return nil, err
		}
		return types.NewPointer(elem), nil
	}
	return nil, diag.New(diag.UnsupportedOperandType, "type", "%s has no LLVM representation", t)
}

// zero returns the zero constant of a C value type, also used as the initial
// value of globals without an initializer.
func zero(t *ctype.Type, v int64) (constant.Constant, error) {
	lt, err := convType(t)
	if err != nil {
		return nil, err
	}
	switch lt := lt.(type) {
	case *types.IntType:
		return constant.NewInt(lt, v), nil
	case *types.FloatType:
		return constant.NewFloat(lt, float64(v)), nil
	case *types.PointerType:
		if v != 0 {
			return constant.NewIntToPtr(constant.NewInt(types.I32, v), lt), nil
		}
		return constant.NewNull(lt), nil
	}
	return nil, diag.New(diag.UnsupportedOperandType, "constant", "%s", t)
}

// Generator holds module-wide state: the llir module and the values bound
// to each global variable and function.
type Generator struct {
	mod     *llir.Module
	globals map[int]*llir.Global
	funcs   map[int]*llir.Func
}

// Generate builds an LLVM module from mod. Function signatures are declared
// before any body is generated so calls may refer forward.
func Generate(mod *ir.Module) (*llir.Module, error) {
	g := &Generator{
		mod:     llir.NewModule(),
		globals: make(map[int]*llir.Global),
		funcs:   make(map[int]*llir.Func),
	}

	for _, v := range mod.Globals {
		init := int64(0)
		if v.InitialValue != nil {
			init = *v.InitialValue
		}
		c, err := zero(v.Type, init)
		if err != nil {
			return nil, fmt.Errorf("global %s: %w", v.Name, err)
		}
		g.globals[v.ID] = g.mod.NewGlobalDef(v.Name, c)
	}

	for _, f := range mod.Functions {
		ret, err := convType(f.ReturnType)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", f.Name, err)
		}
		params := make([]*llir.Param, len(f.Params))
		for i, p := range f.Params {
			pt, err := convType(p.Type)
			if err != nil {
				return nil, fmt.Errorf("function %s: %w", f.Name, err)
			}
			name := p.Name
			if name == "entry" {
				// block labels share the local namespace
				name += ".param"
			}
			params[i] = llir.NewParam(name, pt)
		}
		g.funcs[f.Var.ID] = g.mod.NewFunc(f.Name, ret, params...)
	}

	for _, f := range mod.Functions {
		if err := g.genFunc(f); err != nil {
			return nil, fmt.Errorf("function %s: %w", f.Name, err)
		}
	}
	return g.mod, nil
}

// Text renders mod as textual LLVM IR.
func Text(mod *ir.Module) (string, error) {
	m, err := Generate(mod)
	if err != nil {
		return "", err
	}
	return m.String(), nil
}

type loopTargets struct {
	brk, cont *llir.Block
}

// funcGen carries the state of one function body under construction.
type funcGen struct {
	*Generator
	fn     *llir.Func
	entry  *llir.Block
	block  *llir.Block
	slots  map[int]value.Value
	loops  []loopTargets
	nblock int
}

func (g *Generator) genFunc(f *ir.FunctionDef) error {
	fg := &funcGen{
		Generator: g,
		fn:        g.funcs[f.Var.ID],
		slots:     make(map[int]value.Value),
	}
	fg.entry = fg.fn.NewBlock("entry")
	fg.block = fg.entry

	// parameters are spilled so they can be assigned like any other local
	for i, p := range f.Params {
		param := fg.fn.Params[i]
		slot := fg.alloca(p.Var, param.Type())
		fg.entry.NewStore(param, slot)
	}

	for _, s := range f.Body.Stmts {
		if err := fg.stmt(s); err != nil {
			return err
		}
	}

	if fg.block.Term == nil {
		if f.ReturnType.Is(ctype.Void) {
			fg.block.NewRet(nil)
		} else {
			z, err := zero(f.ReturnType, 0)
			if err != nil {
				return err
			}
			fg.block.NewRet(z)
		}
	}
	return nil
}

// alloca reserves a stack slot for v in the entry block.
func (fg *funcGen) alloca(v *ir.Variable, t types.Type) value.Value {
	slot := fg.entry.NewAlloca(t)
	slot.SetName(fmt.Sprintf("%s.%d", v.Name, v.ID))
	fg.slots[v.ID] = slot
	return slot
}

func (fg *funcGen) newBlock(label string) *llir.Block {
	fg.nblock++
	return fg.fn.NewBlock(fmt.Sprintf("%s.%d", label, fg.nblock))
}

// branch terminates the current block with an unconditional jump to target
// unless it already ends in a terminator.
func (fg *funcGen) branch(target *llir.Block) {
	if fg.block.Term == nil {
		fg.block.NewBr(target)
	}
}

// slot returns the address holding v.
func (fg *funcGen) slot(v *ir.Variable) (value.Value, error) {
	if s, ok := fg.slots[v.ID]; ok {
		return s, nil
	}
	if gv, ok := fg.globals[v.ID]; ok {
		return gv, nil
	}
	return nil, diag.New(diag.UnresolvedVariable, "variable", "%s has no binding", v)
}

// cast converts a value between C types; only double to int is supported.
func (fg *funcGen) cast(from, to *ctype.Type, v value.Value) (value.Value, error) {
	switch {
	case ctype.Equal(from, to):
		return v, nil
	case from.Is(ctype.Double) && to.Is(ctype.Int):
		return fg.block.NewFPToSI(v, types.I32), nil
	}
	return nil, diag.New(diag.UnsupportedCast, "cast", "%s to %s", from, to)
}

// truth turns an int value into an i1 condition.
func (fg *funcGen) truth(v value.Value) value.Value {
	return fg.block.NewICmp(enum.IPredNE, v, constant.NewInt(types.I32, 0))
}

func (fg *funcGen) stmt(s ir.Stmt) error {
	switch s := s.(type) {
	case *ir.ExprStmt:
		_, err := fg.expr(s.Expr)
		return err

	case *ir.Decl:
		for _, vd := range s.Vars {
			t, err := convType(vd.Var.Type)
			if err != nil {
				return err
			}
			slot := fg.alloca(vd.Var, t)
			init, err := fg.expr(vd.Init)
			if err != nil {
				return err
			}
			if init, err = fg.cast(vd.Init.Type(), vd.Var.Type, init); err != nil {
				return err
			}
			fg.block.NewStore(init, slot)
		}
		return nil

	case *ir.Block:
		for _, inner := range s.Stmts {
			if err := fg.stmt(inner); err != nil {
				return err
			}
		}
		return nil

	case *ir.If:
		cond, err := fg.expr(s.Test)
		if err != nil {
			return err
		}
		then, end := fg.newBlock("if.then"), fg.newBlock("if.end")
		els := end
		if s.Else != nil {
			els = fg.newBlock("if.else")
		}
		fg.block.NewCondBr(fg.truth(cond), then, els)

		fg.block = then
		if err := fg.stmt(s.Then); err != nil {
			return err
		}
		fg.branch(end)

		if s.Else != nil {
			fg.block = els
			if err := fg.stmt(s.Else); err != nil {
				return err
			}
			fg.branch(end)
		}
		fg.block = end
		return nil

	case *ir.While:
		cond, body, end := fg.newBlock("while.cond"), fg.newBlock("while.body"), fg.newBlock("while.end")
		fg.branch(cond)
		fg.block = cond
		test, err := fg.expr(s.Test)
		if err != nil {
			return err
		}
		fg.block.NewCondBr(fg.truth(test), body, end)
		return fg.loopBody(s.Body, body, end, cond, cond)

	case *ir.DoWhile:
		body, cond, end := fg.newBlock("do.body"), fg.newBlock("do.cond"), fg.newBlock("do.end")
		fg.branch(body)
		if err := fg.loopBody(s.Body, body, end, cond, cond); err != nil {
			return err
		}
		fg.block = cond
		test, err := fg.expr(s.Test)
		if err != nil {
			return err
		}
		fg.block.NewCondBr(fg.truth(test), body, end)
		fg.block = end
		return nil

	case *ir.For:
		return fg.forStmt(s)

	case *ir.Break:
		if len(fg.loops) == 0 {
			return diag.New(diag.BreakOutsideLoop, "break", "not inside a loop")
		}
		fg.block.NewBr(fg.loops[len(fg.loops)-1].brk)
		fg.block = fg.newBlock("after.break")
		return nil

	case *ir.Continue:
		if len(fg.loops) == 0 {
			return diag.New(diag.ContinueOutsideLoop, "continue", "not inside a loop")
		}
		fg.block.NewBr(fg.loops[len(fg.loops)-1].cont)
		fg.block = fg.newBlock("after.continue")
		return nil

	case *ir.Return:
		if s.Expr == nil {
			fg.block.NewRet(nil)
		} else {
			v, err := fg.expr(s.Expr)
			if err != nil {
				return err
			}
			if v, err = fg.cast(s.Expr.Type(), s.ReturnType, v); err != nil {
				return err
			}
			fg.block.NewRet(v)
		}
		fg.block = fg.newBlock("after.return")
		return nil

	case *ir.Null:
		return nil
	}
	return diag.New(diag.UnrecognisedConstruct, "statement", "%T", s)
}

// loopBody generates body starting in block start, with break and continue
// bound to brk and cont, then jumps to next.
func (fg *funcGen) loopBody(body ir.Stmt, start, brk, cont, next *llir.Block) error {
	fg.loops = append(fg.loops, loopTargets{brk: brk, cont: cont})
	defer func() { fg.loops = fg.loops[:len(fg.loops)-1] }()

	fg.block = start
	if err := fg.stmt(body); err != nil {
		return err
	}
	fg.branch(next)
	fg.block = brk
	return nil
}

func (fg *funcGen) forStmt(s *ir.For) error {
	if s.Init != nil {
		if err := fg.stmt(s.Init); err != nil {
			return err
		}
	}
	cond, body := fg.newBlock("for.cond"), fg.newBlock("for.body")
	update, end := fg.newBlock("for.update"), fg.newBlock("for.end")

	fg.branch(cond)
	fg.block = cond
	if s.Test != nil {
		test, err := fg.expr(s.Test)
		if err != nil {
			return err
		}
		fg.block.NewCondBr(fg.truth(test), body, end)
	} else {
		fg.block.NewBr(body)
	}

	if err := fg.loopBody(s.Body, body, end, update, update); err != nil {
		return err
	}

	fg.block = update
	if s.Update != nil {
		if _, err := fg.expr(s.Update); err != nil {
			return err
		}
	}
	fg.block.NewBr(cond)
	fg.block = end
	return nil
}
