package compiler

import (
	"fmt"

	"bonsaic/pkg/ir"
)

// Prune returns a copy of mod without the functions that are unreachable
// from roots. Globals are kept. A root that does not name a defined function
// is an error.
func Prune(mod *ir.Module, roots ...string) (*ir.Module, error) {
	// 1. Map all function definitions by variable id
	funcs := make(map[int]*ir.FunctionDef)
	for _, f := range mod.Functions {
		funcs[f.Var.ID] = f
	}

	reachable := make(map[int]bool)
	var worklist []int

	addReachable := func(id int) {
		if !reachable[id] {
			reachable[id] = true
			worklist = append(worklist, id)
		}
	}

	// 2. Seed with the requested roots
	for _, name := range roots {
		f := mod.Function(name)
		if f == nil {
			return nil, fmt.Errorf("cannot keep `%s`: no function with that name is defined", name)
		}
		addReachable(f.Var.ID)
	}

	// 3. Traverse the worklist to find all transitively reachable functions
	for len(worklist) > 0 {
		curr := worklist[0]
		worklist = worklist[1:]

		f, exists := funcs[curr]
		if !exists {
			// declared but never defined
			continue
		}

		calls := make(map[int]bool)
		findCallsStmt(f.Body, calls)
		for id := range calls {
			addReachable(id)
		}
	}

	// 4. Rebuild the function list in module order
	pruned := &ir.Module{Vars: mod.Vars, Globals: mod.Globals}
	for _, f := range mod.Functions {
		if reachable[f.Var.ID] {
			pruned.Functions = append(pruned.Functions, f)
		}
	}
	return pruned, nil
}

// findCallsExpr records the variable ids of every function called in e.
func findCallsExpr(e ir.Expr, calls map[int]bool) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *ir.Call:
		if ref, ok := n.Callee.(*ir.VarRef); ok {
			calls[ref.Var.ID] = true
		}
		for _, arg := range n.Args {
			findCallsExpr(arg, calls)
		}
	case *ir.Binary:
		findCallsExpr(n.Left, calls)
		findCallsExpr(n.Right, calls)
	case *ir.Logical:
		findCallsExpr(n.Left, calls)
		findCallsExpr(n.Right, calls)
	case *ir.Assign:
		findCallsExpr(n.Left, calls)
		findCallsExpr(n.Right, calls)
	case *ir.Comma:
		findCallsExpr(n.Left, calls)
		findCallsExpr(n.Right, calls)
	case *ir.Unary:
		findCallsExpr(n.Arg, calls)
	case *ir.PostUpdate:
		findCallsExpr(n.Arg, calls)
	case *ir.Deref:
		findCallsExpr(n.Arg, calls)
	case *ir.Conditional:
		findCallsExpr(n.Test, calls)
		findCallsExpr(n.Consequent, calls)
		findCallsExpr(n.Alternate, calls)
	case *ir.Const, *ir.VarRef:
		// No function calls here
	}
}

// findCallsStmt records the variable ids of every function called in s.
func findCallsStmt(s ir.Stmt, calls map[int]bool) {
	if s == nil {
		return
	}
	switch n := s.(type) {
	case *ir.Decl:
		for _, vd := range n.Vars {
			findCallsExpr(vd.Init, calls)
		}
	case *ir.Return:
		findCallsExpr(n.Expr, calls)
	case *ir.Block:
		for _, child := range n.Stmts {
			findCallsStmt(child, calls)
		}
	case *ir.If:
		findCallsExpr(n.Test, calls)
		findCallsStmt(n.Then, calls)
		findCallsStmt(n.Else, calls)
	case *ir.While:
		findCallsExpr(n.Test, calls)
		findCallsStmt(n.Body, calls)
	case *ir.DoWhile:
		findCallsStmt(n.Body, calls)
		findCallsExpr(n.Test, calls)
	case *ir.For:
		findCallsStmt(n.Init, calls)
		findCallsExpr(n.Test, calls)
		findCallsExpr(n.Update, calls)
		findCallsStmt(n.Body, calls)
	case *ir.ExprStmt:
		findCallsExpr(n.Expr, calls)
	case *ir.Break, *ir.Continue, *ir.Null:
		// No executable function calls
	}
}
