package abstract

import (
	"bonsaic/pkg/cparse"
	"bonsaic/pkg/ctype"
	"bonsaic/pkg/diag"
	"bonsaic/pkg/ir"
)

// blockItems abstracts a statement list, threading declarations forward.
func (a *abstractor) blockItems(items []*cparse.Node, scope *Scope) ([]ir.Stmt, error) {
	stmts := make([]ir.Stmt, 0, len(items))
	for _, item := range items {
		s, next, err := a.stmt(item, scope)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
		scope = next
	}
	return stmts, nil
}

// stmt abstracts one statement and returns the scope in effect after it.
func (a *abstractor) stmt(n *cparse.Node, scope *Scope) (ir.Stmt, *Scope, error) {
	s, next, err := a.stmtNode(n, scope)
	if err != nil {
		return nil, nil, diag.AtLine(err, n.Line)
	}
	return s, next, nil
}

// body abstracts a nested statement whose declarations must not escape.
func (a *abstractor) body(n *cparse.Node, scope *Scope) (ir.Stmt, error) {
	s, _, err := a.stmt(n, scope.Copy())
	return s, err
}

func (a *abstractor) stmtNode(n *cparse.Node, scope *Scope) (ir.Stmt, *Scope, error) {
	switch n.Tag {
	case cparse.TagExpressionStatement:
		e, err := a.expr(n.Child(0), scope)
		if err != nil {
			return nil, nil, err
		}
		e.SetResultUsed(false)
		return &ir.ExprStmt{Expr: e}, scope, nil

	case cparse.TagDeclaration:
		return a.localDeclaration(n, scope)

	case cparse.TagBlock:
		stmts, err := a.blockItems(n.List(0), scope.Copy())
		if err != nil {
			return nil, nil, err
		}
		return &ir.Block{Stmts: stmts}, scope, nil

	case cparse.TagIf:
		test, err := a.condition(n.Child(0), scope, "if")
		if err != nil {
			return nil, nil, err
		}
		then, err := a.body(n.Child(1), scope)
		if err != nil {
			return nil, nil, err
		}
		s := &ir.If{Test: test, Then: then}
		if elseNode := n.Child(2); elseNode != nil {
			if s.Else, err = a.body(elseNode, scope); err != nil {
				return nil, nil, err
			}
		}
		return s, scope, nil

	case cparse.TagWhile:
		test, err := a.condition(n.Child(0), scope, "while")
		if err != nil {
			return nil, nil, err
		}
		body, err := a.body(n.Child(1), scope)
		if err != nil {
			return nil, nil, err
		}
		return &ir.While{Test: test, Body: body}, scope, nil

	case cparse.TagDoWhile:
		body, err := a.body(n.Child(0), scope)
		if err != nil {
			return nil, nil, err
		}
		test, err := a.condition(n.Child(1), scope, "do-while")
		if err != nil {
			return nil, nil, err
		}
		return &ir.DoWhile{Body: body, Test: test}, scope, nil

	case cparse.TagFor:
		s, err := a.forStmt(n, scope.Copy())
		return s, scope, err

	case cparse.TagBreak:
		return &ir.Break{}, scope, nil

	case cparse.TagContinue:
		return &ir.Continue{}, scope, nil

	case cparse.TagNullStatement:
		return &ir.Null{}, scope, nil

	case cparse.TagReturn:
		s, err := a.returnStmt(n.Child(0), scope)
		return s, scope, err
	}
	return nil, nil, diag.New(diag.UnrecognisedConstruct, "statement", "%s", n.Tag)
}

// forStmt abstracts a for loop in its own scope, so an init declaration is
// visible to the test, update and body only.
func (a *abstractor) forStmt(n *cparse.Node, scope *Scope) (ir.Stmt, error) {
	s := &ir.For{}

	if init := n.Child(0); init != nil {
		if init.Tag == cparse.TagDeclaration {
			decl, next, err := a.localDeclaration(init, scope)
			if err != nil {
				return nil, diag.AtLine(err, init.Line)
			}
			s.Init, scope = decl, next
		} else {
			e, err := a.expr(init, scope)
			if err != nil {
				return nil, err
			}
			e.SetResultUsed(false)
			s.Init = &ir.ExprStmt{Expr: e}
		}
	}

	if test := n.Child(1); test != nil {
		e, err := a.condition(test, scope, "for")
		if err != nil {
			return nil, err
		}
		s.Test = e
	}

	if update := n.Child(2); update != nil {
		e, err := a.expr(update, scope)
		if err != nil {
			return nil, err
		}
		e.SetResultUsed(false)
		s.Update = e
	}

	body, err := a.body(n.Child(3), scope)
	if err != nil {
		return nil, err
	}
	s.Body = body
	return s, nil
}

func (a *abstractor) returnStmt(n *cparse.Node, scope *Scope) (ir.Stmt, error) {
	want := a.retType
	if n == nil {
		if !want.Is(ctype.Void) {
			return nil, diag.New(diag.TypeMismatch, "return", "missing value in function returning %s", want)
		}
		return &ir.Return{ReturnType: want}, nil
	}

	e, err := a.expr(n, scope)
	if err != nil {
		return nil, err
	}
	got := e.Type()
	switch {
	case want.Is(ctype.Void):
		return nil, diag.New(diag.TypeMismatch, "return", "value of type %s in void function", got)
	case ctype.Equal(got, want):
	case got.Is(ctype.Double) && want.Is(ctype.Int):
		// truncated by the backend
	default:
		return nil, diag.New(diag.TypeMismatch, "return", "%s returned from function returning %s", got, want)
	}
	return &ir.Return{Expr: e, ReturnType: want}, nil
}

// localDeclaration registers each declarator in scope. Locals without an
// initializer get an explicit zero of their type.
func (a *abstractor) localDeclaration(n *cparse.Node, scope *Scope) (ir.Stmt, *Scope, error) {
	decl := &ir.Decl{}
	for _, init := range n.List(1) {
		vd, next, err := a.localDeclarator(n.Strings(0), init, scope)
		if err != nil {
			return nil, nil, diag.AtLine(err, init.Line)
		}
		decl.Vars = append(decl.Vars, vd)
		scope = next
	}
	return decl, scope, nil
}

func (a *abstractor) localDeclarator(specifiers []string, init *cparse.Node, scope *Scope) (*ir.VarDecl, *Scope, error) {
	d, err := a.declarator(specifiers, init.Child(0))
	if err != nil {
		return nil, nil, err
	}
	switch {
	case d.typ.Is(ctype.Void):
		return nil, nil, diag.New(diag.UnsupportedType, "declaration", "void variable %s", d.name)
	case d.typ.Is(ctype.Function):
		return nil, nil, diag.New(diag.UnsupportedType, "declaration", "local function declaration %s", d.name)
	}

	scope, v, err := scope.Declare(d.name, d.typ, false)
	if err != nil {
		return nil, nil, err
	}

	src := init.Child(1)
	if src == nil {
		return &ir.VarDecl{Var: v, Init: ir.NewConst(d.typ, 0)}, scope, nil
	}
	e, err := a.expr(src, scope)
	if err != nil {
		return nil, nil, err
	}
	if !ctype.Equal(e.Type(), d.typ) {
		return nil, nil, diag.New(diag.TypeMismatch, "declaration", "%s is %s, initializer is %s", d.name, d.typ, e.Type())
	}
	return &ir.VarDecl{Var: v, Init: e}, scope, nil
}
