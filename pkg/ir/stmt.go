package ir

import (
	"bonsaic/pkg/ctype"
)

// Stmt is a typed statement node.
type Stmt interface {
	stmtNode()
}

// ExprStmt evaluates Expr and discards its value.
type ExprStmt struct {
	Expr Expr
}

// VarDecl binds one variable. Init is never nil for locals: the abstractor
// synthesizes a zero constant when the source has no initializer.
type VarDecl struct {
	Var  *Variable
	Init Expr
}

// Decl is a declaration statement with one or more declarators.
type Decl struct {
	Vars []*VarDecl
}

// Block is a nested scope.
type Block struct {
	Stmts []Stmt
}

// If is if (Test) Then [else Else]. Else may be nil.
type If struct {
	Test Expr
	Then Stmt
	Else Stmt
}

type While struct {
	Test Expr
	Body Stmt
}

type DoWhile struct {
	Body Stmt
	Test Expr
}

// For is for (Init; Test; Update) Body. Init is nil, a *Decl or an
// *ExprStmt; Test and Update may be nil.
type For struct {
	Init   Stmt
	Test   Expr
	Update Expr
	Body   Stmt
}

type Break struct{}

type Continue struct{}

// Return leaves the function. Expr is nil for a bare return; ReturnType is
// the enclosing function's declared return type.
type Return struct {
	Expr       Expr
	ReturnType *ctype.Type
}

// Null is the empty statement ";".
type Null struct{}

func (*ExprStmt) stmtNode() {}
func (*Decl) stmtNode()     {}
func (*Block) stmtNode()    {}
func (*If) stmtNode()       {}
func (*While) stmtNode()    {}
func (*DoWhile) stmtNode()  {}
func (*For) stmtNode()      {}
func (*Break) stmtNode()    {}
func (*Continue) stmtNode() {}
func (*Return) stmtNode()   {}
func (*Null) stmtNode()     {}
