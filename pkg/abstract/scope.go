package abstract

import (
	"bonsaic/pkg/ctype"
	"bonsaic/pkg/diag"
	"bonsaic/pkg/ir"
)

// Scope is a persistent chain of bindings. Declare never mutates the
// receiver; it returns a longer chain. A boundary frame, created by Copy,
// marks the start of a nested block.
type Scope struct {
	parent   *Scope
	name     string
	variable *ir.Variable
	boundary bool
	arena    *ir.Arena
}

// NewScope returns an empty outermost scope whose variables live in arena.
func NewScope(arena *ir.Arena) *Scope {
	return &Scope{boundary: true, arena: arena}
}

// Get resolves name, innermost binding first.
func (s *Scope) Get(name string) (*ir.Variable, error) {
	for f := s; f != nil; f = f.parent {
		if !f.boundary && f.name == name {
			return f.variable, nil
		}
	}
	return nil, diag.New(diag.UndeclaredVariable, "variable reference", "%s", name)
}

// Declare creates a variable and returns the scope that binds it. Names
// already bound in the same block are rejected; outer bindings are shadowed.
func (s *Scope) Declare(name string, typ *ctype.Type, isGlobal bool) (*Scope, *ir.Variable, error) {
	if name != "" {
		for f := s; f != nil && !f.boundary; f = f.parent {
			if f.name == name {
				return nil, nil, diag.New(diag.DuplicateDeclaration, "declaration", "%s", name)
			}
		}
	}
	v := s.arena.New(name, typ, isGlobal)
	return s.bind(name, v), v, nil
}

// bind extends the chain with an existing variable.
func (s *Scope) bind(name string, v *ir.Variable) *Scope {
	return &Scope{parent: s, name: name, variable: v, arena: s.arena}
}

// Copy opens a nested block. Declarations made on the result are invisible
// through the receiver.
func (s *Scope) Copy() *Scope {
	return &Scope{parent: s, boundary: true, arena: s.arena}
}
