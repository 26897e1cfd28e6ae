package ir

import "bonsaic/pkg/ctype"

// Param is one function parameter.
type Param struct {
	Name string
	Type *ctype.Type
	Var  *Variable
}

// FunctionDef is a function with a body. It is immutable once built.
type FunctionDef struct {
	Name       string
	ReturnType *ctype.Type
	Params     []Param
	Body       *Block
	Type       *ctype.Type

	// Var is the module-level variable naming the function.
	Var *Variable
}

// Module is the result of abstracting one translation unit.
type Module struct {
	Vars      *Arena
	Globals   []*Variable    // module order
	Functions []*FunctionDef // module order
}

// Function returns the definition with the given name, or nil.
func (m *Module) Function(name string) *FunctionDef {
	for _, f := range m.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}
