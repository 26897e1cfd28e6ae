package wasm

import (
	"bonsaic/pkg/ir"
)

// GlobalContext is the module-level symbol table: global and function
// indexes in module order. It is built once, before any body is lowered, and
// only read afterwards.
type GlobalContext struct {
	globals   map[int]uint32
	functions map[int]uint32
}

func NewGlobalContext(mod *ir.Module) *GlobalContext {
	g := &GlobalContext{
		globals:   make(map[int]uint32, len(mod.Globals)),
		functions: make(map[int]uint32, len(mod.Functions)),
	}
	for i, v := range mod.Globals {
		g.globals[v.ID] = uint32(i)
	}
	for i, f := range mod.Functions {
		g.functions[f.Var.ID] = uint32(i)
	}
	return g
}

// FunctionIndex returns the index of a defined function.
func (g *GlobalContext) FunctionIndex(varID int) (uint32, bool) {
	i, ok := g.functions[varID]
	return i, ok
}

// Context assigns dense local indexes within one function, parameters first.
type Context struct {
	Global *GlobalContext

	locals  map[int]uint32
	types   []ValType
	nparams int
}

func NewContext(g *GlobalContext) *Context {
	return &Context{Global: g, locals: make(map[int]uint32)}
}

// DeclareParam binds a parameter. All parameters must be declared before the
// first local.
func (c *Context) DeclareParam(varID int, t ValType) uint32 {
	c.nparams++
	return c.DeclareVariable(varID, t)
}

// DeclareVariable allocates the next local slot for a variable.
func (c *Context) DeclareVariable(varID int, t ValType) uint32 {
	idx := uint32(len(c.types))
	c.locals[varID] = idx
	c.types = append(c.types, t)
	return idx
}

// GetIndex resolves a variable to its local or global index.
func (c *Context) GetIndex(varID int) (uint32, bool) {
	if i, ok := c.locals[varID]; ok {
		return i, true
	}
	i, ok := c.Global.globals[varID]
	return i, ok
}

// Locals returns the types of the non-parameter locals.
func (c *Context) Locals() []ValType {
	out := make([]ValType, len(c.types)-c.nparams)
	copy(out, c.types[c.nparams:])
	return out
}
