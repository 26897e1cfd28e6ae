// Package abstract turns a raw parse tree into the typed, scope-resolved IR.
//
// Abstraction is total: every parse tree tag and operator is either
// translated or rejected with a diag.Error. Nothing is guessed.
package abstract

import (
	"bonsaic/pkg/cparse"
	"bonsaic/pkg/ctype"
	"bonsaic/pkg/diag"
	"bonsaic/pkg/ir"
)

type abstractor struct {
	arena  *ir.Arena
	global *Scope

	// funcs holds every function named at module level, by name.
	funcs   map[string]*ir.Variable
	defined map[string]bool

	// retType is the declared return type of the function being abstracted.
	retType *ctype.Type
}

// Abstract builds the IR module for a translation unit. All function
// signatures are registered before any body is visited, so calls may refer
// to functions defined later in the file.
func Abstract(unit []*cparse.Node) (*ir.Module, error) {
	arena := ir.NewArena()
	a := &abstractor{
		arena:   arena,
		global:  NewScope(arena),
		funcs:   make(map[string]*ir.Variable),
		defined: make(map[string]bool),
	}
	mod := &ir.Module{Vars: arena}

	for _, n := range unit {
		if err := a.registerSignatures(n); err != nil {
			return nil, diag.AtLine(err, n.Line)
		}
	}

	for _, n := range unit {
		var err error
		switch n.Tag {
		case cparse.TagDeclaration:
			err = a.globalDeclaration(n, mod)
		case cparse.TagFunctionDefinition:
			var fn *ir.FunctionDef
			if fn, err = a.functionDefinition(n); err == nil {
				mod.Functions = append(mod.Functions, fn)
			}
		}
		if err != nil {
			return nil, diag.AtLine(err, n.Line)
		}
	}
	return mod, nil
}

// registerSignatures records the function named by a definition or a
// prototype. Repeated prototypes must agree; a second body is a duplicate.
func (a *abstractor) registerSignatures(n *cparse.Node) error {
	switch n.Tag {
	case cparse.TagFunctionDefinition:
		d, err := a.declarator(n.Strings(0), n.Child(1))
		if err != nil {
			return err
		}
		if !d.typ.Is(ctype.Function) {
			return diag.New(diag.UnrecognisedConstruct, "function definition", "%s is not a function declarator", d.name)
		}
		if a.defined[d.name] {
			return diag.New(diag.DuplicateDeclaration, "function definition", "%s", d.name)
		}
		if err := a.registerFunction(d.name, d.typ); err != nil {
			return err
		}
		a.defined[d.name] = true
		return nil

	case cparse.TagDeclaration:
		for _, init := range n.List(1) {
			d, err := a.declarator(n.Strings(0), init.Child(0))
			if err != nil {
				return diag.AtLine(err, init.Line)
			}
			if !d.typ.Is(ctype.Function) {
				continue
			}
			if init.Child(1) != nil {
				return diag.AtLine(diag.New(diag.TypeMismatch, "function declaration", "%s has an initializer", d.name), init.Line)
			}
			if err := a.registerFunction(d.name, d.typ); err != nil {
				return diag.AtLine(err, init.Line)
			}
		}
		return nil
	}
	return diag.New(diag.UnrecognisedConstruct, "top-level construct", "%s", n.Tag)
}

func (a *abstractor) registerFunction(name string, typ *ctype.Type) error {
	if prev, ok := a.funcs[name]; ok {
		if !ctype.Equal(prev.Type, typ) {
			return diag.New(diag.TypeMismatch, "function declaration", "%s declared as %s, previously %s", name, typ, prev.Type)
		}
		return nil
	}
	scope, v, err := a.global.Declare(name, typ, true)
	if err != nil {
		return err
	}
	a.global = scope
	a.funcs[name] = v
	return nil
}

// globalDeclaration records module-level variables. Initializers must be
// compile-time constants.
func (a *abstractor) globalDeclaration(n *cparse.Node, mod *ir.Module) error {
	for _, init := range n.List(1) {
		d, err := a.declarator(n.Strings(0), init.Child(0))
		if err != nil {
			return diag.AtLine(err, init.Line)
		}
		if d.typ.Is(ctype.Function) {
			continue
		}
		if d.typ.Is(ctype.Void) {
			return diag.AtLine(diag.New(diag.UnsupportedType, "global declaration", "void variable %s", d.name), init.Line)
		}

		scope, v, err := a.global.Declare(d.name, d.typ, true)
		if err != nil {
			return diag.AtLine(err, init.Line)
		}
		a.global = scope

		if src := init.Child(1); src != nil {
			e, err := a.expr(src, a.global)
			if err != nil {
				return diag.AtLine(err, init.Line)
			}
			if !ctype.Equal(e.Type(), d.typ) {
				return diag.AtLine(diag.New(diag.TypeMismatch, "global initializer", "%s is %s, initializer is %s", d.name, d.typ, e.Type()), init.Line)
			}
			val, ok := e.Constant()
			if !ok {
				return diag.AtLine(diag.New(diag.NonConstantInitializer, "global initializer", "%s = %s", d.name, e), init.Line)
			}
			v.InitialValue = &val
		}
		mod.Globals = append(mod.Globals, v)
	}
	return nil
}

func (a *abstractor) functionDefinition(n *cparse.Node) (*ir.FunctionDef, error) {
	d, err := a.declarator(n.Strings(0), n.Child(1))
	if err != nil {
		return nil, err
	}
	if krDecls := n.List(2); len(krDecls) > 0 {
		return nil, diag.New(diag.UnrecognisedConstruct, "function definition", "K&R parameter declarations in %s", d.name)
	}

	fn := &ir.FunctionDef{
		Name:       d.name,
		ReturnType: d.typ.Return(),
		Type:       d.typ,
		Var:        a.funcs[d.name],
	}

	// Parameters and the outermost body block share one scope.
	scope := a.global.Copy()
	for _, p := range d.params {
		var v *ir.Variable
		scope, v, err = scope.Declare(p.name, p.typ, false)
		if err != nil {
			return nil, err
		}
		fn.Params = append(fn.Params, ir.Param{Name: p.name, Type: p.typ, Var: v})
	}

	body := n.Child(3)
	if body == nil || body.Tag != cparse.TagBlock {
		return nil, diag.New(diag.UnrecognisedConstruct, "function body", "%s", d.name)
	}
	a.retType = fn.ReturnType
	stmts, err := a.blockItems(body.List(0), scope)
	if err != nil {
		return nil, err
	}
	fn.Body = &ir.Block{Stmts: stmts}
	return fn, nil
}

// declared is the result of walking a declarator.
type declared struct {
	name   string
	typ    *ctype.Type
	params []declared // outermost function declarator's parameters
}

// declarator derives the name and type bound by a declarator under the given
// specifiers.
func (a *abstractor) declarator(specifiers []string, d *cparse.Node) (declared, error) {
	typ, err := ctype.FromDeclaration(specifiers)
	if err != nil {
		return declared{}, err
	}
	var out declared
	seenFunc := false
	for d != nil {
		switch d.Tag {
		case cparse.TagIdentifier:
			out.name = d.Str(0)
			out.typ = typ
			return out, nil

		case cparse.TagPointerDeclarator:
			typ = ctype.PointerTo(typ)
			d = d.Child(0)

		case cparse.TagFunctionDeclarator:
			if seenFunc {
				return declared{}, diag.New(diag.UnsupportedType, "function declarator", "function returning a function")
			}
			seenFunc = true
			params, err := a.parameters(d.List(1))
			if err != nil {
				return declared{}, err
			}
			paramTypes := make([]*ctype.Type, len(params))
			for i, p := range params {
				paramTypes[i] = p.typ
			}
			typ = ctype.Func(typ, paramTypes...)
			out.params = params
			d = d.Child(0)

		default:
			return declared{}, diag.New(diag.UnrecognisedConstruct, "declarator", "%s", d.Tag)
		}
	}
	return declared{}, diag.New(diag.UnrecognisedConstruct, "declarator", "missing identifier")
}

// parameters reads a parameter list. A lone `void` means no parameters.
func (a *abstractor) parameters(list []*cparse.Node) ([]declared, error) {
	if len(list) == 1 && list[0].Tag == cparse.TagTypeOnlyParameterDeclaration {
		if t, err := ctype.FromDeclaration(list[0].Strings(0)); err == nil && t.Is(ctype.Void) {
			return nil, nil
		}
	}

	var params []declared
	for _, p := range list {
		var d declared
		var err error
		switch p.Tag {
		case cparse.TagParameterDeclaration:
			d, err = a.declarator(p.Strings(0), p.Child(1))
		case cparse.TagTypeOnlyParameterDeclaration:
			d.typ, err = ctype.FromDeclaration(p.Strings(0))
		default:
			err = diag.New(diag.UnrecognisedConstruct, "parameter", "%s", p.Tag)
		}
		if err != nil {
			return nil, diag.AtLine(err, p.Line)
		}
		if d.typ.Is(ctype.Void) || d.typ.Is(ctype.Function) {
			return nil, diag.AtLine(diag.New(diag.UnsupportedType, "parameter", "%s %s", d.typ, d.name), p.Line)
		}
		params = append(params, d)
	}
	return params, nil
}
