// Package ctype models the C types understood by the compiler: int, double,
// void, pointers and function signatures.
//
// Types are immutable. Two types are compatible only when Equal reports true;
// no implicit widening happens at this layer.
package ctype

import (
	"sort"
	"strings"

	"bonsaic/pkg/diag"
)

// Category is the top-level tag of a Type, used for dispatch.
type Category int

const (
	Int Category = iota
	Double
	Void
	Pointer
	Function
)

var categoryNames = [...]string{
	Int:      "int",
	Double:   "double",
	Void:     "void",
	Pointer:  "pointer",
	Function: "function",
}

func (c Category) String() string {
	if int(c) >= 0 && int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "category(?)"
}

// Type is a canonical C type. The zero value is not valid; use the package
// level singletons and constructors.
type Type struct {
	category Category
	target   *Type   // Pointer
	ret      *Type   // Function
	params   []*Type // Function
}

var (
	IntType    = &Type{category: Int}
	DoubleType = &Type{category: Double}
	VoidType   = &Type{category: Void}
)

// PointerTo returns the type pointer-to-t.
func PointerTo(t *Type) *Type {
	return &Type{category: Pointer, target: t}
}

// Func returns the signature type of a function.
func Func(ret *Type, params ...*Type) *Type {
	ps := make([]*Type, len(params))
	copy(ps, params)
	return &Type{category: Function, ret: ret, params: ps}
}

func (t *Type) Category() Category { return t.category }

// Target is the pointed-to type of a pointer, nil otherwise.
func (t *Type) Target() *Type { return t.target }

// Return is the return type of a function type, nil otherwise.
func (t *Type) Return() *Type { return t.ret }

// Params returns a copy of a function type's parameter types.
func (t *Type) Params() []*Type {
	ps := make([]*Type, len(t.params))
	copy(ps, t.params)
	return ps
}

// Is reports whether t has category c.
func (t *Type) Is(c Category) bool { return t != nil && t.category == c }

// IsArithmetic reports whether t is int or double.
func (t *Type) IsArithmetic() bool {
	return t.Is(Int) || t.Is(Double)
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.category {
	case Pointer:
		return t.target.String() + "*"
	case Function:
		parts := make([]string, len(t.params))
		for i, p := range t.params {
			parts[i] = p.String()
		}
		return t.ret.String() + "(" + strings.Join(parts, ", ") + ")"
	default:
		return t.category.String()
	}
}

// Equal is structural type equality.
func Equal(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.category != b.category {
		return false
	}
	switch a.category {
	case Pointer:
		return Equal(a.target, b.target)
	case Function:
		if !Equal(a.ret, b.ret) || len(a.params) != len(b.params) {
			return false
		}
		for i := range a.params {
			if !Equal(a.params[i], b.params[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// specifierSets maps a sorted, space-joined specifier list to its type.
var specifierSets = map[string]*Type{
	"int":        IntType,
	"signed":     IntType,
	"int signed": IntType,
	"double":     DoubleType,
	"void":       VoidType,
}

// FromDeclaration maps a declaration-specifier list such as
// ["signed", "int"] to its canonical type.
func FromDeclaration(specifiers []string) (*Type, error) {
	sorted := make([]string, len(specifiers))
	copy(sorted, specifiers)
	sort.Strings(sorted)

	if t, ok := specifierSets[strings.Join(sorted, " ")]; ok {
		return t, nil
	}
	return nil, diag.New(diag.UnsupportedType, "declaration specifiers", "%s", strings.Join(specifiers, " "))
}
