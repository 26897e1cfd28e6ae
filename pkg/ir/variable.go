package ir

import (
	"fmt"

	"bonsaic/pkg/ctype"
)

// Variable is a declared storage location or function. Variables live in an
// Arena; every reference elsewhere points at the arena record.
type Variable struct {
	ID       int
	Name     string
	Type     *ctype.Type
	IsGlobal bool

	// InitialValue is the compile-time initial value of a global, nil when
	// the global starts at zero.
	InitialValue *int64
}

func (v *Variable) String() string {
	scope := "local"
	if v.IsGlobal {
		scope = "global"
	}
	return fmt.Sprintf("%s#%d (%s %s)", v.Name, v.ID, scope, v.Type)
}

// IsFunction reports whether v names a function rather than an object.
func (v *Variable) IsFunction() bool {
	return v.Type.Is(ctype.Function)
}

// Arena owns every Variable of a module. Ids are dense and assigned in
// declaration order.
type Arena struct {
	vars []*Variable
}

func NewArena() *Arena {
	return &Arena{}
}

// New records a fresh variable and returns it.
func (a *Arena) New(name string, typ *ctype.Type, isGlobal bool) *Variable {
	v := &Variable{ID: len(a.vars), Name: name, Type: typ, IsGlobal: isGlobal}
	a.vars = append(a.vars, v)
	return v
}

// Get returns the variable with the given id, or nil.
func (a *Arena) Get(id int) *Variable {
	if id < 0 || id >= len(a.vars) {
		return nil
	}
	return a.vars[id]
}

func (a *Arena) Len() int { return len(a.vars) }
