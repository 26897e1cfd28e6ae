package abstract

import (
	"testing"

	"bonsaic/pkg/ctype"
	"bonsaic/pkg/diag"
	"bonsaic/pkg/ir"
)

func TestScopeDeclareAndGet(t *testing.T) {
	root := NewScope(ir.NewArena())

	s1, x, err := root.Declare("x", ctype.IntType, true)
	if err != nil {
		t.Fatalf("Declare failed: %v", err)
	}
	if got, err := s1.Get("x"); err != nil || got != x {
		t.Fatalf("Get(x) = %v, %v", got, err)
	}

	// Frames are persistent: the receiver never sees later declarations.
	if _, err := root.Get("x"); !diag.Is(err, diag.UndeclaredVariable) {
		t.Errorf("root scope should not see x, got %v", err)
	}

	if _, _, err := s1.Declare("x", ctype.DoubleType, true); !diag.Is(err, diag.DuplicateDeclaration) {
		t.Errorf("redeclaring x in the same block: got %v", err)
	}
}

func TestScopeShadowingAndCopy(t *testing.T) {
	arena := ir.NewArena()
	outer, x, _ := NewScope(arena).Declare("x", ctype.IntType, true)

	inner, shadow, err := outer.Copy().Declare("x", ctype.DoubleType, false)
	if err != nil {
		t.Fatalf("shadowing in a nested block should be allowed: %v", err)
	}
	if got, _ := inner.Get("x"); got != shadow {
		t.Errorf("inner Get(x) returned %v, want the shadowing variable", got)
	}
	if got, _ := outer.Get("x"); got != x {
		t.Errorf("outer Get(x) returned %v, want the original variable", got)
	}

	inner, y, _ := inner.Declare("y", ctype.IntType, false)
	if _, err := outer.Get("y"); err == nil {
		t.Errorf("y leaked out of the nested block")
	}
	if got, _ := inner.Get("y"); got != y {
		t.Errorf("Get(y) = %v", got)
	}

	if arena.Len() != 3 || arena.Get(shadow.ID) != shadow {
		t.Errorf("arena holds %d variables, want 3", arena.Len())
	}
}
