package generalizer

import (
	"testing"

	"github.com/cdl-saarland/AnICA/pkg/iwho"
)

func schemeInsn(id string) *iwho.InsnInstance {
	return &iwho.InsnInstance{Scheme: &iwho.InsnScheme{ID: id}}
}

func TestRemoveAtDropsExactlyOnePosition(t *testing.T) {
	bb := iwho.NewBasicBlock([]*iwho.InsnInstance{
		schemeInsn("a"), schemeInsn("b"), schemeInsn("c"),
	})
	got := removeAt(bb, 1)
	if len(got.Insns) != 2 {
		t.Fatalf("removeAt(bb, 1) has %d insns, want 2", len(got.Insns))
	}
	if got.Insns[0].Scheme.ID != "a" || got.Insns[1].Scheme.ID != "c" {
		t.Errorf("removeAt(bb, 1) = %v, want [a, c]", got.Insns)
	}
}

func TestRemoveAtFirstAndLast(t *testing.T) {
	bb := iwho.NewBasicBlock([]*iwho.InsnInstance{schemeInsn("a"), schemeInsn("b")})
	if got := removeAt(bb, 0); len(got.Insns) != 1 || got.Insns[0].Scheme.ID != "b" {
		t.Errorf("removeAt(bb, 0) = %v, want [b]", got.Insns)
	}
	if got := removeAt(bb, 1); len(got.Insns) != 1 || got.Insns[0].Scheme.ID != "a" {
		t.Errorf("removeAt(bb, 1) = %v, want [a]", got.Insns)
	}
}
