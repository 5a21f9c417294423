package util

import "testing"

func TestNewRngIsDeterministicGivenSeed(t *testing.T) {
	a := NewRng(42)
	b := NewRng(42)
	for i := 0; i < 20; i++ {
		if av, bv := a.IntN(1000), b.IntN(1000); av != bv {
			t.Fatalf("draw %d: a=%d b=%d, want equal for the same seed", i, av, bv)
		}
	}
}

func TestNewRngDifferentSeedsDiverge(t *testing.T) {
	a := NewRng(1)
	b := NewRng(2)
	same := true
	for i := 0; i < 20; i++ {
		if a.IntN(1_000_000) != b.IntN(1_000_000) {
			same = false
			break
		}
	}
	if same {
		t.Errorf("20 draws from seeds 1 and 2 were all equal, want divergence")
	}
}

func TestDeriveIsDeterministicGivenSaltAndParentState(t *testing.T) {
	parent1 := NewRng(7)
	parent2 := NewRng(7)
	child1 := parent1.Derive(99)
	child2 := parent2.Derive(99)
	for i := 0; i < 10; i++ {
		if v1, v2 := child1.IntN(1000), child2.IntN(1000); v1 != v2 {
			t.Fatalf("draw %d: child1=%d child2=%d, want equal", i, v1, v2)
		}
	}
}

func TestChoicePicksAnElementOfTheSlice(t *testing.T) {
	r := NewRng(3)
	items := []string{"a", "b", "c"}
	for i := 0; i < 20; i++ {
		got := Choice(r, items)
		found := false
		for _, want := range items {
			if got == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Choice() = %q, not a member of %v", got, items)
		}
	}
}
