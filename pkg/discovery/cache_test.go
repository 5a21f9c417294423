package discovery

import (
	"testing"

	"github.com/cdl-saarland/AnICA/pkg/block"
	"github.com/cdl-saarland/AnICA/pkg/feature"
	"github.com/cdl-saarland/AnICA/pkg/iwho"
)

func discoveryTestManager(t *testing.T) (*feature.Manager, iwho.Context) {
	t.Helper()
	ctx, err := iwho.NewInMemoryContext(iwho.DefaultX86Schemes(), nil)
	if err != nil {
		t.Fatalf("NewInMemoryContext: %v", err)
	}
	mgr, err := feature.NewManager(ctx, feature.DefaultDeclarations(), feature.DefaultExtractors())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return mgr, ctx
}

func concreteAddBlock(t *testing.T, ctx iwho.Context, dst, src string) *block.AbstractBlock {
	t.Helper()
	scheme, ok := ctx.SchemeByID("ADD_R64_R64")
	if !ok {
		t.Fatalf("scheme ADD_R64_R64 not found")
	}
	insn := &iwho.InsnInstance{
		Scheme: scheme,
		Operands: map[string]iwho.OperandInstance{
			"dst": {Scheme: scheme.ExplicitOperands[0], Register: dst},
			"src": {Scheme: scheme.ExplicitOperands[1], Register: src},
		},
	}
	mgr, _ := discoveryTestManager(t)
	ab, err := block.FromConcrete(mgr, ctx, iwho.NewBasicBlock([]*iwho.InsnInstance{insn}))
	if err != nil {
		t.Fatalf("FromConcrete: %v", err)
	}
	return ab
}

func TestSubsumptionCacheEmptyCacheSubsumesNothing(t *testing.T) {
	_, ctx := discoveryTestManager(t)
	c := NewSubsumptionCache()
	ab := concreteAddBlock(t, ctx, "RAX", "RBX")
	if c.SubsumedByAny(ab) {
		t.Errorf("SubsumedByAny on an empty cache = true, want false")
	}
	if c.Len() != 0 {
		t.Errorf("Len() on an empty cache = %d, want 0", c.Len())
	}
}

func TestSubsumptionCacheCatchesExactDuplicate(t *testing.T) {
	_, ctx := discoveryTestManager(t)
	c := NewSubsumptionCache()
	a := concreteAddBlock(t, ctx, "RAX", "RBX")
	c.Add(a)

	b := concreteAddBlock(t, ctx, "RAX", "RBX")
	if !c.SubsumedByAny(b) {
		t.Errorf("SubsumedByAny did not catch an equivalent block already in the cache")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestSubsumptionCacheDistinctBlocksNotSubsumed(t *testing.T) {
	_, ctx := discoveryTestManager(t)
	c := NewSubsumptionCache()
	a := concreteAddBlock(t, ctx, "RAX", "RBX")
	c.Add(a)

	b := concreteAddBlock(t, ctx, "RCX", "RCX")
	if c.SubsumedByAny(b) {
		t.Errorf("SubsumedByAny reported a block subsumed by an unrelated singleton block")
	}
}

func TestSubsumptionCacheIsBucketedByLength(t *testing.T) {
	mgr, ctx := discoveryTestManager(t)
	c := NewSubsumptionCache()
	c.Add(concreteAddBlock(t, ctx, "RAX", "RBX"))

	top2 := block.MakeTop(mgr, 2)
	if c.SubsumedByAny(top2) {
		t.Errorf("SubsumedByAny matched a length-1 cached block against a length-2 query")
	}
}

func TestSubsumptionCacheCatchesJoinedBlock(t *testing.T) {
	_, ctx := discoveryTestManager(t)
	c := NewSubsumptionCache()
	a := concreteAddBlock(t, ctx, "RAX", "RBX")
	b := concreteAddBlock(t, ctx, "RCX", "RDX")
	joined, err := a.Join(b)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	c.Add(joined)

	if !c.SubsumedByAny(a) {
		t.Errorf("SubsumedByAny did not find a accepted via its join with b")
	}
	if !c.SubsumedByAny(b) {
		t.Errorf("SubsumedByAny did not find b accepted via its join with a")
	}
}
