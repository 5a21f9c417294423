package block

import (
	"testing"

	"github.com/cdl-saarland/AnICA/pkg/feature"
	"github.com/cdl-saarland/AnICA/pkg/iwho"
)

func testManager(t *testing.T) (*feature.Manager, iwho.Context) {
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

func concreteMovBlock(t *testing.T, ctx iwho.Context) *iwho.BasicBlock {
	t.Helper()
	scheme, ok := ctx.SchemeByID("MOV_R64_R64")
	if !ok {
		t.Fatalf("scheme MOV_R64_R64 not found")
	}
	insn := &iwho.InsnInstance{
		Scheme: scheme,
		Operands: map[string]iwho.OperandInstance{
			"dst": {Scheme: scheme.ExplicitOperands[0], Register: "RAX"},
			"src": {Scheme: scheme.ExplicitOperands[1], Register: "RBX"},
		},
	}
	return iwho.NewBasicBlock([]*iwho.InsnInstance{insn})
}

// make_top's aliasing has an empty key universe until it is sampled and
// re-lifted, so only the feature component of the lattice law applies here.
func TestMakeTopFeaturesSubsumeEveryConcreteInsn(t *testing.T) {
	mgr, ctx := testManager(t)
	top := MakeTop(mgr, 1)
	concrete, err := FromConcrete(mgr, ctx, concreteMovBlock(t, ctx))
	if err != nil {
		t.Fatalf("FromConcrete: %v", err)
	}
	if !mgr.Subsumes(top.Insn(0), concrete.Insn(0)) {
		t.Errorf("make_top(1)'s feature vector does not subsume a lifted concrete instruction's")
	}
	if mgr.Subsumes(concrete.Insn(0), top.Insn(0)) {
		t.Errorf("a lifted singleton instruction's feature vector subsumes top's, want false")
	}
}

func TestSubsumesIsReflexive(t *testing.T) {
	mgr, ctx := testManager(t)
	concrete, err := FromConcrete(mgr, ctx, concreteMovBlock(t, ctx))
	if err != nil {
		t.Fatalf("FromConcrete: %v", err)
	}
	if !concrete.Subsumes(concrete) {
		t.Errorf("a block does not subsume itself")
	}
}

func TestJoinOfDifferentLengthsErrors(t *testing.T) {
	mgr, _ := testManager(t)
	a := MakeTop(mgr, 1)
	b := MakeTop(mgr, 2)
	if _, err := a.Join(b); err == nil {
		t.Errorf("Join of blocks with different lengths did not error")
	}
}

func TestJoinSubsumesBothOperands(t *testing.T) {
	mgr, ctx := testManager(t)
	a, err := FromConcrete(mgr, ctx, concreteMovBlock(t, ctx))
	if err != nil {
		t.Fatalf("FromConcrete a: %v", err)
	}

	scheme, _ := ctx.SchemeByID("ADD_R64_R64")
	addInsn := &iwho.InsnInstance{
		Scheme: scheme,
		Operands: map[string]iwho.OperandInstance{
			"dst": {Scheme: scheme.ExplicitOperands[0], Register: "RCX"},
			"src": {Scheme: scheme.ExplicitOperands[1], Register: "RDX"},
		},
	}
	b, err := FromConcrete(mgr, ctx, iwho.NewBasicBlock([]*iwho.InsnInstance{addInsn}))
	if err != nil {
		t.Fatalf("FromConcrete b: %v", err)
	}

	joined, err := a.Join(b)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if !joined.Subsumes(a) {
		t.Errorf("Join(a,b) does not subsume a")
	}
	if !joined.Subsumes(b) {
		t.Errorf("Join(a,b) does not subsume b")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	mgr, ctx := testManager(t)
	a, err := FromConcrete(mgr, ctx, concreteMovBlock(t, ctx))
	if err != nil {
		t.Fatalf("FromConcrete: %v", err)
	}
	clone := a.Clone()
	if !a.Subsumes(clone) || !clone.Subsumes(a) {
		t.Errorf("clone is not equivalent to the original")
	}
}

func TestFeasibleSchemesShrinksFromSingleton(t *testing.T) {
	mgr, ctx := testManager(t)
	top := MakeTop(mgr, 1)
	allTop := len(top.FeasibleSchemes(0))

	concrete, err := FromConcrete(mgr, ctx, concreteMovBlock(t, ctx))
	if err != nil {
		t.Fatalf("FromConcrete: %v", err)
	}
	feasible := concrete.FeasibleSchemes(0)
	if len(feasible) != 1 || feasible[0].ID != "MOV_R64_R64" {
		t.Errorf("FeasibleSchemes(singleton MOV_R64_R64) = %v, want exactly [MOV_R64_R64]", feasible)
	}
	if len(feasible) >= allTop {
		t.Errorf("singleton feasible set (%d) is not smaller than top's (%d)", len(feasible), allTop)
	}
}
