package sampler

import (
	"testing"

	"github.com/cdl-saarland/AnICA/pkg/block"
	"github.com/cdl-saarland/AnICA/pkg/errs"
	"github.com/cdl-saarland/AnICA/pkg/feature"
	"github.com/cdl-saarland/AnICA/pkg/iwho"
	"github.com/cdl-saarland/AnICA/pkg/util"
)

func testCtxAndManager(t *testing.T) (iwho.Context, *feature.Manager) {
	t.Helper()
	ctx, err := iwho.NewInMemoryContext(iwho.DefaultX86Schemes(), nil)
	if err != nil {
		t.Fatalf("NewInMemoryContext: %v", err)
	}
	mgr, err := feature.NewManager(ctx, feature.DefaultDeclarations(), feature.DefaultExtractors())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return ctx, mgr
}

func addInsn(scheme *iwho.InsnScheme, dst, src string) *iwho.InsnInstance {
	return &iwho.InsnInstance{
		Scheme: scheme,
		Operands: map[string]iwho.OperandInstance{
			"dst": {Scheme: scheme.ExplicitOperands[0], Register: dst},
			"src": {Scheme: scheme.ExplicitOperands[1], Register: src},
		},
	}
}

func registersOf(bb *iwho.BasicBlock) (dst0, src0, dst1, src1 string) {
	return bb.Insns[0].Operands["dst"].Register, bb.Insns[0].Operands["src"].Register,
		bb.Insns[1].Operands["dst"].Register, bb.Insns[1].Operands["src"].Register
}

func TestSampleRespectsMustNotAlias(t *testing.T) {
	ctx, mgr := testCtxAndManager(t)
	scheme, ok := ctx.SchemeByID("ADD_R64_R64")
	if !ok {
		t.Fatalf("scheme ADD_R64_R64 not found")
	}
	concrete := iwho.NewBasicBlock([]*iwho.InsnInstance{
		addInsn(scheme, "RAX", "RBX"),
		addInsn(scheme, "RCX", "RDX"),
	})
	ab, err := block.FromConcrete(mgr, ctx, concrete)
	if err != nil {
		t.Fatalf("FromConcrete: %v", err)
	}

	s, err := Precompute(ab, ctx)
	if err != nil {
		t.Fatalf("Precompute: %v", err)
	}

	rng := util.NewRng(1)
	for i := 0; i < 50; i++ {
		bb, err := s.Sample(rng)
		if err != nil {
			t.Fatalf("Sample: %v", err)
		}
		dst0, src0, dst1, src1 := registersOf(bb)
		regs := map[string]bool{dst0: true, src0: true, dst1: true, src1: true}
		if len(regs) != 4 {
			t.Errorf("Sample() = dst0=%s src0=%s dst1=%s src1=%s, want 4 distinct registers (all pairs were must-not-alias)", dst0, src0, dst1, src1)
		}
	}
}

func TestSampleRespectsMustAlias(t *testing.T) {
	ctx, mgr := testCtxAndManager(t)
	scheme, ok := ctx.SchemeByID("ADD_R64_R64")
	if !ok {
		t.Fatalf("scheme ADD_R64_R64 not found")
	}
	// dst of insn 0 and src of insn 1 share the same concrete register, so
	// FromConcrete records a must-alias constraint between those two nodes.
	concrete := iwho.NewBasicBlock([]*iwho.InsnInstance{
		addInsn(scheme, "RAX", "RBX"),
		addInsn(scheme, "RCX", "RAX"),
	})
	ab, err := block.FromConcrete(mgr, ctx, concrete)
	if err != nil {
		t.Fatalf("FromConcrete: %v", err)
	}

	s, err := Precompute(ab, ctx)
	if err != nil {
		t.Fatalf("Precompute: %v", err)
	}

	rng := util.NewRng(7)
	for i := 0; i < 50; i++ {
		bb, err := s.Sample(rng)
		if err != nil {
			t.Fatalf("Sample: %v", err)
		}
		dst0, _, _, src1 := registersOf(bb)
		if dst0 != src1 {
			t.Errorf("Sample() dst0=%s src1=%s, want equal (must-alias constraint)", dst0, src1)
		}
	}
}

// A generalization-relaxed scheme at one position can diverge from the
// register class that was in play when FromConcrete recorded a must-alias
// edge against it; resolveClasses must detect that the class has become
// unsatisfiable rather than writing a foreign register onto the operand.
func TestSampleRejectsMustAliasAcrossIncompatibleRegisterClasses(t *testing.T) {
	ctx, mgr := testCtxAndManager(t)
	movScheme, ok := ctx.SchemeByID("MOV_R64_R64")
	if !ok {
		t.Fatalf("scheme MOV_R64_R64 not found")
	}
	xmmScheme, ok := ctx.SchemeByID("ADDPS_XMM_XMM")
	if !ok {
		t.Fatalf("scheme ADDPS_XMM_XMM not found")
	}

	// insn1's src aliases insn0's dst (both RAX), so FromConcrete records a
	// must-alias edge between those two GP64 operand nodes.
	concrete := iwho.NewBasicBlock([]*iwho.InsnInstance{
		addInsn(movScheme, "RAX", "RBX"),
		addInsn(movScheme, "RCX", "RAX"),
	})
	ab, err := block.FromConcrete(mgr, ctx, concrete)
	if err != nil {
		t.Fatalf("FromConcrete: %v", err)
	}

	// Force position 1 to an XMM scheme independent of ab's own feasible
	// schemes, the way a generalization-relaxed expansion can.
	s := PrecomputeForSchemes(ab, ctx, [][]*iwho.InsnScheme{{movScheme}, {xmmScheme}})
	if _, err := s.Sample(util.NewRng(1)); err == nil {
		t.Errorf("Sample() with a must-alias class spanning GP64 and XMM operands did not error")
	} else if !errs.Is(err, errs.KindSampling) {
		t.Errorf("Sample() error kind = %v, want sampling", err)
	}
}

func TestSampleIsDeterministicGivenSeed(t *testing.T) {
	ctx, mgr := testCtxAndManager(t)
	scheme, _ := ctx.SchemeByID("ADD_R64_R64")
	concrete := iwho.NewBasicBlock([]*iwho.InsnInstance{addInsn(scheme, "RAX", "RBX")})
	ab, err := block.FromConcrete(mgr, ctx, concrete)
	if err != nil {
		t.Fatalf("FromConcrete: %v", err)
	}

	s1, err := Precompute(ab, ctx)
	if err != nil {
		t.Fatalf("Precompute: %v", err)
	}
	s2, err := Precompute(ab, ctx)
	if err != nil {
		t.Fatalf("Precompute: %v", err)
	}

	bb1, err := s1.Sample(util.NewRng(42))
	if err != nil {
		t.Fatalf("Sample 1: %v", err)
	}
	bb2, err := s2.Sample(util.NewRng(42))
	if err != nil {
		t.Fatalf("Sample 2: %v", err)
	}
	if bb1.Asm() != bb2.Asm() {
		t.Errorf("Sample with the same seed produced %q and %q, want equal", bb1.Asm(), bb2.Asm())
	}
}

func TestPrecomputeRejectsInfeasiblePosition(t *testing.T) {
	ctx2, err := iwho.NewInMemoryContext(nil, nil)
	if err != nil {
		t.Fatalf("NewInMemoryContext: %v", err)
	}
	mgr2, err := feature.NewManager(ctx2, feature.DefaultDeclarations(), feature.DefaultExtractors())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ab := block.MakeTop(mgr2, 1)
	if _, err := Precompute(ab, ctx2); err == nil {
		t.Errorf("Precompute over an empty scheme universe did not error")
	}
}
