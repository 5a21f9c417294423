package block

import (
	"github.com/cdl-saarland/AnICA/pkg/errs"
	"github.com/cdl-saarland/AnICA/pkg/feature"
	"github.com/cdl-saarland/AnICA/pkg/iwho"
)

// AbstractBlock is an ordered sequence of abstract instructions of fixed
// length, together with an abstract aliasing relation over their operands.
type AbstractBlock struct {
	mgr      *feature.Manager
	insns    []map[string]feature.AbstractFeature
	aliasing *Aliasing
}

// Manager returns the feature manager this block was built against.
func (ab *AbstractBlock) Manager() *feature.Manager { return ab.mgr }

// Len returns the block's fixed length.
func (ab *AbstractBlock) Len() int { return len(ab.insns) }

// Insn returns the abstract instruction (feature vector) at position i.
func (ab *AbstractBlock) Insn(i int) map[string]feature.AbstractFeature { return ab.insns[i] }

// Aliasing returns the block's abstract aliasing relation.
func (ab *AbstractBlock) Aliasing() *Aliasing { return ab.aliasing }

// MakeTop builds the top of the lattice over blocks of length n: every
// instruction position is ⊤ and there is no aliasing constraint. Since no
// concrete instruction has been observed yet, the operand-key universe is
// empty; a block built this way carries no aliasing information until it is
// sampled and re-lifted.
func MakeTop(mgr *feature.Manager, n int) *AbstractBlock {
	insns := make([]map[string]feature.AbstractFeature, n)
	for i := range insns {
		insns[i] = mgr.Top()
	}
	return &AbstractBlock{mgr: mgr, insns: insns, aliasing: NewTopAliasing(nil)}
}

// FromConcrete lifts a concrete basic block: every feature becomes its
// singleton value and the aliasing relation records must/must-not for every
// pair of aliasable operands, as reported by ctx.
func FromConcrete(mgr *feature.Manager, ctx iwho.Context, bb *iwho.BasicBlock) (*AbstractBlock, error) {
	insns := make([]map[string]feature.AbstractFeature, len(bb.Insns))
	var keys []OperandKey
	type located struct {
		key OperandKey
		op  iwho.OperandInstance
	}
	var operands []located

	for i, insn := range bb.Insns {
		if insn == nil {
			return nil, errs.IWHOError("block: position %d has no instruction", i)
		}
		insns[i] = mgr.Lift(insn.Scheme)
		posKeys := BuildOperandKeys(i, insn)
		keys = append(keys, posKeys...)
		for _, iop := range insn.IndexableOperands() {
			operands = append(operands, located{
				key: OperandKey{Pos: i, OpIndex: iop.Index, Kind: iop.Scheme.Kind, Name: iop.Scheme.Name},
				op:  iop.Instance,
			})
		}
	}

	aliasing := NewTopAliasing(keys)
	indexOf := make(map[OperandKey]int, len(keys))
	for idx, k := range keys {
		indexOf[k] = idx
	}
	for i := 0; i < len(operands); i++ {
		for j := i + 1; j < len(operands); j++ {
			a, b := operands[i], operands[j]
			if a.key.Pos == b.key.Pos && a.key.OpIndex == b.key.OpIndex {
				continue
			}
			if !a.key.Kind.CanAliasWith(b.key.Kind) {
				continue
			}
			ii, jj := indexOf[a.key], indexOf[b.key]
			switch {
			case ctx.MustAlias(a.op, b.op):
				aliasing.Set(ii, jj, AliasMust)
			case !ctx.MayAlias(a.op, b.op):
				aliasing.Set(ii, jj, AliasMustNot)
			}
		}
	}

	return &AbstractBlock{mgr: mgr, insns: insns, aliasing: aliasing}, nil
}

// Subsumes reports whether γ(other) ⊆ γ(self): equal length, pointwise
// per-instruction subsumption, and aliasing subsumption.
func (ab *AbstractBlock) Subsumes(other *AbstractBlock) bool {
	if ab.Len() != other.Len() {
		return false
	}
	for i := range ab.insns {
		if !ab.mgr.Subsumes(ab.insns[i], other.insns[i]) {
			return false
		}
	}
	return ab.aliasing.Subsumes(other.aliasing)
}

// Join computes the pointwise least upper bound; both blocks must have
// equal length.
func (ab *AbstractBlock) Join(other *AbstractBlock) (*AbstractBlock, error) {
	if ab.Len() != other.Len() {
		return nil, errs.DiscoveryError("block: cannot join blocks of length %d and %d", ab.Len(), other.Len())
	}
	insns := make([]map[string]feature.AbstractFeature, ab.Len())
	for i := range insns {
		insns[i] = ab.mgr.Join(ab.insns[i], other.insns[i])
	}
	return &AbstractBlock{mgr: ab.mgr, insns: insns, aliasing: ab.aliasing.Join(other.aliasing)}, nil
}

// Clone returns an independent deep copy.
func (ab *AbstractBlock) Clone() *AbstractBlock {
	insns := make([]map[string]feature.AbstractFeature, ab.Len())
	for i, m := range ab.insns {
		cm := make(map[string]feature.AbstractFeature, len(m))
		for k, v := range m {
			cm[k] = v.Clone()
		}
		insns[i] = cm
	}
	return &AbstractBlock{mgr: ab.mgr, insns: insns, aliasing: ab.aliasing.Clone()}
}

// FeasibleSchemes returns the scheme set feasible at position i.
func (ab *AbstractBlock) FeasibleSchemes(i int) []*iwho.InsnScheme {
	return ab.mgr.FeasibleSchemes(ab.insns[i])
}
