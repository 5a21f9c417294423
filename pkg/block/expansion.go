package block

import (
	"strconv"

	"github.com/cdl-saarland/AnICA/pkg/feature"
)

// ExpansionKind distinguishes a feature relax step from an aliasing relax
// step.
type ExpansionKind uint8

const (
	FeatureExpansion ExpansionKind = iota
	AliasExpansionKind
)

// Expansion is a single one-step relaxation candidate, labeled with the
// coordinate it affects so that a witness trace can report it and a
// max_benefit strategy can score it without re-deriving it.
type Expansion struct {
	Kind ExpansionKind

	// Valid when Kind == FeatureExpansion.
	Pos      int
	Feature  string
	NewValue feature.AbstractFeature

	// Valid when Kind == AliasExpansionKind.
	Alias AliasExpansion
}

// Expansions enumerates every one-step relaxation of ab: one candidate per
// non-top feature relax step at every position, plus one per constrained
// aliasing pair.
func (ab *AbstractBlock) Expansions() []Expansion {
	var res []Expansion
	for pos, insn := range ab.insns {
		for _, d := range ab.mgr.Declarations() {
			v, ok := insn[d.Name]
			if !ok {
				continue
			}
			for _, cand := range v.Relax() {
				res = append(res, Expansion{Kind: FeatureExpansion, Pos: pos, Feature: d.Name, NewValue: cand})
			}
		}
	}
	for _, ae := range ab.aliasing.Relax() {
		res = append(res, Expansion{Kind: AliasExpansionKind, Alias: ae})
	}
	return res
}

// Apply returns a new block with e applied; ab is not mutated.
func (ab *AbstractBlock) Apply(e Expansion) *AbstractBlock {
	next := ab.Clone()
	switch e.Kind {
	case FeatureExpansion:
		next.insns[e.Pos][e.Feature] = e.NewValue
	case AliasExpansionKind:
		next.aliasing = next.aliasing.Apply(e.Alias)
	}
	return next
}

// Coordinate renders a short, stable label for a trace entry, e.g.
// "insn[0].mnemonic" or "alias(mem0,src)".
func (e Expansion) Coordinate(ab *AbstractBlock) string {
	switch e.Kind {
	case FeatureExpansion:
		return "insn[" + strconv.Itoa(e.Pos) + "]." + e.Feature
	case AliasExpansionKind:
		keys := ab.aliasing.Keys()
		return "alias(" + keys[e.Alias.I].Name + "," + keys[e.Alias.J].Name + ")"
	default:
		return "?"
	}
}
