// Package feature implements the per-instruction feature lattices AnICA
// abstracts over (§3 "Feature" / "Abstract feature" of the data model) and
// the Feature Manager that indexes an instruction-scheme universe by them.
package feature

import "github.com/cdl-saarland/AnICA/pkg/iwho"

// Kind identifies which lattice an abstract feature value belongs to.
type Kind string

// The feature kinds the core understands. Declarations with an unknown kind
// are a ConfigError.
const (
	KindSingleton             Kind = "singleton"
	KindSubset                Kind = "subset"
	KindSubsetOrDefinitelyNot Kind = "subset_or_definitely_not"
	KindEditDistance          Kind = "editdistance"
)

// Declaration is one (feature_name, kind) entry of the insn_feature_manager
// configuration. EditDistanceMax is only meaningful for KindEditDistance.
type Declaration struct {
	Name            string
	Kind            Kind
	EditDistanceMax int
}

// Extractor computes a feature's concrete value for an instruction scheme.
// Returning (nil, false) means the feature does not apply to this scheme
// (e.g. memory_usage on a register-only instruction); the abstract feature
// treats that as "no information", not as bottom.
type Extractor func(ctx iwho.Context, s *iwho.InsnScheme) (any, bool)

// AbstractFeature is the shared capability trait every feature lattice
// implements: emptiness/top tests, the subsumption and join operations, the
// one-step relaxation used by the generalizer, and concrete-value
// membership used when computing a feasible scheme set.
type AbstractFeature interface {
	// Kind identifies which lattice this value lives in.
	Kind() Kind
	// IsTop reports whether this value is the universal ⊤ element.
	IsTop() bool
	// IsBottom reports whether this value's concretization is empty.
	IsBottom() bool
	// Subsumes reports whether γ(other) ⊆ γ(self).
	Subsumes(other AbstractFeature) bool
	// Join computes the least upper bound of self and other, returning a
	// new value; self and other are not mutated.
	Join(other AbstractFeature) AbstractFeature
	// Relax returns every immediate predecessor of self one step closer
	// to ⊤. An empty result means self is already ⊤.
	Relax() []AbstractFeature
	// Accepts reports whether a concrete feature value (as produced by an
	// Extractor) is a member of γ(self). A nil value (the feature does
	// not apply) is always accepted.
	Accepts(v any) bool
	// Clone returns an independent copy.
	Clone() AbstractFeature
	// MarshalValue renders this value in the wire format of §6.1.
	MarshalValue() (any, error)
	String() string
}

// Universe is the ambient set of values a subset-like feature ranges over,
// shared by reference across every abstract feature value for that feature
// name (never copied; see the "Index construction" design note).
type Universe struct {
	elems []string
	index map[string]int
}

// NewUniverse builds a Universe from a (deduplicated) element list, fixing
// an iteration order used for deterministic relax ordering.
func NewUniverse(elems []string) *Universe {
	u := &Universe{index: make(map[string]int, len(elems))}
	for _, e := range elems {
		if _, ok := u.index[e]; ok {
			continue
		}
		u.index[e] = len(u.elems)
		u.elems = append(u.elems, e)
	}
	return u
}

// Len returns the number of distinct elements in the universe.
func (u *Universe) Len() int { return len(u.elems) }

// Elems returns the universe's elements in a fixed, deterministic order.
func (u *Universe) Elems() []string { return u.elems }

// Contains reports universe membership.
func (u *Universe) Contains(e string) bool {
	_, ok := u.index[e]
	return ok
}
