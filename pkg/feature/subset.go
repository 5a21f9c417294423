package feature

import (
	"fmt"
	"sort"
	"strings"
)

// Subset is the "subset" feature lattice: an abstract value is a subset S of
// an ambient Universe, with γ(S) = {x : x ∈ S}. Bottom is the empty set; top
// is the full universe (reached through real joins/relaxes, not pinned to a
// sentinel, since a plain JSON array already serializes it faithfully).
type Subset struct {
	universe *Universe
	set      map[string]bool
}

// NewSubset builds a Subset containing exactly the given elements.
func NewSubset(universe *Universe, elems ...string) *Subset {
	set := make(map[string]bool, len(elems))
	for _, e := range elems {
		set[e] = true
	}
	return &Subset{universe: universe, set: set}
}

// BottomSubset returns the empty subset.
func BottomSubset(universe *Universe) *Subset { return NewSubset(universe) }

func (s *Subset) Kind() Kind     { return KindSubset }
func (s *Subset) IsBottom() bool { return len(s.set) == 0 }
func (s *Subset) IsTop() bool    { return s.universe != nil && len(s.set) == s.universe.Len() }

func (s *Subset) Subsumes(other AbstractFeature) bool {
	o, ok := other.(*Subset)
	if !ok {
		return false
	}
	for e := range o.set {
		if !s.set[e] {
			return false
		}
	}
	return true
}

func (s *Subset) Join(other AbstractFeature) AbstractFeature {
	o, ok := other.(*Subset)
	if !ok {
		return s.Clone()
	}
	res := make(map[string]bool, len(s.set)+len(o.set))
	for e := range s.set {
		res[e] = true
	}
	for e := range o.set {
		res[e] = true
	}
	return &Subset{universe: s.universe, set: res}
}

// Relax returns one candidate per universe element not yet in the set, each
// adding exactly that element. This gives the generalizer a fine-grained
// choice of which scheme to fold in next rather than jumping straight to ⊤.
func (s *Subset) Relax() []AbstractFeature {
	if s.universe == nil {
		return nil
	}
	var res []AbstractFeature
	for _, e := range s.universe.Elems() {
		if s.set[e] {
			continue
		}
		next := make(map[string]bool, len(s.set)+1)
		for k := range s.set {
			next[k] = true
		}
		next[e] = true
		res = append(res, &Subset{universe: s.universe, set: next})
	}
	return res
}

func (s *Subset) Accepts(v any) bool {
	if v == nil {
		return true
	}
	sv, ok := v.(string)
	return ok && s.set[sv]
}

func (s *Subset) Clone() AbstractFeature {
	set := make(map[string]bool, len(s.set))
	for k := range s.set {
		set[k] = true
	}
	return &Subset{universe: s.universe, set: set}
}

func (s *Subset) Elems() []string {
	res := make([]string, 0, len(s.set))
	for e := range s.set {
		res = append(res, e)
	}
	sort.Strings(res)
	return res
}

func (s *Subset) MarshalValue() (any, error) {
	return s.Elems(), nil
}

func (s *Subset) String() string {
	return fmt.Sprintf("{%s}", strings.Join(s.Elems(), ","))
}
