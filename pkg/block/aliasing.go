// Package block implements the abstract-block lattice: abstract instructions
// built from per-feature lattice values (package feature), the abstract
// aliasing relation between their operands, and the expansion search the
// generalizer drives over both.
package block

import (
	"sort"

	"github.com/cdl-saarland/AnICA/pkg/iwho"
)

// AliasValue is the three-valued abstract aliasing element.
type AliasValue int8

const (
	// Top is the universal element: no constraint.
	AliasTop AliasValue = iota
	AliasMust
	AliasMustNot
)

// OperandKey names one aliasable operand slot of an abstract block: the
// instruction position it belongs to, its index among that position's
// aliasable (register/memory) operands, and enough of its identity
// (kind, name) to render the §6.1 wire format. The shape of an abstract
// block's operand keys is fixed when the block is built and never changes
// as features and aliasing are relaxed.
type OperandKey struct {
	Pos     int
	OpIndex int
	Kind    iwho.OperandKind
	Name    string
}

// less implements the pair ordering of §6.1: position first, operand name
// second.
func (k OperandKey) less(o OperandKey) bool {
	if k.Pos != o.Pos {
		return k.Pos < o.Pos
	}
	return k.Name < o.Name
}

// Aliasing is the abstract aliasing relation over a fixed operand-key
// universe. Top entries are never stored; only must/must-not pairs occupy
// the map, which keeps Join and Relax proportional to the number of
// constraints actually present rather than to n².
type Aliasing struct {
	keys  []OperandKey
	vals  map[pairIdx]AliasValue
	isBot bool
}

type pairIdx struct{ a, b int }

// canonPair orders two key indices the way §6.1 orders a serialized pair:
// by (position, name) of the underlying keys.
func canonPair(keys []OperandKey, i, j int) pairIdx {
	if keys[j].less(keys[i]) {
		i, j = j, i
	}
	return pairIdx{i, j}
}

// NewTopAliasing builds the ⊤ aliasing relation over the given operand-key
// universe: every pair implicitly ⊤.
func NewTopAliasing(keys []OperandKey) *Aliasing {
	return &Aliasing{keys: keys, vals: map[pairIdx]AliasValue{}}
}

// Keys returns the fixed operand-key universe.
func (a *Aliasing) Keys() []OperandKey { return a.keys }

// IsBot reports the unsatisfiable-bottom flag.
func (a *Aliasing) IsBot() bool { return a.isBot }

// Get returns the current value for the pair (i, j), defaulting to ⊤ for
// pairs never explicitly constrained.
func (a *Aliasing) Get(i, j int) AliasValue {
	v, ok := a.vals[canonPair(a.keys, i, j)]
	if !ok {
		return AliasTop
	}
	return v
}

// Set records an aliasing constraint for (i, j); setting ⊤ removes any
// stored entry, keeping the "omitted pairs are implicitly ⊤" invariant.
func (a *Aliasing) Set(i, j int, v AliasValue) {
	key := canonPair(a.keys, i, j)
	if v == AliasTop {
		delete(a.vals, key)
		return
	}
	a.vals[key] = v
}

// Clone returns an independent copy.
func (a *Aliasing) Clone() *Aliasing {
	vals := make(map[pairIdx]AliasValue, len(a.vals))
	for k, v := range a.vals {
		vals[k] = v
	}
	return &Aliasing{keys: a.keys, vals: vals, isBot: a.isBot}
}

// Subsumes reports whether γ(other) ⊆ γ(self): for every pair, self is ⊤ or
// equal to other's value at that pair.
func (a *Aliasing) Subsumes(other *Aliasing) bool {
	if a.isBot {
		return other.isBot
	}
	for k, v := range a.vals {
		if v != other.get(k) {
			return false
		}
	}
	return true
}

func (a *Aliasing) get(k pairIdx) AliasValue {
	v, ok := a.vals[k]
	if !ok {
		return AliasTop
	}
	return v
}

// Join computes the pointwise least upper bound: equal values are kept,
// disagreements relax to ⊤.
func (a *Aliasing) Join(other *Aliasing) *Aliasing {
	if a.isBot {
		return other.Clone()
	}
	if other.isBot {
		return a.Clone()
	}
	res := NewTopAliasing(a.keys)
	for k, v := range a.vals {
		if ov, ok := other.vals[k]; ok && ov == v {
			res.vals[k] = v
		}
	}
	return res
}

// AliasExpansion is a single relax step on one aliasing pair: the
// constrained pair moves to ⊤.
type AliasExpansion struct {
	I, J int // indices into Keys()
}

// Relax returns one candidate per currently-constrained pair, each lifting
// exactly that pair to ⊤.
func (a *Aliasing) Relax() []AliasExpansion {
	res := make([]AliasExpansion, 0, len(a.vals))
	for k := range a.vals {
		res = append(res, AliasExpansion{I: k.a, J: k.b})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].I != res[j].I {
			return res[i].I < res[j].I
		}
		return res[i].J < res[j].J
	})
	return res
}

// Apply returns a copy with the given pair relaxed to ⊤.
func (a *Aliasing) Apply(e AliasExpansion) *Aliasing {
	c := a.Clone()
	delete(c.vals, pairIdx{e.I, e.J})
	return c
}

// BuildOperandKeys enumerates the aliasable (register/memory) operands of a
// concrete instruction instance in IndexableOperands order, fixing the
// operand-key shape used for the lifetime of an abstract block built from
// that instruction.
func BuildOperandKeys(pos int, insn *iwho.InsnInstance) []OperandKey {
	var res []OperandKey
	for _, iop := range insn.IndexableOperands() {
		res = append(res, OperandKey{Pos: pos, OpIndex: iop.Index, Kind: iop.Scheme.Kind, Name: iop.Scheme.Name})
	}
	return res
}
