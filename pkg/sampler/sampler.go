// Package sampler draws concrete basic blocks from the concretization of an
// abstract block (§4.3), resolving scheme choice, aliasing-consistent
// operand assignment, and immediate materialization.
package sampler

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/cdl-saarland/AnICA/pkg/block"
	"github.com/cdl-saarland/AnICA/pkg/errs"
	"github.com/cdl-saarland/AnICA/pkg/iwho"
	"github.com/cdl-saarland/AnICA/pkg/util"
)

// maxColoringRetries bounds how many fresh-randomness attempts Sample makes
// at resolving the must-not-alias graph before reporting a SamplingError.
const maxColoringRetries = 8

// Sampler holds the acceleration structures precomputed from an abstract
// block: the feasible scheme set at every position. It is safe to share by
// reference across goroutines; it is never mutated after Precompute.
type Sampler struct {
	ab         *block.AbstractBlock
	ctx        iwho.Context
	schemesPos [][]*iwho.InsnScheme
}

// Precompute materializes a Sampler for ab. Returns a SamplingError if any
// position's feature constraints are already unsatisfiable (γ = ∅).
func Precompute(ab *block.AbstractBlock, ctx iwho.Context) (*Sampler, error) {
	schemesPos := make([][]*iwho.InsnScheme, ab.Len())
	for i := 0; i < ab.Len(); i++ {
		s := ab.FeasibleSchemes(i)
		if len(s) == 0 {
			return nil, errs.SamplingError("sampler: position %d has no feasible scheme", i)
		}
		schemesPos[i] = s
	}
	return &Sampler{ab: ab, ctx: ctx, schemesPos: schemesPos}, nil
}

// PrecomputeForSchemes builds a Sampler that draws scheme position i from
// schemesPos[i] rather than from ab's feasible-scheme sets, while still
// using ab's aliasing relation (typically block.MakeTop's empty relation).
// "anica check-predictors" uses this to sample many concrete instances of
// one fixed scheme at a time.
func PrecomputeForSchemes(ab *block.AbstractBlock, ctx iwho.Context, schemesPos [][]*iwho.InsnScheme) *Sampler {
	return &Sampler{ab: ab, ctx: ctx, schemesPos: schemesPos}
}

// Sample draws one concrete basic block, advancing rng as it goes. Sample is
// deterministic given the same rng state and the same Sampler.
func (s *Sampler) Sample(rng *util.Rng) (*iwho.BasicBlock, error) {
	var lastErr error
	for attempt := 0; attempt < maxColoringRetries; attempt++ {
		schemes := s.selectSchemes(rng)
		bb, err := s.resolveAndMaterialize(rng, schemes)
		if err == nil {
			return bb, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// selectSchemes is phase 1: draw one scheme per position.
func (s *Sampler) selectSchemes(rng *util.Rng) []*iwho.InsnScheme {
	res := make([]*iwho.InsnScheme, len(s.schemesPos))
	for i, candidates := range s.schemesPos {
		res[i] = util.Choice(rng, candidates)
	}
	return res
}

type node struct {
	pos, idx int
}

// resolveAndMaterialize runs phases 2 and 3 for one draw of concrete
// schemes.
func (s *Sampler) resolveAndMaterialize(rng *util.Rng, schemes []*iwho.InsnScheme) (*iwho.BasicBlock, error) {
	// Build the realized operand-node set: every aliasable operand of every
	// drawn scheme.
	var nodes []node
	nodeID := map[node]int{}
	for i, sch := range schemes {
		idx := 0
		for _, op := range sch.AllOperands() {
			if op.Kind != iwho.Register && op.Kind != iwho.Memory {
				continue
			}
			nodeID[node{i, idx}] = len(nodes)
			nodes = append(nodes, node{i, idx})
			idx++
		}
	}

	uf := newUnionFind(len(nodes))
	forbidden := newConflictGraph(len(nodes))

	keys := s.ab.Aliasing().Keys()
	// Map each aliasing key to the realized node at the same (pos, opIndex)
	// coordinate, if the drawn scheme at that position has that many
	// operands.
	keyToNode := make(map[int]int, len(keys))
	for i, k := range keys {
		if n, ok := nodeID[node{k.Pos, k.OpIndex}]; ok {
			keyToNode[i] = n
		}
	}

	// Must-alias pairs are unioned first and in full before any must-not-alias
	// pair is recorded, so that every conflict edge is keyed by each node's
	// final class representative rather than by whichever raw node happened
	// to be named in the pair. Recording edges against raw node indices would
	// let a later union move a node's representative away from an index the
	// conflict graph already used, silently dropping that node's conflicts.
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			ni, iok := keyToNode[i]
			nj, jok := keyToNode[j]
			if !iok || !jok {
				continue
			}
			if s.ab.Aliasing().Get(i, j) == block.AliasMust {
				uf.union(ni, nj)
			}
		}
	}
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			ni, iok := keyToNode[i]
			nj, jok := keyToNode[j]
			if !iok || !jok {
				continue
			}
			if s.ab.Aliasing().Get(i, j) == block.AliasMustNot {
				forbidden.connect(uf.find(ni), uf.find(nj))
			}
		}
	}

	classes := map[int][]node{}
	for i, n := range nodes {
		root := uf.find(i)
		classes[root] = append(classes[root], n)
	}

	assignment, err := resolveClasses(rng, schemes, classes, uf, forbidden)
	if err != nil {
		return nil, err
	}

	return s.materialize(rng, schemes, nodeID, uf, assignment)
}

// resolvedOperand is the concrete choice made for one equivalence class.
type resolvedOperand struct {
	kind  iwho.OperandKind
	reg   string
	base  string
	index string
}

func resolveClasses(rng *util.Rng, schemes []*iwho.InsnScheme, classes map[int][]node, uf *unionFind, forbidden *conflictGraph) (map[int]resolvedOperand, error) {
	// Process classes in a deterministic-but-shuffled order so that retries
	// (via fresh randomness in the caller) can escape a bad greedy order.
	var roots []int
	for r := range classes {
		roots = append(roots, r)
	}
	rng.Shuffle(len(roots), func(i, j int) { roots[i], roots[j] = roots[j], roots[i] })

	assigned := map[int]resolvedOperand{}
	for _, root := range roots {
		members := classes[root]
		candidates, err := intersectedCandidates(schemes, members)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return nil, errs.SamplingError("sampler: must-alias class spanning %d operand(s) has no value satisfying every member's own operand kind/class", len(members))
		}
		rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })

		var chosen resolvedOperand
		found := false
		for _, cand := range candidates {
			if violatesForbidden(uf, root, cand, assigned, forbidden) {
				continue
			}
			chosen = cand
			found = true
			break
		}
		if !found {
			return nil, errs.SamplingError("sampler: could not resolve must-alias operand class under must-not-alias constraints")
		}
		assigned[root] = chosen
	}
	return assigned, nil
}

// intersectedCandidates returns the concrete values that are valid for every
// member of a must-alias class, not merely its first member. A class can
// span operands of different iwho.OperandScheme (e.g. a register relaxed to
// a different register class by generalization, or a register aliased with
// a memory operand), and a value is only safe to assign the whole class if
// every member's own scheme actually admits it.
func intersectedCandidates(schemes []*iwho.InsnScheme, members []node) ([]resolvedOperand, error) {
	var result []resolvedOperand
	for i, n := range members {
		opScheme, ok := operandSchemeOf(schemes, n)
		if !ok {
			return nil, errs.SamplingError("sampler: unresolvable operand class")
		}
		cands := candidateValues(opScheme)
		if len(cands) == 0 {
			return nil, errs.SamplingError("sampler: operand class for %q has no candidate values", opScheme.Name)
		}
		if i == 0 {
			result = cands
			continue
		}
		allowed := make(map[resolvedOperand]bool, len(cands))
		for _, c := range cands {
			allowed[c] = true
		}
		var next []resolvedOperand
		for _, c := range result {
			if allowed[c] {
				next = append(next, c)
			}
		}
		result = next
	}
	return result, nil
}

func violatesForbidden(uf *unionFind, root int, cand resolvedOperand, assigned map[int]resolvedOperand, forbidden *conflictGraph) bool {
	for otherRoot, otherVal := range assigned {
		if !forbidden.connected(root, otherRoot) {
			continue
		}
		if sameStorage(cand, otherVal) {
			return true
		}
	}
	return false
}

// conflictGraph is the must-not-alias relation over realized operand nodes,
// represented as one bitset.BitSet per node so membership tests during
// resolveClasses run in constant time regardless of how many pairs the
// abstract aliasing relation constrains.
type conflictGraph struct {
	adj []*bitset.BitSet
}

func newConflictGraph(n int) *conflictGraph {
	adj := make([]*bitset.BitSet, n)
	for i := range adj {
		adj[i] = bitset.New(uint(n))
	}
	return &conflictGraph{adj: adj}
}

func (g *conflictGraph) connect(i, j int) {
	g.adj[i].Set(uint(j))
	g.adj[j].Set(uint(i))
}

func (g *conflictGraph) connected(i, j int) bool {
	return g.adj[i].Test(uint(j))
}

func sameStorage(a, b resolvedOperand) bool {
	if a.kind != b.kind {
		return false
	}
	if a.kind == iwho.Register {
		return a.reg == b.reg
	}
	return a.base == b.base && a.index == b.index
}

func operandSchemeOf(schemes []*iwho.InsnScheme, n node) (iwho.OperandScheme, bool) {
	idx := 0
	for _, op := range schemes[n.pos].AllOperands() {
		if op.Kind != iwho.Register && op.Kind != iwho.Memory {
			continue
		}
		if idx == n.idx {
			return op, true
		}
		idx++
	}
	return iwho.OperandScheme{}, false
}

func candidateValues(op iwho.OperandScheme) []resolvedOperand {
	switch op.Kind {
	case iwho.Register:
		if op.RegisterClass == nil {
			return nil
		}
		res := make([]resolvedOperand, 0, len(op.RegisterClass.Members))
		for _, m := range op.RegisterClass.Members {
			res = append(res, resolvedOperand{kind: iwho.Register, reg: m})
		}
		return res
	case iwho.Memory:
		if op.BaseClass == nil {
			return nil
		}
		var res []resolvedOperand
		indexOpts := []string{""}
		if op.IndexClass != nil {
			indexOpts = append(indexOpts, op.IndexClass.Members...)
		}
		for _, base := range op.BaseClass.Members {
			for _, idx := range indexOpts {
				res = append(res, resolvedOperand{kind: iwho.Memory, base: base, index: idx})
			}
		}
		return res
	default:
		return nil
	}
}

func (s *Sampler) materialize(rng *util.Rng, schemes []*iwho.InsnScheme, nodeID map[node]int, uf *unionFind, assignment map[int]resolvedOperand) (*iwho.BasicBlock, error) {
	insns := make([]*iwho.InsnInstance, len(schemes))
	for i, sch := range schemes {
		operands := map[string]iwho.OperandInstance{}
		opIdx := 0
		for _, op := range sch.AllOperands() {
			switch op.Kind {
			case iwho.Register, iwho.Memory:
				id, ok := nodeID[node{i, opIdx}]
				if !ok {
					return nil, errs.SamplingError("sampler: internal: missing node for %s[%d]", sch.ID, opIdx)
				}
				resolved := assignment[uf.find(id)]
				operands[op.Name] = toOperandInstance(op, resolved)
				opIdx++
			case iwho.Immediate:
				operands[op.Name] = iwho.OperandInstance{Scheme: op, Immediate: sampleImmediate(rng, op.Width)}
			}
		}
		insns[i] = &iwho.InsnInstance{Scheme: sch, Operands: operands}
	}
	return iwho.NewBasicBlock(insns), nil
}

func sampleImmediate(rng *util.Rng, width int) int64 {
	if width <= 0 {
		width = 32
	}
	bound := int64(1) << uint(min(width, 62))
	return int64(rng.UintN(uint(bound))) - bound/2
}

func toOperandInstance(op iwho.OperandScheme, r resolvedOperand) iwho.OperandInstance {
	switch op.Kind {
	case iwho.Register:
		return iwho.OperandInstance{Scheme: op, Register: r.reg}
	case iwho.Memory:
		return iwho.OperandInstance{Scheme: op, Base: r.base, Index: r.index}
	default:
		return iwho.OperandInstance{Scheme: op}
	}
}
