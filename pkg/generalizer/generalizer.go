// Package generalizer implements the expansion search (§4.6): starting from
// a seed abstract block, repeatedly apply the best one-step relaxation that
// keeps a freshly sampled batch mostly interesting, until none does.
package generalizer

import (
	"context"

	"github.com/cdl-saarland/AnICA/pkg/block"
	"github.com/cdl-saarland/AnICA/pkg/errs"
	"github.com/cdl-saarland/AnICA/pkg/interestingness"
	"github.com/cdl-saarland/AnICA/pkg/iwho"
	"github.com/cdl-saarland/AnICA/pkg/predictor"
	"github.com/cdl-saarland/AnICA/pkg/sampler"
	"github.com/cdl-saarland/AnICA/pkg/util"
	"github.com/cdl-saarland/AnICA/pkg/witness"
)

// Generalizer ties together the sampler, the predictor manager and the
// interestingness metric to drive one generalization run.
type Generalizer struct {
	Ctx           iwho.Context
	Predictors    *predictor.Manager
	PredictorKeys []string
	Interesting   interestingness.Config
	BatchSize     int
}

// Result is the generalizer's output: the coarsest abstract block reached
// and the witness trace recording how it got there.
type Result struct {
	AB    *block.AbstractBlock
	Trace *witness.Trace
}

// Run executes strat starting from ab0. For StrategyRandom it repeats the
// whole search N times with independently derived RNG streams and keeps the
// coarsest result, tie-broken by the shortest trace.
func (g *Generalizer) Run(ctx context.Context, ab0 *block.AbstractBlock, strat Strategy, rng *util.Rng) (*Result, error) {
	if strat.Kind != StrategyRandom {
		return g.runOnce(ctx, ab0, strat, rng)
	}
	n := strat.N
	if n < 1 {
		n = 1
	}
	var best *Result
	for attempt := 0; attempt < n; attempt++ {
		res, err := g.runOnce(ctx, ab0, strat, rng.Derive(uint64(attempt)))
		if err != nil {
			return nil, err
		}
		if best == nil || coarserOrShorter(res, best) {
			best = res
		}
	}
	return best, nil
}

func coarserOrShorter(a, b *Result) bool {
	if a.AB.Subsumes(b.AB) && !b.AB.Subsumes(a.AB) {
		return true
	}
	if b.AB.Subsumes(a.AB) && !a.AB.Subsumes(b.AB) {
		return false
	}
	pa, pb := preciseCoordinateCount(a.AB), preciseCoordinateCount(b.AB)
	if pa != pb {
		return pa < pb
	}
	return len(a.Trace.Entries) < len(b.Trace.Entries)
}

// preciseCoordinateCount counts non-⊤ coordinates as a cheap coarseness
// proxy: fewer non-⊤ feature/aliasing values means a larger γ.
func preciseCoordinateCount(ab *block.AbstractBlock) int {
	n := 0
	for i := 0; i < ab.Len(); i++ {
		for _, v := range ab.Insn(i) {
			if !v.IsTop() {
				n++
			}
		}
	}
	n += len(ab.Aliasing().Relax())
	return n
}

func (g *Generalizer) runOnce(ctx context.Context, ab0 *block.AbstractBlock, strat Strategy, rng *util.Rng) (*Result, error) {
	ab := ab0
	trace := &witness.Trace{}

	for {
		expansions := ab.Expansions()
		if len(expansions) == 0 {
			break
		}

		if strat.Kind == StrategyInteractive {
			decision, sample, applied, err := g.tryInteractive(ctx, ab, expansions, strat.Callback, rng)
			if err != nil {
				return nil, err
			}
			if decision.Terminate {
				break
			}
			if !applied {
				break
			}
			ab2 := ab.Apply(decision.Expansion)
			trace.Append(decision.Expansion, ab2, sample)
			ab = ab2
			continue
		}

		ordered := g.order(strat, ab, expansions, rng)
		accepted := false
		for _, cand := range ordered {
			ab2 := ab.Apply(cand)
			samp, err := sampler.Precompute(ab2, g.Ctx)
			if err != nil {
				continue
			}
			batch, sampleFailures := g.drawBatch(samp, rng)
			if sampleFailures*2 > g.BatchSize {
				// Mostly sampling errors: infeasible expansion, not
				// "not interesting" (§4.6).
				continue
			}
			if len(batch) == 0 {
				continue
			}
			mostly, err := g.evaluateBatch(ctx, batch)
			if err != nil {
				return nil, err
			}
			if !mostly {
				continue
			}
			trace.Append(cand, ab2, batch[0])
			ab = ab2
			accepted = true
			break
		}
		if !accepted {
			break
		}
	}

	return &Result{AB: ab, Trace: trace}, nil
}

func (g *Generalizer) order(strat Strategy, ab *block.AbstractBlock, expansions []block.Expansion, rng *util.Rng) []block.Expansion {
	switch strat.Kind {
	case StrategyMaxBenefit:
		scored := g.score(ab, expansions)
		res := make([]block.Expansion, len(scored))
		for i, s := range scored {
			res[i] = s.Expansion
		}
		return res
	default: // StrategyRandom
		shuffled := make([]block.Expansion, len(expansions))
		copy(shuffled, expansions)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		return shuffled
	}
}

// score estimates each expansion's benefit as the increase in the
// feasible-scheme-count sum across positions, a cheap proxy for |γ(ab')| −
// |γ(ab)|, then sorts descending.
func (g *Generalizer) score(ab *block.AbstractBlock, expansions []block.Expansion) []ScoredExpansion {
	base := feasibleSizeSum(ab)
	res := make([]ScoredExpansion, len(expansions))
	for i, e := range expansions {
		ab2 := ab.Apply(e)
		res[i] = ScoredExpansion{Expansion: e, Benefit: feasibleSizeSum(ab2) - base}
	}
	for i := 1; i < len(res); i++ {
		for j := i; j > 0 && res[j].Benefit > res[j-1].Benefit; j-- {
			res[j], res[j-1] = res[j-1], res[j]
		}
	}
	return res
}

func feasibleSizeSum(ab *block.AbstractBlock) int {
	n := 0
	for i := 0; i < ab.Len(); i++ {
		n += len(ab.FeasibleSchemes(i))
	}
	return n
}

func (g *Generalizer) tryInteractive(ctx context.Context, ab *block.AbstractBlock, expansions []block.Expansion, cb InteractiveCallback, rng *util.Rng) (InteractiveDecision, *iwho.BasicBlock, bool, error) {
	scored := g.score(ab, expansions)
	decision, err := cb(ab, scored)
	if err != nil {
		return InteractiveDecision{}, nil, false, err
	}
	if decision.Terminate {
		return decision, nil, false, nil
	}
	ab2 := ab.Apply(decision.Expansion)
	samp, err := sampler.Precompute(ab2, g.Ctx)
	if err != nil {
		return InteractiveDecision{}, nil, false, errs.WrapSamplingError(err, "generalizer: interactive choice is infeasible")
	}
	bb, err := samp.Sample(rng)
	if err != nil {
		return InteractiveDecision{}, nil, false, errs.WrapSamplingError(err, "generalizer: interactive choice is infeasible")
	}
	return decision, bb, true, nil
}

func (g *Generalizer) drawBatch(samp *sampler.Sampler, rng *util.Rng) ([]*iwho.BasicBlock, int) {
	var batch []*iwho.BasicBlock
	failures := 0
	for i := 0; i < g.BatchSize; i++ {
		bb, err := samp.Sample(rng)
		if err != nil {
			failures++
			continue
		}
		batch = append(batch, bb)
	}
	return batch, failures
}

func (g *Generalizer) evaluateBatch(ctx context.Context, batch []*iwho.BasicBlock) (bool, error) {
	results, err := g.EvaluateBatch(ctx, batch)
	if err != nil {
		return false, err
	}
	return interestingness.MostlyInteresting(g.Interesting, results), nil
}

// EvaluateBatch scores every block in batch independently against the
// interestingness metric (§4.5), fanning the whole batch out to the
// predictor manager in one call. Exported so the discovery loop (§4.8) can
// partition a freshly sampled batch into interesting and not-interesting
// blocks without duplicating the predictor-to-metric plumbing.
func (g *Generalizer) EvaluateBatch(ctx context.Context, batch []*iwho.BasicBlock) ([]interestingness.Result, error) {
	perPredictor, err := g.Predictors.EvaluateMany(ctx, g.PredictorKeys, batch)
	if err != nil {
		return nil, err
	}
	results := make([]interestingness.Result, len(batch))
	for i := range batch {
		var values []float64
		anyFailed := false
		for _, key := range g.PredictorKeys {
			r := perPredictor[key][i]
			if r.Ok() {
				values = append(values, r.TP)
			} else {
				anyFailed = true
			}
		}
		results[i] = interestingness.Evaluate(g.Interesting, values, anyFailed && len(values) > 0)
	}
	return results, nil
}
