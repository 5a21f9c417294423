package generalizer

import "github.com/cdl-saarland/AnICA/pkg/block"

// StrategyKind is a closed variant over the generalization strategies §4.6
// and §9 call for modeling as a tagged union rather than a string lookup.
type StrategyKind uint8

const (
	StrategyRandom StrategyKind = iota
	StrategyMaxBenefit
	StrategyInteractive
)

// ScoredExpansion pairs a candidate expansion with its estimated benefit,
// the input an interactive or max_benefit strategy reasons about.
type ScoredExpansion struct {
	Expansion block.Expansion
	Benefit   int
}

// InteractiveDecision is what an interactive callback returns: either a
// chosen expansion, or Terminate, which yields the current ab as the final
// result without raising an error.
type InteractiveDecision struct {
	Expansion block.Expansion
	Terminate bool
}

// InteractiveCallback is the fixed callback signature for the interactive
// strategy (§9 "Generalization strategy dispatch").
type InteractiveCallback func(ab *block.AbstractBlock, candidates []ScoredExpansion) (InteractiveDecision, error)

// Strategy selects a generalization strategy and its parameters.
type Strategy struct {
	Kind     StrategyKind
	N        int // StrategyRandom: number of independent attempts
	Callback InteractiveCallback
}

// Random builds the random(N) strategy.
func Random(n int) Strategy { return Strategy{Kind: StrategyRandom, N: n} }

// MaxBenefit builds the max_benefit strategy.
func MaxBenefit() Strategy { return Strategy{Kind: StrategyMaxBenefit} }

// Interactive builds the interactive strategy with the given callback.
func Interactive(cb InteractiveCallback) Strategy {
	return Strategy{Kind: StrategyInteractive, Callback: cb}
}
