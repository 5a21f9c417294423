// Package predictor defines the Predictor Manager contract (§4.4): an
// external collaborator the core treats as a black box, plus a concurrent
// in-process implementation used by the bundled examples and tests.
package predictor

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/cdl-saarland/AnICA/pkg/errs"
	"github.com/cdl-saarland/AnICA/pkg/iwho"
)

// Result is one predictor's outcome for one block: either a positive TP
// value, or a failure (TP <= 0 / Err set).
type Result struct {
	TP  float64
	Err error
}

// Ok reports whether this result is a usable, positive throughput value.
func (r Result) Ok() bool { return r.Err == nil && r.TP > 0 }

// Predictor is a single black-box throughput predictor.
type Predictor interface {
	Key() string
	// Predict returns a throughput-per-iteration estimate for bb, or an
	// error. Implementations should respect ctx's deadline.
	Predict(ctx context.Context, bb *iwho.BasicBlock) (float64, error)
	// UnsupportedSchemeIDs optionally reports scheme IDs this predictor is
	// known not to handle (§4.4 get_insn_filter_files).
	UnsupportedSchemeIDs() []string
}

// Manager evaluates batches of blocks under a set of keyed predictors,
// fanning calls out across goroutines and awaiting the full
// positionally-aligned result set, per §5's single fan-out/fan-in boundary.
type Manager struct {
	mu         sync.RWMutex
	predictors map[string]Predictor
	timeout    time.Duration
}

// NewManager builds a Manager with the given per-call timeout. A timeout of
// zero means no deadline is imposed.
func NewManager(timeout time.Duration) *Manager {
	return &Manager{predictors: map[string]Predictor{}, timeout: timeout}
}

// Register adds a predictor to the manager's registry.
func (m *Manager) Register(p Predictor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictors[p.Key()] = p
}

// ResolveKeyPatterns expands a list of regular expressions into the set of
// registered predictor keys that match at least one of them, preserving
// pattern order and de-duplicating.
func (m *Manager) ResolveKeyPatterns(patterns []string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := map[string]bool{}
	var res []string
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, errs.WrapConfigError(err, "predictor: invalid key pattern %q", p)
		}
		for key := range m.predictors {
			if seen[key] || !re.MatchString(key) {
				continue
			}
			seen[key] = true
			res = append(res, key)
		}
	}
	return res, nil
}

// GetInsnFilterFiles returns the unsupported-scheme-ID list for a predictor,
// if it has one.
func (m *Manager) GetInsnFilterFiles(key string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.predictors[key]
	if !ok {
		return nil
	}
	return p.UnsupportedSchemeIDs()
}

// Evaluate runs predictorKey against every block in bbs, in parallel, and
// returns a positionally-aligned result slice. A per-call timeout (if
// configured) bounds each individual prediction; a timed-out or erroring
// prediction becomes a failure Result, never a returned error.
func (m *Manager) Evaluate(ctx context.Context, predictorKey string, bbs []*iwho.BasicBlock) ([]Result, error) {
	m.mu.RLock()
	p, ok := m.predictors[predictorKey]
	m.mu.RUnlock()
	if !ok {
		return nil, errs.PredictorError("predictor: unknown key %q", predictorKey)
	}

	results := make([]Result, len(bbs))
	var wg sync.WaitGroup
	for i, bb := range bbs {
		wg.Add(1)
		go func(i int, bb *iwho.BasicBlock) {
			defer wg.Done()
			results[i] = m.predictOne(ctx, p, bb)
		}(i, bb)
	}
	wg.Wait()
	return results, nil
}

// EvaluateMany runs every key in predictorKeys against bbs concurrently,
// returning a map of per-predictor result slices, each positionally aligned
// to bbs.
func (m *Manager) EvaluateMany(ctx context.Context, predictorKeys []string, bbs []*iwho.BasicBlock) (map[string][]Result, error) {
	out := make(map[string][]Result, len(predictorKeys))
	var mu sync.Mutex
	var wg sync.WaitGroup
	errCh := make(chan error, len(predictorKeys))
	for _, key := range predictorKeys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			res, err := m.Evaluate(ctx, key, bbs)
			if err != nil {
				errCh <- err
				return
			}
			mu.Lock()
			out[key] = res
			mu.Unlock()
		}(key)
	}
	wg.Wait()
	close(errCh)
	if err := <-errCh; err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Manager) predictOne(ctx context.Context, p Predictor, bb *iwho.BasicBlock) Result {
	callCtx := ctx
	var cancel context.CancelFunc
	if m.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	tp, err := p.Predict(callCtx, bb)
	if err != nil {
		return Result{Err: errs.WrapPredictorError(err, "predictor %q", p.Key())}
	}
	if tp <= 0 {
		return Result{Err: errs.PredictorError("predictor %q returned non-positive TP %v", p.Key(), tp)}
	}
	return Result{TP: tp}
}
