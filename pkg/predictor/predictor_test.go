package predictor

import (
	"context"
	"testing"
	"time"

	"github.com/cdl-saarland/AnICA/pkg/errs"
	"github.com/cdl-saarland/AnICA/pkg/iwho"
)

// fakePredictor is an in-process stand-in for ExecPredictor, returning a
// fixed value or error instead of shelling out to a subprocess.
type fakePredictor struct {
	key    string
	tp     float64
	err    error
	unsupp []string
	sleep  time.Duration
}

func (p *fakePredictor) Key() string                    { return p.key }
func (p *fakePredictor) UnsupportedSchemeIDs() []string { return p.unsupp }

func (p *fakePredictor) Predict(ctx context.Context, bb *iwho.BasicBlock) (float64, error) {
	if p.sleep > 0 {
		select {
		case <-time.After(p.sleep):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if p.err != nil {
		return 0, p.err
	}
	return p.tp, nil
}

func oneInsnBlock() *iwho.BasicBlock {
	return iwho.NewBasicBlock([]*iwho.InsnInstance{{Scheme: &iwho.InsnScheme{ID: "NOP"}}})
}

func TestEvaluateReturnsPositionallyAlignedResults(t *testing.T) {
	m := NewManager(0)
	m.Register(&fakePredictor{key: "llvm-mca", tp: 3.5})

	bbs := []*iwho.BasicBlock{oneInsnBlock(), oneInsnBlock(), oneInsnBlock()}
	results, err := m.Evaluate(context.Background(), "llvm-mca", bbs)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Evaluate() returned %d results, want 3", len(results))
	}
	for i, r := range results {
		if !r.Ok() || r.TP != 3.5 {
			t.Errorf("results[%d] = %+v, want Ok with TP=3.5", i, r)
		}
	}
}

func TestEvaluateUnknownKeyErrors(t *testing.T) {
	m := NewManager(0)
	if _, err := m.Evaluate(context.Background(), "nonexistent", nil); err == nil {
		t.Errorf("Evaluate(unknown key) did not error")
	} else if !errs.Is(err, errs.KindPredictor) {
		t.Errorf("Evaluate(unknown key) error kind = %v, want predictor", err)
	}
}

func TestEvaluateNonPositiveTPBecomesFailureResult(t *testing.T) {
	m := NewManager(0)
	m.Register(&fakePredictor{key: "broken", tp: 0})

	results, err := m.Evaluate(context.Background(), "broken", []*iwho.BasicBlock{oneInsnBlock()})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if results[0].Ok() {
		t.Errorf("results[0].Ok() = true for a non-positive TP, want false")
	}
	if results[0].Err == nil {
		t.Errorf("results[0].Err = nil for a non-positive TP, want set")
	}
}

func TestEvaluateTimeoutBecomesFailureResult(t *testing.T) {
	m := NewManager(5 * time.Millisecond)
	m.Register(&fakePredictor{key: "slow", tp: 1, sleep: 50 * time.Millisecond})

	results, err := m.Evaluate(context.Background(), "slow", []*iwho.BasicBlock{oneInsnBlock()})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if results[0].Ok() {
		t.Errorf("results[0].Ok() = true for a predictor that exceeded the timeout, want false")
	}
}

func TestEvaluateManyAggregatesByKey(t *testing.T) {
	m := NewManager(0)
	m.Register(&fakePredictor{key: "a", tp: 1})
	m.Register(&fakePredictor{key: "b", tp: 2})

	out, err := m.EvaluateMany(context.Background(), []string{"a", "b"}, []*iwho.BasicBlock{oneInsnBlock()})
	if err != nil {
		t.Fatalf("EvaluateMany: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("EvaluateMany() = %d keys, want 2", len(out))
	}
	if out["a"][0].TP != 1 || out["b"][0].TP != 2 {
		t.Errorf("EvaluateMany() = %+v, want a=1 b=2", out)
	}
}

func TestEvaluateManyPropagatesUnknownKeyError(t *testing.T) {
	m := NewManager(0)
	m.Register(&fakePredictor{key: "a", tp: 1})
	if _, err := m.EvaluateMany(context.Background(), []string{"a", "nonexistent"}, []*iwho.BasicBlock{oneInsnBlock()}); err == nil {
		t.Errorf("EvaluateMany with an unknown key did not error")
	}
}

func TestResolveKeyPatternsMatchesAndDedups(t *testing.T) {
	m := NewManager(0)
	m.Register(&fakePredictor{key: "llvm-mca"})
	m.Register(&fakePredictor{key: "uica"})
	m.Register(&fakePredictor{key: "iaca"})

	got, err := m.ResolveKeyPatterns([]string{"^llvm-", "^u.*", "^llvm-"})
	if err != nil {
		t.Fatalf("ResolveKeyPatterns: %v", err)
	}
	want := map[string]bool{"llvm-mca": true, "uica": true}
	if len(got) != len(want) {
		t.Fatalf("ResolveKeyPatterns() = %v, want 2 distinct keys", got)
	}
	for _, k := range got {
		if !want[k] {
			t.Errorf("ResolveKeyPatterns() included unexpected key %q", k)
		}
	}
}

func TestResolveKeyPatternsInvalidRegexErrors(t *testing.T) {
	m := NewManager(0)
	if _, err := m.ResolveKeyPatterns([]string{"("}); err == nil {
		t.Errorf("ResolveKeyPatterns with an invalid pattern did not error")
	}
}

func TestGetInsnFilterFiles(t *testing.T) {
	m := NewManager(0)
	m.Register(&fakePredictor{key: "llvm-mca", unsupp: []string{"VFMADD"}})

	if got := m.GetInsnFilterFiles("llvm-mca"); len(got) != 1 || got[0] != "VFMADD" {
		t.Errorf("GetInsnFilterFiles(llvm-mca) = %v, want [VFMADD]", got)
	}
	if got := m.GetInsnFilterFiles("nonexistent"); got != nil {
		t.Errorf("GetInsnFilterFiles(nonexistent) = %v, want nil", got)
	}
}
