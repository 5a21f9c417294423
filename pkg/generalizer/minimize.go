package generalizer

import (
	"context"

	"github.com/cdl-saarland/AnICA/pkg/block"
	"github.com/cdl-saarland/AnICA/pkg/feature"
	"github.com/cdl-saarland/AnICA/pkg/iwho"
	"github.com/cdl-saarland/AnICA/pkg/sampler"
	"github.com/cdl-saarland/AnICA/pkg/util"
)

// Minimize implements §4.7: greedily remove one instruction at a time from
// bb, keeping the removal if a freshly sampled perturbation of the
// remaining block stays mostly interesting. It terminates when no single
// deletion preserves interestingness.
func (g *Generalizer) Minimize(ctx context.Context, mgr *feature.Manager, bb *iwho.BasicBlock, rng *util.Rng) (*iwho.BasicBlock, error) {
	for {
		if len(bb.Insns) <= 1 {
			return bb, nil
		}
		next, ok, err := g.tryRemoveOne(ctx, mgr, bb, rng)
		if err != nil {
			return nil, err
		}
		if !ok {
			return bb, nil
		}
		bb = next
	}
}

func (g *Generalizer) tryRemoveOne(ctx context.Context, mgr *feature.Manager, bb *iwho.BasicBlock, rng *util.Rng) (*iwho.BasicBlock, bool, error) {
	for i := range bb.Insns {
		candidate := removeAt(bb, i)
		ab, err := block.FromConcrete(mgr, g.Ctx, candidate)
		if err != nil {
			continue
		}
		samp, err := sampler.Precompute(ab, g.Ctx)
		if err != nil {
			continue
		}
		batch, failures := g.drawBatch(samp, rng)
		if len(batch) == 0 || failures*2 > g.BatchSize {
			continue
		}
		mostly, err := g.evaluateBatch(ctx, batch)
		if err != nil {
			return nil, false, err
		}
		if mostly {
			return candidate, true, nil
		}
	}
	return nil, false, nil
}

func removeAt(bb *iwho.BasicBlock, i int) *iwho.BasicBlock {
	insns := make([]*iwho.InsnInstance, 0, len(bb.Insns)-1)
	insns = append(insns, bb.Insns[:i]...)
	insns = append(insns, bb.Insns[i+1:]...)
	return iwho.NewBasicBlock(insns)
}
