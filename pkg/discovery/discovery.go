// Package discovery implements the discovery loop (§4.8): repeated batch
// sampling of make_top(n) blocks, partitioning into interesting and
// not-interesting, and minimizing and generalizing every interesting sample
// that the subsumption cache (§4.9) hasn't already covered.
package discovery

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cdl-saarland/AnICA/pkg/block"
	"github.com/cdl-saarland/AnICA/pkg/config"
	"github.com/cdl-saarland/AnICA/pkg/errs"
	"github.com/cdl-saarland/AnICA/pkg/feature"
	"github.com/cdl-saarland/AnICA/pkg/generalizer"
	"github.com/cdl-saarland/AnICA/pkg/iwho"
	"github.com/cdl-saarland/AnICA/pkg/sampler"
	"github.com/cdl-saarland/AnICA/pkg/util"
	"github.com/cdl-saarland/AnICA/pkg/witness"
)

// Discovery is one accepted generalization result: the coarsest abstract
// block reached and the witness trace that explains how.
type Discovery struct {
	ID      string
	AB      *block.AbstractBlock
	Trace   *witness.Trace
	SeedAsm string
}

// Campaign drives one discovery loop against a single feature manager,
// iwho context and predictor set.
type Campaign struct {
	Cfg        *config.Config
	FeatureMgr *feature.Manager
	Ctx        iwho.Context
	Gen        *generalizer.Generalizer
	Strategy   generalizer.Strategy
	Cache      *SubsumptionCache

	// OutDir, when non-empty, is a campaign directory (as returned by
	// NewOutDir) that every accepted discovery is persisted into as it is
	// found, rather than only once the loop terminates.
	OutDir string

	Log *log.Logger

	discoveries []*Discovery
	nextID      int
}

// NewCampaign builds a Campaign ready to Run.
func NewCampaign(cfg *config.Config, mgr *feature.Manager, ctx iwho.Context, gen *generalizer.Generalizer, strat generalizer.Strategy) *Campaign {
	l := log.New()
	return &Campaign{
		Cfg:        cfg,
		FeatureMgr: mgr,
		Ctx:        ctx,
		Gen:        gen,
		Strategy:   strat,
		Cache:      NewSubsumptionCache(),
		Log:        l,
	}
}

// Discoveries returns every discovery accepted so far, in acceptance order.
func (c *Campaign) Discoveries() []*Discovery { return c.discoveries }

type batchStats struct {
	sampled     int
	interesting int
	accepted    int
}

// Run executes the discovery loop until one of the configured termination
// criteria is reached, or ctx is cancelled. Termination is always checked at
// a batch boundary, never mid-batch (§4.8), so a cancellation takes effect
// only once the in-flight batch has finished processing.
func (c *Campaign) Run(ctx context.Context, rng *util.Rng) error {
	term := c.Cfg.Discovery.Termination
	deadline := terminationDuration(term)
	start := time.Now()

	consecutiveStagnant := 0
	batchIdx := 0

	for {
		select {
		case <-ctx.Done():
			return errs.ErrUserInterrupt
		default:
		}

		if deadline > 0 && time.Since(start) >= deadline {
			c.Log.Info("discovery: time budget exhausted, stopping")
			return nil
		}
		if term.MaxDiscoveries > 0 && len(c.discoveries) >= term.MaxDiscoveries {
			c.Log.Info("discovery: max_discoveries reached, stopping")
			return nil
		}
		if term.MaxConsecutiveStagnantBatches > 0 && consecutiveStagnant >= term.MaxConsecutiveStagnantBatches {
			c.Log.Info("discovery: max_consecutive_stagnant_batches reached, stopping")
			return nil
		}

		stats, err := c.runBatch(ctx, rng)
		if err != nil {
			return err
		}
		c.Log.WithFields(log.Fields{
			"batch":       batchIdx,
			"sampled":     stats.sampled,
			"interesting": stats.interesting,
			"accepted":    stats.accepted,
		}).Info("discovery: batch complete")

		if stats.accepted == 0 {
			consecutiveStagnant++
		} else {
			consecutiveStagnant = 0
		}
		batchIdx++
	}
}

func terminationDuration(t config.Termination) time.Duration {
	d := time.Duration(t.Days)*24*time.Hour +
		time.Duration(t.Hours)*time.Hour +
		time.Duration(t.Minutes)*time.Minute +
		time.Duration(t.Seconds)*time.Second
	return d
}

// runBatch implements one pass of §4.8: draw discovery_batch_size make_top
// seeds at random lengths, partition interesting/not, and minimize and
// generalize every interesting sample not already covered by the cache.
func (c *Campaign) runBatch(ctx context.Context, rng *util.Rng) (batchStats, error) {
	var stats batchStats
	lengths := c.Cfg.Discovery.DiscoveryPossibleBlockLengths
	if len(lengths) == 0 {
		lengths = []int{1, 2, 3, 4}
	}
	batchSize := c.Cfg.Discovery.DiscoveryBatchSize
	if batchSize <= 0 {
		batchSize = 1
	}

	for i := 0; i < batchSize; i++ {
		n := util.Choice(rng, lengths)
		top := block.MakeTop(c.FeatureMgr, n)
		samp, err := sampler.Precompute(top, c.Ctx)
		if err != nil {
			// ⊤ is the coarsest possible block; if even it has no feasible
			// scheme at some position, the filtered scheme universe has no
			// block of this length at all, and the campaign can never make
			// progress. This is unrecoverable, not a per-draw skip.
			return stats, errs.WrapDiscoveryError(err, "discovery: no satisfiable top block of length %d", n)
		}
		bb, err := samp.Sample(rng)
		if err != nil {
			continue
		}
		stats.sampled++

		results, err := c.Gen.EvaluateBatch(ctx, []*iwho.BasicBlock{bb})
		if err != nil {
			return stats, err
		}
		if !results[0].Interesting {
			continue
		}
		stats.interesting++

		seed, err := block.FromConcrete(c.FeatureMgr, c.Ctx, bb)
		if err != nil {
			continue
		}
		if c.Cache.SubsumedByAny(seed) {
			continue
		}

		accepted, err := c.processCandidate(ctx, bb, rng)
		if err != nil {
			return stats, err
		}
		if accepted != nil {
			stats.accepted++
			c.discoveries = append(c.discoveries, accepted)
			c.Cache.Add(accepted.AB)
			if c.OutDir != "" {
				if err := PersistDiscovery(c.OutDir, accepted); err != nil {
					return stats, err
				}
			}
		}
	}
	return stats, nil
}

// processCandidate minimizes then generalizes one interesting seed,
// re-checking the subsumption cache against the generalized result before
// accepting it.
func (c *Campaign) processCandidate(ctx context.Context, bb *iwho.BasicBlock, rng *util.Rng) (*Discovery, error) {
	minimized, err := c.Gen.Minimize(ctx, c.FeatureMgr, bb, rng)
	if err != nil {
		return nil, err
	}
	seedAB, err := block.FromConcrete(c.FeatureMgr, c.Ctx, minimized)
	if err != nil {
		return nil, err
	}
	result, err := c.Gen.Run(ctx, seedAB, c.Strategy, rng)
	if err != nil {
		return nil, err
	}
	if c.Cache.SubsumedByAny(result.AB) {
		return nil, nil
	}
	id := fmt.Sprintf("d%05d", c.nextID)
	c.nextID++
	return &Discovery{ID: id, AB: result.AB, Trace: result.Trace, SeedAsm: minimized.Asm()}, nil
}
