package discovery

import (
	"sync"

	"github.com/cdl-saarland/AnICA/pkg/block"
)

// SubsumptionCache is the discovery loop's subsumption cache (§4.9): the set
// of abstract blocks already accepted as discoveries, bucketed by length so
// a point-check only ever compares blocks of matching arity.
type SubsumptionCache struct {
	mu    sync.Mutex
	byLen map[int][]*block.AbstractBlock
}

// NewSubsumptionCache returns an empty cache.
func NewSubsumptionCache() *SubsumptionCache {
	return &SubsumptionCache{byLen: map[int][]*block.AbstractBlock{}}
}

// SubsumedByAny reports whether some previously accepted abstract block
// already subsumes ab, i.e. γ(ab) ⊆ γ(existing). A positive result means ab
// is not a new discovery.
func (c *SubsumptionCache) SubsumedByAny(ab *block.AbstractBlock) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.byLen[ab.Len()] {
		if existing.Subsumes(ab) {
			return true
		}
	}
	return false
}

// Add records ab as an accepted discovery.
func (c *SubsumptionCache) Add(ab *block.AbstractBlock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byLen[ab.Len()] = append(c.byLen[ab.Len()], ab)
}

// Len returns the total number of cached blocks across all lengths.
func (c *SubsumptionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, bs := range c.byLen {
		n += len(bs)
	}
	return n
}
