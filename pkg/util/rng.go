package util

import "math/rand/v2"

// Rng is an explicit, seedable random source threaded through the discovery
// loop, the generalizer and the sampler.  Using an explicit source (rather
// than the global generator in math/rand/v2) is what makes a campaign
// reproducible: the same seed and the same sequence of draws always produce
// the same concrete basic blocks.
type Rng struct {
	src *rand.Rand
}

// NewRng constructs a new Rng seeded deterministically from a single 64-bit
// seed.
func NewRng(seed uint64) *Rng {
	return &Rng{rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))}
}

// Derive creates a new, independent Rng seeded from this one.  This is used
// to give each generalization attempt (or each predictor evaluation) its own
// reproducible stream without the streams interfering with each other.
func (r *Rng) Derive(salt uint64) *Rng {
	return NewRng(r.src.Uint64() ^ salt)
}

// IntN returns a pseudo-random number in [0, n).
func (r *Rng) IntN(n int) int {
	return r.src.IntN(n)
}

// UintN returns a pseudo-random number in [0, n).
func (r *Rng) UintN(n uint) uint {
	return r.src.UintN(n)
}

// Float64 returns a pseudo-random number in [0.0, 1.0).
func (r *Rng) Float64() float64 {
	return r.src.Float64()
}

// Bool returns a pseudo-random boolean.
func (r *Rng) Bool() bool {
	return r.src.IntN(2) == 0
}

// Shuffle randomizes the order of n elements using the swap function, in the
// manner of rand.Shuffle.
func (r *Rng) Shuffle(n int, swap func(i, j int)) {
	r.src.Shuffle(n, swap)
}

// Choice returns a uniformly random element of a non-empty slice.
func Choice[T any](r *Rng, items []T) T {
	return items[r.IntN(len(items))]
}
