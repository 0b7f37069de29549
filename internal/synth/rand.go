package synth

import "math/rand"

// Rand is the random source used for cosmetic noise: per-point forecast
// jitter, coin flips, and outage counts. Deterministic base quantities come
// from seed hashing instead, so tests can swap in a fixed source and get
// reproducible records.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// globalRand delegates to the package-level math/rand source, which is
// safe for concurrent use.
type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) Intn(n int) int   { return rand.Intn(n) }

// Global is the default noise source for production paths.
var Global Rand = globalRand{}

// Jitter returns a multiplicative noise factor in [0.95, 1.05).
func Jitter(rng Rand) float64 {
	return 0.95 + rng.Float64()*0.1
}
