package synth

import "math/rand"

// fixedRand returns a seeded source so tests produce the same records on
// every run.
func fixedRand() Rand {
	return rand.New(rand.NewSource(1))
}

// stillRand is a degenerate source that suppresses cosmetic noise: coin
// flips never fire and jitter sits at the bottom of its band.
type stillRand struct{}

func (stillRand) Float64() float64 { return 0 }
func (stillRand) Intn(n int) int   { return 0 }
