package infection

import "math/rand/v2"

// RNG bundles a seeded PCG source with the convenience wrapper around it.
// Distribution samplers need the raw source, uniform draws the wrapper.
// One RNG belongs to exactly one goroutine at a time; the simulator hands
// each worker its own.
type RNG struct {
	Src rand.Source
	*rand.Rand
}

// NewRNG returns a deterministic generator for the given seed.
func NewRNG(seed uint64) *RNG {
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &RNG{Src: src, Rand: rand.New(src)}
}
