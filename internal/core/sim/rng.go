package sim

import "math/rand/v2"

// pcgStream decorrelates the PCG increment from the seed.
const pcgStream = 0x9e3779b97f4a7c15

// rng is the only source of randomness a simulator uses.
type rng struct {
	src *rand.PCG
	r   *rand.Rand
}

func newRNG(seed int64) *rng {
	src := rand.NewPCG(uint64(seed), uint64(seed)^pcgStream)
	return &rng{src: src, r: rand.New(src)}
}

func (g *rng) NormFloat64() float64 { return g.r.NormFloat64() }

func (g *rng) state() ([]byte, error) { return g.src.MarshalBinary() }

func (g *rng) restore(data []byte) error { return g.src.UnmarshalBinary(data) }
