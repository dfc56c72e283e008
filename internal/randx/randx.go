// Package randx provides a small, fast, non-cryptographic PRNG meant to be
// embedded one-per-lock or one-per-worker so that no random state is ever
// shared across goroutines (design note (b) in spec.md §9: "implementations
// should ensure the PRNG state is not shared across workers").
//
// Grounded on gosimruntime/rand.go's fastrander, itself derived from the Go
// runtime's wyrand-style fastrand.
package randx

import "math/bits"

// Rand is a tiny wyrand-style generator. The zero value is usable but
// degenerate (seed with New for varied output).
type Rand struct {
	state uint64
}

// New returns a Rand seeded from seed. Callers typically seed from a
// worker id or lock address so distinct instances diverge immediately.
func New(seed uint64) *Rand {
	r := &Rand{state: seed}
	r.Uint64() // warm up so seed=0 doesn't produce a degenerate first value
	return r
}

// Uint64 returns the next pseudo-random value. Not safe for concurrent use;
// each Rand is owned by exactly one lock or worker.
func (r *Rand) Uint64() uint64 {
	r.state += 0xa0761d6478bd642f
	hi, lo := bits.Mul64(r.state, r.state^0xe7037ed1a0b428db)
	return hi ^ lo
}

// Uint32 returns the low 32 bits of the next value.
func (r *Rand) Uint32() uint32 {
	return uint32(r.Uint64())
}

// Intn returns a pseudo-random value in [0, n). n must be > 0.
func (r *Rand) Intn(n int) int {
	return int(uint64(r.Uint32()) * uint64(n) >> 32)
}
