// Package rng provides explicit, seedable randomness handles for BB84 rounds.
//
// A Source is never shared between rounds. Rounds that run in parallel each
// get their own Source via Derive, so that a fixed base seed reproduces every
// round regardless of scheduling.
package rng

import (
	"math/rand"
	"sort"

	"github.com/qkdsim/bb84/go/bb84/bitmap"
)

// A Source is a deterministic stream of random draws. It is not safe for
// concurrent use.
type Source struct {
	r    *rand.Rand
	seed int64
}

// New returns a Source seeded with seed.
func New(seed int64) *Source {
	return &Source{
		r:    rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Derive returns the Source for the index-th round of a run seeded with base.
// Distinct indices give statistically independent streams.
func Derive(base int64, index int) *Source {
	return New(int64(mix(uint64(base) ^ mix(uint64(index)+1))))
}

// Seed returns the seed s was constructed with.
func (s *Source) Seed() int64 {
	return s.seed
}

// Rand exposes the underlying generator, for collaborators which expect a
// *rand.Rand. Draws made through it advance s.
func (s *Source) Rand() *rand.Rand {
	return s.r
}

// Split draws a fresh seed from s and returns a new Source built from it. The
// child's draws never interleave with the parent's.
func (s *Source) Split() *Source {
	return New(int64(mix(s.r.Uint64())))
}

// Bits returns n independent uniform bits. It panics if n is negative.
func (s *Source) Bits(n int) bitmap.Dense {
	if n < 0 {
		panic("rng: negative bit count")
	}
	buf := make([]byte, bitmap.BytesFor(n))
	for i := 0; i < len(buf); i += 8 {
		v := s.r.Uint64()
		for j := i; j < i+8 && j < len(buf); j++ {
			buf[j] = byte(v)
			v >>= 8
		}
	}
	return bitmap.NewDense(buf, n)
}

// Float64 returns a uniform draw from [0, 1).
func (s *Source) Float64() float64 {
	return s.r.Float64()
}

// Sample draws k distinct indices uniformly from [0, m) without replacement
// and returns them in ascending order. It panics unless 0 <= k <= m.
func (s *Source) Sample(m, k int) []int {
	if k < 0 || k > m {
		panic("rng: sample size out of range")
	}
	// Partial Fisher-Yates over a sparse permutation, so that small samples of
	// large ranges stay cheap.
	swapped := make(map[int]int, k)
	at := func(i int) int {
		if v, ok := swapped[i]; ok {
			return v
		}
		return i
	}
	idx := make([]int, k)
	for i := 0; i < k; i++ {
		j := i + s.r.Intn(m-i)
		idx[i] = at(j)
		swapped[j] = at(i)
	}
	sort.Ints(idx)
	return idx
}

// mix is the splitmix64 finalizer.
func mix(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
