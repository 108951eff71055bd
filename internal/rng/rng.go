// Package rng supplies the random primitives the evolutionary core draws from.
package rng

import (
	"fmt"

	gorng "github.com/leesper/go_rng"
)

// Source is the random-number contract consumed by selection and reproduction.
type Source interface {
	// Float64 returns a uniform real in [0, 1).
	Float64() float64
	// Bernoulli returns true with probability p.
	Bernoulli(p float64) bool
	// IntRange returns a uniform integer in the inclusive range [low, high].
	IntRange(low, high int) int
}

// Generator is a seeded Source. Uniform and Bernoulli draws come from two
// independent streams derived from the same seed. Safe for concurrent use.
type Generator struct {
	uniform   *gorng.UniformGenerator
	bernoulli *gorng.BernoulliGenerator
}

func New(seed int64) *Generator {
	return &Generator{
		uniform:   gorng.NewUniformGenerator(seed),
		bernoulli: gorng.NewBernoulliGenerator(Derive(seed, 0x62)),
	}
}

func (g *Generator) Float64() float64 {
	return g.uniform.Float64()
}

// Bernoulli panics when p is outside [0, 1]; callers validate probabilities
// at configuration time.
func (g *Generator) Bernoulli(p float64) bool {
	return g.bernoulli.Bernoulli_P(p)
}

func (g *Generator) IntRange(low, high int) int {
	if high < low {
		panic(fmt.Sprintf("rng: invalid range [%d, %d]", low, high))
	}
	if high == low {
		return low
	}
	return low + int(g.uniform.Int64n(int64(high-low)+1))
}

// Derive mixes a seed with stream identifiers into a new seed using the
// splitmix64 finalizer, so nearby inputs give unrelated streams.
func Derive(seed int64, streams ...int64) int64 {
	x := uint64(seed)
	for _, s := range streams {
		x = mix64(x ^ mix64(uint64(s)+0x9e3779b97f4a7c15))
	}
	return int64(mix64(x))
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
