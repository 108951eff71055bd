package evo

import (
	"fmt"
	"sync/atomic"

	"bitga/internal/model"
	"bitga/internal/rng"
)

// Counters tracks reproduction events for reporting. Safe for concurrent use.
type Counters struct {
	mutations  atomic.Int64
	crossovers atomic.Int64
}

func (c *Counters) Mutations() int64 {
	return c.mutations.Load()
}

func (c *Counters) Crossovers() int64 {
	return c.crossovers.Load()
}

func (c *Counters) Reset() {
	c.mutations.Store(0)
	c.crossovers.Store(0)
}

// Reproducer produces offspring by single-point crossover followed by
// per-allele mutation.
type Reproducer struct {
	PMutation float64
	Counters  *Counters
}

// Mutate flips a with probability PMutation.
func (r Reproducer) Mutate(src rng.Source, a model.Allele) model.Allele {
	if r.PMutation <= 0 || !src.Bernoulli(r.PMutation) {
		return a
	}
	if r.Counters != nil {
		r.Counters.mutations.Add(1)
	}
	return a.Flip()
}

// Crossover draws a cut point in [1, L-1], splices the parents into the
// children and mutates every child allele. With L == 1 there is no cut point;
// each child is a mutated copy of its own parent and the returned cut is L.
func (r Reproducer) Crossover(src rng.Source, parent1, parent2, child1, child2 model.Chromosome) (int, error) {
	if src == nil {
		return 0, fmt.Errorf("random source is required")
	}
	length := len(parent1)
	if length == 0 || len(parent2) != length || len(child1) != length || len(child2) != length {
		return 0, fmt.Errorf("chromosome length mismatch: parents=%d/%d children=%d/%d",
			len(parent1), len(parent2), len(child1), len(child2))
	}

	jcross := length
	if length > 1 {
		jcross = src.IntRange(1, length-1)
		if r.Counters != nil {
			r.Counters.crossovers.Add(1)
		}
	}
	Splice(parent1, parent2, child1, child2, jcross)

	for j := 0; j < length; j++ {
		child1[j] = r.Mutate(src, child1[j])
		child2[j] = r.Mutate(src, child2[j])
	}
	return jcross, nil
}

// Splice writes parent1[:jcross]+parent2[jcross:] into child1 and
// parent2[:jcross]+parent1[jcross:] into child2. Children must not alias the
// parents.
func Splice(parent1, parent2, child1, child2 model.Chromosome, jcross int) {
	copy(child1[:jcross], parent1[:jcross])
	copy(child1[jcross:], parent2[jcross:])
	copy(child2[:jcross], parent2[:jcross])
	copy(child2[jcross:], parent1[jcross:])
}
