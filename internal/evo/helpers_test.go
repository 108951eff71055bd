package evo

import (
	"testing"

	"bitga/internal/model"
)

// scriptedSource replays fixed draws and fails the test when a script runs dry.
type scriptedSource struct {
	t      *testing.T
	floats []float64
	bools  []bool
	ints   []int
}

func (s *scriptedSource) Float64() float64 {
	s.t.Helper()
	if len(s.floats) == 0 {
		s.t.Fatal("scripted source: no float draws left")
	}
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func (s *scriptedSource) Bernoulli(p float64) bool {
	s.t.Helper()
	if len(s.bools) == 0 {
		s.t.Fatalf("scripted source: no bernoulli draws left (p=%v)", p)
	}
	v := s.bools[0]
	s.bools = s.bools[1:]
	return v
}

func (s *scriptedSource) IntRange(low, high int) int {
	s.t.Helper()
	if len(s.ints) == 0 {
		s.t.Fatalf("scripted source: no int draws left for [%d, %d]", low, high)
	}
	v := s.ints[0]
	s.ints = s.ints[1:]
	if v < low || v > high {
		s.t.Fatalf("scripted int %d outside [%d, %d]", v, low, high)
	}
	return v
}

func (s *scriptedSource) exhausted() bool {
	return len(s.floats) == 0 && len(s.bools) == 0 && len(s.ints) == 0
}

func mustChromosome(t *testing.T, bits string) model.Chromosome {
	t.Helper()
	c, err := model.ParseChromosome(bits)
	if err != nil {
		t.Fatalf("parse chromosome %q: %v", bits, err)
	}
	return c
}

func populationOf(t *testing.T, fitness []int) *model.Population {
	t.Helper()
	pop, err := model.NewPopulation(len(fitness), 3)
	if err != nil {
		t.Fatalf("new population: %v", err)
	}
	total := 0
	for i, f := range fitness {
		pop.Individuals[i].Fitness = f
		total += f
	}
	pop.TotalFitness = total
	return pop
}

func bitsOf(pop *model.Population) []string {
	out := make([]string, 0, len(pop.Individuals))
	for _, ind := range pop.Individuals {
		out = append(out, ind.Chromosome.String())
	}
	return out
}
