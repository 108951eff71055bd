package evo

import (
	"fmt"

	"bitga/internal/model"
	"bitga/internal/rng"
)

// Selector chooses the index of a parent in the current population.
type Selector interface {
	Name() string
	Select(src rng.Source, pop *model.Population) (int, error)
}

// RouletteSelector samples individuals with probability proportional to
// fitness. A population whose total fitness is zero is sampled uniformly.
type RouletteSelector struct{}

func (RouletteSelector) Name() string {
	return "roulette"
}

func (RouletteSelector) Select(src rng.Source, pop *model.Population) (int, error) {
	if src == nil {
		return 0, fmt.Errorf("random source is required")
	}
	if pop == nil || len(pop.Individuals) == 0 {
		return 0, fmt.Errorf("population is empty")
	}
	last := len(pop.Individuals) - 1
	if pop.TotalFitness <= 0 {
		return src.IntRange(0, last), nil
	}

	target := src.Float64() * float64(pop.TotalFitness)
	partial := 0.0
	for i, ind := range pop.Individuals {
		if ind.Fitness <= 0 {
			continue
		}
		partial += float64(ind.Fitness)
		if partial >= target {
			return i, nil
		}
	}
	// Rounding can leave partial just short of target.
	return last, nil
}
