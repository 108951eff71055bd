package stats

import (
	"fmt"

	mstats "github.com/montanaflynn/stats"

	"bitga/internal/evo"
	"bitga/internal/model"
)

// GenerationSummary is the reportable view of one evaluated generation.
type GenerationSummary struct {
	RunID         string             `json:"run_id"`
	Generation    int                `json:"generation"`
	Individuals   []model.Individual `json:"individuals"`
	TotalFitness  int                `json:"total_fitness"`
	MaxFitness    int                `json:"max_fitness"`
	MinFitness    int                `json:"min_fitness"`
	MeanFitness   float64            `json:"mean_fitness"`
	StdDevFitness float64            `json:"stddev_fitness"`
	Mutations     int64              `json:"mutations"`
	Crossovers    int64              `json:"crossovers"`
}

// BestIndividual returns the first individual holding MaxFitness.
func (s GenerationSummary) BestIndividual() (model.Individual, bool) {
	for _, ind := range s.Individuals {
		if ind.Fitness == s.MaxFitness {
			return ind, true
		}
	}
	return model.Individual{}, false
}

func Summarize(runID string, snap evo.Snapshot) (GenerationSummary, error) {
	if snap.Population == nil || len(snap.Population.Individuals) == 0 {
		return GenerationSummary{}, fmt.Errorf("generation %d has no individuals", snap.Generation)
	}

	individuals := snap.Population.Clone().Individuals
	fitness := make(mstats.Float64Data, len(individuals))
	for i, ind := range individuals {
		fitness[i] = float64(ind.Fitness)
	}

	maxFitness, err := mstats.Max(fitness)
	if err != nil {
		return GenerationSummary{}, fmt.Errorf("max fitness: %w", err)
	}
	minFitness, err := mstats.Min(fitness)
	if err != nil {
		return GenerationSummary{}, fmt.Errorf("min fitness: %w", err)
	}
	mean, err := mstats.Mean(fitness)
	if err != nil {
		return GenerationSummary{}, fmt.Errorf("mean fitness: %w", err)
	}
	stddev, err := mstats.StandardDeviation(fitness)
	if err != nil {
		return GenerationSummary{}, fmt.Errorf("fitness stddev: %w", err)
	}

	return GenerationSummary{
		RunID:         runID,
		Generation:    snap.Generation,
		Individuals:   individuals,
		TotalFitness:  snap.Population.TotalFitness,
		MaxFitness:    int(maxFitness),
		MinFitness:    int(minFitness),
		MeanFitness:   mean,
		StdDevFitness: stddev,
		Mutations:     snap.Mutations,
		Crossovers:    snap.Crossovers,
	}, nil
}
