package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"bitga/internal/model"
	"bitga/internal/stats"
)

var errNotInitialized = errors.New("store not initialized")

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	generations map[string][]stats.GenerationSummary
	order       []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.generations = make(map[string][]stats.GenerationSummary)
	s.order = nil
	return nil
}

// AppendGeneration records the next generation of a run. Generations must
// arrive in order without gaps.
func (s *MemoryStore) AppendGeneration(_ context.Context, summary stats.GenerationSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	if summary.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	history := s.generations[summary.RunID]
	if want := len(history) + 1; summary.Generation != want {
		return fmt.Errorf("run %s: expected generation %d, got %d", summary.RunID, want, summary.Generation)
	}
	if len(history) == 0 {
		s.order = append(s.order, summary.RunID)
	}
	s.generations[summary.RunID] = append(history, cloneSummary(summary))
	return nil
}

func (s *MemoryStore) GetGenerations(_ context.Context, runID string) ([]stats.GenerationSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, false, errNotInitialized
	}
	history, ok := s.generations[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]stats.GenerationSummary, len(history))
	for i, summary := range history {
		copied[i] = cloneSummary(summary)
	}
	return copied, true, nil
}

func (s *MemoryStore) LatestGeneration(_ context.Context, runID string) (stats.GenerationSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return stats.GenerationSummary{}, false, errNotInitialized
	}
	history := s.generations[runID]
	if len(history) == 0 {
		return stats.GenerationSummary{}, false, nil
	}
	return cloneSummary(history[len(history)-1]), true, nil
}

// ListRuns returns run ids in the order their first generation arrived.
func (s *MemoryStore) ListRuns(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, errNotInitialized
	}
	return append([]string(nil), s.order...), nil
}

func (s *MemoryStore) DeleteRun(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	if _, ok := s.generations[runID]; !ok {
		return nil
	}
	delete(s.generations, runID)
	s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == runID })
	return nil
}

func cloneSummary(summary stats.GenerationSummary) stats.GenerationSummary {
	individuals := make([]model.Individual, len(summary.Individuals))
	for i, ind := range summary.Individuals {
		individuals[i] = model.Individual{
			Chromosome: append(model.Chromosome(nil), ind.Chromosome...),
			Phenotype:  ind.Phenotype,
			Fitness:    ind.Fitness,
		}
	}
	summary.Individuals = individuals
	return summary
}
