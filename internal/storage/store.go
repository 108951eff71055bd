package storage

import (
	"context"

	"bitga/internal/stats"
)

// Store keeps run history for the lifetime of the process.
type Store interface {
	Init(ctx context.Context) error
	AppendGeneration(ctx context.Context, summary stats.GenerationSummary) error
	GetGenerations(ctx context.Context, runID string) ([]stats.GenerationSummary, bool, error)
	LatestGeneration(ctx context.Context, runID string) (stats.GenerationSummary, bool, error)
	ListRuns(ctx context.Context) ([]string, error)
	DeleteRun(ctx context.Context, runID string) error
}
