package bitga

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"bitga/internal/evo"
	"bitga/internal/metrics"
	"bitga/internal/model"
	"bitga/internal/stats"
	"bitga/internal/storage"
)

const (
	DefaultPopulationSize   = 40
	DefaultChromosomeLength = 5
	DefaultGenerations      = 30
	DefaultPMutation        = 0.0001
)

type Options struct {
	StoreKind string
	Logger    *slog.Logger
	// Out receives per-generation reports. Nil discards them.
	Out    io.Writer
	Report string
	Color  bool
	// Metrics enables the prometheus recorder.
	Metrics bool
}

type Client struct {
	store    storage.Store
	logger   *slog.Logger
	out      io.Writer
	report   string
	color    bool
	recorder *metrics.Recorder
}

type RunRequest struct {
	RunID            string
	PopulationSize   int
	ChromosomeLength int
	Generations      int
	// PMutation of zero selects DefaultPMutation unless NoMutation is set.
	PMutation  float64
	NoMutation bool
	Seed       int64
	Workers    int
	Fitness    evo.FitnessFunc
}

type RunSummary struct {
	RunID            string
	Generations      int
	BestByGeneration []int
	MinByGeneration  []int
	MeanByGeneration []float64
	FinalBestFitness int
	FinalBest        model.Individual
	Mutations        int64
	Crossovers       int64
	Final            *model.Population
}

type RunItem struct {
	RunID            string
	Generations      int
	PopulationSize   int
	FinalBestFitness int
	FinalMeanFitness float64
	Mutations        int64
}

type FitnessHistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type DecodeResult struct {
	Chromosome string
	Phenotype  int
	Fitness    int
}

func New(opts Options) (*Client, error) {
	store, err := storage.NewStore(opts.StoreKind)
	if err != nil {
		return nil, err
	}
	if err := store.Init(context.Background()); err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	report := opts.Report
	if opts.Out == nil {
		report = stats.ReportNone
	}
	if _, err := stats.NewReporter(report, out, opts.Color); err != nil {
		return nil, err
	}

	c := &Client{
		store:  store,
		logger: logger,
		out:    out,
		report: report,
		color:  opts.Color,
	}
	if opts.Metrics {
		c.recorder = metrics.NewRecorder()
	}
	return c, nil
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.PopulationSize == 0 {
		req.PopulationSize = DefaultPopulationSize
	}
	if req.ChromosomeLength == 0 {
		req.ChromosomeLength = DefaultChromosomeLength
	}
	if req.Generations == 0 {
		req.Generations = DefaultGenerations
	}
	if req.NoMutation {
		req.PMutation = 0
	} else if req.PMutation == 0 {
		req.PMutation = DefaultPMutation
	}
	if req.Generations < 0 {
		return RunSummary{}, fmt.Errorf("%w: generations must be > 0", evo.ErrInvalidConfig)
	}
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	if _, ok, err := c.store.GetGenerations(ctx, runID); err != nil {
		return RunSummary{}, err
	} else if ok {
		return RunSummary{}, fmt.Errorf("run already exists: %s", runID)
	}

	reporter, err := stats.NewReporter(c.report, c.out, c.color)
	if err != nil {
		return RunSummary{}, err
	}
	logger := c.logger.With("run_id", runID)

	observers := evo.MultiObserver{
		evo.ObserverFunc(func(ctx context.Context, snap evo.Snapshot) error {
			summary, err := stats.Summarize(runID, snap)
			if err != nil {
				return err
			}
			if err := c.store.AppendGeneration(ctx, summary); err != nil {
				return fmt.Errorf("store generation %d: %w", snap.Generation, err)
			}
			if err := reporter.Report(summary); err != nil {
				return fmt.Errorf("report generation %d: %w", snap.Generation, err)
			}
			logger.Debug("generation evaluated",
				"generation", summary.Generation,
				"best_fitness", summary.MaxFitness,
				"mean_fitness", summary.MeanFitness,
				"mutations", summary.Mutations,
			)
			return nil
		}),
	}
	if c.recorder != nil {
		observers = append(observers, c.recorder.Observer(runID))
	}

	loop, err := evo.NewLoop(evo.LoopConfig{
		PopulationSize:   req.PopulationSize,
		ChromosomeLength: req.ChromosomeLength,
		PMutation:        req.PMutation,
		Seed:             req.Seed,
		Workers:          req.Workers,
		Fitness:          req.Fitness,
		Observer:         observers,
	})
	if err != nil {
		return RunSummary{}, err
	}

	logger.Info("run started",
		"population_size", req.PopulationSize,
		"chromosome_length", req.ChromosomeLength,
		"generations", req.Generations,
		"mutation_probability", req.PMutation,
		"seed", req.Seed,
		"workers", req.Workers,
	)
	result, err := loop.Run(ctx, req.Generations)
	if err != nil {
		logger.Error("run failed", "generation", loop.Generation(), "error", err)
		// Partial history would list the run as complete and block its id.
		if delErr := c.store.DeleteRun(context.WithoutCancel(ctx), runID); delErr != nil {
			logger.Warn("discard partial run", "error", delErr)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return RunSummary{}, err
		}
		return RunSummary{}, fmt.Errorf("run %s: %w", runID, err)
	}

	latest, ok, err := c.store.LatestGeneration(ctx, runID)
	if err != nil {
		return RunSummary{}, err
	}
	if !ok {
		return RunSummary{}, fmt.Errorf("run %s recorded no generations", runID)
	}
	best, _ := latest.BestIndividual()

	summary := RunSummary{
		RunID:            runID,
		Generations:      result.Final.Generation,
		BestByGeneration: result.BestByGeneration,
		MinByGeneration:  result.MinByGeneration,
		MeanByGeneration: result.MeanByGeneration,
		FinalBestFitness: latest.MaxFitness,
		FinalBest:        best,
		Mutations:        result.Final.Mutations,
		Crossovers:       result.Final.Crossovers,
		Final:            result.Final.Population,
	}
	logger.Info("run finished",
		"generations", summary.Generations,
		"best_fitness", summary.FinalBestFitness,
		"best_chromosome", best.Chromosome.String(),
		"mutations", summary.Mutations,
		"crossovers", summary.Crossovers,
	)
	return summary, nil
}

func (c *Client) Runs(ctx context.Context) ([]RunItem, error) {
	runIDs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]RunItem, 0, len(runIDs))
	for _, runID := range runIDs {
		latest, ok, err := c.store.LatestGeneration(ctx, runID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		items = append(items, RunItem{
			RunID:            runID,
			Generations:      latest.Generation,
			PopulationSize:   len(latest.Individuals),
			FinalBestFitness: latest.MaxFitness,
			FinalMeanFitness: latest.MeanFitness,
			Mutations:        latest.Mutations,
		})
	}
	return items, nil
}

// FitnessHistory returns the recorded generations of one run, or of the
// most recently started run when Latest is set. Limit keeps the last N.
func (c *Client) FitnessHistory(ctx context.Context, req FitnessHistoryRequest) ([]stats.GenerationSummary, error) {
	runID := req.RunID
	if req.Latest {
		runs, err := c.store.ListRuns(ctx)
		if err != nil {
			return nil, err
		}
		if len(runs) == 0 {
			return nil, errors.New("no runs recorded")
		}
		runID = runs[len(runs)-1]
	}
	if runID == "" {
		return nil, errors.New("run id is required")
	}
	history, ok, err := c.store.GetGenerations(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[len(history)-req.Limit:]
	}
	return history, nil
}

// WriteTrajectory renders the per-generation trajectory of a recorded run.
func (c *Client) WriteTrajectory(ctx context.Context, w io.Writer, runID string) error {
	history, err := c.FitnessHistory(ctx, FitnessHistoryRequest{RunID: runID})
	if err != nil {
		return err
	}
	return stats.WriteTrajectory(w, history, c.color)
}

// WriteMetrics dumps the prometheus text exposition of every run so far.
func (c *Client) WriteMetrics(w io.Writer) error {
	if c.recorder == nil {
		return errors.New("metrics are disabled")
	}
	return c.recorder.WriteText(w)
}

// Decode evaluates a single bit string with the default fitness function.
func Decode(bits string) (DecodeResult, error) {
	chrom, err := model.ParseChromosome(bits)
	if err != nil {
		return DecodeResult{}, err
	}
	if chrom.Len() > model.MaxChromosomeLength {
		return DecodeResult{}, fmt.Errorf("chromosome length must be <= %d, got %d", model.MaxChromosomeLength, chrom.Len())
	}
	phenotype := evo.Decode(chrom)
	return DecodeResult{
		Chromosome: chrom.String(),
		Phenotype:  phenotype,
		Fitness:    evo.Square(phenotype),
	}, nil
}
