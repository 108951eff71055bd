package evo

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sourcegraph/conc/pool"

	"bitga/internal/model"
	"bitga/internal/rng"
)

type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateEvolving
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateEvolving:
		return "evolving"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Snapshot is an immutable view of the current population after evaluation.
type Snapshot struct {
	Generation int
	Population *model.Population
	Mutations  int64
	Crossovers int64
}

// Observer receives a snapshot after every generation, including the
// initial one. A returned error stops the run.
type Observer interface {
	ObserveGeneration(ctx context.Context, snap Snapshot) error
}

type ObserverFunc func(ctx context.Context, snap Snapshot) error

func (f ObserverFunc) ObserveGeneration(ctx context.Context, snap Snapshot) error {
	return f(ctx, snap)
}

// MultiObserver notifies each observer in order and stops at the first error.
type MultiObserver []Observer

func (m MultiObserver) ObserveGeneration(ctx context.Context, snap Snapshot) error {
	for _, o := range m {
		if o == nil {
			continue
		}
		if err := o.ObserveGeneration(ctx, snap); err != nil {
			return err
		}
	}
	return nil
}

type LoopConfig struct {
	PopulationSize   int
	ChromosomeLength int
	PMutation        float64
	Seed             int64
	// Workers > 1 produces offspring pairs concurrently. Each pair then draws
	// from its own stream derived from Seed, generation and pair index.
	Workers  int
	Fitness  FitnessFunc
	Selector Selector
	// Source overrides the seeded generator. Only valid with Workers <= 1.
	Source   rng.Source
	Observer Observer
}

type RunResult struct {
	Final            Snapshot
	BestByGeneration []int
	MinByGeneration  []int
	MeanByGeneration []float64
}

// Loop runs a generational GA over two population buffers that swap roles
// every generation.
type Loop struct {
	cfg        LoopConfig
	src        rng.Source
	evaluator  *Evaluator
	reproducer Reproducer
	counters   *Counters

	state      State
	generation int
	current    *model.Population
	next       *model.Population

	best []int
	min  []int
	mean []float64
}

func NewLoop(cfg LoopConfig) (*Loop, error) {
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("%w: population size must be > 0", ErrInvalidConfig)
	}
	if cfg.PopulationSize%2 != 0 {
		return nil, fmt.Errorf("%w: population size must be even, got %d", ErrInvalidConfig, cfg.PopulationSize)
	}
	if cfg.ChromosomeLength <= 0 {
		return nil, fmt.Errorf("%w: chromosome length must be > 0", ErrInvalidConfig)
	}
	if cfg.ChromosomeLength > model.MaxChromosomeLength {
		return nil, fmt.Errorf("%w: chromosome length must be <= %d, got %d", ErrInvalidConfig, model.MaxChromosomeLength, cfg.ChromosomeLength)
	}
	if math.IsNaN(cfg.PMutation) || cfg.PMutation < 0 || cfg.PMutation > 1 {
		return nil, fmt.Errorf("%w: mutation probability must be in [0, 1], got %v", ErrInvalidConfig, cfg.PMutation)
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("%w: workers must be >= 0", ErrInvalidConfig)
	}
	if cfg.Source != nil && cfg.Workers > 1 {
		return nil, fmt.Errorf("%w: an explicit random source cannot be shared by %d workers", ErrInvalidConfig, cfg.Workers)
	}
	if cfg.PopulationSize > model.MaxPopulationSize {
		return nil, fmt.Errorf("%w: %d individuals exceeds limit %d", ErrAllocation, cfg.PopulationSize, model.MaxPopulationSize)
	}
	if cfg.Selector == nil {
		cfg.Selector = RouletteSelector{}
	}

	current, err := model.NewPopulation(cfg.PopulationSize, cfg.ChromosomeLength)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAllocation, err)
	}
	next, err := model.NewPopulation(cfg.PopulationSize, cfg.ChromosomeLength)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAllocation, err)
	}

	src := cfg.Source
	if src == nil {
		src = rng.New(cfg.Seed)
	}
	counters := &Counters{}

	return &Loop{
		cfg:        cfg,
		src:        src,
		evaluator:  NewEvaluator(cfg.Fitness),
		reproducer: Reproducer{PMutation: cfg.PMutation, Counters: counters},
		counters:   counters,
		current:    current,
		next:       next,
	}, nil
}

func (l *Loop) State() State {
	return l.state
}

func (l *Loop) Generation() int {
	return l.generation
}

// Snapshot copies the current population together with the counters.
func (l *Loop) Snapshot() Snapshot {
	return Snapshot{
		Generation: l.generation,
		Population: l.current.Clone(),
		Mutations:  l.counters.Mutations(),
		Crossovers: l.counters.Crossovers(),
	}
}

// Initialize fills the current population with random alleles, evaluates it
// and reports it as generation 1.
func (l *Loop) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i := range l.current.Individuals {
		chrom := l.current.Individuals[i].Chromosome
		for j := range chrom {
			chrom[j] = model.AlleleOf(l.src.Bernoulli(0.5))
		}
	}
	if err := l.evaluator.Evaluate(l.current); err != nil {
		return err
	}

	l.generation = 1
	l.counters.Reset()
	l.best, l.min, l.mean = l.best[:0], l.min[:0], l.mean[:0]
	l.state = StateInitialized
	return l.emit(ctx)
}

// Step replaces the current population with one generation of offspring.
func (l *Loop) Step(ctx context.Context) error {
	if l.state != StateInitialized && l.state != StateEvolving {
		return fmt.Errorf("%w: state is %s", ErrNotInitialized, l.state)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var err error
	if l.cfg.Workers > 1 {
		err = l.reproduceParallel(ctx)
	} else {
		err = l.reproduceSequential(ctx)
	}
	if err != nil {
		return err
	}

	if err := l.evaluator.Evaluate(l.next); err != nil {
		return err
	}
	l.current, l.next = l.next, l.current
	l.generation++
	l.state = StateEvolving
	return l.emit(ctx)
}

// Run initializes the loop and evolves it until maxGenerations generations,
// counting the initial population as the first, have been reported.
func (l *Loop) Run(ctx context.Context, maxGenerations int) (RunResult, error) {
	if maxGenerations < 1 {
		return RunResult{}, fmt.Errorf("%w: generations must be > 0", ErrInvalidConfig)
	}
	if err := l.Initialize(ctx); err != nil {
		return RunResult{}, err
	}
	for gen := 1; gen < maxGenerations; gen++ {
		if err := l.Step(ctx); err != nil {
			return RunResult{}, err
		}
	}
	l.state = StateTerminated

	return RunResult{
		Final:            l.Snapshot(),
		BestByGeneration: append([]int(nil), l.best...),
		MinByGeneration:  append([]int(nil), l.min...),
		MeanByGeneration: append([]float64(nil), l.mean...),
	}, nil
}

func (l *Loop) reproduceSequential(ctx context.Context) error {
	n := len(l.current.Individuals)
	for j := 0; j < n; j += 2 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.producePair(l.src, j); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) reproduceParallel(ctx context.Context) error {
	n := len(l.current.Individuals)
	generation := int64(l.generation)
	p := pool.New().WithMaxGoroutines(l.cfg.Workers).WithContext(ctx).WithCancelOnError()
	for j := 0; j < n; j += 2 {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			src := rng.New(rng.Derive(l.cfg.Seed, generation, int64(j/2)))
			return l.producePair(src, j)
		})
	}
	if err := p.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return ctxErr
		}
		return err
	}
	return nil
}

// producePair reads only the current buffer and writes only slots j and j+1
// of the next buffer.
func (l *Loop) producePair(src rng.Source, j int) error {
	mate1, err := l.cfg.Selector.Select(src, l.current)
	if err != nil {
		return fmt.Errorf("select first parent for slot %d: %w", j, err)
	}
	mate2, err := l.cfg.Selector.Select(src, l.current)
	if err != nil {
		return fmt.Errorf("select second parent for slot %d: %w", j, err)
	}
	_, err = l.reproducer.Crossover(
		src,
		l.current.Individuals[mate1].Chromosome,
		l.current.Individuals[mate2].Chromosome,
		l.next.Individuals[j].Chromosome,
		l.next.Individuals[j+1].Chromosome,
	)
	if err != nil {
		return fmt.Errorf("crossover for slot %d: %w", j, err)
	}
	return nil
}

func (l *Loop) emit(ctx context.Context) error {
	best, minFitness, mean := fitnessRange(l.current)
	l.best = append(l.best, best)
	l.min = append(l.min, minFitness)
	l.mean = append(l.mean, mean)

	if l.cfg.Observer == nil {
		return nil
	}
	return l.cfg.Observer.ObserveGeneration(ctx, l.Snapshot())
}

func fitnessRange(pop *model.Population) (best, minFitness int, mean float64) {
	if len(pop.Individuals) == 0 {
		return 0, 0, 0
	}
	best = pop.Individuals[0].Fitness
	minFitness = best
	for _, ind := range pop.Individuals[1:] {
		if ind.Fitness > best {
			best = ind.Fitness
		}
		if ind.Fitness < minFitness {
			minFitness = ind.Fitness
		}
	}
	return best, minFitness, float64(pop.TotalFitness) / float64(len(pop.Individuals))
}
