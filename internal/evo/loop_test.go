package evo

import (
	"context"
	"errors"
	"testing"

	"gonum.org/v1/gonum/stat"

	"bitga/internal/model"
)

func TestNewLoopValidatesConfig(t *testing.T) {
	base := LoopConfig{PopulationSize: 4, ChromosomeLength: 3, PMutation: 0.01}
	cases := []struct {
		name   string
		mutate func(*LoopConfig)
		want   error
	}{
		{"zero population", func(c *LoopConfig) { c.PopulationSize = 0 }, ErrInvalidConfig},
		{"negative population", func(c *LoopConfig) { c.PopulationSize = -4 }, ErrInvalidConfig},
		{"odd population", func(c *LoopConfig) { c.PopulationSize = 5 }, ErrInvalidConfig},
		{"zero length", func(c *LoopConfig) { c.ChromosomeLength = 0 }, ErrInvalidConfig},
		{"long chromosome", func(c *LoopConfig) { c.ChromosomeLength = model.MaxChromosomeLength + 1 }, ErrInvalidConfig},
		{"negative mutation", func(c *LoopConfig) { c.PMutation = -0.1 }, ErrInvalidConfig},
		{"mutation above one", func(c *LoopConfig) { c.PMutation = 1.5 }, ErrInvalidConfig},
		{"negative workers", func(c *LoopConfig) { c.Workers = -1 }, ErrInvalidConfig},
		{"shared source", func(c *LoopConfig) { c.Workers = 2; c.Source = &scriptedSource{t: t} }, ErrInvalidConfig},
		{"huge population", func(c *LoopConfig) { c.PopulationSize = model.MaxPopulationSize + 2 }, ErrAllocation},
	}
	for _, tc := range cases {
		cfg := base
		tc.mutate(&cfg)
		_, err := NewLoop(cfg)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	loop, err := NewLoop(base)
	if err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if loop.State() != StateUninitialized {
		t.Fatalf("unexpected initial state: %s", loop.State())
	}
}

func TestLoopStepBeforeInitialize(t *testing.T) {
	loop, err := NewLoop(LoopConfig{PopulationSize: 2, ChromosomeLength: 2})
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	if err := loop.Step(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

// Golden generation: N=4, L=3, no mutation, scripted draws.
//
//	initial: 011(9) 101(25) 110(36) 001(1), total 71
//	pair 0: draws 0.0 -> #0, 0.5 -> #2, cut 1 => 010, 111
//	pair 1: draws 0.99 -> #3, 0.2 -> #1, cut 2 => 001, 101
func TestLoopGoldenGeneration(t *testing.T) {
	src := &scriptedSource{
		t: t,
		bools: []bool{
			false, true, true,
			true, false, true,
			true, true, false,
			false, false, true,
		},
		floats: []float64{0.0, 0.5, 0.99, 0.2},
		ints:   []int{1, 2},
	}
	var snaps []Snapshot
	loop, err := NewLoop(LoopConfig{
		PopulationSize:   4,
		ChromosomeLength: 3,
		PMutation:        0,
		Source:           src,
		Observer: ObserverFunc(func(_ context.Context, snap Snapshot) error {
			snaps = append(snaps, snap)
			return nil
		}),
	})
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}

	result, err := loop.Run(context.Background(), 2)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !src.exhausted() {
		t.Fatal("expected every scripted draw to be consumed")
	}

	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	assertPopulation(t, snaps[0].Population, []string{"011", "101", "110", "001"}, []int{3, 5, 6, 1}, 71)
	assertPopulation(t, snaps[1].Population, []string{"010", "111", "001", "101"}, []int{2, 7, 1, 5}, 79)

	if snaps[0].Generation != 1 || snaps[1].Generation != 2 {
		t.Fatalf("unexpected generations: %d %d", snaps[0].Generation, snaps[1].Generation)
	}
	if result.Final.Crossovers != 2 || result.Final.Mutations != 0 {
		t.Fatalf("unexpected counters: crossovers=%d mutations=%d", result.Final.Crossovers, result.Final.Mutations)
	}
	if got := result.BestByGeneration; len(got) != 2 || got[0] != 36 || got[1] != 49 {
		t.Fatalf("unexpected best history: %v", got)
	}
	if got := result.MinByGeneration; len(got) != 2 || got[0] != 1 || got[1] != 1 {
		t.Fatalf("unexpected min history: %v", got)
	}
	if got := result.MeanByGeneration; len(got) != 2 || got[0] != 71.0/4 || got[1] != 79.0/4 {
		t.Fatalf("unexpected mean history: %v", got)
	}
	if loop.State() != StateTerminated {
		t.Fatalf("unexpected final state: %s", loop.State())
	}
}

func assertPopulation(t *testing.T, pop *model.Population, bits []string, phenotypes []int, total int) {
	t.Helper()
	got := bitsOf(pop)
	for i := range bits {
		if got[i] != bits[i] {
			t.Fatalf("individual %d: got=%s want=%s (population %v)", i, got[i], bits[i], got)
		}
		ind := pop.Individuals[i]
		if ind.Phenotype != phenotypes[i] || ind.Fitness != phenotypes[i]*phenotypes[i] {
			t.Fatalf("individual %d derived fields: %+v", i, ind)
		}
	}
	if pop.TotalFitness != total {
		t.Fatalf("total fitness: got=%d want=%d", pop.TotalFitness, total)
	}
}

func TestLoopStateTransitionsAndBufferSwap(t *testing.T) {
	loop, err := NewLoop(LoopConfig{PopulationSize: 6, ChromosomeLength: 4, PMutation: 0.01, Seed: 3})
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	ctx := context.Background()
	if err := loop.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if loop.State() != StateInitialized || loop.Generation() != 1 {
		t.Fatalf("after initialize: state=%s generation=%d", loop.State(), loop.Generation())
	}

	first, second := loop.current, loop.next
	if err := loop.Step(ctx); err != nil {
		t.Fatalf("step: %v", err)
	}
	if loop.current != second || loop.next != first {
		t.Fatal("buffers did not swap roles")
	}
	if loop.State() != StateEvolving || loop.Generation() != 2 {
		t.Fatalf("after step: state=%s generation=%d", loop.State(), loop.Generation())
	}

	sum := 0
	for _, ind := range loop.current.Individuals {
		if ind.Phenotype != Decode(ind.Chromosome) || ind.Fitness != Square(ind.Phenotype) {
			t.Fatalf("stale derived fields: %+v", ind)
		}
		sum += ind.Fitness
	}
	if sum != loop.current.TotalFitness {
		t.Fatalf("total fitness mismatch: sum=%d total=%d", sum, loop.current.TotalFitness)
	}
}

func TestLoopSnapshotIsIsolated(t *testing.T) {
	loop, err := NewLoop(LoopConfig{PopulationSize: 2, ChromosomeLength: 3, Seed: 8})
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	if err := loop.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	snap := loop.Snapshot()
	original := snap.Population.Individuals[0].Chromosome.String()
	loop.current.Individuals[0].Chromosome[0] = loop.current.Individuals[0].Chromosome[0].Flip()
	if snap.Population.Individuals[0].Chromosome.String() != original {
		t.Fatal("snapshot shares storage with the live population")
	}
}

func TestLoopRunReportsEveryGeneration(t *testing.T) {
	var generations []int
	loop, err := NewLoop(LoopConfig{
		PopulationSize:   8,
		ChromosomeLength: 5,
		PMutation:        0.001,
		Seed:             1,
		Observer: ObserverFunc(func(_ context.Context, snap Snapshot) error {
			generations = append(generations, snap.Generation)
			return nil
		}),
	})
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	result, err := loop.Run(context.Background(), 5)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []int{1, 2, 3, 4, 5}
	if len(generations) != len(want) {
		t.Fatalf("unexpected generations: %v", generations)
	}
	for i := range want {
		if generations[i] != want[i] {
			t.Fatalf("unexpected generations: %v", generations)
		}
	}
	if len(result.BestByGeneration) != 5 || result.Final.Generation != 5 {
		t.Fatalf("unexpected result: best=%v final=%d", result.BestByGeneration, result.Final.Generation)
	}
	if result.Final.Crossovers != 4*4 {
		t.Fatalf("expected 16 crossovers over 4 steps, got %d", result.Final.Crossovers)
	}

	if _, err := loop.Run(context.Background(), 0); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for zero generations, got %v", err)
	}
}

func TestLoopObserverErrorStopsRun(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	loop, err := NewLoop(LoopConfig{
		PopulationSize:   4,
		ChromosomeLength: 3,
		Seed:             2,
		Observer: MultiObserver{
			nil,
			ObserverFunc(func(_ context.Context, snap Snapshot) error {
				calls++
				if snap.Generation == 3 {
					return stop
				}
				return nil
			}),
		},
	})
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	if _, err := loop.Run(context.Background(), 10); !errors.Is(err, stop) {
		t.Fatalf("expected observer error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 observer calls, got %d", calls)
	}
}

func TestLoopHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	loop, err := NewLoop(LoopConfig{
		PopulationSize:   4,
		ChromosomeLength: 3,
		Seed:             2,
		Observer: ObserverFunc(func(_ context.Context, snap Snapshot) error {
			if snap.Generation == 2 {
				cancel()
			}
			return nil
		}),
	})
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	if _, err := loop.Run(ctx, 10); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if loop.Generation() != 2 {
		t.Fatalf("expected to stop after generation 2, got %d", loop.Generation())
	}
}

func TestLoopIsReproducibleForSeed(t *testing.T) {
	for _, workers := range []int{0, 4} {
		a := runFinal(t, LoopConfig{PopulationSize: 20, ChromosomeLength: 5, PMutation: 0.01, Seed: 77, Workers: workers}, 12)
		b := runFinal(t, LoopConfig{PopulationSize: 20, ChromosomeLength: 5, PMutation: 0.01, Seed: 77, Workers: workers}, 12)
		if !equalStrings(bitsOf(a.Final.Population), bitsOf(b.Final.Population)) {
			t.Fatalf("workers=%d: same seed produced different populations", workers)
		}
		if a.Final.Mutations != b.Final.Mutations {
			t.Fatalf("workers=%d: mutation counts differ: %d vs %d", workers, a.Final.Mutations, b.Final.Mutations)
		}
	}
}

func TestLoopParallelResultIndependentOfWorkerCount(t *testing.T) {
	two := runFinal(t, LoopConfig{PopulationSize: 24, ChromosomeLength: 6, PMutation: 0.02, Seed: 5, Workers: 2}, 8)
	eight := runFinal(t, LoopConfig{PopulationSize: 24, ChromosomeLength: 6, PMutation: 0.02, Seed: 5, Workers: 8}, 8)
	if !equalStrings(bitsOf(two.Final.Population), bitsOf(eight.Final.Population)) {
		t.Fatal("parallel result depends on worker count")
	}
	if two.Final.Mutations != eight.Final.Mutations || two.Final.Crossovers != eight.Final.Crossovers {
		t.Fatal("parallel counters depend on worker count")
	}
}

// Mean fitness under x^2 should trend upward. Checked on the across-trial
// average with a least-squares slope, not on individual runs.
func TestLoopMeanFitnessTrendsUpward(t *testing.T) {
	const (
		trials      = 40
		generations = 15
	)
	avg := make([]float64, generations)
	for trial := 0; trial < trials; trial++ {
		result := runFinal(t, LoopConfig{
			PopulationSize:   20,
			ChromosomeLength: 5,
			PMutation:        0.001,
			Seed:             int64(1000 + trial),
		}, generations)
		for g, mean := range result.MeanByGeneration {
			avg[g] += mean / trials
		}
	}

	xs := make([]float64, generations)
	for i := range xs {
		xs[i] = float64(i + 1)
	}
	_, slope := stat.LinearRegression(xs, avg, nil, false)
	if slope <= 0 {
		t.Fatalf("expected positive mean-fitness slope, got %.3f (means %v)", slope, avg)
	}
	if avg[generations-1] <= avg[0] {
		t.Fatalf("expected final mean %.1f to exceed initial mean %.1f", avg[generations-1], avg[0])
	}
}

func runFinal(t *testing.T, cfg LoopConfig, generations int) RunResult {
	t.Helper()
	loop, err := NewLoop(cfg)
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	result, err := loop.Run(context.Background(), generations)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return result
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
