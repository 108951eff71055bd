package metrics

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"bitga/internal/evo"
)

const namespace = "bitga"

// Recorder exports run progress as prometheus metrics on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	generations  *prometheus.CounterVec
	mutations    *prometheus.CounterVec
	crossovers   *prometheus.CounterVec
	generation   *prometheus.GaugeVec
	bestFitness  *prometheus.GaugeVec
	meanFitness  *prometheus.GaugeVec
	totalFitness *prometheus.GaugeVec

	// last counter values seen per run, so cumulative loop counters can be
	// added as deltas. Guarded by mu; runs may report concurrently.
	mu             sync.Mutex
	lastMutations  map[string]int64
	lastCrossovers map[string]int64
}

func NewRecorder() *Recorder {
	labels := []string{"run_id"}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Evaluated generations, including the initial population.",
		}, labels),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Allele flips applied during reproduction.",
		}, labels),
		crossovers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crossovers_total",
			Help:      "Single-point crossovers performed.",
		}, labels),
		generation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generation",
			Help:      "Current generation number.",
		}, labels),
		bestFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_fitness",
			Help:      "Best fitness in the current generation.",
		}, labels),
		meanFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mean_fitness",
			Help:      "Mean fitness in the current generation.",
		}, labels),
		totalFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "total_fitness",
			Help:      "Summed fitness of the current generation.",
		}, labels),
		lastMutations:  make(map[string]int64),
		lastCrossovers: make(map[string]int64),
	}
	r.registry.MustRegister(
		r.generations,
		r.mutations,
		r.crossovers,
		r.generation,
		r.bestFitness,
		r.meanFitness,
		r.totalFitness,
	)
	return r
}

// Observer binds the recorder to one run. Observers for different runs may
// be used concurrently.
func (r *Recorder) Observer(runID string) evo.Observer {
	return evo.ObserverFunc(func(_ context.Context, snap evo.Snapshot) error {
		r.observe(runID, snap)
		return nil
	})
}

func (r *Recorder) observe(runID string, snap evo.Snapshot) {
	r.generations.WithLabelValues(runID).Inc()
	r.generation.WithLabelValues(runID).Set(float64(snap.Generation))

	r.mu.Lock()
	defer r.mu.Unlock()

	// Initialize resets the loop counters, so a drop means a new run under
	// the same id.
	if prev := r.lastMutations[runID]; snap.Mutations >= prev {
		r.mutations.WithLabelValues(runID).Add(float64(snap.Mutations - prev))
	} else {
		r.mutations.WithLabelValues(runID).Add(float64(snap.Mutations))
	}
	if prev := r.lastCrossovers[runID]; snap.Crossovers >= prev {
		r.crossovers.WithLabelValues(runID).Add(float64(snap.Crossovers - prev))
	} else {
		r.crossovers.WithLabelValues(runID).Add(float64(snap.Crossovers))
	}
	r.lastMutations[runID] = snap.Mutations
	r.lastCrossovers[runID] = snap.Crossovers

	if snap.Population == nil || len(snap.Population.Individuals) == 0 {
		return
	}
	best := snap.Population.Individuals[0].Fitness
	for _, ind := range snap.Population.Individuals[1:] {
		if ind.Fitness > best {
			best = ind.Fitness
		}
	}
	r.bestFitness.WithLabelValues(runID).Set(float64(best))
	r.totalFitness.WithLabelValues(runID).Set(float64(snap.Population.TotalFitness))
	r.meanFitness.WithLabelValues(runID).Set(float64(snap.Population.TotalFitness) / float64(len(snap.Population.Individuals)))
}

// WriteText writes every registered metric family in the text exposition
// format.
func (r *Recorder) WriteText(w io.Writer) error {
	families, err := r.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metric family %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
