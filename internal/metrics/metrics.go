package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"evolver/internal/evo"
	"evolver/internal/model"
)

const namespace = "evolver"

// Collector exports run progress on its own registry.
type Collector struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	epochs      *prometheus.CounterVec
	bestFitness *prometheus.GaugeVec
	meanFitness *prometheus.GaugeVec
	size        *prometheus.GaugeVec
	reward      *prometheus.GaugeVec
	selections  *prometheus.CounterVec
	probability *prometheus.GaugeVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs by problem and stop reason.",
		}, []string{"problem", "stop_reason"}),
		epochs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "epochs_total",
			Help:      "Committed epochs.",
		}, []string{"problem"}),
		bestFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_fitness",
			Help:      "Best fitness of the latest committed epoch.",
		}, []string{"problem"}),
		meanFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mean_fitness",
			Help:      "Mean fitness of the latest committed epoch.",
		}, []string{"problem"}),
		size: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "population_size",
			Help:      "Population size after the latest committed epoch.",
		}, []string{"problem"}),
		reward: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reward",
			Help:      "Reward credited to the operators of the latest epoch.",
		}, []string{"problem"}),
		selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operator_selections_total",
			Help:      "Operator applications by family.",
		}, []string{"problem", "family", "operator"}),
		probability: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "operator_probability",
			Help:      "Selection probability of each operator under adaptive policies.",
		}, []string{"problem", "family", "index"}),
	}
	c.registry.MustRegister(c.runs, c.epochs, c.bestFitness, c.meanFitness, c.size, c.reward, c.selections, c.probability)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveEpoch records one committed epoch. Epoch 0 only sets the gauges.
func (c *Collector) ObserveEpoch(problem string, stats model.EpochStats, probabilities map[string][]float64) {
	c.bestFitness.WithLabelValues(problem).Set(stats.BestFitness)
	c.meanFitness.WithLabelValues(problem).Set(stats.MeanFitness)
	c.size.WithLabelValues(problem).Set(float64(stats.Size))
	for family, probs := range probabilities {
		for i, p := range probs {
			c.probability.WithLabelValues(problem, family, strconv.Itoa(i)).Set(p)
		}
	}
	if stats.Epoch == 0 {
		return
	}
	c.epochs.WithLabelValues(problem).Inc()
	c.reward.WithLabelValues(problem).Set(stats.Reward)
	for family, op := range map[string]string{
		evo.FamilyParentSelection: stats.Selector,
		evo.FamilyCrossover:       stats.Crossover,
		evo.FamilyReplacement:     stats.Replacement,
	} {
		if op != "" {
			c.selections.WithLabelValues(problem, family, op).Inc()
		}
	}
}

func (c *Collector) ObserveRun(problem, stopReason string) {
	c.runs.WithLabelValues(problem, stopReason).Inc()
}

// Observer feeds engine reports into c under the given problem label.
func Observer[G any](c *Collector, problem string) evo.Observer[G] {
	return evo.ObserverFunc[G](func(_ context.Context, report evo.EpochReport[G]) error {
		c.ObserveEpoch(problem, report.Stats, report.Probabilities)
		return nil
	})
}
