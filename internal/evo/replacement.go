package evo

import (
	"math"
	"math/rand"
	"sort"

	"evolver/internal/model"
	"evolver/internal/wheel"
)

const (
	ReplacementGenerational = "generational"
	ReplacementElitist      = "elitist"
	ReplacementWorst        = "worst"
	ReplacementAgeBased     = "age_based"
	ReplacementRandom       = "random"
	ReplacementRoulette     = "roulette"

	defaultSteadyStateRate = 0.25
)

// GenerationalReplacement drops the whole current population every epoch.
type GenerationalReplacement[G any] struct {
	Weighted
}

func (*GenerationalReplacement[G]) Name() string { return ReplacementGenerational }

func (*GenerationalReplacement[G]) OffspringRate() float64 { return 1 }

func (*GenerationalReplacement[G]) SelectForElimination(_ *rand.Rand, pop, _ model.Population[G]) ([]int, error) {
	out := make([]int, len(pop))
	for i := range out {
		out[i] = i
	}
	return out, nil
}

// ElitistReplacement protects the fittest ElitePercentage of the population
// and eliminates the weakest of the rest, one per offspring.
type ElitistReplacement[G any] struct {
	Weighted
	ElitePercentage float64
}

func (*ElitistReplacement[G]) Name() string { return ReplacementElitist }

func (r *ElitistReplacement[G]) OffspringRate() float64 {
	return math.Max(1-r.elitePercentage(), 0)
}

func (r *ElitistReplacement[G]) elitePercentage() float64 {
	if r.ElitePercentage <= 0 {
		return 0.1
	}
	return math.Min(r.ElitePercentage, 1)
}

// EliteCount is the number of protected members in a population of n.
func (r *ElitistReplacement[G]) EliteCount(n int) int {
	return min(int(math.Round(r.elitePercentage()*float64(n))), n)
}

func (r *ElitistReplacement[G]) SelectForElimination(_ *rand.Rand, pop, offspring model.Population[G]) ([]int, error) {
	ranked := pop.Ranked()
	candidates := ranked[r.EliteCount(len(pop)):]
	return worstOf(candidates, len(offspring)), nil
}

// WorstReplacement is steady-state replacement: each offspring displaces one
// of the weakest members.
type WorstReplacement[G any] struct {
	Weighted
	Rate float64
}

func (*WorstReplacement[G]) Name() string { return ReplacementWorst }

func (r *WorstReplacement[G]) OffspringRate() float64 { return rateOrDefault(r.Rate) }

func (r *WorstReplacement[G]) SelectForElimination(_ *rand.Rand, pop, offspring model.Population[G]) ([]int, error) {
	return worstOf(pop.Ranked(), len(offspring)), nil
}

// AgeBasedReplacement eliminates members that reached MaxAge and, to make
// room for offspring, the oldest remaining members (weaker first on ties).
type AgeBasedReplacement[G any] struct {
	Weighted
	Rate   float64
	MaxAge int
}

func (*AgeBasedReplacement[G]) Name() string { return ReplacementAgeBased }

func (r *AgeBasedReplacement[G]) OffspringRate() float64 { return rateOrDefault(r.Rate) }

func (r *AgeBasedReplacement[G]) SelectForElimination(_ *rand.Rand, pop, offspring model.Population[G]) ([]int, error) {
	order := make([]int, len(pop))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ca, cb := pop[order[a]], pop[order[b]]
		if ca.Age() != cb.Age() {
			return ca.Age() > cb.Age()
		}
		return ca.CachedFitness() < cb.CachedFitness()
	})

	out := make([]int, 0, len(offspring))
	for _, idx := range order {
		expired := r.MaxAge > 0 && pop[idx].Age() >= r.MaxAge
		if !expired && len(out) >= len(offspring) {
			break
		}
		out = append(out, idx)
	}
	return out, nil
}

// RandomReplacement eliminates uniformly drawn members, one per offspring.
type RandomReplacement[G any] struct {
	Weighted
	Rate float64
}

func (*RandomReplacement[G]) Name() string { return ReplacementRandom }

func (r *RandomReplacement[G]) OffspringRate() float64 { return rateOrDefault(r.Rate) }

func (r *RandomReplacement[G]) SelectForElimination(rng *rand.Rand, pop, offspring model.Population[G]) ([]int, error) {
	return drawWithoutReplacement(rng, make([]float64, len(pop)), len(offspring))
}

// RouletteReplacement eliminates members drawn without replacement with
// probability growing as fitness falls below the population best.
type RouletteReplacement[G any] struct {
	Weighted
	Rate float64
}

func (*RouletteReplacement[G]) Name() string { return ReplacementRoulette }

func (r *RouletteReplacement[G]) OffspringRate() float64 { return rateOrDefault(r.Rate) }

func (r *RouletteReplacement[G]) SelectForElimination(rng *rand.Rand, pop, offspring model.Population[G]) ([]int, error) {
	fitness := pop.Fitnesses()
	weights := make([]float64, len(fitness))
	if len(fitness) > 0 {
		top := fitness[0]
		for _, f := range fitness[1:] {
			top = math.Max(top, f)
		}
		for i, f := range fitness {
			weights[i] = top - f
			if math.IsNaN(weights[i]) || math.IsInf(weights[i], 0) {
				weights[i] = 0
			}
		}
	}
	return drawWithoutReplacement(rng, weights, len(offspring))
}

func drawWithoutReplacement(rng *rand.Rand, weights []float64, count int) ([]int, error) {
	count = min(count, len(weights))
	if count <= 0 {
		return nil, nil
	}
	w, err := wheel.New(weights)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, count)
	for len(out) < count {
		idx, ok := w.SpinAndReadjust(rng)
		if !ok {
			break
		}
		out = append(out, idx)
	}
	return out, nil
}

// worstOf returns the last count entries of a best-first ranking.
func worstOf(ranked []int, count int) []int {
	count = min(count, len(ranked))
	if count <= 0 {
		return nil
	}
	out := make([]int, count)
	for i := 0; i < count; i++ {
		out[i] = ranked[len(ranked)-1-i]
	}
	return out
}

func rateOrDefault(rate float64) float64 {
	if rate <= 0 || rate > 1 {
		return defaultSteadyStateRate
	}
	return rate
}
