package evo

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"evolver/internal/model"
)

const (
	SelectorTournament = "tournament"
	SelectorRoulette   = "roulette"
	SelectorRank       = "rank"
	SelectorBoltzmann  = "boltzmann"
	SelectorRandom     = "random"

	defaultTournamentSize = 3
)

// TournamentSelector picks each parent as the fittest of Size members sampled
// with replacement. Size shrinks to the population when it does not fit.
type TournamentSelector[G any] struct {
	Weighted
	Size int
}

func (*TournamentSelector[G]) Name() string { return SelectorTournament }

func (s *TournamentSelector[G]) SelectMatingPairs(rng *rand.Rand, _ int, pop model.Population[G], count int) ([]model.Couple[G], error) {
	size := s.Size
	if size <= 0 {
		size = defaultTournamentSize
	}
	return produceCouples(rng, pop, count, tournamentPairer[G]{pop: pop, size: size})
}

type tournamentPairer[G any] struct {
	pop  model.Population[G]
	size int
}

func (p tournamentPairer[G]) first(rng *rand.Rand) int {
	n := len(p.pop)
	size := min(p.size, n)
	best := rng.Intn(n)
	for i := 1; i < size; i++ {
		idx := rng.Intn(n)
		if p.pop[idx].CachedFitness() > p.pop[best].CachedFitness() {
			best = idx
		}
	}
	return best
}

func (p tournamentPairer[G]) second(rng *rand.Rand, first int) (int, bool) {
	n := len(p.pop)
	size := min(p.size, n-1)
	best := otherIndex(rng, n, first)
	for i := 1; i < size; i++ {
		idx := otherIndex(rng, n, first)
		if p.pop[idx].CachedFitness() > p.pop[best].CachedFitness() {
			best = idx
		}
	}
	return best, true
}

// RouletteSelector draws parents proportionally to fitness. Populations with
// negative fitness are shifted so the worst member weighs zero.
type RouletteSelector[G any] struct {
	Weighted
}

func (*RouletteSelector[G]) Name() string { return SelectorRoulette }

func (s *RouletteSelector[G]) SelectMatingPairs(rng *rand.Rand, _ int, pop model.Population[G], count int) ([]model.Couple[G], error) {
	return couplesFromWeights(rng, pop, count, shiftedFitness(pop.Fitnesses()))
}

// RankSelector draws parents proportionally to rank: worst weighs 1, best
// weighs len(pop).
type RankSelector[G any] struct {
	Weighted
}

func (*RankSelector[G]) Name() string { return SelectorRank }

func (s *RankSelector[G]) SelectMatingPairs(rng *rand.Rand, _ int, pop model.Population[G], count int) ([]model.Couple[G], error) {
	weights := make([]float64, len(pop))
	ranked := pop.Ranked()
	for pos, idx := range ranked {
		weights[idx] = float64(len(pop) - pos)
	}
	return couplesFromWeights(rng, pop, count, weights)
}

// BoltzmannSelector weighs members by exp((f-max)/(T*sigma)) where the
// temperature T decays from Temperature by Decay every epoch down to
// MinTemperature, and sigma is the fitness standard deviation.
type BoltzmannSelector[G any] struct {
	Weighted
	Temperature    float64
	Decay          float64
	MinTemperature float64
}

func (*BoltzmannSelector[G]) Name() string { return SelectorBoltzmann }

// TemperatureAt returns the temperature used in epoch.
func (s *BoltzmannSelector[G]) TemperatureAt(epoch int) float64 {
	t0 := s.Temperature
	if t0 <= 0 {
		t0 = 1
	}
	decay := s.Decay
	if decay <= 0 || decay > 1 {
		decay = 0.99
	}
	floor := s.MinTemperature
	if floor <= 0 {
		floor = 0.01
	}
	return math.Max(floor, t0*math.Pow(decay, float64(epoch)))
}

func (s *BoltzmannSelector[G]) SelectMatingPairs(rng *rand.Rand, epoch int, pop model.Population[G], count int) ([]model.Couple[G], error) {
	return couplesFromWeights(rng, pop, count, boltzmannWeights(pop.Fitnesses(), s.TemperatureAt(epoch)))
}

func boltzmannWeights(fitness []float64, temperature float64) []float64 {
	weights := make([]float64, len(fitness))
	if len(fitness) == 0 {
		return weights
	}
	sigma := 1.0
	if len(fitness) > 1 {
		if sd := stat.StdDev(fitness, nil); sd > 0 && !math.IsNaN(sd) {
			sigma = sd
		}
	}
	top := fitness[0]
	for _, f := range fitness[1:] {
		top = math.Max(top, f)
	}
	for i, f := range fitness {
		weights[i] = math.Exp((f - top) / (temperature * sigma))
	}
	return weights
}

// RandomSelector pairs members uniformly.
type RandomSelector[G any] struct {
	Weighted
}

func (*RandomSelector[G]) Name() string { return SelectorRandom }

func (s *RandomSelector[G]) SelectMatingPairs(rng *rand.Rand, _ int, pop model.Population[G], count int) ([]model.Couple[G], error) {
	return couplesFromWeights(rng, pop, count, make([]float64, len(pop)))
}

// shiftedFitness returns fitness values usable as wheel weights.
func shiftedFitness(fitness []float64) []float64 {
	out := make([]float64, len(fitness))
	if len(fitness) == 0 {
		return out
	}
	lowest := fitness[0]
	for _, f := range fitness[1:] {
		lowest = math.Min(lowest, f)
	}
	shift := 0.0
	if lowest < 0 {
		shift = -lowest
	}
	for i, f := range fitness {
		out[i] = f + shift
		if math.IsNaN(out[i]) || math.IsInf(out[i], 0) {
			out[i] = 0
		}
	}
	return out
}
