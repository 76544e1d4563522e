package evo

import (
	"math/rand"

	"evolver/internal/model"
	"evolver/internal/wheel"
)

// pairer picks the first parent and then a second one distinct from it.
type pairer interface {
	first(rng *rand.Rand) int
	second(rng *rand.Rand, first int) (int, bool)
}

// produceCouples draws count couples from pop. Populations below two members
// yield no couples; a population of exactly two always pairs its members.
func produceCouples[G any](rng *rand.Rand, pop model.Population[G], count int, p pairer) ([]model.Couple[G], error) {
	if count <= 0 || len(pop) < 2 {
		return nil, nil
	}
	couples := make([]model.Couple[G], 0, count)
	for len(couples) < count {
		a := 0
		b := 1
		if len(pop) > 2 {
			a = p.first(rng)
			var ok bool
			b, ok = p.second(rng, a)
			if !ok {
				b = otherIndex(rng, len(pop), a)
			}
		}
		couple, err := model.NewCouple(pop[a], pop[b])
		if err != nil {
			return nil, err
		}
		couples = append(couples, couple)
	}
	return couples, nil
}

// otherIndex draws uniformly from [0, n) excluding skip.
func otherIndex(rng *rand.Rand, n, skip int) int {
	j := rng.Intn(n - 1)
	if j >= skip {
		j++
	}
	return j
}

type wheelPairer struct {
	w *wheel.Wheel
}

func (p wheelPairer) first(rng *rand.Rand) int { return p.w.Spin(rng) }

func (p wheelPairer) second(rng *rand.Rand, first int) (int, bool) {
	return p.w.SpinExcept(rng, first)
}

// couplesFromWeights pairs members drawn proportionally to weights; the
// second member of each couple is drawn from the wheel without the first.
func couplesFromWeights[G any](rng *rand.Rand, pop model.Population[G], count int, weights []float64) ([]model.Couple[G], error) {
	if count <= 0 || len(pop) < 2 {
		return nil, nil
	}
	w, err := wheel.New(weights)
	if err != nil {
		return nil, err
	}
	return produceCouples(rng, pop, count, wheelPairer{w: w})
}
