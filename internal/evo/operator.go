package evo

import (
	"errors"
	"math/rand"

	"evolver/internal/model"
)

var (
	ErrConfiguration    = errors.New("configuration error")
	ErrInvalidCandidate = errors.New("invalid candidate")
)

// Operator is the contract shared by every parent selector, crossover and
// replacement strategy.
type Operator interface {
	Name() string
	// CustomWeight is the static weight used by the custom weight policy;
	// 0 means unset.
	CustomWeight() float64
}

// Weighted provides the custom weight of an operator. Embed it in operator
// structs.
type Weighted struct {
	Weight float64 `toml:"weight" json:"weight"`
}

func (w Weighted) CustomWeight() float64 { return w.Weight }

func (w *Weighted) SetCustomWeight(v float64) { w.Weight = v }

// ParentSelector produces mating couples from a population snapshot. It may
// return more couples than requested; it never returns fewer unless the
// population has fewer than two members.
type ParentSelector[G any] interface {
	Operator
	SelectMatingPairs(rng *rand.Rand, epoch int, pop model.Population[G], count int) ([]model.Couple[G], error)
}

// Crossover recombines the genes of two parents into one or two offspring
// gene sequences. Parents' slices must not be modified; returning them
// unchanged is allowed, offspring always get their own copy.
type Crossover[G any] interface {
	Operator
	Cross(rng *rand.Rand, a, b []G) ([][]G, error)
}

// Replacement decides which current members make room for offspring.
type Replacement[G any] interface {
	Operator
	// OffspringRate is the fraction of the population regenerated per epoch.
	OffspringRate() float64
	// SelectForElimination returns indices into pop of members to drop.
	SelectForElimination(rng *rand.Rand, pop model.Population[G], offspring model.Population[G]) ([]int, error)
}
