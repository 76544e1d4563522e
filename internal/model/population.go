package model

import (
	"fmt"
	"sort"
)

// Population is an ordered set of chromosomes with unique identifiers.
type Population[G any] []*Chromosome[G]

// Couple is a mating pair; A and B never share an identifier.
type Couple[G any] struct {
	A *Chromosome[G]
	B *Chromosome[G]
}

func NewCouple[G any](a, b *Chromosome[G]) (Couple[G], error) {
	if a == nil || b == nil {
		return Couple[G]{}, fmt.Errorf("couple members are required")
	}
	if a.ID() == b.ID() {
		return Couple[G]{}, fmt.Errorf("couple members must differ: %s", a.ID())
	}
	return Couple[G]{A: a, B: b}, nil
}

// Fitnesses returns the cached fitness of every member in population order.
func (p Population[G]) Fitnesses() []float64 {
	out := make([]float64, len(p))
	for i, c := range p {
		out[i] = c.CachedFitness()
	}
	return out
}

func (p Population[G]) IDs() []string {
	out := make([]string, len(p))
	for i, c := range p {
		out[i] = c.ID()
	}
	return out
}

// Ranked returns indices ordered by descending cached fitness. Ties keep
// population order.
func (p Population[G]) Ranked() []int {
	idx := make([]int, len(p))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return p[idx[a]].CachedFitness() > p[idx[b]].CachedFitness()
	})
	return idx
}

// Best returns the member with the highest cached fitness, first one on ties.
func (p Population[G]) Best() (*Chromosome[G], bool) {
	if len(p) == 0 {
		return nil, false
	}
	best := p[0]
	for _, c := range p[1:] {
		if c.CachedFitness() > best.CachedFitness() {
			best = c
		}
	}
	return best, true
}

// Validate checks identifier uniqueness.
func (p Population[G]) Validate() error {
	seen := make(map[string]struct{}, len(p))
	for i, c := range p {
		if c == nil {
			return fmt.Errorf("nil chromosome at index %d", i)
		}
		if _, ok := seen[c.ID()]; ok {
			return fmt.Errorf("duplicate chromosome id %s", c.ID())
		}
		seen[c.ID()] = struct{}{}
	}
	return nil
}

func (p Population[G]) Clone() Population[G] {
	out := make(Population[G], len(p))
	copy(out, p)
	return out
}
