package evo

import (
	"fmt"
	"math/rand"
	"reflect"
	"sort"
)

const (
	CrossoverUniform  = "uniform"
	CrossoverOnePoint = "one_point"
	CrossoverTwoPoint = "two_point"
	CrossoverNPoint   = "n_point"
	CrossoverOrder    = "order"
)

// UniformCrossover takes each gene from the first parent with probability
// MixProbability (0.5 when unset) and from the second otherwise.
type UniformCrossover[G any] struct {
	Weighted
	MixProbability float64
}

func (*UniformCrossover[G]) Name() string { return CrossoverUniform }

func (c *UniformCrossover[G]) Cross(rng *rand.Rand, a, b []G) ([][]G, error) {
	if err := requireGenes(a, b); err != nil {
		return nil, err
	}
	mix := c.MixProbability
	if mix <= 0 || mix >= 1 {
		mix = 0.5
	}
	first, second := cloneGenes(a), cloneGenes(b)
	for i := 0; i < min(len(a), len(b)); i++ {
		if rng.Float64() >= mix {
			first[i], second[i] = b[i], a[i]
		}
	}
	return [][]G{first, second}, nil
}

// PointCrossover cuts the shared prefix of both parents at Points distinct
// positions and alternates segments between the two children.
type PointCrossover[G any] struct {
	Weighted
	Points int
	name   string
}

func NewOnePointCrossover[G any]() *PointCrossover[G] {
	return &PointCrossover[G]{Points: 1, name: CrossoverOnePoint}
}

func NewTwoPointCrossover[G any]() *PointCrossover[G] {
	return &PointCrossover[G]{Points: 2, name: CrossoverTwoPoint}
}

func NewNPointCrossover[G any](points int) *PointCrossover[G] {
	return &PointCrossover[G]{Points: points, name: CrossoverNPoint}
}

func (c *PointCrossover[G]) Name() string {
	if c.name != "" {
		return c.name
	}
	return CrossoverNPoint
}

func (c *PointCrossover[G]) Cross(rng *rand.Rand, a, b []G) ([][]G, error) {
	if err := requireGenes(a, b); err != nil {
		return nil, err
	}
	first, second := cloneGenes(a), cloneGenes(b)
	shared := min(len(a), len(b))
	cuts := cutPoints(rng, shared, max(c.Points, 1))
	swap := false
	prev := 0
	for _, cut := range append(cuts, shared) {
		if swap {
			for i := prev; i < cut; i++ {
				first[i], second[i] = b[i], a[i]
			}
		}
		swap = !swap
		prev = cut
	}
	return [][]G{first, second}, nil
}

// cutPoints picks up to n distinct cut positions in [1, length-1], sorted.
func cutPoints(rng *rand.Rand, length, n int) []int {
	if length < 2 {
		return nil
	}
	n = min(n, length-1)
	picked := rng.Perm(length - 1)[:n]
	cuts := make([]int, n)
	for i, p := range picked {
		cuts[i] = p + 1
	}
	sort.Ints(cuts)
	return cuts
}

// OrderCrossover is OX1 for permutation genes: each child keeps a slice of
// one parent in place and fills the remaining positions with the other
// parent's genes in their order, starting after the slice. Genes must be of a
// comparable type and both parents must have equal length.
type OrderCrossover[G any] struct {
	Weighted
}

func (*OrderCrossover[G]) Name() string { return CrossoverOrder }

func (c *OrderCrossover[G]) Cross(rng *rand.Rand, a, b []G) ([][]G, error) {
	if err := requireGenes(a, b); err != nil {
		return nil, err
	}
	if len(a) != len(b) {
		return nil, fmt.Errorf("%w: order crossover needs equal lengths, got %d and %d", ErrInvalidCandidate, len(a), len(b))
	}
	if !reflect.TypeFor[G]().Comparable() {
		return nil, fmt.Errorf("%w: order crossover needs comparable genes, got %s", ErrInvalidCandidate, reflect.TypeFor[G]())
	}
	n := len(a)
	if n < 2 {
		return [][]G{cloneGenes(a), cloneGenes(b)}, nil
	}
	i, j := rng.Intn(n), rng.Intn(n)
	if i > j {
		i, j = j, i
	}
	j++
	return [][]G{orderChild(a, b, i, j), orderChild(b, a, i, j)}, nil
}

func orderChild[G any](keep, fill []G, i, j int) []G {
	n := len(keep)
	child := make([]G, n)
	kept := make(map[any]int, j-i)
	for k := i; k < j; k++ {
		child[k] = keep[k]
		kept[any(keep[k])]++
	}
	pos := j % n
	for step := 0; step < n; step++ {
		g := fill[(j+step)%n]
		if kept[any(g)] > 0 {
			kept[any(g)]--
			continue
		}
		child[pos] = g
		pos = (pos + 1) % n
		if pos == i {
			pos = j % n
		}
	}
	return child
}

func requireGenes[G any](a, b []G) error {
	if len(a) == 0 || len(b) == 0 {
		return fmt.Errorf("%w: crossover needs at least one gene per parent (got %d and %d)", ErrInvalidCandidate, len(a), len(b))
	}
	return nil
}

func cloneGenes[G any](genes []G) []G {
	return append([]G(nil), genes...)
}
