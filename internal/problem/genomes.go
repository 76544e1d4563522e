package problem

import (
	"errors"
	"math"
	"math/rand"
	"slices"

	"evolver/internal/model"
)

// BitString is a fixed-length boolean genome scored by Score.
type BitString struct {
	model.NoRepair
	Bits  []bool
	Score func(bits []bool) float64
}

func (g *BitString) Genes() []bool         { return g.Bits }
func (g *BitString) SetGenes(genes []bool) { g.Bits = genes }

func (g *BitString) ComputeFitness() (float64, error) {
	if len(g.Bits) == 0 {
		return 0, errors.New("empty bit string")
	}
	return g.Score(g.Bits), nil
}

// Mutate flips one random bit.
func (g *BitString) Mutate(rng *rand.Rand) error {
	if len(g.Bits) == 0 {
		return nil
	}
	i := rng.Intn(len(g.Bits))
	g.Bits[i] = !g.Bits[i]
	return nil
}

func (g *BitString) DeepCopy() model.Genome[bool] {
	return &BitString{Bits: slices.Clone(g.Bits), Score: g.Score}
}

func randomBits(rng *rand.Rand, n int) []bool {
	bits := make([]bool, n)
	for i := range bits {
		bits[i] = rng.Intn(2) == 1
	}
	return bits
}

// OneMax counts set bits.
func OneMax(bits []bool) float64 {
	n := 0
	for _, b := range bits {
		if b {
			n++
		}
	}
	return float64(n)
}

// Trap scores concatenated deceptive traps of width k: a block with all
// bits set is worth k, any other block k-1-ones.
func Trap(k int) func(bits []bool) float64 {
	return func(bits []bool) float64 {
		fitness := 0.0
		for i := 0; i+k <= len(bits); i += k {
			ones := int(OneMax(bits[i : i+k]))
			if ones == k {
				fitness += float64(k)
			} else {
				fitness += float64(k - ones - 1)
			}
		}
		return fitness
	}
}

// RealVector is a real-valued genome minimizing Cost; fitness is -Cost.
type RealVector struct {
	model.NoRepair
	Values []float64
	Lower  float64
	Upper  float64
	Sigma  float64
	Cost   func(x []float64) float64
}

func (g *RealVector) Genes() []float64         { return g.Values }
func (g *RealVector) SetGenes(genes []float64) { g.Values = genes }

func (g *RealVector) ComputeFitness() (float64, error) {
	if len(g.Values) == 0 {
		return 0, errors.New("empty vector")
	}
	return -g.Cost(g.Values), nil
}

// Mutate adds gaussian noise to one coordinate, clamped to the bounds.
func (g *RealVector) Mutate(rng *rand.Rand) error {
	if len(g.Values) == 0 {
		return nil
	}
	i := rng.Intn(len(g.Values))
	g.Values[i] = math.Min(g.Upper, math.Max(g.Lower, g.Values[i]+rng.NormFloat64()*g.Sigma))
	return nil
}

func (g *RealVector) DeepCopy() model.Genome[float64] {
	out := *g
	out.Values = slices.Clone(g.Values)
	return &out
}

func Sphere(x []float64) float64 {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return sum
}

func Rastrigin(x []float64) float64 {
	sum := 10 * float64(len(x))
	for _, v := range x {
		sum += v*v - 10*math.Cos(2*math.Pi*v)
	}
	return sum
}

// Knapsack is a 0/1 knapsack selection. Repair drops the least valuable items
// per unit of weight until the selection fits.
type Knapsack struct {
	Take     []bool
	Items    []Item
	Capacity float64
}

type Item struct {
	Weight float64 `json:"weight"`
	Value  float64 `json:"value"`
}

func (g *Knapsack) Genes() []bool         { return g.Take }
func (g *Knapsack) SetGenes(genes []bool) { g.Take = genes }

func (g *Knapsack) ComputeFitness() (float64, error) {
	if len(g.Take) != len(g.Items) {
		return 0, errors.New("selection does not match item count")
	}
	weight, value := g.totals()
	if weight > g.Capacity {
		return 0, nil
	}
	return value, nil
}

func (g *Knapsack) totals() (weight, value float64) {
	for i, take := range g.Take {
		if take {
			weight += g.Items[i].Weight
			value += g.Items[i].Value
		}
	}
	return weight, value
}

func (g *Knapsack) Mutate(rng *rand.Rand) error {
	if len(g.Take) == 0 {
		return nil
	}
	i := rng.Intn(len(g.Take))
	g.Take[i] = !g.Take[i]
	return nil
}

func (g *Knapsack) Repair() error {
	weight, _ := g.totals()
	if weight <= g.Capacity {
		return nil
	}
	order := make([]int, 0, len(g.Take))
	for i, take := range g.Take {
		if take {
			order = append(order, i)
		}
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmpDensity(g.Items[a], g.Items[b])
	})
	for _, i := range order {
		if weight <= g.Capacity {
			break
		}
		g.Take[i] = false
		weight -= g.Items[i].Weight
	}
	return nil
}

func cmpDensity(a, b Item) int {
	da, db := density(a), density(b)
	switch {
	case da < db:
		return -1
	case da > db:
		return 1
	default:
		return 0
	}
}

func density(it Item) float64 {
	if it.Weight <= 0 {
		return math.Inf(1)
	}
	return it.Value / it.Weight
}

func (g *Knapsack) DeepCopy() model.Genome[bool] {
	return &Knapsack{Take: slices.Clone(g.Take), Items: g.Items, Capacity: g.Capacity}
}

// Schedule is a permutation flow shop schedule; fitness is the negated
// makespan.
type Schedule struct {
	model.NoRepair
	Order []int
	Shop  *FlowShop
}

func (g *Schedule) Genes() []int         { return g.Order }
func (g *Schedule) SetGenes(genes []int) { g.Order = genes }

func (g *Schedule) ComputeFitness() (float64, error) {
	makespan, err := g.Shop.Makespan(g.Order)
	if err != nil {
		return 0, err
	}
	return -float64(makespan), nil
}

// Mutate swaps two jobs.
func (g *Schedule) Mutate(rng *rand.Rand) error {
	if len(g.Order) < 2 {
		return nil
	}
	i, j := rng.Intn(len(g.Order)), rng.Intn(len(g.Order))
	g.Order[i], g.Order[j] = g.Order[j], g.Order[i]
	return nil
}

func (g *Schedule) DeepCopy() model.Genome[int] {
	return &Schedule{Order: slices.Clone(g.Order), Shop: g.Shop}
}
