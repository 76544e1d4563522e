package evo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"evolver/internal/model"
)

var errFitness = errors.New("fitness failed")

// vecGenome is a real-valued genome whose fitness is the sum of its genes.
type vecGenome struct {
	model.NoRepair
	genes []float64
	fail  bool
	calls *atomic.Int64
}

func newVec(genes ...float64) *vecGenome {
	return &vecGenome{genes: genes}
}

func (g *vecGenome) Genes() []float64         { return g.genes }
func (g *vecGenome) SetGenes(genes []float64) { g.genes = genes }

func (g *vecGenome) ComputeFitness() (float64, error) {
	if g.calls != nil {
		g.calls.Add(1)
	}
	if g.fail {
		return 0, errFitness
	}
	sum := 0.0
	for _, v := range g.genes {
		sum += v
	}
	return sum, nil
}

func (g *vecGenome) Mutate(rng *rand.Rand) error {
	if len(g.genes) == 0 {
		return nil
	}
	g.genes[rng.Intn(len(g.genes))] += rng.NormFloat64() * 0.1
	return nil
}

func (g *vecGenome) DeepCopy() model.Genome[float64] {
	return &vecGenome{genes: slices.Clone(g.genes), fail: g.fail, calls: g.calls}
}

// genomes builds n genomes of width genes with distinct fitness.
func genomes(n, width int) []model.Genome[float64] {
	out := make([]model.Genome[float64], 0, n)
	for i := 0; i < n; i++ {
		genes := make([]float64, width)
		for j := range genes {
			genes[j] = float64(i) + float64(j)/10
		}
		out = append(out, newVec(genes...))
	}
	return out
}

// evaluated builds a population whose members have the given fitness.
func evaluated(t *testing.T, fitness ...float64) model.Population[float64] {
	t.Helper()
	pop := make(model.Population[float64], 0, len(fitness))
	for i, f := range fitness {
		c := model.NewChromosome[float64](fmt.Sprintf("c%d", i), newVec(f), 0)
		_, err := c.Fitness()
		require.NoError(t, err)
		pop = append(pop, c)
	}
	return pop
}

// recorder captures every committed epoch.
type recorder struct {
	ids   [][]string
	snaps []model.PopulationSnapshot
}

func (r *recorder) observer(t *testing.T) Observer[float64] {
	return ObserverFunc[float64](func(_ context.Context, report EpochReport[float64]) error {
		r.ids = append(r.ids, report.Population.IDs())
		snap, err := model.Snapshot("run", report.Stats.Epoch, report.Population, model.VersionedRecord{})
		require.NoError(t, err)
		r.snaps = append(r.snaps, snap)
		return nil
	})
}
