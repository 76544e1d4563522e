package evo

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"evolver/internal/model"
)

// Summarize computes fitness statistics over the cached fitness of pop.
func Summarize[G any](epoch int, pop model.Population[G]) model.EpochStats {
	out := model.EpochStats{Epoch: epoch, Size: len(pop)}
	if len(pop) == 0 {
		return out
	}
	fitness := pop.Fitnesses()
	out.BestFitness = fitness[0]
	out.MinFitness = fitness[0]
	for _, f := range fitness[1:] {
		out.BestFitness = math.Max(out.BestFitness, f)
		out.MinFitness = math.Min(out.MinFitness, f)
	}
	if len(fitness) < 2 {
		out.MeanFitness = fitness[0]
		return out
	}
	out.MeanFitness, out.StdDev = stat.MeanStdDev(fitness, nil)
	return out
}
