package policy

import (
	"fmt"
	"math"

	"evolver/internal/model"
)

const (
	RewardBestImprovement = "best_improvement"
	RewardMeanImprovement = "mean_improvement"
)

// RewardFunc turns the statistics of two consecutive epochs into the reward
// credited to the operators applied in the later one.
type RewardFunc func(prev, cur model.EpochStats) float64

// BestImprovement rewards relative growth of the best fitness.
func BestImprovement(prev, cur model.EpochStats) float64 {
	return relativeGain(prev.BestFitness, cur.BestFitness)
}

// MeanImprovement rewards relative growth of the mean fitness.
func MeanImprovement(prev, cur model.EpochStats) float64 {
	return relativeGain(prev.MeanFitness, cur.MeanFitness)
}

// relativeGain is the improvement from prev to cur scaled by the larger
// magnitude, in [0, 1]; no improvement yields 0.
func relativeGain(prev, cur float64) float64 {
	delta := cur - prev
	if delta <= 0 || math.IsNaN(delta) {
		return 0
	}
	scale := math.Max(math.Abs(prev), math.Abs(cur))
	if scale < 1e-12 {
		return 1
	}
	return math.Min(delta/scale, 1)
}

func RewardFromConfig(name string) (RewardFunc, error) {
	switch name {
	case "", RewardBestImprovement, "best":
		return BestImprovement, nil
	case RewardMeanImprovement, "mean":
		return MeanImprovement, nil
	default:
		return nil, fmt.Errorf("%w: unsupported reward %q", ErrInvalidPolicy, name)
	}
}
