package evo

import "time"

// RunState is what termination conditions observe at an epoch boundary.
type RunState struct {
	Epoch       int
	Size        int
	BestFitness float64
	MeanFitness float64
	StdDev      float64
	Elapsed     time.Duration
	// SinceImprovement counts epochs since the best fitness last improved.
	SinceImprovement int
}

type Termination interface {
	ShouldStop(state RunState) bool
}

type TerminationFunc func(state RunState) bool

func (f TerminationFunc) ShouldStop(state RunState) bool { return f(state) }

// GenerationLimit stops once Epochs epochs have run.
type GenerationLimit struct {
	Epochs int
}

func (t GenerationLimit) ShouldStop(state RunState) bool {
	return state.Epoch >= t.Epochs
}

// FitnessThreshold stops once the best fitness reaches Target.
type FitnessThreshold struct {
	Target float64
}

func (t FitnessThreshold) ShouldStop(state RunState) bool {
	return state.BestFitness >= t.Target
}

// Stagnation stops after Epochs epochs without best-fitness improvement.
type Stagnation struct {
	Epochs int
}

func (t Stagnation) ShouldStop(state RunState) bool {
	return t.Epochs > 0 && state.SinceImprovement >= t.Epochs
}

type TimeLimit struct {
	Limit time.Duration
}

func (t TimeLimit) ShouldStop(state RunState) bool {
	return t.Limit > 0 && state.Elapsed >= t.Limit
}

// AnyOf stops when any condition holds.
func AnyOf(conditions ...Termination) Termination {
	return TerminationFunc(func(state RunState) bool {
		for _, c := range conditions {
			if c != nil && c.ShouldStop(state) {
				return true
			}
		}
		return false
	})
}

// AllOf stops when every condition holds.
func AllOf(conditions ...Termination) Termination {
	return TerminationFunc(func(state RunState) bool {
		if len(conditions) == 0 {
			return false
		}
		for _, c := range conditions {
			if c == nil || !c.ShouldStop(state) {
				return false
			}
		}
		return true
	})
}
