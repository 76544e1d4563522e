package evo

import (
	"context"
	"time"

	"evolver/internal/model"
)

// EpochReport describes a committed epoch.
type EpochReport[G any] struct {
	RunID      string
	Stats      model.EpochStats
	Population model.Population[G]
	Elapsed    time.Duration
	// Probabilities holds the selection distribution of each family whose
	// policy exposes one, keyed by family.
	Probabilities map[string][]float64
}

// Observer is notified after every committed epoch. Population is shared
// with the engine and must be treated as read-only. A returned error stops
// the run.
type Observer[G any] interface {
	OnEpoch(ctx context.Context, report EpochReport[G]) error
}

type ObserverFunc[G any] func(ctx context.Context, report EpochReport[G]) error

func (f ObserverFunc[G]) OnEpoch(ctx context.Context, report EpochReport[G]) error {
	return f(ctx, report)
}
