package storage

import (
	"context"

	"evolver/internal/model"
)

// Store persists finished runs: the run record, its per-epoch statistics and
// the final population snapshot.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	DeleteRun(ctx context.Context, id string) error
	SaveEpochStats(ctx context.Context, runID string, history []model.EpochStats) error
	GetEpochStats(ctx context.Context, runID string) ([]model.EpochStats, bool, error)
	SaveSnapshot(ctx context.Context, snapshot model.PopulationSnapshot) error
	GetSnapshot(ctx context.Context, runID string) (model.PopulationSnapshot, bool, error)
}
