package model

import (
	"encoding/json"
	"time"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord describes one engine run.
type RunRecord struct {
	VersionedRecord
	ID           string    `json:"id"`
	Problem      string    `json:"problem"`
	Seed         int64     `json:"seed"`
	InitialSize  int       `json:"initial_size"`
	Epochs       int       `json:"epochs"`
	StopReason   string    `json:"stop_reason"`
	BestID       string    `json:"best_id"`
	BestFitness  float64   `json:"best_fitness"`
	CreatedAtUTC time.Time `json:"created_at_utc"`
}

// EpochStats summarises the population after one epoch.
type EpochStats struct {
	Epoch       int     `json:"epoch"`
	Size        int     `json:"size"`
	BestFitness float64 `json:"best_fitness"`
	MeanFitness float64 `json:"mean_fitness"`
	StdDev      float64 `json:"stddev"`
	MinFitness  float64 `json:"min_fitness"`
	Offspring   int     `json:"offspring"`
	Eliminated  int     `json:"eliminated"`
	Selector    string  `json:"selector,omitempty"`
	Crossover   string  `json:"crossover,omitempty"`
	Replacement string  `json:"replacement,omitempty"`
	Reward      float64 `json:"reward"`
}

// MemberRecord is the persisted view of one chromosome.
type MemberRecord struct {
	ID      string          `json:"id"`
	Age     int             `json:"age"`
	Born    int             `json:"born"`
	Fitness float64         `json:"fitness"`
	Genes   json.RawMessage `json:"genes"`
}

// PopulationSnapshot is a population at an epoch boundary.
type PopulationSnapshot struct {
	VersionedRecord
	RunID   string         `json:"run_id"`
	Epoch   int            `json:"epoch"`
	Members []MemberRecord `json:"members"`
}

// Snapshot encodes the population; genes are marshalled with encoding/json.
func Snapshot[G any](runID string, epoch int, pop Population[G], version VersionedRecord) (PopulationSnapshot, error) {
	members := make([]MemberRecord, 0, len(pop))
	for _, c := range pop {
		genes, err := json.Marshal(c.Genes())
		if err != nil {
			return PopulationSnapshot{}, err
		}
		members = append(members, MemberRecord{
			ID:      c.ID(),
			Age:     c.Age(),
			Born:    c.Born(),
			Fitness: c.CachedFitness(),
			Genes:   genes,
		})
	}
	return PopulationSnapshot{
		VersionedRecord: version,
		RunID:           runID,
		Epoch:           epoch,
		Members:         members,
	}, nil
}
