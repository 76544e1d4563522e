package problem

import (
	"context"
	"fmt"
	"math/rand"
	"reflect"

	"evolver/internal/evo"
	"evolver/internal/model"
	"evolver/internal/policy"
)

// Problem is a named, type-erased benchmark the CLI and API can run.
type Problem interface {
	Name() string
	Info() Info
	Solve(ctx context.Context, req Request) (Outcome, error)
}

type Info struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	GeneType         string `json:"gene_type"`
	DefaultLength    int    `json:"default_length"`
	DefaultCrossover string `json:"default_crossover"`
}

// CompatibilityFn rejects requests a benchmark cannot run.
type CompatibilityFn func(req Request) error

// Benchmark implements Problem for genes of type G.
type Benchmark[G any] struct {
	Key              string
	Summary          string
	DefaultLength    int
	DefaultCrossover string
	Compatible       CompatibilityFn
	// Seed builds the initial population; rng is derived from the run seed.
	Seed func(rng *rand.Rand, req Request) []model.Genome[G]
}

func (b *Benchmark[G]) Name() string { return b.Key }

func (b *Benchmark[G]) Info() Info {
	return Info{
		Name:             b.Key,
		Description:      b.Summary,
		GeneType:         reflect.TypeFor[G]().String(),
		DefaultLength:    b.DefaultLength,
		DefaultCrossover: b.DefaultCrossover,
	}
}

// Solve seeds a population from req and evolves it. A canceled run still
// returns the outcome committed so far together with the error.
func (b *Benchmark[G]) Solve(ctx context.Context, req Request) (Outcome, error) {
	req = req.withDefaults(b.DefaultLength, b.DefaultCrossover)
	if b.Compatible != nil {
		if err := b.Compatible(req); err != nil {
			return Outcome{}, fmt.Errorf("%w: %s: %v", ErrIncompatible, b.Key, err)
		}
	}
	cfg, err := b.config(req)
	if err != nil {
		return Outcome{}, err
	}

	res, runErr := evo.Run(ctx, cfg)
	if res.Best == nil {
		if runErr == nil {
			runErr = fmt.Errorf("%s: run produced no population", b.Key)
		}
		return Outcome{}, runErr
	}
	out, err := b.outcome(req, res)
	if err != nil {
		return Outcome{}, err
	}
	return out, runErr
}

func (b *Benchmark[G]) config(req Request) (evo.Config[G], error) {
	selectors, err := evo.ParentSelectorsFromConfig[G](req.Selection.Operators)
	if err != nil {
		return evo.Config[G]{}, err
	}
	crossovers, err := evo.CrossoversFromConfig[G](req.Crossover.Operators)
	if err != nil {
		return evo.Config[G]{}, err
	}
	replacements, err := evo.ReplacementsFromConfig[G](req.Replacement.Operators)
	if err != nil {
		return evo.Config[G]{}, err
	}
	reward, err := policy.RewardFromConfig(req.Reward)
	if err != nil {
		return evo.Config[G]{}, fmt.Errorf("%w: %v", evo.ErrConfiguration, err)
	}

	builder := evo.NewBuilder[G]().
		WithPopulation(b.Seed(rand.New(rand.NewSource(req.Seed)), req)...).
		WithSizeBounds(req.MinSize, req.MaxSize).
		WithMutationRate(*req.MutationRate).
		WithCrossoverRate(*req.CrossoverRate).
		WithOffspringRate(req.OffspringRate).
		WithParentSelection(req.Selection.Policy, selectors...).
		WithCrossover(req.Crossover.Policy, crossovers...).
		WithReplacement(req.Replacement.Policy, replacements...).
		WithPolicyParams(evo.FamilyParentSelection, req.Selection.Params).
		WithPolicyParams(evo.FamilyCrossover, req.Crossover.Params).
		WithPolicyParams(evo.FamilyReplacement, req.Replacement.Params).
		WithTermination(req.termination()).
		WithReward(reward).
		WithRunID(req.RunID).
		WithSeed(req.Seed).
		WithWorkers(req.Workers).
		WithDeadline(req.Deadline).
		WithLogger(req.Logger)
	if req.Observer != nil {
		builder.WithObservers(evo.ObserverFunc[G](func(ctx context.Context, report evo.EpochReport[G]) error {
			return req.Observer(ctx, Event{
				RunID:         report.RunID,
				Stats:         report.Stats,
				Elapsed:       report.Elapsed,
				Probabilities: report.Probabilities,
				Snapshot: func() (model.PopulationSnapshot, error) {
					return model.Snapshot(report.RunID, report.Stats.Epoch, report.Population, model.VersionedRecord{})
				},
			})
		}))
	}
	return builder.Build()
}

func (b *Benchmark[G]) outcome(req Request, res evo.Result[G]) (Outcome, error) {
	final, err := model.Snapshot(res.RunID, res.Epochs, res.Population, model.VersionedRecord{})
	if err != nil {
		return Outcome{}, err
	}
	best, err := model.Snapshot(res.RunID, res.Epochs, model.Population[G]{res.Best}, model.VersionedRecord{})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		RunID:         res.RunID,
		Problem:       b.Key,
		Seed:          req.Seed,
		Size:          req.Size,
		StopReason:    res.StopReason,
		Epochs:        res.Epochs,
		Elapsed:       res.Elapsed,
		Best:          best.Members[0],
		History:       res.History,
		Final:         final,
		Usage:         res.Usage,
		Probabilities: res.Probabilities,
		Estimates:     res.Estimates,
	}, nil
}
