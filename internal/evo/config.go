package evo

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"time"

	"evolver/internal/model"
	"evolver/internal/policy"
)

const (
	DefaultMinSize       = 1.0
	DefaultMaxSize       = 1.0
	DefaultMutationRate  = 0.1
	DefaultCrossoverRate = 0.9
	DefaultEpochs        = 100
)

// Config is the validated, read-only description of a run. Build it with a
// Builder; the engine never mutates it.
type Config[G any] struct {
	Population []model.Genome[G]
	// MinSize and MaxSize bound the population as fractions of its initial size.
	MinSize       float64
	MaxSize       float64
	MutationRate  float64
	CrossoverRate float64
	// OffspringRate overrides the active replacement's rate when > 0.
	OffspringRate float64

	ParentSelection FamilySpec[ParentSelector[G]]
	Crossover       FamilySpec[Crossover[G]]
	Replacement     FamilySpec[Replacement[G]]

	Termination Termination
	Reward      policy.RewardFunc
	// RunID labels logs, reports and persisted records; generated when empty.
	RunID   string
	Seed    int64
	Workers int
	// Deadline bounds wall time; 0 disables it.
	Deadline  time.Duration
	Logger    *slog.Logger
	Observers []Observer[G]
}

// Bounds returns the absolute population bounds for the initial size.
func (c Config[G]) Bounds() (minSize, maxSize int) {
	n := float64(len(c.Population))
	minSize = max(int(math.Ceil(c.MinSize*n-1e-9)), 2)
	maxSize = max(int(math.Floor(c.MaxSize*n+1e-9)), minSize)
	return minSize, maxSize
}

// Validate checks the configuration as a unit, including the operator
// families and their policies.
func (c Config[G]) Validate() error {
	var errs []error
	if len(c.Population) == 0 {
		errs = append(errs, errors.New("initial population is required"))
	} else if len(c.Population) < 2 {
		errs = append(errs, fmt.Errorf("initial population needs at least 2 members, got %d", len(c.Population)))
	}
	for i, g := range c.Population {
		if g == nil {
			errs = append(errs, fmt.Errorf("initial genome %d is nil", i))
		}
	}
	if c.MinSize <= 0 || c.MinSize > 1 {
		errs = append(errs, fmt.Errorf("min size fraction must be in (0, 1], got %v", c.MinSize))
	}
	if c.MaxSize < 1 {
		errs = append(errs, fmt.Errorf("max size fraction must be >= 1, got %v", c.MaxSize))
	}
	if !inUnit(c.MutationRate) {
		errs = append(errs, fmt.Errorf("mutation rate must be in [0, 1], got %v", c.MutationRate))
	}
	if !inUnit(c.CrossoverRate) {
		errs = append(errs, fmt.Errorf("crossover rate must be in [0, 1], got %v", c.CrossoverRate))
	}
	if c.OffspringRate < 0 || math.IsNaN(c.OffspringRate) {
		errs = append(errs, fmt.Errorf("offspring rate must be >= 0, got %v", c.OffspringRate))
	}
	if c.Termination == nil {
		errs = append(errs, errors.New("termination condition is required"))
	}
	if c.Reward == nil {
		errs = append(errs, errors.New("reward function is required"))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be > 0, got %d", c.Workers))
	}
	if _, err := newFamily(FamilyParentSelection, c.ParentSelection); err != nil {
		errs = append(errs, err)
	}
	if _, err := newFamily(FamilyCrossover, c.Crossover); err != nil {
		errs = append(errs, err)
	}
	if _, err := newFamily(FamilyReplacement, c.Replacement); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrConfiguration, errors.Join(errs...))
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}

// Builder assembles a Config. Nothing is validated until Build.
type Builder[G any] struct {
	cfg Config[G]
}

func NewBuilder[G any]() *Builder[G] {
	return &Builder[G]{cfg: Config[G]{
		MinSize:       DefaultMinSize,
		MaxSize:       DefaultMaxSize,
		MutationRate:  DefaultMutationRate,
		CrossoverRate: DefaultCrossoverRate,
		Termination:   GenerationLimit{Epochs: DefaultEpochs},
		Reward:        policy.BestImprovement,
		Workers:       runtime.NumCPU(),
	}}
}

func (b *Builder[G]) WithPopulation(genomes ...model.Genome[G]) *Builder[G] {
	b.cfg.Population = append([]model.Genome[G](nil), genomes...)
	return b
}

// WithSizeBounds sets the population bounds as fractions of the initial size.
func (b *Builder[G]) WithSizeBounds(minFraction, maxFraction float64) *Builder[G] {
	b.cfg.MinSize = minFraction
	b.cfg.MaxSize = maxFraction
	return b
}

func (b *Builder[G]) WithMutationRate(rate float64) *Builder[G] {
	b.cfg.MutationRate = rate
	return b
}

func (b *Builder[G]) WithCrossoverRate(rate float64) *Builder[G] {
	b.cfg.CrossoverRate = rate
	return b
}

func (b *Builder[G]) WithOffspringRate(rate float64) *Builder[G] {
	b.cfg.OffspringRate = rate
	return b
}

// WithParentSelection registers parent selectors under the named policy; an
// empty policy name picks one automatically.
func (b *Builder[G]) WithParentSelection(policyName string, ops ...ParentSelector[G]) *Builder[G] {
	b.cfg.ParentSelection.Policy = policyName
	b.cfg.ParentSelection.Operators = append([]ParentSelector[G](nil), ops...)
	return b
}

func (b *Builder[G]) WithCrossover(policyName string, ops ...Crossover[G]) *Builder[G] {
	b.cfg.Crossover.Policy = policyName
	b.cfg.Crossover.Operators = append([]Crossover[G](nil), ops...)
	return b
}

func (b *Builder[G]) WithReplacement(policyName string, ops ...Replacement[G]) *Builder[G] {
	b.cfg.Replacement.Policy = policyName
	b.cfg.Replacement.Operators = append([]Replacement[G](nil), ops...)
	return b
}

// WithPolicyParams sets the adaptive parameters of one family.
func (b *Builder[G]) WithPolicyParams(family string, params policy.Params) *Builder[G] {
	switch family {
	case FamilyParentSelection:
		b.cfg.ParentSelection.PolicyParams = params
	case FamilyCrossover:
		b.cfg.Crossover.PolicyParams = params
	case FamilyReplacement:
		b.cfg.Replacement.PolicyParams = params
	default:
		b.cfg.ParentSelection.PolicyParams = params
		b.cfg.Crossover.PolicyParams = params
		b.cfg.Replacement.PolicyParams = params
	}
	return b
}

func (b *Builder[G]) WithTermination(t Termination) *Builder[G] {
	b.cfg.Termination = t
	return b
}

func (b *Builder[G]) WithReward(fn policy.RewardFunc) *Builder[G] {
	b.cfg.Reward = fn
	return b
}

func (b *Builder[G]) WithRunID(id string) *Builder[G] {
	b.cfg.RunID = id
	return b
}

func (b *Builder[G]) WithSeed(seed int64) *Builder[G] {
	b.cfg.Seed = seed
	return b
}

func (b *Builder[G]) WithWorkers(workers int) *Builder[G] {
	b.cfg.Workers = workers
	return b
}

func (b *Builder[G]) WithDeadline(d time.Duration) *Builder[G] {
	b.cfg.Deadline = d
	return b
}

func (b *Builder[G]) WithLogger(logger *slog.Logger) *Builder[G] {
	b.cfg.Logger = logger
	return b
}

func (b *Builder[G]) WithObservers(observers ...Observer[G]) *Builder[G] {
	b.cfg.Observers = append(b.cfg.Observers, observers...)
	return b
}

// Build validates the accumulated settings and returns an independent Config.
func (b *Builder[G]) Build() (Config[G], error) {
	cfg := b.cfg
	cfg.Population = append([]model.Genome[G](nil), b.cfg.Population...)
	cfg.Observers = append([]Observer[G](nil), b.cfg.Observers...)
	cfg.ParentSelection.Operators = append([]ParentSelector[G](nil), b.cfg.ParentSelection.Operators...)
	cfg.Crossover.Operators = append([]Crossover[G](nil), b.cfg.Crossover.Operators...)
	cfg.Replacement.Operators = append([]Replacement[G](nil), b.cfg.Replacement.Operators...)
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if err := cfg.Validate(); err != nil {
		return Config[G]{}, err
	}
	return cfg, nil
}
