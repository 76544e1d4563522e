package evo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"

	"evolver/internal/model"
)

type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	StopTerminated = "terminated"
	StopDeadline   = "deadline"
	StopCanceled   = "canceled"
	StopFailed     = "failed"
)

// Result is what a run leaves behind.
type Result[G any] struct {
	RunID      string
	Best       *model.Chromosome[G]
	Population model.Population[G]
	// History holds one entry per committed epoch, starting with epoch 0.
	History    []model.EpochStats
	Epochs     int
	StopReason string
	Elapsed    time.Duration
	// Usage counts operator applications per family and operator name.
	Usage         map[string]map[string]int
	Probabilities map[string][]float64
	// Estimates holds the reward estimates of adaptive families.
	Estimates map[string][]float64
}

// Engine owns one run: the population, the epoch counter and the live
// operator families. An Engine runs once.
type Engine[G any] struct {
	cfg    Config[G]
	rng    *rand.Rand
	logger *slog.Logger
	runID  string

	state   State
	epoch   int
	pop     model.Population[G]
	minSize int
	maxSize int

	selectors    *Family[ParentSelector[G]]
	crossovers   *Family[Crossover[G]]
	replacements *Family[Replacement[G]]

	history          []model.EpochStats
	best             *model.Chromosome[G]
	sinceImprovement int
	started          time.Time
}

// New validates cfg and prepares a run. Policies are instantiated here, so
// every engine starts from fresh policy state.
func New[G any](cfg Config[G]) (*Engine[G], error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	selectors, err := newFamily(FamilyParentSelection, cfg.ParentSelection)
	if err != nil {
		return nil, err
	}
	crossovers, err := newFamily(FamilyCrossover, cfg.Crossover)
	if err != nil {
		return nil, err
	}
	replacements, err := newFamily(FamilyReplacement, cfg.Replacement)
	if err != nil {
		return nil, err
	}

	e := &Engine[G]{
		cfg:          cfg,
		rng:          rand.New(rand.NewSource(cfg.Seed)),
		runID:        cfg.RunID,
		selectors:    selectors,
		crossovers:   crossovers,
		replacements: replacements,
	}
	if e.runID == "" {
		e.runID = model.NewID(nil)
	}
	e.logger = cfg.Logger.With("run_id", e.runID)
	e.minSize, e.maxSize = cfg.Bounds()
	return e, nil
}

func (e *Engine[G]) RunID() string { return e.runID }
func (e *Engine[G]) State() State  { return e.state }
func (e *Engine[G]) Epoch() int    { return e.epoch }

// Bounds returns the absolute population bounds.
func (e *Engine[G]) Bounds() (minSize, maxSize int) { return e.minSize, e.maxSize }

// Population returns the committed population. Members are shared.
func (e *Engine[G]) Population() model.Population[G] { return e.pop.Clone() }

func (e *Engine[G]) History() []model.EpochStats {
	return append([]model.EpochStats(nil), e.history...)
}

// Run evolves the population until the termination condition holds, the
// deadline passes or ctx is canceled. The last two return the best result
// committed so far; cancellation also returns ctx's error.
func (e *Engine[G]) Run(ctx context.Context) (Result[G], error) {
	if e.state != StateNotStarted {
		return Result[G]{}, fmt.Errorf("engine is %s", e.state)
	}
	e.state = StateRunning
	defer func() { e.state = StateTerminated }()

	e.started = time.Now()
	runCtx := ctx
	if e.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.cfg.Deadline)
		defer cancel()
	}

	e.logger.Info("run started",
		"size", len(e.cfg.Population),
		"min_size", e.minSize,
		"max_size", e.maxSize,
		"seed", e.cfg.Seed,
		"selection_policy", e.selectors.PolicyName(),
		"crossover_policy", e.crossovers.PolicyName(),
		"replacement_policy", e.replacements.PolicyName(),
	)

	if err := e.initialize(runCtx); err != nil {
		return e.interrupted(ctx, runCtx, err)
	}
	if err := e.notify(runCtx); err != nil {
		return e.interrupted(ctx, runCtx, err)
	}

	for !e.cfg.Termination.ShouldStop(e.runState()) {
		if err := runCtx.Err(); err != nil {
			return e.interrupted(ctx, runCtx, err)
		}
		if err := e.step(runCtx); err != nil {
			return e.interrupted(ctx, runCtx, err)
		}
		if err := e.notify(runCtx); err != nil {
			return e.interrupted(ctx, runCtx, err)
		}
	}

	res := e.result(StopTerminated)
	e.logger.Info("run finished", "epochs", res.Epochs, "best_fitness", bestFitness(res.Best), "elapsed", res.Elapsed)
	return res, nil
}

// interrupted maps a failed or cut-short run onto its result.
func (e *Engine[G]) interrupted(ctx, runCtx context.Context, err error) (Result[G], error) {
	switch {
	case ctx.Err() != nil:
		res := e.result(StopCanceled)
		e.logger.Warn("run canceled", "epochs", res.Epochs, "err", ctx.Err())
		return res, ctx.Err()
	case runCtx.Err() != nil:
		res := e.result(StopDeadline)
		e.logger.Warn("run deadline reached", "epochs", res.Epochs, "deadline", e.cfg.Deadline)
		if e.best == nil {
			return res, fmt.Errorf("deadline reached before the initial population was evaluated: %w", runCtx.Err())
		}
		return res, nil
	default:
		res := e.result(StopFailed)
		e.logger.Error("run failed", "epoch", e.epoch, "err", err)
		return res, err
	}
}

func (e *Engine[G]) initialize(ctx context.Context) error {
	pop := make(model.Population[G], 0, len(e.cfg.Population))
	for _, genome := range e.cfg.Population {
		pop = append(pop, model.NewChromosome(model.NewID(e.rng), genome.DeepCopy(), 0))
	}
	if err := pop.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if err := e.evaluate(ctx, pop); err != nil {
		return err
	}

	e.pop = pop
	stats := Summarize(0, pop)
	e.history = append(e.history, stats)
	e.best, _ = pop.Best()
	e.logger.Debug("population initialized", "best_fitness", stats.BestFitness, "mean_fitness", stats.MeanFitness)
	return nil
}

// step runs one epoch. Nothing observable changes until the final commit, so
// an error leaves the previous epoch intact.
func (e *Engine[G]) step(ctx context.Context) error {
	n := len(e.pop)

	replacementIdx, replacement := e.replacements.Next(e.rng)
	rate := e.cfg.OffspringRate
	if rate <= 0 {
		rate = replacement.OffspringRate()
	}
	target := min(max(int(math.Round(rate*float64(n))), 0), e.maxSize)

	selectorIdx, selector := e.selectors.Next(e.rng)
	crossoverIdx, crossover := e.crossovers.Next(e.rng)

	offspring, err := e.breed(selector, crossover, target)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.evaluate(ctx, offspring); err != nil {
		return err
	}

	eliminated, err := replacement.SelectForElimination(e.rng, e.pop, offspring)
	if err != nil {
		return fmt.Errorf("replacement %s: %w", replacement.Name(), err)
	}
	next, admitted, dropped, err := e.merge(offspring, eliminated)
	if err != nil {
		return fmt.Errorf("replacement %s: %w", replacement.Name(), err)
	}

	// Commit.
	prev := e.history[len(e.history)-1]
	for _, c := range next {
		if c.Born() <= e.epoch {
			c.IncrementAge()
		}
	}
	e.pop = next
	e.epoch++

	stats := Summarize(e.epoch, next)
	stats.Offspring = admitted
	stats.Eliminated = dropped
	stats.Selector = selector.Name()
	stats.Crossover = crossover.Name()
	stats.Replacement = replacement.Name()
	stats.Reward = e.cfg.Reward(prev, stats)
	e.selectors.Commit(selectorIdx, stats.Reward)
	e.crossovers.Commit(crossoverIdx, stats.Reward)
	e.replacements.Commit(replacementIdx, stats.Reward)
	e.history = append(e.history, stats)

	if best, ok := next.Best(); ok && best.CachedFitness() > e.best.CachedFitness() {
		e.best = best
		e.sinceImprovement = 0
	} else {
		e.sinceImprovement++
	}

	e.logger.Debug("epoch committed",
		"epoch", stats.Epoch,
		"size", stats.Size,
		"offspring", stats.Offspring,
		"eliminated", stats.Eliminated,
		"best_fitness", stats.BestFitness,
		"mean_fitness", stats.MeanFitness,
		"selector", stats.Selector,
		"crossover", stats.Crossover,
		"replacement", stats.Replacement,
		"reward", stats.Reward,
	)
	return nil
}

// breed mates couples into at most target offspring, then mutates and
// repairs them. Couples skipped by the crossover rate contribute nothing.
func (e *Engine[G]) breed(selector ParentSelector[G], crossover Crossover[G], target int) (model.Population[G], error) {
	if target == 0 {
		return nil, nil
	}
	couples, err := selector.SelectMatingPairs(e.rng, e.epoch, e.pop, (target+1)/2)
	if err != nil {
		return nil, fmt.Errorf("parent selection %s: %w", selector.Name(), err)
	}

	offspring := make(model.Population[G], 0, target)
	for _, couple := range couples {
		if len(offspring) == target {
			break
		}
		if e.rng.Float64() >= e.cfg.CrossoverRate {
			continue
		}
		children, err := crossover.Cross(e.rng, couple.A.Genes(), couple.B.Genes())
		if err != nil {
			return nil, fmt.Errorf("crossover %s of %s and %s: %w", crossover.Name(), couple.A.ID(), couple.B.ID(), err)
		}
		for i, genes := range children {
			if len(offspring) == target {
				break
			}
			parent := couple.A
			if i%2 == 1 {
				parent = couple.B
			}
			offspring = append(offspring, parent.Offspring(model.NewID(e.rng), genes, e.epoch+1))
		}
	}

	for _, child := range offspring {
		if e.rng.Float64() < e.cfg.MutationRate {
			if err := child.Mutate(e.rng); err != nil {
				return nil, err
			}
		}
		if err := child.Repair(); err != nil {
			return nil, err
		}
	}
	return offspring, nil
}

// evaluate computes and caches the fitness of every member concurrently.
func (e *Engine[G]) evaluate(ctx context.Context, pop model.Population[G]) error {
	if len(pop) == 0 {
		return nil
	}
	p := pool.New().
		WithMaxGoroutines(min(e.cfg.Workers, len(pop))).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
	for _, c := range pop {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, err := c.Fitness()
			return err
		})
	}
	if err := p.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// merge builds the next population from the survivors and the offspring and
// clips or pads it into the size bounds. Excess offspring are dropped
// weakest first; missing members are re-admitted from the eliminated ones,
// strongest first.
func (e *Engine[G]) merge(offspring model.Population[G], eliminated []int) (model.Population[G], int, int, error) {
	drop := make([]bool, len(e.pop))
	for _, idx := range eliminated {
		if idx < 0 || idx >= len(e.pop) {
			return nil, 0, 0, fmt.Errorf("elimination index %d out of range [0, %d)", idx, len(e.pop))
		}
		drop[idx] = true
	}

	survivors := make(model.Population[G], 0, len(e.pop))
	var removed model.Population[G]
	for i, c := range e.pop {
		if drop[i] {
			removed = append(removed, c)
		} else {
			survivors = append(survivors, c)
		}
	}

	if room := e.maxSize - len(survivors); len(offspring) > room {
		offspring = fittest(offspring, max(room, 0))
	}
	if missing := e.minSize - len(survivors) - len(offspring); missing > 0 {
		back := fittest(removed, min(missing, len(removed)))
		survivors = append(survivors, back...)
	}

	next := make(model.Population[G], 0, len(survivors)+len(offspring))
	next = append(next, survivors...)
	next = append(next, offspring...)
	if err := next.Validate(); err != nil {
		return nil, 0, 0, err
	}
	return next, len(offspring), len(e.pop) - len(survivors), nil
}

// fittest returns the k members of pop with the highest fitness, in
// population order.
func fittest[G any](pop model.Population[G], k int) model.Population[G] {
	ranked := pop.Ranked()[:k]
	sort.Ints(ranked)
	out := make(model.Population[G], 0, k)
	for _, idx := range ranked {
		out = append(out, pop[idx])
	}
	return out
}

// notify hands the committed epoch to the observers.
func (e *Engine[G]) notify(ctx context.Context) error {
	if len(e.cfg.Observers) == 0 {
		return nil
	}
	report := EpochReport[G]{
		RunID:         e.runID,
		Stats:         e.history[len(e.history)-1],
		Population:    e.pop,
		Elapsed:       time.Since(e.started),
		Probabilities: e.probabilities(),
	}
	var errs []error
	for _, o := range e.cfg.Observers {
		if err := o.OnEpoch(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("observer at epoch %d: %w", e.epoch, err)
	}
	return nil
}

func (e *Engine[G]) runState() RunState {
	stats := e.history[len(e.history)-1]
	return RunState{
		Epoch:            e.epoch,
		Size:             len(e.pop),
		BestFitness:      stats.BestFitness,
		MeanFitness:      stats.MeanFitness,
		StdDev:           stats.StdDev,
		Elapsed:          time.Since(e.started),
		SinceImprovement: e.sinceImprovement,
	}
}

func (e *Engine[G]) probabilities() map[string][]float64 {
	return perFamily(e.selectors.Probabilities(), e.crossovers.Probabilities(), e.replacements.Probabilities())
}

func (e *Engine[G]) estimates() map[string][]float64 {
	return perFamily(e.selectors.Estimates(), e.crossovers.Estimates(), e.replacements.Estimates())
}

func perFamily(selection, crossover, replacement []float64) map[string][]float64 {
	out := map[string][]float64{}
	if selection != nil {
		out[FamilyParentSelection] = selection
	}
	if crossover != nil {
		out[FamilyCrossover] = crossover
	}
	if replacement != nil {
		out[FamilyReplacement] = replacement
	}
	return out
}

func (e *Engine[G]) result(reason string) Result[G] {
	res := Result[G]{
		RunID:      e.runID,
		Population: e.pop.Clone(),
		History:    e.History(),
		Epochs:     e.epoch,
		StopReason: reason,
		Elapsed:    time.Since(e.started),
		Usage: map[string]map[string]int{
			FamilyParentSelection: e.selectors.Usage(),
			FamilyCrossover:       e.crossovers.Usage(),
			FamilyReplacement:     e.replacements.Usage(),
		},
		Probabilities: e.probabilities(),
		Estimates:     e.estimates(),
	}
	if e.best != nil {
		res.Best = e.best.Clone()
	}
	return res
}

func bestFitness[G any](c *model.Chromosome[G]) float64 {
	if c == nil {
		return math.NaN()
	}
	return c.CachedFitness()
}

// Run builds an engine from cfg and runs it.
func Run[G any](ctx context.Context, cfg Config[G]) (Result[G], error) {
	e, err := New(cfg)
	if err != nil {
		return Result[G]{}, err
	}
	return e.Run(ctx)
}
