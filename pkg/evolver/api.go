package evolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"evolver/internal/evo"
	"evolver/internal/metrics"
	"evolver/internal/model"
	"evolver/internal/policy"
	"evolver/internal/problem"
	"evolver/internal/storage"
)

const defaultDBPath = "evolver.db"

// Library surface for custom problems.
type (
	Genome[G any]         = model.Genome[G]
	NoRepair              = model.NoRepair
	Chromosome[G any]     = model.Chromosome[G]
	Population[G any]     = model.Population[G]
	Config[G any]         = evo.Config[G]
	Builder[G any]        = evo.Builder[G]
	Result[G any]         = evo.Result[G]
	Observer[G any]       = evo.Observer[G]
	ObserverFunc[G any]   = evo.ObserverFunc[G]
	EpochReport[G any]    = evo.EpochReport[G]
	ParentSelector[G any] = evo.ParentSelector[G]
	Crossover[G any]      = evo.Crossover[G]
	Replacement[G any]    = evo.Replacement[G]
	Benchmark[G any]      = problem.Benchmark[G]
	Termination           = evo.Termination
	RunState              = evo.RunState
	OperatorSpec          = evo.OperatorSpec
	PolicyParams          = policy.Params
	EpochStats            = model.EpochStats
	RunRecord             = model.RunRecord
	PopulationSnapshot    = model.PopulationSnapshot
	MemberRecord          = model.MemberRecord
	RunRequest            = problem.Request
	FamilyRequest         = problem.FamilyRequest
	Event                 = problem.Event
	ProblemInfo           = problem.Info
	Metrics               = metrics.Collector
)

var (
	ErrConfiguration    = evo.ErrConfiguration
	ErrInvalidCandidate = evo.ErrInvalidCandidate
	ErrProblemNotFound  = problem.ErrProblemNotFound
	ErrUnsupportedStore = storage.ErrUnsupportedStore
	ErrRunNotFound      = errors.New("run not found")
)

func NewBuilder[G any]() *Builder[G] { return evo.NewBuilder[G]() }

// Evolve runs a custom problem without persistence.
func Evolve[G any](ctx context.Context, cfg Config[G]) (Result[G], error) {
	return evo.Run(ctx, cfg)
}

func NewMetrics() *Metrics { return metrics.NewCollector() }

// MetricsObserver feeds the epochs of a custom run into m under the given
// problem label.
func MetricsObserver[G any](m *Metrics, problemName string) Observer[G] {
	return metrics.Observer[G](m, problemName)
}

// RegisterProblem makes a custom benchmark runnable by name.
func RegisterProblem[G any](b *Benchmark[G]) error { return problem.Register(b) }

func Problems() []ProblemInfo { return problem.List() }

type Options struct {
	StoreKind string
	DBPath    string
	Logger    *slog.Logger
	Metrics   *Metrics
}

// Client runs registered problems and keeps their results in a store.
type Client struct {
	store   storage.Store
	logger  *slog.Logger
	metrics *Metrics
}

type RunSummary struct {
	RunID         string
	Problem       string
	StopReason    string
	Epochs        int
	BestID        string
	BestFitness   float64
	Elapsed       time.Duration
	History       []EpochStats
	Usage         map[string]map[string]int
	Probabilities map[string][]float64
	Estimates     map[string][]float64
}

type RunsRequest struct {
	Limit   int
	Problem string
}

type RunLookup struct {
	RunID  string
	Latest bool
}

func New(opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	store, err := storage.NewStore(opts.StoreKind, dbPath)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{store: store, logger: logger, metrics: opts.Metrics}, nil
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// Run solves the named problem and persists the run record, the epoch
// history and the final population. Canceled runs are persisted too and
// return the context error alongside their summary.
func (c *Client) Run(ctx context.Context, problemName string, req RunRequest) (RunSummary, error) {
	p, err := problem.Get(problemName)
	if err != nil {
		return RunSummary{}, err
	}
	if req.RunID == "" {
		req.RunID = model.NewID(nil)
	}
	if req.Logger == nil {
		req.Logger = c.logger.With("problem", problemName)
	}
	if c.metrics != nil {
		next := req.Observer
		req.Observer = func(ctx context.Context, ev problem.Event) error {
			c.metrics.ObserveEpoch(problemName, ev.Stats, ev.Probabilities)
			if next != nil {
				return next(ctx, ev)
			}
			return nil
		}
	}

	out, runErr := p.Solve(ctx, req)
	if out.RunID == "" {
		return RunSummary{}, runErr
	}
	if c.metrics != nil {
		c.metrics.ObserveRun(problemName, out.StopReason)
	}
	if err := c.persist(context.WithoutCancel(ctx), out); err != nil {
		return RunSummary{}, fmt.Errorf("persist run %s: %w", out.RunID, err)
	}

	return RunSummary{
		RunID:         out.RunID,
		Problem:       out.Problem,
		StopReason:    out.StopReason,
		Epochs:        out.Epochs,
		BestID:        out.Best.ID,
		BestFitness:   out.Best.Fitness,
		Elapsed:       out.Elapsed,
		History:       out.History,
		Usage:         out.Usage,
		Probabilities: out.Probabilities,
		Estimates:     out.Estimates,
	}, runErr
}

func (c *Client) persist(ctx context.Context, out problem.Outcome) error {
	version := storage.CurrentVersion()
	run := RunRecord{
		VersionedRecord: version,
		ID:              out.RunID,
		Problem:         out.Problem,
		Seed:            out.Seed,
		InitialSize:     out.Size,
		Epochs:          out.Epochs,
		StopReason:      out.StopReason,
		BestID:          out.Best.ID,
		BestFitness:     out.Best.Fitness,
		CreatedAtUTC:    time.Now().UTC(),
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return err
	}
	if err := c.store.SaveEpochStats(ctx, out.RunID, out.History); err != nil {
		return err
	}
	final := out.Final
	final.VersionedRecord = version
	return c.store.SaveSnapshot(ctx, final)
}

// Runs lists stored runs newest first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunRecord, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RunRecord, 0, min(len(runs), req.Limit))
	for _, run := range runs {
		if req.Problem != "" && run.Problem != req.Problem {
			continue
		}
		out = append(out, run)
		if len(out) == req.Limit {
			break
		}
	}
	return out, nil
}

// Describe returns the stored record of one run.
func (c *Client) Describe(ctx context.Context, lookup RunLookup) (RunRecord, error) {
	return c.resolve(ctx, lookup)
}

func (c *Client) History(ctx context.Context, lookup RunLookup) ([]EpochStats, error) {
	run, err := c.resolve(ctx, lookup)
	if err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetEpochStats(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: no history for %s", ErrRunNotFound, run.ID)
	}
	return history, nil
}

func (c *Client) Snapshot(ctx context.Context, lookup RunLookup) (PopulationSnapshot, error) {
	run, err := c.resolve(ctx, lookup)
	if err != nil {
		return PopulationSnapshot{}, err
	}
	snapshot, ok, err := c.store.GetSnapshot(ctx, run.ID)
	if err != nil {
		return PopulationSnapshot{}, err
	}
	if !ok {
		return PopulationSnapshot{}, fmt.Errorf("%w: no snapshot for %s", ErrRunNotFound, run.ID)
	}
	return snapshot, nil
}

// DeleteRun removes a stored run with its history and snapshot and returns
// the removed record.
func (c *Client) DeleteRun(ctx context.Context, lookup RunLookup) (RunRecord, error) {
	run, err := c.resolve(ctx, lookup)
	if err != nil {
		return RunRecord{}, err
	}
	if err := c.store.DeleteRun(ctx, run.ID); err != nil {
		return RunRecord{}, fmt.Errorf("delete run %s: %w", run.ID, err)
	}
	return run, nil
}

func (c *Client) resolve(ctx context.Context, lookup RunLookup) (RunRecord, error) {
	if lookup.Latest {
		runs, err := c.store.ListRuns(ctx)
		if err != nil {
			return RunRecord{}, err
		}
		if len(runs) == 0 {
			return RunRecord{}, fmt.Errorf("%w: no runs stored", ErrRunNotFound)
		}
		return runs[0], nil
	}
	if lookup.RunID == "" {
		return RunRecord{}, errors.New("run id is required unless latest is set")
	}
	run, ok, err := c.store.GetRun(ctx, lookup.RunID)
	if err != nil {
		return RunRecord{}, err
	}
	if !ok {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, lookup.RunID)
	}
	return run, nil
}
