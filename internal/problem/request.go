package problem

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"evolver/internal/evo"
	"evolver/internal/model"
	"evolver/internal/policy"
)

const (
	DefaultSize        = 50
	DefaultSelector    = evo.SelectorTournament
	DefaultReplacement = evo.ReplacementElitist
)

// FamilyRequest names the operators of one family and the policy choosing
// among them.
type FamilyRequest struct {
	Policy    string             `toml:"policy" json:"policy,omitempty"`
	Operators []evo.OperatorSpec `toml:"operators" json:"operators,omitempty"`
	Params    policy.Params      `toml:"params" json:"params"`
}

// Request configures one benchmark run. Zero values pick defaults; the
// rates are pointers so that an explicit 0 is honored.
type Request struct {
	Size   int   `toml:"size" json:"size"`
	Length int   `toml:"length" json:"length"`
	Seed   int64 `toml:"seed" json:"seed"`
	Epochs int   `toml:"epochs" json:"epochs"`
	// Target stops the run once the best fitness reaches it.
	Target     *float64      `toml:"target" json:"target,omitempty"`
	Stagnation int           `toml:"stagnation" json:"stagnation,omitempty"`
	Deadline   time.Duration `toml:"deadline" json:"deadline,omitempty"`

	MutationRate  *float64 `toml:"mutation_rate" json:"mutation_rate,omitempty"`
	CrossoverRate *float64 `toml:"crossover_rate" json:"crossover_rate,omitempty"`
	OffspringRate float64  `toml:"offspring_rate" json:"offspring_rate,omitempty"`
	MinSize       float64  `toml:"min_size" json:"min_size"`
	MaxSize       float64  `toml:"max_size" json:"max_size"`
	Workers       int      `toml:"workers" json:"workers"`
	Reward        string   `toml:"reward" json:"reward"`

	Selection   FamilyRequest `toml:"selection" json:"selection"`
	Crossover   FamilyRequest `toml:"crossover" json:"crossover"`
	Replacement FamilyRequest `toml:"replacement" json:"replacement"`

	RunID    string       `toml:"-" json:"-"`
	Logger   *slog.Logger `toml:"-" json:"-"`
	Observer EventFunc    `toml:"-" json:"-"`
}

// Event is the type-erased view of a committed epoch.
type Event struct {
	RunID         string
	Stats         model.EpochStats
	Elapsed       time.Duration
	Probabilities map[string][]float64
	// Snapshot encodes the population; it is only valid during the callback.
	Snapshot func() (model.PopulationSnapshot, error)
}

type EventFunc func(ctx context.Context, ev Event) error

// Outcome summarises a finished benchmark run.
type Outcome struct {
	RunID         string
	Problem       string
	Seed          int64
	Size          int
	StopReason    string
	Epochs        int
	Elapsed       time.Duration
	Best          model.MemberRecord
	History       []model.EpochStats
	Final         model.PopulationSnapshot
	Usage         map[string]map[string]int
	Probabilities map[string][]float64
	Estimates     map[string][]float64
}

func (r Request) withDefaults(length int, crossover string) Request {
	if r.Size <= 0 {
		r.Size = DefaultSize
	}
	if r.Length <= 0 {
		r.Length = length
	}
	if r.Epochs <= 0 {
		r.Epochs = evo.DefaultEpochs
	}
	if r.MutationRate == nil {
		v := evo.DefaultMutationRate
		r.MutationRate = &v
	}
	if r.CrossoverRate == nil {
		v := evo.DefaultCrossoverRate
		r.CrossoverRate = &v
	}
	if r.MinSize == 0 {
		r.MinSize = evo.DefaultMinSize
	}
	if r.MaxSize == 0 {
		r.MaxSize = evo.DefaultMaxSize
	}
	if r.Workers <= 0 {
		r.Workers = runtime.NumCPU()
	}
	if len(r.Selection.Operators) == 0 {
		r.Selection.Operators = []evo.OperatorSpec{{Name: DefaultSelector}}
	}
	if len(r.Crossover.Operators) == 0 {
		r.Crossover.Operators = []evo.OperatorSpec{{Name: crossover}}
	}
	if len(r.Replacement.Operators) == 0 {
		r.Replacement.Operators = []evo.OperatorSpec{{Name: DefaultReplacement}}
	}
	return r
}

func (r Request) termination() evo.Termination {
	conditions := []evo.Termination{evo.GenerationLimit{Epochs: r.Epochs}}
	if r.Target != nil {
		conditions = append(conditions, evo.FitnessThreshold{Target: *r.Target})
	}
	if r.Stagnation > 0 {
		conditions = append(conditions, evo.Stagnation{Epochs: r.Stagnation})
	}
	if len(conditions) == 1 {
		return conditions[0]
	}
	return evo.AnyOf(conditions...)
}
