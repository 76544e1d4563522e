package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"evolver/internal/evo"
	"evolver/pkg/evolver"
)

// runConfig is the file form of a run: the problem name plus its request.
type runConfig struct {
	Problem string `toml:"problem" json:"problem"`
	evolver.RunRequest
}

func loadRunConfig(path string) (runConfig, error) {
	var cfg runConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return runConfig{}, err
		}
		dec := json.NewDecoder(strings.NewReader(string(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return runConfig{}, fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return runConfig{}, fmt.Errorf("decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return runConfig{}, fmt.Errorf("decode %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
	}
	return cfg, nil
}

func loadOrDefaultRunConfig(path string) (runConfig, error) {
	if path == "" {
		return runConfig{}, nil
	}
	return loadRunConfig(path)
}

// runFlags holds the flag values that override a loaded config.
type runFlags struct {
	problem           *string
	size              *int
	length            *int
	seed              *int64
	epochs            *int
	target            *float64
	stagnation        *int
	deadline          *time.Duration
	mutationRate      *float64
	crossoverRate     *float64
	offspringRate     *float64
	minSize           *float64
	maxSize           *float64
	workers           *int
	reward            *string
	runID             *string
	selection         *string
	selectionPolicy   *string
	crossover         *string
	crossoverPolicy   *string
	replacement       *string
	replacementPolicy *string
}

func addRunFlags(fs *flag.FlagSet) runFlags {
	return runFlags{
		problem:           fs.String("problem", "", "problem to solve, see 'evolverctl problems'"),
		size:              fs.Int("size", 0, "initial population size"),
		length:            fs.Int("length", 0, "genome length"),
		seed:              fs.Int64("seed", 1, "random seed"),
		epochs:            fs.Int("epochs", 0, "epoch limit"),
		target:            fs.Float64("target", 0, "stop once the best fitness reaches this value"),
		stagnation:        fs.Int("stagnation", 0, "stop after this many epochs without improvement"),
		deadline:          fs.Duration("deadline", 0, "wall-clock limit of the run"),
		mutationRate:      fs.Float64("mutation-rate", evo.DefaultMutationRate, "per-offspring mutation probability"),
		crossoverRate:     fs.Float64("crossover-rate", evo.DefaultCrossoverRate, "per-couple crossover probability"),
		offspringRate:     fs.Float64("offspring-rate", 0, "fraction of the population bred per epoch; 0 defers to the replacement"),
		minSize:           fs.Float64("min-size", 0, "lower population bound as a fraction of the initial size"),
		maxSize:           fs.Float64("max-size", 0, "upper population bound as a multiple of the initial size"),
		workers:           fs.Int("workers", 0, "parallel fitness evaluations"),
		reward:            fs.String("reward", "", "reward function: best_improvement|mean_improvement"),
		runID:             fs.String("run-id", "", "explicit run id"),
		selection:         fs.String("selection", "", "parent selectors, e.g. tournament,roulette:2"),
		selectionPolicy:   fs.String("selection-policy", "", "policy choosing a parent selector"),
		crossover:         fs.String("crossover", "", "crossover operators"),
		crossoverPolicy:   fs.String("crossover-policy", "", "policy choosing a crossover"),
		replacement:       fs.String("replacement", "", "replacement strategies"),
		replacementPolicy: fs.String("replacement-policy", "", "policy choosing a replacement"),
	}
}

func (f runFlags) apply(cfg *runConfig, set map[string]bool) error {
	req := &cfg.RunRequest
	if set["problem"] {
		cfg.Problem = *f.problem
	}
	if set["size"] {
		req.Size = *f.size
	}
	if set["length"] {
		req.Length = *f.length
	}
	if set["seed"] || cfg.Seed == 0 {
		req.Seed = *f.seed
	}
	if set["epochs"] {
		req.Epochs = *f.epochs
	}
	if set["target"] {
		v := *f.target
		req.Target = &v
	}
	if set["stagnation"] {
		req.Stagnation = *f.stagnation
	}
	if set["deadline"] {
		req.Deadline = *f.deadline
	}
	if set["mutation-rate"] {
		v := *f.mutationRate
		req.MutationRate = &v
	}
	if set["crossover-rate"] {
		v := *f.crossoverRate
		req.CrossoverRate = &v
	}
	if set["offspring-rate"] {
		req.OffspringRate = *f.offspringRate
	}
	if set["min-size"] {
		req.MinSize = *f.minSize
	}
	if set["max-size"] {
		req.MaxSize = *f.maxSize
	}
	if set["workers"] {
		req.Workers = *f.workers
	}
	if set["reward"] {
		req.Reward = *f.reward
	}
	if set["run-id"] {
		req.RunID = *f.runID
	}

	families := []struct {
		ops, policy string
		opsValue    *string
		policyValue *string
		target      *evolver.FamilyRequest
	}{
		{"selection", "selection-policy", f.selection, f.selectionPolicy, &req.Selection},
		{"crossover", "crossover-policy", f.crossover, f.crossoverPolicy, &req.Crossover},
		{"replacement", "replacement-policy", f.replacement, f.replacementPolicy, &req.Replacement},
	}
	var errs []error
	for _, fam := range families {
		if set[fam.ops] {
			specs, err := evo.ParseOperatorSpecs(*fam.opsValue)
			if err != nil {
				errs = append(errs, fmt.Errorf("--%s: %w", fam.ops, err))
				continue
			}
			fam.target.Operators = specs
		}
		if set[fam.policy] {
			fam.target.Policy = *fam.policyValue
		}
	}
	return errors.Join(errs...)
}
