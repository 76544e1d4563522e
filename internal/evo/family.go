package evo

import (
	"fmt"
	"math/rand"

	"evolver/internal/policy"
)

const (
	FamilyParentSelection = "parent_selection"
	FamilyCrossover       = "crossover"
	FamilyReplacement     = "replacement"
)

// FamilySpec registers the operators of one family together with the policy
// choosing among them. An empty Policy is resolved automatically: a single
// operator uses first choice, custom weights imply the custom weight policy,
// anything else draws at random.
type FamilySpec[O Operator] struct {
	Operators    []O
	Policy       string
	PolicyParams policy.Params
}

// Family binds a set of operators to a live policy instance.
type Family[O Operator] struct {
	kind   string
	ops    []O
	policy policy.Policy
	usage  []int
}

func newFamily[O Operator](kind string, spec FamilySpec[O]) (*Family[O], error) {
	if len(spec.Operators) == 0 {
		return nil, fmt.Errorf("%w: %s: no operators registered", ErrConfiguration, kind)
	}

	weights := make([]float64, len(spec.Operators))
	custom := false
	for i, op := range spec.Operators {
		if any(op) == nil {
			return nil, fmt.Errorf("%w: %s: operator %d is nil", ErrConfiguration, kind, i)
		}
		w := op.CustomWeight()
		if w < 0 {
			return nil, fmt.Errorf("%w: %s: operator %s has negative custom weight %v", ErrConfiguration, kind, op.Name(), w)
		}
		if w != 0 {
			custom = true
		}
		weights[i] = w
	}

	name := spec.Policy
	if name != "" {
		name = policy.NormalizeName(name)
		if _, err := policy.FromConfig(name, spec.PolicyParams); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrConfiguration, kind, err)
		}
		if custom && name != policy.CustomWeightName {
			return nil, fmt.Errorf("%w: %s: custom operator weights require the %s policy, got %s",
				ErrConfiguration, kind, policy.CustomWeightName, name)
		}
	}
	switch {
	case len(spec.Operators) == 1:
		name = policy.FirstChoiceName
	case name == "" && custom:
		name = policy.CustomWeightName
	case name == "":
		name = policy.RandomChoiceName
	}

	p, err := policy.FromConfig(name, spec.PolicyParams)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfiguration, kind, err)
	}
	if err := p.Apply(weights); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfiguration, kind, err)
	}

	return &Family[O]{
		kind:   kind,
		ops:    append([]O(nil), spec.Operators...),
		policy: p,
		usage:  make([]int, len(spec.Operators)),
	}, nil
}

// Next asks the policy for the operator to apply this cycle. Nothing is
// counted until Commit.
func (f *Family[O]) Next(rng *rand.Rand) (int, O) {
	idx := f.policy.Select(rng)
	if idx < 0 || idx >= len(f.ops) {
		idx = 0
	}
	return idx, f.ops[idx]
}

// Commit records a completed cycle of the operator at idx and credits it
// with reward.
func (f *Family[O]) Commit(idx int, reward float64) {
	if idx < 0 || idx >= len(f.ops) {
		return
	}
	f.usage[idx]++
	f.policy.Feedback(idx, reward)
}

func (f *Family[O]) Kind() string       { return f.kind }
func (f *Family[O]) PolicyName() string { return f.policy.Name() }

// Usage returns how often each operator ran, keyed by operator name.
func (f *Family[O]) Usage() map[string]int {
	out := make(map[string]int, len(f.ops))
	for i, op := range f.ops {
		out[op.Name()] += f.usage[i]
	}
	return out
}

// Probabilities returns the selection distribution of adaptive policies, or
// nil.
func (f *Family[O]) Probabilities() []float64 {
	if p, ok := f.policy.(policy.Adaptive); ok {
		return p.Probabilities()
	}
	return nil
}

// Estimates returns the learned reward estimates of adaptive policies, or nil.
func (f *Family[O]) Estimates() []float64 {
	if p, ok := f.policy.(policy.Adaptive); ok {
		return p.Estimates()
	}
	return nil
}
