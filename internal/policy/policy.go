package policy

import (
	"errors"
	"fmt"
	"math/rand"

	"evolver/internal/wheel"
)

const (
	FirstChoiceName     = "first_choice"
	RoundRobinName      = "round_robin"
	RandomChoiceName    = "random"
	CustomWeightName    = "custom_weight"
	AdaptivePursuitName = "adaptive_pursuit"
)

var ErrInvalidPolicy = errors.New("invalid operator selection policy")

// Policy picks which of n registered operators of one family runs in a cycle.
type Policy interface {
	Name() string
	// Apply registers the operators once, given their custom weights.
	Apply(weights []float64) error
	Select(rng *rand.Rand) int
	// Feedback reports the reward observed for the operator at index.
	Feedback(index int, reward float64)
}

// Adaptive is implemented by policies that learn from Feedback.
type Adaptive interface {
	Policy
	Probabilities() []float64
	Estimates() []float64
}

type FirstChoice struct{}

func (FirstChoice) Name() string { return FirstChoiceName }

func (FirstChoice) Apply(weights []float64) error {
	if len(weights) == 0 {
		return fmt.Errorf("%w: no operators registered", ErrInvalidPolicy)
	}
	return nil
}

func (FirstChoice) Select(_ *rand.Rand) int { return 0 }

func (FirstChoice) Feedback(int, float64) {}

// RoundRobin cycles through the operators in registration order.
type RoundRobin struct {
	n    int
	next int
}

func (*RoundRobin) Name() string { return RoundRobinName }

func (p *RoundRobin) Apply(weights []float64) error {
	if len(weights) == 0 {
		return fmt.Errorf("%w: no operators registered", ErrInvalidPolicy)
	}
	p.n = len(weights)
	p.next = 0
	return nil
}

func (p *RoundRobin) Select(_ *rand.Rand) int {
	if p.n == 0 {
		return 0
	}
	idx := p.next
	p.next = (p.next + 1) % p.n
	return idx
}

func (*RoundRobin) Feedback(int, float64) {}

// RandomChoice draws operators uniformly.
type RandomChoice struct {
	wheel *wheel.Wheel
}

func (*RandomChoice) Name() string { return RandomChoiceName }

func (p *RandomChoice) Apply(weights []float64) error {
	if len(weights) == 0 {
		return fmt.Errorf("%w: no operators registered", ErrInvalidPolicy)
	}
	p.wheel = wheel.Uniform(len(weights))
	return nil
}

func (p *RandomChoice) Select(rng *rand.Rand) int {
	return p.wheel.Spin(rng)
}

func (*RandomChoice) Feedback(int, float64) {}

// CustomWeight draws operators proportionally to their static custom weights.
// Operators left at 0 never run unless every weight is 0, in which case the
// draw is uniform.
type CustomWeight struct {
	wheel *wheel.Wheel
	probs []float64
}

func (*CustomWeight) Name() string { return CustomWeightName }

func (p *CustomWeight) Apply(weights []float64) error {
	if len(weights) == 0 {
		return fmt.Errorf("%w: no operators registered", ErrInvalidPolicy)
	}
	w, err := wheel.New(weights)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	p.wheel = w
	p.probs = make([]float64, len(weights))
	for i := range weights {
		p.probs[i] = w.Probability(i)
	}
	return nil
}

func (p *CustomWeight) Select(rng *rand.Rand) int {
	return p.wheel.Spin(rng)
}

func (*CustomWeight) Feedback(int, float64) {}

// Probabilities returns the normalized custom weights.
func (p *CustomWeight) Probabilities() []float64 {
	return append([]float64(nil), p.probs...)
}
