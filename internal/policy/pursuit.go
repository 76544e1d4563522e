package policy

import (
	"fmt"
	"math/rand"

	"evolver/internal/wheel"
)

const (
	DefaultPMin  = 0.05
	DefaultAlpha = 0.3
	DefaultBeta  = 0.3
)

// AdaptivePursuit keeps a selection probability and a reward estimate per
// operator. Each Feedback moves the estimate of the rewarded operator towards
// the reward and then pursues the current best estimate: its probability moves
// towards pMax = 1-(n-1)*PMin while every other probability moves towards PMin.
// Probabilities always sum to 1 and never drop below PMin.
type AdaptivePursuit struct {
	PMin  float64
	Alpha float64
	Beta  float64
	// Window > 0 replaces the exponential estimate with the mean of the
	// last Window rewards of each operator.
	Window int

	p       []float64
	q       []float64
	history [][]float64
}

func NewAdaptivePursuit(pMin, alpha, beta float64, window int) *AdaptivePursuit {
	return &AdaptivePursuit{PMin: pMin, Alpha: alpha, Beta: beta, Window: window}
}

func (*AdaptivePursuit) Name() string { return AdaptivePursuitName }

func (a *AdaptivePursuit) Apply(weights []float64) error {
	n := len(weights)
	if n == 0 {
		return fmt.Errorf("%w: no operators registered", ErrInvalidPolicy)
	}
	if a.Alpha <= 0 || a.Alpha > 1 {
		return fmt.Errorf("%w: alpha must be in (0, 1], got %v", ErrInvalidPolicy, a.Alpha)
	}
	if a.Beta <= 0 || a.Beta > 1 {
		return fmt.Errorf("%w: beta must be in (0, 1], got %v", ErrInvalidPolicy, a.Beta)
	}
	if a.PMin < 0 || (n > 1 && a.PMin*float64(n) >= 1) {
		return fmt.Errorf("%w: pmin %v leaves no room to pursue among %d operators", ErrInvalidPolicy, a.PMin, n)
	}
	if a.Window < 0 {
		return fmt.Errorf("%w: reward window must be >= 0", ErrInvalidPolicy)
	}

	a.p = make([]float64, n)
	a.q = make([]float64, n)
	for i := range a.p {
		a.p[i] = 1 / float64(n)
	}
	a.history = nil
	if a.Window > 0 {
		a.history = make([][]float64, n)
	}
	return nil
}

func (a *AdaptivePursuit) Select(rng *rand.Rand) int {
	if len(a.p) <= 1 {
		return 0
	}
	w, err := wheel.New(a.p)
	if err != nil {
		return 0
	}
	return w.Spin(rng)
}

func (a *AdaptivePursuit) Feedback(index int, reward float64) {
	n := len(a.p)
	if index < 0 || index >= n {
		return
	}
	a.updateEstimate(index, reward)
	if n == 1 {
		return
	}

	best := 0
	for i := 1; i < n; i++ {
		if a.q[i] > a.q[best] {
			best = i
		}
	}

	pMax := 1 - float64(n-1)*a.PMin
	for i := range a.p {
		if i == best {
			a.p[i] += a.Beta * (pMax - a.p[i])
		} else {
			a.p[i] += a.Beta * (a.PMin - a.p[i])
		}
	}
	a.p = normalizeWithFloor(a.p, a.PMin)
}

func (a *AdaptivePursuit) updateEstimate(index int, reward float64) {
	if a.Window > 0 {
		h := append(a.history[index], reward)
		if len(h) > a.Window {
			h = h[len(h)-a.Window:]
		}
		a.history[index] = h
		sum := 0.0
		for _, r := range h {
			sum += r
		}
		a.q[index] = sum / float64(len(h))
		return
	}
	a.q[index] += a.Alpha * (reward - a.q[index])
}

func (a *AdaptivePursuit) Probabilities() []float64 {
	return append([]float64(nil), a.p...)
}

func (a *AdaptivePursuit) Estimates() []float64 {
	return append([]float64(nil), a.q...)
}

// normalizeWithFloor clamps every entry to floor and redistributes the
// remaining mass proportionally to each entry's excess over floor, so the
// result sums to 1 with no entry below floor.
func normalizeWithFloor(p []float64, floor float64) []float64 {
	n := len(p)
	free := 1 - floor*float64(n)
	if free < 0 {
		free = 0
	}
	excess := make([]float64, n)
	total := 0.0
	for i, v := range p {
		if v > floor {
			excess[i] = v - floor
			total += excess[i]
		}
	}
	out := make([]float64, n)
	for i := range p {
		if total <= 0 {
			out[i] = 1 / float64(n)
			continue
		}
		out[i] = floor + free*excess[i]/total
	}
	return out
}
