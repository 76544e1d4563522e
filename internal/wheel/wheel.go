// Package wheel implements the weighted roulette wheel every selection and
// replacement strategy samples through.
package wheel

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

var ErrInvalidWeight = errors.New("invalid wheel weight")

// Wheel draws candidate indices with probability proportional to weight.
// When every remaining weight is zero the wheel draws uniformly.
type Wheel struct {
	weights []float64
	prefix  []float64
	slots   []int
	total   float64
}

// New builds a wheel over len(weights) candidates identified by position.
func New(weights []float64) (*Wheel, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("%w: no candidates", ErrInvalidWeight)
	}
	w := &Wheel{
		weights: make([]float64, len(weights)),
		slots:   make([]int, len(weights)),
	}
	for i, v := range weights {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: candidate %d has weight %v", ErrInvalidWeight, i, v)
		}
		w.weights[i] = v
		w.slots[i] = i
	}
	w.rebuild()
	return w, nil
}

// NewFunc builds a wheel over candidates using weight to score each one.
func NewFunc[T any](candidates []T, weight func(T) float64) (*Wheel, error) {
	weights := make([]float64, len(candidates))
	for i, c := range candidates {
		weights[i] = weight(c)
	}
	return New(weights)
}

// Uniform builds a wheel with equal weight on n candidates.
func Uniform(n int) *Wheel {
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1
	}
	w, err := New(weights)
	if err != nil {
		return &Wheel{}
	}
	return w
}

// Len reports the number of candidates still on the wheel.
func (w *Wheel) Len() int {
	return len(w.slots)
}

// Probability returns the chance of drawing candidate i on the next Spin, or 0
// when i is no longer on the wheel.
func (w *Wheel) Probability(i int) float64 {
	slot := w.slotOf(i)
	if slot < 0 {
		return 0
	}
	if w.total <= 0 {
		return 1 / float64(len(w.slots))
	}
	return w.weights[slot] / w.total
}

// Spin draws one candidate without changing the wheel.
func (w *Wheel) Spin(rng *rand.Rand) int {
	return w.slots[w.spinSlot(rng)]
}

// SpinAndReadjust draws one candidate and removes it, so one wheel never
// returns the same candidate twice. ok is false once the wheel is empty.
func (w *Wheel) SpinAndReadjust(rng *rand.Rand) (int, bool) {
	if len(w.slots) == 0 {
		return 0, false
	}
	slot := w.spinSlot(rng)
	picked := w.slots[slot]
	w.weights = append(w.weights[:slot], w.weights[slot+1:]...)
	w.slots = append(w.slots[:slot], w.slots[slot+1:]...)
	w.rebuild()
	return picked, true
}

// SpinExcept draws one candidate other than exclude without changing the
// wheel. ok is false when exclude is the only candidate left.
func (w *Wheel) SpinExcept(rng *rand.Rand, exclude int) (int, bool) {
	slot := w.slotOf(exclude)
	if slot < 0 {
		if len(w.slots) == 0 {
			return 0, false
		}
		return w.Spin(rng), true
	}
	if len(w.slots) < 2 {
		return 0, false
	}

	remaining := w.total - w.weights[slot]
	if w.total <= 0 || remaining <= 0 {
		pick := rng.Intn(len(w.slots) - 1)
		if pick >= slot {
			pick++
		}
		return w.slots[pick], true
	}

	u := rng.Float64() * remaining
	start := w.prefix[slot] - w.weights[slot]
	if u >= start {
		u += w.weights[slot]
	}
	found := w.search(u)
	if found == slot {
		// Rounding at the excluded slot's upper edge.
		found = w.nextNonZero(slot)
	}
	return w.slots[found], true
}

func (w *Wheel) spinSlot(rng *rand.Rand) int {
	if w.total <= 0 {
		return rng.Intn(len(w.slots))
	}
	return w.search(rng.Float64() * w.total)
}

// search returns the first slot whose prefix sum exceeds u.
func (w *Wheel) search(u float64) int {
	i := sort.Search(len(w.prefix), func(i int) bool { return w.prefix[i] > u })
	if i >= len(w.prefix) {
		i = w.lastNonZero()
	}
	return i
}

func (w *Wheel) nextNonZero(slot int) int {
	for i := slot + 1; i < len(w.weights); i++ {
		if w.weights[i] > 0 {
			return i
		}
	}
	for i := slot - 1; i >= 0; i-- {
		if w.weights[i] > 0 {
			return i
		}
	}
	return slot
}

func (w *Wheel) lastNonZero() int {
	for i := len(w.weights) - 1; i >= 0; i-- {
		if w.weights[i] > 0 {
			return i
		}
	}
	return len(w.weights) - 1
}

func (w *Wheel) slotOf(candidate int) int {
	for slot, c := range w.slots {
		if c == candidate {
			return slot
		}
	}
	return -1
}

func (w *Wheel) rebuild() {
	w.prefix = w.prefix[:0]
	if cap(w.prefix) < len(w.weights) {
		w.prefix = make([]float64, 0, len(w.weights))
	}
	acc := 0.0
	for _, v := range w.weights {
		acc += v
		w.prefix = append(w.prefix, acc)
	}
	w.total = acc
}
