package policy

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evolver/internal/model"
)

func TestFirstChoiceAlwaysReturnsFirst(t *testing.T) {
	p := FirstChoice{}
	require.NoError(t, p.Apply([]float64{0, 0, 0}))
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		assert.Equal(t, 0, p.Select(rng))
	}
}

func TestRoundRobinWrapsAround(t *testing.T) {
	p := &RoundRobin{}
	require.NoError(t, p.Apply([]float64{0, 0, 0}))
	got := make([]int, 0, 7)
	for i := 0; i < 7; i++ {
		got = append(got, p.Select(nil))
	}
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2, 0}, got)
}

func TestRandomChoiceIsUniform(t *testing.T) {
	p := &RandomChoice{}
	require.NoError(t, p.Apply(make([]float64, 4)))
	rng := rand.New(rand.NewSource(2))
	counts := make([]int, 4)
	for i := 0; i < 20000; i++ {
		counts[p.Select(rng)]++
	}
	for _, c := range counts {
		assert.InDelta(t, 0.25, float64(c)/20000, 0.02)
	}
}

func TestCustomWeightFollowsWeights(t *testing.T) {
	p := &CustomWeight{}
	require.NoError(t, p.Apply([]float64{1, 3}))
	assert.InDeltaSlice(t, []float64{0.25, 0.75}, p.Probabilities(), 1e-12)

	rng := rand.New(rand.NewSource(3))
	second := 0
	for i := 0; i < 20000; i++ {
		if p.Select(rng) == 1 {
			second++
		}
	}
	assert.InDelta(t, 0.75, float64(second)/20000, 0.02)
}

func TestCustomWeightRejectsNegativeWeights(t *testing.T) {
	p := &CustomWeight{}
	require.ErrorIs(t, p.Apply([]float64{1, -2}), ErrInvalidPolicy)
}

func TestAdaptivePursuitKeepsDistributionInvariants(t *testing.T) {
	for _, n := range []int{2, 3, 5, 8} {
		p := NewAdaptivePursuit(0.05, 0.4, 0.25, 0)
		require.NoError(t, p.Apply(make([]float64, n)))
		rng := rand.New(rand.NewSource(int64(n)))
		for cycle := 0; cycle < 500; cycle++ {
			k := p.Select(rng)
			p.Feedback(k, rng.Float64()*float64(k+1))

			probs := p.Probabilities()
			sum := 0.0
			for _, v := range probs {
				sum += v
				require.GreaterOrEqual(t, v, 0.05-1e-12)
			}
			require.InDelta(t, 1.0, sum, 1e-9)
		}
	}
}

func TestAdaptivePursuitConvergesToRewardingOperator(t *testing.T) {
	for _, n := range []int{2, 3} {
		const pMin = 0.05
		p := NewAdaptivePursuit(pMin, 0.5, 0.3, 0)
		require.NoError(t, p.Apply(make([]float64, n)))
		rng := rand.New(rand.NewSource(17))
		for cycle := 0; cycle < 400; cycle++ {
			k := p.Select(rng)
			reward := 0.0
			if k == n-1 {
				reward = 1
			}
			p.Feedback(k, reward)
		}
		probs := p.Probabilities()
		assert.InDelta(t, 1-float64(n-1)*pMin, probs[n-1], 1e-3)
		for i := 0; i < n-1; i++ {
			assert.InDelta(t, pMin, probs[i], 1e-3)
		}
	}
}

func TestAdaptivePursuitBreaksTiesByLowestIndex(t *testing.T) {
	p := NewAdaptivePursuit(0.1, 0.5, 0.5, 0)
	require.NoError(t, p.Apply(make([]float64, 3)))
	p.Feedback(2, 0)
	probs := p.Probabilities()
	assert.Greater(t, probs[0], probs[1])
	assert.InDelta(t, probs[1], probs[2], 1e-12)
}

func TestAdaptivePursuitWindowAveragesRecentRewards(t *testing.T) {
	p := NewAdaptivePursuit(0.1, 0.5, 0.5, 2)
	require.NoError(t, p.Apply(make([]float64, 2)))
	p.Feedback(1, 1)
	p.Feedback(1, 0)
	p.Feedback(1, 0.5)
	assert.InDelta(t, 0.25, p.Estimates()[1], 1e-12)
}

func TestAdaptivePursuitSingleOperatorDegenerates(t *testing.T) {
	p := NewAdaptivePursuit(0.05, 0.3, 0.3, 0)
	require.NoError(t, p.Apply([]float64{0}))
	p.Feedback(0, 1)
	assert.Equal(t, []float64{1}, p.Probabilities())
	assert.Equal(t, 0, p.Select(rand.New(rand.NewSource(1))))
}

func TestAdaptivePursuitRejectsOversizedFloor(t *testing.T) {
	p := NewAdaptivePursuit(0.5, 0.3, 0.3, 0)
	require.ErrorIs(t, p.Apply(make([]float64, 2)), ErrInvalidPolicy)
}

func TestNormalizeWithFloor(t *testing.T) {
	out := normalizeWithFloor([]float64{0.9, 0.01, 0.3}, 0.1)
	sum := 0.0
	for _, v := range out {
		sum += v
		assert.GreaterOrEqual(t, v, 0.1-1e-12)
	}
	assert.InDelta(t, 1, sum, 1e-12)
	assert.InDelta(t, 0.1, out[1], 1e-12)
}

func TestFromConfig(t *testing.T) {
	cases := map[string]string{
		"":            "",
		"rr":          RoundRobinName,
		"random":      RandomChoiceName,
		"weighted":    CustomWeightName,
		"pursuit":     AdaptivePursuitName,
		"first":       FirstChoiceName,
		"round_robin": RoundRobinName,
	}
	for input, want := range cases {
		p, err := FromConfig(input, Params{})
		if want == "" {
			require.ErrorIs(t, err, ErrInvalidPolicy)
			continue
		}
		require.NoError(t, err, input)
		assert.Equal(t, want, p.Name())
	}

	p, err := FromConfig("adaptive", Params{})
	require.NoError(t, err)
	ap := p.(*AdaptivePursuit)
	assert.Equal(t, DefaultPMin, ap.PMin)
	assert.Equal(t, DefaultAlpha, ap.Alpha)
}

func TestFromConfigHonorsZeroFloor(t *testing.T) {
	zero := 0.0
	p, err := FromConfig(AdaptivePursuitName, Params{PMin: &zero, Alpha: 1, Beta: 1})
	require.NoError(t, err)
	ap := p.(*AdaptivePursuit)
	assert.Zero(t, ap.PMin)

	require.NoError(t, ap.Apply(make([]float64, 2)))
	ap.Feedback(1, 1)
	assert.Equal(t, []float64{0, 1}, ap.Probabilities())
	assert.Equal(t, 1, ap.Select(rand.New(rand.NewSource(4))))
}

func TestRewards(t *testing.T) {
	prev := model.EpochStats{BestFitness: 10, MeanFitness: 4}
	cur := model.EpochStats{BestFitness: 11, MeanFitness: 3}
	assert.InDelta(t, 1.0/11, BestImprovement(prev, cur), 1e-12)
	assert.Zero(t, MeanImprovement(prev, cur))
	assert.Equal(t, 1.0, BestImprovement(model.EpochStats{BestFitness: -1}, model.EpochStats{BestFitness: 1}))
	assert.False(t, math.IsNaN(BestImprovement(model.EpochStats{}, model.EpochStats{BestFitness: 1e-20})))

	fn, err := RewardFromConfig("mean")
	require.NoError(t, err)
	assert.InDelta(t, 0.25, fn(model.EpochStats{MeanFitness: 3}, model.EpochStats{MeanFitness: 4}), 1e-12)
	_, err = RewardFromConfig("nope")
	require.Error(t, err)
}
