package evo

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evolver/internal/policy"
)

func weightedCrossover(w float64) Crossover[int] {
	c := &UniformCrossover[int]{}
	c.SetCustomWeight(w)
	return c
}

func TestFamilyResolvesPolicyAutomatically(t *testing.T) {
	cases := []struct {
		name string
		spec FamilySpec[Crossover[int]]
		want string
	}{
		{
			name: "single operator",
			spec: FamilySpec[Crossover[int]]{Operators: []Crossover[int]{NewOnePointCrossover[int]()}, Policy: policy.RoundRobinName},
			want: policy.FirstChoiceName,
		},
		{
			name: "custom weights",
			spec: FamilySpec[Crossover[int]]{Operators: []Crossover[int]{weightedCrossover(1), weightedCrossover(3)}},
			want: policy.CustomWeightName,
		},
		{
			name: "no hint",
			spec: FamilySpec[Crossover[int]]{Operators: []Crossover[int]{NewOnePointCrossover[int](), NewTwoPointCrossover[int]()}},
			want: policy.RandomChoiceName,
		},
		{
			name: "explicit",
			spec: FamilySpec[Crossover[int]]{Operators: []Crossover[int]{NewOnePointCrossover[int](), NewTwoPointCrossover[int]()}, Policy: "adaptive"},
			want: policy.AdaptivePursuitName,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := newFamily(FamilyCrossover, tc.spec)
			require.NoError(t, err)
			assert.Equal(t, tc.want, f.PolicyName())
			assert.Equal(t, FamilyCrossover, f.Kind())
		})
	}
}

func TestFamilyRejectsMisconfiguration(t *testing.T) {
	cases := map[string]FamilySpec[Crossover[int]]{
		"empty":           {},
		"nil operator":    {Operators: []Crossover[int]{nil}},
		"negative weight": {Operators: []Crossover[int]{weightedCrossover(-1), weightedCrossover(1)}, Policy: policy.CustomWeightName},
		"weights vs round robin": {
			Operators: []Crossover[int]{weightedCrossover(1), NewOnePointCrossover[int]()},
			Policy:    policy.RoundRobinName,
		},
		"weights vs adaptive": {
			Operators: []Crossover[int]{weightedCrossover(1), NewOnePointCrossover[int]()},
			Policy:    policy.AdaptivePursuitName,
		},
		"unknown policy on single operator": {
			Operators: []Crossover[int]{NewOnePointCrossover[int]()},
			Policy:    "greedy",
		},
	}
	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := newFamily(FamilyCrossover, spec)
			require.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestFamilyTracksUsageAndRewardsLastOperator(t *testing.T) {
	f, err := newFamily(FamilyCrossover, FamilySpec[Crossover[int]]{
		Operators: []Crossover[int]{NewOnePointCrossover[int](), NewTwoPointCrossover[int]()},
		Policy:    policy.AdaptivePursuitName,
	})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(6))
	for i := 0; i < 300; i++ {
		idx, op := f.Next(rng)
		assert.Equal(t, f.ops[idx].Name(), op.Name())
		if op.Name() == CrossoverTwoPoint {
			f.Commit(idx, 1)
		} else {
			f.Commit(idx, 0)
		}
	}
	usage := f.Usage()
	assert.Equal(t, 300, usage[CrossoverOnePoint]+usage[CrossoverTwoPoint])
	assert.Greater(t, usage[CrossoverTwoPoint], usage[CrossoverOnePoint])
	probs := f.Probabilities()
	require.Len(t, probs, 2)
	assert.InDelta(t, 1-policy.DefaultPMin, probs[1], 1e-6)
	estimates := f.Estimates()
	require.Len(t, estimates, 2)
	assert.Greater(t, estimates[1], estimates[0])
}

func TestFamilyCountsOnlyCommittedCycles(t *testing.T) {
	f, err := newFamily(FamilyCrossover, FamilySpec[Crossover[int]]{
		Operators: []Crossover[int]{NewOnePointCrossover[int](), NewTwoPointCrossover[int]()},
		Policy:    policy.RandomChoiceName,
	})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 5; i++ {
		f.Next(rng)
	}
	usage := f.Usage()
	assert.Zero(t, usage[CrossoverOnePoint]+usage[CrossoverTwoPoint])

	idx, _ := f.Next(rng)
	f.Commit(idx, 0.5)
	usage = f.Usage()
	assert.Equal(t, 1, usage[CrossoverOnePoint]+usage[CrossoverTwoPoint])
	assert.Nil(t, f.Estimates())
}

func TestRoundRobinFamilyCycles(t *testing.T) {
	f, err := newFamily(FamilyCrossover, FamilySpec[Crossover[int]]{
		Operators: []Crossover[int]{NewOnePointCrossover[int](), NewTwoPointCrossover[int](), &OrderCrossover[int]{}},
		Policy:    policy.RoundRobinName,
	})
	require.NoError(t, err)
	var got []string
	for i := 0; i < 6; i++ {
		_, op := f.Next(nil)
		got = append(got, op.Name())
	}
	assert.Equal(t, []string{"one_point", "two_point", "order", "one_point", "two_point", "order"}, got)
	assert.Nil(t, f.Probabilities())
}
