package evo

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evolver/internal/model"
)

func TestSelectorsReturnDistinctCouples(t *testing.T) {
	pop := evaluated(t, 1, 2, 3, 4, 5, 6)
	selectors := []ParentSelector[float64]{
		&TournamentSelector[float64]{Size: 3},
		&RouletteSelector[float64]{},
		&RankSelector[float64]{},
		&BoltzmannSelector[float64]{Temperature: 2},
		&RandomSelector[float64]{},
	}
	for _, s := range selectors {
		t.Run(s.Name(), func(t *testing.T) {
			rng := rand.New(rand.NewSource(3))
			couples, err := s.SelectMatingPairs(rng, 0, pop, 50)
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(couples), 50)
			for _, c := range couples {
				assert.NotEqual(t, c.A.ID(), c.B.ID())
			}
		})
	}
}

func TestSelectorsDegradeOnSmallPopulations(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tournament := &TournamentSelector[float64]{Size: 10}

	couples, err := tournament.SelectMatingPairs(rng, 0, evaluated(t, 1), 3)
	require.NoError(t, err)
	assert.Empty(t, couples)

	pair := evaluated(t, 1, 2)
	couples, err = tournament.SelectMatingPairs(rng, 0, pair, 3)
	require.NoError(t, err)
	require.Len(t, couples, 3)
	for _, c := range couples {
		assert.ElementsMatch(t, []string{"c0", "c1"}, []string{c.A.ID(), c.B.ID()})
	}
}

func TestTournamentFavoursFitMembers(t *testing.T) {
	pop := evaluated(t, 1, 1, 1, 1, 1, 1, 1, 100)
	rng := rand.New(rand.NewSource(9))
	couples, err := (&TournamentSelector[float64]{Size: 4}).SelectMatingPairs(rng, 0, pop, 1000)
	require.NoError(t, err)
	hits := 0
	for _, c := range couples {
		if c.A.ID() == "c7" || c.B.ID() == "c7" {
			hits++
		}
	}
	assert.Greater(t, hits, 500)
}

func TestRouletteSelectorHandlesNegativeFitness(t *testing.T) {
	pop := evaluated(t, -5, -3, -1)
	couples, err := (&RouletteSelector[float64]{}).SelectMatingPairs(rand.New(rand.NewSource(2)), 0, pop, 10)
	require.NoError(t, err)
	assert.Len(t, couples, 10)
}

func TestBoltzmannTemperatureDecays(t *testing.T) {
	s := &BoltzmannSelector[float64]{Temperature: 10, Decay: 0.5, MinTemperature: 1}
	assert.InDelta(t, 10, s.TemperatureAt(0), 1e-9)
	assert.InDelta(t, 5, s.TemperatureAt(1), 1e-9)
	assert.InDelta(t, 1, s.TemperatureAt(20), 1e-9)
}

func TestCrossoversRejectEmptyParents(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	crossovers := []Crossover[float64]{
		&UniformCrossover[float64]{},
		NewOnePointCrossover[float64](),
		NewTwoPointCrossover[float64](),
		NewNPointCrossover[float64](4),
		&OrderCrossover[float64]{},
	}
	for _, c := range crossovers {
		t.Run(c.Name(), func(t *testing.T) {
			_, err := c.Cross(rng, nil, []float64{1})
			require.ErrorIs(t, err, ErrInvalidCandidate)
		})
	}
}

func TestPointCrossoverKeepsGenesInPlace(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	a := []int{0, 0, 0, 0, 0, 0}
	b := []int{1, 1, 1, 1, 1, 1}
	for _, c := range []Crossover[int]{NewOnePointCrossover[int](), NewTwoPointCrossover[int](), NewNPointCrossover[int](3)} {
		children, err := c.Cross(rng, a, b)
		require.NoError(t, err)
		require.Len(t, children, 2)
		for i := range a {
			assert.Equal(t, 1, children[0][i]+children[1][i], "%s position %d", c.Name(), i)
		}
	}
	assert.Equal(t, []int{0, 0, 0, 0, 0, 0}, a)
}

func TestOrderCrossoverProducesPermutations(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	a := []int{0, 1, 2, 3, 4, 5, 6, 7}
	b := []int{7, 3, 5, 1, 0, 6, 2, 4}
	c := &OrderCrossover[int]{}
	for i := 0; i < 50; i++ {
		children, err := c.Cross(rng, a, b)
		require.NoError(t, err)
		for _, child := range children {
			sorted := slices.Clone(child)
			slices.Sort(sorted)
			assert.Equal(t, a, sorted)
		}
	}

	_, err := c.Cross(rng, a, b[:3])
	require.ErrorIs(t, err, ErrInvalidCandidate)
}

func TestGenerationalEliminatesEverything(t *testing.T) {
	pop := evaluated(t, 1, 2, 3, 4)
	got, err := (&GenerationalReplacement[float64]{}).SelectForElimination(nil, pop, evaluated(t, 5, 6, 7, 8))
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{0, 1, 2, 3}, got)
}

func TestElitistProtectsTopMembers(t *testing.T) {
	pop := evaluated(t, 1, 4, 3, 2)
	r := &ElitistReplacement[float64]{ElitePercentage: 0.5}
	assert.Equal(t, 2, r.EliteCount(4))
	assert.InDelta(t, 0.5, r.OffspringRate(), 1e-9)

	for _, n := range []int{1, 2, 4, 8} {
		offspring := make([]float64, n)
		got, err := r.SelectForElimination(nil, pop, evaluated(t, offspring...))
		require.NoError(t, err)
		assert.NotContains(t, got, 1)
		assert.NotContains(t, got, 2)
		assert.LessOrEqual(t, len(got), 2)
	}
}

func TestWorstAndAgeBasedReplacement(t *testing.T) {
	pop := evaluated(t, 5, 1, 3, 2)
	got, err := (&WorstReplacement[float64]{}).SelectForElimination(nil, pop, evaluated(t, 0, 0))
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 3}, got)

	pop[0].IncrementAge()
	pop[0].IncrementAge()
	pop[2].IncrementAge()
	got, err = (&AgeBasedReplacement[float64]{}).SelectForElimination(nil, pop, evaluated(t, 0))
	require.NoError(t, err)
	assert.Equal(t, []int{0}, got)

	got, err = (&AgeBasedReplacement[float64]{MaxAge: 1}).SelectForElimination(nil, pop, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{0, 2}, got)
}

func TestRandomAndRouletteReplacementDrawDistinctMembers(t *testing.T) {
	pop := evaluated(t, 1, 2, 3, 4, 5, 6)
	rng := rand.New(rand.NewSource(8))
	for _, r := range []Replacement[float64]{&RandomReplacement[float64]{}, &RouletteReplacement[float64]{}} {
		got, err := r.SelectForElimination(rng, pop, evaluated(t, 0, 0, 0, 0))
		require.NoError(t, err)
		require.Len(t, got, 4)
		seen := map[int]bool{}
		for _, idx := range got {
			assert.False(t, seen[idx])
			seen[idx] = true
		}
		assert.InDelta(t, 0.25, r.OffspringRate(), 1e-9)
	}
}

func TestRouletteReplacementSparesTheBest(t *testing.T) {
	pop := evaluated(t, 1, 10, 2)
	rng := rand.New(rand.NewSource(4))
	for i := 0; i < 100; i++ {
		got, err := (&RouletteReplacement[float64]{}).SelectForElimination(rng, pop, evaluated(t, 0))
		require.NoError(t, err)
		assert.NotContains(t, got, 1)
	}
}

func TestCatalogResolvesConfiguredOperators(t *testing.T) {
	specs, err := ParseOperatorSpecs("tournament, roulette:2 ,")
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, 2.0, specs[1].Weight)

	selectors, err := ParentSelectorsFromConfig[float64](specs)
	require.NoError(t, err)
	assert.Equal(t, SelectorTournament, selectors[0].Name())
	assert.Equal(t, 2.0, selectors[1].CustomWeight())

	c, err := CrossoverFromConfig[float64](OperatorSpec{Name: "n_point"})
	require.NoError(t, err)
	assert.Equal(t, "n_point", c.Name())

	r, err := ReplacementFromConfig[float64](OperatorSpec{Name: "elitist", ElitePercentage: 0.2})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, r.OffspringRate(), 1e-9)

	_, err = ReplacementFromConfig[float64](OperatorSpec{Name: "nope"})
	require.ErrorIs(t, err, ErrConfiguration)
	_, err = ParseOperatorSpecs("uniform:x")
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestSummarize(t *testing.T) {
	stats := Summarize(3, evaluated(t, 1, 2, 3, 4))
	assert.Equal(t, 3, stats.Epoch)
	assert.Equal(t, 4, stats.Size)
	assert.Equal(t, 4.0, stats.BestFitness)
	assert.Equal(t, 1.0, stats.MinFitness)
	assert.InDelta(t, 2.5, stats.MeanFitness, 1e-9)
	assert.Greater(t, stats.StdDev, 0.0)

	single := Summarize(0, evaluated(t, 7))
	assert.Equal(t, 7.0, single.MeanFitness)
	assert.Zero(t, single.StdDev)

	assert.Equal(t, model.EpochStats{Epoch: 1}, Summarize[float64](1, nil))
}

func TestTerminationConditions(t *testing.T) {
	state := RunState{Epoch: 10, BestFitness: 3, SinceImprovement: 4}
	assert.True(t, GenerationLimit{Epochs: 10}.ShouldStop(state))
	assert.False(t, GenerationLimit{Epochs: 11}.ShouldStop(state))
	assert.True(t, FitnessThreshold{Target: 3}.ShouldStop(state))
	assert.False(t, Stagnation{Epochs: 5}.ShouldStop(state))
	assert.True(t, AnyOf(Stagnation{Epochs: 5}, FitnessThreshold{Target: 2}).ShouldStop(state))
	assert.False(t, AllOf(Stagnation{Epochs: 5}, FitnessThreshold{Target: 2}).ShouldStop(state))
	assert.False(t, AllOf().ShouldStop(state))
}
