package evo

import (
	"fmt"
	"strings"
)

// OperatorSpec names an operator and its parameters, as read from
// configuration files or flags.
type OperatorSpec struct {
	Name            string  `toml:"name" json:"name"`
	Weight          float64 `toml:"weight" json:"weight,omitempty"`
	Size            int     `toml:"size" json:"size,omitempty"`
	Points          int     `toml:"points" json:"points,omitempty"`
	MixProbability  float64 `toml:"mix_probability" json:"mix_probability,omitempty"`
	Rate            float64 `toml:"rate" json:"rate,omitempty"`
	ElitePercentage float64 `toml:"elite_percentage" json:"elite_percentage,omitempty"`
	MaxAge          int     `toml:"max_age" json:"max_age,omitempty"`
	Temperature     float64 `toml:"temperature" json:"temperature,omitempty"`
	Decay           float64 `toml:"decay" json:"decay,omitempty"`
}

// ParseOperatorSpecs turns "a,b:2" into specs; an optional ":w" suffix sets
// the custom weight.
func ParseOperatorSpecs(list string) ([]OperatorSpec, error) {
	var specs []OperatorSpec
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, weight, hasWeight := strings.Cut(item, ":")
		spec := OperatorSpec{Name: strings.TrimSpace(name)}
		if hasWeight {
			if _, err := fmt.Sscanf(weight, "%g", &spec.Weight); err != nil {
				return nil, fmt.Errorf("%w: bad weight in %q", ErrConfiguration, item)
			}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func ParentSelectorFromConfig[G any](spec OperatorSpec) (ParentSelector[G], error) {
	w := Weighted{Weight: spec.Weight}
	switch strings.ToLower(spec.Name) {
	case SelectorTournament:
		return &TournamentSelector[G]{Weighted: w, Size: spec.Size}, nil
	case SelectorRoulette, "fitness_proportional":
		return &RouletteSelector[G]{Weighted: w}, nil
	case SelectorRank:
		return &RankSelector[G]{Weighted: w}, nil
	case SelectorBoltzmann:
		return &BoltzmannSelector[G]{Weighted: w, Temperature: spec.Temperature, Decay: spec.Decay}, nil
	case SelectorRandom, "uniform":
		return &RandomSelector[G]{Weighted: w}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported parent selector %q", ErrConfiguration, spec.Name)
	}
}

func CrossoverFromConfig[G any](spec OperatorSpec) (Crossover[G], error) {
	w := Weighted{Weight: spec.Weight}
	switch strings.ToLower(spec.Name) {
	case CrossoverUniform:
		return &UniformCrossover[G]{Weighted: w, MixProbability: spec.MixProbability}, nil
	case CrossoverOnePoint, "single_point":
		c := NewOnePointCrossover[G]()
		c.Weighted = w
		return c, nil
	case CrossoverTwoPoint:
		c := NewTwoPointCrossover[G]()
		c.Weighted = w
		return c, nil
	case CrossoverNPoint:
		points := spec.Points
		if points <= 0 {
			points = 3
		}
		c := NewNPointCrossover[G](points)
		c.Weighted = w
		return c, nil
	case CrossoverOrder, "ox", "ox1":
		return &OrderCrossover[G]{Weighted: w}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported crossover %q", ErrConfiguration, spec.Name)
	}
}

func ReplacementFromConfig[G any](spec OperatorSpec) (Replacement[G], error) {
	w := Weighted{Weight: spec.Weight}
	switch strings.ToLower(spec.Name) {
	case ReplacementGenerational:
		return &GenerationalReplacement[G]{Weighted: w}, nil
	case ReplacementElitist, "elite":
		return &ElitistReplacement[G]{Weighted: w, ElitePercentage: spec.ElitePercentage}, nil
	case ReplacementWorst, "steady_state":
		return &WorstReplacement[G]{Weighted: w, Rate: spec.Rate}, nil
	case ReplacementAgeBased, "age":
		return &AgeBasedReplacement[G]{Weighted: w, Rate: spec.Rate, MaxAge: spec.MaxAge}, nil
	case ReplacementRandom:
		return &RandomReplacement[G]{Weighted: w, Rate: spec.Rate}, nil
	case ReplacementRoulette:
		return &RouletteReplacement[G]{Weighted: w, Rate: spec.Rate}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported replacement %q", ErrConfiguration, spec.Name)
	}
}

// ParentSelectorsFromConfig resolves every spec, failing on the first unknown name.
func ParentSelectorsFromConfig[G any](specs []OperatorSpec) ([]ParentSelector[G], error) {
	return resolveAll(specs, ParentSelectorFromConfig[G])
}

func CrossoversFromConfig[G any](specs []OperatorSpec) ([]Crossover[G], error) {
	return resolveAll(specs, CrossoverFromConfig[G])
}

func ReplacementsFromConfig[G any](specs []OperatorSpec) ([]Replacement[G], error) {
	return resolveAll(specs, ReplacementFromConfig[G])
}

func resolveAll[O any](specs []OperatorSpec, resolve func(OperatorSpec) (O, error)) ([]O, error) {
	out := make([]O, 0, len(specs))
	for _, spec := range specs {
		op, err := resolve(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, nil
}

func ParentSelectorNames() []string {
	return []string{SelectorTournament, SelectorRoulette, SelectorRank, SelectorBoltzmann, SelectorRandom}
}

func CrossoverNames() []string {
	return []string{CrossoverUniform, CrossoverOnePoint, CrossoverTwoPoint, CrossoverNPoint, CrossoverOrder}
}

func ReplacementNames() []string {
	return []string{ReplacementGenerational, ReplacementElitist, ReplacementWorst, ReplacementAgeBased, ReplacementRandom, ReplacementRoulette}
}
