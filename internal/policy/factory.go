package policy

import (
	"fmt"
	"strings"
)

// Params carries the tunables of the adaptive policy; other policies ignore it.
type Params struct {
	// PMin is the probability floor. nil selects DefaultPMin; 0 is a valid
	// floor.
	PMin   *float64 `toml:"pmin" json:"pmin,omitempty"`
	Alpha  float64  `toml:"alpha" json:"alpha"`
	Beta   float64  `toml:"beta" json:"beta"`
	Window int      `toml:"window" json:"window"`
}

func DefaultParams() Params {
	pMin := DefaultPMin
	return Params{PMin: &pMin, Alpha: DefaultAlpha, Beta: DefaultBeta}
}

// FromConfig builds a fresh policy by name. An unset floor and zero rates
// fall back to their defaults.
func FromConfig(name string, params Params) (Policy, error) {
	switch NormalizeName(name) {
	case FirstChoiceName:
		return FirstChoice{}, nil
	case RoundRobinName:
		return &RoundRobin{}, nil
	case RandomChoiceName:
		return &RandomChoice{}, nil
	case CustomWeightName:
		return &CustomWeight{}, nil
	case AdaptivePursuitName:
		defaults := DefaultParams()
		if params.PMin == nil {
			params.PMin = defaults.PMin
		}
		if params.Alpha <= 0 {
			params.Alpha = defaults.Alpha
		}
		if params.Beta <= 0 {
			params.Beta = defaults.Beta
		}
		return NewAdaptivePursuit(*params.PMin, params.Alpha, params.Beta, params.Window), nil
	default:
		return nil, fmt.Errorf("%w: unsupported policy %q", ErrInvalidPolicy, name)
	}
}

func NormalizeName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "first", "first_choice", "single":
		return FirstChoiceName
	case "round_robin", "roundrobin", "rr":
		return RoundRobinName
	case "random", "random_choice", "uniform":
		return RandomChoiceName
	case "custom", "custom_weight", "weighted":
		return CustomWeightName
	case "adaptive", "adaptive_pursuit", "pursuit":
		return AdaptivePursuitName
	default:
		return name
	}
}

// Names lists the canonical policy names.
func Names() []string {
	return []string{FirstChoiceName, RoundRobinName, RandomChoiceName, CustomWeightName, AdaptivePursuitName}
}
