package walkforward

import (
	"fmt"

	"github.com/Omareid007/alphaflow-sub005/internal/core"
)

// ParamRange describes one optimizable strategy parameter.
type ParamRange struct {
	Name string  `mapstructure:"name" json:"name"`
	Min  float64 `mapstructure:"min" json:"min"`
	Max  float64 `mapstructure:"max" json:"max"`
	Step float64 `mapstructure:"step" json:"step"`
}

// Width is the span of the range, used to normalize parameter deltas.
func (r ParamRange) Width() float64 {
	return r.Max - r.Min
}

func (r ParamRange) values() []float64 {
	var out []float64
	for v := r.Min; v <= r.Max+1e-9; v += r.Step {
		out = append(out, v)
	}
	return out
}

// Combinations builds the Cartesian product of the ranges in a
// deterministic order: the first range varies slowest, so the first
// combination holds every parameter at its minimum.
func Combinations(ranges []ParamRange) ([]map[string]float64, error) {
	if len(ranges) == 0 {
		return nil, core.WrapError(core.ErrEmptyGrid, fmt.Errorf("no parameter ranges configured"))
	}
	for _, r := range ranges {
		if r.Step <= 0 || r.Max < r.Min {
			return nil, core.WrapError(core.ErrEmptyGrid,
				fmt.Errorf("range %s: need min <= max and step > 0, got [%g, %g] step %g", r.Name, r.Min, r.Max, r.Step))
		}
	}

	combos := []map[string]float64{{}}
	for _, r := range ranges {
		values := r.values()
		next := make([]map[string]float64, 0, len(combos)*len(values))
		for _, combo := range combos {
			for _, v := range values {
				expanded := make(map[string]float64, len(combo)+1)
				for k, cv := range combo {
					expanded[k] = cv
				}
				expanded[r.Name] = v
				next = append(next, expanded)
			}
		}
		combos = next
	}
	return combos, nil
}
