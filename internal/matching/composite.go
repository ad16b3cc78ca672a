package matching

import (
	"fmt"
	"math"
)

// Strategy selects how the external AI judgment takes part in the final score.
type Strategy string

const (
	StrategyLocalOnly Strategy = "local_only"
	StrategyLLMOnly   Strategy = "llm_only"
	StrategyBlended   Strategy = "blended"
)

// ParseStrategy validates a strategy name. Empty resolves from useAI:
// blended when set, local_only otherwise.
func ParseStrategy(s string, useAI bool) (Strategy, error) {
	switch Strategy(s) {
	case "":
		if useAI {
			return StrategyBlended, nil
		}
		return StrategyLocalOnly, nil
	case StrategyLocalOnly, StrategyLLMOnly, StrategyBlended:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("%w: unknown strategy %q", ErrConfiguration, s)
	}
}

// UsesAI reports whether the strategy calls the AI judge.
func (s Strategy) UsesAI() bool {
	return s == StrategyLLMOnly || s == StrategyBlended
}

// ValidateWeight rejects weights outside [0,1].
func ValidateWeight(name string, w float64) error {
	if math.IsNaN(w) || w < 0 || w > 1 {
		return fmt.Errorf("%w: %s must be within [0,1], got %v", ErrConfiguration, name, w)
	}
	return nil
}

// Composite blends coverage and semantic similarity.
func Composite(coverage, semantic, coverageWeight float64) float64 {
	return clamp01(coverageWeight*coverage + (1-coverageWeight)*semantic)
}

// Blend interpolates between a secondary score and the current one.
func Blend(secondary, current, weight float64) float64 {
	return clamp01(weight*secondary + (1-weight)*current)
}

// Feedback renders the human readable summary attached to every result.
func Feedback(coverage, semantic float64) string {
	return fmt.Sprintf("Covers %d%% JD skills; semantic %d%%.", percent(coverage), percent(semantic))
}

func percent(v float64) int {
	return int(math.Floor(clamp01(v)*100 + 1e-9))
}

// Clamp01 limits v to [0,1]; NaN becomes 0.
func Clamp01(v float64) float64 {
	return clamp01(v)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
