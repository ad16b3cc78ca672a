package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompositeMonotonic(t *testing.T) {
	steps := []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1}
	for _, w := range steps {
		for _, fixed := range steps {
			prevCov, prevSem := -1.0, -1.0
			for _, v := range steps {
				byCoverage := Composite(v, fixed, w)
				bySemantic := Composite(fixed, v, w)
				require.GreaterOrEqual(t, byCoverage, prevCov, "coverage w=%v sem=%v", w, fixed)
				require.GreaterOrEqual(t, bySemantic, prevSem, "semantic w=%v cov=%v", w, fixed)
				prevCov, prevSem = byCoverage, bySemantic
			}
		}
	}
}

func TestCompositeBounds(t *testing.T) {
	assert.Equal(t, 1.0, Composite(1, 1, 0.65))
	assert.Equal(t, 0.0, Composite(0, 0, 0.65))
	assert.Equal(t, 0.3, Composite(0.3, 0.9, 1))
	assert.Equal(t, 0.9, Composite(0.3, 0.9, 0))
}

func TestFeedback(t *testing.T) {
	assert.Equal(t, "Covers 66% JD skills; semantic 80%.", Feedback(2.0/3.0, 0.8))
	assert.Equal(t, "Covers 29% JD skills; semantic 100%.", Feedback(0.29, 1))
	assert.Equal(t, "Covers 0% JD skills; semantic 0%.", Feedback(0, 0))
}

func TestParseStrategy(t *testing.T) {
	cases := []struct {
		in    string
		useAI bool
		want  Strategy
	}{
		{"", false, StrategyLocalOnly},
		{"", true, StrategyBlended},
		{"llm_only", false, StrategyLLMOnly},
		{"local_only", true, StrategyLocalOnly},
	}
	for _, tc := range cases {
		got, err := ParseStrategy(tc.in, tc.useAI)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := ParseStrategy("vibes", false)
	assert.ErrorIs(t, err, ErrConfiguration)

	assert.True(t, StrategyBlended.UsesAI())
	assert.False(t, StrategyLocalOnly.UsesAI())
}

func TestValidateWeight(t *testing.T) {
	assert.NoError(t, ValidateWeight("w", 0))
	assert.NoError(t, ValidateWeight("w", 1))
	assert.ErrorIs(t, ValidateWeight("w", -0.1), ErrConfiguration)
	assert.ErrorIs(t, ValidateWeight("w", 1.5), ErrConfiguration)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-3))
	assert.Equal(t, 1.0, Clamp01(7))
	assert.Equal(t, 0.4, Clamp01(0.4))
}
