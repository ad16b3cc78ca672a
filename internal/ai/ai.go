// Package ai defines the external AI capabilities the matcher consumes and
// the pipeline stage blending their judgment into local scores.
package ai

import (
	"context"
	"math"

	"github.com/spigell/hh-matcher/internal/profile"
)

// Assessment is an external judgment of one job/candidate pair.
type Assessment struct {
	// Score is in [0,1].
	Score    float64
	Feedback string
	Raw      string
}

// Judge evaluates how well a candidate fits a job.
type Judge interface {
	Evaluate(ctx context.Context, job, candidate *profile.Profile) (*Assessment, error)
}

// Entities is the structured signal an external parser extracts from text.
type Entities struct {
	Skills     []string `json:"skills"`
	Experience []string `json:"experience"`
	Education  []string `json:"education"`
	Keywords   []string `json:"keywords"`
}

// EntityParser extracts entities from resume or job text.
type EntityParser interface {
	Parse(ctx context.Context, text string, kind profile.Kind) (*Entities, error)
}

// NormalizeScore clamps an assessment score onto [0,1]; NaN becomes 0.
// Judges convert their own answer scale before returning an Assessment.
func NormalizeScore(score float64) float64 {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	return math.Min(score, 1)
}
