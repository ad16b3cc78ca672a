package matching

import (
	"cmp"
	"slices"
)

// Degradation names a scoring component that could not contribute.
type Degradation string

const (
	DegradedSemantic Degradation = "semantic"
	DegradedRerank   Degradation = "rerank"
	DegradedAI       Degradation = "ai"
)

// MatchResult is the score of one job/candidate pair. Stages never modify a
// result they receive; they return updated copies.
type MatchResult struct {
	JobID         string        `json:"job_id"`
	CandidateID   string        `json:"candidate_id"`
	Direction     Direction     `json:"direction"`
	Coverage      float64       `json:"coverage_score"`
	Semantic      float64       `json:"semantic_score"`
	Composite     float64       `json:"composite_score"`
	Rerank        *float64      `json:"rerank_score,omitempty"`
	AI            *float64      `json:"ai_score,omitempty"`
	Final         float64       `json:"final_score"`
	MissingSkills []string      `json:"missing_skills"`
	Feedback      string        `json:"feedback,omitempty"`
	AIFeedback    string        `json:"ai_feedback,omitempty"`
	Degraded      []Degradation `json:"degraded,omitempty"`
	// Errors keeps the failure message per degraded component.
	Errors map[Degradation]string `json:"errors,omitempty"`
}

// Clone returns a deep copy of r.
func (r MatchResult) Clone() MatchResult {
	out := r
	out.MissingSkills = slices.Clone(r.MissingSkills)
	out.Degraded = slices.Clone(r.Degraded)
	if r.Rerank != nil {
		v := *r.Rerank
		out.Rerank = &v
	}
	if r.AI != nil {
		v := *r.AI
		out.AI = &v
	}
	if r.Errors != nil {
		out.Errors = make(map[Degradation]string, len(r.Errors))
		for k, v := range r.Errors {
			out.Errors[k] = v
		}
	}
	return out
}

// WithDegradation returns a copy of r flagged as degraded for d.
func (r MatchResult) WithDegradation(d Degradation, err error) MatchResult {
	out := r.Clone()
	if !slices.Contains(out.Degraded, d) {
		out.Degraded = append(out.Degraded, d)
	}
	if err != nil {
		if out.Errors == nil {
			out.Errors = make(map[Degradation]string, 1)
		}
		out.Errors[d] = err.Error()
	}
	return out
}

// IsDegraded reports whether component d failed for this result.
func (r MatchResult) IsDegraded(d Degradation) bool {
	return slices.Contains(r.Degraded, d)
}

// AIError returns the recorded AI judge failure, if any.
func (r MatchResult) AIError() string {
	return r.Errors[DegradedAI]
}

// SortByComposite returns the results ordered by composite score, highest
// first. Ties keep the input order.
func SortByComposite(results []MatchResult) []MatchResult {
	return sortBy(results, func(r MatchResult) float64 { return r.Composite })
}

// SortByFinal returns the results ordered by final score, highest first.
// Ties keep the input order.
func SortByFinal(results []MatchResult) []MatchResult {
	return sortBy(results, func(r MatchResult) float64 { return r.Final })
}

func sortBy(results []MatchResult, score func(MatchResult) float64) []MatchResult {
	out := make([]MatchResult, len(results))
	for i, r := range results {
		out[i] = r.Clone()
	}
	slices.SortStableFunc(out, func(a, b MatchResult) int {
		return cmp.Compare(score(b), score(a))
	})
	return out
}
