// Package pipeline runs the optional post-scoring stages (reranking, AI
// blending) over composite-ranked results.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/hh-matcher/internal/logger"
	"github.com/spigell/hh-matcher/internal/matching"
	"github.com/spigell/hh-matcher/internal/profile"
)

// Stage is one post-scoring step. Apply receives results ordered by the
// previous stage and returns a new ordering; it never modifies its input.
// Failures of external capabilities are recovered inside the stage and
// flagged on the results, so an Apply error means the run itself is broken
// (invalid request, cancelled context).
type Stage interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate() error
	Apply(ctx context.Context, req Request, results []matching.MatchResult) ([]matching.MatchResult, Step, error)
}

// Mode names which side of the pair is the query.
type Mode string

const (
	// ModeScreenCandidates ranks candidates for one job; the job is the query.
	ModeScreenCandidates Mode = "screen_candidates"
	// ModeMatchJobs ranks jobs for one resume; the resume is the query.
	ModeMatchJobs Mode = "match_jobs"
)

// Request carries the profiles behind the results being ranked.
type Request struct {
	Mode  Mode
	Query *profile.Profile
	// Items holds the profiles of the ranked side keyed by their id.
	Items map[string]*profile.Profile
}

// ItemID returns the id of the ranked side of r.
func (req Request) ItemID(r matching.MatchResult) string {
	if req.Mode == ModeMatchJobs {
		return r.JobID
	}
	return r.CandidateID
}

// Item returns the profile of the ranked side of r.
func (req Request) Item(r matching.MatchResult) *profile.Profile {
	return req.Items[req.ItemID(r)]
}

// Pair returns the job and candidate profiles behind r.
func (req Request) Pair(r matching.MatchResult) (job, candidate *profile.Profile) {
	item := req.Item(r)
	if req.Mode == ModeMatchJobs {
		return item, req.Query
	}
	return req.Query, item
}

// Validate checks that the request can serve stages.
func (req Request) Validate() error {
	switch req.Mode {
	case ModeScreenCandidates, ModeMatchJobs:
	default:
		return fmt.Errorf("unknown pipeline mode %q", req.Mode)
	}
	if req.Query == nil {
		return fmt.Errorf("query profile is required")
	}
	return nil
}

// Step describes what a stage did.
type Step struct {
	Total    int
	Window   int
	Degraded int
}

// Status represents runtime information about a stage.
type Status struct {
	Name    string            `json:"name"`
	Enabled bool              `json:"enabled"`
	Reason  string            `json:"reason,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

type statusProvider interface {
	Status() Status
}

// Toggle implements the Disable/IsEnabled half of Stage for embedding.
type Toggle struct {
	disabled bool
	reason   string
}

// Disable switches the stage off, remembering why.
func (t *Toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

// IsEnabled reports whether the stage runs.
func (t *Toggle) IsEnabled() bool { return !t.disabled }

// Reason returns why the stage was disabled.
func (t *Toggle) Reason() string { return t.reason }

// DisableByName marks a stage with the provided name as disabled while keeping it in the list.
func DisableByName(stages []Stage, name, reason string) {
	for _, stage := range stages {
		if stage.Name() == name {
			stage.Disable(reason)
		}
	}
}

// Run validates and then executes the enabled stages in order.
func Run(ctx context.Context, log *zap.Logger, stages []Stage, req Request, results []matching.MatchResult) ([]matching.MatchResult, error) {
	log = logger.WithFields(log)

	if err := req.Validate(); err != nil {
		return nil, err
	}
	for _, stage := range stages {
		if !stage.IsEnabled() {
			continue
		}
		if err := stage.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", stage.Name(), err)
		}
	}

	current := Window(results, len(results))
	for _, stage := range stages {
		if !stage.IsEnabled() {
			log.Debug("stage disabled", zap.String(logger.FieldStage, stage.Name()))
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next, info, err := stage.Apply(ctx, req, current)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", stage.Name(), err)
		}

		log.Info("stage applied",
			zap.String(logger.FieldStage, stage.Name()),
			zap.Int("total", info.Total),
			zap.Int("window", info.Window),
			zap.Int("degraded", info.Degraded),
		)
		current = next
	}

	return current, nil
}

// Describe returns status entries for the provided stages.
func Describe(stages []Stage) []Status {
	statuses := make([]Status, 0, len(stages))
	for _, stage := range stages {
		if reporter, ok := stage.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    stage.Name(),
			Enabled: stage.IsEnabled(),
		})
	}
	return statuses
}

// Window returns deep copies of the first k results. k beyond the slice
// length is capped.
func Window(results []matching.MatchResult, k int) []matching.MatchResult {
	k = min(max(k, 0), len(results))
	out := make([]matching.MatchResult, k)
	for i := range out {
		out[i] = results[i].Clone()
	}
	return out
}

// Split separates results into the first k and the rest, both copied.
func Split(results []matching.MatchResult, k int) (window, rest []matching.MatchResult) {
	k = min(max(k, 0), len(results))
	window = Window(results, k)
	rest = Window(results[k:], len(results)-k)
	return window, rest
}
