// Package matching scores job/candidate pairs: skill coverage, semantic
// similarity and their composite, plus the skill gap between the two.
package matching

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/hh-matcher/internal/logger"
	"github.com/spigell/hh-matcher/internal/profile"
)

// DefaultCoverageWeight is the coverage share of the composite score.
const DefaultCoverageWeight = 0.65

// Pair is one job/candidate couple to score.
type Pair struct {
	JobID       string
	CandidateID string
	Job         *profile.Profile
	Candidate   *profile.Profile
}

// EngineConfig configures the composite engine.
type EngineConfig struct {
	CoverageWeight float64
	Direction      Direction
}

// Engine produces composite-scored results. It holds no per-call state.
type Engine struct {
	cfg      EngineConfig
	semantic Similarity
	logger   *zap.Logger
}

// NewEngine validates cfg and returns an engine. A nil semantic scorer scores
// every pair on coverage alone with semantic 0.
func NewEngine(cfg EngineConfig, semantic Similarity, log *zap.Logger) (*Engine, error) {
	if err := ValidateWeight("coverage weight", cfg.CoverageWeight); err != nil {
		return nil, err
	}
	direction, err := ParseDirection(string(cfg.Direction))
	if err != nil {
		return nil, err
	}
	cfg.Direction = direction

	return &Engine{
		cfg:      cfg,
		semantic: semantic,
		logger:   logger.WithFields(log, zap.String(logger.FieldStage, "composite")),
	}, nil
}

// Direction reports the coverage direction used by every Score call.
func (e *Engine) Direction() Direction {
	return e.cfg.Direction
}

// Score computes the composite result of one pair. It always yields a
// result: a failed embedding degrades the pair to coverage-only scoring.
func (e *Engine) Score(ctx context.Context, pair Pair) MatchResult {
	job, candidate := orEmpty(pair.Job, profile.KindJob), orEmpty(pair.Candidate, profile.KindResume)

	coverage := Coverage(candidate.Skills, job.Skills, e.cfg.Direction)

	var (
		semantic    float64
		semanticErr error
	)
	if e.semantic != nil {
		semantic, semanticErr = e.semantic.Similarity(ctx, job, candidate)
		if semanticErr != nil {
			semantic = 0
			e.logger.Warn("semantic similarity unavailable, scoring on coverage only",
				append(logger.MatchFields(pair.JobID, pair.CandidateID), zap.Error(semanticErr))...)
		}
	}

	composite := Composite(coverage, semantic, e.cfg.CoverageWeight)
	result := MatchResult{
		JobID:         pair.JobID,
		CandidateID:   pair.CandidateID,
		Direction:     e.cfg.Direction,
		Coverage:      coverage,
		Semantic:      semantic,
		Composite:     composite,
		Final:         composite,
		MissingSkills: Gap(candidate.Skills, job.Skills),
		Feedback:      Feedback(coverage, semantic),
	}
	if semanticErr != nil {
		result = result.WithDegradation(DegradedSemantic, semanticErr)
	}

	e.logger.Debug("pair scored",
		append(logger.MatchFields(pair.JobID, pair.CandidateID),
			zap.Float64("coverage", coverage),
			zap.Float64("semantic", semantic),
			zap.Float64("composite", composite),
		)...)

	return result
}

// ScoreAll scores every pair and returns the results sorted by composite
// score. Pairs with equal scores keep their input order.
func (e *Engine) ScoreAll(ctx context.Context, pairs []Pair) []MatchResult {
	results := make([]MatchResult, 0, len(pairs))
	for _, pair := range pairs {
		results = append(results, e.Score(ctx, pair))
	}
	return SortByComposite(results)
}

func orEmpty(p *profile.Profile, kind profile.Kind) *profile.Profile {
	if p != nil {
		return p
	}
	return &profile.Profile{Kind: kind, Skills: profile.NewSkillSet()}
}
