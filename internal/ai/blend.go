package ai

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/hh-matcher/internal/logger"
	"github.com/spigell/hh-matcher/internal/matching"
	"github.com/spigell/hh-matcher/internal/pipeline"
)

const (
	// StageName identifies the AI blending stage.
	StageName = "ai_blend"

	DefaultWeight      = 0.4
	DefaultTopK        = 10
	DefaultTimeout     = 30 * time.Second
	DefaultConcurrency = 4
)

// BlendConfig configures the AI blending stage.
type BlendConfig struct {
	Strategy    matching.Strategy
	Weight      float64
	TopK        int
	Timeout     time.Duration
	Concurrency int
}

// BlendStage sends the top results to a Judge and folds its score into the
// final score. A failed call leaves the result's final score untouched.
type BlendStage struct {
	pipeline.Toggle

	cfg    BlendConfig
	judge  Judge
	logger *zap.Logger
}

var _ pipeline.Stage = (*BlendStage)(nil)

// NewBlendStage builds the stage. It starts disabled for the local_only
// strategy or when no judge is configured.
func NewBlendStage(cfg BlendConfig, judge Judge, log *zap.Logger) *BlendStage {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	s := &BlendStage{
		cfg:    cfg,
		judge:  judge,
		logger: logger.WithFields(log, zap.String(logger.FieldStage, StageName)),
	}
	switch {
	case !cfg.Strategy.UsesAI():
		s.Disable("strategy " + string(cfg.Strategy))
	case judge == nil:
		s.Disable("ai judge is not configured")
	}
	return s
}

// Name implements pipeline.Stage.
func (s *BlendStage) Name() string { return StageName }

// Validate implements pipeline.Stage.
func (s *BlendStage) Validate() error {
	if s.judge == nil {
		return errors.New("ai judge is required when ai blending is enabled")
	}
	if s.cfg.TopK < 1 {
		return fmt.Errorf("%w: ai top-k must be at least 1, got %d", matching.ErrConfiguration, s.cfg.TopK)
	}
	return matching.ValidateWeight("ai blend weight", s.cfg.Weight)
}

// Status reports the stage configuration.
func (s *BlendStage) Status() pipeline.Status {
	return pipeline.Status{
		Name:    s.Name(),
		Enabled: s.IsEnabled(),
		Reason:  s.Reason(),
		Details: map[string]string{
			"strategy":    string(s.cfg.Strategy),
			"weight":      strconv.FormatFloat(s.cfg.Weight, 'f', 2, 64),
			"top_k":       strconv.Itoa(s.cfg.TopK),
			"timeout":     s.cfg.Timeout.String(),
			"concurrency": strconv.Itoa(s.cfg.Concurrency),
		},
	}
}

// Apply implements pipeline.Stage. Judge calls for the window run
// concurrently, each under its own timeout; the window is then re-sorted by
// final score and the remaining results follow unchanged.
func (s *BlendStage) Apply(ctx context.Context, req pipeline.Request, results []matching.MatchResult) ([]matching.MatchResult, pipeline.Step, error) {
	window, rest := pipeline.Split(results, s.cfg.TopK)
	step := pipeline.Step{Total: len(results), Window: len(window)}

	blended := make([]matching.MatchResult, len(window))
	var (
		degraded atomic.Int64
		g        errgroup.Group
	)
	g.SetLimit(s.cfg.Concurrency)

	for i, result := range window {
		g.Go(func() error {
			updated, err := s.evaluate(ctx, req, result)
			if err != nil {
				degraded.Add(1)
				s.logger.Warn("ai judge failed, keeping local score",
					append(logger.MatchFields(result.JobID, result.CandidateID), zap.Error(err))...)
				updated = result.WithDegradation(matching.DegradedAI, fmt.Errorf("%w: %w", matching.ErrAIJudge, err))
			}
			blended[i] = updated
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, step, err
	}

	step.Degraded = int(degraded.Load())
	return append(matching.SortByFinal(blended), rest...), step, nil
}

func (s *BlendStage) evaluate(ctx context.Context, req pipeline.Request, result matching.MatchResult) (matching.MatchResult, error) {
	job, candidate := req.Pair(result)
	if job == nil || candidate == nil {
		return result, errors.New("pair profiles are not available")
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	assessment, err := s.judge.Evaluate(callCtx, job, candidate)
	if err != nil {
		return result, err
	}
	if assessment == nil {
		return result, errors.New("judge returned no assessment")
	}

	score := NormalizeScore(assessment.Score)
	out := result.Clone()
	out.AI = &score
	out.AIFeedback = assessment.Feedback

	switch s.cfg.Strategy {
	case matching.StrategyLLMOnly:
		out.Final = score
	default:
		out.Final = matching.Blend(score, result.Final, s.cfg.Weight)
	}

	s.logger.Debug("ai judgment blended",
		append(logger.MatchFields(result.JobID, result.CandidateID),
			zap.Float64("ai_score", score),
			zap.Float64("local_score", result.Final),
			zap.Float64("final_score", out.Final),
		)...)

	return out, nil
}
