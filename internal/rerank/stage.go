package rerank

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/hh-matcher/internal/logger"
	"github.com/spigell/hh-matcher/internal/matching"
	"github.com/spigell/hh-matcher/internal/pipeline"
	"github.com/spigell/hh-matcher/internal/profile"
	"github.com/spigell/hh-matcher/internal/textutil"
)

const (
	// StageName identifies the rerank stage in pipeline logs and status.
	StageName = "rerank"

	DefaultTopK   = 20
	DefaultWeight = 0.5

	// maxDocumentRunes bounds the text sent per pair.
	maxDocumentRunes = 4000
)

// Config configures the rerank stage.
type Config struct {
	TopK int
	// Weight is the share of the rerank score in the blended final score.
	Weight float64
}

// Stage reranks the top-k window of a composite ranking. Entries outside the
// window keep their order and follow the window.
type Stage struct {
	pipeline.Toggle

	cfg    Config
	scorer Scorer
	logger *zap.Logger
}

var _ pipeline.Stage = (*Stage)(nil)

// NewStage builds the stage. A nil scorer is replaced by Noop.
func NewStage(cfg Config, scorer Scorer, log *zap.Logger) *Stage {
	if scorer == nil {
		scorer = Noop{}
	}
	return &Stage{
		cfg:    cfg,
		scorer: scorer,
		logger: logger.WithFields(log, zap.String(logger.FieldStage, StageName), zap.String(logger.FieldModel, scorer.Model())),
	}
}

// Name implements pipeline.Stage.
func (s *Stage) Name() string { return StageName }

// Validate implements pipeline.Stage.
func (s *Stage) Validate() error {
	if s.cfg.TopK < 1 {
		return fmt.Errorf("%w: reranker top-k must be at least 1, got %d", matching.ErrConfiguration, s.cfg.TopK)
	}
	return matching.ValidateWeight("reranker weight", s.cfg.Weight)
}

// Status reports the stage configuration.
func (s *Stage) Status() pipeline.Status {
	return pipeline.Status{
		Name:    s.Name(),
		Enabled: s.IsEnabled(),
		Reason:  s.Reason(),
		Details: map[string]string{
			"model":  s.scorer.Model(),
			"top_k":  strconv.Itoa(s.cfg.TopK),
			"weight": strconv.FormatFloat(s.cfg.Weight, 'f', 2, 64),
		},
	}
}

// Apply implements pipeline.Stage. The window is sorted by rerank score,
// ties keeping the incoming order. A scorer failure leaves the ranking
// unchanged and flags the window results.
func (s *Stage) Apply(ctx context.Context, req pipeline.Request, results []matching.MatchResult) ([]matching.MatchResult, pipeline.Step, error) {
	window, rest := pipeline.Split(results, s.cfg.TopK)
	step := pipeline.Step{Total: len(results), Window: len(window)}
	if len(window) == 0 {
		return window, step, nil
	}

	query := documentText(req.Query)
	documents := make([]string, len(window))
	for i, r := range window {
		documents[i] = documentText(req.Item(r))
	}

	scores, err := s.scorer.Score(ctx, query, documents)
	if err == nil && scores != nil && len(scores) != len(documents) {
		err = fmt.Errorf("scorer returned %d scores for %d documents", len(scores), len(documents))
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, step, ctxErr
		}
		s.logger.Warn("rerank failed, keeping composite order", zap.Int("window", len(window)), zap.Error(err))
		failure := fmt.Errorf("%w: %w", matching.ErrRerank, err)
		for i := range window {
			window[i] = window[i].WithDegradation(matching.DegradedRerank, failure)
		}
		step.Degraded = len(window)
		return append(window, rest...), step, nil
	}
	if scores == nil {
		return append(window, rest...), step, nil
	}

	for i := range window {
		score := matching.Clamp01(scores[i])
		window[i].Rerank = &score
		window[i].Final = matching.Blend(score, window[i].Final, s.cfg.Weight)
	}
	slices.SortStableFunc(window, func(a, b matching.MatchResult) int {
		return cmp.Compare(*b.Rerank, *a.Rerank)
	})

	return append(window, rest...), step, nil
}

func documentText(p *profile.Profile) string {
	if p == nil {
		return ""
	}
	text := p.RawText
	if text == "" {
		text = p.Text
	}
	return textutil.Truncate(text, maxDocumentRunes)
}
