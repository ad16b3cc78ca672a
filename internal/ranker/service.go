// Package ranker is the outward interface of the matcher: it turns job and
// candidate records into ranked, explained match results.
package ranker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/hh-matcher/internal/ai"
	"github.com/spigell/hh-matcher/internal/catalog"
	"github.com/spigell/hh-matcher/internal/config"
	"github.com/spigell/hh-matcher/internal/courses"
	"github.com/spigell/hh-matcher/internal/embedding"
	"github.com/spigell/hh-matcher/internal/logger"
	"github.com/spigell/hh-matcher/internal/matching"
	"github.com/spigell/hh-matcher/internal/pipeline"
	"github.com/spigell/hh-matcher/internal/profile"
	"github.com/spigell/hh-matcher/internal/rerank"
	"github.com/spigell/hh-matcher/internal/vocabulary"
)

// ErrInvalidRequest marks a scoring request that cannot be served as given.
var ErrInvalidRequest = errors.New("invalid request")

// defaultScoreConcurrency bounds parallel profile building and pair scoring
// when the embedding compute limit is unset.
const defaultScoreConcurrency = 8

// Dependencies are the collaborators of a Service. Nil fields fall back to
// local implementations or switch the related feature off.
type Dependencies struct {
	Vocabulary *vocabulary.Vocabulary
	Courses    *courses.Catalog
	Embedder   embedding.Embedder
	Store      embedding.Store
	Reranker   rerank.Scorer
	Judge      ai.Judge
	Parser     ai.EntityParser
}

// Service scores jobs against candidates. It is safe for concurrent use.
type Service struct {
	cfg       *config.Config
	extractor *profile.Extractor
	cache     *embedding.Cache
	semantic  *matching.SemanticScorer
	engine    *matching.Engine
	stages    []pipeline.Stage
	parser    ai.EntityParser
	courses   *courses.Catalog
	logger    *zap.Logger
}

// New validates cfg and assembles a Service from deps.
func New(cfg *config.Config, deps Dependencies, log *zap.Logger) (*Service, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = logger.WithFields(log)

	vocab := deps.Vocabulary
	if vocab == nil {
		var err error
		if vocab, err = vocabulary.Default(); err != nil {
			return nil, fmt.Errorf("load built-in vocabulary: %w", err)
		}
	}

	catalogue := deps.Courses
	if catalogue == nil {
		catalogue = courses.New(nil, vocab)
	}

	embedder := deps.Embedder
	if embedder == nil {
		embedder = embedding.NewHashingEmbedder()
	}

	e := cfg.Embeddings
	cache, err := embedding.NewCache(embedding.Options{
		Capacity:          e.CacheCapacity,
		ComputeTimeout:    e.ComputeTimeout,
		MaxConcurrent:     e.MaxConcurrent,
		WarmupConcurrency: e.WarmupConcurrency,
		WarmupRate:        e.WarmupRate,
		Store:             deps.Store,
		Logger:            log,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	semantic, err := matching.NewSemanticScorer(cache, embedder, cfg.Matching.SemanticSections...)
	if err != nil {
		return nil, err
	}

	engine, err := matching.NewEngine(matching.EngineConfig{
		CoverageWeight: cfg.Matching.CoverageWeight,
		Direction:      matching.Direction(cfg.Matching.CoverageDirection),
	}, semantic, log)
	if err != nil {
		return nil, err
	}

	strategy, err := cfg.Strategy()
	if err != nil {
		return nil, err
	}

	return &Service{
		cfg:       cfg,
		extractor: profile.NewExtractor(vocab, profile.WithFuzzyThreshold(cfg.Matching.FuzzyThreshold)),
		cache:     cache,
		semantic:  semantic,
		engine:    engine,
		stages:    newStages(cfg, strategy, deps, log),
		parser:    deps.Parser,
		courses:   catalogue,
		logger:    log,
	}, nil
}

func newStages(cfg *config.Config, strategy matching.Strategy, deps Dependencies, log *zap.Logger) []pipeline.Stage {
	scorer := deps.Reranker
	if scorer == nil {
		scorer = rerank.Lexical{}
	}
	reranker := rerank.NewStage(rerank.Config{
		TopK:   cfg.Matching.RerankerTopK,
		Weight: cfg.Matching.RerankerWeight,
	}, scorer, log)
	if !cfg.Matching.UseReranker {
		reranker.Disable("use-reranker is off")
	}

	blend := ai.NewBlendStage(ai.BlendConfig{
		Strategy:    strategy,
		Weight:      cfg.Matching.AIBlendWeight,
		TopK:        cfg.Matching.AITopK,
		Timeout:     cfg.Matching.AITimeout,
		Concurrency: cfg.Matching.AIConcurrency,
	}, deps.Judge, log)

	return []pipeline.Stage{reranker, blend}
}

// Profile builds the profile of one document. With parse-with-llm-only the
// external parser supplies the skills and local extraction is the fallback
// when it fails. Declared skills are merged in front of the parsed ones.
func (s *Service) Profile(ctx context.Context, id, text string, kind profile.Kind, declared []string) *profile.Profile {
	var p *profile.Profile
	if s.cfg.Matching.ParseWithLLMOnly && s.parser != nil {
		entities, err := s.parser.Parse(ctx, text, kind)
		if err == nil {
			p = s.extractor.FromSkills(text, kind, entities.Skills)
		} else {
			s.logger.Warn("llm parse failed, using local extraction",
				zap.String("id", id),
				zap.String("kind", string(kind)),
				zap.Error(fmt.Errorf("%w: %w", matching.ErrExtraction, err)),
			)
		}
	}
	if p == nil {
		p = s.extractor.Extract(text, kind)
	}
	return s.extractor.WithDeclared(p, declared)
}

func (s *Service) jobProfile(ctx context.Context, job catalog.Job) *profile.Profile {
	return s.Profile(ctx, job.ID, job.Text(), profile.KindJob, job.Skills)
}

func (s *Service) candidateProfile(ctx context.Context, candidate catalog.Candidate) *profile.Profile {
	return s.Profile(ctx, candidate.ID, candidate.Text, profile.KindResume, candidate.Skills)
}

// ScoreCandidates ranks candidates for job. Every candidate gets a result;
// degraded components are flagged on the result instead of dropping it.
func (s *Service) ScoreCandidates(ctx context.Context, job catalog.Job, candidates []catalog.Candidate) ([]matching.MatchResult, error) {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	if err := uniqueIDs("candidate", ids); err != nil {
		return nil, err
	}

	query := s.jobProfile(ctx, job)
	items, err := buildProfiles(ctx, s.concurrency(), candidates, s.candidateProfile)
	if err != nil {
		return nil, err
	}

	pairs := make([]matching.Pair, len(candidates))
	for i, c := range candidates {
		pairs[i] = matching.Pair{JobID: job.ID, CandidateID: c.ID, Job: query, Candidate: items[i]}
	}

	return s.rank(ctx, pipeline.ModeScreenCandidates, query, ids, items, pairs)
}

// MatchJobs ranks jobs for one candidate's resume.
func (s *Service) MatchJobs(ctx context.Context, candidate catalog.Candidate, jobs catalog.Jobs) ([]matching.MatchResult, error) {
	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	if err := uniqueIDs("job", ids); err != nil {
		return nil, err
	}

	query := s.candidateProfile(ctx, candidate)
	items, err := buildProfiles(ctx, s.concurrency(), jobs, s.jobProfile)
	if err != nil {
		return nil, err
	}

	pairs := make([]matching.Pair, len(jobs))
	for i, j := range jobs {
		pairs[i] = matching.Pair{JobID: j.ID, CandidateID: candidate.ID, Job: items[i], Candidate: query}
	}

	return s.rank(ctx, pipeline.ModeMatchJobs, query, ids, items, pairs)
}

func (s *Service) rank(ctx context.Context, mode pipeline.Mode, query *profile.Profile, ids []string, items []*profile.Profile, pairs []matching.Pair) ([]matching.MatchResult, error) {
	results, err := s.scorePairs(ctx, pairs)
	if err != nil {
		return nil, err
	}

	req := pipeline.Request{Mode: mode, Query: query, Items: make(map[string]*profile.Profile, len(items))}
	for i, id := range ids {
		req.Items[id] = items[i]
	}

	ranked, err := pipeline.Run(ctx, s.logger, s.stages, req, matching.SortByComposite(results))
	if err != nil {
		return nil, err
	}

	s.logger.Info("ranking finished",
		zap.String("mode", string(mode)),
		zap.Int("results", len(ranked)),
		zap.Int("degraded", countDegraded(ranked)),
	)
	return ranked, nil
}

func (s *Service) scorePairs(ctx context.Context, pairs []matching.Pair) ([]matching.MatchResult, error) {
	results := make([]matching.MatchResult, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency())
	for i, pair := range pairs {
		g.Go(func() error {
			results[i] = s.engine.Score(gctx, pair)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func buildProfiles[T any](ctx context.Context, limit int, records []T, build func(context.Context, T) *profile.Profile) ([]*profile.Profile, error) {
	profiles := make([]*profile.Profile, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, record := range records {
		g.Go(func() error {
			profiles[i] = build(gctx, record)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return profiles, ctx.Err()
}

func (s *Service) concurrency() int {
	if n := s.cfg.Embeddings.MaxConcurrent; n > 0 {
		return n
	}
	return defaultScoreConcurrency
}

func uniqueIDs(kind string, ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			return fmt.Errorf("%w: %s id is empty", ErrInvalidRequest, kind)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate %s id %q", ErrInvalidRequest, kind, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func countDegraded(results []matching.MatchResult) int {
	n := 0
	for _, r := range results {
		if len(r.Degraded) > 0 {
			n++
		}
	}
	return n
}
