package ranker

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hh-matcher/internal/catalog"
	"github.com/spigell/hh-matcher/internal/courses"
	"github.com/spigell/hh-matcher/internal/embedding"
	"github.com/spigell/hh-matcher/internal/matching"
	"github.com/spigell/hh-matcher/internal/pipeline"
	"github.com/spigell/hh-matcher/internal/profile"
)

// GapReport lists what a candidate lacks for a job.
type GapReport struct {
	JobID       string  `json:"job_id"`
	CandidateID string  `json:"candidate_id"`
	Coverage    float64 `json:"coverage_score"`
	// Missing is the job skill order minus the candidate skills.
	Missing []string            `json:"missing_skills"`
	Ranked  []matching.GapSkill `json:"ranked"`
}

// ComputeGap returns the job skills the candidate lacks, in job order, along
// with their importance ranking.
func (s *Service) ComputeGap(ctx context.Context, candidate catalog.Candidate, job catalog.Job) GapReport {
	jp := s.jobProfile(ctx, job)
	cp := s.candidateProfile(ctx, candidate)

	return GapReport{
		JobID:       job.ID,
		CandidateID: candidate.ID,
		Coverage:    matching.Coverage(cp.Skills, jp.Skills, s.engine.Direction()),
		Missing:     matching.Gap(cp.Skills, jp.Skills),
		Ranked:      matching.RankGap(cp, jp),
	}
}

// RecommendCourses suggests catalog courses for the missing skills. topN <= 0
// uses the configured courses-top-n.
func (s *Service) RecommendCourses(missing []string, topN int) []courses.Recommendation {
	if topN <= 0 {
		topN = s.cfg.Matching.CoursesTopN
	}
	return s.courses.Recommend(missing, topN)
}

// Warmup pre-computes embeddings for texts under modelID. An empty modelID
// means the active model; any other model is rejected since the service
// embeds with exactly one.
func (s *Service) Warmup(ctx context.Context, texts []string, modelID string) (embedding.WarmupReport, error) {
	if modelID = strings.TrimSpace(modelID); modelID != "" && modelID != s.semantic.Model() {
		return embedding.WarmupReport{}, fmt.Errorf("%w: %q is not the active model %q", embedding.ErrUnknownModel, modelID, s.semantic.Model())
	}
	return s.semantic.Warmup(ctx, texts)
}

// WarmupJobs pre-computes the embeddings the scorer will request for jobs.
func (s *Service) WarmupJobs(ctx context.Context, jobs catalog.Jobs) (embedding.WarmupReport, error) {
	texts := make([]string, 0, len(jobs))
	for _, job := range jobs {
		// local extraction yields the same text and sections the scorer embeds
		p := s.extractor.Extract(job.Text(), profile.KindJob)
		if text := s.semantic.Text(p); text != "" {
			texts = append(texts, text)
		}
	}

	s.logger.Info("warming up job embeddings", zap.Int("jobs", len(jobs)), zap.String("model", s.semantic.Model()))
	return s.semantic.Warmup(ctx, texts)
}

// Description summarizes the active configuration.
type Description struct {
	EmbeddingModel string             `json:"embedding_model"`
	Strategy       matching.Strategy  `json:"strategy"`
	Direction      matching.Direction `json:"coverage_direction"`
	CoverageWeight float64            `json:"coverage_weight"`
	Stages         []pipeline.Status  `json:"stages"`
	Cache          embedding.Stats    `json:"cache"`
	Skills         int                `json:"vocabulary_skills"`
	Courses        int                `json:"courses"`
}

func (s *Service) Describe() Description {
	strategy, _ := s.cfg.Strategy()
	return Description{
		EmbeddingModel: s.semantic.Model(),
		Strategy:       strategy,
		Direction:      s.engine.Direction(),
		CoverageWeight: s.cfg.Matching.CoverageWeight,
		Stages:         pipeline.Describe(s.stages),
		Cache:          s.cache.Stats(),
		Skills:         s.extractor.Vocabulary().Len(),
		Courses:        s.courses.Len(),
	}
}

// Close releases the embedding cache and its store.
func (s *Service) Close() error {
	return s.cache.Close()
}
