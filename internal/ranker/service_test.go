package ranker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/hh-matcher/internal/ai"
	"github.com/spigell/hh-matcher/internal/catalog"
	"github.com/spigell/hh-matcher/internal/config"
	"github.com/spigell/hh-matcher/internal/courses"
	"github.com/spigell/hh-matcher/internal/embedding"
	"github.com/spigell/hh-matcher/internal/matching"
	"github.com/spigell/hh-matcher/internal/profile"
)

type fakeJudge struct {
	mu    sync.Mutex
	calls int
	err   error
	score float64
}

func (f *fakeJudge) Evaluate(_ context.Context, _, _ *profile.Profile) (*ai.Assessment, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &ai.Assessment{Score: f.score, Feedback: "judged"}, nil
}

type fakeParser struct {
	skills []string
	err    error
}

func (f *fakeParser) Parse(context.Context, string, profile.Kind) (*ai.Entities, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ai.Entities{Skills: f.skills}, nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Embeddings.Model = embedding.HashingModel
	cfg.Data = config.DataConfig{}
	return cfg
}

func newTestService(t *testing.T, cfg *config.Config, deps Dependencies) *Service {
	t.Helper()
	svc, err := New(cfg, deps, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

var (
	pythonJob = catalog.Job{ID: "j1", Title: "Data Engineer", Skills: []string{"python", "sql", "docker"}}
	goJob     = catalog.Job{ID: "j2", Title: "Go Developer", Description: "Golang services on Kubernetes"}

	candidates = []catalog.Candidate{
		{ID: "c-partial", Text: "I write Python"},
		{ID: "c-full", Text: "Python, SQL and Docker in production"},
		{ID: "c-empty", Text: ""},
	}
)

func resultIDs(results []matching.MatchResult, job bool) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		if job {
			ids[i] = r.JobID
		} else {
			ids[i] = r.CandidateID
		}
	}
	return ids
}

func TestScoreCandidatesRanksEveryCandidate(t *testing.T) {
	svc := newTestService(t, testConfig(), Dependencies{})

	results, err := svc.ScoreCandidates(context.Background(), pythonJob, candidates)
	require.NoError(t, err)

	require.Len(t, results, len(candidates))
	assert.Equal(t, []string{"c-full", "c-partial", "c-empty"}, resultIDs(results, false))

	best := results[0]
	assert.Equal(t, 1.0, best.Coverage)
	assert.Empty(t, best.MissingSkills)
	assert.NotNil(t, best.Rerank)
	assert.Contains(t, best.Feedback, "Covers 100% JD skills")

	empty := results[2]
	assert.Equal(t, 0.0, empty.Coverage)
	assert.Equal(t, []string{"python", "sql", "docker"}, empty.MissingSkills)
	for _, r := range results {
		assert.Empty(t, r.Degraded)
	}
}

func TestScoreCandidatesCoverageExample(t *testing.T) {
	cfg := testConfig()
	cfg.Matching.UseReranker = false
	svc := newTestService(t, cfg, Dependencies{})

	results, err := svc.ScoreCandidates(context.Background(), pythonJob, []catalog.Candidate{
		{ID: "c1", Text: "python and sql"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.InDelta(t, 0.667, results[0].Coverage, 0.001)
	assert.Equal(t, []string{"docker"}, results[0].MissingSkills)
	assert.Equal(t, results[0].Composite, results[0].Final)
}

func TestScoreCandidatesRejectsDuplicateIDs(t *testing.T) {
	svc := newTestService(t, testConfig(), Dependencies{})

	_, err := svc.ScoreCandidates(context.Background(), pythonJob, []catalog.Candidate{{ID: "a"}, {ID: "a"}})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.MatchJobs(context.Background(), candidates[0], catalog.Jobs{{Title: "no id"}})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestScoreCandidatesAIFailureKeepsLocalScore(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	cfg := testConfig()
	cfg.Matching.UseReranker = false
	cfg.Matching.UseAIMatch = true
	judge := &fakeJudge{err: errors.New("quota exhausted")}

	svc, err := New(cfg, Dependencies{Judge: judge}, zap.New(core))
	require.NoError(t, err)
	defer svc.Close()

	results, err := svc.ScoreCandidates(context.Background(), pythonJob, candidates)
	require.NoError(t, err)
	require.Len(t, results, len(candidates))

	for _, r := range results {
		assert.Equal(t, r.Composite, r.Final, "final must equal the local score for %s", r.CandidateID)
		assert.True(t, r.IsDegraded(matching.DegradedAI))
		assert.Contains(t, r.AIError(), "quota exhausted")
	}
	assert.Equal(t, len(candidates), judge.calls)
	assert.Equal(t, len(candidates), logs.FilterMessage("ai judge failed, keeping local score").Len())
}

func TestScoreCandidatesBlendsAIScore(t *testing.T) {
	cfg := testConfig()
	cfg.Matching.UseReranker = false
	cfg.Matching.UseAIMatch = true
	svc := newTestService(t, cfg, Dependencies{Judge: &fakeJudge{score: 1}})

	results, err := svc.ScoreCandidates(context.Background(), pythonJob, candidates[:1])
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	require.NotNil(t, r.AI)
	assert.InDelta(t, 0.4*1+0.6*r.Composite, r.Final, 1e-9)
	assert.Equal(t, "judged", r.AIFeedback)
}

func TestProfileUsesParserWithLocalFallback(t *testing.T) {
	cfg := testConfig()
	cfg.Matching.ParseWithLLMOnly = true

	svc := newTestService(t, cfg, Dependencies{Parser: &fakeParser{skills: []string{"Golang", "Rust"}}})
	p := svc.Profile(context.Background(), "r1", "I know Python", profile.KindResume, []string{"sql"})
	assert.Equal(t, []string{"sql", "go", "rust"}, p.Skills.Slice())

	core, logs := observer.New(zapcore.WarnLevel)
	failing, err := New(cfg, Dependencies{Parser: &fakeParser{err: errors.New("bad json")}}, zap.New(core))
	require.NoError(t, err)
	defer failing.Close()

	p = failing.Profile(context.Background(), "r1", "I know Python", profile.KindResume, nil)
	assert.Equal(t, []string{"python"}, p.Skills.Slice())
	require.Equal(t, 1, logs.FilterMessage("llm parse failed, using local extraction").Len())
}

func TestMatchJobs(t *testing.T) {
	svc := newTestService(t, testConfig(), Dependencies{})

	results, err := svc.MatchJobs(context.Background(), catalog.Candidate{ID: "me", Text: "Golang developer, Kubernetes operator"}, catalog.Jobs{pythonJob, goJob})
	require.NoError(t, err)

	assert.Equal(t, []string{"j2", "j1"}, resultIDs(results, true))
	for _, r := range results {
		assert.Equal(t, "me", r.CandidateID)
	}
}

func TestComputeGapAndCourses(t *testing.T) {
	catalogue := courses.New([]courses.Course{
		{Title: "Docker Basics", URL: "https://example.com/docker", Skills: []string{"docker"}},
		{Title: "SQL and Docker", URL: "https://example.com/sql-docker", Skills: []string{"sql", "docker"}},
	}, nil)
	svc := newTestService(t, testConfig(), Dependencies{Courses: catalogue})

	gap := svc.ComputeGap(context.Background(), catalog.Candidate{ID: "c", Text: "python"}, pythonJob)
	assert.Equal(t, []string{"sql", "docker"}, gap.Missing)
	assert.InDelta(t, 1.0/3, gap.Coverage, 1e-9)
	require.Len(t, gap.Ranked, 2)
	assert.Equal(t, "sql", gap.Ranked[0].Skill)

	recs := svc.RecommendCourses(gap.Missing, 0)
	require.Len(t, recs, 2)
	assert.Equal(t, "SQL and Docker", recs[0].CourseTitle)
	assert.Equal(t, []string{"sql", "docker"}, recs[0].Covers)
	assert.Len(t, svc.RecommendCourses(gap.Missing, 1), 1)
}

func TestWarmup(t *testing.T) {
	svc := newTestService(t, testConfig(), Dependencies{})

	_, err := svc.Warmup(context.Background(), []string{"a"}, "text-embedding-004")
	assert.ErrorIs(t, err, embedding.ErrUnknownModel)

	report, err := svc.WarmupJobs(context.Background(), catalog.Jobs{pythonJob, goJob})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Computed)

	_, err = svc.ScoreCandidates(context.Background(), goJob, candidates[:1])
	require.NoError(t, err)

	stats := svc.Describe().Cache
	assert.Equal(t, 3, stats.Entries)
	assert.GreaterOrEqual(t, stats.Hits, int64(1))
}

func TestDescribe(t *testing.T) {
	cfg := testConfig()
	cfg.Matching.UseReranker = false
	svc := newTestService(t, cfg, Dependencies{})

	desc := svc.Describe()
	assert.Equal(t, embedding.HashingModel, desc.EmbeddingModel)
	assert.Equal(t, matching.StrategyLocalOnly, desc.Strategy)
	require.Len(t, desc.Stages, 2)
	assert.False(t, desc.Stages[0].Enabled)
	assert.Equal(t, "use-reranker is off", desc.Stages[0].Reason)
	assert.False(t, desc.Stages[1].Enabled)
	assert.Positive(t, desc.Skills)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Matching.CoverageWeight = 3

	_, err := New(cfg, Dependencies{}, zap.NewNop())
	assert.ErrorIs(t, err, matching.ErrConfiguration)
}

func TestBuildFallsBackWithoutGeminiKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	core, logs := observer.New(zapcore.WarnLevel)

	cfg := config.Default()
	cfg.Data = config.DataConfig{Courses: "does-not-exist.csv"}

	svc, err := Build(context.Background(), cfg, zap.New(core))
	require.NoError(t, err)
	defer svc.Close()

	assert.Equal(t, embedding.HashingModel, svc.Describe().EmbeddingModel)
	assert.Equal(t, 0, svc.Describe().Courses)

	var messages []string
	for _, entry := range logs.All() {
		messages = append(messages, entry.Message)
	}
	joined := strings.Join(messages, "\n")
	assert.Contains(t, joined, "embedding model unavailable, using fallback")
	assert.Contains(t, joined, "course catalog not found")
}

func TestBuildRequiresKeyForAI(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	cfg := testConfig()
	cfg.Matching.UseAIMatch = true

	_, err := Build(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "gemini api key")
}
