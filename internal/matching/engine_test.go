package matching

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/hh-matcher/internal/embedding"
	"github.com/spigell/hh-matcher/internal/profile"
)

type fixedSimilarity struct {
	score float64
	err   error
}

func (f fixedSimilarity) Similarity(context.Context, *profile.Profile, *profile.Profile) (float64, error) {
	return f.score, f.err
}

func examplePair() Pair {
	return Pair{
		JobID:       "job-1",
		CandidateID: "cand-1",
		Job:         &profile.Profile{Kind: profile.KindJob, Text: "job", Skills: profile.NewSkillSet("python", "sql", "docker")},
		Candidate:   &profile.Profile{Kind: profile.KindResume, Text: "resume", Skills: profile.NewSkillSet("python", "sql")},
	}
}

func TestEngineScore(t *testing.T) {
	engine, err := NewEngine(EngineConfig{CoverageWeight: 0.65}, fixedSimilarity{score: 0.8}, nil)
	require.NoError(t, err)

	result := engine.Score(context.Background(), examplePair())
	assert.Equal(t, "job-1", result.JobID)
	assert.Equal(t, "cand-1", result.CandidateID)
	assert.Equal(t, DirectionJob, result.Direction)
	assert.InDelta(t, 0.667, result.Coverage, 0.001)
	assert.Equal(t, 0.8, result.Semantic)
	assert.InDelta(t, 0.7135, result.Composite, 0.001)
	assert.Equal(t, result.Composite, result.Final)
	assert.Equal(t, []string{"docker"}, result.MissingSkills)
	assert.Equal(t, "Covers 66% JD skills; semantic 80%.", result.Feedback)
	assert.Empty(t, result.Degraded)
	assert.Nil(t, result.Rerank)
	assert.Nil(t, result.AI)
}

func TestEngineDeterministic(t *testing.T) {
	engine, err := NewEngine(EngineConfig{CoverageWeight: 0.5}, fixedSimilarity{score: 0.3}, nil)
	require.NoError(t, err)
	assert.Equal(t, engine.Score(context.Background(), examplePair()), engine.Score(context.Background(), examplePair()))
}

func TestEngineSemanticFailureDegrades(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	engine, err := NewEngine(EngineConfig{CoverageWeight: 0.65}, fixedSimilarity{score: 0.9, err: errors.Join(ErrEmbeddingCompute, errors.New("quota"))}, zap.New(core))
	require.NoError(t, err)

	result := engine.Score(context.Background(), examplePair())
	assert.Zero(t, result.Semantic)
	assert.InDelta(t, 0.65*2.0/3.0, result.Composite, 1e-9)
	assert.True(t, result.IsDegraded(DegradedSemantic))
	assert.Contains(t, result.Errors[DegradedSemantic], "quota")

	entries := logs.FilterMessage("semantic similarity unavailable, scoring on coverage only").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "job-1", entries[0].ContextMap()["job_id"])
}

func TestEngineEmptyResume(t *testing.T) {
	engine, err := NewEngine(EngineConfig{CoverageWeight: 0.65}, nil, nil)
	require.NoError(t, err)

	pair := examplePair()
	pair.Candidate = nil
	result := engine.Score(context.Background(), pair)
	assert.Zero(t, result.Coverage)
	assert.Zero(t, result.Final)
	assert.Equal(t, []string{"python", "sql", "docker"}, result.MissingSkills)
}

func TestNewEngineValidates(t *testing.T) {
	_, err := NewEngine(EngineConfig{CoverageWeight: 1.2}, nil, nil)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewEngine(EngineConfig{CoverageWeight: 0.5, Direction: "up"}, nil, nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestScoreAllSortsStable(t *testing.T) {
	engine, err := NewEngine(EngineConfig{CoverageWeight: 1}, nil, nil)
	require.NoError(t, err)

	job := &profile.Profile{Skills: profile.NewSkillSet("go", "sql")}
	pairs := []Pair{
		{CandidateID: "a", Job: job, Candidate: &profile.Profile{Skills: profile.NewSkillSet("go")}},
		{CandidateID: "b", Job: job, Candidate: &profile.Profile{Skills: profile.NewSkillSet("go", "sql")}},
		{CandidateID: "c", Job: job, Candidate: &profile.Profile{Skills: profile.NewSkillSet("sql")}},
	}

	results := engine.ScoreAll(context.Background(), pairs)
	ids := []string{results[0].CandidateID, results[1].CandidateID, results[2].CandidateID}
	assert.Equal(t, []string{"b", "a", "c"}, ids)
}

func TestResultCloneIsIndependent(t *testing.T) {
	score := 0.5
	r := MatchResult{MissingSkills: []string{"go"}, Rerank: &score}
	clone := r.WithDegradation(DegradedRerank, errors.New("down"))

	clone.MissingSkills[0] = "rust"
	*clone.Rerank = 0.9

	assert.Equal(t, "go", r.MissingSkills[0])
	assert.Equal(t, 0.5, *r.Rerank)
	assert.False(t, r.IsDegraded(DegradedRerank))
	assert.True(t, clone.IsDegraded(DegradedRerank))
}

func TestSemanticScorer(t *testing.T) {
	cache, err := embedding.NewCache(embedding.Options{})
	require.NoError(t, err)
	scorer, err := NewSemanticScorer(cache, embedding.NewHashingEmbedder())
	require.NoError(t, err)

	a := &profile.Profile{Text: "python backend engineer"}
	b := &profile.Profile{Text: "python backend engineer"}
	c := &profile.Profile{Text: "pastry chef"}

	same, err := scorer.Similarity(context.Background(), a, b)
	require.NoError(t, err)
	assert.InDelta(t, 1, same, 1e-6)

	other, err := scorer.Similarity(context.Background(), a, c)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, other, 0.0)
	assert.Less(t, other, same)

	empty, err := scorer.Similarity(context.Background(), a, &profile.Profile{})
	require.NoError(t, err)
	assert.Zero(t, empty)

	// a single computation per distinct text
	assert.Equal(t, 2, cache.Len())
}

type zeroEmbedder struct{}

func (zeroEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, 4)
	}
	return out, nil
}

func (zeroEmbedder) Model() string { return "zero" }

func TestSemanticScorerZeroVectors(t *testing.T) {
	cache, err := embedding.NewCache(embedding.Options{})
	require.NoError(t, err)
	scorer, err := NewSemanticScorer(cache, zeroEmbedder{})
	require.NoError(t, err)

	score, err := scorer.Similarity(context.Background(), &profile.Profile{Text: "a"}, &profile.Profile{Text: "b"})
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestSemanticScorerSections(t *testing.T) {
	cache, err := embedding.NewCache(embedding.Options{})
	require.NoError(t, err)
	scorer, err := NewSemanticScorer(cache, embedding.NewHashingEmbedder(), profile.SectionSkills)
	require.NoError(t, err)

	withSection := &profile.Profile{Text: "full text", Sections: map[string]string{profile.SectionSkills: "go, sql"}}
	without := &profile.Profile{Text: "full text"}

	assert.Equal(t, "go, sql", scorer.Text(withSection))
	assert.Equal(t, "full text", scorer.Text(without))
}

func TestRescale(t *testing.T) {
	assert.Equal(t, 0.0, Rescale(-1))
	assert.Equal(t, 0.5, Rescale(0))
	assert.Equal(t, 1.0, Rescale(1))
	assert.Equal(t, 1.0, Rescale(1.0000001))
}
