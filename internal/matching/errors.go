package matching

import (
	"errors"

	"github.com/spigell/hh-matcher/internal/embedding"
)

var (
	// ErrExtraction marks unusable input text or a failed external parse.
	// Callers recover by falling back to an empty or locally extracted profile.
	ErrExtraction = errors.New("skill extraction failed")
	// ErrEmbeddingCompute marks a failed embedding computation; the pair is
	// scored on coverage alone.
	ErrEmbeddingCompute = embedding.ErrCompute
	// ErrRerank marks a failed pairwise relevance call.
	ErrRerank = errors.New("rerank failed")
	// ErrAIJudge marks a failed or timed out external AI judgment.
	ErrAIJudge = errors.New("ai judge failed")
	// ErrConfiguration marks invalid settings. It is fatal at startup.
	ErrConfiguration = errors.New("invalid configuration")
)
