package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/hh-matcher/internal/embedding"
	"github.com/spigell/hh-matcher/internal/profile"
)

// Similarity scores how close two profiles are, in [0,1].
type Similarity interface {
	Similarity(ctx context.Context, a, b *profile.Profile) (float64, error)
}

// SemanticScorer compares profiles through cached embeddings.
type SemanticScorer struct {
	cache    *embedding.Cache
	embedder embedding.Embedder
	compute  embedding.ComputeFunc
	sections []string
}

var _ Similarity = (*SemanticScorer)(nil)

// NewSemanticScorer builds a scorer. When sections are given, only the text
// of those sections is embedded; profiles with none of them fall back to
// their whole text.
func NewSemanticScorer(cache *embedding.Cache, embedder embedding.Embedder, sections ...string) (*SemanticScorer, error) {
	if cache == nil {
		return nil, errors.New("embedding cache is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	return &SemanticScorer{
		cache:    cache,
		embedder: embedder,
		compute:  embedding.ComputeWith(embedder),
		sections: sections,
	}, nil
}

// Model returns the embedding model id used for every comparison.
func (s *SemanticScorer) Model() string {
	return s.embedder.Model()
}

// Embed returns the cached embedding of a text under the scorer's model.
func (s *SemanticScorer) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.cache.GetOrCompute(ctx, text, s.Model(), s.compute)
}

// Warmup pre-computes embeddings for texts.
func (s *SemanticScorer) Warmup(ctx context.Context, texts []string) (embedding.WarmupReport, error) {
	return s.cache.Warmup(ctx, texts, s.Model(), s.compute)
}

// Text returns the text of p that the scorer embeds.
func (s *SemanticScorer) Text(p *profile.Profile) string {
	if p == nil {
		return ""
	}
	if len(s.sections) == 0 {
		return p.Text
	}

	parts := make([]string, 0, len(s.sections))
	for _, name := range s.sections {
		if text, ok := p.Section(name); ok {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return p.Text
	}
	return strings.Join(parts, "\n")
}

// Similarity implements Similarity. The cosine is rescaled from [-1,1] to
// [0,1]; empty texts and zero vectors give 0.
func (s *SemanticScorer) Similarity(ctx context.Context, a, b *profile.Profile) (float64, error) {
	textA, textB := s.Text(a), s.Text(b)
	if textA == "" || textB == "" {
		return 0, nil
	}

	va, err := s.Embed(ctx, textA)
	if err != nil {
		return 0, err
	}
	vb, err := s.Embed(ctx, textB)
	if err != nil {
		return 0, err
	}

	if isZero(va) || isZero(vb) {
		return 0, nil
	}
	cosine, err := embedding.Cosine(va, vb)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrEmbeddingCompute, err)
	}
	return Rescale(cosine), nil
}

// Rescale maps a cosine in [-1,1] onto [0,1].
func Rescale(cosine float64) float64 {
	return clamp01((cosine + 1) / 2)
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
