// Package rerank reorders the top of a composite ranking with a pairwise
// relevance scorer.
package rerank

import (
	"context"

	"github.com/spigell/hh-matcher/internal/textutil"
)

// Scorer returns one relevance score per document for the query. A nil
// slice with a nil error means the scorer has no opinion and the ranking is
// left as is.
type Scorer interface {
	Score(ctx context.Context, query string, documents []string) ([]float64, error)
	Model() string
}

// Noop is the scorer used when reranking is not configured.
type Noop struct{}

// Score implements Scorer.
func (Noop) Score(context.Context, string, []string) ([]float64, error) { return nil, nil }

// Model implements Scorer.
func (Noop) Model() string { return "noop" }

// Lexical scores documents by the Dice coefficient of their content token
// sets against the query. It runs locally and never fails.
type Lexical struct{}

// LexicalModel is the model name reported by Lexical.
const LexicalModel = "lexical-dice"

// Model implements Scorer.
func (Lexical) Model() string { return LexicalModel }

// Score implements Scorer.
func (Lexical) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	q := tokenSet(query)
	scores := make([]float64, len(documents))
	for i, doc := range documents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scores[i] = dice(q, tokenSet(doc))
	}
	return scores, nil
}

func tokenSet(text string) map[string]struct{} {
	tokens := textutil.ContentTokens(textutil.Terms(text))
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func dice(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for t := range a {
		if _, ok := b[t]; ok {
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(a)+len(b))
}
