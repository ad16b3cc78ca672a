package embedding

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/spigell/hh-matcher/internal/textutil"
)

// Embedder turns texts into vectors with one model.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// ComputeWith adapts an embedder to a single-text ComputeFunc.
func ComputeWith(e Embedder) ComputeFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vectors, err := e.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vectors) != 1 {
			return nil, fmt.Errorf("embedder %s returned %d vectors for 1 text", e.Model(), len(vectors))
		}
		return vectors[0], nil
	}
}

// HashingModel is the identifier of the local feature-hashing embedder.
const HashingModel = "hashing-bow-512"

const hashingDimensions = 512

// HashingEmbedder is a deterministic local embedder: content tokens and
// adjacent token pairs are hashed into a fixed number of signed buckets and
// the result is L2-normalized. It needs no model download and never fails.
type HashingEmbedder struct {
	dims int
}

// NewHashingEmbedder returns the 512-dimensional hashing embedder.
func NewHashingEmbedder() *HashingEmbedder {
	return &HashingEmbedder{dims: hashingDimensions}
}

// Model implements Embedder.
func (h *HashingEmbedder) Model() string { return HashingModel }

// Dimensions returns the vector size.
func (h *HashingEmbedder) Dimensions() int { return h.dims }

// Embed implements Embedder.
func (h *HashingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, h.embed(text))
	}
	return out, nil
}

func (h *HashingEmbedder) embed(text string) []float32 {
	vector := make([]float32, h.dims)
	tokens := textutil.ContentTokens(textutil.Terms(text))

	for i, token := range tokens {
		h.add(vector, token, 1)
		if i > 0 {
			h.add(vector, tokens[i-1]+" "+token, 0.5)
		}
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vector
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vector {
		vector[i] *= scale
	}
	return vector
}

func (h *HashingEmbedder) add(vector []float32, feature string, weight float32) {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(feature))
	sum := hasher.Sum64()

	bucket := sum % uint64(h.dims)
	if sum>>63 == 1 {
		weight = -weight
	}
	vector[bucket] += weight
}

// Cosine returns the cosine similarity of a and b. Mismatched lengths are an
// error; a zero vector yields 0.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector length mismatch: %d != %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, errors.New("empty vectors")
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
