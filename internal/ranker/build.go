package ranker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hh-matcher/internal/ai"
	"github.com/spigell/hh-matcher/internal/ai/gemini"
	"github.com/spigell/hh-matcher/internal/config"
	"github.com/spigell/hh-matcher/internal/courses"
	"github.com/spigell/hh-matcher/internal/embedding"
	"github.com/spigell/hh-matcher/internal/embedding/qdrant"
	"github.com/spigell/hh-matcher/internal/rerank"
	"github.com/spigell/hh-matcher/internal/vocabulary"
)

// Build wires the external collaborators named by cfg and returns a Service.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	vocab, err := loadVocabulary(cfg.Data.Vocabulary)
	if err != nil {
		return nil, err
	}

	catalogue, err := loadCourses(cfg.Data.Courses, vocab, log)
	if err != nil {
		return nil, err
	}

	deps := Dependencies{Vocabulary: vocab, Courses: catalogue}
	registry := embedding.NewRegistry(log)

	if err := wireGemini(ctx, cfg, registry, &deps, log); err != nil {
		return nil, err
	}

	deps.Embedder, err = registry.Resolve(ctx, cfg.Embeddings.Model, cfg.Embeddings.FallbackModel)
	if err != nil {
		return nil, fmt.Errorf("resolve embedding model: %w", err)
	}

	if deps.Store, err = newStore(ctx, cfg, deps.Embedder.Model(), log); err != nil {
		return nil, err
	}

	if cfg.Matching.UseReranker {
		if deps.Reranker, err = newRerankScorer(cfg, log); err != nil {
			return nil, err
		}
	}

	return New(cfg, deps, log)
}

func loadVocabulary(path string) (*vocabulary.Vocabulary, error) {
	if strings.TrimSpace(path) == "" {
		return vocabulary.Default()
	}
	vocab, err := vocabulary.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}
	return vocab, nil
}

func loadCourses(path string, vocab *vocabulary.Vocabulary, log *zap.Logger) (*courses.Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return courses.New(nil, vocab), nil
	}
	catalogue, err := courses.LoadCSV(path, vocab)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn("course catalog not found, recommendations disabled", zap.String("path", path))
		return courses.New(nil, vocab), nil
	}
	return catalogue, err
}

// wireGemini creates the Gemini judge, parser and embedding factory. A
// missing API key is fatal only when a required feature needs it; the
// embedding model then falls back through the registry.
func wireGemini(ctx context.Context, cfg *config.Config, registry *embedding.Registry, deps *Dependencies, log *zap.Logger) error {
	if !cfg.NeedsGemini() {
		return nil
	}

	strategy, err := cfg.Strategy()
	if err != nil {
		return err
	}
	required := strategy.UsesAI() || cfg.Matching.ParseWithLLMOnly

	apiKey, err := cfg.GeminiAPIKey()
	if err != nil {
		if required {
			return fmt.Errorf("loading gemini api key: %w", err)
		}
		log.Warn("gemini api key is not configured, gemini embeddings unavailable", zap.Error(err))
		return nil
	}

	client, err := gemini.NewClient(ctx, apiKey)
	if err != nil {
		return err
	}

	registry.Register(embedding.ProviderGemini, func(_ context.Context, model string) (embedding.Embedder, error) {
		return gemini.NewEmbedder(client, model, log)
	})

	if !required {
		return nil
	}

	g := cfg.AI.Gemini
	generator, err := gemini.NewGenerator(client, g.Model, g.MaxRetries, log)
	if err != nil {
		return err
	}

	if strategy.UsesAI() {
		judge := gemini.NewJudge(generator, g.MaxLogLength, log)
		judge.SetPromptOverrides(gemini.PromptOverrides{
			Criteria:         g.Criteria,
			MustHave:         g.MustHave,
			UserInstructions: g.UserInstructions,
		})
		deps.Judge = judge
	}
	if cfg.Matching.ParseWithLLMOnly {
		deps.Parser = gemini.NewParser(generator, g.MaxLogLength, log)
	}
	return nil
}

var (
	_ ai.Judge        = (*gemini.Judge)(nil)
	_ ai.EntityParser = (*gemini.Parser)(nil)
)

// newStore connects the persistent embedding tier. Connection problems are
// logged and the cache runs memory-only.
func newStore(ctx context.Context, cfg *config.Config, model string, log *zap.Logger) (embedding.Store, error) {
	if cfg.Embeddings.Store.Type != config.StoreQdrant {
		return nil, nil
	}

	info, err := embedding.LookupModel(model)
	if err != nil {
		return nil, err
	}
	apiKey, err := cfg.QdrantAPIKey()
	if err != nil {
		return nil, err
	}

	q := cfg.Embeddings.Store.Qdrant
	collection := q.Collection
	if strings.TrimSpace(collection) == "" {
		collection = "hh-matcher-" + info.ID
	}

	store, err := qdrant.New(qdrant.Config{
		URL:        q.URL,
		APIKey:     apiKey,
		Collection: collection,
		Dimensions: info.Dimensions,
	}, log)
	if err != nil {
		return nil, err
	}

	if err := store.EnsureCollection(ctx); err != nil {
		log.Warn("qdrant unavailable, embeddings stay in memory", zap.String("url", q.URL), zap.Error(err))
		_ = store.Close()
		return nil, nil
	}
	return store, nil
}

func newRerankScorer(cfg *config.Config, log *zap.Logger) (rerank.Scorer, error) {
	if cfg.Reranker.Provider != config.RerankerHTTP {
		return rerank.Lexical{}, nil
	}

	apiKey, err := cfg.RerankerAPIKey()
	if err != nil {
		return nil, err
	}
	h := cfg.Reranker.HTTP
	return rerank.NewHTTPScorer(rerank.HTTPConfig{
		URL:     h.URL,
		Model:   h.Model,
		APIKey:  apiKey,
		Timeout: h.Timeout,
		Logits:  h.Logits,
	}, log)
}
