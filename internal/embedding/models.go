package embedding

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/hh-matcher/internal/logger"
)

// ErrUnknownModel is returned for embedding model identifiers not in the registry.
var ErrUnknownModel = errors.New("unknown embedding model")

// Provider names the backend serving a model.
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderGemini Provider = "gemini"
)

// ModelInfo describes a known embedding model.
type ModelInfo struct {
	ID         string   `json:"id"`
	Provider   Provider `json:"provider"`
	Dimensions int      `json:"dimensions"`
}

var knownModels = map[string]ModelInfo{
	HashingModel:           {ID: HashingModel, Provider: ProviderLocal, Dimensions: hashingDimensions},
	"text-embedding-004":   {ID: "text-embedding-004", Provider: ProviderGemini, Dimensions: 768},
	"gemini-embedding-001": {ID: "gemini-embedding-001", Provider: ProviderGemini, Dimensions: 3072},
}

// LookupModel returns the description of a known model id.
func LookupModel(id string) (ModelInfo, error) {
	info, ok := knownModels[strings.TrimSpace(id)]
	if !ok {
		return ModelInfo{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownModel, id, strings.Join(KnownModels(), ", "))
	}
	return info, nil
}

// KnownModels lists the registered model ids in sorted order.
func KnownModels() []string {
	ids := make([]string, 0, len(knownModels))
	for id := range knownModels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Factory builds an embedder for a model served by one provider.
type Factory func(ctx context.Context, model string) (Embedder, error)

// Registry resolves model ids to embedders through per-provider factories.
// The local provider is always registered.
type Registry struct {
	mu        sync.RWMutex
	factories map[Provider]Factory
	logger    *zap.Logger
}

// NewRegistry returns a registry with the local hashing embedder registered.
func NewRegistry(log *zap.Logger) *Registry {
	r := &Registry{
		factories: make(map[Provider]Factory),
		logger:    logger.WithFields(log, zap.String("component", "embedding-registry")),
	}
	r.Register(ProviderLocal, func(context.Context, string) (Embedder, error) {
		return NewHashingEmbedder(), nil
	})
	return r
}

// Register installs the factory for a provider, replacing any previous one.
func (r *Registry) Register(p Provider, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[p] = f
}

// Resolve builds the embedder for primary and falls back to fallback when the
// primary model cannot be constructed. Unknown ids are rejected before
// anything is built.
func (r *Registry) Resolve(ctx context.Context, primary, fallback string) (Embedder, error) {
	primaryInfo, err := LookupModel(primary)
	if err != nil {
		return nil, err
	}

	var fallbackInfo *ModelInfo
	if fallback = strings.TrimSpace(fallback); fallback != "" && fallback != primaryInfo.ID {
		info, err := LookupModel(fallback)
		if err != nil {
			return nil, err
		}
		fallbackInfo = &info
	}

	embedder, err := r.build(ctx, primaryInfo)
	if err == nil {
		return embedder, nil
	}
	if fallbackInfo == nil {
		return nil, err
	}

	r.logger.Warn("embedding model unavailable, using fallback",
		zap.String(logger.FieldModel, primaryInfo.ID),
		zap.String("fallback", fallbackInfo.ID),
		zap.Error(err),
	)

	embedder, fbErr := r.build(ctx, *fallbackInfo)
	if fbErr != nil {
		return nil, fmt.Errorf("fallback model %s: %w (primary: %w)", fallbackInfo.ID, fbErr, err)
	}
	return embedder, nil
}

func (r *Registry) build(ctx context.Context, info ModelInfo) (Embedder, error) {
	r.mu.RLock()
	factory, ok := r.factories[info.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no %s provider configured for model %s", info.Provider, info.ID)
	}

	embedder, err := factory(ctx, info.ID)
	if err != nil {
		return nil, fmt.Errorf("build embedder %s: %w", info.ID, err)
	}
	return embedder, nil
}
