// Package config holds the hh-matcher settings read through viper from the
// config file, HH_MATCHER_* environment variables and flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/spigell/hh-matcher/internal/ai"
	"github.com/spigell/hh-matcher/internal/embedding"
	"github.com/spigell/hh-matcher/internal/matching"
	"github.com/spigell/hh-matcher/internal/profile"
	"github.com/spigell/hh-matcher/internal/rerank"
	"github.com/spigell/hh-matcher/internal/secrets"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. HH_MATCHER_MATCHING_COVERAGE_WEIGHT.
	EnvPrefix = "HH_MATCHER"

	StoreNone   = "none"
	StoreQdrant = "qdrant"

	RerankerLexical = "lexical"
	RerankerHTTP    = "http"

	ProviderGemini = "gemini"

	geminiAPIKeyEnv     = "GEMINI_API_KEY"
	geminiAPIKeyFileEnv = "GEMINI_API_KEY_FILE"
)

type Config struct {
	Matching   MatchingConfig   `mapstructure:"matching"`
	Embeddings EmbeddingsConfig `mapstructure:"embeddings"`
	Reranker   RerankerConfig   `mapstructure:"reranker"`
	AI         AIConfig         `mapstructure:"ai"`
	Data       DataConfig       `mapstructure:"data"`
	Server     ServerConfig     `mapstructure:"server"`
}

type MatchingConfig struct {
	CoverageWeight    float64       `mapstructure:"coverage-weight"`
	CoverageDirection string        `mapstructure:"coverage-direction"`
	Strategy          string        `mapstructure:"strategy"`
	UseReranker       bool          `mapstructure:"use-reranker"`
	RerankerTopK      int           `mapstructure:"reranker-top-k"`
	RerankerWeight    float64       `mapstructure:"reranker-weight"`
	UseAIMatch        bool          `mapstructure:"use-ai-match"`
	AIBlendWeight     float64       `mapstructure:"ai-blend-weight"`
	AITopK            int           `mapstructure:"ai-top-k"`
	AITimeout         time.Duration `mapstructure:"ai-timeout"`
	AIConcurrency     int           `mapstructure:"ai-concurrency"`
	ParseWithLLMOnly  bool          `mapstructure:"parse-with-llm-only"`
	FuzzyThreshold    float64       `mapstructure:"fuzzy-threshold"`
	SemanticSections  []string      `mapstructure:"semantic-sections"`
	CoursesTopN       int           `mapstructure:"courses-top-n"`
}

type EmbeddingsConfig struct {
	Model             string        `mapstructure:"model"`
	FallbackModel     string        `mapstructure:"fallback-model"`
	CacheCapacity     int           `mapstructure:"cache-capacity"`
	ComputeTimeout    time.Duration `mapstructure:"compute-timeout"`
	MaxConcurrent     int           `mapstructure:"max-concurrent"`
	WarmupConcurrency int           `mapstructure:"warmup-concurrency"`
	WarmupRate        float64       `mapstructure:"warmup-rate"`
	Store             StoreConfig   `mapstructure:"store"`
}

type StoreConfig struct {
	Type   string       `mapstructure:"type"`
	Qdrant QdrantConfig `mapstructure:"qdrant"`
}

type QdrantConfig struct {
	URL        string `mapstructure:"url"`
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Collection string `mapstructure:"collection"`
}

type RerankerConfig struct {
	Provider string             `mapstructure:"provider"`
	HTTP     HTTPRerankerConfig `mapstructure:"http"`
}

type HTTPRerankerConfig struct {
	URL        string        `mapstructure:"url"`
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api-key"`
	APIKeyFile string        `mapstructure:"api-key-file"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Logits     bool          `mapstructure:"logits"`
}

type AIConfig struct {
	Provider string       `mapstructure:"provider"`
	Gemini   GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey           string `mapstructure:"api-key"`
	APIKeyFile       string `mapstructure:"api-key-file"`
	Model            string `mapstructure:"model"`
	MaxRetries       int    `mapstructure:"max-retries"`
	MaxLogLength     int    `mapstructure:"max-log-length"`
	Criteria         string `mapstructure:"criteria"`
	MustHave         string `mapstructure:"must-have"`
	UserInstructions string `mapstructure:"user-instructions"`
}

type DataConfig struct {
	Vocabulary string `mapstructure:"vocabulary"`
	Jobs       string `mapstructure:"jobs"`
	Courses    string `mapstructure:"courses"`
	Resumes    string `mapstructure:"resumes"`
}

type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Matching: MatchingConfig{
			CoverageWeight:    matching.DefaultCoverageWeight,
			CoverageDirection: string(matching.DirectionJob),
			UseReranker:       true,
			RerankerTopK:      rerank.DefaultTopK,
			RerankerWeight:    rerank.DefaultWeight,
			AIBlendWeight:     ai.DefaultWeight,
			AITopK:            ai.DefaultTopK,
			AITimeout:         ai.DefaultTimeout,
			AIConcurrency:     ai.DefaultConcurrency,
			FuzzyThreshold:    profile.DefaultFuzzyThreshold,
			CoursesTopN:       5,
		},
		Embeddings: EmbeddingsConfig{
			Model:             "text-embedding-004",
			FallbackModel:     embedding.HashingModel,
			ComputeTimeout:    30 * time.Second,
			MaxConcurrent:     8,
			WarmupConcurrency: 2,
			Store:             StoreConfig{Type: StoreNone},
		},
		Reranker: RerankerConfig{
			Provider: RerankerLexical,
			HTTP:     HTTPRerankerConfig{Timeout: 15 * time.Second},
		},
		AI: AIConfig{
			Provider: ProviderGemini,
			Gemini: GeminiConfig{
				Model:        "gemini-2.5-flash",
				MaxRetries:   3,
				MaxLogLength: 200,
			},
		},
		Data: DataConfig{
			Jobs:    "data/jobs.csv",
			Courses: "data/courses.csv",
			Resumes: "data/resumes",
		},
		Server: ServerConfig{Listen: ":8080"},
	}
}

// SetDefaults registers every default with v so environment overrides are
// picked up for keys absent from the config file.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("matching.coverage-weight", d.Matching.CoverageWeight)
	v.SetDefault("matching.coverage-direction", d.Matching.CoverageDirection)
	v.SetDefault("matching.strategy", d.Matching.Strategy)
	v.SetDefault("matching.use-reranker", d.Matching.UseReranker)
	v.SetDefault("matching.reranker-top-k", d.Matching.RerankerTopK)
	v.SetDefault("matching.reranker-weight", d.Matching.RerankerWeight)
	v.SetDefault("matching.use-ai-match", d.Matching.UseAIMatch)
	v.SetDefault("matching.ai-blend-weight", d.Matching.AIBlendWeight)
	v.SetDefault("matching.ai-top-k", d.Matching.AITopK)
	v.SetDefault("matching.ai-timeout", d.Matching.AITimeout)
	v.SetDefault("matching.ai-concurrency", d.Matching.AIConcurrency)
	v.SetDefault("matching.parse-with-llm-only", d.Matching.ParseWithLLMOnly)
	v.SetDefault("matching.fuzzy-threshold", d.Matching.FuzzyThreshold)
	v.SetDefault("matching.semantic-sections", d.Matching.SemanticSections)
	v.SetDefault("matching.courses-top-n", d.Matching.CoursesTopN)
	v.SetDefault("embeddings.model", d.Embeddings.Model)
	v.SetDefault("embeddings.fallback-model", d.Embeddings.FallbackModel)
	v.SetDefault("embeddings.cache-capacity", d.Embeddings.CacheCapacity)
	v.SetDefault("embeddings.compute-timeout", d.Embeddings.ComputeTimeout)
	v.SetDefault("embeddings.max-concurrent", d.Embeddings.MaxConcurrent)
	v.SetDefault("embeddings.warmup-concurrency", d.Embeddings.WarmupConcurrency)
	v.SetDefault("embeddings.warmup-rate", d.Embeddings.WarmupRate)
	v.SetDefault("embeddings.store.type", d.Embeddings.Store.Type)
	v.SetDefault("embeddings.store.qdrant.url", d.Embeddings.Store.Qdrant.URL)
	v.SetDefault("embeddings.store.qdrant.api-key", d.Embeddings.Store.Qdrant.APIKey)
	v.SetDefault("embeddings.store.qdrant.api-key-file", d.Embeddings.Store.Qdrant.APIKeyFile)
	v.SetDefault("embeddings.store.qdrant.collection", d.Embeddings.Store.Qdrant.Collection)
	v.SetDefault("reranker.provider", d.Reranker.Provider)
	v.SetDefault("reranker.http.url", d.Reranker.HTTP.URL)
	v.SetDefault("reranker.http.model", d.Reranker.HTTP.Model)
	v.SetDefault("reranker.http.api-key", d.Reranker.HTTP.APIKey)
	v.SetDefault("reranker.http.api-key-file", d.Reranker.HTTP.APIKeyFile)
	v.SetDefault("reranker.http.timeout", d.Reranker.HTTP.Timeout)
	v.SetDefault("reranker.http.logits", d.Reranker.HTTP.Logits)
	v.SetDefault("ai.provider", d.AI.Provider)
	v.SetDefault("ai.gemini.api-key", d.AI.Gemini.APIKey)
	v.SetDefault("ai.gemini.model", d.AI.Gemini.Model)
	v.SetDefault("ai.gemini.max-retries", d.AI.Gemini.MaxRetries)
	v.SetDefault("ai.gemini.max-log-length", d.AI.Gemini.MaxLogLength)
	v.SetDefault("ai.gemini.criteria", d.AI.Gemini.Criteria)
	v.SetDefault("ai.gemini.must-have", d.AI.Gemini.MustHave)
	v.SetDefault("ai.gemini.user-instructions", d.AI.Gemini.UserInstructions)
	v.SetDefault("data.vocabulary", d.Data.Vocabulary)
	v.SetDefault("data.jobs", d.Data.Jobs)
	v.SetDefault("data.courses", d.Data.Courses)
	v.SetDefault("data.resumes", d.Data.Resumes)
	v.SetDefault("server.listen", d.Server.Listen)
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("ai.gemini.api-key-file", geminiAPIKeyFileEnv); err != nil {
		return nil, fmt.Errorf("binding %s environment variable: %w", geminiAPIKeyFileEnv, err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Strategy resolves the AI strategy; an empty strategy follows use-ai-match.
func (c *Config) Strategy() (matching.Strategy, error) {
	return matching.ParseStrategy(strings.TrimSpace(c.Matching.Strategy), c.Matching.UseAIMatch)
}

// NeedsGemini reports whether any configured component calls the Gemini API.
func (c *Config) NeedsGemini() bool {
	strategy, _ := c.Strategy()
	if strategy.UsesAI() || c.Matching.ParseWithLLMOnly {
		return true
	}
	for _, id := range []string{c.Embeddings.Model, c.Embeddings.FallbackModel} {
		if info, err := embedding.LookupModel(id); err == nil && info.Provider == embedding.ProviderGemini {
			return true
		}
	}
	return false
}

// GeminiAPIKey loads the Gemini key from the key file, the inline value or
// GEMINI_API_KEY, in that order.
func (c *Config) GeminiAPIKey() (string, error) {
	key, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  c.AI.Gemini.APIKeyFile,
		Value: c.AI.Gemini.APIKey,
		Env:   geminiAPIKeyEnv,
	})
	if err != nil {
		return "", fmt.Errorf("%w (set ai.gemini.api-key-file, %s or %s)", err, geminiAPIKeyFileEnv, geminiAPIKeyEnv)
	}
	return key, nil
}

// QdrantAPIKey returns the optional qdrant key.
func (c *Config) QdrantAPIKey() (string, error) {
	q := c.Embeddings.Store.Qdrant
	if strings.TrimSpace(q.APIKeyFile) == "" && strings.TrimSpace(q.APIKey) == "" {
		return "", nil
	}
	return secrets.Load(secrets.Source{Name: "qdrant api key", File: q.APIKeyFile, Value: q.APIKey})
}

// RerankerAPIKey returns the optional http reranker key.
func (c *Config) RerankerAPIKey() (string, error) {
	h := c.Reranker.HTTP
	if strings.TrimSpace(h.APIKeyFile) == "" && strings.TrimSpace(h.APIKey) == "" {
		return "", nil
	}
	return secrets.Load(secrets.Source{Name: "reranker api key", File: h.APIKeyFile, Value: h.APIKey})
}

// Validate reports every invalid setting. Each error wraps
// matching.ErrConfiguration.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{matching.ErrConfiguration}, args...)...))
	}
	check := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	m := c.Matching
	check(matching.ValidateWeight("matching.coverage-weight", m.CoverageWeight))
	check(matching.ValidateWeight("matching.reranker-weight", m.RerankerWeight))
	check(matching.ValidateWeight("matching.ai-blend-weight", m.AIBlendWeight))
	_, err := matching.ParseDirection(m.CoverageDirection)
	check(err)
	strategy, err := c.Strategy()
	check(err)
	if m.RerankerTopK < 1 {
		invalid("matching.reranker-top-k must be at least 1, got %d", m.RerankerTopK)
	}
	if m.AITopK < 1 {
		invalid("matching.ai-top-k must be at least 1, got %d", m.AITopK)
	}
	if m.AIConcurrency < 1 {
		invalid("matching.ai-concurrency must be at least 1, got %d", m.AIConcurrency)
	}
	if m.AITimeout <= 0 {
		invalid("matching.ai-timeout must be positive, got %s", m.AITimeout)
	}
	if m.FuzzyThreshold <= 0 {
		invalid("matching.fuzzy-threshold must be positive, got %v", m.FuzzyThreshold)
	}
	if m.CoursesTopN < 0 {
		invalid("matching.courses-top-n must not be negative, got %d", m.CoursesTopN)
	}

	e := c.Embeddings
	if _, err := embedding.LookupModel(e.Model); err != nil {
		invalid("embeddings.model: %w", err)
	}
	if strings.TrimSpace(e.FallbackModel) != "" {
		if _, err := embedding.LookupModel(e.FallbackModel); err != nil {
			invalid("embeddings.fallback-model: %w", err)
		}
	}
	if e.CacheCapacity < 0 {
		invalid("embeddings.cache-capacity must not be negative, got %d", e.CacheCapacity)
	}
	if e.MaxConcurrent < 0 {
		invalid("embeddings.max-concurrent must not be negative, got %d", e.MaxConcurrent)
	}
	if e.WarmupConcurrency < 1 {
		invalid("embeddings.warmup-concurrency must be at least 1, got %d", e.WarmupConcurrency)
	}
	if e.WarmupRate < 0 {
		invalid("embeddings.warmup-rate must not be negative, got %v", e.WarmupRate)
	}
	switch e.Store.Type {
	case "", StoreNone:
	case StoreQdrant:
		if strings.TrimSpace(e.Store.Qdrant.URL) == "" {
			invalid("embeddings.store.qdrant.url is required for the qdrant store")
		}
	default:
		invalid("unknown embeddings.store.type %q", e.Store.Type)
	}

	switch c.Reranker.Provider {
	case "", RerankerLexical:
	case RerankerHTTP:
		if strings.TrimSpace(c.Reranker.HTTP.URL) == "" {
			invalid("reranker.http.url is required for the http reranker")
		}
	default:
		invalid("unknown reranker.provider %q", c.Reranker.Provider)
	}

	if (strategy.UsesAI() || m.ParseWithLLMOnly) && c.AI.Provider != ProviderGemini {
		invalid("unsupported ai.provider %q", c.AI.Provider)
	}

	return errors.Join(errs...)
}
