package rerank

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hh-matcher/internal/logger"
)

const (
	contentType    = "application/json"
	userAgent      = "spigell/hh-matcher"
	defaultTimeout = 15 * time.Second
)

// HTTPConfig describes a remote cross-encoder endpoint.
type HTTPConfig struct {
	URL     string
	Model   string
	APIKey  string
	Timeout time.Duration
	// Logits applies a sigmoid to raw scores returned by the endpoint.
	Logits bool
}

// HTTPScorer calls a rerank endpoint that accepts
// {"model","query","documents"} and answers with
// {"results":[{"index","relevance_score"}]}.
type HTTPScorer struct {
	cfg        HTTPConfig
	logger     *zap.Logger
	HTTPClient *http.Client
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// NewHTTPScorer validates cfg and returns a scorer.
func NewHTTPScorer(cfg HTTPConfig, log *zap.Logger) (*HTTPScorer, error) {
	cfg.URL = strings.TrimSpace(cfg.URL)
	if cfg.URL == "" {
		return nil, errors.New("rerank endpoint url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &HTTPScorer{
		cfg:        cfg,
		logger:     logger.WithCommonFields(log, "http-rerank", cfg.Model),
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Model implements Scorer.
func (s *HTTPScorer) Model() string {
	if s.cfg.Model == "" {
		return "http"
	}
	return s.cfg.Model
}

// Score implements Scorer.
func (s *HTTPScorer) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return []float64{}, nil
	}

	payload, err := json.Marshal(rerankRequest{Model: s.cfg.Model, Query: query, Documents: documents})
	if err != nil {
		return nil, fmt.Errorf("encode rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req = s.setHeaders(req)

	s.logger.Debug("make request", zap.String("url", req.URL.String()), zap.Int("documents", len(documents)))
	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(reader, 512))
		return nil, fmt.Errorf("bad status: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var decoded rerankResponse
	if err := json.NewDecoder(reader).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	scores := make([]float64, len(documents))
	seen := make([]bool, len(documents))
	for _, r := range decoded.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			return nil, fmt.Errorf("rerank response index %d out of range", r.Index)
		}
		score := r.RelevanceScore
		if s.cfg.Logits {
			score = 1 / (1 + math.Exp(-score))
		}
		scores[r.Index] = score
		seen[r.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("rerank response is missing document %d", i)
		}
	}

	return scores, nil
}

func (s *HTTPScorer) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", userAgent)
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.cfg.APIKey))
	}
	return req
}
