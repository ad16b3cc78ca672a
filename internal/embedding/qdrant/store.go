// Package qdrant keeps computed embeddings in a Qdrant collection so they
// survive restarts of the matcher.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/spigell/hh-matcher/internal/embedding"
	"github.com/spigell/hh-matcher/internal/logger"
)

const (
	defaultGRPCPort   = 6334
	defaultCollection = "hh-matcher-embeddings"

	payloadKey        = "key"
	payloadModel      = "model"
	payloadComputedAt = "computed_at"
)

// namespace scopes point ids derived from cache keys.
var namespace = uuid.MustParse("7c1f4f5e-2b8a-4a4e-9a57-0c3f1e9b6d21")

// Client is the subset of the Qdrant client the store relies on.
type Client interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Get(ctx context.Context, request *qdrant.GetPoints) ([]*qdrant.RetrievedPoint, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Close() error
}

// Config describes the Qdrant connection.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Dimensions int
}

// Store implements embedding.Store on top of a Qdrant collection. One
// collection holds vectors of one model, so Dimensions must match it.
type Store struct {
	client     Client
	collection string
	dimensions int
	logger     *zap.Logger
}

var _ embedding.Store = (*Store)(nil)

// New connects to Qdrant over gRPC. The URL port defaults to 6334 and https
// enables TLS.
func New(cfg Config, log *zap.Logger) (*Store, error) {
	parsed, err := url.Parse(strings.TrimSpace(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant url: %w", err)
	}
	if parsed.Hostname() == "" {
		return nil, fmt.Errorf("invalid qdrant url %q: missing host", cfg.URL)
	}

	port := defaultGRPCPort
	if p := parsed.Port(); p != "" {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid qdrant port %q: %w", p, err)
		}
		port = v
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   parsed.Hostname(),
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: parsed.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	return NewWithClient(client, cfg.Collection, cfg.Dimensions, log)
}

// NewWithClient builds a store over an existing client.
func NewWithClient(client Client, collection string, dimensions int, log *zap.Logger) (*Store, error) {
	if client == nil {
		return nil, errors.New("qdrant client is required")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("qdrant collection dimensions must be positive, got %d", dimensions)
	}
	if collection = strings.TrimSpace(collection); collection == "" {
		collection = defaultCollection
	}

	return &Store{
		client:     client,
		collection: collection,
		dimensions: dimensions,
		logger:     logger.WithFields(log, zap.String(logger.FieldProvider, "qdrant"), zap.String("collection", collection)),
	}, nil
}

// EnsureCollection creates the collection with cosine distance when missing.
func (s *Store) EnsureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check qdrant collection: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create qdrant collection: %w", err)
	}

	s.logger.Info("qdrant collection created", zap.Int("dimensions", s.dimensions))
	return nil
}

// Load implements embedding.Store.
func (s *Store) Load(ctx context.Context, key embedding.Key) (*embedding.Entry, bool, error) {
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qdrant.PointId{pointID(key)},
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, false, fmt.Errorf("get qdrant point: %w", err)
	}
	if len(points) == 0 {
		return nil, false, nil
	}

	point := points[0]
	payload := point.GetPayload()
	// a point id collision from another key must not be served
	if payload[payloadKey].GetStringValue() != string(key) {
		return nil, false, nil
	}

	vector := denseVector(point.GetVectors())
	if len(vector) == 0 {
		return nil, false, nil
	}

	entry := &embedding.Entry{
		Key:    key,
		Model:  payload[payloadModel].GetStringValue(),
		Vector: vector,
	}
	if ts := payload[payloadComputedAt].GetStringValue(); ts != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			entry.ComputedAt = parsed
		}
	}
	return entry, true, nil
}

// Save implements embedding.Store.
func (s *Store) Save(ctx context.Context, entry embedding.Entry) error {
	if len(entry.Vector) != s.dimensions {
		return fmt.Errorf("vector has %d dimensions, collection %s expects %d", len(entry.Vector), s.collection, s.dimensions)
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{{
			Id:      pointID(entry.Key),
			Vectors: qdrant.NewVectors(entry.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadKey:        string(entry.Key),
				payloadModel:      entry.Model,
				payloadComputedAt: entry.ComputedAt.UTC().Format(time.RFC3339Nano),
			}),
		}},
	})
	if err != nil {
		return fmt.Errorf("upsert qdrant point: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func pointID(key embedding.Key) *qdrant.PointId {
	return qdrant.NewID(uuid.NewSHA1(namespace, []byte(key)).String())
}

func denseVector(vectors *qdrant.VectorsOutput) []float32 {
	v := vectors.GetVector()
	if v == nil {
		return nil
	}
	if dense := v.GetDense(); dense != nil && len(dense.GetData()) > 0 {
		return dense.GetData()
	}
	return v.GetData()
}
