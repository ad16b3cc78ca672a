package qdrant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/hh-matcher/internal/embedding"
)

type fakeClient struct {
	exists  bool
	created *qdrant.CreateCollection
	points  map[string]*qdrant.PointStruct
	getErr  error
	closed  bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{points: make(map[string]*qdrant.PointStruct)}
}

func (f *fakeClient) CollectionExists(context.Context, string) (bool, error) {
	return f.exists, nil
}

func (f *fakeClient) CreateCollection(_ context.Context, req *qdrant.CreateCollection) error {
	f.created = req
	f.exists = true
	return nil
}

func (f *fakeClient) Get(_ context.Context, req *qdrant.GetPoints) ([]*qdrant.RetrievedPoint, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	var out []*qdrant.RetrievedPoint
	for _, id := range req.GetIds() {
		p, ok := f.points[id.GetUuid()]
		if !ok {
			continue
		}
		out = append(out, &qdrant.RetrievedPoint{
			Id:      p.GetId(),
			Payload: p.GetPayload(),
			Vectors: &qdrant.VectorsOutput{
				VectorsOptions: &qdrant.VectorsOutput_Vector{
					Vector: &qdrant.VectorOutput{Data: storedData(p.GetVectors().GetVector())},
				},
			},
		})
	}
	return out, nil
}

func storedData(v *qdrant.Vector) []float32 {
	if data := v.GetData(); len(data) > 0 {
		return data
	}
	return v.GetDense().GetData()
}

func (f *fakeClient) Upsert(_ context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	for _, p := range req.GetPoints() {
		f.points[p.GetId().GetUuid()] = p
	}
	return &qdrant.UpdateResult{}, nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func TestEnsureCollection(t *testing.T) {
	client := newFakeClient()
	store, err := NewWithClient(client, "", 3, nil)
	require.NoError(t, err)

	require.NoError(t, store.EnsureCollection(context.Background()))
	require.NotNil(t, client.created)
	assert.Equal(t, defaultCollection, client.created.GetCollectionName())

	client.created = nil
	require.NoError(t, store.EnsureCollection(context.Background()))
	assert.Nil(t, client.created, "existing collection must not be recreated")
}

func TestSaveAndLoad(t *testing.T) {
	client := newFakeClient()
	store, err := NewWithClient(client, "vectors", 3, nil)
	require.NoError(t, err)

	key := embedding.NewKey("python developer", "text-embedding-004")
	computed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(context.Background(), embedding.Entry{
		Key:        key,
		Model:      "text-embedding-004",
		Vector:     []float32{0.1, 0.2, 0.3},
		ComputedAt: computed,
	}))

	entry, ok, err := store.Load(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, entry.Vector)
	assert.Equal(t, "text-embedding-004", entry.Model)
	assert.True(t, computed.Equal(entry.ComputedAt))

	_, ok, err = store.Load(context.Background(), embedding.NewKey("other", "text-embedding-004"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveRejectsWrongDimensions(t *testing.T) {
	store, err := NewWithClient(newFakeClient(), "vectors", 3, nil)
	require.NoError(t, err)

	err = store.Save(context.Background(), embedding.Entry{Key: "k", Vector: []float32{1}})
	assert.Error(t, err)
}

func TestLoadError(t *testing.T) {
	client := newFakeClient()
	client.getErr = errors.New("unavailable")
	store, err := NewWithClient(client, "vectors", 3, nil)
	require.NoError(t, err)

	_, _, err = store.Load(context.Background(), "k")
	assert.ErrorIs(t, err, client.getErr)
}

func TestStoreBacksCache(t *testing.T) {
	client := newFakeClient()
	store, err := NewWithClient(client, "vectors", 2, nil)
	require.NoError(t, err)

	first, err := embedding.NewCache(embedding.Options{Store: store})
	require.NoError(t, err)
	_, err = first.GetOrCompute(context.Background(), "text", "m", func(context.Context, string) ([]float32, error) {
		return []float32{1, 2}, nil
	})
	require.NoError(t, err)

	// a fresh cache over the same collection is served from the store
	second, err := embedding.NewCache(embedding.Options{Store: store})
	require.NoError(t, err)
	vector, err := second.GetOrCompute(context.Background(), "text", "m", func(context.Context, string) ([]float32, error) {
		t.Fatal("compute must not run when the store has the vector")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vector)

	require.NoError(t, second.Close())
	assert.True(t, client.closed)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(Config{URL: "://nope", Dimensions: 3}, nil)
	assert.Error(t, err)
	_, err = New(Config{URL: "http://", Dimensions: 3}, nil)
	assert.Error(t, err)
}
