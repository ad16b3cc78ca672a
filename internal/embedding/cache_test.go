package embedding

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constantCompute(calls *atomic.Int64, vector []float32) ComputeFunc {
	return func(context.Context, string) ([]float32, error) {
		calls.Add(1)
		return vector, nil
	}
}

func TestNewKeyNormalizesText(t *testing.T) {
	assert.Equal(t, NewKey("Hello   Wörld", "m"), NewKey("hello world", "m"))
	assert.NotEqual(t, NewKey("hello world", "m1"), NewKey("hello world", "m2"))
	assert.Len(t, string(NewKey("x", "m")), 64)
}

func TestGetOrComputeCachesResult(t *testing.T) {
	c, err := NewCache(Options{})
	require.NoError(t, err)

	var calls atomic.Int64
	fn := constantCompute(&calls, []float32{1, 2, 3})

	first, err := c.GetOrCompute(context.Background(), "Go developer", "m", fn)
	require.NoError(t, err)
	second, err := c.GetOrCompute(context.Background(), "go  developer", "m", fn)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, calls.Load())

	// callers get copies
	first[0] = 42
	third, err := c.GetOrCompute(context.Background(), "Go developer", "m", fn)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, third)

	stats := c.Stats()
	assert.EqualValues(t, 2, stats.Hits)
	assert.EqualValues(t, 1, stats.Computes)
	assert.Equal(t, 1, stats.Entries)
}

func TestGetOrComputeSingleFlight(t *testing.T) {
	c, err := NewCache(Options{})
	require.NoError(t, err)

	var calls atomic.Int64
	release := make(chan struct{})
	fn := func(context.Context, string) ([]float32, error) {
		calls.Add(1)
		<-release
		return []float32{0.5, 0.5}, nil
	}

	const callers = 32
	var wg sync.WaitGroup
	results := make([][]float32, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = c.GetOrCompute(context.Background(), "same text", "m", fn)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, []float32{0.5, 0.5}, results[i])
	}
}

func TestGetOrComputeErrorsAreSharedNotCached(t *testing.T) {
	c, err := NewCache(Options{})
	require.NoError(t, err)

	var calls atomic.Int64
	boom := errors.New("model offline")
	fn := func(context.Context, string) ([]float32, error) {
		if calls.Add(1) == 1 {
			return nil, boom
		}
		return []float32{1}, nil
	}

	_, err = c.GetOrCompute(context.Background(), "text", "m", fn)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCompute)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	vector, err := c.GetOrCompute(context.Background(), "text", "m", fn)
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, vector)
	assert.EqualValues(t, 2, calls.Load())
	assert.EqualValues(t, 1, c.Stats().Failures)
}

func TestGetOrComputeRejectsEmptyVector(t *testing.T) {
	c, err := NewCache(Options{})
	require.NoError(t, err)

	_, err = c.GetOrCompute(context.Background(), "text", "m", func(context.Context, string) ([]float32, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrCompute)
	assert.Equal(t, 0, c.Len())
}

func TestCancelledCallerLeavesFlightRunning(t *testing.T) {
	c, err := NewCache(Options{})
	require.NoError(t, err)

	var calls atomic.Int64
	started := make(chan struct{})
	release := make(chan struct{})
	fn := func(ctx context.Context, _ string) ([]float32, error) {
		calls.Add(1)
		close(started)
		<-release
		return []float32{3, 4}, ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.GetOrCompute(ctx, "text", "m", fn)
		done <- err
	}()

	<-started
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	require.Eventually(t, func() bool { return c.Len() == 1 }, time.Second, 5*time.Millisecond)

	vector, err := c.GetOrCompute(context.Background(), "text", "m", fn)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 4}, vector)
	assert.EqualValues(t, 1, calls.Load())
}

func TestBoundedCacheEvicts(t *testing.T) {
	c, err := NewCache(Options{Capacity: 2})
	require.NoError(t, err)

	var calls atomic.Int64
	fn := constantCompute(&calls, []float32{1})
	for _, text := range []string{"a", "b", "c"} {
		_, err := c.GetOrCompute(context.Background(), text, "m", fn)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, c.Len())
	assert.EqualValues(t, 1, c.Stats().Evictions)
	_, ok := c.Get("a", "m")
	assert.False(t, ok)
	_, ok = c.Get("c", "m")
	assert.True(t, ok)
}

func TestNewCacheRejectsNegativeCapacity(t *testing.T) {
	_, err := NewCache(Options{Capacity: -1})
	assert.Error(t, err)
}

func TestClosedCache(t *testing.T) {
	c, err := NewCache(Options{})
	require.NoError(t, err)

	var calls atomic.Int64
	_, err = c.GetOrCompute(context.Background(), "text", "m", constantCompute(&calls, []float32{1}))
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.GetOrCompute(context.Background(), "text", "m", constantCompute(&calls, []float32{1}))
	assert.ErrorIs(t, err, ErrCacheClosed)
	assert.Equal(t, 0, c.Len())

	_, err = c.Warmup(context.Background(), []string{"x"}, "m", constantCompute(&calls, []float32{1}))
	assert.ErrorIs(t, err, ErrCacheClosed)
}

type memoryStore struct {
	mu      sync.Mutex
	entries map[Key]Entry
	saves   int
	loadErr error
	closed  bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[Key]Entry)}
}

func (s *memoryStore) Load(_ context.Context, key Key) (*Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, false, s.loadErr
	}
	entry, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	return &entry, true, nil
}

func (s *memoryStore) Save(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.entries[entry.Key] = entry
	return nil
}

func (s *memoryStore) Close() error {
	s.closed = true
	return nil
}

func TestStoreTier(t *testing.T) {
	store := newMemoryStore()
	key := NewKey("stored", "m")
	store.entries[key] = Entry{Key: key, Model: "m", Vector: []float32{9, 9}}

	c, err := NewCache(Options{Store: store})
	require.NoError(t, err)

	var calls atomic.Int64
	fn := constantCompute(&calls, []float32{1, 1})

	vector, err := c.GetOrCompute(context.Background(), "stored", "m", fn)
	require.NoError(t, err)
	assert.Equal(t, []float32{9, 9}, vector)
	assert.EqualValues(t, 0, calls.Load())
	assert.EqualValues(t, 1, c.Stats().StoreHits)

	_, err = c.GetOrCompute(context.Background(), "fresh", "m", fn)
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, 1, store.saves)

	require.NoError(t, c.Close())
	assert.True(t, store.closed)
}

func TestStoreFailureIsNotFatal(t *testing.T) {
	store := newMemoryStore()
	store.loadErr = errors.New("qdrant down")

	c, err := NewCache(Options{Store: store})
	require.NoError(t, err)

	var calls atomic.Int64
	vector, err := c.GetOrCompute(context.Background(), "text", "m", constantCompute(&calls, []float32{1}))
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, vector)
	assert.EqualValues(t, 1, calls.Load())
}

func TestComputeTimeout(t *testing.T) {
	c, err := NewCache(Options{ComputeTimeout: 10 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.GetOrCompute(context.Background(), "slow", "m", func(ctx context.Context, _ string) ([]float32, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	assert.ErrorIs(t, err, ErrCompute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
