package embedding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/spigell/hh-matcher/internal/logger"
)

var (
	// ErrCacheClosed is returned by every operation after Close.
	ErrCacheClosed = errors.New("embedding cache is closed")
	// ErrCompute marks a failed embedding computation. All callers waiting on
	// the same key receive it.
	ErrCompute = errors.New("embedding computation failed")
)

// ComputeFunc produces the embedding of one text.
type ComputeFunc func(ctx context.Context, text string) ([]float32, error)

// Store is an optional persistent tier consulted before computing.
type Store interface {
	Load(ctx context.Context, key Key) (*Entry, bool, error)
	Save(ctx context.Context, entry Entry) error
}

// Options configure a Cache. The zero value is an unbounded cache with no
// compute limit and no store.
type Options struct {
	// Capacity bounds the number of entries with LRU eviction; 0 is unbounded.
	Capacity int
	// ComputeTimeout bounds one computation regardless of caller deadlines.
	ComputeTimeout time.Duration
	// MaxConcurrent caps simultaneous computations across all keys; 0 is unlimited.
	MaxConcurrent int
	// WarmupConcurrency is the number of warmup workers.
	WarmupConcurrency int
	// WarmupRate limits warmup computations per second; 0 is unlimited.
	WarmupRate float64
	Store      Store
	Logger     *zap.Logger
	Now        func() time.Time
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Computes  int64 `json:"computes"`
	Failures  int64 `json:"failures"`
	StoreHits int64 `json:"store_hits"`
	Shared    int64 `json:"shared"`
	Evictions int64 `json:"evictions"`
}

// Cache is a content-addressed embedding cache with single-flight
// computation. It is safe for concurrent use; readers of resolved keys never
// wait for computations of other keys.
type Cache struct {
	opts   Options
	logger *zap.Logger

	group singleflight.Group

	mu      sync.RWMutex
	entries map[Key]Entry
	bounded *lru.Cache[Key, Entry]

	compute *semaphore.Weighted
	warm    *semaphore.Weighted

	closed atomic.Bool

	hits, misses, computes, failures, storeHits, shared, evictions atomic.Int64
}

// NewCache builds a cache from opts.
func NewCache(opts Options) (*Cache, error) {
	if opts.Capacity < 0 {
		return nil, fmt.Errorf("cache capacity must not be negative, got %d", opts.Capacity)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.WarmupConcurrency <= 0 {
		opts.WarmupConcurrency = 1
	}

	c := &Cache{
		opts:   opts,
		logger: logger.WithFields(opts.Logger, zap.String("component", "embedding-cache")),
	}

	if opts.Capacity > 0 {
		bounded, err := lru.NewWithEvict(opts.Capacity, func(Key, Entry) {
			c.evictions.Add(1)
		})
		if err != nil {
			return nil, fmt.Errorf("create lru: %w", err)
		}
		c.bounded = bounded
	} else {
		c.entries = make(map[Key]Entry)
	}

	// warmup may hold at most half of the compute slots
	if opts.MaxConcurrent > 0 {
		c.compute = semaphore.NewWeighted(int64(opts.MaxConcurrent))
		c.warm = semaphore.NewWeighted(int64(max(1, opts.MaxConcurrent/2)))
	}

	return c, nil
}

// GetOrCompute returns the embedding of text under modelID, computing it with
// fn on a miss. Concurrent callers for the same key share one computation.
// A caller whose ctx ends returns ctx.Err() while the computation goes on and
// populates the cache for the remaining waiters.
func (c *Cache) GetOrCompute(ctx context.Context, text, modelID string, fn ComputeFunc) ([]float32, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := NewKey(text, modelID)
	if entry, ok := c.lookup(key); ok {
		c.hits.Add(1)
		return cloneVector(entry.Vector), nil
	}
	c.misses.Add(1)

	entry, err := c.await(ctx, key, text, modelID, fn, false)
	if err != nil {
		return nil, err
	}
	return cloneVector(entry.Vector), nil
}

// Get returns a cached entry without computing.
func (c *Cache) Get(text, modelID string) (Entry, bool) {
	if c.closed.Load() {
		return Entry{}, false
	}
	entry, ok := c.lookup(NewKey(text, modelID))
	if !ok {
		return Entry{}, false
	}
	entry.Vector = cloneVector(entry.Vector)
	return entry, true
}

// Len returns the number of resolved entries.
func (c *Cache) Len() int {
	if c.bounded != nil {
		return c.bounded.Len()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Entries:   c.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Computes:  c.computes.Load(),
		Failures:  c.failures.Load(),
		StoreHits: c.storeHits.Load(),
		Shared:    c.shared.Load(),
		Evictions: c.evictions.Load(),
	}
}

// Close drops every entry and closes the store when it is closable. Flights
// already running still deliver their results to their waiters.
func (c *Cache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	if c.bounded != nil {
		c.bounded.Purge()
	} else {
		c.mu.Lock()
		c.entries = make(map[Key]Entry)
		c.mu.Unlock()
	}

	if closer, ok := c.opts.Store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("close embedding store: %w", err)
		}
	}
	return nil
}

func (c *Cache) await(ctx context.Context, key Key, text, modelID string, fn ComputeFunc, warmup bool) (Entry, error) {
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(string(key), func() (any, error) {
		return c.fill(flightCtx, key, text, modelID, fn, warmup)
	})

	select {
	case <-ctx.Done():
		return Entry{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.shared.Add(1)
		}
		if res.Err != nil {
			return Entry{}, res.Err
		}
		return res.Val.(Entry), nil
	}
}

func (c *Cache) fill(ctx context.Context, key Key, text, modelID string, fn ComputeFunc, warmup bool) (Entry, error) {
	// a flight for this key may have resolved between lookup and DoChan
	if entry, ok := c.lookup(key); ok {
		return entry, nil
	}

	if c.opts.ComputeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.ComputeTimeout)
		defer cancel()
	}

	log := c.logger.With(zap.String(logger.FieldModel, modelID), zap.String("key", string(key)))

	if c.opts.Store != nil {
		stored, ok, err := c.opts.Store.Load(ctx, key)
		switch {
		case err != nil:
			log.Warn("embedding store lookup failed", zap.Error(err))
		case ok && stored != nil && len(stored.Vector) > 0:
			c.storeHits.Add(1)
			entry := *stored
			entry.Vector = cloneVector(stored.Vector)
			c.insert(entry)
			return entry, nil
		}
	}

	release, err := c.acquire(ctx, warmup)
	if err != nil {
		c.failures.Add(1)
		return Entry{}, fmt.Errorf("%w: waiting for compute slot: %w", ErrCompute, err)
	}
	vector, err := fn(ctx, text)
	release()

	if err != nil {
		c.failures.Add(1)
		return Entry{}, fmt.Errorf("%w: %w", ErrCompute, err)
	}
	if len(vector) == 0 {
		c.failures.Add(1)
		return Entry{}, fmt.Errorf("%w: model %s returned an empty vector", ErrCompute, modelID)
	}

	entry := Entry{
		Key:        key,
		Model:      modelID,
		Vector:     cloneVector(vector),
		ComputedAt: c.opts.Now(),
	}
	c.computes.Add(1)
	c.insert(entry)

	if c.opts.Store != nil {
		if err := c.opts.Store.Save(ctx, entry); err != nil {
			log.Warn("embedding store save failed", zap.Error(err))
		}
	}

	log.Debug("embedding computed", zap.Int("dimensions", len(entry.Vector)), zap.Bool("warmup", warmup))
	return entry, nil
}

func (c *Cache) acquire(ctx context.Context, warmup bool) (func(), error) {
	if c.compute == nil {
		return func() {}, nil
	}
	if warmup {
		if err := c.warm.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}
	if err := c.compute.Acquire(ctx, 1); err != nil {
		if warmup {
			c.warm.Release(1)
		}
		return nil, err
	}
	return func() {
		c.compute.Release(1)
		if warmup {
			c.warm.Release(1)
		}
	}, nil
}

func (c *Cache) lookup(key Key) (Entry, bool) {
	if c.bounded != nil {
		return c.bounded.Get(key)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	return entry, ok
}

func (c *Cache) insert(entry Entry) {
	if c.closed.Load() {
		return
	}
	if c.bounded != nil {
		c.bounded.Add(entry.Key, entry)
		return
	}
	c.mu.Lock()
	c.entries[entry.Key] = entry
	c.mu.Unlock()
}
