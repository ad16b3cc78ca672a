package embedding

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/spigell/hh-matcher/internal/logger"
)

// WarmupReport summarizes one warmup run.
type WarmupReport struct {
	Requested int `json:"requested"`
	Computed  int `json:"computed"`
	Cached    int `json:"cached"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Warmup populates the cache for texts without returning vectors. It is
// best-effort: individual failures are counted and logged, cancellation stops
// scheduling new work and is returned as the error. Warmup computations hold
// at most half of the compute slots so interactive lookups keep running.
func (c *Cache) Warmup(ctx context.Context, texts []string, modelID string, fn ComputeFunc) (WarmupReport, error) {
	report := WarmupReport{Requested: len(texts)}
	if c.closed.Load() {
		return report, ErrCacheClosed
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if c.opts.WarmupRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(c.opts.WarmupRate), 1)
	}

	log := c.logger.With(zap.String(logger.FieldModel, modelID))

	var (
		computed, failed atomic.Int64
		g                errgroup.Group
	)
	g.SetLimit(c.opts.WarmupConcurrency)

	seen := make(map[Key]struct{}, len(texts))
	scheduled := 0
	for _, text := range texts {
		if ctx.Err() != nil {
			break
		}

		key := NewKey(text, modelID)
		if _, dup := seen[key]; dup {
			report.Cached++
			scheduled++
			continue
		}
		seen[key] = struct{}{}

		if _, ok := c.lookup(key); ok {
			report.Cached++
			scheduled++
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			break
		}

		scheduled++
		g.Go(func() error {
			if _, err := c.await(ctx, key, text, modelID, fn, true); err != nil {
				if ctx.Err() == nil {
					failed.Add(1)
					log.Warn("warmup embedding failed", zap.String("key", string(key)), zap.Error(err))
				}
				return nil
			}
			computed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	report.Computed = int(computed.Load())
	report.Failed = int(failed.Load())
	report.Skipped = report.Requested - scheduled

	log.Info("embedding warmup finished",
		zap.Int("requested", report.Requested),
		zap.Int("computed", report.Computed),
		zap.Int("cached", report.Cached),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
	)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}
