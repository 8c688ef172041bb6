// Package rates fetches live yield, borrow and funding rates and serves them
// to the simulator from a time-boxed cache.
package rates

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"yield_sim/internal/core"
	apperrors "yield_sim/pkg/errors"
	"yield_sim/pkg/telemetry"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Source is an upstream rate feed.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (core.RateSnapshot, error)
}

// Provider hands out the rates a simulation should use.
type Provider interface {
	Snapshot(ctx context.Context) core.RateSnapshot
}

// RecordStore persists fetched records so a restart serves the last known data.
type RecordStore interface {
	SaveRateRecord(ctx context.Context, rec core.RateRecord) error
	LoadRateRecords(ctx context.Context) ([]core.RateRecord, error)
}

// CacheConfig controls freshness and upstream pressure.
type CacheConfig struct {
	TTL               time.Duration
	RetryInterval     time.Duration
	RequestsPerSecond float64
	Burst             int
}

// DefaultCacheConfig mirrors the three hour revalidation of the public yields route.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:               3 * time.Hour,
		RetryInterval:     time.Minute,
		RequestsPerSecond: 2,
		Burst:             2,
	}
}

// Cache implements core.IRateProvider over a set of sources. A failed refresh
// keeps serving what was fetched before; with nothing fetched the snapshot is
// empty and the engine uses catalog defaults.
type Cache struct {
	sources []Source
	store   RecordStore
	logger  core.ILogger
	metrics *telemetry.MetricsHolder
	limiter *rate.Limiter
	cfg     CacheConfig
	group   singleflight.Group
	now     func() time.Time

	mu          sync.RWMutex
	records     map[string]core.RateRecord
	lastErr     error
	lastAttempt time.Time
}

// NewCache creates a cache. store may be nil.
func NewCache(cfg CacheConfig, logger core.ILogger, store RecordStore, sources ...Source) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheConfig().TTL
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Cache{
		sources: sources,
		store:   store,
		logger:  logger.WithField("component", "rate_cache"),
		metrics: telemetry.GetGlobalMetrics(),
		limiter: rate.NewLimiter(limit, cfg.Burst),
		cfg:     cfg,
		now:     time.Now,
		records: make(map[string]core.RateRecord),
	}
}

// Restore loads persisted records for the configured sources.
func (c *Cache) Restore(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	recs, err := c.store.LoadRateRecords(ctx)
	if err != nil {
		return fmt.Errorf("restore rate records: %w", err)
	}

	known := make(map[string]bool, len(c.sources))
	for _, s := range c.sources {
		known[s.Name()] = true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range recs {
		if !known[rec.Source] {
			continue
		}
		if cur, ok := c.records[rec.Source]; ok && !rec.FetchedAt.After(cur.FetchedAt) {
			continue
		}
		c.records[rec.Source] = rec
	}
	c.logger.Info("Restored rate records", "count", len(c.records))
	return nil
}

// Snapshot returns the merged rates, refreshing first when they have expired.
func (c *Cache) Snapshot(ctx context.Context) core.RateSnapshot {
	if c.needsRefresh() {
		_, err, _ := c.group.Do("refresh", func() (interface{}, error) {
			// A refresh may have finished between the check and the call
			if !c.needsRefresh() {
				return nil, nil
			}
			return nil, c.refresh(ctx)
		})
		if err != nil {
			c.logger.Warn("Serving cached rates after failed refresh", "error", err)
		}
	}
	return c.merged()
}

// Refresh fetches every source. Concurrent callers share one refresh.
func (c *Cache) Refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		return nil, c.refresh(ctx)
	})
	return err
}

func (c *Cache) refresh(ctx context.Context) error {
	errs := make([]error, len(c.sources))

	var g errgroup.Group
	for i, src := range c.sources {
		g.Go(func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				errs[i] = fmt.Errorf("%s: %w", src.Name(), err)
				return nil
			}
			snap, err := src.Fetch(ctx)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", src.Name(), err)
				return nil
			}
			c.put(ctx, core.RateRecord{Source: src.Name(), Snapshot: snap, FetchedAt: c.now()})
			return nil
		})
	}
	_ = g.Wait()

	err := errors.Join(errs...)
	now := c.now()

	c.mu.Lock()
	c.lastErr = err
	c.lastAttempt = now
	c.mu.Unlock()

	if err != nil {
		c.metrics.RecordRateRefresh(ctx, "failure", now)
		return fmt.Errorf("%w: %w", apperrors.ErrRatesUnavailable, err)
	}
	c.metrics.RecordRateRefresh(ctx, "success", now)
	c.logger.Info("Rates refreshed", "sources", len(c.sources))
	return nil
}

func (c *Cache) put(ctx context.Context, rec core.RateRecord) {
	c.mu.Lock()
	c.records[rec.Source] = rec
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.SaveRateRecord(ctx, rec); err != nil {
		c.logger.Warn("Failed to persist rate record", "source", rec.Source, "error", err)
	}
}

// needsRefresh is true when any source is missing or expired, unless a refresh
// failed less than RetryInterval ago.
func (c *Cache) needsRefresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	if c.lastErr != nil && now.Sub(c.lastAttempt) < c.cfg.RetryInterval {
		return false
	}
	for _, s := range c.sources {
		rec, ok := c.records[s.Name()]
		if !ok || now.Sub(rec.FetchedAt) >= c.cfg.TTL {
			return true
		}
	}
	return false
}

// merged combines source records in registration order; the first source to
// report a value wins.
func (c *Cache) merged() core.RateSnapshot {
	out := core.RateSnapshot{
		ApyByProductID:    make(map[string]decimal.Decimal),
		BorrowRateByAsset: make(map[string]decimal.Decimal),
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.sources {
		rec, ok := c.records[s.Name()]
		if !ok {
			continue
		}
		snap := rec.Snapshot
		for id, v := range snap.ApyByProductID {
			if _, exists := out.ApyByProductID[id]; !exists {
				out.ApyByProductID[id] = v
			}
		}
		for asset, v := range snap.BorrowRateByAsset {
			if _, exists := out.BorrowRateByAsset[asset]; !exists {
				out.BorrowRateByAsset[asset] = v
			}
		}
		if !out.FundingRatePercent.Valid && snap.FundingRatePercent.Valid {
			out.FundingRatePercent = snap.FundingRatePercent
		}
		if !out.MaxHedgeLeverage.Valid && snap.MaxHedgeLeverage.Valid {
			out.MaxHedgeLeverage = snap.MaxHedgeLeverage
		}
	}
	return out
}

// State reports freshness. LastUpdated is the oldest fetch among the sources
// that have data.
func (c *Cache) State() core.RateState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var st core.RateState
	if c.lastErr != nil {
		st.Error = c.lastErr.Error()
	}
	if len(c.records) == 0 {
		st.Status = core.RateStatusFallback
		return st
	}

	complete := true
	for _, s := range c.sources {
		rec, ok := c.records[s.Name()]
		if !ok {
			complete = false
			continue
		}
		if st.LastUpdated.IsZero() || rec.FetchedAt.Before(st.LastUpdated) {
			st.LastUpdated = rec.FetchedAt
		}
	}

	st.Status = core.RateStatusLive
	if !complete || c.lastErr != nil || c.now().Sub(st.LastUpdated) >= c.cfg.TTL {
		st.Status = core.RateStatusStale
	}
	return st
}

// Records returns a copy of the per-source records.
func (c *Cache) Records() []core.RateRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]core.RateRecord, 0, len(c.records))
	for _, s := range c.sources {
		if rec, ok := c.records[s.Name()]; ok {
			out = append(out, rec)
		}
	}
	return out
}
