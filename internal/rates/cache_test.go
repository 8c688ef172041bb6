package rates

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"yield_sim/internal/core"
	apperrors "yield_sim/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopLogger struct{}

func (l *noopLogger) Debug(msg string, fields ...interface{})               {}
func (l *noopLogger) Info(msg string, fields ...interface{})                {}
func (l *noopLogger) Warn(msg string, fields ...interface{})                {}
func (l *noopLogger) Error(msg string, fields ...interface{})               {}
func (l *noopLogger) Fatal(msg string, fields ...interface{})               {}
func (l *noopLogger) WithField(key string, value interface{}) core.ILogger  { return l }
func (l *noopLogger) WithFields(fields map[string]interface{}) core.ILogger { return l }

type fakeSource struct {
	name  string
	snap  core.RateSnapshot
	calls atomic.Int32
	delay time.Duration

	mu  sync.Mutex
	err error
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Fetch(ctx context.Context) (core.RateSnapshot, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return core.RateSnapshot{}, s.err
	}
	return s.snap, nil
}

func (s *fakeSource) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *fakeSource) recover() { s.fail(nil) }

type memStore struct {
	mu   sync.Mutex
	recs map[string]core.RateRecord
}

func newMemStore() *memStore { return &memStore{recs: make(map[string]core.RateRecord)} }

func (m *memStore) SaveRateRecord(ctx context.Context, rec core.RateRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.Source] = rec
	return nil
}

func (m *memStore) LoadRateRecords(ctx context.Context) ([]core.RateRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.RateRecord, 0, len(m.recs))
	for _, rec := range m.recs {
		out = append(out, rec)
	}
	return out, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func yieldSource() *fakeSource {
	return &fakeSource{name: "yields", snap: core.RateSnapshot{
		ApyByProductID:    map[string]decimal.Decimal{"lido-steth": decimal.NewFromFloat(2.8)},
		BorrowRateByAsset: map[string]decimal.Decimal{"USDC": decimal.NewFromFloat(5.9)},
	}}
}

func fundingSource() *fakeSource {
	return &fakeSource{name: "funding", snap: core.RateSnapshot{
		FundingRatePercent: decimal.NewNullDecimal(decimal.NewFromFloat(8.5)),
		MaxHedgeLeverage:   decimal.NewNullDecimal(decimal.NewFromInt(25)),
	}}
}

func newTestCache(store RecordStore, sources ...Source) (*Cache, *clock) {
	clk := &clock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	cfg := DefaultCacheConfig()
	cfg.RequestsPerSecond = 0
	c := NewCache(cfg, &noopLogger{}, store, sources...)
	c.now = clk.Now
	return c, clk
}

func TestCache_FallbackBeforeFirstFetch(t *testing.T) {
	c, _ := newTestCache(nil, yieldSource())

	st := c.State()
	assert.Equal(t, core.RateStatusFallback, st.Status)
	assert.True(t, st.LastUpdated.IsZero())
}

func TestCache_SnapshotMergesSources(t *testing.T) {
	y, f := yieldSource(), fundingSource()
	c, _ := newTestCache(nil, y, f)

	snap := c.Snapshot(context.Background())
	assert.Equal(t, "2.8", snap.ApyByProductID["lido-steth"].String())
	assert.Equal(t, "5.9", snap.BorrowRateByAsset["USDC"].String())
	require.True(t, snap.FundingRatePercent.Valid)
	assert.Equal(t, "8.5", snap.FundingRatePercent.Decimal.String())
	assert.Equal(t, core.RateStatusLive, c.State().Status)

	// Served from cache within the TTL
	c.Snapshot(context.Background())
	assert.Equal(t, int32(1), y.calls.Load())
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	y := yieldSource()
	c, clk := newTestCache(nil, y)

	c.Snapshot(context.Background())
	clk.Advance(3*time.Hour - time.Second)
	c.Snapshot(context.Background())
	assert.Equal(t, int32(1), y.calls.Load())

	clk.Advance(time.Second)
	assert.Equal(t, core.RateStatusStale, c.State().Status)
	c.Snapshot(context.Background())
	assert.Equal(t, int32(2), y.calls.Load())
	assert.Equal(t, core.RateStatusLive, c.State().Status)
}

func TestCache_ServesStaleOnFailure(t *testing.T) {
	y := yieldSource()
	c, clk := newTestCache(nil, y)

	require.NoError(t, c.Refresh(context.Background()))
	fetchedAt := clk.Now()

	clk.Advance(4 * time.Hour)
	y.fail(errors.New("connection reset"))

	err := c.Refresh(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrRatesUnavailable)

	snap := c.Snapshot(context.Background())
	assert.Equal(t, "2.8", snap.ApyByProductID["lido-steth"].String(), "previous data is kept")

	st := c.State()
	assert.Equal(t, core.RateStatusStale, st.Status)
	assert.Equal(t, fetchedAt, st.LastUpdated)
	assert.Contains(t, st.Error, "connection reset")
}

func TestCache_FailureBacksOffRetries(t *testing.T) {
	y := yieldSource()
	y.fail(errors.New("down"))
	c, clk := newTestCache(nil, y)

	snap := c.Snapshot(context.Background())
	assert.Empty(t, snap.ApyByProductID)
	assert.Equal(t, core.RateStatusFallback, c.State().Status)

	c.Snapshot(context.Background())
	assert.Equal(t, int32(1), y.calls.Load(), "no retry inside the retry interval")

	y.recover()
	clk.Advance(time.Minute)
	snap = c.Snapshot(context.Background())
	assert.Equal(t, int32(2), y.calls.Load())
	assert.Contains(t, snap.ApyByProductID, "lido-steth")
	assert.Equal(t, core.RateStatusLive, c.State().Status)
}

func TestCache_PartialFailureIsStale(t *testing.T) {
	y, f := yieldSource(), fundingSource()
	f.fail(errors.New("timeout"))
	c, _ := newTestCache(nil, y, f)

	snap := c.Snapshot(context.Background())
	assert.Contains(t, snap.ApyByProductID, "lido-steth")
	assert.False(t, snap.FundingRatePercent.Valid)
	assert.Equal(t, core.RateStatusStale, c.State().Status)
}

func TestCache_ConcurrentRefreshCollapses(t *testing.T) {
	y := yieldSource()
	y.delay = 50 * time.Millisecond
	c, _ := newTestCache(nil, y)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Snapshot(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), y.calls.Load())
}

func TestCache_PersistAndRestore(t *testing.T) {
	store := newMemStore()
	y, f := yieldSource(), fundingSource()

	first, _ := newTestCache(store, y, f)
	require.NoError(t, first.Refresh(context.Background()))
	assert.Len(t, store.recs, 2)

	// Records from sources that are no longer configured are ignored
	require.NoError(t, store.SaveRateRecord(context.Background(), core.RateRecord{Source: "retired"}))

	y2, f2 := yieldSource(), fundingSource()
	second, _ := newTestCache(store, y2, f2)
	require.NoError(t, second.Restore(context.Background()))

	assert.Len(t, second.Records(), 2)
	assert.Equal(t, core.RateStatusLive, second.State().Status)

	snap := second.Snapshot(context.Background())
	assert.Equal(t, "8.5", snap.FundingRatePercent.Decimal.String())
	assert.Equal(t, int32(0), y2.calls.Load(), "restored records are fresh")
}

func TestRefreshJob(t *testing.T) {
	y := yieldSource()
	c, _ := newTestCache(nil, y)
	job := NewRefreshJob(c, time.Second)

	assert.Equal(t, "rate_refresh", job.Name())
	require.NoError(t, NewScheduler(&noopLogger{}).RunNow(job))
	assert.Equal(t, int32(1), y.calls.Load())
	require.NoError(t, NewScheduler(&noopLogger{}).AddJob(DefaultRefreshSchedule, job))
}

func TestScheduler_RunStopsWithContext(t *testing.T) {
	s := NewScheduler(&noopLogger{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
