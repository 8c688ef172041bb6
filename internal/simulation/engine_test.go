package simulation

import (
	"context"
	"testing"

	"yield_sim/internal/catalog"
	"yield_sim/internal/core"
	"yield_sim/pkg/concurrency"
	apperrors "yield_sim/pkg/errors"
	"yield_sim/pkg/telemetry"

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

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{Name: "sweep-test", MaxWorkers: 4, MaxCapacity: 256}, &noopLogger{})
	t.Cleanup(pool.Stop)
	return NewEngine(catalog.New(), &noopLogger{}, pool)
}

func TestEngine_SimulateMatchesCompute(t *testing.T) {
	engine := newTestEngine(t)
	cfg := withLeverage(baseConfig())

	res := engine.Simulate(context.Background(), "", cfg, baseRates())
	want := ComputeSimulation(cfg, baseRates())
	assert.True(t, want.TotalReturnUsd.Equal(res.TotalReturnUsd))
	assert.True(t, want.ExpectedBalanceUsd.Equal(res.ExpectedBalanceUsd))
	assert.True(t, want.HealthFactor().Decimal.Equal(res.HealthFactor().Decimal))
	assert.Len(t, res.Breakdown, len(want.Breakdown))
}

func TestEngine_SimulatePublishesHealthFactor(t *testing.T) {
	engine := newTestEngine(t)
	metrics := telemetry.GetGlobalMetrics()

	engine.Simulate(context.Background(), "levered-book", withLeverage(baseConfig()), baseRates())
	assert.InDelta(t, 1.375, metrics.GetHealthFactors()["levered-book"], 1e-9)

	engine.Simulate(context.Background(), "levered-book", baseConfig(), baseRates())
	_, present := metrics.GetHealthFactors()["levered-book"]
	assert.False(t, present, "no leverage clears the gauge")
}

func TestEngine_Sweep(t *testing.T) {
	engine := newTestEngine(t)

	scenarios, err := Scenarios(dec(-50), dec(50), dec(10))
	require.NoError(t, err)
	require.Len(t, scenarios, 11)

	points, err := engine.Sweep(context.Background(), withHedge(baseConfig(), 20), baseRates(), scenarios)
	require.NoError(t, err)
	require.Len(t, points, len(scenarios))

	for i, p := range points {
		assert.True(t, p.ScenarioPercent.Equal(scenarios[i]))
		assert.True(t, p.Result.TotalReturnUsd.Equal(
			ComputeSimulation(withHedge(baseConfig(), 20).WithScenario(scenarios[i]), baseRates()).TotalReturnUsd))
	}

	// Hedge P&L moves against the price scenario
	assert.True(t, points[0].Result.Hedge.PricePnlUsd.IsPositive())
	assert.True(t, points[len(points)-1].Result.Hedge.PricePnlUsd.IsNegative())
}

func TestEngine_SweepCancelled(t *testing.T) {
	engine := newTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Sweep(ctx, baseConfig(), baseRates(), []decimal.Decimal{dec(1), dec(2)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScenarios_Validation(t *testing.T) {
	tests := []struct {
		name           string
		from, to, step float64
	}{
		{"zero step", 0, 10, 0},
		{"inverted range", 10, 0, 1},
		{"below total loss", -150, 0, 10},
		{"above slider", 0, 2000, 10},
		{"too many points", -100, 1000, 0.5},
		{"step small enough to overflow", -100, 1000, 1e-17},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Scenarios(dec(tt.from), dec(tt.to), dec(tt.step))
			assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
		})
	}

	full, err := Scenarios(MinScenarioPercent, MaxScenarioPercent, dec(1))
	require.NoError(t, err)
	assert.Len(t, full, MaxSweepPoints)

	// A step that does not divide the range stops below the upper bound
	partial, err := Scenarios(dec(0), dec(10), dec(4))
	require.NoError(t, err)
	require.Len(t, partial, 3)
	assert.True(t, partial[2].Equal(dec(8)))
}
