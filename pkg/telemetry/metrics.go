package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricSimulationsTotal   = "yield_sim_simulations_total"
	MetricSimulationDuration = "yield_sim_simulation_duration_ms"
	MetricRateRefreshTotal   = "yield_sim_rate_refresh_total"
	MetricRateSnapshotAge    = "yield_sim_rate_snapshot_age_seconds"
	MetricHealthFactor       = "yield_sim_health_factor"
)

// MetricsHolder holds initialized instruments
type MetricsHolder struct {
	SimulationsTotal   metric.Int64Counter
	SimulationDuration metric.Float64Histogram
	RateRefreshTotal   metric.Int64Counter
	RateSnapshotAge    metric.Float64ObservableGauge
	HealthFactor       metric.Float64ObservableGauge

	// State for observable gauges
	mu              sync.RWMutex
	lastRateRefresh time.Time
	healthFactorMap map[string]float64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{
			healthFactorMap: make(map[string]float64),
		}
		// Initialization of instruments happens in InitMetrics
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.SimulationsTotal, err = meter.Int64Counter(MetricSimulationsTotal, metric.WithDescription("Total simulations computed"))
	if err != nil {
		return err
	}

	m.SimulationDuration, err = meter.Float64Histogram(MetricSimulationDuration, metric.WithDescription("Time to compute one simulation"), metric.WithUnit("ms"))
	if err != nil {
		return err
	}

	m.RateRefreshTotal, err = meter.Int64Counter(MetricRateRefreshTotal, metric.WithDescription("Rate snapshot refresh attempts by result"))
	if err != nil {
		return err
	}

	// Observables
	m.RateSnapshotAge, err = meter.Float64ObservableGauge(MetricRateSnapshotAge, metric.WithDescription("Seconds since the last successful rate refresh"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			if m.lastRateRefresh.IsZero() {
				return nil
			}
			obs.Observe(time.Since(m.lastRateRefresh).Seconds())
			return nil
		}))
	if err != nil {
		return err
	}

	m.HealthFactor, err = meter.Float64ObservableGauge(MetricHealthFactor, metric.WithDescription("Last computed aggregate health factor"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for portfolio, val := range m.healthFactorMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("portfolio", portfolio)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	return nil
}

// RecordSimulation counts one simulation. No-op until InitMetrics ran.
func (m *MetricsHolder) RecordSimulation(ctx context.Context, kind string, elapsed time.Duration, diagnostics int) {
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("diagnostics", diagnostics > 0),
	)
	if m.SimulationsTotal != nil {
		m.SimulationsTotal.Add(ctx, 1, attrs)
	}
	if m.SimulationDuration != nil {
		m.SimulationDuration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	}
}

// RecordRateRefresh counts one refresh attempt and, on success, resets the
// snapshot age.
func (m *MetricsHolder) RecordRateRefresh(ctx context.Context, result string, at time.Time) {
	if m.RateRefreshTotal != nil {
		m.RateRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	}
	if result == "success" {
		m.mu.Lock()
		m.lastRateRefresh = at
		m.mu.Unlock()
	}
}

// Helpers to update observable state

func (m *MetricsHolder) SetHealthFactor(portfolio string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthFactorMap[portfolio] = value
}

func (m *MetricsHolder) ClearHealthFactor(portfolio string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.healthFactorMap, portfolio)
}

func (m *MetricsHolder) GetHealthFactors() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make(map[string]float64)
	for k, v := range m.healthFactorMap {
		res[k] = v
	}
	return res
}

func (m *MetricsHolder) LastRateRefresh() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRateRefresh
}
