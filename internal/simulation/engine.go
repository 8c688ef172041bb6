package simulation

import (
	"context"
	"time"

	"yield_sim/internal/core"
	"yield_sim/pkg/concurrency"
	"yield_sim/pkg/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Engine runs simulations against a fixed catalog and reports them to the
// logger and the metrics holder. The computation itself stays pure.
type Engine struct {
	catalog core.ICatalog
	logger  core.ILogger
	metrics *telemetry.MetricsHolder
	tracer  trace.Tracer
	pool    *concurrency.WorkerPool
}

// NewEngine creates an engine. pool is used by Sweep and may be shared.
func NewEngine(cat core.ICatalog, logger core.ILogger, pool *concurrency.WorkerPool) *Engine {
	return &Engine{
		catalog: cat,
		logger:  logger.WithField("component", "simulation"),
		metrics: telemetry.GetGlobalMetrics(),
		tracer:  telemetry.GetTracer("simulation"),
		pool:    pool,
	}
}

// Catalog returns the catalog the engine resolves products against.
func (e *Engine) Catalog() core.ICatalog {
	return e.catalog
}

// Simulate computes one portfolio. A non-empty label publishes the resulting
// health factor under that label.
func (e *Engine) Simulate(ctx context.Context, label string, cfg core.PortfolioConfig, rates core.RateSnapshot) core.SimulationResult {
	_, span := e.tracer.Start(ctx, "simulation.Simulate")
	defer span.End()

	start := time.Now()
	res := Compute(e.catalog, cfg, rates)
	e.metrics.RecordSimulation(ctx, "single", time.Since(start), len(res.Diagnostics))

	span.SetAttributes(
		attribute.Int("diagnostics", len(res.Diagnostics)),
		attribute.Bool("leveraged", res.HealthFactor().Valid),
		attribute.Bool("hedged", res.Hedge.Active),
	)

	if label != "" {
		if hf := res.HealthFactor(); hf.Valid {
			v, _ := hf.Decimal.Float64()
			e.metrics.SetHealthFactor(label, v)
		} else {
			e.metrics.ClearHealthFactor(label)
		}
	}

	for _, d := range res.Diagnostics {
		e.logger.Warn("Simulation diagnostic", "code", d.Code, "subject", d.Subject, "message", d.Message)
	}
	e.logger.Debug("Simulation computed",
		"portfolio", label,
		"total_return_usd", res.TotalReturnUsd.StringFixed(2),
		"portfolio_apy", res.PortfolioApyPercent.StringFixed(4),
		"elapsed", time.Since(start))

	return res
}
