package simulation

import (
	"context"
	"fmt"
	"time"

	"yield_sim/internal/core"
	apperrors "yield_sim/pkg/errors"

	"github.com/shopspring/decimal"
)

// MaxSweepPoints bounds a single sweep.
const MaxSweepPoints = 1101

var (
	// MinScenarioPercent is a total loss of the ETH price.
	MinScenarioPercent = decimal.NewFromInt(-100)
	// MaxScenarioPercent is an 11x move, the upper end of the scenario slider.
	MaxScenarioPercent = decimal.NewFromInt(1000)
)

// SweepPoint is the result of one price scenario in a sweep.
type SweepPoint struct {
	ScenarioPercent decimal.Decimal       `json:"scenarioPercent"`
	Result          core.SimulationResult `json:"result"`
}

// Scenarios expands an inclusive [from, to] range with the given step.
func Scenarios(from, to, step decimal.Decimal) ([]decimal.Decimal, error) {
	if !step.IsPositive() {
		return nil, fmt.Errorf("%w: sweep step must be positive, got %s", apperrors.ErrInvalidConfig, step)
	}
	if from.GreaterThan(to) {
		return nil, fmt.Errorf("%w: sweep range %s..%s is empty", apperrors.ErrInvalidConfig, from, to)
	}
	if from.LessThan(MinScenarioPercent) || to.GreaterThan(MaxScenarioPercent) {
		return nil, fmt.Errorf("%w: sweep range must stay within %s..%s", apperrors.ErrInvalidConfig, MinScenarioPercent, MaxScenarioPercent)
	}

	// Bound the quotient before IntPart, which overflows for tiny steps.
	q := to.Sub(from).Div(step)
	if q.GreaterThanOrEqual(decimal.NewFromInt(MaxSweepPoints)) {
		return nil, fmt.Errorf("%w: sweep step %s yields more than %d points", apperrors.ErrInvalidConfig, step, MaxSweepPoints)
	}
	n := q.IntPart() + 1

	out := make([]decimal.Decimal, 0, n)
	for i := int64(0); i < n; i++ {
		out = append(out, from.Add(step.Mul(decimal.NewFromInt(i))))
	}
	return out, nil
}

// Sweep evaluates the portfolio under every scenario concurrently. Results
// are returned in scenario order.
func (e *Engine) Sweep(ctx context.Context, cfg core.PortfolioConfig, rates core.RateSnapshot, scenarios []decimal.Decimal) ([]SweepPoint, error) {
	ctx, span := e.tracer.Start(ctx, "simulation.Sweep")
	defer span.End()

	start := time.Now()
	points := make([]SweepPoint, len(scenarios))
	tasks := make([]func(context.Context) error, len(scenarios))
	for i, s := range scenarios {
		i, s := i, s
		tasks[i] = func(context.Context) error {
			points[i] = SweepPoint{
				ScenarioPercent: s,
				Result:          Compute(e.catalog, cfg.WithScenario(s), rates),
			}
			return nil
		}
	}

	if err := e.pool.RunAll(ctx, tasks); err != nil {
		return nil, fmt.Errorf("sweep aborted: %w", err)
	}

	e.metrics.RecordSimulation(ctx, "sweep", time.Since(start), 0)
	e.logger.Debug("Sweep computed", "points", len(points), "elapsed", time.Since(start))
	return points, nil
}
