package bootstrap

import (
	"context"
	"time"

	"yield_sim/internal/auth"
	"yield_sim/internal/infrastructure/health"
	"yield_sim/internal/infrastructure/metrics"
	"yield_sim/internal/infrastructure/server"
	"yield_sim/internal/rates"
)

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context) error

func (f RunnerFunc) Run(ctx context.Context) error { return f(ctx) }

// HealthManager registers the store and rate checks.
func (a *App) HealthManager() *health.HealthManager {
	hm := health.NewHealthManager(a.Logger, 2*time.Second)
	hm.Register("store", health.StoreCheck(a.Store))
	hm.RegisterOptional("rates", health.RatesCheck(a.Rates))
	return hm
}

// APIServer builds the HTTP API runner.
func (a *App) APIServer() (*server.Server, error) {
	validator := auth.NewAPIKeyValidator(a.Cfg.APIKeyStrings(), a.Cfg.Server.RateLimit, a.Logger)
	return server.NewServer(server.Options{
		Port:           a.Cfg.Server.Port,
		RequestTimeout: a.Cfg.Server.RequestTimeout,
		Registerer:     a.registerer,
	}, a.Engine, a.Rates, a.Store, a.HealthManager(), validator, a.Logger)
}

// MetricsServer builds the Prometheus runner, or nil when metrics are off.
func (a *App) MetricsServer() *metrics.Server {
	if !a.Cfg.Telemetry.EnableMetrics {
		return nil
	}
	return metrics.NewServer(a.Cfg.Telemetry.MetricsPort, a.gatherer, a.Logger)
}

// RateScheduler builds the scheduled rate refresh. The first refresh runs
// right away in the background so a fresh process does not wait a full
// schedule period.
func (a *App) RateScheduler() (Runner, error) {
	sched := rates.NewScheduler(a.Logger)
	job := rates.NewRefreshJob(a.Rates, a.Cfg.Rates.HTTPTimeout*2)
	if err := sched.AddJob(a.Cfg.Rates.RefreshSchedule, job); err != nil {
		return nil, err
	}

	return RunnerFunc(func(ctx context.Context) error {
		go func() {
			if err := sched.RunNow(job); err != nil {
				a.Logger.Warn("Initial rate refresh failed", "error", err)
			}
		}()
		return sched.Run(ctx)
	}), nil
}

// ServeRunners assembles every long-running component of the serve command.
func (a *App) ServeRunners() ([]Runner, error) {
	api, err := a.APIServer()
	if err != nil {
		return nil, err
	}
	runners := []Runner{api}

	if m := a.MetricsServer(); m != nil {
		runners = append(runners, m)
	}
	if a.RatesEnabled() {
		sched, err := a.RateScheduler()
		if err != nil {
			return nil, err
		}
		runners = append(runners, sched)
	}
	return runners, nil
}
