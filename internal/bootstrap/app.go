package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"yield_sim/internal/catalog"
	"yield_sim/internal/rates"
	"yield_sim/internal/simulation"
	"yield_sim/internal/store"
	"yield_sim/pkg/concurrency"
	apphttp "yield_sim/pkg/http"
	"yield_sim/pkg/logging"
	"yield_sim/pkg/telemetry"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// Options tune how the App is assembled.
type Options struct {
	// Offline disables the upstream rate sources; simulations use the
	// persisted records or the catalog defaults.
	Offline bool
	// LogFormat is console or json.
	LogFormat string
	// Registry collects every Prometheus metric of the app. Nil uses the
	// process default registry.
	Registry *prometheus.Registry
}

// App represents the application context and holds core dependencies.
type App struct {
	Cfg       *Config
	Logger    *logging.ZapLogger
	Telemetry *telemetry.Telemetry
	Store     *store.SQLiteStore
	Catalog   *catalog.Catalog
	Rates     *rates.Cache
	Pool      *concurrency.WorkerPool
	Engine    *simulation.Engine

	offline    bool
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
}

// NewApp creates a new App instance by bootstrapping all dependencies.
func NewApp(configPath string, opts Options) (*App, error) {
	// 1. Load Configuration
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	// 2. Initialize Logger
	logger, err := InitLogger(cfg, opts.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if opts.Registry != nil {
		registerer, gatherer = opts.Registry, opts.Registry
	}

	// 3. Telemetry
	tel, err := telemetry.Setup(cfg.App.Name, telemetry.Options{Registerer: registerer})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	a := &App{
		Cfg:        cfg,
		Logger:     logger,
		Telemetry:  tel,
		offline:    opts.Offline,
		registerer: registerer,
		gatherer:   gatherer,
	}

	// 4. Store
	a.Store, err = store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		_ = a.Close(context.Background())
		return nil, fmt.Errorf("store: %w", err)
	}

	// 5. Catalog, rates and engine
	a.Catalog = catalog.New().WithOverrides(cfg.Catalog.ApyOverrides)
	a.Rates = newRateCache(cfg, opts.Offline, a.Catalog, a.Store, logger)

	restoreCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Rates.Restore(restoreCtx); err != nil {
		logger.Warn("Failed to restore persisted rates", "error", err)
	}

	a.Pool = concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "sweep",
		MaxWorkers:  cfg.Concurrency.SweepPoolSize,
		MaxCapacity: cfg.Concurrency.SweepPoolBuffer,
	}, logger)
	a.Engine = simulation.NewEngine(a.Catalog, logger, a.Pool)

	logger.Info("Application bootstrapped",
		"store", cfg.Store.Path,
		"rates_enabled", a.RatesEnabled())
	return a, nil
}

func newRateCache(cfg *Config, offline bool, cat *catalog.Catalog, st *store.SQLiteStore, logger *logging.ZapLogger) *rates.Cache {
	cacheCfg := rates.CacheConfig{
		TTL:               cfg.Rates.CacheTTL,
		RetryInterval:     cfg.Rates.RetryInterval,
		RequestsPerSecond: cfg.Rates.RequestsPerSecond,
		Burst:             cfg.Rates.Burst,
	}
	if !cfg.Rates.Enabled || offline {
		return rates.NewCache(cacheCfg, logger, st)
	}

	return rates.NewCache(cacheCfg, logger, st,
		rates.NewDefiLlamaSource(apphttp.NewClient(cfg.Rates.DefiLlamaURL, cfg.Rates.HTTPTimeout), cat.Products()),
		rates.NewHyperliquidSource(apphttp.NewClient(cfg.Rates.HyperliquidURL, cfg.Rates.HTTPTimeout)),
	)
}

// RatesEnabled reports whether upstream rate sources are wired.
func (a *App) RatesEnabled() bool {
	return a.Cfg.Rates.Enabled && !a.offline
}

// Close releases the app's resources in reverse order of creation.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Pool != nil {
		a.Pool.Stop()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
	}
	if a.Telemetry != nil {
		if err := a.Telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Logger != nil {
		// Sync on stderr reports EINVAL on some platforms
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}

// Runner is an interface for components that can be run and stopped gracefully.
type Runner interface {
	Run(ctx context.Context) error
}

// Run orchestrates the application lifecycle, including signal handling.
func (a *App) Run(runners ...Runner) error {
	// Create a context that is canceled when a termination signal is received.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.RunContext(ctx, runners...)
}

// RunContext runs every runner until ctx is done or one of them fails.
func (a *App) RunContext(ctx context.Context, runners ...Runner) error {
	g, ctx := errgroup.WithContext(ctx)

	a.Logger.Info("starting application", "runners", len(runners))

	for _, r := range runners {
		g.Go(func() error {
			return r.Run(ctx)
		})
	}

	// errgroup cancels the shared context on the first failure and returns that error
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error("application stopped with error", "error", err)
		return err
	}

	a.Logger.Info("application shut down gracefully")
	return nil
}
