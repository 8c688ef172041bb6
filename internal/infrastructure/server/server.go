// Package server exposes the simulator over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"yield_sim/internal/auth"
	"yield_sim/internal/core"
	"yield_sim/internal/infrastructure/health"
	"yield_sim/internal/simulation"
	"yield_sim/internal/store"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// RateService is the rate cache as seen by the API.
type RateService interface {
	core.IRateProvider
	Refresh(ctx context.Context) error
}

// PortfolioStore persists saved portfolios.
type PortfolioStore interface {
	SavePortfolio(ctx context.Context, p store.Portfolio) (store.Portfolio, error)
	GetPortfolio(ctx context.Context, id string) (store.Portfolio, error)
	ListPortfolios(ctx context.Context) ([]store.Portfolio, error)
	DeletePortfolio(ctx context.Context, id string) error
}

// Options configures a Server.
type Options struct {
	Port           int
	RequestTimeout time.Duration
	// Registerer receives the request metrics. Nil skips registration.
	Registerer prometheus.Registerer
}

// Server is the HTTP API. It is a thin adapter over the engine, the rate
// cache and the store.
type Server struct {
	opts       Options
	engine     *simulation.Engine
	rates      RateService
	portfolios PortfolioStore
	health     *health.HealthManager
	auth       *auth.APIKeyValidator
	logger     core.ILogger

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec

	srv *http.Server
}

// NewServer wires the API. portfolios may be nil, which disables the
// /api/portfolios routes.
func NewServer(opts Options, engine *simulation.Engine, rates RateService, portfolios PortfolioStore,
	hm *health.HealthManager, validator *auth.APIKeyValidator, logger core.ILogger) (*Server, error) {
	s := &Server{
		opts:       opts,
		engine:     engine,
		rates:      rates,
		portfolios: portfolios,
		health:     hm,
		auth:       validator,
		logger:     logger.WithField("component", "api_server"),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yield_sim_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "yield_sim_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	if opts.Registerer != nil {
		for _, c := range []prometheus.Collector{s.requests, s.duration} {
			if err := opts.Registerer.Register(c); err != nil {
				return nil, fmt.Errorf("register api metrics: %w", err)
			}
		}
	}
	return s, nil
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.handle(mux, "GET /health", false, s.handleHealth)
	s.handle(mux, "GET /api/yields", false, s.handleYields)
	s.handle(mux, "POST /api/yields/refresh", true, s.handleRefresh)
	s.handle(mux, "POST /api/simulate", true, s.handleSimulate)
	s.handle(mux, "POST /api/sweep", true, s.handleSweep)

	if s.portfolios != nil {
		s.handle(mux, "GET /api/portfolios", false, s.handleListPortfolios)
		s.handle(mux, "POST /api/portfolios", true, s.handleCreatePortfolio)
		s.handle(mux, "GET /api/portfolios/{id}", false, s.handleGetPortfolio)
		s.handle(mux, "PUT /api/portfolios/{id}", true, s.handlePutPortfolio)
		s.handle(mux, "DELETE /api/portfolios/{id}", true, s.handleDeletePortfolio)
	}
	return mux
}

func (s *Server) handle(mux *http.ServeMux, pattern string, protected bool, fn http.HandlerFunc) {
	var h http.Handler = fn
	if protected && s.auth != nil {
		h = s.auth.Middleware(h)
	}
	mux.Handle(pattern, s.instrument(pattern, h))
}

// instrument assigns the request ID, applies the request timeout and records
// the request metrics.
func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ctx, requestID := auth.WithRequestID(r.Context())
		if s.opts.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.opts.RequestTimeout)
			defer cancel()
		}
		w.Header().Set(auth.HeaderRequestID, requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		s.requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		s.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		s.logger.Debug("Request served",
			"route", route,
			"status", rec.status,
			"request_id", requestID,
			"elapsed", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Run serves the API until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.opts.Port))
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves the API on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting API server", "addr", ln.Addr().String())
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Stopping API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}
