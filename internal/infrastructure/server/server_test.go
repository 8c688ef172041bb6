package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"yield_sim/internal/auth"
	"yield_sim/internal/catalog"
	"yield_sim/internal/core"
	"yield_sim/internal/infrastructure/health"
	"yield_sim/internal/simulation"
	"yield_sim/internal/store"
	"yield_sim/pkg/concurrency"
	apperrors "yield_sim/pkg/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
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

type stubRates struct {
	snapshot   core.RateSnapshot
	state      core.RateState
	refreshErr error
	refreshed  int
}

func (r *stubRates) Snapshot(context.Context) core.RateSnapshot { return r.snapshot }
func (r *stubRates) State() core.RateState                      { return r.state }
func (r *stubRates) Refresh(context.Context) error {
	r.refreshed++
	return r.refreshErr
}

const testAPIKey = "test-key"

const portfolioJSON = `{
	"investmentAmount": 1000000,
	"investmentPeriodYears": 1,
	"ethRatio": 40,
	"ethPriceUsd": 2000,
	"priceChangeScenarioPercent": 0,
	"hedgeConfig": {"enabled": false},
	"ethAllocations": [{"productId": "lido-steth", "selected": true, "weightPercent": 100}],
	"stablecoinAllocations": [{"productId": "aave-usdc", "selected": true, "weightPercent": 100}]
}`

type fixture struct {
	handler http.Handler
	rates   *stubRates
	reg     *prometheus.Registry
	health  *health.HealthManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := &noopLogger{}

	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{Name: "api-test", MaxWorkers: 2, MaxCapacity: 64}, logger)
	t.Cleanup(pool.Stop)
	engine := simulation.NewEngine(catalog.New(), logger, pool)

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	rates := &stubRates{
		snapshot: core.RateSnapshot{
			ApyByProductID:    map[string]decimal.Decimal{"lido-steth": decimal.NewFromInt(3), "aave-usdc": decimal.NewFromInt(5)},
			BorrowRateByAsset: map[string]decimal.Decimal{},
		},
		state: core.RateState{Status: core.RateStatusLive, LastUpdated: time.Now()},
	}

	hm := health.NewHealthManager(logger, time.Second)
	hm.Register("store", health.StoreCheck(st))
	hm.RegisterOptional("rates", health.RatesCheck(rates))

	reg := prometheus.NewRegistry()
	srv, err := NewServer(Options{RequestTimeout: 5 * time.Second, Registerer: reg},
		engine, rates, st, hm, auth.NewAPIKeyValidator([]string{testAPIKey}, 100, logger), logger)
	require.NoError(t, err)

	return &fixture{handler: srv.Handler(), rates: rates, reg: reg, health: hm}
}

func (f *fixture) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if authed {
		req.Header.Set(auth.HeaderAPIKey, testAPIKey)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(v), rec.Body.String())
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(auth.HeaderRequestID))

	var resp healthResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, core.RateStatusLive, resp.Rates.Status)
	assert.True(t, resp.Components["store"].Healthy)

	f.rates.state = core.RateState{Status: core.RateStatusFallback}
	rec = f.do(t, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, rec.Code, "stale rates do not fail the service")

	f.health.Register("broken", func(context.Context) error { return errors.New("down") })
	rec = f.do(t, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestYields(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/yields", "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp yieldsResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, core.RateStatusLive, resp.State.Status)
	require.NotEmpty(t, resp.Products)
	assert.Equal(t, "lido-steth", resp.Products[0].ID)
	assert.True(t, resp.Products[0].Live)
	assert.True(t, resp.Products[0].ApyPercent.Equal(decimal.NewFromInt(3)))
	assert.True(t, resp.BorrowRates[core.BorrowUSDC].Equal(decimal.NewFromFloat(5.5)))
	assert.True(t, resp.Funding.Equal(catalog.FallbackFundingRatePercent))
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/api/yields/refresh", "", false).Code)
	assert.Equal(t, 0, f.rates.refreshed)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/yields/refresh", "", true).Code)
	assert.Equal(t, 1, f.rates.refreshed)

	f.rates.refreshErr = apperrors.ErrRatesUnavailable
	assert.Equal(t, http.StatusBadGateway, f.do(t, http.MethodPost, "/api/yields/refresh", "", true).Code)
}

func TestSimulate_InlineConfig(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/simulate", `{"config":`+portfolioJSON+`}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp simulateResponse
	decodeBody(t, rec, &resp)
	assert.True(t, resp.Result.TotalReturnUsd.Equal(decimal.NewFromInt(42000)), resp.Result.TotalReturnUsd.String())
	assert.True(t, resp.Result.ExpectedBalanceUsd.Equal(decimal.NewFromInt(1042000)))
	assert.Empty(t, resp.Result.Diagnostics)
	assert.Equal(t, core.RateStatusLive, resp.Rates.Status)
}

func TestSimulate_Errors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		body   string
		authed bool
		status int
	}{
		{"unauthenticated", `{"config":` + portfolioJSON + `}`, false, http.StatusUnauthorized},
		{"malformed json", `{"config":`, true, http.StatusBadRequest},
		{"unknown field", `{"portfolio":{}}`, true, http.StatusBadRequest},
		{"no input", `{}`, true, http.StatusBadRequest},
		{"both inputs", `{"portfolioId":"x","config":` + portfolioJSON + `}`, true, http.StatusBadRequest},
		{"invalid config", `{"config":{"investmentAmount":-1}}`, true, http.StatusBadRequest},
		{"unknown portfolio", `{"portfolioId":"6f1c1b9e-8d1a-4d8c-9b1e-2d7a0c5e4f10"}`, true, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/simulate", tt.body, tt.authed)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestSweep(t *testing.T) {
	f := newFixture(t)

	body := `{"config":` + portfolioJSON + `,"fromPercent":-10,"toPercent":10,"stepPercent":10}`
	rec := f.do(t, http.MethodPost, "/api/sweep", body, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp sweepResponse
	decodeBody(t, rec, &resp)
	require.Len(t, resp.Points, 3)
	assert.True(t, resp.Points[0].ScenarioPercent.Equal(decimal.NewFromInt(-10)))
	assert.True(t, resp.Points[2].ScenarioPercent.Equal(decimal.NewFromInt(10)))
	assert.True(t, resp.Points[0].Result.TotalReturnUsd.LessThan(resp.Points[2].Result.TotalReturnUsd))

	rec = f.do(t, http.MethodPost, "/api/sweep", `{"config":`+portfolioJSON+`}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	assert.Len(t, resp.Points, 16, "default range -50..100 step 10")

	rec = f.do(t, http.MethodPost, "/api/sweep", `{"config":`+portfolioJSON+`,"stepPercent":0}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPortfolios_CRUD(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/portfolios", `{"name":"base","config":`+portfolioJSON+`}`, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created store.Portfolio
	decodeBody(t, rec, &created)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "base", created.Name)

	rec = f.do(t, http.MethodGet, "/api/portfolios/"+created.ID, "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var got store.Portfolio
	decodeBody(t, rec, &got)
	assert.True(t, got.Config.EthRatio.Equal(decimal.NewFromInt(40)))

	rec = f.do(t, http.MethodPut, "/api/portfolios/"+created.ID, `{"name":"renamed","config":`+portfolioJSON+`}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/simulate", `{"portfolioId":"`+created.ID+`"}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/portfolios", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []store.Portfolio
	decodeBody(t, rec, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "renamed", list[0].Name)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodDelete, "/api/portfolios/"+created.ID, "", false).Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/portfolios/"+created.ID, "", true).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/portfolios/"+created.ID, "", false).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/api/portfolios/"+created.ID, "", true).Code)
}

func TestPortfolios_Validation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/portfolios/not-a-uuid", `{"name":"x","config":`+portfolioJSON+`}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/portfolios", `{"name":"x","config":{"ethRatio":150}}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/portfolios", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestRequestMetrics(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodGet, "/api/yields", "", false)
	f.do(t, http.MethodGet, "/api/yields", "", false)
	f.do(t, http.MethodPost, "/api/simulate", `{}`, false)

	expected := `
# HELP yield_sim_http_requests_total HTTP requests by route and status code
# TYPE yield_sim_http_requests_total counter
yield_sim_http_requests_total{code="200",route="GET /api/yields"} 2
yield_sim_http_requests_total{code="401",route="POST /api/simulate"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(f.reg, strings.NewReader(expected), "yield_sim_http_requests_total"))
}

func TestNewServer_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	logger := &noopLogger{}
	_, err := NewServer(Options{Registerer: reg}, nil, &stubRates{}, nil, nil, nil, logger)
	require.NoError(t, err)

	_, err = NewServer(Options{Registerer: reg}, nil, &stubRates{}, nil, nil, nil, logger)
	assert.Error(t, err)
}
