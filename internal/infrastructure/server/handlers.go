package server

import (
	"fmt"
	"net/http"
	"time"

	"yield_sim/internal/catalog"
	"yield_sim/internal/config"
	"yield_sim/internal/core"
	"yield_sim/internal/infrastructure/health"
	"yield_sim/internal/simulation"
	"yield_sim/internal/store"
	apperrors "yield_sim/pkg/errors"

	"github.com/shopspring/decimal"
)

var (
	// DefaultSweepFrom, DefaultSweepTo and DefaultSweepStep apply when a sweep
	// request names no range.
	DefaultSweepFrom = decimal.NewFromInt(-50)
	DefaultSweepTo   = decimal.NewFromInt(100)
	DefaultSweepStep = decimal.NewFromInt(10)
)

type healthResponse struct {
	Status     string                            `json:"status"`
	Time       time.Time                         `json:"time"`
	Rates      core.RateState                    `json:"rates"`
	Components map[string]health.ComponentStatus `json:"components,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Time: time.Now(), Rates: s.rates.State()}
	status := http.StatusOK

	if s.health != nil {
		resp.Components = s.health.GetStatus(r.Context())
		for _, st := range resp.Components {
			if st.Critical && !st.Healthy {
				resp.Status = "unhealthy"
				status = http.StatusServiceUnavailable
				break
			}
		}
	}
	writeJSON(w, status, resp)
}

type yieldsResponse struct {
	State       core.RateState                       `json:"state"`
	Products    []catalog.Quote                      `json:"products"`
	BorrowRates map[core.BorrowAsset]decimal.Decimal `json:"borrowRates"`
	Funding     decimal.Decimal                      `json:"fundingRatePercent"`
	MaxLeverage decimal.Decimal                      `json:"maxHedgeLeverage"`
}

func (s *Server) yields(r *http.Request) yieldsResponse {
	rates := s.rates.Snapshot(r.Context())
	cat := s.engine.Catalog()
	return yieldsResponse{
		State:       s.rates.State(),
		Products:    catalog.Quotes(cat, rates),
		BorrowRates: catalog.BorrowQuotes(cat, rates),
		Funding:     catalog.FundingRateFor(cat, rates),
		MaxLeverage: catalog.MaxHedgeLeverageFor(cat, rates),
	}
}

func (s *Server) handleYields(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.yields(r))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.rates.Refresh(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.yields(r))
}

// portfolioRef names the input of a simulation: either a saved portfolio or
// an inline config.
type portfolioRef struct {
	PortfolioID string                `json:"portfolioId,omitempty"`
	Label       string                `json:"label,omitempty"`
	Config      *core.PortfolioConfig `json:"config,omitempty"`
}

func (s *Server) resolve(r *http.Request, ref portfolioRef) (string, core.PortfolioConfig, error) {
	label := ref.Label
	var cfg core.PortfolioConfig

	switch {
	case ref.PortfolioID != "" && ref.Config != nil:
		return "", cfg, fmt.Errorf("%w: portfolioId and config are mutually exclusive", errBadRequest)
	case ref.PortfolioID != "":
		if s.portfolios == nil {
			return "", cfg, fmt.Errorf("%w: portfolio storage is disabled", apperrors.ErrNotFound)
		}
		p, err := s.portfolios.GetPortfolio(r.Context(), ref.PortfolioID)
		if err != nil {
			return "", cfg, err
		}
		cfg = p.Config
		if label == "" {
			label = p.Name
		}
	case ref.Config != nil:
		cfg = *ref.Config
	default:
		return "", cfg, fmt.Errorf("%w: portfolioId or config is required", errBadRequest)
	}

	if err := config.ValidatePortfolio(cfg); err != nil {
		return "", cfg, err
	}
	return label, cfg, nil
}

type simulateResponse struct {
	Rates  core.RateState        `json:"rates"`
	Result core.SimulationResult `json:"result"`
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req portfolioRef
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	label, cfg, err := s.resolve(r, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rates := s.rates.Snapshot(r.Context())
	res := s.engine.Simulate(r.Context(), label, cfg, rates)
	writeJSON(w, http.StatusOK, simulateResponse{Rates: s.rates.State(), Result: res})
}

type sweepRequest struct {
	portfolioRef
	From *decimal.Decimal `json:"fromPercent,omitempty"`
	To   *decimal.Decimal `json:"toPercent,omitempty"`
	Step *decimal.Decimal `json:"stepPercent,omitempty"`
}

type sweepResponse struct {
	Rates  core.RateState          `json:"rates"`
	Points []simulation.SweepPoint `json:"points"`
}

func orDefault(v *decimal.Decimal, def decimal.Decimal) decimal.Decimal {
	if v == nil {
		return def
	}
	return *v
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	_, cfg, err := s.resolve(r, req.portfolioRef)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	scenarios, err := simulation.Scenarios(
		orDefault(req.From, DefaultSweepFrom),
		orDefault(req.To, DefaultSweepTo),
		orDefault(req.Step, DefaultSweepStep),
	)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	points, err := s.engine.Sweep(r.Context(), cfg, s.rates.Snapshot(r.Context()), scenarios)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sweepResponse{Rates: s.rates.State(), Points: points})
}

type portfolioRequest struct {
	Name   string               `json:"name"`
	Config core.PortfolioConfig `json:"config"`
}

func (s *Server) savePortfolio(w http.ResponseWriter, r *http.Request, id string, status int) {
	var req portfolioRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := config.ValidatePortfolio(req.Config); err != nil {
		s.writeError(w, r, err)
		return
	}

	p, err := s.portfolios.SavePortfolio(r.Context(), store.Portfolio{ID: id, Name: req.Name, Config: req.Config})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("Portfolio saved", "id", p.ID, "name", p.Name)
	writeJSON(w, status, p)
}

func (s *Server) handleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	s.savePortfolio(w, r, "", http.StatusCreated)
}

func (s *Server) handlePutPortfolio(w http.ResponseWriter, r *http.Request) {
	s.savePortfolio(w, r, r.PathValue("id"), http.StatusOK)
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	p, err := s.portfolios.GetPortfolio(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleListPortfolios(w http.ResponseWriter, r *http.Request) {
	list, err := s.portfolios.ListPortfolios(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []store.Portfolio{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleDeletePortfolio(w http.ResponseWriter, r *http.Request) {
	if err := s.portfolios.DeletePortfolio(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
