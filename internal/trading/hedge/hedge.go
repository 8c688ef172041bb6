// Package hedge models a leveraged perpetual-futures short against the ETH
// sleeve: funding income plus the price P&L of the short under a scenario.
package hedge

import (
	"fmt"

	"yield_sim/internal/catalog"
	"yield_sim/internal/core"
	"yield_sim/internal/position"
	apperrors "yield_sim/pkg/errors"
	"yield_sim/pkg/finmath"

	"github.com/shopspring/decimal"
)

// Engine computes hedge outcomes. Funding rate and leverage cap come from the
// rate snapshot, falling back to the catalog.
type Engine struct {
	catalog core.ICatalog
}

func NewEngine(cat core.ICatalog) *Engine {
	return &Engine{catalog: cat}
}

// Inactive is the result of a disabled or unfunded hedge.
func Inactive() core.HedgeResult {
	return core.HedgeResult{
		CapitalUsd:           decimal.Zero,
		MarginDeployedUsd:    decimal.Zero,
		ShortPositionSizeUsd: decimal.Zero,
		CoveragePercent:      decimal.Zero,
		FundingRatePercent:   decimal.Zero,
		FundingIncomeUsd:     decimal.Zero,
		PricePnlUsd:          decimal.Zero,
		NetReturnUsd:         decimal.Zero,
	}
}

// Evaluate sizes the short and projects its return over the horizon.
//
//	margin   = capital × fundAllocation%
//	size     = margin × leverage
//	funding  = size × fundingRate% × years   (positive rate pays the short)
//	pricePnl = −size × scenario%
func (e *Engine) Evaluate(cfg core.PortfolioConfig, rates core.RateSnapshot) (core.HedgeResult, []core.Diagnostic) {
	h := cfg.Hedge
	capital := position.HedgeDeductionUsd(cfg)
	// An all-ETH portfolio leaves no sleeve to carve the hedge out of.
	if !h.Active() || !capital.IsPositive() {
		return Inactive(), nil
	}

	var diags []core.Diagnostic
	maxLeverage := catalog.MaxHedgeLeverageFor(e.catalog, rates)
	if h.LeverageMultiplier.GreaterThan(maxLeverage) {
		diags = append(diags, core.Diagnostic{
			Code:    core.DiagHedgeLeverageAboveMax,
			Subject: "hedge",
			Message: fmt.Sprintf("leverage %sx exceeds venue max %sx", h.LeverageMultiplier, maxLeverage),
			Err:     apperrors.ErrAboveLimit,
		})
	}

	margin := finmath.Pct(capital, h.FundAllocationPercent)
	size := margin.Mul(h.LeverageMultiplier)
	fundingRate := catalog.FundingRateFor(e.catalog, rates)
	funding := finmath.Annualized(size, fundingRate, cfg.InvestmentPeriodYears)
	pricePnl := finmath.Pct(size, cfg.PriceChangeScenarioPercent).Neg()

	return core.HedgeResult{
		Active:               true,
		CapitalUsd:           capital,
		MarginDeployedUsd:    margin,
		ShortPositionSizeUsd: size,
		CoveragePercent:      Coverage(size, position.EthPositionUsd(cfg)),
		FundingRatePercent:   fundingRate,
		FundingIncomeUsd:     funding,
		PricePnlUsd:          pricePnl,
		NetReturnUsd:         funding.Add(pricePnl),
	}, diags
}

// Coverage is the short notional as a percentage of the ETH exposure, 0 when
// there is no exposure.
func Coverage(shortSizeUsd, ethExposureUsd decimal.Decimal) decimal.Decimal {
	if !ethExposureUsd.IsPositive() {
		return decimal.Zero
	}
	return shortSizeUsd.Div(ethExposureUsd).Mul(finmath.Hundred)
}
