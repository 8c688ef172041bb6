// Package leverage evaluates borrow-then-redeploy loops: ETH collateral is
// pledged, stablecoins are borrowed against it and deployed into a stablecoin
// product. It reports the per-loop economics, the aggregate health factor and
// the ETH price at which the book would be liquidated.
package leverage

import (
	"fmt"

	"yield_sim/internal/catalog"
	"yield_sim/internal/core"
	"yield_sim/internal/position"
	apperrors "yield_sim/pkg/errors"
	"yield_sim/pkg/finmath"

	"github.com/shopspring/decimal"
)

var (
	// SafeHealthFactor and CautionHealthFactor are the lower bounds of the
	// safe and caution bands. Anything below caution is at risk.
	SafeHealthFactor    = decimal.NewFromFloat(1.5)
	CautionHealthFactor = decimal.NewFromFloat(1.2)
)

// Engine computes leverage outcomes against a catalog. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	catalog core.ICatalog

	defaultThreshold decimal.Decimal // used when a product has no collateral params
}

func NewEngine(cat core.ICatalog) *Engine {
	return &Engine{
		catalog:          cat,
		defaultThreshold: catalog.DefaultLiquidationThresholdPercent,
	}
}

// Evaluate computes every active borrow loop of the portfolio and their
// aggregate. Allocations that are unselected, not leveraged or reference an
// unknown product are skipped; the aggregator reports unknown products.
func (e *Engine) Evaluate(cfg core.PortfolioConfig, rates core.RateSnapshot) (core.LeverageSummary, []core.Diagnostic) {
	summary := core.LeverageSummary{
		TotalCollateralUsd:       decimal.Zero,
		WeightedLiquidationValue: decimal.Zero,
		TotalBorrowedUsd:         decimal.Zero,
		TotalDeployYieldUsd:      decimal.Zero,
		TotalBorrowCostUsd:       decimal.Zero,
		NetYieldUsd:              decimal.Zero,
	}
	var diags []core.Diagnostic

	for _, a := range cfg.EthAllocations {
		if !a.Selected || !a.Leveraged() {
			continue
		}
		product, ok := e.catalog.GetProduct(a.ProductID)
		if !ok {
			continue
		}

		pos, posDiags := e.evaluatePosition(cfg, rates, a, product)
		diags = append(diags, posDiags...)

		summary.Positions = append(summary.Positions, pos)
		summary.TotalCollateralUsd = summary.TotalCollateralUsd.Add(pos.CollateralValueUsd)
		summary.WeightedLiquidationValue = summary.WeightedLiquidationValue.Add(
			finmath.Pct(pos.CollateralValueUsd, pos.LiquidationThresholdPercent))
		summary.TotalBorrowedUsd = summary.TotalBorrowedUsd.Add(pos.BorrowedUsd)
		summary.TotalDeployYieldUsd = summary.TotalDeployYieldUsd.Add(pos.DeployYieldUsd)
		summary.TotalBorrowCostUsd = summary.TotalBorrowCostUsd.Add(pos.BorrowCostUsd)
		summary.NetYieldUsd = summary.NetYieldUsd.Add(pos.NetYieldUsd)
	}

	summary.HealthFactor, summary.LiquidationPriceUsd, summary.LiquidationDropPercent =
		Liquidation(summary.WeightedLiquidationValue, summary.TotalBorrowedUsd, cfg.EthPriceUsd)
	summary.HealthStatus = StatusOf(summary.HealthFactor)

	return summary, diags
}

func (e *Engine) evaluatePosition(cfg core.PortfolioConfig, rates core.RateSnapshot, a core.EthAllocation, product core.Product) (core.LeveragePosition, []core.Diagnostic) {
	var diags []core.Diagnostic
	lc := a.Leverage

	threshold := e.defaultThreshold
	params, hasParams := e.catalog.GetCollateralParams(a.ProductID)
	if hasParams {
		threshold = params.LiquidationThresholdPercent
	}
	if !hasParams || !product.IsCollateralEligible {
		diags = append(diags, core.Diagnostic{
			Code:    core.DiagNotCollateralEligible,
			Subject: a.ProductID,
			Message: fmt.Sprintf("no collateral parameters, using %s%% liquidation threshold", threshold),
			Err:     apperrors.ErrNotCollateral,
		})
	}
	if hasParams && lc.LtvPercent.GreaterThan(params.MaxLtvPercent) {
		diags = append(diags, core.Diagnostic{
			Code:    core.DiagLtvAboveMax,
			Subject: a.ProductID,
			Message: fmt.Sprintf("ltv %s%% exceeds max %s%%", lc.LtvPercent, params.MaxLtvPercent),
			Err:     apperrors.ErrAboveLimit,
		})
	}

	if !lc.BorrowAsset.Valid() {
		diags = append(diags, core.Diagnostic{
			Code:    core.DiagUnknownBorrowAsset,
			Subject: string(lc.BorrowAsset),
			Message: "unsupported borrow asset, using default borrow rate",
			Err:     apperrors.ErrUnknownBorrowAsset,
		})
	}
	borrowRate := catalog.BorrowRateFor(e.catalog, rates, lc.BorrowAsset)

	deployApy, _, known := catalog.ApyFor(e.catalog, rates, lc.DeployTargetID)
	if !known {
		diags = append(diags, core.Diagnostic{
			Code:    core.DiagUnknownDeployTarget,
			Subject: lc.DeployTargetID,
			Message: "deploy target not in catalog, deploy yield is zero",
			Err:     apperrors.ErrUnknownDeployTarget,
		})
	}

	positionUsd := position.EthAllocationValueUsd(cfg, a)
	collateral := position.CollateralValueUsd(cfg, a)
	borrowed := position.BorrowedUsd(cfg, a)
	borrowCost := finmath.Annualized(borrowed, borrowRate, cfg.InvestmentPeriodYears)
	deployYield := finmath.Annualized(borrowed, deployApy, cfg.InvestmentPeriodYears)
	net := deployYield.Sub(borrowCost)

	hf, liqPrice, _ := Liquidation(finmath.Pct(collateral, threshold), borrowed, cfg.EthPriceUsd)

	return core.LeveragePosition{
		ProductID:                   a.ProductID,
		DeployTargetID:              lc.DeployTargetID,
		BorrowAsset:                 lc.BorrowAsset,
		PositionValueUsd:            positionUsd,
		CollateralValueUsd:          collateral,
		BorrowedUsd:                 borrowed,
		LiquidationThresholdPercent: threshold,
		BorrowRatePercent:           borrowRate,
		BorrowCostUsd:               borrowCost,
		DeployApyPercent:            deployApy,
		DeployYieldUsd:              deployYield,
		NetYieldUsd:                 net,
		NetBoostPercent:             finmath.DivOrZero(net, positionUsd).Mul(finmath.Hundred),
		HealthFactor:                hf,
		HealthStatus:                StatusOf(hf),
		LiquidationPriceUsd:         liqPrice,
	}, diags
}

// Liquidation solves the health factor of a book and the ETH price at which it
// reaches 1. All three results are invalid when nothing is borrowed or the
// weighted collateral is zero. Without a positive ETH price there is no price
// to solve for and only the liquidation price is invalid.
//
//	healthFactor     = weightedLiquidationValue / borrowed
//	liquidationPrice = price × borrowed / weightedLiquidationValue
//	dropPercent      = (1 − borrowed / weightedLiquidationValue) × 100
func Liquidation(weightedLiquidationValue, borrowed, ethPriceUsd decimal.Decimal) (healthFactor, liquidationPriceUsd, dropPercent decimal.NullDecimal) {
	if !borrowed.IsPositive() {
		return decimal.NullDecimal{}, decimal.NullDecimal{}, decimal.NullDecimal{}
	}
	healthFactor = finmath.NullDiv(weightedLiquidationValue, borrowed)

	ratio, ok := finmath.SafeDiv(borrowed, weightedLiquidationValue)
	if !ok {
		return healthFactor, decimal.NullDecimal{}, decimal.NullDecimal{}
	}
	if ethPriceUsd.IsPositive() {
		liquidationPriceUsd = decimal.NewNullDecimal(ethPriceUsd.Mul(ratio))
	}
	dropPercent = decimal.NewNullDecimal(finmath.One.Sub(ratio).Mul(finmath.Hundred))
	return healthFactor, liquidationPriceUsd, dropPercent
}

// StatusOf buckets a health factor into safe (>= 1.5), caution (>= 1.2) or at
// risk. An invalid health factor means nothing is borrowed.
func StatusOf(healthFactor decimal.NullDecimal) core.HealthStatus {
	switch {
	case !healthFactor.Valid:
		return core.HealthNone
	case healthFactor.Decimal.GreaterThanOrEqual(SafeHealthFactor):
		return core.HealthSafe
	case healthFactor.Decimal.GreaterThanOrEqual(CautionHealthFactor):
		return core.HealthCaution
	default:
		return core.HealthAtRisk
	}
}
