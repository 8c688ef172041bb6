// Package simulation combines positions, leverage loops and the hedge into
// portfolio-level returns, balances and a display breakdown.
package simulation

import (
	"fmt"

	"yield_sim/internal/catalog"
	"yield_sim/internal/core"
	"yield_sim/internal/position"
	"yield_sim/internal/risk/leverage"
	"yield_sim/internal/trading/hedge"
	apperrors "yield_sim/pkg/errors"
	"yield_sim/pkg/finmath"

	"github.com/shopspring/decimal"
)

var defaultCatalog = catalog.New()

// ComputeSimulation runs the model against the built-in catalog.
func ComputeSimulation(cfg core.PortfolioConfig, rates core.RateSnapshot) core.SimulationResult {
	return Compute(defaultCatalog, cfg, rates)
}

// ethYield is the projected yield of one ETH sleeve allocation.
type ethYield struct {
	product  core.Product
	position decimal.Decimal
	apy      decimal.Decimal
	usd      decimal.Decimal
	eth      decimal.Decimal
}

type stableYield struct {
	product  core.Product
	position decimal.Decimal
	apy      decimal.Decimal
	usd      decimal.Decimal
}

// Compute derives every output of a portfolio. It never panics for a
// structurally valid config: degenerate inputs produce zeros or invalid
// NullDecimals and, where useful, a diagnostic.
func Compute(cat core.ICatalog, cfg core.PortfolioConfig, rates core.RateSnapshot) core.SimulationResult {
	var diags []core.Diagnostic
	years := cfg.InvestmentPeriodYears
	scenario := cfg.PriceChangeScenarioPercent

	ethPositionUsd := position.EthPositionUsd(cfg)
	ethSleeveEth := position.EthSleeveEth(cfg)
	stablePoolUsd := position.StablecoinPoolUsd(cfg)
	ethWeight := position.TotalSelectedEthWeight(cfg)
	stableWeight := position.TotalSelectedStablecoinWeight(cfg)

	// ETH sleeve
	var ethYields []ethYield
	totalEthYieldUsd, totalEthYieldEth := decimal.Zero, decimal.Zero
	exposedYieldUsd := decimal.Zero
	weightedEthApy := decimal.Zero
	for _, a := range cfg.EthAllocations {
		if !a.Selected {
			continue
		}
		apy, product, ok := catalog.ApyFor(cat, rates, a.ProductID)
		if !ok {
			diags = append(diags, unknownProduct(a.ProductID))
			continue
		}
		positionUsd := finmath.Pct(ethPositionUsd, a.WeightPercent)
		y := ethYield{
			product:  product,
			position: positionUsd,
			apy:      apy,
			usd:      finmath.Annualized(positionUsd, apy, years),
			eth:      decimal.Zero,
		}
		if product.YieldDenomination == core.DenominationETH {
			// Valued at the current price: positionEth × apy × years × price,
			// which is zero when there is no usable price.
			positionEth := finmath.Pct(ethSleeveEth, a.WeightPercent)
			y.eth = finmath.Annualized(positionEth, apy, years)
			if !cfg.EthPriceUsd.IsPositive() {
				y.usd = decimal.Zero
			}
			exposedYieldUsd = exposedYieldUsd.Add(y.usd)
		}
		ethYields = append(ethYields, y)
		totalEthYieldUsd = totalEthYieldUsd.Add(y.usd)
		totalEthYieldEth = totalEthYieldEth.Add(y.eth)
		weightedEthApy = weightedEthApy.Add(finmath.Pct(apy, a.WeightPercent))
	}

	// Stablecoin sleeve
	var stableYields []stableYield
	totalStableYieldUsd := decimal.Zero
	stableApyWeight, resolvedStableWeight := decimal.Zero, decimal.Zero
	for _, a := range cfg.StablecoinAllocations {
		if !a.Selected {
			continue
		}
		apy, product, ok := catalog.ApyFor(cat, rates, a.ProductID)
		if !ok {
			diags = append(diags, unknownProduct(a.ProductID))
			continue
		}
		positionUsd := finmath.Pct(stablePoolUsd, a.WeightPercent)
		y := stableYield{
			product:  product,
			position: positionUsd,
			apy:      apy,
			usd:      finmath.Annualized(positionUsd, apy, years),
		}
		stableYields = append(stableYields, y)
		totalStableYieldUsd = totalStableYieldUsd.Add(y.usd)
		stableApyWeight = stableApyWeight.Add(apy.Mul(a.WeightPercent))
		resolvedStableWeight = resolvedStableWeight.Add(a.WeightPercent)
	}

	if ethPositionUsd.IsPositive() && !ethWeight.Equal(finmath.Hundred) {
		diags = append(diags, weightsNotFull(core.DiagEthWeightsNot100, "eth", ethWeight))
	}
	if stablePoolUsd.IsPositive() && !stableWeight.Equal(finmath.Hundred) {
		diags = append(diags, weightsNotFull(core.DiagStablecoinWeightsNot100, "stablecoin", stableWeight))
	}

	lev, levDiags := leverage.NewEngine(cat).Evaluate(cfg, rates)
	diags = append(diags, levDiags...)

	hdg, hedgeDiags := hedge.NewEngine(cat).Evaluate(cfg, rates)
	diags = append(diags, hedgeDiags...)

	// Price scenario, ETH sleeve only
	projectedPrice := cfg.EthPriceUsd.Add(finmath.Pct(cfg.EthPriceUsd, scenario))
	principalImpact := finmath.Pct(ethPositionUsd, scenario)
	yieldImpact := finmath.Pct(exposedYieldUsd, scenario)
	totalImpact := principalImpact.Add(yieldImpact)

	hedgeNet := decimal.Zero
	if hdg.Active {
		hedgeNet = hdg.NetReturnUsd
	}

	totalReturn := finmath.Sum(totalEthYieldUsd, totalImpact, totalStableYieldUsd, lev.NetYieldUsd, hedgeNet)
	yieldOnly := finmath.Sum(totalEthYieldUsd, totalStableYieldUsd, lev.NetYieldUsd, hdg.FundingIncomeUsd)

	ethBalanceEth := ethSleeveEth

	res := core.SimulationResult{
		EthPositionUsd:            ethPositionUsd,
		StablecoinPoolUsd:         stablePoolUsd,
		TotalSelectedEthWeight:    ethWeight,
		TotalSelectedStableWeight: stableWeight,
		EthPositions:              position.EthPositions(cfg),
		StablecoinPositions:       position.StablecoinPositions(cfg),

		TotalEthYieldUsd:        totalEthYieldUsd,
		TotalEthYieldEth:        totalEthYieldEth,
		TotalStablecoinYieldUsd: totalStableYieldUsd,

		ProjectedEthPriceUsd:    projectedPrice,
		PrincipalPriceImpactUsd: principalImpact,
		YieldPriceImpactUsd:     yieldImpact,
		TotalEthPriceImpactUsd:  totalImpact,

		Leverage: lev,
		Hedge:    hdg,

		WeightedEthApyPercent:        weightedEthApy,
		WeightedStablecoinApyPercent: finmath.DivOrZero(stableApyWeight, resolvedStableWeight),
		YieldOnlyReturnUsd:           yieldOnly,
		PortfolioApyPercent:          PortfolioApy(yieldOnly, cfg.InvestmentAmount, years),

		TotalReturnUsd:     totalReturn,
		TotalReturnPercent: finmath.DivOrZero(totalReturn, cfg.InvestmentAmount).Mul(finmath.Hundred),
		ExpectedBalanceUsd: cfg.InvestmentAmount.Add(totalReturn),

		EthBalanceEth:        ethBalanceEth,
		FinalEthBalanceEth:   ethBalanceEth.Add(totalEthYieldEth),
		FinalEthBalanceUsd:   finmath.Sum(ethPositionUsd, totalEthYieldUsd, totalImpact),
		FinalUsdBalance:      finmath.Sum(stablePoolUsd, totalStableYieldUsd, lev.NetYieldUsd),
		BorrowedDeployedUsd:  lev.TotalBorrowedUsd,
		FinalHedgeBalanceUsd: position.HedgeDeductionUsd(cfg).Add(hedgeNet),

		Diagnostics: diags,
	}
	res.Breakdown = buildBreakdown(ethYields, stableYields, res)
	return res
}

// PortfolioApy annualizes a yield-only return over the investment. It is 0
// for a non-positive horizon or a zero investment.
func PortfolioApy(yieldOnlyUsd, investmentUsd, years decimal.Decimal) decimal.Decimal {
	if !years.IsPositive() || investmentUsd.IsZero() {
		return decimal.Zero
	}
	return yieldOnlyUsd.Div(investmentUsd).Div(years).Mul(finmath.Hundred)
}

func unknownProduct(id string) core.Diagnostic {
	return core.Diagnostic{
		Code:    core.DiagUnknownProduct,
		Subject: id,
		Message: "product not in catalog, allocation skipped",
		Err:     apperrors.ErrUnknownProduct,
	}
}

func weightsNotFull(code core.DiagnosticCode, sleeve string, total decimal.Decimal) core.Diagnostic {
	return core.Diagnostic{
		Code:    code,
		Subject: sleeve,
		Message: fmt.Sprintf("selected weights total %s%% (%s), computed as given", total, position.StatusOf(total)),
		Err:     apperrors.ErrWeightsNotFull,
	}
}
