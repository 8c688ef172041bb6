// Package position sizes the capital of a portfolio: how much sits in the ETH
// sleeve, the stablecoin sleeve, the hedge and each selected product.
package position

import (
	"yield_sim/internal/core"
	"yield_sim/pkg/finmath"

	"github.com/shopspring/decimal"
)

// AllocationStatus classifies the sum of selected weights of a sleeve.
type AllocationStatus string

const (
	AllocationUnder AllocationStatus = "under"
	AllocationFull  AllocationStatus = "full"
	AllocationOver  AllocationStatus = "over"
)

// StatusOf classifies a total selected weight against 100%.
func StatusOf(totalWeight decimal.Decimal) AllocationStatus {
	switch totalWeight.Cmp(finmath.Hundred) {
	case -1:
		return AllocationUnder
	case 1:
		return AllocationOver
	default:
		return AllocationFull
	}
}

// EthPositionUsd is the USD amount routed to ETH products.
func EthPositionUsd(cfg core.PortfolioConfig) decimal.Decimal {
	return finmath.Pct(cfg.InvestmentAmount, cfg.EthRatio)
}

// StableTotalBeforeHedge is the non-ETH sleeve before the hedge carve-out.
func StableTotalBeforeHedge(cfg core.PortfolioConfig) decimal.Decimal {
	return finmath.Pct(cfg.InvestmentAmount, finmath.Hundred.Sub(cfg.EthRatio))
}

// HedgeDeductionUsd is the capital carved out of the non-ETH sleeve for the
// hedge. It is zero when the hedge is disabled.
func HedgeDeductionUsd(cfg core.PortfolioConfig) decimal.Decimal {
	if !cfg.Hedge.Enabled {
		return decimal.Zero
	}
	return finmath.Pct(StableTotalBeforeHedge(cfg), cfg.Hedge.AllocationPercent)
}

// StablecoinPoolUsd is the USD amount routed to stablecoin products.
func StablecoinPoolUsd(cfg core.PortfolioConfig) decimal.Decimal {
	return StableTotalBeforeHedge(cfg).Sub(HedgeDeductionUsd(cfg))
}

// UsdToEth converts at the given price. A non-positive price yields zero.
func UsdToEth(usd, ethPriceUsd decimal.Decimal) decimal.Decimal {
	if !ethPriceUsd.IsPositive() {
		return decimal.Zero
	}
	return usd.Div(ethPriceUsd)
}

// EthSleeveEth is the ETH sleeve in ETH at the current price. Allocations take
// their share of this amount so that sizing stays linear in the weight.
func EthSleeveEth(cfg core.PortfolioConfig) decimal.Decimal {
	return UsdToEth(EthPositionUsd(cfg), cfg.EthPriceUsd)
}

// EthAllocationValueEth is the ETH size of one selected ETH allocation.
func EthAllocationValueEth(cfg core.PortfolioConfig, a core.EthAllocation) decimal.Decimal {
	if !a.Selected {
		return decimal.Zero
	}
	return finmath.Pct(EthSleeveEth(cfg), a.WeightPercent)
}

// EthAllocationValueUsd is the USD size of one ETH allocation. Unselected
// allocations are zero whatever their stored weight.
func EthAllocationValueUsd(cfg core.PortfolioConfig, a core.EthAllocation) decimal.Decimal {
	if !a.Selected {
		return decimal.Zero
	}
	return finmath.Pct(EthPositionUsd(cfg), a.WeightPercent)
}

// EthPositions sizes every selected ETH allocation, in input order.
func EthPositions(cfg core.PortfolioConfig) []core.EthPosition {
	ethTotal := EthPositionUsd(cfg)
	sleeveEth := EthSleeveEth(cfg)
	var out []core.EthPosition
	for _, a := range cfg.EthAllocations {
		if !a.Selected {
			continue
		}
		out = append(out, core.EthPosition{
			ProductID:        a.ProductID,
			WeightPercent:    a.WeightPercent,
			PositionValueUsd: finmath.Pct(ethTotal, a.WeightPercent),
			PositionValueEth: finmath.Pct(sleeveEth, a.WeightPercent),
		})
	}
	return out
}

// StablecoinPositions sizes every selected stablecoin allocation, in input order.
func StablecoinPositions(cfg core.PortfolioConfig) []core.StablecoinPosition {
	pool := StablecoinPoolUsd(cfg)
	var out []core.StablecoinPosition
	for _, a := range cfg.StablecoinAllocations {
		if !a.Selected {
			continue
		}
		out = append(out, core.StablecoinPosition{
			ProductID:        a.ProductID,
			WeightPercent:    a.WeightPercent,
			PositionValueUsd: finmath.Pct(pool, a.WeightPercent),
		})
	}
	return out
}

// CollateralValueUsd is the part of an ETH allocation pledged as collateral.
// It is zero when no borrow loop is active.
func CollateralValueUsd(cfg core.PortfolioConfig, a core.EthAllocation) decimal.Decimal {
	if !a.Leveraged() {
		return decimal.Zero
	}
	return finmath.Pct(EthAllocationValueUsd(cfg, a), a.Leverage.CollateralPercent)
}

// BorrowedUsd is the amount borrowed against one ETH allocation.
func BorrowedUsd(cfg core.PortfolioConfig, a core.EthAllocation) decimal.Decimal {
	if !a.Leveraged() {
		return decimal.Zero
	}
	return finmath.Pct(CollateralValueUsd(cfg, a), a.Leverage.LtvPercent)
}

// TotalBorrowedUsd sums the borrowed amount over every leveraged allocation.
func TotalBorrowedUsd(cfg core.PortfolioConfig) decimal.Decimal {
	total := decimal.Zero
	for _, a := range cfg.EthAllocations {
		total = total.Add(BorrowedUsd(cfg, a))
	}
	return total
}

// TotalSelectedEthWeight sums the weights of selected ETH allocations.
func TotalSelectedEthWeight(cfg core.PortfolioConfig) decimal.Decimal {
	total := decimal.Zero
	for _, a := range cfg.EthAllocations {
		if a.Selected {
			total = total.Add(a.WeightPercent)
		}
	}
	return total
}

// TotalSelectedStablecoinWeight sums the weights of selected stablecoin allocations.
func TotalSelectedStablecoinWeight(cfg core.PortfolioConfig) decimal.Decimal {
	total := decimal.Zero
	for _, a := range cfg.StablecoinAllocations {
		if a.Selected {
			total = total.Add(a.WeightPercent)
		}
	}
	return total
}
