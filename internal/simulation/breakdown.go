package simulation

import (
	"yield_sim/internal/core"

	"github.com/shopspring/decimal"
)

// buildBreakdown lays out the return by category in display order. The hedge
// category is present only while the hedge is active.
func buildBreakdown(eth []ethYield, stable []stableYield, res core.SimulationResult) []core.CategoryBreakdown {
	out := make([]core.CategoryBreakdown, 0, len(core.Categories))

	ethItems := make([]core.LineItem, 0, len(eth))
	for _, y := range eth {
		ethItems = append(ethItems, core.LineItem{
			Category:    core.CategoryEthYield,
			ProductID:   y.product.ID,
			Protocol:    y.product.ProtocolName,
			Label:       y.product.DisplayName,
			PositionUsd: y.position,
			ApyPercent:  y.apy,
			AmountUsd:   y.usd,
			AmountEth:   y.eth,
		})
	}
	out = append(out, core.CategoryBreakdown{Category: core.CategoryEthYield, TotalUsd: res.TotalEthYieldUsd, Items: ethItems})

	out = append(out, core.CategoryBreakdown{
		Category: core.CategoryEthPriceImpact,
		TotalUsd: res.TotalEthPriceImpactUsd,
		Items: []core.LineItem{
			amountItem(core.CategoryEthPriceImpact, "Principal", res.EthPositionUsd, res.PrincipalPriceImpactUsd),
			amountItem(core.CategoryEthPriceImpact, "Yield", res.TotalEthYieldUsd, res.YieldPriceImpactUsd),
		},
	})

	stableItems := make([]core.LineItem, 0, len(stable))
	for _, y := range stable {
		stableItems = append(stableItems, core.LineItem{
			Category:    core.CategoryStablecoinYield,
			ProductID:   y.product.ID,
			Protocol:    y.product.ProtocolName,
			Label:       y.product.DisplayName,
			PositionUsd: y.position,
			ApyPercent:  y.apy,
			AmountUsd:   y.usd,
			AmountEth:   decimal.Zero,
		})
	}
	out = append(out, core.CategoryBreakdown{Category: core.CategoryStablecoinYield, TotalUsd: res.TotalStablecoinYieldUsd, Items: stableItems})

	levItems := make([]core.LineItem, 0, len(res.Leverage.Positions))
	for _, p := range res.Leverage.Positions {
		levItems = append(levItems, core.LineItem{
			Category:    core.CategoryLeverageNet,
			ProductID:   p.ProductID,
			Label:       p.ProductID + " -> " + p.DeployTargetID + " (" + string(p.BorrowAsset) + ")",
			PositionUsd: p.BorrowedUsd,
			ApyPercent:  p.DeployApyPercent.Sub(p.BorrowRatePercent),
			AmountUsd:   p.NetYieldUsd,
			AmountEth:   decimal.Zero,
		})
	}
	out = append(out, core.CategoryBreakdown{Category: core.CategoryLeverageNet, TotalUsd: res.Leverage.NetYieldUsd, Items: levItems})

	if h := res.Hedge; h.Active {
		funding := amountItem(core.CategoryHedgeNet, "Funding income", h.ShortPositionSizeUsd, h.FundingIncomeUsd)
		funding.ApyPercent = h.FundingRatePercent
		out = append(out, core.CategoryBreakdown{
			Category: core.CategoryHedgeNet,
			TotalUsd: h.NetReturnUsd,
			Items: []core.LineItem{
				funding,
				amountItem(core.CategoryHedgeNet, "Price P&L", h.ShortPositionSizeUsd, h.PricePnlUsd),
			},
		})
	}

	return out
}

func amountItem(c core.Category, label string, positionUsd, amountUsd decimal.Decimal) core.LineItem {
	return core.LineItem{
		Category:    c,
		Label:       label,
		PositionUsd: positionUsd,
		ApyPercent:  decimal.Zero,
		AmountUsd:   amountUsd,
		AmountEth:   decimal.Zero,
	}
}
