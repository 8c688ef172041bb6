package catalog

import (
	"yield_sim/internal/core"

	"github.com/shopspring/decimal"
)

// ApyFor resolves a product APY: live snapshot value first, then the static
// fallback. ok is false only when the product is not in the catalog.
func ApyFor(cat core.ICatalog, rates core.RateSnapshot, productID string) (decimal.Decimal, core.Product, bool) {
	p, ok := cat.GetProduct(productID)
	if !ok {
		return decimal.Zero, core.Product{}, false
	}
	if v, live := rates.Apy(productID); live {
		return v, p, true
	}
	return p.FallbackApyPercent, p, true
}

// BorrowRateFor resolves a borrow rate: live snapshot value, then the catalog table.
func BorrowRateFor(cat core.ICatalog, rates core.RateSnapshot, asset core.BorrowAsset) decimal.Decimal {
	if v, ok := rates.BorrowRate(asset); ok {
		return v
	}
	return cat.GetFallbackBorrowRate(asset)
}

// FundingRateFor resolves the annualized funding rate.
func FundingRateFor(cat core.ICatalog, rates core.RateSnapshot) decimal.Decimal {
	if rates.FundingRatePercent.Valid {
		return rates.FundingRatePercent.Decimal
	}
	return cat.FallbackFundingRate()
}

// MaxHedgeLeverageFor resolves the perp venue leverage cap.
func MaxHedgeLeverageFor(cat core.ICatalog, rates core.RateSnapshot) decimal.Decimal {
	if rates.MaxHedgeLeverage.Valid {
		return rates.MaxHedgeLeverage.Decimal
	}
	return cat.FallbackMaxHedgeLeverage()
}

// Quote is a product with the APY a simulation would use for it.
type Quote struct {
	core.Product
	ApyPercent decimal.Decimal `json:"apyPercent"`
	Live       bool            `json:"live"`
}

// Quotes lists every product with its effective APY, ETH products first.
func Quotes(cat core.ICatalog, rates core.RateSnapshot) []Quote {
	products := append(cat.EthProducts(), cat.StablecoinProducts()...)
	out := make([]Quote, 0, len(products))
	for _, p := range products {
		q := Quote{Product: p, ApyPercent: p.FallbackApyPercent}
		if v, ok := rates.Apy(p.ID); ok {
			q.ApyPercent, q.Live = v, true
		}
		out = append(out, q)
	}
	return out
}

// BorrowQuotes resolves the borrow rate of every supported asset.
func BorrowQuotes(cat core.ICatalog, rates core.RateSnapshot) map[core.BorrowAsset]decimal.Decimal {
	out := make(map[core.BorrowAsset]decimal.Decimal, len(core.BorrowAssets))
	for _, a := range core.BorrowAssets {
		out[a] = BorrowRateFor(cat, rates, a)
	}
	return out
}
