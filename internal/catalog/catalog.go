// Package catalog holds the static reference data of the simulator: products,
// collateral risk parameters and fallback borrow/funding rates.
package catalog

import (
	"yield_sim/internal/core"

	"github.com/shopspring/decimal"
)

var (
	// DefaultBorrowRatePercent applies to a borrow asset with no table entry.
	DefaultBorrowRatePercent = decimal.NewFromFloat(5.5)
	// DefaultLiquidationThresholdPercent applies when a leveraged product has
	// no collateral parameters.
	DefaultLiquidationThresholdPercent = decimal.NewFromInt(80)
	// FallbackFundingRatePercent is the annualized ETH perp funding rate used
	// when no live rate is known (0.00125% hourly).
	FallbackFundingRatePercent = decimal.NewFromFloat(10.95)
	// FallbackMaxHedgeLeverage is the perp venue leverage cap used when no
	// live value is known.
	FallbackMaxHedgeLeverage = decimal.NewFromInt(25)
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// DefaultEthProducts are the built-in ETH exposure products.
func DefaultEthProducts() []core.Product {
	return []core.Product{
		{ID: "lido-steth", ProtocolName: "Lido", DisplayName: "stETH", FallbackApyPercent: d(2.65), YieldDenomination: core.DenominationETH, IsCollateralEligible: true, PoolID: "747c1d2a-c668-4682-b9f9-296708a3dd90"},
		{ID: "etherfi-weeth", ProtocolName: "Ether.fi", DisplayName: "weETH", FallbackApyPercent: d(3.17), YieldDenomination: core.DenominationETH, IsCollateralEligible: true, PoolID: "46bd2bdf-6d92-4066-b482-e885ee172264"},
		{ID: "pendle-pt-wsteth", ProtocolName: "Pendle", DisplayName: "PT-wstETH", FallbackApyPercent: d(2.9), YieldDenomination: core.DenominationETH, PoolFilter: &core.PoolFilter{Project: "pendle", Symbol: "WSTETH"}},
		{ID: "pendle-pt-weeth", ProtocolName: "Pendle", DisplayName: "PT-weETH", FallbackApyPercent: d(2.7), YieldDenomination: core.DenominationETH, PoolFilter: &core.PoolFilter{Project: "pendle", Symbol: "WEETH"}},
	}
}

// DefaultStablecoinProducts are the built-in USD stablecoin products.
func DefaultStablecoinProducts() []core.Product {
	return []core.Product{
		{ID: "aave-usdc", ProtocolName: "Aave V3", DisplayName: "USDC", FallbackApyPercent: d(3.4), YieldDenomination: core.DenominationUSD, Risk: core.RiskLow, PoolID: "aa70268e-4b52-42bf-a116-608b370f9501"},
		{ID: "aave-usdt", ProtocolName: "Aave V3", DisplayName: "USDT", FallbackApyPercent: d(4.3), YieldDenomination: core.DenominationUSD, Risk: core.RiskLow, PoolID: "f981a304-bb6c-45b8-b0c5-fd2f515ad23a"},
		{ID: "morpho-steakusdc", ProtocolName: "Morpho", DisplayName: "steakUSDC", FallbackApyPercent: d(4.0), YieldDenomination: core.DenominationUSD, Risk: core.RiskLow, PoolFilter: &core.PoolFilter{Project: "morpho-v1", Symbol: "STEAKUSDC", PickHighest: true}},
		{ID: "morpho-gtusdc", ProtocolName: "Morpho", DisplayName: "GTUSDC", FallbackApyPercent: d(4.4), YieldDenomination: core.DenominationUSD, Risk: core.RiskLow, PoolFilter: &core.PoolFilter{Project: "morpho-v1", Symbol: "GTUSDC", PickHighest: true}},
		{ID: "morpho-bbqusdc", ProtocolName: "Morpho", DisplayName: "BBQUSDC", FallbackApyPercent: d(7.2), YieldDenomination: core.DenominationUSD, Risk: core.RiskMedium, PoolFilter: &core.PoolFilter{Project: "morpho-v1", Symbol: "BBQUSDC", PickHighest: true}},
		{ID: "morpho-steakusdt", ProtocolName: "Morpho", DisplayName: "steakUSDT", FallbackApyPercent: d(6.2), YieldDenomination: core.DenominationUSD, Risk: core.RiskLow, PoolFilter: &core.PoolFilter{Project: "morpho-v1", Symbol: "STEAKUSDT", PickHighest: true}},
		{ID: "ethena-susde", ProtocolName: "Ethena", DisplayName: "sUSDe", FallbackApyPercent: d(4.9), YieldDenomination: core.DenominationUSD, Risk: core.RiskMedium, PoolID: "66985a81-9c51-46ca-9977-42b4fe7bc6df"},
		{ID: "maple-usdc", ProtocolName: "Maple", DisplayName: "Syrup USDC", FallbackApyPercent: d(6.8), YieldDenomination: core.DenominationUSD, Risk: core.RiskMedium, PoolID: "43641cf5-a92e-416b-bce9-27113d3c0db6"},
		{ID: "maple-usdt", ProtocolName: "Maple", DisplayName: "Syrup USDT", FallbackApyPercent: d(6.2), YieldDenomination: core.DenominationUSD, Risk: core.RiskMedium, PoolID: "8edfdf02-cdbb-43f7-bca6-954e5fe56813"},
		{ID: "pendle-pt-susde", ProtocolName: "Pendle", DisplayName: "PT-sUSDe", FallbackApyPercent: d(5.9), YieldDenomination: core.DenominationUSD, Risk: core.RiskMedium, PoolFilter: &core.PoolFilter{Project: "pendle", Symbol: "SUSDE"}},
		{ID: "pendle-pt-syrupusdc", ProtocolName: "Pendle", DisplayName: "PT-syrupUSDC", FallbackApyPercent: d(6.5), YieldDenomination: core.DenominationUSD, Risk: core.RiskMedium, PoolFilter: &core.PoolFilter{Project: "pendle", Symbol: "SYRUPUSDC"}},
	}
}

// DefaultCollateralParams are the Aave V3 parameters of collateral-eligible products.
func DefaultCollateralParams() map[string]core.CollateralParams {
	return map[string]core.CollateralParams{
		"lido-steth":    {MaxLtvPercent: d(80), LiquidationThresholdPercent: d(82.5)},
		"etherfi-weeth": {MaxLtvPercent: d(75), LiquidationThresholdPercent: d(78)},
	}
}

// DefaultBorrowRates are the Aave V3 fallback borrow rates per asset.
func DefaultBorrowRates() map[core.BorrowAsset]decimal.Decimal {
	return map[core.BorrowAsset]decimal.Decimal{
		core.BorrowUSDC: d(5.5),
		core.BorrowUSDT: d(6.0),
		core.BorrowUSDS: d(4.5),
	}
}

// Catalog is an immutable set of reference data. It is safe for concurrent use.
type Catalog struct {
	eth         []core.Product
	stable      []core.Product
	byID        map[string]core.Product
	collateral  map[string]core.CollateralParams
	borrowRates map[core.BorrowAsset]decimal.Decimal
}

// New returns the built-in catalog.
func New() *Catalog {
	return NewCatalog(DefaultEthProducts(), DefaultStablecoinProducts(), DefaultCollateralParams(), DefaultBorrowRates())
}

// NewCatalog builds a catalog from explicit tables. Later products with a
// duplicate id replace earlier ones in lookups.
func NewCatalog(eth, stable []core.Product, collateral map[string]core.CollateralParams, borrowRates map[core.BorrowAsset]decimal.Decimal) *Catalog {
	c := &Catalog{
		eth:         append([]core.Product(nil), eth...),
		stable:      append([]core.Product(nil), stable...),
		byID:        make(map[string]core.Product, len(eth)+len(stable)),
		collateral:  make(map[string]core.CollateralParams, len(collateral)),
		borrowRates: make(map[core.BorrowAsset]decimal.Decimal, len(borrowRates)),
	}
	for _, p := range c.eth {
		c.byID[p.ID] = p
	}
	for _, p := range c.stable {
		c.byID[p.ID] = p
	}
	for k, v := range collateral {
		c.collateral[k] = v
	}
	for k, v := range borrowRates {
		c.borrowRates[k] = v
	}
	return c
}

// WithOverrides returns a copy of the catalog whose fallback APYs are replaced
// by the given values. Unknown ids are ignored.
func (c *Catalog) WithOverrides(apys map[string]decimal.Decimal) *Catalog {
	apply := func(ps []core.Product) []core.Product {
		out := make([]core.Product, len(ps))
		for i, p := range ps {
			if v, ok := apys[p.ID]; ok {
				p.FallbackApyPercent = v
			}
			out[i] = p
		}
		return out
	}
	return NewCatalog(apply(c.eth), apply(c.stable), c.collateral, c.borrowRates)
}

// GetProduct looks up a product by id.
func (c *Catalog) GetProduct(productID string) (core.Product, bool) {
	p, ok := c.byID[productID]
	return p, ok
}

// GetCollateralParams looks up the collateral parameters of a product.
func (c *Catalog) GetCollateralParams(productID string) (core.CollateralParams, bool) {
	p, ok := c.collateral[productID]
	return p, ok
}

// GetFallbackBorrowRate returns the static borrow rate of an asset.
func (c *Catalog) GetFallbackBorrowRate(asset core.BorrowAsset) decimal.Decimal {
	if r, ok := c.borrowRates[asset]; ok {
		return r
	}
	return DefaultBorrowRatePercent
}

func (c *Catalog) FallbackFundingRate() decimal.Decimal      { return FallbackFundingRatePercent }
func (c *Catalog) FallbackMaxHedgeLeverage() decimal.Decimal { return FallbackMaxHedgeLeverage }

// EthProducts returns the ETH products in display order.
func (c *Catalog) EthProducts() []core.Product {
	return append([]core.Product(nil), c.eth...)
}

// StablecoinProducts returns the stablecoin products in display order.
func (c *Catalog) StablecoinProducts() []core.Product {
	return append([]core.Product(nil), c.stable...)
}

// Products returns every product, ETH first.
func (c *Catalog) Products() []core.Product {
	return append(c.EthProducts(), c.stable...)
}
