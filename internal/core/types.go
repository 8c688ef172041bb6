package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// YieldDenomination is the unit a product pays its yield in.
type YieldDenomination string

const (
	DenominationETH YieldDenomination = "ETH"
	DenominationUSD YieldDenomination = "USD"
)

// BorrowAsset is a stablecoin that can be borrowed against ETH collateral.
type BorrowAsset string

const (
	BorrowUSDC BorrowAsset = "USDC"
	BorrowUSDT BorrowAsset = "USDT"
	BorrowUSDS BorrowAsset = "USDS"
)

// BorrowAssets lists the supported borrow assets in display order.
var BorrowAssets = []BorrowAsset{BorrowUSDC, BorrowUSDT, BorrowUSDS}

// Valid reports whether the asset is one of the supported borrow assets.
func (a BorrowAsset) Valid() bool {
	for _, b := range BorrowAssets {
		if a == b {
			return true
		}
	}
	return false
}

// RiskLevel is the coarse risk label shown next to stablecoin products.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
)

// DefaultFundAllocationPercent is the share of hedge capital posted as margin
// when a configuration does not say otherwise.
var DefaultFundAllocationPercent = decimal.NewFromInt(80)

// PortfolioConfig is the root input of a simulation.
type PortfolioConfig struct {
	InvestmentAmount           decimal.Decimal        `json:"investmentAmount" yaml:"investment_amount"`
	InvestmentPeriodYears      decimal.Decimal        `json:"investmentPeriodYears" yaml:"investment_period_years"`
	EthRatio                   decimal.Decimal        `json:"ethRatio" yaml:"eth_ratio"`
	EthPriceUsd                decimal.Decimal        `json:"ethPriceUsd" yaml:"eth_price_usd"`
	PriceChangeScenarioPercent decimal.Decimal        `json:"priceChangeScenarioPercent" yaml:"price_change_scenario_percent"`
	Hedge                      HedgeConfig            `json:"hedgeConfig" yaml:"hedge"`
	EthAllocations             []EthAllocation        `json:"ethAllocations" yaml:"eth_allocations"`
	StablecoinAllocations      []StablecoinAllocation `json:"stablecoinAllocations" yaml:"stablecoin_allocations"`
}

// WithScenario returns a copy of the config with a different price scenario.
func (c PortfolioConfig) WithScenario(percent decimal.Decimal) PortfolioConfig {
	c.PriceChangeScenarioPercent = percent
	return c
}

// EthAllocation is one row per ETH yield product.
type EthAllocation struct {
	ProductID     string          `json:"productId" yaml:"product_id"`
	Selected      bool            `json:"selected" yaml:"selected"`
	WeightPercent decimal.Decimal `json:"weightPercent" yaml:"weight_percent"`
	Leverage      *LeverageConfig `json:"leverage,omitempty" yaml:"leverage,omitempty"`
}

// Leveraged reports whether a borrow loop is active on this allocation.
func (a EthAllocation) Leveraged() bool {
	return a.Leverage != nil && a.Leverage.Enabled
}

// LeverageConfig describes a borrow-then-redeploy loop against an ETH position.
type LeverageConfig struct {
	Enabled           bool            `json:"enabled" yaml:"enabled"`
	CollateralPercent decimal.Decimal `json:"collateralPercent" yaml:"collateral_percent"`
	LtvPercent        decimal.Decimal `json:"ltvPercent" yaml:"ltv_percent"`
	BorrowAsset       BorrowAsset     `json:"borrowAsset" yaml:"borrow_asset"`
	DeployTargetID    string          `json:"deployTargetId" yaml:"deploy_target_id"`
}

// StablecoinAllocation is one row per stablecoin yield product.
type StablecoinAllocation struct {
	ProductID     string          `json:"productId" yaml:"product_id"`
	Selected      bool            `json:"selected" yaml:"selected"`
	WeightPercent decimal.Decimal `json:"weightPercent" yaml:"weight_percent"`
}

// HedgeConfig describes the perpetual short hedge.
type HedgeConfig struct {
	Enabled               bool            `json:"enabled" yaml:"enabled"`
	AllocationPercent     decimal.Decimal `json:"allocationPercent" yaml:"allocation_percent"`
	FundAllocationPercent decimal.Decimal `json:"fundAllocationPercent" yaml:"fund_allocation_percent"`
	LeverageMultiplier    decimal.Decimal `json:"leverageMultiplier" yaml:"leverage_multiplier"`
}

// Active reports whether the hedge takes part in the return math at all.
func (h HedgeConfig) Active() bool {
	return h.Enabled && h.AllocationPercent.IsPositive()
}

// PoolFilter locates a DefiLlama pool by attributes when no pool id is pinned.
type PoolFilter struct {
	Project     string `json:"project" yaml:"project"`
	Symbol      string `json:"symbol" yaml:"symbol"`
	PickHighest bool   `json:"pickHighest" yaml:"pick_highest"`
}

// Product is an immutable catalog entry.
type Product struct {
	ID                   string            `json:"id" yaml:"id"`
	ProtocolName         string            `json:"protocolName" yaml:"protocol_name"`
	DisplayName          string            `json:"displayName" yaml:"display_name"`
	FallbackApyPercent   decimal.Decimal   `json:"fallbackApyPercent" yaml:"fallback_apy_percent"`
	YieldDenomination    YieldDenomination `json:"yieldDenomination" yaml:"yield_denomination"`
	IsCollateralEligible bool              `json:"isCollateralEligible" yaml:"is_collateral_eligible"`
	Risk                 RiskLevel         `json:"risk,omitempty" yaml:"risk,omitempty"`
	PoolID               string            `json:"poolId,omitempty" yaml:"pool_id,omitempty"`
	PoolFilter           *PoolFilter       `json:"poolFilter,omitempty" yaml:"pool_filter,omitempty"`
}

// CollateralParams are the lending market risk parameters of a collateral.
// LiquidationThresholdPercent is always above MaxLtvPercent.
type CollateralParams struct {
	MaxLtvPercent               decimal.Decimal `json:"maxLtvPercent" yaml:"max_ltv_percent"`
	LiquidationThresholdPercent decimal.Decimal `json:"liquidationThresholdPercent" yaml:"liquidation_threshold_percent"`
}

// RateSnapshot is the resolved set of live rates handed to the engine.
// Missing entries fall back to catalog defaults.
type RateSnapshot struct {
	ApyByProductID     map[string]decimal.Decimal `json:"apyByProductId"`
	BorrowRateByAsset  map[string]decimal.Decimal `json:"borrowRateByAsset"`
	FundingRatePercent decimal.NullDecimal        `json:"fundingRatePercent"`
	MaxHedgeLeverage   decimal.NullDecimal        `json:"maxHedgeLeverage"`
}

// Apy returns the live APY for a product if the snapshot carries one.
func (s RateSnapshot) Apy(productID string) (decimal.Decimal, bool) {
	v, ok := s.ApyByProductID[productID]
	return v, ok
}

// BorrowRate returns the live borrow rate for an asset if the snapshot carries one.
func (s RateSnapshot) BorrowRate(asset BorrowAsset) (decimal.Decimal, bool) {
	v, ok := s.BorrowRateByAsset[string(asset)]
	return v, ok
}

// RateRecord is a snapshot as fetched from one upstream source.
type RateRecord struct {
	Source    string       `json:"source"`
	Snapshot  RateSnapshot `json:"snapshot"`
	FetchedAt time.Time    `json:"fetchedAt"`
}
