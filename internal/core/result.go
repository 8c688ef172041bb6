package core

import (
	"github.com/shopspring/decimal"
)

// Category groups the line items of a return breakdown.
type Category string

const (
	CategoryEthYield        Category = "eth_yield"
	CategoryEthPriceImpact  Category = "eth_price_impact"
	CategoryStablecoinYield Category = "stablecoin_yield"
	CategoryLeverageNet     Category = "leverage_net"
	CategoryHedgeNet        Category = "hedge_net"
)

// Categories is the display order of a breakdown.
var Categories = []Category{
	CategoryEthYield,
	CategoryEthPriceImpact,
	CategoryStablecoinYield,
	CategoryLeverageNet,
	CategoryHedgeNet,
}

// HealthStatus buckets a health factor for display.
type HealthStatus string

const (
	HealthNone    HealthStatus = "none" // nothing borrowed
	HealthSafe    HealthStatus = "safe"
	HealthCaution HealthStatus = "caution"
	HealthAtRisk  HealthStatus = "at_risk"
)

// DiagnosticCode identifies a non-fatal issue found while simulating.
type DiagnosticCode string

const (
	DiagUnknownProduct          DiagnosticCode = "unknown_product"
	DiagUnknownDeployTarget     DiagnosticCode = "unknown_deploy_target"
	DiagNotCollateralEligible   DiagnosticCode = "not_collateral_eligible"
	DiagLtvAboveMax             DiagnosticCode = "ltv_above_max"
	DiagHedgeLeverageAboveMax   DiagnosticCode = "hedge_leverage_above_max"
	DiagEthWeightsNot100        DiagnosticCode = "eth_weights_not_100"
	DiagStablecoinWeightsNot100 DiagnosticCode = "stablecoin_weights_not_100"
	DiagUnknownBorrowAsset      DiagnosticCode = "unknown_borrow_asset"
)

// Diagnostic is an issue the engine worked around. Diagnostics never stop a
// simulation.
type Diagnostic struct {
	Code    DiagnosticCode `json:"code"`
	Subject string         `json:"subject"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
}

func (d Diagnostic) Error() string {
	return string(d.Code) + " (" + d.Subject + "): " + d.Message
}

func (d Diagnostic) Unwrap() error {
	return d.Err
}

// EthPosition is the sized ETH sleeve position of one selected allocation.
type EthPosition struct {
	ProductID        string          `json:"productId"`
	WeightPercent    decimal.Decimal `json:"weightPercent"`
	PositionValueUsd decimal.Decimal `json:"positionValueUsd"`
	PositionValueEth decimal.Decimal `json:"positionValueEth"`
}

// StablecoinPosition is the sized stablecoin sleeve position of one selected allocation.
type StablecoinPosition struct {
	ProductID        string          `json:"productId"`
	WeightPercent    decimal.Decimal `json:"weightPercent"`
	PositionValueUsd decimal.Decimal `json:"positionValueUsd"`
}

// LeveragePosition is the borrow loop outcome of one leveraged ETH allocation.
type LeveragePosition struct {
	ProductID                   string              `json:"productId"`
	DeployTargetID              string              `json:"deployTargetId"`
	BorrowAsset                 BorrowAsset         `json:"borrowAsset"`
	PositionValueUsd            decimal.Decimal     `json:"positionValueUsd"`
	CollateralValueUsd          decimal.Decimal     `json:"collateralValueUsd"`
	BorrowedUsd                 decimal.Decimal     `json:"borrowedUsd"`
	LiquidationThresholdPercent decimal.Decimal     `json:"liquidationThresholdPercent"`
	BorrowRatePercent           decimal.Decimal     `json:"borrowRatePercent"`
	BorrowCostUsd               decimal.Decimal     `json:"borrowCostUsd"`
	DeployApyPercent            decimal.Decimal     `json:"deployApyPercent"`
	DeployYieldUsd              decimal.Decimal     `json:"deployYieldUsd"`
	NetYieldUsd                 decimal.Decimal     `json:"netYieldUsd"`
	NetBoostPercent             decimal.Decimal     `json:"netBoostPercent"`
	HealthFactor                decimal.NullDecimal `json:"healthFactor"`
	HealthStatus                HealthStatus        `json:"healthStatus"`
	LiquidationPriceUsd         decimal.NullDecimal `json:"liquidationPriceUsd"`
}

// LeverageSummary aggregates every active borrow loop.
type LeverageSummary struct {
	Positions                []LeveragePosition  `json:"positions"`
	TotalCollateralUsd       decimal.Decimal     `json:"totalCollateralUsd"`
	WeightedLiquidationValue decimal.Decimal     `json:"weightedLiquidationValueUsd"`
	TotalBorrowedUsd         decimal.Decimal     `json:"totalBorrowedUsd"`
	TotalDeployYieldUsd      decimal.Decimal     `json:"totalDeployYieldUsd"`
	TotalBorrowCostUsd       decimal.Decimal     `json:"totalBorrowCostUsd"`
	NetYieldUsd              decimal.Decimal     `json:"netYieldUsd"`
	HealthFactor             decimal.NullDecimal `json:"healthFactor"`
	HealthStatus             HealthStatus        `json:"healthStatus"`
	LiquidationPriceUsd      decimal.NullDecimal `json:"liquidationPriceUsd"`
	LiquidationDropPercent   decimal.NullDecimal `json:"liquidationDropPercent"`
}

// HedgeResult is the outcome of the perpetual short hedge.
type HedgeResult struct {
	Active               bool            `json:"active"`
	CapitalUsd           decimal.Decimal `json:"capitalUsd"`
	MarginDeployedUsd    decimal.Decimal `json:"marginDeployedUsd"`
	ShortPositionSizeUsd decimal.Decimal `json:"shortPositionSizeUsd"`
	CoveragePercent      decimal.Decimal `json:"coveragePercent"`
	FundingRatePercent   decimal.Decimal `json:"fundingRatePercent"`
	FundingIncomeUsd     decimal.Decimal `json:"fundingIncomeUsd"`
	PricePnlUsd          decimal.Decimal `json:"pricePnlUsd"`
	NetReturnUsd         decimal.Decimal `json:"netReturnUsd"`
}

// LineItem is one displayable row of the return breakdown.
type LineItem struct {
	Category    Category        `json:"category"`
	ProductID   string          `json:"productId,omitempty"`
	Protocol    string          `json:"protocol,omitempty"`
	Label       string          `json:"label"`
	PositionUsd decimal.Decimal `json:"positionUsd"`
	ApyPercent  decimal.Decimal `json:"apyPercent"`
	AmountUsd   decimal.Decimal `json:"amountUsd"`
	AmountEth   decimal.Decimal `json:"amountEth"`
}

// CategoryBreakdown holds the line items of one category and their sum.
type CategoryBreakdown struct {
	Category Category        `json:"category"`
	TotalUsd decimal.Decimal `json:"totalUsd"`
	Items    []LineItem      `json:"items"`
}

// SimulationResult is everything derived from one PortfolioConfig and RateSnapshot.
type SimulationResult struct {
	EthPositionUsd            decimal.Decimal `json:"ethPositionUsd"`
	StablecoinPoolUsd         decimal.Decimal `json:"stablecoinPoolUsd"`
	TotalSelectedEthWeight    decimal.Decimal `json:"totalSelectedEthWeight"`
	TotalSelectedStableWeight decimal.Decimal `json:"totalSelectedStablecoinWeight"`

	EthPositions        []EthPosition        `json:"ethPositions"`
	StablecoinPositions []StablecoinPosition `json:"stablecoinPositions"`

	TotalEthYieldUsd        decimal.Decimal `json:"totalEthYieldUsd"`
	TotalEthYieldEth        decimal.Decimal `json:"totalEthYieldEth"`
	TotalStablecoinYieldUsd decimal.Decimal `json:"totalStablecoinYieldUsd"`

	ProjectedEthPriceUsd    decimal.Decimal `json:"projectedEthPriceUsd"`
	PrincipalPriceImpactUsd decimal.Decimal `json:"principalPriceImpactUsd"`
	YieldPriceImpactUsd     decimal.Decimal `json:"yieldPriceImpactUsd"`
	TotalEthPriceImpactUsd  decimal.Decimal `json:"totalEthPriceImpactUsd"`

	Leverage LeverageSummary `json:"leverage"`
	Hedge    HedgeResult     `json:"hedge"`

	WeightedEthApyPercent        decimal.Decimal `json:"weightedEthApyPercent"`
	WeightedStablecoinApyPercent decimal.Decimal `json:"weightedStablecoinApyPercent"`
	YieldOnlyReturnUsd           decimal.Decimal `json:"yieldOnlyReturnUsd"`
	PortfolioApyPercent          decimal.Decimal `json:"portfolioApyPercent"`

	TotalReturnUsd     decimal.Decimal `json:"totalReturnUsd"`
	TotalReturnPercent decimal.Decimal `json:"totalReturnPercent"`
	ExpectedBalanceUsd decimal.Decimal `json:"expectedBalanceUsd"`

	EthBalanceEth        decimal.Decimal `json:"ethBalanceEth"`
	FinalEthBalanceEth   decimal.Decimal `json:"finalEthBalanceEth"`
	FinalEthBalanceUsd   decimal.Decimal `json:"finalEthBalanceUsd"`
	FinalUsdBalance      decimal.Decimal `json:"finalUsdBalance"`
	BorrowedDeployedUsd  decimal.Decimal `json:"borrowedDeployedUsd"`
	FinalHedgeBalanceUsd decimal.Decimal `json:"finalHedgeBalanceUsd"`

	Breakdown   []CategoryBreakdown `json:"breakdown"`
	Diagnostics []Diagnostic        `json:"diagnostics,omitempty"`
}

// HealthFactor is a shortcut for the aggregate leverage health factor.
func (r SimulationResult) HealthFactor() decimal.NullDecimal {
	return r.Leverage.HealthFactor
}

// LiquidationPriceUsd is a shortcut for the aggregate liquidation price.
func (r SimulationResult) LiquidationPriceUsd() decimal.NullDecimal {
	return r.Leverage.LiquidationPriceUsd
}

// Category returns the breakdown of a category, if it is present.
func (r SimulationResult) Category(c Category) (CategoryBreakdown, bool) {
	for _, b := range r.Breakdown {
		if b.Category == c {
			return b, true
		}
	}
	return CategoryBreakdown{}, false
}
