package config

import (
	"fmt"
	"os"
	"strings"

	"yield_sim/internal/core"
	apperrors "yield_sim/pkg/errors"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var (
	zero    = decimal.Zero
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)

	// Price scenarios below -100% would mean a negative ETH price
	minScenarioPercent = decimal.NewFromInt(-100)
)

// LoadPortfolio reads a YAML portfolio file with environment variable expansion.
func LoadPortfolio(filename string) (core.PortfolioConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return core.PortfolioConfig{}, fmt.Errorf("failed to read portfolio file: %w", err)
	}
	return ParsePortfolio([]byte(expandEnvVars(string(data))))
}

// ParsePortfolio decodes and validates a YAML portfolio document.
func ParsePortfolio(data []byte) (core.PortfolioConfig, error) {
	var cfg core.PortfolioConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return core.PortfolioConfig{}, fmt.Errorf("failed to parse portfolio: %w", err)
	}
	if err := ValidatePortfolio(cfg); err != nil {
		return core.PortfolioConfig{}, err
	}
	return cfg, nil
}

// MarshalPortfolio encodes a portfolio as YAML.
func MarshalPortfolio(cfg core.PortfolioConfig) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode portfolio: %w", err)
	}
	return data, nil
}

// WritePortfolio writes a portfolio as YAML.
func WritePortfolio(filename string, cfg core.PortfolioConfig) error {
	data, err := MarshalPortfolio(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write portfolio file: %w", err)
	}
	return nil
}

// ValidatePortfolio rejects inputs that are not structurally valid: negative
// amounts and percentages outside their ranges. Economic checks such as LTV
// above the product maximum are left to the engine, which reports them as
// diagnostics.
func ValidatePortfolio(cfg core.PortfolioConfig) error {
	var errs []string
	add := func(field string, value interface{}, msg string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: msg}.Error())
	}

	if cfg.InvestmentAmount.LessThan(zero) {
		add("investment_amount", cfg.InvestmentAmount, "must not be negative")
	}
	if cfg.InvestmentPeriodYears.LessThan(zero) {
		add("investment_period_years", cfg.InvestmentPeriodYears, "must not be negative")
	}
	if !inPercentRange(cfg.EthRatio) {
		add("eth_ratio", cfg.EthRatio, "must be between 0 and 100")
	}
	if cfg.EthPriceUsd.LessThan(zero) {
		add("eth_price_usd", cfg.EthPriceUsd, "must not be negative")
	}
	if cfg.PriceChangeScenarioPercent.LessThan(minScenarioPercent) {
		add("price_change_scenario_percent", cfg.PriceChangeScenarioPercent, "must be at least -100")
	}

	for i, a := range cfg.EthAllocations {
		field := fmt.Sprintf("eth_allocations[%d]", i)
		if a.ProductID == "" {
			add(field+".product_id", a.ProductID, "product id is required")
		}
		if !inPercentRange(a.WeightPercent) {
			add(field+".weight_percent", a.WeightPercent, "must be between 0 and 100")
		}
		if a.Leverage == nil {
			continue
		}
		lev := a.Leverage
		if !inPercentRange(lev.CollateralPercent) {
			add(field+".leverage.collateral_percent", lev.CollateralPercent, "must be between 0 and 100")
		}
		if !inPercentRange(lev.LtvPercent) {
			add(field+".leverage.ltv_percent", lev.LtvPercent, "must be between 0 and 100")
		}
		if lev.Enabled && !lev.BorrowAsset.Valid() {
			add(field+".leverage.borrow_asset", lev.BorrowAsset, fmt.Sprintf("must be one of: %s", borrowAssetList()))
		}
		if lev.Enabled && lev.DeployTargetID == "" {
			add(field+".leverage.deploy_target_id", lev.DeployTargetID, "deploy target is required")
		}
	}

	for i, a := range cfg.StablecoinAllocations {
		field := fmt.Sprintf("stablecoin_allocations[%d]", i)
		if a.ProductID == "" {
			add(field+".product_id", a.ProductID, "product id is required")
		}
		if !inPercentRange(a.WeightPercent) {
			add(field+".weight_percent", a.WeightPercent, "must be between 0 and 100")
		}
	}

	h := cfg.Hedge
	if !inPercentRange(h.AllocationPercent) {
		add("hedge.allocation_percent", h.AllocationPercent, "must be between 0 and 100")
	}
	if !inPercentRange(h.FundAllocationPercent) {
		add("hedge.fund_allocation_percent", h.FundAllocationPercent, "must be between 0 and 100")
	}
	if h.Enabled && h.LeverageMultiplier.LessThan(one) {
		add("hedge.leverage_multiplier", h.LeverageMultiplier, "must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: portfolio validation failed:\n%s", apperrors.ErrInvalidConfig, strings.Join(errs, "\n"))
	}
	return nil
}

func inPercentRange(v decimal.Decimal) bool {
	return !v.LessThan(zero) && !v.GreaterThan(hundred)
}

func borrowAssetList() string {
	names := make([]string, 0, len(core.BorrowAssets))
	for _, a := range core.BorrowAssets {
		names = append(names, string(a))
	}
	return strings.Join(names, ", ")
}
