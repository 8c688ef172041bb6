// Package core defines the domain types and interfaces shared by the simulator
package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ICatalog resolves static reference data. Lookups never fail; absent
// entries report ok=false or a fallback value.
type ICatalog interface {
	GetProduct(productID string) (Product, bool)
	GetCollateralParams(productID string) (CollateralParams, bool)
	GetFallbackBorrowRate(asset BorrowAsset) decimal.Decimal
	FallbackFundingRate() decimal.Decimal
	FallbackMaxHedgeLeverage() decimal.Decimal
	EthProducts() []Product
	StablecoinProducts() []Product
}

// RateStatus describes where the rates of a snapshot came from.
type RateStatus string

const (
	RateStatusLive     RateStatus = "live"
	RateStatusStale    RateStatus = "stale"
	RateStatusFallback RateStatus = "fallback"
)

// RateState is the freshness report of a rate provider.
type RateState struct {
	Status      RateStatus `json:"status"`
	LastUpdated time.Time  `json:"lastUpdated"`
	Error       string     `json:"error,omitempty"`
}

// IRateProvider hands out resolved rate snapshots. Implementations handle
// fetching, caching and staleness; callers only ever see the rates to use.
type IRateProvider interface {
	Snapshot(ctx context.Context) RateSnapshot
	State() RateState
}

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}
