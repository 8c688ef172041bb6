package rates

import (
	"context"
	"encoding/json"
	"fmt"

	"yield_sim/internal/core"
	apperrors "yield_sim/pkg/errors"
	apphttp "yield_sim/pkg/http"

	"github.com/shopspring/decimal"
)

const (
	// DefaultHyperliquidURL is the Hyperliquid public API.
	DefaultHyperliquidURL = "https://api.hyperliquid.xyz"

	hyperliquidAsset = "ETH"
)

// hoursPerYear annualizes an hourly funding rate.
var hoursPerYear = decimal.NewFromInt(24 * 365)

type hlMeta struct {
	Universe []struct {
		Name        string `json:"name"`
		MaxLeverage int64  `json:"maxLeverage"`
	} `json:"universe"`
}

type hlAssetCtx struct {
	Funding decimal.Decimal `json:"funding"`
	MarkPx  decimal.Decimal `json:"markPx"`
}

// HyperliquidSource reads the ETH perpetual funding rate and leverage cap.
type HyperliquidSource struct {
	client *apphttp.Client
	asset  string
}

func NewHyperliquidSource(client *apphttp.Client) *HyperliquidSource {
	return &HyperliquidSource{client: client, asset: hyperliquidAsset}
}

func (s *HyperliquidSource) Name() string { return "hyperliquid" }

// Fetch posts a metaAndAssetCtxs request. The response is a two element array
// of the perp universe and the per-asset contexts, aligned by index.
func (s *HyperliquidSource) Fetch(ctx context.Context) (core.RateSnapshot, error) {
	body, err := s.client.Post(ctx, "/info", map[string]string{"type": "metaAndAssetCtxs"})
	if err != nil {
		return core.RateSnapshot{}, fmt.Errorf("hyperliquid info: %w", err)
	}

	funding, maxLeverage, err := parseMetaAndAssetCtxs(body, s.asset)
	if err != nil {
		return core.RateSnapshot{}, fmt.Errorf("hyperliquid info: %w", err)
	}
	return core.RateSnapshot{
		FundingRatePercent: decimal.NewNullDecimal(AnnualizeHourlyFunding(funding)),
		MaxHedgeLeverage:   decimal.NewNullDecimal(decimal.NewFromInt(maxLeverage)),
	}, nil
}

func parseMetaAndAssetCtxs(body []byte, asset string) (decimal.Decimal, int64, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(body, &parts); err != nil {
		return decimal.Zero, 0, fmt.Errorf("%w: %v", apperrors.ErrUpstreamMalformed, err)
	}
	if len(parts) != 2 {
		return decimal.Zero, 0, fmt.Errorf("%w: expected [meta, assetCtxs], got %d parts", apperrors.ErrUpstreamMalformed, len(parts))
	}

	var meta hlMeta
	if err := json.Unmarshal(parts[0], &meta); err != nil {
		return decimal.Zero, 0, fmt.Errorf("%w: meta: %v", apperrors.ErrUpstreamMalformed, err)
	}
	var ctxs []hlAssetCtx
	if err := json.Unmarshal(parts[1], &ctxs); err != nil {
		return decimal.Zero, 0, fmt.Errorf("%w: asset contexts: %v", apperrors.ErrUpstreamMalformed, err)
	}

	for i, u := range meta.Universe {
		if u.Name != asset {
			continue
		}
		if i >= len(ctxs) {
			return decimal.Zero, 0, fmt.Errorf("%w: no context for %s", apperrors.ErrUpstreamMalformed, asset)
		}
		return ctxs[i].Funding, u.MaxLeverage, nil
	}
	return decimal.Zero, 0, fmt.Errorf("%w: %s not listed", apperrors.ErrUpstreamMalformed, asset)
}

// AnnualizeHourlyFunding converts an hourly funding fraction into an annual
// percentage: hourly × 24 × 365 × 100.
func AnnualizeHourlyFunding(hourly decimal.Decimal) decimal.Decimal {
	return hourly.Mul(hoursPerYear).Shift(2)
}
