package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"yield_sim/internal/core"
	apperrors "yield_sim/pkg/errors"
	apphttp "yield_sim/pkg/http"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultDefiLlamaURL is the DefiLlama yields API.
	DefaultDefiLlamaURL = "https://yields.llama.fi"

	defiLlamaChain       = "Ethereum"
	borrowRateProject    = "aave-v3"
	minBorrowPoolSizeUsd = 1_000_000
)

// llamaPool is one entry of GET /pools.
type llamaPool struct {
	Pool    string          `json:"pool"`
	Chain   string          `json:"chain"`
	Project string          `json:"project"`
	Symbol  string          `json:"symbol"`
	TvlUsd  decimal.Decimal `json:"tvlUsd"`
	Apy     decimal.Decimal `json:"apy"`
}

// llamaBorrowPool is one entry of GET /poolsBorrow.
type llamaBorrowPool struct {
	Pool           string              `json:"pool"`
	Chain          string              `json:"chain"`
	Project        string              `json:"project"`
	Symbol         string              `json:"symbol"`
	ApyBaseBorrow  decimal.NullDecimal `json:"apyBaseBorrow"`
	TotalBorrowUsd decimal.NullDecimal `json:"totalBorrowUsd"`
}

type llamaResponse[T any] struct {
	Status string `json:"status"`
	Data   []T    `json:"data"`
}

// DefiLlamaSource resolves product APYs and Aave borrow rates from DefiLlama.
type DefiLlamaSource struct {
	client       *apphttp.Client
	products     []core.Product
	borrowAssets []core.BorrowAsset
}

// NewDefiLlamaSource creates a source for the given catalog products. Products
// without a pool id or filter are not looked up.
func NewDefiLlamaSource(client *apphttp.Client, products []core.Product) *DefiLlamaSource {
	return &DefiLlamaSource{
		client:       client,
		products:     products,
		borrowAssets: core.BorrowAssets,
	}
}

func (s *DefiLlamaSource) Name() string { return "defillama" }

// Fetch downloads both pool lists and resolves every product it can.
func (s *DefiLlamaSource) Fetch(ctx context.Context) (core.RateSnapshot, error) {
	var pools []llamaPool
	var borrowPools []llamaBorrowPool

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pools, err = fetchLlama[llamaPool](gctx, s.client, "/pools")
		return err
	})
	g.Go(func() error {
		var err error
		borrowPools, err = fetchLlama[llamaBorrowPool](gctx, s.client, "/poolsBorrow")
		return err
	})
	if err := g.Wait(); err != nil {
		return core.RateSnapshot{}, err
	}

	return core.RateSnapshot{
		ApyByProductID:    ResolveProductApys(pools, s.products),
		BorrowRateByAsset: ResolveBorrowRates(borrowPools, s.borrowAssets),
	}, nil
}

func fetchLlama[T any](ctx context.Context, client *apphttp.Client, path string) ([]T, error) {
	body, err := client.Get(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("defillama %s: %w", path, err)
	}
	var resp llamaResponse[T]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("defillama %s: %w: %v", path, apperrors.ErrUpstreamMalformed, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("defillama %s: %w: empty data", path, apperrors.ErrUpstreamMalformed)
	}
	return resp.Data, nil
}

// ResolveProductApys maps catalog products to pool APYs, by pinned pool id or
// by filter. Products without a match are left out.
func ResolveProductApys(pools []llamaPool, products []core.Product) map[string]decimal.Decimal {
	byID := make(map[string]llamaPool, len(pools))
	for _, p := range pools {
		byID[p.Pool] = p
	}

	out := make(map[string]decimal.Decimal)
	for _, product := range products {
		switch {
		case product.PoolID != "":
			if p, ok := byID[product.PoolID]; ok {
				out[product.ID] = p.Apy
			}
		case product.PoolFilter != nil:
			if p, ok := findPoolByFilter(pools, *product.PoolFilter); ok {
				out[product.ID] = p.Apy
			}
		}
	}
	return out
}

// findPoolByFilter picks among the Ethereum pools of a project and symbol: the
// highest APY when PickHighest is set, otherwise the deepest pool by TVL.
func findPoolByFilter(pools []llamaPool, f core.PoolFilter) (llamaPool, bool) {
	var best llamaPool
	found := false
	for _, p := range pools {
		if p.Chain != defiLlamaChain || p.Project != f.Project || !strings.EqualFold(p.Symbol, f.Symbol) {
			continue
		}
		if !found {
			best, found = p, true
			continue
		}
		if f.PickHighest {
			if p.Apy.GreaterThan(best.Apy) {
				best = p
			}
		} else if p.TvlUsd.GreaterThan(best.TvlUsd) {
			best = p
		}
	}
	return best, found
}

// ResolveBorrowRates finds the main Aave V3 Ethereum borrow market of each
// asset, ignoring markets with less than $1M borrowed.
func ResolveBorrowRates(pools []llamaBorrowPool, assets []core.BorrowAsset) map[string]decimal.Decimal {
	minSize := decimal.NewFromInt(minBorrowPoolSizeUsd)
	out := make(map[string]decimal.Decimal)
	for _, asset := range assets {
		for _, p := range pools {
			if p.Chain != defiLlamaChain || p.Project != borrowRateProject || !strings.EqualFold(p.Symbol, string(asset)) {
				continue
			}
			if !p.ApyBaseBorrow.Valid || !p.TotalBorrowUsd.Valid || !p.TotalBorrowUsd.Decimal.GreaterThan(minSize) {
				continue
			}
			out[string(asset)] = p.ApyBaseBorrow.Decimal
			break
		}
	}
	return out
}
