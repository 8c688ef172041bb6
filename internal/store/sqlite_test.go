package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"yield_sim/internal/core"
	apperrors "yield_sim/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, dbPath
}

func testPortfolioConfig() core.PortfolioConfig {
	return core.PortfolioConfig{
		InvestmentAmount:      decimal.NewFromInt(1_000_000),
		InvestmentPeriodYears: decimal.NewFromInt(1),
		EthRatio:              decimal.NewFromInt(40),
		EthPriceUsd:           decimal.NewFromInt(3000),
		Hedge: core.HedgeConfig{
			Enabled:               true,
			AllocationPercent:     decimal.NewFromInt(10),
			FundAllocationPercent: decimal.NewFromInt(80),
			LeverageMultiplier:    decimal.NewFromInt(5),
		},
		EthAllocations: []core.EthAllocation{{
			ProductID:     "lido-steth",
			Selected:      true,
			WeightPercent: decimal.NewFromInt(100),
			Leverage: &core.LeverageConfig{
				Enabled:           true,
				CollateralPercent: decimal.NewFromInt(50),
				LtvPercent:        decimal.NewFromInt(60),
				BorrowAsset:       core.BorrowUSDC,
				DeployTargetID:    "aave-usdc",
			},
		}},
		StablecoinAllocations: []core.StablecoinAllocation{
			{ProductID: "aave-usdc", Selected: true, WeightPercent: decimal.NewFromInt(100)},
		},
	}
}

func TestSQLiteStore_WALMode(t *testing.T) {
	store, _ := createTestStore(t)

	var journalMode string
	require.NoError(t, store.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)
}

func TestSQLiteStore_RateRecords(t *testing.T) {
	store, _ := createTestStore(t)
	ctx := context.Background()

	recs, err := store.LoadRateRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)

	first := core.RateRecord{
		Source: "defillama",
		Snapshot: core.RateSnapshot{
			ApyByProductID:    map[string]decimal.Decimal{"lido-steth": decimal.RequireFromString("2.81")},
			BorrowRateByAsset: map[string]decimal.Decimal{"USDC": decimal.RequireFromString("5.9")},
		},
		FetchedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	funding := core.RateRecord{
		Source: "hyperliquid",
		Snapshot: core.RateSnapshot{
			FundingRatePercent: decimal.NewNullDecimal(decimal.RequireFromString("10.95")),
			MaxHedgeLeverage:   decimal.NewNullDecimal(decimal.NewFromInt(25)),
		},
		FetchedAt: time.Date(2025, 3, 1, 12, 0, 1, 0, time.UTC),
	}
	require.NoError(t, store.SaveRateRecord(ctx, first))
	require.NoError(t, store.SaveRateRecord(ctx, funding))

	// A newer record replaces the old one for the same source
	second := first
	second.Snapshot.ApyByProductID = map[string]decimal.Decimal{"lido-steth": decimal.RequireFromString("3.02")}
	second.FetchedAt = first.FetchedAt.Add(3 * time.Hour)
	require.NoError(t, store.SaveRateRecord(ctx, second))

	recs, err = store.LoadRateRecords(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "defillama", recs[0].Source)
	assert.True(t, recs[0].FetchedAt.Equal(second.FetchedAt))
	assert.Equal(t, "3.02", recs[0].Snapshot.ApyByProductID["lido-steth"].String())

	assert.Equal(t, "hyperliquid", recs[1].Source)
	require.True(t, recs[1].Snapshot.FundingRatePercent.Valid)
	assert.Equal(t, "10.95", recs[1].Snapshot.FundingRatePercent.Decimal.String())
}

func TestSQLiteStore_ChecksumValidation(t *testing.T) {
	store, _ := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRateRecord(ctx, core.RateRecord{Source: "defillama", FetchedAt: time.Now()}))

	_, err := store.db.Exec(`UPDATE rate_snapshots SET data = '{"corrupt": "data"}' WHERE source = 'defillama'`)
	require.NoError(t, err)

	_, err = store.LoadRateRecords(ctx)
	assert.ErrorIs(t, err, apperrors.ErrChecksumMismatch)
}

func TestSQLiteStore_PortfolioRoundTrip(t *testing.T) {
	store, _ := createTestStore(t)
	ctx := context.Background()

	saved, err := store.SavePortfolio(ctx, Portfolio{Name: "steth loop", Config: testPortfolioConfig()})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	assert.False(t, saved.UpdatedAt.IsZero())

	loaded, err := store.GetPortfolio(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "steth loop", loaded.Name)

	cfg := loaded.Config
	assert.True(t, cfg.InvestmentAmount.Equal(decimal.NewFromInt(1_000_000)))
	assert.True(t, cfg.Hedge.LeverageMultiplier.Equal(decimal.NewFromInt(5)))
	require.Len(t, cfg.EthAllocations, 1)
	require.NotNil(t, cfg.EthAllocations[0].Leverage)
	assert.Equal(t, core.BorrowUSDC, cfg.EthAllocations[0].Leverage.BorrowAsset)
	assert.True(t, cfg.EthAllocations[0].Leverage.LtvPercent.Equal(decimal.NewFromInt(60)))

	// Saving under the same id replaces the row
	loaded.Name = "renamed"
	_, err = store.SavePortfolio(ctx, loaded)
	require.NoError(t, err)

	all, err := store.ListPortfolios(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "renamed", all[0].Name)
}

func TestSQLiteStore_PortfolioErrors(t *testing.T) {
	store, _ := createTestStore(t)
	ctx := context.Background()

	_, err := store.GetPortfolio(ctx, "3f1c1c52-5a43-4c1b-9d7e-3c1f4f9b2a10")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	err = store.DeletePortfolio(ctx, "3f1c1c52-5a43-4c1b-9d7e-3c1f4f9b2a10")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = store.SavePortfolio(ctx, Portfolio{ID: "not-a-uuid", Config: testPortfolioConfig()})
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}

func TestSQLiteStore_DeletePortfolio(t *testing.T) {
	store, _ := createTestStore(t)
	ctx := context.Background()

	saved, err := store.SavePortfolio(ctx, Portfolio{Config: testPortfolioConfig()})
	require.NoError(t, err)
	assert.Equal(t, saved.ID, saved.Name, "unnamed portfolios are named by id")

	require.NoError(t, store.DeletePortfolio(ctx, saved.ID))
	_, err = store.GetPortfolio(ctx, saved.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSQLiteStore_ListOrder(t *testing.T) {
	store, _ := createTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"oldest", "middle", "newest"} {
		ts := base.Add(time.Duration(i) * time.Hour)
		store.now = func() time.Time { return ts }
		_, err := store.SavePortfolio(ctx, Portfolio{Name: name, Config: testPortfolioConfig()})
		require.NoError(t, err)
	}

	all, err := store.ListPortfolios(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"newest", "middle", "oldest"}, []string{all[0].Name, all[1].Name, all[2].Name})
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	store, dbPath := createTestStore(t)
	ctx := context.Background()

	saved, err := store.SavePortfolio(ctx, Portfolio{Name: "persisted", Config: testPortfolioConfig()})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.GetPortfolio(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", loaded.Name)
	assert.NoError(t, reopened.Ping(ctx))
}

func TestSQLiteStore_ContextCancellation(t *testing.T) {
	store, _ := createTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.SavePortfolio(ctx, Portfolio{Config: testPortfolioConfig()})
	assert.Error(t, err)
}
