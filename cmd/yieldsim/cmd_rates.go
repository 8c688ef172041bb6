package main

import (
	"context"

	"yield_sim/internal/bootstrap"
	"yield_sim/internal/catalog"
	"yield_sim/internal/core"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type ratesOutput struct {
	State       core.RateState                       `json:"state"`
	Products    []catalog.Quote                      `json:"products"`
	BorrowRates map[core.BorrowAsset]decimal.Decimal `json:"borrowRates"`
	Funding     decimal.Decimal                      `json:"fundingRatePercent"`
	MaxLeverage decimal.Decimal                      `json:"maxHedgeLeverage"`
}

func newRatesCmd(c *cli) *cobra.Command {
	var (
		format  string
		refresh bool
	)

	cmd := &cobra.Command{
		Use:   "rates",
		Short: "Show the rates a simulation would use",
		Long: `Show product APYs, borrow rates and the hedge funding rate, marking
which values are live and which fall back to catalog defaults.

Cached rates are reused while fresh; --refresh forces a fetch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}

			return c.withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
				if refresh && app.RatesEnabled() {
					if err := app.Rates.Refresh(ctx); err != nil {
						app.Logger.Warn("Rate refresh failed, showing cached values", "error", err)
					}
				}

				snap := app.Rates.Snapshot(ctx)
				out := ratesOutput{
					State:       app.Rates.State(),
					Products:    catalog.Quotes(app.Catalog, snap),
					BorrowRates: catalog.BorrowQuotes(app.Catalog, snap),
					Funding:     catalog.FundingRateFor(app.Catalog, snap),
					MaxLeverage: catalog.MaxHedgeLeverageFor(app.Catalog, snap),
				}

				w := cmd.OutOrStdout()
				if format == formatJSON {
					return printJSON(w, out)
				}
				printState(w, out.State)
				return printQuotes(w, out.Products, out.BorrowRates, out.Funding, out.MaxLeverage)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "Output format: table, json")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Fetch from upstream even if the cache is fresh")
	return cmd
}
