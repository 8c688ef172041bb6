package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"yield_sim/internal/catalog"
	"yield_sim/internal/core"
	"yield_sim/internal/simulation"
	"yield_sim/internal/store"

	"github.com/shopspring/decimal"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

func checkFormat(format string) error {
	if format != formatTable && format != formatJSON {
		return fmt.Errorf("unknown output format %q (want %s or %s)", format, formatTable, formatJSON)
	}
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usd(d decimal.Decimal) string { return "$" + d.StringFixed(2) }
func pct(d decimal.Decimal) string { return d.StringFixed(2) + "%" }

func nullable(d decimal.NullDecimal, format func(decimal.Decimal) string) string {
	if !d.Valid {
		return "n/a"
	}
	return format(d.Decimal)
}

func printState(w io.Writer, st core.RateState) {
	if st.LastUpdated.IsZero() {
		fmt.Fprintf(w, "Rates: %s\n", st.Status)
	} else {
		fmt.Fprintf(w, "Rates: %s (updated %s)\n", st.Status, st.LastUpdated.Format("2006-01-02 15:04 MST"))
	}
	if st.Error != "" {
		fmt.Fprintf(w, "Last error: %s\n", st.Error)
	}
}

func printResult(w io.Writer, res core.SimulationResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "ETH position\t%s\t(%s ETH)\n", usd(res.EthPositionUsd), res.EthBalanceEth.StringFixed(4))
	fmt.Fprintf(tw, "Stablecoin pool\t%s\t\n", usd(res.StablecoinPoolUsd))
	fmt.Fprintf(tw, "Projected ETH price\t%s\t\n", usd(res.ProjectedEthPriceUsd))
	fmt.Fprintln(tw, "\t\t")

	for _, b := range res.Breakdown {
		fmt.Fprintf(tw, "%s\t%s\t\n", b.Category, usd(b.TotalUsd))
		for _, item := range b.Items {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", item.Label, usd(item.AmountUsd), pct(item.ApyPercent))
		}
	}
	fmt.Fprintln(tw, "\t\t")

	fmt.Fprintf(tw, "Total return\t%s\t%s\n", usd(res.TotalReturnUsd), pct(res.TotalReturnPercent))
	fmt.Fprintf(tw, "Portfolio APY\t%s\t\n", pct(res.PortfolioApyPercent))
	fmt.Fprintf(tw, "Expected balance\t%s\t\n", usd(res.ExpectedBalanceUsd))

	if res.HealthFactor().Valid {
		fmt.Fprintf(tw, "Health factor\t%s\t%s\n", res.HealthFactor().Decimal.StringFixed(3), res.Leverage.HealthStatus)
		fmt.Fprintf(tw, "Liquidation price\t%s\t%s drop\n",
			nullable(res.LiquidationPriceUsd(), usd),
			nullable(res.Leverage.LiquidationDropPercent, pct))
	}
	if res.Hedge.Active {
		fmt.Fprintf(tw, "Hedge short\t%s\t%s coverage\n", usd(res.Hedge.ShortPositionSizeUsd), pct(res.Hedge.CoveragePercent))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, d := range res.Diagnostics {
		fmt.Fprintf(w, "warning: %s\n", d.Error())
	}
	return nil
}

func printSweep(w io.Writer, points []simulation.SweepPoint) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Scenario\tETH price\tTotal return\tReturn %\tHealth factor\t")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n",
			pct(p.ScenarioPercent),
			usd(p.Result.ProjectedEthPriceUsd),
			usd(p.Result.TotalReturnUsd),
			pct(p.Result.TotalReturnPercent),
			nullable(p.Result.HealthFactor(), func(d decimal.Decimal) string { return d.StringFixed(3) }))
	}
	return tw.Flush()
}

func printQuotes(w io.Writer, quotes []catalog.Quote, borrow map[core.BorrowAsset]decimal.Decimal, funding, maxLeverage decimal.Decimal) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Product\tProtocol\tAPY\tSource\t")
	for _, q := range quotes {
		source := "default"
		if q.Live {
			source = "live"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", q.ID, q.ProtocolName, pct(q.ApyPercent), source)
	}
	fmt.Fprintln(tw, "\t\t\t\t")
	for _, a := range core.BorrowAssets {
		fmt.Fprintf(tw, "Borrow %s\tAave V3\t%s\t\t\n", a, pct(borrow[a]))
	}
	fmt.Fprintf(tw, "ETH funding\tHyperliquid\t%s\t\t\n", pct(funding))
	fmt.Fprintf(tw, "Max hedge leverage\tHyperliquid\t%sx\t\t\n", maxLeverage.String())
	return tw.Flush()
}

func printPortfolios(w io.Writer, list []store.Portfolio) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tName\tInvestment\tUpdated\t")
	for _, p := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", p.ID, p.Name, usd(p.Config.InvestmentAmount), p.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}
