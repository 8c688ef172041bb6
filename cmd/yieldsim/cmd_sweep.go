package main

import (
	"context"
	"fmt"

	"yield_sim/internal/bootstrap"
	"yield_sim/internal/config"
	"yield_sim/internal/core"
	"yield_sim/internal/simulation"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type sweepOutput struct {
	Rates  core.RateState          `json:"rates"`
	Points []simulation.SweepPoint `json:"points"`
}

func newSweepCmd(c *cli) *cobra.Command {
	var format, from, to, step string

	cmd := &cobra.Command{
		Use:   "sweep <portfolio.yaml>",
		Short: "Evaluate a portfolio across a range of ETH price scenarios",
		Long: `Evaluate a portfolio across ETH price scenarios from --from to --to
(inclusive) in --step increments, all in percent.

Example usage:
  yieldsim sweep portfolio.yaml
  yieldsim sweep portfolio.yaml --from -90 --to 200 --step 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			scenarios, err := parseScenarios(from, to, step)
			if err != nil {
				return err
			}
			cfg, err := config.LoadPortfolio(args[0])
			if err != nil {
				return err
			}

			return c.withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
				points, err := app.Engine.Sweep(ctx, cfg, app.Rates.Snapshot(ctx), scenarios)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if format == formatJSON {
					return printJSON(out, sweepOutput{Rates: app.Rates.State(), Points: points})
				}
				printState(out, app.Rates.State())
				return printSweep(out, points)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "Output format: table, json")
	cmd.Flags().StringVar(&from, "from", "-50", "First scenario in percent")
	cmd.Flags().StringVar(&to, "to", "100", "Last scenario in percent")
	cmd.Flags().StringVar(&step, "step", "10", "Scenario step in percent")
	return cmd
}

func parseScenarios(from, to, step string) ([]decimal.Decimal, error) {
	vals := make([]decimal.Decimal, 3)
	for i, raw := range []string{from, to, step} {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid scenario bound %q: %w", raw, err)
		}
		vals[i] = v
	}
	return simulation.Scenarios(vals[0], vals[1], vals[2])
}
