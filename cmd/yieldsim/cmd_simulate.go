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

type simulateOutput struct {
	Rates  core.RateState        `json:"rates"`
	Result core.SimulationResult `json:"result"`
}

func newSimulateCmd(c *cli) *cobra.Command {
	var (
		format   string
		scenario string
		label    string
	)

	cmd := &cobra.Command{
		Use:   "simulate <portfolio.yaml>",
		Short: "Simulate one portfolio",
		Long: `Simulate a portfolio file against the current rates.

Example usage:
  yieldsim simulate portfolio.yaml
  yieldsim simulate portfolio.yaml --scenario -30
  yieldsim simulate portfolio.yaml --format json --offline`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			cfg, err := loadPortfolioWithScenario(args[0], scenario)
			if err != nil {
				return err
			}

			return c.withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
				res := app.Engine.Simulate(ctx, label, cfg, app.Rates.Snapshot(ctx))
				state := app.Rates.State()

				out := cmd.OutOrStdout()
				if format == formatJSON {
					return printJSON(out, simulateOutput{Rates: state, Result: res})
				}
				printState(out, state)
				return printResult(out, res)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "Output format: table, json")
	cmd.Flags().StringVar(&scenario, "scenario", "", "Override the ETH price change scenario in percent")
	cmd.Flags().StringVar(&label, "label", "", "Publish the health factor under this label")
	return cmd
}

func loadPortfolioWithScenario(path, scenario string) (core.PortfolioConfig, error) {
	cfg, err := config.LoadPortfolio(path)
	if err != nil {
		return core.PortfolioConfig{}, err
	}
	if scenario == "" {
		return cfg, nil
	}

	s, err := decimal.NewFromString(scenario)
	if err != nil {
		return core.PortfolioConfig{}, fmt.Errorf("invalid --scenario %q: %w", scenario, err)
	}
	if s.LessThan(simulation.MinScenarioPercent) {
		return core.PortfolioConfig{}, fmt.Errorf("--scenario must be at least %s", simulation.MinScenarioPercent)
	}
	return cfg.WithScenario(s), nil
}
