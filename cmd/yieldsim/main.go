// Command yieldsim simulates leveraged multi-asset DeFi portfolios.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"yield_sim/internal/bootstrap"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// cli holds the global flags shared by every command.
type cli struct {
	configPath string
	envFile    string
	logFormat  string
	offline    bool

	// registry is nil outside tests
	registry *prometheus.Registry
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "yieldsim",
		Short: "Leveraged multi-asset DeFi portfolio simulator",
		Long: `yieldsim projects the return of a portfolio split between ETH yield
products and stablecoin yield products, with optional borrow loops against
the ETH collateral and a perpetual short hedge.

Rates come from DefiLlama and Hyperliquid and are cached; without them the
built-in catalog defaults apply.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(c.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", c.envFile, err)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Path to the YAML config file (defaults apply when empty)")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "Dotenv file loaded before the config")
	root.PersistentFlags().StringVar(&c.logFormat, "log-format", "console", "Log format: console, json")
	root.PersistentFlags().BoolVar(&c.offline, "offline", false, "Do not contact upstream rate sources")

	root.AddCommand(
		newSimulateCmd(c),
		newSweepCmd(c),
		newRatesCmd(c),
		newServeCmd(c),
		newPortfolioCmd(c),
	)
	return root
}

// withApp bootstraps the application for the duration of fn.
func (c *cli) withApp(ctx context.Context, fn func(ctx context.Context, app *bootstrap.App) error) error {
	app, err := bootstrap.NewApp(c.configPath, bootstrap.Options{
		Offline:   c.offline,
		LogFormat: c.logFormat,
		Registry:  c.registry,
	})
	if err != nil {
		return err
	}

	runErr := fn(ctx, app)
	if err := app.Close(context.Background()); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func main() {
	if err := newRootCmd(&cli{}).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
