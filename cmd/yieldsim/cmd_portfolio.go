package main

import (
	"context"
	"fmt"

	"yield_sim/internal/bootstrap"
	"yield_sim/internal/config"
	"yield_sim/internal/store"

	"github.com/spf13/cobra"
)

func newPortfolioCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Manage saved portfolios",
	}
	cmd.AddCommand(
		newPortfolioSaveCmd(c),
		newPortfolioLoadCmd(c),
		newPortfolioListCmd(c),
		newPortfolioDeleteCmd(c),
	)
	return cmd
}

func newPortfolioSaveCmd(c *cli) *cobra.Command {
	var id, name string

	cmd := &cobra.Command{
		Use:   "save <portfolio.yaml>",
		Short: "Save a portfolio file to the store",
		Long: `Save a portfolio file to the store. Without --id a new portfolio is
created; with --id the saved portfolio is replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadPortfolio(args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
				p, err := app.Store.SavePortfolio(ctx, store.Portfolio{ID: id, Name: name, Config: cfg})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), p.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Replace the portfolio with this id")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	return cmd
}

func newPortfolioLoadCmd(c *cli) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "load <id>",
		Short: "Print a saved portfolio as YAML, or write it with --output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
				p, err := app.Store.GetPortfolio(ctx, args[0])
				if err != nil {
					return err
				}
				if output != "" {
					return config.WritePortfolio(output, p.Config)
				}
				data, err := config.MarshalPortfolio(p.Config)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the portfolio to this file")
	return cmd
}

func newPortfolioListCmd(c *cli) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved portfolios, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
				list, err := app.Store.ListPortfolios(ctx)
				if err != nil {
					return err
				}
				if format == formatJSON {
					if list == nil {
						list = []store.Portfolio{}
					}
					return printJSON(cmd.OutOrStdout(), list)
				}
				return printPortfolios(cmd.OutOrStdout(), list)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "Output format: table, json")
	return cmd
}

func newPortfolioDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved portfolio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
				return app.Store.DeletePortfolio(ctx, args[0])
			})
		},
	}
}
