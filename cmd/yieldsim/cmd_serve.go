package main

import (
	"context"

	"yield_sim/internal/bootstrap"

	"github.com/spf13/cobra"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the metrics endpoint and the scheduled rate refresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
				runners, err := app.ServeRunners()
				if err != nil {
					return err
				}
				return app.Run(runners...)
			})
		},
	}
}
