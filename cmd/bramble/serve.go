package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/bramble/pkg/server"
)

func newServeCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the workspace API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd.Context(), func(ctx context.Context, a *app) error {
				e := server.New(server.Options{
					ServiceName:  c.cfg.AppName,
					Manager:      a.manager,
					Health:       a.health,
					Cache:        a.invalidator(),
					Logger:       c.logger,
					ReadTimeout:  time.Duration(c.cfg.HTTPReadTimeoutSeconds) * time.Second,
					WriteTimeout: time.Duration(c.cfg.HTTPWriteTimeoutSeconds) * time.Second,
				})
				addr := fmt.Sprintf(":%d", c.cfg.Port)
				return server.Run(ctx, e, addr, time.Duration(c.cfg.ShutdownTimeoutSeconds)*time.Second, c.logger)
			})
		},
	}

	cmd.Flags().Int("port", 3004, "HTTP port")
	cmd.Flags().Bool("auto-publish", false, "publish every graph change to the graph database")
	_ = c.v.BindPFlag("port", cmd.Flags().Lookup("port"))
	_ = c.v.BindPFlag("auto_publish", cmd.Flags().Lookup("auto-publish"))
	return cmd
}
