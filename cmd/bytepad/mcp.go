package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bytepad-backend/internal/config"
	"bytepad-backend/internal/di"
	"bytepad-backend/internal/interfaces/mcp"
)

func mcpCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve every command as an MCP tool over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// stdout carries the protocol.
			container, cleanup, err := flags.container(ctx, di.Options{}, func(cfg *config.Config) {
				if cfg.Logging.Output == "stdout" {
					cfg.Logging.Output = "stderr"
				}
				cfg.Metrics.Enabled = false
			})
			if err != nil {
				return err
			}
			defer cleanup()

			container.Gateway.StartSweeper(ctx)
			go func() {
				_ = container.Scheduler.Run(ctx, container.SyncConfig.Get())
			}()

			srv := mcp.NewServer(container.Registry, container.Gateway, Version, container.Logger)
			return mcp.ServeStdio(ctx, srv, os.Stdin, os.Stdout, container.Logger)
		},
	}
}
