// Command bytepad runs the bytepad automation backend: the HTTP command API,
// the MCP stdio server and one-shot sync and command invocations.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"bytepad-backend/internal/config"
	"bytepad-backend/internal/di"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

type globalFlags struct {
	configDir string
	dataDir   string
	logLevel  string
}

func main() {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "bytepad",
		Short:         "bytepad automation backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.configDir, "config", "", "directory holding bytepad.yaml")
	rootCmd.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd(flags))
	rootCmd.AddCommand(mcpCmd(flags))
	rootCmd.AddCommand(syncCmd(flags))
	rootCmd.AddCommand(execCmd(flags))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig applies the layered configuration and then the command-line
// overrides.
func (f *globalFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader(f.configDir).Load()
	if err != nil {
		return nil, err
	}
	if f.dataDir != "" {
		cfg.DataDir = f.dataDir
	}
	if f.logLevel != "" {
		cfg.Logging.Level = strings.ToLower(f.logLevel)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// container builds the application for a one-shot command. The caller must
// invoke the returned cleanup.
func (f *globalFlags) container(ctx context.Context, opts di.Options, adjust func(*config.Config)) (*di.Container, func(), error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if adjust != nil {
		adjust(cfg)
	}
	opts.Version = Version

	c, cleanup, err := di.InitializeContainer(ctx, cfg, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize container: %w", err)
	}
	return c, func() {
		c.Shutdown()
		cleanup()
	}, nil
}
