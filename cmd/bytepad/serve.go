package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bytepad-backend/internal/config"
	"bytepad-backend/internal/di"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var authoritative bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP command API and run auto-sync",
		Long: `Serve the HTTP command API and run auto-sync.

Commands are forwarded to the running desktop app when it is reachable and
applied to the data file otherwise. With --authoritative this process owns the
data file and also serves the desktop app's local API.

Examples:
  bytepad serve
  bytepad serve --authoritative --data-dir ~/.bytepad`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(flags, authoritative)
		},
	}
	cmd.Flags().BoolVar(&authoritative, "authoritative", false, "own the data file and serve the local API")
	return cmd
}

func runServe(flags *globalFlags, authoritative bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	container, cleanup, err := di.InitializeContainer(ctx, cfg, di.Options{Version: Version, Authoritative: authoritative})
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer cleanup()
	logger := container.Logger

	watcher, err := config.NewSyncConfigWatcher(container.SyncConfig, logger)
	if err != nil {
		return err
	}
	defer watcher.Stop()
	watcher.OnChange(container.Scheduler.Reconfigure)

	container.Gateway.StartSweeper(ctx)

	servers := []*http.Server{newHTTPServer(cfg, cfg.Server.Addr(), container.Router)}
	if authoritative {
		addr, err := listenAddr(cfg.LocalProcess.BaseURL)
		if err != nil {
			return err
		}
		servers = append(servers, newHTTPServer(cfg, addr, container.LocalAPI))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			logger.Info("Starting server",
				zap.String("address", srv.Addr),
				zap.Bool("authoritative", authoritative),
				zap.String("version", Version),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server on %s failed: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		return container.Scheduler.Run(gctx, container.SyncConfig.Get())
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down servers...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Server shutdown error", zap.String("address", srv.Addr), zap.Error(err))
			}
		}
		return nil
	})

	err = g.Wait()
	container.Shutdown()
	logger.Info("Server stopped")
	return err
}

func newHTTPServer(cfg *config.Config, addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
}

// listenAddr returns the host:port of the local-process base URL.
func listenAddr(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid local process URL %q: %w", baseURL, err)
	}
	host, port := u.Hostname(), u.Port()
	if port == "" {
		port = "80"
	}
	return net.JoinHostPort(host, port), nil
}
