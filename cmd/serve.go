// =============================================================================
// Grade Summary - Serve Command
// =============================================================================
//
// This file defines the 'serve' command, which runs the HTTP session API
// until the process receives SIGINT or SIGTERM.
//
// COMMAND USAGE:
//   gradesum serve [--listen :8080]
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ginjaninja78/gradesum/internal/config"
	"github.com/ginjaninja78/gradesum/internal/metrics"
	"github.com/ginjaninja78/gradesum/internal/server"
	"github.com/ginjaninja78/gradesum/internal/session"
)

// shutdownTimeout bounds how long in-flight requests may take after a
// shutdown signal.
const shutdownTimeout = 15 * time.Second

// listenAddr overrides server.listen_addr when set.
var listenAddr string

// serveCmd represents the 'serve' command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP session API",
	Long: `The serve command starts the HTTP session API. Each client creates a session,
uploads a batch of exports, selects periods and courses and downloads the
summaries. Idle sessions expire after session.ttl.

Prometheus metrics are exposed on /metrics and a health check on /health.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		if listenAddr != "" {
			appConfig.Server.ListenAddr = listenAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runServe(ctx, appConfig, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Address to listen on (default from config)")
}

// runServe serves the API until ctx is canceled, then shuts down gracefully.
func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := metrics.New(reg)
	manager := session.NewManager(cfg, logger, m)
	api := server.New(manager, cfg.Server, reg, logger)

	httpServer := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      api.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server listening", slog.String("addr", cfg.Server.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}
