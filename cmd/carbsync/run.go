package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Reconcile with all peers, then keep watching the shared directory",
		Long: `Reconciles every collection with all peers, exports this device's
snapshots and then imports peer snapshots as they change.

The state database is locked while run is active. Other carbsync
commands for the same STATE_DB wait for the lock and fail after a few
seconds, so stop run before using them. The ongoing meal of a peer is
followed with "carbsync ongoing --follow".`,
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			return runDaemon(cmd.Context(), a)
		}),
	}
}

// runDaemon reconciles once, then runs the peer watcher and the metrics
// endpoint until ctx is cancelled.
func runDaemon(ctx context.Context, a *app) error {
	cfg, logger := a.cfg, a.logger
	logger.Info("carbsync starting",
		slog.String("version", Version),
		slog.String("device", cfg.DeviceName),
		slog.String("shared_dir", cfg.SharedDir),
		slog.Bool("watch", cfg.WatchShared),
	)

	if _, err := a.engine.ReconcileAll(ctx); err != nil {
		// Peers that are unreadable now are picked up by the watcher later.
		logger.Warn("initial reconcile incomplete", slog.String("error", err.Error()))
	}

	// Publish local snapshots even when nothing merged.
	if _, err := a.engine.Exporter.ExportAll(ctx); err != nil {
		logger.Warn("initial export failed", slog.String("error", err.Error()))
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.WatchShared {
		watcher := a.engine.Watcher()
		g.Go(func() error {
			if err := watcher.Watch(gctx); err != nil && gctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.MetricsAddr, a.metrics.Handler(), logger)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("carbsync stopping")
		return nil
	})

	return g.Wait()
}

func serveMetrics(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger.Info("starting metrics server", slog.String("listen", addr))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server error: %w", err)
	}

	return nil
}
