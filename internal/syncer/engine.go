package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carbsync/carbsync/internal/bus"
	"github.com/carbsync/carbsync/internal/metrics"
	"github.com/carbsync/carbsync/internal/models"
)

// EngineConfig holds the settings of an Engine.
type EngineConfig struct {
	SharedDir     string
	Device        string
	IOTimeout     time.Duration
	PollInterval  time.Duration
	ObserveDevice string
	Metrics       *metrics.Metrics
}

// Engine wires the exporter, importer and ongoing-meal poller around one
// local store and one shared directory.
type Engine struct {
	Shared   *SharedDir
	Bus      *bus.Bus
	Exporter *Exporter
	Importer *Importer
	Poller   *Poller

	logger *slog.Logger
}

// NewEngine creates an engine. A nil bus gets a fresh one.
func NewEngine(store Store, b *bus.Bus, cfg EngineConfig, logger *slog.Logger) *Engine {
	if b == nil {
		b = bus.New()
	}

	shared := NewSharedDir(cfg.SharedDir, cfg.Device, cfg.IOTimeout)
	importer := NewImporter(store, shared, b, ImporterConfig{
		ObserveDevice: cfg.ObserveDevice,
		Metrics:       cfg.Metrics,
	}, logger)

	return &Engine{
		Shared:   shared,
		Bus:      b,
		Exporter: NewExporter(store, shared, cfg.Metrics, logger),
		Importer: importer,
		Poller:   NewPoller(importer, cfg.PollInterval, cfg.Metrics, logger),
		logger:   logger,
	}
}

// ReconcileAll reads every per-record collection from every peer,
// ignoring import cursors, and then exports the merged result so peers
// converge on it. A collection that fails to import is logged and the
// others still run; the first error is returned at the end.
func (e *Engine) ReconcileAll(ctx context.Context) ([]Report, error) {
	var (
		reports  []Report
		firstErr error
	)

	for _, c := range models.MergedCollections {
		rs, err := e.Importer.Refresh(ctx, c, true)
		reports = append(reports, rs...)

		if err != nil {
			e.logger.Warn("reconcile failed",
				slog.String("collection", string(c)),
				slog.String("error", err.Error()),
			)

			if firstErr == nil {
				firstErr = fmt.Errorf("reconciling %s: %w", c, err)
			}
		}
	}

	applied, skipped, rowErrs := Totals(reports)
	e.logger.Info("reconcile complete",
		slog.Int("applied", applied),
		slog.Int("skipped", skipped),
		slog.Int("errors", rowErrs),
	)

	if applied == 0 {
		return reports, firstErr
	}

	for _, c := range models.MergedCollections {
		if _, err := e.Exporter.Export(ctx, c); err != nil {
			e.logger.Warn("export after reconcile failed",
				slog.String("collection", string(c)),
				slog.String("error", err.Error()),
			)

			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return reports, firstErr
}

// Watcher returns a peer-file watcher for the engine's shared directory.
func (e *Engine) Watcher() *Watcher {
	return NewWatcher(e.Shared, e.Importer, e.logger)
}
