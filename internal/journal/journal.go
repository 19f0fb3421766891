// Package journal is the local mutation API. Every change stamps the
// record's modification time, persists it and re-exports the affected
// collection so peers pick it up. Deletions leave tombstones.
package journal

import (
	"context"
	"log/slog"

	"github.com/carbsync/carbsync/internal/models"
	"github.com/carbsync/carbsync/internal/state"
	"github.com/carbsync/carbsync/internal/syncer"
)

//go:generate mockgen -source=journal.go -destination=mock_exporter_test.go -package=journal -mock_names=Exporter=MockExporter

// Exporter publishes a collection snapshot after it changed locally.
type Exporter interface {
	Export(ctx context.Context, c models.Collection) (syncer.ExportResult, error)
}

// Journal applies local edits to the store.
type Journal struct {
	store    *state.State
	exporter Exporter
	clock    *Clock
	logger   *slog.Logger
}

// New creates a journal. exporter may be nil, in which case changes are
// stored but not exported.
func New(store *state.State, exporter Exporter, logger *slog.Logger) *Journal {
	return &Journal{store: store, exporter: exporter, clock: NewClock(nil), logger: logger}
}

// export writes fresh snapshots. The change is already stored, so a
// failure is logged and the next export carries it.
func (j *Journal) export(ctx context.Context, collections ...models.Collection) {
	if j.exporter == nil {
		return
	}

	for _, c := range collections {
		if _, err := j.exporter.Export(ctx, c); err != nil {
			j.logger.Warn("export after local change failed",
				slog.String("collection", string(c)),
				slog.String("error", err.Error()),
			)
		}
	}
}
