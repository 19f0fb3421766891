package syncer

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/carbsync/carbsync/internal/metrics"
	"github.com/carbsync/carbsync/internal/models"
	"github.com/carbsync/carbsync/internal/state"
)

// Store is the local store the engine reads and merges into. It is
// implemented by *state.State.
type Store interface {
	AllRecords(c models.Collection) ([]state.Entry, error)
	MergeRecords(c models.Collection, incoming []state.Entry, replace state.ReplaceFunc) ([]string, error)
	ReplaceRecords(c models.Collection, entries []state.Entry) error
	Cursor(peer string, c models.Collection) (*state.FileCursor, error)
	SetCursor(peer string, c models.Collection, fc state.FileCursor) error
}

// ExportResult describes a written snapshot.
type ExportResult struct {
	Collection models.Collection
	Path       string
	Records    int
}

// Exporter writes the local device's snapshot files.
type Exporter struct {
	store   Store
	shared  *SharedDir
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewExporter creates an exporter. m may be nil.
func NewExporter(store Store, shared *SharedDir, m *metrics.Metrics, logger *slog.Logger) *Exporter {
	return &Exporter{store: store, shared: shared, metrics: m, logger: logger}
}

// Export writes a complete snapshot of collection c, tombstones included,
// and atomically replaces the previous file. The local store is not
// modified.
func (e *Exporter) Export(ctx context.Context, c models.Collection) (ExportResult, error) {
	res := ExportResult{Collection: c, Path: e.shared.Path(e.shared.Device(), c)}

	b, err := bindingFor(c)
	if err != nil {
		return res, err
	}

	// The store is read once this write holds the collection, so a later
	// export never carries older records than an earlier one.
	var n int

	err = e.shared.WriteAtomic(ctx, c, func(w io.Writer) error {
		stored, err := e.store.AllRecords(c)
		if err != nil {
			return fmt.Errorf("reading %s: %w", c, err)
		}

		n = len(stored)

		return b.encode(w, stored)
	})
	e.metrics.Export(string(c), err)

	if err != nil {
		return res, fmt.Errorf("exporting %s: %w", c, err)
	}

	res.Records = n

	e.logger.Debug("snapshot exported",
		slog.String("collection", string(c)),
		slog.Int("records", res.Records),
	)

	return res, nil
}

// ExportAll exports every collection. It stops at the first failure.
func (e *Exporter) ExportAll(ctx context.Context) ([]ExportResult, error) {
	results := make([]ExportResult, 0, len(models.AllCollections))

	for _, c := range models.AllCollections {
		res, err := e.Export(ctx, c)
		if err != nil {
			return results, err
		}

		results = append(results, res)
	}

	return results, nil
}
