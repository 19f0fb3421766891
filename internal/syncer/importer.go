package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/carbsync/carbsync/internal/bus"
	"github.com/carbsync/carbsync/internal/codec"
	"github.com/carbsync/carbsync/internal/metrics"
	"github.com/carbsync/carbsync/internal/models"
	"github.com/carbsync/carbsync/internal/state"
)

// Importer reconciles peer snapshot files into the local store.
//
// Per-record collections follow last-writer-wins on each record's
// modification time: an absent record is inserted (tombstones included),
// a present one is replaced only by a strictly newer one. The ongoing
// meal is replaced whole. Failures never leave the store half merged:
// a file is either merged in one transaction or not at all.
type Importer struct {
	store   Store
	shared  *SharedDir
	bus     *bus.Bus
	metrics *metrics.Metrics
	logger  *slog.Logger

	// observe, when set, is the only device whose ongoing meal is read.
	observe string
}

// ImporterConfig holds the optional settings of an Importer.
type ImporterConfig struct {
	ObserveDevice string
	Metrics       *metrics.Metrics
}

// NewImporter creates an importer publishing change notifications on b.
func NewImporter(store Store, shared *SharedDir, b *bus.Bus, cfg ImporterConfig, logger *slog.Logger) *Importer {
	return &Importer{
		store:   store,
		shared:  shared,
		bus:     b,
		metrics: cfg.Metrics,
		logger:  logger,
		observe: cfg.ObserveDevice,
	}
}

// Import reconciles the snapshot at path into collection c. The file is
// always merged, regardless of its import cursor. A missing file returns a
// NoData report and no error.
func (im *Importer) Import(ctx context.Context, c models.Collection, path string) (Report, error) {
	return im.importFile(ctx, c, peerOf(path), path, true)
}

// ImportPeer reconciles one peer's snapshot of c. The file is always
// read; the merge is skipped when its content hash matches the last
// import.
func (im *Importer) ImportPeer(ctx context.Context, c models.Collection, peer string) (Report, error) {
	return im.importFile(ctx, c, peer, im.shared.Path(peer, c), false)
}

// Refresh reconciles collection c from every peer. A failing peer is
// logged and does not stop the others; the first error is returned after
// all peers were tried.
func (im *Importer) Refresh(ctx context.Context, c models.Collection, force bool) ([]Report, error) {
	if !c.PerRecord() {
		r, err := im.ImportOngoing(ctx)
		return []Report{r}, err
	}

	peers, err := im.shared.Peers(ctx)
	if err != nil {
		im.metrics.Import(string(c), metrics.OutcomeFailed)
		return nil, fmt.Errorf("listing peers: %w", err)
	}

	var (
		reports  []Report
		firstErr error
	)

	for _, peer := range peers {
		r, err := im.importFile(ctx, c, peer, im.shared.Path(peer, c), force)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}

			continue
		}

		reports = append(reports, r)
	}

	return reports, firstErr
}

// ImportOngoing replaces the observed ongoing meal with the snapshot of
// the observed device, or of the peer that wrote its ongoing meal most
// recently. A snapshot whose content is unchanged is not applied again,
// so polling does not notify subscribers on every tick.
func (im *Importer) ImportOngoing(ctx context.Context) (Report, error) {
	peer, err := im.ongoingSource(ctx)
	if err != nil {
		im.metrics.Import(string(models.Ongoing), metrics.OutcomeFailed)
		return Report{Collection: models.Ongoing}, err
	}

	if peer == "" {
		im.metrics.Import(string(models.Ongoing), metrics.OutcomeNoData)
		return Report{Collection: models.Ongoing, NoData: true}, nil
	}

	return im.importFile(ctx, models.Ongoing, peer, im.shared.Path(peer, models.Ongoing), false)
}

func (im *Importer) ongoingSource(ctx context.Context) (string, error) {
	if im.observe != "" {
		return im.observe, nil
	}

	peers, err := im.shared.Peers(ctx)
	if err != nil {
		return "", fmt.Errorf("listing peers: %w", err)
	}

	var (
		best   string
		latest FileInfo
	)

	for _, peer := range peers {
		fi, err := im.shared.Stat(ctx, im.shared.Path(peer, models.Ongoing))
		if err != nil {
			continue
		}

		if best == "" || fi.ModTime.After(latest.ModTime) {
			best, latest = peer, fi
		}
	}

	return best, nil
}

func (im *Importer) importFile(ctx context.Context, c models.Collection, peer, path string, force bool) (Report, error) {
	report := Report{Collection: c, Peer: peer}
	log := im.logger.With(slog.String("collection", string(c)), slog.String("peer", peer))

	b, err := bindingFor(c)
	if err != nil {
		return report, err
	}

	data, err := im.shared.ReadFile(ctx, path)
	if errors.Is(err, errNoSnapshot) {
		report.NoData = true
		im.metrics.Import(string(c), metrics.OutcomeNoData)
		log.Debug("no snapshot available")

		return report, nil
	}

	if err != nil {
		im.metrics.Import(string(c), metrics.OutcomeFailed)
		return report, fmt.Errorf("reading %s: %w", path, err)
	}

	cursor := state.CursorFor(data)

	if !force {
		prev, err := im.store.Cursor(peer, c)
		if err != nil {
			return report, fmt.Errorf("reading cursor: %w", err)
		}

		if prev != nil && *prev == cursor {
			report.Unchanged = true
			im.metrics.Import(string(c), metrics.OutcomeUnchanged)

			return report, nil
		}
	}

	entries, rowErrs, err := b.decode(data)
	if err != nil {
		im.metrics.Import(string(c), metrics.OutcomeFailed)

		var ffe *codec.FileFormatError
		if errors.As(err, &ffe) {
			log.Warn("snapshot rejected", slog.String("error", err.Error()))
		}

		return report, fmt.Errorf("decoding %s: %w", path, err)
	}

	report.Errors = rowErrs
	for _, re := range rowErrs {
		log.Warn("skipping malformed row", slog.Int("line", re.Line), slog.String("error", re.Err.Error()))
	}

	if c.PerRecord() {
		applied, err := im.store.MergeRecords(c, entries, b.newer)
		if err != nil {
			im.metrics.Import(string(c), metrics.OutcomeFailed)
			return report, fmt.Errorf("merging %s: %w", c, err)
		}

		report.Applied = len(applied)
		report.Skipped = len(entries) - len(applied)
	} else {
		if err := im.store.ReplaceRecords(state.ObservedOngoing, entries); err != nil {
			im.metrics.Import(string(c), metrics.OutcomeFailed)
			return report, fmt.Errorf("replacing observed ongoing meal: %w", err)
		}

		report.Applied = len(entries)
	}

	if err := im.store.SetCursor(peer, c, cursor); err != nil {
		log.Warn("failed to save import cursor", slog.String("error", err.Error()))
	}

	im.metrics.Records(string(c), report.Applied, report.Skipped, report.ErrorCount())
	im.metrics.Import(string(c), metrics.OutcomeImported)

	log.Info("snapshot imported",
		slog.Int("applied", report.Applied),
		slog.Int("skipped", report.Skipped),
		slog.Int("errors", report.ErrorCount()),
	)

	im.notify(report, entries)

	return report, nil
}

func (im *Importer) notify(r Report, entries []state.Entry) {
	if im.bus == nil {
		return
	}

	if r.Collection.PerRecord() {
		if r.Applied > 0 {
			im.bus.Publish(bus.CollectionChanged{Collection: r.Collection, Peer: r.Peer, Applied: r.Applied})
		}

		return
	}

	ongoing, err := decodeStored[models.OngoingEntry](entries)
	if err != nil {
		im.logger.Warn("decoding observed ongoing meal", slog.String("error", err.Error()))
		return
	}

	im.bus.Publish(bus.OngoingSnapshotArrived{Peer: r.Peer, Entries: ongoing})
}
