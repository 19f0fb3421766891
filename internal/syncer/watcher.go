package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/carbsync/carbsync/internal/models"
	"github.com/fsnotify/fsnotify"
)

const (
	watchTick   = 500 * time.Millisecond
	watchSettle = 300 * time.Millisecond
)

//go:generate mockgen -source=watcher.go -destination=mock_peer_importer_test.go -package=syncer -mock_names=peerImporter=MockPeerImporter

// peerImporter is the subset of Importer the watcher drives. Extracted
// for testability.
type peerImporter interface {
	ImportPeer(ctx context.Context, c models.Collection, peer string) (Report, error)
}

// pendingImport identifies one peer snapshot waiting to be imported.
type pendingImport struct {
	peer       string
	collection models.Collection
}

// Watcher monitors peer device directories in the shared location and
// imports a per-record snapshot shortly after a peer replaces it. The
// ongoing meal is left to the Poller.
type Watcher struct {
	shared   *SharedDir
	importer peerImporter
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a watcher for the shared directory.
func NewWatcher(shared *SharedDir, importer *Importer, logger *slog.Logger) *Watcher {
	return &Watcher{shared: shared, importer: importer, logger: logger}
}

// Watch blocks until ctx is cancelled. Writes are debounced so a peer
// rewriting a file several times in quick succession triggers one import.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	w.watcher = watcher
	defer watcher.Close()

	root := w.shared.Root()
	if err := watcher.Add(root); err != nil {
		return fmt.Errorf("watching shared dir: %w", err)
	}

	peers, err := w.shared.Peers(ctx)
	if err != nil {
		return fmt.Errorf("listing peers: %w", err)
	}

	for _, peer := range peers {
		if err := watcher.Add(filepath.Join(root, peer)); err != nil {
			w.logger.Warn("watching peer dir", slog.String("peer", peer), slog.String("error", err.Error()))
		}
	}

	w.logger.Info("shared dir watcher started", slog.String("dir", root), slog.Int("peers", len(peers)))

	pending := make(map[pendingImport]time.Time)
	ticker := time.NewTicker(watchTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed unexpectedly")
			}

			w.handleEvent(event, pending)

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed unexpectedly")
			}
			w.logger.Warn("watcher error", slog.String("error", err.Error()))

		case <-ticker.C:
			w.flush(ctx, pending, time.Now())
		}
	}
}

// handleEvent records snapshot changes in pending and starts watching new
// peer directories.
func (w *Watcher) handleEvent(event fsnotify.Event, pending map[pendingImport]time.Time) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	rel, err := filepath.Rel(w.shared.Root(), event.Name)
	if err != nil {
		return
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")

	switch len(parts) {
	case 1:
		// A new device directory.
		if w.ignoreDir(parts[0]) || w.watcher == nil {
			return
		}

		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				w.logger.Warn("watching peer dir", slog.String("peer", parts[0]), slog.String("error", err.Error()))
				return
			}
			w.logger.Info("new peer detected", slog.String("peer", parts[0]))
		}

	case 2:
		if w.ignoreDir(parts[0]) {
			return
		}

		c, ok := snapshotCollection(parts[1])
		if !ok || !c.PerRecord() {
			return
		}

		pending[pendingImport{peer: parts[0], collection: c}] = time.Now()
	}
}

// flush imports every pending snapshot that has been quiet for watchSettle.
func (w *Watcher) flush(ctx context.Context, pending map[pendingImport]time.Time, now time.Time) {
	for p, t := range pending {
		if now.Sub(t) < watchSettle {
			continue
		}

		delete(pending, p)

		if _, err := w.importer.ImportPeer(ctx, p.collection, p.peer); err != nil {
			w.logger.Warn("import after change failed",
				slog.String("peer", p.peer),
				slog.String("collection", string(p.collection)),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (w *Watcher) ignoreDir(name string) bool {
	return name == w.shared.Device() || strings.HasPrefix(name, ".")
}

// snapshotCollection maps a file name to its collection. Temp files from
// in-progress exports never match.
func snapshotCollection(name string) (models.Collection, bool) {
	if strings.HasPrefix(name, tempPrefix) {
		return "", false
	}

	for _, c := range models.AllCollections {
		if c.FileName() == name {
			return c, true
		}
	}

	return "", false
}
