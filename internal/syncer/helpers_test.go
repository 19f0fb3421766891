package syncer

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/carbsync/carbsync/internal/bus"
	"github.com/carbsync/carbsync/internal/codec"
	"github.com/carbsync/carbsync/internal/models"
	"github.com/carbsync/carbsync/internal/state"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

const (
	localDevice = "phone"
	peerDevice  = "tablet"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func tempStore(t *testing.T) *state.State {
	t.Helper()
	s, err := state.LoadAt(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func tempShared(t *testing.T) *SharedDir {
	t.Helper()
	return NewSharedDir(t.TempDir(), localDevice, 5*time.Second)
}

// harness bundles a store, shared dir and importer for one device.
type harness struct {
	store    *state.State
	shared   *SharedDir
	bus      *bus.Bus
	importer *Importer
	exporter *Exporter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newDevice(t, t.TempDir(), localDevice)
}

// newDevice creates an instance named device sharing root with others.
func newDevice(t *testing.T, root, device string) *harness {
	t.Helper()
	h := &harness{
		store:  tempStore(t),
		shared: NewSharedDir(root, device, 5*time.Second),
		bus:    bus.New(),
	}
	h.importer = NewImporter(h.store, h.shared, h.bus, ImporterConfig{}, testLogger)
	h.exporter = NewExporter(h.store, h.shared, nil, testLogger)
	return h
}

func food(name string, edited time.Time) models.FoodItem {
	return models.FoodItem{ID: uuid.New(), Name: name, CarbsPer100: 12.5, LastEdited: edited}
}

// writePeer encodes records with cdc into the peer's snapshot file for c.
func writePeer[T any](t *testing.T, shared *SharedDir, peer string, c models.Collection, cdc codec.Codec[T], recs []T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, cdc.Encode(&buf, recs))
	return writePeerRaw(t, shared, peer, c, buf.Bytes())
}

func writePeerRaw(t *testing.T, shared *SharedDir, peer string, c models.Collection, data []byte) string {
	t.Helper()
	path := shared.Path(peer, c)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func storedFood(t *testing.T, s *state.State, id uuid.UUID) *models.FoodItem {
	t.Helper()
	f, err := state.Get[models.FoodItem](s, models.Foods, id.String())
	require.NoError(t, err)
	return f
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}

		time.Sleep(10 * time.Millisecond)
	}

	t.Fatal("timed out waiting for condition")
}
