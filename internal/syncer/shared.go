package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	apperrors "github.com/carbsync/carbsync/internal/errors"
	"github.com/carbsync/carbsync/internal/models"
)

// tempPrefix marks in-progress exports. Readers and the watcher skip them.
const tempPrefix = ".carbsync-"

// errNoSnapshot means the peer has not written the collection yet.
var errNoSnapshot = errors.New("no snapshot file")

// SharedDir is the shared storage location. Each instance writes only
// <root>/<device>/ and reads the directories of every other device.
type SharedDir struct {
	root    string
	device  string
	timeout time.Duration

	mu sync.Mutex
	// writing holds one token per collection while a write goroutine
	// runs, including one whose caller already gave up.
	writing map[models.Collection]chan struct{}
}

// FileInfo is the part of a snapshot file's metadata used to pick a peer.
type FileInfo struct {
	ModTime time.Time
	Size    int64
}

// NewSharedDir creates a SharedDir rooted at root for the given device.
// Every filesystem call is abandoned after timeout so an unreachable
// network mount cannot stall the caller.
func NewSharedDir(root, device string, timeout time.Duration) *SharedDir {
	return &SharedDir{
		root:    root,
		device:  device,
		timeout: timeout,
		writing: make(map[models.Collection]chan struct{}),
	}
}

// Root returns the shared root directory.
func (d *SharedDir) Root() string {
	return d.root
}

// Device returns the name of the local device directory.
func (d *SharedDir) Device() string {
	return d.device
}

// Path returns the snapshot path of a collection for a device.
func (d *SharedDir) Path(device string, c models.Collection) string {
	return filepath.Join(d.root, device, c.FileName())
}

// run executes fn, giving up once the timeout or ctx expires. A hung call
// keeps its goroutine until the filesystem returns; fn receives the
// bounded context so it can tell it was abandoned.
func (d *SharedDir) run(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, ctx.Err())
	}
}

func (d *SharedDir) checkRoot() error {
	info, err := os.Stat(d.root)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", apperrors.ErrStorageUnavailable, d.root)
	}

	return nil
}

func (d *SharedDir) writeToken(c models.Collection) chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()

	token, ok := d.writing[c]
	if !ok {
		token = make(chan struct{}, 1)
		d.writing[c] = token
	}

	return token
}

// WriteAtomic writes the local device's snapshot for c. Content goes to a
// temp file in the same directory which then replaces the target, so a
// concurrent reader sees either the old or the new file, never a torn one.
//
// Writes of one collection run one at a time, and write is called only
// once the previous write has finished, so snapshots land in call order.
// A write whose caller timed out is discarded instead of renamed.
func (d *SharedDir) WriteAtomic(ctx context.Context, c models.Collection, write func(io.Writer) error) error {
	token := d.writeToken(c)

	return d.run(ctx, func(ctx context.Context) error {
		select {
		case token <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		defer func() { <-token }()

		if err := d.checkRoot(); err != nil {
			return err
		}

		dir := filepath.Join(d.root, d.device)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating device dir: %w", err)
		}

		tmp, err := os.CreateTemp(dir, tempPrefix+string(c)+"-*")
		if err != nil {
			return fmt.Errorf("creating temp file: %w", err)
		}
		tmpName := tmp.Name()

		if err := write(tmp); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("writing temp file: %w", err)
		}

		if err := tmp.Sync(); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("syncing temp file: %w", err)
		}

		if err := tmp.Close(); err != nil {
			os.Remove(tmpName)
			return fmt.Errorf("closing temp file: %w", err)
		}

		if err := os.Chmod(tmpName, 0o644); err != nil {
			os.Remove(tmpName)
			return fmt.Errorf("setting file permissions: %w", err)
		}

		if err := ctx.Err(); err != nil {
			os.Remove(tmpName)
			return fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
		}

		if err := os.Rename(tmpName, d.Path(d.device, c)); err != nil {
			os.Remove(tmpName)
			return fmt.Errorf("renaming temp file: %w", err)
		}

		return nil
	})
}

// Stat returns the metadata of a snapshot file. A missing file returns
// errNoSnapshot.
func (d *SharedDir) Stat(ctx context.Context, path string) (FileInfo, error) {
	var fi FileInfo

	err := d.run(ctx, func(context.Context) error {
		if err := d.checkRoot(); err != nil {
			return err
		}

		info, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return errNoSnapshot
		}

		if err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
		}

		fi = FileInfo{ModTime: info.ModTime(), Size: info.Size()}

		return nil
	})

	return fi, err
}

// ReadFile reads a complete snapshot file. A missing file returns
// errNoSnapshot.
func (d *SharedDir) ReadFile(ctx context.Context, path string) ([]byte, error) {
	var data []byte

	err := d.run(ctx, func(context.Context) error {
		if err := d.checkRoot(); err != nil {
			return err
		}

		b, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return errNoSnapshot
		}

		if err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
		}

		data = b

		return nil
	})

	return data, err
}

// Peers lists the device directories of every other instance, sorted.
func (d *SharedDir) Peers(ctx context.Context) ([]string, error) {
	var peers []string

	err := d.run(ctx, func(context.Context) error {
		entries, err := os.ReadDir(d.root)
		if err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
		}

		for _, e := range entries {
			if !e.IsDir() || e.Name() == d.device || strings.HasPrefix(e.Name(), ".") {
				continue
			}

			peers = append(peers, e.Name())
		}

		return nil
	})

	return peers, err
}

// peerOf maps a snapshot path to the device directory that holds it.
func peerOf(path string) string {
	return filepath.Base(filepath.Dir(path))
}
