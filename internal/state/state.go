package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/carbsync/carbsync/internal/models"
	bolt "go.etcd.io/bbolt"
)

const (
	// stateDirPerm is the permission mode for the state directory (~/.carbsync/).
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the state database file.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database lock.
	stateOpenTimeout = 5 * time.Second
)

// ObservedOngoing holds the ongoing meal imported from another instance.
// It is kept apart from Ongoing, which is the meal composed locally.
const ObservedOngoing models.Collection = "ongoing:observed"

var cursorBucket = []byte("cursors")

func buckets() [][]byte {
	out := [][]byte{cursorBucket, []byte(ObservedOngoing)}
	for _, c := range models.AllCollections {
		out = append(out, []byte(c))
	}

	return out
}

// Entry is one stored record: its merge key and JSON encoded value.
type Entry struct {
	Key   string
	Value []byte
}

// FileCursor records the content hash of a peer snapshot file at the
// time it was last imported. A file with the same hash need not be
// merged again. Mtime and size are not compared: a same-length rewrite
// can keep both.
type FileCursor struct {
	SHA256 string `json:"sha256"`
}

// CursorFor returns the cursor of a file's content.
func CursorFor(data []byte) FileCursor {
	h := sha256.Sum256(data)
	return FileCursor{SHA256: hex.EncodeToString(h[:])}
}

// ReplaceFunc decides whether incoming replaces the stored value local.
type ReplaceFunc func(local, incoming []byte) (bool, error)

// State wraps a bbolt database holding the local copy of every synchronized
// collection. Each collection is one bucket keyed by record key.
type State struct {
	db *bolt.DB
}

// Load opens the state database at ~/.carbsync/state.db, creating it
// if it does not exist.
func Load() (*State, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}

	return LoadAt(path)
}

// LoadAt opens a state database at the given path, creating it if it
// does not exist. Useful for tests that need an isolated database.
func LoadAt(path string) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets() {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &State{db: db}, nil
}

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}

func bucket(tx *bolt.Tx, c models.Collection) (*bolt.Bucket, error) {
	b := tx.Bucket([]byte(c))
	if b == nil {
		return nil, fmt.Errorf("bucket not initialized for collection %s", c)
	}

	return b, nil
}

// Record returns the stored value for key, or nil if not found.
func (s *State) Record(c models.Collection, key string) ([]byte, error) {
	var out []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := bucket(tx, c)
		if err != nil {
			return err
		}

		if v := b.Get([]byte(key)); v != nil {
			out = append([]byte(nil), v...)
		}

		return nil
	})

	return out, err
}

// AllRecords returns every stored record of a collection, tombstones
// included, ordered by key.
func (s *State) AllRecords(c models.Collection) ([]Entry, error) {
	var out []Entry

	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := bucket(tx, c)
		if err != nil {
			return err
		}

		return b.ForEach(func(k, v []byte) error {
			out = append(out, Entry{Key: string(k), Value: append([]byte(nil), v...)})
			return nil
		})
	})

	return out, err
}

// PutRecord stores a single record.
func (s *State) PutRecord(c models.Collection, key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, c)
		if err != nil {
			return err
		}

		return b.Put([]byte(key), value)
	})
}

// MergeRecords applies incoming records in a single transaction. A record
// with no stored counterpart is inserted; otherwise replace decides. The
// keys that were written are returned. If replace fails the transaction
// is rolled back and nothing is written.
func (s *State) MergeRecords(c models.Collection, incoming []Entry, replace ReplaceFunc) ([]string, error) {
	var applied []string

	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, c)
		if err != nil {
			return err
		}

		for _, e := range incoming {
			key := []byte(e.Key)

			if local := b.Get(key); local != nil {
				ok, err := replace(local, e.Value)
				if err != nil {
					return fmt.Errorf("comparing %s/%s: %w", c, e.Key, err)
				}

				if !ok {
					continue
				}
			}

			if err := b.Put(key, e.Value); err != nil {
				return err
			}

			applied = append(applied, e.Key)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return applied, nil
}

// ReplaceRecords discards every stored record of a collection and stores
// entries in its place.
func (s *State) ReplaceRecords(c models.Collection, entries []Entry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(c)); err != nil {
			return fmt.Errorf("clearing %s: %w", c, err)
		}

		b, err := tx.CreateBucket([]byte(c))
		if err != nil {
			return err
		}

		for _, e := range entries {
			if err := b.Put([]byte(e.Key), e.Value); err != nil {
				return err
			}
		}

		return nil
	})
}

func cursorKey(peer string, c models.Collection) []byte {
	return []byte(peer + "/" + string(c))
}

// Cursor returns the cursor of the last import of a peer's file, or nil.
func (s *State) Cursor(peer string, c models.Collection) (*FileCursor, error) {
	var fc *FileCursor

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(cursorBucket).Get(cursorKey(peer, c))
		if v == nil {
			return nil
		}

		fc = &FileCursor{}

		return json.Unmarshal(v, fc)
	})

	return fc, err
}

// SetCursor records the cursor of an imported peer file.
func (s *State) SetCursor(peer string, c models.Collection, fc FileCursor) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(fc)
		if err != nil {
			return err
		}

		return tx.Bucket(cursorBucket).Put(cursorKey(peer, c), data)
	})
}

// DefaultPath returns ~/.carbsync/state.db.
func DefaultPath() (string, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(dir, ".carbsync", "state.db"), nil
}
