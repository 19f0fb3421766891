package state

import (
	"encoding/json"
	"fmt"

	"github.com/carbsync/carbsync/internal/models"
)

// Get decodes the record stored under key, or returns nil if not found.
func Get[T any](s *State, c models.Collection, key string) (*T, error) {
	data, err := s.Record(c, key)
	if err != nil || data == nil {
		return nil, err
	}

	var rec T
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding %s/%s: %w", c, key, err)
	}

	return &rec, nil
}

// All decodes every record of a collection in key order.
func All[T any](s *State, c models.Collection) ([]T, error) {
	entries, err := s.AllRecords(c)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(entries))
	for _, e := range entries {
		var rec T
		if err := json.Unmarshal(e.Value, &rec); err != nil {
			return nil, fmt.Errorf("decoding %s/%s: %w", c, e.Key, err)
		}

		out = append(out, rec)
	}

	return out, nil
}

// Put stores a merge-tracked record under its key.
func Put[T models.Record](s *State, c models.Collection, rec T) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return s.PutRecord(c, rec.Key(), data)
}

// ListKey orders list collections such as the ongoing meal, which have no
// identity of their own. Zero padding keeps bbolt's byte order numeric.
func ListKey(i int) string {
	return fmt.Sprintf("%06d", i)
}

// ReplaceList stores recs as the complete content of c, in order.
func ReplaceList[T any](s *State, c models.Collection, recs []T) error {
	entries := make([]Entry, 0, len(recs))

	for i, rec := range recs {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		entries = append(entries, Entry{Key: ListKey(i), Value: data})
	}

	return s.ReplaceRecords(c, entries)
}
