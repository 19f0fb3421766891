// Package models defines the synchronized domain types shared across
// internal packages.
package models

import (
	"fmt"
	"time"

	apperrors "github.com/carbsync/carbsync/internal/errors"
)

// Collection names one synchronized entity collection. The value doubles
// as the bbolt bucket name and the snapshot file stem.
type Collection string

const (
	Foods      Collection = "foods"
	Meals      Collection = "meals"
	Ongoing    Collection = "ongoing"
	CarbRatios Collection = "carb_ratios"
	StartDoses Collection = "start_doses"
	Favorites  Collection = "favorites"
)

// MergedCollections are the collections reconciled record by record with
// last-writer-wins. Ongoing is excluded because it is overwritten whole.
var MergedCollections = []Collection{Foods, Meals, Favorites, CarbRatios, StartDoses}

// AllCollections lists every collection in export order.
var AllCollections = append(append([]Collection{}, MergedCollections...), Ongoing)

// ParseCollection maps a collection name to its Collection.
func ParseCollection(name string) (Collection, error) {
	for _, c := range AllCollections {
		if string(c) == name {
			return c, nil
		}
	}

	return "", fmt.Errorf("%w: %q", apperrors.ErrUnknownCollection, name)
}

// FileName returns the snapshot file name for the collection.
func (c Collection) FileName() string {
	return string(c) + ".csv"
}

// PerRecord reports whether the collection is merged record by record.
func (c Collection) PerRecord() bool {
	return c != Ongoing
}

// Record is implemented by every merge-tracked entity.
type Record interface {
	// Key is the merge identifier: a UUID string, or the hour slot for
	// schedule entries.
	Key() string
	Modified() time.Time
	Tombstoned() bool
}
