package syncer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/carbsync/carbsync/internal/codec"
	apperrors "github.com/carbsync/carbsync/internal/errors"
	"github.com/carbsync/carbsync/internal/models"
	"github.com/carbsync/carbsync/internal/state"
)

// binding ties a collection to its codec and merge rule. Stored values
// are the JSON form of the model type.
type binding interface {
	encode(w io.Writer, stored []state.Entry) error
	decode(data []byte) ([]state.Entry, []codec.RowError, error)
	// newer reports whether incoming replaces local.
	newer(local, incoming []byte) (bool, error)
}

var bindings = map[models.Collection]binding{
	models.Foods:      recordBinding[models.FoodItem]{codec: codec.Food},
	models.Meals:      recordBinding[models.Meal]{codec: codec.Meal},
	models.Favorites:  recordBinding[models.FavoriteMeal]{codec: codec.Favorite},
	models.CarbRatios: recordBinding[models.ScheduleEntry]{codec: codec.Schedule},
	models.StartDoses: recordBinding[models.ScheduleEntry]{codec: codec.Schedule},
	models.Ongoing:    listBinding[models.OngoingEntry]{codec: codec.Ongoing},
}

func bindingFor(c models.Collection) (binding, error) {
	b, ok := bindings[c]
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownCollection, c)
	}

	return b, nil
}

func decodeStored[T any](stored []state.Entry) ([]T, error) {
	out := make([]T, 0, len(stored))

	for _, e := range stored {
		var rec T
		if err := json.Unmarshal(e.Value, &rec); err != nil {
			return nil, fmt.Errorf("decoding stored record %s: %w", e.Key, err)
		}

		out = append(out, rec)
	}

	return out, nil
}

// recordBinding merges record by record with last-writer-wins.
type recordBinding[T models.Record] struct {
	codec codec.Codec[T]
}

func (b recordBinding[T]) encode(w io.Writer, stored []state.Entry) error {
	recs, err := decodeStored[T](stored)
	if err != nil {
		return err
	}

	return b.codec.Encode(w, recs)
}

func (b recordBinding[T]) decode(data []byte) ([]state.Entry, []codec.RowError, error) {
	res, err := b.codec.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}

	entries := make([]state.Entry, 0, len(res.Records))

	for _, rec := range res.Records {
		value, err := json.Marshal(rec)
		if err != nil {
			return nil, nil, err
		}

		entries = append(entries, state.Entry{Key: rec.Key(), Value: value})
	}

	return entries, res.Errors, nil
}

// newer is the whole conflict rule: strictly later wins, ties keep local.
func (b recordBinding[T]) newer(local, incoming []byte) (bool, error) {
	var l, in T

	if err := json.Unmarshal(local, &l); err != nil {
		return false, fmt.Errorf("decoding local record: %w", err)
	}

	if err := json.Unmarshal(incoming, &in); err != nil {
		return false, fmt.Errorf("decoding incoming record: %w", err)
	}

	return in.Modified().After(l.Modified()), nil
}

// listBinding handles collections that are replaced whole on import.
type listBinding[T any] struct {
	codec codec.Codec[T]
}

func (b listBinding[T]) encode(w io.Writer, stored []state.Entry) error {
	recs, err := decodeStored[T](stored)
	if err != nil {
		return err
	}

	return b.codec.Encode(w, recs)
}

func (b listBinding[T]) decode(data []byte) ([]state.Entry, []codec.RowError, error) {
	res, err := b.codec.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}

	entries := make([]state.Entry, 0, len(res.Records))

	for i, rec := range res.Records {
		value, err := json.Marshal(rec)
		if err != nil {
			return nil, nil, err
		}

		entries = append(entries, state.Entry{Key: state.ListKey(i), Value: value})
	}

	return entries, res.Errors, nil
}

func (b listBinding[T]) newer(local, incoming []byte) (bool, error) {
	return true, nil
}
