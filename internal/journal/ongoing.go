package journal

import (
	"context"
	"fmt"

	"github.com/carbsync/carbsync/internal/dosing"
	apperrors "github.com/carbsync/carbsync/internal/errors"
	"github.com/carbsync/carbsync/internal/models"
	"github.com/carbsync/carbsync/internal/state"
	"github.com/google/uuid"
)

// Ongoing returns the meal being composed on this instance.
func (j *Journal) Ongoing() ([]models.OngoingEntry, error) {
	return state.All[models.OngoingEntry](j.store, models.Ongoing)
}

// ObservedOngoing returns the ongoing meal last imported from a peer.
func (j *Journal) ObservedOngoing() ([]models.OngoingEntry, error) {
	return state.All[models.OngoingEntry](j.store, state.ObservedOngoing)
}

// AddToOngoing appends a portion of a live food to the ongoing meal.
func (j *Journal) AddToOngoing(ctx context.Context, foodRef uuid.UUID, served, notEaten float64) ([]models.OngoingEntry, error) {
	if _, err := j.Food(foodRef); err != nil {
		return nil, err
	}

	entries, err := j.Ongoing()
	if err != nil {
		return nil, err
	}

	entries = append(entries, models.OngoingEntry{FoodRef: foodRef, PortionServed: served, PortionNotEaten: notEaten})

	return j.writeOngoing(ctx, entries)
}

// AddFavoriteToOngoing appends every item of a favorite meal with its
// default portion.
func (j *Journal) AddFavoriteToOngoing(ctx context.Context, id uuid.UUID) ([]models.OngoingEntry, error) {
	fav, err := state.Get[models.FavoriteMeal](j.store, models.Favorites, id.String())
	if err != nil {
		return nil, err
	}

	if fav == nil || fav.Deleted {
		return nil, fmt.Errorf("favorite %s: %w", id, apperrors.ErrNotFound)
	}

	entries, err := j.Ongoing()
	if err != nil {
		return nil, err
	}

	for _, item := range fav.Items {
		if _, err := j.Food(item.FoodRef); err != nil {
			return nil, fmt.Errorf("favorite %s: %w", fav.Name, err)
		}

		entries = append(entries, models.OngoingEntry{FoodRef: item.FoodRef, PortionServed: item.Portion})
	}

	return j.writeOngoing(ctx, entries)
}

// UpdateOngoing changes the portion of the entry at index.
func (j *Journal) UpdateOngoing(ctx context.Context, index int, served, notEaten float64) ([]models.OngoingEntry, error) {
	entries, err := j.Ongoing()
	if err != nil {
		return nil, err
	}

	if index < 0 || index >= len(entries) {
		return nil, fmt.Errorf("ongoing entry %d: %w", index, apperrors.ErrNotFound)
	}

	entries[index].PortionServed = served
	entries[index].PortionNotEaten = notEaten

	return j.writeOngoing(ctx, entries)
}

// RemoveOngoing drops the entry at index.
func (j *Journal) RemoveOngoing(ctx context.Context, index int) ([]models.OngoingEntry, error) {
	entries, err := j.Ongoing()
	if err != nil {
		return nil, err
	}

	if index < 0 || index >= len(entries) {
		return nil, fmt.Errorf("ongoing entry %d: %w", index, apperrors.ErrNotFound)
	}

	entries = append(entries[:index], entries[index+1:]...)

	return j.writeOngoing(ctx, entries)
}

// ClearOngoing discards the ongoing meal.
func (j *Journal) ClearOngoing(ctx context.Context) error {
	_, err := j.writeOngoing(ctx, nil)
	return err
}

// writeOngoing recomputes running totals, replaces the stored meal and
// exports it.
func (j *Journal) writeOngoing(ctx context.Context, entries []models.OngoingEntry) ([]models.OngoingEntry, error) {
	total := 0.0

	for i, e := range entries {
		// A food deleted by a peer since it was added counts as zero.
		f, err := state.Get[models.FoodItem](j.store, models.Foods, e.FoodRef.String())
		if err != nil {
			return nil, err
		}

		if f != nil {
			total += dosing.FoodNet(*f, e.PortionServed, e.PortionNotEaten).Carbs
		}

		entries[i].RunningTotal = total
	}

	if err := state.ReplaceList(j.store, models.Ongoing, entries); err != nil {
		return nil, fmt.Errorf("saving ongoing meal: %w", err)
	}

	j.export(ctx, models.Ongoing)

	return entries, nil
}
