package journal

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	apperrors "github.com/carbsync/carbsync/internal/errors"
	"github.com/carbsync/carbsync/internal/models"
	"github.com/carbsync/carbsync/internal/state"
	"github.com/google/uuid"
)

// SaveFood creates or updates a catalog food. A zero ID gets a new one.
func (j *Journal) SaveFood(ctx context.Context, f models.FoodItem) (models.FoodItem, error) {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}

	prev, err := state.Get[models.FoodItem](j.store, models.Foods, f.Key())
	if err != nil {
		return f, err
	}

	if prev != nil {
		f.LastEdited = prev.LastEdited
	}

	f.Name = strings.TrimSpace(f.Name)
	f.LastEdited = j.clock.Stamp(f.LastEdited)

	if err := state.Put(j.store, models.Foods, f); err != nil {
		return f, fmt.Errorf("saving food: %w", err)
	}

	j.export(ctx, models.Foods)

	return f, nil
}

// DeleteFood tombstones a food. Meals that used it keep their copy.
func (j *Journal) DeleteFood(ctx context.Context, id uuid.UUID) error {
	f, err := state.Get[models.FoodItem](j.store, models.Foods, id.String())
	if err != nil {
		return err
	}

	if f == nil {
		return fmt.Errorf("food %s: %w", id, apperrors.ErrNotFound)
	}

	if f.Deleted {
		return nil
	}

	f.Deleted = true
	f.LastEdited = j.clock.Stamp(f.LastEdited)

	if err := state.Put(j.store, models.Foods, *f); err != nil {
		return fmt.Errorf("deleting food: %w", err)
	}

	j.export(ctx, models.Foods)

	return nil
}

// Food returns a live catalog food.
func (j *Journal) Food(id uuid.UUID) (models.FoodItem, error) {
	f, err := state.Get[models.FoodItem](j.store, models.Foods, id.String())
	if err != nil {
		return models.FoodItem{}, err
	}

	if f == nil || f.Deleted {
		return models.FoodItem{}, fmt.Errorf("food %s: %w", id, apperrors.ErrNotFound)
	}

	return *f, nil
}

// ActiveFoods lists live foods, most used first, then by name.
func (j *Journal) ActiveFoods() ([]models.FoodItem, error) {
	foods, err := active[models.FoodItem](j.store, models.Foods)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(foods, func(a, b models.FoodItem) int {
		if c := cmp.Compare(b.UsageCount, a.UsageCount); c != 0 {
			return c
		}

		return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})

	return foods, nil
}

// SaveFavorite creates or updates a favorite meal.
func (j *Journal) SaveFavorite(ctx context.Context, f models.FavoriteMeal) (models.FavoriteMeal, error) {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}

	prev, err := state.Get[models.FavoriteMeal](j.store, models.Favorites, f.Key())
	if err != nil {
		return f, err
	}

	if prev != nil {
		f.LastEdited = prev.LastEdited
	}

	f.Name = strings.TrimSpace(f.Name)
	f.LastEdited = j.clock.Stamp(f.LastEdited)

	if err := state.Put(j.store, models.Favorites, f); err != nil {
		return f, fmt.Errorf("saving favorite: %w", err)
	}

	j.export(ctx, models.Favorites)

	return f, nil
}

// DeleteFavorite tombstones a favorite meal.
func (j *Journal) DeleteFavorite(ctx context.Context, id uuid.UUID) error {
	f, err := state.Get[models.FavoriteMeal](j.store, models.Favorites, id.String())
	if err != nil {
		return err
	}

	if f == nil {
		return fmt.Errorf("favorite %s: %w", id, apperrors.ErrNotFound)
	}

	if f.Deleted {
		return nil
	}

	f.Deleted = true
	f.LastEdited = j.clock.Stamp(f.LastEdited)

	if err := state.Put(j.store, models.Favorites, *f); err != nil {
		return fmt.Errorf("deleting favorite: %w", err)
	}

	j.export(ctx, models.Favorites)

	return nil
}

// ActiveFavorites lists live favorites by name.
func (j *Journal) ActiveFavorites() ([]models.FavoriteMeal, error) {
	favs, err := active[models.FavoriteMeal](j.store, models.Favorites)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(favs, func(a, b models.FavoriteMeal) int {
		return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})

	return favs, nil
}

// active returns the records of c that are not tombstoned.
func active[T models.Record](s *state.State, c models.Collection) ([]T, error) {
	all, err := state.All[T](s, c)
	if err != nil {
		return nil, err
	}

	return slices.DeleteFunc(all, func(r T) bool { return r.Tombstoned() }), nil
}
