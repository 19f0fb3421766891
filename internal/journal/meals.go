package journal

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/carbsync/carbsync/internal/dosing"
	apperrors "github.com/carbsync/carbsync/internal/errors"
	"github.com/carbsync/carbsync/internal/models"
	"github.com/carbsync/carbsync/internal/state"
	"github.com/google/uuid"
)

// FinalizeMeal turns the ongoing meal into a history record eaten at
// at. Catalog values are copied into the entries, totals and the bolus
// estimate are computed, each food's usage count is incremented and the
// ongoing meal is cleared.
func (j *Journal) FinalizeMeal(ctx context.Context, at time.Time) (models.Meal, error) {
	ongoing, err := j.Ongoing()
	if err != nil {
		return models.Meal{}, err
	}

	if len(ongoing) == 0 {
		return models.Meal{}, apperrors.ErrEmptyMeal
	}

	meal := models.Meal{ID: uuid.New(), Timestamp: at.UTC()}
	used := make(map[uuid.UUID]*models.FoodItem)

	for _, o := range ongoing {
		f, ok := used[o.FoodRef]
		if !ok {
			f, err = state.Get[models.FoodItem](j.store, models.Foods, o.FoodRef.String())
			if err != nil {
				return models.Meal{}, err
			}

			if f == nil {
				return models.Meal{}, fmt.Errorf("food %s: %w", o.FoodRef, apperrors.ErrNotFound)
			}

			used[o.FoodRef] = f
		}

		meal.Entries = append(meal.Entries, entryFor(*f, o))
	}

	if err := j.applyTotals(&meal, at.Local().Hour()); err != nil {
		return models.Meal{}, err
	}

	meal.LastEdited = j.clock.Stamp(time.Time{})

	if err := state.Put(j.store, models.Meals, meal); err != nil {
		return models.Meal{}, fmt.Errorf("saving meal: %w", err)
	}

	for _, f := range used {
		f.UsageCount++
		f.LastEdited = j.clock.Stamp(f.LastEdited)

		if err := state.Put(j.store, models.Foods, *f); err != nil {
			return meal, fmt.Errorf("updating usage of %s: %w", f.Name, err)
		}
	}

	if err := state.ReplaceList[models.OngoingEntry](j.store, models.Ongoing, nil); err != nil {
		return meal, fmt.Errorf("clearing ongoing meal: %w", err)
	}

	j.logger.Info("meal finalized",
		slog.String("meal", meal.ID.String()),
		slog.Int("entries", len(meal.Entries)),
		slog.Float64("net_carbs", meal.TotalNetCarbs),
		slog.Float64("bolus", meal.TotalNetBolus),
	)

	j.export(ctx, models.Meals, models.Foods, models.Ongoing)

	return meal, nil
}

func entryFor(f models.FoodItem, o models.OngoingEntry) models.MealEntry {
	e := models.MealEntry{
		ID:              uuid.New(),
		FoodRef:         f.ID,
		Name:            f.Name,
		PortionServed:   o.PortionServed,
		PortionNotEaten: o.PortionNotEaten,
		PerPiece:        f.PerPiece,
	}

	if f.PerPiece {
		e.Carbs, e.Fat, e.Protein = f.CarbsPerPiece, f.FatPerPiece, f.ProteinPerPiece
	} else {
		e.Carbs, e.Fat, e.Protein = f.CarbsPer100, f.FatPer100, f.ProteinPer100
	}

	return e
}

// applyTotals sets the nutrient totals and the bolus for the given local
// hour. Without a carb ratio for that hour the bolus is left at zero.
func (j *Journal) applyTotals(m *models.Meal, hour int) error {
	net := dosing.MealNet(m.Entries)
	m.TotalNetCarbs = net.Carbs
	m.TotalNetFat = net.Fat
	m.TotalNetProtein = net.Protein
	m.TotalNetBolus = 0

	ratios, err := j.Schedule(models.CarbRatios)
	if err != nil {
		return err
	}

	starts, err := j.Schedule(models.StartDoses)
	if err != nil {
		return err
	}

	dose, err := dosing.Bolus(net.Carbs, hour, ratios, starts)
	if errors.Is(err, apperrors.ErrNoCarbRatio) {
		j.logger.Warn("no carb ratio set, bolus not estimated", slog.Int("hour", hour))
		return nil
	}

	if err != nil {
		return err
	}

	m.TotalNetBolus = dose.Total()

	return nil
}

// SaveMeal stores an edited meal. Totals and bolus are recomputed, and
// the meal's modification time covers its entries.
func (j *Journal) SaveMeal(ctx context.Context, m models.Meal) (models.Meal, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}

	prev, err := state.Get[models.Meal](j.store, models.Meals, m.Key())
	if err != nil {
		return m, err
	}

	if prev != nil {
		m.LastEdited = prev.LastEdited
	}

	for i := range m.Entries {
		if m.Entries[i].ID == uuid.Nil {
			m.Entries[i].ID = uuid.New()
		}
	}

	if err := j.applyTotals(&m, m.Timestamp.Local().Hour()); err != nil {
		return m, err
	}

	m.LastEdited = j.clock.Stamp(m.LastEdited)

	if err := state.Put(j.store, models.Meals, m); err != nil {
		return m, fmt.Errorf("saving meal: %w", err)
	}

	j.export(ctx, models.Meals)

	return m, nil
}

// DeleteMeal tombstones a meal.
func (j *Journal) DeleteMeal(ctx context.Context, id uuid.UUID) error {
	m, err := state.Get[models.Meal](j.store, models.Meals, id.String())
	if err != nil {
		return err
	}

	if m == nil {
		return fmt.Errorf("meal %s: %w", id, apperrors.ErrNotFound)
	}

	if m.Deleted {
		return nil
	}

	m.Deleted = true
	m.LastEdited = j.clock.Stamp(m.LastEdited)

	if err := state.Put(j.store, models.Meals, *m); err != nil {
		return fmt.Errorf("deleting meal: %w", err)
	}

	j.export(ctx, models.Meals)

	return nil
}

// ActiveMeals lists live meals, most recent first.
func (j *Journal) ActiveMeals() ([]models.Meal, error) {
	meals, err := active[models.Meal](j.store, models.Meals)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(meals, func(a, b models.Meal) int {
		return cmp.Compare(b.Timestamp.UnixNano(), a.Timestamp.UnixNano())
	})

	return meals, nil
}
