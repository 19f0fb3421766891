package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/carbsync/carbsync/internal/errors"
	"github.com/carbsync/carbsync/internal/models"
	"github.com/carbsync/carbsync/internal/state"
	"github.com/carbsync/carbsync/internal/syncer"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// --- ongoing ---

func TestAddToOngoing_RunningTotal(t *testing.T) {
	j, exp := newTestJournal(t)
	allowExports(exp)
	ctx := context.Background()

	rice := mustFood(t, j, models.FoodItem{Name: "Rice", CarbsPer100: 30})
	egg := mustFood(t, j, models.FoodItem{Name: "Egg", PerPiece: true, CarbsPerPiece: 0.5})

	_, err := j.AddToOngoing(ctx, rice.ID, 200, 50)
	require.NoError(t, err)
	entries, err := j.AddToOngoing(ctx, egg.ID, 2, 0)
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.InDelta(t, 45, entries[0].RunningTotal, 1e-9)
	assert.InDelta(t, 46, entries[1].RunningTotal, 1e-9)

	stored, err := j.Ongoing()
	require.NoError(t, err)
	assert.Equal(t, entries, stored)
}

func TestAddToOngoing_UnknownFood(t *testing.T) {
	j, _ := newTestJournal(t)

	_, err := j.AddToOngoing(context.Background(), uuid.New(), 100, 0)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestUpdateAndRemoveOngoing(t *testing.T) {
	j, exp := newTestJournal(t)
	allowExports(exp)
	ctx := context.Background()

	bread := mustFood(t, j, models.FoodItem{Name: "Bread", CarbsPer100: 50})
	_, err := j.AddToOngoing(ctx, bread.ID, 100, 0)
	require.NoError(t, err)
	_, err = j.AddToOngoing(ctx, bread.ID, 40, 0)
	require.NoError(t, err)

	entries, err := j.UpdateOngoing(ctx, 0, 60, 20)
	require.NoError(t, err)
	assert.InDelta(t, 20, entries[0].RunningTotal, 1e-9)
	assert.InDelta(t, 40, entries[1].RunningTotal, 1e-9)

	entries, err = j.RemoveOngoing(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.InDelta(t, 20, entries[0].RunningTotal, 1e-9)

	_, err = j.RemoveOngoing(ctx, 5)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	_, err = j.UpdateOngoing(ctx, -1, 1, 0)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	require.NoError(t, j.ClearOngoing(ctx))
	entries, err = j.Ongoing()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOngoingChangesExportOngoing(t *testing.T) {
	j, exp := newTestJournal(t)
	exp.EXPECT().Export(gomock.Any(), models.Foods).Return(syncer.ExportResult{}, nil)
	exp.EXPECT().Export(gomock.Any(), models.Ongoing).Return(syncer.ExportResult{}, nil).Times(2)
	ctx := context.Background()

	f := mustFood(t, j, models.FoodItem{Name: "Pasta", CarbsPer100: 70})
	_, err := j.AddToOngoing(ctx, f.ID, 80, 0)
	require.NoError(t, err)
	require.NoError(t, j.ClearOngoing(ctx))
}

func TestAddFavoriteToOngoing(t *testing.T) {
	j, exp := newTestJournal(t)
	allowExports(exp)
	ctx := context.Background()

	oats := mustFood(t, j, models.FoodItem{Name: "Oats", CarbsPer100: 60})
	milk := mustFood(t, j, models.FoodItem{Name: "Milk", CarbsPer100: 5})
	fav, err := j.SaveFavorite(ctx, models.FavoriteMeal{Name: "Porridge", Items: []models.FavoriteItem{
		{FoodRef: oats.ID, Portion: 50},
		{FoodRef: milk.ID, Portion: 200},
	}})
	require.NoError(t, err)

	entries, err := j.AddFavoriteToOngoing(ctx, fav.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.InDelta(t, 40, entries[1].RunningTotal, 1e-9)

	require.NoError(t, j.DeleteFavorite(ctx, fav.ID))
	_, err = j.AddFavoriteToOngoing(ctx, fav.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestObservedOngoing(t *testing.T) {
	j, _ := newTestJournal(t)
	observed := []models.OngoingEntry{{FoodRef: uuid.New(), PortionServed: 10, RunningTotal: 3}}
	require.NoError(t, state.ReplaceList(j.store, state.ObservedOngoing, observed))

	got, err := j.ObservedOngoing()
	require.NoError(t, err)
	assert.Equal(t, observed, got)

	local, err := j.Ongoing()
	require.NoError(t, err)
	assert.Empty(t, local)
}

// --- meals ---

func TestFinalizeMeal(t *testing.T) {
	j, exp := newTestJournal(t)
	allowExports(exp)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 8, 30, 0, 0, time.Local)

	_, err := j.SetSlot(ctx, models.CarbRatios, 8, 10)
	require.NoError(t, err)
	_, err = j.SetSlot(ctx, models.StartDoses, 8, 1)
	require.NoError(t, err)

	rice := mustFood(t, j, models.FoodItem{Name: "Rice", CarbsPer100: 30, FatPer100: 1, ProteinPer100: 3})
	egg := mustFood(t, j, models.FoodItem{Name: "Egg", PerPiece: true, CarbsPerPiece: 1, ProteinPerPiece: 6})

	_, err = j.AddToOngoing(ctx, rice.ID, 200, 0)
	require.NoError(t, err)
	_, err = j.AddToOngoing(ctx, egg.ID, 2, 0)
	require.NoError(t, err)
	_, err = j.AddToOngoing(ctx, rice.ID, 100, 100)
	require.NoError(t, err)

	meal, err := j.FinalizeMeal(ctx, at)
	require.NoError(t, err)

	require.Len(t, meal.Entries, 3)
	assert.Equal(t, "Rice", meal.Entries[0].Name)
	assert.Equal(t, 30.0, meal.Entries[0].Carbs)
	assert.True(t, meal.Entries[1].PerPiece)
	assert.Equal(t, 1.0, meal.Entries[1].Carbs)
	assert.InDelta(t, 62, meal.TotalNetCarbs, 1e-9)
	assert.InDelta(t, 18, meal.TotalNetProtein, 1e-9)
	assert.InDelta(t, 7.2, meal.TotalNetBolus, 1e-9)
	assert.True(t, meal.Timestamp.Equal(at))

	// Usage counted once per food.
	gotRice, err := j.Food(rice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gotRice.UsageCount)
	assert.True(t, gotRice.LastEdited.After(rice.LastEdited))

	ongoing, err := j.Ongoing()
	require.NoError(t, err)
	assert.Empty(t, ongoing)

	meals, err := j.ActiveMeals()
	require.NoError(t, err)
	require.Len(t, meals, 1)
	assert.Equal(t, meal.ID, meals[0].ID)
}

func TestFinalizeMeal_ExportsAffectedCollections(t *testing.T) {
	j, exp := newTestJournal(t)
	ctx := context.Background()

	exp.EXPECT().Export(gomock.Any(), models.Foods).Return(syncer.ExportResult{}, nil).Times(2)
	exp.EXPECT().Export(gomock.Any(), models.Ongoing).Return(syncer.ExportResult{}, nil).Times(2)
	exp.EXPECT().Export(gomock.Any(), models.Meals).Return(syncer.ExportResult{}, nil).Times(1)

	f := mustFood(t, j, models.FoodItem{Name: "Apple", CarbsPer100: 12})
	_, err := j.AddToOngoing(ctx, f.ID, 150, 0)
	require.NoError(t, err)

	_, err = j.FinalizeMeal(ctx, time.Now())
	require.NoError(t, err)
}

func TestFinalizeMeal_NoCarbRatioLeavesBolusZero(t *testing.T) {
	j, exp := newTestJournal(t)
	allowExports(exp)
	ctx := context.Background()

	f := mustFood(t, j, models.FoodItem{Name: "Apple", CarbsPer100: 12})
	_, err := j.AddToOngoing(ctx, f.ID, 100, 0)
	require.NoError(t, err)

	meal, err := j.FinalizeMeal(ctx, time.Now())
	require.NoError(t, err)
	assert.InDelta(t, 12, meal.TotalNetCarbs, 1e-9)
	assert.Equal(t, 0.0, meal.TotalNetBolus)
}

func TestFinalizeMeal_Empty(t *testing.T) {
	j, _ := newTestJournal(t)

	_, err := j.FinalizeMeal(context.Background(), time.Now())
	assert.True(t, errors.Is(err, apperrors.ErrEmptyMeal))
}

func TestSaveMeal_EditBumpsParentStamp(t *testing.T) {
	j, exp := newTestJournal(t)
	allowExports(exp)
	ctx := context.Background()

	f := mustFood(t, j, models.FoodItem{Name: "Apple", CarbsPer100: 12})
	_, err := j.AddToOngoing(ctx, f.ID, 100, 0)
	require.NoError(t, err)
	meal, err := j.FinalizeMeal(ctx, time.Now())
	require.NoError(t, err)

	meal.Entries[0].PortionNotEaten = 50
	edited, err := j.SaveMeal(ctx, meal)
	require.NoError(t, err)

	assert.True(t, edited.LastEdited.After(meal.LastEdited))
	assert.InDelta(t, 6, edited.TotalNetCarbs, 1e-9)
	assert.Equal(t, meal.Entries[0].ID, edited.Entries[0].ID)
}

func TestSaveMeal_AssignsEntryIDs(t *testing.T) {
	j, exp := newTestJournal(t)
	allowExports(exp)

	m, err := j.SaveMeal(context.Background(), models.Meal{
		Timestamp: time.Now(),
		Entries:   []models.MealEntry{{Name: "Soup", Carbs: 8, PortionServed: 300}},
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, m.ID)
	assert.NotEqual(t, uuid.Nil, m.Entries[0].ID)
	assert.InDelta(t, 24, m.TotalNetCarbs, 1e-9)
}

func TestDeleteMeal(t *testing.T) {
	j, exp := newTestJournal(t)
	allowExports(exp)
	ctx := context.Background()

	older, err := j.SaveMeal(ctx, models.Meal{Timestamp: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	newer, err := j.SaveMeal(ctx, models.Meal{Timestamp: time.Now()})
	require.NoError(t, err)

	meals, err := j.ActiveMeals()
	require.NoError(t, err)
	require.Len(t, meals, 2)
	assert.Equal(t, newer.ID, meals[0].ID)

	require.NoError(t, j.DeleteMeal(ctx, newer.ID))

	meals, err = j.ActiveMeals()
	require.NoError(t, err)
	require.Len(t, meals, 1)
	assert.Equal(t, older.ID, meals[0].ID)

	assert.True(t, errors.Is(j.DeleteMeal(ctx, uuid.New()), apperrors.ErrNotFound))
}
