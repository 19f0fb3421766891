package codec

import (
	"fmt"

	apperrors "github.com/carbsync/carbsync/internal/errors"
	"github.com/carbsync/carbsync/internal/models"
)

// Food encodes the food catalog.
var Food = Codec[models.FoodItem]{
	Header: []string{
		"id", "name", "carbsPer100", "carbsPerPiece", "fatPer100", "fatPerPiece",
		"netCarbs", "netFat", "netProtein", "perPieceMode", "proteinPer100",
		"proteinPerPiece", "usageCount", "notes", "deleted", "lastEdited",
	},
	Fixed:  16,
	encode: encodeFood,
	decode: decodeFood,
}

func encodeFood(f models.FoodItem) []string {
	return []string{
		f.ID.String(),
		CleanText(f.Name),
		formatFloat(f.CarbsPer100),
		formatFloat(f.CarbsPerPiece),
		formatFloat(f.FatPer100),
		formatFloat(f.FatPerPiece),
		formatFloat(f.NetCarbs),
		formatFloat(f.NetFat),
		formatFloat(f.NetProtein),
		formatBool(f.PerPiece),
		formatFloat(f.ProteinPer100),
		formatFloat(f.ProteinPerPiece),
		fmt.Sprint(f.UsageCount),
		CleanText(f.Notes),
		formatBool(f.Deleted),
		formatTime(f.LastEdited),
	}
}

func decodeFood(fields []string) (models.FoodItem, error) {
	r := &fieldReader{fields: fields}

	f := models.FoodItem{
		ID:              r.uuid("id"),
		Name:            r.text(),
		CarbsPer100:     r.float("carbsPer100"),
		CarbsPerPiece:   r.float("carbsPerPiece"),
		FatPer100:       r.float("fatPer100"),
		FatPerPiece:     r.float("fatPerPiece"),
		NetCarbs:        r.float("netCarbs"),
		NetFat:          r.float("netFat"),
		NetProtein:      r.float("netProtein"),
		PerPiece:        r.bool("perPieceMode"),
		ProteinPer100:   r.float("proteinPer100"),
		ProteinPerPiece: r.float("proteinPerPiece"),
		UsageCount:      r.int("usageCount"),
		Notes:           r.text(),
		Deleted:         r.bool("deleted"),
		LastEdited:      r.time("lastEdited"),
	}

	return f, r.err
}

// Meal encodes meal history. Each row carries the meal columns followed by
// one nine-column block per entry.
var Meal = Codec[models.Meal]{
	Header: []string{
		"id", "mealTimestamp", "totalNetCarbs", "totalNetFat", "totalNetProtein",
		"totalNetBolus", "deleted", "lastEdited",
		"entryId", "foodRef", "name", "carbs", "fat", "protein",
		"portionServed", "portionNotEaten", "perPieceMode",
	},
	Fixed:  8,
	Repeat: 9,
	encode: encodeMeal,
	decode: decodeMeal,
}

func encodeMeal(m models.Meal) []string {
	out := []string{
		m.ID.String(),
		formatTime(m.Timestamp),
		formatFloat(m.TotalNetCarbs),
		formatFloat(m.TotalNetFat),
		formatFloat(m.TotalNetProtein),
		formatFloat(m.TotalNetBolus),
		formatBool(m.Deleted),
		formatTime(m.LastEdited),
	}

	for _, e := range m.Entries {
		out = append(out,
			e.ID.String(),
			e.FoodRef.String(),
			CleanText(e.Name),
			formatFloat(e.Carbs),
			formatFloat(e.Fat),
			formatFloat(e.Protein),
			formatFloat(e.PortionServed),
			formatFloat(e.PortionNotEaten),
			formatBool(e.PerPiece),
		)
	}

	return out
}

func decodeMeal(fields []string) (models.Meal, error) {
	r := &fieldReader{fields: fields}

	m := models.Meal{
		ID:              r.uuid("id"),
		Timestamp:       r.time("mealTimestamp"),
		TotalNetCarbs:   r.float("totalNetCarbs"),
		TotalNetFat:     r.float("totalNetFat"),
		TotalNetProtein: r.float("totalNetProtein"),
		TotalNetBolus:   r.float("totalNetBolus"),
		Deleted:         r.bool("deleted"),
		LastEdited:      r.time("lastEdited"),
	}

	for r.err == nil && r.remaining() > 0 {
		m.Entries = append(m.Entries, models.MealEntry{
			ID:              r.uuid("entryId"),
			FoodRef:         r.uuid("foodRef"),
			Name:            r.text(),
			Carbs:           r.float("carbs"),
			Fat:             r.float("fat"),
			Protein:         r.float("protein"),
			PortionServed:   r.float("portionServed"),
			PortionNotEaten: r.float("portionNotEaten"),
			PerPiece:        r.bool("perPieceMode"),
		})
	}

	return m, r.err
}

// Ongoing encodes the meal currently being composed.
var Ongoing = Codec[models.OngoingEntry]{
	Header: []string{"foodRef", "portionServed", "portionNotEaten", "runningTotalRegistered"},
	Fixed:  4,
	encode: func(e models.OngoingEntry) []string {
		return []string{
			e.FoodRef.String(),
			formatFloat(e.PortionServed),
			formatFloat(e.PortionNotEaten),
			formatFloat(e.RunningTotal),
		}
	},
	decode: func(fields []string) (models.OngoingEntry, error) {
		r := &fieldReader{fields: fields}

		e := models.OngoingEntry{
			FoodRef:         r.uuid("foodRef"),
			PortionServed:   r.float("portionServed"),
			PortionNotEaten: r.float("portionNotEaten"),
			RunningTotal:    r.float("runningTotalRegistered"),
		}

		return e, r.err
	},
}

// Schedule encodes a 24-slot dosing schedule (carb ratio or start dose).
var Schedule = Codec[models.ScheduleEntry]{
	Header: []string{"id", "hourSlot", "value", "lastEdited"},
	Fixed:  4,
	encode: func(s models.ScheduleEntry) []string {
		return []string{
			s.ID.String(),
			fmt.Sprint(s.Hour),
			formatFloat(s.Value),
			formatTime(s.LastEdited),
		}
	},
	decode: func(fields []string) (models.ScheduleEntry, error) {
		r := &fieldReader{fields: fields}

		s := models.ScheduleEntry{
			ID:         r.uuid("id"),
			Hour:       r.int("hourSlot"),
			Value:      r.float("value"),
			LastEdited: r.time("lastEdited"),
		}

		if r.err == nil && (s.Hour < 0 || s.Hour >= models.HoursPerDay) {
			return s, fmt.Errorf("hourSlot %d: %w", s.Hour, apperrors.ErrInvalidHourSlot)
		}

		return s, r.err
	},
}

// Favorite encodes favorite meal definitions. Each row carries the
// favorite columns followed by one two-column block per item.
var Favorite = Codec[models.FavoriteMeal]{
	Header: []string{"id", "name", "deleted", "lastEdited", "foodRef", "portion"},
	Fixed:  4,
	Repeat: 2,
	encode: func(f models.FavoriteMeal) []string {
		out := []string{
			f.ID.String(),
			CleanText(f.Name),
			formatBool(f.Deleted),
			formatTime(f.LastEdited),
		}

		for _, it := range f.Items {
			out = append(out, it.FoodRef.String(), formatFloat(it.Portion))
		}

		return out
	},
	decode: func(fields []string) (models.FavoriteMeal, error) {
		r := &fieldReader{fields: fields}

		f := models.FavoriteMeal{
			ID:         r.uuid("id"),
			Name:       r.text(),
			Deleted:    r.bool("deleted"),
			LastEdited: r.time("lastEdited"),
		}

		for r.err == nil && r.remaining() > 0 {
			f.Items = append(f.Items, models.FavoriteItem{
				FoodRef: r.uuid("foodRef"),
				Portion: r.float("portion"),
			})
		}

		return f, r.err
	},
}
