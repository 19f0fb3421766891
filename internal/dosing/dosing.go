// Package dosing computes net nutrients of meal portions and the insulin
// estimate for a meal from the hourly dosing schedules.
package dosing

import (
	"fmt"
	"math"

	apperrors "github.com/carbsync/carbsync/internal/errors"
	"github.com/carbsync/carbsync/internal/models"
)

// Nutrients is an amount of carbohydrate, fat and protein in grams.
type Nutrients struct {
	Carbs   float64
	Fat     float64
	Protein float64
}

// Add returns the sum of n and o.
func (n Nutrients) Add(o Nutrients) Nutrients {
	return Nutrients{Carbs: n.Carbs + o.Carbs, Fat: n.Fat + o.Fat, Protein: n.Protein + o.Protein}
}

// Eaten returns the eaten part of a portion. Leftovers larger than the
// served amount count as nothing eaten.
func Eaten(served, notEaten float64) float64 {
	return math.Max(served-notEaten, 0)
}

// Net is the nutrient amount of an eaten portion. In weight mode perUnit
// is per 100 g and the portion is in grams; in piece mode perUnit is per
// piece and the portion is a piece count.
func Net(perUnit, served, notEaten float64, perPiece bool) float64 {
	eaten := Eaten(served, notEaten)
	if perPiece {
		return eaten * perUnit
	}

	return eaten * perUnit / 100
}

// FoodNet returns the nutrients of a portion of a catalog food.
func FoodNet(f models.FoodItem, served, notEaten float64) Nutrients {
	if f.PerPiece {
		return Nutrients{
			Carbs:   Net(f.CarbsPerPiece, served, notEaten, true),
			Fat:     Net(f.FatPerPiece, served, notEaten, true),
			Protein: Net(f.ProteinPerPiece, served, notEaten, true),
		}
	}

	return Nutrients{
		Carbs:   Net(f.CarbsPer100, served, notEaten, false),
		Fat:     Net(f.FatPer100, served, notEaten, false),
		Protein: Net(f.ProteinPer100, served, notEaten, false),
	}
}

// EntryNet returns the nutrients of one meal entry.
func EntryNet(e models.MealEntry) Nutrients {
	return Nutrients{
		Carbs:   Net(e.Carbs, e.PortionServed, e.PortionNotEaten, e.PerPiece),
		Fat:     Net(e.Fat, e.PortionServed, e.PortionNotEaten, e.PerPiece),
		Protein: Net(e.Protein, e.PortionServed, e.PortionNotEaten, e.PerPiece),
	}
}

// MealNet sums the nutrients of every entry.
func MealNet(entries []models.MealEntry) Nutrients {
	var total Nutrients
	for _, e := range entries {
		total = total.Add(EntryNet(e))
	}

	return total
}

// Schedule maps an hour slot to its value. Slots that were never set are
// absent.
type Schedule map[int]float64

// NewSchedule builds a schedule from stored slots. Out-of-range slots are
// rejected.
func NewSchedule(entries []models.ScheduleEntry) (Schedule, error) {
	s := make(Schedule, len(entries))

	for _, e := range entries {
		if e.Hour < 0 || e.Hour >= models.HoursPerDay {
			return nil, fmt.Errorf("%w: %d", apperrors.ErrInvalidHourSlot, e.Hour)
		}

		s[e.Hour] = e.Value
	}

	return s, nil
}

// At returns the value for the slot containing hour.
func (s Schedule) At(hour int) (float64, bool) {
	v, ok := s[hour]
	return v, ok
}

// Dose is the insulin estimate for a meal.
type Dose struct {
	Hour      int
	CarbRatio float64
	MealBolus float64
	StartDose float64
}

// Total is the meal bolus plus the start dose.
func (d Dose) Total() float64 {
	return d.MealBolus + d.StartDose
}

// Bolus estimates the dose for netCarbs eaten in the given hour. The carb
// ratio is grams of carbohydrate covered by one unit. A missing or
// non-positive ratio returns ErrNoCarbRatio; a missing start dose is zero.
func Bolus(netCarbs float64, hour int, ratios, startDoses Schedule) (Dose, error) {
	d := Dose{Hour: hour}

	if hour < 0 || hour >= models.HoursPerDay {
		return d, fmt.Errorf("%w: %d", apperrors.ErrInvalidHourSlot, hour)
	}

	ratio, ok := ratios.At(hour)
	if !ok || ratio <= 0 {
		return d, fmt.Errorf("%w %d", apperrors.ErrNoCarbRatio, hour)
	}

	d.CarbRatio = ratio
	d.MealBolus = netCarbs / ratio
	d.StartDose, _ = startDoses.At(hour)

	return d, nil
}
