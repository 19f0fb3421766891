package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Meal is a finalized meal with its entries. A meal and its entries are
// merged as one record: editing an entry must bump the meal's LastEdited.
type Meal struct {
	ID              uuid.UUID   `json:"id"`
	Timestamp       time.Time   `json:"timestamp"`
	TotalNetCarbs   float64     `json:"total_net_carbs"`
	TotalNetFat     float64     `json:"total_net_fat"`
	TotalNetProtein float64     `json:"total_net_protein"`
	TotalNetBolus   float64     `json:"total_net_bolus"`
	Entries         []MealEntry `json:"entries"`
	Deleted         bool        `json:"deleted"`
	LastEdited      time.Time   `json:"last_edited"`
}

// MealEntry is one food line of a meal. Name and nutrients are copied
// from the catalog at finalize time so history survives catalog edits.
// Carbs, Fat and Protein are per 100 g, or per piece when PerPiece is set.
type MealEntry struct {
	ID              uuid.UUID `json:"id"`
	FoodRef         uuid.UUID `json:"food_ref"`
	Name            string    `json:"name"`
	Carbs           float64   `json:"carbs"`
	Fat             float64   `json:"fat"`
	Protein         float64   `json:"protein"`
	PortionServed   float64   `json:"portion_served"`
	PortionNotEaten float64   `json:"portion_not_eaten"`
	PerPiece        bool      `json:"per_piece"`
}

func (m Meal) Key() string         { return m.ID.String() }
func (m Meal) Modified() time.Time { return m.LastEdited }
func (m Meal) Tombstoned() bool    { return m.Deleted }

// OngoingEntry is one line of the meal currently being composed.
// RunningTotal is the net carbohydrate total registered so far, so an
// observer can show progress without the other instance's catalog.
type OngoingEntry struct {
	FoodRef         uuid.UUID `json:"food_ref"`
	PortionServed   float64   `json:"portion_served"`
	PortionNotEaten float64   `json:"portion_not_eaten"`
	RunningTotal    float64   `json:"running_total"`
}

// HoursPerDay is the number of fixed schedule slots.
const HoursPerDay = 24

// ScheduleEntry is one hour slot of a dosing schedule (carb ratio or start
// dose). The slot, not ID, is the merge key.
type ScheduleEntry struct {
	ID         uuid.UUID `json:"id"`
	Hour       int       `json:"hour"`
	Value      float64   `json:"value"`
	LastEdited time.Time `json:"last_edited"`
}

func (s ScheduleEntry) Key() string         { return strconv.Itoa(s.Hour) }
func (s ScheduleEntry) Modified() time.Time { return s.LastEdited }
func (s ScheduleEntry) Tombstoned() bool    { return false }
