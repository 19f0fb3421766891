package models

import (
	"time"

	"github.com/google/uuid"
)

// FoodItem is a reusable food definition in the catalog. Nutrient values
// are stored both per 100 g and per piece; PerPiece selects which one a
// portion is measured in.
type FoodItem struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	CarbsPer100     float64   `json:"carbs_per_100"`
	CarbsPerPiece   float64   `json:"carbs_per_piece"`
	FatPer100       float64   `json:"fat_per_100"`
	FatPerPiece     float64   `json:"fat_per_piece"`
	NetCarbs        float64   `json:"net_carbs"`
	NetFat          float64   `json:"net_fat"`
	NetProtein      float64   `json:"net_protein"`
	PerPiece        bool      `json:"per_piece"`
	ProteinPer100   float64   `json:"protein_per_100"`
	ProteinPerPiece float64   `json:"protein_per_piece"`
	UsageCount      int       `json:"usage_count"`
	Notes           string    `json:"notes,omitempty"`
	Deleted         bool      `json:"deleted"`
	LastEdited      time.Time `json:"last_edited"`
}

func (f FoodItem) Key() string         { return f.ID.String() }
func (f FoodItem) Modified() time.Time { return f.LastEdited }
func (f FoodItem) Tombstoned() bool    { return f.Deleted }

// FavoriteMeal is a named, reusable list of foods with default portions.
type FavoriteMeal struct {
	ID         uuid.UUID      `json:"id"`
	Name       string         `json:"name"`
	Items      []FavoriteItem `json:"items"`
	Deleted    bool           `json:"deleted"`
	LastEdited time.Time      `json:"last_edited"`
}

// FavoriteItem is one food of a favorite meal.
type FavoriteItem struct {
	FoodRef uuid.UUID `json:"food_ref"`
	Portion float64   `json:"portion"`
}

func (f FavoriteMeal) Key() string         { return f.ID.String() }
func (f FavoriteMeal) Modified() time.Time { return f.LastEdited }
func (f FavoriteMeal) Tombstoned() bool    { return f.Deleted }
