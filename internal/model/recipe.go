package model

import "time"

// Recipe difficulty levels.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Ingredient is one line of a recipe's ingredient list.
type Ingredient struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity,omitempty"`
	Unit     string  `json:"unit,omitempty"`
	Category string  `json:"category,omitempty"`
}

type Recipe struct {
	ID              int64        `json:"id"`
	HouseholdID     int64        `json:"household_id"`
	Name            string       `json:"name"`
	Cuisine         string       `json:"cuisine"`
	Protein         string       `json:"protein,omitempty"`
	Vegetarian      bool         `json:"vegetarian"`
	CookTimeMinutes int          `json:"cook_time_minutes"`
	Difficulty      string       `json:"difficulty"`
	KidFriendly     bool         `json:"kid_friendly"`
	MakesLeftovers  bool         `json:"makes_leftovers"`
	Allergens       []string     `json:"allergens"`
	Tags            []string     `json:"tags"`
	Ingredients     []Ingredient `json:"ingredients"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// HasTag reports whether the recipe carries the given tag (case-insensitive
// matching is the caller's concern; tags are stored lowercase).
func (r *Recipe) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
