package model

import "time"

// Dietary styles for family members.
const (
	DietOmnivore   = "omnivore"
	DietVegetarian = "vegetarian"
	DietVegan      = "vegan"
)

type FamilyMember struct {
	ID            int64     `json:"id"`
	HouseholdID   int64     `json:"household_id"`
	Name          string    `json:"name"`
	Color         string    `json:"color"`
	AvatarEmoji   string    `json:"avatar_emoji"`
	DietaryStyle  string    `json:"dietary_style"`
	Allergies     []string  `json:"allergies"`
	Dislikes      []string  `json:"dislikes"`
	FavoriteFoods []string  `json:"favorite_foods"`
	SpiceTolerant bool      `json:"spice_tolerant"`
	HasPIN        bool      `json:"has_pin"`
	SortOrder     int       `json:"sort_order"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
