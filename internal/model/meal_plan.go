package model

import "time"

// WeekDays lists the plan days in canonical order, Monday first.
var WeekDays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// Meal slot types.
const (
	MealTypeMain  = "main"
	MealTypeSide  = "side"
	MealTypeLunch = "lunch"
)

type MealPlan struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	WeekStart   string    `json:"week_start"`
	Variant     int       `json:"variant"`
	CreatedAt   time.Time `json:"created_at"`
}

// PlannedMealItem is one slot of a generated plan. RecipeID is nil for
// custom items (sides the planner names itself). MemberIDs nil means the
// whole household. ParentIndex links a freshly generated item to the main
// it accompanies before database ids exist; the store resolves it to
// ParentItemID during insert.
type PlannedMealItem struct {
	ID           int64   `json:"id"`
	MealPlanID   int64   `json:"meal_plan_id"`
	Day          string  `json:"day"`
	MealType     string  `json:"meal_type"`
	RecipeID     *int64  `json:"recipe_id"`
	MainIndex    *int    `json:"main_index,omitempty"`
	MemberIDs    []int64 `json:"member_ids,omitempty"`
	ParentItemID *int64  `json:"parent_item_id,omitempty"`
	IsCustom     bool    `json:"is_custom"`
	Notes        string  `json:"notes,omitempty"`

	ParentIndex *int `json:"-"`

	// Denormalized from the recipe for display; zero for custom items.
	RecipeName      string `json:"recipe_name,omitempty"`
	RecipeCuisine   string `json:"recipe_cuisine,omitempty"`
	Vegetarian      bool   `json:"vegetarian,omitempty"`
	CookTimeMinutes int    `json:"cook_time_minutes,omitempty"`
	MakesLeftovers  bool   `json:"makes_leftovers,omitempty"`
	KidFriendly     bool   `json:"kid_friendly,omitempty"`
}
