package model

import "time"

// Favorite bookmarks a recipe for a family member.
type Favorite struct {
	ID        int64     `json:"id"`
	MemberID  int64     `json:"member_id"`
	RecipeID  int64     `json:"recipe_id"`
	CreatedAt time.Time `json:"created_at"`

	RecipeName string `json:"recipe_name,omitempty"`
}
