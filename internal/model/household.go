package model

import "time"

// Household is the unit everything else hangs off: family members, the
// recipe catalog, plans, and settings are all scoped to one.
type Household struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HouseholdMember links a user account to a household with a role. Roles
// gate invitations and backup administration, not day-to-day planning.
type HouseholdMember struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	UserID      int64     `json:"user_id"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
