package model

import "time"

// Session ties a browser cookie to a user and their active household.
// Switching households rewrites HouseholdID in place rather than issuing a
// new token.
type Session struct {
	ID          int64     `json:"id"`
	Token       string    `json:"token"`
	UserID      int64     `json:"user_id"`
	HouseholdID int64     `json:"household_id"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Magic link purposes.
const (
	PurposeLogin    = "login"
	PurposeRegister = "register"
	PurposeInvite   = "invite"
)

// MagicLink is a short-lived emailed code. Token holds the 6-digit code;
// HouseholdID pins register and invite codes to the household they were
// issued for.
type MagicLink struct {
	ID          int64      `json:"id"`
	Token       string     `json:"token"`
	Email       string     `json:"email"`
	Purpose     string     `json:"purpose"`
	HouseholdID *int64     `json:"household_id"`
	ExpiresAt   time.Time  `json:"expires_at"`
	UsedAt      *time.Time `json:"used_at"`
	Attempts    int        `json:"attempts"`
	CreatedAt   time.Time  `json:"created_at"`
}
