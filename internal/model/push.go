package model

import "time"

// Notification types a user can opt out of.
const (
	NotifTypeDinnerReminder = "dinner_reminder"
	NotifTypePlanReady      = "plan_ready"
)

// PushSubscription is one browser's web push endpoint. The endpoint URL is
// unique; re-subscribing from the same browser rotates the keys in place.
type PushSubscription struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	HouseholdID int64     `json:"household_id"`
	Endpoint    string    `json:"endpoint"`
	P256dhKey   string    `json:"p256dh_key"`
	AuthKey     string    `json:"auth_key"`
	DeviceName  string    `json:"device_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// NotificationPreference records an explicit opt-in or opt-out. Absence of
// a row means the type is enabled.
type NotificationPreference struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"user_id"`
	HouseholdID      int64     `json:"household_id"`
	NotificationType string    `json:"notification_type"`
	Enabled          bool      `json:"enabled"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
