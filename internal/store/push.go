package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/elevenses/internal/model"
)

const pushSubCols = `id, user_id, household_id, endpoint, p256dh_key, auth_key, device_name, created_at`

const notifPrefCols = `id, user_id, household_id, notification_type, enabled, created_at, updated_at`

// PushStore persists browser push subscriptions and per-user notification
// preferences, along with the dedup log of reminders already sent.
type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

func scanPushSubscription(scanner interface{ Scan(...any) error }) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := scanner.Scan(
		&sub.ID, &sub.UserID, &sub.HouseholdID, &sub.Endpoint,
		&sub.P256dhKey, &sub.AuthKey, &sub.DeviceName, &sub.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func scanPreference(scanner interface{ Scan(...any) error }) (*model.NotificationPreference, error) {
	var p model.NotificationPreference
	err := scanner.Scan(
		&p.ID, &p.UserID, &p.HouseholdID, &p.NotificationType,
		&p.Enabled, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveSubscription inserts a subscription or, when the endpoint is already
// registered, refreshes its keys and device name. Browsers rotate keys
// without unsubscribing first.
func (s *PushStore) SaveSubscription(userID, householdID int64, endpoint, p256dh, authKey, deviceName string) (*model.PushSubscription, error) {
	row := s.db.QueryRow(
		`INSERT INTO push_subscriptions (user_id, household_id, endpoint, p256dh_key, auth_key, device_name)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET p256dh_key = excluded.p256dh_key, auth_key = excluded.auth_key, device_name = excluded.device_name
		 RETURNING `+pushSubCols,
		userID, householdID, endpoint, p256dh, authKey, deviceName,
	)
	sub, err := scanPushSubscription(row)
	if err != nil {
		return nil, fmt.Errorf("save push subscription: %w", err)
	}
	return sub, nil
}

// list runs a subscription query scoped by clause, newest first.
func (s *PushStore) list(clause string, args ...any) ([]model.PushSubscription, error) {
	rows, err := s.db.Query(
		`SELECT `+pushSubCols+` FROM push_subscriptions WHERE `+clause+` ORDER BY created_at DESC, id DESC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query push subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.PushSubscription
	for rows.Next() {
		sub, err := scanPushSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func (s *PushStore) ListByUser(userID, householdID int64) ([]model.PushSubscription, error) {
	return s.list(`user_id = ? AND household_id = ?`, userID, householdID)
}

func (s *PushStore) ListByHousehold(householdID int64) ([]model.PushSubscription, error) {
	return s.list(`household_id = ?`, householdID)
}

func (s *PushStore) DeleteSubscription(id, householdID int64) error {
	_, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE id = ? AND household_id = ?`, id, householdID)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}

// DeleteByEndpoint drops a subscription the push service reported gone.
// Not household-scoped; the endpoint itself is the identity.
func (s *PushStore) DeleteByEndpoint(endpoint string) error {
	_, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription by endpoint: %w", err)
	}
	return nil
}

// SubscribedHouseholds returns the households holding at least one push
// subscription, so the reminder scheduler only walks those.
func (s *PushStore) SubscribedHouseholds() ([]int64, error) {
	rows, err := s.db.Query(`SELECT DISTINCT household_id FROM push_subscriptions`)
	if err != nil {
		return nil, fmt.Errorf("query subscribed households: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan household id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PushStore) ListPreferences(userID, householdID int64) ([]model.NotificationPreference, error) {
	rows, err := s.db.Query(
		`SELECT `+notifPrefCols+` FROM notification_preferences WHERE user_id = ? AND household_id = ? ORDER BY notification_type`,
		userID, householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("query notification preferences: %w", err)
	}
	defer rows.Close()

	var prefs []model.NotificationPreference
	for rows.Next() {
		p, err := scanPreference(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification preference: %w", err)
		}
		prefs = append(prefs, *p)
	}
	return prefs, rows.Err()
}

func (s *PushStore) SetPreference(userID, householdID int64, notifType string, enabled bool) error {
	_, err := s.db.Exec(
		`INSERT INTO notification_preferences (user_id, household_id, notification_type, enabled)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, household_id, notification_type) DO UPDATE SET enabled = excluded.enabled`,
		userID, householdID, notifType, enabled,
	)
	if err != nil {
		return fmt.Errorf("set notification preference: %w", err)
	}
	return nil
}

// IsPreferenceEnabled reports whether the user wants this notification
// type. Users without a stored row get it by default; opting out is the
// explicit act.
func (s *PushStore) IsPreferenceEnabled(userID, householdID int64, notifType string) (bool, error) {
	var enabled bool
	err := s.db.QueryRow(
		`SELECT enabled FROM notification_preferences
		 WHERE user_id = ? AND household_id = ? AND notification_type = ?`,
		userID, householdID, notifType,
	).Scan(&enabled)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("check notification preference: %w", err)
	}
	return enabled, nil
}

// RecordSent logs a delivered notification so the same reminder window is
// never pushed twice. Duplicate inserts are ignored.
func (s *PushStore) RecordSent(householdID int64, notifType, refID string, leadTime int) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO sent_notifications (household_id, notification_type, reference_id, lead_time_minutes)
		 VALUES (?, ?, ?, ?)`,
		householdID, notifType, refID, leadTime,
	)
	if err != nil {
		return fmt.Errorf("record sent notification: %w", err)
	}
	return nil
}

func (s *PushStore) WasSent(householdID int64, notifType, refID string, leadTime int) (bool, error) {
	var found bool
	err := s.db.QueryRow(
		`SELECT EXISTS(
			SELECT 1 FROM sent_notifications
			WHERE household_id = ? AND notification_type = ? AND reference_id = ? AND lead_time_minutes = ?
		 )`,
		householdID, notifType, refID, leadTime,
	).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("check sent notification: %w", err)
	}
	return found, nil
}

// CleanupSent drops dedup rows older than the cutoff. Old rows can never
// match a future reminder window, so this only bounds table growth.
func (s *PushStore) CleanupSent(before time.Time) error {
	_, err := s.db.Exec(`DELETE FROM sent_notifications WHERE sent_at < ?`, before.UTC())
	if err != nil {
		return fmt.Errorf("cleanup sent notifications: %w", err)
	}
	return nil
}
