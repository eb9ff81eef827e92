package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

var planKeys = []string{
	"weekday_time_budget",
	"weekend_time_budget",
	"vegetarian_ratio",
	"dinner_reminder_hour",
}

var backupKeys = []string{
	"backup_enabled",
	"backup_schedule_hour",
	"backup_retention_days",
	"backup_passphrase_salt",
}

// SettingsStore reads and writes per-household key/value settings.
type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) Get(householdID int64, key string) (string, error) {
	var value string
	err := s.db.QueryRow(
		`SELECT value FROM settings WHERE household_id = ? AND key = ?`,
		householdID, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("setting %q not found", key)
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *SettingsStore) Set(householdID int64, key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (household_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(household_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		householdID, key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// getGroup fetches the named keys in one query. Keys without a stored row
// are simply absent from the map; callers apply their own fallbacks.
func (s *SettingsStore) getGroup(householdID int64, keys []string) (map[string]string, error) {
	args := make([]any, 0, len(keys)+1)
	args = append(args, householdID)
	for _, k := range keys {
		args = append(args, k)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", ")

	rows, err := s.db.Query(
		`SELECT key, value FROM settings WHERE household_id = ? AND key IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string, len(keys))
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// GetPlanSettings returns the household's meal-plan defaults (time budgets,
// vegetarian ratio, reminder hour).
func (s *SettingsStore) GetPlanSettings(householdID int64) (map[string]string, error) {
	return s.getGroup(householdID, planKeys)
}

func (s *SettingsStore) GetBackupSettings(householdID int64) (map[string]string, error) {
	return s.getGroup(householdID, backupKeys)
}
