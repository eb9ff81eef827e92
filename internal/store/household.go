package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/elevenses/internal/model"
)

const householdCols = `id, name, created_at, updated_at`
const householdMemberCols = `id, household_id, user_id, role, created_at, updated_at`

// HouseholdStore manages households and the membership rows that bind
// users to them.
type HouseholdStore struct {
	db *sql.DB
}

func NewHouseholdStore(db *sql.DB) *HouseholdStore {
	return &HouseholdStore{db: db}
}

func scanHousehold(scanner interface{ Scan(...any) error }) (*model.Household, error) {
	var h model.Household
	if err := scanner.Scan(&h.ID, &h.Name, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return nil, err
	}
	return &h, nil
}

func scanHouseholdMember(scanner interface{ Scan(...any) error }) (*model.HouseholdMember, error) {
	var m model.HouseholdMember
	if err := scanner.Scan(&m.ID, &m.HouseholdID, &m.UserID, &m.Role, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func collectHouseholds(rows *sql.Rows) ([]model.Household, error) {
	defer rows.Close()
	var households []model.Household
	for rows.Next() {
		h, err := scanHousehold(rows)
		if err != nil {
			return nil, fmt.Errorf("scan household: %w", err)
		}
		households = append(households, *h)
	}
	return households, rows.Err()
}

func collectHouseholdMembers(rows *sql.Rows) ([]model.HouseholdMember, error) {
	defer rows.Close()
	var members []model.HouseholdMember
	for rows.Next() {
		m, err := scanHouseholdMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *HouseholdStore) Create(name string) (*model.Household, error) {
	row := s.db.QueryRow(`INSERT INTO households (name) VALUES (?) RETURNING `+householdCols, name)
	h, err := scanHousehold(row)
	if err != nil {
		return nil, fmt.Errorf("insert household: %w", err)
	}
	return h, nil
}

// GetByID returns the household, or nil when the id is unknown.
func (s *HouseholdStore) GetByID(id int64) (*model.Household, error) {
	row := s.db.QueryRow(`SELECT `+householdCols+` FROM households WHERE id = ?`, id)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}
	return h, nil
}

// Update renames a household. updated_at is bumped by an AFTER UPDATE
// trigger, so the row is re-read rather than returned from the statement.
func (s *HouseholdStore) Update(id int64, name string) (*model.Household, error) {
	if _, err := s.db.Exec(`UPDATE households SET name = ? WHERE id = ?`, name, id); err != nil {
		return nil, fmt.Errorf("update household: %w", err)
	}
	return s.GetByID(id)
}

// Delete removes a household. Dependent rows go with it via ON DELETE CASCADE.
func (s *HouseholdStore) Delete(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM households WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete household: %w", err)
	}
	return nil
}

// AddMember enrolls a user in a household. A user holds at most one
// membership per household; re-adding is a constraint violation.
func (s *HouseholdStore) AddMember(householdID, userID int64, role string) (*model.HouseholdMember, error) {
	row := s.db.QueryRow(
		`INSERT INTO household_members (household_id, user_id, role) VALUES (?, ?, ?) RETURNING `+householdMemberCols,
		householdID, userID, role,
	)
	m, err := scanHouseholdMember(row)
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	return m, nil
}

func (s *HouseholdStore) RemoveMember(householdID, userID int64) error {
	_, err := s.db.Exec(
		`DELETE FROM household_members WHERE household_id = ? AND user_id = ?`,
		householdID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

// GetMember returns the membership row, or nil when the user does not
// belong to the household.
func (s *HouseholdStore) GetMember(householdID, userID int64) (*model.HouseholdMember, error) {
	row := s.db.QueryRow(
		`SELECT `+householdMemberCols+` FROM household_members WHERE household_id = ? AND user_id = ?`,
		householdID, userID,
	)
	m, err := scanHouseholdMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// ListMembers returns a household's memberships oldest first.
func (s *HouseholdStore) ListMembers(householdID int64) ([]model.HouseholdMember, error) {
	rows, err := s.db.Query(
		`SELECT `+householdMemberCols+` FROM household_members WHERE household_id = ? ORDER BY created_at ASC, id ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return collectHouseholdMembers(rows)
}

// ListHouseholdsForUser returns every household the user belongs to,
// ordered by name for stable switcher menus.
func (s *HouseholdStore) ListHouseholdsForUser(userID int64) ([]model.Household, error) {
	rows, err := s.db.Query(
		`SELECT h.id, h.name, h.created_at, h.updated_at
		 FROM households h
		 JOIN household_members hm ON h.id = hm.household_id
		 WHERE hm.user_id = ?
		 ORDER BY h.name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list households for user: %w", err)
	}
	return collectHouseholds(rows)
}

// UpdateMemberRole changes a membership's role and returns the updated
// row, nil when no such membership exists.
func (s *HouseholdStore) UpdateMemberRole(householdID, userID int64, role string) (*model.HouseholdMember, error) {
	_, err := s.db.Exec(
		`UPDATE household_members SET role = ? WHERE household_id = ? AND user_id = ?`,
		role, householdID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update member role: %w", err)
	}
	return s.GetMember(householdID, userID)
}

// SeedDefaults inserts the default plan and notification settings for a new
// household in a single transaction.
func (s *HouseholdStore) SeedDefaults(householdID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	settings := []struct {
		key   string
		value string
	}{
		{"weekday_time_budget", "45"},
		{"weekend_time_budget", "90"},
		{"vegetarian_ratio", "0"},
		{"dinner_reminder_hour", "16"},
		{"backup_enabled", "false"},
		{"backup_schedule_hour", "3"},
		{"backup_retention_days", "30"},
	}
	for _, s := range settings {
		if _, err := tx.Exec(
			`INSERT INTO settings (household_id, key, value) VALUES (?, ?, ?)`,
			householdID, s.key, s.value,
		); err != nil {
			return fmt.Errorf("seed setting %q: %w", s.key, err)
		}
	}

	return tx.Commit()
}
