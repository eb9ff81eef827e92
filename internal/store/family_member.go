package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dukerupert/elevenses/internal/model"
)

const familyMemberCols = `id, household_id, name, color, avatar_emoji, dietary_style, allergies, dislikes, favorite_foods, spice_tolerant, pin IS NOT NULL, sort_order, created_at, updated_at`

// FamilyMemberStore manages diner profiles. Every query is scoped by
// household id; the PIN hash never leaves the store except via GetPINHash.
type FamilyMemberStore struct {
	db *sql.DB
}

func NewFamilyMemberStore(db *sql.DB) *FamilyMemberStore {
	return &FamilyMemberStore{db: db}
}

func scanFamilyMember(scanner interface{ Scan(...any) error }) (*model.FamilyMember, error) {
	var m model.FamilyMember
	var allergies, dislikes, favorites string
	err := scanner.Scan(
		&m.ID, &m.HouseholdID, &m.Name, &m.Color, &m.AvatarEmoji, &m.DietaryStyle,
		&allergies, &dislikes, &favorites, &m.SpiceTolerant, &m.HasPIN,
		&m.SortOrder, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(allergies), &m.Allergies); err != nil {
		return nil, fmt.Errorf("decode allergies: %w", err)
	}
	if err := json.Unmarshal([]byte(dislikes), &m.Dislikes); err != nil {
		return nil, fmt.Errorf("decode dislikes: %w", err)
	}
	if err := json.Unmarshal([]byte(favorites), &m.FavoriteFoods); err != nil {
		return nil, fmt.Errorf("decode favorite foods: %w", err)
	}
	return &m, nil
}

// encodeList marshals a string slice for a JSON text column; nil becomes [].
func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(data), nil
}

// Create inserts a member at the end of the household's sort order.
func (s *FamilyMemberStore) Create(householdID int64, m *model.FamilyMember) (*model.FamilyMember, error) {
	var maxOrder int
	err := s.db.QueryRow(
		`SELECT COALESCE(MAX(sort_order), -1) FROM family_members WHERE household_id = ?`,
		householdID,
	).Scan(&maxOrder)
	if err != nil {
		return nil, fmt.Errorf("query max sort_order: %w", err)
	}

	allergies, err := encodeList(m.Allergies)
	if err != nil {
		return nil, err
	}
	dislikes, err := encodeList(m.Dislikes)
	if err != nil {
		return nil, err
	}
	favorites, err := encodeList(m.FavoriteFoods)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRow(
		`INSERT INTO family_members (household_id, name, color, avatar_emoji, dietary_style, allergies, dislikes, favorite_foods, spice_tolerant, sort_order)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING `+familyMemberCols,
		householdID, m.Name, m.Color, m.AvatarEmoji, m.DietaryStyle,
		allergies, dislikes, favorites, m.SpiceTolerant, maxOrder+1,
	)
	created, err := scanFamilyMember(row)
	if err != nil {
		return nil, fmt.Errorf("insert family member: %w", err)
	}
	return created, nil
}

// List returns the household's members in sort order.
func (s *FamilyMemberStore) List(householdID int64) ([]model.FamilyMember, error) {
	rows, err := s.db.Query(
		`SELECT `+familyMemberCols+` FROM family_members WHERE household_id = ? ORDER BY sort_order, id`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("query family members: %w", err)
	}
	defer rows.Close()

	var members []model.FamilyMember
	for rows.Next() {
		m, err := scanFamilyMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan family member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// GetByID returns the member, or nil when the id does not exist in the
// household.
func (s *FamilyMemberStore) GetByID(id, householdID int64) (*model.FamilyMember, error) {
	row := s.db.QueryRow(
		`SELECT `+familyMemberCols+` FROM family_members WHERE id = ? AND household_id = ?`,
		id, householdID,
	)
	m, err := scanFamilyMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query family member: %w", err)
	}
	return m, nil
}

// Update replaces a member's profile fields. Sort order and PIN are managed
// through their own methods and stay untouched.
func (s *FamilyMemberStore) Update(id, householdID int64, m *model.FamilyMember) (*model.FamilyMember, error) {
	allergies, err := encodeList(m.Allergies)
	if err != nil {
		return nil, err
	}
	dislikes, err := encodeList(m.Dislikes)
	if err != nil {
		return nil, err
	}
	favorites, err := encodeList(m.FavoriteFoods)
	if err != nil {
		return nil, err
	}

	_, err = s.db.Exec(
		`UPDATE family_members SET name = ?, color = ?, avatar_emoji = ?, dietary_style = ?, allergies = ?, dislikes = ?, favorite_foods = ?, spice_tolerant = ?
		 WHERE id = ? AND household_id = ?`,
		m.Name, m.Color, m.AvatarEmoji, m.DietaryStyle,
		allergies, dislikes, favorites, m.SpiceTolerant,
		id, householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("update family member: %w", err)
	}
	return s.GetByID(id, householdID)
}

func (s *FamilyMemberStore) Delete(id, householdID int64) error {
	_, err := s.db.Exec(`DELETE FROM family_members WHERE id = ? AND household_id = ?`, id, householdID)
	if err != nil {
		return fmt.Errorf("delete family member: %w", err)
	}
	return nil
}

// UpdateSortOrder rewrites the household's member ordering to match ids.
// Ids from other households are silently skipped by the scoped UPDATE.
func (s *FamilyMemberStore) UpdateSortOrder(householdID int64, ids []int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for i, id := range ids {
		if _, err := tx.Exec(
			`UPDATE family_members SET sort_order = ? WHERE id = ? AND household_id = ?`,
			i, id, householdID,
		); err != nil {
			return fmt.Errorf("update sort order for id %d: %w", id, err)
		}
	}

	return tx.Commit()
}

func (s *FamilyMemberStore) SetPIN(id, householdID int64, hashedPIN string) error {
	_, err := s.db.Exec(`UPDATE family_members SET pin = ? WHERE id = ? AND household_id = ?`, hashedPIN, id, householdID)
	if err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	return nil
}

func (s *FamilyMemberStore) ClearPIN(id, householdID int64) error {
	_, err := s.db.Exec(`UPDATE family_members SET pin = NULL WHERE id = ? AND household_id = ?`, id, householdID)
	if err != nil {
		return fmt.Errorf("clear pin: %w", err)
	}
	return nil
}

// GetPINHash returns the stored bcrypt hash, or "" when no PIN is set.
func (s *FamilyMemberStore) GetPINHash(id, householdID int64) (string, error) {
	var pin sql.NullString
	err := s.db.QueryRow(`SELECT pin FROM family_members WHERE id = ? AND household_id = ?`, id, householdID).Scan(&pin)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("family member not found")
	}
	if err != nil {
		return "", fmt.Errorf("query pin: %w", err)
	}
	if !pin.Valid {
		return "", nil
	}
	return pin.String, nil
}

// NameExists reports whether another member in the household already uses
// the name. excludeID lets an update keep its own name.
func (s *FamilyMemberStore) NameExists(householdID int64, name string, excludeID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM family_members WHERE household_id = ? AND name = ? AND id != ?)`,
		householdID, name, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check name exists: %w", err)
	}
	return exists, nil
}
