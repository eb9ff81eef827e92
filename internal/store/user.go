package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/elevenses/internal/model"
)

const userCols = `id, email, name, created_at, updated_at`

// UserStore manages account records. Users are identified for login by
// their normalized email; callers lowercase and trim before calling in.
type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := scanner.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// getWhere runs a single-row lookup, mapping no-rows to nil.
func (s *UserStore) getWhere(clause string, arg any) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE `+clause, arg)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// Create inserts a user. The unique index on users.email compares exact
// strings, so duplicate normalized emails fail here.
func (s *UserStore) Create(email, name string) (*model.User, error) {
	row := s.db.QueryRow(
		`INSERT INTO users (email, name) VALUES (?, ?) RETURNING `+userCols,
		email, name,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	u, err := s.getWhere(`id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByEmail looks a user up by normalized email, nil when unknown.
func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	u, err := s.getWhere(`email = ?`, email)
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// Update rewrites the profile fields and returns the stored row, which the
// updated_at trigger has already stamped.
func (s *UserStore) Update(id int64, email, name string) (*model.User, error) {
	_, err := s.db.Exec(
		`UPDATE users SET email = ?, name = ? WHERE id = ?`,
		email, name, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.GetByID(id)
}
