package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dukerupert/elevenses/internal/model"
)

const sessionDuration = 30 * 24 * time.Hour

const sessionCols = `id, token, user_id, household_id, expires_at, created_at`

type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

func scanSession(scanner interface{ Scan(...any) error }) (*model.Session, error) {
	var sess model.Session
	err := scanner.Scan(&sess.ID, &sess.Token, &sess.UserID, &sess.HouseholdID, &sess.ExpiresAt, &sess.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (s *SessionStore) Create(userID, householdID int64) (*model.Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().UTC().Add(sessionDuration)

	row := s.db.QueryRow(
		`INSERT INTO sessions (token, user_id, household_id, expires_at) VALUES (?, ?, ?, ?) RETURNING `+sessionCols,
		token, userID, householdID, expiresAt,
	)
	sess, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// GetByToken returns the session for a token, or nil if missing or expired.
func (s *SessionStore) GetByToken(token string) (*model.Session, error) {
	row := s.db.QueryRow(
		`SELECT `+sessionCols+` FROM sessions WHERE token = ? AND expires_at > datetime('now')`,
		token,
	)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session by token: %w", err)
	}
	return sess, nil
}

func (s *SessionStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// UpdateHouseholdID switches the session's active household.
func (s *SessionStore) UpdateHouseholdID(id, householdID int64) error {
	_, err := s.db.Exec(`UPDATE sessions SET household_id = ? WHERE id = ?`, householdID, id)
	if err != nil {
		return fmt.Errorf("update session household: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM sessions WHERE expires_at <= datetime('now')`)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
