package store

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/dukerupert/elevenses/internal/model"
)

// magicLinkTTL is how long an emailed code stays redeemable.
const magicLinkTTL = 15 * time.Minute

const magicLinkCols = `id, token, email, purpose, household_id, expires_at, used_at, attempts, created_at`

// redeemable narrows queries to codes that are still pending and unexpired.
const redeemable = `used_at IS NULL AND expires_at > datetime('now')`

// MagicLinkStore persists the emailed login codes. Codes are verified by
// fetching the newest redeemable one for the address and comparing, never
// by looking up the submitted code, so guesses burn the attempt counter.
type MagicLinkStore struct {
	db *sql.DB
}

func NewMagicLinkStore(db *sql.DB) *MagicLinkStore {
	return &MagicLinkStore{db: db}
}

func scanMagicLink(scanner interface{ Scan(...any) error }) (*model.MagicLink, error) {
	var ml model.MagicLink
	var householdID sql.NullInt64
	var usedAt sql.NullTime

	err := scanner.Scan(
		&ml.ID, &ml.Token, &ml.Email, &ml.Purpose, &householdID,
		&ml.ExpiresAt, &usedAt, &ml.Attempts, &ml.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if householdID.Valid {
		ml.HouseholdID = &householdID.Int64
	}
	if usedAt.Valid {
		ml.UsedAt = &usedAt.Time
	}
	return &ml, nil
}

// generateCode draws a uniform 6-digit code, 100000 through 999999.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Create issues a fresh code for the email. Older pending codes for the
// same address are burned first so only the newest one redeems.
func (s *MagicLinkStore) Create(email, purpose string, householdID *int64) (*model.MagicLink, error) {
	_, err := s.db.Exec(
		`UPDATE magic_links SET used_at = datetime('now') WHERE email = ? AND `+redeemable,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("invalidate previous codes: %w", err)
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}

	var hID sql.NullInt64
	if householdID != nil {
		hID = sql.NullInt64{Int64: *householdID, Valid: true}
	}

	row := s.db.QueryRow(
		`INSERT INTO magic_links (token, email, purpose, household_id, expires_at) VALUES (?, ?, ?, ?, ?) RETURNING `+magicLinkCols,
		code, email, purpose, hID, time.Now().UTC().Add(magicLinkTTL),
	)
	ml, err := scanMagicLink(row)
	if err != nil {
		return nil, fmt.Errorf("insert magic link: %w", err)
	}
	return ml, nil
}

// GetLatestByEmail returns the email's newest redeemable code, or nil when
// none is pending.
func (s *MagicLinkStore) GetLatestByEmail(email string) (*model.MagicLink, error) {
	row := s.db.QueryRow(
		`SELECT `+magicLinkCols+` FROM magic_links WHERE email = ? AND `+redeemable+` ORDER BY created_at DESC, id DESC LIMIT 1`,
		email,
	)
	ml, err := scanMagicLink(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest magic link by email: %w", err)
	}
	return ml, nil
}

// IncrementAttempts bumps the failed-guess counter and returns the new
// value so the caller can lock the code out.
func (s *MagicLinkStore) IncrementAttempts(id int64) (int, error) {
	var attempts int
	err := s.db.QueryRow(
		`UPDATE magic_links SET attempts = attempts + 1 WHERE id = ? RETURNING attempts`,
		id,
	).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	return attempts, nil
}

func (s *MagicLinkStore) MarkUsed(id int64) error {
	_, err := s.db.Exec(`UPDATE magic_links SET used_at = datetime('now') WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark magic link used: %w", err)
	}
	return nil
}

// DeleteExpired sweeps rows past their expiry and reports how many went.
func (s *MagicLinkStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM magic_links WHERE expires_at <= datetime('now')`)
	if err != nil {
		return 0, fmt.Errorf("delete expired magic links: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
