package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/elevenses/internal/model"
)

type BackupStore struct {
	db *sql.DB
}

func NewBackupStore(db *sql.DB) *BackupStore {
	return &BackupStore{db: db}
}

const backupCols = `id, household_id, filename, s3_key, size_bytes, status, error_message, started_at, completed_at, created_at, updated_at`

func scanBackup(scanner interface{ Scan(...any) error }) (*model.Backup, error) {
	var b model.Backup
	var errMsg sql.NullString
	var startedAt, completedAt sql.NullTime
	err := scanner.Scan(
		&b.ID, &b.HouseholdID, &b.Filename, &b.S3Key, &b.SizeBytes, &b.Status,
		&errMsg, &startedAt, &completedAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.ErrorMessage = errMsg.String
	if startedAt.Valid {
		b.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		b.CompletedAt = &completedAt.Time
	}
	return &b, nil
}

// Create inserts a pending backup row. The row is updated as the run
// progresses and keeps the S3 key even after the object is pruned.
func (s *BackupStore) Create(householdID int64, filename, s3Key string) (*model.Backup, error) {
	now := time.Now().UTC()
	row := s.db.QueryRow(
		`INSERT INTO backups (household_id, filename, s3_key, status, started_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING `+backupCols,
		householdID, filename, s3Key, model.BackupStatusPending, now, now, now,
	)
	b, err := scanBackup(row)
	if err != nil {
		return nil, fmt.Errorf("insert backup: %w", err)
	}
	return b, nil
}

func (s *BackupStore) GetByID(id, householdID int64) (*model.Backup, error) {
	row := s.db.QueryRow(
		`SELECT `+backupCols+` FROM backups WHERE id = ? AND household_id = ?`,
		id, householdID,
	)
	b, err := scanBackup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get backup: %w", err)
	}
	return b, nil
}

// List returns the newest backups first, capped at limit. Usage reports
// the uncapped totals.
func (s *BackupStore) List(householdID int64, limit int) ([]model.Backup, error) {
	rows, err := s.db.Query(
		`SELECT `+backupCols+` FROM backups WHERE household_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		householdID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query backups: %w", err)
	}
	defer rows.Close()

	var backups []model.Backup
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, *b)
	}
	return backups, rows.Err()
}

func (s *BackupStore) MarkUploading(id int64) error {
	_, err := s.db.Exec(
		`UPDATE backups SET status = ?, error_message = NULL WHERE id = ?`,
		model.BackupStatusUploading, id,
	)
	if err != nil {
		return fmt.Errorf("mark backup uploading: %w", err)
	}
	return nil
}

func (s *BackupStore) MarkFailed(id int64, reason string) error {
	_, err := s.db.Exec(
		`UPDATE backups SET status = ?, error_message = ? WHERE id = ?`,
		model.BackupStatusFailed, reason, id,
	)
	if err != nil {
		return fmt.Errorf("mark backup failed: %w", err)
	}
	return nil
}

func (s *BackupStore) MarkCompleted(id, sizeBytes int64) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`UPDATE backups SET status = ?, size_bytes = ?, completed_at = ? WHERE id = ?`,
		model.BackupStatusCompleted, sizeBytes, now, id,
	)
	if err != nil {
		return fmt.Errorf("mark backup completed: %w", err)
	}
	return nil
}

// PruneBefore deletes backup rows older than the cutoff and returns their
// S3 keys so the caller can remove the objects too.
func (s *BackupStore) PruneBefore(householdID int64, cutoff time.Time) ([]string, error) {
	rows, err := s.db.Query(
		`DELETE FROM backups WHERE household_id = ? AND created_at < ? RETURNING s3_key`,
		householdID, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("prune backups: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan s3 key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// LatestCompleted returns the household's most recent successful backup,
// or nil when none has finished yet.
func (s *BackupStore) LatestCompleted(householdID int64) (*model.Backup, error) {
	row := s.db.QueryRow(
		`SELECT `+backupCols+` FROM backups WHERE household_id = ? AND status = ? ORDER BY completed_at DESC LIMIT 1`,
		householdID, model.BackupStatusCompleted,
	)
	b, err := scanBackup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest completed backup: %w", err)
	}
	return b, nil
}

// Usage reports the household's total row count alongside the bytes held
// by completed backups. Failed and in-flight rows count toward the total
// but not the size.
func (s *BackupStore) Usage(householdID int64) (count, sizeBytes int64, err error) {
	err = s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = ? THEN size_bytes END), 0)
		 FROM backups WHERE household_id = ?`,
		model.BackupStatusCompleted, householdID,
	).Scan(&count, &sizeBytes)
	if err != nil {
		return 0, 0, fmt.Errorf("backup usage: %w", err)
	}
	return count, sizeBytes, nil
}
