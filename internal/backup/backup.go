package backup

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dukerupert/elevenses/internal/model"
	"github.com/dukerupert/elevenses/internal/store"
	"github.com/sethvargo/go-retry"
)

// ErrNotConfigured is returned while S3 credentials are missing.
var ErrNotConfigured = errors.New("backup not configured: S3 credentials missing")

// s3Client is the slice of the S3 API the manager touches. Tests inject a
// fake in place of the real client.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config points the manager at an S3-compatible bucket.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// complete reports whether enough credentials are present to reach S3.
func (c S3Config) complete() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

type Config struct {
	S3     S3Config
	DBPath string
}

// State is the manager's coarse lifecycle state, surfaced on the status
// endpoint.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status is a snapshot of the manager. LastBackup only covers runs from
// this process; callers wanting history across restarts consult the store.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

// StatusCallback fires on every state change.
type StatusCallback func(Status)

// cachedCreds holds a household's passphrase and salt in memory so the
// scheduler can run without re-prompting. Never persisted.
type cachedCreds struct {
	passphrase string
	salt       []byte
}

// Manager encrypts the SQLite database and ships it to S3-compatible
// storage, on demand and on each household's schedule.
type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	status   Status
	callback StatusCallback
	logger   *slog.Logger

	db            *sql.DB
	backupStore   *store.BackupStore
	settingsStore *store.SettingsStore
	client        s3Client

	cachedCreds map[int64]*cachedCreds // householdID -> cached credentials

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager builds a manager. With incomplete S3 credentials it starts
// disabled and every run attempt fails fast.
func NewManager(cfg Config, db *sql.DB, bs *store.BackupStore, ss *store.SettingsStore, logger *slog.Logger, callback StatusCallback) *Manager {
	m := &Manager{
		cfg:           cfg,
		db:            db,
		backupStore:   bs,
		settingsStore: ss,
		logger:        logger.With("component", "backup"),
		callback:      callback,
		cachedCreds:   make(map[int64]*cachedCreds),
		status:        Status{State: StateDisabled},
	}

	if cfg.S3.complete() {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}

	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// UpdateS3Config swaps the S3 target at runtime, enabling or disabling the
// manager to match.
func (m *Manager) UpdateS3Config(s3cfg S3Config) {
	m.mu.Lock()
	m.cfg.S3 = s3cfg
	if s3cfg.complete() {
		m.client = newS3Client(s3cfg)
		m.status.State = StateIdle
	} else {
		m.client = nil
		m.status.State = StateDisabled
	}
	status := m.status
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(status)
	}
}

// target snapshots the client and bucket under lock. Everything touching
// S3 goes through this so a concurrent UpdateS3Config cannot tear them.
func (m *Manager) target() (s3Client, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.client == nil {
		return nil, "", ErrNotConfigured
	}
	return m.client, m.cfg.S3.Bucket, nil
}

// getRecord loads a backup row scoped to the household.
func (m *Manager) getRecord(backupID, householdID int64) (*model.Backup, error) {
	record, err := m.backupStore.GetByID(backupID, householdID)
	if err != nil {
		return nil, fmt.Errorf("get backup: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("backup not found")
	}
	return record, nil
}

func openObject(ctx context.Context, client s3Client, bucket, key string) (io.ReadCloser, error) {
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download from s3: %w", err)
	}
	return out.Body, nil
}

// Start launches the scheduler loop. No-op while disabled.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.status.State == StateDisabled {
		m.mu.Unlock()
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go m.loop(ctx)
}

func (m *Manager) loop(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkSchedule(ctx)
		}
	}
}

// Stop cancels the scheduler and waits for it to drain.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

// fail records the run as failed on both the row and the manager status,
// then returns the wrapped error for the caller to propagate.
func (m *Manager) fail(recordID int64, stage string, err error) error {
	if recordID != 0 {
		if serr := m.backupStore.MarkFailed(recordID, err.Error()); serr != nil {
			m.logger.Error("mark backup failed", "backup_id", recordID, "error", serr)
		}
	}
	m.setStatus(Status{State: StateError, Error: err.Error()})
	return fmt.Errorf("%s: %w", stage, err)
}

// CacheKey remembers a household's passphrase and salt for scheduled runs.
func (m *Manager) CacheKey(householdID int64, passphrase string, salt []byte) {
	m.mu.Lock()
	m.cachedCreds[householdID] = &cachedCreds{passphrase: passphrase, salt: salt}
	m.mu.Unlock()
}

// HasCachedKey reports whether scheduled runs can proceed for the household.
func (m *Manager) HasCachedKey(householdID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.cachedCreds[householdID]
	return ok
}

func (m *Manager) cachedHouseholds() []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int64, 0, len(m.cachedCreds))
	for id := range m.cachedCreds {
		ids = append(ids, id)
	}
	return ids
}

// checkSchedule runs scheduled backups for every household with cached
// credentials, each at its own configured hour. Households that never ran a
// manual backup this process have no cached passphrase and are skipped.
func (m *Manager) checkSchedule(ctx context.Context) {
	now := time.Now().UTC()
	if now.Minute() != 0 {
		return
	}

	for _, hid := range m.cachedHouseholds() {
		settings, err := m.settingsStore.GetBackupSettings(hid)
		if err != nil {
			m.logger.Error("load backup settings", "household_id", hid, "error", err)
			continue
		}
		if settings["backup_enabled"] != "true" {
			continue
		}
		hour, _ := strconv.Atoi(settings["backup_schedule_hour"])
		if now.Hour() != hour {
			continue
		}

		m.mu.RLock()
		creds := m.cachedCreds[hid]
		m.mu.RUnlock()
		if creds == nil {
			continue
		}

		if _, err := m.runBackup(ctx, hid, creds.passphrase, creds.salt); err != nil {
			m.logger.Error("scheduled backup failed", "household_id", hid, "error", err)
		}

		retentionDays, _ := strconv.Atoi(settings["backup_retention_days"])
		if retentionDays <= 0 {
			retentionDays = 30
		}
		if err := m.Cleanup(ctx, hid, retentionDays); err != nil {
			m.logger.Error("backup cleanup failed", "household_id", hid, "error", err)
		}
	}
}

// RunNow performs an immediate backup with the supplied passphrase,
// deriving the key from the household's stored salt.
func (m *Manager) RunNow(ctx context.Context, householdID int64, passphrase string) (int64, error) {
	if _, _, err := m.target(); err != nil {
		return 0, err
	}

	settings, err := m.settingsStore.GetBackupSettings(householdID)
	if err != nil {
		return 0, fmt.Errorf("get backup settings: %w", err)
	}

	saltHex := settings["backup_passphrase_salt"]
	if saltHex == "" {
		return 0, fmt.Errorf("backup passphrase not configured")
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return 0, fmt.Errorf("decode salt: %w", err)
	}

	return m.runBackup(ctx, householdID, passphrase, salt)
}

// runBackup checkpoints the database, copies it aside, encrypts the copy,
// and uploads it. Every stage failure lands on the backup row.
func (m *Manager) runBackup(ctx context.Context, householdID int64, passphrase string, salt []byte) (int64, error) {
	client, bucket, err := m.target()
	if err != nil {
		return 0, err
	}

	m.setStatus(Status{State: StateRunning, InProgress: true})

	timestamp := time.Now().UTC().Format("2006-01-02T150405Z")
	filename := fmt.Sprintf("backup-%s.db.enc", timestamp)
	s3Key := fmt.Sprintf("%d/%s", householdID, filename)

	record, err := m.backupStore.Create(householdID, filename, s3Key)
	if err != nil {
		return 0, m.fail(0, "create backup record", err)
	}

	if err := m.backupStore.MarkUploading(record.ID); err != nil {
		m.logger.Error("mark backup uploading", "backup_id", record.ID, "error", err)
	}

	tmpDir := os.TempDir()
	dbCopy := filepath.Join(tmpDir, fmt.Sprintf("elevenses-backup-%d.db", record.ID))
	encFile := filepath.Join(tmpDir, fmt.Sprintf("elevenses-backup-%d.db.enc", record.ID))
	defer os.Remove(dbCopy)
	defer os.Remove(encFile)

	// The copy must see a quiesced database, so fold the WAL in first.
	if _, err := m.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return 0, m.fail(record.ID, "wal checkpoint", err)
	}

	if err := copyFile(m.cfg.DBPath, dbCopy); err != nil {
		return 0, m.fail(record.ID, "copy database", err)
	}

	if err := EncryptFile(dbCopy, encFile, passphrase, salt); err != nil {
		return 0, m.fail(record.ID, "encrypt", err)
	}

	encData, err := os.Open(encFile)
	if err != nil {
		return 0, m.fail(record.ID, "open encrypted file", err)
	}
	defer encData.Close()

	stat, _ := encData.Stat()

	// Transient upload failures retry with exponential backoff.
	backoff := retry.WithMaxRetries(3, retry.NewExponential(time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if _, err := encData.Seek(0, io.SeekStart); err != nil {
			return err
		}
		_, err := client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(bucket),
			Key:           aws.String(s3Key),
			Body:          encData,
			ContentLength: aws.Int64(stat.Size()),
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return 0, m.fail(record.ID, "upload to s3", err)
	}

	if err := m.backupStore.MarkCompleted(record.ID, stat.Size()); err != nil {
		m.logger.Error("mark backup completed", "backup_id", record.ID, "error", err)
	}

	now := time.Now().UTC()
	m.setStatus(Status{State: StateIdle, LastBackup: &now})

	return record.ID, nil
}

// Restore pulls a backup out of S3, decrypts and integrity-checks it,
// swaps it in as the live database file, then exits so the supervisor
// restarts the process on the restored data.
func (m *Manager) Restore(ctx context.Context, backupID, householdID int64, passphrase string) error {
	client, bucket, err := m.target()
	if err != nil {
		return err
	}

	record, err := m.getRecord(backupID, householdID)
	if err != nil {
		return err
	}

	tmpDir := os.TempDir()
	encFile := filepath.Join(tmpDir, fmt.Sprintf("elevenses-restore-%d.db.enc", backupID))
	decFile := filepath.Join(tmpDir, fmt.Sprintf("elevenses-restore-%d.db", backupID))
	defer os.Remove(encFile)
	defer os.Remove(decFile)

	body, err := openObject(ctx, client, bucket, record.S3Key)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := writeStream(encFile, body); err != nil {
		return fmt.Errorf("save downloaded backup: %w", err)
	}

	if err := DecryptFile(encFile, decFile, passphrase); err != nil {
		return fmt.Errorf("decrypt backup: %w", err)
	}

	// A corrupt restore must never replace a healthy database.
	if err := verifySQLite(decFile); err != nil {
		return err
	}

	if err := copyFile(decFile, m.cfg.DBPath); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}

	// Stale WAL/SHM files would shadow the restored content.
	os.Remove(m.cfg.DBPath + "-wal")
	os.Remove(m.cfg.DBPath + "-shm")

	m.logger.Info("restore complete, exiting for restart")
	os.Exit(0)
	return nil // unreachable
}

// verifySQLite opens the file as a database and runs an integrity check.
func verifySQLite(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// Download streams the encrypted backup object as stored, for offsite
// copies. The caller owns the reader.
func (m *Manager) Download(ctx context.Context, backupID, householdID int64) (io.ReadCloser, int64, error) {
	client, bucket, err := m.target()
	if err != nil {
		return nil, 0, err
	}

	record, err := m.getRecord(backupID, householdID)
	if err != nil {
		return nil, 0, err
	}

	body, err := openObject(ctx, client, bucket, record.S3Key)
	if err != nil {
		return nil, 0, err
	}
	return body, record.SizeBytes, nil
}

// Cleanup prunes rows past the retention window and deletes their S3
// objects. Object deletion failures are logged, not fatal; the rows are
// already gone and re-deleting a missing key is harmless.
func (m *Manager) Cleanup(ctx context.Context, householdID int64, retentionDays int) error {
	client, bucket, err := m.target()
	if err != nil {
		return nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	keys, err := m.backupStore.PruneBefore(householdID, cutoff)
	if err != nil {
		return fmt.Errorf("prune old backups: %w", err)
	}

	for _, key := range keys {
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Error("delete s3 object", "key", key, "error", err)
		}
	}

	return nil
}

// writeStream copies r into a new file at dst.
func writeStream(dst string, r io.Reader) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	return writeStream(dst, in)
}
