package backup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/elevenses/internal/database"
	"github.com/dukerupert/elevenses/internal/store"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	getErr  error
	delErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, &s3NotFound{}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(strings.NewReader(string(data))),
	}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.delErr != nil {
		return nil, m.delErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

type s3NotFound struct{}

func (e *s3NotFound) Error() string { return "NoSuchKey" }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupBackupStore(t *testing.T) (*store.BackupStore, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h, err := store.NewHouseholdStore(db).Create("Test Household")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	return store.NewBackupStore(db), h.ID
}

func TestManagerStateLifecycle(t *testing.T) {
	// Without S3 config -> disabled
	m := NewManager(Config{}, nil, nil, nil, testLogger(), nil)
	if m.Status().State != StateDisabled {
		t.Errorf("state = %q, want %q", m.Status().State, StateDisabled)
	}

	// With S3 config -> idle
	m2 := NewManager(Config{
		S3: S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret"},
	}, nil, nil, nil, testLogger(), nil)
	if m2.Status().State != StateIdle {
		t.Errorf("state = %q, want %q", m2.Status().State, StateIdle)
	}
}

func TestManagerStatusCallback(t *testing.T) {
	var received []Status
	var mu sync.Mutex
	cb := func(s Status) {
		mu.Lock()
		received = append(received, s)
		mu.Unlock()
	}

	m := NewManager(Config{
		S3: S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret"},
	}, nil, nil, nil, testLogger(), cb)

	m.setStatus(Status{State: StateRunning, InProgress: true})
	m.setStatus(Status{State: StateIdle})

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("received %d callbacks, want 2", len(received))
	}
	if received[0].State != StateRunning {
		t.Errorf("first callback state = %q, want %q", received[0].State, StateRunning)
	}
	if received[1].State != StateIdle {
		t.Errorf("second callback state = %q, want %q", received[1].State, StateIdle)
	}
}

func TestManagerStopSafety(t *testing.T) {
	m := NewManager(Config{
		S3: S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret"},
	}, nil, nil, nil, testLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	cancel()
	m.Stop()

	// Double stop should not panic
	m.Stop()
}

func TestManagerCachedKey(t *testing.T) {
	m := NewManager(Config{}, nil, nil, nil, testLogger(), nil)

	if m.HasCachedKey(1) {
		t.Error("expected no cached key")
	}

	m.CacheKey(1, "passphrase", []byte("salt1234salt1234"))

	if !m.HasCachedKey(1) {
		t.Error("expected cached key")
	}
	if m.HasCachedKey(2) {
		t.Error("expected no cached key for different household")
	}
}

func TestUpdateS3Config(t *testing.T) {
	var received []Status
	var mu sync.Mutex
	cb := func(s Status) {
		mu.Lock()
		received = append(received, s)
		mu.Unlock()
	}

	// Start disabled
	m := NewManager(Config{}, nil, nil, nil, testLogger(), cb)
	if m.Status().State != StateDisabled {
		t.Fatalf("initial state = %q, want %q", m.Status().State, StateDisabled)
	}

	// Set valid config -> transitions to idle
	m.UpdateS3Config(S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret", Region: "us-east-1"})
	if m.Status().State != StateIdle {
		t.Errorf("state after set = %q, want %q", m.Status().State, StateIdle)
	}

	// Clear config -> transitions back to disabled
	m.UpdateS3Config(S3Config{})
	if m.Status().State != StateDisabled {
		t.Errorf("state after clear = %q, want %q", m.Status().State, StateDisabled)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("received %d callbacks, want 2", len(received))
	}
	if received[0].State != StateIdle {
		t.Errorf("first callback state = %q, want %q", received[0].State, StateIdle)
	}
	if received[1].State != StateDisabled {
		t.Errorf("second callback state = %q, want %q", received[1].State, StateDisabled)
	}
}

func TestManagerDisabledNoStart(t *testing.T) {
	m := NewManager(Config{}, nil, nil, nil, testLogger(), nil)

	ctx := context.Background()
	m.Start(ctx) // should be a no-op for disabled state

	// Stop should not block
	m.Stop()
}

func TestCleanupDeletesRecordsAndObjects(t *testing.T) {
	bs, hid := setupBackupStore(t)

	m := NewManager(Config{
		S3: S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret"},
	}, nil, bs, nil, testLogger(), nil)
	mock := newMockS3()
	m.client = mock

	if _, err := bs.Create(hid, "old.db.enc", "1/old.db.enc"); err != nil {
		t.Fatalf("create backup record: %v", err)
	}
	mock.objects["1/old.db.enc"] = []byte("encrypted")

	// Retention of 0 days makes every existing record eligible
	time.Sleep(10 * time.Millisecond)

	if err := m.Cleanup(context.Background(), hid, 0); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	mock.mu.Lock()
	_, exists := mock.objects["1/old.db.enc"]
	mock.mu.Unlock()
	if exists {
		t.Error("expected s3 object to be deleted")
	}

	remaining, _ := bs.List(hid, 10)
	if len(remaining) != 0 {
		t.Errorf("remaining records = %d, want 0", len(remaining))
	}
}

func TestDownloadStreamsBackup(t *testing.T) {
	bs, hid := setupBackupStore(t)

	m := NewManager(Config{
		S3: S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret"},
	}, nil, bs, nil, testLogger(), nil)
	mock := newMockS3()
	m.client = mock

	rec, err := bs.Create(hid, "snap.db.enc", "1/snap.db.enc")
	if err != nil {
		t.Fatalf("create backup record: %v", err)
	}
	if err := bs.MarkCompleted(rec.ID, 9); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	mock.objects["1/snap.db.enc"] = []byte("encrypted")

	body, size, err := m.Download(context.Background(), rec.ID, hid)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer body.Close()

	data, _ := io.ReadAll(body)
	if string(data) != "encrypted" {
		t.Errorf("body = %q, want %q", data, "encrypted")
	}
	if size != 9 {
		t.Errorf("size = %d, want 9", size)
	}
}

func TestRunNowUnconfigured(t *testing.T) {
	m := NewManager(Config{}, nil, nil, nil, testLogger(), nil)

	_, err := m.RunNow(context.Background(), 1, "hunter2")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestDownloadUnknownBackup(t *testing.T) {
	bs, hid := setupBackupStore(t)

	m := NewManager(Config{
		S3: S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret"},
	}, nil, bs, nil, testLogger(), nil)
	m.client = newMockS3()

	if _, _, err := m.Download(context.Background(), 999, hid); err == nil {
		t.Fatal("expected error for unknown backup")
	}
}
