package push

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/elevenses/internal/database"
	"github.com/dukerupert/elevenses/internal/store"
)

func TestPlanDay(t *testing.T) {
	cases := []struct {
		now       time.Time
		day       string
		weekStart string
	}{
		{time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC), "monday", "2026-03-02"},
		{time.Date(2026, 3, 4, 16, 0, 0, 0, time.UTC), "wednesday", "2026-03-02"},
		{time.Date(2026, 3, 8, 16, 0, 0, 0, time.UTC), "sunday", "2026-03-02"},
		{time.Date(2026, 3, 9, 16, 0, 0, 0, time.UTC), "monday", "2026-03-09"},
	}

	for _, tc := range cases {
		day, weekStart := planDay(tc.now)
		if day != tc.day {
			t.Errorf("planDay(%s) day = %s, want %s", tc.now.Format("2006-01-02"), day, tc.day)
		}
		if weekStart != tc.weekStart {
			t.Errorf("planDay(%s) week = %s, want %s", tc.now.Format("2006-01-02"), weekStart, tc.weekStart)
		}
	}
}

func TestReminderHour(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}

	households := store.NewHouseholdStore(db)
	settings := store.NewSettingsStore(db)
	hh, err := households.Create("Shire")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	if err := households.SeedDefaults(hh.ID); err != nil {
		t.Fatalf("seed defaults: %v", err)
	}

	s := NewScheduler(nil, nil, nil, settings, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if got := s.reminderHour(hh.ID); got != 16 {
		t.Errorf("seeded hour = %d, want 16", got)
	}

	if err := settings.Set(hh.ID, "dinner_reminder_hour", "19"); err != nil {
		t.Fatalf("set hour: %v", err)
	}
	if got := s.reminderHour(hh.ID); got != 19 {
		t.Errorf("configured hour = %d, want 19", got)
	}

	if err := settings.Set(hh.ID, "dinner_reminder_hour", "late"); err != nil {
		t.Fatalf("set hour: %v", err)
	}
	if got := s.reminderHour(hh.ID); got != 16 {
		t.Errorf("unparseable hour = %d, want default 16", got)
	}

	if got := s.reminderHour(999); got != 16 {
		t.Errorf("unknown household hour = %d, want default 16", got)
	}
}
