package store

import (
	"testing"
	"time"

	"github.com/dukerupert/elevenses/internal/auth"
	"github.com/dukerupert/elevenses/internal/database"
	"github.com/dukerupert/elevenses/internal/model"
)

func setupPushTestDB(t *testing.T) (*PushStore, int64, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	hs := NewHouseholdStore(db)
	h, err := hs.Create("Test Household")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	u, err := NewUserStore(db).Create("pippin@example.com", "Pippin")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := hs.AddMember(h.ID, u.ID, auth.RoleAdmin); err != nil {
		t.Fatalf("add member: %v", err)
	}

	return NewPushStore(db), h.ID, u.ID
}

func TestSaveSubscription(t *testing.T) {
	ps, hid, uid := setupPushTestDB(t)

	sub, err := ps.SaveSubscription(uid, hid, "https://push.example.com/sub1", "p256dh_key1", "auth_key1", "Chrome Desktop")
	if err != nil {
		t.Fatalf("save subscription: %v", err)
	}
	if sub.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if sub.Endpoint != "https://push.example.com/sub1" {
		t.Errorf("endpoint = %q, want %q", sub.Endpoint, "https://push.example.com/sub1")
	}
	if sub.DeviceName != "Chrome Desktop" {
		t.Errorf("device_name = %q, want %q", sub.DeviceName, "Chrome Desktop")
	}
}

func TestSaveSubscriptionRefreshesKeys(t *testing.T) {
	ps, hid, uid := setupPushTestDB(t)

	first, err := ps.SaveSubscription(uid, hid, "https://push.example.com/sub1", "key1", "auth1", "Device A")
	if err != nil {
		t.Fatalf("save subscription: %v", err)
	}
	second, err := ps.SaveSubscription(uid, hid, "https://push.example.com/sub1", "key2", "auth2", "Device B")
	if err != nil {
		t.Fatalf("save again: %v", err)
	}

	// Same endpoint means the same row, with the keys rotated in place.
	if second.ID != first.ID {
		t.Errorf("ID = %d, want %d (same endpoint)", second.ID, first.ID)
	}
	if second.P256dhKey != "key2" {
		t.Errorf("p256dh = %q, want %q", second.P256dhKey, "key2")
	}
	if second.DeviceName != "Device B" {
		t.Errorf("device_name = %q, want %q", second.DeviceName, "Device B")
	}
}

func TestSubscriptionLists(t *testing.T) {
	ps, hid, uid := setupPushTestDB(t)

	ps.SaveSubscription(uid, hid, "https://push.example.com/1", "k1", "a1", "Phone")
	ps.SaveSubscription(uid, hid, "https://push.example.com/2", "k2", "a2", "Laptop")

	byUser, err := ps.ListByUser(uid, hid)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(byUser) != 2 {
		t.Fatalf("user subs = %d, want 2", len(byUser))
	}

	byHousehold, err := ps.ListByHousehold(hid)
	if err != nil {
		t.Fatalf("list by household: %v", err)
	}
	if len(byHousehold) != 2 {
		t.Fatalf("household subs = %d, want 2", len(byHousehold))
	}
}

func TestDeleteSubscription(t *testing.T) {
	ps, hid, uid := setupPushTestDB(t)

	sub, _ := ps.SaveSubscription(uid, hid, "https://push.example.com/1", "k1", "a1", "Phone")

	if err := ps.DeleteSubscription(sub.ID, hid); err != nil {
		t.Fatalf("delete: %v", err)
	}

	subs, _ := ps.ListByUser(uid, hid)
	if len(subs) != 0 {
		t.Errorf("subs after delete = %d, want 0", len(subs))
	}
}

func TestDeleteByEndpoint(t *testing.T) {
	ps, hid, uid := setupPushTestDB(t)

	ps.SaveSubscription(uid, hid, "https://push.example.com/expired", "k1", "a1", "Phone")

	if err := ps.DeleteByEndpoint("https://push.example.com/expired"); err != nil {
		t.Fatalf("delete by endpoint: %v", err)
	}

	subs, _ := ps.ListByUser(uid, hid)
	if len(subs) != 0 {
		t.Errorf("subs after delete = %d, want 0", len(subs))
	}
}

func TestSubscribedHouseholds(t *testing.T) {
	ps, hid, uid := setupPushTestDB(t)

	ids, err := ps.SubscribedHouseholds()
	if err != nil {
		t.Fatalf("subscribed households: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("ids = %v, want none before any subscription", ids)
	}

	ps.SaveSubscription(uid, hid, "https://push.example.com/1", "k1", "a1", "Phone")
	ps.SaveSubscription(uid, hid, "https://push.example.com/2", "k2", "a2", "Laptop")

	ids, err = ps.SubscribedHouseholds()
	if err != nil {
		t.Fatalf("subscribed households: %v", err)
	}
	// Two subscriptions, one household: distinct IDs only.
	if len(ids) != 1 || ids[0] != hid {
		t.Errorf("ids = %v, want [%d]", ids, hid)
	}
}

func TestPreferenceDefaultsEnabled(t *testing.T) {
	ps, hid, uid := setupPushTestDB(t)

	enabled, err := ps.IsPreferenceEnabled(uid, hid, model.NotifTypeDinnerReminder)
	if err != nil {
		t.Fatalf("check default pref: %v", err)
	}
	if !enabled {
		t.Error("expected notifications enabled before any preference is stored")
	}
}

func TestPreferenceRoundTrip(t *testing.T) {
	ps, hid, uid := setupPushTestDB(t)

	if err := ps.SetPreference(uid, hid, model.NotifTypeDinnerReminder, false); err != nil {
		t.Fatalf("set preference: %v", err)
	}

	enabled, err := ps.IsPreferenceEnabled(uid, hid, model.NotifTypeDinnerReminder)
	if err != nil {
		t.Fatalf("check disabled pref: %v", err)
	}
	if enabled {
		t.Error("expected enabled=false after opting out")
	}

	prefs, err := ps.ListPreferences(uid, hid)
	if err != nil {
		t.Fatalf("list preferences: %v", err)
	}
	if len(prefs) != 1 {
		t.Fatalf("prefs = %d, want 1", len(prefs))
	}
	if prefs[0].NotificationType != model.NotifTypeDinnerReminder {
		t.Errorf("type = %q, want %q", prefs[0].NotificationType, model.NotifTypeDinnerReminder)
	}
	if prefs[0].Enabled {
		t.Error("expected stored preference disabled")
	}

	// Setting the same type again updates the row instead of adding one.
	if err := ps.SetPreference(uid, hid, model.NotifTypeDinnerReminder, true); err != nil {
		t.Fatalf("set preference again: %v", err)
	}
	enabled, _ = ps.IsPreferenceEnabled(uid, hid, model.NotifTypeDinnerReminder)
	if !enabled {
		t.Error("expected enabled=true after re-enabling")
	}
	prefs, _ = ps.ListPreferences(uid, hid)
	if len(prefs) != 1 {
		t.Errorf("prefs = %d, want 1 after upsert", len(prefs))
	}
}

func TestSentNotificationDedup(t *testing.T) {
	ps, hid, _ := setupPushTestDB(t)

	sent, err := ps.WasSent(hid, model.NotifTypeDinnerReminder, "dinner-2026-03-02", 15)
	if err != nil {
		t.Fatalf("was sent: %v", err)
	}
	if sent {
		t.Error("expected not sent before recording")
	}

	if err := ps.RecordSent(hid, model.NotifTypeDinnerReminder, "dinner-2026-03-02", 15); err != nil {
		t.Fatalf("record sent: %v", err)
	}

	sent, _ = ps.WasSent(hid, model.NotifTypeDinnerReminder, "dinner-2026-03-02", 15)
	if !sent {
		t.Error("expected sent after recording")
	}

	// A different lead time is a different reminder window.
	sent, _ = ps.WasSent(hid, model.NotifTypeDinnerReminder, "dinner-2026-03-02", 60)
	if sent {
		t.Error("expected not sent for a different lead time")
	}

	if err := ps.RecordSent(hid, model.NotifTypeDinnerReminder, "dinner-2026-03-02", 15); err != nil {
		t.Fatalf("duplicate record sent should not error: %v", err)
	}
}

func TestCleanupSent(t *testing.T) {
	ps, hid, _ := setupPushTestDB(t)

	ps.RecordSent(hid, model.NotifTypeDinnerReminder, "dinner-2026-02-23", 15)
	ps.RecordSent(hid, model.NotifTypeDinnerReminder, "dinner-2026-03-02", 15)

	// A cutoff in the past matches nothing.
	if err := ps.CleanupSent(time.Now().UTC().Add(-1 * time.Hour)); err != nil {
		t.Fatalf("cleanup sent: %v", err)
	}
	sent, _ := ps.WasSent(hid, model.NotifTypeDinnerReminder, "dinner-2026-02-23", 15)
	if !sent {
		t.Error("expected dedup row to survive a past cutoff")
	}

	// A cutoff in the future sweeps everything.
	if err := ps.CleanupSent(time.Now().UTC().Add(1 * time.Hour)); err != nil {
		t.Fatalf("cleanup sent: %v", err)
	}
	for _, ref := range []string{"dinner-2026-02-23", "dinner-2026-03-02"} {
		sent, _ = ps.WasSent(hid, model.NotifTypeDinnerReminder, ref, 15)
		if sent {
			t.Errorf("expected %s dedup row to be swept", ref)
		}
	}
}

func TestPushHouseholdIsolation(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	hs := NewHouseholdStore(db)
	us := NewUserStore(db)

	h1, _ := hs.Create("North House")
	h2, _ := hs.Create("South House")
	u1, err := us.Create("merry@example.com", "Merry")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	u2, err := us.Create("fatty@example.com", "Fatty")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	hs.AddMember(h1.ID, u1.ID, auth.RoleAdmin)
	hs.AddMember(h2.ID, u2.ID, auth.RoleAdmin)

	ps := NewPushStore(db)
	ps.SaveSubscription(u1.ID, h1.ID, "https://push.example.com/a", "k1", "a1", "Phone")
	ps.SaveSubscription(u2.ID, h2.ID, "https://push.example.com/b", "k2", "a2", "Phone")

	subs1, _ := ps.ListByHousehold(h1.ID)
	subs2, _ := ps.ListByHousehold(h2.ID)
	if len(subs1) != 1 {
		t.Errorf("household 1 subs = %d, want 1", len(subs1))
	}
	if len(subs2) != 1 {
		t.Errorf("household 2 subs = %d, want 1", len(subs2))
	}

	// Deleting with the wrong household is a silent no-op; the row stays.
	if err := ps.DeleteSubscription(subs1[0].ID, h2.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	remaining, _ := ps.ListByHousehold(h1.ID)
	if len(remaining) != 1 {
		t.Errorf("sub should still exist, got %d", len(remaining))
	}
}
