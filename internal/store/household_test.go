package store

import (
	"testing"

	"github.com/dukerupert/elevenses/internal/database"
)

func setupHouseholdTestDB(t *testing.T) (*HouseholdStore, *UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewHouseholdStore(db), NewUserStore(db)
}

func TestHouseholdCreate(t *testing.T) {
	hs, _ := setupHouseholdTestDB(t)

	h, err := hs.Create("Bag End")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	if h.Name != "Bag End" {
		t.Errorf("name = %q, want %q", h.Name, "Bag End")
	}
	if h.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if h.CreatedAt.IsZero() {
		t.Error("expected created_at to be populated")
	}
}

func TestHouseholdGetByID(t *testing.T) {
	hs, _ := setupHouseholdTestDB(t)

	created, err := hs.Create("Bag End")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}

	h, err := hs.GetByID(created.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if h == nil || h.Name != "Bag End" {
		t.Errorf("got %+v, want Bag End", h)
	}
}

func TestHouseholdGetByIDNotFound(t *testing.T) {
	hs, _ := setupHouseholdTestDB(t)

	h, err := hs.GetByID(999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if h != nil {
		t.Error("expected nil for nonexistent household")
	}
}

func TestHouseholdUpdate(t *testing.T) {
	hs, _ := setupHouseholdTestDB(t)

	created, err := hs.Create("Bag End")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := hs.Update(created.ID, "Crickhollow")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Crickhollow" {
		t.Errorf("name = %q, want %q", updated.Name, "Crickhollow")
	}

	fetched, err := hs.GetByID(created.ID)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if fetched.Name != "Crickhollow" {
		t.Errorf("persisted name = %q, want %q", fetched.Name, "Crickhollow")
	}
}

func TestHouseholdDelete(t *testing.T) {
	hs, _ := setupHouseholdTestDB(t)

	created, err := hs.Create("Bag End")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := hs.Delete(created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	h, err := hs.GetByID(created.ID)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if h != nil {
		t.Error("expected nil after delete")
	}
}

func TestHouseholdAddMember(t *testing.T) {
	hs, us := setupHouseholdTestDB(t)

	h, err := hs.Create("Bag End")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	u, err := us.Create("frodo@example.com", "Frodo")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	m, err := hs.AddMember(h.ID, u.ID, "admin")
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if m.Role != "admin" {
		t.Errorf("role = %q, want %q", m.Role, "admin")
	}
	if m.HouseholdID != h.ID {
		t.Errorf("household_id = %d, want %d", m.HouseholdID, h.ID)
	}
	if m.UserID != u.ID {
		t.Errorf("user_id = %d, want %d", m.UserID, u.ID)
	}
	if m.CreatedAt.IsZero() {
		t.Error("expected created_at to be populated")
	}
}

func TestHouseholdAddMemberDuplicate(t *testing.T) {
	hs, us := setupHouseholdTestDB(t)

	h, _ := hs.Create("Bag End")
	u, _ := us.Create("frodo@example.com", "Frodo")

	if _, err := hs.AddMember(h.ID, u.ID, "admin"); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if _, err := hs.AddMember(h.ID, u.ID, "member"); err == nil {
		t.Fatal("expected error for duplicate membership, got nil")
	}
}

func TestHouseholdRemoveMember(t *testing.T) {
	hs, us := setupHouseholdTestDB(t)

	h, _ := hs.Create("Bag End")
	u, _ := us.Create("frodo@example.com", "Frodo")
	hs.AddMember(h.ID, u.ID, "admin")

	if err := hs.RemoveMember(h.ID, u.ID); err != nil {
		t.Fatalf("remove member: %v", err)
	}

	m, err := hs.GetMember(h.ID, u.ID)
	if err != nil {
		t.Fatalf("get member after remove: %v", err)
	}
	if m != nil {
		t.Error("expected nil after remove")
	}
}

func TestHouseholdListMembersOrder(t *testing.T) {
	hs, us := setupHouseholdTestDB(t)

	h, _ := hs.Create("Bag End")
	frodo, _ := us.Create("frodo@example.com", "Frodo")
	sam, _ := us.Create("sam@example.com", "Samwise")
	hs.AddMember(h.ID, frodo.ID, "admin")
	hs.AddMember(h.ID, sam.ID, "member")

	members, err := hs.ListMembers(h.ID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if members[0].UserID != frodo.ID || members[1].UserID != sam.ID {
		t.Errorf("members out of enrollment order: %d, %d", members[0].UserID, members[1].UserID)
	}
}

func TestHouseholdListHouseholdsForUser(t *testing.T) {
	hs, us := setupHouseholdTestDB(t)

	crick, _ := hs.Create("Crickhollow")
	bagEnd, _ := hs.Create("Bag End")
	hs.Create("Brandy Hall")
	u, _ := us.Create("frodo@example.com", "Frodo")
	hs.AddMember(crick.ID, u.ID, "member")
	hs.AddMember(bagEnd.ID, u.ID, "admin")

	households, err := hs.ListHouseholdsForUser(u.ID)
	if err != nil {
		t.Fatalf("list households for user: %v", err)
	}
	if len(households) != 2 {
		t.Fatalf("expected 2 households, got %d", len(households))
	}
	if households[0].Name != "Bag End" || households[1].Name != "Crickhollow" {
		t.Errorf("households out of name order: %q, %q", households[0].Name, households[1].Name)
	}
}

func TestHouseholdUpdateMemberRole(t *testing.T) {
	hs, us := setupHouseholdTestDB(t)

	h, _ := hs.Create("Bag End")
	u, _ := us.Create("sam@example.com", "Samwise")
	hs.AddMember(h.ID, u.ID, "member")

	m, err := hs.UpdateMemberRole(h.ID, u.ID, "admin")
	if err != nil {
		t.Fatalf("update member role: %v", err)
	}
	if m.Role != "admin" {
		t.Errorf("role = %q, want %q", m.Role, "admin")
	}
}

func TestHouseholdUpdateMemberRoleUnknown(t *testing.T) {
	hs, _ := setupHouseholdTestDB(t)

	h, _ := hs.Create("Bag End")

	m, err := hs.UpdateMemberRole(h.ID, 999, "admin")
	if err != nil {
		t.Fatalf("update member role: %v", err)
	}
	if m != nil {
		t.Error("expected nil for nonexistent membership")
	}
}

func TestHouseholdSeedDefaults(t *testing.T) {
	hs, _ := setupHouseholdTestDB(t)

	h, err := hs.Create("Bag End")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}

	if err := hs.SeedDefaults(h.ID); err != nil {
		t.Fatalf("seed defaults: %v", err)
	}

	var settingsCount int
	hs.db.QueryRow(`SELECT COUNT(*) FROM settings WHERE household_id = ?`, h.ID).Scan(&settingsCount)
	if settingsCount != 7 {
		t.Errorf("settings = %d, want 7", settingsCount)
	}

	var budget string
	hs.db.QueryRow(`SELECT value FROM settings WHERE household_id = ? AND key = 'weekday_time_budget'`, h.ID).Scan(&budget)
	if budget != "45" {
		t.Errorf("weekday_time_budget = %q, want %q", budget, "45")
	}
}

func TestHouseholdSeedDefaultsScoped(t *testing.T) {
	hs, _ := setupHouseholdTestDB(t)

	h1, _ := hs.Create("Bag End")
	h2, _ := hs.Create("Crickhollow")
	if err := hs.SeedDefaults(h1.ID); err != nil {
		t.Fatalf("seed defaults: %v", err)
	}

	var count int
	hs.db.QueryRow(`SELECT COUNT(*) FROM settings WHERE household_id = ?`, h2.ID).Scan(&count)
	if count != 0 {
		t.Errorf("expected no settings for unseeded household, got %d", count)
	}
}
