package store

import (
	"testing"

	"github.com/owenwright/cookies/internal/database"
)

func setupSettingsTestDB(t *testing.T) *SettingsStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSettingsStore(db)
}

func TestSettingsGetUnset(t *testing.T) {
	s := setupSettingsTestDB(t)
	got, err := s.Get(SettingOperatorKeyHash)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

func TestSettingsSetGetOverwrite(t *testing.T) {
	s := setupSettingsTestDB(t)

	if err := s.Set(SettingBackupKeep, "5"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := s.Get(SettingBackupKeep)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "5" {
		t.Fatalf("got %q, want %q", got, "5")
	}

	if err := s.Set(SettingBackupKeep, "10"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err = s.Get(SettingBackupKeep)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "10" {
		t.Fatalf("got %q, want %q", got, "10")
	}
}
