package usage

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/owenwright/cookies/internal/database"
	"github.com/owenwright/cookies/internal/kv"
	"github.com/owenwright/cookies/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupManager(t *testing.T) (*Manager, *kv.Store, *store.UsageStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	kvStore := kv.Open(filepath.Join(t.TempDir(), "state.json"))
	sessions := store.NewUsageStore(db)
	return NewManager(kvStore, sessions, testLogger()), kvStore, sessions
}

func TestSessionRecordedOnLock(t *testing.T) {
	m, kvStore, sessions := setupManager(t)
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return start }

	if err := m.SetAccount("acct-1"); err != nil {
		t.Fatalf("SetAccount: %v", err)
	}
	if err := m.SetUnlockActive(true); err != nil {
		t.Fatalf("SetUnlockActive: %v", err)
	}
	if _, ok, _ := kvStore.GetTime(kv.KeySessionStart); !ok {
		t.Fatal("expected open session marker")
	}

	m.now = func() time.Time { return start.Add(30 * time.Minute) }
	if err := m.SetUnlockActive(false); err != nil {
		t.Fatalf("SetUnlockActive: %v", err)
	}

	got, err := sessions.ListSessions("acct-1", 10)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("sessions = %d, want 1", len(got))
	}
	if got[0].DurationSeconds != 1800 {
		t.Fatalf("duration = %d, want 1800", got[0].DurationSeconds)
	}
	if _, ok, _ := kvStore.GetTime(kv.KeySessionStart); ok {
		t.Fatal("session marker should be cleared")
	}
}

func TestRepeatedUnlockKeepsOriginalStart(t *testing.T) {
	m, _, sessions := setupManager(t)
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return start }

	if err := m.SetAccount("acct-1"); err != nil {
		t.Fatalf("SetAccount: %v", err)
	}
	if err := m.SetUnlockActive(true); err != nil {
		t.Fatalf("SetUnlockActive: %v", err)
	}

	// A second credit during an open session must not reset the start.
	m.now = func() time.Time { return start.Add(10 * time.Minute) }
	if err := m.SetUnlockActive(true); err != nil {
		t.Fatalf("SetUnlockActive: %v", err)
	}

	m.now = func() time.Time { return start.Add(20 * time.Minute) }
	if err := m.SetUnlockActive(false); err != nil {
		t.Fatalf("SetUnlockActive: %v", err)
	}

	got, err := sessions.ListSessions("acct-1", 10)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(got) != 1 || got[0].DurationSeconds != 1200 {
		t.Fatalf("sessions = %+v, want one 1200s session", got)
	}
}

func TestLockWithoutSessionIsNoop(t *testing.T) {
	m, _, sessions := setupManager(t)
	if err := m.SetAccount("acct-1"); err != nil {
		t.Fatalf("SetAccount: %v", err)
	}
	if err := m.SetUnlockActive(false); err != nil {
		t.Fatalf("SetUnlockActive: %v", err)
	}
	got, err := sessions.ListSessions("acct-1", 10)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("sessions = %d, want 0", len(got))
	}
}

func TestAccountSwitchClosesOpenSession(t *testing.T) {
	m, _, sessions := setupManager(t)
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return start }

	if err := m.SetAccount("acct-1"); err != nil {
		t.Fatalf("SetAccount: %v", err)
	}
	if err := m.SetUnlockActive(true); err != nil {
		t.Fatalf("SetUnlockActive: %v", err)
	}

	m.now = func() time.Time { return start.Add(5 * time.Minute) }
	if err := m.SetAccount("acct-2"); err != nil {
		t.Fatalf("SetAccount: %v", err)
	}

	got, err := sessions.ListSessions("acct-1", 10)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(got) != 1 || got[0].DurationSeconds != 300 {
		t.Fatalf("sessions = %+v, want one 300s session for acct-1", got)
	}
}
