package allowance

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/owenwright/cookies/internal/kv"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMachine(t *testing.T, store *kv.Store, onTransition TransitionFunc) *Machine {
	t.Helper()
	m, err := NewMachine(store, testLogger(), onTransition)
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	return m
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestComputeNilDeadline(t *testing.T) {
	got := Compute(nil, time.Now())
	if got.UnlockActive || got.RemainingSeconds != 0 {
		t.Fatalf("got %+v, want locked zero", got)
	}
}

func TestComputePastDeadline(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	got := Compute(&past, now)
	if got.UnlockActive || got.RemainingSeconds != 0 {
		t.Fatalf("got %+v, want locked zero", got)
	}
}

func TestComputeFutureDeadline(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	end := now.Add(30 * time.Minute)
	got := Compute(&end, now)
	if !got.UnlockActive {
		t.Fatal("expected unlock active")
	}
	if got.RemainingSeconds != 1800 {
		t.Fatalf("remaining = %d, want 1800", got.RemainingSeconds)
	}
}

func TestAddMinutesStartsWindow(t *testing.T) {
	store := kv.Open(filepath.Join(t.TempDir(), "state.json"))
	m := newTestMachine(t, store, nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = fixedClock(now)

	if err := m.SetAccount("acct-1"); err != nil {
		t.Fatalf("SetAccount: %v", err)
	}
	state, err := m.AddMinutes(30)
	if err != nil {
		t.Fatalf("AddMinutes: %v", err)
	}
	if state.RemainingSeconds != 1800 || !state.UnlockActive {
		t.Fatalf("got %+v", state)
	}

	saved, ok, err := store.GetTime(kv.AccountEndKey("acct-1"))
	if err != nil || !ok {
		t.Fatalf("deadline not persisted: ok=%v err=%v", ok, err)
	}
	if !saved.Equal(now.Add(30 * time.Minute)) {
		t.Fatalf("saved = %v", saved)
	}
}

func TestAddMinutesStacks(t *testing.T) {
	store := kv.Open(filepath.Join(t.TempDir(), "state.json"))
	m := newTestMachine(t, store, nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = fixedClock(now)

	if err := m.SetAccount("acct-1"); err != nil {
		t.Fatalf("SetAccount: %v", err)
	}
	if _, err := m.AddMinutes(30); err != nil {
		t.Fatalf("AddMinutes: %v", err)
	}
	state, err := m.AddMinutes(30)
	if err != nil {
		t.Fatalf("AddMinutes: %v", err)
	}
	if state.RemainingSeconds != 3600 {
		t.Fatalf("remaining = %d, want 3600 after stacking", state.RemainingSeconds)
	}
}

func TestAddMinutesExpiredWindowRestartsFromNow(t *testing.T) {
	store := kv.Open(filepath.Join(t.TempDir(), "state.json"))
	m := newTestMachine(t, store, nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = fixedClock(now)

	if err := m.SetAccount("acct-1"); err != nil {
		t.Fatalf("SetAccount: %v", err)
	}
	if _, err := m.AddMinutes(30); err != nil {
		t.Fatalf("AddMinutes: %v", err)
	}

	later := now.Add(2 * time.Hour)
	m.now = fixedClock(later)
	state, err := m.AddMinutes(30)
	if err != nil {
		t.Fatalf("AddMinutes: %v", err)
	}
	if state.RemainingSeconds != 1800 {
		t.Fatalf("remaining = %d, want fresh 1800", state.RemainingSeconds)
	}
}

func TestPendingCreditAdoptedOnSignIn(t *testing.T) {
	store := kv.Open(filepath.Join(t.TempDir(), "state.json"))
	m := newTestMachine(t, store, nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = fixedClock(now)

	// Credit earned before any sign-in parks under the pending key.
	if _, err := m.AddMinutes(30); err != nil {
		t.Fatalf("AddMinutes: %v", err)
	}
	if _, ok, _ := store.GetTime(kv.KeyPendingEnd); !ok {
		t.Fatal("expected pending deadline")
	}

	if err := m.SetAccount("acct-1"); err != nil {
		t.Fatalf("SetAccount: %v", err)
	}
	state := m.State()
	if state.RemainingSeconds != 1800 {
		t.Fatalf("remaining = %d, want adopted 1800", state.RemainingSeconds)
	}
	if _, ok, _ := store.GetTime(kv.KeyPendingEnd); ok {
		t.Fatal("pending deadline should be cleared after adoption")
	}
	if saved, ok, _ := store.GetTime(kv.AccountEndKey("acct-1")); !ok || !saved.Equal(now.Add(30*time.Minute)) {
		t.Fatalf("account deadline = %v ok=%v", saved, ok)
	}
}

func TestSignOutClearsState(t *testing.T) {
	store := kv.Open(filepath.Join(t.TempDir(), "state.json"))
	m := newTestMachine(t, store, nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = fixedClock(now)

	if err := m.SetAccount("acct-1"); err != nil {
		t.Fatalf("SetAccount: %v", err)
	}
	if _, err := m.AddMinutes(30); err != nil {
		t.Fatalf("AddMinutes: %v", err)
	}
	if err := m.SetAccount(""); err != nil {
		t.Fatalf("sign out: %v", err)
	}

	if state := m.State(); state.UnlockActive {
		t.Fatal("expected locked after sign out")
	}
	if _, ok, _ := store.Get(kv.KeyLastAccountID); ok {
		t.Fatal("last account should be cleared")
	}
	if _, ok, _ := store.GetTime(kv.AccountEndKey("acct-1")); ok {
		t.Fatal("account deadline should be cleared")
	}
}

func TestRestoreFromLastAccount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := kv.Open(path)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first := newTestMachine(t, store, nil)
	first.now = fixedClock(now)
	if err := first.SetAccount("acct-1"); err != nil {
		t.Fatalf("SetAccount: %v", err)
	}
	if _, err := first.AddMinutes(45); err != nil {
		t.Fatalf("AddMinutes: %v", err)
	}

	// A new process reconstructs the same view from the state file.
	second := newTestMachine(t, kv.Open(path), nil)
	second.now = fixedClock(now.Add(15 * time.Minute))
	if second.AccountID() != "acct-1" {
		t.Fatalf("account = %q", second.AccountID())
	}
	state := second.Recompute()
	if state.RemainingSeconds != 1800 {
		t.Fatalf("remaining = %d, want 1800", state.RemainingSeconds)
	}
}

func TestTransitionFiresOncePerEdge(t *testing.T) {
	store := kv.Open(filepath.Join(t.TempDir(), "state.json"))
	var transitions []bool
	m := newTestMachine(t, store, func(accountID string, state State) {
		transitions = append(transitions, state.UnlockActive)
	})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = fixedClock(now)

	if err := m.SetAccount("acct-1"); err != nil {
		t.Fatalf("SetAccount: %v", err)
	}
	if _, err := m.AddMinutes(30); err != nil {
		t.Fatalf("AddMinutes: %v", err)
	}
	m.Recompute()
	m.Recompute()

	m.now = fixedClock(now.Add(time.Hour))
	m.Recompute()
	m.Recompute()

	if len(transitions) != 2 || transitions[0] != true || transitions[1] != false {
		t.Fatalf("transitions = %v, want [true false]", transitions)
	}
}

func TestSameAccountIsNoop(t *testing.T) {
	store := kv.Open(filepath.Join(t.TempDir(), "state.json"))
	m := newTestMachine(t, store, nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = fixedClock(now)

	if err := m.SetAccount("acct-1"); err != nil {
		t.Fatalf("SetAccount: %v", err)
	}
	if _, err := m.AddMinutes(30); err != nil {
		t.Fatalf("AddMinutes: %v", err)
	}
	if err := m.SetAccount("acct-1"); err != nil {
		t.Fatalf("SetAccount: %v", err)
	}
	if state := m.State(); state.RemainingSeconds != 1800 {
		t.Fatalf("remaining = %d, repeated sign-in must not reset", state.RemainingSeconds)
	}
}

func TestRecomputeReloadsPendingDeadline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := kv.Open(path)
	m := newTestMachine(t, store, nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = fixedClock(now)

	// Another process parks credit under the pending key while no account
	// is signed in here.
	other := kv.Open(path)
	end := now.Add(20 * time.Minute)
	if err := other.SetTime(kv.KeyPendingEnd, end); err != nil {
		t.Fatalf("SetTime: %v", err)
	}

	state := m.Recompute()
	if !state.UnlockActive {
		t.Fatal("pending deadline from the state file should unlock")
	}
	if state.RemainingSeconds != 20*60 {
		t.Fatalf("remaining = %d, want %d", state.RemainingSeconds, 20*60)
	}
}
