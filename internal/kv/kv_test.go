package kv

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return Open(filepath.Join(t.TempDir(), "state.json"))
}

func TestGetMissing(t *testing.T) {
	s := newStore(t)
	_, ok, err := s.Get("nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected absent key")
	}
}

func TestSetGetDelete(t *testing.T) {
	s := newStore(t)
	if err := s.Set(KeyLastAccountID, "acct-1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := s.Get(KeyLastAccountID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || v != "acct-1" {
		t.Fatalf("got %q ok=%v", v, ok)
	}

	if err := s.Delete(KeyLastAccountID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, ok, err = s.Get(KeyLastAccountID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected key removed")
	}
}

func TestDeleteMissingKeyIsNoop(t *testing.T) {
	s := newStore(t)
	if err := s.Delete("nothing"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestTimeRoundTrip(t *testing.T) {
	s := newStore(t)
	want := time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)
	if err := s.SetTime(KeyPendingEnd, want); err != nil {
		t.Fatalf("SetTime: %v", err)
	}
	got, ok, err := s.GetTime(KeyPendingEnd)
	if err != nil {
		t.Fatalf("GetTime: %v", err)
	}
	if !ok || !got.Equal(want) {
		t.Fatalf("got %v ok=%v, want %v", got, ok, want)
	}
}

func TestCrossHandleVisibility(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	writer := Open(path)
	if err := writer.Set(KeySelection, "payload"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reader := Open(path)
	v, ok, err := reader.Get(KeySelection)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || v != "payload" {
		t.Fatalf("got %q ok=%v", v, ok)
	}
}

func TestCorruptFileRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s := Open(path)
	if _, _, err := s.Get("k"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestAccountEndKey(t *testing.T) {
	if got := AccountEndKey("abc"); got != "allowanceEndDate.abc" {
		t.Fatalf("got %q", got)
	}
}
