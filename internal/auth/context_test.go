package auth

import (
	"context"
	"testing"
)

func TestWithAuthAndFromContext(t *testing.T) {
	ac := AuthContext{
		AccountID: "acct-1",
		SessionID: 3,
	}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected AuthContext in context")
	}
	if got.AccountID != "acct-1" {
		t.Errorf("AccountID = %q, want %q", got.AccountID, "acct-1")
	}
	if got.SessionID != 3 {
		t.Errorf("SessionID = %d, want 3", got.SessionID)
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing AuthContext")
	}
}

func TestAccountID(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{AccountID: "acct-42"})
	if AccountID(ctx) != "acct-42" {
		t.Errorf("AccountID = %q, want %q", AccountID(ctx), "acct-42")
	}
}

func TestAccountIDMissing(t *testing.T) {
	if AccountID(context.Background()) != "" {
		t.Error("expected empty string for missing context")
	}
}
