package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/owenwright/cookies/internal/auth"
	"github.com/owenwright/cookies/internal/database"
	"github.com/owenwright/cookies/internal/store"
)

func setupStores(t *testing.T) (*store.SessionStore, *store.AccountStore, *store.SettingsStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.NewSessionStore(db), store.NewAccountStore(db), store.NewSettingsStore(db)
}

func okHandler(gotAccount *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotAccount = auth.AccountID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireSessionBearer(t *testing.T) {
	sessions, accounts, _ := setupStores(t)
	accountID, err := accounts.Create(context.Background())
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	token, _, err := sessions.Create(accountID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	var gotAccount string
	handler := RequireSession(sessions)(okHandler(&gotAccount))

	req := httptest.NewRequest("GET", "/api/allowance", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotAccount != accountID {
		t.Fatalf("account = %q, want %q", gotAccount, accountID)
	}
}

func TestRequireSessionCookie(t *testing.T) {
	sessions, accounts, _ := setupStores(t)
	accountID, err := accounts.Create(context.Background())
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	token, _, err := sessions.Create(accountID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	var gotAccount string
	handler := RequireSession(sessions)(okHandler(&gotAccount))

	req := httptest.NewRequest("GET", "/api/allowance", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotAccount != accountID {
		t.Fatalf("account = %q, want %q", gotAccount, accountID)
	}
}

func TestRequireSessionRejectsMissingToken(t *testing.T) {
	sessions, _, _ := setupStores(t)
	var gotAccount string
	handler := RequireSession(sessions)(okHandler(&gotAccount))

	req := httptest.NewRequest("GET", "/api/allowance", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireSessionRejectsBadToken(t *testing.T) {
	sessions, _, _ := setupStores(t)
	var gotAccount string
	handler := RequireSession(sessions)(okHandler(&gotAccount))

	req := httptest.NewRequest("GET", "/api/allowance", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireOperator(t *testing.T) {
	_, _, settings := setupStores(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("open-sesame"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	if err := settings.Set(store.SettingOperatorKeyHash, string(hash)); err != nil {
		t.Fatalf("set hash: %v", err)
	}

	handler := RequireOperator(settings)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/api/packs", nil)
	req.Header.Set("X-Operator-Key", "open-sesame")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest("POST", "/api/packs", nil)
	req.Header.Set("X-Operator-Key", "wrong")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestRequireOperatorUnconfigured(t *testing.T) {
	_, _, settings := setupStores(t)
	handler := RequireOperator(settings)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/api/packs", nil)
	req.Header.Set("X-Operator-Key", "anything")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}
