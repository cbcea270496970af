package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/owenwright/cookies/internal/auth"
	"github.com/owenwright/cookies/internal/model"
)

func emergencyUnlockRequest(t *testing.T, accountID string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/emergency-unlock", nil)
	return req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{AccountID: accountID}))
}

func TestEmergencyUnlockCreditsConfiguredValue(t *testing.T) {
	env := setupHandlerEnv(t)
	h := NewRedeemHandler(env.cookies, env.accounts, env.machine, nil)

	ctx := context.Background()
	accountID, err := env.accounts.Create(ctx)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if err := env.accounts.SetCookieValues(ctx, accountID, map[string]int{model.CookieTypeCookie: 60}); err != nil {
		t.Fatalf("set cookie values: %v", err)
	}

	rec := httptest.NewRecorder()
	h.EmergencyUnlock(rec, emergencyUnlockRequest(t, accountID))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp redeemResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Minutes != 60 {
		t.Errorf("minutes = %d, want 60", resp.Minutes)
	}
	if !resp.Allowance.UnlockActive {
		t.Error("unlock should be active after emergency grant")
	}
	if resp.Allowance.RemainingSeconds <= 30*60 {
		t.Errorf("remaining = %ds, want more than the 30-minute default", resp.Allowance.RemainingSeconds)
	}
}

func TestEmergencyUnlockDefaultValue(t *testing.T) {
	env := setupHandlerEnv(t)
	h := NewRedeemHandler(env.cookies, env.accounts, env.machine, nil)

	accountID, err := env.accounts.Create(context.Background())
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	rec := httptest.NewRecorder()
	h.EmergencyUnlock(rec, emergencyUnlockRequest(t, accountID))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp redeemResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Minutes != model.DefaultMinutesValue {
		t.Errorf("minutes = %d, want %d", resp.Minutes, model.DefaultMinutesValue)
	}
}

func TestEmergencyUnlockUnknownAccount(t *testing.T) {
	env := setupHandlerEnv(t)
	h := NewRedeemHandler(env.cookies, env.accounts, env.machine, nil)

	rec := httptest.NewRecorder()
	h.EmergencyUnlock(rec, emergencyUnlockRequest(t, "no-such-account"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
