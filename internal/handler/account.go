package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/owenwright/cookies/internal/allowance"
	"github.com/owenwright/cookies/internal/auth"
	"github.com/owenwright/cookies/internal/model"
	"github.com/owenwright/cookies/internal/store"
	"github.com/owenwright/cookies/internal/usage"
)

type AccountHandler struct {
	accountStore *store.AccountStore
	sessionStore *store.SessionStore
	cookieStore  *store.CookieStore
	machine      *allowance.Machine
	usage        *usage.Manager
}

func NewAccountHandler(as *store.AccountStore, ss *store.SessionStore, cs *store.CookieStore, machine *allowance.Machine, um *usage.Manager) *AccountHandler {
	return &AccountHandler{
		accountStore: as,
		sessionStore: ss,
		cookieStore:  cs,
		machine:      machine,
		usage:        um,
	}
}

// Create provisions an anonymous account and opens a session for it. This is
// sign-up and sign-in in one step.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.accountStore.Create(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	token, sess, err := h.sessionStore.Create(accountID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if err := h.machine.SetAccount(accountID); err != nil {
		log.Printf("set account on allowance: %v", err)
	}
	if err := h.usage.SetAccount(accountID); err != nil {
		log.Printf("set account on usage: %v", err)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"account_id": accountID,
		"token":      token,
		"expires_at": sess.ExpiresAt,
	})
}

// SignIn opens a session for an existing account.
func (h *AccountHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID string `json:"account_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.AccountID == "" {
		writeError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	account, err := h.accountStore.Get(r.Context(), req.AccountID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if account == nil {
		writeStoreError(w, store.ErrAccountNotFound)
		return
	}
	token, sess, err := h.sessionStore.Create(account.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if err := h.machine.SetAccount(account.ID); err != nil {
		log.Printf("set account on allowance: %v", err)
	}
	if err := h.usage.SetAccount(account.ID); err != nil {
		log.Printf("set account on usage: %v", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account_id": account.ID,
		"token":      token,
		"expires_at": sess.ExpiresAt,
	})
}

// SignOut ends the session and clears all local allowance state.
func (h *AccountHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())

	if err := h.usage.SetAccount(""); err != nil {
		log.Printf("close usage session: %v", err)
	}
	if err := h.machine.SetAccount(""); err != nil {
		log.Printf("clear allowance: %v", err)
	}

	if err := h.sessionStore.DeleteByAccount(accountID); err != nil {
		log.Printf("delete sessions: %v", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

// Me returns the caller's account profile and cookie tokens.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())
	account, err := h.accountStore.Get(r.Context(), accountID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if account == nil {
		writeStoreError(w, store.ErrAccountNotFound)
		return
	}
	tokens, err := h.cookieStore.ListTokens(r.Context(), accountID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if tokens == nil {
		tokens = []model.AccountToken{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": account,
		"tokens":  tokens,
	})
}

// CompleteOnboarding records that the first-run flow finished.
func (h *AccountHandler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())
	if err := h.accountStore.MarkOnboardingComplete(r.Context(), accountID); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "onboarded"})
}

type cookieValuesRequest struct {
	Values map[string]int `json:"values"`
}

// SetCookieValues configures per-type minute values for the account.
func (h *AccountHandler) SetCookieValues(w http.ResponseWriter, r *http.Request) {
	var req cookieValuesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Values) == 0 {
		writeError(w, http.StatusBadRequest, "values is required")
		return
	}
	for cookieType, minutes := range req.Values {
		if cookieType == "" || minutes <= 0 {
			writeError(w, http.StatusBadRequest, "values must map cookie types to positive minutes")
			return
		}
	}

	accountID := auth.AccountID(r.Context())
	if err := h.accountStore.SetCookieValues(r.Context(), accountID, req.Values); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"values": req.Values})
}

// SetTimezone records the device's UTC offset for insight bucketing.
func (h *AccountHandler) SetTimezone(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OffsetMinutes int `json:"offset_minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	accountID := auth.AccountID(r.Context())
	if err := h.accountStore.SetTimezoneOffset(r.Context(), accountID, req.OffsetMinutes); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"offset_minutes": req.OffsetMinutes})
}

// DeleteData erases the account and everything keyed to it, then clears
// local state. The physical cookies become unclaimed history; the pack
// binding survives so they cannot be re-registered elsewhere.
func (h *AccountHandler) DeleteData(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())

	if err := h.usage.SetAccount(""); err != nil {
		log.Printf("close usage session: %v", err)
	}
	if err := h.machine.SetAccount(""); err != nil {
		log.Printf("clear allowance: %v", err)
	}
	if err := h.accountStore.DeleteData(r.Context(), accountID); err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
