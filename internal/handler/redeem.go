package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/owenwright/cookies/internal/allowance"
	"github.com/owenwright/cookies/internal/auth"
	"github.com/owenwright/cookies/internal/model"
	"github.com/owenwright/cookies/internal/scan"
	"github.com/owenwright/cookies/internal/store"
	"github.com/owenwright/cookies/internal/websocket"
)

type RedeemHandler struct {
	cookieStore  *store.CookieStore
	accountStore *store.AccountStore
	machine      *allowance.Machine
	hub          *websocket.Hub
}

func NewRedeemHandler(cs *store.CookieStore, as *store.AccountStore, machine *allowance.Machine, hub *websocket.Hub) *RedeemHandler {
	return &RedeemHandler{cookieStore: cs, accountStore: as, machine: machine, hub: hub}
}

func (h *RedeemHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type redeemRequest struct {
	TokenID string `json:"token_id"`
}

type redeemResponse struct {
	Minutes   int             `json:"minutes"`
	Allowance allowance.State `json:"allowance"`
}

// Redeem marks the scanned cookie spent for today and credits its minutes.
// The ledger write settles before any credit is granted; a redemption that
// cannot be confirmed grants nothing.
func (h *RedeemHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	tokenID, err := scan.Normalize(req.TokenID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "token_id is required")
		return
	}

	accountID := auth.AccountID(r.Context())
	minutes, err := h.cookieStore.Redeem(r.Context(), tokenID, accountID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	state, err := h.machine.AddMinutes(minutes)
	if err != nil {
		// The spend is already durable; surface the credit failure rather
		// than pretending the cookie is still unspent.
		log.Printf("credit after redemption failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}

	h.broadcast(websocket.RedemptionMessage(accountID, tokenID, minutes))
	h.broadcast(websocket.AllowanceMessage(accountID, state))

	writeJSON(w, http.StatusOK, redeemResponse{Minutes: minutes, Allowance: state})
}

// EmergencyUnlock grants the account's configured cookie value once per
// cooldown period, without spending a cookie.
func (h *RedeemHandler) EmergencyUnlock(w http.ResponseWriter, r *http.Request) {
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
	minutes := account.CookieValues[model.CookieTypeCookie]
	if minutes <= 0 {
		minutes = model.DefaultMinutesValue
	}

	if err := h.accountStore.UseEmergencyUnlock(r.Context(), accountID); err != nil {
		writeStoreError(w, err)
		return
	}

	state, err := h.machine.AddMinutes(minutes)
	if err != nil {
		log.Printf("credit after emergency unlock failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}

	h.broadcast(websocket.AllowanceMessage(accountID, state))
	writeJSON(w, http.StatusOK, redeemResponse{Minutes: minutes, Allowance: state})
}
