package handler

import (
	"encoding/json"
	"net/http"

	"github.com/owenwright/cookies/internal/allowance"
	"github.com/owenwright/cookies/internal/auth"
	"github.com/owenwright/cookies/internal/kv"
	"github.com/owenwright/cookies/internal/shield"
	"github.com/owenwright/cookies/internal/websocket"
)

type AllowanceHandler struct {
	machine *allowance.Machine
	kv      *kv.Store
	gateway shield.Gateway
	hub     *websocket.Hub
}

func NewAllowanceHandler(machine *allowance.Machine, kvStore *kv.Store, gateway shield.Gateway, hub *websocket.Hub) *AllowanceHandler {
	return &AllowanceHandler{machine: machine, kv: kvStore, gateway: gateway, hub: hub}
}

// Get returns the current allowance snapshot, recomputed from persisted
// state on every call.
func (h *AllowanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.machine.Recompute())
}

// Clear drops the running unlock for the caller.
func (h *AllowanceHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.machine.Clear(); err != nil {
		writeError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}
	state := h.machine.State()
	if h.hub != nil {
		h.hub.Broadcast(websocket.AllowanceMessage(auth.AccountID(r.Context()), state))
	}
	writeJSON(w, http.StatusOK, state)
}

// GetSelection returns the restricted app selection.
func (h *AllowanceHandler) GetSelection(w http.ResponseWriter, r *http.Request) {
	sel, err := shield.LoadSelection(h.kv)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

// PutSelection replaces the restricted app selection and re-applies the
// shield immediately.
func (h *AllowanceHandler) PutSelection(w http.ResponseWriter, r *http.Request) {
	var sel shield.Selection
	if err := json.NewDecoder(r.Body).Decode(&sel); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := shield.SaveSelection(h.kv, sel); err != nil {
		writeError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}

	state := h.machine.Recompute()
	var err error
	if sel.IsEmpty() {
		err = h.gateway.Clear()
	} else {
		err = h.gateway.Apply(sel, !state.UnlockActive)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}
	writeJSON(w, http.StatusOK, sel)
}
