package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/owenwright/cookies/internal/auth"
	"github.com/owenwright/cookies/internal/model"
	"github.com/owenwright/cookies/internal/scan"
	"github.com/owenwright/cookies/internal/store"
	"github.com/owenwright/cookies/internal/websocket"
)

type PackHandler struct {
	packStore *store.PackStore
	hub       *websocket.Hub
}

func NewPackHandler(ps *store.PackStore, hub *websocket.Hub) *PackHandler {
	return &PackHandler{packStore: ps, hub: hub}
}

func (h *PackHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type createPackRequest struct {
	TokenIDs   []string `json:"token_ids"`
	CookieType string   `json:"cookie_type"`
}

// Create registers a new sealed pack of four tokens. Operator only.
func (h *PackHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.CookieType == "" {
		req.CookieType = model.CookieTypeCookie
	}

	tokenIDs := make([]string, 0, len(req.TokenIDs))
	for _, raw := range req.TokenIDs {
		id, err := scan.Normalize(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "token ids must be non-empty")
			return
		}
		tokenIDs = append(tokenIDs, id)
	}

	packID, err := h.packStore.CreatePack(r.Context(), tokenIDs, req.CookieType)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	pack, err := h.packStore.GetPack(r.Context(), packID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	log.Printf("pack created: %s (%d tokens)", packID, len(tokenIDs))
	writeJSON(w, http.StatusCreated, pack)
}

type claimPackRequest struct {
	TokenID string `json:"token_id"`
}

// Claim binds a pack to the caller's account via any one of its tokens.
// Re-claiming an already owned pack returns the same tokens.
func (h *PackHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var req claimPackRequest
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
	tokens, err := h.packStore.ClaimPack(r.Context(), tokenID, accountID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("pack", "claimed", accountID, map[string]any{
		"token_count": len(tokens),
	}))

	writeJSON(w, http.StatusOK, map[string]any{"tokens": tokens})
}

// List returns all packs. Operator only.
func (h *PackHandler) List(w http.ResponseWriter, r *http.Request) {
	packs, err := h.packStore.ListPacks(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if packs == nil {
		packs = []model.Pack{}
	}
	writeJSON(w, http.StatusOK, packs)
}

// Get returns one pack with its tokens. Operator only.
func (h *PackHandler) Get(w http.ResponseWriter, r *http.Request) {
	pack, err := h.packStore.GetPack(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if pack == nil {
		writeError(w, http.StatusNotFound, "pack not found")
		return
	}
	writeJSON(w, http.StatusOK, pack)
}
