// Package handler implements the HTTP API. Store errors are translated to
// the fixed user-facing messages the client apps display verbatim.
package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/owenwright/cookies/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeStoreError maps a store error onto a status code and the exact
// message the client shows.
func writeStoreError(w http.ResponseWriter, err error) {
	var cooldown *store.CooldownError
	switch {
	case errors.Is(err, store.ErrAlreadyRedeemed):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "This cookie was already redeemed today. Try again after the daily reset.",
		})
	case errors.Is(err, store.ErrTokenNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "This cookie is not registered to your account.",
		})
	case errors.Is(err, store.ErrPackNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "This cookie is not linked to a valid pack.",
		})
	case errors.Is(err, store.ErrPackAlreadyClaimed):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "This pack has already been claimed.",
		})
	case errors.Is(err, store.ErrTokenAlreadyRegistered):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "This cookie has already been registered.",
		})
	case errors.Is(err, store.ErrInvalidPack):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": "This pack is invalid or missing cookies.",
		})
	case errors.Is(err, store.ErrAccountNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "Account not found.",
		})
	case errors.Is(err, store.ErrTimeout):
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{
			"error": "Request timed out. Please check your connection.",
		})
	case errors.As(err, &cooldown):
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":        "Emergency unlock is on cooldown.",
			"available_at": cooldown.AvailableAt,
		})
	default:
		log.Printf("store error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Something went wrong. Please try again.",
		})
	}
}
