package store

import (
	"errors"
	"fmt"
	"time"
)

// Ledger error taxonomy. Handlers map each of these to one fixed
// user-facing message; raw store errors are never surfaced.
var (
	ErrInvalidPack            = errors.New("invalid pack")
	ErrTokenAlreadyRegistered = errors.New("token already registered")
	ErrPackAlreadyClaimed     = errors.New("pack already claimed")
	ErrPackNotFound           = errors.New("pack not found")
	ErrTokenNotFound          = errors.New("token not found")
	ErrAlreadyRedeemed        = errors.New("already redeemed in current window")
	ErrAccountNotFound        = errors.New("account not found")
	ErrTimeout                = errors.New("operation timed out")
	ErrStoreUnavailable       = errors.New("store unavailable")
)

// CooldownError reports an emergency unlock attempted before the cooldown
// has elapsed.
type CooldownError struct {
	AvailableAt time.Time
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("emergency unlock on cooldown until %s", e.AvailableAt.UTC().Format(time.RFC3339))
}
