// Package allowance tracks the unlock window as a single absolute deadline.
// Remaining time is never stored; it is recomputed from the deadline and the
// current clock, so sleep, relaunch, and clock drift cannot strand a stale
// countdown.
package allowance

import (
	"time"
)

// State is a snapshot of the allowance derived from the deadline.
type State struct {
	RemainingSeconds int  `json:"remaining_seconds"`
	UnlockActive     bool `json:"unlock_active"`
	EndAt            *time.Time `json:"end_at,omitempty"`
}

// Compute derives the allowance state from an absolute deadline. A nil or
// past deadline means locked with zero remaining.
func Compute(endAt *time.Time, now time.Time) State {
	if endAt == nil || !endAt.After(now) {
		return State{}
	}
	end := endAt.UTC()
	return State{
		RemainingSeconds: int(end.Sub(now).Round(time.Second) / time.Second),
		UnlockActive:     true,
		EndAt:            &end,
	}
}
