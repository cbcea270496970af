// Package lock re-enforces restrictions around the allowance deadline. The
// refresher is the recovery path for missed expirations: it periodically
// reloads the deadline from the shared state file and reasserts the shield,
// so a crashed or slept process cannot leave the device unlocked forever.
package lock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/owenwright/cookies/internal/kv"
	"github.com/owenwright/cookies/internal/shield"
)

// MinWakeInterval is the shortest spacing between scheduled wakes the host
// will honor.
const MinWakeInterval = 15 * time.Minute

// DefaultWarningOffset is how far before the deadline the early warning
// fires.
const DefaultWarningOffset = 5 * time.Minute

// WakePlan names the next times the refresher should run.
type WakePlan struct {
	// At is when restrictions must be reasserted.
	At time.Time
	// Warning, when set, is an earlier wake to surface a countdown warning.
	Warning *time.Time
}

// PlanWake computes the next wake for a deadline. Deadlines closer than the
// minimum interval are pushed out to the floor; the true expiration is still
// caught because enforcement rechecks the deadline on every wake. A nil plan
// means nothing is scheduled.
func PlanWake(endAt *time.Time, now time.Time, warningOffset time.Duration) *WakePlan {
	if endAt == nil || !endAt.After(now) {
		return nil
	}
	at := *endAt
	if floor := now.Add(MinWakeInterval); at.Before(floor) {
		at = floor
	}
	plan := &WakePlan{At: at}
	if warningOffset > 0 {
		warning := endAt.Add(-warningOffset)
		if warning.After(now) && warning.Before(plan.At) {
			plan.Warning = &warning
		}
	}
	return plan
}

// Refresher periodically reasserts the shield from persisted state.
type Refresher struct {
	mu            sync.RWMutex
	kv            *kv.Store
	gateway       shield.Gateway
	logger        *slog.Logger
	now           func() time.Time
	interval      time.Duration
	warningOffset time.Duration
	cancel        context.CancelFunc
	done          chan struct{}

	// onWarning fires when a wake lands inside the warning offset of the
	// deadline.
	onWarning func(remaining time.Duration)
}

func NewRefresher(store *kv.Store, gateway shield.Gateway, logger *slog.Logger, onWarning func(remaining time.Duration)) *Refresher {
	return &Refresher{
		kv:            store,
		gateway:       gateway,
		logger:        logger.With("component", "lock"),
		now:           time.Now,
		interval:      time.Minute,
		warningOffset: DefaultWarningOffset,
		onWarning:     onWarning,
	}
}

// SetWarningOffset overrides how far before the deadline the warning fires.
// Call before Start.
func (r *Refresher) SetWarningOffset(d time.Duration) {
	if d > 0 {
		r.warningOffset = d
	}
}

// Start begins the refresh loop.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	r.mu.Unlock()

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := r.Refresh(r.now()); err != nil {
					r.logger.Error("refresh failed", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the refresh loop.
func (r *Refresher) Stop() {
	r.mu.RLock()
	cancel := r.cancel
	done := r.done
	r.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Refresh reloads the deadline and selection from the state file, asserts
// the shield accordingly, and returns the next wake plan. It is safe to call
// from any context, including outside the loop.
func (r *Refresher) Refresh(now time.Time) (*WakePlan, error) {
	endAt, err := r.loadDeadline()
	if err != nil {
		return nil, err
	}
	sel, err := shield.LoadSelection(r.kv)
	if err != nil {
		return nil, err
	}

	active := endAt != nil && endAt.After(now)
	if sel.IsEmpty() {
		if err := r.gateway.Clear(); err != nil {
			return nil, err
		}
	} else if err := r.gateway.Apply(sel, !active); err != nil {
		return nil, err
	}

	plan := PlanWake(endAt, now, r.warningOffset)
	if active && r.onWarning != nil {
		if remaining := endAt.Sub(now); remaining <= r.warningOffset {
			r.onWarning(remaining)
		}
	}
	return plan, nil
}

// loadDeadline resolves the active deadline: the signed-in account's key
// first, the pending key otherwise.
func (r *Refresher) loadDeadline() (*time.Time, error) {
	accountID, ok, err := r.kv.Get(kv.KeyLastAccountID)
	if err != nil {
		return nil, err
	}
	key := kv.KeyPendingEnd
	if ok && accountID != "" {
		key = kv.AccountEndKey(accountID)
	}
	endAt, ok, err := r.kv.GetTime(key)
	if err != nil || !ok {
		return nil, err
	}
	return &endAt, nil
}
