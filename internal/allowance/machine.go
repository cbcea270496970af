package allowance

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/owenwright/cookies/internal/kv"
)

// TransitionFunc receives the account and the snapshot at the moment the
// unlock state flips. It runs with the machine lock held and must not call
// back into the machine.
type TransitionFunc func(accountID string, state State)

// Machine owns the in-process view of the allowance deadline and keeps it in
// lockstep with the shared state file. Transitions between locked and
// unlocked are reported through the callback exactly once per edge.
type Machine struct {
	mu           sync.Mutex
	kv           *kv.Store
	logger       *slog.Logger
	now          func() time.Time
	accountID    string
	endAt        *time.Time
	unlockActive bool

	onTransition TransitionFunc
}

func NewMachine(store *kv.Store, logger *slog.Logger, onTransition TransitionFunc) (*Machine, error) {
	m := &Machine{
		kv:           store,
		logger:       logger.With("component", "allowance"),
		now:          time.Now,
		onTransition: onTransition,
	}
	if err := m.restore(); err != nil {
		return nil, err
	}
	return m, nil
}

// restore picks up where the last process left off, keyed by the last active
// account.
func (m *Machine) restore() error {
	accountID, ok, err := m.kv.Get(kv.KeyLastAccountID)
	if err != nil {
		return fmt.Errorf("restore last account: %w", err)
	}
	if !ok || accountID == "" {
		return nil
	}
	m.accountID = accountID
	endAt, ok, err := m.kv.GetTime(kv.AccountEndKey(accountID))
	if err != nil {
		return fmt.Errorf("restore deadline: %w", err)
	}
	if ok {
		m.endAt = &endAt
	}
	m.recomputeLocked(m.now())
	return nil
}

// SetOnTransition installs the transition callback after construction, for
// callers whose callback needs the machine itself in scope.
func (m *Machine) SetOnTransition(fn TransitionFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTransition = fn
}

// AccountID returns the active account, or "" when signed out.
func (m *Machine) AccountID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accountID
}

// State returns the current snapshot without touching persistence.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Compute(m.endAt, m.now())
}

// AddMinutes extends the deadline. Credit stacks: when an unlock is already
// running the new minutes are appended to the existing deadline, otherwise
// the window starts now. With no account signed in the deadline is parked
// under the pending key and adopted at next sign-in.
func (m *Machine) AddMinutes(minutes int) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	base := now
	if m.endAt != nil && m.endAt.After(now) {
		base = *m.endAt
	}
	end := base.Add(time.Duration(minutes) * time.Minute)
	m.endAt = &end

	key := kv.KeyPendingEnd
	if m.accountID != "" {
		key = kv.AccountEndKey(m.accountID)
	}
	if err := m.kv.SetTime(key, end); err != nil {
		return State{}, fmt.Errorf("persist deadline: %w", err)
	}

	m.logger.Info("allowance credited",
		"minutes", minutes,
		"end_at", end,
		"account_id", m.accountID)

	m.recomputeLocked(now)
	return Compute(m.endAt, now), nil
}

// SetAccount switches the active account. A repeated id is a no-op. On
// sign-in a deadline saved for that account, or one parked under the pending
// key, is adopted. Sign-out (empty id) drops all allowance state.
func (m *Machine) SetAccount(accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if accountID == m.accountID {
		return nil
	}

	if accountID == "" {
		return m.signOutLocked()
	}

	m.accountID = accountID
	if err := m.kv.Set(kv.KeyLastAccountID, accountID); err != nil {
		return fmt.Errorf("persist account: %w", err)
	}

	m.endAt = nil
	if saved, ok, err := m.kv.GetTime(kv.AccountEndKey(accountID)); err != nil {
		return fmt.Errorf("load saved deadline: %w", err)
	} else if ok {
		m.endAt = &saved
	} else if pending, ok, err := m.kv.GetTime(kv.KeyPendingEnd); err != nil {
		return fmt.Errorf("load pending deadline: %w", err)
	} else if ok {
		// Credit earned before sign-in belongs to whoever signs in next.
		m.endAt = &pending
		if err := m.kv.SetTime(kv.AccountEndKey(accountID), pending); err != nil {
			return fmt.Errorf("adopt pending deadline: %w", err)
		}
		if err := m.kv.Delete(kv.KeyPendingEnd); err != nil {
			return fmt.Errorf("clear pending deadline: %w", err)
		}
		m.logger.Info("pending allowance adopted", "account_id", accountID, "end_at", pending)
	}

	m.recomputeLocked(m.now())
	return nil
}

func (m *Machine) signOutLocked() error {
	if m.accountID != "" {
		if err := m.kv.Delete(kv.AccountEndKey(m.accountID)); err != nil {
			return fmt.Errorf("clear deadline: %w", err)
		}
	}
	if err := m.kv.Delete(kv.KeyLastAccountID); err != nil {
		return fmt.Errorf("clear account: %w", err)
	}
	m.accountID = ""
	m.endAt = nil
	m.logger.Info("account signed out, allowance cleared")
	m.recomputeLocked(m.now())
	return nil
}

// Clear drops any running unlock for the active account without signing out.
func (m *Machine) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.accountID != "" {
		if err := m.kv.Delete(kv.AccountEndKey(m.accountID)); err != nil {
			return fmt.Errorf("clear deadline: %w", err)
		}
	}
	m.endAt = nil
	m.recomputeLocked(m.now())
	return nil
}

// Recompute re-reads the persisted deadline and re-derives the unlock state.
// Other processes write the state file too, so the in-memory copy is
// refreshed rather than trusted.
func (m *Machine) Recompute() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	key := kv.KeyPendingEnd
	if m.accountID != "" {
		key = kv.AccountEndKey(m.accountID)
	}
	if saved, ok, err := m.kv.GetTime(key); err != nil {
		m.logger.Warn("failed to reload deadline", "error", err)
	} else if ok {
		m.endAt = &saved
	} else {
		m.endAt = nil
	}
	m.recomputeLocked(now)
	return Compute(m.endAt, now)
}

func (m *Machine) recomputeLocked(now time.Time) {
	active := m.endAt != nil && m.endAt.After(now)
	if active == m.unlockActive {
		return
	}
	m.unlockActive = active
	m.logger.Info("unlock state changed", "active", active)
	if m.onTransition != nil {
		m.onTransition(m.accountID, Compute(m.endAt, now))
	}
}
