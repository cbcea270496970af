// Package usage records how long each unlock window was actually used. A
// session opens when the unlock activates and closes when it ends; the open
// timestamp lives in the shared state file so a restart mid-session still
// closes it.
package usage

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/owenwright/cookies/internal/kv"
	"github.com/owenwright/cookies/internal/store"
)

type Manager struct {
	mu        sync.Mutex
	kv        *kv.Store
	sessions  *store.UsageStore
	logger    *slog.Logger
	now       func() time.Time
	accountID string
}

func NewManager(kvStore *kv.Store, sessions *store.UsageStore, logger *slog.Logger) *Manager {
	m := &Manager{
		kv:       kvStore,
		sessions: sessions,
		logger:   logger.With("component", "usage"),
		now:      time.Now,
	}
	if accountID, ok, err := kvStore.Get(kv.KeyLastAccountID); err == nil && ok {
		m.accountID = accountID
	}
	return m
}

// SetAccount follows account switches. An open session for the previous
// account is closed first so its time is not credited to the next one.
func (m *Manager) SetAccount(accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if accountID == m.accountID {
		return nil
	}
	if err := m.closeLocked(); err != nil {
		return err
	}
	m.accountID = accountID
	return nil
}

// SetUnlockActive opens a session on the rising edge and records it on the
// falling edge.
func (m *Manager) SetUnlockActive(active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if active {
		return m.openLocked()
	}
	return m.closeLocked()
}

func (m *Manager) openLocked() error {
	if _, ok, err := m.kv.GetTime(kv.KeySessionStart); err != nil {
		return fmt.Errorf("check open session: %w", err)
	} else if ok {
		return nil
	}
	start := m.now()
	if err := m.kv.SetTime(kv.KeySessionStart, start); err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	m.logger.Info("usage session opened", "account_id", m.accountID, "start", start)
	return nil
}

func (m *Manager) closeLocked() error {
	start, ok, err := m.kv.GetTime(kv.KeySessionStart)
	if err != nil {
		return fmt.Errorf("check open session: %w", err)
	}
	if !ok {
		return nil
	}
	if err := m.kv.Delete(kv.KeySessionStart); err != nil {
		return fmt.Errorf("clear session start: %w", err)
	}
	if m.accountID == "" {
		return nil
	}
	end := m.now()
	if _, err := m.sessions.RecordSession(m.accountID, start, end); err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	m.logger.Info("usage session recorded",
		"account_id", m.accountID,
		"duration", end.Sub(start))
	return nil
}
