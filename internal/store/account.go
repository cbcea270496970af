package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/owenwright/cookies/internal/model"
)

// emergencyCooldown is how long an account waits between emergency unlocks.
const emergencyCooldown = 7 * 24 * time.Hour

type AccountStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db, now: time.Now}
}

// Create inserts a new account and returns its id.
func (s *AccountStore) Create(ctx context.Context) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO accounts (id, created_at) VALUES (?, ?)`,
		id, s.now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert account: %w", err)
	}
	return id, nil
}

// Get returns the account profile with its cookie values, or nil if the
// account does not exist.
func (s *AccountStore) Get(ctx context.Context, accountID string) (*model.Account, error) {
	var a model.Account
	var onboarding int
	var onboardedAt, lastUnlock sql.NullTime
	var tzOffset sql.NullInt64

	err := s.db.QueryRow(
		`SELECT id, onboarding_complete, onboarded_at, last_emergency_unlock_at, timezone_offset_minutes, created_at
		 FROM accounts WHERE id = ?`,
		accountID,
	).Scan(&a.ID, &onboarding, &onboardedAt, &lastUnlock, &tzOffset, &a.CreatedAt)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	a.OnboardingComplete = onboarding != 0
	a.OnboardedAt = scanNullTime(onboardedAt)
	a.LastEmergencyUnlockAt = scanNullTime(lastUnlock)
	if tzOffset.Valid {
		v := int(tzOffset.Int64)
		a.TimezoneOffsetMinutes = &v
	}

	a.CookieValues = map[string]int{model.CookieTypeCookie: model.DefaultMinutesValue}
	rows, err := s.db.Query(
		`SELECT cookie_type, minutes FROM account_cookie_values WHERE account_id = ?`, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("get cookie values: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cookieType string
		var minutes int
		if err := rows.Scan(&cookieType, &minutes); err != nil {
			return nil, fmt.Errorf("scan cookie value: %w", err)
		}
		a.CookieValues[cookieType] = minutes
	}
	return &a, rows.Err()
}

// MarkOnboardingComplete records that the account finished onboarding.
func (s *AccountStore) MarkOnboardingComplete(ctx context.Context, accountID string) error {
	res, err := s.db.Exec(
		`UPDATE accounts SET onboarding_complete = 1, onboarded_at = ? WHERE id = ?`,
		s.now().UTC(), accountID,
	)
	if err != nil {
		return fmt.Errorf("mark onboarded: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// SetCookieValues replaces the account's per-type minute values.
func (s *AccountStore) SetCookieValues(ctx context.Context, accountID string, values map[string]int) error {
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRow(`SELECT 1 FROM accounts WHERE id = ?`, accountID).Scan(&exists)
		if isNoRows(err) {
			return ErrAccountNotFound
		}
		if err != nil {
			return fmt.Errorf("check account: %w", err)
		}

		if _, err := tx.Exec(`DELETE FROM account_cookie_values WHERE account_id = ?`, accountID); err != nil {
			return fmt.Errorf("clear cookie values: %w", err)
		}
		for cookieType, minutes := range values {
			if _, err := tx.Exec(
				`INSERT INTO account_cookie_values (account_id, cookie_type, minutes) VALUES (?, ?, ?)`,
				accountID, cookieType, minutes,
			); err != nil {
				return fmt.Errorf("set cookie value %q: %w", cookieType, err)
			}
		}
		return nil
	})
}

// SetTimezoneOffset records the account's current UTC offset in minutes.
func (s *AccountStore) SetTimezoneOffset(ctx context.Context, accountID string, offsetMinutes int) error {
	_, err := s.db.Exec(
		`UPDATE accounts SET timezone_offset_minutes = ? WHERE id = ?`,
		offsetMinutes, accountID,
	)
	if err != nil {
		return fmt.Errorf("set timezone offset: %w", err)
	}
	return nil
}

// UseEmergencyUnlock consumes the account's emergency unlock. Fails with
// CooldownError while within the 7-day cooldown. The minute credit is the
// caller's responsibility and deliberately outside this transaction; the
// local allowance write must not roll back the cooldown.
func (s *AccountStore) UseEmergencyUnlock(ctx context.Context, accountID string) error {
	now := s.now().UTC()
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		var lastUnlock sql.NullTime
		err := tx.QueryRow(
			`SELECT last_emergency_unlock_at FROM accounts WHERE id = ?`, accountID,
		).Scan(&lastUnlock)
		if isNoRows(err) {
			return ErrAccountNotFound
		}
		if err != nil {
			return fmt.Errorf("load account: %w", err)
		}

		if lastUnlock.Valid {
			availableAt := lastUnlock.Time.UTC().Add(emergencyCooldown)
			if now.Before(availableAt) {
				return &CooldownError{AvailableAt: availableAt}
			}
		}

		if _, err := tx.Exec(
			`UPDATE accounts SET last_emergency_unlock_at = ? WHERE id = ?`, now, accountID,
		); err != nil {
			return fmt.Errorf("record emergency unlock: %w", err)
		}
		return nil
	})
}

// DeleteData removes the account and everything keyed to it: tokens,
// redemption log, usage sessions, cookie values, and sessions.
func (s *AccountStore) DeleteData(ctx context.Context, accountID string) error {
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM account_tokens WHERE account_id = ?`,
			`DELETE FROM redemptions WHERE account_id = ?`,
			`DELETE FROM usage_sessions WHERE account_id = ?`,
			`DELETE FROM account_cookie_values WHERE account_id = ?`,
			`DELETE FROM sessions WHERE account_id = ?`,
			`DELETE FROM accounts WHERE id = ?`,
		} {
			if _, err := tx.Exec(stmt, accountID); err != nil {
				return fmt.Errorf("delete account data: %w", err)
			}
		}
		return nil
	})
}
