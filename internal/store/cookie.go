package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/owenwright/cookies/internal/model"
)

// resetHourUTC is the fixed daily redemption reset. The window is anchored
// to this wall-clock hour rather than to the previous redemption, so a user
// cannot widen their window by redeeming earlier each day.
const resetHourUTC = 2

// redeemTimeout bounds a redeem call on degraded connectivity. The deadline
// and the transaction race; whichever finishes first is the visible result.
const redeemTimeout = 10 * time.Second

// RedemptionWindowStart returns the start of the dedup window containing
// now: today's 02:00 UTC if now is at or past it, otherwise yesterday's.
func RedemptionWindowStart(now time.Time) time.Time {
	now = now.UTC()
	reset := time.Date(now.Year(), now.Month(), now.Day(), resetHourUTC, 0, 0, 0, time.UTC)
	if now.Before(reset) {
		reset = reset.AddDate(0, 0, -1)
	}
	return reset
}

type CookieStore struct {
	db      *sql.DB
	logger  *slog.Logger
	now     func() time.Time
	timeout time.Duration
}

func NewCookieStore(db *sql.DB, logger *slog.Logger) *CookieStore {
	return &CookieStore{db: db, logger: logger, now: time.Now, timeout: redeemTimeout}
}

type redeemOutcome struct {
	minutes    int
	cookieType model.CookieType
	err        error
}

// Redeem converts one token redemption into minutes for accountID. At most
// one redemption per token per dedup window succeeds. The ledger write runs
// in a single transaction raced against the deadline; if the deadline wins,
// the caller sees ErrTimeout and a late-landing commit is discovered as
// ErrAlreadyRedeemed on retry rather than double-granting.
func (s *CookieStore) Redeem(ctx context.Context, tokenID, accountID string) (int, error) {
	done := make(chan redeemOutcome, 1)
	go func() {
		minutes, cookieType, err := s.redeemTx(tokenID, accountID)
		done <- redeemOutcome{minutes: minutes, cookieType: cookieType, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return 0, out.err
		}
		// Audit log is an observability side effect: best effort, never
		// blocks or fails the redemption.
		go s.appendRedemption(tokenID, accountID, out.cookieType, out.minutes)
		return out.minutes, nil
	case <-time.After(s.timeout):
		return 0, ErrTimeout
	case <-ctx.Done():
		return 0, ErrTimeout
	}
}

func (s *CookieStore) redeemTx(tokenID, accountID string) (int, model.CookieType, error) {
	var minutes int
	var cookieType model.CookieType

	err := inTx(context.Background(), s.db, func(tx *sql.Tx) error {
		var lastRedeemedAt sql.NullTime
		err := tx.QueryRow(
			`SELECT cookie_type, last_redeemed_at FROM account_tokens WHERE account_id = ? AND token_id = ?`,
			accountID, tokenID,
		).Scan(&cookieType, &lastRedeemedAt)
		if isNoRows(err) {
			return ErrTokenNotFound
		}
		if err != nil {
			return fmt.Errorf("load account token: %w", err)
		}

		minutes = model.DefaultMinutesValue
		var configured int
		err = tx.QueryRow(
			`SELECT minutes FROM account_cookie_values WHERE account_id = ? AND cookie_type = ?`,
			accountID, cookieType,
		).Scan(&configured)
		if err == nil {
			minutes = configured
		} else if !isNoRows(err) {
			return fmt.Errorf("load cookie value: %w", err)
		}

		now := s.now().UTC()
		windowStart := RedemptionWindowStart(now)
		if lastRedeemedAt.Valid && !lastRedeemedAt.Time.UTC().Before(windowStart) {
			return ErrAlreadyRedeemed
		}

		if _, err := tx.Exec(
			`UPDATE account_tokens SET last_redeemed_at = ?, last_redeemed_by = ? WHERE account_id = ? AND token_id = ?`,
			now, accountID, accountID, tokenID,
		); err != nil {
			return fmt.Errorf("record redemption: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, "", err
	}
	return minutes, cookieType, nil
}

func (s *CookieStore) appendRedemption(tokenID, accountID string, cookieType model.CookieType, minutes int) {
	now := s.now().UTC()
	id := ulid.MustNew(ulid.Timestamp(now), rand.New(rand.NewSource(now.UnixNano()))).String()

	_, err := s.db.Exec(
		`INSERT INTO redemptions (id, account_id, token_id, cookie_type, minutes_value, redeemed_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, accountID, tokenID, cookieType, minutes, now,
	)
	if err != nil {
		s.logger.Warn("append redemption log", "token_id", tokenID, "error", err)
	}
}

// ListTokens returns the account's claimed tokens, newest assignment first.
func (s *CookieStore) ListTokens(ctx context.Context, accountID string) ([]model.AccountToken, error) {
	rows, err := s.db.Query(
		`SELECT account_id, token_id, cookie_type, pack_id, assigned_at, last_redeemed_at, last_redeemed_by
		 FROM account_tokens WHERE account_id = ? ORDER BY assigned_at DESC, token_id`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("list account tokens: %w", err)
	}
	defer rows.Close()

	var tokens []model.AccountToken
	for rows.Next() {
		var t model.AccountToken
		var lastAt sql.NullTime
		var lastBy sql.NullString
		if err := rows.Scan(&t.AccountID, &t.TokenID, &t.CookieType, &t.PackID, &t.AssignedAt, &lastAt, &lastBy); err != nil {
			return nil, fmt.Errorf("scan account token: %w", err)
		}
		t.LastRedeemedAt = scanNullTime(lastAt)
		t.LastRedeemedBy = scanNullString(lastBy)
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
