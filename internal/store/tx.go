package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// inTx runs fn inside a transaction, retrying on transient SQLite busy
// errors. Ledger errors from fn abort immediately; after retries are
// exhausted the busy condition surfaces as ErrStoreUnavailable so callers
// know the failure is transient.
func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	backoff := retry.WithMaxRetries(4, retry.NewFibonacci(50*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return markRetryable(err)
		}
		defer tx.Rollback()

		if err := fn(tx); err != nil {
			return markRetryable(err)
		}
		if err := tx.Commit(); err != nil {
			return markRetryable(err)
		}
		return nil
	})
	if err != nil && isBusy(err) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}

func markRetryable(err error) error {
	if isBusy(err) {
		return retry.RetryableError(err)
	}
	return err
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

// scanNullTime converts a nullable column into *time.Time.
func scanNullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// scanNullString converts a nullable column into *string.
func scanNullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// isNoRows reports sql.ErrNoRows, including wrapped forms.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
