package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/owenwright/cookies/internal/model"
)

type UsageStore struct {
	db *sql.DB
}

func NewUsageStore(db *sql.DB) *UsageStore {
	return &UsageStore{db: db}
}

// RecordSession writes one completed unlock period.
func (s *UsageStore) RecordSession(accountID string, startAt, endAt time.Time) (*model.UsageSession, error) {
	startAt = startAt.UTC()
	endAt = endAt.UTC()
	duration := int(endAt.Sub(startAt).Seconds())
	if duration < 0 {
		duration = 0
	}

	result, err := s.db.Exec(
		`INSERT INTO usage_sessions (account_id, start_at, end_at, duration_seconds) VALUES (?, ?, ?, ?)`,
		accountID, startAt, endAt, duration,
	)
	if err != nil {
		return nil, fmt.Errorf("insert usage session: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &model.UsageSession{
		ID:              id,
		AccountID:       accountID,
		StartAt:         startAt,
		EndAt:           endAt,
		DurationSeconds: duration,
	}, nil
}

// ListSessions returns the account's usage sessions, newest first.
func (s *UsageStore) ListSessions(accountID string, limit int) ([]model.UsageSession, error) {
	rows, err := s.db.Query(
		`SELECT id, account_id, start_at, end_at, duration_seconds FROM usage_sessions
		 WHERE account_id = ? ORDER BY start_at DESC LIMIT ?`,
		accountID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list usage sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.UsageSession
	for rows.Next() {
		var us model.UsageSession
		if err := rows.Scan(&us.ID, &us.AccountID, &us.StartAt, &us.EndAt, &us.DurationSeconds); err != nil {
			return nil, fmt.Errorf("scan usage session: %w", err)
		}
		sessions = append(sessions, us)
	}
	return sessions, rows.Err()
}
