package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/owenwright/cookies/internal/model"
)

type InsightsStore struct {
	db *sql.DB
}

func NewInsightsStore(db *sql.DB) *InsightsStore {
	return &InsightsStore{db: db}
}

// DailyRedemptions aggregates the account's redemption log per UTC day over
// [from, to). Days with no redemptions are omitted.
func (s *InsightsStore) DailyRedemptions(accountID string, from, to time.Time) ([]model.RedemptionDay, error) {
	rows, err := s.db.Query(
		`SELECT date(redeemed_at), COUNT(*), COALESCE(SUM(minutes_value), 0)
		 FROM redemptions
		 WHERE account_id = ? AND redeemed_at >= ? AND redeemed_at < ?
		 GROUP BY date(redeemed_at)
		 ORDER BY date(redeemed_at)`,
		accountID, from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("daily redemptions: %w", err)
	}
	defer rows.Close()

	var days []model.RedemptionDay
	for rows.Next() {
		var d model.RedemptionDay
		if err := rows.Scan(&d.Date, &d.Count, &d.Minutes); err != nil {
			return nil, fmt.Errorf("scan redemption day: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// Totals returns the account's all-time redemption count and minutes.
func (s *InsightsStore) Totals(accountID string) (*model.RedemptionTotals, error) {
	var t model.RedemptionTotals
	var count, minutes sql.NullInt64
	err := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(minutes_value), 0) FROM redemptions WHERE account_id = ?`,
		accountID,
	).Scan(&count, &minutes)
	if err != nil {
		return nil, fmt.Errorf("redemption totals: %w", err)
	}
	t.Count = int(count.Int64)
	t.Minutes = int(minutes.Int64)
	return &t, nil
}
