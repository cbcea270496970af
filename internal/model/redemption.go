package model

import "time"

// Redemption is one row of the append-only redemption log. Written
// best-effort after a successful redeem; never part of the dedup decision.
type Redemption struct {
	ID           string     `json:"id"`
	AccountID    string     `json:"-"`
	TokenID      string     `json:"token_id"`
	CookieType   CookieType `json:"cookie_type"`
	MinutesValue int        `json:"minutes_value"`
	RedeemedAt   time.Time  `json:"redeemed_at"`
}

// RedemptionDay aggregates an account's redemptions for one UTC day.
type RedemptionDay struct {
	Date    string `json:"date"`
	Count   int    `json:"count"`
	Minutes int    `json:"minutes"`
}

// RedemptionTotals is an account's all-time redemption summary.
type RedemptionTotals struct {
	Count   int `json:"count"`
	Minutes int `json:"minutes"`
}

// UsageSession records one contiguous unlock period.
type UsageSession struct {
	ID              int64     `json:"id"`
	AccountID       string    `json:"-"`
	StartAt         time.Time `json:"start_at"`
	EndAt           time.Time `json:"end_at"`
	DurationSeconds int       `json:"duration_seconds"`
}

// Backup records one uploaded ledger snapshot.
type Backup struct {
	ID        int64     `json:"id"`
	ObjectKey string    `json:"object_key"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}
