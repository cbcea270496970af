package model

import "time"

// Account is the profile document for one signed-in user.
type Account struct {
	ID                    string         `json:"id"`
	OnboardingComplete    bool           `json:"onboarding_complete"`
	OnboardedAt           *time.Time     `json:"onboarded_at,omitempty"`
	LastEmergencyUnlockAt *time.Time     `json:"last_emergency_unlock_at,omitempty"`
	TimezoneOffsetMinutes *int           `json:"timezone_offset_minutes,omitempty"`
	CookieValues          map[string]int `json:"cookie_values"`
	CreatedAt             time.Time      `json:"created_at"`
}

// Session is an opaque bearer credential for one account.
type Session struct {
	ID        int64     `json:"id"`
	AccountID string    `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
