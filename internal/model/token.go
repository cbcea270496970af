package model

import "time"

// CookieType identifies the kind of physical cookie a token belongs to.
// All tokens in a pack share one type.
type CookieType = string

const CookieTypeCookie CookieType = "cookie"

// DefaultMinutesValue is granted per redemption when an account has no
// configured value for the token's type.
const DefaultMinutesValue = 30

// PackSize is the number of tokens provisioned together as one pack.
const PackSize = 4

const (
	PackStatusAvailable = "available"
	PackStatusClaimed   = "claimed"
)

// Token is a registry entry tying a token id to its pack. Immutable once
// registered.
type Token struct {
	ID           string     `json:"id"`
	CookieType   CookieType `json:"cookie_type"`
	PackID       string     `json:"pack_id"`
	RegisteredAt time.Time  `json:"registered_at"`
}

// Pack is a group of exactly four co-registered tokens of one type.
type Pack struct {
	ID         string     `json:"id"`
	CookieType CookieType `json:"cookie_type"`
	Status     string     `json:"status"`
	ClaimedBy  *string    `json:"claimed_by,omitempty"`
	ClaimedAt  *time.Time `json:"claimed_at,omitempty"`
	ClaimToken *string    `json:"claim_token,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	Tokens     []Token    `json:"tokens,omitempty"`
}

// AccountToken is an account's copy of a claimed token, carrying the
// per-account redemption state.
type AccountToken struct {
	AccountID      string     `json:"-"`
	TokenID        string     `json:"token_id"`
	CookieType     CookieType `json:"cookie_type"`
	PackID         string     `json:"pack_id"`
	AssignedAt     time.Time  `json:"assigned_at"`
	LastRedeemedAt *time.Time `json:"last_redeemed_at,omitempty"`
	LastRedeemedBy *string    `json:"-"`
}
