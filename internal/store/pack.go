package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/owenwright/cookies/internal/model"
)

type PackStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPackStore(db *sql.DB) *PackStore {
	return &PackStore{db: db, now: time.Now}
}

// CreatePack registers a pack of exactly four distinct tokens of one type.
// The pack row and all registry entries are written in one transaction, so
// partial registration is never observable. Returns the new pack id.
func (s *PackStore) CreatePack(ctx context.Context, tokenIDs []string, cookieType model.CookieType) (string, error) {
	if len(tokenIDs) != model.PackSize || cookieType == "" {
		return "", ErrInvalidPack
	}
	seen := make(map[string]struct{}, len(tokenIDs))
	for _, id := range tokenIDs {
		if id == "" {
			return "", ErrInvalidPack
		}
		if _, dup := seen[id]; dup {
			return "", ErrInvalidPack
		}
		seen[id] = struct{}{}
	}

	packID := uuid.NewString()
	now := s.now().UTC()

	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, id := range tokenIDs {
			var exists int
			err := tx.QueryRow(`SELECT 1 FROM token_registry WHERE token_id = ?`, id).Scan(&exists)
			if err == nil {
				return ErrTokenAlreadyRegistered
			}
			if !isNoRows(err) {
				return fmt.Errorf("check registry for %q: %w", id, err)
			}
		}

		if _, err := tx.Exec(
			`INSERT INTO packs (id, cookie_type, status, created_at) VALUES (?, ?, ?, ?)`,
			packID, cookieType, model.PackStatusAvailable, now,
		); err != nil {
			return fmt.Errorf("insert pack: %w", err)
		}

		for _, id := range tokenIDs {
			if _, err := tx.Exec(
				`INSERT INTO token_registry (token_id, pack_id, cookie_type, registered_at) VALUES (?, ?, ?, ?)`,
				id, packID, cookieType, now,
			); err != nil {
				return fmt.Errorf("register token %q: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return packID, nil
}

// ClaimPack assigns the pack containing tokenID to accountID and returns the
// pack's four tokens. Re-claiming by the same account is a no-op success; a
// claim by a different account fails with ErrPackAlreadyClaimed.
//
// The claim runs as two transactions: phase A settles ownership on the pack
// row, phase B materializes the account's token rows. Each phase is
// idempotent on retry, so a caller that observed a timeout can safely call
// again and converge on the same end state.
func (s *PackStore) ClaimPack(ctx context.Context, tokenID, accountID string) ([]model.Token, error) {
	var tokens []model.Token

	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		var packID string
		err := tx.QueryRow(`SELECT pack_id FROM token_registry WHERE token_id = ?`, tokenID).Scan(&packID)
		if isNoRows(err) {
			return ErrPackNotFound
		}
		if err != nil {
			return fmt.Errorf("resolve token %q: %w", tokenID, err)
		}

		var status string
		var claimedBy sql.NullString
		var packType string
		err = tx.QueryRow(
			`SELECT status, claimed_by, cookie_type FROM packs WHERE id = ?`, packID,
		).Scan(&status, &claimedBy, &packType)
		if isNoRows(err) {
			return ErrPackNotFound
		}
		if err != nil {
			return fmt.Errorf("load pack %q: %w", packID, err)
		}

		packTokens, err := packTokensTx(tx, packID)
		if err != nil {
			return err
		}
		if err := validatePackTokens(packTokens, packType); err != nil {
			return err
		}

		if status == model.PackStatusClaimed {
			if claimedBy.Valid && claimedBy.String == accountID {
				tokens = packTokens
				return nil
			}
			return ErrPackAlreadyClaimed
		}

		for _, t := range packTokens {
			var exists int
			err := tx.QueryRow(
				`SELECT 1 FROM account_tokens WHERE account_id = ? AND token_id = ?`,
				accountID, t.ID,
			).Scan(&exists)
			if err == nil {
				return ErrTokenAlreadyRegistered
			}
			if !isNoRows(err) {
				return fmt.Errorf("check account token %q: %w", t.ID, err)
			}
		}

		if _, err := tx.Exec(
			`UPDATE packs SET status = ?, claimed_by = ?, claimed_at = ?, claim_token = ? WHERE id = ?`,
			model.PackStatusClaimed, accountID, s.now().UTC(), tokenID, packID,
		); err != nil {
			return fmt.Errorf("claim pack %q: %w", packID, err)
		}

		tokens = packTokens
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.assignTokens(ctx, accountID, tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// assignTokens is claim phase B: create the account's copy of each pack
// token. A row that already matches the pack means a prior attempt got this
// far and is treated as applied; a mismatched row belongs to another pack
// and fails the claim.
func (s *PackStore) assignTokens(ctx context.Context, accountID string, tokens []model.Token) error {
	now := s.now().UTC()
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, t := range tokens {
			var packID, cookieType string
			err := tx.QueryRow(
				`SELECT pack_id, cookie_type FROM account_tokens WHERE account_id = ? AND token_id = ?`,
				accountID, t.ID,
			).Scan(&packID, &cookieType)
			if err == nil {
				if packID == t.PackID && cookieType == t.CookieType {
					continue
				}
				return ErrTokenAlreadyRegistered
			}
			if !isNoRows(err) {
				return fmt.Errorf("check account token %q: %w", t.ID, err)
			}

			if _, err := tx.Exec(
				`INSERT INTO account_tokens (account_id, token_id, cookie_type, pack_id, assigned_at) VALUES (?, ?, ?, ?, ?)`,
				accountID, t.ID, t.CookieType, t.PackID, now,
			); err != nil {
				return fmt.Errorf("assign token %q: %w", t.ID, err)
			}
		}
		return nil
	})
}

// GetPack returns a pack with its registered tokens, or nil if not found.
func (s *PackStore) GetPack(ctx context.Context, packID string) (*model.Pack, error) {
	var p model.Pack
	var claimedBy, claimToken sql.NullString
	var claimedAt sql.NullTime

	err := s.db.QueryRow(
		`SELECT id, cookie_type, status, claimed_by, claimed_at, claim_token, created_at FROM packs WHERE id = ?`,
		packID,
	).Scan(&p.ID, &p.CookieType, &p.Status, &claimedBy, &claimedAt, &claimToken, &p.CreatedAt)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pack: %w", err)
	}
	p.ClaimedBy = scanNullString(claimedBy)
	p.ClaimedAt = scanNullTime(claimedAt)
	p.ClaimToken = scanNullString(claimToken)

	rows, err := s.db.Query(
		`SELECT token_id, pack_id, cookie_type, registered_at FROM token_registry WHERE pack_id = ? ORDER BY token_id`,
		packID,
	)
	if err != nil {
		return nil, fmt.Errorf("list pack tokens: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t model.Token
		if err := rows.Scan(&t.ID, &t.PackID, &t.CookieType, &t.RegisteredAt); err != nil {
			return nil, fmt.Errorf("scan pack token: %w", err)
		}
		p.Tokens = append(p.Tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPacks returns all packs, newest first, without their token lists.
func (s *PackStore) ListPacks(ctx context.Context) ([]model.Pack, error) {
	rows, err := s.db.Query(
		`SELECT id, cookie_type, status, claimed_by, claimed_at, claim_token, created_at FROM packs ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list packs: %w", err)
	}
	defer rows.Close()

	var packs []model.Pack
	for rows.Next() {
		var p model.Pack
		var claimedBy, claimToken sql.NullString
		var claimedAt sql.NullTime
		if err := rows.Scan(&p.ID, &p.CookieType, &p.Status, &claimedBy, &claimedAt, &claimToken, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pack: %w", err)
		}
		p.ClaimedBy = scanNullString(claimedBy)
		p.ClaimedAt = scanNullTime(claimedAt)
		p.ClaimToken = scanNullString(claimToken)
		packs = append(packs, p)
	}
	return packs, rows.Err()
}

func packTokensTx(tx *sql.Tx, packID string) ([]model.Token, error) {
	rows, err := tx.Query(
		`SELECT token_id, pack_id, cookie_type, registered_at FROM token_registry WHERE pack_id = ? ORDER BY token_id`,
		packID,
	)
	if err != nil {
		return nil, fmt.Errorf("load pack tokens: %w", err)
	}
	defer rows.Close()

	var tokens []model.Token
	for rows.Next() {
		var t model.Token
		if err := rows.Scan(&t.ID, &t.PackID, &t.CookieType, &t.RegisteredAt); err != nil {
			return nil, fmt.Errorf("scan pack token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// validatePackTokens re-checks the exactly-4/uniform-type invariant on the
// stored token list. Defense in depth: a pack that violates it is invalid
// regardless of how the rows got that way.
func validatePackTokens(tokens []model.Token, packType string) error {
	if len(tokens) != model.PackSize {
		return ErrInvalidPack
	}
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if t.CookieType != packType {
			return ErrInvalidPack
		}
		if _, dup := seen[t.ID]; dup {
			return ErrInvalidPack
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}
