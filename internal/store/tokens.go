package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cleared-dev/banksync/internal/model"
)

// Token returns the cached bearer token for accountID. ok is false when no
// token has been cached or it was cleared.
func (s *Store) Token(ctx context.Context, accountID string) (model.Token, bool, error) {
	var token, expiry sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT token, token_expiry FROM account_tokens WHERE account_id = ?`, accountID).Scan(&token, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Token{}, false, nil
	}
	if err != nil {
		return model.Token{}, false, fmt.Errorf("reading token for %s: %w", accountID, err)
	}
	if !token.Valid || token.String == "" {
		return model.Token{}, false, nil
	}
	exp, err := parseNullTime(expiry)
	if err != nil {
		return model.Token{}, false, err
	}
	out := model.Token{Value: token.String}
	if exp != nil {
		out.Expiry = *exp
	}
	return out, true, nil
}

// PutToken caches a bearer token for accountID.
func (s *Store) PutToken(ctx context.Context, accountID string, token string, expiry time.Time) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO account_tokens(account_id, token, token_expiry, updated_at)
	VALUES(?, ?, ?, ?)
	ON CONFLICT(account_id) DO UPDATE SET
		token = excluded.token, token_expiry = excluded.token_expiry, updated_at = excluded.updated_at`,
		accountID, token, formatTime(expiry), formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("caching token for %s: %w", accountID, err)
	}
	return nil
}

// ClearToken drops the cached token for accountID.
func (s *Store) ClearToken(ctx context.Context, accountID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE account_tokens SET token = NULL, token_expiry = NULL, updated_at = ? WHERE account_id = ?`,
		formatTime(s.now()), accountID)
	if err != nil {
		return fmt.Errorf("clearing token for %s: %w", accountID, err)
	}
	return nil
}
