package db

import (
	"context"
	"fmt"
	"time"
)

// RevokedTokenRepository is the revocation ledger. token_id is the primary key,
// so a second revoke of the same token fails in the database itself.
type RevokedTokenRepository struct {
	db *DB
}

func NewRevokedTokenRepository(db *DB) *RevokedTokenRepository {
	return &RevokedTokenRepository{db: db}
}

// Revoke records tokenID. expiresAt is the token's own expiry and only drives
// retention cleanup. Returns ErrDuplicate if the token is already revoked.
func (r *RevokedTokenRepository) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO revoked_tokens (token_id, revoked_at, expires_at) VALUES (?, ?, ?)`,
		tokenID, time.Now().UTC(), expiresAt.UTC(),
	)
	if err != nil {
		return insertError(err, "revoking token")
	}
	return nil
}

func (r *RevokedTokenRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM revoked_tokens WHERE token_id = ?`, tokenID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking token revocation: %w", err)
	}
	return count > 0, nil
}

// DeleteExpired drops entries for tokens that expired before cutoff. Such tokens
// already fail signature-time expiry checks, so their entries are inert.
func (r *RevokedTokenRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting expired revocations: %w", err)
	}

	return result.RowsAffected()
}
