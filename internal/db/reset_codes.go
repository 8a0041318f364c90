package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"notely/internal/models"
)

type ResetCodeRepository struct {
	db *DB
}

func NewResetCodeRepository(db *DB) *ResetCodeRepository {
	return &ResetCodeRepository{db: db}
}

func (r *ResetCodeRepository) Create(ctx context.Context, email, codeHash string, expiresAt time.Time) (*models.ResetCode, error) {
	id, err := GenerateID(PrefixResetCode)
	if err != nil {
		return nil, fmt.Errorf("generating reset code ID: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO password_reset_codes (id, email, code_hash, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, email, codeHash, expiresAt.UTC(), now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating reset code: %w", err)
	}

	return &models.ResetCode{
		ID:        id,
		Email:     email,
		CodeHash:  codeHash,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}

// FindLatest returns the newest unused code issued to email. Expiry is left
// to the caller.
func (r *ResetCodeRepository) FindLatest(ctx context.Context, email string) (*models.ResetCode, error) {
	var rc models.ResetCode
	var usedAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, code_hash, attempts, expires_at, used_at, created_at
		   FROM password_reset_codes
		  WHERE email = ? AND used_at IS NULL
		  ORDER BY created_at DESC, rowid DESC
		  LIMIT 1`,
		email,
	).Scan(&rc.ID, &rc.Email, &rc.CodeHash, &rc.Attempts, &rc.ExpiresAt, &usedAt, &rc.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying reset code: %w", err)
	}

	rc.UsedAt = timePtr(usedAt)

	return &rc, nil
}

// IncrementAttempts records one guess against the code and returns the new
// count. It returns -1 once the code already has max attempts.
func (r *ResetCodeRepository) IncrementAttempts(ctx context.Context, id string, max int) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx,
		`UPDATE password_reset_codes SET attempts = attempts + 1
		  WHERE id = ? AND attempts < ?
		  RETURNING attempts`,
		id, max,
	).Scan(&attempts)

	if errors.Is(err, sql.ErrNoRows) {
		return -1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("incrementing reset code attempts: %w", err)
	}

	return attempts, nil
}

// ConsumeAndSetPassword marks the code used and replaces the user's password
// hash in one transaction. A code that was consumed concurrently yields
// ErrNotFound and leaves the password untouched.
func (r *ResetCodeRepository) ConsumeAndSetPassword(ctx context.Context, codeID, userID, passwordHash string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting password reset transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`UPDATE password_reset_codes SET used_at = ? WHERE id = ? AND used_at IS NULL`,
		now, codeID,
	)
	if err != nil {
		return fmt.Errorf("marking reset code used: %w", err)
	}
	if err := requireRows(result); err != nil {
		return err
	}

	result, err = tx.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, now, userID,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if err := requireRows(result); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing password reset: %w", err)
	}

	return nil
}

func (r *ResetCodeRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM password_reset_codes WHERE expires_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting expired reset codes: %w", err)
	}

	return result.RowsAffected()
}
