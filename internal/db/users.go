package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"notely/internal/models"
)

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user. The email column is UNIQUE, so concurrent registrations
// of the same address resolve to exactly one row and ErrDuplicate for the rest.
func (r *UserRepository) Create(ctx context.Context, name, email, passwordHash string) (*models.User, error) {
	id, err := GenerateID(PrefixUser)
	if err != nil {
		return nil, fmt.Errorf("generating user ID: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, name, email, passwordHash, now,
	)
	if err != nil {
		return nil, insertError(err, "creating user")
	}

	return &models.User{
		ID:           id,
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, `SELECT id, name, email, password_hash, profile_picture, created_at, updated_at FROM users WHERE id = ?`, id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, `SELECT id, name, email, password_hash, profile_picture, created_at, updated_at FROM users WHERE email = ?`, email)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return requireRows(result)
}

func (r *UserRepository) UpdateProfilePicture(ctx context.Context, id, pictureURL string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET profile_picture = ?, updated_at = ? WHERE id = ?`,
		pictureURL, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating profile picture: %w", err)
	}
	return requireRows(result)
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	var u models.User
	var profilePicture sql.NullString
	var updatedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&profilePicture,
		&u.CreatedAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	u.ProfilePicture = stringPtr(profilePicture)
	u.UpdatedAt = timePtr(updatedAt)

	return &u, nil
}
