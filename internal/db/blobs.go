package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"notely/internal/models"
)

type BlobRepository struct {
	db *DB
}

func NewBlobRepository(db *DB) *BlobRepository {
	return &BlobRepository{db: db}
}

func (r *BlobRepository) Create(ctx context.Context, b *models.Blob) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO blobs (id, kind, uploaded_by, storage_path, mime_type, size_bytes, original_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Kind, b.UploadedBy, b.StoragePath, b.MimeType, b.SizeBytes, b.OriginalName, b.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating blob: %w", err)
	}
	return nil
}

func (r *BlobRepository) FindByID(ctx context.Context, id string) (*models.Blob, error) {
	var b models.Blob
	err := r.db.QueryRowContext(ctx,
		`SELECT id, kind, uploaded_by, storage_path, mime_type, size_bytes, original_name, created_at
		   FROM blobs WHERE id = ?`,
		id,
	).Scan(&b.ID, &b.Kind, &b.UploadedBy, &b.StoragePath, &b.MimeType, &b.SizeBytes, &b.OriginalName, &b.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying blob: %w", err)
	}
	return &b, nil
}

func (r *BlobRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM blobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting blob: %w", err)
	}
	return requireRows(result)
}

// ListOrphaned returns blobs of kind created before cutoff that no user's
// profile picture references any more.
func (r *BlobRepository) ListOrphaned(ctx context.Context, kind string, cutoff time.Time, limit int) ([]models.Blob, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT b.id, b.kind, b.uploaded_by, b.storage_path, b.mime_type, b.size_bytes, b.original_name, b.created_at
		   FROM blobs b
		  WHERE b.kind = ? AND b.created_at < ?
		    AND NOT EXISTS (
		        SELECT 1 FROM users u
		         WHERE u.profile_picture IS NOT NULL
		           AND substr(u.profile_picture, -length(b.id)) = b.id
		    )
		  ORDER BY b.created_at
		  LIMIT ?`,
		kind, cutoff.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing orphaned blobs: %w", err)
	}
	defer rows.Close()

	var blobs []models.Blob
	for rows.Next() {
		var b models.Blob
		if err := rows.Scan(&b.ID, &b.Kind, &b.UploadedBy, &b.StoragePath, &b.MimeType, &b.SizeBytes, &b.OriginalName, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning blob: %w", err)
		}
		blobs = append(blobs, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating blobs: %w", err)
	}
	return blobs, nil
}
