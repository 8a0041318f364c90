package blob

import (
	"context"
	"log/slog"
	"time"

	"notely/internal/models"
)

const (
	DefaultCleanupInterval = 1 * time.Hour
	DefaultCleanupBatch    = 100
	// DefaultOrphanGrace keeps freshly uploaded blobs out of the sweep while
	// the owning profile update is still in flight.
	DefaultOrphanGrace = 1 * time.Hour
)

type BlobIndex interface {
	ListOrphaned(ctx context.Context, kind string, cutoff time.Time, limit int) ([]models.Blob, error)
	Delete(ctx context.Context, id string) error
}

// CleanupService removes profile pictures that were replaced but whose
// best-effort deletion failed at the time.
type CleanupService struct {
	index     BlobIndex
	store     Store
	interval  time.Duration
	grace     time.Duration
	batchSize int
}

func NewCleanupService(index BlobIndex, store Store) *CleanupService {
	return &CleanupService{
		index:     index,
		store:     store,
		interval:  DefaultCleanupInterval,
		grace:     DefaultOrphanGrace,
		batchSize: DefaultCleanupBatch,
	}
}

func (s *CleanupService) Start(ctx context.Context) {
	slog.Info("starting blob cleanup service", "component", "blob_cleanup", "interval", s.interval)

	s.runCleanup(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping blob cleanup service", "component", "blob_cleanup")
			return
		case <-ticker.C:
			s.runCleanup(ctx)
		}
	}
}

func (s *CleanupService) runCleanup(ctx context.Context) int {
	cutoff := time.Now().UTC().Add(-s.grace)
	rows, err := s.index.ListOrphaned(ctx, string(KindProfilePicture), cutoff, s.batchSize)
	if err != nil {
		slog.Error("error listing orphaned blobs", "component", "blob_cleanup", "error", err)
		return 0
	}

	deleted := 0
	for _, row := range rows {
		if err := s.store.Delete(ctx, row.StoragePath); err != nil {
			slog.Warn("error deleting orphaned blob file", "component", "blob_cleanup", "error", err, "blob_id", row.ID)
			continue
		}

		if err := s.index.Delete(ctx, row.ID); err != nil {
			slog.Error("error deleting orphaned blob row", "component", "blob_cleanup", "error", err, "blob_id", row.ID)
			continue
		}
		deleted++
	}

	if deleted > 0 {
		slog.Info("deleted orphaned blobs", "component", "blob_cleanup", "count", deleted)
	}
	return deleted
}
