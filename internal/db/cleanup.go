package db

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultCleanupInterval = 1 * time.Hour
	// ResetCodeRetention is how long an expired reset code is kept before removal.
	ResetCodeRetention = 24 * time.Hour
)

type CleanupService struct {
	revokedTokens *RevokedTokenRepository
	resetCodes    *ResetCodeRepository
	interval      time.Duration
	now           func() time.Time
}

func NewCleanupService(revokedTokens *RevokedTokenRepository, resetCodes *ResetCodeRepository) *CleanupService {
	return &CleanupService{
		revokedTokens: revokedTokens,
		resetCodes:    resetCodes,
		interval:      DefaultCleanupInterval,
		now:           time.Now,
	}
}

func (s *CleanupService) Start(ctx context.Context) {
	slog.Info("starting token cleanup service", "component", "cleanup", "interval", s.interval)

	s.runCleanup(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping token cleanup service", "component", "cleanup")
			return
		case <-ticker.C:
			s.runCleanup(ctx)
		}
	}
}

func (s *CleanupService) runCleanup(ctx context.Context) {
	now := s.now().UTC()

	revokedDeleted, err := s.revokedTokens.DeleteExpired(ctx, now)
	if err != nil {
		slog.Error("error deleting expired revocations", "component", "cleanup", "error", err)
	} else if revokedDeleted > 0 {
		slog.Info("deleted expired revocations", "component", "cleanup", "count", revokedDeleted)
	}

	codesDeleted, err := s.resetCodes.DeleteExpired(ctx, now.Add(-ResetCodeRetention))
	if err != nil {
		slog.Error("error deleting expired reset codes", "component", "cleanup", "error", err)
	} else if codesDeleted > 0 {
		slog.Info("deleted expired reset codes", "component", "cleanup", "count", codesDeleted)
	}
}
