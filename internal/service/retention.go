package service

import (
	"context"
	"time"

	"github.com/xiaot623/aetheron/internal/domain"
)

// PurgeEmptySessions deletes the user's sessions that have no turns and returns how many.
func (s *Service) PurgeEmptySessions(ctx context.Context, userID int64) (int64, error) {
	s.purgeMu.Lock()
	defer s.purgeMu.Unlock()

	n, err := s.store.PurgeEmptySessions(ctx, userID, s.locks.held())
	if err != nil {
		return 0, domain.StorageError("purge_empty_sessions", err)
	}
	if n > 0 {
		s.log.Info("purged empty sessions", "user_id", userID, "count", n)
	}
	return n, nil
}

// SweepStaleSessions deletes empty sessions of every user that are older than the grace period.
func (s *Service) SweepStaleSessions(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.config.RetentionGrace)

	s.purgeMu.Lock()
	defer s.purgeMu.Unlock()

	n, err := s.store.PurgeStaleEmptySessions(ctx, cutoff, s.locks.held())
	if err != nil {
		return 0, domain.StorageError("purge_stale_sessions", err)
	}
	return n, nil
}

// RunRetentionMonitor sweeps stale empty sessions every RetentionInterval until ctx ends.
func (s *Service) RunRetentionMonitor(ctx context.Context) {
	if s.config.RetentionInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.config.RetentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepRetention(ctx)
		}
	}
}

func (s *Service) sweepRetention(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	n, err := s.SweepStaleSessions(sweepCtx)
	if err != nil {
		s.log.Warn("retention sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.log.Info("retention sweep removed empty sessions", "count", n)
	}
}
