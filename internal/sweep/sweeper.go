package sweep

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mariachi-loyalty/dispatch/internal/domain"
	"github.com/mariachi-loyalty/dispatch/internal/store"
)

// Sweeper deletes notifications whose retention window has passed. It runs
// as the notifications.cleanup_expired task body on the beat schedule.
type Sweeper struct {
	store  store.Store
	logger *zap.Logger
}

func New(st store.Store, logger *zap.Logger) *Sweeper {
	return &Sweeper{store: st, logger: logger}
}

// Sweep deletes every notification with expires_at ≤ now and returns how
// many were removed. Idempotent: a second run with no new expirations
// deletes nothing. Unread notifications that have not expired are never
// touched, regardless of age.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.store.ListExpired(ctx, now)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, n := range expired {
		if err := s.store.Delete(ctx, n.ID, n.TenantID); err != nil {
			// A concurrent sweep may have removed it already; that still
			// counts as swept for idempotence.
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			s.logger.Error("failed to delete expired notification",
				zap.String("notification_id", n.ID),
				zap.String("tenant_id", n.TenantID),
				zap.Error(err))
			continue
		}
		deleted++
	}

	if deleted > 0 {
		s.logger.Info("expired notifications cleaned up", zap.Int("deleted_count", deleted))
	}
	return deleted, nil
}
