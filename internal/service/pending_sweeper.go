package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/fallback-dispatch/internal/domain"
	"github.com/kursadbilgin/fallback-dispatch/internal/observability"
	"github.com/kursadbilgin/fallback-dispatch/internal/queue"
	"github.com/kursadbilgin/fallback-dispatch/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultSweepInterval  = 30 * time.Second
	defaultRepublishAfter = time.Minute
	defaultSweepLimit     = 100
)

// PendingSweeper re-publishes notifications that stayed pending, e.g. after a
// failed publish or a lost message. The conditional claim makes duplicates harmless.
type PendingSweeper struct {
	notifications  repository.NotificationRepository
	publisher      queue.Publisher
	logger         *zap.Logger
	metrics        *observability.Metrics
	interval       time.Duration
	republishAfter time.Duration
	limit          int
	now            func() time.Time
}

func NewPendingSweeper(
	notifications repository.NotificationRepository,
	publisher queue.Publisher,
	interval time.Duration,
	republishAfter time.Duration,
	limit int,
	logger *zap.Logger,
) (*PendingSweeper, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if republishAfter <= 0 {
		republishAfter = defaultRepublishAfter
	}
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PendingSweeper{
		notifications:  notifications,
		publisher:      publisher,
		logger:         logger,
		interval:       interval,
		republishAfter: republishAfter,
		limit:          limit,
		now:            time.Now,
	}, nil
}

func (s *PendingSweeper) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *PendingSweeper) Start(ctx context.Context) error {
	return runPeriodically(ctx, s.interval, s.logger, "pending sweeper", s.sweep)
}

func (s *PendingSweeper) sweep(ctx context.Context) error {
	cutoff := s.now().UTC().Add(-s.republishAfter)
	pending, err := s.notifications.GetStale(ctx, domain.StatusPending, cutoff, s.limit)
	if err != nil {
		return fmt.Errorf("failed to fetch pending notifications: %w", err)
	}

	for i := range pending {
		n := pending[i]
		msg := queue.DeliveryMessage{NotificationID: n.ID}
		if n.RequestID != nil {
			msg.RequestID = *n.RequestID
		}

		if err := s.publisher.Publish(ctx, queue.DeliveryQueue, msg); err != nil {
			s.logger.Error("failed to re-publish pending notification",
				zap.String("notificationId", n.ID),
				zap.Error(err),
			)
			continue
		}
		s.metrics.IncPendingRepublished()

		if err := s.notifications.TouchPending(ctx, n.ID); err != nil {
			s.logger.Error("failed to touch re-published notification",
				zap.String("notificationId", n.ID),
				zap.Error(err),
			)
		}
	}

	return nil
}
