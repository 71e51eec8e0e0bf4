package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/fallback-dispatch/internal/domain"
	"github.com/kursadbilgin/fallback-dispatch/internal/observability"
	"github.com/kursadbilgin/fallback-dispatch/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultReconcileInterval = 30 * time.Second
	defaultStaleAfter        = 10 * time.Minute
	defaultReconcileLimit    = 100
)

// StaleReconciler fails notifications left in_progress by a worker that died
// mid-run. They are never re-run: a channel may already have delivered, and
// the attempt history is kept for manual follow-up.
type StaleReconciler struct {
	notifications repository.NotificationRepository
	logger        *zap.Logger
	metrics       *observability.Metrics
	interval      time.Duration
	staleAfter    time.Duration
	limit         int
	now           func() time.Time
}

func NewStaleReconciler(
	notifications repository.NotificationRepository,
	interval time.Duration,
	staleAfter time.Duration,
	limit int,
	logger *zap.Logger,
) (*StaleReconciler, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if interval <= 0 {
		interval = defaultReconcileInterval
	}
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	if limit <= 0 {
		limit = defaultReconcileLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StaleReconciler{
		notifications: notifications,
		logger:        logger,
		interval:      interval,
		staleAfter:    staleAfter,
		limit:         limit,
		now:           time.Now,
	}, nil
}

func (r *StaleReconciler) SetMetrics(metrics *observability.Metrics) {
	if r == nil {
		return
	}
	r.metrics = metrics
}

func (r *StaleReconciler) Start(ctx context.Context) error {
	return runPeriodically(ctx, r.interval, r.logger, "stale reconciler", r.scanStale)
}

func (r *StaleReconciler) scanStale(ctx context.Context) error {
	cutoff := r.now().UTC().Add(-r.staleAfter)
	stale, err := r.notifications.GetStale(ctx, domain.StatusInProgress, cutoff, r.limit)
	if err != nil {
		return fmt.Errorf("failed to fetch stale notifications: %w", err)
	}

	for i := range stale {
		id := stale[i].ID
		changed, err := r.notifications.ForceFailed(ctx, id)
		if err != nil {
			r.logger.Error("failed to fail stale notification",
				zap.String("notificationId", id),
				zap.Error(err),
			)
			continue
		}
		if !changed {
			continue
		}

		r.metrics.IncNotificationFailed(observability.FailureReasonStale)
		r.logger.Warn("stale in_progress notification forced to failed",
			zap.String("notificationId", id),
			zap.Time("lastUpdatedAt", stale[i].UpdatedAt),
		)
	}

	return nil
}
