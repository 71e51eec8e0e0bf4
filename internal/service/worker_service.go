package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/fallback-dispatch/internal/domain"
	"github.com/kursadbilgin/fallback-dispatch/internal/lease"
	"github.com/kursadbilgin/fallback-dispatch/internal/observability"
	"github.com/kursadbilgin/fallback-dispatch/internal/queue"
	"github.com/kursadbilgin/fallback-dispatch/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	minWorkerConcurrency = 1
	defaultLeaseTTL      = 2 * time.Minute
)

// WorkerService consumes delivery messages and runs the orchestrator for each.
type WorkerService struct {
	notifications repository.NotificationRepository
	delivery      Deliverer
	consumer      queue.Consumer
	locker        lease.Locker
	leaseTTL      time.Duration
	logger        *zap.Logger
	metrics       *observability.Metrics
	concurrency   int
}

func NewWorkerService(
	notifications repository.NotificationRepository,
	delivery Deliverer,
	consumer queue.Consumer,
	locker lease.Locker,
	leaseTTL time.Duration,
	concurrency int,
	logger *zap.Logger,
) (*WorkerService, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if delivery == nil {
		return nil, fmt.Errorf("deliverer is required")
	}
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if locker == nil {
		locker = lease.Noop{}
	}
	if leaseTTL <= 0 {
		leaseTTL = defaultLeaseTTL
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		notifications: notifications,
		delivery:      delivery,
		consumer:      consumer,
		locker:        locker,
		leaseTTL:      leaseTTL,
		logger:        logger,
		concurrency:   concurrency,
	}, nil
}

// Start consumes the delivery queue with the configured number of workers until context cancellation.
func (s *WorkerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queue.DeliveryQueue),
			)

			err := s.consumer.Consume(groupCtx, queue.DeliveryQueue, s.processMessage)
			if err != nil {
				s.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

func (s *WorkerService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *WorkerService) processMessage(ctx context.Context, msg queue.DeliveryMessage) error {
	logger := observability.NotificationLogger(s.logger, ctx, msg.NotificationID)

	notification, err := s.notifications.GetByID(ctx, msg.NotificationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Warn("notification not found, skipping")
			return nil
		}
		return fmt.Errorf("failed to load notification: %w", err)
	}

	// Already claimed or finished; a redelivered message is harmless.
	if notification.Status != domain.StatusPending {
		logger.Debug("notification is not pending, skipping", zap.String("status", notification.Status.String()))
		return nil
	}

	held, acquired, err := s.locker.Acquire(ctx, lease.DeliveryKey(notification.ID), s.leaseTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire delivery lease: %w", err)
	}
	if !acquired {
		logger.Info("delivery lease held by another worker, skipping")
		return nil
	}
	defer func() {
		if err := held.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to release delivery lease", zap.Error(err))
		}
	}()

	s.metrics.IncWorkerInFlight()
	defer s.metrics.DecWorkerInFlight()

	// A started run is never aborted by shutdown; each channel send carries its own timeout.
	runCtx := context.WithoutCancel(ctx)

	err = s.delivery.Deliver(runCtx, notification)
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrConflict) {
		logger.Info("notification claimed elsewhere, skipping")
		return nil
	}

	s.forceFailed(runCtx, notification.ID, logger)
	return fmt.Errorf("delivery of notification %s failed: %w", notification.ID, err)
}

// forceFailed moves a notification whose run broke down to failed so it is
// never left in_progress.
func (s *WorkerService) forceFailed(ctx context.Context, id string, logger *zap.Logger) {
	changed, err := s.notifications.ForceFailed(context.WithoutCancel(ctx), id)
	if err != nil {
		logger.Error("failed to force notification to failed", zap.Error(err))
		return
	}
	if changed {
		s.metrics.IncNotificationFailed(observability.FailureReasonError)
		logger.Warn("notification forced to failed after processing error")
	}
}
