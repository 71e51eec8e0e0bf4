package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/fallback-dispatch/internal/channel"
	"github.com/kursadbilgin/fallback-dispatch/internal/domain"
	"github.com/kursadbilgin/fallback-dispatch/internal/observability"
	"github.com/kursadbilgin/fallback-dispatch/internal/repository"
	"go.uber.org/zap"
)

// Deliverer runs one fallback delivery pass for a notification.
type Deliverer interface {
	Deliver(ctx context.Context, n *domain.Notification) error
}

var _ Deliverer = (*DeliveryService)(nil)

const defaultSendTimeout = 30 * time.Second

// DeliveryService walks a notification's channel preference in order and
// stops at the first channel that succeeds.
type DeliveryService struct {
	notifications repository.NotificationRepository
	attempts      repository.AttemptRepository
	senders       *channel.Registry
	logger        *zap.Logger
	metrics       *observability.Metrics
	sendTimeout   time.Duration
	now           func() time.Time
	newID         func() string
}

func NewDeliveryService(
	notifications repository.NotificationRepository,
	attempts repository.AttemptRepository,
	senders *channel.Registry,
	logger *zap.Logger,
) (*DeliveryService, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	if senders == nil {
		return nil, fmt.Errorf("sender registry is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DeliveryService{
		notifications: notifications,
		attempts:      attempts,
		senders:       senders,
		logger:        logger,
		sendTimeout:   defaultSendTimeout,
		now:           time.Now,
		newID:         uuid.NewString,
	}, nil
}

// SetSendTimeout bounds every single channel send. Non-positive values keep the default.
func (s *DeliveryService) SetSendTimeout(timeout time.Duration) {
	if s == nil || timeout <= 0 {
		return
	}
	s.sendTimeout = timeout
}

func (s *DeliveryService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Deliver claims n (pending to in_progress), then tries each resolved channel
// until one succeeds. Every considered known channel leaves exactly one
// attempt. Unknown identifiers are skipped without an attempt. n mirrors each
// persisted transition. A notification that is no longer pending yields
// domain.ErrConflict and is left untouched.
func (s *DeliveryService) Deliver(ctx context.Context, n *domain.Notification) error {
	if n == nil || strings.TrimSpace(n.ID) == "" {
		return fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}

	logger := observability.NotificationLogger(s.logger, ctx, n.ID)

	if err := s.notifications.MarkInProgress(ctx, n.ID); err != nil {
		return fmt.Errorf("failed to claim notification %s: %w", n.ID, err)
	}
	n.Status = domain.StatusInProgress
	n.UsedChannel = nil

	sequence := 0
	for _, ch := range n.ResolvedChannels() {
		sender, ok := s.senders.Lookup(ch)
		if !ok {
			logger.Warn("skipping unknown channel", zap.String("channel", ch.String()))
			continue
		}

		// Heartbeat so the stale reconciler only sees runs that stopped making progress.
		if err := s.notifications.TouchInProgress(ctx, n.ID); err != nil {
			return fmt.Errorf("failed to record progress before %s: %w", ch, err)
		}

		sequence++
		result := s.try(ctx, sender, n)

		if err := s.recordAttempt(ctx, n.ID, sequence, ch, result); err != nil {
			return fmt.Errorf("failed to record %s attempt: %w", ch, err)
		}

		if !result.Success {
			logger.Info("channel attempt failed",
				zap.String("channel", ch.String()),
				zap.String("reason", result.ErrorMessage),
			)
			continue
		}

		if err := s.notifications.MarkDelivered(ctx, n.ID, ch); err != nil {
			return fmt.Errorf("failed to mark notification delivered: %w", err)
		}
		used := ch
		n.Status = domain.StatusDelivered
		n.UsedChannel = &used

		s.metrics.IncNotificationDelivered(ch.String())
		logger.Info("notification delivered",
			zap.String("channel", ch.String()),
			zap.Int("attempts", sequence),
		)
		return nil
	}

	if err := s.notifications.MarkFailed(ctx, n.ID); err != nil {
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	n.Status = domain.StatusFailed

	s.metrics.IncNotificationFailed(observability.FailureReasonExhausted)
	logger.Warn("all channels failed", zap.Int("attempts", sequence))
	return nil
}

func (s *DeliveryService) try(ctx context.Context, sender channel.Sender, n *domain.Notification) channel.Result {
	if !sender.IsAvailable(n) {
		return channel.Failed(sender.UnavailableReason(n))
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	start := s.now()
	result := sender.Send(sendCtx, n)
	s.metrics.ObserveChannelSendDuration(sender.Channel().String(), s.now().Sub(start))
	return result
}

func (s *DeliveryService) recordAttempt(
	ctx context.Context,
	notificationID string,
	sequence int,
	ch domain.Channel,
	result channel.Result,
) error {
	attempt := &domain.DeliveryAttempt{
		ID:             s.newID(),
		NotificationID: notificationID,
		Sequence:       sequence,
		Channel:        ch,
		Status:         domain.AttemptStatusSuccess,
		AttemptedAt:    s.now().UTC(),
	}
	if !result.Success {
		message := result.ErrorMessage
		attempt.Status = domain.AttemptStatusFailed
		attempt.ErrorMessage = &message
	}

	if err := s.attempts.Create(ctx, attempt); err != nil {
		return err
	}

	s.metrics.IncDeliveryAttempt(ch.String(), attempt.Status.String())
	return nil
}
