package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kursadbilgin/fallback-dispatch/internal/domain"
	"github.com/kursadbilgin/fallback-dispatch/internal/queue"
	"github.com/kursadbilgin/fallback-dispatch/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

type NotificationService struct {
	notifications repository.NotificationRepository
	attempts      repository.AttemptRepository
	publisher     queue.Publisher
	logger        *zap.Logger
	newID         func() string
}

// NotificationDetails is a notification together with its ordered delivery attempts.
type NotificationDetails struct {
	Notification domain.Notification
	Attempts     []domain.DeliveryAttempt
}

func NewNotificationService(
	notifications repository.NotificationRepository,
	attempts repository.AttemptRepository,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*NotificationService, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NotificationService{
		notifications: notifications,
		attempts:      attempts,
		publisher:     publisher,
		logger:        logger,
		newID:         uuid.NewString,
	}, nil
}

// Submit stores a new pending notification and schedules delivery. When the
// request id was seen before, the stored notification is returned unchanged
// and created is false.
func (s *NotificationService) Submit(ctx context.Context, n *domain.Notification) (*domain.Notification, bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.prepareForSubmit(n); err != nil {
		return nil, false, err
	}

	if n.RequestID != nil {
		existing, err := s.notifications.GetByRequestID(ctx, *n.RequestID)
		if err == nil {
			s.logger.Info("idempotent replay",
				zap.String("notificationId", existing.ID),
				zap.String("requestId", *n.RequestID),
			)
			return existing, false, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, false, fmt.Errorf("failed to look up request id: %w", err)
		}
	}

	if err := s.notifications.Create(ctx, n); err != nil {
		existing, resolved, resolveErr := s.resolveIdempotencyConflict(ctx, err, n.RequestID)
		if resolveErr != nil {
			return nil, false, resolveErr
		}
		if resolved {
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to store notification: %w", err)
	}

	s.schedule(ctx, n)

	return n, true, nil
}

// schedule publishes the delivery message. A failed publish leaves the
// notification pending for the sweeper to pick up.
func (s *NotificationService) schedule(ctx context.Context, n *domain.Notification) {
	msg := queue.DeliveryMessage{NotificationID: n.ID}
	if n.RequestID != nil {
		msg.RequestID = *n.RequestID
	}

	if err := s.publisher.Publish(ctx, queue.DeliveryQueue, msg); err != nil {
		s.logger.Error("failed to publish notification, leaving pending",
			zap.String("notificationId", n.ID),
			zap.Error(err),
		)
	}
}

func (s *NotificationService) GetDetails(ctx context.Context, id string) (*NotificationDetails, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}

	n, err := s.notifications.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	attempts, err := s.attempts.GetByNotificationID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempts: %w", err)
	}

	return &NotificationDetails{
		Notification: *n,
		Attempts:     attempts,
	}, nil
}

func (s *NotificationService) List(
	ctx context.Context,
	params repository.ListParams,
) ([]domain.Notification, int64, error) {
	if params.From != nil && params.To != nil && params.From.After(*params.To) {
		return nil, 0, fmt.Errorf("%w: from must not be after to", domain.ErrValidation)
	}
	return s.notifications.List(ctx, params)
}

func (s *NotificationService) prepareForSubmit(n *domain.Notification) error {
	if n == nil {
		return fmt.Errorf("%w: notification is required", domain.ErrValidation)
	}

	n.RequestID = normalizeOptionalString(n.RequestID)
	n.ToEmail = normalizeOptionalString(n.ToEmail)
	n.ToPhone = normalizeOptionalString(n.ToPhone)
	n.ToTelegramChatID = normalizeOptionalString(n.ToTelegramChatID)
	n.Subject = normalizeOptionalString(n.Subject)

	n.ID = s.newID()
	n.Status = domain.StatusPending
	n.UsedChannel = nil

	return n.Validate()
}

func normalizeOptionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func (s *NotificationService) resolveIdempotencyConflict(
	ctx context.Context,
	createErr error,
	requestID *string,
) (*domain.Notification, bool, error) {
	if requestID == nil {
		return nil, false, nil
	}
	if !isUniqueViolationError(createErr) {
		return nil, false, nil
	}

	existing, err := s.notifications.GetByRequestID(ctx, *requestID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load existing notification after idempotency conflict: %w", err)
	}
	s.logger.Info("idempotency conflict resolved",
		zap.String("existingId", existing.ID),
		zap.String("requestId", *requestID),
	)
	return existing, true, nil
}

func isUniqueViolationError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
