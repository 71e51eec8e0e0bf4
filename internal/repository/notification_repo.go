package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/fallback-dispatch/internal/domain"
	"gorm.io/gorm"
)

type ListParams struct {
	Status      *domain.Status
	UsedChannel *domain.Channel
	From        *time.Time
	To          *time.Time
	Page        int
	PageSize    int
}

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	GetByRequestID(ctx context.Context, requestID string) (*domain.Notification, error)
	List(ctx context.Context, params ListParams) ([]domain.Notification, int64, error)
	// MarkInProgress moves a pending notification to in_progress. It returns
	// ErrConflict when the notification is no longer pending.
	MarkInProgress(ctx context.Context, id string) error
	// MarkDelivered sets status and used channel together on an in_progress notification.
	MarkDelivered(ctx context.Context, id string, channel domain.Channel) error
	MarkFailed(ctx context.Context, id string) error
	// ForceFailed fails a notification from any non-terminal state and reports
	// whether a row changed.
	ForceFailed(ctx context.Context, id string) (bool, error)
	GetStale(ctx context.Context, status domain.Status, updatedBefore time.Time, limit int) ([]domain.Notification, error)
	// TouchPending bumps updated_at on a still-pending notification so the sweeper backs off.
	TouchPending(ctx context.Context, id string) error
	// TouchInProgress bumps updated_at on a running notification. It returns
	// ErrConflict once the notification left in_progress.
	TouchInProgress(ctx context.Context, id string) error
}

type GormNotificationRepo struct {
	db *gorm.DB
}

func NewGormNotificationRepo(db *gorm.DB) *GormNotificationRepo {
	return &GormNotificationRepo{db: db}
}

func (r *GormNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	model := notificationModelFromDomain(n)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if n != nil {
		*n = *notificationModelToDomain(model)
	}
	return nil
}

func (r *GormNotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	var model NotificationModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return notificationModelToDomain(&model), nil
}

func (r *GormNotificationRepo) GetByRequestID(ctx context.Context, requestID string) (*domain.Notification, error) {
	var model NotificationModel
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return notificationModelToDomain(&model), nil
}

func (r *GormNotificationRepo) List(ctx context.Context, params ListParams) ([]domain.Notification, int64, error) {
	query := r.db.WithContext(ctx).Model(&NotificationModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.UsedChannel != nil {
		query = query.Where("used_channel = ?", *params.UsedChannel)
	}
	if params.From != nil {
		query = query.Where("created_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("created_at <= ?", *params.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []NotificationModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	notifications := make([]domain.Notification, 0, len(models))
	for i := range models {
		notifications = append(notifications, *notificationModelToDomain(&models[i]))
	}

	return notifications, total, nil
}

func (r *GormNotificationRepo) MarkInProgress(ctx context.Context, id string) error {
	return r.transition(ctx, id, []domain.Status{domain.StatusPending}, map[string]any{
		"status": domain.StatusInProgress,
	})
}

func (r *GormNotificationRepo) MarkDelivered(ctx context.Context, id string, channel domain.Channel) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return (&GormNotificationRepo{db: tx}).transition(ctx, id, []domain.Status{domain.StatusInProgress}, map[string]any{
			"status":       domain.StatusDelivered,
			"used_channel": channel,
		})
	})
}

func (r *GormNotificationRepo) MarkFailed(ctx context.Context, id string) error {
	return r.transition(ctx, id, []domain.Status{domain.StatusInProgress}, map[string]any{
		"status": domain.StatusFailed,
	})
}

func (r *GormNotificationRepo) ForceFailed(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND status IN ?", id, []domain.Status{domain.StatusPending, domain.StatusInProgress}).
		Updates(map[string]any{
			"status":       domain.StatusFailed,
			"used_channel": nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormNotificationRepo) GetStale(
	ctx context.Context,
	status domain.Status,
	updatedBefore time.Time,
	limit int,
) ([]domain.Notification, error) {
	var models []NotificationModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at <= ?", status, updatedBefore).
		Order("updated_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	notifications := make([]domain.Notification, 0, len(models))
	for i := range models {
		notifications = append(notifications, *notificationModelToDomain(&models[i]))
	}

	return notifications, nil
}

func (r *GormNotificationRepo) TouchPending(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Update("updated_at", time.Now().UTC()).Error
}

func (r *GormNotificationRepo) TouchInProgress(ctx context.Context, id string) error {
	return r.transition(ctx, id, []domain.Status{domain.StatusInProgress}, map[string]any{
		"updated_at": time.Now().UTC(),
	})
}

// transition applies updates only while the row is in one of the allowed states.
func (r *GormNotificationRepo) transition(ctx context.Context, id string, from []domain.Status, updates map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&NotificationModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}
