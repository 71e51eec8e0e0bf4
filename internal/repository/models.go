package repository

import (
	"time"

	"github.com/kursadbilgin/fallback-dispatch/internal/domain"
)

// NotificationModel is the persistence model for the notifications table.
type NotificationModel struct {
	ID               string           `gorm:"type:uuid;primaryKey"`
	RequestID        *string          `gorm:"type:varchar(255)"`
	ToEmail          *string          `gorm:"type:varchar(254)"`
	ToPhone          *string          `gorm:"type:varchar(20)"`
	ToTelegramChatID *string          `gorm:"column:to_telegram_chat_id;type:varchar(100)"`
	Subject          *string          `gorm:"type:varchar(255)"`
	Body             string           `gorm:"type:text;not null"`
	Channels         []domain.Channel `gorm:"type:jsonb;serializer:json;not null"`
	Status           domain.Status    `gorm:"type:varchar(20);not null"`
	UsedChannel      *domain.Channel  `gorm:"type:varchar(20)"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (NotificationModel) TableName() string {
	return "notifications"
}

// DeliveryAttemptModel is the persistence model for delivery_attempts.
type DeliveryAttemptModel struct {
	ID             string               `gorm:"type:uuid;primaryKey"`
	NotificationID string               `gorm:"type:uuid;not null"`
	Sequence       int                  `gorm:"not null"`
	Channel        domain.Channel       `gorm:"type:varchar(20);not null"`
	Status         domain.AttemptStatus `gorm:"type:varchar(20);not null"`
	ErrorMessage   *string              `gorm:"type:text"`
	AttemptedAt    time.Time            `gorm:"type:timestamptz;not null"`
}

func (DeliveryAttemptModel) TableName() string {
	return "delivery_attempts"
}

func notificationModelFromDomain(n *domain.Notification) *NotificationModel {
	if n == nil {
		return nil
	}

	channels := n.Channels
	if channels == nil {
		channels = []domain.Channel{}
	}

	return &NotificationModel{
		ID:               n.ID,
		RequestID:        n.RequestID,
		ToEmail:          n.ToEmail,
		ToPhone:          n.ToPhone,
		ToTelegramChatID: n.ToTelegramChatID,
		Subject:          n.Subject,
		Body:             n.Body,
		Channels:         channels,
		Status:           n.Status,
		UsedChannel:      n.UsedChannel,
		CreatedAt:        n.CreatedAt,
		UpdatedAt:        n.UpdatedAt,
	}
}

func notificationModelToDomain(m *NotificationModel) *domain.Notification {
	if m == nil {
		return nil
	}

	return &domain.Notification{
		ID:               m.ID,
		RequestID:        m.RequestID,
		ToEmail:          m.ToEmail,
		ToPhone:          m.ToPhone,
		ToTelegramChatID: m.ToTelegramChatID,
		Subject:          m.Subject,
		Body:             m.Body,
		Channels:         m.Channels,
		Status:           m.Status,
		UsedChannel:      m.UsedChannel,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func attemptModelFromDomain(a *domain.DeliveryAttempt) *DeliveryAttemptModel {
	if a == nil {
		return nil
	}

	return &DeliveryAttemptModel{
		ID:             a.ID,
		NotificationID: a.NotificationID,
		Sequence:       a.Sequence,
		Channel:        a.Channel,
		Status:         a.Status,
		ErrorMessage:   a.ErrorMessage,
		AttemptedAt:    a.AttemptedAt,
	}
}

func attemptModelToDomain(m *DeliveryAttemptModel) *domain.DeliveryAttempt {
	if m == nil {
		return nil
	}

	return &domain.DeliveryAttempt{
		ID:             m.ID,
		NotificationID: m.NotificationID,
		Sequence:       m.Sequence,
		Channel:        m.Channel,
		Status:         m.Status,
		ErrorMessage:   m.ErrorMessage,
		AttemptedAt:    m.AttemptedAt,
	}
}
