package domain

import "time"

// AttemptStatus is the outcome of a single channel try.
type AttemptStatus string

const (
	AttemptStatusSuccess AttemptStatus = "success"
	AttemptStatusFailed  AttemptStatus = "failed"
)

func (s AttemptStatus) String() string { return string(s) }

// DeliveryAttempt records a single channel try for a notification. Attempts are write-once.
type DeliveryAttempt struct {
	ID             string
	NotificationID string
	Sequence       int
	Channel        Channel
	Status         AttemptStatus
	ErrorMessage   *string
	AttemptedAt    time.Time
}
