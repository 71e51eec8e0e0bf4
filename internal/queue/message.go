package queue

import (
	"fmt"
	"strings"
)

// DeliveryMessage is the broker payload asking a worker to run delivery for a notification.
type DeliveryMessage struct {
	NotificationID string `json:"notificationId"`
	RequestID      string `json:"requestId,omitempty"`
}

func (m DeliveryMessage) Validate() error {
	if strings.TrimSpace(m.NotificationID) == "" {
		return fmt.Errorf("notificationId is required")
	}
	return nil
}
