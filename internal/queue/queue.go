package queue

import (
	"context"
)

const (
	// DeliveryQueue carries notifications awaiting a delivery run.
	DeliveryQueue = "notifications.delivery"

	dlxExchangeName    = "dispatch.dlx"
	deliveryRoutingKey = "notifications.delivery"
)

// Publisher publishes delivery messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg DeliveryMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message. A returned error dead-letters the message.
type MessageHandler func(ctx context.Context, msg DeliveryMessage) error

// Consumer consumes delivery messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

// DLQName returns the dead-letter queue name for a work queue, e.g. dlq.notifications.delivery.
func DLQName(queue string) string {
	return "dlq." + queue
}
