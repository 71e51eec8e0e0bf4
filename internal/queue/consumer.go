package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/fallback-dispatch/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// settlement is the broker outcome for a single delivery.
type settlement int

const (
	settleAck settlement = iota
	// settleReject drops a message that can never be processed.
	settleReject
	// settleDeadLetter routes a message whose handler failed to the DLQ.
	settleDeadLetter
)

type RabbitMQConsumer struct {
	client   *RabbitMQ
	prefetch int
	logger   *zap.Logger
}

func NewRabbitMQConsumer(client *RabbitMQ, prefetch int, logger *zap.Logger) *RabbitMQConsumer {
	if prefetch < 1 {
		prefetch = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RabbitMQConsumer{
		client:   client,
		prefetch: prefetch,
		logger:   logger,
	}
}

// Consume delivers messages from queue to handler, reopening the channel with
// backoff whenever the broker drops it. It returns nil once ctx is done.
func (c *RabbitMQConsumer) Consume(ctx context.Context, queue string, handler MessageHandler) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("consumer is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}

	tag := consumerTag(queue)
	logger := c.logger.With(zap.String("queue", queue), zap.String("consumerTag", tag))

	wait := reconnectBackoff
	for {
		err := c.consumeOnce(ctx, queue, tag, handler)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			wait = reconnectBackoff
			continue
		}

		logger.Warn("delivery consumer interrupted, reconnecting",
			zap.Error(err),
			zap.Duration("backoff", wait),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
		wait = nextBackoff(wait)
	}
}

func (c *RabbitMQConsumer) consumeOnce(ctx context.Context, queue string, tag string, handler MessageHandler) error {
	ch, err := c.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, queue, tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume queue %q: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			if err := c.handleDelivery(ctx, d, handler); err != nil {
				return err
			}
		}
	}
}

func (c *RabbitMQConsumer) handleDelivery(ctx context.Context, d amqp.Delivery, handler MessageHandler) error {
	logger := c.logger.With(
		zap.String("messageId", d.MessageId),
		zap.Bool("redelivered", d.Redelivered),
	)

	msg, err := decodeDeliveryMessage(d)
	if err != nil {
		logger.Warn("rejecting undeliverable message", zap.Error(err))
		return settle(d, settleReject)
	}

	if d.CorrelationId != "" {
		ctx = observability.WithCorrelationID(ctx, d.CorrelationId)
	}

	// The handler outlives consumer shutdown so the delivery is settled once it finishes.
	if err := handler(context.WithoutCancel(ctx), msg); err != nil {
		logger.Error("dead-lettering message: handler failed",
			zap.Error(err),
			zap.String("notificationId", msg.NotificationID),
		)
		return settle(d, settleDeadLetter)
	}

	return settle(d, settleAck)
}

// decodeDeliveryMessage parses the body, falling back to the AMQP message id
// for the notification id, which the publisher always sets.
func decodeDeliveryMessage(d amqp.Delivery) (DeliveryMessage, error) {
	var msg DeliveryMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		return DeliveryMessage{}, fmt.Errorf("invalid message body: %w", err)
	}
	if strings.TrimSpace(msg.NotificationID) == "" {
		msg.NotificationID = strings.TrimSpace(d.MessageId)
	}
	if err := msg.Validate(); err != nil {
		return DeliveryMessage{}, err
	}
	return msg, nil
}

func settle(d amqp.Delivery, s settlement) error {
	switch s {
	case settleReject:
		if err := d.Reject(false); err != nil {
			return fmt.Errorf("failed to reject delivery: %w", err)
		}
	case settleDeadLetter:
		if err := d.Nack(false, false); err != nil {
			return fmt.Errorf("failed to dead-letter delivery: %w", err)
		}
	default:
		if err := d.Ack(false); err != nil {
			return fmt.Errorf("failed to ack delivery: %w", err)
		}
	}
	return nil
}

func consumerTag(queue string) string {
	return "dispatch-worker." + queue + "." + uuid.NewString()[:8]
}

func (c *RabbitMQConsumer) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
