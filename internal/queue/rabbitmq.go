package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	reconnectBackoff = time.Second
	maxBackoff       = 30 * time.Second
	connectTimeout   = 15 * time.Second
	heartbeat        = 10 * time.Second
)

// topology describes a durable work queue dead-lettered into a direct exchange.
type topology struct {
	queue      string
	dlx        string
	routingKey string
}

var deliveryTopology = topology{
	queue:      DeliveryQueue,
	dlx:        dlxExchangeName,
	routingKey: deliveryRoutingKey,
}

func (t topology) queueArgs() amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    t.dlx,
		"x-dead-letter-routing-key": t.routingKey,
	}
}

func (t topology) declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(t.dlx, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dlx exchange %q: %w", t.dlx, err)
	}

	dlq := DLQName(t.queue)
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dlq %q: %w", dlq, err)
	}
	if err := ch.QueueBind(dlq, t.routingKey, t.dlx, false, nil); err != nil {
		return fmt.Errorf("failed to bind dlq %q: %w", dlq, err)
	}

	if _, err := ch.QueueDeclare(t.queue, true, false, false, false, t.queueArgs()); err != nil {
		return fmt.Errorf("failed to declare queue %q: %w", t.queue, err)
	}
	return nil
}

// RabbitMQ owns a single broker connection shared by publishers and consumers.
// Channels are opened per operation and the delivery topology is declared on each.
type RabbitMQ struct {
	url    string
	config amqp.Config

	mu          sync.RWMutex
	reconnectMu sync.Mutex
	conn        *amqp.Connection
}

// NewRabbitMQ dials the broker. connectionName is reported to the broker
// management UI so api and worker connections can be told apart.
func NewRabbitMQ(url string, connectionName string) (*RabbitMQ, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}

	props := amqp.NewConnectionProperties()
	if name := strings.TrimSpace(connectionName); name != "" {
		props.SetClientConnectionName(name)
	}

	r := &RabbitMQ{
		url:    url,
		config: amqp.Config{Heartbeat: heartbeat, Properties: props},
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := r.reconnect(ctx, nil); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil
	}

	return conn.Close()
}

// IsConnected reports whether the broker connection is currently open.
func (r *RabbitMQ) IsConnected() bool {
	if r == nil {
		return false
	}
	return r.current() != nil
}

func (r *RabbitMQ) current() *amqp.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.conn == nil || r.conn.IsClosed() {
		return nil
	}
	return r.conn
}

// channel opens a channel with the delivery topology declared. A failed open
// triggers one reconnect before giving up.
func (r *RabbitMQ) channel(ctx context.Context) (*amqp.Channel, error) {
	conn := r.current()
	if conn == nil {
		if err := r.reconnect(ctx, nil); err != nil {
			return nil, err
		}
		conn = r.current()
	}
	if conn == nil {
		return nil, fmt.Errorf("rabbitmq connection unavailable")
	}

	ch, err := conn.Channel()
	if err != nil {
		if err := r.reconnect(ctx, conn); err != nil {
			return nil, err
		}
		if conn = r.current(); conn == nil {
			return nil, fmt.Errorf("rabbitmq connection unavailable after reconnect")
		}
		if ch, err = conn.Channel(); err != nil {
			return nil, fmt.Errorf("failed to open rabbitmq channel after reconnect: %w", err)
		}
	}

	if err := deliveryTopology.declare(ch); err != nil {
		_ = ch.Close()
		return nil, err
	}

	return ch, nil
}

// reconnect dials until it succeeds or ctx ends. stale is the connection the
// caller saw failing; another goroutine may already have replaced it.
func (r *RabbitMQ) reconnect(ctx context.Context, stale *amqp.Connection) error {
	r.reconnectMu.Lock()
	defer r.reconnectMu.Unlock()

	if conn := r.current(); conn != nil && conn != stale {
		return nil
	}

	wait := reconnectBackoff
	for {
		conn, err := amqp.DialConfig(r.url, r.config)
		if err == nil {
			r.mu.Lock()
			old := r.conn
			r.conn = conn
			r.mu.Unlock()

			if old != nil && !old.IsClosed() {
				_ = old.Close()
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("rabbitmq connect canceled after %v: %w", err, ctx.Err())
		case <-time.After(wait):
		}
		wait = nextBackoff(wait)
	}
}

func nextBackoff(current time.Duration) time.Duration {
	return min(current*2, maxBackoff)
}
