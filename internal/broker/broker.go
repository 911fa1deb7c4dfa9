// Package broker wraps the RabbitMQ connection: topology declaration,
// priority publishing, and the consumer loop used by the former.
package broker

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/moviehub/notify/internal/models"
	"github.com/moviehub/notify/internal/routing"
)

// ExchangeName is the single direct exchange all queues bind to.
const ExchangeName = "notifications"

const headerRequestID = "X-Request-Id"

// PublishStatus is the outcome of a publish attempt.
type PublishStatus string

const (
	PublishOK    PublishStatus = "ok"
	PublishError PublishStatus = "error"
)

// PublishResult reports how a work unit fared at the broker. Publish
// failures are carried in the result rather than returned as errors so
// callers can answer a batch partially.
type PublishResult struct {
	Status     PublishStatus `json:"status"`
	Message    string        `json:"message,omitempty"`
	Queue      string        `json:"queue"`
	Priority   int           `json:"priority"`
	XRequestID string        `json:"x_request_id"`
}

// Publisher sends work units into the priority queues.
type Publisher interface {
	SendMessage(ctx context.Context, unit *models.WorkUnit, requestID string) PublishResult
}

// Client owns one AMQP connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *logrus.Logger
}

// Connect dials the broker and declares the exchange, queues, and
// bindings. Declaration is idempotent so every process can run it at
// startup.
func Connect(url string, log *logrus.Logger) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	c := &Client{conn: conn, channel: channel, log: log}
	if err := c.declareTopology(); err != nil {
		_ = c.Close()
		return nil, err
	}

	log.Info("RabbitMQ connection established")
	return c, nil
}

func (c *Client) declareTopology() error {
	err := c.channel.ExchangeDeclare(ExchangeName, "direct", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	for _, q := range routing.Queues() {
		args := amqp.Table{
			"x-message-ttl":  q.TTL.Milliseconds(),
			"x-max-priority": int32(routing.MaxPriority),
		}
		if _, err := c.channel.QueueDeclare(q.Name, true, false, false, false, args); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", q.Name, err)
		}
		if err := c.channel.QueueBind(q.Name, q.Name, ExchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s: %w", q.Name, err)
		}
	}
	return nil
}

// SendMessage routes the unit by event type and publishes it persistently.
func (c *Client) SendMessage(ctx context.Context, unit *models.WorkUnit, requestID string) PublishResult {
	queue, priority := routing.Route(unit.EventType)
	return c.publish(ctx, queue.Name, priority, unit, requestID)
}

// Republish puts an already-encoded payload back onto a queue. The
// repeater uses it with the minimum priority so retried units never
// starve fresh traffic.
func (c *Client) Republish(ctx context.Context, queue string, priority int, body []byte, requestID string) error {
	return c.publishRaw(ctx, queue, priority, body, requestID)
}

func (c *Client) publish(ctx context.Context, queue string, priority int, unit *models.WorkUnit, requestID string) PublishResult {
	result := PublishResult{
		Status:     PublishOK,
		Queue:      queue,
		Priority:   priority,
		XRequestID: requestID,
	}

	body, err := unit.Encode()
	if err != nil {
		result.Status = PublishError
		result.Message = err.Error()
		return result
	}

	if err := c.publishRaw(ctx, queue, priority, body, requestID); err != nil {
		c.log.WithError(err).WithField("queue", queue).Error("Failed to publish work unit")
		result.Status = PublishError
		result.Message = err.Error()
	}
	return result
}

func (c *Client) publishRaw(ctx context.Context, queue string, priority int, body []byte, requestID string) error {
	err := c.channel.PublishWithContext(ctx, ExchangeName, queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Priority:     uint8(priority),
		Timestamp:    time.Now().UTC(),
		Headers:      amqp.Table{headerRequestID: requestID},
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}
	return nil
}

// Consume delivers messages from queue one at a time with manual acks.
func (c *Client) Consume(queue string) (<-chan amqp.Delivery, error) {
	if err := c.channel.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := c.channel.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to consume from %s: %w", queue, err)
	}
	return deliveries, nil
}

// RequestIDFromDelivery reads the request id header, if present.
func RequestIDFromDelivery(d amqp.Delivery) string {
	if v, ok := d.Headers[headerRequestID].(string); ok {
		return v
	}
	return ""
}

// Closed reports a channel or connection shutdown.
func (c *Client) Closed() bool {
	return c.conn.IsClosed()
}

func (c *Client) Close() error {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
