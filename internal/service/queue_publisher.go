// Package queue_publisher provides functions to publish domain events to RabbitMQ.
// Errors are returned, not logged; the caller decides whether a failed
// publish matters and logs it once.
package queue_publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/iliyamo/seating-planner/internal/queue"
)

// defaultDialTimeout bounds the broker dial when ctx carries no deadline.
const defaultDialTimeout = 2 * time.Second

// Publisher sends audit events to the seating.audit queue.  A connection is
// opened per publish; audit traffic is low and this keeps the publisher free
// of reconnect state.
type Publisher struct {
	url string
}

// New returns a Publisher for the broker at url.
func New(url string) *Publisher {
	return &Publisher{url: url}
}

// dialTimeout derives the connect timeout from ctx's deadline.  An expired
// deadline yields a tiny positive timeout so the dial fails at once.
func dialTimeout(ctx context.Context, now time.Time) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return defaultDialTimeout
	}
	if left := deadline.Sub(now); left > 0 {
		return left
	}
	return time.Millisecond
}

// PublishAuditEvent publishes event to the "seating.audit" queue.  The dial
// and the publish both honour ctx's deadline.  Messages are marked as
// persistent.
func (p *Publisher) PublishAuditEvent(ctx context.Context, event q.AuditEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout(ctx, time.Now()))})
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		q.AuditQueueName, // name
		true,             // durable
		false,            // autoDelete
		false,            // exclusive
		false,            // noWait
		nil,              // args
	); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",               // default exchange
		q.AuditQueueName, // routing key = queue name
		false,            // mandatory
		false,            // immediate
		pub,
	); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}
