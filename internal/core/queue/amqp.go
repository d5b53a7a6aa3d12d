package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AmqpBroker delivers tasks over a durable RabbitMQ queue with manual acks.
// Failed tasks are republished with an incremented attempt counter; tasks
// that exhaust their attempts, or fail permanently, land on a companion
// "<queue>.dead" queue for inspection.
type AmqpBroker struct {
	conn        *amqp.Connection
	channel     *amqp.Channel
	queueName   string
	maxAttempts int
}

var _ Broker = (*AmqpBroker)(nil)

func NewAmqpBroker(url, queueName string, maxAttempts int) (*AmqpBroker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	for _, name := range []string{queueName, queueName + ".dead"} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("declare queue %s: %w", name, err)
		}
	}

	// One unacked task per worker connection keeps slow documents from
	// starving the rest of the queue.
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &AmqpBroker{
		conn:        conn,
		channel:     ch,
		queueName:   queueName,
		maxAttempts: maxAttempts,
	}, nil
}

func (b *AmqpBroker) Close() error {
	b.channel.Close()
	return b.conn.Close()
}

func (b *AmqpBroker) Publish(ctx context.Context, task Task) error {
	return b.publishTo(ctx, b.queueName, task)
}

func (b *AmqpBroker) publishTo(ctx context.Context, queueName string, task Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return b.channel.PublishWithContext(ctx, "", queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

func (b *AmqpBroker) Consume(ctx context.Context, handler Handler) error {
	deliveries, err := b.channel.Consume(b.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", b.queueName, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			b.handleDelivery(ctx, d, handler)
		}
	}
}

func (b *AmqpBroker) handleDelivery(ctx context.Context, d amqp.Delivery, handler Handler) {
	var task Task
	if err := json.Unmarshal(d.Body, &task); err != nil {
		slog.Error("dropping malformed task", "error", err)
		d.Reject(false)
		return
	}

	err := handler(ctx, task)
	if err == nil {
		d.Ack(false)
		return
	}

	task.Attempt++
	if IsPermanent(err) || task.Attempt >= b.maxAttempts {
		slog.Error("dead-lettering task",
			"document_id", task.DocumentID, "attempt", task.Attempt, "error", err)
		if pubErr := b.publishTo(ctx, b.queueName+".dead", task); pubErr != nil {
			slog.Error("failed to dead-letter task",
				"document_id", task.DocumentID, "error", pubErr)
		}
		d.Ack(false)
		return
	}

	slog.Warn("requeueing failed task",
		"document_id", task.DocumentID, "attempt", task.Attempt, "error", err)
	if pubErr := b.publishTo(ctx, b.queueName, task); pubErr != nil {
		slog.Error("failed to requeue task, leaving for redelivery",
			"document_id", task.DocumentID, "error", pubErr)
		d.Reject(true)
		return
	}
	d.Ack(false)
}
