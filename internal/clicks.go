package internal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// ClickEvent is published on every successful redirect and consumed by the
// analytics worker.
type ClickEvent struct {
	ShortCode string    `json:"short_code"`
	Timestamp time.Time `json:"timestamp"`
	UserAgent string    `json:"user_agent"`
}

// ClickPublisher sends click events to the analytics pipeline.
type ClickPublisher interface {
	PublishClick(ctx context.Context, event ClickEvent) error
}

// AMQPClickPublisher publishes click events to a durable RabbitMQ queue.
type AMQPClickPublisher struct {
	ch    *amqp091.Channel
	queue string
}

// NewAMQPClickPublisher declares the queue and returns a publisher bound to it.
func NewAMQPClickPublisher(ch *amqp091.Channel, queue string) (*AMQPClickPublisher, error) {
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		return nil, err
	}
	return &AMQPClickPublisher{ch: ch, queue: queue}, nil
}

func (p *AMQPClickPublisher) PublishClick(ctx context.Context, event ClickEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(
		ctx,
		"", p.queue, false, false,
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}

// AggregateClicks collapses a batch of events into per-code counts for a
// single upsert pass.
func AggregateClicks(events []ClickEvent) map[string]int64 {
	counts := make(map[string]int64, len(events))
	for _, event := range events {
		counts[event.ShortCode]++
	}
	return counts
}
