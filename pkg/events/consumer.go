package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ConsumeChannel is the subset of *amqp.Channel a consumer needs.
type ConsumeChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// EventHandler processes one decoded timetable event.
type EventHandler func(ctx context.Context, event TimetableEvent) error

// ErrDropEvent tells Consume to discard a delivery without requeueing it.
var ErrDropEvent = errors.New("drop event")

// Subscribe declares a durable queue bound to every timetable routing key of
// the exchange and returns its delivery stream.
func Subscribe(ch ConsumeChannel, exchange, queue string) (<-chan amqp.Delivery, error) {
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(q.Name, "timetable.*", exchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue %s to %s: %w", q.Name, exchange, err)
	}
	deliveries, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume queue %s: %w", q.Name, err)
	}
	return deliveries, nil
}

// Consume hands every delivery to handle until ctx is done or the stream
// closes. Undecodable messages and ErrDropEvent failures are rejected;
// other failures are requeued once and dropped on redelivery.
func Consume(ctx context.Context, deliveries <-chan amqp.Delivery, handle EventHandler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			settle(ctx, d, handle, logger)
		}
	}
}

func settle(ctx context.Context, d amqp.Delivery, handle EventHandler, logger *zap.Logger) {
	var event TimetableEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		logger.Warn("discarding undecodable event", zap.String("routing_key", d.RoutingKey), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	if event.Type == "" {
		event.Type = d.RoutingKey
	}

	err := handle(ctx, event)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, ErrDropEvent) || d.Redelivered:
		logger.Error("event handling failed, dropping", zap.String("type", event.Type), zap.String("group_id", event.GroupID), zap.Error(err))
		_ = d.Nack(false, false)
	default:
		logger.Warn("event handling failed, requeueing", zap.String("type", event.Type), zap.String("group_id", event.GroupID), zap.Error(err))
		_ = d.Nack(false, true)
	}
}
