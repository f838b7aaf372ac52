package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/pkg/config"
)

// Routing keys for timetable events.
const (
	TimetableGenerated = "timetable.generated"
	TimetableUpdated   = "timetable.updated"
)

// TimetableEvent is published after a timetable version is stored.
type TimetableEvent struct {
	Type       string    `json:"type"`
	GroupID    string    `json:"group_id"`
	VersionID  string    `json:"version_id"`
	Version    int       `json:"version"`
	Source     string    `json:"source"`
	Attempts   int       `json:"attempts,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher emits timetable events on a topic exchange. A nil Publisher or a
// Publisher without a channel drops events.
type Publisher struct {
	ch       Channel
	exchange string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewPublisher builds a publisher on top of an open channel.
func NewPublisher(ch Channel, exchange string, timeout time.Duration, logger *zap.Logger) *Publisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{ch: ch, exchange: exchange, timeout: timeout, logger: logger}
}

// Enabled reports whether events are actually sent.
func (p *Publisher) Enabled() bool {
	return p != nil && p.ch != nil
}

// Publish sends the event using its type as routing key.
func (p *Publisher) Publish(ctx context.Context, event TimetableEvent) error {
	if !p.Enabled() {
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.ch.PublishWithContext(ctx, p.exchange, event.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		Body:         body,
	}); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	p.logger.Debug("event published", zap.String("type", event.Type), zap.String("group_id", event.GroupID))
	return nil
}

// Dial connects to RabbitMQ and declares the durable topic exchange.
func Dial(cfg config.RabbitMQConfig) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	return conn, ch, nil
}
