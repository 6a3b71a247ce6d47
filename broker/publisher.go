package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/models"
)

const (
	ExchangeName = "participations"
	ExchangeKind = "topic"

	publishTimeout = 5 * time.Second
)

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher emits participation changes to a RabbitMQ topic exchange.
type Publisher struct {
	conn    *amqp.Connection
	channel channel
	mu      sync.Mutex
	logger  *slog.Logger
}

func NewPublisher(url string, logger *slog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(ExchangeName, ExchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
	}

	return &Publisher{conn: conn, channel: ch, logger: logger}, nil
}

// RoutingKey maps a change type to its topic, e.g. participation.application_approved.
func RoutingKey(t models.ChangeType) string {
	return "participation." + strings.ToLower(string(t))
}

func (p *Publisher) Notify(ctx context.Context, change models.ParticipationChange) error {
	body, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal participation change: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	key := RoutingKey(change.Type)
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    change.OccurredAt,
		Type:         string(change.Type),
		Body:         body,
	}

	// amqp channels are not safe for concurrent publishing.
	p.mu.Lock()
	err = p.channel.PublishWithContext(ctx, ExchangeName, key, false, false, msg)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}

	p.logger.Debug("participation change published", "exchange", ExchangeName, "routing_key", key, "message_id", msg.MessageId)
	return nil
}

func (p *Publisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
