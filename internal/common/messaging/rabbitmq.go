// Package messaging publishes harvest events to RabbitMQ.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"procurement-harvester/internal/common/config"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the part of *amqp.Channel the publisher uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends JSON messages to one topic exchange.
type Publisher struct {
	conn       *amqp.Connection
	channel    Channel
	exchange   string
	routingKey string
}

// Dial connects, opens a channel and declares the exchange.
func Dial(cfg config.RabbitMQConfig) (*Publisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	p, err := NewPublisher(ch, cfg.Exchange, cfg.RoutingKey)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// NewPublisher declares a durable topic exchange on ch.
func NewPublisher(ch Channel, exchange, routingKey string) (*Publisher, error) {
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange %q: %w", exchange, err)
	}
	return &Publisher{channel: ch, exchange: exchange, routingKey: routingKey}, nil
}

// PublishJSON marshals v and publishes it as a persistent message. suffix, when
// set, is appended to the routing key with a dot.
func (p *Publisher) PublishJSON(ctx context.Context, suffix, messageID string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	key := p.routingKey
	if suffix != "" {
		key += "." + suffix
	}

	return p.channel.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

func (p *Publisher) Close() error {
	err := p.channel.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
