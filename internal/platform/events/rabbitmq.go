package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher publishes JSON events to a durable topic exchange.
type RabbitPublisher struct {
	conn     *amqp.Connection
	mu       sync.Mutex // amqp channels are not safe for concurrent publishing
	ch       channel
	exchange string
	logger   zerolog.Logger
}

func NewRabbitPublisher(url, exchange string, logger zerolog.Logger) (*RabbitPublisher, error) {
	logger = logger.With().Str("component", "rabbitmq").Str("exchange", exchange).Logger()

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	p, err := newRabbitPublisher(ch, exchange, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	logger.Info().Msg("rabbitmq publisher connected")
	return p, nil
}

func newRabbitPublisher(ch channel, exchange string, logger zerolog.Logger) (*RabbitPublisher, error) {
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &RabbitPublisher{ch: ch, exchange: exchange, logger: logger}, nil
}

func (p *RabbitPublisher) PublishAppointmentBooked(ctx context.Context, e AppointmentBooked) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.AppointmentID.String(),
		Timestamp:    time.Now().UTC(),
		Type:         RoutingKeyAppointmentBooked,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, p.exchange, RoutingKeyAppointmentBooked, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", RoutingKeyAppointmentBooked, err)
	}
	return nil
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil {
		p.logger.Warn().Err(err).Msg("rabbitmq channel close failed")
	}
	if p.conn == nil {
		return nil
	}
	if err := p.conn.Close(); err != nil {
		return fmt.Errorf("rabbitmq close: %w", err)
	}
	p.logger.Info().Msg("rabbitmq publisher closed")
	return nil
}
