package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// confirmTimeout bounds how long a publish waits for the broker's ack.
const confirmTimeout = 5 * time.Second

var (
	ErrPublisherClosed = errors.New("rabbitmq publisher closed")
	ErrNacked          = errors.New("rabbitmq rejected the notice")
)

// RabbitPublisher publishes notices as persistent JSON messages on a topic
// exchange, routed by notice type. The channel runs in confirm mode and a
// lost connection or channel is reopened on the next publish.
type RabbitPublisher struct {
	mu       sync.Mutex
	url      string
	exchange string
	conn     *amqp.Connection
	channel  *amqp.Channel
	closed   bool
	logger   zerolog.Logger
}

// NewRabbitPublisher dials url and declares a durable topic exchange.
func NewRabbitPublisher(url, exchange string, logger zerolog.Logger) (*RabbitPublisher, error) {
	if url == "" {
		return nil, errors.New("amqp url is required")
	}
	if exchange == "" {
		return nil, errors.New("amqp exchange is required")
	}

	p := &RabbitPublisher{
		url:      url,
		exchange: exchange,
		logger:   logger.With().Str("component", "notify").Logger(),
	}
	p.mu.Lock()
	err := p.connectLocked()
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	p.logger.Info().Str("exchange", exchange).Msg("rabbitmq publisher ready")
	return p, nil
}

// connectLocked redials the connection and reopens the confirm channel as
// needed. p.mu must be held.
func (p *RabbitPublisher) connectLocked() error {
	if p.conn == nil || p.conn.IsClosed() {
		if p.conn != nil {
			p.logger.Warn().Msg("rabbitmq connection lost, redialing")
		}
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return fmt.Errorf("connect to rabbitmq: %w", err)
		}
		p.conn = conn
		p.channel = nil
	}

	if p.channel != nil && !p.channel.IsClosed() {
		return nil
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("enable publisher confirms: %w", err)
	}
	if err := ch.ExchangeDeclare(
		p.exchange,
		amqp.ExchangeTopic,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		return fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}
	p.channel = ch
	return nil
}

// Publish sends the notice and waits for the broker to confirm it.
func (p *RabbitPublisher) Publish(ctx context.Context, notice Notice) error {
	body, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPublisherClosed
	}
	if err := p.connectLocked(); err != nil {
		p.mu.Unlock()
		return err
	}
	confirmation, err := p.channel.PublishWithDeferredConfirmWithContext(
		ctx,
		p.exchange,
		notice.Type,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    notice.OccurredAt,
			Type:         notice.Type,
			Body:         body,
		},
	)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish %s: %w", notice.Type, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, confirmTimeout)
	defer cancel()
	acked, err := confirmation.WaitContext(waitCtx)
	if err != nil {
		return fmt.Errorf("await confirm for %s: %w", notice.Type, err)
	}
	if !acked {
		return fmt.Errorf("%w: %s", ErrNacked, notice.Type)
	}

	p.logger.Debug().Str("type", notice.Type).Str("resource_id", notice.ResourceID).Msg("notice published")
	return nil
}

// Healthy reports whether the broker connection is open. A dropped
// connection reports unhealthy until the next publish redials it.
func (p *RabbitPublisher) Healthy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed && p.conn != nil && !p.conn.IsClosed()
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if p.channel != nil && !p.channel.IsClosed() {
		errs = append(errs, p.channel.Close())
	}
	if p.conn != nil && !p.conn.IsClosed() {
		errs = append(errs, p.conn.Close())
	}
	p.logger.Info().Msg("rabbitmq connection closed")
	return errors.Join(errs...)
}
