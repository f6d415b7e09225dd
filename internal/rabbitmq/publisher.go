package rabbitmq

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher publishes audit events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// NewPublisher connects to RabbitMQ and declares the topic exchange.
// Any failure, including an empty URL, degrades to a disabled publisher
// so the service keeps running without audit delivery.
func NewPublisher(amqpURL, exchange string, log *zap.SugaredLogger) Publisher {
	disabled := func(reason string) Publisher {
		if log != nil {
			log.Warnw("audit publishing disabled", "reason", reason)
		}
		return &disabledPublisher{reason: reason, log: log}
	}

	if amqpURL == "" {
		return disabled("amqp url not configured")
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return disabled(err.Error())
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return disabled(err.Error())
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return disabled(err.Error())
	}

	if log != nil {
		log.Infow("audit publishing enabled", "exchange", exchange)
	}
	return &livePublisher{conn: conn, ch: ch, exchange: exchange, log: log}
}

type livePublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	log      *zap.SugaredLogger
}

func (p *livePublisher) Publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		AppId:        "messaging-service",
		Body:         body,
	})
	if err != nil && p.log != nil {
		p.log.Errorw("audit publish failed", "routing_key", routingKey, "error", err)
	}
	return err
}

func (p *livePublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// disabledPublisher drops events, logging each at debug so local runs
// can still see the audit stream.
type disabledPublisher struct {
	reason string
	log    *zap.SugaredLogger
}

func (p *disabledPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	if p.log != nil {
		p.log.Debugw("audit event dropped", "routing_key", routingKey, "reason", p.reason)
	}
	return nil
}

func (p *disabledPublisher) Close() error { return nil }

// Enabled reports whether events actually leave the process.
func Enabled(p Publisher) bool {
	_, ok := p.(*livePublisher)
	return ok
}
