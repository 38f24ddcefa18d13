// Package events publishes accepted operator actions for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"matjar/backoffice/internal/domain"
)

const (
	DefaultExchange = "backoffice.actions"
	publishTimeout  = 5 * time.Second
)

type Publisher interface {
	Publish(ctx context.Context, result domain.ActionResult) error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, domain.ActionResult) error { return nil }

// RoutingKey is "<entity>.<action>", for example "order.confirm".
func RoutingKey(result domain.ActionResult) string {
	return result.Entity + "." + result.Action
}

// Encode builds the persistent JSON message for result.
func Encode(result domain.ActionResult) (amqp.Publishing, error) {
	body, err := json.Marshal(result)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    result.ActionID,
		Timestamp:    result.AppliedAt,
		Type:         RoutingKey(result),
		Body:         body,
	}, nil
}

// AMQPPublisher publishes to a durable topic exchange. The channel is shared,
// so publishes are serialized.
type AMQPPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	mu       sync.Mutex
}

func DialAMQP(url, exchange string) (*AMQPPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, result domain.ActionResult) error {
	msg, err := Encode(result)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.PublishWithContext(ctx, p.exchange, RoutingKey(result), false, false, msg)
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.Close(); err != nil {
		_ = p.conn.Close()
		return err
	}
	return p.conn.Close()
}
