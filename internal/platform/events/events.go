// Package events publishes appointment lifecycle events to a RabbitMQ topic
// exchange.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const routingKeyPrefix = "curesync."

const (
	AppointmentBooked        = "appointment.booked"
	AppointmentCancelled     = "appointment.cancelled"
	AppointmentStatusChanged = "appointment.status_changed"
	AppointmentPaymentUpdate = "appointment.payment_updated"
)

// Event is the message envelope. Payload is encoded as JSON under "data".
type Event struct {
	ID         uuid.UUID   `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"data"`
}

func NewEvent(eventType string, payload interface{}) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// RoutingKey is "curesync.<type>", e.g. curesync.appointment.booked.
func (e Event) RoutingKey() string {
	return routingKeyPrefix + e.Type
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// brokerChannel and brokerConn are the parts of amqp091 the publisher uses.
type brokerChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

type brokerConn interface {
	Channel() (brokerChannel, error)
	IsClosed() bool
	Close() error
}

type amqpConn struct{ *amqp.Connection }

func (c amqpConn) Channel() (brokerChannel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func dialAMQP(url string) (brokerConn, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return amqpConn{conn}, nil
}

// AMQPPublisher publishes persistent JSON messages on a durable topic exchange.
// A channel closed by the broker, or a dropped connection, is reopened on the
// next Publish.
type AMQPPublisher struct {
	mu       sync.Mutex
	url      string
	exchange string
	dial     func(url string) (brokerConn, error)
	conn     brokerConn
	channel  brokerChannel
}

func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	return newAMQPPublisher(url, exchange, dialAMQP)
}

func newAMQPPublisher(url, exchange string, dial func(string) (brokerConn, error)) (*AMQPPublisher, error) {
	p := &AMQPPublisher{url: url, exchange: exchange, dial: dial}
	if err := p.connect(); err != nil {
		p.closeLocked()
		return nil, err
	}
	return p, nil
}

// connect reopens the connection and channel when closed. Callers hold mu.
func (p *AMQPPublisher) connect() error {
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := p.dial(p.url)
		if err != nil {
			return fmt.Errorf("dial amqp: %w", err)
		}
		p.conn = conn
		p.channel = nil
	}
	if p.channel != nil && !p.channel.IsClosed() {
		return nil
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		return fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}
	p.channel = ch
	return nil
}

// Publish retries once on a fresh channel when the broker closed the current
// one during the call.
func (p *AMQPPublisher) Publish(ctx context.Context, evt Event) error {
	msg, err := encode(evt)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for attempt := 0; ; attempt++ {
		if err := p.connect(); err != nil {
			return fmt.Errorf("publish %s: %w", evt.Type, err)
		}
		err := p.channel.PublishWithContext(ctx, p.exchange, evt.RoutingKey(), false, false, msg)
		if err == nil {
			return nil
		}
		if attempt > 0 || !p.channel.IsClosed() {
			return fmt.Errorf("publish %s: %w", evt.Type, err)
		}
	}
}

// Ping reports whether the broker connection is still open.
func (p *AMQPPublisher) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || p.conn.IsClosed() {
		return fmt.Errorf("amqp connection closed")
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *AMQPPublisher) closeLocked() error {
	var err error
	if p.channel != nil && !p.channel.IsClosed() {
		err = p.channel.Close()
	}
	if p.conn != nil && !p.conn.IsClosed() {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	p.channel, p.conn = nil, nil
	return err
}

func encode(evt Event) (amqp.Publishing, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode %s event: %w", evt.Type, err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    evt.ID.String(),
		Timestamp:    evt.OccurredAt,
		Type:         evt.Type,
		AppId:        "curesync",
		Body:         body,
	}, nil
}
