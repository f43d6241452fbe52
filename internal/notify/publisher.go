// Package notify publishes order lifecycle events to RabbitMQ.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xenking/otlob/internal/domain/order"
)

const (
	publishTimeout = 5 * time.Second
	dialTimeout    = 3 * time.Second
	heartbeat      = 10 * time.Second
)

var (
	errReconnecting = errors.New("amqp reconnect in progress")
	errClosed       = errors.New("publisher closed")
)

var _ order.Notifier = (*Publisher)(nil)

// Publisher sends order events to a durable fanout exchange. The connection
// is re-established lazily when the broker drops it. One caller dials at a
// time; others fail fast until the dial finishes.
type Publisher struct {
	url         string
	exchange    string
	dialTimeout time.Duration

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	dialing bool
	closed  bool
}

// Dial connects to the broker and declares the exchange.
func Dial(url, exchange string) (*Publisher, error) {
	p := &Publisher{url: url, exchange: exchange, dialTimeout: dialTimeout}
	if _, err := p.channel(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connect() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: heartbeat,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(p.dialTimeout),
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "dial amqp")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, errors.Wrap(err, "open channel")
	}
	if err := ch.ExchangeDeclare(
		p.exchange,
		amqp.ExchangeFanout,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = conn.Close()
		return nil, nil, errors.Wrapf(err, "declare exchange %q", p.exchange)
	}
	return conn, ch, nil
}

// channel returns the open channel, dialing outside the lock when the broker
// dropped the connection.
func (p *Publisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	switch {
	case p.closed:
		p.mu.Unlock()
		return nil, errClosed
	case p.ch != nil && !p.conn.IsClosed() && !p.ch.IsClosed():
		ch := p.ch
		p.mu.Unlock()
		return ch, nil
	case p.dialing:
		p.mu.Unlock()
		return nil, errReconnecting
	}
	p.dialing = true
	_ = p.closeLocked()
	p.mu.Unlock()

	conn, ch, err := p.connect()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialing = false
	if err != nil {
		return nil, err
	}
	if p.closed {
		_ = conn.Close()
		return nil, errClosed
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

// Notify publishes a single event.
func (p *Publisher) Notify(ctx context.Context, e order.Event) error {
	ch, err := p.channel()
	if err != nil {
		return errors.Wrap(err, "reconnect")
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(ctx, p.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.OrderID + ":" + e.Action,
		Timestamp:    e.OccurredAt,
		Type:         "order." + e.Action,
		Body:         EncodeEvent(e),
	})
	if err != nil {
		return errors.Wrapf(err, "publish %s event for order %s", e.Action, e.OrderID)
	}
	return nil
}

// Check reports whether the broker is reachable, redialing a dropped
// connection. It is used as a readiness probe.
func (p *Publisher) Check(context.Context) error {
	if _, err := p.channel(); err != nil {
		return errors.Wrap(err, "amqp")
	}
	return nil
}

// Close shuts down the channel and connection. Later calls to Notify fail.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.closeLocked()
}

func (p *Publisher) closeLocked() error {
	var err error
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil && !p.conn.IsClosed() {
		err = p.conn.Close()
	}
	p.conn = nil
	return err
}

// EncodeEvent renders an event as the JSON message body.
func EncodeEvent(e order.Event) []byte {
	var w jx.Encoder
	w.ObjStart()
	w.FieldStart("orderId")
	w.Str(e.OrderID)
	w.FieldStart("action")
	w.Str(e.Action)
	w.FieldStart("status")
	w.Str(string(e.Status))
	if e.ActorID != "" {
		w.FieldStart("actorId")
		w.Str(e.ActorID)
	}
	w.FieldStart("occurredAt")
	w.Str(e.OccurredAt.UTC().Format(time.RFC3339Nano))
	w.ObjEnd()
	return w.Bytes()
}

// Discard drops every event. It stands in when no broker is configured.
type Discard struct{}

func (Discard) Notify(context.Context, order.Event) error { return nil }
