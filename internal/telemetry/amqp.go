package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/HannahMarsh/onion-routing-wsn/internal/domain/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Event types published to the exchange.
const (
	EventNode       = "node"
	EventHandshake  = "handshake"
	EventSend       = "send"
	EventReceive    = "receive"
	EventAbort      = "abort"
	EventCompletion = "completion"
)

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPObserver publishes every event as JSON to a fanout exchange.
type AMQPObserver struct {
	ctx      context.Context
	ch       publisher
	exchange string
	runID    uuid.UUID
	failed   int
}

// DialAMQP connects to url and declares exchange. The returned function closes the
// channel and the connection.
func DialAMQP(ctx context.Context, url, exchange string, runID uuid.UUID) (*AMQPObserver, func(), error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, errors.Wrap(err, "telemetry.DialAMQP(): failed to connect")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, errors.Wrap(err, "telemetry.DialAMQP(): failed to open channel")
	}
	if err = ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, errors.Wrapf(err, "telemetry.DialAMQP(): failed to declare exchange %s", exchange)
	}
	closer := func() {
		if err := ch.Close(); err != nil {
			slog.Error("Failed to close AMQP channel", "err", err)
		}
		if err := conn.Close(); err != nil {
			slog.Error("Failed to close AMQP connection", "err", err)
		}
	}
	return newAMQPObserver(ctx, ch, exchange, runID), closer, nil
}

func newAMQPObserver(ctx context.Context, ch publisher, exchange string, runID uuid.UUID) *AMQPObserver {
	return &AMQPObserver{ctx: ctx, ch: ch, exchange: exchange, runID: runID}
}

// Failed returns how many events could not be published.
func (o *AMQPObserver) Failed() int {
	return o.failed
}

func (o *AMQPObserver) publish(eventType string, event any) {
	body, err := json.Marshal(event)
	if err != nil {
		o.failed++
		slog.Error("Failed to marshal event", "type", eventType, "err", err)
		return
	}
	msg := amqp.Publishing{
		ContentType: "application/json",
		MessageId:   uuid.NewString(),
		AppId:       o.runID.String(),
		Type:        eventType,
		Timestamp:   time.Now(),
		Body:        body,
	}
	if err = o.ch.PublishWithContext(o.ctx, o.exchange, "", false, false, msg); err != nil {
		o.failed++
		slog.Error("Failed to publish event", "type", eventType, "err", err)
	}
}

func (o *AMQPObserver) OnNodeDetails(node models.Node) {
	o.publish(EventNode, node)
}

func (o *AMQPObserver) OnHandshake(event models.HandshakeEvent) {
	o.publish(EventHandshake, event)
}

func (o *AMQPObserver) OnSend(event models.TransferEvent) {
	o.publish(EventSend, event)
}

func (o *AMQPObserver) OnReceive(event models.TransferEvent) {
	o.publish(EventReceive, event)
}

func (o *AMQPObserver) OnAbort(event models.AbortEvent) {
	o.publish(EventAbort, event)
}

func (o *AMQPObserver) OnComplete(event models.CompletionEvent) {
	o.publish(EventCompletion, event)
}
