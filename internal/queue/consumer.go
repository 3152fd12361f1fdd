package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// ErrMalformedEvent marks a delivery that can never be processed. It is
// rejected without requeue.
var ErrMalformedEvent = errors.New("malformed event")

// Handler processes one event. Returning an error other than
// ErrMalformedEvent requeues the delivery once.
type Handler func(ctx context.Context, event OrderEvent) error

// Consume reads the orders queue until ctx is cancelled, redialling with
// exponential backoff whenever the broker goes away.
func Consume(ctx context.Context, url string, handler Handler) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("Failed to dial broker")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, handler)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("Consume loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, handler Handler) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(20, 0, false); err != nil {
		log.Warn().Err(err).Msg("Failed to set QoS")
	}
	if _, err := ch.QueueDeclare(OrdersQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(OrdersQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	log.Info().Str("queue", OrdersQueue).Msg("Consuming order events")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			settle(d, d.Redelivered, handleDelivery(ctx, d.Body, handler))
		}
	}
}

// acknowledger is the part of amqp.Delivery settle needs.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func settle(d acknowledger, redelivered bool, err error) {
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, ErrMalformedEvent):
		log.Error().Err(err).Msg("Dropping malformed event")
		_ = d.Nack(false, false)
	default:
		log.Error().Err(err).Msg("Event handler failed")
		// One retry, then give up to avoid a hot loop.
		_ = d.Nack(false, !redelivered)
	}
}

func handleDelivery(ctx context.Context, body []byte, handler Handler) error {
	var event OrderEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.Type == "" || event.OrderID == "" {
		return fmt.Errorf("%w: missing type or order id", ErrMalformedEvent)
	}
	return handler(ctx, event)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
