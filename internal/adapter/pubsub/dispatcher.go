package pubsub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sony/gobreaker"
	"github.com/webitel/pricing-sync-service/internal/domain/model"
)

// EventDispatcher defines the high-level contract for outgoing events.
// This allows the exporter to stay agnostic of the transport implementation.
type EventDispatcher interface {
	Publish(ctx context.Context, ev model.OutboundEventer) error
}

// eventDispatcher is the concrete implementation (private).
type eventDispatcher struct {
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker
}

// NewEventDispatcher wraps pub with a circuit breaker so a dead broker costs
// one fast failure per event instead of a full publish timeout.
func NewEventDispatcher(pub message.Publisher, logger *slog.Logger) EventDispatcher {
	return &eventDispatcher{
		publisher: pub,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "event-export",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("EXPORT_BREAKER_STATE_CHANGED",
					"breaker", name,
					"from", from.String(),
					"to", to.String(),
				)
			},
		}),
	}
}

func (d *eventDispatcher) Publish(ctx context.Context, ev model.OutboundEventer) error {
	if ev == nil {
		return errors.New("event dispatcher: cannot publish nil event")
	}

	topic := ev.GetRoutingKey()
	if topic == "" {
		return nil
	}

	payload, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("event dispatcher: marshal failure: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if _, err := d.breaker.Execute(func() (interface{}, error) {
		return nil, d.publisher.Publish(topic, msg)
	}); err != nil {
		return fmt.Errorf("event dispatcher: failed to publish to topic %s: %w", topic, err)
	}

	return nil
}
