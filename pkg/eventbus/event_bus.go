// Package eventbus publishes workflow lifecycle events to interested consumers.
package eventbus

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/flowpilot/pkg/events"
)

var (
	ErrInvalidEvent    = errors.New("invalid event")
	ErrUnexpectedEvent = errors.New("unexpected event payload")
)

// Event is a workflow lifecycle event. Events implementing Validate() error are checked before
// they are published.
type Event interface {
	GetType() events.EventType
}

// EventPublisher sends events. key groups events of one workflow so brokers keep their order.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives a pointer to the decoded event. Returning an error nacks the message.
type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}

// Typed adapts a handler for one concrete event type.
func Typed[T any](fn func(ctx context.Context, event *T) error) EventHandler {
	return func(ctx context.Context, event any) error {
		typed, ok := event.(*T)
		if !ok {
			return fmt.Errorf("%w: %T", ErrUnexpectedEvent, event)
		}

		return fn(ctx, typed)
	}
}
