package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/flowpilot/pkg/events"
)

// WatermillEventBus carries events over any watermill publisher/subscriber pair on a single
// topic. The event type travels in the message metadata.
type WatermillEventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *slog.Logger

	mu       sync.RWMutex
	handlers map[events.EventType]EventHandler
	wg       sync.WaitGroup
}

type Option func(*WatermillEventBus)

func WithLogger(logger *slog.Logger) Option {
	return func(eb *WatermillEventBus) {
		eb.logger = logger
	}
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber, opts ...Option) *WatermillEventBus {
	eb := &WatermillEventBus{
		publisher:  pub,
		subscriber: sub,
		logger:     slog.Default(),
		handlers:   make(map[events.EventType]EventHandler),
	}

	for _, opt := range opts {
		opt(eb)
	}

	return eb
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	if v, ok := event.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidEvent, event.GetType(), err)
		}
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", event.GetType(), err)
	}

	id := eb.GenerateID()
	if identified, ok := event.(interface{ GetID() string }); ok && identified.GetID() != "" {
		id = identified.GetID()
	}

	msg := message.NewMessage(id, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.Topic, msg)
}

// newEvent returns a pointer to the concrete event for eventType, or false for unknown types.
func newEvent(eventType events.EventType) (any, bool) {
	switch eventType {
	case events.WorkflowSavedEvent:
		return &events.WorkflowSaved{}, true
	case events.WorkflowPublishedEvent:
		return &events.WorkflowPublished{}, true
	case events.WorkflowUnpublishedEvent:
		return &events.WorkflowUnpublished{}, true
	case events.WorkflowDeletedEvent:
		return &events.WorkflowDeleted{}, true
	default:
		return nil, false
	}
}

// Subscribe starts delivering messages to the registered handlers until ctx is done or the bus
// is closed.
func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", events.Topic, err)
	}

	eb.wg.Add(1)

	go func() {
		defer eb.wg.Done()

		for msg := range messages {
			if eb.dispatch(ctx, msg) {
				msg.Ack()
			} else {
				msg.Nack()
			}
		}
	}()

	return nil
}

// dispatch reports whether msg can be acknowledged. Messages nobody handles are acknowledged.
func (eb *WatermillEventBus) dispatch(ctx context.Context, msg *message.Message) bool {
	eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))
	logger := eb.logger.With("event_type", eventType, "message_id", msg.UUID)

	eb.mu.RLock()
	handler, ok := eb.handlers[eventType]
	eb.mu.RUnlock()

	if !ok {
		return true
	}

	event, known := newEvent(eventType)
	if !known {
		logger.WarnContext(ctx, "Dropping event of unknown type")

		return false
	}

	if err := json.Unmarshal(msg.Payload, event); err != nil {
		logger.ErrorContext(ctx, "Failed to decode event", "error", err)

		return false
	}

	if err := handler(msg.Context(), event); err != nil {
		logger.ErrorContext(ctx, "Event handler failed", "error", err)

		return false
	}

	return true
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	if _, known := newEvent(eventType); !known {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, eventType)
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers[eventType] = handler

	return nil
}

// Close shuts the publisher and subscriber down and waits for in-flight deliveries.
func (eb *WatermillEventBus) Close() error {
	if err := eb.publisher.Close(); err != nil {
		return err
	}

	err := eb.subscriber.Close()

	eb.wg.Wait()

	return err
}
