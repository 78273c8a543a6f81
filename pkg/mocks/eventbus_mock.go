// Package mocks provides testify mocks for the persistence and event bus interfaces.
package mocks

import (
	"context"

	"github.com/dukex/flowpilot/pkg/eventbus"
	"github.com/dukex/flowpilot/pkg/events"
	"github.com/stretchr/testify/mock"
)

// MockEventBus is a mock implementation of eventbus.EventBus interface.
type MockEventBus struct {
	mock.Mock
}

// OnPublish expects one event of eventType keyed by workflowID. An empty workflowID matches any key.
func (m *MockEventBus) OnPublish(workflowID string, eventType events.EventType) *mock.Call {
	var key any = mock.Anything
	if workflowID != "" {
		key = workflowID
	}

	return m.On("Publish", mock.Anything, key, mock.MatchedBy(func(e eventbus.Event) bool {
		return e.GetType() == eventType
	}))
}

// PublishedTypes lists the types of every published event in call order.
func (m *MockEventBus) PublishedTypes() []events.EventType {
	var types []events.EventType

	for _, call := range m.Calls {
		if call.Method != "Publish" {
			continue
		}

		if e, ok := call.Arguments.Get(2).(eventbus.Event); ok {
			types = append(types, e.GetType())
		}
	}

	return types
}

func (m *MockEventBus) Publish(ctx context.Context, key string, event eventbus.Event) error {
	return m.Called(ctx, key, event).Error(0)
}

func (m *MockEventBus) Handle(eventType events.EventType, handler eventbus.EventHandler) error {
	return m.Called(eventType, handler).Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockEventBus) Close() error {
	return m.Called().Error(0)
}

func (m *MockEventBus) GenerateID() string {
	return m.Called().String(0)
}
