// Package events defines the workflow lifecycle events emitted by the editor backend.
package events

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every workflow lifecycle event.
const Topic = "flowpilot.workflows"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowSavedEvent       EventType = "workflow.saved"
	WorkflowPublishedEvent   EventType = "workflow.published"
	WorkflowUnpublishedEvent EventType = "workflow.unpublished"
	WorkflowDeletedEvent     EventType = "workflow.deleted"
)

var errWorkflowIDRequired = errors.New("workflow_id is required")

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func (b BaseEvent) GetID() string {
	return b.ID
}

// Validate checks the fields shared by every event.
func (b BaseEvent) Validate() error {
	if b.WorkflowID == "" {
		return errWorkflowIDRequired
	}

	return nil
}

// WorkflowSaved is emitted after a graph was persisted.
type WorkflowSaved struct {
	BaseEvent

	Version   int  `json:"version"`
	IsNew     bool `json:"is_new"`
	NodeCount int  `json:"node_count"`
	EdgeCount int  `json:"edge_count"`
}

func (WorkflowSaved) GetType() EventType {
	return WorkflowSavedEvent
}

// WorkflowPublished is emitted when a validated workflow becomes read-only.
type WorkflowPublished struct {
	BaseEvent

	WorkflowName string    `json:"workflow_name"`
	Version      int       `json:"version"`
	PublishedAt  time.Time `json:"published_at"`
}

func (WorkflowPublished) GetType() EventType {
	return WorkflowPublishedEvent
}

// Validate requires a workflow id and name.
func (w WorkflowPublished) Validate() error {
	if err := w.BaseEvent.Validate(); err != nil {
		return err
	}

	if w.WorkflowName == "" {
		return errors.New("workflow_name is required")
	}

	return nil
}

type WorkflowUnpublished struct {
	BaseEvent

	Version int `json:"version"`
}

func (WorkflowUnpublished) GetType() EventType {
	return WorkflowUnpublishedEvent
}

type WorkflowDeleted struct {
	BaseEvent
}

func (WorkflowDeleted) GetType() EventType {
	return WorkflowDeletedEvent
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}

func NewWorkflowSaved(workflowID string, version int, isNew bool, nodeCount, edgeCount int) WorkflowSaved {
	return WorkflowSaved{
		BaseEvent: NewBaseEvent(WorkflowSavedEvent, workflowID),
		Version:   version,
		IsNew:     isNew,
		NodeCount: nodeCount,
		EdgeCount: edgeCount,
	}
}

func NewWorkflowPublished(workflowID, name string, version int, publishedAt time.Time) WorkflowPublished {
	return WorkflowPublished{
		BaseEvent:    NewBaseEvent(WorkflowPublishedEvent, workflowID),
		WorkflowName: name,
		Version:      version,
		PublishedAt:  publishedAt,
	}
}

func NewWorkflowUnpublished(workflowID string, version int) WorkflowUnpublished {
	return WorkflowUnpublished{
		BaseEvent: NewBaseEvent(WorkflowUnpublishedEvent, workflowID),
		Version:   version,
	}
}

func NewWorkflowDeleted(workflowID string) WorkflowDeleted {
	return WorkflowDeleted{
		BaseEvent: NewBaseEvent(WorkflowDeletedEvent, workflowID),
	}
}
