// Package models defines the core domain models for the browser-automation workflow editor.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft     WorkflowStatus = "draft"     // Editable, not executable
	WorkflowStatusPublished WorkflowStatus = "published" // Validated, executable, read-only
)

// TemporaryIDPrefix marks workflows that only exist in the editor and were never persisted.
const TemporaryIDPrefix = "temp-"

// Workflow is a persisted workflow document with its graph.
type Workflow struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"                   validate:"required,min=3"`
	Description string         `json:"description"`
	Status      WorkflowStatus `json:"status"                 validate:"required,oneof=draft published"`
	Owner       string         `json:"owner"`
	Graph       *WorkflowGraph `json:"graph"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
}

// Version returns the graph version, zero when the workflow has no graph.
func (w *Workflow) Version() int {
	if w.Graph == nil {
		return 0
	}

	return w.Graph.Version
}

// Clone returns a deep copy of the workflow.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}

	c := *w
	c.Graph = w.Graph.Clone()

	if w.PublishedAt != nil {
		t := *w.PublishedAt
		c.PublishedAt = &t
	}

	return &c
}

// NewTemporaryID returns an id for a workflow that has not been saved yet.
func NewTemporaryID() string {
	return TemporaryIDPrefix + uuid.New().String()
}

// IsTemporaryID reports whether id belongs to an unsaved, editor-only workflow.
func IsTemporaryID(id string) bool {
	return id == "" || strings.HasPrefix(id, TemporaryIDPrefix)
}
