// Package persistence provides data storage abstraction layer for workflows.
package persistence

import (
	"context"

	"github.com/dukex/flowpilot/pkg/models"
)

// Persistence is a storage backend. Implementations are constructed explicitly and closed on shutdown.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflows together with their graphs.
type WorkflowRepository interface {
	ListWorkflows(ctx context.Context, opts ListWorkflowsOptions) (*WorkflowListResult, error)
	// GetByID returns (nil, nil) when the workflow does not exist.
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	// Save inserts or fully overwrites the workflow. The last write wins.
	Save(ctx context.Context, workflow *models.Workflow) error
	// Delete removes the workflow. Deleting a missing workflow is not an error.
	Delete(ctx context.Context, id string) error
}

// Sort fields accepted by ListWorkflows.
const (
	SortByCreatedAt = "created_at"
	SortByUpdatedAt = "updated_at"
	SortByName      = "name"
)

// Default and maximum page sizes.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ListWorkflowsOptions filters, sorts and paginates ListWorkflows.
type ListWorkflowsOptions struct {
	OwnerID   string
	Status    *models.WorkflowStatus
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

// Normalize applies defaults and checks the sort parameters against the allowlist.
func (o ListWorkflowsOptions) Normalize() (ListWorkflowsOptions, error) {
	if o.Limit <= 0 || o.Limit > MaxListLimit {
		o.Limit = DefaultListLimit
	}

	if o.Offset < 0 {
		o.Offset = 0
	}

	if o.SortBy == "" {
		o.SortBy = SortByCreatedAt
	}

	if o.SortOrder == "" {
		o.SortOrder = "desc"
	}

	switch o.SortBy {
	case SortByCreatedAt, SortByUpdatedAt, SortByName:
	default:
		return o, NewSortError(o.SortBy)
	}

	if o.SortOrder != "asc" && o.SortOrder != "desc" {
		return o, NewSortError(o.SortOrder)
	}

	return o, nil
}

// WorkflowListResult is one page of workflows.
type WorkflowListResult struct {
	Workflows   []*models.Workflow `json:"workflows"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}
