package services

import (
	"context"
	"strings"

	"github.com/dukex/flowpilot/pkg/events"
	"github.com/dukex/flowpilot/pkg/graph"
	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/persistence"
)

// Publishing moves workflows between draft and published. Publishing is the one place where
// graph validation is enforced rather than advisory.
type Publishing struct {
	base
}

// NewPublishing creates a new workflow publishing service.
func NewPublishing(persistence persistence.Persistence, opts ...Option) *Publishing {
	return &Publishing{
		base: newBase(persistence, opts),
	}
}

// PublishWorkflow validates the workflow graph and marks it published.
func (p *Publishing) PublishWorkflow(ctx context.Context, workflowID string) (*models.Workflow, error) {
	workflow, err := p.load(ctx, "PublishWorkflow", workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.Status == models.WorkflowStatusPublished {
		return nil, ErrAlreadyPublished
	}

	if err := p.validateForPublishing(workflow); err != nil {
		return nil, err
	}

	now := p.now()

	published := workflow.Clone()
	published.Status = models.WorkflowStatusPublished
	published.PublishedAt = &now
	published.UpdatedAt = now

	if err := p.save(ctx, published); err != nil {
		return nil, err
	}

	p.publish(ctx, published.ID,
		events.NewWorkflowPublished(published.ID, published.Name, published.Version(), now))

	return published, nil
}

// UnpublishWorkflow returns a published workflow to draft so it can be edited again.
func (p *Publishing) UnpublishWorkflow(ctx context.Context, workflowID string) (*models.Workflow, error) {
	workflow, err := p.load(ctx, "UnpublishWorkflow", workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.Status != models.WorkflowStatusPublished {
		return nil, ErrNotPublished
	}

	draft := workflow.Clone()
	draft.Status = models.WorkflowStatusDraft
	draft.PublishedAt = nil
	draft.UpdatedAt = p.now()

	if err := p.save(ctx, draft); err != nil {
		return nil, err
	}

	p.publish(ctx, draft.ID, events.NewWorkflowUnpublished(draft.ID, draft.Version()))

	return draft, nil
}

// validateForPublishing ensures a workflow is ready to be published.
func (p *Publishing) validateForPublishing(workflow *models.Workflow) error {
	if strings.TrimSpace(workflow.Name) == "" {
		return ErrWorkflowNameRequired
	}

	result := graph.Validate(workflow.Graph.Nodes, workflow.Graph.Edges)
	if !result.Valid {
		return &GraphValidationError{Errors: result.Errors}
	}

	return nil
}
