package eventbus

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dukex/flowpilot/pkg/events"
)

// RegisterAuditLog logs every workflow lifecycle event delivered by sub.
func RegisterAuditLog(sub EventSubscriber, logger *slog.Logger) error {
	return errors.Join(
		sub.Handle(events.WorkflowSavedEvent, Typed(func(ctx context.Context, e *events.WorkflowSaved) error {
			logger.InfoContext(ctx, "Workflow saved",
				"workflow_id", e.WorkflowID, "version", e.Version, "is_new", e.IsNew,
				"nodes", e.NodeCount, "edges", e.EdgeCount)

			return nil
		})),
		sub.Handle(events.WorkflowPublishedEvent, Typed(func(ctx context.Context, e *events.WorkflowPublished) error {
			logger.InfoContext(ctx, "Workflow published",
				"workflow_id", e.WorkflowID, "name", e.WorkflowName, "version", e.Version)

			return nil
		})),
		sub.Handle(events.WorkflowUnpublishedEvent, Typed(func(ctx context.Context, e *events.WorkflowUnpublished) error {
			logger.InfoContext(ctx, "Workflow unpublished", "workflow_id", e.WorkflowID, "version", e.Version)

			return nil
		})),
		sub.Handle(events.WorkflowDeletedEvent, Typed(func(ctx context.Context, e *events.WorkflowDeleted) error {
			logger.InfoContext(ctx, "Workflow deleted", "workflow_id", e.WorkflowID)

			return nil
		})),
	)
}
