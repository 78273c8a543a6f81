package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dukex/flowpilot/pkg/eventbus"
	"github.com/dukex/flowpilot/pkg/events"
	"github.com/dukex/flowpilot/pkg/exchange"
	"github.com/dukex/flowpilot/pkg/graph"
	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/otelhelper"
	"github.com/dukex/flowpilot/pkg/persistence"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultWorkflowName names workflows saved without a name.
const DefaultWorkflowName = "Untitled workflow"

// Option configures the collaborators shared by the services.
type Option func(*base)

// WithEventPublisher publishes lifecycle events after successful writes.
func WithEventPublisher(publisher eventbus.EventPublisher) Option {
	return func(b *base) {
		b.publisher = publisher
	}
}

// WithTracer records a span per persistence operation.
func WithTracer(tracer trace.Tracer) Option {
	return func(b *base) {
		if tracer != nil {
			b.tracer = tracer
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(b *base) {
		b.now = now
	}
}

type base struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
	now         func() time.Time
}

func newBase(p persistence.Persistence, opts []Option) base {
	b := base{
		persistence: p,
		tracer:      otelhelper.NoopTracer(),
		logger:      slog.Default(),
		now:         func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(&b)
	}

	return b
}

// publish emits event without failing the operation that produced it.
func (b *base) publish(ctx context.Context, workflowID string, event eventbus.Event) {
	if b.publisher == nil {
		return
	}

	err := b.publisher.Publish(ctx, workflowID, event)
	if err != nil {
		b.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(),
			"workflow_id", workflowID,
			"error", err)
	}
}

// load fetches a persisted workflow, rejecting temporary ids before storage is touched.
func (b *base) load(ctx context.Context, op, id string) (*models.Workflow, error) {
	if models.IsTemporaryID(id) {
		return nil, NewValidationError(op, "TEMPORARY_WORKFLOW",
			fmt.Sprintf("workflow '%s' has not been saved yet", id), ErrTemporaryWorkflow)
	}

	workflow, err := b.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	if workflow == nil {
		return nil, ErrWorkflowNotFound
	}

	if workflow.Graph == nil {
		workflow.Graph = models.NewWorkflowGraph()
	}

	return workflow, nil
}

func (b *base) save(ctx context.Context, workflow *models.Workflow) error {
	ctx, span := otelhelper.StartSpan(ctx, b.tracer, "workflow.save",
		append(otelhelper.GraphAttributes(workflow.Graph), attribute.String(otelhelper.WorkflowIDKey, workflow.ID))...,
	)
	defer span.End()

	err := b.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to save workflow: %w", err)
	}

	return nil
}

type Workflow struct {
	base

	factory *graph.Factory
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(persistence persistence.Persistence, factory *graph.Factory, opts ...Option) *Workflow {
	return &Workflow{
		base:    newBase(persistence, opts),
		factory: factory,
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListWorkflowsRequest contains options for listing workflows.
type ListWorkflowsRequest struct {
	// Pagination
	Limit  int
	Offset int

	// Filtering
	OwnerID string
	Status  *models.WorkflowStatus

	// Sorting
	SortBy    string
	SortOrder string
}

// ListWorkflowsResponse contains the result of listing workflows.
type ListWorkflowsResponse struct {
	Workflows   []*models.Workflow `json:"workflows"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}

// ListWorkflows retrieves workflows with filtering, sorting, and pagination.
func (w *Workflow) ListWorkflows(ctx context.Context, req ListWorkflowsRequest) (*ListWorkflowsResponse, error) {
	if err := w.validateListWorkflowsRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	opts := persistence.ListWorkflowsOptions{
		Limit:     req.Limit,
		Offset:    req.Offset,
		OwnerID:   req.OwnerID,
		Status:    req.Status,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}

	result, err := w.persistence.WorkflowRepository().ListWorkflows(ctx, opts)
	if err != nil {
		if persistence.IsInvalidSortField(err) {
			return nil, ErrInvalidSortField
		}

		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return &ListWorkflowsResponse{
		Workflows:   result.Workflows,
		TotalCount:  result.TotalCount,
		HasNextPage: result.HasNextPage,
	}, nil
}

// validateListWorkflowsRequest validates and sets defaults for the request.
func (w *Workflow) validateListWorkflowsRequest(req *ListWorkflowsRequest) error {
	if req.Limit <= 0 {
		req.Limit = persistence.DefaultListLimit
	}

	if req.Limit > persistence.MaxListLimit {
		req.Limit = persistence.MaxListLimit
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	if req.SortBy == "" {
		req.SortBy = persistence.SortByCreatedAt
	}

	if req.SortOrder == "" {
		req.SortOrder = "desc"
	}

	allowedSorts := []string{persistence.SortByCreatedAt, persistence.SortByUpdatedAt, persistence.SortByName}

	if !slices.Contains(allowedSorts, req.SortBy) {
		return NewValidationError(
			"validateListWorkflowsRequest",
			"INVALID_SORT_FIELD",
			fmt.Sprintf("invalid sort field '%s', allowed: %s", req.SortBy, strings.Join(allowedSorts, ", ")),
			ErrInvalidSortField,
		)
	}

	if req.SortOrder != "asc" && req.SortOrder != "desc" {
		return NewValidationError(
			"validateListWorkflowsRequest",
			"INVALID_SORT_ORDER",
			fmt.Sprintf("invalid sort order '%s', allowed: asc, desc", req.SortOrder),
			ErrInvalidSortOrder,
		)
	}

	if req.Status != nil {
		allowedStatuses := []models.WorkflowStatus{
			models.WorkflowStatusDraft,
			models.WorkflowStatusPublished,
		}

		if !slices.Contains(allowedStatuses, *req.Status) {
			return NewValidationError(
				"validateListWorkflowsRequest",
				"INVALID_STATUS",
				fmt.Sprintf("invalid status '%s'", *req.Status),
				ErrInvalidStatus,
			)
		}
	}

	if req.OwnerID != "" {
		req.OwnerID = strings.TrimSpace(req.OwnerID)
		if req.OwnerID == "" {
			return ErrEmptyOwnerID
		}
	}

	return nil
}

// FetchByID retrieves a workflow by its ID. Temporary ids are rejected without a storage lookup.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return w.load(ctx, "FetchByID", id)
}

// LoadGraph returns the persisted graph of a workflow.
func (w *Workflow) LoadGraph(ctx context.Context, id string) (*models.WorkflowGraph, error) {
	workflow, err := w.load(ctx, "LoadGraph", id)
	if err != nil {
		return nil, err
	}

	return workflow.Graph, nil
}

// CreateWorkflowRequest describes a new workflow. A nil Graph starts from the default graph.
type CreateWorkflowRequest struct {
	Name        string
	Description string
	Owner       string
	Graph       *models.WorkflowGraph
}

// Create persists a new draft workflow at graph version 1.
func (w *Workflow) Create(ctx context.Context, req CreateWorkflowRequest) (*models.Workflow, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrWorkflowNameRequired
	}

	var (
		g   *models.WorkflowGraph
		err error
	)

	if req.Graph != nil {
		if err := graph.CheckStructure(req.Graph); err != nil {
			return nil, err
		}

		g = req.Graph.Clone()
	} else {
		g, err = w.factory.NewDefaultGraph()
		if err != nil {
			return nil, fmt.Errorf("failed to build default graph: %w", err)
		}
	}

	g.Version = 1

	now := w.now()
	workflow := &models.Workflow{
		ID:          uuid.New().String(),
		Name:        name,
		Description: req.Description,
		Status:      models.WorkflowStatusDraft,
		Owner:       req.Owner,
		Graph:       g,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := w.save(ctx, workflow); err != nil {
		return nil, err
	}

	w.publish(ctx, workflow.ID, events.NewWorkflowSaved(workflow.ID, g.Version, true, len(g.Nodes), len(g.Edges)))

	return workflow, nil
}

// UpdateMetadataRequest changes descriptive fields. Nil fields are left untouched.
type UpdateMetadataRequest struct {
	Name        *string
	Description *string
}

// UpdateMetadata renames or re-describes a draft workflow without touching its graph.
func (w *Workflow) UpdateMetadata(ctx context.Context, id string, req UpdateMetadataRequest) (*models.Workflow, error) {
	existing, err := w.load(ctx, "UpdateMetadata", id)
	if err != nil {
		return nil, err
	}

	if existing.Status == models.WorkflowStatusPublished {
		return nil, ErrCannotModifyPublished
	}

	updated := existing.Clone()

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, ErrWorkflowNameRequired
		}

		updated.Name = name
	}

	if req.Description != nil {
		updated.Description = *req.Description
	}

	updated.UpdatedAt = w.now()

	if err := w.save(ctx, updated); err != nil {
		return nil, err
	}

	return updated, nil
}

// SaveMetadata accompanies a graph save. Empty fields keep the stored values.
type SaveMetadata struct {
	Name        string
	Description string
	Owner       string
}

// SaveResult reports where a graph was stored.
type SaveResult struct {
	ID      string `json:"id"`
	IsNew   bool   `json:"is_new"`
	Version int    `json:"version"`
}

// SaveGraph fully overwrites the graph of workflow id. A temporary or unknown id creates the
// workflow; temporary ids are replaced by a generated one. The version is incremented on every
// successful save and the caller's graph is never modified. Structurally broken graphs are
// rejected with a *graph.StructureError before anything is read or written.
func (w *Workflow) SaveGraph(ctx context.Context, id string, g *models.WorkflowGraph, meta SaveMetadata) (*SaveResult, error) {
	if g == nil {
		return nil, ErrGraphRequired
	}

	if err := graph.CheckStructure(g); err != nil {
		return nil, err
	}

	var existing *models.Workflow

	if !models.IsTemporaryID(id) {
		found, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get workflow: %w", err)
		}

		existing = found
	}

	now := w.now()

	var workflow *models.Workflow

	if existing == nil {
		if models.IsTemporaryID(id) {
			id = uuid.New().String()
		}

		workflow = &models.Workflow{
			ID:        id,
			Name:      DefaultWorkflowName,
			Status:    models.WorkflowStatusDraft,
			Owner:     meta.Owner,
			CreatedAt: now,
		}
	} else {
		if existing.Status == models.WorkflowStatusPublished {
			return nil, ErrCannotModifyPublished
		}

		workflow = existing.Clone()
	}

	if name := strings.TrimSpace(meta.Name); name != "" {
		workflow.Name = name
	}

	if meta.Description != "" {
		workflow.Description = meta.Description
	}

	version := 1
	if existing != nil {
		version = existing.Version() + 1
	}

	workflow.Graph = g.Clone()
	workflow.Graph.Version = version
	workflow.UpdatedAt = now

	if err := w.save(ctx, workflow); err != nil {
		w.logger.ErrorContext(ctx, "Failed to save workflow graph", "workflow_id", workflow.ID, "error", err)

		return nil, err
	}

	isNew := existing == nil

	w.publish(ctx, workflow.ID, events.NewWorkflowSaved(workflow.ID, version, isNew, len(g.Nodes), len(g.Edges)))

	return &SaveResult{ID: workflow.ID, IsNew: isNew, Version: version}, nil
}

// Delete removes a workflow by its ID.
func (w *Workflow) Delete(ctx context.Context, id string) error {
	if _, err := w.load(ctx, "Delete", id); err != nil {
		return err
	}

	err := w.persistence.WorkflowRepository().Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	w.publish(ctx, id, events.NewWorkflowDeleted(id))

	return nil
}

// ValidateWorkflow runs the graph validator against the stored graph. The result is advisory.
func (w *Workflow) ValidateWorkflow(ctx context.Context, id string) (graph.ValidationResult, error) {
	workflow, err := w.load(ctx, "ValidateWorkflow", id)
	if err != nil {
		return graph.ValidationResult{}, err
	}

	return graph.Validate(workflow.Graph.Nodes, workflow.Graph.Edges), nil
}

// Export serializes the stored graph and names the download.
func (w *Workflow) Export(ctx context.Context, id string) (string, []byte, error) {
	workflow, err := w.load(ctx, "Export", id)
	if err != nil {
		return "", nil, err
	}

	return exchange.Export(workflow.ID, workflow.Graph, w.now())
}

// Import stores an exported document as a new workflow. Malformed documents are rejected whole
// with an *exchange.ImportError.
func (w *Workflow) Import(ctx context.Context, data []byte, meta SaveMetadata) (*SaveResult, error) {
	g, err := exchange.Import(data)
	if err != nil {
		return nil, err
	}

	return w.SaveGraph(ctx, models.NewTemporaryID(), g, meta)
}
