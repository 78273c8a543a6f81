package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/persistence"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const selectWorkflow = `
	SELECT
		id
	  , name
	  , description
	  , status
	  , owner
	  , graph
	  , version
	  , created_at
	  , updated_at
	  , published_at
	FROM workflows
`

type scanner interface {
	Scan(dest ...any) error
}

// buildListQuery returns the filtered, sorted and paginated list query with its arguments.
func (r *WorkflowRepository) buildListQuery(opts persistence.ListWorkflowsOptions) (string, []any, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return "", nil, err
	}

	conditions := []string{"deleted_at IS NULL"}
	args := make([]any, 0, 4)

	if opts.OwnerID != "" {
		args = append(args, opts.OwnerID)
		conditions = append(conditions, fmt.Sprintf("owner = $%d", len(args)))
	}

	if opts.Status != nil {
		args = append(args, string(*opts.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	args = append(args, opts.Limit+1, opts.Offset)

	// SortBy and SortOrder come from the allowlist in Normalize.
	query := fmt.Sprintf("%s WHERE %s ORDER BY %s %s, id LIMIT $%d OFFSET $%d",
		selectWorkflow,
		strings.Join(conditions, " AND "),
		opts.SortBy,
		strings.ToUpper(opts.SortOrder),
		len(args)-1,
		len(args),
	)

	return query, args, nil
}

func (r *WorkflowRepository) buildCountQuery(opts persistence.ListWorkflowsOptions) (string, []any) {
	conditions := []string{"deleted_at IS NULL"}
	args := make([]any, 0, 2)

	if opts.OwnerID != "" {
		args = append(args, opts.OwnerID)
		conditions = append(conditions, fmt.Sprintf("owner = $%d", len(args)))
	}

	if opts.Status != nil {
		args = append(args, string(*opts.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	return "SELECT COUNT(*) FROM workflows WHERE " + strings.Join(conditions, " AND "), args
}

// ListWorkflows returns paginated and filtered workflows.
func (r *WorkflowRepository) ListWorkflows(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	query, args, err := r.buildListQuery(opts)
	if err != nil {
		return nil, err
	}

	opts, _ = opts.Normalize()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0, opts.Limit)

	for rows.Next() {
		workflow, err := r.scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	hasNextPage := len(workflows) > opts.Limit
	if hasNextPage {
		workflows = workflows[:opts.Limit]
	}

	countQuery, countArgs := r.buildCountQuery(opts)

	var total int64

	err = r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count workflows: %w", err)
	}

	return &persistence.WorkflowListResult{
		Workflows:   workflows,
		TotalCount:  total,
		HasNextPage: hasNextPage,
	}, nil
}

// GetByID returns the workflow, or nil when it does not exist.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	row := r.db.QueryRowContext(ctx, selectWorkflow+" WHERE id = $1 AND deleted_at IS NULL", id)

	workflow, err := r.scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

// Save upserts a workflow. A previously deleted workflow with the same id is restored.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	if models.IsTemporaryID(workflow.ID) {
		return persistence.NewWorkflowError("Save", workflow.ID, persistence.ErrInvalidWorkflowID)
	}

	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	graph := workflow.Graph
	if graph == nil {
		graph = models.NewWorkflowGraph()
	}

	graphJSON, err := json.Marshal(graph)
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}

	query := `
		INSERT INTO workflows (id, name, description, status, owner, graph, version,
			created_at, updated_at, published_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULL)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			owner = EXCLUDED.owner,
			graph = EXCLUDED.graph,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at,
			published_at = EXCLUDED.published_at,
			deleted_at = NULL
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.Name,
		workflow.Description,
		string(workflow.Status),
		workflow.Owner,
		graphJSON,
		graph.Version,
		workflow.CreatedAt,
		workflow.UpdatedAt,
		workflow.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	return nil
}

// Delete soft deletes a workflow by setting deleted_at timestamp.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	query := `UPDATE workflows SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return nil
}

func (r *WorkflowRepository) scanWorkflow(row scanner) (*models.Workflow, error) {
	var (
		workflow    models.Workflow
		status      string
		owner       sql.NullString
		graphJSON   []byte
		version     int
		publishedAt sql.NullTime
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Description,
		&status,
		&owner,
		&graphJSON,
		&version,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
		&publishedAt,
	)
	if err != nil {
		return nil, err
	}

	workflow.Status = models.WorkflowStatus(status)
	workflow.Owner = owner.String

	if publishedAt.Valid {
		t := publishedAt.Time.UTC()
		workflow.PublishedAt = &t
	}

	workflow.Graph = models.NewWorkflowGraph()
	if len(graphJSON) > 0 {
		if err := json.Unmarshal(graphJSON, workflow.Graph); err != nil {
			return nil, fmt.Errorf("failed to unmarshal graph of workflow %s: %w", workflow.ID, err)
		}
	}

	workflow.Graph.Version = version

	return &workflow, nil
}
