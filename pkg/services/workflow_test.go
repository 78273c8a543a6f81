package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/dukex/flowpilot/pkg/eventbus"
	"github.com/dukex/flowpilot/pkg/events"
	"github.com/dukex/flowpilot/pkg/exchange"
	"github.com/dukex/flowpilot/pkg/graph"
	"github.com/dukex/flowpilot/pkg/mocks"
	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/persistence"
	"github.com/dukex/flowpilot/pkg/persistence/file"
	"github.com/dukex/flowpilot/pkg/registry"
	"github.com/dukex/flowpilot/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newFactory() *graph.Factory {
	return graph.NewFactory(registry.NewDefaultRegistry(slog.Default()))
}

func newTestWorkflowService(t *testing.T, opts ...Option) (*Workflow, *file.Persistence) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())

	return NewWorkflow(p, newFactory(), opts...), p
}

func TestNewWorkflow(t *testing.T) {
	p := file.NewPersistence(t.TempDir())
	service := NewWorkflow(p, newFactory())

	assert.NotNil(t, service)
	assert.Equal(t, p, service.persistence)

	message, healthy := service.HealthCheck(t.Context())
	assert.True(t, healthy)
	assert.Equal(t, "Persistence layer is healthy", message)
}

func TestWorkflow_Create(t *testing.T) {
	service, p := newTestWorkflowService(t)

	created, err := service.Create(t.Context(), CreateWorkflowRequest{
		Name:        "  Checkout flow ",
		Description: "Buys the thing",
		Owner:       "user-1",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.False(t, models.IsTemporaryID(created.ID))
	assert.Equal(t, "Checkout flow", created.Name)
	assert.Equal(t, models.WorkflowStatusDraft, created.Status)
	assert.Equal(t, 1, created.Version())
	require.Len(t, created.Graph.Nodes, 1)
	assert.Equal(t, models.NodeTypeTrigger, created.Graph.Nodes[0].Type)
	assert.Equal(t, graph.DefaultTriggerPosition, created.Graph.Nodes[0].Position)

	stored, err := p.WorkflowRepository().GetByID(t.Context(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Buys the thing", stored.Description)
}

func TestWorkflow_Create_WithGraph(t *testing.T) {
	service, _ := newTestWorkflowService(t)
	g := testutil.CreateTestGraph()
	g.Version = 9

	created, err := service.Create(t.Context(), CreateWorkflowRequest{Name: "From graph", Graph: g})
	require.NoError(t, err)

	assert.Len(t, created.Graph.Nodes, 3)
	assert.Equal(t, 1, created.Version())
	assert.Equal(t, 9, g.Version, "caller graph untouched")
}

func TestWorkflow_Create_RequiresName(t *testing.T) {
	service, _ := newTestWorkflowService(t)

	_, err := service.Create(t.Context(), CreateWorkflowRequest{Name: "   "})
	require.ErrorIs(t, err, ErrWorkflowNameRequired)
	assert.True(t, IsValidationError(err))
}

func TestWorkflow_FetchByID(t *testing.T) {
	service, p := newTestWorkflowService(t)

	workflow := testutil.CreateTestWorkflow()
	require.NoError(t, p.WorkflowRepository().Save(t.Context(), workflow))

	fetched, err := service.FetchByID(t.Context(), workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.ID, fetched.ID)
	assert.Len(t, fetched.Graph.Nodes, 3)

	_, err = service.FetchByID(t.Context(), "missing")
	require.ErrorIs(t, err, ErrWorkflowNotFound)
	assert.True(t, IsNotFoundError(err))
}

func TestWorkflow_FetchByID_TemporaryIDSkipsStorage(t *testing.T) {
	p := mocks.NewMockPersistence()
	service := NewWorkflow(p, newFactory())

	for _, id := range []string{"", models.NewTemporaryID()} {
		_, err := service.FetchByID(t.Context(), id)
		require.ErrorIs(t, err, ErrTemporaryWorkflow)
		assert.True(t, IsValidationError(err))
	}

	p.Workflows.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestWorkflow_LoadGraph(t *testing.T) {
	service, p := newTestWorkflowService(t)

	workflow := testutil.CreateTestWorkflow(testutil.WithGraph(nil))
	require.NoError(t, p.WorkflowRepository().Save(t.Context(), workflow))

	g, err := service.LoadGraph(t.Context(), workflow.ID)
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Empty(t, g.Nodes)
}

func TestWorkflow_SaveGraph_TemporaryIDCreates(t *testing.T) {
	service, p := newTestWorkflowService(t)
	tempID := models.NewTemporaryID()

	result, err := service.SaveGraph(t.Context(), tempID, testutil.CreateTestGraph(), SaveMetadata{Owner: "user-1"})
	require.NoError(t, err)

	assert.True(t, result.IsNew)
	assert.Equal(t, 1, result.Version)
	assert.NotEqual(t, tempID, result.ID)
	assert.False(t, models.IsTemporaryID(result.ID))

	stored, err := p.WorkflowRepository().GetByID(t.Context(), result.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, DefaultWorkflowName, stored.Name)
	assert.Equal(t, "user-1", stored.Owner)
	assert.Equal(t, models.WorkflowStatusDraft, stored.Status)
}

func TestWorkflow_SaveGraph_UnknownIDCreates(t *testing.T) {
	service, _ := newTestWorkflowService(t)

	result, err := service.SaveGraph(t.Context(), "wf-external", testutil.CreateTestGraph(), SaveMetadata{Name: "External"})
	require.NoError(t, err)

	assert.Equal(t, "wf-external", result.ID)
	assert.True(t, result.IsNew)
	assert.Equal(t, 1, result.Version)
}

func TestWorkflow_SaveGraph_IncrementsVersion(t *testing.T) {
	service, _ := newTestWorkflowService(t)

	created, err := service.Create(t.Context(), CreateWorkflowRequest{Name: "Versions"})
	require.NoError(t, err)

	g := testutil.CreateTestGraph()
	g.Version = 1

	first, err := service.SaveGraph(t.Context(), created.ID, g, SaveMetadata{})
	require.NoError(t, err)
	assert.False(t, first.IsNew)
	assert.Equal(t, 2, first.Version)

	second, err := service.SaveGraph(t.Context(), created.ID, g, SaveMetadata{Name: "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, 3, second.Version)
	assert.Equal(t, 1, g.Version, "caller graph untouched")

	fetched, err := service.FetchByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, fetched.Version())
	assert.Equal(t, "Renamed", fetched.Name)
	assert.Len(t, fetched.Graph.Nodes, 3)
}

func TestWorkflow_SaveGraph_RejectsPublished(t *testing.T) {
	service, p := newTestWorkflowService(t)

	workflow := testutil.CreateTestWorkflow(testutil.WithStatus(models.WorkflowStatusPublished))
	require.NoError(t, p.WorkflowRepository().Save(t.Context(), workflow))

	_, err := service.SaveGraph(t.Context(), workflow.ID, testutil.CreateTestGraph(), SaveMetadata{})
	require.ErrorIs(t, err, ErrCannotModifyPublished)
	assert.True(t, IsConflictError(err))
}

func TestWorkflow_SaveGraph_RequiresGraph(t *testing.T) {
	service, _ := newTestWorkflowService(t)

	_, err := service.SaveGraph(t.Context(), "wf-1", nil, SaveMetadata{})
	assert.ErrorIs(t, err, ErrGraphRequired)
}

func TestWorkflow_SaveGraph_RejectsMalformedGraph(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(g *models.WorkflowGraph)
		field  string
	}{
		{
			name:   "null node",
			mutate: func(g *models.WorkflowGraph) { g.Nodes = append(g.Nodes, nil) },
			field:  "nodes.3",
		},
		{
			name:   "null edge",
			mutate: func(g *models.WorkflowGraph) { g.Edges = append(g.Edges, nil) },
			field:  "edges.2",
		},
		{
			name: "self loop",
			mutate: func(g *models.WorkflowGraph) {
				g.Edges = append(g.Edges, &models.GraphEdge{ID: "loop", Source: "click-1", Target: "click-1"})
			},
			field: "edges.2.target",
		},
		{
			name: "unknown target",
			mutate: func(g *models.WorkflowGraph) {
				g.Edges = append(g.Edges, &models.GraphEdge{ID: "dangling", Source: "click-1", Target: "ghost"})
			},
			field: "edges.2.target",
		},
		{
			name: "duplicate node id",
			mutate: func(g *models.WorkflowGraph) {
				g.Nodes = append(g.Nodes, testutil.CreateTestNode(models.NodeTypeWait, testutil.WithNodeID("click-1")))
			},
			field: "nodes.3.id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mocks.NewMockPersistence()
			service := NewWorkflow(p, newFactory())

			g := testutil.CreateTestGraph()
			tt.mutate(g)

			_, err := service.SaveGraph(t.Context(), "wf-1", g, SaveMetadata{})
			require.ErrorIs(t, err, graph.ErrMalformedGraph)
			assert.True(t, IsValidationError(err))

			var structErr *graph.StructureError
			require.ErrorAs(t, err, &structErr)
			require.Len(t, structErr.Defects, 1)
			assert.Equal(t, tt.field, structErr.Defects[0].Field)

			_, err = service.Create(t.Context(), CreateWorkflowRequest{Name: "Broken", Graph: g})
			require.ErrorIs(t, err, graph.ErrMalformedGraph)

			p.Workflows.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
			p.Workflows.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		})
	}
}

func TestWorkflow_SaveGraph_FailureLeavesGraphUntouched(t *testing.T) {
	p := mocks.NewMockPersistence()
	bus := &mocks.MockEventBus{}
	service := NewWorkflow(p, newFactory(), WithEventPublisher(bus))

	existing := testutil.CreateTestWorkflow()
	existing.Graph.Version = 4

	p.Workflows.On("GetByID", mock.Anything, existing.ID).Return(existing, nil)
	p.Workflows.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	g := testutil.CreateTestGraph()
	g.Version = 4

	_, err := service.SaveGraph(t.Context(), existing.ID, g, SaveMetadata{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	assert.Equal(t, 4, g.Version)
	assert.Equal(t, 4, existing.Version())
	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestWorkflow_SaveGraph_PublishesEvent(t *testing.T) {
	bus := &mocks.MockEventBus{}
	service, _ := newTestWorkflowService(t, WithEventPublisher(bus))

	bus.On("Publish", mock.Anything, mock.Anything, mock.MatchedBy(func(e eventbus.Event) bool {
		saved, ok := e.(events.WorkflowSaved)

		return ok && saved.IsNew && saved.Version == 1 && saved.NodeCount == 3 && saved.EdgeCount == 2
	})).Return(nil).Once()

	_, err := service.SaveGraph(t.Context(), models.NewTemporaryID(), testutil.CreateTestGraph(), SaveMetadata{})
	require.NoError(t, err)

	bus.AssertExpectations(t)
}

func TestWorkflow_SaveGraph_EventFailureDoesNotFailSave(t *testing.T) {
	bus := &mocks.MockEventBus{}
	service, _ := newTestWorkflowService(t, WithEventPublisher(bus))

	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	result, err := service.SaveGraph(t.Context(), models.NewTemporaryID(), testutil.CreateTestGraph(), SaveMetadata{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Version)
	assert.Equal(t, []events.EventType{events.WorkflowSavedEvent}, bus.PublishedTypes())
}

func TestWorkflow_UpdateMetadata(t *testing.T) {
	service, p := newTestWorkflowService(t)

	workflow := testutil.CreateTestWorkflow()
	require.NoError(t, p.WorkflowRepository().Save(t.Context(), workflow))

	name := "New name"
	description := ""

	updated, err := service.UpdateMetadata(t.Context(), workflow.ID, UpdateMetadataRequest{Name: &name, Description: &description})
	require.NoError(t, err)
	assert.Equal(t, "New name", updated.Name)
	assert.Empty(t, updated.Description)
	assert.Equal(t, workflow.Version(), updated.Version())

	blank := " "
	_, err = service.UpdateMetadata(t.Context(), workflow.ID, UpdateMetadataRequest{Name: &blank})
	assert.ErrorIs(t, err, ErrWorkflowNameRequired)
}

func TestWorkflow_ListWorkflows(t *testing.T) {
	service, p := newTestWorkflowService(t)

	for _, name := range []string{"Alpha", "Bravo", "Charlie"} {
		require.NoError(t, p.WorkflowRepository().Save(t.Context(), testutil.CreateTestWorkflow(testutil.WithWorkflowName(name))))
	}

	published := models.WorkflowStatusPublished
	invalidStatus := models.WorkflowStatus("archived")

	tests := []struct {
		name      string
		req       ListWorkflowsRequest
		wantErr   error
		wantCount int
		wantNext  bool
	}{
		{name: "defaults", req: ListWorkflowsRequest{}, wantCount: 3},
		{name: "paginated", req: ListWorkflowsRequest{Limit: 2, SortBy: "name", SortOrder: "asc"}, wantCount: 2, wantNext: true},
		{name: "status filter", req: ListWorkflowsRequest{Status: &published}, wantCount: 0},
		{name: "invalid sort field", req: ListWorkflowsRequest{SortBy: "owner"}, wantErr: ErrInvalidSortField},
		{name: "invalid sort order", req: ListWorkflowsRequest{SortOrder: "up"}, wantErr: ErrInvalidSortOrder},
		{name: "invalid status", req: ListWorkflowsRequest{Status: &invalidStatus}, wantErr: ErrInvalidStatus},
		{name: "blank owner", req: ListWorkflowsRequest{OwnerID: "  "}, wantErr: ErrEmptyOwnerID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := service.ListWorkflows(t.Context(), tt.req)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.True(t, IsValidationError(err))

				return
			}

			require.NoError(t, err)
			assert.Len(t, resp.Workflows, tt.wantCount)
			assert.Equal(t, tt.wantNext, resp.HasNextPage)
		})
	}
}

func TestWorkflow_Delete(t *testing.T) {
	bus := &mocks.MockEventBus{}
	service, p := newTestWorkflowService(t, WithEventPublisher(bus))

	workflow := testutil.CreateTestWorkflow()
	require.NoError(t, p.WorkflowRepository().Save(t.Context(), workflow))

	bus.OnPublish(workflow.ID, events.WorkflowDeletedEvent).Return(nil).Once()

	require.NoError(t, service.Delete(t.Context(), workflow.ID))

	_, err := service.FetchByID(t.Context(), workflow.ID)
	require.ErrorIs(t, err, ErrWorkflowNotFound)

	err = service.Delete(t.Context(), workflow.ID)
	require.ErrorIs(t, err, ErrWorkflowNotFound)

	bus.AssertExpectations(t)
}

func TestWorkflow_ValidateWorkflow(t *testing.T) {
	service, p := newTestWorkflowService(t)

	valid := testutil.CreateTestWorkflow()
	require.NoError(t, p.WorkflowRepository().Save(t.Context(), valid))

	result, err := service.ValidateWorkflow(t.Context(), valid.ID)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)

	g := testutil.CreateTestGraph()
	g.Nodes = g.Nodes[1:]
	g.Edges = g.Edges[1:]

	invalid := testutil.CreateTestWorkflow(testutil.WithGraph(g))
	require.NoError(t, p.WorkflowRepository().Save(t.Context(), invalid))

	result, err = service.ValidateWorkflow(t.Context(), invalid.ID)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, graph.MsgMissingTrigger)
}

func TestWorkflow_ExportImport(t *testing.T) {
	service, p := newTestWorkflowService(t)

	workflow := testutil.CreateTestWorkflow()
	require.NoError(t, p.WorkflowRepository().Save(t.Context(), workflow))

	filename, body, err := service.Export(t.Context(), workflow.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filename, "workflow-"+workflow.ID+"-"))
	assert.True(t, strings.HasSuffix(filename, ".json"))

	result, err := service.Import(t.Context(), body, SaveMetadata{Name: "Imported"})
	require.NoError(t, err)
	assert.True(t, result.IsNew)
	assert.NotEqual(t, workflow.ID, result.ID)

	imported, err := service.FetchByID(t.Context(), result.ID)
	require.NoError(t, err)
	assert.Equal(t, "Imported", imported.Name)
	require.Len(t, imported.Graph.Nodes, 3)

	for i, node := range workflow.Graph.Nodes {
		assert.Equal(t, node.ID, imported.Graph.Nodes[i].ID)
		assert.Equal(t, node.Type, imported.Graph.Nodes[i].Type)
		assert.Equal(t, node.Position, imported.Graph.Nodes[i].Position)
	}
}

func TestWorkflow_Import_Rejected(t *testing.T) {
	service, p := newTestWorkflowService(t)

	_, err := service.Import(t.Context(), []byte(`{"nodes": "not-an-array", "edges": []}`), SaveMetadata{})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	var importErr *exchange.ImportError
	require.ErrorAs(t, err, &importErr)
	assert.Equal(t, "nodes", importErr.Fields[0].Field)

	list, err := p.WorkflowRepository().ListWorkflows(context.Background(), persistence.ListWorkflowsOptions{})
	require.NoError(t, err)
	assert.Zero(t, list.TotalCount, "nothing persisted")
}
