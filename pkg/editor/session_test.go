package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/dukex/flowpilot/pkg/graph"
	"github.com/dukex/flowpilot/pkg/history"
	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/registry"
	"github.com/dukex/flowpilot/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore is a WorkflowStore that keeps graphs in a map.
type memoryStore struct {
	mu     sync.Mutex
	graphs map[string]*models.WorkflowGraph
	metas  map[string]services.SaveMetadata
	saves  int
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		graphs: make(map[string]*models.WorkflowGraph),
		metas:  make(map[string]services.SaveMetadata),
	}
}

func (m *memoryStore) SaveGraph(_ context.Context, id string, g *models.WorkflowGraph, meta services.SaveMetadata) (*services.SaveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saves++

	if m.err != nil {
		return nil, m.err
	}

	if models.IsTemporaryID(id) {
		id = "wf-" + strconv.Itoa(m.saves)
	}

	version := 1
	isNew := true

	if prev, ok := m.graphs[id]; ok {
		version = prev.Version + 1
		isNew = false
	}

	stored := g.Clone()
	stored.Version = version
	m.graphs[id] = stored
	m.metas[id] = meta

	return &services.SaveResult{ID: id, IsNew: isNew, Version: version}, nil
}

func (m *memoryStore) LoadGraph(_ context.Context, id string) (*models.WorkflowGraph, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.graphs[id]
	if !ok {
		return nil, services.ErrWorkflowNotFound
	}

	return g.Clone(), nil
}

func (m *memoryStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.saves
}

func (m *memoryStore) failWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.err = err
}

func newTestGraphTools() (*graph.Factory, *graph.ConnectionValidator) {
	reg := registry.NewDefaultRegistry(slog.Default())

	var (
		mu   sync.Mutex
		seen = make(map[models.NodeType]int)
	)

	factory := graph.NewFactory(reg, graph.WithIDGenerator(func(nodeType models.NodeType) string {
		mu.Lock()
		defer mu.Unlock()

		seen[nodeType]++

		return fmt.Sprintf("%s-%d", nodeType, seen[nodeType])
	}))

	return factory, graph.NewConnectionValidator(reg)
}

func newTestSession(t *testing.T, store *memoryStore, delay time.Duration) *Session {
	t.Helper()

	factory, connections := newTestGraphTools()

	g, err := factory.NewDefaultGraph()
	require.NoError(t, err)

	session := NewSession(models.NewTemporaryID(), g, nil, SessionConfig{
		Factory:       factory,
		Connections:   connections,
		Store:         store,
		AutosaveDelay: delay,
	})
	t.Cleanup(session.Discard)

	return session
}

func execute(t *testing.T, s *Session, cmd Command) *Result {
	t.Helper()

	res, err := s.Execute(t.Context(), cmd)
	require.NoError(t, err)

	return res
}

func nodeIDs(g *models.WorkflowGraph) []string {
	ids := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		ids = append(ids, n.ID)
	}

	return ids
}

func TestNewSession_RecordsLoadedState(t *testing.T) {
	session := newTestSession(t, newMemoryStore(), time.Hour)

	state := session.State()
	assert.Equal(t, 0, state.HistoryIndex)
	assert.False(t, state.CanUndo)
	assert.False(t, state.CanRedo)
	assert.Empty(t, state.Warnings)
	require.Len(t, state.Graph.Nodes, 1)
	assert.Equal(t, "trigger-1", state.Graph.Nodes[0].ID)
}

func TestNewSession_KeepsMatchingHistory(t *testing.T) {
	factory, connections := newTestGraphTools()
	g, err := factory.NewDefaultGraph()
	require.NoError(t, err)

	h := history.NewManager()
	h.Record(nil, nil, "Empty")
	h.Record(g.Nodes, g.Edges, "Added trigger")

	NewSession("wf-1", g, h, SessionConfig{Factory: factory, Connections: connections, Store: newMemoryStore()}).Discard()
	assert.Equal(t, 2, h.Len(), "current snapshot matches, nothing recorded")

	moved := g.Clone()
	moved.Nodes[0].Position = models.Position{X: 1, Y: 1}

	NewSession("wf-1", moved, h, SessionConfig{Factory: factory, Connections: connections, Store: newMemoryStore()}).Discard()
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, "Loaded workflow", h.Current().Description)
}

func TestSession_UndoRedo(t *testing.T) {
	session := newTestSession(t, newMemoryStore(), time.Hour)

	added := execute(t, session, AddNode{NodeType: models.NodeTypeNavigate, Position: models.Position{X: 250, Y: 150}})
	require.NotNil(t, added.Node)
	assert.Equal(t, "navigate-1", added.Node.ID)
	assert.Equal(t, 1, added.HistoryIndex)

	res := execute(t, session, AddNode{NodeType: models.NodeTypeClick})
	assert.Equal(t, []string{"trigger-1", "navigate-1", "click-1"}, nodeIDs(res.Graph))
	assert.Equal(t, 2, res.HistoryIndex)

	res = execute(t, session, Undo{})
	assert.Equal(t, []string{"trigger-1", "navigate-1"}, nodeIDs(res.Graph))
	assert.True(t, res.CanRedo)

	res = execute(t, session, Undo{})
	assert.Equal(t, []string{"trigger-1"}, nodeIDs(res.Graph))
	assert.Equal(t, 0, res.HistoryIndex)
	assert.False(t, res.CanUndo)

	res = execute(t, session, Redo{})
	assert.Equal(t, []string{"trigger-1", "navigate-1"}, nodeIDs(res.Graph))
	assert.Equal(t, "Added navigate node", res.Message)

	// A new edit drops the redo branch.
	res = execute(t, session, AddNode{NodeType: models.NodeTypeWait})
	assert.Equal(t, []string{"trigger-1", "navigate-1", "wait-1"}, nodeIDs(res.Graph))
	assert.False(t, res.CanRedo)
	assert.Equal(t, 2, res.HistoryIndex)
}

func TestSession_UndoAtBoundaryIsNoOp(t *testing.T) {
	session := newTestSession(t, newMemoryStore(), time.Hour)

	res := execute(t, session, Undo{})
	assert.True(t, res.NoOp)
	assert.Equal(t, "nothing to undo", res.Message)

	res = execute(t, session, Redo{})
	assert.True(t, res.NoOp)
	assert.Equal(t, "nothing to redo", res.Message)
}

func TestSession_Connect(t *testing.T) {
	session := newTestSession(t, newMemoryStore(), time.Hour)

	execute(t, session, AddNode{NodeType: models.NodeTypeNavigate})

	res := execute(t, session, Connect{Source: "trigger-1", Target: "navigate-1"})
	require.NotNil(t, res.Edge)
	assert.False(t, res.NoOp)
	assert.Len(t, res.Graph.Edges, 1)
	assert.Empty(t, res.Warnings)

	index := res.HistoryIndex

	res = execute(t, session, Connect{Source: "trigger-1", Target: "navigate-1"})
	assert.True(t, res.NoOp)
	assert.Equal(t, "connection already exists", res.Message)
	assert.Len(t, res.Graph.Edges, 1)
	assert.Equal(t, index, res.HistoryIndex)

	res = execute(t, session, Disconnect{EdgeID: res.Edge.ID})
	assert.Empty(t, res.Graph.Edges)
}

func TestSession_RejectedCommandsLeaveGraphUntouched(t *testing.T) {
	session := newTestSession(t, newMemoryStore(), time.Hour)

	execute(t, session, AddNode{NodeType: models.NodeTypeClick})
	before := session.State()

	tests := []struct {
		name    string
		cmd     Command
		wantErr error
	}{
		{name: "self loop", cmd: Connect{Source: "click-1", Target: "click-1"}, wantErr: graph.ErrInvalidConnection},
		{name: "into trigger", cmd: Connect{Source: "click-1", Target: "trigger-1"}, wantErr: graph.ErrInvalidConnection},
		{name: "unknown node", cmd: MoveNode{NodeID: "ghost"}, wantErr: graph.ErrNodeNotFound},
		{name: "unknown type", cmd: AddNode{NodeType: "teleport"}, wantErr: graph.ErrUnknownNodeType},
		{name: "delete trigger", cmd: DeleteNode{NodeID: "trigger-1"}, wantErr: graph.ErrTriggerRequired},
		{name: "unknown edge", cmd: Disconnect{EdgeID: "nope"}, wantErr: graph.ErrEdgeNotFound},
		{name: "bad data", cmd: UpdateNodeData{NodeID: "click-1", Data: []byte(`{"selector":42}`)}, wantErr: ErrInvalidCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := session.Execute(t.Context(), tt.cmd)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, res)

			after := session.State()
			assert.Equal(t, before.Graph, after.Graph)
			assert.Equal(t, before.HistoryIndex, after.HistoryIndex)
		})
	}
}

func TestSession_UpdateNodeData(t *testing.T) {
	session := newTestSession(t, newMemoryStore(), time.Hour)

	execute(t, session, AddNode{NodeType: models.NodeTypeClick})

	res := execute(t, session, UpdateNodeData{NodeID: "click-1", Data: []byte(`{"selector":"#buy","clickType":"double"}`)})
	require.NotNil(t, res.Node)

	data, ok := res.Node.Data.(*models.ClickData)
	require.True(t, ok)
	assert.Equal(t, "#buy", data.Selector)
	assert.Equal(t, "double", data.ClickType)
	assert.Equal(t, "Updated node click-1", session.history.Current().Description)
}

func TestSession_SetVariableIsNotRecorded(t *testing.T) {
	session := newTestSession(t, newMemoryStore(), time.Hour)

	res := execute(t, session, SetVariable{Name: "baseUrl", Value: "https://example.com"})
	assert.Equal(t, "https://example.com", res.Graph.Variables["baseUrl"])
	assert.Equal(t, 0, res.HistoryIndex)
	assert.False(t, res.NoOp)

	res = execute(t, session, SetVariable{Name: "baseUrl"})
	assert.NotContains(t, res.Graph.Variables, "baseUrl")
}

func TestSession_WarningsAreAdvisory(t *testing.T) {
	session := newTestSession(t, newMemoryStore(), time.Hour)

	res := execute(t, session, AddNode{NodeType: models.NodeTypeNavigate})
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], `node "navigate-1" (navigate) is not connected`)
}

func TestSession_AutosaveAfterEdits(t *testing.T) {
	store := newMemoryStore()
	session := newTestSession(t, store, 30*time.Millisecond)

	execute(t, session, AddNode{NodeType: models.NodeTypeNavigate})
	execute(t, session, Connect{Source: "trigger-1", Target: "navigate-1"})

	assert.Zero(t, store.saveCount())

	require.Eventually(t, func() bool { return store.saveCount() == 1 }, time.Second, 5*time.Millisecond)

	id := session.ID()
	assert.Equal(t, "wf-1", id)

	stored, err := store.LoadGraph(t.Context(), id)
	require.NoError(t, err)
	assert.Len(t, stored.Nodes, 2)
	assert.Len(t, stored.Edges, 1)
	assert.Equal(t, 1, session.State().Graph.Version)
}

func TestSession_Save(t *testing.T) {
	store := newMemoryStore()
	session := newTestSession(t, store, time.Hour)

	tempID := session.ID()

	execute(t, session, AddNode{NodeType: models.NodeTypeWait})

	res := execute(t, session, Save{Name: "Checkout"})
	require.NotNil(t, res.Saved)
	assert.True(t, res.Saved.IsNew)
	assert.Equal(t, "wf-1", res.WorkflowID)
	assert.NotEqual(t, tempID, res.WorkflowID)
	assert.Equal(t, "Checkout", store.metas["wf-1"].Name)

	res = execute(t, session, Save{})
	assert.Equal(t, 2, res.Saved.Version)
	assert.Equal(t, "wf-1", res.WorkflowID)
	assert.Equal(t, "Checkout", store.metas["wf-1"].Name)
}

func TestSession_FailedSaveKeepsGraph(t *testing.T) {
	store := newMemoryStore()
	store.failWith(errors.New("disk full"))

	session := newTestSession(t, store, time.Hour)

	execute(t, session, AddNode{NodeType: models.NodeTypeWait})

	res, err := session.Execute(t.Context(), Save{})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.EqualError(t, session.LastSaveError(), "disk full")

	state := session.State()
	assert.Equal(t, "disk full", state.SaveError)
	assert.Len(t, state.Graph.Nodes, 2)
	assert.True(t, models.IsTemporaryID(state.WorkflowID))

	store.failWith(nil)

	res = execute(t, session, Save{})
	assert.Empty(t, res.SaveError)
	assert.Equal(t, "wf-2", res.WorkflowID)
}

func TestSession_SaveStoresHistory(t *testing.T) {
	store := newMemoryStore()
	historyStore := history.NewFileStore(t.TempDir())
	factory, connections := newTestGraphTools()

	g, err := factory.NewDefaultGraph()
	require.NoError(t, err)

	session := NewSession(models.NewTemporaryID(), g, nil, SessionConfig{
		Factory:       factory,
		Connections:   connections,
		Store:         store,
		HistoryStore:  historyStore,
		AutosaveDelay: time.Hour,
	})
	defer session.Discard()

	execute(t, session, AddNode{NodeType: models.NodeTypeWait})
	res := execute(t, session, Save{})

	restored := history.Load(t.Context(), historyStore, res.WorkflowID, slog.Default())
	assert.Equal(t, 2, restored.Len())
	assert.Equal(t, "Added wait node", restored.Current().Description)
}

func TestSession_CloseFlushesPendingSave(t *testing.T) {
	store := newMemoryStore()
	session := newTestSession(t, store, time.Hour)

	require.NoError(t, session.Close(t.Context()))
	assert.Zero(t, store.saveCount(), "nothing pending")

	session = newTestSession(t, store, time.Hour)
	execute(t, session, MoveNode{NodeID: "trigger-1", Position: models.Position{X: 5, Y: 5}})

	require.NoError(t, session.Close(t.Context()))
	assert.Equal(t, 1, store.saveCount())
}
