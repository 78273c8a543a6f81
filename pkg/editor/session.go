package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/flowpilot/pkg/graph"
	"github.com/dukex/flowpilot/pkg/history"
	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/services"
)

// GraphSaver persists a whole graph. *services.Workflow implements it.
type GraphSaver interface {
	SaveGraph(ctx context.Context, id string, g *models.WorkflowGraph, meta services.SaveMetadata) (*services.SaveResult, error)
}

// SessionConfig holds the collaborators shared by every session.
type SessionConfig struct {
	Factory       *graph.Factory
	Connections   *graph.ConnectionValidator
	Store         GraphSaver
	HistoryStore  history.Store
	AutosaveDelay time.Duration
	Logger        *slog.Logger
}

// Result is the editor state after a command.
type Result struct {
	WorkflowID   string                `json:"workflowId"`
	Graph        *models.WorkflowGraph `json:"graph"`
	HistoryIndex int                   `json:"historyIndex"`
	CanUndo      bool                  `json:"canUndo"`
	CanRedo      bool                  `json:"canRedo"`
	Warnings     []string              `json:"warnings"`
	NoOp         bool                  `json:"noOp,omitempty"`
	Message      string                `json:"message,omitempty"`
	Node         *models.GraphNode     `json:"node,omitempty"`
	Edge         *models.GraphEdge     `json:"edge,omitempty"`
	Saved        *services.SaveResult  `json:"saved,omitempty"`
	SaveError    string                `json:"saveError,omitempty"`
}

// Session owns one workflow's in-memory graph. All mutations are serialized by its mutex,
// which also guards the history manager.
type Session struct {
	mu      sync.Mutex
	id      string
	graph   *models.WorkflowGraph
	history *history.Manager
	meta    services.SaveMetadata
	onSaved func(oldID string, result *services.SaveResult)

	cfg       SessionConfig
	autosaver *Autosaver
	logger    *slog.Logger
}

// NewSession starts editing g. When h has no entry for the current graph, one is recorded so
// the loaded state can be returned to.
func NewSession(id string, g *models.WorkflowGraph, h *history.Manager, cfg SessionConfig) *Session {
	if g == nil {
		g = models.NewWorkflowGraph()
	}

	if g.Variables == nil {
		g.Variables = make(map[string]any)
	}

	if h == nil {
		h = history.NewManager()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		id:      id,
		graph:   g,
		history: h,
		cfg:     cfg,
		logger:  logger.With("workflow_id", id),
	}

	current := h.Current()
	loaded := &history.Snapshot{Nodes: g.Nodes, Edges: g.Edges}

	if current == nil || !history.Compare(current, loaded).Empty() {
		h.Record(g.Nodes, g.Edges, "Loaded workflow")
	}

	s.autosaver = NewAutosaver(cfg.AutosaveDelay, s.persist, logger)

	return s
}

// ID returns the workflow id. It changes once when a temporary workflow is first saved.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.id
}

// State returns the current editor state without changing it.
func (s *Session) State() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.result()
}

// Execute applies cmd. Rejected commands leave the graph untouched.
func (s *Session) Execute(ctx context.Context, cmd Command) (*Result, error) {
	if save, ok := cmd.(Save); ok {
		return s.save(ctx, save)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res := &Result{}

	changed, description, err := s.apply(cmd, res)
	if err != nil {
		return nil, err
	}

	if changed {
		if description != "" {
			s.history.Record(s.graph.Nodes, s.graph.Edges, description)
		}

		s.autosaver.Schedule()
	}

	out := s.result()
	out.NoOp = !changed
	out.Message = res.Message
	out.Node = res.Node
	out.Edge = res.Edge

	return out, nil
}

// apply mutates the graph for cmd. An empty description means the change is not recorded in
// history.
func (s *Session) apply(cmd Command, res *Result) (bool, string, error) {
	switch c := cmd.(type) {
	case AddNode:
		node, err := s.cfg.Factory.Create(c.NodeType, c.Position)
		if err != nil {
			return false, "", err
		}

		s.graph.Nodes = append(s.graph.Nodes, node)
		res.Node = node.Clone()

		return true, fmt.Sprintf("Added %s node", c.NodeType), nil
	case MoveNode:
		if err := graph.MoveNode(s.graph, c.NodeID, c.Position); err != nil {
			return false, "", err
		}

		return true, "Moved node " + c.NodeID, nil
	case UpdateNodeData:
		node := s.graph.Node(c.NodeID)
		if node == nil {
			return false, "", fmt.Errorf("%w: %s", graph.ErrNodeNotFound, c.NodeID)
		}

		data, err := models.NewNodeData(node.Type)
		if err != nil {
			return false, "", err
		}

		if err := json.Unmarshal(c.Data, data); err != nil {
			return false, "", fmt.Errorf("%w: %s data: %w", ErrInvalidCommand, node.Type, err)
		}

		if err := graph.UpdateNodeData(s.graph, c.NodeID, data); err != nil {
			return false, "", err
		}

		res.Node = s.graph.Node(c.NodeID).Clone()

		return true, "Updated node " + c.NodeID, nil
	case DeleteNode:
		if err := graph.RemoveNode(s.graph, c.NodeID); err != nil {
			return false, "", err
		}

		return true, "Deleted node " + c.NodeID, nil
	case Connect:
		edge, added, err := s.cfg.Connections.Connect(s.graph, graph.Proposal{
			Source:       c.Source,
			Target:       c.Target,
			SourceHandle: c.SourceHandle,
			TargetHandle: c.TargetHandle,
		})
		if err != nil {
			return false, "", err
		}

		res.Edge = edge.Clone()

		if !added {
			res.Message = "connection already exists"

			return false, "", nil
		}

		return true, fmt.Sprintf("Connected %s to %s", c.Source, c.Target), nil
	case Disconnect:
		if err := graph.Disconnect(s.graph, c.EdgeID); err != nil {
			return false, "", err
		}

		return true, "Removed edge " + c.EdgeID, nil
	case SetVariable:
		if c.Value == nil {
			delete(s.graph.Variables, c.Name)
		} else {
			s.graph.Variables[c.Name] = c.Value
		}

		return true, "", nil
	case Undo:
		return s.move(s.history.Undo, "nothing to undo", res)
	case Redo:
		return s.move(s.history.Redo, "nothing to redo", res)
	default:
		return false, "", fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type())
	}
}

// move replays a snapshot. Nodes and edges are replaced together.
func (s *Session) move(step func(history.ApplyFunc) (*history.Snapshot, error), boundary string, res *Result) (bool, string, error) {
	snapshot, err := step(func(nodes []*models.GraphNode, edges []*models.GraphEdge) {
		s.graph.Nodes = nodes
		s.graph.Edges = edges
	})
	if errors.Is(err, history.ErrNoHistory) {
		res.Message = boundary

		return false, "", nil
	}

	if err != nil {
		return false, "", err
	}

	res.Message = snapshot.Description

	return true, "", nil
}

func (s *Session) result() *Result {
	var saveErr string
	if err := s.autosaver.LastError(); err != nil {
		saveErr = err.Error()
	}

	return &Result{
		WorkflowID:   s.id,
		Graph:        s.graph.Clone(),
		HistoryIndex: s.history.Index(),
		CanUndo:      s.history.CanUndo(),
		CanRedo:      s.history.CanRedo(),
		Warnings:     graph.Validate(s.graph.Nodes, s.graph.Edges).Errors,
		SaveError:    saveErr,
	}
}

func (s *Session) save(ctx context.Context, cmd Save) (*Result, error) {
	s.mu.Lock()
	if cmd.Name != "" {
		s.meta.Name = cmd.Name
	}

	if cmd.Description != "" {
		s.meta.Description = cmd.Description
	}
	s.mu.Unlock()

	saved, err := s.autosaver.SaveNow(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.result()
	res.Saved = saved
	res.Message = "workflow saved"

	return res, nil
}

// persist writes a copy of the graph taken now, outside the session lock.
func (s *Session) persist(ctx context.Context) (*services.SaveResult, error) {
	s.mu.Lock()
	id := s.id
	g := s.graph.Clone()
	meta := s.meta
	s.mu.Unlock()

	result, err := s.cfg.Store.SaveGraph(ctx, id, g, meta)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.graph.Version = result.Version
	s.id = result.ID

	var body []byte
	if s.cfg.HistoryStore != nil {
		body, err = json.Marshal(s.history)
	}

	onSaved := s.onSaved
	s.mu.Unlock()

	if err != nil {
		s.logger.WarnContext(ctx, "Failed to encode history", "error", err)
	} else if body != nil {
		if err := s.cfg.HistoryStore.Put(ctx, result.ID, body); err != nil {
			s.logger.WarnContext(ctx, "Failed to store history", "error", err)
		}
	}

	if id != result.ID && onSaved != nil {
		onSaved(id, result)
	}

	return result, nil
}

// LastSaveError returns the error of the last save attempt, nil after a success.
func (s *Session) LastSaveError() error {
	return s.autosaver.LastError()
}

// Close saves pending changes and stops the autosave timer.
func (s *Session) Close(ctx context.Context) error {
	_, err := s.autosaver.Flush(ctx)

	s.autosaver.Stop()

	return err
}

// Discard stops autosaving without saving pending changes and waits for a save in flight.
func (s *Session) Discard() {
	s.autosaver.Stop()
}

// Flush saves pending changes now, if any.
func (s *Session) Flush(ctx context.Context) error {
	_, err := s.autosaver.Flush(ctx)

	return err
}
