package editor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/flowpilot/pkg/graph"
	"github.com/dukex/flowpilot/pkg/history"
	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/otelhelper"
	"github.com/dukex/flowpilot/pkg/services"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// WorkflowStore loads and saves workflow graphs. *services.Workflow implements it.
type WorkflowStore interface {
	GraphSaver
	LoadGraph(ctx context.Context, id string) (*models.WorkflowGraph, error)
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHistoryStore keeps undo history across sessions.
func WithHistoryStore(store history.Store) HubOption {
	return func(h *Hub) {
		h.historyStore = store
	}
}

// WithAutosaveDelay sets the idle time before a session saves.
func WithAutosaveDelay(delay time.Duration) HubOption {
	return func(h *Hub) {
		h.autosaveDelay = delay
	}
}

// WithHistoryLimit caps the snapshots kept per session.
func WithHistoryLimit(limit int) HubOption {
	return func(h *Hub) {
		h.historyLimit = limit
	}
}

// WithLogger sets the logger shared by the hub and its sessions.
func WithLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithTracer records a span per executed command.
func WithTracer(tracer trace.Tracer) HubOption {
	return func(h *Hub) {
		if tracer != nil {
			h.tracer = tracer
		}
	}
}

// Hub holds the open editing sessions, one per workflow.
type Hub struct {
	store         WorkflowStore
	factory       *graph.Factory
	connections   *graph.ConnectionValidator
	historyStore  history.Store
	autosaveDelay time.Duration
	historyLimit  int
	logger        *slog.Logger
	tracer        trace.Tracer

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewHub creates a hub with no open sessions.
func NewHub(store WorkflowStore, factory *graph.Factory, connections *graph.ConnectionValidator, opts ...HubOption) *Hub {
	h := &Hub{
		store:         store,
		factory:       factory,
		connections:   connections,
		autosaveDelay: DefaultAutosaveDelay,
		historyLimit:  history.DefaultLimit,
		logger:        slog.Default(),
		tracer:        otelhelper.NoopTracer(),
		sessions:      make(map[string]*Session),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Open returns the session for id, loading the workflow on first use. A temporary id starts a
// new unsaved workflow with the default graph and is never looked up in the store.
func (h *Hub) Open(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		id = models.NewTemporaryID()
	}

	if session, ok := h.Get(id); ok {
		return session, nil
	}

	var (
		g   *models.WorkflowGraph
		err error
	)

	if models.IsTemporaryID(id) {
		g, err = h.factory.NewDefaultGraph()
	} else {
		g, err = h.store.LoadGraph(ctx, id)
	}

	if err != nil {
		return nil, err
	}

	manager := history.NewManager(history.WithLimit(h.historyLimit))
	if !models.IsTemporaryID(id) {
		manager = history.Load(ctx, h.historyStore, id, h.logger, history.WithLimit(h.historyLimit))
	}

	session := NewSession(id, g, manager, SessionConfig{
		Factory:       h.factory,
		Connections:   h.connections,
		Store:         h.store,
		HistoryStore:  h.historyStore,
		AutosaveDelay: h.autosaveDelay,
		Logger:        h.logger,
	})
	session.onSaved = h.rekey

	h.mu.Lock()
	defer h.mu.Unlock()

	// Another request may have opened it while this one was loading.
	if existing, ok := h.sessions[id]; ok {
		session.Discard()

		return existing, nil
	}

	h.sessions[id] = session

	h.logger.DebugContext(ctx, "Opened editor session", "workflow_id", id)

	return session, nil
}

// Get returns an open session.
func (h *Hub) Get(id string) (*Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	session, ok := h.sessions[id]

	return session, ok
}

// Execute opens the session for id and applies cmd to it.
func (h *Hub) Execute(ctx context.Context, id string, cmd Command) (*Result, error) {
	ctx, span := otelhelper.StartSpan(ctx, h.tracer, "editor.execute",
		attribute.String(otelhelper.WorkflowIDKey, id),
		attribute.String(otelhelper.CommandTypeKey, string(cmd.Type())),
	)
	defer span.End()

	session, err := h.Open(ctx, id)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	result, err := session.Execute(ctx, cmd)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(otelhelper.GraphAttributes(result.Graph)...)

	return result, nil
}

// rekey registers a temporary session under the id it was saved as. The temporary id stays
// an alias so clients that have not seen the new id keep editing the same graph.
func (h *Hub) rekey(oldID string, result *services.SaveResult) {
	h.mu.Lock()
	defer h.mu.Unlock()

	session, ok := h.sessions[oldID]
	if !ok {
		return
	}

	h.sessions[result.ID] = session

	h.logger.Info("Temporary workflow saved", "temporary_id", oldID, "workflow_id", result.ID)
}

// Discard drops a session without saving. It returns once any save in flight has finished,
// so it must run before the workflow is deleted.
func (h *Hub) Discard(id string) {
	h.mu.Lock()
	session, ok := h.sessions[id]

	for key, open := range h.sessions {
		if open == session {
			delete(h.sessions, key)
		}
	}
	h.mu.Unlock()

	if ok {
		session.Discard()
	}
}

// Forget discards the session of a deleted workflow and removes its stored history.
func (h *Hub) Forget(ctx context.Context, id string) error {
	h.Discard(id)

	if h.historyStore == nil {
		return nil
	}

	return h.historyStore.Delete(ctx, id)
}

// Len returns the number of open sessions.
func (h *Hub) Len() int {
	return len(h.openSessions())
}

func (h *Hub) openSessions() []*Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	seen := make(map[*Session]bool, len(h.sessions))
	sessions := make([]*Session, 0, len(h.sessions))

	for _, session := range h.sessions {
		if !seen[session] {
			seen[session] = true
			sessions = append(sessions, session)
		}
	}

	return sessions
}

// Close flushes pending saves of every session and stores their history.
func (h *Hub) Close(ctx context.Context) error {
	sessions := h.openSessions()

	h.mu.Lock()
	h.sessions = make(map[string]*Session)
	h.mu.Unlock()

	var errs []error

	for _, session := range sessions {
		if err := session.Close(ctx); err != nil {
			errs = append(errs, err)
		}

		if err := h.saveHistory(ctx, session); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (h *Hub) saveHistory(ctx context.Context, session *Session) error {
	if h.historyStore == nil {
		return nil
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if models.IsTemporaryID(session.id) {
		return nil
	}

	return history.Save(ctx, h.historyStore, session.id, session.history)
}
