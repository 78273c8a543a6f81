// Package history keeps a bounded, linear undo/redo log of graph snapshots.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/flowpilot/pkg/graph"
	"github.com/dukex/flowpilot/pkg/models"
)

// DefaultLimit is the number of snapshots kept before the oldest is evicted.
const DefaultLimit = 50

// ErrNoHistory is returned when undo or redo has nowhere to go.
var ErrNoHistory = errors.New("no history available")

// State is the manager's position in its record/apply cycle.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateApplying  State = "applying"
)

// Snapshot is a deep copy of the graph's nodes and edges at one point in time.
type Snapshot struct {
	Nodes       []*models.GraphNode `json:"nodes"`
	Edges       []*models.GraphEdge `json:"edges"`
	Timestamp   time.Time           `json:"timestamp"`
	Description string              `json:"description,omitempty"`
}

func (s *Snapshot) clone() *Snapshot {
	return &Snapshot{
		Nodes:       models.CloneNodes(s.Nodes),
		Edges:       models.CloneEdges(s.Edges),
		Timestamp:   s.Timestamp,
		Description: s.Description,
	}
}

// ApplyFunc installs restored nodes and edges. Both slices are fresh copies.
type ApplyFunc func(nodes []*models.GraphNode, edges []*models.GraphEdge)

// Manager is a ring of snapshots with a cursor. It is not safe for concurrent use.
type Manager struct {
	entries []*Snapshot
	cursor  int
	limit   int
	state   State
	now     func() time.Time
}

// Option customises a Manager.
type Option func(*Manager)

// WithLimit sets the maximum number of snapshots kept.
func WithLimit(limit int) Option {
	return func(m *Manager) {
		if limit > 0 {
			m.limit = limit
		}
	}
}

// WithClock replaces the snapshot timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager returns an empty manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		cursor: -1,
		limit:  DefaultLimit,
		state:  StateIdle,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Record appends a snapshot of nodes and edges after the cursor, dropping any redo branch.
// It returns false without recording while a snapshot is being applied.
func (m *Manager) Record(nodes []*models.GraphNode, edges []*models.GraphEdge, description string) bool {
	if m.state == StateApplying {
		return false
	}

	m.state = StateRecording
	defer func() { m.state = StateIdle }()

	m.entries = m.entries[:m.cursor+1]
	m.entries = append(m.entries, &Snapshot{
		Nodes:       models.CloneNodes(nodes),
		Edges:       models.CloneEdges(edges),
		Timestamp:   m.now().UTC(),
		Description: description,
	})

	if len(m.entries) > m.limit {
		drop := len(m.entries) - m.limit
		m.entries = append(m.entries[:0:0], m.entries[drop:]...)
	}

	m.cursor = len(m.entries) - 1

	return true
}

// Undo restores the previous snapshot through apply.
func (m *Manager) Undo(apply ApplyFunc) (*Snapshot, error) {
	return m.move(m.cursor-1, apply)
}

// Redo restores the next snapshot through apply.
func (m *Manager) Redo(apply ApplyFunc) (*Snapshot, error) {
	return m.move(m.cursor+1, apply)
}

func (m *Manager) move(target int, apply ApplyFunc) (*Snapshot, error) {
	if target < 0 || target >= len(m.entries) {
		return nil, ErrNoHistory
	}

	m.state = StateApplying
	defer func() { m.state = StateIdle }()

	restored := m.entries[target].clone()
	if apply != nil {
		apply(restored.Nodes, restored.Edges)
	}

	m.cursor = target

	return m.entries[target].clone(), nil
}

// CanUndo reports whether Undo would succeed.
func (m *Manager) CanUndo() bool {
	return m.cursor > 0
}

// CanRedo reports whether Redo would succeed.
func (m *Manager) CanRedo() bool {
	return m.cursor+1 < len(m.entries)
}

// Index returns the cursor, -1 when empty.
func (m *Manager) Index() int {
	return m.cursor
}

// Len returns the number of stored snapshots.
func (m *Manager) Len() int {
	return len(m.entries)
}

// State returns the current state.
func (m *Manager) State() State {
	return m.state
}

// Current returns a copy of the snapshot under the cursor, or nil.
func (m *Manager) Current() *Snapshot {
	return m.At(m.cursor)
}

// At returns a copy of the snapshot at index i, or nil when out of range.
func (m *Manager) At(i int) *Snapshot {
	if i < 0 || i >= len(m.entries) {
		return nil
	}

	return m.entries[i].clone()
}

type persisted struct {
	Entries []*Snapshot `json:"entries"`
	Index   int         `json:"index"`
}

// MarshalJSON encodes the snapshots and cursor.
func (m *Manager) MarshalJSON() ([]byte, error) {
	entries := m.entries
	if entries == nil {
		entries = []*Snapshot{}
	}

	return json.Marshal(persisted{Entries: entries, Index: m.cursor})
}

// UnmarshalJSON replaces the manager's content. An out-of-range cursor or a snapshot that is not
// a well-formed graph is an error.
func (m *Manager) UnmarshalJSON(b []byte) error {
	var p persisted
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}

	if len(p.Entries) == 0 {
		p.Index = -1
	}

	if p.Index < -1 || p.Index >= len(p.Entries) {
		return errors.New("history cursor out of range")
	}

	for i, entry := range p.Entries {
		if entry == nil {
			return errors.New("history contains an empty snapshot")
		}

		if err := graph.CheckStructure(&models.WorkflowGraph{Nodes: entry.Nodes, Edges: entry.Edges}); err != nil {
			return fmt.Errorf("history snapshot %d: %w", i, err)
		}
	}

	if m.limit == 0 {
		m.limit = DefaultLimit
	}

	if m.now == nil {
		m.now = time.Now
	}

	if len(p.Entries) > m.limit {
		drop := len(p.Entries) - m.limit
		p.Entries = p.Entries[drop:]
		p.Index = max(p.Index-drop, 0)
	}

	m.entries = p.Entries
	m.cursor = p.Index
	m.state = StateIdle

	return nil
}
