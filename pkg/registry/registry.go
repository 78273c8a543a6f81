// Package registry provides the catalog of node types available to the workflow editor.
package registry

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/dukex/flowpilot/pkg/models"
)

// Category groups node types in the editor palette.
type Category string

const (
	CategoryTrigger Category = "trigger"
	CategoryBrowser Category = "browser"
	CategoryData    Category = "data"
	CategoryControl Category = "control"
)

// DefaultHandle is the handle name used when an edge does not name one.
const DefaultHandle = ""

// Handle is a named port on a node.
type Handle struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// Entry describes a node type: how it is shown and what a new instance starts with.
type Entry struct {
	Type        models.NodeType `json:"type"`
	Label       string          `json:"label"`
	Category    Category        `json:"category"`
	Icon        string          `json:"icon"`
	Description string          `json:"description"`
	Inputs      []Handle        `json:"inputs"`
	Outputs     []Handle        `json:"outputs"`
	Template    models.NodeData `json:"defaults"`
}

// AcceptsInput reports whether the node type can be the target of an edge.
func (e *Entry) AcceptsInput() bool {
	return len(e.Inputs) > 0
}

// HasOutputs reports whether the node type can be the source of an edge.
func (e *Entry) HasOutputs() bool {
	return len(e.Outputs) > 0
}

// HasInput reports whether name is an input handle. An empty name selects the first input.
func (e *Entry) HasInput(name string) bool {
	_, ok := e.ResolveInput(name)

	return ok
}

// HasOutput reports whether name is an output handle. An empty name selects the first output.
func (e *Entry) HasOutput(name string) bool {
	_, ok := e.ResolveOutput(name)

	return ok
}

// ResolveInput returns the input handle name refers to, mapping the default handle to the
// first input.
func (e *Entry) ResolveInput(name string) (string, bool) {
	return resolveHandle(e.Inputs, name)
}

// ResolveOutput returns the output handle name refers to, mapping the default handle to the
// first output.
func (e *Entry) ResolveOutput(name string) (string, bool) {
	return resolveHandle(e.Outputs, name)
}

func resolveHandle(handles []Handle, name string) (string, bool) {
	if len(handles) == 0 {
		return "", false
	}

	if name == DefaultHandle {
		return handles[0].Name, true
	}

	if slices.ContainsFunc(handles, func(h Handle) bool { return h.Name == name }) {
		return name, true
	}

	return "", false
}

// Registry is a static lookup table of node types.
type Registry struct {
	logger  *slog.Logger
	entries map[models.NodeType]*Entry
	order   []models.NodeType
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:  log,
		entries: make(map[models.NodeType]*Entry),
	}
}

// Register adds or replaces a node type. The template must match the entry type.
func (r *Registry) Register(entry *Entry) error {
	if !models.IsValidNodeType(entry.Type) {
		return fmt.Errorf("%w: %q", models.ErrUnknownNodeType, entry.Type)
	}

	if entry.Template == nil || entry.Template.NodeType() != entry.Type {
		return fmt.Errorf("template for node type %q does not match", entry.Type)
	}

	if err := models.ValidateNodeData(entry.Template); err != nil {
		return fmt.Errorf("invalid template for node type %q: %w", entry.Type, err)
	}

	if _, exists := r.entries[entry.Type]; !exists {
		r.order = append(r.order, entry.Type)
	}

	r.entries[entry.Type] = entry

	r.logger.Debug("Registered node type", "type", entry.Type)

	return nil
}

// Lookup returns the entry for nodeType.
func (r *Registry) Lookup(nodeType models.NodeType) (*Entry, bool) {
	entry, ok := r.entries[nodeType]

	return entry, ok
}

// All returns every entry in registration order.
func (r *Registry) All() []*Entry {
	entries := make([]*Entry, 0, len(r.order))
	for _, nodeType := range r.order {
		entries = append(entries, r.entries[nodeType])
	}

	return entries
}

// HealthCheck reports whether the built-in catalog is loaded.
func (r *Registry) HealthCheck() (string, bool) {
	if len(r.entries) == 0 {
		return "Registry has no node types", false
	}

	if _, ok := r.entries[models.NodeTypeTrigger]; !ok {
		return "Registry has no trigger node type", false
	}

	return fmt.Sprintf("Registry has %d node types", len(r.entries)), true
}
