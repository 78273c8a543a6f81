package graph

import (
	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/registry"
	"github.com/google/uuid"
)

// DefaultTriggerPosition is where a new workflow's trigger is placed.
var DefaultTriggerPosition = models.Position{X: 250, Y: 50}

// Factory builds new nodes from registry templates.
type Factory struct {
	registry *registry.Registry
	newID    func(models.NodeType) string
}

// FactoryOption customises a Factory.
type FactoryOption func(*Factory)

// WithIDGenerator replaces the node id generator.
func WithIDGenerator(fn func(models.NodeType) string) FactoryOption {
	return func(f *Factory) {
		f.newID = fn
	}
}

// NewFactory creates a node factory backed by reg.
func NewFactory(reg *registry.Registry, opts ...FactoryOption) *Factory {
	f := &Factory{
		registry: reg,
		newID: func(nodeType models.NodeType) string {
			return string(nodeType) + "-" + uuid.New().String()
		},
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Create returns a node of nodeType at position with a private copy of the type's default data.
func (f *Factory) Create(nodeType models.NodeType, position models.Position) (*models.GraphNode, error) {
	entry, ok := f.registry.Lookup(nodeType)
	if !ok {
		return nil, &NodeTypeError{Type: nodeType, Err: ErrUnknownNodeType}
	}

	return &models.GraphNode{
		ID:       f.newID(nodeType),
		Type:     nodeType,
		Position: position,
		Data:     entry.Template.Clone(),
	}, nil
}

// NewDefaultGraph returns the graph a new workflow starts with: a single trigger node.
func (f *Factory) NewDefaultGraph() (*models.WorkflowGraph, error) {
	trigger, err := f.Create(models.NodeTypeTrigger, DefaultTriggerPosition)
	if err != nil {
		return nil, err
	}

	g := models.NewWorkflowGraph()
	g.Nodes = append(g.Nodes, trigger)

	return g, nil
}
