package graph

import (
	"fmt"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/registry"
)

// ConnectionResult is the verdict on a proposed edge. Once both handles are known they are
// reported by name, with the default handle resolved.
type ConnectionResult struct {
	Valid        bool   `json:"valid"`
	Error        string `json:"error,omitempty"`
	Duplicate    bool   `json:"duplicate,omitempty"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// Proposal is an edge the user is trying to draw.
type Proposal struct {
	Source       string `json:"source"        validate:"required"`
	Target       string `json:"target"        validate:"required"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// ConnectionValidator decides whether two nodes may be joined. It only looks at the node
// pair and the existing edges; global shape is the graph validator's concern.
type ConnectionValidator struct {
	registry *registry.Registry
}

// NewConnectionValidator creates a validator using reg for handle metadata.
func NewConnectionValidator(reg *registry.Registry) *ConnectionValidator {
	return &ConnectionValidator{registry: reg}
}

// Validate checks a proposed edge from source to target. It has no side effects.
func (v *ConnectionValidator) Validate(
	source, target *models.GraphNode,
	sourceHandle, targetHandle string,
	edges []*models.GraphEdge,
) ConnectionResult {
	if source == nil || target == nil {
		return invalid("source and target nodes are required")
	}

	if source.ID == target.ID {
		return invalid("a node cannot connect to itself")
	}

	sourceEntry, ok := v.registry.Lookup(source.Type)
	if !ok {
		return invalid(fmt.Sprintf("unknown node type %q", source.Type))
	}

	targetEntry, ok := v.registry.Lookup(target.Type)
	if !ok {
		return invalid(fmt.Sprintf("unknown node type %q", target.Type))
	}

	if !sourceEntry.HasOutputs() {
		return invalid(fmt.Sprintf("%s nodes have no outputs", sourceEntry.Label))
	}

	if !targetEntry.AcceptsInput() {
		return invalid(fmt.Sprintf("%s nodes do not accept inputs", targetEntry.Label))
	}

	outHandle, ok := sourceEntry.ResolveOutput(sourceHandle)
	if !ok {
		return invalid(fmt.Sprintf("%s nodes have no output %q", sourceEntry.Label, sourceHandle))
	}

	inHandle, ok := targetEntry.ResolveInput(targetHandle)
	if !ok {
		return invalid(fmt.Sprintf("%s nodes have no input %q", targetEntry.Label, targetHandle))
	}

	result := ConnectionResult{Valid: true, SourceHandle: outHandle, TargetHandle: inHandle}

	if findConnection(edges, source.ID, target.ID, outHandle, inHandle, sourceEntry, targetEntry) != nil {
		result.Valid = false
		result.Duplicate = true
		result.Error = "connection already exists"
	}

	return result
}

// findConnection returns the edge joining source to target through the given resolved
// handles. Handles stored on existing edges are resolved the same way, so an edge saved
// with the default handle matches one naming it.
func findConnection(
	edges []*models.GraphEdge,
	source, target, outHandle, inHandle string,
	sourceEntry, targetEntry *registry.Entry,
) *models.GraphEdge {
	for _, edge := range edges {
		if edge == nil || edge.Source != source || edge.Target != target {
			continue
		}

		out, _ := sourceEntry.ResolveOutput(edge.SourceHandle)
		in, _ := targetEntry.ResolveInput(edge.TargetHandle)

		if out == outHandle && in == inHandle {
			return edge
		}
	}

	return nil
}

func invalid(reason string) ConnectionResult {
	return ConnectionResult{Valid: false, Error: reason}
}
