package graph

import (
	"fmt"
	"slices"

	"github.com/dukex/flowpilot/pkg/models"
)

// Connect validates a proposal and appends the resulting edge to g. The default handle is
// stored under its resolved name. Connecting an already connected pair is a no-op: the
// existing edge is returned with added=false.
func (v *ConnectionValidator) Connect(g *models.WorkflowGraph, p Proposal) (*models.GraphEdge, bool, error) {
	source := g.Node(p.Source)
	if source == nil {
		return nil, false, fmt.Errorf("%w: %s", ErrNodeNotFound, p.Source)
	}

	target := g.Node(p.Target)
	if target == nil {
		return nil, false, fmt.Errorf("%w: %s", ErrNodeNotFound, p.Target)
	}

	result := v.Validate(source, target, p.SourceHandle, p.TargetHandle, g.Edges)
	if result.Duplicate {
		sourceEntry, _ := v.registry.Lookup(source.Type)
		targetEntry, _ := v.registry.Lookup(target.Type)

		existing := findConnection(g.Edges, source.ID, target.ID, result.SourceHandle, result.TargetHandle, sourceEntry, targetEntry)

		return existing, false, nil
	}

	if !result.Valid {
		return nil, false, &ConnectionError{Source: p.Source, Target: p.Target, Reason: result.Error}
	}

	edge := &models.GraphEdge{
		ID:           models.EdgeID(p.Source, result.SourceHandle, p.Target, result.TargetHandle),
		Source:       p.Source,
		Target:       p.Target,
		SourceHandle: result.SourceHandle,
		TargetHandle: result.TargetHandle,
	}

	g.Edges = append(g.Edges, edge)

	return edge, true, nil
}

// Disconnect removes the edge with the given id.
func Disconnect(g *models.WorkflowGraph, edgeID string) error {
	idx := slices.IndexFunc(g.Edges, func(e *models.GraphEdge) bool { return e != nil && e.ID == edgeID })
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrEdgeNotFound, edgeID)
	}

	g.Edges = slices.Delete(g.Edges, idx, idx+1)

	return nil
}

// RemoveNode deletes a node and every edge touching it. The trigger may only be removed
// when it is the last node.
func RemoveNode(g *models.WorkflowGraph, nodeID string) error {
	idx := slices.IndexFunc(g.Nodes, func(n *models.GraphNode) bool { return n != nil && n.ID == nodeID })
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}

	if g.Nodes[idx].IsTrigger() && len(g.Nodes) > 1 {
		return ErrTriggerRequired
	}

	g.Nodes = slices.Delete(g.Nodes, idx, idx+1)
	g.Edges = slices.DeleteFunc(g.Edges, func(e *models.GraphEdge) bool {
		return e == nil || e.Source == nodeID || e.Target == nodeID
	})

	return nil
}

// MoveNode updates a node's canvas position.
func MoveNode(g *models.WorkflowGraph, nodeID string, position models.Position) error {
	node := g.Node(nodeID)
	if node == nil {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}

	node.Position = position

	return nil
}

// UpdateNodeData replaces a node's payload after validating it.
func UpdateNodeData(g *models.WorkflowGraph, nodeID string, data models.NodeData) error {
	node := g.Node(nodeID)
	if node == nil {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}

	if data == nil || data.NodeType() != node.Type {
		return ErrNodeTypeImmutable
	}

	if err := models.ValidateNodeData(data); err != nil {
		return err
	}

	node.Data = data.Clone()

	return nil
}
