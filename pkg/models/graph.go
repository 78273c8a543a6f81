package models

import (
	"encoding/json"
	"fmt"
)

// Position is a node's location on the editor canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GraphNode is a single unit of work in a workflow graph.
type GraphNode struct {
	ID       string   `json:"id"`
	Type     NodeType `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

type graphNodeJSON struct {
	ID       string          `json:"id"`
	Type     NodeType        `json:"type"`
	Position Position        `json:"position"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// UnmarshalJSON decodes the data payload according to the node type.
func (n *GraphNode) UnmarshalJSON(b []byte) error {
	var raw graphNodeJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	data, err := NewNodeData(raw.Type)
	if err != nil {
		return err
	}

	if len(raw.Data) > 0 && string(raw.Data) != "null" {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			return fmt.Errorf("failed to decode %s data for node %s: %w", raw.Type, raw.ID, err)
		}
	}

	n.ID = raw.ID
	n.Type = raw.Type
	n.Position = raw.Position
	n.Data = data

	return nil
}

// Clone returns a deep copy of the node.
func (n *GraphNode) Clone() *GraphNode {
	if n == nil {
		return nil
	}

	c := *n
	if n.Data != nil {
		c.Data = n.Data.Clone()
	}

	return &c
}

// IsTrigger reports whether the node is the workflow entry point.
func (n *GraphNode) IsTrigger() bool {
	return n != nil && n.Type == NodeTypeTrigger
}

// GraphEdge is a directed connection between two nodes.
type GraphEdge struct {
	ID           string         `json:"id"`
	Source       string         `json:"source"`
	Target       string         `json:"target"`
	SourceHandle string         `json:"sourceHandle,omitempty"`
	TargetHandle string         `json:"targetHandle,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

// Clone returns a deep copy of the edge.
func (e *GraphEdge) Clone() *GraphEdge {
	if e == nil {
		return nil
	}

	c := *e
	c.Data = CloneMap(e.Data)

	return &c
}

// SameConnection reports whether both edges join the same endpoints through the same handles.
func (e *GraphEdge) SameConnection(source, sourceHandle, target, targetHandle string) bool {
	return e.Source == source &&
		e.Target == target &&
		e.SourceHandle == sourceHandle &&
		e.TargetHandle == targetHandle
}

// EdgeID derives the conventional edge identifier from its endpoints.
func EdgeID(source, sourceHandle, target, targetHandle string) string {
	from := source
	if sourceHandle != "" {
		from += ":" + sourceHandle
	}

	to := target
	if targetHandle != "" {
		to += ":" + targetHandle
	}

	return "edge-" + from + "-" + to
}

// WorkflowGraph is the editable node/edge document of a workflow.
type WorkflowGraph struct {
	Nodes     []*GraphNode   `json:"nodes"`
	Edges     []*GraphEdge   `json:"edges"`
	Variables map[string]any `json:"variables"`
	Version   int            `json:"version"`
}

// NewWorkflowGraph returns an empty graph with initialised collections.
func NewWorkflowGraph() *WorkflowGraph {
	return &WorkflowGraph{
		Nodes:     []*GraphNode{},
		Edges:     []*GraphEdge{},
		Variables: map[string]any{},
	}
}

// Clone returns a deep copy of the graph.
func (g *WorkflowGraph) Clone() *WorkflowGraph {
	if g == nil {
		return nil
	}

	return &WorkflowGraph{
		Nodes:     CloneNodes(g.Nodes),
		Edges:     CloneEdges(g.Edges),
		Variables: CloneMap(g.Variables),
		Version:   g.Version,
	}
}

// Node returns the node with the given id, or nil.
func (g *WorkflowGraph) Node(id string) *GraphNode {
	for _, node := range g.Nodes {
		if node != nil && node.ID == id {
			return node
		}
	}

	return nil
}

// Edge returns the edge with the given id, or nil.
func (g *WorkflowGraph) Edge(id string) *GraphEdge {
	for _, edge := range g.Edges {
		if edge != nil && edge.ID == id {
			return edge
		}
	}

	return nil
}

// CloneNodes deep-copies a node slice.
func CloneNodes(nodes []*GraphNode) []*GraphNode {
	out := make([]*GraphNode, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, node.Clone())
	}

	return out
}

// CloneEdges deep-copies an edge slice.
func CloneEdges(edges []*GraphEdge) []*GraphEdge {
	out := make([]*GraphEdge, 0, len(edges))
	for _, edge := range edges {
		out = append(out, edge.Clone())
	}

	return out
}

// CloneMap deep-copies a JSON-like map.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}

	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}

		return out
	default:
		return val
	}
}
