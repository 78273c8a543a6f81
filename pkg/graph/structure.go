package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/flowpilot/pkg/models"
)

// ErrMalformedGraph is wrapped by every StructureError.
var ErrMalformedGraph = errors.New("malformed workflow graph")

// Defect is one structural problem, keyed by the JSON path of the offending field.
type Defect struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// StructureError lists the defects that make a graph unusable by the editor.
type StructureError struct {
	Defects []Defect
}

func (e *StructureError) Error() string {
	parts := make([]string, 0, len(e.Defects))
	for _, d := range e.Defects {
		parts = append(parts, d.Field+": "+d.Message)
	}

	return fmt.Sprintf("%s: %s", ErrMalformedGraph, strings.Join(parts, "; "))
}

func (e *StructureError) Unwrap() error {
	return ErrMalformedGraph
}

// CheckStructure rejects graphs that break the node and edge invariants: null entries, empty
// or duplicate node ids, self-loops and edges pointing at nodes that do not exist. Unlike
// Validate, a failure here means the graph must not be stored at all.
func CheckStructure(g *models.WorkflowGraph) error {
	if g == nil {
		return &StructureError{Defects: []Defect{{Field: "graph", Message: "graph is required"}}}
	}

	var defects []Defect

	known := make(map[string]bool, len(g.Nodes))

	for i, node := range g.Nodes {
		field := fmt.Sprintf("nodes.%d", i)

		switch {
		case node == nil:
			defects = append(defects, Defect{Field: field, Message: "node is null"})
		case node.ID == "":
			defects = append(defects, Defect{Field: field + ".id", Message: "node id is required"})
		case known[node.ID]:
			defects = append(defects, Defect{Field: field + ".id", Message: fmt.Sprintf("duplicate node id %q", node.ID)})
		default:
			known[node.ID] = true
		}
	}

	for i, edge := range g.Edges {
		if edge == nil {
			defects = append(defects, Defect{Field: fmt.Sprintf("edges.%d", i), Message: "edge is null"})

			continue
		}

		defects = append(defects, EdgeDefects(i, edge, known)...)
	}

	if len(defects) > 0 {
		return &StructureError{Defects: defects}
	}

	return nil
}

// EdgeDefects reports endpoint problems of the edge at index i. known holds the node ids of
// the graph.
func EdgeDefects(i int, edge *models.GraphEdge, known map[string]bool) []Defect {
	var defects []Defect

	if !known[edge.Source] {
		defects = append(defects, Defect{
			Field:   fmt.Sprintf("edges.%d.source", i),
			Message: fmt.Sprintf("unknown node %q", edge.Source),
		})
	}

	switch {
	case !known[edge.Target]:
		defects = append(defects, Defect{
			Field:   fmt.Sprintf("edges.%d.target", i),
			Message: fmt.Sprintf("unknown node %q", edge.Target),
		})
	case edge.Source == edge.Target:
		defects = append(defects, Defect{
			Field:   fmt.Sprintf("edges.%d.target", i),
			Message: "a node cannot connect to itself",
		})
	}

	return defects
}
