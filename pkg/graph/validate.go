package graph

import (
	"fmt"
	"strings"

	"github.com/dukex/flowpilot/pkg/models"
)

// Validation messages.
const (
	MsgEmptyGraph       = "workflow must contain at least one node"
	MsgMissingTrigger   = "workflow must have a trigger node"
	MsgCircularPrefix   = "circular dependency detected"
	msgMultipleTriggers = "workflow must have exactly one trigger node, found %d"
	msgDisconnectedNode = "node %q (%s) is not connected to the workflow"
	msgDanglingEdge     = "edge %q references unknown node %q"
	msgNullNode         = "node at index %d is null"
	msgNullEdge         = "edge at index %d is null"
)

// ValidationResult lists every rule the graph violates.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Validate reports whether nodes and edges form an executable workflow. It is pure and
// deterministic: nodes and edges are visited in slice order. Violations accumulate, except
// that only the first cycle found is reported.
//
// Whether a failing result blocks an action is the caller's decision.
func Validate(nodes []*models.GraphNode, edges []*models.GraphEdge) ValidationResult {
	errs := make([]string, 0)

	if len(nodes) == 0 {
		errs = append(errs, MsgEmptyGraph)
	}

	known := make(map[string]bool, len(nodes))
	triggers := 0

	for i, node := range nodes {
		if node == nil {
			errs = append(errs, fmt.Sprintf(msgNullNode, i))

			continue
		}

		known[node.ID] = true

		if node.IsTrigger() {
			triggers++
		}
	}

	switch {
	case len(nodes) > 0 && triggers == 0:
		errs = append(errs, MsgMissingTrigger)
	case triggers > 1:
		errs = append(errs, fmt.Sprintf(msgMultipleTriggers, triggers))
	}

	for i, edge := range edges {
		if edge == nil {
			errs = append(errs, fmt.Sprintf(msgNullEdge, i))

			continue
		}

		for _, endpoint := range []string{edge.Source, edge.Target} {
			if !known[endpoint] {
				errs = append(errs, fmt.Sprintf(msgDanglingEdge, edge.ID, endpoint))
			}
		}
	}

	if len(nodes) > 1 {
		referenced := make(map[string]bool, len(nodes))
		for _, edge := range edges {
			if edge == nil {
				continue
			}

			referenced[edge.Source] = true
			referenced[edge.Target] = true
		}

		for _, node := range nodes {
			if node != nil && !node.IsTrigger() && !referenced[node.ID] {
				errs = append(errs, fmt.Sprintf(msgDisconnectedNode, node.ID, node.Type))
			}
		}
	}

	if cycle := FindCycle(nodes, edges); cycle != nil {
		errs = append(errs, MsgCircularPrefix+": "+strings.Join(cycle, " -> "))
	}

	return ValidationResult{
		Valid:  len(errs) == 0,
		Errors: errs,
	}
}

// FindCycle returns the first directed cycle reachable in the graph as a closed path
// (first and last element equal), or nil when the graph is acyclic. Null entries and edges
// that point at unknown nodes are ignored.
func FindCycle(nodes []*models.GraphNode, edges []*models.GraphEdge) []string {
	adjacency := make(map[string][]string, len(nodes))
	for _, node := range nodes {
		if node != nil {
			adjacency[node.ID] = nil
		}
	}

	for _, edge := range edges {
		if edge == nil {
			continue
		}

		if _, ok := adjacency[edge.Source]; !ok {
			continue
		}

		if _, ok := adjacency[edge.Target]; !ok {
			continue
		}

		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
	}

	visited := make(map[string]bool, len(nodes))
	onStack := make(map[string]bool, len(nodes))
	path := make([]string, 0, len(nodes))

	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		visited[id] = true
		onStack[id] = true
		path = append(path, id)

		for _, next := range adjacency[id] {
			if onStack[next] {
				cycle = closeCycle(path, next)

				return true
			}

			if !visited[next] && visit(next) {
				return true
			}
		}

		onStack[id] = false
		path = path[:len(path)-1]

		return false
	}

	for _, node := range nodes {
		if node != nil && !visited[node.ID] && visit(node.ID) {
			return cycle
		}
	}

	return nil
}

func closeCycle(path []string, start string) []string {
	for i, id := range path {
		if id == start {
			out := make([]string, 0, len(path)-i+1)
			out = append(out, path[i:]...)

			return append(out, start)
		}
	}

	return []string{start, start}
}
