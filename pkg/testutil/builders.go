// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/google/uuid"
)

// CreateTestNode creates a test GraphNode with default values that can be overridden.
func CreateTestNode(nodeType models.NodeType, overrides ...func(*models.GraphNode)) *models.GraphNode {
	data, err := models.NewNodeData(nodeType)
	if err != nil {
		panic(err)
	}

	if trigger, ok := data.(*models.TriggerData); ok {
		trigger.TriggerType = models.TriggerManual
	}

	node := &models.GraphNode{
		ID:       string(nodeType) + "-" + uuid.New().String(),
		Type:     nodeType,
		Position: models.Position{X: 100, Y: 200},
		Data:     data,
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithNodeID sets the node id.
func WithNodeID(id string) func(*models.GraphNode) {
	return func(n *models.GraphNode) {
		n.ID = id
	}
}

// WithData replaces the node payload.
func WithData(data models.NodeData) func(*models.GraphNode) {
	return func(n *models.GraphNode) {
		n.Data = data
	}
}

// WithPosition sets the node position.
func WithPosition(x, y float64) func(*models.GraphNode) {
	return func(n *models.GraphNode) {
		n.Position = models.Position{X: x, Y: y}
	}
}

// Connect returns an edge between two nodes using the default handles.
func Connect(source, target *models.GraphNode) *models.GraphEdge {
	return &models.GraphEdge{
		ID:     models.EdgeID(source.ID, "", target.ID, ""),
		Source: source.ID,
		Target: target.ID,
	}
}

// CreateTestGraph creates a valid linear graph: trigger -> navigate -> click.
func CreateTestGraph() *models.WorkflowGraph {
	trigger := CreateTestNode(models.NodeTypeTrigger, WithNodeID("trigger-1"), WithPosition(250, 50))
	navigate := CreateTestNode(models.NodeTypeNavigate, WithNodeID("navigate-1"),
		WithData(&models.NavigateData{URL: "https://example.com", WaitUntil: "load", TimeoutMs: 30000}))
	click := CreateTestNode(models.NodeTypeClick, WithNodeID("click-1"),
		WithData(&models.ClickData{Selector: "#submit", ClickType: "single"}))

	g := models.NewWorkflowGraph()
	g.Nodes = []*models.GraphNode{trigger, navigate, click}
	g.Edges = []*models.GraphEdge{Connect(trigger, navigate), Connect(navigate, click)}
	g.Version = 1

	return g
}

// CreateTestWorkflow creates a draft workflow with a valid graph that can be overridden.
func CreateTestWorkflow(overrides ...func(*models.Workflow)) *models.Workflow {
	now := time.Now().UTC().Truncate(time.Millisecond)

	workflow := &models.Workflow{
		ID:          uuid.New().String(),
		Name:        "Test Workflow",
		Description: "Test workflow description",
		Status:      models.WorkflowStatusDraft,
		Owner:       "test-user",
		Graph:       CreateTestGraph(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for _, override := range overrides {
		override(workflow)
	}

	return workflow
}

// WithWorkflowName sets the workflow name.
func WithWorkflowName(name string) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Name = name
	}
}

// WithStatus sets the workflow status.
func WithStatus(status models.WorkflowStatus) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Status = status
	}
}

// WithGraph sets the workflow graph.
func WithGraph(graph *models.WorkflowGraph) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Graph = graph
	}
}
