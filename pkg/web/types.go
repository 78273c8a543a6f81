// Package web provides HTTP request and response types for the workflow API.
package web

import (
	"github.com/dukex/flowpilot/pkg/graph"
	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/registry"
)

// CreateWorkflowRequest represents the request body for creating a new workflow.
// Without a graph the workflow starts with a single trigger node.
type CreateWorkflowRequest struct {
	Name        string                `json:"name"            validate:"required,min=3"`
	Description string                `json:"description"`
	Owner       string                `json:"owner"`
	Graph       *models.WorkflowGraph `json:"graph,omitempty"`
}

// UpdateWorkflowRequest represents the request body for updating an existing workflow.
// All fields are optional to support partial updates.
type UpdateWorkflowRequest struct {
	Name        *string `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string `json:"description,omitempty"`
}

// SaveGraphRequest replaces the whole graph of a workflow.
type SaveGraphRequest struct {
	Graph       *models.WorkflowGraph `json:"graph"                 validate:"required"`
	Name        string                `json:"name,omitempty"`
	Description string                `json:"description,omitempty"`
	Owner       string                `json:"owner,omitempty"`
}

// ValidateGraphRequest checks an unsaved graph.
type ValidateGraphRequest struct {
	Nodes []*models.GraphNode `json:"nodes"`
	Edges []*models.GraphEdge `json:"edges"`
}

// ValidateConnectionRequest asks whether an edge could be drawn in the workflow's current graph.
type ValidateConnectionRequest struct {
	Source       string `json:"source"       validate:"required"`
	Target       string `json:"target"       validate:"required"`
	SourceHandle string `json:"sourceHandle"`
	TargetHandle string `json:"targetHandle"`
}

// NodeTypeResponse describes a node type for the editor palette.
type NodeTypeResponse struct {
	Type        models.NodeType   `json:"type"`
	Label       string            `json:"label"`
	Category    registry.Category `json:"category"`
	Icon        string            `json:"icon"`
	Description string            `json:"description"`
	Inputs      []registry.Handle `json:"inputs"`
	Outputs     []registry.Handle `json:"outputs"`
	Defaults    models.NodeData   `json:"defaults"`
}

// TransformNodeTypeResponse copies a registry entry into its response shape.
func TransformNodeTypeResponse(entry *registry.Entry) NodeTypeResponse {
	inputs := entry.Inputs
	if inputs == nil {
		inputs = []registry.Handle{}
	}

	outputs := entry.Outputs
	if outputs == nil {
		outputs = []registry.Handle{}
	}

	return NodeTypeResponse{
		Type:        entry.Type,
		Label:       entry.Label,
		Category:    entry.Category,
		Icon:        entry.Icon,
		Description: entry.Description,
		Inputs:      inputs,
		Outputs:     outputs,
		Defaults:    entry.Template.Clone(),
	}
}

// ValidationResponse is returned by the validate endpoints.
type ValidationResponse struct {
	WorkflowID string `json:"workflow_id"`
	graph.ValidationResult
}
