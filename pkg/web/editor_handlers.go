package web

import (
	"fmt"

	"github.com/dukex/flowpilot/pkg/editor"
	"github.com/dukex/flowpilot/pkg/graph"
	"github.com/gofiber/fiber/v3"
)

// ExecuteCommand applies one editing command to the workflow's editor session. Temporary ids
// open a new unsaved workflow.
func (h *APIHandlers) ExecuteCommand(c fiber.Ctx) error {
	cmd, err := editor.DecodeCommand(c.Body())
	if err != nil {
		return handleServiceError(c, err)
	}

	result, err := h.hub.Execute(c.Context(), c.Params("id"), cmd)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

// ValidateConnection checks a proposed edge against the graph being edited. The answer is
// always 200; the graph is not changed.
func (h *APIHandlers) ValidateConnection(c fiber.Ctx) error {
	var req ValidateConnectionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	session, err := h.hub.Open(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	g := session.State().Graph

	source := g.Node(req.Source)
	if source == nil {
		return handleServiceError(c, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, req.Source))
	}

	target := g.Node(req.Target)
	if target == nil {
		return handleServiceError(c, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, req.Target))
	}

	return c.JSON(h.connections.Validate(source, target, req.SourceHandle, req.TargetHandle, g.Edges))
}
