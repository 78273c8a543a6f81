package web

import (
	"errors"

	"github.com/dukex/flowpilot/pkg/editor"
	"github.com/dukex/flowpilot/pkg/exchange"
	"github.com/dukex/flowpilot/pkg/graph"
	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

// listProblem is a problem with the individual violations in an "errors" extension member.
type listProblem struct {
	*problems.Problem
	Errors any `json:"errors"`
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func badRequestList(c fiber.Ctx, problemType, detail string, list any) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(listProblem{Problem: problem, Errors: list})
}

func notFound(c fiber.Ctx, problemType, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps service, editor and graph errors to problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	var (
		importErr *exchange.ImportError
		graphErr  *services.GraphValidationError
		structErr *graph.StructureError
	)

	switch {
	case errors.As(err, &importErr):
		return badRequestList(c, "invalid_document", exchange.ErrInvalidDocument.Error(), importErr.Fields)

	case errors.As(err, &structErr):
		return badRequestList(c, "malformed_graph", graph.ErrMalformedGraph.Error(), structErr.Defects)

	case errors.As(err, &graphErr):
		return badRequestList(c, "invalid_graph", services.ErrGraphInvalid.Error(), graphErr.Errors)

	case services.IsValidationError(err),
		errors.Is(err, editor.ErrInvalidCommand),
		errors.Is(err, editor.ErrUnknownCommand),
		errors.Is(err, graph.ErrInvalidConnection),
		errors.Is(err, graph.ErrUnknownNodeType),
		errors.Is(err, graph.ErrTriggerRequired),
		errors.Is(err, graph.ErrNodeTypeImmutable),
		errors.Is(err, models.ErrInvalidNodeData):
		return badRequest(c, err.Error())

	case services.IsConflictError(err),
		errors.Is(err, editor.ErrSaveSuperseded),
		errors.Is(err, editor.ErrSessionClosed):
		return conflict(c, err.Error())

	case services.IsNotFoundError(err):
		return notFound(c, "workflow_not_found", "workflow not found")

	case errors.Is(err, graph.ErrNodeNotFound):
		return notFound(c, "node_not_found", err.Error())

	case errors.Is(err, graph.ErrEdgeNotFound):
		return notFound(c, "edge_not_found", err.Error())

	default:
		return internalError(c, err)
	}
}
