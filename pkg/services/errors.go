// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/flowpilot/pkg/exchange"
	"github.com/dukex/flowpilot/pkg/graph"
	"github.com/dukex/flowpilot/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidSortField  = errors.New("invalid sort field")
	ErrInvalidSortOrder  = errors.New("invalid sort order")
	ErrInvalidStatus     = errors.New("invalid workflow status")
	ErrEmptyOwnerID      = errors.New("owner ID cannot be empty")
	ErrGraphRequired     = errors.New("workflow graph is required")
	ErrTemporaryWorkflow = errors.New("workflow has not been saved yet")

	// Publishing Validation Errors (400 Bad Request).
	ErrWorkflowNameRequired = errors.New("workflow name is required")
	ErrGraphInvalid         = errors.New("workflow graph is invalid")

	// Business Logic Conflicts (409 Conflict).
	ErrCannotModifyPublished = errors.New("cannot modify published workflow")
	ErrAlreadyPublished      = errors.New("workflow is already published")
	ErrNotPublished          = errors.New("workflow is not published")

	// ErrWorkflowNotFound is returned when a workflow is not found (404 Not Found).
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// GraphValidationError carries every problem the graph validator found.
type GraphValidationError struct {
	Errors []string
}

func (e *GraphValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrGraphInvalid, strings.Join(e.Errors, "; "))
}

func (e *GraphValidationError) Unwrap() error {
	return ErrGraphInvalid
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidSortField) ||
		errors.Is(err, ErrInvalidSortOrder) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrEmptyOwnerID) ||
		errors.Is(err, ErrGraphRequired) ||
		errors.Is(err, ErrTemporaryWorkflow) ||
		errors.Is(err, ErrWorkflowNameRequired) ||
		errors.Is(err, ErrGraphInvalid) ||
		errors.Is(err, graph.ErrMalformedGraph) ||
		errors.Is(err, exchange.ErrInvalidDocument)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrCannotModifyPublished) ||
		errors.Is(err, ErrAlreadyPublished) ||
		errors.Is(err, ErrNotPublished)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
