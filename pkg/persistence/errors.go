package persistence

import (
	"errors"
	"fmt"
)

var (
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrInvalidSortField covers both sort fields and sort orders outside the allowlist.
	ErrInvalidSortField = errors.New("invalid sort field")

	// ErrInvalidWorkflowID is returned when saving an id that may not be stored, such as a
	// temporary id.
	ErrInvalidWorkflowID = errors.New("invalid workflow id")

	// ErrSchemaOutdated means the database schema is older than this build expects.
	ErrSchemaOutdated = errors.New("database schema is outdated")
)

// WorkflowError records which repository operation failed for which workflow.
type WorkflowError struct {
	Op         string
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s workflow %q: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// SortError reports a rejected sort parameter.
type SortError struct {
	Value string
}

func (e *SortError) Error() string {
	return fmt.Sprintf("%s: %q", ErrInvalidSortField, e.Value)
}

func (e *SortError) Unwrap() error {
	return ErrInvalidSortField
}

func NewSortError(value string) *SortError {
	return &SortError{Value: value}
}

func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

func IsInvalidSortField(err error) bool {
	return errors.Is(err, ErrInvalidSortField)
}

func IsInvalidWorkflowID(err error) bool {
	return errors.Is(err, ErrInvalidWorkflowID)
}
