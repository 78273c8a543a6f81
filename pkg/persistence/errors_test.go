package persistence_test

import (
	"errors"
	"testing"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error checking functions work correctly", func(t *testing.T) {
		workflowErr := persistence.NewWorkflowError("GetByID", "workflow-123", persistence.ErrWorkflowNotFound)

		assert.True(t, persistence.IsWorkflowNotFound(workflowErr))
		assert.True(t, errors.Is(workflowErr, persistence.ErrWorkflowNotFound))
		assert.False(t, persistence.IsInvalidSortField(workflowErr))
	})

	t.Run("workflow error contains context", func(t *testing.T) {
		err := persistence.NewWorkflowError("Save", "workflow-123", persistence.ErrInvalidWorkflowID)

		assert.Equal(t, `Save workflow "workflow-123": invalid workflow id`, err.Error())
		assert.Contains(t, err.Error(), "Save")
		assert.Contains(t, err.Error(), "workflow-123")
		assert.Contains(t, err.Error(), "invalid workflow id")
		assert.True(t, persistence.IsInvalidWorkflowID(err))
	})
}

func TestListWorkflowsOptions_Normalize(t *testing.T) {
	t.Parallel()

	opts, err := persistence.ListWorkflowsOptions{Limit: 1000, Offset: -3}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, persistence.DefaultListLimit, opts.Limit)
	assert.Equal(t, 0, opts.Offset)
	assert.Equal(t, persistence.SortByCreatedAt, opts.SortBy)
	assert.Equal(t, "desc", opts.SortOrder)

	status := models.WorkflowStatusDraft
	opts, err = persistence.ListWorkflowsOptions{SortBy: "name", SortOrder: "asc", Status: &status}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "name", opts.SortBy)

	for _, bad := range []persistence.ListWorkflowsOptions{
		{SortBy: "name; DROP TABLE workflows; --"},
		{SortBy: "name", SortOrder: "sideways"},
	} {
		_, err := bad.Normalize()
		require.Error(t, err)
		assert.True(t, persistence.IsInvalidSortField(err))
	}
}
