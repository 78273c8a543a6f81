package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/persistence"
	"github.com/dukex/flowpilot/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPersistence(t *testing.T) {
	assert.Equal(t, "/tmp/test", NewPersistence("/tmp/test").root)
	assert.Equal(t, "/tmp/test", NewPersistence("file:///tmp/test").root)
	assert.Equal(t, "data", NewPersistence("file://data").root)
}

func TestPersistence_Close(t *testing.T) {
	p := NewPersistence("./test-data")
	err := p.Close(t.Context())
	assert.NoError(t, err)
}

func TestPersistence_HealthCheck(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, NewPersistence(root).HealthCheck(t.Context()))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "health check file must be removed")

	assert.ErrorIs(t, NewPersistence(filepath.Join(root, "missing")).HealthCheck(t.Context()), os.ErrNotExist)

	plain := filepath.Join(root, "plain")
	require.NoError(t, os.WriteFile(plain, []byte("x"), 0o600))
	assert.ErrorIs(t, NewPersistence(plain).HealthCheck(t.Context()), ErrRootNotDirectory)
}

func TestPersistence_SaveWorkflow(t *testing.T) {
	testDir := t.TempDir()
	repo := NewPersistence(testDir).WorkflowRepository()

	workflow := testutil.CreateTestWorkflow(func(w *models.Workflow) {
		w.ID = "test-workflow"
		w.CreatedAt = time.Time{}
		w.UpdatedAt = time.Time{}
	})

	err := repo.Save(t.Context(), workflow)
	require.NoError(t, err)

	// Verify file was created
	assert.FileExists(t, filepath.Join(testDir, "workflows", "test-workflow.json"))
	assert.NoFileExists(t, filepath.Join(testDir, "workflows", "test-workflow.json.tmp"))

	// Verify timestamps were set
	assert.False(t, workflow.CreatedAt.IsZero())
	assert.False(t, workflow.UpdatedAt.IsZero())

	loaded, err := repo.GetByID(t.Context(), "test-workflow")
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, workflow.Name, loaded.Name)
	assert.Equal(t, workflow.Graph.Version, loaded.Graph.Version)
	require.Len(t, loaded.Graph.Nodes, 3)
	assert.Equal(t, "#submit", loaded.Graph.Nodes[2].Data.(*models.ClickData).Selector)
	assert.Len(t, loaded.Graph.Edges, 2)
}

func TestPersistence_SaveWorkflow_KeepsCreatedAt(t *testing.T) {
	repo := NewPersistence(t.TempDir()).WorkflowRepository()

	created := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	workflow := testutil.CreateTestWorkflow(func(w *models.Workflow) {
		w.CreatedAt = created
	})

	require.NoError(t, repo.Save(t.Context(), workflow))

	assert.Equal(t, created, workflow.CreatedAt)
	assert.True(t, workflow.UpdatedAt.After(created))
}

func TestPersistence_SaveWorkflow_RejectsTemporaryID(t *testing.T) {
	repo := NewPersistence(t.TempDir()).WorkflowRepository()

	workflow := testutil.CreateTestWorkflow(func(w *models.Workflow) {
		w.ID = models.NewTemporaryID()
	})

	err := repo.Save(t.Context(), workflow)
	require.Error(t, err)
	assert.True(t, persistence.IsInvalidWorkflowID(err))
}

func TestPersistence_GetMissingAndDelete(t *testing.T) {
	repo := NewPersistence(t.TempDir()).WorkflowRepository()

	workflow, err := repo.GetByID(t.Context(), "missing")
	require.NoError(t, err)
	assert.Nil(t, workflow)

	saved := testutil.CreateTestWorkflow()
	require.NoError(t, repo.Save(t.Context(), saved))
	require.NoError(t, repo.Delete(t.Context(), saved.ID))
	require.NoError(t, repo.Delete(t.Context(), saved.ID))

	workflow, err = repo.GetByID(t.Context(), saved.ID)
	require.NoError(t, err)
	assert.Nil(t, workflow)
}

func TestPersistence_LastWriteWins(t *testing.T) {
	repo := NewPersistence(t.TempDir()).WorkflowRepository()

	first := testutil.CreateTestWorkflow(testutil.WithWorkflowName("First"))
	second := first.Clone()
	second.Name = "Second"
	second.Graph.Version = 2

	require.NoError(t, repo.Save(t.Context(), first))
	require.NoError(t, repo.Save(t.Context(), second))

	loaded, err := repo.GetByID(t.Context(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Second", loaded.Name)
	assert.Equal(t, 2, loaded.Version())
}
