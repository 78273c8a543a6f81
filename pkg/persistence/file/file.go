// Package file stores workflows as one JSON document per workflow under <root>/workflows.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dukex/flowpilot/pkg/persistence"
)

var ErrRootNotDirectory = errors.New("persistence root is not a directory")

type Persistence struct {
	root         string
	workflowRepo *WorkflowRepository
}

// NewPersistence accepts a plain path or a file:// URL.
func NewPersistence(root string) *Persistence {
	root = strings.TrimPrefix(root, "file://")

	return &Persistence{
		root:         root,
		workflowRepo: NewWorkflowRepository(root),
	}
}

func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck fails unless the root is an existing, writable directory. Autosaves would
// otherwise fail silently in the background.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	info, err := os.Stat(fp.root)
	if err != nil {
		return fmt.Errorf("persistence root %s: %w", fp.root, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrRootNotDirectory, fp.root)
	}

	scratch, err := os.CreateTemp(fp.root, ".health-*")
	if err != nil {
		return fmt.Errorf("persistence root %s is not writable: %w", fp.root, err)
	}

	_ = scratch.Close()

	return os.Remove(scratch.Name())
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}
