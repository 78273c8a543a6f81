package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Store keeps serialized history per workflow, independently of workflow persistence.
type Store interface {
	Get(ctx context.Context, workflowID string) ([]byte, error)
	Put(ctx context.Context, workflowID string, data []byte) error
	Delete(ctx context.Context, workflowID string) error
}

// FileStore writes one JSON document per workflow under root.
type FileStore struct {
	root string
}

// NewFileStore creates a store rooted at root. A file:// prefix is accepted.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: strings.TrimPrefix(root, "file://")}
}

func (s *FileStore) path(workflowID string) string {
	return filepath.Join(s.root, filepath.Base(workflowID)+".history.json")
}

// Get returns the stored history, or nil when nothing was stored.
func (s *FileStore) Get(_ context.Context, workflowID string) ([]byte, error) {
	body, err := os.ReadFile(s.path(workflowID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read history for %s: %w", workflowID, err)
	}

	return body, nil
}

// Put replaces the stored history.
func (s *FileStore) Put(_ context.Context, workflowID string, data []byte) error {
	if err := os.MkdirAll(s.root, 0750); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	tmp := s.path(workflowID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write history for %s: %w", workflowID, err)
	}

	return os.Rename(tmp, s.path(workflowID))
}

// Delete removes the stored history. Missing history is not an error.
func (s *FileStore) Delete(_ context.Context, workflowID string) error {
	err := os.Remove(s.path(workflowID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete history for %s: %w", workflowID, err)
	}

	return nil
}

// Load restores a workflow's history. Missing, unreadable or corrupt history yields an empty
// manager; the problem is logged and never returned.
func Load(ctx context.Context, store Store, workflowID string, logger *slog.Logger, opts ...Option) *Manager {
	m := NewManager(opts...)

	if store == nil {
		return m
	}

	body, err := store.Get(ctx, workflowID)
	if err != nil {
		logger.WarnContext(ctx, "Failed to read history, starting empty", "workflow_id", workflowID, "error", err)

		return m
	}

	if len(body) == 0 {
		return m
	}

	restored := NewManager(opts...)
	if err := json.Unmarshal(body, restored); err != nil {
		logger.WarnContext(ctx, "Discarding corrupt history", "workflow_id", workflowID, "error", err)

		return m
	}

	return restored
}

// Save writes m to store.
func Save(ctx context.Context, store Store, workflowID string, m *Manager) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode history for %s: %w", workflowID, err)
	}

	return store.Put(ctx, workflowID, body)
}
