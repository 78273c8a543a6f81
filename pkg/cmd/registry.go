// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/dukex/flowpilot/pkg/graph"
	"github.com/dukex/flowpilot/pkg/history"
	"github.com/dukex/flowpilot/pkg/registry"
)

// NewRegistry returns the catalog of built-in node types.
func NewRegistry(log *slog.Logger) *registry.Registry {
	return registry.NewDefaultRegistry(log)
}

// NewGraphTools returns the node factory and connection validator backed by reg.
func NewGraphTools(reg *registry.Registry) (*graph.Factory, *graph.ConnectionValidator) {
	return graph.NewFactory(reg), graph.NewConnectionValidator(reg)
}

// NewHistoryStore returns the store that keeps undo history between editor sessions. An empty
// path disables it.
func NewHistoryStore(path string) history.Store {
	if path == "" {
		return nil
	}

	return history.NewFileStore(path)
}
