package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dukex/flowpilot/pkg/persistence"
	"github.com/dukex/flowpilot/pkg/persistence/cache"
	"github.com/dukex/flowpilot/pkg/persistence/file"
	"github.com/dukex/flowpilot/pkg/persistence/postgresql"
)

var ErrUnsupportedPersistence = errors.New("unsupported persistence provider")

var supportedPersistenceProviders = []string{"file", "postgres", "postgresql"}

// NewPersistence opens the store named by databaseURL's scheme. A URL without a scheme is a
// directory for file persistence. When redisURL is set, reads go through the Redis cache.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL, redisURL string) (persistence.Persistence, error) {
	provider, err := parsePersistenceProvider(databaseURL)
	if err != nil {
		return nil, err
	}

	var store persistence.Persistence

	switch provider {
	case "postgres", "postgresql":
		pg, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgresql persistence: %w", err)
		}

		store = pg
	default:
		store = file.NewPersistence(databaseURL)
	}

	logger.InfoContext(ctx, "Persistence configured", "provider", provider)

	if redisURL == "" {
		return store, nil
	}

	client, err := cache.Connect(ctx, logger, redisURL)
	if err != nil {
		return nil, errors.Join(err, store.Close(ctx))
	}

	return cache.Wrap(store, client), nil
}

func parsePersistenceProvider(databaseURL string) (string, error) {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file", nil
	}

	if !slices.Contains(supportedPersistenceProviders, provider) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedPersistence, provider)
	}

	return provider, nil
}
