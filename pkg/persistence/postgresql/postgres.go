// Package postgresql stores workflows in PostgreSQL, one row per workflow with the graph as JSONB.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowpilot/pkg/persistence"
	"github.com/dukex/flowpilot/pkg/persistence/sqlbase"
	_ "github.com/lib/pq"
)

type Persistence struct {
	db           *sql.DB
	logger       *slog.Logger
	migrations   *sqlbase.MigrationManager
	workflowRepo *WorkflowRepository
}

// PoolConfig bounds the connection pool. Zero values keep database/sql defaults.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPoolConfig suits one API instance with a handful of concurrent autosaves.
var DefaultPoolConfig = PoolConfig{
	MaxOpenConns:    10,
	MaxIdleConns:    5,
	ConnMaxLifetime: 30 * time.Minute,
}

type Option func(*PoolConfig)

func WithPool(pool PoolConfig) Option {
	return func(c *PoolConfig) {
		*c = pool
	}
}

// NewPersistence connects, applies pending migrations and returns the store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string, opts ...Option) (*Persistence, error) {
	pool := DefaultPoolConfig
	for _, opt := range opts {
		opt(&pool)
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := &Persistence{
		db:           db,
		logger:       logger,
		migrations:   sqlbase.NewMigrationManager(logger, db, migrations()),
		workflowRepo: NewWorkflowRepository(db, logger),
	}

	if err := p.migrations.RunMigrations(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return p, nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) Close(_ context.Context) error {
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	return nil
}

// HealthCheck pings the database and fails when the schema is behind the migrations this build
// ships.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	current, err := p.migrations.CurrentVersion(ctx)
	if err != nil {
		return err
	}

	if current < p.migrations.LatestVersion() {
		return fmt.Errorf("%w: at version %d, expected %d", persistence.ErrSchemaOutdated, current, p.migrations.LatestVersion())
	}

	return nil
}
