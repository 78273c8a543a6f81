// Package cache provides a Redis read-through cache in front of a workflow repository.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/persistence"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a cached workflow lives without being touched.
const DefaultTTL = 10 * time.Minute

const keyPrefix = "flowpilot:workflow:"

// Client owns the Redis connection and tracks whether it is usable.
type Client struct {
	redis     *redis.Client
	logger    *slog.Logger
	available atomic.Bool
	ttl       time.Duration
}

// Connect parses redisURL, pings the server and returns a client. A failed ping does not fail
// the call: the client is returned unavailable and every operation falls back to the store.
func Connect(ctx context.Context, logger *slog.Logger, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return NewClient(ctx, logger, redis.NewClient(opts)), nil
}

// NewClient wraps an existing Redis client and checks its availability.
func NewClient(ctx context.Context, logger *slog.Logger, rdb *redis.Client) *Client {
	c := &Client{
		redis:  rdb,
		logger: logger,
		ttl:    DefaultTTL,
	}

	c.Ping(ctx)

	return c
}

// Ping refreshes and returns the availability flag.
func (c *Client) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	err := c.redis.Ping(ctx).Err()
	if err != nil {
		c.available.Store(false)
		c.logger.WarnContext(ctx, "Redis unavailable, using storage directly", "error", err)

		return false
	}

	if !c.available.Swap(true) {
		c.logger.InfoContext(ctx, "Connected to Redis", "addr", c.redis.Options().Addr)
	}

	return true
}

// Available reports whether the last interaction with Redis succeeded.
func (c *Client) Available() bool {
	return c.available.Load()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	c.available.Store(false)

	return c.redis.Close()
}

func (c *Client) fail(ctx context.Context, op string, err error) {
	c.logger.WarnContext(ctx, "Redis operation failed, falling back to storage", "op", op, "error", err)
	c.available.Store(false)
}

func documentKey(id string) string {
	return keyPrefix + id
}

func versionKey(id string) string {
	return keyPrefix + id + ":version"
}

// WorkflowRepository caches GetByID results. A cached document is only served when its
// graph version matches the version index, which every Save and Delete updates.
type WorkflowRepository struct {
	inner  persistence.WorkflowRepository
	client *Client
}

// NewWorkflowRepository wraps inner with client.
func NewWorkflowRepository(inner persistence.WorkflowRepository, client *Client) *WorkflowRepository {
	return &WorkflowRepository{inner: inner, client: client}
}

// ListWorkflows is not cached.
func (r *WorkflowRepository) ListWorkflows(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	return r.inner.ListWorkflows(ctx, opts)
}

// GetByID serves from Redis when the cached version is current, otherwise reads through.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	if workflow, ok := r.lookup(ctx, id); ok {
		return workflow, nil
	}

	workflow, err := r.inner.GetByID(ctx, id)
	if err != nil || workflow == nil {
		return workflow, err
	}

	r.store(ctx, workflow)

	return workflow, nil
}

func (r *WorkflowRepository) lookup(ctx context.Context, id string) (*models.Workflow, bool) {
	if !r.client.Available() {
		return nil, false
	}

	values, err := r.client.redis.MGet(ctx, documentKey(id), versionKey(id)).Result()
	if err != nil {
		r.client.fail(ctx, "MGET", err)

		return nil, false
	}

	body, ok := values[0].(string)
	if !ok {
		return nil, false
	}

	indexed, ok := values[1].(string)
	if !ok {
		return nil, false
	}

	var workflow models.Workflow
	if err := json.Unmarshal([]byte(body), &workflow); err != nil {
		r.client.logger.WarnContext(ctx, "Dropping undecodable cache entry", "workflow_id", id, "error", err)
		r.client.redis.Del(ctx, documentKey(id))

		return nil, false
	}

	if strconv.Itoa(workflow.Version()) != indexed {
		return nil, false
	}

	return &workflow, true
}

func (r *WorkflowRepository) store(ctx context.Context, workflow *models.Workflow) {
	if !r.client.Available() {
		return
	}

	body, err := json.Marshal(workflow)
	if err != nil {
		r.client.logger.WarnContext(ctx, "Failed to encode workflow for cache", "workflow_id", workflow.ID, "error", err)

		return
	}

	_, err = r.client.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, documentKey(workflow.ID), body, r.client.ttl)
		pipe.Set(ctx, versionKey(workflow.ID), workflow.Version(), r.client.ttl)

		return nil
	})
	if err != nil {
		r.client.fail(ctx, "SET", err)
	}
}

// Save writes through to the store and refreshes the cache entry.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	if err := r.inner.Save(ctx, workflow); err != nil {
		r.invalidate(ctx, workflow.ID)

		return err
	}

	r.store(ctx, workflow)

	return nil
}

// Delete removes the workflow from the store and the cache.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	err := r.inner.Delete(ctx, id)

	r.invalidate(ctx, id)

	return err
}

func (r *WorkflowRepository) invalidate(ctx context.Context, id string) {
	if !r.client.Available() {
		return
	}

	err := r.client.redis.Del(ctx, documentKey(id), versionKey(id)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		r.client.fail(ctx, "DEL", err)
	}
}

// Persistence decorates another backend with the cache.
type Persistence struct {
	inner  persistence.Persistence
	client *Client
	repo   *WorkflowRepository
}

// Wrap returns inner with a cached workflow repository.
func Wrap(inner persistence.Persistence, client *Client) *Persistence {
	return &Persistence{
		inner:  inner,
		client: client,
		repo:   NewWorkflowRepository(inner.WorkflowRepository(), client),
	}
}

// WorkflowRepository returns the cached repository.
func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.repo
}

// HealthCheck checks the backing store and pings Redis again. An unavailable cache is not unhealthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	p.client.Ping(ctx)

	return p.inner.HealthCheck(ctx)
}

// Close closes Redis and then the backing store.
func (p *Persistence) Close(ctx context.Context) error {
	return errors.Join(p.client.Close(), p.inner.Close(ctx))
}
