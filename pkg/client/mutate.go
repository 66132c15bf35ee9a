package client

import (
	"context"

	"github.com/agentmemory/memsvc/pkg/bundle"
	"github.com/agentmemory/memsvc/pkg/memory"
	"github.com/agentmemory/memsvc/pkg/service"
)

// Remember delegates to the wrapped service.
func (c *Client) Remember(ctx context.Context, in service.RememberInput) service.StoreResult {
	return c.svc.Remember(ctx, in)
}

// RememberBatch delegates to the wrapped service.
func (c *Client) RememberBatch(ctx context.Context, inputs []service.RememberInput) []service.StoreResult {
	return c.svc.RememberBatch(ctx, inputs)
}

// Correct delegates to the wrapped service, then invalidates any cached
// query-cache entry naming the corrected memory.
func (c *Client) Correct(ctx context.Context, originalID, correctedContent, context_ string) service.StoreResult {
	result := c.svc.Correct(ctx, originalID, correctedContent, context_)
	if result.Success && c.queryCache != nil {
		if err := c.queryCache.InvalidatePath(ctx, originalID); err != nil {
			c.log.Warn("client: correct: query cache invalidation failed, continuing in-memory-only", "memory_id", originalID, "error", err)
		}
	}
	return result
}

// Forget delegates to the wrapped service, then invalidates any cached
// query-cache entry naming id.
func (c *Client) Forget(ctx context.Context, id string) (bool, error) {
	ok, err := c.svc.Forget(ctx, id)
	if ok && c.queryCache != nil {
		if invErr := c.queryCache.InvalidatePath(ctx, id); invErr != nil {
			c.log.Warn("client: forget: query cache invalidation failed, continuing in-memory-only", "memory_id", id, "error", invErr)
		}
	}
	return ok, err
}

// Get delegates to the wrapped service.
func (c *Client) Get(ctx context.Context, id string) (*memory.MemoryEntry, error) {
	return c.svc.Get(ctx, id)
}

// RecallEntity delegates to the wrapped service.
func (c *Client) RecallEntity(ctx context.Context, name string, hops, limit int) ([]service.RecalledEntry, error) {
	return c.svc.RecallEntity(ctx, name, hops, limit)
}

// Stats delegates to the wrapped service.
func (c *Client) Stats(ctx context.Context) (service.Stats, error) {
	return c.svc.Stats(ctx)
}

// Health delegates to the wrapped service.
func (c *Client) Health(ctx context.Context) service.HealthStatus {
	return c.svc.Health(ctx)
}

// Export delegates to the wrapped service.
func (c *Client) Export(ctx context.Context, filter memory.EntryFilter) (*bundle.Bundle, error) {
	return c.svc.Export(ctx, filter)
}

// Import delegates to the wrapped service.
func (c *Client) Import(ctx context.Context, b *bundle.Bundle, strategy bundle.Strategy) (bundle.Result, error) {
	return c.svc.Import(ctx, b, strategy)
}
