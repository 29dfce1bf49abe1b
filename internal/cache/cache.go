// Package cache is the optional AgentResult cache: an in-process LRU by
// default, or Redis when configured. Every entry carries the schema
// version it was written with and is discarded on a mismatch rather
// than returned stale. Writes are serialized through a single writer
// goroutine per the concurrency model's cache exception to the
// no-shared-mutable-state rule between agents.
package cache

import (
	"context"
	"errors"

	"github.com/oddessentials/reviewrouter/internal/finding"
)

var errClosed = errors.New("cache: closed")

// Entry is what a backend actually stores: the result plus the schema
// version it was written under.
type Entry struct {
	SchemaVersion int                 `json:"schemaVersion"`
	Result        finding.AgentResult `json:"result"`
}

// backend is the minimal storage contract a Cache wraps. Implementations
// (lruBackend, redisBackend) need not worry about write serialization —
// Cache handles that uniformly.
type backend interface {
	get(ctx context.Context, key string) (Entry, bool, error)
	set(ctx context.Context, key string, entry Entry) error
}

type writeRequest struct {
	ctx    context.Context
	key    string
	entry  Entry
	result chan error
}

// Cache is a schema-versioned AgentResult store over a pluggable
// backend, with all writes funneled through one goroutine.
type Cache struct {
	backend backend
	writes  chan writeRequest
	closed  chan struct{}
}

func newCache(b backend) *Cache {
	c := &Cache{backend: b, writes: make(chan writeRequest), closed: make(chan struct{})}
	go c.writeLoop()
	return c
}

func (c *Cache) writeLoop() {
	for {
		select {
		case req := <-c.writes:
			req.result <- c.backend.set(req.ctx, req.key, req.entry)
		case <-c.closed:
			return
		}
	}
}

// Get looks up key. A backend error is returned as err; a schema-version
// mismatch is reported exactly like a miss (found=false, err=nil), since
// a stale entry is exactly as unusable as an absent one.
func (c *Cache) Get(ctx context.Context, key string) (result finding.AgentResult, found bool, err error) {
	entry, ok, err := c.backend.get(ctx, key)
	if err != nil {
		return finding.AgentResult{}, false, err
	}
	if !ok {
		return finding.AgentResult{}, false, nil
	}
	if entry.SchemaVersion != finding.SchemaVersion {
		return finding.AgentResult{}, false, nil
	}
	return entry.Result, true, nil
}

// Set stores result under key, stamped with the current schema
// version, via the single writer goroutine.
func (c *Cache) Set(ctx context.Context, key string, result finding.AgentResult) error {
	req := writeRequest{
		ctx:    ctx,
		key:    key,
		entry:  Entry{SchemaVersion: finding.SchemaVersion, Result: result},
		result: make(chan error, 1),
	}
	select {
	case c.writes <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return errClosed
	}
	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the writer goroutine. Pending Set calls in flight may
// still complete; no new writes are accepted afterward.
func (c *Cache) Close() {
	close(c.closed)
}
