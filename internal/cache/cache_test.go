package cache

import (
	"container/list"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddessentials/reviewrouter/internal/finding"
)

func TestLRUSetThenGetRoundTrips(t *testing.T) {
	c := NewLRU(4)
	defer c.Close()

	result := finding.NewSuccessResult("openai", []finding.Finding{{File: "a.ts", Message: "m", SourceAgent: "openai"}}, finding.AgentMetrics{DurationMs: 5})
	require.NoError(t, c.Set(context.Background(), "diff-hash-1", result))

	got, found, err := c.Get(context.Background(), "diff-hash-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "openai", got.AgentID())
	require.Len(t, got.Findings(), 1)
}

func TestLRUMissReturnsNotFoundWithoutError(t *testing.T) {
	c := NewLRU(4)
	defer c.Close()

	_, found, err := c.Get(context.Background(), "never-written")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLRUEvictsOldestWhenCapacityExceeded(t *testing.T) {
	c := NewLRU(2)
	defer c.Close()

	r := finding.NewSkippedResult("a", "no files", finding.AgentMetrics{})
	require.NoError(t, c.Set(context.Background(), "k1", r))
	require.NoError(t, c.Set(context.Background(), "k2", r))
	require.NoError(t, c.Set(context.Background(), "k3", r))

	_, found, err := c.Get(context.Background(), "k1")
	require.NoError(t, err)
	assert.False(t, found, "oldest entry should have been evicted")

	_, found, err = c.Get(context.Background(), "k3")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestLRUAccessBumpsRecencyAgainstEviction(t *testing.T) {
	c := NewLRU(2)
	defer c.Close()

	r := finding.NewSkippedResult("a", "no files", finding.AgentMetrics{})
	require.NoError(t, c.Set(context.Background(), "k1", r))
	require.NoError(t, c.Set(context.Background(), "k2", r))

	_, found, err := c.Get(context.Background(), "k1")
	require.NoError(t, err)
	require.True(t, found)

	require.NoError(t, c.Set(context.Background(), "k3", r))

	_, found, err = c.Get(context.Background(), "k2")
	require.NoError(t, err)
	assert.False(t, found, "k2 should be evicted since k1 was freshly accessed")

	_, found, err = c.Get(context.Background(), "k1")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestGetDiscardsEntryWithStaleSchemaVersion(t *testing.T) {
	lru := &lruBackend{capacity: 4, items: make(map[string]*list.Element), order: list.New()}
	c := newCache(lru)
	defer c.Close()

	stale := Entry{
		SchemaVersion: finding.SchemaVersion - 1,
		Result:        finding.NewSkippedResult("a", "x", finding.AgentMetrics{}),
	}
	require.NoError(t, lru.set(context.Background(), "stale-key", stale))

	_, found, err := c.Get(context.Background(), "stale-key")
	require.NoError(t, err)
	assert.False(t, found)
}
