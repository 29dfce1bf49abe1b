package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisClient is the subset of *redis.Client this package depends on,
// so tests can supply a fake without a live server.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type redisBackend struct {
	client redisClient
	ttl    time.Duration
}

// NewRedis creates a Cache backed by an existing go-redis client.
// Entries expire after ttl (0 disables expiry, relying entirely on
// schema-version invalidation and Redis's own eviction policy).
func NewRedis(client *redis.Client, ttl time.Duration) *Cache {
	return newCache(&redisBackend{client: client, ttl: ttl})
}

func (b *redisBackend) get(ctx context.Context, key string) (Entry, bool, error) {
	raw, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

func (b *redisBackend) set(ctx context.Context, key string, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return b.client.Set(ctx, key, raw, b.ttl).Err()
}
