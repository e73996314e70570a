package trainings

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "trainings:"

// RedisCache stores snippets as a JSON array under trainings:<call_id>.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, callID string) ([]string, error) {
	raw, err := c.client.Get(ctx, cacheKeyPrefix+callID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snippets []string
	if err := json.Unmarshal(raw, &snippets); err != nil {
		return nil, fmt.Errorf("invalid cached trainings: %w", err)
	}
	return snippets, nil
}

func (c *RedisCache) Set(ctx context.Context, callID string, snippets []string) error {
	raw, err := json.Marshal(snippets)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKeyPrefix+callID, raw, c.ttl).Err()
}

type memoryEntry struct {
	snippets []string
	expires  time.Time
}

// MemoryCache is the single instance fallback of RedisCache.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) Get(_ context.Context, callID string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[callID]
	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expires) {
		delete(c.entries, callID)
		return nil, nil
	}
	return append([]string(nil), entry.snippets...), nil
}

func (c *MemoryCache) Set(_ context.Context, callID string, snippets []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[callID] = memoryEntry{
		snippets: append([]string(nil), snippets...),
		expires:  time.Now().Add(c.ttl),
	}
	return nil
}
