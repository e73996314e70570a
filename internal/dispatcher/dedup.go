package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const dedupKeyPrefix = "events:seen:"

// Deduper remembers provider event ids. Seen reports whether id was already
// recorded and records it otherwise.
type Deduper interface {
	Seen(ctx context.Context, id string) (bool, error)
}

// MemoryDeduper keeps event ids in process memory until they expire.
type MemoryDeduper struct {
	mu        sync.Mutex
	ttl       time.Duration
	seen      map[string]time.Time
	lastSweep time.Time
	now       func() time.Time
}

func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	return &MemoryDeduper{ttl: ttl, seen: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryDeduper) Seen(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastSweep) > m.ttl {
		for k, expires := range m.seen {
			if now.After(expires) {
				delete(m.seen, k)
			}
		}
		m.lastSweep = now
	}

	if expires, ok := m.seen[id]; ok && now.Before(expires) {
		return true, nil
	}
	m.seen[id] = now.Add(m.ttl)
	return false, nil
}

// RedisDeduper records event ids with SET NX so that every replica agrees.
// The memory fallback is used while Redis is unreachable.
type RedisDeduper struct {
	client   *redis.Client
	ttl      time.Duration
	fallback *MemoryDeduper
	logger   *zap.Logger
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisDeduper {
	return &RedisDeduper{
		client:   client,
		ttl:      ttl,
		fallback: NewMemoryDeduper(ttl),
		logger:   logger,
	}
}

func (r *RedisDeduper) Seen(ctx context.Context, id string) (bool, error) {
	created, err := r.client.SetNX(ctx, dedupKeyPrefix+id, 1, r.ttl).Result()
	if err != nil {
		r.logger.Warn("Event dedup unavailable in Redis, using memory", zap.Error(err))
		return r.fallback.Seen(ctx, id)
	}
	return !created, nil
}
