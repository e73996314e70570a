// Package jobs moves ended calls to the background workers.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue names.
const (
	QueueTrainings = "trainings"
	QueuePost      = "post"
)

const queueKeyPrefix = "queue:"

// ErrFull is returned by MemoryQueue.Push when the buffer is exhausted.
var ErrFull = errors.New("queue is full")

// Queue is a FIFO of serialized call states.
type Queue interface {
	Name() string
	Push(ctx context.Context, payload []byte) error
	// Pop waits up to wait for a message. It reports false when none arrived.
	Pop(ctx context.Context, wait time.Duration) ([]byte, bool, error)
}

// RedisQueue is a Redis list: producers LPUSH, consumers BRPOP.
type RedisQueue struct {
	client *redis.Client
	name   string
}

func NewRedisQueue(client *redis.Client, name string) *RedisQueue {
	return &RedisQueue{client: client, name: name}
}

func (q *RedisQueue) Name() string {
	return q.name
}

func (q *RedisQueue) Push(ctx context.Context, payload []byte) error {
	if err := q.client.LPush(ctx, queueKeyPrefix+q.name, payload).Err(); err != nil {
		return fmt.Errorf("failed to push to %s: %w", q.name, err)
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context, wait time.Duration) ([]byte, bool, error) {
	res, err := q.client.BRPop(ctx, wait, queueKeyPrefix+q.name).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to pop from %s: %w", q.name, err)
	}
	// BRPOP replies with [key, value]
	if len(res) != 2 {
		return nil, false, fmt.Errorf("unexpected reply from %s: %v", q.name, res)
	}
	return []byte(res[1]), true, nil
}

// MemoryQueue is a bounded in-process queue for single instance deployments.
type MemoryQueue struct {
	name     string
	messages chan []byte
}

func NewMemoryQueue(name string, size int) *MemoryQueue {
	if size <= 0 {
		size = 1024
	}
	return &MemoryQueue{name: name, messages: make(chan []byte, size)}
}

func (q *MemoryQueue) Name() string {
	return q.name
}

func (q *MemoryQueue) Push(_ context.Context, payload []byte) error {
	select {
	case q.messages <- payload:
		return nil
	default:
		return fmt.Errorf("failed to push to %s: %w", q.name, ErrFull)
	}
}

func (q *MemoryQueue) Pop(ctx context.Context, wait time.Duration) ([]byte, bool, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case payload := <-q.messages:
		return payload, true, nil
	case <-timer.C:
		return nil, false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}
