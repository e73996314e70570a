package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type acquirer interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

func newRedisLock(t *testing.T) *RedisLock {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLock(client, time.Second)
}

func lockers(t *testing.T) map[string]acquirer {
	return map[string]acquirer{
		"memory": NewKeyedMutex(),
		"redis":  newRedisLock(t),
	}
}

func TestLock_SerializesSameKey(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var mu sync.Mutex
			inside := 0
			maxInside := 0

			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					release, err := l.Acquire(ctx, "call:1")
					if err != nil {
						t.Errorf("Acquire() error = %v", err)
						return
					}
					mu.Lock()
					inside++
					if inside > maxInside {
						maxInside = inside
					}
					mu.Unlock()
					time.Sleep(2 * time.Millisecond)
					mu.Lock()
					inside--
					mu.Unlock()
					release()
				}()
			}
			wg.Wait()

			if maxInside != 1 {
				t.Errorf("max concurrent holders = %d, want 1", maxInside)
			}
		})
	}
}

func TestLock_DifferentKeysDoNotBlock(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			release1, err := l.Acquire(ctx, "call:a")
			if err != nil {
				t.Fatalf("Acquire(a) error = %v", err)
			}
			defer release1()

			release2, err := l.Acquire(ctx, "call:b")
			if err != nil {
				t.Fatalf("Acquire(b) error = %v, want nil", err)
			}
			release2()
		})
	}
}

func TestLock_AcquireHonoursContext(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			release, err := l.Acquire(context.Background(), "call:held")
			if err != nil {
				t.Fatalf("Acquire() error = %v", err)
			}
			defer release()

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			if _, err := l.Acquire(ctx, "call:held"); err == nil {
				t.Error("Acquire() on held key expected error, got nil")
			}
		})
	}
}

func TestKeyedMutex_DropsReleasedEntries(t *testing.T) {
	m := NewKeyedMutex()
	release, err := m.Acquire(context.Background(), "call:x")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
	release()
	release()
	if m.Len() != 0 {
		t.Errorf("Len() after release = %d, want 0", m.Len())
	}
}

func TestRedisLock_ExtendsWhileHeld(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	l := NewRedisLock(client, 300*time.Millisecond)

	release, err := l.Acquire(context.Background(), "call:busy")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	// Consume most of the TTL, let the holder refresh it, then go past the
	// original expiry.
	mr.FastForward(200 * time.Millisecond)
	time.Sleep(250 * time.Millisecond)
	mr.FastForward(200 * time.Millisecond)

	if !mr.Exists("lock:call:busy") {
		t.Fatal("lock expired while still held")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, "call:busy"); err == nil {
		t.Error("second Acquire() while held expected error, got nil")
	}

	release()
	if mr.Exists("lock:call:busy") {
		t.Error("lock still present after release")
	}
}

func TestRedisLock_StopsExtendingAfterLoss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	l := NewRedisLock(client, 300*time.Millisecond)

	release, err := l.Acquire(context.Background(), "call:lost")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer release()

	// Another holder took over after an expiry.
	mr.Set("lock:call:lost", "other")
	time.Sleep(250 * time.Millisecond)

	if got, _ := mr.Get("lock:call:lost"); got != "other" {
		t.Errorf("lock value = %q, want other holder kept", got)
	}
	if ttl := mr.TTL("lock:call:lost"); ttl != 0 {
		t.Errorf("TTL of other holder's key = %v, want untouched (0)", ttl)
	}
}
