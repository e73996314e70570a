package call

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound is returned by Mutate when the call does not exist.
var ErrNotFound = errors.New("call not found")

// Store persists call states. Get and SearchOne return (nil, nil) when
// nothing matches.
type Store interface {
	Get(ctx context.Context, callID string) (*State, error)
	Set(ctx context.Context, state *State) error
	SearchOne(ctx context.Context, phoneNumber string) (*State, error)
	SearchAll(ctx context.Context, phoneNumber string, limit int64) ([]State, int64, error)
	Ping(ctx context.Context) error
}

// Locker serializes work on one key. The returned function releases the lock.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// LockKey is the lock key used for all mutations of a call.
func LockKey(callID string) string {
	return "call:" + callID
}

// Mutate reads the latest version of a call under its lock, applies fn and
// persists the result. Nothing is written when fn returns an error.
func Mutate(ctx context.Context, locker Locker, store Store, callID string, fn func(*State) error) (*State, error) {
	release, err := locker.Acquire(ctx, LockKey(callID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock call %s: %w", callID, err)
	}
	defer release()

	state, err := store.Get(ctx, callID)
	if err != nil {
		return nil, fmt.Errorf("failed to load call %s: %w", callID, err)
	}
	if state == nil {
		return nil, ErrNotFound
	}
	if err := fn(state); err != nil {
		return nil, err
	}
	if err := store.Set(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to persist call %s: %w", callID, err)
	}
	return state, nil
}

// MemoryStore keeps calls in process memory. Values are copied on the way in
// and out so callers never share state with the store.
type MemoryStore struct {
	mu    sync.RWMutex
	calls map[string]*State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{calls: make(map[string]*State)}
}

func (m *MemoryStore) Get(_ context.Context, callID string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.calls[callID]
	if !ok {
		return nil, nil
	}
	return state.Clone(), nil
}

func (m *MemoryStore) Set(_ context.Context, state *State) error {
	if state == nil || state.CallID == "" {
		return errors.New("call id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[state.CallID] = state.Clone()
	return nil
}

func (m *MemoryStore) SearchOne(ctx context.Context, phoneNumber string) (*State, error) {
	calls, _, err := m.SearchAll(ctx, phoneNumber, 1)
	if err != nil || len(calls) == 0 {
		return nil, err
	}
	return &calls[0], nil
}

// SearchAll returns the most recent calls first. An empty phone number
// matches every call.
func (m *MemoryStore) SearchAll(_ context.Context, phoneNumber string, limit int64) ([]State, int64, error) {
	m.mu.RLock()
	matches := make([]State, 0, len(m.calls))
	for _, state := range m.calls {
		if phoneNumber == "" || state.Initiate.PhoneNumber == phoneNumber {
			matches = append(matches, *state.Clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	total := int64(len(matches))
	if limit > 0 && int64(len(matches)) > limit {
		matches = matches[:limit]
	}
	return matches, total, nil
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}
