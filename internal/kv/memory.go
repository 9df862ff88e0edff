package kv

import (
	"context"
	"sort"
	"sync"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is a process-local backend built on go-cache with expiry disabled.
// It is the default for development and the backend used by tests.
type Memory struct {
	cache *gocache.Cache
	mu    sync.Mutex
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		// No default expiration and no janitor goroutine
		cache: gocache.New(gocache.NoExpiration, 0),
	}
}

// Get retrieves a value
func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	val, found := m.cache.Get(key)
	if !found {
		return nil, ErrNotFound
	}
	return clone(val.([]byte)), nil
}

// Put stores a value
func (m *Memory) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Set(key, clone(value), gocache.NoExpiration)
	return nil
}

// Delete removes a value
func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Delete(key)
	return nil
}

// Update applies fn under the store mutex
func (m *Memory) Update(ctx context.Context, key string, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var current []byte
	val, exists := m.cache.Get(key)
	if exists {
		current = clone(val.([]byte))
	}

	next, err := fn(current, exists)
	if err != nil {
		return err
	}
	m.cache.Set(key, clone(next), gocache.NoExpiration)
	return nil
}

// Keys returns every stored key in sorted order
func (m *Memory) Keys() []string {
	items := m.cache.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close is a no-op
func (m *Memory) Close() error {
	return nil
}
