package kv

import (
	"context"
	"errors"
	"sync"
)

// Layered serves reads from memory and keeps disk as the durable copy.
// Writes go to disk first so memory never holds a value disk does not.
type Layered struct {
	memory *Memory
	disk   *Disk
	mu     sync.Mutex
}

// NewLayered creates a memory-over-disk backend rooted at dir
func NewLayered(dir string) (*Layered, error) {
	disk, err := NewDisk(dir)
	if err != nil {
		return nil, err
	}
	return &Layered{
		memory: NewMemory(),
		disk:   disk,
	}, nil
}

// Get checks memory first, then disk, promoting disk hits
func (l *Layered) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := l.memory.Get(ctx, key)
	if err == nil {
		return val, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// Promotion must not race a Delete or Put of the same key
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.get(ctx, key)
}

// get reads through to disk. Callers hold l.mu.
func (l *Layered) get(ctx context.Context, key string) ([]byte, error) {
	val, err := l.memory.Get(ctx, key)
	if err == nil {
		return val, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	val, err = l.disk.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := l.memory.Put(ctx, key, val); err != nil {
		return nil, err
	}
	return val, nil
}

// Put stores the value on disk, then in memory
func (l *Layered) Put(ctx context.Context, key string, value []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.put(ctx, key, value)
}

// Delete removes the value from both layers
func (l *Layered) Delete(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.disk.Delete(ctx, key); err != nil {
		return err
	}
	return l.memory.Delete(ctx, key)
}

// Update applies fn under the layer lock
func (l *Layered) Update(ctx context.Context, key string, fn UpdateFunc) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, err := l.get(ctx, key)
	exists := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	next, err := fn(current, exists)
	if err != nil {
		return err
	}
	return l.put(ctx, key, next)
}

// Close closes both layers
func (l *Layered) Close() error {
	return errors.Join(l.memory.Close(), l.disk.Close())
}

func (l *Layered) put(ctx context.Context, key string, value []byte) error {
	if err := l.disk.Put(ctx, key, value); err != nil {
		return err
	}
	return l.memory.Put(ctx, key, value)
}
