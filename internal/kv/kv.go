// Package kv provides the flat key/value collaborator that violation
// records and their index are persisted in.
package kv

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

var (
	// ErrNotFound is returned by Get when the key has no value
	ErrNotFound = errors.New("kv: key not found")

	// ErrConflict is returned by Update when optimistic retries are exhausted
	ErrConflict = errors.New("kv: concurrent update conflict")
)

// maxUpdateAttempts bounds optimistic read-modify-write retries
const maxUpdateAttempts = 16

// Store defines the key/value operations every backend supports.
// None of them span more than one key.
type Store interface {
	// Get returns the value for key or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Put writes value under key, replacing any previous value
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases connections or files held by the backend
	Close() error
}

// UpdateFunc computes the replacement for a key's current value. current is
// nil when exists is false. It may run more than once per Update call and
// must not have side effects.
type UpdateFunc func(current []byte, exists bool) ([]byte, error)

// Updater is implemented by backends that can apply a read-modify-write to a
// single key atomically with respect to other Update calls.
type Updater interface {
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

// backoff sleeps up to attempt+1 milliseconds before the next optimistic
// retry so that colliding writers spread out
func backoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(time.Duration(rand.Int64N(int64(attempt)+1)+1) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// clone copies b so callers never alias backend memory
func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
