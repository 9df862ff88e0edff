package worker

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// idleTTL is how long an unused client limiter is kept
const idleTTL = 10 * time.Minute

// Limiter is a token bucket per client key. A limiter created with a
// non-positive rate allows everything.
type Limiter struct {
	limiters     *cache.Cache
	mu           sync.Mutex
	defaultRate  rate.Limit
	defaultBurst int
	disabled     bool
}

// NewLimiter creates a per-client limiter
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}

	return &Limiter{
		limiters:     cache.New(idleTTL, time.Minute),
		defaultRate:  rate.Limit(requestsPerSecond),
		defaultBurst: burst,
		disabled:     requestsPerSecond <= 0,
	}
}

// Allow reports whether the client may proceed now, consuming a token
func (l *Limiter) Allow(key string) bool {
	if l.disabled {
		return true
	}
	return l.getLimiter(key).Allow()
}

// Wait blocks until the client has a token or ctx ends
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if l.disabled {
		return nil
	}
	return l.getLimiter(key).Wait(ctx)
}

// getLimiter returns the client's limiter, creating it on first use. Each
// access refreshes the idle expiry.
func (l *Limiter) getLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.limiters.Get(key); ok {
		limiter := v.(*rate.Limiter)
		l.limiters.SetDefault(key, limiter)
		return limiter
	}

	limiter := rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters.SetDefault(key, limiter)
	return limiter
}

// Clients returns how many clients currently have a limiter
func (l *Limiter) Clients() int {
	return l.limiters.ItemCount()
}
