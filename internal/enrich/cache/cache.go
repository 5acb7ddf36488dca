package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Cache provides in-memory caching with TTL and request collapsing (singleflight).
type Cache[V any] struct {
	mu       sync.RWMutex
	entries  map[string]*cacheEntry[V]
	ttl      time.Duration
	inflight map[string]*inflightRequest[V]
	done     chan struct{}
}

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

type inflightRequest[V any] struct {
	done  chan struct{}
	value V
	err   error
}

// New creates a new Cache with the specified TTL.
func New[V any](ttl time.Duration) *Cache[V] {
	c := &Cache[V]{
		entries:  make(map[string]*cacheEntry[V]),
		ttl:      ttl,
		inflight: make(map[string]*inflightRequest[V]),
		done:     make(chan struct{}),
	}

	// Start background cleanup
	go c.cleanup()

	return c
}

// Close stops the background cleanup goroutine.
func (c *Cache[V]) Close() {
	close(c.done)
}

// Key generates a cache key identifying one package lookup.
func Key(availToken, budgetID, hotelCode, providerCode string) string {
	return strings.Join([]string{availToken, budgetID, hotelCode, providerCode}, ":")
}

// GetOrFetch retrieves from cache or executes the fetch function.
// Concurrent requests for the same key are collapsed (singleflight pattern).
// Only successful fetches are cached. Returns the value and a boolean
// indicating if it was a cache hit.
func (c *Cache[V]) GetOrFetch(ctx context.Context, key string, fetch func() (V, error)) (V, bool, error) {
	var zero V
	c.mu.Lock()

	if entry, ok := c.entries[key]; ok && time.Now().Before(entry.expiresAt) {
		c.mu.Unlock()
		return entry.value, true, nil
	}

	// Wait for an identical lookup already in flight
	if inflight, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		select {
		case <-inflight.done:
			return inflight.value, false, inflight.err
		case <-ctx.Done():
			return zero, false, context.Cause(ctx)
		}
	}

	inflight := &inflightRequest[V]{
		done: make(chan struct{}),
	}
	c.inflight[key] = inflight
	c.mu.Unlock()

	value, err := fetch()

	c.mu.Lock()
	inflight.value = value
	inflight.err = err
	if err == nil {
		c.entries[key] = &cacheEntry[V]{
			value:     value,
			expiresAt: time.Now().Add(c.ttl),
		}
	}
	delete(c.inflight, key)
	c.mu.Unlock()

	close(inflight.done)

	return value, false, err
}

// cleanup periodically removes expired entries.
func (c *Cache[V]) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.evict(time.Now())
		case <-c.done:
			return
		}
	}
}

func (c *Cache[V]) evict(now time.Time) {
	c.mu.Lock()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}
