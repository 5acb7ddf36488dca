package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type details struct {
	Description string
}

func TestKey(t *testing.T) {
	tests := []struct {
		name         string
		availToken   string
		budgetID     string
		hotelCode    string
		providerCode string
		want         string
	}{
		{
			name:         "all parts",
			availToken:   "tok",
			budgetID:     "B1",
			hotelCode:    "H1",
			providerCode: "P1",
			want:         "tok:B1:H1:P1",
		},
		{
			name:         "missing token",
			budgetID:     "B1",
			hotelCode:    "H1",
			providerCode: "P1",
			want:         ":B1:H1:P1",
		},
		{
			name: "empty",
			want: ":::",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Key(tt.availToken, tt.budgetID, tt.hotelCode, tt.providerCode)
			if got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCache_GetOrFetch(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(c *Cache[details])
		key       string
		fetchFunc func() (details, error)
		want      string
		wantHit   bool
		wantErr   bool
	}{
		{
			name:  "cache miss - successful fetch",
			setup: func(c *Cache[details]) {},
			key:   "miss",
			fetchFunc: func() (details, error) {
				return details{Description: "fresh"}, nil
			},
			want: "fresh",
		},
		{
			name: "cache hit - returns cached value",
			setup: func(c *Cache[details]) {
				c.mu.Lock()
				c.entries["cached"] = &cacheEntry[details]{
					value:     details{Description: "cached"},
					expiresAt: time.Now().Add(time.Minute),
				}
				c.mu.Unlock()
			},
			key: "cached",
			fetchFunc: func() (details, error) {
				t.Error("fetch should not be called for cached entry")
				return details{}, nil
			},
			want:    "cached",
			wantHit: true,
		},
		{
			name:  "fetch error - not cached",
			setup: func(c *Cache[details]) {},
			key:   "error",
			fetchFunc: func() (details, error) {
				return details{}, errors.New("fetch failed")
			},
			wantErr: true,
		},
		{
			name: "expired entry - refetches",
			setup: func(c *Cache[details]) {
				c.mu.Lock()
				c.entries["expired"] = &cacheEntry[details]{
					value:     details{Description: "stale"},
					expiresAt: time.Now().Add(-time.Minute),
				}
				c.mu.Unlock()
			},
			key: "expired",
			fetchFunc: func() (details, error) {
				return details{Description: "refreshed"}, nil
			},
			want: "refreshed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := New[details](time.Minute)
			defer cache.Close()

			tt.setup(cache)

			got, hit, err := cache.GetOrFetch(context.Background(), tt.key, tt.fetchFunc)

			if (err != nil) != tt.wantErr {
				t.Errorf("GetOrFetch() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if hit != tt.wantHit {
				t.Errorf("GetOrFetch() hit = %v, want %v", hit, tt.wantHit)
			}
			if got.Description != tt.want {
				t.Errorf("GetOrFetch() = %q, want %q", got.Description, tt.want)
			}
		})
	}
}

func TestCache_GetOrFetch_ContextCancellation(t *testing.T) {
	cache := New[details](time.Minute)
	defer cache.Close()

	ctx, cancel := context.WithCancel(context.Background())

	fetchStarted := make(chan struct{})
	fetchDone := make(chan struct{})

	go func() {
		_, _, _ = cache.GetOrFetch(context.Background(), "slow", func() (details, error) {
			close(fetchStarted)
			<-fetchDone
			return details{Description: "slow"}, nil
		})
	}()

	<-fetchStarted
	cancel()

	_, _, err := cache.GetOrFetch(ctx, "slow", func() (details, error) {
		t.Error("fetch should not be called - should wait for inflight")
		return details{}, nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	close(fetchDone)
}

func TestCache_GetOrFetch_Singleflight(t *testing.T) {
	cache := New[details](time.Minute)
	defer cache.Close()

	var fetchCount atomic.Int32
	fetchStarted := make(chan struct{})
	fetchContinue := make(chan struct{})

	var wg sync.WaitGroup
	const numGoroutines = 10

	for range numGoroutines {
		wg.Go(func() {
			got, _, err := cache.GetOrFetch(context.Background(), "shared", func() (details, error) {
				if fetchCount.Add(1) == 1 {
					close(fetchStarted)
					<-fetchContinue
				}
				return details{Description: "shared"}, nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if got.Description != "shared" {
				t.Errorf("unexpected result: %v", got)
			}
		})
	}

	<-fetchStarted
	close(fetchContinue)
	wg.Wait()

	if count := fetchCount.Load(); count != 1 {
		t.Errorf("fetch called %d times, expected 1 (singleflight)", count)
	}
}

func TestCache_ErrorNotCached(t *testing.T) {
	cache := New[details](time.Minute)
	defer cache.Close()

	fetchErr := errors.New("temporary error")
	callCount := 0

	_, hit, err := cache.GetOrFetch(context.Background(), "error", func() (details, error) {
		callCount++
		return details{}, fetchErr
	})
	if err != fetchErr {
		t.Errorf("expected fetchErr, got %v", err)
	}
	if hit {
		t.Error("expected cache miss on error, got hit")
	}

	got, hit, err := cache.GetOrFetch(context.Background(), "error", func() (details, error) {
		callCount++
		return details{Description: "ok"}, nil
	})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if got.Description != "ok" {
		t.Errorf("unexpected result: %v", got)
	}
	if hit {
		t.Error("expected cache miss, got hit")
	}
	if callCount != 2 {
		t.Errorf("fetch called %d times, expected 2", callCount)
	}
}

func TestCache_Evict(t *testing.T) {
	cache := New[details](time.Minute)
	defer cache.Close()

	cache.mu.Lock()
	cache.entries["live"] = &cacheEntry[details]{expiresAt: time.Now().Add(time.Minute)}
	cache.entries["dead"] = &cacheEntry[details]{expiresAt: time.Now().Add(-time.Minute)}
	cache.mu.Unlock()

	cache.evict(time.Now())

	cache.mu.RLock()
	defer cache.mu.RUnlock()
	if n := len(cache.entries); n != 1 {
		t.Fatalf("cache has %d entries, want 1", n)
	}
	if _, ok := cache.entries["live"]; !ok {
		t.Error("expected live entry to survive")
	}
}
