// Package dedupe holds the short-lived message id cache used to collapse
// retried webhook deliveries of the same SMS.
package dedupe

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultTTL is how long a message id is remembered.
	DefaultTTL = 30 * time.Second

	// DefaultMaxEntries bounds the cache; the oldest id is evicted past it.
	DefaultMaxEntries = 10000
)

// Cache is a bounded, time-indexed set of recently seen ids. It lives in
// process memory only, so a restart forgets everything.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	now     func() time.Time
	expires map[string]time.Time
	order   []string
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithMaxEntries sets the size bound.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.max = n
		}
	}
}

// New creates a cache whose entries expire after ttl.
func New(ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		ttl:     ttl,
		max:     DefaultMaxEntries,
		now:     time.Now,
		expires: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Seen reports whether id was recorded within the TTL and records it if not.
// The check and the insert happen under one lock.
func (c *Cache) Seen(id string) bool {
	if id == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweepLocked(now)

	if exp, ok := c.expires[id]; ok && now.Before(exp) {
		return true
	}

	c.expires[id] = now.Add(c.ttl)
	c.order = append(c.order, id)
	for len(c.expires) > c.max && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.expires, oldest)
	}
	return false
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked(c.now())
	return len(c.expires)
}

// Sweep drops expired entries.
func (c *Cache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked(c.now())
}

// Run sweeps every interval until ctx is done.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = c.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// sweepLocked walks the insertion order, which is also expiry order since
// every entry gets the same TTL.
func (c *Cache) sweepLocked(now time.Time) {
	i := 0
	for ; i < len(c.order); i++ {
		id := c.order[i]
		exp, ok := c.expires[id]
		if ok && now.Before(exp) {
			break
		}
		if ok {
			delete(c.expires, id)
		}
	}
	if i > 0 {
		c.order = c.order[i:]
	}
}
