// Package cache provides the in-memory key-value backing store used by
// the metadata trust store and the correlation store. A distributed store
// can replace it behind the same port; the core only relies on the
// per-key read-then-consume atomicity guaranteed here.
package cache

import (
	"sync"
	"time"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/ports"
)

// Clock abstracts time for testing.
type Clock interface {
	Now() time.Time
}

// RealClock uses the system time.
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time { return time.Now() }

type entry struct {
	value   []byte
	expires time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// InMemoryCache is a concurrent-safe map with per-entry TTL. Expired
// entries read as absent; they are dropped lazily on access and by an
// optional cleanup goroutine.
type InMemoryCache struct {
	mu      sync.Mutex
	entries map[string]entry
	clock   Clock

	stopCh chan struct{}
	closed bool
}

// Option configures an InMemoryCache.
type Option func(*InMemoryCache)

// WithClock overrides the time source, for tests.
func WithClock(c Clock) Option {
	return func(ic *InMemoryCache) { ic.clock = c }
}

// New returns an empty cache.
func New(opts ...Option) *InMemoryCache {
	c := &InMemoryCache{
		entries: make(map[string]entry),
		clock:   RealClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewWithCleanup returns a cache that drops expired entries every
// interval. Call Close to stop the goroutine.
func NewWithCleanup(interval time.Duration, opts ...Option) *InMemoryCache {
	c := New(opts...)
	c.stopCh = make(chan struct{})
	go c.cleanupLoop(interval)
	return c
}

func (c *InMemoryCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.dropExpired()
		case <-c.stopCh:
			return
		}
	}
}

func (c *InMemoryCache) dropExpired() {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
		}
	}
}

// Close stops the cleanup goroutine if running. Idempotent.
func (c *InMemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopCh != nil && !c.closed {
		close(c.stopCh)
		c.closed = true
	}
	return nil
}

// Get returns the value for key, or false if absent or expired.
func (c *InMemoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(c.clock.Now()) {
		delete(c.entries, key)
		return nil, false
	}
	return append([]byte(nil), e.value...), true
}

// Put stores value under key. A zero ttl means no expiry.
func (c *InMemoryCache) Put(key string, value []byte, ttl time.Duration) {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = c.clock.Now().Add(ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = e
}

// Remove deletes key if present.
func (c *InMemoryCache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// TakeAndRemove atomically reads and removes key. The single mutex makes
// the read-then-delete indivisible: once one caller takes an entry, every
// later caller observes absence. Replay rejection is built on exactly
// this property.
func (c *InMemoryCache) TakeAndRemove(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	delete(c.entries, key)
	if e.expired(c.clock.Now()) {
		return nil, false
	}
	return e.value, true
}

// Clear removes all entries.
func (c *InMemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Len returns the number of live entries, for tests and health checks.
func (c *InMemoryCache) Len() int {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// Ensure InMemoryCache implements ports.KeyValueCache
var _ ports.KeyValueCache = (*InMemoryCache)(nil)
