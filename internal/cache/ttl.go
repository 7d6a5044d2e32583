// Package cache provides a small TTL store used to memoize short-lived
// metadata responses. Entries expire through a timer scheduled on Put and are
// also evicted lazily when Get observes a passed deadline. There is no size
// bound.
package cache

import (
	"sync"
	"time"
)

// DefaultTTL is used when New is given a non-positive default.
const DefaultTTL = 5 * time.Minute

type entry[V any] struct {
	value    V
	expireAt time.Time
	timer    *time.Timer
}

// TTL is a key/value store with per-entry expiry.
type TTL[K comparable, V any] struct {
	mu         sync.Mutex
	entries    map[K]*entry[V]
	defaultTTL time.Duration
	now        func() time.Time
}

// Option configures a TTL cache.
type Option[K comparable, V any] func(*TTL[K, V])

// WithClock overrides the time source used for lazy expiry checks.
func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *TTL[K, V]) {
		c.now = now
	}
}

// New creates a cache whose entries live for defaultTTL unless Put is given
// an explicit ttl.
func New[K comparable, V any](defaultTTL time.Duration, opts ...Option[K, V]) *TTL[K, V] {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	c := &TTL[K, V]{
		entries:    make(map[K]*entry[V]),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Put stores value under key. A ttl of zero uses the default. Overwriting a
// key cancels the previous expiry timer.
func (c *TTL[K, V]) Put(key K, value V, ttl ...time.Duration) {
	d := c.defaultTTL
	if len(ttl) > 0 && ttl[0] > 0 {
		d = ttl[0]
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		old.timer.Stop()
	}

	e := &entry[V]{
		value:    value,
		expireAt: c.now().Add(d),
	}
	e.timer = time.AfterFunc(d, func() {
		c.expire(key, e)
	})
	c.entries[key] = e
}

// Get returns the value for key if present and not expired.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if !c.now().Before(e.expireAt) {
		e.timer.Stop()
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

// Del removes key and cancels its timer. Deleting a missing key is a no-op.
func (c *TTL[K, V]) Del(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.timer.Stop()
		delete(c.entries, key)
	}
}

// DelFunc removes every entry whose key matches pred.
func (c *TTL[K, V]) DelFunc(pred func(K) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if pred(k) {
			e.timer.Stop()
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear removes all entries and stops their timers.
func (c *TTL[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.entries {
		e.timer.Stop()
		delete(c.entries, k)
	}
}

// expire runs on the entry's timer. The entry is only removed if it has not
// been replaced since the timer was scheduled.
func (c *TTL[K, V]) expire(key K, e *entry[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.entries[key]; ok && cur == e {
		delete(c.entries, key)
	}
}
