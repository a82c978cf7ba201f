package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// Config configures a RequestCache.
type Config struct {
	// MaxEntries bounds the number of live entries. When an insert pushes
	// the cache over this bound, least-recently-used entries are evicted.
	// A value of 0 disables storage entirely (Set becomes a no-op).
	MaxEntries int

	// DefaultTTL is the TTL applied by SetDefault.
	// Default: 5 minutes
	DefaultTTL time.Duration

	// Now supplies the current time. Used by tests to simulate expiry.
	// Default: time.Now
	Now func() time.Time
}

// RequestCache is a bounded key→value store with TTL and LRU eviction.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Expiry: an entry older than its TTL is logically absent even while
//   physically present; Get removes it and reports a miss.
// - Recency: a Get hit moves the entry to the most-recently-used position.
type RequestCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // front = most recently used
	maxEntries int
	defaultTTL time.Duration
	now        func() time.Time
}

type entry struct {
	key      string
	value    []byte
	storedAt time.Time
	ttl      time.Duration
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.storedAt) >= e.ttl
}

// New creates a new RequestCache with the given configuration.
func New(cfg Config) *RequestCache {
	if cfg.MaxEntries < 0 {
		cfg.MaxEntries = 0
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &RequestCache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: cfg.MaxEntries,
		defaultTTL: cfg.DefaultTTL,
		now:        cfg.Now,
	}
}

// Get retrieves a value. Returns (nil, false) on miss or expiry.
// A hit updates the entry's recency order.
func (c *RequestCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	ent := elem.Value.(*entry)
	if ent.expired(c.now()) {
		c.removeLocked(elem)
		return nil, false
	}

	c.order.MoveToFront(elem)
	return ent.value, true
}

// Set stores a value with the given TTL, replacing any existing entry
// wholesale. A ttl <= 0 stores an already-expired entry (effectively
// "never cache"). When the cache has no capacity, Set is a no-op.
func (c *RequestCache) Set(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxEntries == 0 {
		return
	}

	ent := &entry{
		key:      key,
		value:    value,
		storedAt: c.now(),
		ttl:      ttl,
	}

	if elem, ok := c.entries[key]; ok {
		elem.Value = ent
		c.order.MoveToFront(elem)
		return
	}

	c.entries[key] = c.order.PushFront(ent)

	// One eviction per overflow event, repeated while still over capacity.
	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
	}
}

// SetDefault stores a value with the configured default TTL.
func (c *RequestCache) SetDefault(key string, value []byte) {
	c.Set(key, value, c.defaultTTL)
}

// Delete removes an entry. Returns true if an entry existed.
func (c *RequestCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeLocked(elem)
	return true
}

// InvalidateByPrefix deletes every key containing pattern as a substring
// and returns the number of entries removed. Used to bust cached reads
// after a mutating call.
func (c *RequestCache) InvalidateByPrefix(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, elem := range c.entries {
		if strings.Contains(key, pattern) {
			c.removeLocked(elem)
			removed++
		}
	}
	return removed
}

// Len returns the number of physically present entries, expired or not.
func (c *RequestCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// DefaultTTL returns the configured default TTL.
func (c *RequestCache) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// sweep removes all expired entries and returns how many were removed.
func (c *RequestCache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for _, elem := range c.entries {
		if elem.Value.(*entry).expired(now) {
			c.removeLocked(elem)
			removed++
		}
	}
	return removed
}

func (c *RequestCache) removeLocked(elem *list.Element) {
	ent := elem.Value.(*entry)
	c.order.Remove(elem)
	delete(c.entries, ent.key)
}
