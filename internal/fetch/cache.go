package fetch

import (
	"strings"
	"sync"
	"time"
)

// Cache keeps successful fetch results per endpoint for a short TTL.
// A nil *Cache or a non-positive TTL caches nothing.
type Cache struct {
	mu   sync.RWMutex
	data map[string]cacheEntry
	ttl  time.Duration
	now  func() time.Time
}

type cacheEntry struct {
	result  Result
	expires time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{data: make(map[string]cacheEntry), ttl: ttl, now: time.Now}
}

// SetClock replaces the time source (tests).
func (c *Cache) SetClock(now func() time.Time) {
	if c == nil || now == nil {
		return
	}
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *Cache) Enabled() bool {
	return c != nil && c.ttl > 0
}

func (c *Cache) Get(endpoint string) (Result, bool) {
	if !c.Enabled() {
		return Result{}, false
	}
	key := normalizeKey(endpoint)
	c.mu.RLock()
	entry, ok := c.data[key]
	now := c.now()
	c.mu.RUnlock()
	if !ok {
		return Result{}, false
	}
	if !now.Before(entry.expires) {
		c.mu.Lock()
		if cur, still := c.data[key]; still && !now.Before(cur.expires) {
			delete(c.data, key)
		}
		c.mu.Unlock()
		return Result{}, false
	}
	return entry.result, true
}

// Set stores successful results only.
func (c *Cache) Set(endpoint string, res Result) {
	if !c.Enabled() || !res.OK() {
		return
	}
	key := normalizeKey(endpoint)
	if key == "" {
		return
	}
	c.mu.Lock()
	c.data[key] = cacheEntry{result: res, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Invalidate drops one endpoint, or everything when endpoint is empty.
// It returns the number of dropped entries.
func (c *Cache) Invalidate(endpoint string) int {
	if c == nil {
		return 0
	}
	key := normalizeKey(endpoint)
	c.mu.Lock()
	defer c.mu.Unlock()
	if key == "" {
		n := len(c.data)
		c.data = make(map[string]cacheEntry)
		return n
	}
	if _, ok := c.data[key]; ok {
		delete(c.data, key)
		return 1
	}
	return 0
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

func normalizeKey(endpoint string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(endpoint), "/"))
}
