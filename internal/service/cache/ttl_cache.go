package cache

import (
	"sync"
	"time"
)

type ttlEntry struct {
	value     any
	expiresAt int64 // unix nanos, 0 means no expiry
}

// TTLCache is a process-local cache with lazy per-key expiry. It backs the
// maturity cache and serves as the report response cache when Redis is off.
type TTLCache struct {
	mu      sync.RWMutex
	entries map[string]ttlEntry
}

func NewTTLCache() *TTLCache {
	return &TTLCache{entries: make(map[string]ttlEntry)}
}

func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if e.expiresAt != 0 && time.Now().UnixNano() > e.expiresAt {
		c.mu.Lock()
		// re-check under the write lock, the key may have been replaced
		if cur, ok := c.entries[key]; ok && cur.expiresAt == e.expiresAt {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores value under key; ttl <= 0 keeps the entry until overwritten.
func (c *TTLCache) Set(key string, value any, ttl time.Duration) {
	var exp int64
	if ttl > 0 {
		exp = time.Now().Add(ttl).UnixNano()
	}
	c.mu.Lock()
	c.entries[key] = ttlEntry{value: value, expiresAt: exp}
	c.mu.Unlock()
}

func (c *TTLCache) GetBytes(key string) ([]byte, bool, error) {
	v, ok := c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false, nil
	}
	return b, true, nil
}

func (c *TTLCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	c.Set(key, value, ttl)
	return nil
}

var _ BytesCache = (*TTLCache)(nil)
