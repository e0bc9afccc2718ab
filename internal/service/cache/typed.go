package cache

import (
	"sync"
	"time"

	"PairScan/internal/domain/models"
)

// VolumeCache holds 24h quote volumes per instrument. Entries are never
// evicted: daily volume drifts slowly and each refresh costs API budget, so
// entries are only written when a requested symbol is absent.
type VolumeCache struct {
	mu sync.RWMutex
	m  map[string]float64
}

func NewVolumeCache() *VolumeCache {
	return &VolumeCache{m: make(map[string]float64)}
}

func (c *VolumeCache) Get(symbol string) (float64, bool) {
	c.mu.RLock()
	v, ok := c.m[symbol]
	c.mu.RUnlock()
	return v, ok
}

func (c *VolumeCache) Set(symbol string, volume float64) {
	c.mu.Lock()
	c.m[symbol] = volume
	c.mu.Unlock()
}

func (c *VolumeCache) SetMany(volumes map[string]float64) {
	c.mu.Lock()
	for s, v := range volumes {
		c.m[s] = v
	}
	c.mu.Unlock()
}

func (c *VolumeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// MaturityCache holds per-instrument age estimates with a TTL.
type MaturityCache struct {
	ttl   time.Duration
	inner *TTLCache
}

func NewMaturityCache(ttl time.Duration) *MaturityCache {
	return &MaturityCache{ttl: ttl, inner: NewTTLCache()}
}

func (c *MaturityCache) Get(symbol string) (models.MaturityInfo, bool) {
	v, ok := c.inner.Get(symbol)
	if !ok {
		return models.MaturityInfo{}, false
	}
	info, ok := v.(models.MaturityInfo)
	return info, ok
}

func (c *MaturityCache) Set(symbol string, info models.MaturityInfo) {
	c.inner.Set(symbol, info, c.ttl)
}

// ResultCache holds the outcome of the last full filter run. Downstream
// acquisition calls the filter every few seconds; within the TTL the whole
// pipeline is short-circuited.
type ResultCache struct {
	ttl   time.Duration
	mu    sync.Mutex
	value *models.FilterOutcome
	exp   time.Time
}

func NewResultCache(ttl time.Duration) *ResultCache {
	return &ResultCache{ttl: ttl}
}

func (c *ResultCache) Get() (*models.FilterOutcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value == nil || time.Now().After(c.exp) {
		return nil, false
	}
	return c.value, true
}

func (c *ResultCache) Set(v *models.FilterOutcome) {
	c.mu.Lock()
	c.value = v
	c.exp = time.Now().Add(c.ttl)
	c.mu.Unlock()
}

func (c *ResultCache) Invalidate() {
	c.mu.Lock()
	c.value = nil
	c.mu.Unlock()
}
