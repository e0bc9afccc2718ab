package cache

import (
	"bytes"
	"testing"
	"time"

	"PairScan/internal/domain/models"
)

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache()

	c.Set("a", 1, 20*time.Millisecond)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("fresh entry: %v %v", v, ok)
	}

	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("entry survived its ttl")
	}
}

func TestTTLCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewTTLCache()
	c.Set("a", "forever", 0)
	time.Sleep(5 * time.Millisecond)
	if v, ok := c.Get("a"); !ok || v != "forever" {
		t.Fatalf("non-expiring entry lost: %v %v", v, ok)
	}
}

func TestTTLCacheBytes(t *testing.T) {
	c := NewTTLCache()
	if err := c.SetBytes("a", []byte("payload"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	b, ok, err := c.GetBytes("a")
	if err != nil || !ok || !bytes.Equal(b, []byte("payload")) {
		t.Fatalf("get: %q %v %v", b, ok, err)
	}
	if _, ok, _ := c.GetBytes("missing"); ok {
		t.Fatalf("hit on missing key")
	}
}

func TestVolumeCache(t *testing.T) {
	c := NewVolumeCache()
	if _, ok := c.Get("BTCUSDT"); ok {
		t.Fatalf("hit on empty cache")
	}

	c.Set("BTCUSDT", 100)
	c.SetMany(map[string]float64{"ETHUSDT": 50, "SOLUSDT": 25})

	if v, ok := c.Get("ETHUSDT"); !ok || v != 50 {
		t.Fatalf("ETHUSDT = %v %v", v, ok)
	}
	if c.Len() != 3 {
		t.Fatalf("len = %d, want 3", c.Len())
	}

	// overwrite keeps the latest value
	c.Set("BTCUSDT", 200)
	if v, _ := c.Get("BTCUSDT"); v != 200 {
		t.Fatalf("BTCUSDT = %v, want 200", v)
	}
}

func TestMaturityCache(t *testing.T) {
	c := NewMaturityCache(time.Minute)
	if _, ok := c.Get("BTCUSDT"); ok {
		t.Fatalf("hit on empty cache")
	}

	c.Set("BTCUSDT", models.MaturityInfo{AgeDays: 30, Trustworthy: true})
	info, ok := c.Get("BTCUSDT")
	if !ok || info.AgeDays != 30 || !info.Trustworthy {
		t.Fatalf("info = %+v %v", info, ok)
	}
}

func TestResultCache(t *testing.T) {
	c := NewResultCache(20 * time.Millisecond)
	if _, ok := c.Get(); ok {
		t.Fatalf("hit on empty cache")
	}

	c.Set(&models.FilterOutcome{Approved: []string{"BTCUSDT"}})
	out, ok := c.Get()
	if !ok || len(out.Approved) != 1 {
		t.Fatalf("outcome = %+v %v", out, ok)
	}

	c.Invalidate()
	if _, ok := c.Get(); ok {
		t.Fatalf("hit after invalidation")
	}

	c.Set(&models.FilterOutcome{})
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get(); ok {
		t.Fatalf("hit after ttl expiry")
	}
}
