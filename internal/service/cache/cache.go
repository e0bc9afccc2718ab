package cache

import "time"

// BytesCache stores raw response bytes with a TTL. Both the in-process
// TTLCache and the Redis-backed cache satisfy it.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}
