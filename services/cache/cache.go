package cache

import (
	"time"
)

// CacheService represents a byte-level cache backend such as memcache
type CacheService interface {
	// Get retrieves a value from the cache
	Get(key string) ([]byte, error)

	// Set stores a value in the cache with an expiration time
	Set(key string, value []byte, expiration time.Duration) error

	// Delete removes a value from the cache
	Delete(key string) error

	// Clear removes every value from the cache
	Clear() error
}

// Store is a typed key/value cache with per-entry expiry
type Store[V any] interface {
	// Get returns the value for key if present and unexpired
	Get(key string) (V, bool)

	// Set stores value under key; a non-positive ttl selects the store default
	Set(key string, value V, ttl time.Duration)

	// Delete removes key unconditionally
	Delete(key string)

	// Clear removes every key unconditionally
	Clear()
}
