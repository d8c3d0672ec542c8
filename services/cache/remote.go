package cache

import (
	"encoding/json"
	"errors"
	"time"

	"sjsage522/grocerydeals/logger"
)

// Remote is a Store that JSON-encodes values into a byte-level CacheService,
// so several processes can share cached results. Backend failures are logged
// and reported as misses.
type Remote[V any] struct {
	svc        CacheService
	prefix     string
	defaultTTL time.Duration
	log        *logger.Logger
}

// NewRemote wraps svc. Keys are namespaced with prefix.
func NewRemote[V any](svc CacheService, prefix string, defaultTTL time.Duration) *Remote[V] {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Remote[V]{
		svc:        svc,
		prefix:     prefix,
		defaultTTL: defaultTTL,
		log:        logger.ForCache(),
	}
}

// Get decodes the value stored under key
func (r *Remote[V]) Get(key string) (V, bool) {
	var value V
	data, err := r.svc.Get(r.prefix + key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			r.log.Warn().Err(err).Str("key", key).Msg("Cache backend get failed")
		}
		return value, false
	}
	if err := json.Unmarshal(data, &value); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		return value, false
	}
	return value, true
}

// Set encodes value and stores it under key
func (r *Remote[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	data, err := json.Marshal(value)
	if err != nil {
		r.log.Error().Err(err).Str("key", key).Msg("Failed to encode cache entry")
		return
	}
	if err := r.svc.Set(r.prefix+key, data, ttl); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("Cache backend set failed")
	}
}

// Delete removes key
func (r *Remote[V]) Delete(key string) {
	if err := r.svc.Delete(r.prefix + key); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("Cache backend delete failed")
	}
}

// Clear flushes the backend
func (r *Remote[V]) Clear() {
	if err := r.svc.Clear(); err != nil {
		r.log.Warn().Err(err).Msg("Cache backend clear failed")
	}
}
