package cache

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// MockCacheService implements a simple in-memory CacheService for testing
type MockCacheService struct {
	mu      sync.Mutex
	cache   map[string][]byte
	ttls    map[string]time.Duration
	failGet error
}

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{
		cache: make(map[string][]byte),
		ttls:  make(map[string]time.Duration),
	}
}

func (m *MockCacheService) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, ErrCacheMiss
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = value
	m.ttls[key] = expiration
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

func (m *MockCacheService) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string][]byte)
	return nil
}

type item struct {
	Title string  `json:"title"`
	Price float64 `json:"price"`
}

func TestRemoteRoundTrip(t *testing.T) {
	svc := NewMockCacheService()
	r := NewRemote[[]item](svc, "deals:", 0)

	r.Set("store_deals_1", []item{{Title: "Milk", Price: 2.5}}, 0)
	assert.Contains(t, svc.cache, "deals:store_deals_1")
	assert.Equal(t, DefaultTTL, svc.ttls["deals:store_deals_1"])

	got, ok := r.Get("store_deals_1")
	assert.True(t, ok)
	assert.Equal(t, []item{{Title: "Milk", Price: 2.5}}, got)

	r.Delete("store_deals_1")
	_, ok = r.Get("store_deals_1")
	assert.False(t, ok)
}

func TestRemoteTreatsBackendErrorsAsMiss(t *testing.T) {
	svc := NewMockCacheService()
	r := NewRemote[string](svc, "", time.Minute)
	r.Set("k", "v", 0)

	svc.failGet = errors.New("connection refused")
	_, ok := r.Get("k")
	assert.False(t, ok)
}

func TestRemoteDiscardsGarbage(t *testing.T) {
	svc := NewMockCacheService()
	svc.cache["k"] = []byte("not-json")
	r := NewRemote[[]item](svc, "", 0)

	_, ok := r.Get("k")
	assert.False(t, ok)
}

func TestRemoteClear(t *testing.T) {
	svc := NewMockCacheService()
	r := NewRemote[string](svc, "", 0)
	r.Set("a", "1", 0)
	r.Clear()
	assert.Empty(t, svc.cache)
}
