package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "sjsage522/grocerydeals/pkg/errors"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"HTTP_ADDR", "CACHE_BACKEND", "MEMCACHE_ADDR", "CACHE_TTL_SECONDS",
		"REDIS_ADDR", "REDIS_DB", "REDIS_STREAM", "REDIS_STREAM_MAX_LENGTH", "PUBLISH_ENABLED",
		"SYNC_INTERVAL_SECONDS", "PROXY_LIST", "PROXY_ROTATION_SECONDS",
		"SCRAPER_MAX_RETRIES", "SCRAPER_RETRY_DELAY_MS", "STORES_FILE",
		"KROGER_API_KEY", "WALMART_API_KEY", "DEALS_ENVIRONMENT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	config := LoadConfig()
	assert.Equal(t, ":8080", config.HTTPAddr)
	assert.Equal(t, CacheBackendMemory, config.CacheBackend)
	assert.Equal(t, "localhost:11211", config.MemcacheAddr)
	assert.Equal(t, time.Hour, config.CacheTTL)
	assert.Equal(t, "localhost:6379", config.RedisAddr)
	assert.Equal(t, 0, config.RedisDB)
	assert.Equal(t, "deals", config.RedisStream)
	assert.Equal(t, 1000, config.RedisStreamMaxLength)
	assert.False(t, config.PublishEnabled)
	assert.Equal(t, time.Duration(0), config.SyncInterval)
	assert.Empty(t, config.ProxyList)
	assert.Equal(t, 5*time.Minute, config.ProxyRotation)
	assert.Equal(t, 3, config.ScraperMaxRetries)
	assert.Equal(t, time.Second, config.ScraperRetryDelay)
	assert.Equal(t, "development", config.Environment)
	assert.False(t, config.IsProduction())
	assert.NoError(t, config.Validate())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("CACHE_BACKEND", "Memcache")
	t.Setenv("MEMCACHE_ADDR", "memcache.example.com:11211")
	t.Setenv("REDIS_ADDR", "redis.example.com:6379")
	t.Setenv("REDIS_DB", "1")
	t.Setenv("PUBLISH_ENABLED", "true")
	t.Setenv("SYNC_INTERVAL_SECONDS", "900")
	t.Setenv("PROXY_LIST", "10.0.0.1:3128, user:pass@10.0.0.2:8080 ,")
	t.Setenv("SCRAPER_RETRY_DELAY_MS", "250")
	t.Setenv("DEALS_ENVIRONMENT", "production")

	config := LoadConfig()
	assert.Equal(t, ":9090", config.HTTPAddr)
	assert.Equal(t, CacheBackendMemcache, config.CacheBackend)
	assert.Equal(t, "memcache.example.com:11211", config.MemcacheAddr)
	assert.Equal(t, "redis.example.com:6379", config.RedisAddr)
	assert.Equal(t, 1, config.RedisDB)
	assert.True(t, config.PublishEnabled)
	assert.Equal(t, 15*time.Minute, config.SyncInterval)
	assert.Equal(t, []string{"10.0.0.1:3128", "user:pass@10.0.0.2:8080"}, config.ProxyList)
	assert.Equal(t, 250*time.Millisecond, config.ScraperRetryDelay)
	assert.True(t, config.IsProduction())
	require.NoError(t, config.Validate())

	proxies, err := config.Proxies()
	require.NoError(t, err)
	require.Len(t, proxies, 2)
	assert.Equal(t, "user", proxies[1].Username)
	assert.Equal(t, 8080, proxies[1].Port)
}

func TestValidate(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown cache backend", func(c *Config) { c.CacheBackend = "disk" }},
		{"memcache without address", func(c *Config) { c.CacheBackend = CacheBackendMemcache; c.MemcacheAddr = "" }},
		{"zero ttl", func(c *Config) { c.CacheTTL = 0 }},
		{"publishing without stream", func(c *Config) { c.PublishEnabled = true; c.RedisStream = "" }},
		{"negative interval", func(c *Config) { c.SyncInterval = -time.Second }},
		{"no retries", func(c *Config) { c.ScraperMaxRetries = 0 }},
		{"bad proxy", func(c *Config) { c.ProxyList = []string{"not-a-proxy"} }},
		{"empty addr", func(c *Config) { c.HTTPAddr = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := LoadConfig()
			tt.mutate(config)
			err := config.Validate()
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrorTypeConfiguration, apperrors.TypeOf(err))
		})
	}
}

func TestLoadStoresDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("KROGER_API_KEY", "id:secret")

	stores, err := LoadConfig().LoadStores()
	require.NoError(t, err)
	require.Len(t, stores, 2)
	assert.Equal(t, 1, stores[0].ID)
	assert.Equal(t, "Kroger", stores[0].Name)
	assert.Equal(t, "id:secret", stores[0].APIKey)
	assert.Equal(t, "80202", stores[0].DefaultLocation.ZipCode)
	assert.Equal(t, "12345", stores[0].DefaultLocation.StoreID)
	assert.Equal(t, "Walmart", stores[1].Name)
	assert.Equal(t, "67890", stores[1].DefaultLocation.StoreID)
}

func TestLoadStoresFromFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("KS_KEY", "ks-id:ks-secret")

	path := filepath.Join(t.TempDir(), "stores.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
stores:
  - id: 10
    name: King Soopers
    base_url: https://www.kingsoopers.com
    api_key: ${KS_KEY}
    requires_location: true
    default_location:
      zip_code: "80303"
  - id: 11
    name: Weekly Ad
    base_url: https://grocer.example.com/weeklyad
`), 0o600))
	t.Setenv("STORES_FILE", path)

	stores, err := LoadConfig().LoadStores()
	require.NoError(t, err)
	require.Len(t, stores, 2)

	assert.Equal(t, "King Soopers", stores[0].Name)
	assert.Equal(t, "ks-id:ks-secret", stores[0].APIKey)
	require.NotNil(t, stores[0].DefaultLocation)
	assert.Equal(t, "80303", stores[0].DefaultLocation.ZipCode)
	assert.Empty(t, stores[0].DefaultLocation.StoreID)
	assert.Nil(t, stores[1].DefaultLocation)
	assert.Equal(t, "https://grocer.example.com/weeklyad", stores[1].BaseURL)
}

func TestParseStoresRejectsBadTables(t *testing.T) {
	for name, doc := range map[string]string{
		"empty":     "stores: []",
		"no id":     "stores:\n  - name: Kroger",
		"no name":   "stores:\n  - id: 1",
		"duplicate": "stores:\n  - {id: 1, name: A}\n  - {id: 1, name: B}",
		"garbage":   "stores: [",
	} {
		_, err := ParseStores([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestLoadStoresMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORES_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := LoadConfig().LoadStores()
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeConfiguration, apperrors.TypeOf(err))
}
