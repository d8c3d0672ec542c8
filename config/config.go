package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "sjsage522/grocerydeals/pkg/errors"
	"sjsage522/grocerydeals/services/proxy"
)

// Cache backends
const (
	CacheBackendMemory   = "memory"
	CacheBackendMemcache = "memcache"
)

// Config represents the application configuration
type Config struct {
	// HTTP API
	HTTPAddr string

	// Cache configuration
	CacheBackend string
	MemcacheAddr string
	CacheTTL     time.Duration

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int
	PublishEnabled       bool

	// Sync configuration
	SyncInterval time.Duration

	// Proxy configuration
	ProxyList     []string
	ProxyRotation time.Duration

	// Scraper configuration
	ScraperMaxRetries int
	ScraperRetryDelay time.Duration

	// Stores
	StoresFile    string
	KrogerAPIKey  string
	WalmartAPIKey string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	streamMaxLength, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "1000"))
	cacheTTL, _ := strconv.Atoi(getEnv("CACHE_TTL_SECONDS", "3600"))
	syncInterval, _ := strconv.Atoi(getEnv("SYNC_INTERVAL_SECONDS", "0"))
	proxyRotation, _ := strconv.Atoi(getEnv("PROXY_ROTATION_SECONDS", "300"))
	maxRetries, _ := strconv.Atoi(getEnv("SCRAPER_MAX_RETRIES", "3"))
	retryDelay, _ := strconv.Atoi(getEnv("SCRAPER_RETRY_DELAY_MS", "1000"))
	publishEnabled, _ := strconv.ParseBool(getEnv("PUBLISH_ENABLED", "false"))

	return &Config{
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		CacheBackend:         strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendMemory)),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", "localhost:11211"),
		CacheTTL:             time.Duration(cacheTTL) * time.Second,
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "deals"),
		RedisStreamMaxLength: streamMaxLength,
		PublishEnabled:       publishEnabled,
		SyncInterval:         time.Duration(syncInterval) * time.Second,
		ProxyList:            splitList(getEnv("PROXY_LIST", "")),
		ProxyRotation:        time.Duration(proxyRotation) * time.Second,
		ScraperMaxRetries:    maxRetries,
		ScraperRetryDelay:    time.Duration(retryDelay) * time.Millisecond,
		StoresFile:           getEnv("STORES_FILE", ""),
		KrogerAPIKey:         getEnv("KROGER_API_KEY", ""),
		WalmartAPIKey:        getEnv("WALMART_API_KEY", ""),
		Environment:          getEnv("DEALS_ENVIRONMENT", "development"),
	}
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return apperrors.NewConfiguration("HTTP_ADDR must not be empty", nil)
	}
	switch c.CacheBackend {
	case CacheBackendMemory:
	case CacheBackendMemcache:
		if c.MemcacheAddr == "" {
			return apperrors.NewConfiguration("MEMCACHE_ADDR is required for the memcache backend", nil)
		}
	default:
		return apperrors.NewConfiguration(fmt.Sprintf("unknown CACHE_BACKEND %q", c.CacheBackend), nil)
	}
	if c.CacheTTL <= 0 {
		return apperrors.NewConfiguration("CACHE_TTL_SECONDS must be positive", nil)
	}
	if c.PublishEnabled && (c.RedisAddr == "" || c.RedisStream == "") {
		return apperrors.NewConfiguration("REDIS_ADDR and REDIS_STREAM are required when publishing", nil)
	}
	if c.SyncInterval < 0 {
		return apperrors.NewConfiguration("SYNC_INTERVAL_SECONDS must not be negative", nil)
	}
	if c.ScraperMaxRetries <= 0 {
		return apperrors.NewConfiguration("SCRAPER_MAX_RETRIES must be positive", nil)
	}
	if c.ScraperRetryDelay < 0 {
		return apperrors.NewConfiguration("SCRAPER_RETRY_DELAY_MS must not be negative", nil)
	}
	if _, err := c.Proxies(); err != nil {
		return err
	}
	return nil
}

// Proxies parses PROXY_LIST
func (c *Config) Proxies() ([]proxy.ProxyConfig, error) {
	proxies := make([]proxy.ProxyConfig, 0, len(c.ProxyList))
	for _, line := range c.ProxyList {
		p, err := proxy.ParseProxy(line)
		if err != nil {
			return nil, apperrors.NewConfiguration("invalid PROXY_LIST entry", err)
		}
		proxies = append(proxies, p)
	}
	return proxies, nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
