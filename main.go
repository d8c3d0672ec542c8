package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sjsage522/grocerydeals/config"
	"sjsage522/grocerydeals/internal/api"
	"sjsage522/grocerydeals/internal/scraper"
	"sjsage522/grocerydeals/logger"
	"sjsage522/grocerydeals/services/cache"
	"sjsage522/grocerydeals/services/deals"
	"sjsage522/grocerydeals/services/proxy"
	"sjsage522/grocerydeals/services/publisher"
	"sjsage522/grocerydeals/services/worker"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	stores, err := cfg.LoadStores()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load stores")
	}

	// Set up context cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := initializeServices(ctx, cfg, stores)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	log.Info().
		Str("environment", cfg.Environment).
		Int("stores", len(stores)).
		Str("cache", cfg.CacheBackend).
		Bool("publish", cfg.PublishEnabled).
		Dur("sync_interval", cfg.SyncInterval).
		Msg("Starting application")

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		services.Worker.Start(ctx)
	}()

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.NewRouter(api.NewHandlers(services.Deals, services.Worker), services.Metrics.Registry),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal or server failure
	select {
	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal")
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
		stop()
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	<-workerDone
}

// Services holds all the initialized services
type Services struct {
	Registry  *scraper.Registry
	Metrics   *scraper.Metrics
	Deals     *deals.Service
	Worker    *worker.Worker
	Publisher publisher.Publisher
	closers   []func()
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config, stores []scraper.StoreConfig) (*Services, error) {
	log := logger.Default
	services := &Services{Metrics: scraper.NewMetrics()}

	opts := []scraper.Option{
		scraper.WithMaxRetries(cfg.ScraperMaxRetries),
		scraper.WithRetryDelay(cfg.ScraperRetryDelay),
		scraper.WithMetrics(services.Metrics),
	}

	proxies, err := healthyProxies(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if len(proxies) > 0 {
		opts = append(opts, scraper.WithProxies(cfg.ProxyRotation, proxies...))
	}

	services.Registry = scraper.NewDefaultRegistry(opts...)
	services.closers = append(services.closers, services.Registry.ClearScrapers)

	// Initialize deal cache
	var store cache.Store[[]scraper.ScrapedDeal]
	switch cfg.CacheBackend {
	case config.CacheBackendMemcache:
		mc := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := mc.Ping(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unreachable, cache reads will miss")
		}
		store = cache.NewRemote[[]scraper.ScrapedDeal](mc, "grocerydeals:", cfg.CacheTTL)
		logger.Info("Using Memcache at %s", cfg.MemcacheAddr)
	default:
		ttl := cache.NewTTLCache[[]scraper.ScrapedDeal](cfg.CacheTTL)
		services.closers = append(services.closers, ttl.Close)
		store = ttl
	}

	services.Deals = deals.NewService(stores, services.Registry, store, cfg.CacheTTL)

	// Initialize publisher
	if cfg.PublishEnabled {
		redisPublisher := publisher.NewRedisPublisher(
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamMaxLength,
		)
		if err := redisPublisher.Ping(ctx); err != nil {
			redisPublisher.Close()
			return nil, err
		}
		services.Publisher = redisPublisher
		services.closers = append(services.closers, func() { redisPublisher.Close() })

		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	}

	services.Worker = worker.NewWorker(services.Deals, services.Publisher, cfg.SyncInterval)
	return services, nil
}

// healthyProxies parses PROXY_LIST and keeps the proxies that answer a probe
func healthyProxies(ctx context.Context, cfg *config.Config) ([]proxy.ProxyConfig, error) {
	configured, err := cfg.Proxies()
	if err != nil || len(configured) == 0 {
		return nil, err
	}

	m := proxy.NewManager(cfg.ProxyRotation)
	for _, p := range configured {
		m.AddProxy(p)
	}
	kept := m.HealthCheck(ctx)
	logger.Default.Info().
		Int("configured", len(configured)).
		Int("healthy", kept).
		Interface("proxy_stats", m.Stats()).
		Msg("Proxy health check finished")
	return m.Proxies(), nil
}
