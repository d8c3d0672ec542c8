package deals

import (
	"context"
	"fmt"
	"sort"
	"time"

	"sjsage522/grocerydeals/internal/scraper"
	"sjsage522/grocerydeals/logger"
	apperrors "sjsage522/grocerydeals/pkg/errors"
	"sjsage522/grocerydeals/services/cache"
)

// Sync statuses
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ScraperProvider hands out the scraper bound to a store
type ScraperProvider interface {
	GetScraper(cfg scraper.StoreConfig) (scraper.Scraper, error)
}

// SyncResult is the outcome of one store sync, published to the
// persistence layer
type SyncResult struct {
	StoreID   int                   `json:"store_id"`
	StoreName string                `json:"store_name"`
	Status    string                `json:"status"`
	Error     string                `json:"error,omitempty"`
	Deals     []scraper.ScrapedDeal `json:"deals"`
	SyncedAt  time.Time             `json:"synced_at"`
}

// OK reports whether the sync succeeded
func (r SyncResult) OK() bool {
	return r.Status == StatusOK
}

// Service checks the cache, resolves scrapers and runs scrapes for the
// configured stores.
type Service struct {
	stores   map[int]scraper.StoreConfig
	order    []int
	provider ScraperProvider
	cache    cache.Store[[]scraper.ScrapedDeal]
	ttl      time.Duration
	now      func() time.Time
	log      *logger.Logger
}

// NewService creates a deal service over a static store table. A
// non-positive ttl selects cache.DefaultTTL.
func NewService(stores []scraper.StoreConfig, provider ScraperProvider, store cache.Store[[]scraper.ScrapedDeal], ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	s := &Service{
		stores:   make(map[int]scraper.StoreConfig, len(stores)),
		provider: provider,
		cache:    store,
		ttl:      ttl,
		now:      time.Now,
		log:      logger.ForService(),
	}
	for _, cfg := range stores {
		if _, dup := s.stores[cfg.ID]; !dup {
			s.order = append(s.order, cfg.ID)
		}
		s.stores[cfg.ID] = cfg
	}
	sort.Ints(s.order)
	return s
}

// CacheKey returns the cache key holding a store's deals
func CacheKey(storeID int) string {
	return fmt.Sprintf("store_deals_%d", storeID)
}

// Stores returns the configured stores ordered by id
func (s *Service) Stores() []scraper.StoreConfig {
	out := make([]scraper.StoreConfig, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.stores[id])
	}
	return out
}

// Store returns the configuration for a store id
func (s *Service) Store(id int) (scraper.StoreConfig, bool) {
	cfg, ok := s.stores[id]
	return cfg, ok
}

// ScrapeDealsForStore returns cached deals for the store when present,
// otherwise scrapes, caches and returns them.
func (s *Service) ScrapeDealsForStore(ctx context.Context, storeID int) ([]scraper.ScrapedDeal, error) {
	key := CacheKey(storeID)
	if deals, ok := s.cache.Get(key); ok {
		s.log.Debug().Int("store_id", storeID).Int("deals", len(deals)).Msg("Cache hit")
		return deals, nil
	}

	cfg, ok := s.stores[storeID]
	if !ok {
		return nil, apperrors.NewUnknownStore(storeID)
	}

	return s.scrapeAndCache(ctx, cfg)
}

func (s *Service) scrapeAndCache(ctx context.Context, cfg scraper.StoreConfig) ([]scraper.ScrapedDeal, error) {
	sc, err := s.provider.GetScraper(cfg)
	if err != nil {
		s.log.Error().Err(err).Int("store_id", cfg.ID).Str("store", cfg.Name).Msg("No scraper for store")
		return nil, apperrors.NewScrape(cfg.Name, err)
	}

	start := s.now()
	deals, err := sc.ScrapeDeals(ctx)
	if err != nil {
		s.log.Error().
			Err(err).
			Int("store_id", cfg.ID).
			Str("store", cfg.Name).
			Msg("Scrape failed")
		return nil, apperrors.NewScrape(cfg.Name, err)
	}

	s.cache.Set(CacheKey(cfg.ID), deals, s.ttl)
	s.log.Info().
		Int("store_id", cfg.ID).
		Str("store", cfg.Name).
		Int("deals", len(deals)).
		Dur("took", s.now().Sub(start)).
		Msg("Scraped deals")
	return deals, nil
}

// ScrapeDealsForAllStores scrapes every store one after another. A failing
// store yields an empty list instead of an error.
func (s *Service) ScrapeDealsForAllStores(ctx context.Context) map[int][]scraper.ScrapedDeal {
	results := make(map[int][]scraper.ScrapedDeal, len(s.order))
	for _, id := range s.order {
		deals, err := s.ScrapeDealsForStore(ctx, id)
		if err != nil {
			s.log.Warn().Err(err).Int("store_id", id).Msg("Store skipped in batch")
			results[id] = []scraper.ScrapedDeal{}
			continue
		}
		results[id] = deals
	}
	return results
}

// SyncStore scrapes a store bypassing the cache. A successful sync replaces
// the cached deals; a failed one leaves them in place.
func (s *Service) SyncStore(ctx context.Context, storeID int) SyncResult {
	result := SyncResult{StoreID: storeID, Deals: []scraper.ScrapedDeal{}}

	cfg, ok := s.stores[storeID]
	if !ok {
		result.Status = StatusError
		result.Error = apperrors.NewUnknownStore(storeID).Error()
		result.SyncedAt = s.now()
		return result
	}
	result.StoreName = cfg.Name

	deals, err := s.scrapeAndCache(ctx, cfg)
	result.SyncedAt = s.now()
	if err != nil {
		result.Status = StatusError
		result.Error = err.Error()
		return result
	}

	result.Status = StatusOK
	result.Deals = deals
	return result
}

// SyncAll syncs every store sequentially
func (s *Service) SyncAll(ctx context.Context) []SyncResult {
	results := make([]SyncResult, 0, len(s.order))
	for _, id := range s.order {
		if ctx.Err() != nil {
			break
		}
		results = append(results, s.SyncStore(ctx, id))
	}
	return results
}

// ClearCache drops every cached deal list
func (s *Service) ClearCache() {
	s.cache.Clear()
	s.log.Info().Msg("Deal cache cleared")
}
