package deals

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/grocerydeals/internal/scraper"
	apperrors "sjsage522/grocerydeals/pkg/errors"
	"sjsage522/grocerydeals/services/cache"
)

type mockScraper struct {
	name  string
	calls int32
	deals []scraper.ScrapedDeal
	err   error
}

func (m *mockScraper) ScrapeDeals(ctx context.Context) ([]scraper.ScrapedDeal, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.err != nil {
		return nil, m.err
	}
	out := make([]scraper.ScrapedDeal, len(m.deals))
	copy(out, m.deals)
	return out, nil
}

func (m *mockScraper) Name() string { return m.name }

func (m *mockScraper) Calls() int { return int(atomic.LoadInt32(&m.calls)) }

type mockProvider struct {
	scrapers map[int]*mockScraper
}

func (p *mockProvider) GetScraper(cfg scraper.StoreConfig) (scraper.Scraper, error) {
	s, ok := p.scrapers[cfg.ID]
	if !ok {
		return nil, apperrors.NewUnsupportedStore(cfg.Name)
	}
	return s, nil
}

var testStores = []scraper.StoreConfig{
	{ID: 1, Name: "Kroger"},
	{ID: 2, Name: "Walmart"},
}

func newTestService(t *testing.T, scrapers map[int]*mockScraper) *Service {
	t.Helper()
	store := cache.NewTTLCache[[]scraper.ScrapedDeal](time.Hour)
	t.Cleanup(store.Close)
	return NewService(testStores, &mockProvider{scrapers: scrapers}, store, 0)
}

func TestScrapeDealsForStoreCachesResult(t *testing.T) {
	kroger := &mockScraper{name: "Kroger", deals: []scraper.ScrapedDeal{{Title: "Apples", SalePrice: 1.99, StoreID: 1}}}
	svc := newTestService(t, map[int]*mockScraper{1: kroger})

	first, err := svc.ScrapeDealsForStore(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.ScrapeDealsForStore(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, kroger.Calls())
	assert.Same(t, &first[0], &second[0])
}

func TestScrapeDealsForStoreUnknownStore(t *testing.T) {
	kroger := &mockScraper{name: "Kroger"}
	svc := newTestService(t, map[int]*mockScraper{1: kroger})

	_, err := svc.ScrapeDealsForStore(context.Background(), 42)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnknownStore)
	assert.Contains(t, err.Error(), "no configuration found for store ID 42")
	assert.Equal(t, 0, kroger.Calls())
}

func TestScrapeDealsForStoreWrapsScraperError(t *testing.T) {
	cause := apperrors.NewAuthentication("Kroger", errors.New("401"))
	kroger := &mockScraper{name: "Kroger", err: cause}
	svc := newTestService(t, map[int]*mockScraper{1: kroger})

	_, err := svc.ScrapeDealsForStore(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeScrape, apperrors.TypeOf(err))
	assert.ErrorIs(t, err, apperrors.ErrAuthentication)
	assert.Contains(t, err.Error(), "failed to scrape deals for store Kroger")

	// failures are not cached
	_, err = svc.ScrapeDealsForStore(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, 2, kroger.Calls())
}

func TestScrapeDealsForAllStoresIsolatesFailures(t *testing.T) {
	failing := &mockScraper{name: "Kroger", err: errors.New("vendor outage")}
	working := &mockScraper{name: "Walmart", deals: []scraper.ScrapedDeal{
		{Title: "Milk", SalePrice: 2.98, StoreID: 2},
		{Title: "Eggs", SalePrice: 3.10, StoreID: 2},
	}}
	svc := newTestService(t, map[int]*mockScraper{1: failing, 2: working})

	results := svc.ScrapeDealsForAllStores(context.Background())

	require.Len(t, results, 2)
	assert.NotNil(t, results[1])
	assert.Empty(t, results[1])
	assert.Len(t, results[2], 2)
	assert.Equal(t, 1, failing.Calls())
	assert.Equal(t, 1, working.Calls())
}

func TestScrapeDealsForAllStoresUnsupportedStore(t *testing.T) {
	working := &mockScraper{name: "Walmart", deals: []scraper.ScrapedDeal{{Title: "Milk", SalePrice: 2.98}}}
	svc := newTestService(t, map[int]*mockScraper{2: working})

	results := svc.ScrapeDealsForAllStores(context.Background())
	assert.Empty(t, results[1])
	assert.Len(t, results[2], 1)
}

func TestSyncStoreRefreshesAndKeepsCacheOnFailure(t *testing.T) {
	kroger := &mockScraper{name: "Kroger", deals: []scraper.ScrapedDeal{{Title: "Apples", SalePrice: 1.99}}}
	svc := newTestService(t, map[int]*mockScraper{1: kroger})
	fixed := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	_, err := svc.ScrapeDealsForStore(context.Background(), 1)
	require.NoError(t, err)

	result := svc.SyncStore(context.Background(), 1)
	assert.True(t, result.OK())
	assert.Equal(t, "Kroger", result.StoreName)
	assert.Len(t, result.Deals, 1)
	assert.Equal(t, fixed, result.SyncedAt)
	assert.Equal(t, 2, kroger.Calls())

	kroger.err = errors.New("timeout")
	result = svc.SyncStore(context.Background(), 1)
	assert.Equal(t, StatusError, result.Status)
	assert.Contains(t, result.Error, "timeout")
	assert.Empty(t, result.Deals)

	cached, err := svc.ScrapeDealsForStore(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, cached, 1)
	assert.Equal(t, 3, kroger.Calls())
}

func TestSyncStoreUnknown(t *testing.T) {
	svc := newTestService(t, map[int]*mockScraper{})

	result := svc.SyncStore(context.Background(), 99)
	assert.Equal(t, StatusError, result.Status)
	assert.Contains(t, result.Error, "99")
}

func TestSyncAllAndClearCache(t *testing.T) {
	kroger := &mockScraper{name: "Kroger", deals: []scraper.ScrapedDeal{{Title: "Apples", SalePrice: 1.99}}}
	walmart := &mockScraper{name: "Walmart", err: errors.New("down")}
	svc := newTestService(t, map[int]*mockScraper{1: kroger, 2: walmart})

	results := svc.SyncAll(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].StoreID)
	assert.True(t, results[0].OK())
	assert.Equal(t, 2, results[1].StoreID)
	assert.False(t, results[1].OK())

	svc.ClearCache()
	_, err := svc.ScrapeDealsForStore(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, kroger.Calls())
}

func TestStoresOrderedByID(t *testing.T) {
	svc := NewService([]scraper.StoreConfig{{ID: 5, Name: "C"}, {ID: 2, Name: "B"}, {ID: 9, Name: "A"}},
		&mockProvider{}, cache.NewTTLCache[[]scraper.ScrapedDeal](0), 0)

	stores := svc.Stores()
	require.Len(t, stores, 3)
	assert.Equal(t, []int{2, 5, 9}, []int{stores[0].ID, stores[1].ID, stores[2].ID})

	cfg, ok := svc.Store(5)
	assert.True(t, ok)
	assert.Equal(t, "C", cfg.Name)
	assert.Equal(t, "store_deals_5", CacheKey(5))
}

func TestScrapeDealsForStoreWithRemoteCache(t *testing.T) {
	kroger := &mockScraper{name: "Kroger", deals: []scraper.ScrapedDeal{{Title: "Apples", SalePrice: 1.99, StoreID: 1, Quantity: 1, DiscountType: scraper.DiscountSale}}}
	remote := cache.NewRemote[[]scraper.ScrapedDeal](newMapCache(), "test:", time.Minute)
	svc := NewService(testStores, &mockProvider{scrapers: map[int]*mockScraper{1: kroger}}, remote, 0)

	_, err := svc.ScrapeDealsForStore(context.Background(), 1)
	require.NoError(t, err)
	deals, err := svc.ScrapeDealsForStore(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, kroger.Calls())
	require.Len(t, deals, 1)
	assert.Equal(t, "Apples", deals[0].Title)
}

type mapCache struct {
	data map[string][]byte
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]byte)}
}

func (m *mapCache) Get(key string) ([]byte, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, cache.ErrCacheMiss
}

func (m *mapCache) Set(key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *mapCache) Delete(key string) error {
	delete(m.data, key)
	return nil
}

func (m *mapCache) Clear() error {
	m.data = make(map[string][]byte)
	return nil
}
