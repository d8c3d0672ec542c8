package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"sjsage522/grocerydeals/helpers"
	"sjsage522/grocerydeals/internal/ratelimit"
	"sjsage522/grocerydeals/logger"
	apperrors "sjsage522/grocerydeals/pkg/errors"
	"sjsage522/grocerydeals/services/cache"
	"sjsage522/grocerydeals/services/proxy"
)

const (
	// DefaultMaxRetries is the number of attempts Do makes per request
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the backoff base; attempt n waits delay*2^n
	DefaultRetryDelay = time.Second

	// DefaultMaxPages caps vendor pagination per scrape
	DefaultMaxPages = 5

	maxBodyBytes = 10 << 20
)

// StatusError is returned for non-2xx vendor responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status code: %d: %s", e.StatusCode, e.Body)
}

// Permanent reports whether retrying cannot change the outcome
func (e *StatusError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 &&
		e.StatusCode != http.StatusRequestTimeout &&
		e.StatusCode != http.StatusTooManyRequests
}

// Page is a fetched response body
type Page struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// RequestBuilder creates a fresh request for each attempt
type RequestBuilder func(ctx context.Context) (*http.Request, error)

// Option configures a Base
type Option func(*Base)

// WithMaxRetries sets the number of attempts per request
func WithMaxRetries(n int) Option {
	return func(b *Base) {
		if n > 0 {
			b.maxRetries = n
		}
	}
}

// WithRetryDelay sets the backoff base delay
func WithRetryDelay(d time.Duration) Option {
	return func(b *Base) {
		if d >= 0 {
			b.retryDelay = d
		}
	}
}

// WithRateLimit replaces the default token bucket
func WithRateLimit(maxTokens int, refillRate float64) Option {
	return func(b *Base) {
		b.limiter = ratelimit.New(maxTokens, refillRate)
	}
}

// WithProxies gives the scraper its own rotation pool over the given proxies
func WithProxies(rotationInterval time.Duration, proxies ...proxy.ProxyConfig) Option {
	return func(b *Base) {
		m := proxy.NewManager(rotationInterval)
		for _, p := range proxies {
			m.AddProxy(p)
		}
		b.proxies = m
	}
}

// WithMetrics attaches shared Prometheus collectors
func WithMetrics(m *Metrics) Option {
	return func(b *Base) {
		b.metrics = m
	}
}

// WithTimeout sets the per-attempt HTTP timeout
func WithTimeout(d time.Duration) Option {
	return func(b *Base) {
		b.timeout = d
	}
}

// WithMaxPages caps vendor pagination
func WithMaxPages(n int) Option {
	return func(b *Base) {
		if n > 0 {
			b.maxPages = n
		}
	}
}

// WithHTTPClient replaces the proxy-aware default client
func WithHTTPClient(c *http.Client) Option {
	return func(b *Base) {
		b.client = c
	}
}

// Base holds the shared machinery every vendor strategy composes: one
// network choke point with rate limiting, proxy rotation and backoff, plus
// record normalization.
type Base struct {
	name  string
	store StoreConfig

	client     *http.Client
	timeout    time.Duration
	limiter    *ratelimit.RateLimiter
	cache      *cache.TTLCache[string]
	proxies    *proxy.Manager
	maxRetries int
	retryDelay time.Duration
	maxPages   int
	metrics    *Metrics
	log        *logger.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewBase creates the shared helper for a store
func NewBase(name string, store StoreConfig, opts ...Option) *Base {
	b := &Base{
		name:       name,
		store:      store,
		timeout:    helpers.DefaultTimeout,
		limiter:    ratelimit.Default(),
		cache:      cache.NewTTLCache[string](cache.DefaultTTL),
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		maxPages:   DefaultMaxPages,
		log:        logger.ForScraper(name),
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.proxies == nil {
		b.proxies = proxy.NewManager(proxy.DefaultRotationInterval)
	}
	if b.client == nil {
		b.client = helpers.NewHTTPClient(b.timeout, b.proxies.ProxyFunc)
	}
	return b
}

// Name returns the vendor name
func (b *Base) Name() string {
	return b.name
}

// Store returns the bound store configuration
func (b *Base) Store() StoreConfig {
	return b.store
}

// Cache returns the per-scraper cache
func (b *Base) Cache() *cache.TTLCache[string] {
	return b.cache
}

// Proxies returns the per-scraper proxy pool
func (b *Base) Proxies() *proxy.Manager {
	return b.proxies
}

// Limiter returns the per-scraper token bucket
func (b *Base) Limiter() *ratelimit.RateLimiter {
	return b.limiter
}

// Log returns the store-scoped logger
func (b *Base) Log() *logger.Logger {
	return b.log
}

// MaxPages returns the pagination cap
func (b *Base) MaxPages() int {
	return b.maxPages
}

// Metrics returns the attached collectors, possibly nil
func (b *Base) Metrics() *Metrics {
	return b.metrics
}

// APIBase returns the store's API override or fallback
func (b *Base) APIBase(fallback string) string {
	if b.store.APIBaseURL != "" {
		return b.store.APIBaseURL
	}
	return fallback
}

// Close stops the per-scraper cache sweeper
func (b *Base) Close() error {
	b.cache.Close()
	return nil
}

// FetchPage GETs url with browser-like headers through Do
func (b *Base) FetchPage(ctx context.Context, url string) (*Page, error) {
	return b.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		helpers.SetBrowserHeaders(req)
		return req, nil
	})
}

// Do takes one rate-limit token and then performs up to maxRetries
// attempts, sleeping retryDelay*2^attempt between failed attempts. Client
// errors other than 408 and 429 end the loop immediately.
func (b *Base) Do(ctx context.Context, build RequestBuilder) (*Page, error) {
	if err := b.limiter.WaitForToken(ctx); err != nil {
		return nil, err
	}

	var (
		lastErr error
		target  string
	)
	for attempt := 0; attempt < b.maxRetries; attempt++ {
		req, err := build(ctx)
		if err != nil {
			return nil, apperrors.NewNetwork(b.name, target, fmt.Errorf("failed to create request: %w", err))
		}
		target = req.URL.Redacted()

		page, err := b.attempt(req)
		if err == nil {
			return page, nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if se, ok := err.(*StatusError); ok && se.Permanent() {
			return nil, apperrors.NewFetch(b.name, target, attempt+1, err)
		}
		if attempt == b.maxRetries-1 {
			break
		}

		delay := b.retryDelay * time.Duration(1<<attempt)
		b.log.Warn().
			Err(err).
			Str("url", target).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Msg("Request failed, retrying")
		b.metrics.IncRetries(b.name)

		if err := b.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, apperrors.NewFetch(b.name, target, b.maxRetries, lastErr)
}

func (b *Base) attempt(req *http.Request) (*Page, error) {
	start := time.Now()
	resp, err := b.client.Do(req)
	b.metrics.ObserveRequest(b.name, time.Since(start))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: snippet}
	}

	return &Page{
		URL:        req.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ProcessDeal normalizes one raw record into a canonical deal. Records that
// fail normalization or validation are logged and dropped as nil.
func (b *Base) ProcessDeal(raw RawDeal) (deal *ScrapedDeal) {
	defer func() {
		if r := recover(); r != nil {
			b.drop(raw, "panic", fmt.Errorf("%v", r))
			deal = nil
		}
	}()

	title := SanitizeText(raw.Title)
	if title == "" {
		b.drop(raw, "missing_title", nil)
		return nil
	}

	salePrice, ok := NormalizePrice(raw.SalePrice)
	if !ok {
		b.drop(raw, "invalid_sale_price", fmt.Errorf("unparseable sale price %v", raw.SalePrice))
		return nil
	}

	d := &ScrapedDeal{
		Title:        title,
		SalePrice:    salePrice,
		ImageURL:     ValidateImageURL(raw.ImageURL),
		Category:     NormalizeCategory(raw.Category),
		Unit:         NormalizeUnit(raw.Unit),
		ValidUntil:   ParseDate(raw.ValidUntil),
		StoreID:      b.store.ID,
		ExternalID:   optionalText(raw.ExternalID),
		URL:          absoluteURL(raw.URL),
		Description:  optionalText(raw.Description),
		Restrictions: optionalText(raw.Restrictions),
		DiscountType: raw.DiscountType,
		Quantity:     raw.Quantity,
		Limit:        raw.Limit,
	}

	if original, ok := NormalizePrice(raw.OriginalPrice); ok {
		d.OriginalPrice = &original
	}
	if d.DiscountType == "" {
		desc := ""
		if d.Description != nil {
			desc = *d.Description
		}
		d.DiscountType = DetermineDiscountType(desc)
	}
	if d.Quantity <= 0 {
		d.Quantity = 1
	}
	if d.Limit == nil && d.Restrictions != nil {
		d.Limit = ExtractLimit(*d.Restrictions)
	}

	if err := ValidateDeal(d); err != nil {
		b.drop(raw, "validation", apperrors.NewValidation(b.name, err.Error()))
		return nil
	}
	return d
}

// ProcessDeals normalizes a batch in parallel, keeping vendor order and
// skipping dropped records.
func (b *Base) ProcessDeals(raws []RawDeal) []ScrapedDeal {
	results := make([]*ScrapedDeal, len(raws))
	var wg sync.WaitGroup

	for i := range raws {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = b.ProcessDeal(raws[i])
		}(i)
	}
	wg.Wait()

	deals := make([]ScrapedDeal, 0, len(raws))
	for _, d := range results {
		if d != nil {
			deals = append(deals, *d)
		}
	}

	if dropped := len(raws) - len(deals); dropped > 0 {
		b.log.Warn().
			Int("received", len(raws)).
			Int("kept", len(deals)).
			Int("dropped", dropped).
			Msg("Dropped invalid vendor records")
	}
	b.metrics.AddScraped(b.name, len(deals))
	return deals
}

func (b *Base) drop(raw RawDeal, reason string, err error) {
	record := raw.ExternalID
	if record == "" {
		record = SanitizeText(raw.Title)
	}
	event := b.log.Warn()
	if err != nil {
		event = event.Err(err)
	}
	event.Str("record", record).Str("reason", reason).Msg("Dropping vendor record")
	b.metrics.IncDropped(b.name, reason)
}

// Wrap converts a vendor failure into a store-scoped error, keeping typed
// errors as they are.
func (b *Base) Wrap(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*apperrors.ScraperError); ok {
		b.metrics.IncError(b.name, string(apperrors.TypeOf(err)))
		return err
	}
	if isContextError(err) {
		return err
	}
	wrapped := apperrors.NewScrape(b.name, err)
	b.metrics.IncError(b.name, string(wrapped.Type))
	return wrapped
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
