package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"sjsage522/grocerydeals/helpers"
	apperrors "sjsage522/grocerydeals/pkg/errors"
)

const (
	// KrogerAPIBase is the public Kroger API endpoint
	KrogerAPIBase = "https://api.kroger.com/v1"

	krogerPageLimit = 50

	// bounds a shared token refresh, retries included
	krogerTokenTimeout = 2 * helpers.DefaultTimeout
)

var krogerSizePattern = regexp.MustCompile(`(?i)([0-9.]+)\s*([A-Z]+)`)

var krogerUnits = map[string]Unit{
	"OZ":  UnitOz,
	"LB":  UnitLb,
	"EA":  UnitEach,
	"CT":  UnitCount,
	"PKG": UnitPack,
}

var krogerCategories = map[string]Category{
	"Produce":              CategoryProduce,
	"Meat & Seafood":       CategoryMeat,
	"Dairy":                CategoryDairy,
	"Bakery":               CategoryBakery,
	"Pantry":               CategoryPantry,
	"Frozen":               CategoryFrozen,
	"Beverages":            CategoryBeverages,
	"Snacks":               CategorySnacks,
	"Household Essentials": CategoryHousehold,
	"Personal Care":        CategoryPersonalCare,
	"Baby":                 CategoryBaby,
	"Pet":                  CategoryPets,
}

type krogerToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type krogerLocations struct {
	Data []struct {
		LocationID string `json:"locationId"`
		Chain      string `json:"chain"`
	} `json:"data"`
}

type krogerProducts struct {
	Data []krogerProduct `json:"data"`
	Meta struct {
		Pagination struct {
			Start int `json:"start"`
			Limit int `json:"limit"`
			Total int `json:"total"`
		} `json:"pagination"`
	} `json:"meta"`
}

type krogerProduct struct {
	ProductID   string   `json:"productId"`
	Description string   `json:"description"`
	Categories  []string `json:"categories"`
	Images      []struct {
		Perspective string `json:"perspective"`
		Sizes       []struct {
			Size string `json:"size"`
			URL  string `json:"url"`
		} `json:"sizes"`
	} `json:"images"`
	Items []struct {
		Price *struct {
			Regular float64 `json:"regular"`
			Promo   float64 `json:"promo"`
		} `json:"price"`
		Size                  string `json:"size"`
		PromotionDescription  string `json:"promotionDescription"`
		PromotionRestrictions string `json:"promotionRestrictions"`
	} `json:"items"`
	Promotion *struct {
		EndDate string `json:"endDate"`
	} `json:"promotion"`
}

// KrogerScraper reads promotions for Kroger-family banners from the Kroger
// public API using OAuth client credentials.
type KrogerScraper struct {
	*Base

	clientID     string
	clientSecret string
	apiBase      string

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
	tokenGroup  singleflight.Group
	now         func() time.Time

	locationMu sync.Mutex
	locationID string
}

// NewKrogerScraper creates a scraper for a Kroger-family store. The API key
// must be "clientId:clientSecret".
func NewKrogerScraper(cfg StoreConfig, opts ...Option) (Scraper, error) {
	if cfg.APIKey == "" || cfg.DefaultLocation == nil || cfg.DefaultLocation.ZipCode == "" {
		return nil, apperrors.NewConfiguration(
			fmt.Sprintf("%s scraper requires API key and default location", cfg.Name), nil)
	}

	clientID, clientSecret, err := helpers.SplitCredentials(cfg.APIKey, ":")
	if err != nil {
		return nil, apperrors.NewConfiguration(
			fmt.Sprintf("%s API key must be clientId:clientSecret", cfg.Name), err)
	}

	base := NewBase(cfg.Name, cfg, opts...)
	return &KrogerScraper{
		Base:         base,
		clientID:     clientID,
		clientSecret: clientSecret,
		apiBase:      strings.TrimRight(base.APIBase(KrogerAPIBase), "/"),
		now:          time.Now,
		locationID:   cfg.DefaultLocation.StoreID,
	}, nil
}

// ScrapeDeals authenticates, resolves the store location and pages through
// promotions.
func (k *KrogerScraper) ScrapeDeals(ctx context.Context) ([]ScrapedDeal, error) {
	token, err := k.accessToken(ctx)
	if err != nil {
		return nil, k.Wrap(err)
	}

	locationID, err := k.resolveLocation(ctx, token)
	if err != nil {
		return nil, k.Wrap(err)
	}

	raws, err := k.fetchPromotions(ctx, token, locationID)
	if err != nil {
		return nil, k.Wrap(err)
	}

	deals := k.ProcessDeals(raws)
	k.Log().Info().
		Str("location_id", locationID).
		Int("deals", len(deals)).
		Msg("Scraped Kroger promotions")
	return deals, nil
}

// accessToken returns a valid bearer token, refreshing it once for all
// concurrent callers when it is missing or expired. The refresh runs on its
// own deadline so one caller giving up does not fail the others; each caller
// stops waiting when its own ctx is done.
func (k *KrogerScraper) accessToken(ctx context.Context) (string, error) {
	if token, ok := k.cachedToken(); ok {
		return token, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ch := k.tokenGroup.DoChan("token", func() (interface{}, error) {
		if token, ok := k.cachedToken(); ok {
			return token, nil
		}

		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), krogerTokenTimeout)
		defer cancel()
		token, err := k.authenticate(refreshCtx)
		if err != nil && isContextError(err) {
			return "", apperrors.NewAuthentication(k.Name(), fmt.Errorf("token refresh timed out: %w", err))
		}
		return token, err
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (k *KrogerScraper) cachedToken() (string, bool) {
	k.tokenMu.Lock()
	defer k.tokenMu.Unlock()
	if k.token != "" && k.now().Before(k.tokenExpiry) {
		return k.token, true
	}
	return "", false
}

func (k *KrogerScraper) authenticate(ctx context.Context) (string, error) {
	endpoint := k.apiBase + "/connect/oauth2/token"
	form := url.Values{
		"grant_type": {"client_credentials"},
		"scope":      {"product.compact"},
	}

	page, err := k.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("User-Agent", helpers.UserAgent)
		req.SetBasicAuth(k.clientID, k.clientSecret)
		return req, nil
	})
	if err != nil {
		if isContextError(err) {
			return "", err
		}
		return "", apperrors.NewAuthentication(k.Name(), err)
	}

	var tok krogerToken
	if err := json.Unmarshal(page.Body, &tok); err != nil {
		return "", apperrors.NewAuthentication(k.Name(), fmt.Errorf("invalid token response: %w", err))
	}
	if tok.AccessToken == "" {
		return "", apperrors.NewAuthentication(k.Name(), fmt.Errorf("token response has no access_token"))
	}

	k.tokenMu.Lock()
	k.token = tok.AccessToken
	k.tokenExpiry = k.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	k.tokenMu.Unlock()

	k.Log().Debug().Int("expires_in", tok.ExpiresIn).Msg("Acquired Kroger access token")
	return tok.AccessToken, nil
}

// resolveLocation returns the configured store id or looks one up by zip
// code once for the scraper's lifetime.
func (k *KrogerScraper) resolveLocation(ctx context.Context, token string) (string, error) {
	k.locationMu.Lock()
	defer k.locationMu.Unlock()

	if k.locationID != "" {
		return k.locationID, nil
	}

	zip := k.Store().DefaultLocation.ZipCode
	cacheKey := "location_" + zip
	if id, ok := k.Cache().Get(cacheKey); ok {
		k.locationID = id
		return id, nil
	}

	query := url.Values{
		"filter.zipCode.near": {zip},
		"filter.limit":        {"1"},
		"filter.chain":        {strings.ToLower(k.Name())},
	}
	page, err := k.getJSON(ctx, token, k.apiBase+"/locations?"+query.Encode())
	if err != nil {
		if isContextError(err) {
			return "", err
		}
		return "", apperrors.NewLocation(k.Name(), "failed to find nearest store", err)
	}

	var locations krogerLocations
	if err := json.Unmarshal(page.Body, &locations); err != nil {
		return "", apperrors.NewLocation(k.Name(), "invalid locations response", err)
	}
	if len(locations.Data) == 0 || locations.Data[0].LocationID == "" {
		return "", apperrors.NewLocation(k.Name(), fmt.Sprintf("no stores found near %s", zip), nil)
	}

	k.locationID = locations.Data[0].LocationID
	k.Cache().Set(cacheKey, k.locationID, 0)
	return k.locationID, nil
}

func (k *KrogerScraper) fetchPromotions(ctx context.Context, token, locationID string) ([]RawDeal, error) {
	var raws []RawDeal

	for page := 0; page < k.MaxPages(); page++ {
		start := page * krogerPageLimit
		query := url.Values{
			"filter.locationId": {locationID},
			"filter.limit":      {strconv.Itoa(krogerPageLimit)},
			"filter.promotion":  {"true"},
		}
		if start > 0 {
			query.Set("filter.start", strconv.Itoa(start))
		}

		resp, err := k.getJSON(ctx, token, k.apiBase+"/products?"+query.Encode())
		if err != nil {
			return nil, err
		}

		var products krogerProducts
		if err := json.Unmarshal(resp.Body, &products); err != nil {
			return nil, apperrors.NewParsing(k.Name(), "invalid products response", err)
		}
		for _, p := range products.Data {
			raws = append(raws, k.toRawDeal(p))
		}

		fetched := start + len(products.Data)
		if len(products.Data) < krogerPageLimit || fetched >= products.Meta.Pagination.Total {
			break
		}
	}

	return raws, nil
}

func (k *KrogerScraper) getJSON(ctx context.Context, token, endpoint string) (*Page, error) {
	return k.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", helpers.UserAgent)
		req.Header.Set("Authorization", "Bearer "+token)
		return req, nil
	})
}

func (k *KrogerScraper) toRawDeal(p krogerProduct) RawDeal {
	raw := RawDeal{
		Title:      p.Description,
		ExternalID: p.ProductID,
		ImageURL:   krogerImage(p),
		Quantity:   1,
	}
	if len(p.Categories) > 0 {
		raw.Category = string(mapKrogerCategory(p.Categories[0]))
	}
	if p.Promotion != nil {
		raw.ValidUntil = p.Promotion.EndDate
	}

	if len(p.Items) > 0 {
		item := p.Items[0]
		if item.Price != nil {
			if item.Price.Promo > 0 {
				raw.SalePrice = item.Price.Promo
				if item.Price.Regular > item.Price.Promo {
					raw.OriginalPrice = item.Price.Regular
				}
			} else if item.Price.Regular > 0 {
				raw.SalePrice = item.Price.Regular
			}
		}
		raw.Unit = string(extractKrogerUnit(item.Size))
		raw.Description = item.PromotionDescription
		raw.Restrictions = item.PromotionRestrictions
		raw.DiscountType = DetermineDiscountType(item.PromotionDescription)
		raw.Limit = ExtractLimit(item.PromotionRestrictions)
	}
	return raw
}

func krogerImage(p krogerProduct) string {
	for _, img := range p.Images {
		if img.Perspective != "front" {
			continue
		}
		for _, size := range img.Sizes {
			if size.Size == "medium" {
				return size.URL
			}
		}
	}
	return ""
}

func extractKrogerUnit(size string) Unit {
	m := krogerSizePattern.FindStringSubmatch(size)
	if m == nil {
		return ""
	}
	return krogerUnits[strings.ToUpper(m[2])]
}

func mapKrogerCategory(category string) Category {
	if c, ok := krogerCategories[category]; ok {
		return c
	}
	return CategoryOther
}
