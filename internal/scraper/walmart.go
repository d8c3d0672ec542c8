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

	"github.com/google/uuid"

	"sjsage522/grocerydeals/helpers"
	apperrors "sjsage522/grocerydeals/pkg/errors"
)

const (
	WalmartAPIBase     = "https://developer.api.walmart.com/api-proxy/service"
	walmartProductURL  = "https://www.walmart.com/ip/"
	walmartPageLimit   = 50
	walmartTokenHeader = "WM_SEC.ACCESS_TOKEN"
	walmartCorrHeader  = "WM_QOS.CORRELATION_ID"
)

var walmartSizePattern = regexp.MustCompile(`(?i)(\d+)\s*(oz|lb|ct|pk|ea)\b`)

var walmartUnitTypes = map[string]Unit{
	"EACH":    UnitEach,
	"POUND":   UnitLb,
	"OUNCE":   UnitOz,
	"COUNT":   UnitCount,
	"PACKAGE": UnitPack,
}

var walmartSizeUnits = map[string]Unit{
	"oz": UnitOz,
	"lb": UnitLb,
	"ct": UnitCount,
	"pk": UnitPack,
	"ea": UnitEach,
}

var walmartCategories = map[string]Category{
	"Fresh Produce":        CategoryProduce,
	"Meat & Seafood":       CategoryMeat,
	"Dairy & Eggs":         CategoryDairy,
	"Bakery & Bread":       CategoryBakery,
	"Pantry":               CategoryPantry,
	"Frozen Foods":         CategoryFrozen,
	"Beverages":            CategoryBeverages,
	"Snacks":               CategorySnacks,
	"Household Essentials": CategoryHousehold,
	"Personal Care":        CategoryPersonalCare,
	"Baby":                 CategoryBaby,
	"Pets":                 CategoryPets,
}

// flexString accepts JSON strings and numbers
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	*f = flexString(strings.TrimSpace(string(b)))
	return nil
}

type walmartStores struct {
	Data []struct {
		ID   flexString `json:"id"`
		Name string     `json:"name"`
	} `json:"data"`
}

type walmartDeals struct {
	Data struct {
		Items      []walmartItem `json:"items"`
		Page       int           `json:"page"`
		TotalPages int           `json:"totalPages"`
	} `json:"data"`
}

type walmartImages struct {
	Primary string `json:"primary"`
}

type walmartItem struct {
	UsItemID          flexString    `json:"usItemId"`
	Name              string        `json:"name"`
	SalePrice         *json.Number  `json:"salePrice"`
	RegularPrice      *json.Number  `json:"regularPrice"`
	Images            walmartImages `json:"images"`
	DepartmentName    string        `json:"departmentName"`
	UnitType          string        `json:"unitType"`
	OfferExpiryTime   string        `json:"offerExpiryTime"`
	ShortDescription  string        `json:"shortDescription"`
	OfferRestrictions string        `json:"offerRestrictions"`
	OfferType         string        `json:"offerType"`
}

// WalmartScraper reads store deals from the Walmart affiliate API. The API
// key is sent as an access token header on every request.
type WalmartScraper struct {
	*Base

	accessToken string
	apiBase     string

	storeMu sync.Mutex
	storeID string
}

// NewWalmartScraper creates a scraper for a Walmart store
func NewWalmartScraper(cfg StoreConfig, opts ...Option) (Scraper, error) {
	if cfg.APIKey == "" || cfg.DefaultLocation == nil || cfg.DefaultLocation.ZipCode == "" {
		return nil, apperrors.NewConfiguration(
			fmt.Sprintf("%s scraper requires API key and default location", cfg.Name), nil)
	}

	base := NewBase(cfg.Name, cfg, opts...)
	return &WalmartScraper{
		Base:        base,
		accessToken: cfg.APIKey,
		apiBase:     strings.TrimRight(base.APIBase(WalmartAPIBase), "/"),
		storeID:     cfg.DefaultLocation.StoreID,
	}, nil
}

// ScrapeDeals resolves the store and pages through its deals
func (w *WalmartScraper) ScrapeDeals(ctx context.Context) ([]ScrapedDeal, error) {
	storeID, err := w.resolveStore(ctx)
	if err != nil {
		return nil, w.Wrap(err)
	}

	raws, err := w.fetchDeals(ctx, storeID)
	if err != nil {
		return nil, w.Wrap(err)
	}

	deals := w.ProcessDeals(raws)
	w.Log().Info().
		Str("walmart_store_id", storeID).
		Int("deals", len(deals)).
		Msg("Scraped Walmart deals")
	return deals, nil
}

func (w *WalmartScraper) resolveStore(ctx context.Context) (string, error) {
	w.storeMu.Lock()
	defer w.storeMu.Unlock()

	if w.storeID != "" {
		return w.storeID, nil
	}

	zip := w.Store().DefaultLocation.ZipCode
	cacheKey := "store_" + zip
	if id, ok := w.Cache().Get(cacheKey); ok {
		w.storeID = id
		return id, nil
	}

	query := url.Values{
		"postalCode": {zip},
		"limit":      {"1"},
	}
	page, err := w.get(ctx, w.apiBase+"/stores/search?"+query.Encode())
	if err != nil {
		if isContextError(err) {
			return "", err
		}
		return "", apperrors.NewLocation(w.Name(), "failed to find nearest store", err)
	}

	var stores walmartStores
	if err := json.Unmarshal(page.Body, &stores); err != nil {
		return "", apperrors.NewLocation(w.Name(), "invalid store search response", err)
	}
	if len(stores.Data) == 0 || stores.Data[0].ID == "" {
		return "", apperrors.NewLocation(w.Name(), fmt.Sprintf("no stores found near %s", zip), nil)
	}

	w.storeID = string(stores.Data[0].ID)
	w.Cache().Set(cacheKey, w.storeID, 0)
	return w.storeID, nil
}

func (w *WalmartScraper) fetchDeals(ctx context.Context, storeID string) ([]RawDeal, error) {
	var raws []RawDeal

	for page := 1; page <= w.MaxPages(); page++ {
		query := url.Values{
			"storeId": {storeID},
			"limit":   {strconv.Itoa(walmartPageLimit)},
		}
		if page > 1 {
			query.Set("page", strconv.Itoa(page))
		}

		resp, err := w.get(ctx, w.apiBase+"/products/deals?"+query.Encode())
		if err != nil {
			return nil, err
		}

		var deals walmartDeals
		if err := json.Unmarshal(resp.Body, &deals); err != nil {
			return nil, apperrors.NewParsing(w.Name(), "invalid deals response", err)
		}
		for _, item := range deals.Data.Items {
			raws = append(raws, toWalmartRawDeal(item))
		}

		if len(deals.Data.Items) == 0 || page >= deals.Data.TotalPages {
			break
		}
	}

	return raws, nil
}

func (w *WalmartScraper) get(ctx context.Context, endpoint string) (*Page, error) {
	return w.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", helpers.UserAgent)
		req.Header.Set(walmartTokenHeader, w.accessToken)
		req.Header.Set(walmartCorrHeader, uuid.NewString())
		return req, nil
	})
}

func toWalmartRawDeal(item walmartItem) RawDeal {
	raw := RawDeal{
		Title:        item.Name,
		ImageURL:     item.Images.Primary,
		Category:     string(mapWalmartCategory(item.DepartmentName)),
		ValidUntil:   item.OfferExpiryTime,
		ExternalID:   string(item.UsItemID),
		Description:  item.ShortDescription,
		Restrictions: item.OfferRestrictions,
		DiscountType: walmartDiscountType(item),
		Quantity:     1,
		Limit:        ExtractLimit(item.OfferRestrictions),
	}
	if item.SalePrice != nil {
		raw.SalePrice = *item.SalePrice
	}
	if item.RegularPrice != nil {
		raw.OriginalPrice = *item.RegularPrice
	}
	if item.UsItemID != "" {
		raw.URL = walmartProductURL + string(item.UsItemID)
	}

	unitSource := item.UnitType
	if unitSource == "" {
		unitSource = item.Name
	}
	raw.Unit = string(extractWalmartUnit(unitSource))
	return raw
}

func extractWalmartUnit(text string) Unit {
	if u, ok := walmartUnitTypes[text]; ok {
		return u
	}
	m := walmartSizePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return walmartSizeUnits[strings.ToLower(m[2])]
}

func walmartDiscountType(item walmartItem) DiscountType {
	switch item.OfferType {
	case "BOGO":
		return DiscountBOGO
	case "REWARDS":
		return DiscountPoints
	case "COUPON":
		return DiscountCoupon
	case "":
		return DetermineDiscountType(item.ShortDescription)
	default:
		return DiscountSale
	}
}

func mapWalmartCategory(category string) Category {
	if c, ok := walmartCategories[category]; ok {
		return c
	}
	return CategoryOther
}
