package scraper

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/grocerydeals/helpers"
	apperrors "sjsage522/grocerydeals/pkg/errors"
)

var weeklyAdUnitPattern = regexp.MustCompile(`(?i)/\s*(lb|oz|g|kg|each|bunch|pack|dozen)\b`)

// Selectors contains CSS selectors for a weekly ad page
type Selectors struct {
	DealList      string
	Title         string
	SalePrice     string
	OriginalPrice string
	Image         string
	Category      string
	ValidUntil    string
	Link          string
}

// DefaultWeeklyAdSelectors match the common item-card circular layout
var DefaultWeeklyAdSelectors = Selectors{
	DealList:      ".item-card",
	Title:         ".item-title",
	SalePrice:     ".sale-price",
	OriginalPrice: ".original-price",
	Image:         "img",
	Category:      ".category",
	ValidUntil:    ".valid-until",
	Link:          "a",
}

// WeeklyAdScraper parses a store's HTML weekly circular
type WeeklyAdScraper struct {
	*Base
	pageURL   string
	selectors Selectors
}

// NewWeeklyAdScraper creates a scraper reading the circular at the store's
// base URL.
func NewWeeklyAdScraper(cfg StoreConfig, opts ...Option) (Scraper, error) {
	base := NewBase(cfg.Name, cfg, opts...)
	pageURL := base.APIBase(cfg.BaseURL)
	if pageURL == "" {
		return nil, apperrors.NewConfiguration(fmt.Sprintf("%s weekly ad requires a base URL", cfg.Name), nil)
	}
	return &WeeklyAdScraper{
		Base:      base,
		pageURL:   pageURL,
		selectors: DefaultWeeklyAdSelectors,
	}, nil
}

// ScrapeDeals fetches the circular and extracts every item card
func (w *WeeklyAdScraper) ScrapeDeals(ctx context.Context) ([]ScrapedDeal, error) {
	page, err := w.FetchPage(ctx, w.pageURL)
	if err != nil {
		return nil, w.Wrap(err)
	}

	utf8Body, err := helpers.ToUTF8(page.Body, page.Header.Get("Content-Type"))
	if err != nil {
		return nil, w.Wrap(apperrors.NewParsing(w.Name(), "failed to decode weekly ad", err))
	}

	doc, err := goquery.NewDocumentFromReader(utf8Body)
	if err != nil {
		return nil, w.Wrap(apperrors.NewParsing(w.Name(), "failed to parse weekly ad HTML", err))
	}

	var raws []RawDeal
	doc.Find(w.selectors.DealList).Each(func(_ int, s *goquery.Selection) {
		raws = append(raws, w.toRawDeal(s))
	})

	deals := w.ProcessDeals(raws)
	w.Log().Info().Int("cards", len(raws)).Int("deals", len(deals)).Msg("Scraped weekly ad")
	return deals, nil
}

func (w *WeeklyAdScraper) toRawDeal(s *goquery.Selection) RawDeal {
	sel := w.selectors
	title := text(s, sel.Title)
	salePrice := text(s, sel.SalePrice)

	raw := RawDeal{
		Title:      title,
		SalePrice:  salePrice,
		Category:   text(s, sel.Category),
		ValidUntil: text(s, sel.ValidUntil),
		Quantity:   1,
	}
	if original := text(s, sel.OriginalPrice); original != "" {
		raw.OriginalPrice = original
	}
	if src, ok := s.Find(sel.Image).First().Attr("src"); ok {
		raw.ImageURL = w.resolve(src)
	}
	if href, ok := s.Find(sel.Link).First().Attr("href"); ok {
		raw.URL = w.resolve(href)
	}
	if id, ok := s.Attr("data-id"); ok {
		raw.ExternalID = id
	}
	raw.Unit = weeklyAdUnit(title, salePrice)
	raw.DiscountType = DetermineDiscountType(title + " " + salePrice)
	return raw
}

// resolve makes a card-relative URL absolute against the page URL
func (w *WeeklyAdScraper) resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	base, err := url.Parse(w.pageURL)
	if err != nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

func text(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(s.Find(selector).First().Text())
}

func weeklyAdUnit(candidates ...string) string {
	for _, c := range candidates {
		if m := weeklyAdUnitPattern.FindStringSubmatch(c); m != nil {
			return strings.ToLower(m[1])
		}
	}
	return ""
}
