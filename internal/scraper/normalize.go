package scraper

import (
	"encoding/json"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	controlChars  = regexp.MustCompile(`[\x{0000}-\x{0008}\x{000B}\x{000E}-\x{001F}\x{007F}-\x{009F}]`)
	whitespace    = regexp.MustCompile(`\s+`)
	nonPriceChars = regexp.MustCompile(`[^\d.]`)
	limitPattern  = regexp.MustCompile(`(?i)limit\s+(\d+)`)
)

// dateLayouts are tried in order by ParseDate
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	time.RFC1123Z,
	time.RFC1123,
}

// SanitizeText strips control characters, collapses whitespace runs into a
// single space and trims the result. Newlines and tabs count as whitespace.
func SanitizeText(s string) string {
	s = controlChars.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// optionalText returns a sanitized pointer, or nil for blank input
func optionalText(s string) *string {
	s = SanitizeText(s)
	if s == "" {
		return nil
	}
	return &s
}

// NormalizePrice converts a vendor price value into a non-negative number.
// Strings have every character other than digits and '.' removed first, so
// "$1,299.00" parses as 1299. A minus sign ahead of the first digit rejects
// the value.
func NormalizePrice(v any) (float64, bool) {
	var f float64
	switch p := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = p
	case float32:
		f = float64(p)
	case int:
		f = float64(p)
	case int64:
		f = float64(p)
	case json.Number:
		parsed, err := p.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		if negativePrice(p) {
			return 0, false
		}
		cleaned := nonPriceChars.ReplaceAllString(p, "")
		if cleaned == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false
	}
	return f, true
}

func negativePrice(s string) bool {
	digit := strings.IndexAny(s, "0123456789")
	if digit < 0 {
		return false
	}
	return strings.Contains(s[:digit], "-")
}

// ValidateImageURL returns the URL when it parses as an absolute http(s) URL
func ValidateImageURL(raw string) *string {
	return absoluteURL(raw)
}

func absoluteURL(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil
	}
	s := u.String()
	return &s
}

// ParseDate parses a vendor timestamp, returning nil when no known layout
// matches.
func ParseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

var categoryAliases = map[string]Category{
	"meat & seafood":       CategoryMeat,
	"fresh produce":        CategoryProduce,
	"fruits & vegetables":  CategoryProduce,
	"dairy & eggs":         CategoryDairy,
	"bakery & bread":       CategoryBakery,
	"frozen foods":         CategoryFrozen,
	"drinks":               CategoryBeverages,
	"household essentials": CategoryHousehold,
	"cleaning":             CategoryHousehold,
	"personal care":        CategoryPersonalCare,
	"health & beauty":      CategoryPersonalCare,
	"pet":                  CategoryPets,
	"pet supplies":         CategoryPets,
}

var canonicalCategories = map[Category]struct{}{
	CategoryProduce: {}, CategoryMeat: {}, CategorySeafood: {}, CategoryDairy: {},
	CategoryBakery: {}, CategoryPantry: {}, CategoryFrozen: {}, CategoryBeverages: {},
	CategorySnacks: {}, CategoryHousehold: {}, CategoryPersonalCare: {}, CategoryBaby: {},
	CategoryPets: {}, CategoryOther: {},
}

// NormalizeCategory maps free-text categories into the canonical vocabulary.
// Blank input yields nil; anything unrecognized becomes CategoryOther.
func NormalizeCategory(raw string) *Category {
	key := strings.ToLower(SanitizeText(raw))
	if key == "" {
		return nil
	}

	c := Category(key)
	if _, ok := canonicalCategories[c]; ok {
		return &c
	}
	if alias, ok := categoryAliases[key]; ok {
		return &alias
	}

	other := CategoryOther
	return &other
}

var unitAliases = map[string]Unit{
	"lb": UnitLb, "lbs": UnitLb, "pound": UnitLb, "pounds": UnitLb,
	"oz": UnitOz, "ounce": UnitOz, "ounces": UnitOz,
	"g": UnitG, "gram": UnitG, "grams": UnitG,
	"kg": UnitKg, "kilogram": UnitKg, "kilograms": UnitKg,
	"each": UnitEach, "ea": UnitEach,
	"bunch": UnitBunch,
	"pack": UnitPack, "pk": UnitPack, "pkg": UnitPack, "package": UnitPack,
	"dozen": UnitDozen, "dz": UnitDozen,
	"fl_oz": UnitFlOz, "fl oz": UnitFlOz, "floz": UnitFlOz,
	"ml": UnitMl,
	"l": UnitL, "liter": UnitL, "litre": UnitL,
	"gal": UnitGal, "gallon": UnitGal,
	"qt": UnitQt, "quart": UnitQt,
	"pt": UnitPt, "pint": UnitPt,
	"count": UnitCount, "ct": UnitCount,
}

// NormalizeUnit maps a unit spelling into the canonical vocabulary, or nil
func NormalizeUnit(raw string) *Unit {
	key := strings.ToLower(SanitizeText(raw))
	if u, ok := unitAliases[key]; ok {
		return &u
	}
	return nil
}

// DetermineDiscountType infers the promotion mechanism from free text
func DetermineDiscountType(text string) DiscountType {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "buy one get one"), strings.Contains(t, "bogo"):
		return DiscountBOGO
	case strings.Contains(t, "points"), strings.Contains(t, "rewards"):
		return DiscountPoints
	case strings.Contains(t, "coupon"), strings.Contains(t, "clip"):
		return DiscountCoupon
	default:
		return DiscountSale
	}
}

// ExtractLimit finds a "limit N" purchase limit in restriction text
func ExtractLimit(restrictions string) *int {
	m := limitPattern.FindStringSubmatch(restrictions)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

// CalculateDiscountPercentage returns ((original-sale)/original)*100 rounded
// to one decimal. It reports false when either price is non-positive.
func CalculateDiscountPercentage(original, sale float64) (float64, bool) {
	if original <= 0 || sale <= 0 {
		return 0, false
	}
	pct := (original - sale) / original * 100
	return math.Round(pct*10) / 10, true
}
