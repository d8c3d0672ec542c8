package scraper

import (
	"context"
	"time"
)

// Category is the canonical product category vocabulary
type Category string

const (
	CategoryProduce      Category = "produce"
	CategoryMeat         Category = "meat"
	CategorySeafood      Category = "seafood"
	CategoryDairy        Category = "dairy"
	CategoryBakery       Category = "bakery"
	CategoryPantry       Category = "pantry"
	CategoryFrozen       Category = "frozen"
	CategoryBeverages    Category = "beverages"
	CategorySnacks       Category = "snacks"
	CategoryHousehold    Category = "household"
	CategoryPersonalCare Category = "personal_care"
	CategoryBaby         Category = "baby"
	CategoryPets         Category = "pets"
	CategoryOther        Category = "other"
)

// Unit is the canonical unit-of-sale vocabulary
type Unit string

const (
	UnitLb    Unit = "lb"
	UnitOz    Unit = "oz"
	UnitG     Unit = "g"
	UnitKg    Unit = "kg"
	UnitEach  Unit = "each"
	UnitBunch Unit = "bunch"
	UnitPack  Unit = "pack"
	UnitDozen Unit = "dozen"
	UnitFlOz  Unit = "fl_oz"
	UnitMl    Unit = "ml"
	UnitL     Unit = "l"
	UnitGal   Unit = "gal"
	UnitQt    Unit = "qt"
	UnitPt    Unit = "pt"
	UnitCount Unit = "count"
)

// DiscountType classifies the promotion mechanism
type DiscountType string

const (
	DiscountSale   DiscountType = "sale"
	DiscountBOGO   DiscountType = "bogo"
	DiscountPoints DiscountType = "points"
	DiscountCoupon DiscountType = "coupon"
)

// ScrapedDeal is the canonical, vendor-agnostic deal record
type ScrapedDeal struct {
	Title         string       `json:"title" validate:"required,max=500"`
	SalePrice     float64      `json:"sale_price" validate:"gte=0"`
	OriginalPrice *float64     `json:"original_price,omitempty" validate:"omitempty,gte=0"`
	ImageURL      *string      `json:"image_url,omitempty" validate:"omitempty,url"`
	Category      *Category    `json:"category,omitempty" validate:"omitempty,oneof=produce meat seafood dairy bakery pantry frozen beverages snacks household personal_care baby pets other"`
	Unit          *Unit        `json:"unit,omitempty" validate:"omitempty,oneof=lb oz g kg each bunch pack dozen fl_oz ml l gal qt pt count"`
	ValidUntil    *time.Time   `json:"valid_until,omitempty"`
	StoreID       int          `json:"store_id" validate:"gte=0"`
	ExternalID    *string      `json:"external_id,omitempty"`
	URL           *string      `json:"url,omitempty" validate:"omitempty,url"`
	Description   *string      `json:"description,omitempty"`
	Restrictions  *string      `json:"restrictions,omitempty"`
	DiscountType  DiscountType `json:"discount_type" validate:"oneof=sale bogo points coupon"`
	Quantity      int          `json:"quantity" validate:"gte=1"`
	Limit         *int         `json:"limit,omitempty" validate:"omitempty,gte=1"`
}

// RawDeal is a vendor record mapped to shared field names but not yet
// normalized. Prices may be strings ("$1.99"), floats, ints or json.Number.
type RawDeal struct {
	Title         string
	SalePrice     any
	OriginalPrice any
	ImageURL      string
	Category      string
	Unit          string
	ValidUntil    string
	ExternalID    string
	URL           string
	Description   string
	Restrictions  string
	DiscountType  DiscountType
	Quantity      int
	Limit         *int
}

// Location is a physical store lookup key
type Location struct {
	ZipCode string `json:"zip_code" yaml:"zip_code"`
	StoreID string `json:"store_id,omitempty" yaml:"store_id"`
}

// StoreConfig identifies one retailer instance and how to reach it
type StoreConfig struct {
	ID               int       `json:"id" yaml:"id"`
	Name             string    `json:"name" yaml:"name"`
	BaseURL          string    `json:"base_url" yaml:"base_url"`
	LoginRequired    bool      `json:"login_required" yaml:"login_required"`
	APIKey           string    `json:"-" yaml:"api_key"`
	RequiresLocation bool      `json:"requires_location" yaml:"requires_location"`
	DefaultLocation  *Location `json:"default_location,omitempty" yaml:"default_location"`

	// APIBaseURL overrides the vendor API endpoint
	APIBaseURL string `json:"-" yaml:"api_base_url"`
}

// Scraper is implemented by every vendor strategy
type Scraper interface {
	// ScrapeDeals runs the full flow for the bound store and returns
	// canonical deals
	ScrapeDeals(ctx context.Context) ([]ScrapedDeal, error)

	// Name returns the vendor name for logging
	Name() string
}
