package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"sjsage522/grocerydeals/internal/scraper"
	apperrors "sjsage522/grocerydeals/pkg/errors"
)

type storesFile struct {
	Stores []scraper.StoreConfig `yaml:"stores"`
}

// DefaultStores returns the built-in store table
func DefaultStores(krogerAPIKey, walmartAPIKey string) []scraper.StoreConfig {
	return []scraper.StoreConfig{
		{
			ID:               1,
			Name:             "Kroger",
			BaseURL:          "https://www.kroger.com",
			APIKey:           krogerAPIKey,
			RequiresLocation: true,
			DefaultLocation:  &scraper.Location{ZipCode: "80202", StoreID: "12345"},
		},
		{
			ID:               2,
			Name:             "Walmart",
			BaseURL:          "https://www.walmart.com",
			APIKey:           walmartAPIKey,
			RequiresLocation: true,
			DefaultLocation:  &scraper.Location{ZipCode: "80202", StoreID: "67890"},
		},
	}
}

// LoadStores returns the store table from STORES_FILE, or the built-in
// table when no file is configured.
func (c *Config) LoadStores() ([]scraper.StoreConfig, error) {
	if c.StoresFile == "" {
		return DefaultStores(c.KrogerAPIKey, c.WalmartAPIKey), nil
	}

	data, err := os.ReadFile(c.StoresFile)
	if err != nil {
		return nil, apperrors.NewConfiguration("failed to read stores file", err)
	}
	return ParseStores(data)
}

// ParseStores decodes a YAML store table. Environment references such as
// ${KROGER_API_KEY} are expanded in the file before decoding.
func ParseStores(data []byte) ([]scraper.StoreConfig, error) {
	var file storesFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &file); err != nil {
		return nil, apperrors.NewConfiguration("failed to parse stores file", err)
	}
	if len(file.Stores) == 0 {
		return nil, apperrors.NewConfiguration("stores file lists no stores", nil)
	}

	seen := make(map[int]bool, len(file.Stores))
	for _, s := range file.Stores {
		if s.ID <= 0 {
			return nil, apperrors.NewConfiguration(fmt.Sprintf("store %q has no positive id", s.Name), nil)
		}
		if s.Name == "" {
			return nil, apperrors.NewConfiguration(fmt.Sprintf("store %d has no name", s.ID), nil)
		}
		if seen[s.ID] {
			return nil, apperrors.NewConfiguration(fmt.Sprintf("duplicate store id %d", s.ID), nil)
		}
		seen[s.ID] = true
	}
	return file.Stores, nil
}
