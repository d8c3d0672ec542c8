package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "sjsage522/grocerydeals/pkg/errors"
)

func krogerStore(id int, name string) StoreConfig {
	return StoreConfig{
		ID:               id,
		Name:             name,
		BaseURL:          "https://www.kroger.com",
		APIKey:           "client:secret",
		RequiresLocation: true,
		DefaultLocation:  &Location{ZipCode: "80202", StoreID: "12345"},
	}
}

func TestRegistryMemoizesPerStoreID(t *testing.T) {
	r := NewDefaultRegistry()
	defer r.ClearScrapers()

	first, err := r.GetScraper(krogerStore(1, "Kroger"))
	require.NoError(t, err)
	second, err := r.GetScraper(krogerStore(1, "Kroger"))
	require.NoError(t, err)
	assert.Same(t, first, second)

	other, err := r.GetScraper(krogerStore(9, "Kroger"))
	require.NoError(t, err)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, r.Len())
}

func TestRegistryUnsupportedStore(t *testing.T) {
	r := NewDefaultRegistry()

	s, err := r.GetScraper(StoreConfig{ID: 3, Name: "Corner Bodega"})
	require.Error(t, err)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedStore)
	assert.Contains(t, err.Error(), "unsupported store: Corner Bodega")
	assert.Equal(t, 0, r.Len())
}

func TestRegistryResolvesAliasesCaseInsensitively(t *testing.T) {
	r := NewDefaultRegistry()

	tests := map[string]Chain{
		"Kroger":              ChainKroger,
		"KING SOOPERS":        ChainKroger,
		"  Fred   Meyer ":     ChainKroger,
		"smiths":              ChainKroger,
		"Walmart Supercenter": ChainWalmart,
		"Circular":            ChainWeeklyAd,
	}
	for name, want := range tests {
		got, err := r.Resolve(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := r.Resolve("Krogers")
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedStore)
}

func TestRegistryStrategyTypes(t *testing.T) {
	r := NewDefaultRegistry()
	defer r.ClearScrapers()

	k, err := r.GetScraper(krogerStore(1, "Ralphs"))
	require.NoError(t, err)
	assert.IsType(t, &KrogerScraper{}, k)
	assert.Equal(t, "Ralphs", k.Name())

	w, err := r.GetScraper(StoreConfig{ID: 2, Name: "Walmart", APIKey: "token", DefaultLocation: &Location{ZipCode: "80202"}})
	require.NoError(t, err)
	assert.IsType(t, &WalmartScraper{}, w)
}

func TestRegistryClearScrapers(t *testing.T) {
	r := NewDefaultRegistry()

	first, err := r.GetScraper(krogerStore(1, "Kroger"))
	require.NoError(t, err)

	r.ClearScrapers()
	assert.Equal(t, 0, r.Len())

	second, err := r.GetScraper(krogerStore(1, "Kroger"))
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	r.ClearScrapers()
}

func TestRegistryExplicitRegistration(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve("kroger")
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedStore)

	r.Register(ChainKroger, NewKrogerScraper, "Dillons")
	chain, err := r.Resolve("dillons")
	require.NoError(t, err)
	assert.Equal(t, ChainKroger, chain)
	assert.Equal(t, []string{"dillons"}, r.Aliases())
}

func TestRegistryConstructorErrorIsNotMemoized(t *testing.T) {
	r := NewDefaultRegistry()

	_, err := r.GetScraper(StoreConfig{ID: 1, Name: "Kroger"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeConfiguration, apperrors.TypeOf(err))
	assert.Equal(t, 0, r.Len())
}
