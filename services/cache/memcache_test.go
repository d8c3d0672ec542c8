package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "sjsage522/grocerydeals/pkg/errors"
)

// Requires a running memcached on localhost:11211; skipped otherwise.
func TestMemcacheService(t *testing.T) {
	mc := NewMemcacheService("localhost:11211")
	if err := mc.Ping(); err != nil {
		t.Skip("Memcached is not available, skipping test")
	}

	require.NoError(t, mc.Set("grocerydeals_test_key", []byte(`[{"title":"Milk"}]`), time.Minute))

	value, err := mc.Get("grocerydeals_test_key")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"title":"Milk"}]`, string(value))

	assert.NoError(t, mc.Delete("grocerydeals_test_key"))
	assert.NoError(t, mc.Delete("grocerydeals_test_key"), "deleting a missing key is not an error")

	_, err = mc.Get("grocerydeals_test_key")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRemoteOverMemcache(t *testing.T) {
	mc := NewMemcacheService("localhost:11211")
	if err := mc.Ping(); err != nil {
		t.Skip("Memcached is not available, skipping test")
	}

	store := NewRemote[[]string](mc, "grocerydeals_test:", time.Minute)
	store.Set("store_deals_1", []string{"Milk", "Eggs"}, 0)

	got, ok := store.Get("store_deals_1")
	require.True(t, ok)
	assert.Equal(t, []string{"Milk", "Eggs"}, got)

	store.Delete("store_deals_1")
	_, ok = store.Get("store_deals_1")
	assert.False(t, ok)
}

func TestMemcacheServiceUnreachable(t *testing.T) {
	mc := NewMemcacheService("127.0.0.1:1")

	_, err := mc.Get("grocerydeals_test_key")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, apperrors.ErrorTypeCache, apperrors.TypeOf(err))

	err = mc.Set("grocerydeals_test_key", []byte("x"), time.Minute)
	assert.Equal(t, apperrors.ErrorTypeCache, apperrors.TypeOf(err))

	store := NewRemote[[]string](mc, "grocerydeals_test:", time.Minute)
	_, ok := store.Get("store_deals_1")
	assert.False(t, ok)
}
