package helpers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetBrowserHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("Accept"))
		assert.Equal(t, "en-US,en;q=0.5", r.Header.Get("Accept-Language"))
		assert.Equal(t, "1", r.Header.Get("Upgrade-Insecure-Requests"))
		assert.Equal(t, "max-age=0", r.Header.Get("Cache-Control"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	SetBrowserHeaders(req)

	resp, err := NewHTTPClient(5*time.Second, nil).Do(req)
	require.NoError(t, err)
	resp.Body.Close()
}

func TestNewHTTPClientUsesProxy(t *testing.T) {
	var sawAbsoluteURL bool
	proxyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAbsoluteURL = r.URL.IsAbs()
		w.Write([]byte("proxied"))
	}))
	defer proxyServer.Close()

	proxyURL, _ := url.Parse(proxyServer.URL)
	client := NewHTTPClient(0, http.ProxyURL(proxyURL))
	assert.Equal(t, DefaultTimeout, client.Timeout)

	resp, err := client.Get("http://vendor.test/products")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "proxied", string(body))
	assert.True(t, sawAbsoluteURL)
}

func TestToUTF8(t *testing.T) {
	reader, err := ToUTF8([]byte("<html><body>Hello, World!</body></html>"), "text/html; charset=utf-8")
	require.NoError(t, err)
	body, _ := io.ReadAll(reader)
	assert.Contains(t, string(body), "Hello, World!")

	// "Café" in ISO-8859-1
	reader, err = ToUTF8([]byte{'C', 'a', 'f', 0xe9}, "text/html; charset=iso-8859-1")
	require.NoError(t, err)
	body, _ = io.ReadAll(reader)
	assert.Equal(t, "Café", string(body))
}
