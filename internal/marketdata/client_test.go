package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bisttrack/portfolio-service/internal/config"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := New(config.MarketDataConfig{BaseURL: server.URL, Timeout: 5 * time.Second})
	return client, server
}

func TestFetchPrices(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v7/finance/quote", r.URL.Path)
		assert.Equal(t, "ASELS.IS,THYAO.IS", r.URL.Query().Get("symbols"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"quoteResponse":{"result":[
			{"symbol":"ASELS.IS","regularMarketPrice":62.35,"regularMarketTime":1772032500},
			{"symbol":"THYAO.IS","regularMarketPrice":291.5,"regularMarketTime":1772032500}
		],"error":null}}`))
	})
	defer server.Close()

	prices, err := client.FetchPrices(context.Background(), []string{"ASELS.IS", "THYAO.IS"})
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.True(t, prices["ASELS.IS"].Price.Equal(decimal.RequireFromString("62.35")))
	assert.Equal(t, int64(1772032500), prices["THYAO.IS"].Timestamp.Unix())
}

func TestFetchPrices_OmitsUnpriceable(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteResponse":{"result":[
			{"symbol":"ASELS.IS","regularMarketPrice":62.35,"regularMarketTime":1772032500},
			{"symbol":"BOGUS.IS","regularMarketPrice":0}
		],"error":null}}`))
	})
	defer server.Close()

	prices, err := client.FetchPrices(context.Background(), []string{"ASELS.IS", "BOGUS.IS"})
	require.NoError(t, err)
	require.Len(t, prices, 1)
	_, ok := prices["BOGUS.IS"]
	assert.False(t, ok, "unpriceable ticker must be omitted, not zero-priced")
}

func TestFetchPrices_EmptyInput(t *testing.T) {
	client := New(config.MarketDataConfig{BaseURL: "http://unused", Timeout: time.Second})
	prices, err := client.FetchPrices(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, prices)
}

func TestFetchPrices_FeedError(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteResponse":{"result":[],"error":{"code":"Bad Request","description":"missing symbols"}}}`))
	})
	defer server.Close()

	_, err := client.FetchPrices(context.Background(), []string{"ASELS.IS"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing symbols")
}

func TestFetchPrices_HTTPError(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	defer server.Close()

	_, err := client.FetchPrices(context.Background(), []string{"ASELS.IS"})
	require.Error(t, err)
}
