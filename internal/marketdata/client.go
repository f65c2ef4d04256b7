// Package marketdata implements the price feed collaborator over a
// Yahoo-style quote endpoint. The ledger core never talks to it
// directly; the service layer fetches snapshots and passes them in.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bisttrack/portfolio-service/internal/config"
	"github.com/bisttrack/portfolio-service/internal/models"
)

// Client fetches price snapshots over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a market data client from configuration.
func New(cfg config.MarketDataConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol             string  `json:"symbol"`
			RegularMarketPrice float64 `json:"regularMarketPrice"`
			RegularMarketTime  int64   `json:"regularMarketTime"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteResponse"`
}

// FetchPrices retrieves snapshots for the given tickers. Tickers the
// feed cannot price are omitted from the result, not errors; the
// valuation engine treats them as stale.
func (c *Client) FetchPrices(ctx context.Context, tickers []string) (map[string]models.PriceSnapshot, error) {
	if len(tickers) == 0 {
		return map[string]models.PriceSnapshot{}, nil
	}

	endpoint := fmt.Sprintf("%s/v7/finance/quote?symbols=%s",
		c.baseURL, url.QueryEscape(strings.Join(tickers, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build quote request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote request returned status %d", resp.StatusCode)
	}

	var parsed quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode quote response: %w", err)
	}
	if e := parsed.QuoteResponse.Error; e != nil {
		return nil, fmt.Errorf("quote feed error %s: %s", e.Code, e.Description)
	}

	snapshots := make(map[string]models.PriceSnapshot, len(parsed.QuoteResponse.Result))
	for _, quote := range parsed.QuoteResponse.Result {
		if quote.Symbol == "" || quote.RegularMarketPrice <= 0 {
			continue
		}
		at := time.Unix(quote.RegularMarketTime, 0)
		if quote.RegularMarketTime == 0 {
			at = time.Now()
		}
		snapshots[quote.Symbol] = models.PriceSnapshot{
			Ticker:    quote.Symbol,
			Price:     decimal.NewFromFloat(quote.RegularMarketPrice),
			Timestamp: at,
		}
	}
	return snapshots, nil
}
