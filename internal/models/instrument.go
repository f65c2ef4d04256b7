package models

import (
	"strings"
	"time"
)

// DefaultMarketSuffix is appended to tickers entered without a market
// qualifier. The service tracks Istanbul-listed names by default.
const DefaultMarketSuffix = ".IS"

// Instrument represents a tradeable equity. Immutable once created;
// upserts only fill in a missing display name.
type Instrument struct {
	ID        int64     `json:"id"`
	Ticker    string    `json:"ticker"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeTicker upper-cases a ticker and appends the default market
// suffix when no suffix is present ("asels" -> "ASELS.IS").
func NormalizeTicker(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if t == "" {
		return ""
	}
	if !strings.Contains(t, ".") {
		t += DefaultMarketSuffix
	}
	return t
}
