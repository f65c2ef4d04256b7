package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSnapshot is a point-in-time price for one instrument, supplied
// by the market data collaborator. The engine never fetches prices
// itself, only consumes snapshots.
type PriceSnapshot struct {
	Ticker    string          `json:"ticker"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// ValuationSnapshot is an immutable point-in-time record of a
// portfolio's value. Snapshots are append-only and strictly ordered by
// timestamp within one portfolio. StaleInstruments lists tickers that
// were excluded from the market value because the price feed had no
// snapshot for them.
type ValuationSnapshot struct {
	ID               int64           `json:"id,omitempty"`
	PortfolioID      int64           `json:"portfolio_id"`
	Timestamp        time.Time       `json:"timestamp"`
	MarketValue      decimal.Decimal `json:"market_value"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	UnrealizedPnL    decimal.Decimal `json:"unrealized_pnl"`
	RealizedPnL      decimal.Decimal `json:"realized_pnl"`
	Cash             decimal.Decimal `json:"cash"`
	StaleInstruments []string        `json:"stale_instruments,omitempty"`
}

// Stale reports whether any position was excluded from this valuation.
func (s *ValuationSnapshot) Stale() bool {
	return len(s.StaleInstruments) > 0
}
