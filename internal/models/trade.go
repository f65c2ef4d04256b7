package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeSide is the direction of a trade.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// Valid reports whether the side is one of the two known values.
func (s TradeSide) Valid() bool {
	return s == TradeSideBuy || s == TradeSideSell
}

// Trade represents a single executed buy or sell. Trades are immutable
// once recorded; corrections are new offsetting trades. Sequence is
// assigned on insert and breaks ties between trades sharing an
// execution timestamp.
type Trade struct {
	ID          uuid.UUID       `json:"id"`
	PortfolioID int64           `json:"portfolio_id"`
	Ticker      string          `json:"ticker"`
	Side        TradeSide       `json:"side"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	ExecutedAt  time.Time       `json:"executed_at"`
	Sequence    int64           `json:"sequence,omitempty"`
	CreatedAt   time.Time       `json:"created_at,omitempty"`
}

// GrossAmount is quantity * price. Positive for both sides; the ledger
// interprets the direction.
func (t Trade) GrossAmount() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Quantity))
}
