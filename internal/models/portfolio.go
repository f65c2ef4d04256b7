package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioKind distinguishes real portfolios from simulated ones.
type PortfolioKind string

const (
	PortfolioKindReal  PortfolioKind = "REAL"
	PortfolioKindModel PortfolioKind = "MODEL"
)

// DefaultInitialCash is the starting cash used when a portfolio is
// created without one.
const DefaultInitialCash = "100000"

// Valid reports whether the kind is one of the two known values.
func (k PortfolioKind) Valid() bool {
	return k == PortfolioKindReal || k == PortfolioKindModel
}

// Position is the per-instrument holding state inside a portfolio.
// TotalCost is the cost of the currently open lots; the average cost is
// derived from it rather than stored, which keeps repeated buys free of
// cumulative rounding drift. A fully sold position stays at quantity 0
// with its realized P&L retained. Only the ledger mutates positions.
type Position struct {
	Ticker      string          `json:"ticker"`
	Quantity    int64           `json:"quantity"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
}

// AverageCost returns the weighted-average cost per lot. The second
// return value is false when the position is empty, where average cost
// is undefined.
func (p *Position) AverageCost() (decimal.Decimal, bool) {
	if p.Quantity == 0 {
		return decimal.Zero, false
	}
	return p.TotalCost.Div(decimal.NewFromInt(p.Quantity)), true
}

// MarketValue is quantity * price at the given price.
func (p *Position) MarketValue(price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(p.Quantity))
}

// UnrealizedPnL is the paper profit on the open quantity at the given
// price: market value minus the cost of the open lots.
func (p *Position) UnrealizedPnL(price decimal.Decimal) decimal.Decimal {
	return p.MarketValue(price).Sub(p.TotalCost)
}

// Clone returns an independent copy.
func (p *Position) Clone() *Position {
	cp := *p
	return &cp
}

// Portfolio holds cash and positions for one owner. A MODEL portfolio
// is structurally identical to a REAL one but is never reconciled
// against brokerage state; with NoCashCheck set it may go cash-negative
// as a stress scenario.
type Portfolio struct {
	ID          int64                `json:"id"`
	Name        string               `json:"name"`
	Kind        PortfolioKind        `json:"kind"`
	Cash        decimal.Decimal      `json:"cash"`
	InitialCash decimal.Decimal      `json:"initial_cash"`
	NoCashCheck bool                 `json:"no_cash_check"`
	Positions   map[string]*Position `json:"positions"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// Position returns the position for a ticker, or nil when the pair has
// never been bought.
func (p *Portfolio) Position(ticker string) *Position {
	if p.Positions == nil {
		return nil
	}
	return p.Positions[ticker]
}

// EnsurePosition returns the position for a ticker, creating an empty
// one when absent. Only the ledger should call this on a BUY.
func (p *Portfolio) EnsurePosition(ticker string) *Position {
	if p.Positions == nil {
		p.Positions = make(map[string]*Position)
	}
	pos, ok := p.Positions[ticker]
	if !ok {
		pos = &Position{Ticker: ticker, TotalCost: decimal.Zero, RealizedPnL: decimal.Zero}
		p.Positions[ticker] = pos
	}
	return pos
}

// TotalCost sums the open-lot cost across all positions.
func (p *Portfolio) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for _, pos := range p.Positions {
		total = total.Add(pos.TotalCost)
	}
	return total
}

// TotalRealizedPnL sums realized P&L across all positions, including
// fully sold ones.
func (p *Portfolio) TotalRealizedPnL() decimal.Decimal {
	total := decimal.Zero
	for _, pos := range p.Positions {
		total = total.Add(pos.RealizedPnL)
	}
	return total
}

// Clone returns a deep copy, so readers can work on a consistent
// snapshot while a writer mutates the original.
func (p *Portfolio) Clone() *Portfolio {
	cp := *p
	cp.Positions = make(map[string]*Position, len(p.Positions))
	for ticker, pos := range p.Positions {
		cp.Positions[ticker] = pos.Clone()
	}
	return &cp
}
