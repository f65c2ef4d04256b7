// Package ledger is the weighted-average-cost state machine and the
// derived valuation, return, and comparison calculations. Everything
// here is pure arithmetic over in-memory state; persistence and price
// retrieval live behind the service layer so this package tests without
// a network or a database.
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/bisttrack/portfolio-service/internal/models"
)

// PositionDelta describes what one applied trade changed.
type PositionDelta struct {
	Ticker         string           `json:"ticker"`
	Side           models.TradeSide `json:"side"`
	QuantityBefore int64            `json:"quantity_before"`
	QuantityAfter  int64            `json:"quantity_after"`
	AverageCost    decimal.Decimal  `json:"average_cost"`
	AverageCostSet bool             `json:"average_cost_set"`
	RealizedChange decimal.Decimal  `json:"realized_change"`
	CashAfter      decimal.Decimal  `json:"cash_after"`
}

// ApplyTrade validates and applies one trade to the portfolio,
// mutating position state and cash. Validation always runs first; a
// rejected trade leaves the portfolio untouched.
//
// BUY folds the trade into the open-lot cost, so the average cost
// becomes the quantity-weighted mean of the prior cost and the trade
// price. SELL locks in realized P&L at the current average cost and
// never changes the cost basis of the remaining lots.
//
// The ledger does not deduplicate: the caller consumes each trade
// identity exactly once.
func ApplyTrade(p *models.Portfolio, t models.Trade) (PositionDelta, error) {
	if err := ValidateTrade(p, t); err != nil {
		return PositionDelta{}, err
	}

	gross := t.GrossAmount()
	delta := PositionDelta{Ticker: t.Ticker, Side: t.Side, RealizedChange: decimal.Zero}

	switch t.Side {
	case models.TradeSideBuy:
		pos := p.EnsurePosition(t.Ticker)
		delta.QuantityBefore = pos.Quantity
		pos.TotalCost = pos.TotalCost.Add(gross)
		pos.Quantity += t.Quantity
		p.Cash = p.Cash.Sub(gross)
		delta.QuantityAfter = pos.Quantity
		delta.AverageCost, delta.AverageCostSet = pos.AverageCost()

	case models.TradeSideSell:
		pos := p.Position(t.Ticker)
		delta.QuantityBefore = pos.Quantity
		avgCost, ok := pos.AverageCost()
		if !ok {
			// Unreachable: the validator guarantees held >= quantity > 0.
			panic("ledger: sell against empty position slipped past validation")
		}
		qty := decimal.NewFromInt(t.Quantity)
		costOfSold := avgCost.Mul(qty)
		realized := gross.Sub(costOfSold)

		pos.RealizedPnL = pos.RealizedPnL.Add(realized)
		pos.Quantity -= t.Quantity
		pos.TotalCost = pos.TotalCost.Sub(costOfSold)
		if pos.Quantity == 0 {
			// Snap to exactly zero so a closed position carries no residue.
			pos.TotalCost = decimal.Zero
		}
		p.Cash = p.Cash.Add(gross)

		delta.QuantityAfter = pos.Quantity
		delta.RealizedChange = realized
		delta.AverageCost, delta.AverageCostSet = pos.AverageCost()
	}

	delta.CashAfter = p.Cash
	return delta, nil
}

// ReplayTrades rebuilds portfolio state by applying a trade log in
// order: timestamp first, insertion sequence as the tiebreak. The input
// slice is not modified. Replay stops at the first rejection, which on
// a previously valid log indicates the log itself is corrupt.
func ReplayTrades(p *models.Portfolio, trades []models.Trade) error {
	ordered := make([]models.Trade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].ExecutedAt.Equal(ordered[j].ExecutedAt) {
			return ordered[i].ExecutedAt.Before(ordered[j].ExecutedAt)
		}
		return ordered[i].Sequence < ordered[j].Sequence
	})
	for _, t := range ordered {
		if _, err := ApplyTrade(p, t); err != nil {
			return err
		}
	}
	return nil
}
