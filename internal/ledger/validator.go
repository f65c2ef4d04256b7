package ledger

import (
	"github.com/bisttrack/portfolio-service/internal/models"
)

// ValidateTrade checks a proposed trade against current portfolio state.
// Pure check, no side effects.
//
// BUY requires cash >= quantity*price unless the portfolio is a MODEL
// with the no-cash-check flag set. SELL requires an open position with
// at least the trade quantity. Non-positive quantity or price is always
// rejected.
func ValidateTrade(p *models.Portfolio, t models.Trade) error {
	if !t.Side.Valid() {
		return reject(ReasonInvalidTradeParameters, "unknown trade side %q", t.Side)
	}
	if t.Ticker == "" {
		return reject(ReasonInvalidTradeParameters, "ticker is required")
	}
	if t.Quantity <= 0 {
		return reject(ReasonInvalidTradeParameters, "quantity must be positive, got %d", t.Quantity)
	}
	if !t.Price.IsPositive() {
		return reject(ReasonInvalidTradeParameters, "price must be positive, got %s", t.Price)
	}

	switch t.Side {
	case models.TradeSideBuy:
		if p.Kind == models.PortfolioKindModel && p.NoCashCheck {
			return nil
		}
		cost := t.GrossAmount()
		if p.Cash.LessThan(cost) {
			return reject(ReasonInsufficientCash,
				"need %s, have %s", cost, p.Cash)
		}
	case models.TradeSideSell:
		pos := p.Position(t.Ticker)
		held := int64(0)
		if pos != nil {
			held = pos.Quantity
		}
		if held < t.Quantity {
			return reject(ReasonInsufficientHoldings,
				"selling %d lots of %s, holding %d", t.Quantity, t.Ticker, held)
		}
	}

	return nil
}
