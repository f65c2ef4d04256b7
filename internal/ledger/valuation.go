package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bisttrack/portfolio-service/internal/models"
)

// Revalue marks the portfolio to the given price snapshots and produces
// a ValuationSnapshot dated asOf. Positions with open quantity but no
// matching price are excluded from the market value and listed in
// StaleInstruments; partial valuation is allowed, never hidden.
//
// The function is pure and idempotent: identical inputs produce
// identical figures. Appending the snapshot is the caller's job.
func Revalue(p *models.Portfolio, prices map[string]models.PriceSnapshot, asOf time.Time) models.ValuationSnapshot {
	snapshot := models.ValuationSnapshot{
		PortfolioID:   p.ID,
		Timestamp:     asOf,
		Cash:          p.Cash,
		TotalCost:     decimal.Zero,
		UnrealizedPnL: decimal.Zero,
		RealizedPnL:   p.TotalRealizedPnL(),
	}

	marketValue := decimal.Zero
	for ticker, pos := range p.Positions {
		if pos.Quantity == 0 {
			continue
		}
		snapshot.TotalCost = snapshot.TotalCost.Add(pos.TotalCost)

		price, ok := prices[ticker]
		if !ok {
			snapshot.StaleInstruments = append(snapshot.StaleInstruments, ticker)
			continue
		}
		marketValue = marketValue.Add(pos.MarketValue(price.Price))
		snapshot.UnrealizedPnL = snapshot.UnrealizedPnL.Add(pos.UnrealizedPnL(price.Price))
	}
	sort.Strings(snapshot.StaleInstruments)

	snapshot.MarketValue = marketValue.Add(p.Cash)
	return snapshot
}
