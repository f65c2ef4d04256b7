package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bisttrack/portfolio-service/internal/models"
)

// PositionSummary is one position's line in a portfolio summary.
// Price figures are zero and Stale is true when the price feed had no
// snapshot for the ticker.
type PositionSummary struct {
	Ticker        string          `json:"ticker"`
	Quantity      int64           `json:"quantity"`
	AverageCost   decimal.Decimal `json:"average_cost"`
	CostBasis     decimal.Decimal `json:"cost_basis"`
	Price         decimal.Decimal `json:"price"`
	MarketValue   decimal.Decimal `json:"market_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	Stale         bool            `json:"stale,omitempty"`
}

// PortfolioSummary is the whole-portfolio view combining current
// valuation, cost basis, P&L, and cash.
type PortfolioSummary struct {
	PortfolioID   int64                `json:"portfolio_id"`
	Name          string               `json:"name"`
	Kind          models.PortfolioKind `json:"kind"`
	AsOf          time.Time            `json:"as_of"`
	Cash          decimal.Decimal      `json:"cash"`
	TotalCost     decimal.Decimal      `json:"total_cost"`
	MarketValue   decimal.Decimal      `json:"market_value"`
	UnrealizedPnL decimal.Decimal      `json:"unrealized_pnl"`
	RealizedPnL   decimal.Decimal      `json:"realized_pnl"`
	Positions     []PositionSummary    `json:"positions"`
	Stale         []string             `json:"stale_instruments,omitempty"`
}

// Summarize builds the whole-portfolio view from position state and
// price snapshots. Closed positions (quantity 0) appear so their
// realized P&L stays visible, but contribute nothing to market value.
func Summarize(p *models.Portfolio, prices map[string]models.PriceSnapshot, asOf time.Time) PortfolioSummary {
	summary := PortfolioSummary{
		PortfolioID:   p.ID,
		Name:          p.Name,
		Kind:          p.Kind,
		AsOf:          asOf,
		Cash:          p.Cash,
		TotalCost:     decimal.Zero,
		UnrealizedPnL: decimal.Zero,
		RealizedPnL:   decimal.Zero,
	}

	marketValue := decimal.Zero
	for _, pos := range p.Positions {
		line := PositionSummary{
			Ticker:      pos.Ticker,
			Quantity:    pos.Quantity,
			CostBasis:   pos.TotalCost,
			RealizedPnL: pos.RealizedPnL,
		}
		if avg, ok := pos.AverageCost(); ok {
			line.AverageCost = avg
		}
		summary.TotalCost = summary.TotalCost.Add(pos.TotalCost)
		summary.RealizedPnL = summary.RealizedPnL.Add(pos.RealizedPnL)

		if pos.Quantity > 0 {
			if price, ok := prices[pos.Ticker]; ok {
				line.Price = price.Price
				line.MarketValue = pos.MarketValue(price.Price)
				line.UnrealizedPnL = pos.UnrealizedPnL(price.Price)
				marketValue = marketValue.Add(line.MarketValue)
				summary.UnrealizedPnL = summary.UnrealizedPnL.Add(line.UnrealizedPnL)
			} else {
				line.Stale = true
				summary.Stale = append(summary.Stale, pos.Ticker)
			}
		}
		summary.Positions = append(summary.Positions, line)
	}

	sort.Slice(summary.Positions, func(i, j int) bool {
		return summary.Positions[i].Ticker < summary.Positions[j].Ticker
	})
	sort.Strings(summary.Stale)

	summary.MarketValue = marketValue.Add(p.Cash)
	return summary
}

// InstrumentDelta is the per-instrument difference between two
// portfolios valued at the same prices. Per-side returns are the
// unrealized return against average cost, (price − avgCost) / avgCost;
// a side with no open or priceable position contributes zero.
type InstrumentDelta struct {
	Ticker        string          `json:"ticker"`
	ModelQuantity int64           `json:"model_quantity"`
	BaseQuantity  int64           `json:"base_quantity"`
	ModelValue    decimal.Decimal `json:"model_value"`
	BaseValue     decimal.Decimal `json:"base_value"`
	ValueDelta    decimal.Decimal `json:"value_delta"`
	ModelReturn   decimal.Decimal `json:"model_return"`
	BaseReturn    decimal.Decimal `json:"base_return"`
	ReturnDelta   decimal.Decimal `json:"return_delta"`
}

// ComparisonReport is the result of comparing a model portfolio to a
// base portfolio at one instant.
type ComparisonReport struct {
	ModelPortfolioID int64                    `json:"model_portfolio_id"`
	BasePortfolioID  int64                    `json:"base_portfolio_id"`
	AsOf             time.Time                `json:"as_of"`
	ModelSnapshot    models.ValuationSnapshot `json:"model_snapshot"`
	BaseSnapshot     models.ValuationSnapshot `json:"base_snapshot"`
	ValueDelta       decimal.Decimal          `json:"value_delta"`
	ModelReturn      decimal.Decimal          `json:"model_return"`
	BaseReturn       decimal.Decimal          `json:"base_return"`
	ReturnDelta      decimal.Decimal          `json:"return_delta"`
	Instruments      []InstrumentDelta        `json:"instruments"`
}

// Compare evaluates a model portfolio against a base portfolio at the
// same instant for scenario analysis. Totals come from each side's
// latest valuation snapshot at or before asOf; the two selected
// snapshots must lie within tolerance of each other or the comparison
// fails with ErrMisalignedSnapshots. Per-instrument values are marked
// to the supplied prices; returns are measured against each side's
// initial cash, and a zero initial cash on either side makes the
// return comparison undefined.
func Compare(model, base *models.Portfolio, prices map[string]models.PriceSnapshot,
	modelSnaps, baseSnaps []models.ValuationSnapshot,
	asOf time.Time, tolerance time.Duration) (*ComparisonReport, error) {

	modelSnap, ok := latestAtOrBefore(modelSnaps, asOf)
	if !ok {
		return nil, ErrNotEnoughData
	}
	baseSnap, ok := latestAtOrBefore(baseSnaps, asOf)
	if !ok {
		return nil, ErrNotEnoughData
	}

	gap := modelSnap.Timestamp.Sub(baseSnap.Timestamp)
	if gap < 0 {
		gap = -gap
	}
	if gap > tolerance {
		return nil, ErrMisalignedSnapshots
	}

	if model.InitialCash.IsZero() || base.InitialCash.IsZero() {
		return nil, ErrDivisionUndefined
	}

	report := &ComparisonReport{
		ModelPortfolioID: model.ID,
		BasePortfolioID:  base.ID,
		AsOf:             asOf,
		ModelSnapshot:    modelSnap,
		BaseSnapshot:     baseSnap,
		ValueDelta:       modelSnap.MarketValue.Sub(baseSnap.MarketValue),
		ModelReturn:      modelSnap.MarketValue.Sub(model.InitialCash).Div(model.InitialCash),
		BaseReturn:       baseSnap.MarketValue.Sub(base.InitialCash).Div(base.InitialCash),
	}
	report.ReturnDelta = report.ModelReturn.Sub(report.BaseReturn)

	for _, ticker := range unionTickers(model, base) {
		delta := InstrumentDelta{
			Ticker:      ticker,
			ModelValue:  decimal.Zero,
			BaseValue:   decimal.Zero,
			ModelReturn: decimal.Zero,
			BaseReturn:  decimal.Zero,
		}
		price, priced := prices[ticker]
		if pos := model.Position(ticker); pos != nil {
			delta.ModelQuantity = pos.Quantity
			if priced {
				delta.ModelValue = pos.MarketValue(price.Price)
				delta.ModelReturn = unrealizedReturn(pos, price.Price)
			}
		}
		if pos := base.Position(ticker); pos != nil {
			delta.BaseQuantity = pos.Quantity
			if priced {
				delta.BaseValue = pos.MarketValue(price.Price)
				delta.BaseReturn = unrealizedReturn(pos, price.Price)
			}
		}
		delta.ValueDelta = delta.ModelValue.Sub(delta.BaseValue)
		delta.ReturnDelta = delta.ModelReturn.Sub(delta.BaseReturn)
		report.Instruments = append(report.Instruments, delta)
	}

	return report, nil
}

// unrealizedReturn is (price − avgCost) / avgCost for an open
// position, zero for a closed one. Average cost is positive whenever
// quantity is, since only positive-price buys open lots.
func unrealizedReturn(pos *models.Position, price decimal.Decimal) decimal.Decimal {
	avg, ok := pos.AverageCost()
	if !ok {
		return decimal.Zero
	}
	return price.Sub(avg).Div(avg)
}

func unionTickers(a, b *models.Portfolio) []string {
	seen := make(map[string]struct{})
	for ticker := range a.Positions {
		seen[ticker] = struct{}{}
	}
	for ticker := range b.Positions {
		seen[ticker] = struct{}{}
	}
	tickers := make([]string, 0, len(seen))
	for ticker := range seen {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}
