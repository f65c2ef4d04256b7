package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bisttrack/portfolio-service/internal/models"
)

func priceMap(at time.Time, pairs map[string]string) map[string]models.PriceSnapshot {
	prices := make(map[string]models.PriceSnapshot, len(pairs))
	for ticker, price := range pairs {
		prices[ticker] = models.PriceSnapshot{
			Ticker:    ticker,
			Price:     decimal.RequireFromString(price),
			Timestamp: at,
		}
	}
	return prices
}

func TestRevalue_TotalsIncludeCash(t *testing.T) {
	p := newTestPortfolio("100000")
	now := time.Now()
	_, err := ApplyTrade(p, newTrade("ASELS.IS", models.TradeSideBuy, 100, "10", now))
	require.NoError(t, err)
	_, err = ApplyTrade(p, newTrade("THYAO.IS", models.TradeSideBuy, 20, "250", now))
	require.NoError(t, err)

	prices := priceMap(now, map[string]string{"ASELS.IS": "12", "THYAO.IS": "260"})
	snap := Revalue(p, prices, now)

	// Positions: 100*12 + 20*260 = 6400. Cash: 100000 - 1000 - 5000 = 94000.
	assert.True(t, snap.MarketValue.Equal(decimal.RequireFromString("100400")), "market value %s", snap.MarketValue)
	assert.True(t, snap.UnrealizedPnL.Equal(decimal.RequireFromString("400")), "unrealized %s", snap.UnrealizedPnL)
	assert.True(t, snap.Cash.Equal(decimal.RequireFromString("94000")))
	assert.True(t, snap.RealizedPnL.IsZero())
	assert.False(t, snap.Stale())

	// Sum of per-instrument market values + cash == total market value.
	positions := decimal.Zero
	for ticker, pos := range p.Positions {
		positions = positions.Add(pos.MarketValue(prices[ticker].Price))
	}
	assert.True(t, positions.Add(p.Cash).Equal(snap.MarketValue))
}

func TestRevalue_MissingPriceFlagsStaleAndExcludes(t *testing.T) {
	p := newTestPortfolio("100000")
	now := time.Now()
	_, err := ApplyTrade(p, newTrade("ASELS.IS", models.TradeSideBuy, 100, "10", now))
	require.NoError(t, err)
	_, err = ApplyTrade(p, newTrade("THYAO.IS", models.TradeSideBuy, 20, "250", now))
	require.NoError(t, err)

	// THYAO missing from the feed.
	prices := priceMap(now, map[string]string{"ASELS.IS": "12"})
	snap := Revalue(p, prices, now)

	require.True(t, snap.Stale())
	assert.Equal(t, []string{"THYAO.IS"}, snap.StaleInstruments)
	// 100*12 + cash 94000; THYAO excluded entirely.
	assert.True(t, snap.MarketValue.Equal(decimal.RequireFromString("95200")), "market value %s", snap.MarketValue)
	assert.True(t, snap.UnrealizedPnL.Equal(decimal.RequireFromString("200")))
}

func TestRevalue_ClosedPositionsIgnoredButRealizedCounted(t *testing.T) {
	p := newTestPortfolio("10000")
	now := time.Now()
	_, err := ApplyTrade(p, newTrade("GARAN.IS", models.TradeSideBuy, 10, "100", now))
	require.NoError(t, err)
	_, err = ApplyTrade(p, newTrade("GARAN.IS", models.TradeSideSell, 10, "110", now.Add(time.Minute)))
	require.NoError(t, err)

	snap := Revalue(p, nil, now.Add(time.Hour))
	assert.False(t, snap.Stale(), "closed position without a price is not stale")
	assert.True(t, snap.RealizedPnL.Equal(decimal.RequireFromString("100")))
	assert.True(t, snap.MarketValue.Equal(p.Cash))
}

func TestRevalue_Idempotent(t *testing.T) {
	p := newTestPortfolio("100000")
	now := time.Now()
	_, err := ApplyTrade(p, newTrade("ASELS.IS", models.TradeSideBuy, 33, "10.37", now))
	require.NoError(t, err)

	prices := priceMap(now, map[string]string{"ASELS.IS": "11.113"})
	first := Revalue(p, prices, now)
	second := Revalue(p, prices, now)

	assert.True(t, first.MarketValue.Equal(second.MarketValue))
	assert.True(t, first.UnrealizedPnL.Equal(second.UnrealizedPnL))
	assert.True(t, first.RealizedPnL.Equal(second.RealizedPnL))
	assert.True(t, first.TotalCost.Equal(second.TotalCost))
	assert.Equal(t, first.StaleInstruments, second.StaleInstruments)
}
