package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bisttrack/portfolio-service/internal/models"
)

func TestSummarize(t *testing.T) {
	p := newTestPortfolio("100000")
	now := time.Now()
	_, err := ApplyTrade(p, newTrade("ASELS.IS", models.TradeSideBuy, 100, "10", now))
	require.NoError(t, err)
	_, err = ApplyTrade(p, newTrade("THYAO.IS", models.TradeSideBuy, 20, "250", now))
	require.NoError(t, err)
	_, err = ApplyTrade(p, newTrade("ASELS.IS", models.TradeSideSell, 40, "12", now.Add(time.Minute)))
	require.NoError(t, err)

	prices := priceMap(now, map[string]string{"ASELS.IS": "11", "THYAO.IS": "255"})
	summary := Summarize(p, prices, now.Add(time.Hour))

	require.Len(t, summary.Positions, 2)
	assert.Equal(t, "ASELS.IS", summary.Positions[0].Ticker, "positions sorted by ticker")
	assert.Equal(t, "THYAO.IS", summary.Positions[1].Ticker)

	asels := summary.Positions[0]
	assert.EqualValues(t, 60, asels.Quantity)
	assert.True(t, asels.AverageCost.Equal(decimal.RequireFromString("10")))
	assert.True(t, asels.RealizedPnL.Equal(decimal.RequireFromString("80")), "40*(12-10)")
	assert.True(t, asels.MarketValue.Equal(decimal.RequireFromString("660")))

	// Cash: 100000 - 1000 - 5000 + 480 = 94480. Market: 660 + 5100 + cash.
	assert.True(t, summary.MarketValue.Equal(decimal.RequireFromString("100240")), "market value %s", summary.MarketValue)
	assert.True(t, summary.RealizedPnL.Equal(decimal.RequireFromString("80")))
	assert.Empty(t, summary.Stale)
}

func TestSummarize_StalePosition(t *testing.T) {
	p := newTestPortfolio("10000")
	now := time.Now()
	_, err := ApplyTrade(p, newTrade("ASELS.IS", models.TradeSideBuy, 10, "10", now))
	require.NoError(t, err)

	summary := Summarize(p, nil, now)
	require.Len(t, summary.Positions, 1)
	assert.True(t, summary.Positions[0].Stale)
	assert.Equal(t, []string{"ASELS.IS"}, summary.Stale)
	assert.True(t, summary.MarketValue.Equal(p.Cash), "stale position excluded from value")
}

func compareFixture(t *testing.T) (*models.Portfolio, *models.Portfolio, map[string]models.PriceSnapshot, time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 6, 18, 0, 0, 0, time.UTC)

	base := newTestPortfolio("100000")
	_, err := ApplyTrade(base, newTrade("ASELS.IS", models.TradeSideBuy, 100, "10", now.Add(-48*time.Hour)))
	require.NoError(t, err)

	model := newTestPortfolio("100000")
	model.ID = 2
	model.Kind = models.PortfolioKindModel
	_, err = ApplyTrade(model, newTrade("ASELS.IS", models.TradeSideBuy, 50, "10", now.Add(-48*time.Hour)))
	require.NoError(t, err)
	_, err = ApplyTrade(model, newTrade("THYAO.IS", models.TradeSideBuy, 2, "250", now.Add(-48*time.Hour)))
	require.NoError(t, err)

	prices := priceMap(now, map[string]string{"ASELS.IS": "12", "THYAO.IS": "260"})
	return model, base, prices, now
}

func TestCompare(t *testing.T) {
	model, base, prices, now := compareFixture(t)

	modelSnaps := []models.ValuationSnapshot{Revalue(model, prices, now.Add(-time.Minute))}
	baseSnaps := []models.ValuationSnapshot{Revalue(base, prices, now.Add(-2*time.Minute))}

	report, err := Compare(model, base, prices, modelSnaps, baseSnaps, now, 15*time.Minute)
	require.NoError(t, err)

	// model: 50*12 + 2*260 + 99000 = 100120; base: 100*12 + 99000 = 100200.
	assert.True(t, report.ValueDelta.Equal(decimal.RequireFromString("-80")), "value delta %s", report.ValueDelta)
	assert.True(t, report.ReturnDelta.Equal(decimal.RequireFromString("-0.0008")), "return delta %s", report.ReturnDelta)

	require.Len(t, report.Instruments, 2)
	asels := report.Instruments[0]
	assert.Equal(t, "ASELS.IS", asels.Ticker)
	assert.EqualValues(t, 50, asels.ModelQuantity)
	assert.EqualValues(t, 100, asels.BaseQuantity)
	assert.True(t, asels.ValueDelta.Equal(decimal.RequireFromString("-600")))
	// Both sides bought ASELS at 10, priced at 12: 0.2 return each.
	assert.True(t, asels.ModelReturn.Equal(decimal.RequireFromString("0.2")), "model return %s", asels.ModelReturn)
	assert.True(t, asels.BaseReturn.Equal(decimal.RequireFromString("0.2")))
	assert.True(t, asels.ReturnDelta.IsZero())

	thyao := report.Instruments[1]
	assert.Equal(t, "THYAO.IS", thyao.Ticker)
	assert.EqualValues(t, 0, thyao.BaseQuantity)
	assert.True(t, thyao.ValueDelta.Equal(decimal.RequireFromString("520")))
	// Model holds THYAO at 250 priced 260; base holds none.
	assert.True(t, thyao.ModelReturn.Equal(decimal.RequireFromString("0.04")), "model return %s", thyao.ModelReturn)
	assert.True(t, thyao.BaseReturn.IsZero())
	assert.True(t, thyao.ReturnDelta.Equal(decimal.RequireFromString("0.04")))
}

func TestCompare_MisalignedSnapshots(t *testing.T) {
	model, base, prices, now := compareFixture(t)

	modelSnaps := []models.ValuationSnapshot{Revalue(model, prices, now.Add(-time.Minute))}
	baseSnaps := []models.ValuationSnapshot{Revalue(base, prices, now.Add(-3*time.Hour))}

	_, err := Compare(model, base, prices, modelSnaps, baseSnaps, now, 15*time.Minute)
	assert.ErrorIs(t, err, ErrMisalignedSnapshots)
}

func TestCompare_MissingSnapshots(t *testing.T) {
	model, base, prices, now := compareFixture(t)
	baseSnaps := []models.ValuationSnapshot{Revalue(base, prices, now)}

	_, err := Compare(model, base, prices, nil, baseSnaps, now, 15*time.Minute)
	assert.ErrorIs(t, err, ErrNotEnoughData)
}
