package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bisttrack/portfolio-service/internal/models"
)

func TestValidateTrade_ParameterGuards(t *testing.T) {
	p := newTestPortfolio("10000")
	now := time.Now()

	cases := []struct {
		name  string
		trade models.Trade
	}{
		{"zero quantity", newTrade("ASELS.IS", models.TradeSideBuy, 0, "10", now)},
		{"negative quantity", newTrade("ASELS.IS", models.TradeSideBuy, -5, "10", now)},
		{"zero price", newTrade("ASELS.IS", models.TradeSideBuy, 10, "0", now)},
		{"negative price", newTrade("ASELS.IS", models.TradeSideSell, 10, "-1", now)},
		{"missing ticker", newTrade("", models.TradeSideBuy, 10, "10", now)},
		{
			"unknown side",
			models.Trade{Ticker: "ASELS.IS", Side: "HOLD", Quantity: 1, Price: decimal.NewFromInt(1), ExecutedAt: now},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTrade(p, tc.trade)
			require.Error(t, err)
			rej, ok := AsRejection(err)
			require.True(t, ok)
			assert.Equal(t, ReasonInvalidTradeParameters, rej.Reason)
		})
	}
}

func TestValidateTrade_BuyCashRule(t *testing.T) {
	p := newTestPortfolio("1000")
	now := time.Now()

	// Exactly affordable.
	assert.NoError(t, ValidateTrade(p, newTrade("ASELS.IS", models.TradeSideBuy, 100, "10", now)))

	// One lot too many.
	err := ValidateTrade(p, newTrade("ASELS.IS", models.TradeSideBuy, 101, "10", now))
	require.Error(t, err)
	rej, _ := AsRejection(err)
	assert.Equal(t, ReasonInsufficientCash, rej.Reason)
}

func TestValidateTrade_SellRequiresHoldings(t *testing.T) {
	p := newTestPortfolio("10000")
	now := time.Now()

	// No position at all.
	err := ValidateTrade(p, newTrade("ASELS.IS", models.TradeSideSell, 1, "10", now))
	require.Error(t, err)
	rej, _ := AsRejection(err)
	assert.Equal(t, ReasonInsufficientHoldings, rej.Reason)

	_, err = ApplyTrade(p, newTrade("ASELS.IS", models.TradeSideBuy, 50, "10", now))
	require.NoError(t, err)

	assert.NoError(t, ValidateTrade(p, newTrade("ASELS.IS", models.TradeSideSell, 50, "11", now)))
	err = ValidateTrade(p, newTrade("ASELS.IS", models.TradeSideSell, 51, "11", now))
	require.Error(t, err)
}

func TestValidateTrade_IsPure(t *testing.T) {
	p := newTestPortfolio("10000")
	_, err := ApplyTrade(p, newTrade("ASELS.IS", models.TradeSideBuy, 50, "10", time.Now()))
	require.NoError(t, err)

	before := p.Clone()
	_ = ValidateTrade(p, newTrade("ASELS.IS", models.TradeSideSell, 10, "12", time.Now()))
	_ = ValidateTrade(p, newTrade("ASELS.IS", models.TradeSideSell, 999, "12", time.Now()))

	assert.True(t, p.Cash.Equal(before.Cash))
	assert.Equal(t, before.Position("ASELS.IS").Quantity, p.Position("ASELS.IS").Quantity)
}
