// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TradesAdmitted counts trades that passed validation and were
	// applied to a ledger.
	TradesAdmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portfolio",
		Name:      "trades_admitted_total",
		Help:      "Trades validated and applied, by side.",
	}, []string{"side"})

	// TradesRejected counts rejected trades by rejection reason.
	TradesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portfolio",
		Name:      "trades_rejected_total",
		Help:      "Trades refused by the validator, by reason.",
	}, []string{"reason"})

	// Revaluations counts completed revaluation runs.
	Revaluations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "portfolio",
		Name:      "revaluations_total",
		Help:      "Valuation snapshots produced.",
	})

	// StalePositions counts positions excluded from a valuation because
	// the price feed had no snapshot for them.
	StalePositions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "portfolio",
		Name:      "stale_positions_total",
		Help:      "Positions excluded from valuations for lack of a price.",
	})

	// MarketValue tracks the latest computed market value per portfolio.
	MarketValue = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "portfolio",
		Name:      "market_value",
		Help:      "Latest portfolio market value including cash.",
	}, []string{"portfolio"})
)
