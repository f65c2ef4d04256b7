package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bisttrack/portfolio-service/internal/models"
)

// Period is a lookback window for return calculations.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// Duration converts the period to its lookback span. Months are 30
// days, matching the snapshot cadence this service records at.
func (p Period) Duration() (time.Duration, error) {
	switch p {
	case PeriodDay:
		return 24 * time.Hour, nil
	case PeriodWeek:
		return 7 * 24 * time.Hour, nil
	case PeriodMonth:
		return 30 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown period %q", p)
	}
}

// PeriodReturn computes (end-start)/start over the period ending at
// asOf, using the latest snapshot at or before each endpoint. Snapshot
// history may have gaps; selection never interpolates. ErrNotEnoughData
// is returned when either endpoint has no snapshot, ErrDivisionUndefined
// when the starting value is zero.
//
// The snapshots slice must be ordered by timestamp ascending, which is
// how the repository lists them.
func PeriodReturn(snapshots []models.ValuationSnapshot, asOf time.Time, period Period) (decimal.Decimal, error) {
	span, err := period.Duration()
	if err != nil {
		return decimal.Zero, err
	}

	end, ok := latestAtOrBefore(snapshots, asOf)
	if !ok {
		return decimal.Zero, ErrNotEnoughData
	}
	start, ok := latestAtOrBefore(snapshots, asOf.Add(-span))
	if !ok {
		return decimal.Zero, ErrNotEnoughData
	}

	if start.MarketValue.IsZero() {
		return decimal.Zero, ErrDivisionUndefined
	}
	return end.MarketValue.Sub(start.MarketValue).Div(start.MarketValue), nil
}

// latestAtOrBefore returns the last snapshot not after t.
func latestAtOrBefore(snapshots []models.ValuationSnapshot, t time.Time) (models.ValuationSnapshot, bool) {
	for i := len(snapshots) - 1; i >= 0; i-- {
		if !snapshots[i].Timestamp.After(t) {
			return snapshots[i], true
		}
	}
	return models.ValuationSnapshot{}, false
}
