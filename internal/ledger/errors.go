package ledger

import (
	"errors"
	"fmt"
)

// RejectReason enumerates why a trade was refused. Callers branch on
// the reason, never on message text.
type RejectReason string

const (
	ReasonInvalidTradeParameters RejectReason = "INVALID_TRADE_PARAMETERS"
	ReasonInsufficientHoldings   RejectReason = "INSUFFICIENT_HOLDINGS"
	ReasonInsufficientCash       RejectReason = "INSUFFICIENT_CASH"
)

// RejectionError is an expected, recoverable validation outcome. It is
// not an internal failure and must never be retried or logged-and-ignored;
// it is surfaced to whoever submitted the trade.
type RejectionError struct {
	Reason RejectReason
	Detail string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("trade rejected (%s): %s", e.Reason, e.Detail)
}

func reject(reason RejectReason, format string, args ...interface{}) error {
	return &RejectionError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// AsRejection unwraps a RejectionError from an error chain.
func AsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

var (
	// ErrNotEnoughData means the snapshot history does not cover the
	// requested period.
	ErrNotEnoughData = errors.New("not enough data")

	// ErrDivisionUndefined means a return was requested over a period
	// whose starting value is zero. It is never coerced to 0 or Inf.
	ErrDivisionUndefined = errors.New("return undefined: starting value is zero")

	// ErrMisalignedSnapshots means two portfolios could not be compared
	// because their nearest valuation snapshots are too far apart.
	ErrMisalignedSnapshots = errors.New("valuation snapshots are misaligned")

	// ErrSnapshotOutOfOrder means an appended snapshot does not strictly
	// follow the portfolio's latest one.
	ErrSnapshotOutOfOrder = errors.New("valuation snapshot out of order")
)
