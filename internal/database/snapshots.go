package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/bisttrack/portfolio-service/internal/models"
)

// AppendValuationSnapshot inserts one immutable snapshot. The unique
// (portfolio_id, ts) constraint backs the strict-ordering invariant:
// no two snapshots for a portfolio share a timestamp.
func (db *DB) AppendValuationSnapshot(ctx context.Context, s *models.ValuationSnapshot) error {
	query := `
		INSERT INTO valuation_snapshots (
			portfolio_id, ts, market_value, total_cost,
			unrealized_pnl, realized_pnl, cash, stale_instruments
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := db.conn.QueryRowContext(ctx, query,
		s.PortfolioID, s.Timestamp, s.MarketValue, s.TotalCost,
		s.UnrealizedPnL, s.RealizedPnL, s.Cash, pq.Array(s.StaleInstruments),
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("failed to append valuation snapshot: %w", err)
	}
	return nil
}

// ListSnapshots retrieves a portfolio's snapshots within [from, to],
// ordered by timestamp ascending. Zero bounds are open-ended.
func (db *DB) ListSnapshots(ctx context.Context, portfolioID int64, from, to time.Time) ([]models.ValuationSnapshot, error) {
	query := `
		SELECT id, portfolio_id, ts, market_value, total_cost,
		       unrealized_pnl, realized_pnl, cash, stale_instruments
		FROM valuation_snapshots
		WHERE portfolio_id = $1
	`
	args := []interface{}{portfolioID}
	argIdx := 2

	if !from.IsZero() {
		query += fmt.Sprintf(" AND ts >= $%d", argIdx)
		args = append(args, from)
		argIdx++
	}
	if !to.IsZero() {
		query += fmt.Sprintf(" AND ts <= $%d", argIdx)
		args = append(args, to)
	}
	query += " ORDER BY ts"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []models.ValuationSnapshot
	for rows.Next() {
		var s models.ValuationSnapshot
		if err := rows.Scan(
			&s.ID, &s.PortfolioID, &s.Timestamp, &s.MarketValue, &s.TotalCost,
			&s.UnrealizedPnL, &s.RealizedPnL, &s.Cash, pq.Array(&s.StaleInstruments),
		); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// LatestSnapshot retrieves a portfolio's most recent snapshot, or nil
// when the portfolio has never been valued.
func (db *DB) LatestSnapshot(ctx context.Context, portfolioID int64) (*models.ValuationSnapshot, error) {
	query := `
		SELECT id, portfolio_id, ts, market_value, total_cost,
		       unrealized_pnl, realized_pnl, cash, stale_instruments
		FROM valuation_snapshots
		WHERE portfolio_id = $1
		ORDER BY ts DESC
		LIMIT 1
	`
	var s models.ValuationSnapshot
	err := db.conn.QueryRowContext(ctx, query, portfolioID).Scan(
		&s.ID, &s.PortfolioID, &s.Timestamp, &s.MarketValue, &s.TotalCost,
		&s.UnrealizedPnL, &s.RealizedPnL, &s.Cash, pq.Array(&s.StaleInstruments),
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return &s, nil
}
