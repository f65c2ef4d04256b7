package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bisttrack/portfolio-service/internal/models"
)

// ListTrades retrieves a portfolio's full trade history in replay
// order: execution timestamp first, insertion sequence as the tiebreak.
func (db *DB) ListTrades(ctx context.Context, portfolioID int64) ([]models.Trade, error) {
	query := `
		SELECT id, portfolio_id, ticker, side, quantity, price, executed_at, seq, created_at
		FROM trades
		WHERE portfolio_id = $1
		ORDER BY executed_at, seq
	`
	rows, err := db.conn.QueryContext(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		var t models.Trade
		if err := rows.Scan(
			&t.ID, &t.PortfolioID, &t.Ticker, &t.Side, &t.Quantity, &t.Price,
			&t.ExecutedAt, &t.Sequence, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// TradeExists reports whether a trade id has already been recorded.
// Used by the service layer to consume each trade identity exactly once.
func (db *DB) TradeExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM trades WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check trade existence: %w", err)
	}
	return exists, nil
}
