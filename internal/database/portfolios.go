package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bisttrack/portfolio-service/internal/models"
)

// ErrPortfolioNotFound is returned when a portfolio id does not exist.
var ErrPortfolioNotFound = errors.New("portfolio not found")

// CreatePortfolio inserts a new portfolio with its initial cash.
func (db *DB) CreatePortfolio(ctx context.Context, p *models.Portfolio) error {
	query := `
		INSERT INTO portfolios (name, kind, cash, initial_cash, no_cash_check, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id
	`
	now := time.Now()
	err := db.conn.QueryRowContext(ctx, query,
		p.Name, p.Kind, p.Cash, p.InitialCash, p.NoCashCheck, now,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create portfolio: %w", err)
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// GetPortfolio retrieves a portfolio with all its positions. Both
// reads run in one repeatable-read transaction so a concurrent trade
// commit cannot leave the caller with old cash next to new positions.
func (db *DB) GetPortfolio(ctx context.Context, id int64) (*models.Portfolio, error) {
	tx, err := db.conn.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead,
		ReadOnly:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT id, name, kind, cash, initial_cash, no_cash_check, created_at, updated_at
		FROM portfolios
		WHERE id = $1
	`
	var p models.Portfolio
	err = tx.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Kind, &p.Cash, &p.InitialCash, &p.NoCashCheck,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrPortfolioNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}

	positions, err := loadPositions(ctx, tx, p.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	p.Positions = positions
	return &p, nil
}

// ListPortfolios retrieves all portfolios without their positions.
func (db *DB) ListPortfolios(ctx context.Context) ([]*models.Portfolio, error) {
	query := `
		SELECT id, name, kind, cash, initial_cash, no_cash_check, created_at, updated_at
		FROM portfolios
		ORDER BY id
	`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	defer rows.Close()

	var portfolios []*models.Portfolio
	for rows.Next() {
		var p models.Portfolio
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Kind, &p.Cash, &p.InitialCash, &p.NoCashCheck,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		portfolios = append(portfolios, &p)
	}
	return portfolios, rows.Err()
}

func loadPositions(ctx context.Context, tx *sql.Tx, portfolioID int64) (map[string]*models.Position, error) {
	query := `
		SELECT ticker, quantity, total_cost, realized_pnl
		FROM positions
		WHERE portfolio_id = $1
	`
	rows, err := tx.QueryContext(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to load positions: %w", err)
	}
	defer rows.Close()

	positions := make(map[string]*models.Position)
	for rows.Next() {
		var pos models.Position
		if err := rows.Scan(&pos.Ticker, &pos.Quantity, &pos.TotalCost, &pos.RealizedPnL); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions[pos.Ticker] = &pos
	}
	return positions, rows.Err()
}

// SavePortfolioWithTrade atomically records an applied trade: the trade
// row, the touched position, and the portfolio's cash. The trade id is
// the primary key, so re-recording the same trade fails instead of
// double-applying.
func (db *DB) SavePortfolioWithTrade(ctx context.Context, p *models.Portfolio, t *models.Trade) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	_, err = tx.ExecContext(ctx,
		`UPDATE portfolios SET cash = $2, updated_at = $3 WHERE id = $1`,
		p.ID, p.Cash, now,
	)
	if err != nil {
		return fmt.Errorf("failed to update portfolio: %w", err)
	}

	pos := p.Position(t.Ticker)
	if pos == nil {
		return fmt.Errorf("portfolio %d has no position for traded ticker %s", p.ID, t.Ticker)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO positions (portfolio_id, ticker, quantity, total_cost, realized_pnl, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (portfolio_id, ticker)
		DO UPDATE SET
			quantity = EXCLUDED.quantity,
			total_cost = EXCLUDED.total_cost,
			realized_pnl = EXCLUDED.realized_pnl,
			updated_at = EXCLUDED.updated_at
	`, p.ID, pos.Ticker, pos.Quantity, pos.TotalCost, pos.RealizedPnL, now)
	if err != nil {
		return fmt.Errorf("failed to upsert position: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO trades (id, portfolio_id, ticker, side, quantity, price, executed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING seq
	`, t.ID, p.ID, t.Ticker, t.Side, t.Quantity, t.Price, t.ExecutedAt, now).Scan(&t.Sequence)
	if err != nil {
		return fmt.Errorf("failed to append trade: %w", err)
	}
	t.CreatedAt = now
	p.UpdatedAt = now

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ResetPortfolio wipes a portfolio's trades and positions and restores
// its initial cash. Snapshot history is left alone; it is append-only.
func (db *DB) ResetPortfolio(ctx context.Context, p *models.Portfolio) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM trades WHERE portfolio_id = $1`, p.ID); err != nil {
		return fmt.Errorf("failed to delete trades: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM positions WHERE portfolio_id = $1`, p.ID); err != nil {
		return fmt.Errorf("failed to delete positions: %w", err)
	}
	now := time.Now()
	if _, err := tx.ExecContext(ctx,
		`UPDATE portfolios SET cash = initial_cash, updated_at = $2 WHERE id = $1`,
		p.ID, now,
	); err != nil {
		return fmt.Errorf("failed to reset portfolio cash: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	p.Cash = p.InitialCash
	p.Positions = make(map[string]*models.Position)
	p.UpdatedAt = now
	return nil
}
