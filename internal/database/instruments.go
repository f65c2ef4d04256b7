package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bisttrack/portfolio-service/internal/models"
)

// ErrInstrumentNotFound is returned when a ticker is not in the
// instrument directory.
var ErrInstrumentNotFound = errors.New("instrument not found")

// UpsertInstrument inserts an instrument or, when the ticker already
// exists, fills in a missing display name. Instruments are otherwise
// immutable.
func (db *DB) UpsertInstrument(ctx context.Context, inst *models.Instrument) error {
	query := `
		INSERT INTO instruments (ticker, name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (ticker)
		DO UPDATE SET name = CASE
			WHEN instruments.name = '' THEN EXCLUDED.name
			ELSE instruments.name
		END
		RETURNING id, name, created_at
	`
	err := db.conn.QueryRowContext(ctx, query,
		inst.Ticker, inst.Name, time.Now(),
	).Scan(&inst.ID, &inst.Name, &inst.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert instrument %s: %w", inst.Ticker, err)
	}
	return nil
}

// GetInstrument retrieves an instrument by ticker.
func (db *DB) GetInstrument(ctx context.Context, ticker string) (*models.Instrument, error) {
	query := `SELECT id, ticker, name, created_at FROM instruments WHERE ticker = $1`

	var inst models.Instrument
	err := db.conn.QueryRowContext(ctx, query, ticker).Scan(
		&inst.ID, &inst.Ticker, &inst.Name, &inst.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrInstrumentNotFound, ticker)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instrument: %w", err)
	}
	return &inst, nil
}

// ListInstruments retrieves all instruments ordered by ticker.
func (db *DB) ListInstruments(ctx context.Context) ([]models.Instrument, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, ticker, name, created_at FROM instruments ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("failed to list instruments: %w", err)
	}
	defer rows.Close()

	var instruments []models.Instrument
	for rows.Next() {
		var inst models.Instrument
		if err := rows.Scan(&inst.ID, &inst.Ticker, &inst.Name, &inst.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		instruments = append(instruments, inst)
	}
	return instruments, rows.Err()
}

// ListHeldTickers returns every ticker with an open position in any
// portfolio; the scheduled revaluation prices exactly this set.
func (db *DB) ListHeldTickers(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT DISTINCT ticker FROM positions WHERE quantity > 0 ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("failed to list held tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, ticker)
	}
	return tickers, rows.Err()
}
