package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrWatchlistNotFound is returned when a watchlist id does not exist.
var ErrWatchlistNotFound = errors.New("watchlist not found")

// Watchlist is a named tag list of tickers. Pure bookkeeping: no
// derived state hangs off it.
type Watchlist struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Tickers     []string  `json:"tickers"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateWatchlist inserts a new empty watchlist.
func (db *DB) CreateWatchlist(ctx context.Context, w *Watchlist) error {
	query := `
		INSERT INTO watchlists (name, description, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	now := time.Now()
	err := db.conn.QueryRowContext(ctx, query, w.Name, w.Description, now).Scan(&w.ID)
	if err != nil {
		return fmt.Errorf("failed to create watchlist: %w", err)
	}
	w.CreatedAt = now
	return nil
}

// GetWatchlist retrieves a watchlist with its tickers.
func (db *DB) GetWatchlist(ctx context.Context, id int64) (*Watchlist, error) {
	var w Watchlist
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM watchlists WHERE id = $1`, id,
	).Scan(&w.ID, &w.Name, &w.Description, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrWatchlistNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get watchlist: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT ticker FROM watchlist_items WHERE watchlist_id = $1 ORDER BY ticker`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get watchlist items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist item: %w", err)
		}
		w.Tickers = append(w.Tickers, ticker)
	}
	return &w, rows.Err()
}

// ListWatchlists retrieves all watchlists without their items.
func (db *DB) ListWatchlists(ctx context.Context) ([]Watchlist, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, description, created_at FROM watchlists ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list watchlists: %w", err)
	}
	defer rows.Close()

	var lists []Watchlist
	for rows.Next() {
		var w Watchlist
		if err := rows.Scan(&w.ID, &w.Name, &w.Description, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist: %w", err)
		}
		lists = append(lists, w)
	}
	return lists, rows.Err()
}

// AddWatchlistItem tags a ticker onto a watchlist; adding the same
// ticker twice is a no-op.
func (db *DB) AddWatchlistItem(ctx context.Context, watchlistID int64, ticker string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO watchlist_items (watchlist_id, ticker, added_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (watchlist_id, ticker) DO NOTHING
	`, watchlistID, ticker, time.Now())
	if err != nil {
		return fmt.Errorf("failed to add watchlist item: %w", err)
	}
	return nil
}

// RemoveWatchlistItem removes a ticker from a watchlist.
func (db *DB) RemoveWatchlistItem(ctx context.Context, watchlistID int64, ticker string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM watchlist_items WHERE watchlist_id = $1 AND ticker = $2`,
		watchlistID, ticker)
	if err != nil {
		return fmt.Errorf("failed to remove watchlist item: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("ticker %s not on watchlist %d", ticker, watchlistID)
	}
	return nil
}

// DeleteWatchlist removes a watchlist and its items.
func (db *DB) DeleteWatchlist(ctx context.Context, id int64) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM watchlists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete watchlist: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrWatchlistNotFound, id)
	}
	return nil
}
