// Package service orchestrates the ledger core against its
// collaborators: the repository, the price feed, the price cache, and
// the snapshot publisher. All mutations to one portfolio are serialized
// here; the ledger itself stays pure.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bisttrack/portfolio-service/internal/database"
	"github.com/bisttrack/portfolio-service/internal/models"
)

// Repository is the persistence contract the core consumes. The
// Postgres implementation lives in internal/database.
type Repository interface {
	CreatePortfolio(ctx context.Context, p *models.Portfolio) error
	GetPortfolio(ctx context.Context, id int64) (*models.Portfolio, error)
	ListPortfolios(ctx context.Context) ([]*models.Portfolio, error)
	SavePortfolioWithTrade(ctx context.Context, p *models.Portfolio, t *models.Trade) error
	ResetPortfolio(ctx context.Context, p *models.Portfolio) error

	ListTrades(ctx context.Context, portfolioID int64) ([]models.Trade, error)
	TradeExists(ctx context.Context, id uuid.UUID) (bool, error)

	AppendValuationSnapshot(ctx context.Context, s *models.ValuationSnapshot) error
	ListSnapshots(ctx context.Context, portfolioID int64, from, to time.Time) ([]models.ValuationSnapshot, error)
	LatestSnapshot(ctx context.Context, portfolioID int64) (*models.ValuationSnapshot, error)

	UpsertInstrument(ctx context.Context, inst *models.Instrument) error
	ListHeldTickers(ctx context.Context) ([]string, error)
}

// PriceFeed is the market data contract. Implementations may omit
// entries for tickers they cannot price.
type PriceFeed interface {
	FetchPrices(ctx context.Context, tickers []string) (map[string]models.PriceSnapshot, error)
}

// PriceCache sits in front of the feed; both methods are best-effort.
type PriceCache interface {
	GetPriceSnapshots(ctx context.Context, tickers []string) (map[string]models.PriceSnapshot, error)
	SetPriceSnapshot(ctx context.Context, snap models.PriceSnapshot, ttl time.Duration) error
}

// SnapshotPublisher announces appended valuation snapshots downstream.
type SnapshotPublisher interface {
	PublishValuationSnapshot(ctx context.Context, snap models.ValuationSnapshot) error
}

var (
	// ErrRepositoryUnavailable wraps persistence failures. The service
	// never retries silently; retry is the caller's call.
	ErrRepositoryUnavailable = errors.New("repository unavailable")

	// ErrDuplicateTrade means the trade id was already consumed.
	ErrDuplicateTrade = errors.New("trade already applied")

	// ErrNotModelPortfolio guards operations reserved for simulated
	// portfolios, such as reset.
	ErrNotModelPortfolio = errors.New("operation allowed only on model portfolios")
)

// repoError classifies a repository failure: not-found passes through,
// everything else counts as the repository being unavailable.
func repoError(op string, err error) error {
	if errors.Is(err, database.ErrPortfolioNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrRepositoryUnavailable, err)
}
