package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bisttrack/portfolio-service/internal/ledger"
	"github.com/bisttrack/portfolio-service/internal/metrics"
	"github.com/bisttrack/portfolio-service/internal/models"
)

// PortfolioService owns portfolio lifecycle and trade application.
type PortfolioService struct {
	repo   Repository
	locks  *PortfolioLocks
	logger *zap.Logger
}

// NewPortfolioService creates a PortfolioService.
func NewPortfolioService(repo Repository, locks *PortfolioLocks, logger *zap.Logger) *PortfolioService {
	return &PortfolioService{repo: repo, locks: locks, logger: logger}
}

// CreatePortfolio creates a REAL or MODEL portfolio with its starting
// cash. The no-cash-check flag is only meaningful on MODEL portfolios.
func (s *PortfolioService) CreatePortfolio(ctx context.Context, name string, kind models.PortfolioKind, initialCash decimal.Decimal, noCashCheck bool) (*models.Portfolio, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("portfolio name is required")
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown portfolio kind %q", kind)
	}
	if !initialCash.IsPositive() {
		return nil, fmt.Errorf("initial cash must be positive, got %s", initialCash)
	}
	if noCashCheck && kind != models.PortfolioKindModel {
		return nil, fmt.Errorf("no-cash-check is a model portfolio flag")
	}

	p := &models.Portfolio{
		Name:        name,
		Kind:        kind,
		Cash:        initialCash,
		InitialCash: initialCash,
		NoCashCheck: noCashCheck,
		Positions:   make(map[string]*models.Position),
	}
	if err := s.repo.CreatePortfolio(ctx, p); err != nil {
		return nil, repoError("create portfolio", err)
	}

	s.logger.Info("portfolio created",
		zap.Int64("portfolio_id", p.ID),
		zap.String("kind", string(p.Kind)),
		zap.String("initial_cash", p.InitialCash.String()))
	return p, nil
}

// GetPortfolio loads a portfolio with its positions. Callers get their
// own copy of the state; they never share memory with a writer.
func (s *PortfolioService) GetPortfolio(ctx context.Context, id int64) (*models.Portfolio, error) {
	p, err := s.repo.GetPortfolio(ctx, id)
	if err != nil {
		return nil, repoError("load portfolio", err)
	}
	return p, nil
}

// ListPortfolios lists all portfolios.
func (s *PortfolioService) ListPortfolios(ctx context.Context) ([]*models.Portfolio, error) {
	portfolios, err := s.repo.ListPortfolios(ctx)
	if err != nil {
		return nil, repoError("list portfolios", err)
	}
	return portfolios, nil
}

// ListTrades returns a portfolio's trade history in replay order.
func (s *PortfolioService) ListTrades(ctx context.Context, portfolioID int64) ([]models.Trade, error) {
	if _, err := s.repo.GetPortfolio(ctx, portfolioID); err != nil {
		return nil, repoError("load portfolio", err)
	}
	trades, err := s.repo.ListTrades(ctx, portfolioID)
	if err != nil {
		return nil, repoError("list trades", err)
	}
	return trades, nil
}

// SubmitTrade validates and applies one trade under the portfolio's
// lock, then persists trade, position, and cash atomically. Each trade
// id is consumed exactly once; resubmitting one fails with
// ErrDuplicateTrade and no state change. Validation rejections are
// expected outcomes, returned to the caller as typed RejectionErrors.
func (s *PortfolioService) SubmitTrade(ctx context.Context, trade models.Trade) (*ledger.PositionDelta, error) {
	trade.Ticker = models.NormalizeTicker(trade.Ticker)
	if trade.ID == uuid.Nil {
		trade.ID = uuid.New()
	}
	if trade.ExecutedAt.IsZero() {
		trade.ExecutedAt = time.Now()
	}

	unlock := s.locks.Lock(trade.PortfolioID)
	defer unlock()

	exists, err := s.repo.TradeExists(ctx, trade.ID)
	if err != nil {
		return nil, repoError("check trade identity", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTrade, trade.ID)
	}

	p, err := s.repo.GetPortfolio(ctx, trade.PortfolioID)
	if err != nil {
		return nil, repoError("load portfolio", err)
	}

	delta, err := ledger.ApplyTrade(p, trade)
	if err != nil {
		if rej, ok := ledger.AsRejection(err); ok {
			metrics.TradesRejected.WithLabelValues(string(rej.Reason)).Inc()
			s.logger.Info("trade rejected",
				zap.Int64("portfolio_id", trade.PortfolioID),
				zap.String("ticker", trade.Ticker),
				zap.String("reason", string(rej.Reason)))
		}
		return nil, err
	}

	// The instrument table learns tickers as they are first traded.
	if trade.Side == models.TradeSideBuy {
		inst := &models.Instrument{Ticker: trade.Ticker, Name: trade.Ticker}
		if err := s.repo.UpsertInstrument(ctx, inst); err != nil {
			return nil, repoError("upsert instrument", err)
		}
	}

	if err := s.repo.SavePortfolioWithTrade(ctx, p, &trade); err != nil {
		return nil, repoError("persist trade", err)
	}

	metrics.TradesAdmitted.WithLabelValues(string(trade.Side)).Inc()
	s.logger.Info("trade applied",
		zap.Int64("portfolio_id", trade.PortfolioID),
		zap.String("trade_id", trade.ID.String()),
		zap.String("ticker", trade.Ticker),
		zap.String("side", string(trade.Side)),
		zap.Int64("quantity", trade.Quantity),
		zap.String("price", trade.Price.String()))
	return &delta, nil
}

// RebuildFromTrades replays a portfolio's full trade log onto a fresh
// state starting from its initial cash. The persisted state is not
// touched; callers diff the result against the live portfolio to detect
// drift. A replay failure on a previously admitted log means the log
// itself is corrupt.
func (s *PortfolioService) RebuildFromTrades(ctx context.Context, id int64) (*models.Portfolio, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	p, err := s.repo.GetPortfolio(ctx, id)
	if err != nil {
		return nil, repoError("load portfolio", err)
	}
	trades, err := s.repo.ListTrades(ctx, id)
	if err != nil {
		return nil, repoError("list trades", err)
	}

	rebuilt := &models.Portfolio{
		ID:          p.ID,
		Name:        p.Name,
		Kind:        p.Kind,
		Cash:        p.InitialCash,
		InitialCash: p.InitialCash,
		NoCashCheck: p.NoCashCheck,
		Positions:   make(map[string]*models.Position),
	}
	if err := ledger.ReplayTrades(rebuilt, trades); err != nil {
		return nil, fmt.Errorf("replay trade log for portfolio %d: %w", id, err)
	}
	return rebuilt, nil
}

// ResetPortfolio wipes a MODEL portfolio back to its initial cash,
// deleting trades and positions. Real portfolios cannot be reset; the
// trade log is the book of record.
func (s *PortfolioService) ResetPortfolio(ctx context.Context, id int64) (*models.Portfolio, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	p, err := s.repo.GetPortfolio(ctx, id)
	if err != nil {
		return nil, repoError("load portfolio", err)
	}
	if p.Kind != models.PortfolioKindModel {
		return nil, fmt.Errorf("%w: portfolio %d is %s", ErrNotModelPortfolio, id, p.Kind)
	}

	if err := s.repo.ResetPortfolio(ctx, p); err != nil {
		return nil, repoError("reset portfolio", err)
	}

	s.logger.Info("portfolio reset", zap.Int64("portfolio_id", id))
	return p, nil
}
