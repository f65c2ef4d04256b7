package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bisttrack/portfolio-service/internal/ledger"
	"github.com/bisttrack/portfolio-service/internal/metrics"
	"github.com/bisttrack/portfolio-service/internal/models"
)

// ValuationService runs revaluations, summaries, period returns, and
// portfolio comparisons. Cache and publisher are optional; a nil cache
// means every lookup hits the feed, a nil publisher means snapshots are
// not announced.
type ValuationService struct {
	repo      Repository
	feed      PriceFeed
	cache     PriceCache
	publisher SnapshotPublisher
	locks     *PortfolioLocks
	logger    *zap.Logger
	cacheTTL  time.Duration
	tolerance time.Duration
}

// NewValuationService creates a ValuationService.
func NewValuationService(repo Repository, feed PriceFeed, cache PriceCache, publisher SnapshotPublisher,
	locks *PortfolioLocks, logger *zap.Logger, cacheTTL, compareTolerance time.Duration) *ValuationService {
	return &ValuationService{
		repo:      repo,
		feed:      feed,
		cache:     cache,
		publisher: publisher,
		locks:     locks,
		logger:    logger,
		cacheTTL:  cacheTTL,
		tolerance: compareTolerance,
	}
}

// prices resolves snapshots for tickers, serving from the cache first
// and asking the feed only for the misses. Cache failures degrade to
// feed lookups; feed omissions stay omitted (stale per the engine).
func (s *ValuationService) prices(ctx context.Context, tickers []string) (map[string]models.PriceSnapshot, error) {
	if len(tickers) == 0 {
		return map[string]models.PriceSnapshot{}, nil
	}

	resolved := make(map[string]models.PriceSnapshot, len(tickers))
	if s.cache != nil {
		cached, err := s.cache.GetPriceSnapshots(ctx, tickers)
		if err != nil {
			s.logger.Warn("price cache read failed", zap.Error(err))
		} else {
			for ticker, snap := range cached {
				resolved[ticker] = snap
			}
		}
	}

	var missing []string
	for _, ticker := range tickers {
		if _, ok := resolved[ticker]; !ok {
			missing = append(missing, ticker)
		}
	}
	if len(missing) == 0 {
		return resolved, nil
	}

	fetched, err := s.feed.FetchPrices(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("price feed: %w", err)
	}
	for ticker, snap := range fetched {
		resolved[ticker] = snap
		if s.cache != nil {
			if err := s.cache.SetPriceSnapshot(ctx, snap, s.cacheTTL); err != nil {
				s.logger.Warn("price cache write failed", zap.String("ticker", ticker), zap.Error(err))
			}
		}
	}
	return resolved, nil
}

func openTickers(p *models.Portfolio) []string {
	var tickers []string
	for ticker, pos := range p.Positions {
		if pos.Quantity > 0 {
			tickers = append(tickers, ticker)
		}
	}
	return tickers
}

// RevaluePortfolio marks one portfolio to current prices and appends
// the resulting snapshot. The snapshot must be strictly after the
// portfolio's latest one; past snapshots are never touched.
func (s *ValuationService) RevaluePortfolio(ctx context.Context, id int64, asOf time.Time) (*models.ValuationSnapshot, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	p, err := s.repo.GetPortfolio(ctx, id)
	if err != nil {
		return nil, repoError("load portfolio", err)
	}

	latest, err := s.repo.LatestSnapshot(ctx, id)
	if err != nil {
		return nil, repoError("load latest snapshot", err)
	}
	if latest != nil && !asOf.After(latest.Timestamp) {
		return nil, fmt.Errorf("%w: %s not after %s",
			ledger.ErrSnapshotOutOfOrder, asOf.Format(time.RFC3339), latest.Timestamp.Format(time.RFC3339))
	}

	prices, err := s.prices(ctx, openTickers(p))
	if err != nil {
		return nil, err
	}

	snapshot := ledger.Revalue(p, prices, asOf)
	if err := s.repo.AppendValuationSnapshot(ctx, &snapshot); err != nil {
		return nil, repoError("append snapshot", err)
	}

	metrics.Revaluations.Inc()
	metrics.StalePositions.Add(float64(len(snapshot.StaleInstruments)))
	metrics.MarketValue.WithLabelValues(p.Name).Set(snapshot.MarketValue.InexactFloat64())

	if s.publisher != nil {
		if err := s.publisher.PublishValuationSnapshot(ctx, snapshot); err != nil {
			// Announcing is best-effort; the snapshot is already durable.
			s.logger.Warn("snapshot publish failed", zap.Int64("portfolio_id", id), zap.Error(err))
		}
	}

	s.logger.Info("portfolio revalued",
		zap.Int64("portfolio_id", id),
		zap.String("market_value", snapshot.MarketValue.String()),
		zap.Strings("stale", snapshot.StaleInstruments))
	return &snapshot, nil
}

// RevalueAll revalues every portfolio at one instant. Failures on one
// portfolio are logged and do not stop the others.
func (s *ValuationService) RevalueAll(ctx context.Context) {
	asOf := time.Now()
	portfolios, err := s.repo.ListPortfolios(ctx)
	if err != nil {
		s.logger.Error("list portfolios for revaluation", zap.Error(err))
		return
	}

	// Warm the price cache with every held ticker in one feed call, so
	// the per-portfolio pass does not fan out into N fetches.
	if s.cache == nil {
		s.revalueEach(ctx, portfolios, asOf)
		return
	}
	if held, err := s.repo.ListHeldTickers(ctx); err != nil {
		s.logger.Warn("list held tickers", zap.Error(err))
	} else if _, err := s.prices(ctx, held); err != nil {
		s.logger.Warn("price warm-up failed", zap.Error(err))
	}

	s.revalueEach(ctx, portfolios, asOf)
}

func (s *ValuationService) revalueEach(ctx context.Context, portfolios []*models.Portfolio, asOf time.Time) {
	for _, p := range portfolios {
		if _, err := s.RevaluePortfolio(ctx, p.ID, asOf); err != nil {
			s.logger.Error("revaluation failed",
				zap.Int64("portfolio_id", p.ID), zap.Error(err))
		}
	}
}

// Summarize builds the current whole-portfolio view at live prices.
func (s *ValuationService) Summarize(ctx context.Context, id int64) (*ledger.PortfolioSummary, error) {
	p, err := s.repo.GetPortfolio(ctx, id)
	if err != nil {
		return nil, repoError("load portfolio", err)
	}
	prices, err := s.prices(ctx, openTickers(p))
	if err != nil {
		return nil, err
	}
	summary := ledger.Summarize(p, prices, time.Now())
	return &summary, nil
}

// PeriodReturn computes the day/week/month return ending at asOf from
// the portfolio's snapshot history.
func (s *ValuationService) PeriodReturn(ctx context.Context, id int64, asOf time.Time, period ledger.Period) (decimal.Decimal, error) {
	if _, err := s.repo.GetPortfolio(ctx, id); err != nil {
		return decimal.Zero, repoError("load portfolio", err)
	}
	snapshots, err := s.repo.ListSnapshots(ctx, id, time.Time{}, asOf)
	if err != nil {
		return decimal.Zero, repoError("list snapshots", err)
	}
	return ledger.PeriodReturn(snapshots, asOf, period)
}

// Compare evaluates a model portfolio against a base portfolio at the
// same instant.
func (s *ValuationService) Compare(ctx context.Context, modelID, baseID int64, asOf time.Time) (*ledger.ComparisonReport, error) {
	model, err := s.repo.GetPortfolio(ctx, modelID)
	if err != nil {
		return nil, repoError("load model portfolio", err)
	}
	base, err := s.repo.GetPortfolio(ctx, baseID)
	if err != nil {
		return nil, repoError("load base portfolio", err)
	}

	modelSnaps, err := s.repo.ListSnapshots(ctx, modelID, time.Time{}, asOf)
	if err != nil {
		return nil, repoError("list model snapshots", err)
	}
	baseSnaps, err := s.repo.ListSnapshots(ctx, baseID, time.Time{}, asOf)
	if err != nil {
		return nil, repoError("list base snapshots", err)
	}

	tickers := make(map[string]struct{})
	for _, t := range openTickers(model) {
		tickers[t] = struct{}{}
	}
	for _, t := range openTickers(base) {
		tickers[t] = struct{}{}
	}
	union := make([]string, 0, len(tickers))
	for t := range tickers {
		union = append(union, t)
	}
	prices, err := s.prices(ctx, union)
	if err != nil {
		return nil, err
	}

	return ledger.Compare(model, base, prices, modelSnaps, baseSnaps, asOf, s.tolerance)
}
