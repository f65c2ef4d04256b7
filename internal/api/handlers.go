package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bisttrack/portfolio-service/internal/database"
	"github.com/bisttrack/portfolio-service/internal/ledger"
	"github.com/bisttrack/portfolio-service/internal/models"
	"github.com/bisttrack/portfolio-service/internal/redis"
	"github.com/bisttrack/portfolio-service/internal/service"
)

// PortfolioOps is the slice of the portfolio service the handlers use.
type PortfolioOps interface {
	CreatePortfolio(ctx context.Context, name string, kind models.PortfolioKind, initialCash decimal.Decimal, noCashCheck bool) (*models.Portfolio, error)
	GetPortfolio(ctx context.Context, id int64) (*models.Portfolio, error)
	ListPortfolios(ctx context.Context) ([]*models.Portfolio, error)
	ListTrades(ctx context.Context, portfolioID int64) ([]models.Trade, error)
	SubmitTrade(ctx context.Context, trade models.Trade) (*ledger.PositionDelta, error)
	ResetPortfolio(ctx context.Context, id int64) (*models.Portfolio, error)
}

// ValuationOps is the slice of the valuation service the handlers use.
type ValuationOps interface {
	RevaluePortfolio(ctx context.Context, id int64, asOf time.Time) (*models.ValuationSnapshot, error)
	Summarize(ctx context.Context, id int64) (*ledger.PortfolioSummary, error)
	PeriodReturn(ctx context.Context, id int64, asOf time.Time, period ledger.Period) (decimal.Decimal, error)
	Compare(ctx context.Context, modelID, baseID int64, asOf time.Time) (*ledger.ComparisonReport, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	portfolios PortfolioOps
	valuations ValuationOps
	db         *database.DB
	redis      *redis.Client
	logger     *zap.Logger
}

// NewHandler creates a new Handler. The db serves the instrument and
// watchlist directory; redis only feeds the health check and may be nil.
func NewHandler(portfolios PortfolioOps, valuations ValuationOps, db *database.DB, redisClient *redis.Client, logger *zap.Logger) *Handler {
	return &Handler{
		portfolios: portfolios,
		valuations: valuations,
		db:         db,
		redis:      redisClient,
		logger:     logger,
	}
}

// ---------------------------------------------------------------------------
// Portfolios
// ---------------------------------------------------------------------------

// CreatePortfolio handles POST /portfolios
func (h *Handler) CreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Kind        string `json:"kind"`
		InitialCash string `json:"initial_cash"`
		NoCashCheck bool   `json:"no_cash_check"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	initialCash := decimal.RequireFromString(models.DefaultInitialCash)
	if req.InitialCash != "" {
		var err error
		initialCash, err = decimal.NewFromString(req.InitialCash)
		if err != nil {
			respondError(w, http.StatusBadRequest, "initial_cash must be a decimal number")
			return
		}
	}

	p, err := h.portfolios.CreatePortfolio(r.Context(), req.Name, models.PortfolioKind(req.Kind), initialCash, req.NoCashCheck)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

// ListPortfolios handles GET /portfolios
func (h *Handler) ListPortfolios(w http.ResponseWriter, r *http.Request) {
	portfolios, err := h.portfolios.ListPortfolios(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if portfolios == nil {
		portfolios = []*models.Portfolio{}
	}
	respondJSON(w, http.StatusOK, portfolios)
}

// GetPortfolio handles GET /portfolios/{id}
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.portfolios.GetPortfolio(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// ResetPortfolio handles POST /portfolios/{id}/reset
func (h *Handler) ResetPortfolio(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.portfolios.ResetPortfolio(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// ---------------------------------------------------------------------------
// Trades
// ---------------------------------------------------------------------------

// SubmitTrade handles POST /portfolios/{id}/trades
func (h *Handler) SubmitTrade(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		TradeID    string `json:"trade_id"`
		Ticker     string `json:"ticker"`
		Side       string `json:"side"`
		Quantity   int64  `json:"quantity"`
		Price      string `json:"price"`
		ExecutedAt string `json:"executed_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	trade := models.Trade{
		PortfolioID: id,
		Ticker:      req.Ticker,
		Side:        models.TradeSide(req.Side),
		Quantity:    req.Quantity,
	}

	if req.TradeID != "" {
		tradeID, err := uuid.Parse(req.TradeID)
		if err != nil {
			respondError(w, http.StatusBadRequest, "trade_id must be a UUID")
			return
		}
		trade.ID = tradeID
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		respondError(w, http.StatusBadRequest, "price must be a decimal number")
		return
	}
	trade.Price = price

	if req.ExecutedAt != "" {
		executedAt, err := time.Parse(time.RFC3339, req.ExecutedAt)
		if err != nil {
			respondError(w, http.StatusBadRequest, "executed_at must be RFC3339")
			return
		}
		trade.ExecutedAt = executedAt
	}

	delta, err := h.portfolios.SubmitTrade(r.Context(), trade)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, delta)
}

// ListTrades handles GET /portfolios/{id}/trades
func (h *Handler) ListTrades(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	trades, err := h.portfolios.ListTrades(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if trades == nil {
		trades = []models.Trade{}
	}
	respondJSON(w, http.StatusOK, trades)
}

// ---------------------------------------------------------------------------
// Valuation
// ---------------------------------------------------------------------------

// Summarize handles GET /portfolios/{id}/summary
func (h *Handler) Summarize(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	summary, err := h.valuations.Summarize(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// RevaluePortfolio handles POST /portfolios/{id}/revalue
func (h *Handler) RevaluePortfolio(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	asOf, ok := queryAsOf(w, r)
	if !ok {
		return
	}
	snapshot, err := h.valuations.RevaluePortfolio(r.Context(), id, asOf)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, snapshot)
}

// PeriodReturn handles GET /portfolios/{id}/returns?period=day&as_of=...
func (h *Handler) PeriodReturn(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	period := ledger.Period(r.URL.Query().Get("period"))
	if _, err := period.Duration(); err != nil {
		respondError(w, http.StatusBadRequest, "period must be day, week, or month")
		return
	}
	asOf, ok := queryAsOf(w, r)
	if !ok {
		return
	}

	ret, err := h.valuations.PeriodReturn(r.Context(), id, asOf, period)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"period": string(period),
		"as_of":  asOf.Format(time.RFC3339),
		"return": ret.String(),
	})
}

// Compare handles GET /portfolios/{id}/compare/{baseID}?as_of=...
func (h *Handler) Compare(w http.ResponseWriter, r *http.Request) {
	modelID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	baseID, ok := pathID(w, r, "baseID")
	if !ok {
		return
	}
	asOf, ok := queryAsOf(w, r)
	if !ok {
		return
	}

	report, err := h.valuations.Compare(r.Context(), modelID, baseID, asOf)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// ---------------------------------------------------------------------------
// Instruments and watchlists
// ---------------------------------------------------------------------------

// ListInstruments handles GET /instruments
func (h *Handler) ListInstruments(w http.ResponseWriter, r *http.Request) {
	instruments, err := h.db.ListInstruments(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if instruments == nil {
		instruments = []models.Instrument{}
	}
	respondJSON(w, http.StatusOK, instruments)
}

// GetInstrument handles GET /instruments/{ticker}
func (h *Handler) GetInstrument(w http.ResponseWriter, r *http.Request) {
	ticker := models.NormalizeTicker(mux.Vars(r)["ticker"])
	inst, err := h.db.GetInstrument(r.Context(), ticker)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, inst)
}

// AddInstrument handles POST /instruments
func (h *Handler) AddInstrument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ticker string `json:"ticker"`
		Name   string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Ticker == "" {
		respondError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	inst := &models.Instrument{
		Ticker: models.NormalizeTicker(req.Ticker),
		Name:   req.Name,
	}
	if err := h.db.UpsertInstrument(r.Context(), inst); err != nil {
		h.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, inst)
}

// CreateWatchlist handles POST /watchlists
func (h *Handler) CreateWatchlist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	list := &database.Watchlist{Name: req.Name, Description: req.Description}
	if err := h.db.CreateWatchlist(r.Context(), list); err != nil {
		h.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, list)
}

// ListWatchlists handles GET /watchlists
func (h *Handler) ListWatchlists(w http.ResponseWriter, r *http.Request) {
	lists, err := h.db.ListWatchlists(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if lists == nil {
		lists = []database.Watchlist{}
	}
	respondJSON(w, http.StatusOK, lists)
}

// GetWatchlist handles GET /watchlists/{id}
func (h *Handler) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	list, err := h.db.GetWatchlist(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// DeleteWatchlist handles DELETE /watchlists/{id}
func (h *Handler) DeleteWatchlist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.db.DeleteWatchlist(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddWatchlistItem handles PUT /watchlists/{id}/items/{ticker}
func (h *Handler) AddWatchlistItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ticker := models.NormalizeTicker(mux.Vars(r)["ticker"])
	if _, err := h.db.GetWatchlist(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.db.AddWatchlistItem(r.Context(), id, ticker); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveWatchlistItem handles DELETE /watchlists/{id}/items/{ticker}
func (h *Handler) RemoveWatchlistItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ticker := models.NormalizeTicker(mux.Vars(r)["ticker"])
	if err := h.db.RemoveWatchlistItem(r.Context(), id, ticker); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  map[string]string{},
	}
	services := health["services"].(map[string]string)
	allHealthy := true

	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			services["postgres"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			services["postgres"] = "healthy"
		}
	} else {
		services["postgres"] = "not configured"
		allHealthy = false
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			services["redis"] = "unhealthy: " + err.Error()
		} else {
			services["redis"] = "healthy"
		}
	} else {
		services["redis"] = "not configured"
	}

	if !allHealthy {
		health["status"] = "degraded"
	}

	respondJSON(w, http.StatusOK, health)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, name+" must be an integer")
		return 0, false
	}
	return id, true
}

// queryAsOf reads the optional as_of query parameter, defaulting to now.
func queryAsOf(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return time.Now(), true
	}
	asOf, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "as_of must be RFC3339")
		return time.Time{}, false
	}
	return asOf, true
}

// writeError maps service and ledger errors onto HTTP statuses.
// Rejections carry the machine-readable reason so clients can react
// without parsing messages.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if rej, ok := ledger.AsRejection(err); ok {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  rej.Error(),
			"reason": string(rej.Reason),
		})
		return
	}

	var status int
	switch {
	case errors.Is(err, database.ErrPortfolioNotFound),
		errors.Is(err, database.ErrWatchlistNotFound),
		errors.Is(err, database.ErrInstrumentNotFound),
		errors.Is(err, ledger.ErrNotEnoughData):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrDivisionUndefined),
		errors.Is(err, service.ErrNotModelPortfolio):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrDuplicateTrade),
		errors.Is(err, ledger.ErrSnapshotOutOfOrder),
		errors.Is(err, ledger.ErrMisalignedSnapshots):
		status = http.StatusConflict
	case errors.Is(err, service.ErrRepositoryUnavailable):
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}

	if status >= 500 {
		h.logger.Error("request failed", zap.Error(err))
	}
	respondError(w, status, err.Error())
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
