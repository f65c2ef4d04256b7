package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bisttrack/portfolio-service/internal/database"
	"github.com/bisttrack/portfolio-service/internal/ledger"
	"github.com/bisttrack/portfolio-service/internal/models"
	"github.com/bisttrack/portfolio-service/internal/service"
)

// ---------------------------------------------------------------------------
// Mock services
// ---------------------------------------------------------------------------

type mockPortfolioOps struct {
	created     *models.Portfolio
	portfolio   *models.Portfolio
	trades      []models.Trade
	delta       *ledger.PositionDelta
	submitted   *models.Trade
	err         error
	resetCalled bool
}

func (m *mockPortfolioOps) CreatePortfolio(_ context.Context, name string, kind models.PortfolioKind, initialCash decimal.Decimal, noCashCheck bool) (*models.Portfolio, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.created = &models.Portfolio{
		ID: 1, Name: name, Kind: kind,
		Cash: initialCash, InitialCash: initialCash, NoCashCheck: noCashCheck,
		Positions: map[string]*models.Position{},
	}
	return m.created, nil
}

func (m *mockPortfolioOps) GetPortfolio(_ context.Context, id int64) (*models.Portfolio, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.portfolio, nil
}

func (m *mockPortfolioOps) ListPortfolios(_ context.Context) ([]*models.Portfolio, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.portfolio == nil {
		return nil, nil
	}
	return []*models.Portfolio{m.portfolio}, nil
}

func (m *mockPortfolioOps) ListTrades(_ context.Context, _ int64) ([]models.Trade, error) {
	return m.trades, m.err
}

func (m *mockPortfolioOps) SubmitTrade(_ context.Context, trade models.Trade) (*ledger.PositionDelta, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.submitted = &trade
	return m.delta, nil
}

func (m *mockPortfolioOps) ResetPortfolio(_ context.Context, _ int64) (*models.Portfolio, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.resetCalled = true
	return m.portfolio, nil
}

type mockValuationOps struct {
	snapshot *models.ValuationSnapshot
	summary  *ledger.PortfolioSummary
	ret      decimal.Decimal
	report   *ledger.ComparisonReport
	asOfSeen time.Time
	err      error
}

func (m *mockValuationOps) RevaluePortfolio(_ context.Context, _ int64, asOf time.Time) (*models.ValuationSnapshot, error) {
	m.asOfSeen = asOf
	return m.snapshot, m.err
}

func (m *mockValuationOps) Summarize(_ context.Context, _ int64) (*ledger.PortfolioSummary, error) {
	return m.summary, m.err
}

func (m *mockValuationOps) PeriodReturn(_ context.Context, _ int64, asOf time.Time, _ ledger.Period) (decimal.Decimal, error) {
	m.asOfSeen = asOf
	return m.ret, m.err
}

func (m *mockValuationOps) Compare(_ context.Context, _, _ int64, asOf time.Time) (*ledger.ComparisonReport, error) {
	m.asOfSeen = asOf
	return m.report, m.err
}

func newTestHandler(pops PortfolioOps, vops ValuationOps) *Handler {
	return NewHandler(pops, vops, nil, nil, zap.NewNop())
}

func doRequest(t *testing.T, handler *Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	SetupRoutes(handler).ServeHTTP(rec, req)
	return rec
}

// ---------------------------------------------------------------------------
// Portfolio handlers
// ---------------------------------------------------------------------------

func TestCreatePortfolio(t *testing.T) {
	pops := &mockPortfolioOps{}
	rec := doRequest(t, newTestHandler(pops, &mockValuationOps{}), "POST", "/api/v1/portfolios", map[string]interface{}{
		"name":         "Emeklilik",
		"kind":         "REAL",
		"initial_cash": "250000",
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, pops.created)
	assert.Equal(t, models.PortfolioKindReal, pops.created.Kind)
	assert.True(t, pops.created.InitialCash.Equal(decimal.RequireFromString("250000")))
}

func TestCreatePortfolio_DefaultCash(t *testing.T) {
	pops := &mockPortfolioOps{}
	rec := doRequest(t, newTestHandler(pops, &mockValuationOps{}), "POST", "/api/v1/portfolios", map[string]interface{}{
		"name": "Deneme",
		"kind": "MODEL",
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, pops.created)
	assert.True(t, pops.created.InitialCash.Equal(decimal.RequireFromString("100000")))
}

func TestCreatePortfolio_BadCash(t *testing.T) {
	rec := doRequest(t, newTestHandler(&mockPortfolioOps{}, &mockValuationOps{}), "POST", "/api/v1/portfolios", map[string]interface{}{
		"name":         "x",
		"kind":         "REAL",
		"initial_cash": "lots",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPortfolio_NotFound(t *testing.T) {
	pops := &mockPortfolioOps{err: database.ErrPortfolioNotFound}
	rec := doRequest(t, newTestHandler(pops, &mockValuationOps{}), "GET", "/api/v1/portfolios/42", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetPortfolio_BadID(t *testing.T) {
	rec := doRequest(t, newTestHandler(&mockPortfolioOps{}, &mockValuationOps{}), "GET", "/api/v1/portfolios/forty-two", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetPortfolio_RealRejected(t *testing.T) {
	pops := &mockPortfolioOps{err: service.ErrNotModelPortfolio}
	rec := doRequest(t, newTestHandler(pops, &mockValuationOps{}), "POST", "/api/v1/portfolios/1/reset", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// ---------------------------------------------------------------------------
// Trade handlers
// ---------------------------------------------------------------------------

func TestSubmitTrade(t *testing.T) {
	pops := &mockPortfolioOps{delta: &ledger.PositionDelta{Ticker: "ASELS.IS", QuantityAfter: 100}}
	rec := doRequest(t, newTestHandler(pops, &mockValuationOps{}), "POST", "/api/v1/portfolios/7/trades", map[string]interface{}{
		"ticker":   "ASELS",
		"side":     "BUY",
		"quantity": 100,
		"price":    "45.60",
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, pops.submitted)
	assert.EqualValues(t, 7, pops.submitted.PortfolioID)
	assert.Equal(t, models.TradeSideBuy, pops.submitted.Side)
	assert.True(t, pops.submitted.Price.Equal(decimal.RequireFromString("45.60")))

	var delta ledger.PositionDelta
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &delta))
	assert.Equal(t, "ASELS.IS", delta.Ticker)
}

func TestSubmitTrade_RejectionCarriesReason(t *testing.T) {
	pops := &mockPortfolioOps{err: &ledger.RejectionError{
		Reason: ledger.ReasonInsufficientHoldings,
		Detail: "sell 80 exceeds held 50",
	}}
	rec := doRequest(t, newTestHandler(pops, &mockValuationOps{}), "POST", "/api/v1/portfolios/7/trades", map[string]interface{}{
		"ticker":   "ASELS",
		"side":     "SELL",
		"quantity": 80,
		"price":    "15",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(ledger.ReasonInsufficientHoldings), body["reason"])
}

func TestSubmitTrade_DuplicateConflicts(t *testing.T) {
	pops := &mockPortfolioOps{err: service.ErrDuplicateTrade}
	rec := doRequest(t, newTestHandler(pops, &mockValuationOps{}), "POST", "/api/v1/portfolios/7/trades", map[string]interface{}{
		"trade_id": "0f8fad5b-d9cb-469f-a165-70867728950e",
		"ticker":   "ASELS",
		"side":     "BUY",
		"quantity": 1,
		"price":    "10",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSubmitTrade_BadPrice(t *testing.T) {
	rec := doRequest(t, newTestHandler(&mockPortfolioOps{}, &mockValuationOps{}), "POST", "/api/v1/portfolios/7/trades", map[string]interface{}{
		"ticker":   "ASELS",
		"side":     "BUY",
		"quantity": 1,
		"price":    "on lira",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ---------------------------------------------------------------------------
// Valuation handlers
// ---------------------------------------------------------------------------

func TestRevaluePortfolio(t *testing.T) {
	vops := &mockValuationOps{snapshot: &models.ValuationSnapshot{
		PortfolioID: 7,
		MarketValue: decimal.RequireFromString("100200"),
	}}
	rec := doRequest(t, newTestHandler(&mockPortfolioOps{}, vops), "POST",
		"/api/v1/portfolios/7/revalue?as_of=2026-03-02T19:00:00Z", nil)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC), vops.asOfSeen.UTC())
}

func TestRevaluePortfolio_OutOfOrder(t *testing.T) {
	vops := &mockValuationOps{err: ledger.ErrSnapshotOutOfOrder}
	rec := doRequest(t, newTestHandler(&mockPortfolioOps{}, vops), "POST", "/api/v1/portfolios/7/revalue", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPeriodReturn(t *testing.T) {
	vops := &mockValuationOps{ret: decimal.RequireFromString("0.05")}
	rec := doRequest(t, newTestHandler(&mockPortfolioOps{}, vops), "GET",
		"/api/v1/portfolios/7/returns?period=day", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "0.05", body["return"])
	assert.Equal(t, "day", body["period"])
}

func TestPeriodReturn_BadPeriod(t *testing.T) {
	rec := doRequest(t, newTestHandler(&mockPortfolioOps{}, &mockValuationOps{}), "GET",
		"/api/v1/portfolios/7/returns?period=quarter", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPeriodReturn_NotEnoughData(t *testing.T) {
	vops := &mockValuationOps{err: ledger.ErrNotEnoughData}
	rec := doRequest(t, newTestHandler(&mockPortfolioOps{}, vops), "GET",
		"/api/v1/portfolios/7/returns?period=month", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompare(t *testing.T) {
	vops := &mockValuationOps{report: &ledger.ComparisonReport{}}
	rec := doRequest(t, newTestHandler(&mockPortfolioOps{}, vops), "GET",
		"/api/v1/portfolios/2/compare/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCompare_Misaligned(t *testing.T) {
	vops := &mockValuationOps{err: ledger.ErrMisalignedSnapshots}
	rec := doRequest(t, newTestHandler(&mockPortfolioOps{}, vops), "GET",
		"/api/v1/portfolios/2/compare/1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRepositoryOutage(t *testing.T) {
	pops := &mockPortfolioOps{err: fmt.Errorf("list portfolios: %w: connection refused", service.ErrRepositoryUnavailable)}
	rec := doRequest(t, newTestHandler(pops, &mockValuationOps{}), "GET", "/api/v1/portfolios", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListPortfolios_EmptyIsArray(t *testing.T) {
	rec := doRequest(t, newTestHandler(&mockPortfolioOps{}, &mockValuationOps{}), "GET", "/api/v1/portfolios", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestHealthCheck_NoDatabase(t *testing.T) {
	rec := doRequest(t, newTestHandler(&mockPortfolioOps{}, &mockValuationOps{}), "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
}
