package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check and metrics
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Portfolio routes
	api.HandleFunc("/portfolios", handler.CreatePortfolio).Methods("POST")
	api.HandleFunc("/portfolios", handler.ListPortfolios).Methods("GET")
	api.HandleFunc("/portfolios/{id}", handler.GetPortfolio).Methods("GET")
	api.HandleFunc("/portfolios/{id}/reset", handler.ResetPortfolio).Methods("POST")

	// Trade routes
	api.HandleFunc("/portfolios/{id}/trades", handler.SubmitTrade).Methods("POST")
	api.HandleFunc("/portfolios/{id}/trades", handler.ListTrades).Methods("GET")

	// Valuation routes
	api.HandleFunc("/portfolios/{id}/summary", handler.Summarize).Methods("GET")
	api.HandleFunc("/portfolios/{id}/revalue", handler.RevaluePortfolio).Methods("POST")
	api.HandleFunc("/portfolios/{id}/returns", handler.PeriodReturn).Methods("GET")
	api.HandleFunc("/portfolios/{id}/compare/{baseID}", handler.Compare).Methods("GET")

	// Instrument directory
	api.HandleFunc("/instruments", handler.ListInstruments).Methods("GET")
	api.HandleFunc("/instruments", handler.AddInstrument).Methods("POST")
	api.HandleFunc("/instruments/{ticker}", handler.GetInstrument).Methods("GET")

	// Watchlist routes
	api.HandleFunc("/watchlists", handler.CreateWatchlist).Methods("POST")
	api.HandleFunc("/watchlists", handler.ListWatchlists).Methods("GET")
	api.HandleFunc("/watchlists/{id}", handler.GetWatchlist).Methods("GET")
	api.HandleFunc("/watchlists/{id}", handler.DeleteWatchlist).Methods("DELETE")
	api.HandleFunc("/watchlists/{id}/items/{ticker}", handler.AddWatchlistItem).Methods("PUT")
	api.HandleFunc("/watchlists/{id}/items/{ticker}", handler.RemoveWatchlistItem).Methods("DELETE")

	return r
}
