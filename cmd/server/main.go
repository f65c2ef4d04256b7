package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/bisttrack/portfolio-service/internal/api"
	"github.com/bisttrack/portfolio-service/internal/config"
	"github.com/bisttrack/portfolio-service/internal/database"
	"github.com/bisttrack/portfolio-service/internal/kafka"
	"github.com/bisttrack/portfolio-service/internal/marketdata"
	"github.com/bisttrack/portfolio-service/internal/redis"
	"github.com/bisttrack/portfolio-service/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()

	// Connect to database
	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := runMigrations(cfg.Database.ConnectionString(), logger); err != nil {
		logger.Fatal("failed to run database migrations", zap.Error(err))
	}
	logger.Info("connected to PostgreSQL database")

	// Connect to Redis; the price cache is optional
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		logger.Warn("failed to connect to Redis, continuing without price cache", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
		logger.Info("connected to Redis price cache")
	}

	// Kafka producer for valuation snapshot events
	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.SnapshotsTopic, logger)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))

	// Wire the services. Both share one lock set so HTTP trades,
	// consumed trades, and revaluations serialize per portfolio.
	feed := marketdata.New(cfg.MarketData)
	locks := service.NewPortfolioLocks()
	portfolios := service.NewPortfolioService(db, locks, logger)

	var cache service.PriceCache
	if redisClient != nil {
		cache = redisClient
	}
	var publisher service.SnapshotPublisher = producer
	valuations := service.NewValuationService(db, feed, cache, publisher,
		locks, logger, cfg.MarketData.CacheTTL, cfg.Valuation.CompareTolerance)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Kafka consumer for executed trade events
	consumer := kafka.NewTradesConsumer(
		cfg.Kafka.Brokers,
		cfg.Kafka.TradesTopic,
		cfg.Kafka.ConsumerGroup,
		portfolios,
		logger,
	)
	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.Error("trades consumer stopped", zap.Error(err))
		}
	}()

	// Scheduled end-of-day revaluation
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Valuation.Schedule, func() {
		valuations.RevalueAll(ctx)
	}); err != nil {
		logger.Fatal("invalid valuation schedule",
			zap.String("schedule", cfg.Valuation.Schedule), zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()
	logger.Info("scheduled revaluation", zap.String("schedule", cfg.Valuation.Schedule))

	// HTTP server
	handler := api.NewHandler(portfolios, valuations, db, redisClient, logger)
	router := api.SetupRoutes(handler)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Stop the consumer and scheduler
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	if err := consumer.Close(); err != nil {
		logger.Error("error closing trades consumer", zap.Error(err))
	}

	logger.Info("server stopped")
}

func runMigrations(databaseURL string, logger *zap.Logger) error {
	m, err := migrate.New("file://./db/migrations", databaseURL)
	if err != nil {
		return err
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return err
	}
	if err == migrate.ErrNoChange {
		logger.Info("no migrations to apply; database is up to date")
	}
	return nil
}
