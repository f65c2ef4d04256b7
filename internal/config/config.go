package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Kafka      KafkaConfig
	Redis      RedisConfig
	MarketData MarketDataConfig
	Valuation  ValuationConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// KafkaConfig holds Kafka/Redpanda configuration
type KafkaConfig struct {
	Brokers        []string
	TradesTopic    string
	SnapshotsTopic string
	ConsumerGroup  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// MarketDataConfig holds the price feed client configuration
type MarketDataConfig struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// ValuationConfig holds the scheduled revaluation settings
type ValuationConfig struct {
	// Schedule is a cron expression; end of BIST trading day by default.
	Schedule string
	// CompareTolerance bounds how far apart two portfolios' snapshots
	// may be and still count as the same instant.
	CompareTolerance time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8081"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "postgres"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "ledger"),
			Password: getEnv("DB_PASSWORD", "ledger"),
			DBName:   getEnv("DB_NAME", "portfolio_ledger"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Kafka: KafkaConfig{
			Brokers:        parseBrokers(getEnv("KAFKA_BROKERS", "localhost:19092")),
			TradesTopic:    getEnv("KAFKA_TRADES_TOPIC", "portfolio.trades"),
			SnapshotsTopic: getEnv("KAFKA_SNAPSHOTS_TOPIC", "portfolio.valuations"),
			ConsumerGroup:  getEnv("KAFKA_CONSUMER_GROUP", "portfolio-service"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       0,
		},
		MarketData: MarketDataConfig{
			BaseURL:  getEnv("MARKET_DATA_URL", "https://query1.finance.yahoo.com"),
			Timeout:  getDuration("MARKET_DATA_TIMEOUT", 10*time.Second),
			CacheTTL: getDuration("PRICE_CACHE_TTL", 15*time.Minute),
		},
		Valuation: ValuationConfig{
			Schedule:         getEnv("VALUATION_SCHEDULE", "0 19 * * MON-FRI"),
			CompareTolerance: getDuration("COMPARE_TOLERANCE", 15*time.Minute),
		},
	}
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// parseBrokers splits a comma-separated broker list
func parseBrokers(brokers string) []string {
	parts := strings.Split(brokers, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Address returns the Redis address in host:port format
func (r *RedisConfig) Address() string {
	return r.Host + ":" + r.Port
}
