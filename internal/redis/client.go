package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bisttrack/portfolio-service/internal/config"
	"github.com/bisttrack/portfolio-service/internal/models"
)

// Client wraps the Redis client with price snapshot caching. The cache
// sits in front of the market data feed; a miss is not an error, it
// just means the feed must be asked.
type Client struct {
	rdb *redis.Client
}

// New creates a new Redis client
func New(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks if Redis is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func priceKey(ticker string) string {
	return fmt.Sprintf("price:%s", ticker)
}

// SetPriceSnapshot caches one price snapshot with TTL.
func (c *Client) SetPriceSnapshot(ctx context.Context, snap models.PriceSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal price snapshot: %w", err)
	}
	return c.rdb.Set(ctx, priceKey(snap.Ticker), data, ttl).Err()
}

// GetPriceSnapshots retrieves cached snapshots for many tickers at
// once. Tickers without a cached entry are simply absent from the map.
func (c *Client) GetPriceSnapshots(ctx context.Context, tickers []string) (map[string]models.PriceSnapshot, error) {
	if len(tickers) == 0 {
		return map[string]models.PriceSnapshot{}, nil
	}

	keys := make([]string, len(tickers))
	for i, ticker := range tickers {
		keys[i] = priceKey(ticker)
	}

	values, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to mget price snapshots: %w", err)
	}

	snapshots := make(map[string]models.PriceSnapshot)
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var snap models.PriceSnapshot
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			continue
		}
		snapshots[snap.Ticker] = snap
	}
	return snapshots, nil
}
