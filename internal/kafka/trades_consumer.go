package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bisttrack/portfolio-service/internal/ledger"
	"github.com/bisttrack/portfolio-service/internal/models"
	"github.com/bisttrack/portfolio-service/internal/service"
)

// TradeApplier is the slice of the portfolio service the consumer needs.
type TradeApplier interface {
	SubmitTrade(ctx context.Context, trade models.Trade) (*ledger.PositionDelta, error)
}

// TradeEvent is the wire shape of an executed trade announcement.
type TradeEvent struct {
	EventType string         `json:"event_type"`
	Source    string         `json:"source"`
	Timestamp string         `json:"timestamp"`
	Data      TradeEventData `json:"data"`
}

// TradeEventData carries the trade fields. Price travels as a string
// to keep the amount exact across the wire.
type TradeEventData struct {
	TradeID     string `json:"trade_id"`
	PortfolioID int64  `json:"portfolio_id"`
	Ticker      string `json:"ticker"`
	Side        string `json:"side"`
	Quantity    int64  `json:"quantity"`
	Price       string `json:"price"`
	ExecutedAt  string `json:"executed_at"`
}

// TradesConsumer feeds executed trades from Kafka into the ledger.
type TradesConsumer struct {
	reader  *kafka.Reader
	applier TradeApplier
	logger  *zap.Logger
}

// NewTradesConsumer creates a Kafka consumer for trade events.
func NewTradesConsumer(brokers []string, topic, groupID string, applier TradeApplier, logger *zap.Logger) *TradesConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID + "-trades",
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset, // trades must not be skipped
		CommitInterval: time.Second,
	})

	return &TradesConsumer{
		reader:  reader,
		applier: applier,
		logger:  logger,
	}
}

// Start consumes trade messages until the context is cancelled.
func (c *TradesConsumer) Start(ctx context.Context) error {
	c.logger.Info("starting trades consumer", zap.String("topic", c.reader.Config().Topic))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("trades consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.logger.Error("read trade message", zap.Error(err))
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				c.logger.Error("process trade message",
					zap.Int("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(err))
				// Continue processing other messages
			}
		}
	}
}

// processMessage applies one trade event. Ledger rejections and
// replayed trade ids are terminal outcomes for the message, not
// processing failures: they are logged and the offset moves on.
func (c *TradesConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event TradeEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("unmarshal trade event: %w", err)
	}

	if event.EventType != "TRADE_EXECUTED" {
		c.logger.Debug("ignoring event type", zap.String("event_type", event.EventType))
		return nil
	}

	trade, err := c.convertTradeData(event.Data)
	if err != nil {
		return fmt.Errorf("invalid trade event: %w", err)
	}

	_, err = c.applier.SubmitTrade(ctx, trade)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrDuplicateTrade):
		c.logger.Info("trade already applied, skipping",
			zap.String("trade_id", trade.ID.String()))
		return nil
	default:
		if rej, ok := ledger.AsRejection(err); ok {
			c.logger.Warn("trade rejected",
				zap.String("trade_id", trade.ID.String()),
				zap.Int64("portfolio_id", trade.PortfolioID),
				zap.String("reason", string(rej.Reason)))
			return nil
		}
		return err
	}
}

func (c *TradesConsumer) convertTradeData(data TradeEventData) (models.Trade, error) {
	id, err := uuid.Parse(data.TradeID)
	if err != nil {
		return models.Trade{}, fmt.Errorf("trade_id %q: %w", data.TradeID, err)
	}

	price, err := decimal.NewFromString(data.Price)
	if err != nil {
		return models.Trade{}, fmt.Errorf("price %q: %w", data.Price, err)
	}

	executedAt, err := time.Parse(time.RFC3339, data.ExecutedAt)
	if err != nil {
		return models.Trade{}, fmt.Errorf("executed_at %q: %w", data.ExecutedAt, err)
	}

	return models.Trade{
		ID:          id,
		PortfolioID: data.PortfolioID,
		Ticker:      data.Ticker,
		Side:        models.TradeSide(data.Side),
		Quantity:    data.Quantity,
		Price:       price,
		ExecutedAt:  executedAt,
	}, nil
}

// Close closes the Kafka consumer.
func (c *TradesConsumer) Close() error {
	return c.reader.Close()
}
