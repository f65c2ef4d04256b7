package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/bisttrack/portfolio-service/internal/models"
)

// SnapshotEvent is the wire shape of a valuation snapshot announcement.
type SnapshotEvent struct {
	EventType string            `json:"event_type"`
	Source    string            `json:"source"`
	Timestamp string            `json:"timestamp"`
	Data      SnapshotEventData `json:"data"`
}

// SnapshotEventData mirrors the persisted snapshot; amounts travel as
// strings to keep them exact.
type SnapshotEventData struct {
	PortfolioID      int64    `json:"portfolio_id"`
	Timestamp        string   `json:"timestamp"`
	MarketValue      string   `json:"market_value"`
	TotalCost        string   `json:"total_cost"`
	UnrealizedPnL    string   `json:"unrealized_pnl"`
	RealizedPnL      string   `json:"realized_pnl"`
	Cash             string   `json:"cash"`
	StaleInstruments []string `json:"stale_instruments,omitempty"`
}

// Producer publishes valuation snapshots to Kafka.
type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewProducer creates a Kafka producer for valuation snapshot events.
func NewProducer(brokers []string, topic string, logger *zap.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // keep one portfolio's snapshots on one partition
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}

	return &Producer{writer: writer, logger: logger}
}

// PublishValuationSnapshot announces an appended snapshot downstream.
func (p *Producer) PublishValuationSnapshot(ctx context.Context, snap models.ValuationSnapshot) error {
	event := SnapshotEvent{
		EventType: "VALUATION_SNAPSHOT",
		Source:    "portfolio-service",
		Timestamp: time.Now().Format(time.RFC3339),
		Data: SnapshotEventData{
			PortfolioID:      snap.PortfolioID,
			Timestamp:        snap.Timestamp.Format(time.RFC3339),
			MarketValue:      snap.MarketValue.String(),
			TotalCost:        snap.TotalCost.String(),
			UnrealizedPnL:    snap.UnrealizedPnL.String(),
			RealizedPnL:      snap.RealizedPnL.String(),
			Cash:             snap.Cash.String(),
			StaleInstruments: snap.StaleInstruments,
		},
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal snapshot event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(snap.PortfolioID, 10)),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("write snapshot event: %w", err)
	}

	p.logger.Debug("snapshot published",
		zap.Int64("portfolio_id", snap.PortfolioID),
		zap.String("market_value", snap.MarketValue.String()))
	return nil
}

// Close closes the Kafka producer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
