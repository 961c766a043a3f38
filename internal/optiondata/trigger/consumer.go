// Package trigger refreshes the snapshot when the ingestion process announces
// new rows on Kafka.
package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"optionscache/config"
	"optionscache/internal/metrics"
	"optionscache/internal/optiondata/memorystore"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Event is published by the ingestion process after it commits a batch.
type Event struct {
	Collection string `json:"collection"` // "option_chains", "public_trades" or empty for both
	Rows       int    `json:"rows"`
	Ts         int64  `json:"ts"` // commit time, unix milliseconds
}

// Store is the part of the snapshot cache the consumer drives.
type Store interface {
	Snapshot() *memorystore.Snapshot
	Refresh(ctx context.Context) error
}

// MessageReader is satisfied by *kafka.Reader.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// readRetryDelay is the pause after a failed read, so a closed reader or an
// unreachable broker is not polled in a tight loop.
const readRetryDelay = time.Second

type Consumer struct {
	reader     MessageReader
	store      Store
	timeout    time.Duration
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewReader creates a consumer-group reader for the ingestion topic.
func NewReader(cfg config.KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		MinBytes:    1,
		MaxBytes:    1e6,
		StartOffset: kafka.LastOffset, // only events after startup matter
	})
}

// NewConsumer creates a Consumer. timeout bounds each triggered refresh.
func NewConsumer(reader MessageReader, store Store, timeout time.Duration, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader:     reader,
		store:      store,
		timeout:    timeout,
		retryDelay: readRetryDelay,
		logger:     logger.Named("trigger"),
	}
}

// Run consumes events until ctx is cancelled, then closes the reader.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Error("failed to close kafka reader", zap.Error(err))
		}
	}()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopped")
				return nil
			}
			c.logger.Error("failed to read message", zap.Error(err))
			metrics.IngestionEvents.WithLabelValues("error").Inc()

			select {
			case <-ctx.Done():
				c.logger.Info("consumer stopped")
				return nil
			case <-time.After(c.retryDelay):
			}
			continue
		}

		if err := c.Handle(ctx, msg); err != nil {
			c.logger.Error("failed to handle ingestion event",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		}
	}
}

// Handle refreshes the snapshot for one ingestion event. Events for an unknown
// collection, or committed before that collection was last loaded, are
// ignored.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) error {
	var ev Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		metrics.IngestionEvents.WithLabelValues("error").Inc()
		return fmt.Errorf("decode event: %w", err)
	}

	if !c.needsRefresh(ev) {
		metrics.IngestionEvents.WithLabelValues("ignored").Inc()
		c.logger.Debug("ingestion event already covered",
			zap.String("collection", ev.Collection), zap.Int64("ts", ev.Ts))
		return nil
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := c.store.Refresh(ctx); err != nil {
		metrics.IngestionEvents.WithLabelValues("error").Inc()
		return fmt.Errorf("refresh after %q event: %w", ev.Collection, err)
	}

	metrics.IngestionEvents.WithLabelValues("refreshed").Inc()
	c.logger.Info("refreshed on ingestion event",
		zap.String("collection", ev.Collection), zap.Int("rows", ev.Rows))
	return nil
}

func (c *Consumer) needsRefresh(ev Event) bool {
	snap := c.store.Snapshot()

	var loadedAt time.Time
	switch memorystore.Collection(ev.Collection) {
	case memorystore.Chains:
		loadedAt = snap.ChainsLoadedAt
	case memorystore.Trades:
		loadedAt = snap.TradesLoadedAt
	case "":
		loadedAt = snap.ChainsLoadedAt
		if snap.TradesLoadedAt.Before(loadedAt) {
			loadedAt = snap.TradesLoadedAt
		}
	default:
		return false
	}

	if ev.Ts <= 0 || loadedAt.IsZero() {
		return true
	}
	return time.UnixMilli(ev.Ts).After(loadedAt)
}
