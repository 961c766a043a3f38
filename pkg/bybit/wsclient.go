package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSClient reads public Bybit WebSocket topics. Each read opens its own
// connection and closes it once the first matching push arrives.
type WSClient struct {
	url    string
	dialer *websocket.Dialer
	logger *zap.Logger
}

// NewWSClient creates a new WebSocket client with the given URL and logger.
func NewWSClient(url string, logger *zap.Logger) *WSClient {
	return &WSClient{
		url:    url,
		dialer: websocket.DefaultDialer,
		logger: logger,
	}
}

// ReadTicker subscribes to tickers.<symbol>, waits for the first push that
// carries a last price, and disconnects. ctx bounds the whole exchange.
func (c *WSClient) ReadTicker(ctx context.Context, symbol string) (Ticker, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return Ticker{}, fmt.Errorf("websocket dial %s: %w", c.url, err)
	}
	defer conn.Close()

	// Unblock ReadMessage when ctx ends.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	topic := TickerTopic(symbol)
	subMsg := map[string]interface{}{
		"op":   "subscribe",
		"args": []string{topic},
	}
	if err := conn.WriteJSON(subMsg); err != nil {
		return Ticker{}, fmt.Errorf("websocket subscribe failed: %w", err)
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return Ticker{}, ctx.Err()
			}
			return Ticker{}, fmt.Errorf("websocket read: %w", err)
		}

		// Extract topic string for early filtering
		var meta struct {
			Topic   string `json:"topic"`
			Op      string `json:"op"`
			Success *bool  `json:"success"`
			RetMsg  string `json:"ret_msg"`
		}
		if err := json.Unmarshal(msg, &meta); err != nil {
			c.logger.Warn("failed to extract topic", zap.Error(err))
			continue
		}
		if meta.Op == "subscribe" && meta.Success != nil && !*meta.Success {
			return Ticker{}, fmt.Errorf("websocket subscribe rejected: %s", meta.RetMsg)
		}
		if !isTickerTopic(meta.Topic) || meta.Topic != topic {
			continue // subscription acks, pongs, other topics
		}

		var parsed TickerMessage
		if err := json.Unmarshal(msg, &parsed); err != nil {
			return Ticker{}, fmt.Errorf("decode ticker payload: %w", err)
		}
		ticker, err := parsed.Data.Parse()
		if err != nil {
			return Ticker{}, fmt.Errorf("parse ticker %s: %w", symbol, err)
		}
		if ticker.LastPrice == 0 {
			continue // delta without a price change
		}
		if ticker.Symbol == "" {
			ticker.Symbol = symbol
		}
		return ticker, nil
	}
}

// isTickerTopic returns true if the topic string indicates a ticker stream.
func isTickerTopic(topic string) bool {
	return strings.HasPrefix(topic, "tickers.")
}
