package bybit

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// BybitResponse represents a generic response from Bybit's V5 REST API.
// This structure covers the standard response envelope used across all endpoints.
type BybitResponse struct {
	RetCode    int                    `json:"retCode"`    // 0 means success; non-zero indicates an error code
	RetMsg     string                 `json:"retMsg"`     // Human-readable message describing the result or error
	Result     json.RawMessage        `json:"result"`     // Delay decoding // Main response payload (varies per endpoint)
	RetExtInfo map[string]interface{} `json:"retExtInfo"` // Optional extra info (e.g. rate limits, error hints)
	Time       int64                  `json:"time"`       // Server timestamp (in milliseconds since epoch)
}

type TickersResponse struct {
	Category string        `json:"category"` // e.g., "linear", "spot"
	List     []TickerQuote `json:"list"`
}

// TickerQuote is the raw ticker payload shared by REST and WS. Bybit sends
// every number as a string; WS deltas omit unchanged fields.
type TickerQuote struct {
	Symbol       string `json:"symbol"`       // e.g., "BTCUSDT"
	LastPrice    string `json:"lastPrice"`    // last traded price
	HighPrice24h string `json:"highPrice24h"` // rolling 24h high
	LowPrice24h  string `json:"lowPrice24h"`  // rolling 24h low
	IndexPrice   string `json:"indexPrice"`
	MarkPrice    string `json:"markPrice"`
}

// TickerMessage is a WS push on a tickers.<symbol> topic.
type TickerMessage struct {
	Topic string      `json:"topic"` // e.g., "tickers.BTCUSDT"
	Type  string      `json:"type"`  // "snapshot" or "delta"
	Data  TickerQuote `json:"data"`
	Ts    int64       `json:"ts"`
}

// Ticker is a parsed ticker. Missing fields are zero.
type Ticker struct {
	Symbol    string
	LastPrice float64
	High24h   float64
	Low24h    float64
}

// Parse converts the string fields of a raw ticker.
func (q TickerQuote) Parse() (Ticker, error) {
	last, err := parseOptional(q.LastPrice)
	if err != nil {
		return Ticker{}, fmt.Errorf("lastPrice: %w", err)
	}
	high, err := parseOptional(q.HighPrice24h)
	if err != nil {
		return Ticker{}, fmt.Errorf("highPrice24h: %w", err)
	}
	low, err := parseOptional(q.LowPrice24h)
	if err != nil {
		return Ticker{}, fmt.Errorf("lowPrice24h: %w", err)
	}
	return Ticker{Symbol: q.Symbol, LastPrice: last, High24h: high, Low24h: low}, nil
}

func parseOptional(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
