package bybit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tickersBody = `{
  "retCode": 0,
  "retMsg": "OK",
  "result": {
    "category": "linear",
    "list": [{
      "symbol": "BTCUSDT",
      "lastPrice": "95012.5",
      "highPrice24h": "97000",
      "lowPrice24h": "93010.1",
      "indexPrice": "95000.2",
      "markPrice": "95005"
    }]
  },
  "retExtInfo": {},
  "time": 1719400000000
}`

// go test -v --run TestGetTicker
func TestGetTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v5/market/tickers", r.URL.Path)
		assert.Equal(t, "linear", r.URL.Query().Get("category"))
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(tickersBody))
	}))
	defer srv.Close()

	client := NewRESTClient(srv.URL, 2*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ticker, err := client.GetTicker(ctx, CategoryLinear, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, Ticker{Symbol: "BTCUSDT", LastPrice: 95012.5, High24h: 97000, Low24h: 93010.1}, ticker)
}

// go test -v --run TestGetTickerErrors
func TestGetTickerErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		symbol  string
		errPart string
	}{
		{name: "http status", status: http.StatusBadGateway, body: "upstream", symbol: "BTCUSDT", errPart: "status 502"},
		{name: "ret code", status: http.StatusOK, body: `{"retCode":10001,"retMsg":"params error","result":{}}`, symbol: "BTCUSDT", errPart: "retCode=10001"},
		{name: "missing symbol", status: http.StatusOK, body: tickersBody, symbol: "ETHUSDT", errPart: "not found"},
		{name: "bad number", status: http.StatusOK, body: `{"retCode":0,"result":{"list":[{"symbol":"BTCUSDT","lastPrice":"x"}]}}`, symbol: "BTCUSDT", errPart: "lastPrice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewRESTClient(srv.URL, time.Second).GetTicker(context.Background(), CategoryLinear, tt.symbol)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}

// go test -v --run TestParseCategory
func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("linear")
	require.NoError(t, err)
	assert.Equal(t, CategoryLinear, c)

	_, err = ParseCategory("futures")
	assert.Error(t, err)
}
