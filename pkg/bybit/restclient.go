package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

type RESTClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	return &RESTClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetTicker fetches the current ticker for one symbol.
func (c *RESTClient) GetTicker(ctx context.Context, category Category, symbol string) (Ticker, error) {
	q := url.Values{}
	q.Set("category", string(category))
	q.Set("symbol", symbol)
	endpoint := c.baseURL + "/v5/market/tickers?" + q.Encode()

	// Construct the GET request with context for timeout/cancel support
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Ticker{}, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Ticker{}, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Ticker{}, fmt.Errorf("bybit error: status %d: %s", resp.StatusCode, body)
	}

	var rawResp BybitResponse
	if err := json.NewDecoder(resp.Body).Decode(&rawResp); err != nil {
		return Ticker{}, fmt.Errorf("decode response: %w", err)
	}
	if rawResp.RetCode != 0 {
		return Ticker{}, fmt.Errorf("bybit error: retCode=%d retMsg=%s", rawResp.RetCode, rawResp.RetMsg)
	}

	var result TickersResponse
	if err := json.Unmarshal(rawResp.Result, &result); err != nil {
		return Ticker{}, fmt.Errorf("decode result: %w", err)
	}

	for _, quote := range result.List {
		if quote.Symbol == symbol {
			ticker, err := quote.Parse()
			if err != nil {
				return Ticker{}, fmt.Errorf("parse ticker %s: %w", symbol, err)
			}
			return ticker, nil
		}
	}
	return Ticker{}, fmt.Errorf("ticker %s not found in %s", symbol, category)
}
