package pricefeed

import (
	"context"
	"time"

	"optionscache/internal/optiondata/ranking"
	"optionscache/pkg/bybit"
)

// BybitREST reads the reference price from Bybit's public tickers endpoint.
type BybitREST struct {
	client   *bybit.RESTClient
	category bybit.Category
	symbol   string
}

func NewBybitREST(client *bybit.RESTClient, category bybit.Category, symbol string) *BybitREST {
	return &BybitREST{client: client, category: category, symbol: symbol}
}

func (f *BybitREST) CurrentPrice(ctx context.Context) (ranking.Quote, error) {
	t, err := f.client.GetTicker(ctx, f.category, f.symbol)
	if err != nil {
		return ranking.Quote{}, err
	}
	return ranking.Quote{Price: t.LastPrice, High: t.High24h, Low: t.Low24h}, nil
}

// BybitWS reads the reference price from a one-shot ticker subscription.
type BybitWS struct {
	client  *bybit.WSClient
	symbol  string
	timeout time.Duration
}

// NewBybitWS creates a WS feed. timeout bounds dial plus the first ticker
// push; zero leaves it to the caller's context.
func NewBybitWS(client *bybit.WSClient, symbol string, timeout time.Duration) *BybitWS {
	return &BybitWS{client: client, symbol: symbol, timeout: timeout}
}

func (f *BybitWS) CurrentPrice(ctx context.Context) (ranking.Quote, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	t, err := f.client.ReadTicker(ctx, f.symbol)
	if err != nil {
		return ranking.Quote{}, err
	}
	return ranking.Quote{Price: t.LastPrice, High: t.High24h, Low: t.Low24h}, nil
}
