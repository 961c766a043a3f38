// Package pricefeed provides the live reference-price sources the ranker can
// be wired to.
package pricefeed

import (
	"context"
	"fmt"

	"optionscache/config"
	"optionscache/internal/optiondata/ranking"
	"optionscache/pkg/bybit"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	SourceREST  = "rest"
	SourceWS    = "ws"
	SourceRedis = "redis"
)

// New builds the feed selected by cfg.Price.Source. The returned close
// function releases any connection the feed holds.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ranking.PriceFeed, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Price.Source {
	case SourceREST, "":
		category := bybit.CategoryLinear
		if cfg.Bybit.REST.Category != "" {
			c, err := bybit.ParseCategory(cfg.Bybit.REST.Category)
			if err != nil {
				return nil, nil, err
			}
			category = c
		}
		client := bybit.NewRESTClient(cfg.Bybit.REST.BaseURL, cfg.Bybit.REST.Timeout)
		return NewBybitREST(client, category, cfg.Price.Symbol), noop, nil

	case SourceWS:
		client := bybit.NewWSClient(cfg.Bybit.WS.URL, logger.Named("bybit_ws"))
		return NewBybitWS(client, cfg.Price.Symbol, cfg.Bybit.WS.Timeout), noop, nil

	case SourceRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return NewRedis(rdb, cfg.Redis.Key, cfg.Redis.MaxAge), rdb.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown price source %q", cfg.Price.Source)
}
