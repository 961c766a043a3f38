package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"optionscache/internal/optiondata/ranking"

	"github.com/redis/go-redis/v9"
)

// ErrStalePrice is returned when the stored price is older than the allowed age.
var ErrStalePrice = errors.New("stale price")

// lastPrice is the value the ingestion process writes under the last-price key.
type lastPrice struct {
	Price float64 `json:"price"`
	High  float64 `json:"high,omitempty"`
	Low   float64 `json:"low,omitempty"`
	Ts    int64   `json:"ts"` // unix nano timestamp
}

// Redis reads the latest price the ingestion process published to Redis.
type Redis struct {
	rdb    redis.Cmdable
	key    string
	maxAge time.Duration
	now    func() time.Time
}

// NewRedis creates a Redis feed. maxAge <= 0 accepts prices of any age.
func NewRedis(rdb redis.Cmdable, key string, maxAge time.Duration) *Redis {
	return &Redis{rdb: rdb, key: key, maxAge: maxAge, now: time.Now}
}

func (f *Redis) CurrentPrice(ctx context.Context) (ranking.Quote, error) {
	b, err := f.rdb.Get(ctx, f.key).Bytes()
	if err != nil {
		return ranking.Quote{}, fmt.Errorf("redis get %s: %w", f.key, err)
	}
	return decodeLastPrice(b, f.now(), f.maxAge)
}

func decodeLastPrice(b []byte, now time.Time, maxAge time.Duration) (ranking.Quote, error) {
	var m lastPrice
	if err := json.Unmarshal(b, &m); err != nil {
		return ranking.Quote{}, fmt.Errorf("decode last price: %w", err)
	}
	if maxAge > 0 {
		if age := now.Sub(time.Unix(0, m.Ts)); age > maxAge {
			return ranking.Quote{}, fmt.Errorf("%w: %s old", ErrStalePrice, age.Truncate(time.Second))
		}
	}
	return ranking.Quote{Price: m.Price, High: m.High, Low: m.Low}, nil
}
