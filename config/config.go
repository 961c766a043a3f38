package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string         `mapstructure:"environment"`
	Log         LogConfig      `mapstructure:"log"`
	Postgres    PostgresConfig `mapstructure:"postgres"`
	Cache       CacheConfig    `mapstructure:"cache"`
	Price       PriceConfig    `mapstructure:"price"`
	Bybit       BybitConfig    `mapstructure:"bybit"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Kafka       KafkaConfig    `mapstructure:"kafka"`
	Metrics     MetricsConfig  `mapstructure:"metrics"`
	Market      MarketConfig   `mapstructure:"market"`
}

// CacheConfig controls the snapshot refresh cadence.
type CacheConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"` // 0 disables the scheduler
	RefreshTimeout  time.Duration `mapstructure:"refresh_timeout"`  // upper bound for one durable-store read
}

// PriceConfig selects and tunes the live reference-price feed.
type PriceConfig struct {
	Source   string        `mapstructure:"source"` // "rest", "ws" or "redis"
	Symbol   string        `mapstructure:"symbol"` // e.g. "BTCUSDT"
	Timeout  time.Duration `mapstructure:"timeout"`
	Fallback float64       `mapstructure:"fallback"`
	Band     float64       `mapstructure:"band"`
}

type BybitConfig struct {
	REST RESTConfig `mapstructure:"rest"`
	WS   WSConfig   `mapstructure:"ws"`
}

type RESTConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Category string        `mapstructure:"category"` // product line of price.symbol, e.g. "linear"
	Timeout  time.Duration `mapstructure:"timeout"`
}
type WSConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Key      string        `mapstructure:"key"`     // last-price key written by ingestion
	MaxAge   time.Duration `mapstructure:"max_age"` // older prices count as missing
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type MarketConfig struct {
	Currencies []string `mapstructure:"currencies"`
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "dev")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.environment", "dev")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.dbname", "optionscache")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timezone", "UTC")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime", time.Hour)

	v.SetDefault("cache.refresh_interval", time.Minute)
	v.SetDefault("cache.refresh_timeout", 30*time.Second)

	v.SetDefault("price.source", "rest")
	v.SetDefault("price.symbol", "BTCUSDT")
	v.SetDefault("price.timeout", 5*time.Second)
	v.SetDefault("price.fallback", 100000.0)
	v.SetDefault("price.band", 50000.0)

	v.SetDefault("bybit.rest.base_url", "https://api.bybit.com")
	v.SetDefault("bybit.rest.category", "linear")
	v.SetDefault("bybit.rest.timeout", 10*time.Second)
	v.SetDefault("bybit.ws.url", "wss://stream.bybit.com/v5/public/linear")
	v.SetDefault("bybit.ws.timeout", 10*time.Second)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.key", "last:bybit:BTCUSDT")
	v.SetDefault("redis.max_age", time.Minute)

	v.SetDefault("kafka.topic", "optionscache.ingested")
	v.SetDefault("kafka.group_id", "optionscache")

	v.SetDefault("metrics.addr", ":9102")

	v.SetDefault("market.currencies", []string{"BTC", "ETH"})
}

// Load loads application configuration using Viper.
// It reads from config.yaml and overrides with environment variables.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")

	ex, _ := os.Executable()
	if strings.Contains(ex, "go-build") {
		pwd, _ := os.Getwd()
		v.AddConfigPath(filepath.Join(pwd, "../../config"))
	} else {
		v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
	}
	v.AddConfigPath("./config")

	// Support environment variables with dot notation (e.g., PRICE_SOURCE)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
