// Package app wires the option data cache from configuration and runs its
// background loops.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"optionscache/config"
	"optionscache/internal/metrics"
	"optionscache/internal/optiondata/memorystore"
	"optionscache/internal/optiondata/pricefeed"
	"optionscache/internal/optiondata/ranking"
	"optionscache/internal/optiondata/scheduler"
	"optionscache/internal/optiondata/service"
	"optionscache/internal/optiondata/trigger"
	"optionscache/pkg/storage/postgres"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// App owns every long-lived resource behind the facade.
type App struct {
	Facade *service.Facade

	cfg        *config.Config
	logger     *zap.Logger
	store      *memorystore.Store
	db         *postgres.PostgresClient
	closeFeed  func() error
	metricsSrv *http.Server
}

// New connects to the durable store and the price feed and builds the facade.
// Nothing is loaded until Run performs the first refresh.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	metrics.Init()

	// Initialize PostgreSQL Client
	db, err := postgres.Open(cfg.Postgres, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}

	feed, closeFeed, err := pricefeed.New(ctx, cfg, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create price feed: %w", err)
	}

	store := memorystore.New(db, logger, memorystore.WithRefreshTimeout(cfg.Cache.RefreshTimeout))

	source := cfg.Price.Source
	if source == "" {
		source = pricefeed.SourceREST
	}
	ranker := ranking.New(feed, source, logger,
		ranking.WithFallbackPrice(cfg.Price.Fallback),
		ranking.WithBand(cfg.Price.Band),
		ranking.WithTimeout(cfg.Price.Timeout),
	)

	facade := service.New(store, ranker, logger, service.WithCurrencies(cfg.Market.Currencies))

	return &App{
		Facade:    facade,
		cfg:       cfg,
		logger:    logger,
		store:     store,
		db:        db,
		closeFeed: closeFeed,
	}, nil
}

// Run starts the refresh scheduler, the Kafka trigger (when enabled) and the
// metrics endpoint, and blocks until ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	refresher := &scheduler.Refresher{
		Refresh:  a.store.Refresh,
		Interval: a.cfg.Cache.RefreshInterval,
		Logger:   a.logger.Named("scheduler"),
	}
	g.Go(func() error { return refresher.Run(ctx) })

	if a.cfg.Kafka.Enabled {
		consumer := trigger.NewConsumer(trigger.NewReader(a.cfg.Kafka), a.store, a.cfg.Cache.RefreshTimeout, a.logger)
		g.Go(func() error { return consumer.Run(ctx) })
	}

	if a.cfg.Metrics.Addr != "" {
		a.metricsSrv = &http.Server{
			Addr:              a.cfg.Metrics.Addr,
			Handler:           a.routes(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			a.logger.Info("metrics listening", zap.String("addr", a.cfg.Metrics.Addr))
			if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.metricsSrv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func (a *App) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !a.db.IsHealthy(r.Context()) {
			http.Error(w, "durable store unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// Close releases the price feed and the database pool.
func (a *App) Close() error {
	return errors.Join(a.closeFeed(), a.db.Close())
}
