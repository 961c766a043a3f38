package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"optionscache/config"
	"optionscache/internal/optiondata/app"
	"optionscache/logger"

	"go.uber.org/zap"
)

func main() {
	// viper config
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to start option cache", zap.Error(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("shutdown", zap.Error(err))
		}
	}()

	// run refresh loops until signalled
	if err := a.Run(ctx); err != nil {
		log.Error("option cache stopped", zap.Error(err))
	}
}
