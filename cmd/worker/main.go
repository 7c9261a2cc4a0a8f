// The worker runs the order watchdog on its own, for deployments that keep
// the api process free of background polling.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"NairaOfframp/internal/config"
	"NairaOfframp/internal/db"
	"NairaOfframp/internal/lifecycle"
	"NairaOfframp/internal/paycrest"
	"NairaOfframp/internal/store"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	cfg, err := config.Load("")
	if err != nil {
		sugar.Fatalw("config load failed", "error", err)
	}

	amount, err := decimal.NewFromString(cfg.Orders.Amount)
	if err != nil {
		sugar.Fatalw("invalid order amount", "amount", cfg.Orders.Amount, "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		sugar.Fatalw("db connect failed", "error", err)
	}
	defer pool.Close()

	st := store.New(pool)
	client := paycrest.NewClient(
		cfg.Processor.BaseURL,
		cfg.Processor.APIKey,
		time.Duration(cfg.Processor.TimeoutSeconds)*time.Second,
		cfg.Processor.RetryMax,
	)

	// No hub here: state-change notifications are served by the api
	// process; the worker only mutates the shared store.
	manager := lifecycle.NewManager(st, client, nil, sugar, lifecycle.Config{
		Amount:                amount,
		Token:                 cfg.Orders.Token,
		Network:               cfg.Orders.Network,
		Fiat:                  cfg.Orders.Fiat,
		RefreshWindow:         time.Duration(cfg.Orders.RefreshWindowMinutes) * time.Minute,
		MaxCreateAttempts:     cfg.Orders.MaxCreateAttempts,
		FallbackReturnAddress: cfg.Orders.FallbackReturnAddress,
	})

	w := &lifecycle.Watchdog{
		Manager:            manager,
		Store:              st,
		Log:                sugar,
		Interval:           time.Duration(cfg.Watchdog.IntervalSeconds) * time.Second,
		StatusPollAttempts: cfg.Watchdog.StatusPollAttempts,
		SessionBatch:       cfg.Watchdog.SessionBatch,
	}

	sugar.Infow("watchdog started", "interval_seconds", cfg.Watchdog.IntervalSeconds)
	w.Run(ctx)
}
