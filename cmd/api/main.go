package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"NairaOfframp/internal/config"
	"NairaOfframp/internal/db"
	"NairaOfframp/internal/httpapi"
	"NairaOfframp/internal/lifecycle"
	"NairaOfframp/internal/notify"
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
	hub := notify.NewHub(sugar)

	manager := lifecycle.NewManager(st, client, hub, sugar, lifecycle.Config{
		Amount:                amount,
		Token:                 cfg.Orders.Token,
		Network:               cfg.Orders.Network,
		Fiat:                  cfg.Orders.Fiat,
		RefreshWindow:         time.Duration(cfg.Orders.RefreshWindowMinutes) * time.Minute,
		MaxCreateAttempts:     cfg.Orders.MaxCreateAttempts,
		FallbackReturnAddress: cfg.Orders.FallbackReturnAddress,
	})
	watchdog := &lifecycle.Watchdog{
		Manager:            manager,
		Store:              st,
		Log:                sugar,
		Interval:           time.Duration(cfg.Watchdog.IntervalSeconds) * time.Second,
		StatusPollAttempts: cfg.Watchdog.StatusPollAttempts,
		SessionBatch:       cfg.Watchdog.SessionBatch,
	}

	handler := httpapi.NewHandler(manager, st, sugar)
	ws := httpapi.NewWSHandler(hub, sugar)
	proxy := httpapi.NewProcessorProxy(
		cfg.Processor.BaseURL,
		cfg.Processor.APIKey,
		time.Duration(cfg.Processor.TimeoutSeconds)*time.Second,
		sugar,
	)
	srv := httpapi.NewServer(handler, ws, proxy)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		watchdog.Run(ctx)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("api listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		sugar.Info("server stopped")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("terminated with error", "error", err)
	}
}
