package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Veysel440/go-ledger/internal/app"
	"github.com/Veysel440/go-ledger/internal/config"
	"github.com/Veysel440/go-ledger/internal/httpx"
	"github.com/Veysel440/go-ledger/pkg/rate"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config_error", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("ledger_open_error", "err", err)
		os.Exit(1)
	}

	limiter := rate.New(cfg.HTTP.RatePerMinute, time.Minute)
	go limiter.Run(ctx)

	srv := &http.Server{
		Addr: ":" + strconv.Itoa(cfg.Port),
		Handler: httpx.NewMux(logger, httpx.Deps{
			Service: ledger.Service,
			Metrics: ledger.Metrics,
			Limiter: limiter,
			APIKeys: cfg.HTTP.APIKeys,
		}),
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("http_start", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http_error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(sctx)
	if err := ledger.Close(sctx); err != nil {
		logger.Error("ledger_close_error", "err", err)
	}
	logger.Info("http_shutdown")
}
