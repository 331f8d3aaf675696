package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"go-chi-calculator/internal/calculator"
	"go-chi-calculator/internal/config"
	"go-chi-calculator/internal/observability"
	"go-chi-calculator/internal/server"
)

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Config
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Logger
	if err := observability.InitLogger(cfg.LogLevel); err != nil {
		panic(err)
	}
	defer observability.SyncLogger()

	// Tracing, metrics, log export
	shutdown, err := initObservability(ctx, cfg)
	if err != nil {
		observability.Logger.Fatal("observability setup failed", zap.Error(err))
	}
	defer shutdown(context.Background())

	// Calculator sessions
	calc, err := newCalculator(cfg)
	if err != nil {
		observability.Logger.Fatal("calculator setup failed", zap.Error(err))
	}
	if err := calculator.RegisterCollectors(prometheus.DefaultRegisterer, calc); err != nil {
		observability.Logger.Fatal("metrics registration failed", zap.Error(err))
	}
	go calc.Sessions().Run(ctx, cfg.SessionSweep)

	// Router
	router := server.NewRouter(calc, nil)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		observability.Logger.Info("server started",
			zap.String("addr", cfg.HTTPAddr),
			zap.Int("history_size", cfg.HistorySize),
			zap.String("locale", cfg.Locale),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			observability.Logger.Error("server stopped", zap.Error(err))
			os.Exit(1)
		}
	}()

	waitForShutdown(ctx, srv, cfg.ShutdownTimeout)
}

func waitForShutdown(ctx context.Context, srv *http.Server, timeout time.Duration) {

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		observability.Logger.Error("graceful shutdown failed", zap.Error(err))
		return
	}
	observability.Logger.Info("server stopped")
}
