package main

import (
	"context"

	"go-chi-calculator/internal/calculator"
	"go-chi-calculator/internal/config"
	"go-chi-calculator/internal/observability"
)

// initObservability starts the configured exporters and registers the calculator
// instruments. Instruments are created even when nothing is exported so
// handlers can always record.
func initObservability(ctx context.Context, cfg config.Config) (func(context.Context) error, error) {
	shutdown, err := observability.Setup(ctx, observability.Exporters{
		Traces:  cfg.OTLPTraces,
		Metrics: cfg.OTLPMetrics,
		Logs:    cfg.OTLPLogs,
	})
	if err != nil {
		return nil, err
	}

	if err := calculator.InitMetrics(); err != nil {
		return nil, err
	}

	return shutdown, nil
}

func newCalculator(cfg config.Config) (*calculator.Handler, error) {
	locale, err := cfg.LocaleTag()
	if err != nil {
		return nil, err
	}

	return calculator.NewHandler(calculator.Settings{
		HistorySize:   cfg.HistorySize,
		RecoveryDelay: cfg.ErrorRecovery,
		Locale:        locale,
		Muted:         !cfg.Sound,
		SessionTTL:    cfg.SessionTTL,
	}), nil
}
