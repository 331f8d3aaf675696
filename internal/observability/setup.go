package observability

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Exporters selects which OTLP signals are shipped.
type Exporters struct {
	Traces  bool
	Metrics bool
	Logs    bool
}

// Setup starts the enabled exporters and returns one shutdown func for all
// of them. On error, exporters already started are shut down again.
func Setup(ctx context.Context, exp Exporters) (func(context.Context) error, error) {
	var shutdowns []func(context.Context) error

	shutdown := func(ctx context.Context) error {
		var errs []error
		for i := len(shutdowns) - 1; i >= 0; i-- {
			errs = append(errs, shutdowns[i](ctx))
		}
		return errors.Join(errs...)
	}

	steps := []struct {
		name    string
		enabled bool
		init    func(context.Context) (func(context.Context) error, error)
	}{
		{"traces", exp.Traces, InitTracing},
		{"metrics", exp.Metrics, InitMetrics},
		{"logs", exp.Logs, InitLogging},
	}

	for _, step := range steps {
		if !step.enabled {
			continue
		}
		fn, err := step.init(ctx)
		if err != nil {
			return nil, errors.Join(err, shutdown(ctx))
		}
		shutdowns = append(shutdowns, fn)
		Logger.Info("otlp exporter started", zap.String("signal", step.name))
	}

	return shutdown, nil
}
