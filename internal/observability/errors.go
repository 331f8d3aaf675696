package observability

import (
	"context"
	"net/http"

	"go-chi-calculator/internal/handlers"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RecordError marks the span failed, counts the error, logs it and writes the
// JSON error body. Client errors (4xx) log at warn, everything else at error.
// The request id travels in the X-Request-ID header, not the body.
func RecordError(ctx context.Context, span trace.Span, logger *zap.Logger, counter metric.Int64Counter, opName, msg string, err error, status int, w http.ResponseWriter) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)

	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", opName)))

	lvl := zapcore.ErrorLevel
	if status >= 400 && status < 500 {
		lvl = zapcore.WarnLevel
	}
	if ce := logger.Check(lvl, msg); ce != nil {
		ce.Write(
			zap.String("operation", opName),
			zap.Error(err),
			zap.Int("status", status),
			zap.String("request_id", RequestIDFromContext(ctx)),
		)
	}

	handlers.WriteError(w, status, msg)
}
