package calculator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go-chi-calculator/internal/handlers"
	"go-chi-calculator/internal/observability"
	"go-chi-calculator/internal/session"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// tracer is the calculator's dedicated OpenTelemetry tracer.
var tracer = otel.Tracer("calculator")

// Settings apply to every engine the handler creates.
type Settings struct {
	HistorySize   int
	RecoveryDelay time.Duration
	Locale        language.Tag
	Muted         bool
	SessionTTL    time.Duration
}

// Handler serves calculator sessions over HTTP. Each session owns one Engine.
type Handler struct {
	settings Settings
	sessions *session.Store[*Engine]
}

func NewHandler(settings Settings) *Handler {
	h := &Handler{settings: settings}
	h.sessions = session.NewStore(settings.SessionTTL, h.newEngine, (*Engine).Close, observability.Logger)
	return h
}

// Sessions exposes the session store so the caller can run its sweeper.
func (h *Handler) Sessions() *session.Store[*Engine] {
	return h.sessions
}

func (h *Handler) newEngine() *Engine {
	return NewEngine(Config{
		HistorySize:   h.settings.HistorySize,
		RecoveryDelay: h.settings.RecoveryDelay,
		Formatter:     NewFormatter(h.settings.Locale),
		Muted:         h.settings.Muted,
		Logger:        observability.Logger,
	})
}

// ---------------------------------------------------------------------------
// Handlers: session lifecycle
// ---------------------------------------------------------------------------

// CreateSession handles POST /calculator/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.LoggerWithTrace(ctx)
	requestID := observability.RequestIDFromContext(ctx)

	ctx, span := tracer.Start(ctx, "calculator.session.create",
		trace.WithAttributes(attribute.String("request.id", requestID)),
	)
	defer span.End()

	id, eng := h.sessions.Create()

	sessionsCounter.Add(ctx, 1)
	span.SetAttributes(attribute.String("calculator.session.id", id))
	span.SetStatus(codes.Ok, "")

	logger.Info("calculator session created",
		zap.String("session_id", id),
		zap.String("request_id", requestID),
	)

	handlers.WriteJSON(w, http.StatusCreated, SessionResponse{
		SessionID: id,
		View:      newViewResponse(eng.View()),
	})
}

// GetSession handles GET /calculator/sessions/{sessionID}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, "session.get", func(c *call) {
		handlers.WriteJSON(w, http.StatusOK, SessionResponse{
			SessionID: c.id,
			View:      newViewResponse(c.engine.View()),
		})
	})
}

// DeleteSession handles DELETE /calculator/sessions/{sessionID}
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, "session.delete", func(c *call) {
		if err := h.sessions.Delete(c.id); err != nil {
			c.fail("session not found", err, http.StatusNotFound)
			return
		}
		c.logger.Info("calculator session deleted",
			zap.String("session_id", c.id),
			zap.String("request_id", c.requestID),
		)
		w.WriteHeader(http.StatusNoContent)
	})
}

// ---------------------------------------------------------------------------
// Handlers: session actions
// ---------------------------------------------------------------------------

// PressKey handles POST /calculator/sessions/{sessionID}/keys
func (h *Handler) PressKey(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, "key", func(c *call) {
		var req KeyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			c.fail("invalid request body", err, http.StatusBadRequest)
			return
		}
		if req.Key == "" {
			c.fail("missing key", errors.New("key is empty"), http.StatusBadRequest)
			return
		}

		c.span.SetAttributes(
			attribute.String("calculator.key", req.Key),
			attribute.Bool("calculator.key.shift", req.Shift),
		)

		start := time.Now()
		out, handled := c.engine.Press(Key{Name: req.Key, Shift: req.Shift})
		elapsed := float64(time.Since(start).Microseconds()) / 1000.0 // ms

		c.span.SetAttributes(attribute.Bool("calculator.key.handled", handled))
		c.record(out, elapsed)
		c.respond(req.Key, handled, out)
	})
}

// SelectHistory handles POST /calculator/sessions/{sessionID}/history/select
func (h *Handler) SelectHistory(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, "history.select", func(c *call) {
		var req SelectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			c.fail("invalid request body", err, http.StatusBadRequest)
			return
		}

		out, applied := c.engine.SelectHistoryEntry(req.Entry)
		c.span.SetAttributes(attribute.Bool("calculator.history.applied", applied))
		c.respond("", applied, out)
	})
}

// ToggleHistory handles POST /calculator/sessions/{sessionID}/history/toggle
func (h *Handler) ToggleHistory(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, "history.toggle", func(c *call) {
		c.respond("", true, c.engine.ToggleHistoryPanel())
	})
}

// ToggleSound handles POST /calculator/sessions/{sessionID}/sound/toggle
func (h *Handler) ToggleSound(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, "sound.toggle", func(c *call) {
		out := c.engine.ToggleSound()
		c.span.SetAttributes(attribute.Bool("calculator.sound", out.View.SoundOn))
		c.respond("", true, out)
	})
}

// call carries the per-request context of a session action.
type call struct {
	w         http.ResponseWriter
	ctx       context.Context
	span      trace.Span
	logger    *zap.Logger
	requestID string
	opName    string
	id        string
	engine    *Engine
}

// withSession opens a span for opName, resolves the session from the URL and
// runs fn. Unknown sessions answer 404.
func (h *Handler) withSession(w http.ResponseWriter, r *http.Request, opName string, fn func(c *call)) {
	ctx := r.Context()
	logger := observability.LoggerWithTrace(ctx)
	requestID := observability.RequestIDFromContext(ctx)
	id := chi.URLParam(r, "sessionID")

	ctx, span := tracer.Start(ctx, fmt.Sprintf("calculator.%s", opName),
		trace.WithAttributes(
			attribute.String("calculator.operation", opName),
			attribute.String("calculator.session.id", id),
			attribute.String("request.id", requestID),
		),
	)
	defer span.End()

	c := &call{
		w:         w,
		ctx:       ctx,
		span:      span,
		logger:    logger,
		requestID: requestID,
		opName:    opName,
		id:        id,
	}

	eng, err := h.sessions.Get(id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, session.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.fail("session not found", err, status)
		return
	}
	c.engine = eng

	fn(c)
}

func (c *call) fail(msg string, err error, status int) {
	observability.RecordError(c.ctx, c.span, c.logger, errorCounter, c.opName, msg, err, status, c.w)
}

// record turns the evaluations an action ran into metrics, span events and logs.
// Division by zero is a calculator state, not a request failure.
func (c *call) record(out Outcome, elapsed float64) {
	for _, ev := range out.Evaluations {
		attrs := metric.WithAttributes(attribute.String("operation", ev.Operator.Name()))

		if ev.Err != nil {
			errorCounter.Add(c.ctx, 1, attrs)
			c.span.AddEvent("computation.failed", trace.WithAttributes(
				attribute.String("operation", ev.Operator.Name()),
				attribute.String("error", ev.Err.Error()),
			))
			c.logger.Warn("calculator operation failed",
				zap.String("operation", ev.Operator.Name()),
				zap.Float64("a", ev.Left),
				zap.Float64("b", ev.Right),
				zap.Error(ev.Err),
				zap.String("session_id", c.id),
				zap.String("request_id", c.requestID),
			)
			continue
		}

		opsCounter.Add(c.ctx, 1, attrs)
		opsHistogram.Record(c.ctx, elapsed, attrs)
		resultGauge.Record(c.ctx, ev.Result, attrs)

		c.span.AddEvent("computation.complete", trace.WithAttributes(
			attribute.Float64("result", ev.Result),
			attribute.Float64("duration_ms", elapsed),
		))

		c.logger.Info("calculator operation completed",
			zap.String("operation", ev.Operator.Name()),
			zap.Float64("a", ev.Left),
			zap.Float64("b", ev.Right),
			zap.Float64("result", ev.Result),
			zap.String("session_id", c.id),
			zap.String("request_id", c.requestID),
			zap.Float64("duration_ms", elapsed),
		)
	}
}

func (c *call) respond(key string, handled bool, out Outcome) {
	c.span.SetAttributes(
		attribute.String("calculator.display", out.View.Display),
		attribute.Bool("calculator.error", out.View.Error),
	)
	c.span.SetStatus(codes.Ok, "")

	handlers.WriteJSON(c.w, http.StatusOK, ActionResponse{
		SessionID: c.id,
		Key:       key,
		Handled:   handled,
		View:      newViewResponse(out.View),
		Cues:      newCueResponses(out.Cues),
	})
}

// ---------------------------------------------------------------------------
// Handler: replayed key sequences with nested spans
// ---------------------------------------------------------------------------

// Replay handles POST /calculator/replay. It runs a key sequence on a
// throwaway engine, creating a child span for every key. The per-step
// display trace shows chained evaluation at work.
func (h *Handler) Replay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.LoggerWithTrace(ctx)
	requestID := observability.RequestIDFromContext(ctx)

	// Parent span for the entire replay
	ctx, span := tracer.Start(ctx, "calculator.replay",
		trace.WithAttributes(
			attribute.String("request.id", requestID),
		),
	)
	defer span.End()

	var req ReplayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		observability.RecordError(ctx, span, logger, errorCounter, "replay", "invalid request body", err, http.StatusBadRequest, w)
		return
	}

	if len(req.Keys) == 0 {
		observability.RecordError(ctx, span, logger, errorCounter, "replay", "no keys provided", fmt.Errorf("keys array is empty"), http.StatusBadRequest, w)
		return
	}

	span.SetAttributes(attribute.Int("replay.keys_count", len(req.Keys)))

	eng := h.newEngine()
	defer eng.Close()

	steps := make([]ReplayStep, 0, len(req.Keys))
	var out Outcome

	for i, token := range req.Keys {
		key := ParseKey(token)

		_, stepSpan := tracer.Start(ctx, fmt.Sprintf("calculator.replay.step.%d", i),
			trace.WithAttributes(
				attribute.Int("replay.step.index", i),
				attribute.String("replay.step.key", key.Name),
				attribute.Bool("replay.step.shift", key.Shift),
			),
		)

		var handled bool
		out, handled = eng.Press(key)
		if !handled {
			err := fmt.Errorf("unknown key %q at step %d", token, i)

			stepSpan.RecordError(err)
			stepSpan.SetStatus(codes.Error, err.Error())
			stepSpan.End()

			observability.RecordError(ctx, span, logger, errorCounter, "replay", err.Error(), err, http.StatusBadRequest, w)
			return
		}

		for _, ev := range out.Evaluations {
			attrs := metric.WithAttributes(attribute.String("operation", ev.Operator.Name()))
			if ev.Err != nil {
				errorCounter.Add(ctx, 1, attrs)
				stepSpan.AddEvent("computation.failed", trace.WithAttributes(
					attribute.String("error", ev.Err.Error()),
				))
				continue
			}
			opsCounter.Add(ctx, 1, attrs)
			stepSpan.AddEvent("computation.complete", trace.WithAttributes(
				attribute.Float64("input", ev.Left),
				attribute.Float64("result", ev.Result),
			))
		}

		stepSpan.SetAttributes(attribute.String("replay.step.display", out.View.Display))
		stepSpan.SetStatus(codes.Ok, "")
		stepSpan.End()

		steps = append(steps, ReplayStep{
			Key:     token,
			Display: out.View.Display,
			Label:   out.View.Label,
		})
	}

	span.AddEvent("replay.complete", trace.WithAttributes(
		attribute.String("display", out.View.Display),
		attribute.Int("total_steps", len(steps)),
	))
	span.SetStatus(codes.Ok, "")

	logger.Info("key replay completed",
		zap.Int("steps", len(steps)),
		zap.String("display", out.View.Display),
		zap.String("request_id", requestID),
	)

	handlers.WriteJSON(w, http.StatusOK, ReplayResponse{
		Steps: steps,
		View:  newViewResponse(out.View),
	})
}
