package calculator

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// DefaultRecoveryDelay is how long the error sentinel stays on the display
// before the engine resets itself.
const DefaultRecoveryDelay = 2 * time.Second

// State is the input state machine. Current is always a numeral or the
// error sentinel; Previous is empty unless an operator is pending.
type State struct {
	Current       Operand
	Previous      Operand
	Pending       Operator
	AwaitingFresh bool
}

func initialState() State {
	return State{Current: initialOperand}
}

// Config configures an Engine. Zero values take defaults.
type Config struct {
	HistorySize   int
	RecoveryDelay time.Duration
	Formatter     *Formatter
	Muted         bool

	Scheduler Scheduler
	Display   Display
	Cues      CueSink
	Logger    *zap.Logger
}

// Evaluation describes one attempted calculation.
type Evaluation struct {
	Operator Operator
	Left     float64
	Right    float64
	Result   float64
	Err      error
}

// Outcome is what an operation produced: the new view, the cues it emitted
// and any evaluation it ran.
type Outcome struct {
	View        View
	Cues        []Cue
	Evaluations []Evaluation
}

// Engine owns one calculator: its state, history and the pending error
// recovery. Operations are serialised; sinks are called after the engine
// lock is released so they may call back into the engine.
type Engine struct {
	mu sync.Mutex

	state   State
	history *History
	format  *Formatter
	label   string
	active  Operator
	soundOn bool
	panel   bool
	closed  bool

	recoveryDelay time.Duration
	scheduler     Scheduler
	recovery      Timer
	generation    uint64

	display Display
	cues    CueSink
	logger  *zap.Logger
}

func NewEngine(cfg Config) *Engine {
	e := &Engine{
		state:         initialState(),
		history:       NewHistory(cfg.HistorySize),
		format:        cfg.Formatter,
		soundOn:       !cfg.Muted,
		recoveryDelay: cfg.RecoveryDelay,
		scheduler:     cfg.Scheduler,
		display:       cfg.Display,
		cues:          cfg.Cues,
		logger:        cfg.Logger,
	}
	if e.format == nil {
		e.format = NewFormatter(language.English)
	}
	if e.recoveryDelay <= 0 {
		e.recoveryDelay = DefaultRecoveryDelay
	}
	if e.scheduler == nil {
		e.scheduler = wallClock{}
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// State returns a copy of the input state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewLocked()
}

// History returns the recorded calculations, newest first.
func (e *Engine) History() []HistoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Entries()
}

// Close cancels a pending error recovery. Operations still work afterwards
// but no further recovery is scheduled.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelRecoveryLocked()
	e.closed = true
}

// InputDigit appends d to the current operand, or starts a new operand when
// a fresh entry is expected. A lone "0" is replaced rather than extended.
func (e *Engine) InputDigit(control string, d rune) Outcome {
	if d < '0' || d > '9' {
		return e.Snapshot()
	}
	return e.op(func(tx *txn) {
		e.feedback(tx, toneDigit, control)
		e.leaveErrorLocked()

		s := &e.state
		digit := string(d)
		switch {
		case s.AwaitingFresh:
			s.Current = NumberOperand(digit)
			s.AwaitingFresh = false
		case s.Current.Text() == "0":
			s.Current = NumberOperand(digit)
		default:
			s.Current = NumberOperand(s.Current.Text() + digit)
		}
	})
}

// InputDecimalPoint adds a '.' unless the operand already has one. A fresh
// entry starts at "0.".
func (e *Engine) InputDecimalPoint(control string) Outcome {
	return e.op(func(tx *txn) {
		e.feedback(tx, toneDecimal, control)
		e.leaveErrorLocked()

		s := &e.state
		switch {
		case s.AwaitingFresh:
			s.Current = NumberOperand("0.")
			s.AwaitingFresh = false
		case !strings.Contains(s.Current.Text(), "."):
			s.Current = NumberOperand(s.Current.Text() + ".")
		}
	})
}

// InputOperator makes op the pending operator. When an operator is already
// pending and a second operand has been typed, that calculation runs first,
// so 1 + 2 + shows 3. Pressing another operator before typing replaces the
// pending one.
func (e *Engine) InputOperator(control string, op Operator) Outcome {
	if op == OpNone {
		return e.Snapshot()
	}
	return e.op(func(tx *txn) {
		e.feedback(tx, toneOperator, control)
		e.leaveErrorLocked()

		s := &e.state
		if !s.Previous.IsEmpty() && !s.AwaitingFresh {
			e.evaluateLocked(tx)
			if s.Current.IsError() {
				return
			}
		}

		s.Previous = s.Current
		s.Pending = op
		s.AwaitingFresh = true
		e.label = e.format.Format(s.Previous) + " " + op.Symbol()
		e.active = op
	})
}

// Evaluate applies the pending operator. It does nothing when no operator
// is pending or the error sentinel is shown.
func (e *Engine) Evaluate(control string) Outcome {
	return e.op(func(tx *txn) {
		if e.evaluateLocked(tx) {
			e.pulse(tx, control)
		}
	})
}

// ClearAll resets the input state. History and settings are kept.
func (e *Engine) ClearAll(control string) Outcome {
	return e.op(func(tx *txn) {
		e.feedback(tx, toneClearAll, control)
		e.cancelRecoveryLocked()
		e.resetLocked()
	})
}

// ClearEntry resets only the current operand.
func (e *Engine) ClearEntry(control string) Outcome {
	return e.op(func(tx *txn) {
		e.feedback(tx, toneClearEntry, control)
		e.leaveErrorLocked()
		e.state.Current = initialOperand
	})
}

// ToggleSign flips the sign of the current operand, except for "0" and
// the error sentinel.
func (e *Engine) ToggleSign(control string) Outcome {
	return e.op(func(tx *txn) {
		e.feedback(tx, toneToggleSign, control)

		cur := e.state.Current
		if cur.IsError() || cur.Text() == "0" {
			return
		}
		if text, ok := strings.CutPrefix(cur.Text(), "-"); ok {
			e.state.Current = NumberOperand(text)
		} else {
			e.state.Current = NumberOperand("-" + cur.Text())
		}
	})
}

// Backspace drops the last character of the current operand.
func (e *Engine) Backspace(control string) Outcome {
	return e.op(func(tx *txn) {
		e.pulse(tx, control)
		e.leaveErrorLocked()

		text := e.state.Current.Text()
		if len(text) > 1 {
			text = text[:len(text)-1]
		} else {
			text = ""
		}
		if text == "" || text == "-" {
			e.state.Current = initialOperand
			return
		}
		e.state.Current = NumberOperand(text)
	})
}

// SelectHistoryEntry loads the result of a history record as the current
// operand and reports whether it did. Records without a parsable " = "
// result are ignored.
func (e *Engine) SelectHistoryEntry(record string) (Outcome, bool) {
	var applied bool
	out := e.op(func(tx *txn) {
		text, ok := e.recallLocked(record)
		if !ok {
			e.logger.Debug("history entry ignored", zap.String("entry", record))
			return
		}
		applied = true
		e.leaveErrorLocked()
		e.state.Current = NumberOperand(text)
		e.state.AwaitingFresh = true
		e.panel = false
	})
	return out, applied
}

// ToggleSound mutes or unmutes tone cues. Pulses are always emitted.
func (e *Engine) ToggleSound() Outcome {
	return e.op(func(tx *txn) {
		e.soundOn = !e.soundOn
		if e.soundOn {
			e.tone(tx, toneSoundOn)
		} else {
			e.tone(tx, toneSoundOff)
		}
	})
}

// ToggleHistoryPanel shows or hides the history list. It only opens when
// there is something to show.
func (e *Engine) ToggleHistoryPanel() Outcome {
	return e.op(func(tx *txn) {
		if e.history.Len() > 0 {
			e.panel = !e.panel
		}
	})
}

func (e *Engine) HideHistoryPanel() Outcome {
	return e.op(func(tx *txn) {
		e.panel = false
	})
}

// Snapshot returns the current view without changing anything.
func (e *Engine) Snapshot() Outcome {
	return Outcome{View: e.View()}
}

type txn struct {
	cues  []Cue
	evals []Evaluation
}

// op runs fn under the engine lock, then hands the result to the sinks.
func (e *Engine) op(fn func(tx *txn)) Outcome {
	e.mu.Lock()
	tx := &txn{}
	fn(tx)
	out := Outcome{View: e.viewLocked(), Cues: tx.cues, Evaluations: tx.evals}
	e.mu.Unlock()

	e.flush(out)
	return out
}

func (e *Engine) evaluateLocked(tx *txn) bool {
	s := &e.state
	if s.Pending == OpNone || s.Previous.IsEmpty() || s.Current.IsError() {
		return false
	}
	e.tone(tx, toneEvaluate)

	left, lok := s.Previous.Float()
	right, rok := s.Current.Float()
	var (
		result float64
		err    error
	)
	if lok && rok {
		result, err = s.Pending.Apply(left, right)
	} else {
		left, right = s.Previous.value(), s.Current.value()
		err = fmt.Errorf("operand out of range: %w", ErrNonFinite)
	}
	tx.evals = append(tx.evals, Evaluation{
		Operator: s.Pending,
		Left:     left,
		Right:    right,
		Result:   result,
		Err:      err,
	})

	if err != nil {
		e.logger.Debug("evaluation failed",
			zap.String("operation", s.Pending.Name()),
			zap.Float64("left", left),
			zap.Float64("right", right),
			zap.Error(err),
		)
		s.Current = ErrorOperand()
		e.scheduleRecoveryLocked()
		return true
	}

	record := fmt.Sprintf("%s %s %s = %s",
		e.format.Format(s.Previous),
		s.Pending.Symbol(),
		e.format.Format(s.Current),
		e.format.FormatFloat(result),
	)
	e.history.Add(HistoryEntry{Text: record, Result: numeral(result)})

	s.Current = NumberOperand(numeral(result))
	s.Previous = Operand{}
	s.Pending = OpNone
	s.AwaitingFresh = true
	e.label = ""
	e.active = OpNone
	return true
}

func (e *Engine) recallLocked(record string) (string, bool) {
	if entry, ok := e.history.Lookup(record); ok {
		return entry.Result, true
	}
	raw, ok := resultText(record)
	if !ok {
		return "", false
	}
	return parseDisplayed(raw)
}

func (e *Engine) resetLocked() {
	e.state = initialState()
	e.label = ""
	e.active = OpNone
}

// leaveErrorLocked drops the error sentinel ahead of new input, doing what
// the recovery timer would have done.
func (e *Engine) leaveErrorLocked() {
	if !e.state.Current.IsError() {
		return
	}
	e.cancelRecoveryLocked()
	e.resetLocked()
}

func (e *Engine) scheduleRecoveryLocked() {
	e.cancelRecoveryLocked()
	if e.closed {
		return
	}
	e.generation++
	gen := e.generation
	e.recovery = e.scheduler.AfterFunc(e.recoveryDelay, func() {
		e.fireRecovery(gen)
	})
}

func (e *Engine) cancelRecoveryLocked() {
	if e.recovery == nil {
		return
	}
	e.recovery.Stop()
	e.recovery = nil
	e.generation++
}

// fireRecovery runs on the scheduler. A generation mismatch means the task was
// cancelled after it had already started.
func (e *Engine) fireRecovery(gen uint64) {
	e.mu.Lock()
	if gen != e.generation || e.recovery == nil {
		e.mu.Unlock()
		return
	}
	e.recovery = nil
	tx := &txn{}
	e.tone(tx, toneClearAll)
	e.resetLocked()
	out := Outcome{View: e.viewLocked(), Cues: tx.cues}
	e.mu.Unlock()

	e.logger.Debug("recovered from error")
	e.flush(out)
}

func (e *Engine) viewLocked() View {
	display := e.format.Format(e.state.Current)
	return View{
		Display:        display,
		Label:          e.label,
		Error:          e.state.Current.IsError(),
		ActiveOperator: e.active.Symbol(),
		FontSize:       fontSize(utf8.RuneCountInString(display)),
		History:        e.history.Texts(),
		HistoryOpen:    e.panel,
		SoundOn:        e.soundOn,
	}
}

func (e *Engine) feedback(tx *txn, c Cue, control string) {
	e.tone(tx, c)
	e.pulse(tx, control)
}

func (e *Engine) tone(tx *txn, c Cue) {
	if e.soundOn {
		tx.cues = append(tx.cues, c)
	}
}

func (e *Engine) pulse(tx *txn, control string) {
	if control == "" {
		return
	}
	tx.cues = append(tx.cues, Cue{
		Kind:     CuePulse,
		Control:  control,
		Duration: pulseDuration,
	})
}

func (e *Engine) flush(out Outcome) {
	for _, c := range out.Cues {
		e.play(c)
	}
	if e.display != nil {
		e.display.Render(out.View)
	}
}

func (e *Engine) play(c Cue) {
	if e.cues == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Debug("cue sink failed", zap.Any("panic", r))
		}
	}()
	e.cues.Cue(c)
}
