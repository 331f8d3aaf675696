package calculator

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fakeScheduler records tasks and runs them only when told to.
type fakeScheduler struct {
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) fire() {
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			t.f()
		}
	}
}

func (s *fakeScheduler) pending() int {
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type viewLog struct {
	views []View
}

func (l *viewLog) Render(v View) { l.views = append(l.views, v) }

type panickingSink struct{}

func (panickingSink) Cue(Cue) { panic("audio device gone") }

func newTestEngine(t *testing.T) (*Engine, *fakeScheduler) {
	t.Helper()
	sched := &fakeScheduler{}
	eng := NewEngine(Config{Scheduler: sched})
	t.Cleanup(eng.Close)
	return eng, sched
}

func digits(e *Engine, s string) {
	for _, r := range s {
		e.InputDigit("", r)
	}
}

func TestInitialState(t *testing.T) {
	eng, _ := newTestEngine(t)

	s := eng.State()
	assert.Equal(t, "0", s.Current.Text())
	assert.True(t, s.Previous.IsEmpty())
	assert.Equal(t, OpNone, s.Pending)
	assert.False(t, s.AwaitingFresh)
	assert.Equal(t, "0", eng.View().Display)
}

func TestInputDigitElidesLeadingZero(t *testing.T) {
	tests := []struct {
		keys string
		want string
	}{
		{keys: "1", want: "1"},
		{keys: "50", want: "50"},
		{keys: "007", want: "7"},
		{keys: "1234", want: "1234"},
	}

	for _, tc := range tests {
		t.Run(tc.keys, func(t *testing.T) {
			eng, _ := newTestEngine(t)
			digits(eng, tc.keys)
			assert.Equal(t, tc.want, eng.State().Current.Text())
		})
	}
}

func TestInputDigitIgnoresNonDigits(t *testing.T) {
	eng, _ := newTestEngine(t)

	out := eng.InputDigit("x", 'x')

	assert.Empty(t, out.Cues)
	assert.Equal(t, "0", eng.State().Current.Text())
}

func TestInputDecimalPointOnlyOnce(t *testing.T) {
	eng, _ := newTestEngine(t)

	digits(eng, "3")
	eng.InputDecimalPoint("")
	eng.InputDecimalPoint("")
	digits(eng, "5")

	assert.Equal(t, "3.5", eng.State().Current.Text())
}

func TestInputDecimalPointOnFreshEntry(t *testing.T) {
	eng, _ := newTestEngine(t)

	digits(eng, "9")
	eng.InputOperator("", OpAdd)
	eng.InputDecimalPoint("")

	s := eng.State()
	assert.Equal(t, "0.", s.Current.Text())
	assert.False(t, s.AwaitingFresh)
	assert.Equal(t, "0", eng.View().Display)
}

func TestEvaluateWithoutOperatorIsNoOp(t *testing.T) {
	eng, _ := newTestEngine(t)
	digits(eng, "42")
	before := eng.State()

	for i := 0; i < 3; i++ {
		out := eng.Evaluate(KeyEnter)
		assert.Empty(t, out.Cues)
		assert.Empty(t, out.Evaluations)
	}

	assert.Equal(t, before, eng.State())
	assert.Empty(t, eng.History())
}

func TestChainedOperatorsEvaluateLeftToRight(t *testing.T) {
	eng, _ := newTestEngine(t)

	digits(eng, "1")
	eng.InputOperator("", OpAdd)
	digits(eng, "2")
	out := eng.InputOperator("", OpAdd)
	assert.Equal(t, "3", out.View.Display)
	assert.Equal(t, "3 +", out.View.Label)

	digits(eng, "3")
	eng.Evaluate("")

	s := eng.State()
	assert.Equal(t, "6", s.Current.Text())
	assert.Equal(t, OpNone, s.Pending)
	assert.True(t, s.Previous.IsEmpty())
	assert.True(t, s.AwaitingFresh)

	texts := make([]string, 0, 2)
	for _, h := range eng.History() {
		texts = append(texts, h.Text)
	}
	assert.Equal(t, []string{"3 + 3 = 6", "1 + 2 = 3"}, texts)
}

func TestSecondOperatorReplacesPending(t *testing.T) {
	eng, _ := newTestEngine(t)

	digits(eng, "5")
	eng.InputOperator("", OpAdd)
	out := eng.InputOperator("", OpSub)

	s := eng.State()
	assert.Equal(t, OpSub, s.Pending)
	assert.Equal(t, "5", s.Previous.Text())
	assert.Empty(t, out.Evaluations)
	assert.Equal(t, "5 −", out.View.Label)
	assert.Equal(t, "−", out.View.ActiveOperator)
}

func TestOperatorSymbolsInHistory(t *testing.T) {
	tests := []struct {
		op   Operator
		a, b string
		want string
	}{
		{op: OpAdd, a: "7", b: "2", want: "7 + 2 = 9"},
		{op: OpSub, a: "7", b: "2", want: "7 − 2 = 5"},
		{op: OpMul, a: "7", b: "2", want: "7 × 2 = 14"},
		{op: OpDiv, a: "7", b: "2", want: "7 ÷ 2 = 3.5"},
		{op: OpMul, a: "1500", b: "1000", want: "1,500 × 1,000 = 1,500,000"},
	}

	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			eng, _ := newTestEngine(t)
			digits(eng, tc.a)
			eng.InputOperator("", tc.op)
			digits(eng, tc.b)
			eng.Evaluate("")

			require.Len(t, eng.History(), 1)
			assert.Equal(t, tc.want, eng.History()[0].Text)
		})
	}
}

func TestFloatingPointResultIsKeptVerbatim(t *testing.T) {
	eng, _ := newTestEngine(t)

	eng.InputDecimalPoint("")
	digits(eng, "1")
	eng.InputOperator("", OpAdd)
	eng.InputDecimalPoint("")
	digits(eng, "2")
	eng.Evaluate("")

	assert.Equal(t, "0.30000000000000004", eng.State().Current.Text())
}

func TestDivisionByZeroRecoversAfterDelay(t *testing.T) {
	eng, sched := newTestEngine(t)

	digits(eng, "5")
	eng.InputOperator("", OpDiv)
	digits(eng, "0")
	out := eng.Evaluate("")

	require.Len(t, out.Evaluations, 1)
	assert.ErrorIs(t, out.Evaluations[0].Err, ErrDivisionByZero)
	assert.True(t, eng.State().Current.IsError())
	assert.True(t, out.View.Error)
	assert.Equal(t, "Error", out.View.Display)
	assert.Empty(t, eng.History())

	require.Equal(t, 1, sched.pending())
	assert.Equal(t, DefaultRecoveryDelay, sched.timers[0].d)

	sched.fire()

	s := eng.State()
	assert.Equal(t, "0", s.Current.Text())
	assert.Equal(t, OpNone, s.Pending)
	assert.True(t, s.Previous.IsEmpty())
	assert.False(t, eng.View().Error)
}

func TestInputDuringErrorCancelsRecovery(t *testing.T) {
	eng, sched := newTestEngine(t)

	digits(eng, "5")
	eng.InputOperator("", OpDiv)
	digits(eng, "0")
	eng.Evaluate("")
	stale := sched.timers[0]

	digits(eng, "7")

	assert.True(t, stale.stopped)
	assert.Equal(t, 0, sched.pending())
	s := eng.State()
	assert.Equal(t, "7", s.Current.Text())
	assert.Equal(t, OpNone, s.Pending)

	// A task that was already running when it got cancelled must not reset.
	stale.f()
	assert.Equal(t, "7", eng.State().Current.Text())
}

func TestEvaluateAndToggleSignKeepError(t *testing.T) {
	eng, sched := newTestEngine(t)

	digits(eng, "5")
	eng.InputOperator("", OpDiv)
	digits(eng, "0")
	eng.Evaluate("")

	eng.ToggleSign("")
	eng.Evaluate("")

	assert.True(t, eng.State().Current.IsError())
	assert.Equal(t, 1, sched.pending())
}

func TestChainedDivisionByZeroStopsOperator(t *testing.T) {
	eng, _ := newTestEngine(t)

	digits(eng, "5")
	eng.InputOperator("", OpDiv)
	digits(eng, "0")
	out := eng.InputOperator("", OpAdd)

	assert.True(t, eng.State().Current.IsError())
	assert.Equal(t, "Error", out.View.Display)
	assert.Equal(t, "5 ÷", out.View.Label)
}

func TestOverflowEntersErrorState(t *testing.T) {
	eng, sched := newTestEngine(t)

	eng.SelectHistoryEntry("max = 1e308")
	eng.InputOperator("", OpMul)
	digits(eng, "10")
	out := eng.Evaluate("")

	require.Len(t, out.Evaluations, 1)
	assert.ErrorIs(t, out.Evaluations[0].Err, ErrNonFinite)
	assert.True(t, eng.State().Current.IsError())
	assert.Equal(t, 1, sched.pending())
}

func TestOperandPastFloatRangeEntersErrorState(t *testing.T) {
	huge := "1" + strings.Repeat("0", 400)

	for _, op := range []Operator{OpAdd, OpDiv} {
		t.Run(op.Name(), func(t *testing.T) {
			eng, sched := newTestEngine(t)

			digits(eng, "5")
			eng.InputOperator("", op)
			digits(eng, huge)
			assert.Equal(t, "Infinity", eng.View().Display)

			out := eng.Evaluate("")

			require.Len(t, out.Evaluations, 1)
			assert.ErrorIs(t, out.Evaluations[0].Err, ErrNonFinite)
			assert.NotErrorIs(t, out.Evaluations[0].Err, ErrDivisionByZero)
			assert.True(t, eng.State().Current.IsError())
			assert.Empty(t, eng.History())
			assert.Equal(t, 1, sched.pending())
		})
	}
}

func TestHistoryKeepsTenMostRecent(t *testing.T) {
	eng, _ := newTestEngine(t)

	for i := 1; i <= 11; i++ {
		eng.ClearAll("")
		digits(eng, fmt.Sprint(i))
		eng.InputOperator("", OpAdd)
		digits(eng, "1")
		eng.Evaluate("")
	}

	entries := eng.History()
	require.Len(t, entries, 10)
	for i, e := range entries {
		n := 11 - i
		assert.Equal(t, fmt.Sprintf("%d + 1 = %d", n, n+1), e.Text)
	}
}

func TestClearEntryKeepsPendingOperation(t *testing.T) {
	eng, _ := newTestEngine(t)

	digits(eng, "5")
	eng.InputOperator("", OpAdd)
	digits(eng, "3")
	eng.ClearEntry("")

	s := eng.State()
	assert.Equal(t, "0", s.Current.Text())
	assert.Equal(t, "5", s.Previous.Text())
	assert.Equal(t, OpAdd, s.Pending)
}

func TestClearAllKeepsHistory(t *testing.T) {
	eng, _ := newTestEngine(t)

	digits(eng, "2")
	eng.InputOperator("", OpMul)
	digits(eng, "4")
	eng.Evaluate("")
	digits(eng, "9")
	eng.InputOperator("", OpSub)
	out := eng.ClearAll("C")

	assert.Equal(t, initialState(), eng.State())
	assert.Empty(t, out.View.Label)
	assert.Empty(t, out.View.ActiveOperator)
	assert.Len(t, eng.History(), 1)
}

func TestToggleSign(t *testing.T) {
	eng, _ := newTestEngine(t)

	eng.ToggleSign("")
	assert.Equal(t, "0", eng.State().Current.Text())

	digits(eng, "12")
	eng.ToggleSign("")
	assert.Equal(t, "-12", eng.State().Current.Text())
	assert.Equal(t, "-12", eng.View().Display)

	eng.ToggleSign("")
	assert.Equal(t, "12", eng.State().Current.Text())
}

func TestBackspace(t *testing.T) {
	tests := []struct {
		name  string
		setup func(e *Engine)
		want  string
	}{
		{name: "drops last digit", setup: func(e *Engine) { digits(e, "123") }, want: "12"},
		{name: "single digit", setup: func(e *Engine) { digits(e, "7") }, want: "0"},
		{name: "zero stays", setup: func(e *Engine) {}, want: "0"},
		{name: "bare minus", setup: func(e *Engine) { digits(e, "5"); e.ToggleSign("") }, want: "0"},
		{name: "decimal point", setup: func(e *Engine) { digits(e, "4"); e.InputDecimalPoint("") }, want: "4"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			eng, _ := newTestEngine(t)
			tc.setup(eng)
			eng.Backspace("")
			assert.Equal(t, tc.want, eng.State().Current.Text())
		})
	}
}

func TestSelectHistoryEntry(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, applied := eng.SelectHistoryEntry("2 + 2 = 4")
	assert.True(t, applied)
	s := eng.State()
	assert.Equal(t, "4", s.Current.Text())
	assert.True(t, s.AwaitingFresh)

	before := eng.State()
	out, applied := eng.SelectHistoryEntry("garbage")
	assert.False(t, applied)
	assert.Equal(t, before, eng.State())
	assert.Empty(t, out.Cues)
}

func TestSelectHistoryEntryUsesRecordedResult(t *testing.T) {
	eng, _ := newTestEngine(t)

	digits(eng, "1234")
	eng.InputOperator("", OpMul)
	digits(eng, "1000")
	eng.Evaluate("")
	eng.ClearAll("")

	record := eng.History()[0].Text
	assert.Equal(t, "1,234 × 1,000 = 1,234,000", record)

	eng.SelectHistoryEntry(record)
	assert.Equal(t, "1234000", eng.State().Current.Text())

	eng.SelectHistoryEntry("1 + 1,233 = 1,234")
	assert.Equal(t, "1234", eng.State().Current.Text())

	eng.SelectHistoryEntry("1 ÷ 1 = 1.234568e+10")
	assert.Equal(t, "12345680000", eng.State().Current.Text())
}

func TestHistoryPanel(t *testing.T) {
	eng, _ := newTestEngine(t)

	assert.False(t, eng.ToggleHistoryPanel().View.HistoryOpen, "empty history never opens")

	digits(eng, "1")
	eng.InputOperator("", OpAdd)
	digits(eng, "1")
	eng.Evaluate("")

	assert.True(t, eng.ToggleHistoryPanel().View.HistoryOpen)
	selected, _ := eng.SelectHistoryEntry("1 + 1 = 2")
	assert.False(t, selected.View.HistoryOpen)
	assert.True(t, eng.ToggleHistoryPanel().View.HistoryOpen)
	assert.False(t, eng.HideHistoryPanel().View.HistoryOpen)
}

func TestCues(t *testing.T) {
	eng, _ := newTestEngine(t)

	out := eng.InputDigit("7", '7')
	assert.Equal(t, []Cue{
		{Kind: CueTone, Frequency: 600, Waveform: "sine", Duration: 80 * time.Millisecond},
		{Kind: CuePulse, Control: "7", Duration: 150 * time.Millisecond},
	}, out.Cues)

	out = eng.ToggleSound()
	assert.False(t, out.View.SoundOn)
	assert.Empty(t, out.Cues, "muting is silent")

	out = eng.InputOperator("+", OpAdd)
	assert.Equal(t, []Cue{{Kind: CuePulse, Control: "+", Duration: 150 * time.Millisecond}}, out.Cues)

	out = eng.ToggleSound()
	assert.True(t, out.View.SoundOn)
	assert.Equal(t, []Cue{toneSoundOn}, out.Cues)
}

func TestChainedEvaluationEmitsBothTones(t *testing.T) {
	eng, _ := newTestEngine(t)

	digits(eng, "1")
	eng.InputOperator("", OpAdd)
	digits(eng, "1")
	out := eng.InputOperator("", OpAdd)

	assert.Equal(t, []Cue{toneOperator, toneEvaluate}, out.Cues)
}

func TestSinksReceiveEffects(t *testing.T) {
	sched := &fakeScheduler{}
	views := &viewLog{}
	eng := NewEngine(Config{Scheduler: sched, Display: views, Cues: panickingSink{}})
	t.Cleanup(eng.Close)

	assert.NotPanics(t, func() { eng.InputDigit("8", '8') })
	require.Len(t, views.views, 1)
	assert.Equal(t, "8", views.views[0].Display)

	eng.InputOperator("", OpDiv)
	eng.InputDigit("", '0')
	eng.Evaluate("")
	sched.fire()

	last := views.views[len(views.views)-1]
	assert.Equal(t, "0", last.Display)
	assert.False(t, last.Error)
}

func TestCloseCancelsRecovery(t *testing.T) {
	sched := &fakeScheduler{}
	eng := NewEngine(Config{Scheduler: sched})

	digits(eng, "1")
	eng.InputOperator("", OpDiv)
	digits(eng, "0")
	eng.Evaluate("")
	eng.Close()

	assert.Equal(t, 0, sched.pending())
}

func TestRecoveryWithWallClock(t *testing.T) {
	eng := NewEngine(Config{RecoveryDelay: 10 * time.Millisecond})
	t.Cleanup(eng.Close)

	digits(eng, "1")
	eng.InputOperator("", OpDiv)
	digits(eng, "0")
	eng.Evaluate("")
	require.True(t, eng.State().Current.IsError())

	assert.Eventually(t, func() bool {
		return eng.State().Current.Text() == "0"
	}, time.Second, 5*time.Millisecond)
}

func TestFontSizeFollowsDisplayLength(t *testing.T) {
	tests := []struct {
		keys string
		want int
	}{
		{keys: "123456", want: 48},       // "123,456"
		{keys: "12345678", want: 40},     // "12,345,678"
		{keys: "123456789", want: 32},    // "123,456,789"
		{keys: "123456789012", want: 32}, // "1.234568e+11"
	}

	for _, tc := range tests {
		t.Run(tc.keys, func(t *testing.T) {
			eng, _ := newTestEngine(t)
			digits(eng, tc.keys)
			assert.Equal(t, tc.want, eng.View().FontSize)
		})
	}
}
