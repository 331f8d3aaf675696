package calculator

import "time"

// CueKind distinguishes audible and visual feedback.
type CueKind string

const (
	CueTone  CueKind = "tone"
	CuePulse CueKind = "pulse"
)

const (
	pulseDuration = 150 * time.Millisecond
	waveformSine  = "sine"
)

// Cue is a fire-and-forget feedback event. Tone cues carry a frequency and
// waveform, pulse cues name the control that was pressed.
type Cue struct {
	Kind      CueKind
	Control   string
	Frequency int
	Waveform  string
	Duration  time.Duration
}

func tone(hz int, ms int) Cue {
	return Cue{
		Kind:      CueTone,
		Frequency: hz,
		Waveform:  waveformSine,
		Duration:  time.Duration(ms) * time.Millisecond,
	}
}

var (
	toneDigit      = tone(600, 80)
	toneDecimal    = tone(700, 80)
	toneOperator   = tone(800, 100)
	toneEvaluate   = tone(900, 150)
	toneClearAll   = tone(400, 120)
	toneClearEntry = tone(500, 100)
	toneToggleSign = tone(650, 100)
	toneSoundOn    = tone(900, 150)
	toneSoundOff   = tone(400, 150)
)

// CueSink plays feedback. Implementations must not block; a panicking
// sink is recovered and ignored.
type CueSink interface {
	Cue(Cue)
}

// Display receives a fresh View after every state change, including the
// one made by the error recovery timer.
type Display interface {
	Render(View)
}

// CueRecorder collects cues in memory.
type CueRecorder struct {
	Cues []Cue
}

func (r *CueRecorder) Cue(c Cue) { r.Cues = append(r.Cues, c) }

// View is what a display shows for the current state.
type View struct {
	Display        string
	Label          string
	Error          bool
	ActiveOperator string
	FontSize       int
	History        []string
	HistoryOpen    bool
	SoundOn        bool
}

// Display font sizes in px, by formatted length.
const (
	fontLarge  = 48
	fontMedium = 40
	fontSmall  = 32
)

func fontSize(n int) int {
	switch {
	case n > 10:
		return fontSmall
	case n > 8:
		return fontMedium
	}
	return fontLarge
}
