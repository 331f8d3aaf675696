package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"go-chi-calculator/internal/calculator"
	"go-chi-calculator/internal/observability"
)

func run(ctx context.Context, in io.Reader, out io.Writer, opts options) error {
	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	if err := observability.InitLogger(level); err != nil {
		return err
	}
	defer observability.SyncLogger()

	locale, err := calculator.ParseLocale(opts.locale)
	if err != nil {
		return err
	}

	term := &terminal{w: out}
	eng := calculator.NewEngine(calculator.Config{
		HistorySize:   opts.historySize,
		RecoveryDelay: opts.errorRecovery,
		Formatter:     calculator.NewFormatter(locale),
		Muted:         !opts.sound,
		Display:       term,
		Cues:          term,
		Logger:        observability.Logger,
	})
	defer eng.Close()

	term.Render(eng.View())

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx != nil && ctx.Err() != nil {
			return nil
		}
		for _, tok := range tokenize(scanner.Text()) {
			if quit := apply(eng, term, tok); quit {
				return nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

// token is either a key for the engine or a ':' directive.
type token struct {
	key       calculator.Key
	directive string
	arg       string
}

var keyAliases = map[string]string{
	"enter":     calculator.KeyEnter,
	"esc":       calculator.KeyEscape,
	"escape":    calculator.KeyEscape,
	"bs":        calculator.KeyBackspace,
	"backspace": calculator.KeyBackspace,
	"neg":       calculator.KeySign,
}

// tokenize splits a line into keys and directives. Words that are not a
// known key name are split into single-character keys, so "12+3=" works.
func tokenize(line string) []token {
	var out []token
	fields := strings.Fields(line)

	for i := 0; i < len(fields); i++ {
		f := fields[i]

		if strings.HasPrefix(f, ":") {
			t := token{directive: strings.ToLower(f[1:])}
			if t.directive == "select" && i+1 < len(fields) {
				i++
				t.arg = fields[i]
			}
			out = append(out, t)
			continue
		}

		key := calculator.ParseKey(f)
		if name, ok := keyAliases[strings.ToLower(key.Name)]; ok {
			key.Name = name
			out = append(out, token{key: key})
			continue
		}
		if key.Shift || f == calculator.KeySign {
			out = append(out, token{key: key})
			continue
		}

		for _, r := range f {
			out = append(out, token{key: calculator.Key{Name: string(r)}})
		}
	}
	return out
}

// apply runs one token and reports whether the session should end.
func apply(eng *calculator.Engine, term *terminal, t token) bool {
	switch t.directive {
	case "":
		if _, ok := eng.Press(t.key); !ok {
			term.Printf("unknown key %q\n", t.key.Name)
		}
	case "history":
		eng.ToggleHistoryPanel()
	case "sound":
		eng.ToggleSound()
	case "select":
		n, err := strconv.Atoi(t.arg)
		entries := eng.History()
		if err != nil || n < 1 || n > len(entries) {
			term.Printf("no history entry %q\n", t.arg)
			return false
		}
		eng.SelectHistoryEntry(entries[n-1].Text)
	case "quit", "q", "exit":
		return true
	default:
		term.Printf("unknown command :%s\n", t.directive)
	}
	return false
}

// terminal renders views as text lines and rings the bell for tone cues.
// The engine stops sending tones while sound is off.
type terminal struct {
	mu sync.Mutex
	w  io.Writer
}

func (t *terminal) Render(v calculator.View) {
	t.mu.Lock()
	defer t.mu.Unlock()

	line := v.Display
	if v.Label != "" {
		line = v.Label + " " + line
	}
	fmt.Fprintln(t.w, line)

	if v.HistoryOpen {
		for i, h := range v.History {
			fmt.Fprintf(t.w, "  %2d. %s\n", i+1, h)
		}
	}
}

func (t *terminal) Cue(c calculator.Cue) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if c.Kind == calculator.CueTone {
		io.WriteString(t.w, "\a")
	}
	observability.Logger.Debug("cue",
		zap.String("kind", string(c.Kind)),
		zap.String("control", c.Control),
		zap.Int("frequency_hz", c.Frequency),
		zap.Duration("duration", c.Duration),
	)
}

func (t *terminal) Printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, format, args...)
}
