package calculator

import "strings"

// Key names understood by Press besides the single characters 0-9 . + - * /.
const (
	KeyEnter     = "Enter"
	KeyEquals    = "="
	KeyEscape    = "Escape"
	KeyBackspace = "Backspace"
	KeySign      = "±"
)

// Key is a keystroke or on-screen button press.
type Key struct {
	Name  string
	Shift bool
}

// Press applies a key to the engine and reports whether the key is bound.
// The key name doubles as the control id for the press pulse.
//
//	0-9           digit
//	.             decimal point
//	+ - * /       operator
//	Enter, =      evaluate
//	Escape, c     clear entry
//	⇧Escape, C    clear all
//	Backspace     delete last character
//	±             toggle sign
func (e *Engine) Press(k Key) (Outcome, bool) {
	name := k.Name
	if len(name) == 1 && name[0] >= '0' && name[0] <= '9' {
		return e.InputDigit(name, rune(name[0])), true
	}
	if op, ok := ParseOperator(name); ok {
		return e.InputOperator(name, op), true
	}

	switch name {
	case ".":
		return e.InputDecimalPoint(name), true
	case KeyEnter, KeyEquals:
		return e.Evaluate(KeyEnter), true
	case KeyEscape, "c", "C":
		if k.Shift || name == "C" {
			return e.ClearAll(name), true
		}
		return e.ClearEntry(name), true
	case KeyBackspace:
		return e.Backspace(name), true
	case KeySign:
		return e.ToggleSign(name), true
	}
	return e.Snapshot(), false
}

const shiftPrefix = "Shift+"

// ParseKey reads a key token such as "7", "Enter" or "Shift+Escape".
func ParseKey(token string) Key {
	if name, ok := strings.CutPrefix(token, shiftPrefix); ok && name != "" {
		return Key{Name: name, Shift: true}
	}
	return Key{Name: token}
}
