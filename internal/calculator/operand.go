package calculator

import (
	"math"
	"strconv"
)

const errorText = "Error"

// Operand is the text of a number under entry, or the error sentinel shown
// after a failed evaluation. The zero value is the empty operand.
type Operand struct {
	text   string
	failed bool
}

var initialOperand = Operand{text: "0"}

// NumberOperand returns an operand holding a decimal numeral.
func NumberOperand(text string) Operand {
	return Operand{text: text}
}

// ErrorOperand returns the error sentinel.
func ErrorOperand() Operand {
	return Operand{failed: true}
}

func (o Operand) IsError() bool { return o.failed }

// IsEmpty reports whether no operand is held.
func (o Operand) IsEmpty() bool { return !o.failed && o.text == "" }

// Text returns the numeral text, or "Error" for the sentinel.
func (o Operand) Text() string {
	if o.failed {
		return errorText
	}
	return o.text
}

func (o Operand) String() string { return o.Text() }

// Float parses the numeral. It reports false for the sentinel, the empty
// operand and anything that does not parse to a finite number.
func (o Operand) Float() (float64, bool) {
	if o.failed || o.text == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(o.text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// value parses the numeral without the finiteness check, so an operand typed
// past the float64 range yields ±Inf. Errors and empty operands yield NaN.
func (o Operand) value() float64 {
	if o.failed || !isNumeral(o.text) {
		return math.NaN()
	}
	v, _ := strconv.ParseFloat(o.text, 64)
	return v
}

// isNumeral reports whether s is an optional '-', digits and at most one '.'.
func isNumeral(s string) bool {
	if len(s) > 0 && s[0] == '-' {
		s = s[1:]
	}
	digits, dots := 0, 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}

// numeral renders a computed value as plain decimal text.
func numeral(v float64) string {
	if v == 0 {
		// collapse -0
		v = 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
