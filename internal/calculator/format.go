package calculator

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Display bounds outside which numbers switch to scientific notation.
const (
	scientificAbove = 1e10
	scientificBelow = 1e-6
)

// Formatter renders operands for the display. Only whole numbers are
// grouped by locale; everything else is locale independent.
type Formatter struct {
	locale  language.Tag
	printer *message.Printer
}

func NewFormatter(locale language.Tag) *Formatter {
	return &Formatter{
		locale:  locale,
		printer: message.NewPrinter(locale),
	}
}

// ParseLocale parses a BCP 47 tag such as "en" or "de-CH".
func ParseLocale(s string) (language.Tag, error) {
	tag, err := language.Parse(s)
	if err != nil {
		return language.Und, fmt.Errorf("parse locale %q: %w", s, err)
	}
	return tag, nil
}

func (f *Formatter) Locale() language.Tag { return f.locale }

// Format renders an operand. Text that does not parse renders as "0".
func (f *Formatter) Format(o Operand) string {
	if o.IsError() {
		return errorText
	}
	v, ok := o.Float()
	if !ok {
		switch raw := o.value(); {
		case math.IsInf(raw, 1):
			return "Infinity"
		case math.IsInf(raw, -1):
			return "-Infinity"
		}
		return "0"
	}
	return f.FormatFloat(v)
}

func (f *Formatter) FormatFloat(v float64) string {
	abs := math.Abs(v)
	if abs >= scientificAbove || (abs < scientificBelow && v != 0) {
		return exponential(v)
	}
	if v == math.Trunc(v) {
		return f.printer.Sprintf("%d", int64(v))
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// exponential renders v with six fractional digits and an exponent without
// zero padding: 1.234568e+10, 1.000000e-7.
func exponential(v float64) string {
	s := strconv.FormatFloat(v, 'e', 6, 64)
	i := strings.IndexByte(s, 'e')
	if i < 0 || i+2 > len(s) {
		return s
	}
	exp := strings.TrimLeft(s[i+2:], "0")
	if exp == "" {
		exp = "0"
	}
	return s[:i+2] + exp
}

// parseDisplayed turns a formatted number back into a numeral. Grouping
// separators are dropped and scientific text is expanded.
func parseDisplayed(s string) (string, bool) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ',', ' ', '\u00a0', '\u202f', '\'', '\u2019':
			return -1
		case '−':
			return '-'
		}
		return r
	}, strings.TrimSpace(s))
	if isNumeral(s) {
		return s, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return "", false
	}
	return numeral(v), true
}
