package calculator

import (
	"errors"
	"math"
)

var (
	// ErrDivisionByZero is recorded when the divisor of an evaluation is zero.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrNonFinite is recorded when an evaluation overflows to ±Inf or NaN.
	ErrNonFinite = errors.New("result is not a finite number")
)

// Operator is a pending binary operation.
type Operator int

const (
	OpNone Operator = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
)

// ParseOperator maps the keypad characters + - * / to an Operator.
func ParseOperator(s string) (Operator, bool) {
	switch s {
	case "+":
		return OpAdd, true
	case "-":
		return OpSub, true
	case "*":
		return OpMul, true
	case "/":
		return OpDiv, true
	}
	return OpNone, false
}

// Symbol is the glyph shown on the display.
func (o Operator) Symbol() string {
	switch o {
	case OpAdd:
		return "+"
	case OpSub:
		return "−"
	case OpMul:
		return "×"
	case OpDiv:
		return "÷"
	}
	return ""
}

// Name is used for metric and span attributes.
func (o Operator) Name() string {
	switch o {
	case OpAdd:
		return "add"
	case OpSub:
		return "subtract"
	case OpMul:
		return "multiply"
	case OpDiv:
		return "divide"
	}
	return "none"
}

func (o Operator) String() string { return o.Name() }

// Apply computes a <op> b.
func (o Operator) Apply(a, b float64) (float64, error) {
	var result float64
	switch o {
	case OpAdd:
		result = a + b
	case OpSub:
		result = a - b
	case OpMul:
		result = a * b
	case OpDiv:
		if b == 0 {
			return 0, ErrDivisionByZero
		}
		result = a / b
	default:
		return 0, errors.New("no operator pending")
	}
	if math.IsInf(result, 0) || math.IsNaN(result) {
		return 0, ErrNonFinite
	}
	return result, nil
}
