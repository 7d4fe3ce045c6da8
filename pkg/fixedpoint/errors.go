package fixedpoint

import "errors"

// Arithmetic failures. Every operation that can fail returns one of these
// (possibly wrapped); callers treat any failure as fatal for the enclosing
// operation rather than retrying or clamping.
var (
	ErrOverflow       = errors.New("fixedpoint: overflow")
	ErrUnderflow      = errors.New("fixedpoint: underflow")
	ErrDivisionByZero = errors.New("fixedpoint: division by zero")
	ErrLnDomain       = errors.New("fixedpoint: ln undefined for zero or negative input")
	ErrExpOverflow    = errors.New("fixedpoint: exp input out of range")
)
