// Package fixedpoint implements deterministic 18-decimal fixed-point
// arithmetic over 256-bit unsigned integers.
//
// Every quantity the pricing engine touches (reserves, prices, rates, trade
// amounts) is a FixedPoint scaled by 1e18. Rounding direction is part of each
// operation's contract: callers pick the Down or Up variant so that rounding
// error always accrues in the pool's favor. Raw integer arithmetic on these
// quantities is a bug.
package fixedpoint

import (
	"fmt"

	"github.com/holiman/uint256"
)

// FixedPoint is an unsigned value scaled by 10^18.
type FixedPoint struct {
	u uint256.Int
}

// one is the multiplicative identity, 10^18.
var one = uint256.NewInt(1_000_000_000_000_000_000)

// Zero returns 0.
func Zero() FixedPoint { return FixedPoint{} }

// One returns the multiplicative identity (1e18).
func One() FixedPoint { return FixedPoint{u: *one} }

// FromUint64 interprets v as a raw scaled value (v wei, not v units).
func FromUint64(v uint64) FixedPoint {
	return FixedPoint{u: *uint256.NewInt(v)}
}

// FromRaw wraps an existing 256-bit value without rescaling.
func FromRaw(v *uint256.Int) FixedPoint {
	var f FixedPoint
	f.u.Set(v)
	return f
}

// FromDecimal parses a base-10 string of the raw scaled value.
func FromDecimal(s string) (FixedPoint, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return FixedPoint{}, fmt.Errorf("fixedpoint: parse %q: %w", s, err)
	}
	return FixedPoint{u: *v}, nil
}

// MustFromDecimal is FromDecimal for constants; panics on malformed input.
func MustFromDecimal(s string) FixedPoint {
	f, err := FromDecimal(s)
	if err != nil {
		panic(err)
	}
	return f
}

// Scaled returns n whole units, i.e. n * 1e18.
func Scaled(n uint64) FixedPoint {
	var f FixedPoint
	f.u.Mul(uint256.NewInt(n), one)
	return f
}

// Raw returns a copy of the underlying 256-bit value.
func (f FixedPoint) Raw() *uint256.Int {
	return new(uint256.Int).Set(&f.u)
}

// Uint64 truncates the raw value to 64 bits; only valid when IsUint64 holds.
func (f FixedPoint) Uint64() uint64   { return f.u.Uint64() }
func (f FixedPoint) IsUint64() bool   { return f.u.IsUint64() }
func (f FixedPoint) IsZero() bool     { return f.u.IsZero() }
func (f FixedPoint) String() string   { return f.u.Dec() }
func (f FixedPoint) Bytes32() [32]byte { return f.u.Bytes32() }

// Cmp returns -1, 0, or +1.
func (f FixedPoint) Cmp(other FixedPoint) int { return f.u.Cmp(&other.u) }
func (f FixedPoint) Eq(other FixedPoint) bool { return f.u.Eq(&other.u) }
func (f FixedPoint) Lt(other FixedPoint) bool { return f.u.Lt(&other.u) }
func (f FixedPoint) Gt(other FixedPoint) bool { return f.u.Gt(&other.u) }
func (f FixedPoint) Lte(other FixedPoint) bool { return !f.u.Gt(&other.u) }
func (f FixedPoint) Gte(other FixedPoint) bool { return !f.u.Lt(&other.u) }

// Min returns the smaller of f and other.
func Min(a, b FixedPoint) FixedPoint {
	if a.Lt(b) {
		return a
	}
	return b
}

// Max returns the larger of f and other.
func Max(a, b FixedPoint) FixedPoint {
	if a.Gt(b) {
		return a
	}
	return b
}

// Add returns f + other, failing on 256-bit overflow.
func (f FixedPoint) Add(other FixedPoint) (FixedPoint, error) {
	var res FixedPoint
	if _, carry := res.u.AddOverflow(&f.u, &other.u); carry {
		return FixedPoint{}, ErrOverflow
	}
	return res, nil
}

// Sub returns f - other, failing when other > f. Reserve quantities never
// wrap: a subtraction that would go negative aborts the whole operation.
func (f FixedPoint) Sub(other FixedPoint) (FixedPoint, error) {
	var res FixedPoint
	if _, borrow := res.u.SubOverflow(&f.u, &other.u); borrow {
		return FixedPoint{}, ErrUnderflow
	}
	return res, nil
}

// MulDivDown returns floor(f * other / d). The 256-bit product must not
// overflow; a zero divisor fails.
func (f FixedPoint) MulDivDown(other, d FixedPoint) (FixedPoint, error) {
	if d.u.IsZero() {
		return FixedPoint{}, ErrDivisionByZero
	}
	var p uint256.Int
	if _, overflow := p.MulOverflow(&f.u, &other.u); overflow {
		return FixedPoint{}, ErrOverflow
	}
	var res FixedPoint
	res.u.Div(&p, &d.u)
	return res, nil
}

// MulDivUp returns ceil(f * other / d), except that a zero product yields
// exactly zero.
func (f FixedPoint) MulDivUp(other, d FixedPoint) (FixedPoint, error) {
	if d.u.IsZero() {
		return FixedPoint{}, ErrDivisionByZero
	}
	var p uint256.Int
	if _, overflow := p.MulOverflow(&f.u, &other.u); overflow {
		return FixedPoint{}, ErrOverflow
	}
	var res FixedPoint
	var rem uint256.Int
	res.u.Div(&p, &d.u)
	rem.Mod(&p, &d.u)
	if !rem.IsZero() {
		res.u.Add(&res.u, uint256.NewInt(1))
	}
	return res, nil
}

// MulDown returns floor(f * other / 1e18).
func (f FixedPoint) MulDown(other FixedPoint) (FixedPoint, error) {
	return f.MulDivDown(other, One())
}

// MulUp returns ceil(f * other / 1e18).
func (f FixedPoint) MulUp(other FixedPoint) (FixedPoint, error) {
	return f.MulDivUp(other, One())
}

// DivDown returns floor(f * 1e18 / other).
func (f FixedPoint) DivDown(other FixedPoint) (FixedPoint, error) {
	return f.MulDivDown(One(), other)
}

// DivUp returns ceil(f * 1e18 / other).
func (f FixedPoint) DivUp(other FixedPoint) (FixedPoint, error) {
	return f.MulDivUp(One(), other)
}
