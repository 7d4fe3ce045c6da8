// Package yieldspace prices trades against the YieldSpace bonding curve
//
//	k = (c / µ) * (µ * ze)^t + y^t
//
// where ze is the effective share reserve, y the bond reserve, c the current
// vault share price, µ the initial vault share price, and t the curve's time
// parameter in exponent form. Every solver has an explicit rounding
// direction so that the pool never under-collects or over-pays by a wei.
package yieldspace

import (
	"errors"
	"fmt"

	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
)

// ErrInvalidCurveState is returned when a solve would require a negative
// intermediate quantity. The trade is infeasible at the current reserves and
// must not proceed by clamping.
var ErrInvalidCurveState = errors.New("invalid curve state")

// Curve carries the reserve and pricing parameters of one bonding curve.
// TimeParameter is the invariant exponent: 1e18 means a constant-sum curve,
// values approaching zero mean a constant-product-like curve.
type Curve struct {
	ShareReserves     fixedpoint.FixedPoint
	BondReserves      fixedpoint.FixedPoint
	SharePrice        fixedpoint.FixedPoint
	InitialSharePrice fixedpoint.FixedPoint
	TimeParameter     fixedpoint.FixedPoint
}

// SpotPrice returns the price of a bond in shares, ((µ * ze) / y)^t.
func (cv Curve) SpotPrice() (fixedpoint.FixedPoint, error) {
	muZe, err := cv.InitialSharePrice.MulDown(cv.ShareReserves)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	ratio, err := muZe.DivDown(cv.BondReserves)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	return ratio.Pow(cv.TimeParameter)
}

// KUp computes the invariant, overestimating the result.
func (cv Curve) KUp() (fixedpoint.FixedPoint, error) {
	muZe, err := cv.InitialSharePrice.MulUp(cv.ShareReserves)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	zeTerm, err := muZe.Pow(cv.TimeParameter)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	zeTerm, err = cv.SharePrice.MulDivUp(zeTerm, cv.InitialSharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	yTerm, err := cv.BondReserves.Pow(cv.TimeParameter)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	return zeTerm.Add(yTerm)
}

// KDown computes the invariant, underestimating the result.
func (cv Curve) KDown() (fixedpoint.FixedPoint, error) {
	muZe, err := cv.InitialSharePrice.MulDown(cv.ShareReserves)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	zeTerm, err := muZe.Pow(cv.TimeParameter)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	zeTerm, err = cv.SharePrice.MulDivDown(zeTerm, cv.InitialSharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	yTerm, err := cv.BondReserves.Pow(cv.TimeParameter)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	return zeTerm.Add(yTerm)
}

// invertUp raises base to 1/t, rounding so the result is overestimated.
func (cv Curve) invertUp(base fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	var exp fixedpoint.FixedPoint
	var err error
	if base.Gte(fixedpoint.One()) {
		exp, err = fixedpoint.One().DivUp(cv.TimeParameter)
	} else {
		exp, err = fixedpoint.One().DivDown(cv.TimeParameter)
	}
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	return base.Pow(exp)
}

// invertDown raises base to 1/t, rounding so the result is underestimated.
func (cv Curve) invertDown(base fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	var exp fixedpoint.FixedPoint
	var err error
	if base.Gte(fixedpoint.One()) {
		exp, err = fixedpoint.One().DivDown(cv.TimeParameter)
	} else {
		exp, err = fixedpoint.One().DivUp(cv.TimeParameter)
	}
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	return base.Pow(exp)
}

// BondsOutGivenSharesIn returns the bonds the pool pays out for dz shares in,
// underestimated so the trader can never extract a rounding profit.
func (cv Curve) BondsOutGivenSharesIn(dz fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	k, err := cv.KUp()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	newZe, err := cv.ShareReserves.Add(dz)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	muZe, err := cv.InitialSharePrice.MulDown(newZe)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	zeTerm, err := muZe.Pow(cv.TimeParameter)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	zeTerm, err = cv.SharePrice.MulDivDown(zeTerm, cv.InitialSharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	if k.Lt(zeTerm) {
		return fixedpoint.FixedPoint{}, fmt.Errorf("%w: share term exceeds invariant", ErrInvalidCurveState)
	}
	rhs, err := k.Sub(zeTerm)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	newY, err := cv.invertUp(rhs)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	if cv.BondReserves.Lt(newY) {
		return fixedpoint.FixedPoint{}, fmt.Errorf("%w: trade would drain bond reserves", ErrInvalidCurveState)
	}
	return cv.BondReserves.Sub(newY)
}

// SharesInGivenBondsOutUp returns the shares a trader must pay for dy bonds
// out, overestimated in the pool's favor.
func (cv Curve) SharesInGivenBondsOutUp(dy fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	k, err := cv.KUp()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	if cv.BondReserves.Lt(dy) {
		return fixedpoint.FixedPoint{}, fmt.Errorf("%w: bond reserves below trade size", ErrInvalidCurveState)
	}
	newY, err := cv.BondReserves.Sub(dy)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	yTerm, err := newY.Pow(cv.TimeParameter)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	if k.Lt(yTerm) {
		return fixedpoint.FixedPoint{}, fmt.Errorf("%w: bond term exceeds invariant", ErrInvalidCurveState)
	}
	rhs, err := k.Sub(yTerm)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	rhs, err = rhs.MulDivUp(cv.InitialSharePrice, cv.SharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	newZe, err := cv.invertUp(rhs)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	newZe, err = newZe.DivUp(cv.InitialSharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	if newZe.Lt(cv.ShareReserves) {
		return fixedpoint.FixedPoint{}, fmt.Errorf("%w: solved share reserve below current", ErrInvalidCurveState)
	}
	return newZe.Sub(cv.ShareReserves)
}

// SharesInGivenBondsOutDown is the underestimating variant, used when the
// amount is credited to the pool rather than charged to a trader.
func (cv Curve) SharesInGivenBondsOutDown(dy fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	k, err := cv.KDown()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	if cv.BondReserves.Lt(dy) {
		return fixedpoint.FixedPoint{}, fmt.Errorf("%w: bond reserves below trade size", ErrInvalidCurveState)
	}
	newY, err := cv.BondReserves.Sub(dy)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	yTerm, err := newY.Pow(cv.TimeParameter)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	if k.Lt(yTerm) {
		return fixedpoint.FixedPoint{}, fmt.Errorf("%w: bond term exceeds invariant", ErrInvalidCurveState)
	}
	rhs, err := k.Sub(yTerm)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	rhs, err = rhs.MulDivDown(cv.InitialSharePrice, cv.SharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	newZe, err := cv.invertDown(rhs)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	newZe, err = newZe.DivDown(cv.InitialSharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	if newZe.Lt(cv.ShareReserves) {
		return fixedpoint.FixedPoint{}, fmt.Errorf("%w: solved share reserve below current", ErrInvalidCurveState)
	}
	return newZe.Sub(cv.ShareReserves)
}

// BondsInGivenSharesOut returns the bonds a trader must pay for dz shares
// out, overestimated in the pool's favor.
func (cv Curve) BondsInGivenSharesOut(dz fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	k, err := cv.KUp()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	if cv.ShareReserves.Lt(dz) {
		return fixedpoint.FixedPoint{}, fmt.Errorf("%w: share reserves below trade size", ErrInvalidCurveState)
	}
	newZe, err := cv.ShareReserves.Sub(dz)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	muZe, err := cv.InitialSharePrice.MulDown(newZe)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	zeTerm, err := muZe.Pow(cv.TimeParameter)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	zeTerm, err = cv.SharePrice.MulDivDown(zeTerm, cv.InitialSharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	if k.Lt(zeTerm) {
		return fixedpoint.FixedPoint{}, fmt.Errorf("%w: share term exceeds invariant", ErrInvalidCurveState)
	}
	rhs, err := k.Sub(zeTerm)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	newY, err := cv.invertUp(rhs)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	if newY.Lt(cv.BondReserves) {
		return fixedpoint.FixedPoint{}, fmt.Errorf("%w: solved bond reserve below current", ErrInvalidCurveState)
	}
	return newY.Sub(cv.BondReserves)
}

// SharesOutGivenBondsIn returns the shares the pool pays out for dy bonds in,
// underestimated in the pool's favor.
func (cv Curve) SharesOutGivenBondsIn(dy fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	k, err := cv.KUp()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	newY, err := cv.BondReserves.Add(dy)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	yTerm, err := newY.Pow(cv.TimeParameter)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	if k.Lt(yTerm) {
		return fixedpoint.FixedPoint{}, fmt.Errorf("%w: bond term exceeds invariant", ErrInvalidCurveState)
	}
	rhs, err := k.Sub(yTerm)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	rhs, err = rhs.MulDivUp(cv.InitialSharePrice, cv.SharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	newZe, err := cv.invertUp(rhs)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	newZe, err = newZe.DivUp(cv.InitialSharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	// Dust can push the solved reserve a wei past the current reserve; the
	// payout is clamped to zero rather than failing.
	if cv.ShareReserves.Gt(newZe) {
		return cv.ShareReserves.Sub(newZe)
	}
	return fixedpoint.Zero(), nil
}
