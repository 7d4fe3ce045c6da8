package yieldspace

import (
	"fmt"

	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
)

// The max-trade solvers bound a trade by the curve's hard limits. Buys are
// capped where the spot price reaches one (µ * ze = y); sells are capped
// where the share reserve reaches its configured floor. All results are
// underestimated so a bounded trade is always feasible.

// MaxBuySharesIn returns the share payment that buys the maximum amount of
// bonds from the pool.
func (cv Curve) MaxBuySharesIn() (fixedpoint.FixedPoint, error) {
	k, err := cv.KDown()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	// At the price cap the invariant collapses to
	// k = ((c / µ) + 1) * (µ * ze')^t.
	ratio, err := cv.SharePrice.DivUp(cv.InitialSharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	denom, err := ratio.Add(fixedpoint.One())
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	optimal, err := k.DivDown(denom)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	optimal, err = cv.invertUp(optimal)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	optimal, err = optimal.DivDown(cv.InitialSharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	if optimal.Lt(cv.ShareReserves) {
		return fixedpoint.FixedPoint{}, fmt.Errorf("%w: pool already at or past the price cap", ErrInvalidCurveState)
	}
	return optimal.Sub(cv.ShareReserves)
}

// MaxBuyBondsOut returns the maximum amount of bonds the pool can sell
// before its spot price reaches one.
func (cv Curve) MaxBuyBondsOut() (fixedpoint.FixedPoint, error) {
	k, err := cv.KUp()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	ratio, err := cv.SharePrice.DivDown(cv.InitialSharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	denom, err := ratio.Add(fixedpoint.One())
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	optimalY, err := k.DivUp(denom)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	optimalY, err = cv.invertUp(optimalY)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	if cv.BondReserves.Lt(optimalY) {
		return fixedpoint.FixedPoint{}, fmt.Errorf("%w: pool already at or past the price cap", ErrInvalidCurveState)
	}
	return cv.BondReserves.Sub(optimalY)
}

// MaxSellBondsIn returns the maximum amount of bonds that can be sold to the
// pool before the share reserve falls to zMin.
func (cv Curve) MaxSellBondsIn(zMin fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	k, err := cv.KDown()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	// Substituting ze = zMin leaves k = (c / µ) * (µ * zMin)^t + y'^t.
	muZmin, err := cv.InitialSharePrice.MulUp(zMin)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	floorTerm, err := muZmin.Pow(cv.TimeParameter)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	floorTerm, err = cv.SharePrice.MulDivUp(floorTerm, cv.InitialSharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	if k.Lt(floorTerm) {
		return fixedpoint.FixedPoint{}, fmt.Errorf("%w: share reserve already below floor", ErrInvalidCurveState)
	}
	optimalY, err := k.Sub(floorTerm)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	optimalY, err = cv.invertDown(optimalY)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	if optimalY.Lt(cv.BondReserves) {
		return fixedpoint.FixedPoint{}, fmt.Errorf("%w: pool already at the sell limit", ErrInvalidCurveState)
	}
	return optimalY.Sub(cv.BondReserves)
}
