package hyperdrive

import (
	"fmt"

	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
)

// updateLiquidity applies a share reserve delta and rescales the bond
// reserves by the same ratio, keeping the pool's marginal rate continuous
// across reserve changes from checkpoint maturation, fee collection, and LP
// flows. Trade legs move both reserves directly and do not come through
// here.
func updateLiquidity(state *PoolState, delta fixedpoint.FixedPoint, add bool) error {
	if delta.IsZero() {
		return nil
	}
	if state.ShareReserves.IsZero() {
		if !add {
			return fmt.Errorf("%w: removing liquidity from empty reserves", ErrInsufficientLiquidity)
		}
		state.ShareReserves = delta
		return nil
	}

	old := state.ShareReserves
	var newReserves fixedpoint.FixedPoint
	var err error
	if add {
		newReserves, err = old.Add(delta)
	} else {
		newReserves, err = old.Sub(delta)
		if err != nil {
			return fmt.Errorf("%w: share reserves below delta %s", ErrInsufficientLiquidity, delta)
		}
	}
	if err != nil {
		return err
	}

	rescaled, err := state.BondReserves.MulDivDown(newReserves, old)
	if err != nil {
		return err
	}
	state.ShareReserves = newReserves
	state.BondReserves = rescaled
	return nil
}

// netLongExposureShares is the share value backing the pool's net open long
// position. Withdrawing LPs may not capture it. When shorts exceed longs the
// net exposure is a credit and the second return is true.
func netLongExposureShares(state PoolState) (fixedpoint.FixedPoint, bool, error) {
	if state.LongsOutstanding.Gte(state.ShortsOutstanding) {
		net, err := state.LongsOutstanding.Sub(state.ShortsOutstanding)
		if err != nil {
			return fixedpoint.FixedPoint{}, false, err
		}
		shares, err := net.DivUp(state.VaultSharePrice)
		return shares, false, err
	}
	net, err := state.ShortsOutstanding.Sub(state.LongsOutstanding)
	if err != nil {
		return fixedpoint.FixedPoint{}, false, err
	}
	shares, err := net.DivDown(state.VaultSharePrice)
	return shares, true, err
}

// lpCapital is the share reserve net of open long exposure, the base every
// LP share issuance and redemption divides against.
func lpCapital(state PoolState) (fixedpoint.FixedPoint, error) {
	exposure, credit, err := netLongExposureShares(state)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	if credit {
		return state.ShareReserves.Add(exposure)
	}
	capital, err := state.ShareReserves.Sub(exposure)
	if err != nil {
		return fixedpoint.FixedPoint{}, fmt.Errorf("%w: long exposure exceeds reserves", ErrInsufficientLiquidity)
	}
	return capital, nil
}

// idleShares is the share reserve that can leave the pool right now: capital
// net of the reserve floor.
func idleShares(state PoolState, cfg PoolConfig) (fixedpoint.FixedPoint, error) {
	capital, err := lpCapital(state)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	if capital.Lte(cfg.MinimumShareReserves) {
		return fixedpoint.Zero(), nil
	}
	return capital.Sub(cfg.MinimumShareReserves)
}

// calculateLPOut converts a share contribution into newly minted LP shares,
// diluting against capital rather than raw reserves so depositors do not buy
// into value backing open positions.
func calculateLPOut(state PoolState, sharesIn fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	if state.LPTotalSupply.IsZero() {
		return sharesIn, nil
	}
	capital, err := lpCapital(state)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	if capital.IsZero() {
		return fixedpoint.FixedPoint{}, fmt.Errorf("%w: pool has no free capital", ErrInsufficientLiquidity)
	}
	return sharesIn.MulDivDown(state.LPTotalSupply, capital)
}

// calculateSharesOutForLP converts LP shares back into a pro-rata share
// claim. The second return is the portion of the claim that idle liquidity
// cannot cover, in shares; the caller mints withdrawal shares for it.
func calculateSharesOutForLP(
	state PoolState,
	cfg PoolConfig,
	lpIn fixedpoint.FixedPoint,
) (sharesOut, shortfall fixedpoint.FixedPoint, err error) {
	if state.LPTotalSupply.IsZero() {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, fmt.Errorf("%w: no LP supply", ErrInsufficientLiquidity)
	}
	capital, err := lpCapital(state)
	if err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}
	proRata, err := lpIn.MulDivDown(capital, state.LPTotalSupply)
	if err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}

	idle, err := idleShares(state, cfg)
	if err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}
	if proRata.Lte(idle) {
		return proRata, fixedpoint.Zero(), nil
	}
	shortfall, err = proRata.Sub(idle)
	if err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}
	return idle, shortfall, nil
}

// PresentValue is the share value of LP capital: reserves plus the cost of
// unwinding the net curve position plus the net flat obligation, less the
// reserve floor.
func PresentValue(
	state PoolState,
	cfg PoolConfig,
	longTimeRemaining, shortTimeRemaining fixedpoint.FixedPoint,
) (fixedpoint.FixedPoint, error) {
	value := state.ShareReserves

	// Net flat obligation: matured short value flows in, matured long value
	// flows out.
	shortMatured, err := fixedpoint.One().Sub(shortTimeRemaining)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	shortFlat, err := state.ShortsOutstanding.MulDivDown(shortMatured, state.VaultSharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	longMatured, err := fixedpoint.One().Sub(longTimeRemaining)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	longFlat, err := state.LongsOutstanding.MulDivDown(longMatured, state.VaultSharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	value, err = value.Add(shortFlat)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	value, err = value.Sub(longFlat)
	if err != nil {
		return fixedpoint.FixedPoint{}, fmt.Errorf("%w: matured long obligations exceed reserves", ErrInsufficientLiquidity)
	}

	// Net curve position: y_l * t_l - y_s * t_s bonds still live on the
	// curve. Unwinding a net long pays shares out; a net short pulls shares
	// in.
	longCurve, err := state.LongsOutstanding.MulDown(longTimeRemaining)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	shortCurve, err := state.ShortsOutstanding.MulDown(shortTimeRemaining)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	curve, err := curveFor(state, cfg)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	if longCurve.Gt(shortCurve) {
		net, _ := longCurve.Sub(shortCurve)
		out, err := curve.SharesOutGivenBondsIn(net)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
		value, err = value.Sub(out)
		if err != nil {
			return fixedpoint.FixedPoint{}, fmt.Errorf("%w: net curve unwind exceeds reserves", ErrInsufficientLiquidity)
		}
	} else if shortCurve.Gt(longCurve) {
		net, _ := shortCurve.Sub(longCurve)
		in, err := curve.SharesInGivenBondsOutUp(net)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
		value, err = value.Add(in)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
	}

	if value.Lt(cfg.MinimumShareReserves) {
		return fixedpoint.FixedPoint{}, fmt.Errorf("%w: present value below reserve floor", ErrInsufficientLiquidity)
	}
	return value.Sub(cfg.MinimumShareReserves)
}
