package hyperdrive

import (
	"fmt"

	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
	"github.com/delvtech/hyperdrive-sub010/pkg/yieldspace"
)

// curveFor builds the bonding curve view of a state. The curve exponent is
// 1 - timeStretch: the solver always prices the fully un-matured leg, partial
// maturity is handled by the flat/curve split below.
func curveFor(state PoolState, cfg PoolConfig) (yieldspace.Curve, error) {
	exponent, err := fixedpoint.One().Sub(cfg.TimeStretch)
	if err != nil {
		return yieldspace.Curve{}, err
	}
	return yieldspace.Curve{
		ShareReserves:     state.ShareReserves,
		BondReserves:      state.BondReserves,
		SharePrice:        state.VaultSharePrice,
		InitialSharePrice: cfg.InitialSharePrice,
		TimeParameter:     exponent,
	}, nil
}

// TradeResult carries a priced trade: the trader's total proceeds plus the
// flat and curve legs separately, so the caller can apply each leg's reserve
// effect.
type TradeResult struct {
	// Proceeds is the total amount leaving the pool toward the trader, in
	// the out-asset's units.
	Proceeds fixedpoint.FixedPoint
	// FlatShares is the flat leg, always expressed in shares.
	FlatShares fixedpoint.FixedPoint
	// CurveShares and CurveBonds are the curve leg's reserve movements.
	CurveShares fixedpoint.FixedPoint
	CurveBonds  fixedpoint.FixedPoint
}

// CalculateSharesOutGivenBondsIn prices selling bondAmount bonds to the pool
// with normalized time remaining t. The matured fraction (1 - t) settles one
// to one against the share price; the live fraction t routes through the
// curve against reserves that already reflect the flat leg.
func CalculateSharesOutGivenBondsIn(
	state PoolState,
	cfg PoolConfig,
	bondAmount fixedpoint.FixedPoint,
	timeRemaining fixedpoint.FixedPoint,
) (TradeResult, error) {
	if bondAmount.IsZero() {
		return TradeResult{}, ErrZeroAmount
	}

	matured, err := fixedpoint.One().Sub(timeRemaining)
	if err != nil {
		return TradeResult{}, err
	}
	flatShares, err := bondAmount.MulDivDown(matured, state.VaultSharePrice)
	if err != nil {
		return TradeResult{}, err
	}

	result := TradeResult{FlatShares: flatShares}
	if timeRemaining.IsZero() {
		result.Proceeds = flatShares
		return result, nil
	}

	// The curve leg sees reserves net of the flat leg.
	local := state
	local.ShareReserves, err = local.ShareReserves.Sub(flatShares)
	if err != nil {
		return TradeResult{}, fmt.Errorf("%w: flat leg exceeds share reserves", ErrInsufficientLiquidity)
	}

	curveBonds, err := bondAmount.MulDown(timeRemaining)
	if err != nil {
		return TradeResult{}, err
	}
	curve, err := curveFor(local, cfg)
	if err != nil {
		return TradeResult{}, err
	}
	curveShares, err := curve.SharesOutGivenBondsIn(curveBonds)
	if err != nil {
		return TradeResult{}, err
	}

	result.CurveShares = curveShares
	result.CurveBonds = curveBonds
	result.Proceeds, err = flatShares.Add(curveShares)
	if err != nil {
		return TradeResult{}, err
	}
	return result, nil
}

// CalculateBondsOutGivenSharesIn prices buying bonds with shareAmount shares
// at normalized time remaining t. The matured fraction converts at the share
// price, the rest routes through the curve.
func CalculateBondsOutGivenSharesIn(
	state PoolState,
	cfg PoolConfig,
	shareAmount fixedpoint.FixedPoint,
	timeRemaining fixedpoint.FixedPoint,
) (TradeResult, error) {
	if shareAmount.IsZero() {
		return TradeResult{}, ErrZeroAmount
	}

	matured, err := fixedpoint.One().Sub(timeRemaining)
	if err != nil {
		return TradeResult{}, err
	}
	flatShares, err := shareAmount.MulDown(matured)
	if err != nil {
		return TradeResult{}, err
	}
	flatBonds, err := flatShares.MulDown(state.VaultSharePrice)
	if err != nil {
		return TradeResult{}, err
	}

	result := TradeResult{FlatShares: flatShares}
	if timeRemaining.IsZero() {
		result.Proceeds = flatBonds
		return result, nil
	}

	local := state
	local.ShareReserves, err = local.ShareReserves.Add(flatShares)
	if err != nil {
		return TradeResult{}, err
	}

	curveShares, err := shareAmount.MulDown(timeRemaining)
	if err != nil {
		return TradeResult{}, err
	}
	curve, err := curveFor(local, cfg)
	if err != nil {
		return TradeResult{}, err
	}
	curveBonds, err := curve.BondsOutGivenSharesIn(curveShares)
	if err != nil {
		return TradeResult{}, err
	}

	result.CurveShares = curveShares
	result.CurveBonds = curveBonds
	result.Proceeds, err = flatBonds.Add(curveBonds)
	if err != nil {
		return TradeResult{}, err
	}
	return result, nil
}

// CalculateSharesInGivenBondsOut prices withdrawing bondAmount bonds from the
// pool. Only fully live positions (t = 1) are supported: the partially
// matured bonds-out solve is deliberately not offered by this generation of
// the engine.
func CalculateSharesInGivenBondsOut(
	state PoolState,
	cfg PoolConfig,
	bondAmount fixedpoint.FixedPoint,
	timeRemaining fixedpoint.FixedPoint,
) (TradeResult, error) {
	if bondAmount.IsZero() {
		return TradeResult{}, ErrZeroAmount
	}
	if timeRemaining.Lt(fixedpoint.One()) {
		return TradeResult{}, ErrUnsupportedTrade
	}

	curve, err := curveFor(state, cfg)
	if err != nil {
		return TradeResult{}, err
	}
	sharesIn, err := curve.SharesInGivenBondsOutUp(bondAmount)
	if err != nil {
		return TradeResult{}, err
	}
	return TradeResult{
		Proceeds:    sharesIn,
		CurveShares: sharesIn,
		CurveBonds:  bondAmount,
	}, nil
}

// CalculateBondsInGivenSharesOut prices withdrawing shareAmount shares from
// the pool, paid in bonds split across the flat and curve legs. The flat leg
// charges bonds at the share price, rounded up in the pool's favor.
func CalculateBondsInGivenSharesOut(
	state PoolState,
	cfg PoolConfig,
	shareAmount fixedpoint.FixedPoint,
	timeRemaining fixedpoint.FixedPoint,
) (TradeResult, error) {
	if shareAmount.IsZero() {
		return TradeResult{}, ErrZeroAmount
	}

	matured, err := fixedpoint.One().Sub(timeRemaining)
	if err != nil {
		return TradeResult{}, err
	}
	flatShares, err := shareAmount.MulDown(matured)
	if err != nil {
		return TradeResult{}, err
	}
	flatBonds, err := flatShares.MulUp(state.VaultSharePrice)
	if err != nil {
		return TradeResult{}, err
	}

	result := TradeResult{FlatShares: flatShares}
	if timeRemaining.IsZero() {
		result.Proceeds = flatBonds
		return result, nil
	}

	local := state
	local.ShareReserves, err = local.ShareReserves.Sub(flatShares)
	if err != nil {
		return TradeResult{}, fmt.Errorf("%w: flat leg exceeds share reserves", ErrInsufficientLiquidity)
	}

	curveShares, err := shareAmount.MulDown(timeRemaining)
	if err != nil {
		return TradeResult{}, err
	}
	curve, err := curveFor(local, cfg)
	if err != nil {
		return TradeResult{}, err
	}
	curveBonds, err := curve.BondsInGivenSharesOut(curveShares)
	if err != nil {
		return TradeResult{}, err
	}

	result.CurveShares = curveShares
	result.CurveBonds = curveBonds
	result.Proceeds, err = flatBonds.Add(curveBonds)
	if err != nil {
		return TradeResult{}, err
	}
	return result, nil
}
