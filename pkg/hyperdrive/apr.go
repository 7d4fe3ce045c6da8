package hyperdrive

import (
	"fmt"

	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
	"github.com/delvtech/hyperdrive-sub010/pkg/yieldspace"
)

// SpotPrice is the instantaneous bond price implied by the reserves,
// ((µ * z) / y)^timeStretch.
func SpotPrice(state PoolState, cfg PoolConfig) (fixedpoint.FixedPoint, error) {
	curve := yieldspace.Curve{
		ShareReserves:     state.ShareReserves,
		BondReserves:      state.BondReserves,
		SharePrice:        state.VaultSharePrice,
		InitialSharePrice: cfg.InitialSharePrice,
		TimeParameter:     cfg.TimeStretch,
	}
	return curve.SpotPrice()
}

// SpotRate converts the spot price into an annualized fixed rate,
// (1 - p) / (p * t_ann).
func SpotRate(state PoolState, cfg PoolConfig) (fixedpoint.FixedPoint, error) {
	price, err := SpotPrice(state, cfg)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	annualized, err := cfg.AnnualizedPositionDuration()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	return rateFromPrice(price, annualized)
}

// MaxSpotPrice is the highest realized price a long can pay once fees are
// taken out. Longs pushing the pool past this price would pay above par.
func MaxSpotPrice(state PoolState, cfg PoolConfig) (fixedpoint.FixedPoint, error) {
	price, err := SpotPrice(state, cfg)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	inv, err := fixedpoint.One().DivUp(price)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	premium, err := inv.Sub(fixedpoint.One())
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	feeTerm, err := cfg.CurveFee.MulUp(premium)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	afterFlat, err := fixedpoint.One().Sub(cfg.FlatFee)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	denom, err := fixedpoint.One().Add(feeTerm)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	denom, err = denom.MulUp(afterFlat)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	return afterFlat.DivDown(denom)
}

func rateFromPrice(price, annualizedTime fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	if price.Gt(fixedpoint.One()) {
		return fixedpoint.FixedPoint{}, fmt.Errorf("spot price %s above par implies a negative rate", price)
	}
	num, err := fixedpoint.One().Sub(price)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	denom, err := price.MulDown(annualizedTime)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	return num.DivDown(denom)
}

// CalculateAPRFromReserves inverts the curve's pricing to an annual rate.
// The bond reserve is adjusted by the LP supply so that the function is the
// exact inverse of CalculateBondReserves for the same inputs.
func CalculateAPRFromReserves(
	shareReserves, bondReserves, lpTotalSupply fixedpoint.FixedPoint,
	cfg PoolConfig,
) (fixedpoint.FixedPoint, error) {
	adjusted, err := bondReserves.Add(lpTotalSupply)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	muZ, err := cfg.InitialSharePrice.MulDown(shareReserves)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	ratio, err := muZ.DivDown(adjusted)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	price, err := ratio.Pow(cfg.TimeStretch)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	annualized, err := cfg.AnnualizedPositionDuration()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	return rateFromPrice(price, annualized)
}

// CalculateBondReserves finds the bond reserves that realize a target annual
// rate at the given share reserves,
//
//	y = µ * z * (1 + apr * t_ann)^(1 / timeStretch) - lpTotalSupply.
func CalculateBondReserves(
	shareReserves, lpTotalSupply fixedpoint.FixedPoint,
	apr fixedpoint.FixedPoint,
	cfg PoolConfig,
) (fixedpoint.FixedPoint, error) {
	annualized, err := cfg.AnnualizedPositionDuration()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	growth, err := apr.MulDown(annualized)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	growth, err = growth.Add(fixedpoint.One())
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	invStretch, err := fixedpoint.One().DivDown(cfg.TimeStretch)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	factor, err := growth.Pow(invStretch)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	muZ, err := cfg.InitialSharePrice.MulDown(shareReserves)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	adjusted, err := muZ.MulDown(factor)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	if adjusted.Lt(lpTotalSupply) {
		return fixedpoint.FixedPoint{}, fmt.Errorf("%w: target rate %s unreachable at these reserves", ErrInsufficientLiquidity, apr)
	}
	return adjusted.Sub(lpTotalSupply)
}
