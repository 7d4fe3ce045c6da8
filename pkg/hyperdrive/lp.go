package hyperdrive

import (
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/delvtech/hyperdrive-sub010/pkg/assetid"
	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
	"github.com/delvtech/hyperdrive-sub010/pkg/ledger"
)

var (
	lpAssetID              = assetid.MustEncode(assetid.LP, 0)
	withdrawalShareAssetID = assetid.MustEncode(assetid.WithdrawalShare, 0)
)

// AddLiquidity deposits into the pool and mints LP shares against the pool's
// free capital.
func (p *Pool) AddLiquidity(
	provider common.Address,
	contribution, minLPShares fixedpoint.FixedPoint,
	opts Options,
) (fixedpoint.FixedPoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.LPTotalSupply.IsZero() {
		return fixedpoint.FixedPoint{}, ErrPoolNotInitialized
	}
	if contribution.IsZero() {
		return fixedpoint.FixedPoint{}, ErrZeroAmount
	}

	scratch := p.state
	cps := newStagedCheckpoints(p.checkpoints)
	if err := p.refresh(&scratch); err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	now := uint64(p.clock.Now().Unix())
	if _, err := p.applyCheckpoint(&scratch, cps, p.cfg.ToCheckpoint(now), now); err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	shares, err := p.toShares(contribution, opts)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	lpOut, err := calculateLPOut(scratch, shares)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	if lpOut.Lt(minLPShares) {
		return fixedpoint.FixedPoint{}, ErrOutputBelowMinimum
	}

	if err := updateLiquidity(&scratch, shares, true); err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	scratch.LPTotalSupply, err = scratch.LPTotalSupply.Add(lpOut)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	if _, err := p.collectDeposit(contribution, opts); err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	if err := p.ledger.Mint(lpAssetID, provider, lpOut); err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	p.state = scratch
	cps.commit()
	p.logger.Info("liquidity added",
		zap.String("provider", provider.Hex()),
		zap.String("shares_in", shares.String()),
		zap.String("lp_out", lpOut.String()),
	)
	return lpOut, nil
}

// RemoveLiquidity burns LP shares for a pro-rata share payout. The portion
// idle liquidity cannot cover is returned as withdrawal shares that become
// redeemable as positions mature.
func (p *Pool) RemoveLiquidity(
	provider common.Address,
	lpShares, minOutput fixedpoint.FixedPoint,
	opts Options,
) (payout, withdrawalShares fixedpoint.FixedPoint, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.LPTotalSupply.IsZero() {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, ErrPoolNotInitialized
	}
	if lpShares.IsZero() {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, ErrZeroAmount
	}
	if p.ledger.BalanceOf(lpAssetID, provider).Lt(lpShares) {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, ledger.ErrInsufficientBalance
	}

	scratch := p.state
	cps := newStagedCheckpoints(p.checkpoints)
	if err := p.refresh(&scratch); err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}
	now := uint64(p.clock.Now().Unix())
	if _, err := p.applyCheckpoint(&scratch, cps, p.cfg.ToCheckpoint(now), now); err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}

	sharesOut, shortfall, err := calculateSharesOutForLP(scratch, p.cfg, lpShares)
	if err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}

	// Convert the uncovered share claim back into claim units before the
	// supply shrinks.
	wsOut := fixedpoint.Zero()
	if !shortfall.IsZero() {
		capital, err := lpCapital(scratch)
		if err != nil {
			return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
		}
		wsOut, err = shortfall.MulDivDown(scratch.LPTotalSupply, capital)
		if err != nil {
			return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
		}
	}

	scratch.LPTotalSupply, err = scratch.LPTotalSupply.Sub(lpShares)
	if err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}
	if err := updateLiquidity(&scratch, sharesOut, false); err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}
	if !wsOut.IsZero() {
		scratch.WithdrawalSharesOutstanding, err = scratch.WithdrawalSharesOutstanding.Add(wsOut)
		if err != nil {
			return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
		}
	}

	if sharesOut.Lt(minOutput) {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, ErrOutputBelowMinimum
	}

	if err := p.ledger.Burn(lpAssetID, provider, lpShares); err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}
	if !wsOut.IsZero() {
		if err := p.ledger.Mint(withdrawalShareAssetID, provider, wsOut); err != nil {
			return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
		}
	}
	paid := fixedpoint.Zero()
	if !sharesOut.IsZero() {
		paid, err = p.payOut(sharesOut, opts)
		if err != nil {
			return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
		}
	}
	p.state = scratch
	cps.commit()
	p.logger.Info("liquidity removed",
		zap.String("provider", provider.Hex()),
		zap.String("lp_in", lpShares.String()),
		zap.String("shares_out", sharesOut.String()),
		zap.String("withdrawal_shares", wsOut.String()),
	)
	return paid, wsOut, nil
}

// RedeemWithdrawalShares redeems withdrawal shares against the proceeds
// banked by checkpoint maturation. Shares beyond the redeemable amount stay
// with the provider.
func (p *Pool) RedeemWithdrawalShares(
	provider common.Address,
	withdrawalShares, minOutputPerShare fixedpoint.FixedPoint,
	opts Options,
) (payout, redeemed fixedpoint.FixedPoint, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if withdrawalShares.IsZero() {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, ErrZeroAmount
	}
	if p.ledger.BalanceOf(withdrawalShareAssetID, provider).Lt(withdrawalShares) {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, ledger.ErrInsufficientBalance
	}

	scratch := p.state
	cps := newStagedCheckpoints(p.checkpoints)
	if err := p.refresh(&scratch); err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}
	now := uint64(p.clock.Now().Unix())
	if _, err := p.applyCheckpoint(&scratch, cps, p.cfg.ToCheckpoint(now), now); err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}

	redeemed = fixedpoint.Min(withdrawalShares, scratch.WithdrawalSharesReadyToWithdraw)
	if redeemed.IsZero() {
		return fixedpoint.Zero(), fixedpoint.Zero(), nil
	}
	proceeds, err := scratch.WithdrawalSharesProceeds.MulDivDown(redeemed, scratch.WithdrawalSharesReadyToWithdraw)
	if err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}

	if !minOutputPerShare.IsZero() {
		floor, err := redeemed.MulDown(minOutputPerShare)
		if err != nil {
			return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
		}
		if proceeds.Lt(floor) {
			return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, ErrOutputBelowMinimum
		}
	}

	scratch.WithdrawalSharesReadyToWithdraw, err = scratch.WithdrawalSharesReadyToWithdraw.Sub(redeemed)
	if err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}
	scratch.WithdrawalSharesOutstanding, err = scratch.WithdrawalSharesOutstanding.Sub(redeemed)
	if err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}
	scratch.WithdrawalSharesProceeds, err = scratch.WithdrawalSharesProceeds.Sub(proceeds)
	if err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}

	if err := p.ledger.Burn(withdrawalShareAssetID, provider, redeemed); err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}
	paid, err := p.payOut(proceeds, opts)
	if err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}
	p.state = scratch
	cps.commit()
	p.logger.Info("withdrawal shares redeemed",
		zap.String("provider", provider.Hex()),
		zap.String("redeemed", redeemed.String()),
		zap.String("proceeds", proceeds.String()),
	)
	return paid, redeemed, nil
}
