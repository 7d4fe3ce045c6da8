package hyperdrive

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/delvtech/hyperdrive-sub010/pkg/assetid"
	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
	"github.com/delvtech/hyperdrive-sub010/pkg/ledger"
)

// The matched-position primitives bypass the public trade curve: two traders
// fund a balanced long/short pair between themselves, so the pool's rate is
// unaffected. The funding enters and leaves reserves through the
// liquidity-update rule, which rescales bond reserves and keeps the marginal
// rate continuous.

// MintCost is the funding a balanced pair of the given size requires, in
// base: par value plus the flat fee plus governance taken on the flat fee
// from both sides, rounded up.
func (p *Pool) MintCost(bondAmount fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	flat, err := p.cfg.FlatFee.MulUp(bondAmount)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	gov, err := p.cfg.GovernanceFee.MulUp(flat)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	gov, err = gov.Add(gov)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	cost, err := bondAmount.Add(flat)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	return cost.Add(gov)
}

// MintMatched mints bondAmount longs to longTrader and the same amount of
// shorts to shortTrader, funded by fundingShares already collected by the
// caller.
func (p *Pool) MintMatched(
	longTrader, shortTrader common.Address,
	maturity uint64,
	bondAmount, fundingShares fixedpoint.FixedPoint,
) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.LPTotalSupply.IsZero() {
		return ErrPoolNotInitialized
	}
	if bondAmount.IsZero() {
		return ErrZeroAmount
	}

	scratch := p.state
	cps := newStagedCheckpoints(p.checkpoints)
	if err := p.refresh(&scratch); err != nil {
		return err
	}
	now := uint64(p.clock.Now().Unix())
	latest := p.cfg.ToCheckpoint(now)
	if _, err := p.applyCheckpoint(&scratch, cps, latest, now); err != nil {
		return err
	}
	if maturity%p.cfg.CheckpointDuration != 0 || maturity <= latest || maturity > latest+p.cfg.PositionDuration {
		return fmt.Errorf("%w: maturity %d outside the open window", ErrInvalidTimestamp, maturity)
	}

	// The funding must cover the pair's par value so maturation stays
	// solvent.
	par, err := bondAmount.DivUp(scratch.VaultSharePrice)
	if err != nil {
		return err
	}
	if fundingShares.Lt(par) {
		return fmt.Errorf("%w: funding %s below par value %s", ErrInsufficientLiquidity, fundingShares, par)
	}

	if err := updateLiquidity(&scratch, fundingShares, true); err != nil {
		return err
	}
	scratch.LongsOutstanding, err = scratch.LongsOutstanding.Add(bondAmount)
	if err != nil {
		return err
	}
	scratch.ShortsOutstanding, err = scratch.ShortsOutstanding.Add(bondAmount)
	if err != nil {
		return err
	}
	cp := cps.get(latest)
	if cp.LongOpenSharePrice.IsZero() {
		cp.LongOpenSharePrice = scratch.VaultSharePrice
	}

	if err := p.vault.DepositShares(fundingShares); err != nil {
		return err
	}
	if err := p.ledger.Mint(assetid.MustEncode(assetid.Long, maturity), longTrader, bondAmount); err != nil {
		return err
	}
	if err := p.ledger.Mint(assetid.MustEncode(assetid.Short, maturity), shortTrader, bondAmount); err != nil {
		return err
	}
	p.state = scratch
	cps.commit()
	p.logger.Info("matched pair minted",
		zap.String("long", longTrader.Hex()),
		zap.String("short", shortTrader.Hex()),
		zap.Uint64("maturity", maturity),
		zap.String("bonds", bondAmount.String()),
	)
	return nil
}

// BurnMatched burns a balanced long/short pair and splits the backing value
// three ways: longShares to the long side, shortShares to the short side,
// and whatever remains to residual, so no value stays stranded in the pool.
// Returns the amounts paid to the two traders in the caller's chosen units.
func (p *Pool) BurnMatched(
	longTrader, shortTrader common.Address,
	maturity uint64,
	bondAmount, longShares, shortShares fixedpoint.FixedPoint,
	residual common.Address,
	asBase bool,
) (longPaid, shortPaid fixedpoint.FixedPoint, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.LPTotalSupply.IsZero() {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, ErrPoolNotInitialized
	}
	if bondAmount.IsZero() {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, ErrZeroAmount
	}
	longID := assetid.MustEncode(assetid.Long, maturity)
	shortID := assetid.MustEncode(assetid.Short, maturity)
	if p.ledger.BalanceOf(longID, longTrader).Lt(bondAmount) {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, ledger.ErrInsufficientBalance
	}
	if p.ledger.BalanceOf(shortID, shortTrader).Lt(bondAmount) {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, ledger.ErrInsufficientBalance
	}

	scratch := p.state
	cps := newStagedCheckpoints(p.checkpoints)
	if err := p.refresh(&scratch); err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}
	now := uint64(p.clock.Now().Unix())
	latest := p.cfg.ToCheckpoint(now)
	if _, err := p.applyCheckpoint(&scratch, cps, latest, now); err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}
	if maturity <= latest {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, fmt.Errorf("%w: matured pairs settle through checkpoint claims", ErrInvalidTimestamp)
	}

	value, err := bondAmount.DivDown(scratch.VaultSharePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}
	claimed, err := longShares.Add(shortShares)
	if err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}
	if claimed.Gt(value) {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, fmt.Errorf("%w: split %s exceeds backing %s", ErrInsufficientLiquidity, claimed, value)
	}
	leftover, err := value.Sub(claimed)
	if err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}
	if err := updateLiquidity(&scratch, value, false); err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}
	scratch.LongsOutstanding, err = scratch.LongsOutstanding.Sub(bondAmount)
	if err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}
	scratch.ShortsOutstanding, err = scratch.ShortsOutstanding.Sub(bondAmount)
	if err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}

	if err := p.ledger.Burn(longID, longTrader, bondAmount); err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}
	if err := p.ledger.Burn(shortID, shortTrader, bondAmount); err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}
	longPaid, err = p.payOut(longShares, Options{Destination: longTrader, AsBase: asBase})
	if err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}
	shortPaid, err = p.payOut(shortShares, Options{Destination: shortTrader, AsBase: asBase})
	if err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}
	if !leftover.IsZero() {
		if _, err := p.payOut(leftover, Options{Destination: residual, AsBase: asBase}); err != nil {
			return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
		}
	}
	p.state = scratch
	cps.commit()
	p.logger.Info("matched pair burned",
		zap.String("long", longTrader.Hex()),
		zap.String("short", shortTrader.Hex()),
		zap.Uint64("maturity", maturity),
		zap.String("bonds", bondAmount.String()),
	)
	return longPaid, shortPaid, nil
}

// TransferPosition moves a position between traders without touching
// reserves.
func (p *Pool) TransferPosition(
	kind assetid.Kind,
	maturity uint64,
	from, to common.Address,
	bondAmount fixedpoint.FixedPoint,
) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if bondAmount.IsZero() {
		return ErrZeroAmount
	}
	id, err := assetid.Encode(kind, maturity)
	if err != nil {
		return err
	}
	if err := p.ledger.Transfer(id, from, to, bondAmount); err != nil {
		return err
	}
	p.logger.Info("position transferred",
		zap.String("kind", kind.String()),
		zap.Uint64("maturity", maturity),
		zap.String("from", from.Hex()),
		zap.String("to", to.Hex()),
		zap.String("bonds", bondAmount.String()),
	)
	return nil
}
