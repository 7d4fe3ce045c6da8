package hyperdrive

import (
	"fmt"

	"github.com/delvtech/hyperdrive-sub010/pkg/assetid"
	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
)

// stagedCheckpoints overlays pending checkpoint edits on the committed map so
// an aborted operation leaves no trace.
type stagedCheckpoints struct {
	committed map[uint64]*Checkpoint
	staged    map[uint64]*Checkpoint
}

func newStagedCheckpoints(committed map[uint64]*Checkpoint) *stagedCheckpoints {
	return &stagedCheckpoints{
		committed: committed,
		staged:    make(map[uint64]*Checkpoint),
	}
}

// get returns a mutable staged copy of the checkpoint at t, creating it on
// first touch.
func (s *stagedCheckpoints) get(t uint64) *Checkpoint {
	if cp, ok := s.staged[t]; ok {
		return cp
	}
	if cp, ok := s.committed[t]; ok {
		clone := cp.clone()
		s.staged[t] = clone
		return clone
	}
	cp := &Checkpoint{Time: t}
	s.staged[t] = cp
	return cp
}

// peek reads without staging a copy.
func (s *stagedCheckpoints) peek(t uint64) (*Checkpoint, bool) {
	if cp, ok := s.staged[t]; ok {
		return cp, true
	}
	cp, ok := s.committed[t]
	return cp, ok
}

func (s *stagedCheckpoints) commit() {
	for t, cp := range s.staged {
		s.committed[t] = cp
	}
}

// applyCheckpoint records the vault share price for a due checkpoint and
// matures every position with that maturity. Repeat invocations are no-ops:
// a nonzero recorded price freezes the checkpoint permanently. Returns the
// checkpoint's share price.
func (p *Pool) applyCheckpoint(
	scratch *PoolState,
	cps *stagedCheckpoints,
	cpTime, now uint64,
) (fixedpoint.FixedPoint, error) {
	if cpTime%p.cfg.CheckpointDuration != 0 {
		return fixedpoint.FixedPoint{}, fmt.Errorf("%w: %d not on the checkpoint grid", ErrInvalidTimestamp, cpTime)
	}
	if cpTime > now {
		return fixedpoint.FixedPoint{}, fmt.Errorf("%w: checkpoint %d is in the future", ErrInvalidTimestamp, cpTime)
	}

	if cp, ok := cps.peek(cpTime); ok && !cp.VaultSharePrice.IsZero() {
		return cp.VaultSharePrice, nil
	}

	cp := cps.get(cpTime)
	cp.VaultSharePrice = scratch.VaultSharePrice

	if err := p.matureLongs(scratch, cp); err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	if err := p.matureShorts(scratch, cps, cp); err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	if err := p.distributeExcessIdle(scratch); err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	return cp.VaultSharePrice, nil
}

// matureLongs closes every long maturing at this checkpoint at flat value,
// moving the payout from the reserves into the checkpoint's claim pot.
func (p *Pool) matureLongs(scratch *PoolState, cp *Checkpoint) error {
	supply := p.ledger.TotalSupply(assetid.MustEncode(assetid.Long, cp.Time))
	if supply.IsZero() {
		return nil
	}

	payout, err := supply.DivDown(scratch.VaultSharePrice)
	if err != nil {
		return err
	}
	if err := updateLiquidity(scratch, payout, false); err != nil {
		return err
	}
	scratch.LongsOutstanding, err = scratch.LongsOutstanding.Sub(supply)
	if err != nil {
		return err
	}
	cp.MaturedLongProceeds, err = cp.MaturedLongProceeds.Add(payout)
	return err
}

// matureShorts closes every short maturing at this checkpoint. The bond
// backing returns to the pool; the variable interest accrued since open is
// set aside for the short holders.
func (p *Pool) matureShorts(scratch *PoolState, cps *stagedCheckpoints, cp *Checkpoint) error {
	supply := p.ledger.TotalSupply(assetid.MustEncode(assetid.Short, cp.Time))
	if supply.IsZero() {
		return nil
	}

	backing, err := supply.DivDown(scratch.VaultSharePrice)
	if err != nil {
		return err
	}
	if err := updateLiquidity(scratch, backing, true); err != nil {
		return err
	}

	openPrice := p.shortOpenSharePrice(cps, cp.Time)
	interest, err := shortInterestShares(supply, openPrice, scratch.VaultSharePrice)
	if err != nil {
		return err
	}
	if !interest.IsZero() {
		if err := updateLiquidity(scratch, interest, false); err != nil {
			return err
		}
		cp.MaturedShortProceeds, err = cp.MaturedShortProceeds.Add(interest)
		if err != nil {
			return err
		}
	}

	scratch.ShortsOutstanding, err = scratch.ShortsOutstanding.Sub(supply)
	return err
}

// shortOpenSharePrice is the vault share price when shorts maturing at
// maturity were opened, one position duration earlier. Falls back to the
// pool's initial share price when the opening bucket predates the pool.
func (p *Pool) shortOpenSharePrice(cps *stagedCheckpoints, maturity uint64) fixedpoint.FixedPoint {
	if maturity < p.cfg.PositionDuration {
		return p.cfg.InitialSharePrice
	}
	if cp, ok := cps.peek(maturity - p.cfg.PositionDuration); ok && !cp.VaultSharePrice.IsZero() {
		return cp.VaultSharePrice
	}
	return p.cfg.InitialSharePrice
}

// shortInterestShares is the variable interest a matured short of the given
// size earned, in shares: bonds / c_open - bonds / c_close, floored at zero
// when the vault lost value.
func shortInterestShares(bonds, openPrice, closePrice fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	open, err := bonds.DivDown(openPrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	close_, err := bonds.DivDown(closePrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	if open.Lte(close_) {
		return fixedpoint.Zero(), nil
	}
	return open.Sub(close_)
}

// distributeExcessIdle converts pending withdrawal shares into redeemable
// proceeds to the extent idle liquidity allows.
func (p *Pool) distributeExcessIdle(scratch *PoolState) error {
	pending, err := scratch.WithdrawalSharesOutstanding.Sub(scratch.WithdrawalSharesReadyToWithdraw)
	if err != nil || pending.IsZero() {
		return err
	}

	idle, err := idleShares(*scratch, p.cfg)
	if err != nil || idle.IsZero() {
		return err
	}
	capital, err := lpCapital(*scratch)
	if err != nil {
		return err
	}

	// Withdrawal shares and LP shares claim the same capital pool.
	claimants, err := scratch.LPTotalSupply.Add(pending)
	if err != nil {
		return err
	}
	unitValue, err := capital.DivDown(claimants)
	if err != nil {
		return err
	}
	if unitValue.IsZero() {
		return nil
	}

	capacity, err := idle.DivDown(unitValue)
	if err != nil {
		return err
	}
	newlyReady := fixedpoint.Min(pending, capacity)
	if newlyReady.IsZero() {
		return nil
	}
	proceeds, err := newlyReady.MulDown(unitValue)
	if err != nil {
		return err
	}

	if err := updateLiquidity(scratch, proceeds, false); err != nil {
		return err
	}
	scratch.WithdrawalSharesReadyToWithdraw, err = scratch.WithdrawalSharesReadyToWithdraw.Add(newlyReady)
	if err != nil {
		return err
	}
	scratch.WithdrawalSharesProceeds, err = scratch.WithdrawalSharesProceeds.Add(proceeds)
	return err
}
