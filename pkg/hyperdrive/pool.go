package hyperdrive

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/delvtech/hyperdrive-sub010/pkg/assetid"
	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
	"github.com/delvtech/hyperdrive-sub010/pkg/ledger"
	"github.com/delvtech/hyperdrive-sub010/pkg/util"
	"github.com/delvtech/hyperdrive-sub010/pkg/vault"
)

// Options selects where and in which asset an operation settles.
type Options struct {
	Destination common.Address
	// AsBase settles in base collateral through the vault; otherwise
	// amounts are vault shares.
	AsBase bool
}

// Pool is one fixed-rate market. All operations are exclusive read-modify-
// write transactions: each computes on a scratch copy of the state and
// commits only if every step succeeds.
type Pool struct {
	mu sync.Mutex

	cfg         PoolConfig
	state       PoolState
	checkpoints map[uint64]*Checkpoint

	ledger ledger.Ledger
	vault  vault.Vault
	clock  util.Clock
	logger *zap.Logger
}

func NewPool(cfg PoolConfig, l ledger.Ledger, v vault.Vault, clock util.Clock, logger *zap.Logger) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pool{
		cfg:         cfg,
		checkpoints: make(map[uint64]*Checkpoint),
		ledger:      l,
		vault:       v,
		clock:       clock,
		logger:      logger,
	}, nil
}

func (p *Pool) Config() PoolConfig { return p.cfg }

func (p *Pool) State() PoolState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pool) CheckpointAt(t uint64) (Checkpoint, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp, ok := p.checkpoints[t]
	if !ok {
		return Checkpoint{}, false
	}
	return *cp, true
}

// LatestCheckpointTime buckets the current clock time.
func (p *Pool) LatestCheckpointTime() uint64 {
	return p.cfg.ToCheckpoint(uint64(p.clock.Now().Unix()))
}

// toShares normalizes a caller amount into vault shares without moving
// funds.
func (p *Pool) toShares(amount fixedpoint.FixedPoint, opts Options) (fixedpoint.FixedPoint, error) {
	if !opts.AsBase {
		return amount, nil
	}
	return p.vault.ConvertToShares(amount)
}

// collectDeposit moves the caller's funds into the vault. Called at commit
// time, after all validation.
func (p *Pool) collectDeposit(amount fixedpoint.FixedPoint, opts Options) (fixedpoint.FixedPoint, error) {
	if opts.AsBase {
		shares, _, err := p.vault.DepositBase(amount)
		return shares, err
	}
	return amount, p.vault.DepositShares(amount)
}

// payOut sends shares to the destination, converting to base if requested.
// Returns the amount in the caller's chosen units.
func (p *Pool) payOut(shares fixedpoint.FixedPoint, opts Options) (fixedpoint.FixedPoint, error) {
	if opts.AsBase {
		return p.vault.WithdrawBase(shares, opts.Destination)
	}
	return shares, p.vault.WithdrawShares(shares, opts.Destination)
}

// refresh pulls the current vault share price into the scratch state.
func (p *Pool) refresh(scratch *PoolState) error {
	price, err := p.vault.SharePrice()
	if err != nil {
		return err
	}
	scratch.VaultSharePrice = price
	return nil
}

// Initialize seeds the reserves at a target fixed rate and mints the first
// LP shares. The reserve-floor portion is minted to no one and can never be
// withdrawn.
func (p *Pool) Initialize(provider common.Address, contribution, targetAPR fixedpoint.FixedPoint, opts Options) (fixedpoint.FixedPoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.state.LPTotalSupply.IsZero() || !p.state.ShareReserves.IsZero() {
		return fixedpoint.FixedPoint{}, ErrPoolAlreadyInitialized
	}
	if contribution.IsZero() {
		return fixedpoint.FixedPoint{}, ErrZeroAmount
	}

	scratch := p.state
	if err := p.refresh(&scratch); err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	shares, err := p.toShares(contribution, opts)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	if shares.Lte(p.cfg.MinimumShareReserves) {
		return fixedpoint.FixedPoint{}, fmt.Errorf("%w: contribution below the reserve floor", ErrInsufficientLiquidity)
	}

	scratch.ShareReserves = shares
	scratch.LPTotalSupply = shares
	scratch.BondReserves, err = CalculateBondReserves(shares, shares, targetAPR, p.cfg)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	lpOut, err := shares.Sub(p.cfg.MinimumShareReserves)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	if _, err := p.collectDeposit(contribution, opts); err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	if err := p.ledger.Mint(assetid.MustEncode(assetid.LP, 0), provider, lpOut); err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	p.state = scratch
	p.logger.Info("pool initialized",
		zap.String("provider", provider.Hex()),
		zap.String("share_reserves", scratch.ShareReserves.String()),
		zap.String("bond_reserves", scratch.BondReserves.String()),
		zap.String("target_apr", targetAPR.String()),
	)
	return lpOut, nil
}

// OpenLong trades amountIn into a fixed-rate long maturing one position
// duration after the current checkpoint.
func (p *Pool) OpenLong(
	trader common.Address,
	amountIn, minOutput, minVaultSharePrice fixedpoint.FixedPoint,
	opts Options,
) (uint64, fixedpoint.FixedPoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.LPTotalSupply.IsZero() {
		return 0, fixedpoint.FixedPoint{}, ErrPoolNotInitialized
	}
	if amountIn.IsZero() {
		return 0, fixedpoint.FixedPoint{}, ErrZeroAmount
	}

	scratch := p.state
	cps := newStagedCheckpoints(p.checkpoints)
	if err := p.refresh(&scratch); err != nil {
		return 0, fixedpoint.FixedPoint{}, err
	}
	if scratch.VaultSharePrice.Lt(minVaultSharePrice) {
		return 0, fixedpoint.FixedPoint{}, ErrMinSharePrice
	}

	now := uint64(p.clock.Now().Unix())
	latest := p.cfg.ToCheckpoint(now)
	if _, err := p.applyCheckpoint(&scratch, cps, latest, now); err != nil {
		return 0, fixedpoint.FixedPoint{}, err
	}
	maturity := latest + p.cfg.PositionDuration

	shares, err := p.toShares(amountIn, opts)
	if err != nil {
		return 0, fixedpoint.FixedPoint{}, err
	}
	result, err := CalculateBondsOutGivenSharesIn(scratch, p.cfg, shares, fixedpoint.One())
	if err != nil {
		return 0, fixedpoint.FixedPoint{}, err
	}
	bondProceeds := result.Proceeds

	// A long that buys bonds below par value would lock in negative fixed
	// interest; the curve must never quote it.
	baseValue, err := shares.MulDown(scratch.VaultSharePrice)
	if err != nil {
		return 0, fixedpoint.FixedPoint{}, err
	}
	if bondProceeds.Lt(baseValue) {
		return 0, fixedpoint.FixedPoint{}, fmt.Errorf("%w: bond price above par", ErrInsufficientLiquidity)
	}
	if bondProceeds.Lt(minOutput) {
		return 0, fixedpoint.FixedPoint{}, ErrOutputBelowMinimum
	}

	scratch.ShareReserves, err = scratch.ShareReserves.Add(shares)
	if err != nil {
		return 0, fixedpoint.FixedPoint{}, err
	}
	scratch.BondReserves, err = scratch.BondReserves.Sub(bondProceeds)
	if err != nil {
		return 0, fixedpoint.FixedPoint{}, fmt.Errorf("%w: bond reserves below trade size", ErrInsufficientLiquidity)
	}
	scratch.LongsOutstanding, err = scratch.LongsOutstanding.Add(bondProceeds)
	if err != nil {
		return 0, fixedpoint.FixedPoint{}, err
	}
	cp := cps.get(latest)
	if cp.LongOpenSharePrice.IsZero() {
		cp.LongOpenSharePrice = scratch.VaultSharePrice
	}

	if _, err := p.collectDeposit(amountIn, opts); err != nil {
		return 0, fixedpoint.FixedPoint{}, err
	}
	if err := p.ledger.Mint(assetid.MustEncode(assetid.Long, maturity), trader, bondProceeds); err != nil {
		return 0, fixedpoint.FixedPoint{}, err
	}
	p.state = scratch
	cps.commit()
	p.logger.Info("long opened",
		zap.String("trader", trader.Hex()),
		zap.Uint64("maturity", maturity),
		zap.String("shares_in", shares.String()),
		zap.String("bonds_out", bondProceeds.String()),
	)
	return maturity, bondProceeds, nil
}

// CloseLong sells a long back to the pool, or claims its matured value after
// the maturity checkpoint.
func (p *Pool) CloseLong(
	trader common.Address,
	maturity uint64,
	bondAmount, minOutput fixedpoint.FixedPoint,
	opts Options,
) (fixedpoint.FixedPoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.LPTotalSupply.IsZero() {
		return fixedpoint.FixedPoint{}, ErrPoolNotInitialized
	}
	if bondAmount.IsZero() {
		return fixedpoint.FixedPoint{}, ErrZeroAmount
	}
	if maturity%p.cfg.CheckpointDuration != 0 {
		return fixedpoint.FixedPoint{}, fmt.Errorf("%w: maturity %d off the checkpoint grid", ErrInvalidTimestamp, maturity)
	}
	longID := assetid.MustEncode(assetid.Long, maturity)
	if p.ledger.BalanceOf(longID, trader).Lt(bondAmount) {
		return fixedpoint.FixedPoint{}, ledger.ErrInsufficientBalance
	}

	scratch := p.state
	cps := newStagedCheckpoints(p.checkpoints)
	if err := p.refresh(&scratch); err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	now := uint64(p.clock.Now().Unix())
	latest := p.cfg.ToCheckpoint(now)
	if _, err := p.applyCheckpoint(&scratch, cps, latest, now); err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	var proceeds fixedpoint.FixedPoint
	if maturity <= latest {
		// Matured: claim flat value out of the maturity checkpoint's pot.
		cpPrice, err := p.applyCheckpoint(&scratch, cps, maturity, now)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
		proceeds, err = bondAmount.DivDown(cpPrice)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
		cp := cps.get(maturity)
		proceeds = fixedpoint.Min(proceeds, cp.MaturedLongProceeds)
		cp.MaturedLongProceeds, err = cp.MaturedLongProceeds.Sub(proceeds)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
	} else {
		t, err := p.cfg.NormalizedTimeRemaining(maturity, now)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
		result, err := CalculateSharesOutGivenBondsIn(scratch, p.cfg, bondAmount, t)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
		proceeds = result.Proceeds

		scratch.ShareReserves, err = scratch.ShareReserves.Sub(proceeds)
		if err != nil {
			return fixedpoint.FixedPoint{}, fmt.Errorf("%w: payout exceeds share reserves", ErrInsufficientLiquidity)
		}
		scratch.BondReserves, err = scratch.BondReserves.Add(result.CurveBonds)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
		scratch.LongsOutstanding, err = scratch.LongsOutstanding.Sub(bondAmount)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
	}

	if proceeds.Lt(minOutput) {
		return fixedpoint.FixedPoint{}, ErrOutputBelowMinimum
	}

	if err := p.ledger.Burn(longID, trader, bondAmount); err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	paid, err := p.payOut(proceeds, opts)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	p.state = scratch
	cps.commit()
	p.logger.Info("long closed",
		zap.String("trader", trader.Hex()),
		zap.Uint64("maturity", maturity),
		zap.String("bonds_in", bondAmount.String()),
		zap.String("proceeds", proceeds.String()),
	)
	return paid, nil
}

// OpenShort sells bondAmount bonds to the pool against a margin deposit that
// covers the fixed rate plus fees.
func (p *Pool) OpenShort(
	trader common.Address,
	bondAmount, maxDeposit, minVaultSharePrice fixedpoint.FixedPoint,
	opts Options,
) (uint64, fixedpoint.FixedPoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.LPTotalSupply.IsZero() {
		return 0, fixedpoint.FixedPoint{}, ErrPoolNotInitialized
	}
	if bondAmount.IsZero() {
		return 0, fixedpoint.FixedPoint{}, ErrZeroAmount
	}

	scratch := p.state
	cps := newStagedCheckpoints(p.checkpoints)
	if err := p.refresh(&scratch); err != nil {
		return 0, fixedpoint.FixedPoint{}, err
	}
	if scratch.VaultSharePrice.Lt(minVaultSharePrice) {
		return 0, fixedpoint.FixedPoint{}, ErrMinSharePrice
	}

	now := uint64(p.clock.Now().Unix())
	latest := p.cfg.ToCheckpoint(now)
	openPrice, err := p.applyCheckpoint(&scratch, cps, latest, now)
	if err != nil {
		return 0, fixedpoint.FixedPoint{}, err
	}
	maturity := latest + p.cfg.PositionDuration

	result, err := CalculateSharesOutGivenBondsIn(scratch, p.cfg, bondAmount, fixedpoint.One())
	if err != nil {
		return 0, fixedpoint.FixedPoint{}, err
	}
	principal := result.Proceeds

	// Deposit in base: backpaid interest since the checkpoint opened, plus
	// the flat fee, less the curve principal the LPs pay.
	costBase, err := bondAmount.MulDivUp(scratch.VaultSharePrice, openPrice)
	if err != nil {
		return 0, fixedpoint.FixedPoint{}, err
	}
	flatFee, err := p.cfg.FlatFee.MulUp(bondAmount)
	if err != nil {
		return 0, fixedpoint.FixedPoint{}, err
	}
	costBase, err = costBase.Add(flatFee)
	if err != nil {
		return 0, fixedpoint.FixedPoint{}, err
	}
	principalBase, err := principal.MulDown(scratch.VaultSharePrice)
	if err != nil {
		return 0, fixedpoint.FixedPoint{}, err
	}
	if costBase.Lt(principalBase) {
		return 0, fixedpoint.FixedPoint{}, fmt.Errorf("%w: short principal exceeds bond value", ErrInsufficientLiquidity)
	}
	depositBase, err := costBase.Sub(principalBase)
	if err != nil {
		return 0, fixedpoint.FixedPoint{}, err
	}
	depositShares, err := depositBase.DivUp(scratch.VaultSharePrice)
	if err != nil {
		return 0, fixedpoint.FixedPoint{}, err
	}
	deposit := depositShares
	if opts.AsBase {
		deposit = depositBase
	}
	if !maxDeposit.IsZero() && deposit.Gt(maxDeposit) {
		return 0, fixedpoint.FixedPoint{}, ErrInputAboveMaximum
	}

	scratch.ShareReserves, err = scratch.ShareReserves.Sub(principal)
	if err != nil {
		return 0, fixedpoint.FixedPoint{}, fmt.Errorf("%w: principal exceeds share reserves", ErrInsufficientLiquidity)
	}
	if scratch.ShareReserves.Lt(p.cfg.MinimumShareReserves) {
		return 0, fixedpoint.FixedPoint{}, fmt.Errorf("%w: share reserves below the floor", ErrInsufficientLiquidity)
	}
	scratch.BondReserves, err = scratch.BondReserves.Add(bondAmount)
	if err != nil {
		return 0, fixedpoint.FixedPoint{}, err
	}
	scratch.ShortsOutstanding, err = scratch.ShortsOutstanding.Add(bondAmount)
	if err != nil {
		return 0, fixedpoint.FixedPoint{}, err
	}

	if _, err := p.collectDeposit(deposit, opts); err != nil {
		return 0, fixedpoint.FixedPoint{}, err
	}
	if err := p.ledger.Mint(assetid.MustEncode(assetid.Short, maturity), trader, bondAmount); err != nil {
		return 0, fixedpoint.FixedPoint{}, err
	}
	p.state = scratch
	cps.commit()
	p.logger.Info("short opened",
		zap.String("trader", trader.Hex()),
		zap.Uint64("maturity", maturity),
		zap.String("bonds", bondAmount.String()),
		zap.String("deposit", deposit.String()),
	)
	return maturity, deposit, nil
}

// CloseShort claims a matured short's variable interest. Buying back a short
// before maturity needs the bonds-out partial solve, which this engine does
// not offer.
func (p *Pool) CloseShort(
	trader common.Address,
	maturity uint64,
	bondAmount, minOutput fixedpoint.FixedPoint,
	opts Options,
) (fixedpoint.FixedPoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.LPTotalSupply.IsZero() {
		return fixedpoint.FixedPoint{}, ErrPoolNotInitialized
	}
	if bondAmount.IsZero() {
		return fixedpoint.FixedPoint{}, ErrZeroAmount
	}
	shortID := assetid.MustEncode(assetid.Short, maturity)
	if p.ledger.BalanceOf(shortID, trader).Lt(bondAmount) {
		return fixedpoint.FixedPoint{}, ledger.ErrInsufficientBalance
	}

	scratch := p.state
	cps := newStagedCheckpoints(p.checkpoints)
	if err := p.refresh(&scratch); err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	now := uint64(p.clock.Now().Unix())
	latest := p.cfg.ToCheckpoint(now)
	if maturity > latest {
		return fixedpoint.FixedPoint{}, ErrUnsupportedTrade
	}
	if _, err := p.applyCheckpoint(&scratch, cps, latest, now); err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	cpPrice, err := p.applyCheckpoint(&scratch, cps, maturity, now)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	openPrice := p.shortOpenSharePrice(cps, maturity)
	proceeds, err := shortInterestShares(bondAmount, openPrice, cpPrice)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	cp := cps.get(maturity)
	proceeds = fixedpoint.Min(proceeds, cp.MaturedShortProceeds)
	cp.MaturedShortProceeds, err = cp.MaturedShortProceeds.Sub(proceeds)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	if proceeds.Lt(minOutput) {
		return fixedpoint.FixedPoint{}, ErrOutputBelowMinimum
	}

	if err := p.ledger.Burn(shortID, trader, bondAmount); err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	var paid fixedpoint.FixedPoint
	if !proceeds.IsZero() {
		paid, err = p.payOut(proceeds, opts)
		if err != nil {
			return fixedpoint.FixedPoint{}, err
		}
	}
	p.state = scratch
	cps.commit()
	p.logger.Info("short closed",
		zap.String("trader", trader.Hex()),
		zap.Uint64("maturity", maturity),
		zap.String("bonds", bondAmount.String()),
		zap.String("proceeds", proceeds.String()),
	)
	return paid, nil
}

// Checkpoint applies the checkpoint at cpTime. Anyone may call it; repeat
// applications are no-ops.
func (p *Pool) Checkpoint(cpTime uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.LPTotalSupply.IsZero() {
		return ErrPoolNotInitialized
	}

	scratch := p.state
	cps := newStagedCheckpoints(p.checkpoints)
	if err := p.refresh(&scratch); err != nil {
		return err
	}
	now := uint64(p.clock.Now().Unix())
	if _, err := p.applyCheckpoint(&scratch, cps, cpTime, now); err != nil {
		return err
	}
	p.state = scratch
	cps.commit()
	p.logger.Info("checkpoint applied", zap.Uint64("time", cpTime))
	return nil
}
