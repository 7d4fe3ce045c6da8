package hyperdrive

import (
	"fmt"

	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
)

const secondsPerYear = 60 * 60 * 24 * 365

// PoolConfig holds the immutable parameters fixed at pool creation.
type PoolConfig struct {
	// InitialSharePrice is the vault share price µ at pool creation.
	InitialSharePrice fixedpoint.FixedPoint
	// MinimumShareReserves is the share reserve floor z_min. The matching
	// LP shares are minted to no one at initialization and never redeemed.
	MinimumShareReserves fixedpoint.FixedPoint
	// PositionDuration is the term length in seconds.
	PositionDuration uint64
	// CheckpointDuration is the width of a maturity bucket in seconds.
	CheckpointDuration uint64
	// TimeStretch is the spot price exponent controlling rate sensitivity.
	TimeStretch fixedpoint.FixedPoint
	// Fee parameters, each a fraction of the relevant leg.
	CurveFee      fixedpoint.FixedPoint
	FlatFee       fixedpoint.FixedPoint
	GovernanceFee fixedpoint.FixedPoint
}

func (c PoolConfig) Validate() error {
	if c.InitialSharePrice.IsZero() {
		return fmt.Errorf("pool config: initial share price is zero")
	}
	if c.CheckpointDuration == 0 {
		return fmt.Errorf("pool config: checkpoint duration is zero")
	}
	if c.PositionDuration == 0 || c.PositionDuration%c.CheckpointDuration != 0 {
		return fmt.Errorf("pool config: position duration %d is not a multiple of checkpoint duration %d",
			c.PositionDuration, c.CheckpointDuration)
	}
	if c.TimeStretch.IsZero() || c.TimeStretch.Gte(fixedpoint.One()) {
		return fmt.Errorf("pool config: time stretch %s outside (0, 1)", c.TimeStretch)
	}
	if c.FlatFee.Gt(fixedpoint.One()) || c.CurveFee.Gt(fixedpoint.One()) || c.GovernanceFee.Gt(fixedpoint.One()) {
		return fmt.Errorf("pool config: fee above one")
	}
	return nil
}

// ToCheckpoint buckets a timestamp down to its checkpoint boundary.
func (c PoolConfig) ToCheckpoint(ts uint64) uint64 {
	return ts - ts%c.CheckpointDuration
}

// AnnualizedPositionDuration is the term length as a fraction of a year.
func (c PoolConfig) AnnualizedPositionDuration() (fixedpoint.FixedPoint, error) {
	return fixedpoint.Scaled(c.PositionDuration).DivDown(fixedpoint.Scaled(secondsPerYear))
}

// NormalizedTimeRemaining maps a maturity to [0, 1]: one at open, zero at or
// after maturity. Time is measured from the latest checkpoint boundary so
// every trade within a bucket prices identically.
func (c PoolConfig) NormalizedTimeRemaining(maturity, now uint64) (fixedpoint.FixedPoint, error) {
	latest := c.ToCheckpoint(now)
	if maturity <= latest {
		return fixedpoint.Zero(), nil
	}
	remaining := fixedpoint.Scaled(maturity - latest)
	t, err := remaining.DivDown(fixedpoint.Scaled(c.PositionDuration))
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	if t.Gt(fixedpoint.One()) {
		return fixedpoint.FixedPoint{}, fmt.Errorf("%w: maturity %d more than one term ahead", ErrInvalidTimestamp, maturity)
	}
	return t, nil
}

// CalculateTimeStretch derives the time stretch from a target annual rate,
// calibrated so pools quote reasonable rate sensitivity around that rate.
func CalculateTimeStretch(apr fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	scaled, err := apr.MulDown(fixedpoint.Scaled(100))
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	inner, err := fixedpoint.MustFromDecimal("46650000000000000").MulDown(scaled)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	// time stretch = 1 / (5.24592 / (0.04665 * rate * 100))
	stretch, err := fixedpoint.MustFromDecimal("5245920000000000000").DivDown(inner)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	return fixedpoint.One().DivDown(stretch)
}

// PoolState is the mutable reserve and exposure state of one pool. Every
// operation works on a copy and commits only on success.
type PoolState struct {
	ShareReserves fixedpoint.FixedPoint
	BondReserves  fixedpoint.FixedPoint
	// VaultSharePrice is the latest observed exchange rate c.
	VaultSharePrice fixedpoint.FixedPoint

	LPTotalSupply     fixedpoint.FixedPoint
	LongsOutstanding  fixedpoint.FixedPoint
	ShortsOutstanding fixedpoint.FixedPoint

	WithdrawalSharesOutstanding     fixedpoint.FixedPoint
	WithdrawalSharesReadyToWithdraw fixedpoint.FixedPoint
	WithdrawalSharesProceeds        fixedpoint.FixedPoint
}

// Checkpoint snapshots the vault share price for one maturity bucket. Once
// VaultSharePrice is nonzero the checkpoint is frozen. The proceeds pots hold
// shares set aside at maturation for position holders to claim.
type Checkpoint struct {
	Time uint64
	// VaultSharePrice is recorded the first time the checkpoint is touched.
	VaultSharePrice fixedpoint.FixedPoint
	// LongOpenSharePrice is recorded when the first long opens in this
	// bucket; shorts maturing a term later settle interest against it.
	LongOpenSharePrice fixedpoint.FixedPoint

	MaturedLongProceeds  fixedpoint.FixedPoint
	MaturedShortProceeds fixedpoint.FixedPoint
}

func (cp *Checkpoint) clone() *Checkpoint {
	c := *cp
	return &c
}
