package matching

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
)

var (
	ErrOrderCancelled     = errors.New("order cancelled")
	ErrOrderFullyExecuted = errors.New("order fully executed")
	ErrFillExceedsOrder   = errors.New("fill exceeds order amount")
)

// OrderAmounts tracks cumulative fills and cancellations per intent hash.
// Fill totals only grow and never exceed the intent's declared maximums.
type OrderAmounts struct {
	mu        sync.RWMutex
	fills     map[common.Hash]*fill
	cancelled map[common.Hash]bool
}

type fill struct {
	bonds fixedpoint.FixedPoint
	funds fixedpoint.FixedPoint
}

func NewOrderAmounts() *OrderAmounts {
	return &OrderAmounts{
		fills:     make(map[common.Hash]*fill),
		cancelled: make(map[common.Hash]bool),
	}
}

// Used returns the cumulative bond and fund amounts executed against a hash.
func (a *OrderAmounts) Used(hash common.Hash) (bonds, funds fixedpoint.FixedPoint) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	f, ok := a.fills[hash]
	if !ok {
		return fixedpoint.Zero(), fixedpoint.Zero()
	}
	return f.bonds, f.funds
}

// Remaining returns how many bonds of the declared amount are still open.
func (a *OrderAmounts) Remaining(o *OrderIntent, hash common.Hash) (fixedpoint.FixedPoint, error) {
	bonds, _ := a.Used(hash)
	return o.BondAmount.Sub(bonds)
}

// IsCancelled reports whether the hash has been cancelled.
func (a *OrderAmounts) IsCancelled(hash common.Hash) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cancelled[hash]
}

// Cancel marks a hash permanently unusable.
func (a *OrderAmounts) Cancel(hash common.Hash) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancelled[hash] = true
}

// Record accumulates a fill against an intent. The accumulated totals must
// stay inside the intent's declared bond and fund amounts; an arithmetic
// overflow here is reported as an error rather than wrapping.
func (a *OrderAmounts) Record(o *OrderIntent, hash common.Hash, bonds, funds fixedpoint.FixedPoint) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancelled[hash] {
		return ErrOrderCancelled
	}
	f, ok := a.fills[hash]
	if !ok {
		f = &fill{bonds: fixedpoint.Zero(), funds: fixedpoint.Zero()}
	}
	newBonds, err := f.bonds.Add(bonds)
	if err != nil {
		return err
	}
	newFunds, err := f.funds.Add(funds)
	if err != nil {
		return err
	}
	if newBonds.Gt(o.BondAmount) || newFunds.Gt(o.FundAmount) {
		return ErrFillExceedsOrder
	}
	a.fills[hash] = &fill{bonds: newBonds, funds: newFunds}
	return nil
}
