package vault

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
)

// ray is the 1e27 scale lending protocols commonly quote their exchange
// index in. The mock stores its index in ray and rescales to 1e18 at the
// interface boundary.
var (
	ray        = fixedpoint.MustFromDecimal("1000000000000000000000000000")
	rayPerUnit = fixedpoint.MustFromDecimal("1000000000")
)

// MockVault is an in-process yield source with a settable exchange index.
type MockVault struct {
	mu          sync.RWMutex
	indexRay    fixedpoint.FixedPoint
	totalShares fixedpoint.FixedPoint
}

// NewMockVault starts at an exchange index of one.
func NewMockVault() *MockVault {
	return &MockVault{indexRay: ray}
}

// SetIndexRay replaces the exchange index, given in 1e27 scale. Raising it
// simulates yield accrual.
func (v *MockVault) SetIndexRay(index fixedpoint.FixedPoint) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.indexRay = index
}

func (v *MockVault) SharePrice() (fixedpoint.FixedPoint, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.indexRay.DivDown(rayPerUnit)
}

func (v *MockVault) ConvertToBase(shares fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	price, err := v.SharePrice()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	return shares.MulDown(price)
}

func (v *MockVault) ConvertToShares(base fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	price, err := v.SharePrice()
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}
	return base.DivDown(price)
}

func (v *MockVault) DepositBase(amount fixedpoint.FixedPoint) (fixedpoint.FixedPoint, fixedpoint.FixedPoint, error) {
	shares, err := v.ConvertToShares(amount)
	if err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}

	// Anything below one share's worth of base is refunded rather than
	// silently absorbed.
	used, err := v.ConvertToBase(shares)
	if err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}
	refund, err := amount.Sub(used)
	if err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	total, err := v.totalShares.Add(shares)
	if err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, fmt.Errorf("deposit %s base: %w", amount, err)
	}
	v.totalShares = total
	return shares, refund, nil
}

func (v *MockVault) DepositShares(amount fixedpoint.FixedPoint) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	total, err := v.totalShares.Add(amount)
	if err != nil {
		return fmt.Errorf("deposit %s shares: %w", amount, err)
	}
	v.totalShares = total
	return nil
}

func (v *MockVault) WithdrawBase(shares fixedpoint.FixedPoint, destination common.Address) (fixedpoint.FixedPoint, error) {
	base, err := v.ConvertToBase(shares)
	if err != nil {
		return fixedpoint.FixedPoint{}, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.totalShares.Lt(shares) {
		return fixedpoint.FixedPoint{}, fmt.Errorf("withdraw %s shares to %s: %w", shares, destination.Hex(), ErrInsufficientShares)
	}
	v.totalShares, _ = v.totalShares.Sub(shares)
	return base, nil
}

func (v *MockVault) WithdrawShares(shares fixedpoint.FixedPoint, destination common.Address) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.totalShares.Lt(shares) {
		return fmt.Errorf("withdraw %s shares to %s: %w", shares, destination.Hex(), ErrInsufficientShares)
	}
	v.totalShares, _ = v.totalShares.Sub(shares)
	return nil
}

func (v *MockVault) TotalShares() fixedpoint.FixedPoint {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.totalShares
}
