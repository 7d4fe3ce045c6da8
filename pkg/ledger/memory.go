package ledger

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
)

// MemoryLedger is an in-process Ledger guarded by a RWMutex. Balances are
// keyed by the 32-byte asset id.
type MemoryLedger struct {
	mu       sync.RWMutex
	balances map[[32]byte]map[common.Address]fixedpoint.FixedPoint
	supplies map[[32]byte]fixedpoint.FixedPoint
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[[32]byte]map[common.Address]fixedpoint.FixedPoint),
		supplies: make(map[[32]byte]fixedpoint.FixedPoint),
	}
}

func (l *MemoryLedger) BalanceOf(assetID *uint256.Int, account common.Address) fixedpoint.FixedPoint {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[assetID.Bytes32()][account]
}

func (l *MemoryLedger) TotalSupply(assetID *uint256.Int) fixedpoint.FixedPoint {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.supplies[assetID.Bytes32()]
}

func (l *MemoryLedger) Mint(assetID *uint256.Int, account common.Address, amount fixedpoint.FixedPoint) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := assetID.Bytes32()
	supply, err := l.supplies[key].Add(amount)
	if err != nil {
		return fmt.Errorf("mint %s to %s: %w", amount, account.Hex(), err)
	}
	balance, err := l.balances[key][account].Add(amount)
	if err != nil {
		return fmt.Errorf("mint %s to %s: %w", amount, account.Hex(), err)
	}

	if l.balances[key] == nil {
		l.balances[key] = make(map[common.Address]fixedpoint.FixedPoint)
	}
	l.supplies[key] = supply
	l.balances[key][account] = balance
	return nil
}

func (l *MemoryLedger) Burn(assetID *uint256.Int, account common.Address, amount fixedpoint.FixedPoint) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := assetID.Bytes32()
	if l.balances[key][account].Lt(amount) {
		return fmt.Errorf("burn %s from %s: %w", amount, account.Hex(), ErrInsufficientBalance)
	}
	if l.supplies[key].Lt(amount) {
		return fmt.Errorf("burn %s from %s: %w", amount, account.Hex(), ErrInsufficientSupply)
	}

	balance, _ := l.balances[key][account].Sub(amount)
	supply, _ := l.supplies[key].Sub(amount)
	l.balances[key][account] = balance
	l.supplies[key] = supply
	return nil
}

func (l *MemoryLedger) Transfer(assetID *uint256.Int, from, to common.Address, amount fixedpoint.FixedPoint) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := assetID.Bytes32()
	if l.balances[key][from].Lt(amount) {
		return fmt.Errorf("transfer %s from %s: %w", amount, from.Hex(), ErrInsufficientBalance)
	}
	toBalance, err := l.balances[key][to].Add(amount)
	if err != nil {
		return fmt.Errorf("transfer %s to %s: %w", amount, to.Hex(), err)
	}

	fromBalance, _ := l.balances[key][from].Sub(amount)
	l.balances[key][from] = fromBalance
	l.balances[key][to] = toBalance
	return nil
}
