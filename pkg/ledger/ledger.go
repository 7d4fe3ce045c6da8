// Package ledger tracks position balances per (asset id, account) pair. The
// pool core mints and burns through this interface; an on-chain deployment
// would back it with the multi-token contract, the standalone node backs it
// with the in-memory implementation below.
package ledger

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientSupply  = errors.New("insufficient total supply")
)

// Ledger is the balance store consumed by the pool and matching engine.
type Ledger interface {
	BalanceOf(assetID *uint256.Int, account common.Address) fixedpoint.FixedPoint
	TotalSupply(assetID *uint256.Int) fixedpoint.FixedPoint
	Mint(assetID *uint256.Int, account common.Address, amount fixedpoint.FixedPoint) error
	Burn(assetID *uint256.Int, account common.Address, amount fixedpoint.FixedPoint) error
	Transfer(assetID *uint256.Int, from, to common.Address, amount fixedpoint.FixedPoint) error
}
