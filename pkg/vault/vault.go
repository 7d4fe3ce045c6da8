// Package vault abstracts the external yield source. The pool core deposits
// base collateral, receives yield-bearing shares, and reads the exchange rate
// between the two. Adapters for real lending or staking protocols implement
// this interface; MockVault backs the tests and the standalone node.
package vault

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
)

var ErrInsufficientShares = errors.New("insufficient vault shares")

// Vault is the yield-source adapter consumed by the pool.
type Vault interface {
	// DepositBase deposits base collateral and returns the shares minted
	// plus any un-depositable remainder refunded to the caller.
	DepositBase(amount fixedpoint.FixedPoint) (shares, refund fixedpoint.FixedPoint, err error)
	// DepositShares accepts shares directly.
	DepositShares(amount fixedpoint.FixedPoint) error
	// WithdrawBase redeems shares for base collateral paid to destination.
	WithdrawBase(shares fixedpoint.FixedPoint, destination common.Address) (fixedpoint.FixedPoint, error)
	// WithdrawShares transfers shares out without converting.
	WithdrawShares(shares fixedpoint.FixedPoint, destination common.Address) error
	ConvertToBase(shares fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error)
	ConvertToShares(base fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error)
	TotalShares() fixedpoint.FixedPoint
	// SharePrice is the base value of one share, the pool's vault share
	// price c.
	SharePrice() (fixedpoint.FixedPoint, error)
}
