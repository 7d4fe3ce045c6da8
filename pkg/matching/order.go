package matching

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/delvtech/hyperdrive-sub010/pkg/crypto"
	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
)

// OrderType selects which pool action an intent authorizes.
type OrderType uint8

const (
	OpenLong OrderType = iota + 1
	OpenShort
	CloseLong
	CloseShort
)

func (t OrderType) String() string {
	switch t {
	case OpenLong:
		return "open_long"
	case OpenShort:
		return "open_short"
	case CloseLong:
		return "close_long"
	case CloseShort:
		return "close_short"
	default:
		return fmt.Sprintf("order_type(%d)", uint8(t))
	}
}

func (t OrderType) isOpen() bool { return t == OpenLong || t == OpenShort }
func (t OrderType) isLong() bool { return t == OpenLong || t == CloseLong }
func (t OrderType) valid() bool  { return t >= OpenLong && t <= CloseShort }

var (
	ErrInvalidOrderType = errors.New("invalid order type")
	ErrBadMaturityRange = errors.New("invalid maturity range")
	ErrZeroDestination  = errors.New("zero destination")
)

// OrderIntent is a signed commitment to trade. FundAmount is the maximum an
// opening trader will pay, or the minimum a closing trader will accept, for
// the full BondAmount; partial fills scale it pro rata.
type OrderIntent struct {
	Trader common.Address
	// Counterparty restricts who may fill the order; zero allows anyone.
	Counterparty       common.Address
	Pool               common.Address
	FundAmount         fixedpoint.FixedPoint
	BondAmount         fixedpoint.FixedPoint
	MinVaultSharePrice fixedpoint.FixedPoint
	Destination        common.Address
	AsBase             bool
	OrderType          OrderType
	// Close orders pin one maturity (min == max); open orders accept any
	// maturity inside the window.
	MinMaturityTime uint64
	MaxMaturityTime uint64
	Expiry          uint64
	Salt            uint64
	Signature       []byte
}

// wellFormed checks the intent's internal consistency, independent of any
// counterparty or pool state.
func (o *OrderIntent) wellFormed() error {
	if !o.OrderType.valid() {
		return ErrInvalidOrderType
	}
	if o.Destination == (common.Address{}) {
		return ErrZeroDestination
	}
	if o.BondAmount.IsZero() {
		return fmt.Errorf("%w: zero bond amount", ErrInvalidOrderType)
	}
	if o.MinMaturityTime > o.MaxMaturityTime {
		return ErrBadMaturityRange
	}
	if !o.OrderType.isOpen() && o.MinMaturityTime != o.MaxMaturityTime {
		return fmt.Errorf("%w: close orders pin a single maturity", ErrBadMaturityRange)
	}
	return nil
}

func (o *OrderIntent) eip712() *crypto.OrderIntentEIP712 {
	return &crypto.OrderIntentEIP712{
		Trader:             o.Trader,
		Counterparty:       o.Counterparty,
		Pool:               o.Pool,
		FundAmount:         o.FundAmount.Raw().ToBig(),
		BondAmount:         o.BondAmount.Raw().ToBig(),
		MinVaultSharePrice: o.MinVaultSharePrice.Raw().ToBig(),
		Destination:        o.Destination,
		AsBase:             o.AsBase,
		OrderType:          uint8(o.OrderType),
		MinMaturityTime:    new(big.Int).SetUint64(o.MinMaturityTime),
		MaxMaturityTime:    new(big.Int).SetUint64(o.MaxMaturityTime),
		Expiry:             new(big.Int).SetUint64(o.Expiry),
		Salt:               new(big.Int).SetUint64(o.Salt),
	}
}

// Hash computes the intent's EIP-712 digest under the given signing domain.
// The hash identifies the order for fill accounting and cancellation.
func (o *OrderIntent) Hash(signer *crypto.EIP712Signer) (common.Hash, error) {
	digest, err := signer.HashOrderIntent(o.eip712())
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(digest), nil
}

// Sign hashes the intent and attaches the key's signature.
func (o *OrderIntent) Sign(domain *crypto.EIP712Signer, key *crypto.Signer) error {
	hash, err := o.Hash(domain)
	if err != nil {
		return err
	}
	sig, err := key.Sign(hash.Bytes())
	if err != nil {
		return err
	}
	o.Signature = sig
	return nil
}
