package p2p

import (
	"bytes"
	"encoding/gob"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
	"github.com/delvtech/hyperdrive-sub010/pkg/matching"
)

func init() {
	gob.Register(OrderWire{})
	gob.Register(CancelWire{})
}

// OrderWire is the gossip form of a signed order intent. Fixed-point amounts
// travel as big-endian 32-byte words so the gob payload stays stable across
// versions of the arithmetic package.
type OrderWire struct {
	Trader             common.Address
	Counterparty       common.Address
	Pool               common.Address
	FundAmount         [32]byte
	BondAmount         [32]byte
	MinVaultSharePrice [32]byte
	Destination        common.Address
	AsBase             bool
	OrderType          uint8
	MinMaturityTime    uint64
	MaxMaturityTime    uint64
	Expiry             uint64
	Salt               uint64
	Signature          []byte
}

// CancelWire carries a signed intent whose hash the signer wants voided.
// The full intent travels so receivers can recompute the hash and check the
// signature themselves.
type CancelWire struct {
	Order OrderWire
}

func toWire(o *matching.OrderIntent) OrderWire {
	return OrderWire{
		Trader:             o.Trader,
		Counterparty:       o.Counterparty,
		Pool:               o.Pool,
		FundAmount:         o.FundAmount.Bytes32(),
		BondAmount:         o.BondAmount.Bytes32(),
		MinVaultSharePrice: o.MinVaultSharePrice.Bytes32(),
		Destination:        o.Destination,
		AsBase:             o.AsBase,
		OrderType:          uint8(o.OrderType),
		MinMaturityTime:    o.MinMaturityTime,
		MaxMaturityTime:    o.MaxMaturityTime,
		Expiry:             o.Expiry,
		Salt:               o.Salt,
		Signature:          o.Signature,
	}
}

func fromWire(w OrderWire) *matching.OrderIntent {
	return &matching.OrderIntent{
		Trader:             w.Trader,
		Counterparty:       w.Counterparty,
		Pool:               w.Pool,
		FundAmount:         fromWord(w.FundAmount),
		BondAmount:         fromWord(w.BondAmount),
		MinVaultSharePrice: fromWord(w.MinVaultSharePrice),
		Destination:        w.Destination,
		AsBase:             w.AsBase,
		OrderType:          matching.OrderType(w.OrderType),
		MinMaturityTime:    w.MinMaturityTime,
		MaxMaturityTime:    w.MaxMaturityTime,
		Expiry:             w.Expiry,
		Salt:               w.Salt,
		Signature:          w.Signature,
	}
}

func fromWord(w [32]byte) fixedpoint.FixedPoint {
	return fixedpoint.FromRaw(new(uint256.Int).SetBytes(w[:]))
}

func gobEncode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gobDecode(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
