// Package assetid encodes position identifiers. Every position a trader can
// hold is a (kind, maturity) pair packed into a single 256-bit identifier so
// the ledger can treat all positions as balances under one key space.
package assetid

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// Kind tags the flavor of a position.
type Kind uint8

const (
	// LP is the liquidity provider token. It carries no maturity.
	LP Kind = iota
	// Long is a fixed-rate long position maturing at a checkpoint boundary.
	Long
	// Short is the corresponding variable-rate short position.
	Short
	// WithdrawalShare is the claim minted when LP withdrawal exceeds idle
	// liquidity.
	WithdrawalShare

	kindCount
)

// ErrInvalidAssetID is returned when an identifier does not decode to a known
// kind and a clean timestamp.
var ErrInvalidAssetID = errors.New("invalid asset id")

func (k Kind) String() string {
	switch k {
	case LP:
		return "LP"
	case Long:
		return "Long"
	case Short:
		return "Short"
	case WithdrawalShare:
		return "WithdrawalShare"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Encode packs a kind and maturity timestamp into an identifier. The kind
// occupies the top byte and the maturity the low 64 bits. LP and
// WithdrawalShare tokens are timeless, so their maturity must be zero.
func Encode(kind Kind, maturity uint64) (*uint256.Int, error) {
	if kind >= kindCount {
		return nil, fmt.Errorf("%w: unknown kind %d", ErrInvalidAssetID, kind)
	}
	if (kind == LP || kind == WithdrawalShare) && maturity != 0 {
		return nil, fmt.Errorf("%w: %s carries no maturity", ErrInvalidAssetID, kind)
	}
	if (kind == Long || kind == Short) && maturity == 0 {
		return nil, fmt.Errorf("%w: %s requires a maturity", ErrInvalidAssetID, kind)
	}
	id := new(uint256.Int).Lsh(uint256.NewInt(uint64(kind)), 248)
	return id.Or(id, uint256.NewInt(maturity)), nil
}

// MustEncode is Encode for identifiers known valid at compile time.
func MustEncode(kind Kind, maturity uint64) *uint256.Int {
	id, err := Encode(kind, maturity)
	if err != nil {
		panic(err)
	}
	return id
}

// Decode unpacks an identifier, rejecting unknown kinds and any set bits
// outside the kind byte and maturity field.
func Decode(id *uint256.Int) (Kind, uint64, error) {
	kindBits := new(uint256.Int).Rsh(id, 248)
	if !kindBits.IsUint64() || kindBits.Uint64() >= uint64(kindCount) {
		return 0, 0, fmt.Errorf("%w: unknown kind byte", ErrInvalidAssetID)
	}
	kind := Kind(kindBits.Uint64())

	rest := new(uint256.Int).Lsh(kindBits, 248)
	rest.Xor(rest, id)
	if !rest.IsUint64() {
		return 0, 0, fmt.Errorf("%w: corrupt middle bits", ErrInvalidAssetID)
	}
	maturity := rest.Uint64()

	if (kind == LP || kind == WithdrawalShare) && maturity != 0 {
		return 0, 0, fmt.Errorf("%w: %s carries no maturity", ErrInvalidAssetID, kind)
	}
	if (kind == Long || kind == Short) && maturity == 0 {
		return 0, 0, fmt.Errorf("%w: %s requires a maturity", ErrInvalidAssetID, kind)
	}
	return kind, maturity, nil
}
