package crypto

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP712Domain is the domain separator for typed-data signing. It binds
// signatures to one deployment so an intent signed for one pool network
// cannot be replayed on another.
type EIP712Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// OrderIntentEIP712 is the typed-data form of a signed order intent. Amounts
// are 18-decimal fixed-point values carried as uint256.
type OrderIntentEIP712 struct {
	Trader             common.Address
	Counterparty       common.Address
	Pool               common.Address
	FundAmount         *big.Int
	BondAmount         *big.Int
	MinVaultSharePrice *big.Int
	Destination        common.Address
	AsBase             bool
	OrderType          uint8
	MinMaturityTime    *big.Int
	MaxMaturityTime    *big.Int
	Expiry             *big.Int
	Salt               *big.Int
}

// EIP712Signer hashes and signs order intents for one domain.
type EIP712Signer struct {
	domain EIP712Domain
}

func NewEIP712Signer(domain EIP712Domain) *EIP712Signer {
	return &EIP712Signer{domain: domain}
}

// DefaultDomain is the off-chain signing domain: no verifying contract,
// local dev chain id.
func DefaultDomain() EIP712Domain {
	return EIP712Domain{
		Name:              "Hyperdrive",
		Version:           "1",
		ChainID:           big.NewInt(1337),
		VerifyingContract: common.Address{},
	}
}

func (e *EIP712Signer) typedData(intent *OrderIntentEIP712) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Options": []apitypes.Type{
				{Name: "destination", Type: "address"},
				{Name: "asBase", Type: "bool"},
			},
			"OrderIntent": []apitypes.Type{
				{Name: "trader", Type: "address"},
				{Name: "counterparty", Type: "address"},
				{Name: "pool", Type: "address"},
				{Name: "fundAmount", Type: "uint256"},
				{Name: "bondAmount", Type: "uint256"},
				{Name: "minVaultSharePrice", Type: "uint256"},
				{Name: "options", Type: "Options"},
				{Name: "orderType", Type: "uint8"},
				{Name: "minMaturityTime", Type: "uint256"},
				{Name: "maxMaturityTime", Type: "uint256"},
				{Name: "expiry", Type: "uint256"},
				{Name: "salt", Type: "uint256"},
			},
		},
		PrimaryType: "OrderIntent",
		Domain: apitypes.TypedDataDomain{
			Name:              e.domain.Name,
			Version:           e.domain.Version,
			ChainId:           (*math.HexOrDecimal256)(e.domain.ChainID),
			VerifyingContract: e.domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"trader":             intent.Trader.Hex(),
			"counterparty":       intent.Counterparty.Hex(),
			"pool":               intent.Pool.Hex(),
			"fundAmount":         intent.FundAmount.String(),
			"bondAmount":         intent.BondAmount.String(),
			"minVaultSharePrice": intent.MinVaultSharePrice.String(),
			"options": apitypes.TypedDataMessage{
				"destination": intent.Destination.Hex(),
				"asBase":      intent.AsBase,
			},
			"orderType":       fmt.Sprintf("%d", intent.OrderType),
			"minMaturityTime": intent.MinMaturityTime.String(),
			"maxMaturityTime": intent.MaxMaturityTime.String(),
			"expiry":          intent.Expiry.String(),
			"salt":            intent.Salt.String(),
		},
	}
}

// HashOrderIntent computes the EIP-712 digest an intent signer commits to.
func (e *EIP712Signer) HashOrderIntent(intent *OrderIntentEIP712) ([]byte, error) {
	typedData := e.typedData(intent)

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}
	typedDataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	// digest = keccak256("\x19\x01" || domainSeparator || structHash)
	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(typedDataHash)))
	return crypto.Keccak256Hash(rawData).Bytes(), nil
}

// SignOrderIntent hashes and signs an intent with the given key.
func (e *EIP712Signer) SignOrderIntent(signer *Signer, intent *OrderIntentEIP712) ([]byte, error) {
	hash, err := e.HashOrderIntent(intent)
	if err != nil {
		return nil, fmt.Errorf("failed to hash intent: %w", err)
	}
	signature, err := signer.Sign(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to sign intent: %w", err)
	}
	return signature, nil
}

// VerifyOrderIntentSignature reports whether signature binds the intent to
// its claimed trader.
func (e *EIP712Signer) VerifyOrderIntentSignature(intent *OrderIntentEIP712, signature []byte) (bool, error) {
	recovered, err := e.RecoverOrderIntentSigner(intent, signature)
	if err != nil {
		return false, err
	}
	return recovered == intent.Trader, nil
}

// RecoverOrderIntentSigner recovers the address that signed an intent.
func (e *EIP712Signer) RecoverOrderIntentSigner(intent *OrderIntentEIP712, signature []byte) (common.Address, error) {
	hash, err := e.HashOrderIntent(intent)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to hash intent: %w", err)
	}
	return RecoverAddress(hash, signature)
}
