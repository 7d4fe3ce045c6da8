package crypto

import (
	"github.com/ethereum/go-ethereum/common"
)

// SignatureVerifier checks that a digest was authorized by a signer address.
// The matching engine takes this as an interface so delegated signing
// schemes can slot in without touching order validation.
type SignatureVerifier interface {
	Verify(hash, signature []byte, signer common.Address) bool
}

// EOAVerifier verifies plain externally-owned-account signatures by
// recovering the signing address.
type EOAVerifier struct{}

func (EOAVerifier) Verify(hash, signature []byte, signer common.Address) bool {
	return VerifySignature(signer, hash, signature)
}

// DelegatedVerifier accepts signatures from an allowed set of session keys
// acting for a trader. The trader's own key always remains valid.
type DelegatedVerifier struct {
	// Delegates maps a trader to the session keys allowed to sign for it.
	Delegates map[common.Address][]common.Address
}

func (d *DelegatedVerifier) Verify(hash, signature []byte, signer common.Address) bool {
	recovered, err := RecoverAddress(hash, signature)
	if err != nil {
		return false
	}
	if recovered == signer {
		return true
	}
	for _, delegate := range d.Delegates[signer] {
		if recovered == delegate {
			return true
		}
	}
	return false
}
