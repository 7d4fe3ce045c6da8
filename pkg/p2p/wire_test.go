package p2p

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/delvtech/hyperdrive-sub010/pkg/crypto"
	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
	"github.com/delvtech/hyperdrive-sub010/pkg/matching"
)

func TestOrderWirePreservesHash(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	domain := crypto.NewEIP712Signer(crypto.DefaultDomain())

	o := &matching.OrderIntent{
		Trader:             key.Address(),
		Pool:               common.HexToAddress("0x0101"),
		FundAmount:         fixedpoint.Scaled(10),
		BondAmount:         fixedpoint.Scaled(50),
		MinVaultSharePrice: fixedpoint.One(),
		Destination:        key.Address(),
		AsBase:             true,
		OrderType:          matching.OpenLong,
		MinMaturityTime:    86400,
		MaxMaturityTime:    86400 * 400,
		Expiry:             1 << 40,
		Salt:               7,
	}
	if err := o.Sign(domain, key); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	want, err := o.Hash(domain)
	if err != nil {
		t.Fatal(err)
	}

	payload, err := gobEncode(toWire(o))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var w OrderWire
	if err := gobDecode(payload, &w); err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := fromWire(w)

	hash, err := got.Hash(domain)
	if err != nil {
		t.Fatal(err)
	}
	if hash != want {
		t.Fatalf("wire round trip changed the intent hash: %s != %s", hash.Hex(), want.Hex())
	}
	if string(got.Signature) != string(o.Signature) {
		t.Fatal("wire round trip changed the signature")
	}
}
