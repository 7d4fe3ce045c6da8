package vault

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
)

var sink = common.HexToAddress("0x3333333333333333333333333333333333333333")

func TestSharePriceRescalesRayIndex(t *testing.T) {
	v := NewMockVault()
	// Index 1.5 in ray scale.
	v.SetIndexRay(fixedpoint.MustFromDecimal("1500000000000000000000000000"))

	price, err := v.SharePrice()
	if err != nil {
		t.Fatalf("share price: %v", err)
	}
	want := fixedpoint.MustFromDecimal("1500000000000000000")
	if !price.Eq(want) {
		t.Errorf("share price = %s, want %s", price, want)
	}
}

func TestDepositWithdrawRoundTrip(t *testing.T) {
	v := NewMockVault()
	v.SetIndexRay(fixedpoint.MustFromDecimal("2000000000000000000000000000"))

	shares, refund, err := v.DepositBase(fixedpoint.Scaled(10))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if !shares.Eq(fixedpoint.Scaled(5)) {
		t.Errorf("shares = %s, want 5e18 at index 2", shares)
	}
	if !refund.IsZero() {
		t.Errorf("refund = %s, want 0 for an even deposit", refund)
	}
	if !v.TotalShares().Eq(fixedpoint.Scaled(5)) {
		t.Errorf("total shares = %s, want 5e18", v.TotalShares())
	}

	base, err := v.WithdrawBase(shares, sink)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !base.Eq(fixedpoint.Scaled(10)) {
		t.Errorf("withdrawn base = %s, want 10e18", base)
	}
	if !v.TotalShares().IsZero() {
		t.Errorf("total shares = %s, want 0 after withdrawal", v.TotalShares())
	}
}

func TestConvertRoundTrip(t *testing.T) {
	v := NewMockVault()
	v.SetIndexRay(fixedpoint.MustFromDecimal("1250000000000000000000000000"))

	shares, err := v.ConvertToShares(fixedpoint.Scaled(10))
	if err != nil {
		t.Fatalf("to shares: %v", err)
	}
	back, err := v.ConvertToBase(shares)
	if err != nil {
		t.Fatalf("to base: %v", err)
	}
	if !back.Eq(fixedpoint.Scaled(10)) {
		t.Errorf("round trip = %s, want 10e18", back)
	}
}

func TestWithdrawTooManyShares(t *testing.T) {
	v := NewMockVault()
	if _, err := v.WithdrawBase(fixedpoint.Scaled(1), sink); err == nil {
		t.Fatal("withdrawing from an empty vault succeeded")
	}
}
