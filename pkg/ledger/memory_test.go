package ledger

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/delvtech/hyperdrive-sub010/pkg/assetid"
	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
)

var (
	alice = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob   = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func TestMintBurnSupply(t *testing.T) {
	l := NewMemoryLedger()
	id := assetid.MustEncode(assetid.Long, 1700000000)

	if err := l.Mint(id, alice, fixedpoint.Scaled(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if got := l.BalanceOf(id, alice); !got.Eq(fixedpoint.Scaled(10)) {
		t.Errorf("balance = %s, want 10e18", got)
	}
	if got := l.TotalSupply(id); !got.Eq(fixedpoint.Scaled(10)) {
		t.Errorf("supply = %s, want 10e18", got)
	}

	if err := l.Burn(id, alice, fixedpoint.Scaled(4)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if got := l.BalanceOf(id, alice); !got.Eq(fixedpoint.Scaled(6)) {
		t.Errorf("balance after burn = %s, want 6e18", got)
	}
	if got := l.TotalSupply(id); !got.Eq(fixedpoint.Scaled(6)) {
		t.Errorf("supply after burn = %s, want 6e18", got)
	}
}

func TestBurnInsufficientBalance(t *testing.T) {
	l := NewMemoryLedger()
	id := assetid.MustEncode(assetid.Short, 1700000000)

	if err := l.Mint(id, alice, fixedpoint.Scaled(1)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := l.Burn(id, alice, fixedpoint.Scaled(2)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("overburn: got %v, want ErrInsufficientBalance", err)
	}
	// The failed burn must not touch the balance.
	if got := l.BalanceOf(id, alice); !got.Eq(fixedpoint.Scaled(1)) {
		t.Errorf("balance = %s, want 1e18", got)
	}
}

func TestTransfer(t *testing.T) {
	l := NewMemoryLedger()
	id := assetid.MustEncode(assetid.LP, 0)

	if err := l.Mint(id, alice, fixedpoint.Scaled(5)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := l.Transfer(id, alice, bob, fixedpoint.Scaled(3)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := l.BalanceOf(id, bob); !got.Eq(fixedpoint.Scaled(3)) {
		t.Errorf("bob balance = %s, want 3e18", got)
	}
	if got := l.TotalSupply(id); !got.Eq(fixedpoint.Scaled(5)) {
		t.Errorf("supply = %s, want unchanged 5e18", got)
	}
	if err := l.Transfer(id, alice, bob, fixedpoint.Scaled(3)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("overtransfer: got %v, want ErrInsufficientBalance", err)
	}
}

func TestBalancesIsolatedPerAsset(t *testing.T) {
	l := NewMemoryLedger()
	long := assetid.MustEncode(assetid.Long, 1700000000)
	short := assetid.MustEncode(assetid.Short, 1700000000)

	if err := l.Mint(long, alice, fixedpoint.Scaled(7)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if got := l.BalanceOf(short, alice); !got.IsZero() {
		t.Errorf("short balance = %s, want 0", got)
	}
}
