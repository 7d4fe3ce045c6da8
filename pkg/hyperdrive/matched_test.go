package hyperdrive

import (
	"errors"
	"testing"
	"time"

	"github.com/delvtech/hyperdrive-sub010/pkg/assetid"
	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
	"github.com/delvtech/hyperdrive-sub010/pkg/ledger"
)

func TestMintBurnMatchedRoundTrip(t *testing.T) {
	p, _, _ := newTestPool(t)
	initTestPool(t, p)
	before := p.State()

	bonds := fixedpoint.Scaled(20)
	maturity := p.LatestCheckpointTime() + testPositionDuration
	if err := p.MintMatched(bob, alice, maturity, bonds, bonds); err != nil {
		t.Fatalf("MintMatched: %v", err)
	}

	st := p.State()
	if !st.LongsOutstanding.Eq(bonds) || !st.ShortsOutstanding.Eq(bonds) {
		t.Fatalf("outstanding = %s/%s, want %s both sides", st.LongsOutstanding, st.ShortsOutstanding, bonds)
	}

	longPaid, shortPaid, err := p.BurnMatched(bob, alice, maturity, bonds, fixedpoint.Scaled(12), fixedpoint.Scaled(8), alice, false)
	if err != nil {
		t.Fatalf("BurnMatched: %v", err)
	}
	if !longPaid.Eq(fixedpoint.Scaled(12)) {
		t.Fatalf("long paid %s, want 12", longPaid)
	}
	if !shortPaid.Eq(fixedpoint.Scaled(8)) {
		t.Fatalf("short paid %s, want 8", shortPaid)
	}

	// Claims above the backing value are rejected before any state change.
	if err := p.MintMatched(bob, alice, maturity, bonds, bonds); err != nil {
		t.Fatalf("MintMatched again: %v", err)
	}
	_, _, err = p.BurnMatched(bob, alice, maturity, bonds, fixedpoint.Scaled(15), fixedpoint.Scaled(15), alice, false)
	if !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("err = %v, want ErrInsufficientLiquidity", err)
	}
	if _, _, err = p.BurnMatched(bob, alice, maturity, bonds, fixedpoint.Scaled(10), fixedpoint.Scaled(10), alice, false); err != nil {
		t.Fatalf("BurnMatched exact split: %v", err)
	}

	after := p.State()
	assertClose(t, after.ShareReserves, before.ShareReserves, 10, "share reserves round trip")
	assertClose(t, after.BondReserves, before.BondReserves, 1e6, "bond reserves round trip")
	if !after.LongsOutstanding.IsZero() || !after.ShortsOutstanding.IsZero() {
		t.Fatalf("outstanding not cleared: %s/%s", after.LongsOutstanding, after.ShortsOutstanding)
	}
}

func TestMintMatchedLeavesSpotRateUnchanged(t *testing.T) {
	p, _, _ := newTestPool(t)
	initTestPool(t, p)

	before, err := SpotRate(p.State(), p.Config())
	if err != nil {
		t.Fatalf("SpotRate: %v", err)
	}
	maturity := p.LatestCheckpointTime() + testPositionDuration
	if err := p.MintMatched(bob, alice, maturity, fixedpoint.Scaled(50), fixedpoint.Scaled(50)); err != nil {
		t.Fatalf("MintMatched: %v", err)
	}
	after, err := SpotRate(p.State(), p.Config())
	if err != nil {
		t.Fatalf("SpotRate: %v", err)
	}
	assertClose(t, after, before, 1e6, "spot rate across matched mint")
}

func TestMintMatchedRejectsBadMaturity(t *testing.T) {
	p, _, _ := newTestPool(t)
	initTestPool(t, p)

	bonds := fixedpoint.Scaled(5)
	latest := p.LatestCheckpointTime()
	for _, maturity := range []uint64{
		latest,
		latest + 1,
		latest + testPositionDuration + testCheckpointDuration,
	} {
		err := p.MintMatched(bob, alice, maturity, bonds, bonds)
		if !errors.Is(err, ErrInvalidTimestamp) {
			t.Fatalf("maturity %d: err = %v, want ErrInvalidTimestamp", maturity, err)
		}
	}
}

func TestMintMatchedRejectsUnderfundedPair(t *testing.T) {
	p, _, _ := newTestPool(t)
	initTestPool(t, p)

	bonds := fixedpoint.Scaled(10)
	funding := fixedpoint.Scaled(9)
	maturity := p.LatestCheckpointTime() + testPositionDuration
	err := p.MintMatched(bob, alice, maturity, bonds, funding)
	if !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("err = %v, want ErrInsufficientLiquidity", err)
	}
}

func TestMatchedPairMatures(t *testing.T) {
	p, _, clock := newTestPool(t)
	initTestPool(t, p)
	before := p.State()

	bonds := fixedpoint.Scaled(20)
	maturity := p.LatestCheckpointTime() + testPositionDuration
	if err := p.MintMatched(bob, alice, maturity, bonds, bonds); err != nil {
		t.Fatalf("MintMatched: %v", err)
	}

	clock.Advance(time.Duration(testPositionDuration) * time.Second)
	if err := p.Checkpoint(maturity); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}

	// The long claims face value; the short earned no variable interest at a
	// flat share price, so reserves return to where they started.
	proceeds, err := p.CloseLong(bob, maturity, bonds, fixedpoint.Zero(), Options{Destination: bob})
	if err != nil {
		t.Fatalf("CloseLong: %v", err)
	}
	assertClose(t, proceeds, bonds, 10, "matured matched long")
	shortProceeds, err := p.CloseShort(alice, maturity, bonds, fixedpoint.Zero(), Options{Destination: alice})
	if err != nil {
		t.Fatalf("CloseShort: %v", err)
	}
	if !shortProceeds.IsZero() {
		t.Fatalf("flat share price paid short interest %s", shortProceeds)
	}

	after := p.State()
	assertClose(t, after.ShareReserves, before.ShareReserves, 10, "share reserves after maturation")
}

func TestBurnMatchedRequiresBothLegs(t *testing.T) {
	p, _, _ := newTestPool(t)
	initTestPool(t, p)

	bonds := fixedpoint.Scaled(10)
	maturity := p.LatestCheckpointTime() + testPositionDuration
	if err := p.MintMatched(bob, alice, maturity, bonds, bonds); err != nil {
		t.Fatalf("MintMatched: %v", err)
	}
	// bob holds the long leg only.
	_, _, err := p.BurnMatched(alice, bob, maturity, bonds, fixedpoint.Zero(), fixedpoint.Zero(), alice, false)
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
}

func TestTransferPosition(t *testing.T) {
	p, _, _ := newTestPool(t)
	initTestPool(t, p)

	deposit := fixedpoint.Scaled(10)
	maturity, bonds, err := p.OpenLong(bob, deposit, fixedpoint.Zero(), fixedpoint.Zero(), Options{Destination: bob})
	if err != nil {
		t.Fatalf("OpenLong: %v", err)
	}
	if err := p.TransferPosition(assetid.Long, maturity, bob, alice, bonds); err != nil {
		t.Fatalf("TransferPosition: %v", err)
	}
	// alice can now close the position bob opened.
	if _, err := p.CloseLong(alice, maturity, bonds, fixedpoint.Zero(), Options{Destination: alice}); err != nil {
		t.Fatalf("CloseLong after transfer: %v", err)
	}
	if _, err := p.CloseLong(bob, maturity, bonds, fixedpoint.Zero(), Options{Destination: bob}); !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
}

func TestMintCost(t *testing.T) {
	p, _, _ := newTestPool(t)
	cost, err := p.MintCost(fixedpoint.Scaled(10))
	if err != nil {
		t.Fatalf("MintCost: %v", err)
	}
	// Zero fees: cost is exactly par.
	if !cost.Eq(fixedpoint.Scaled(10)) {
		t.Fatalf("cost = %s, want par", cost)
	}
}
