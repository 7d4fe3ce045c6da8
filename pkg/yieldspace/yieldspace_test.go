package yieldspace

import (
	"errors"
	"testing"

	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
)

func testCurve(t fixedpoint.FixedPoint) Curve {
	return Curve{
		ShareReserves:     fixedpoint.Scaled(100),
		BondReserves:      fixedpoint.Scaled(100),
		SharePrice:        fixedpoint.One(),
		InitialSharePrice: fixedpoint.One(),
		TimeParameter:     t,
	}
}

func absDiff(a, b fixedpoint.FixedPoint) fixedpoint.FixedPoint {
	if a.Gte(b) {
		d, _ := a.Sub(b)
		return d
	}
	d, _ := b.Sub(a)
	return d
}

// Constant-sum edge of the curve: with t = 1 the invariant is linear, so a
// ten bond sale into a balanced 100/100 pool pays out exactly ten shares.
func TestSharesOutGivenBondsInGoldenVector(t *testing.T) {
	cv := testCurve(fixedpoint.One())

	out, err := cv.SharesOutGivenBondsIn(fixedpoint.Scaled(10))
	if err != nil {
		t.Fatalf("shares out: %v", err)
	}
	if !out.Eq(fixedpoint.Scaled(10)) {
		t.Errorf("shares out = %s, want exactly 10e18", out)
	}
}

func TestInvariantUpDominatesDown(t *testing.T) {
	cv := testCurve(fixedpoint.MustFromDecimal("900000000000000000"))
	up, err := cv.KUp()
	if err != nil {
		t.Fatalf("k up: %v", err)
	}
	down, err := cv.KDown()
	if err != nil {
		t.Fatalf("k down: %v", err)
	}
	if up.Lt(down) {
		t.Errorf("k up %s < k down %s", up, down)
	}
}

func TestBondsOutMonotoneInSharesIn(t *testing.T) {
	cv := testCurve(fixedpoint.MustFromDecimal("900000000000000000"))

	prev := fixedpoint.Zero()
	for _, n := range []uint64{1, 2, 5, 10, 20} {
		out, err := cv.BondsOutGivenSharesIn(fixedpoint.Scaled(n))
		if err != nil {
			t.Fatalf("bonds out for %d shares: %v", n, err)
		}
		if !out.Gt(prev) {
			t.Errorf("bonds out for %d shares = %s, not above previous %s", n, out, prev)
		}
		prev = out
	}
}

func TestSharesInInvertsBondsOut(t *testing.T) {
	cv := testCurve(fixedpoint.MustFromDecimal("900000000000000000"))

	dz := fixedpoint.Scaled(7)
	dy, err := cv.BondsOutGivenSharesIn(dz)
	if err != nil {
		t.Fatalf("bonds out: %v", err)
	}
	back, err := cv.SharesInGivenBondsOutUp(dy)
	if err != nil {
		t.Fatalf("shares in: %v", err)
	}

	// The overestimating solve recovers the original input to within
	// accumulated pow tolerance.
	tol := fixedpoint.MustFromDecimal("1000000000")
	if absDiff(back, dz).Gt(tol) {
		t.Errorf("shares in = %s, want about %s", back, dz)
	}
	down, err := cv.SharesInGivenBondsOutDown(dy)
	if err != nil {
		t.Fatalf("shares in down: %v", err)
	}
	if down.Gt(back) {
		t.Errorf("down-rounded shares in %s exceeds up-rounded %s", down, back)
	}
}

func TestSharesInGivenBondsOutRejectsDrain(t *testing.T) {
	cv := testCurve(fixedpoint.MustFromDecimal("900000000000000000"))
	_, err := cv.SharesInGivenBondsOutUp(fixedpoint.Scaled(101))
	if !errors.Is(err, ErrInvalidCurveState) {
		t.Fatalf("draining buy: got %v, want ErrInvalidCurveState", err)
	}
}

func TestSpotPriceBelowOneWhenBondsRich(t *testing.T) {
	cv := testCurve(fixedpoint.MustFromDecimal("900000000000000000"))
	cv.BondReserves = fixedpoint.Scaled(150)

	p, err := cv.SpotPrice()
	if err != nil {
		t.Fatalf("spot price: %v", err)
	}
	if !p.Lt(fixedpoint.One()) {
		t.Errorf("spot price = %s, want below one", p)
	}
}

func TestSpotPriceAtParity(t *testing.T) {
	cv := testCurve(fixedpoint.MustFromDecimal("900000000000000000"))
	p, err := cv.SpotPrice()
	if err != nil {
		t.Fatalf("spot price: %v", err)
	}
	tol := fixedpoint.MustFromDecimal("1000000000")
	if absDiff(p, fixedpoint.One()).Gt(tol) {
		t.Errorf("spot price = %s, want about one", p)
	}
}

func TestMaxBuyBondsOutRespectsPriceCap(t *testing.T) {
	cv := testCurve(fixedpoint.MustFromDecimal("900000000000000000"))
	cv.BondReserves = fixedpoint.Scaled(150)

	maxOut, err := cv.MaxBuyBondsOut()
	if err != nil {
		t.Fatalf("max buy bonds out: %v", err)
	}
	if maxOut.IsZero() {
		t.Fatal("max buy is zero for a bonds-rich pool")
	}
	if maxOut.Gt(fixedpoint.Scaled(50)) {
		t.Errorf("max buy %s exceeds the reserve imbalance", maxOut)
	}

	// Buying the max must still be feasible.
	if _, err := cv.SharesInGivenBondsOutUp(maxOut); err != nil {
		t.Errorf("buying max bonds failed: %v", err)
	}
}

func TestMaxBuySharesInMatchesBondsOut(t *testing.T) {
	cv := testCurve(fixedpoint.MustFromDecimal("900000000000000000"))
	cv.BondReserves = fixedpoint.Scaled(150)

	dzMax, err := cv.MaxBuySharesIn()
	if err != nil {
		t.Fatalf("max buy shares in: %v", err)
	}
	dyMax, err := cv.MaxBuyBondsOut()
	if err != nil {
		t.Fatalf("max buy bonds out: %v", err)
	}

	charged, err := cv.SharesInGivenBondsOutUp(dyMax)
	if err != nil {
		t.Fatalf("shares in for max bonds: %v", err)
	}
	tol := fixedpoint.MustFromDecimal("10000000000")
	if absDiff(charged, dzMax).Gt(tol) {
		t.Errorf("max shares in = %s, charge for max bonds = %s", dzMax, charged)
	}
}

func TestMaxSellBondsInStopsAtFloor(t *testing.T) {
	cv := testCurve(fixedpoint.MustFromDecimal("900000000000000000"))

	maxIn, err := cv.MaxSellBondsIn(fixedpoint.One())
	if err != nil {
		t.Fatalf("max sell bonds in: %v", err)
	}
	if maxIn.IsZero() {
		t.Fatal("max sell is zero with reserves far above the floor")
	}

	out, err := cv.SharesOutGivenBondsIn(maxIn)
	if err != nil {
		t.Fatalf("selling max bonds failed: %v", err)
	}
	// The payout must leave at least the floor in the pool.
	remaining, err := cv.ShareReserves.Sub(out)
	if err != nil {
		t.Fatalf("remaining reserves: %v", err)
	}
	if remaining.Lt(fixedpoint.One()) {
		t.Errorf("selling max leaves %s shares, below the floor", remaining)
	}
}
