package hyperdrive

import (
	"testing"

	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
)

func TestBondReservesInvertAPR(t *testing.T) {
	cfg := testConfig(t)
	shares := fixedpoint.Scaled(1000)
	lpSupply := fixedpoint.Scaled(1000)

	for _, aprStr := range []string{
		"10000000000000000",
		"50000000000000000",
		"100000000000000000",
	} {
		apr := fixedpoint.MustFromDecimal(aprStr)
		bonds, err := CalculateBondReserves(shares, lpSupply, apr, cfg)
		if err != nil {
			t.Fatalf("CalculateBondReserves(%s): %v", aprStr, err)
		}
		got, err := CalculateAPRFromReserves(shares, bonds, lpSupply, cfg)
		if err != nil {
			t.Fatalf("CalculateAPRFromReserves(%s): %v", aprStr, err)
		}
		assertClose(t, got, apr, 1e6, "apr round trip "+aprStr)
	}
}

func TestSpotRateFallsAsLongsBuy(t *testing.T) {
	p, _, _ := newTestPool(t)
	initTestPool(t, p)

	before, err := SpotRate(p.State(), p.Config())
	if err != nil {
		t.Fatalf("SpotRate: %v", err)
	}
	if _, _, err := p.OpenLong(bob, fixedpoint.Scaled(50), fixedpoint.Zero(), fixedpoint.Zero(), Options{Destination: bob}); err != nil {
		t.Fatalf("OpenLong: %v", err)
	}
	after, err := SpotRate(p.State(), p.Config())
	if err != nil {
		t.Fatalf("SpotRate: %v", err)
	}
	if !after.Lt(before) {
		t.Fatalf("rate did not fall: before %s, after %s", before, after)
	}
}

func TestSpotRateRisesAsShortsSell(t *testing.T) {
	p, _, _ := newTestPool(t)
	initTestPool(t, p)

	before, err := SpotRate(p.State(), p.Config())
	if err != nil {
		t.Fatalf("SpotRate: %v", err)
	}
	if _, _, err := p.OpenShort(bob, fixedpoint.Scaled(50), fixedpoint.Zero(), fixedpoint.Zero(), Options{Destination: bob}); err != nil {
		t.Fatalf("OpenShort: %v", err)
	}
	after, err := SpotRate(p.State(), p.Config())
	if err != nil {
		t.Fatalf("SpotRate: %v", err)
	}
	if !after.Gt(before) {
		t.Fatalf("rate did not rise: before %s, after %s", before, after)
	}
}

func TestTimeStretchShrinksWithRate(t *testing.T) {
	low, err := CalculateTimeStretch(fixedpoint.MustFromDecimal("10000000000000000"))
	if err != nil {
		t.Fatalf("CalculateTimeStretch: %v", err)
	}
	high, err := CalculateTimeStretch(fixedpoint.MustFromDecimal("200000000000000000"))
	if err != nil {
		t.Fatalf("CalculateTimeStretch: %v", err)
	}
	for _, ts := range []fixedpoint.FixedPoint{low, high} {
		if ts.IsZero() || ts.Gte(fixedpoint.One()) {
			t.Fatalf("time stretch %s outside (0, 1)", ts)
		}
	}
	if !high.Gt(low) {
		t.Fatalf("stretch should grow with the target rate: low %s, high %s", low, high)
	}
}

func TestMaxSpotPriceCappedAtPar(t *testing.T) {
	p, _, _ := newTestPool(t)
	initTestPool(t, p)
	state, cfg := p.State(), p.Config()

	// Without fees the limit is exactly par.
	limit, err := MaxSpotPrice(state, cfg)
	if err != nil {
		t.Fatalf("MaxSpotPrice: %v", err)
	}
	if !limit.Eq(fixedpoint.One()) {
		t.Fatalf("fee-free limit = %s, want one", limit)
	}

	// A curve fee keeps the realized limit strictly below par.
	cfg.CurveFee = fixedpoint.MustFromDecimal("100000000000000000")
	limit, err = MaxSpotPrice(state, cfg)
	if err != nil {
		t.Fatalf("MaxSpotPrice: %v", err)
	}
	if !limit.Lt(fixedpoint.One()) {
		t.Fatalf("limit with curve fee = %s, want below one", limit)
	}
}
