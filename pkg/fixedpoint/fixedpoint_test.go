package fixedpoint

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

func maxUint256() *uint256.Int {
	return new(uint256.Int).Not(new(uint256.Int))
}

func oneWei() *uint256.Int {
	return uint256.NewInt(1)
}

func TestAddSub(t *testing.T) {
	a := FromUint64(3) // 3e18
	b := FromUint64(2)

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !sum.Eq(FromUint64(5)) {
		t.Errorf("3 + 2 = %s, want 5", sum)
	}

	diff, err := a.Sub(b)
	if err != nil {
		t.Fatalf("sub: %v", err)
	}
	if !diff.Eq(One()) {
		t.Errorf("3 - 2 = %s, want 1", diff)
	}
}

func TestSubUnderflow(t *testing.T) {
	_, err := FromUint64(1).Sub(FromUint64(2))
	if !errors.Is(err, ErrUnderflow) {
		t.Fatalf("1 - 2: got %v, want ErrUnderflow", err)
	}
}

func TestAddOverflow(t *testing.T) {
	max := FromRaw(maxUint256())
	_, err := max.Add(One())
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("max + 1: got %v, want ErrOverflow", err)
	}
}

func TestMulDivRounding(t *testing.T) {
	// 1 * 1 / 3 truncates down, rounds up by one wei.
	down, err := One().MulDivDown(One(), FromUint64(3))
	if err != nil {
		t.Fatalf("mulDivDown: %v", err)
	}
	up, err := One().MulDivUp(One(), FromUint64(3))
	if err != nil {
		t.Fatalf("mulDivUp: %v", err)
	}

	third := MustFromDecimal("333333333333333333")
	if !down.Eq(third) {
		t.Errorf("down = %s, want %s", down, third)
	}
	diff, _ := up.Sub(down)
	if !diff.Eq(FromRaw(oneWei())) {
		t.Errorf("up - down = %s, want 1 wei", diff.Raw().Dec())
	}
}

func TestMulDivUpExactNoBump(t *testing.T) {
	// 6 * 1 / 3 divides evenly, so up and down agree.
	up, err := FromUint64(6).MulDivUp(One(), FromUint64(3))
	if err != nil {
		t.Fatalf("mulDivUp: %v", err)
	}
	if !up.Eq(FromUint64(2)) {
		t.Errorf("6 / 3 rounded up = %s, want 2", up)
	}
}

func TestMulDivUpZeroProduct(t *testing.T) {
	up, err := Zero().MulDivUp(FromUint64(7), FromUint64(3))
	if err != nil {
		t.Fatalf("mulDivUp: %v", err)
	}
	if !up.IsZero() {
		t.Errorf("0 * 7 / 3 rounded up = %s, want 0", up)
	}
}

func TestDivisionByZero(t *testing.T) {
	if _, err := One().MulDivDown(One(), Zero()); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("mulDivDown by zero: got %v, want ErrDivisionByZero", err)
	}
	if _, err := One().MulDivUp(One(), Zero()); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("mulDivUp by zero: got %v, want ErrDivisionByZero", err)
	}
	if _, err := One().DivDown(Zero()); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("divDown by zero: got %v, want ErrDivisionByZero", err)
	}
}

func TestMulDownUp(t *testing.T) {
	// 2.5 * 0.5 = 1.25 exactly under both roundings.
	a := MustFromDecimal("2500000000000000000")
	b := MustFromDecimal("500000000000000000")
	want := MustFromDecimal("1250000000000000000")

	down, err := a.MulDown(b)
	if err != nil {
		t.Fatalf("mulDown: %v", err)
	}
	up, err := a.MulUp(b)
	if err != nil {
		t.Fatalf("mulUp: %v", err)
	}
	if !down.Eq(want) || !up.Eq(want) {
		t.Errorf("2.5 * 0.5 = %s / %s, want %s", down, up, want)
	}
}

func TestMulOverflow(t *testing.T) {
	max := FromRaw(maxUint256())
	if _, err := max.MulDown(FromUint64(2)); !errors.Is(err, ErrOverflow) {
		t.Errorf("max * 2: got %v, want ErrOverflow", err)
	}
}

func TestComparisons(t *testing.T) {
	a, b := FromUint64(1), FromUint64(2)
	if !a.Lt(b) || !b.Gt(a) || !a.Lte(a) || !a.Gte(a) {
		t.Errorf("comparison relations broken for %s, %s", a, b)
	}
	if !Min(a, b).Eq(a) || !Max(a, b).Eq(b) {
		t.Errorf("min/max broken for %s, %s", a, b)
	}
}

func TestScaled(t *testing.T) {
	if !Scaled(42).Eq(FromUint64(42)) {
		t.Errorf("Scaled(42) = %s, want 42e18", Scaled(42))
	}
}

func TestFromDecimal(t *testing.T) {
	v, err := FromDecimal("1000000000000000000")
	if err != nil {
		t.Fatalf("fromDecimal: %v", err)
	}
	if !v.Eq(One()) {
		t.Errorf("parsed %s, want one", v)
	}
	if _, err := FromDecimal("not a number"); err == nil {
		t.Error("expected parse error")
	}
}
