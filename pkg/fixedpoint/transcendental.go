package fixedpoint

import "github.com/holiman/uint256"

// exp/ln are ports of the well-known rational-polynomial approximations used
// on-chain (binary range reduction into a (6,7)- respectively (8,8)-term
// rational approximation in 2^96 basis). The intermediate math is signed
// two's-complement over 256 bits, which uint256's S* operations provide.
var (
	// exp is defined on roughly [-42.139e18, 135.305e18]; below the floor the
	// true result rounds to zero, above the ceiling it cannot be represented.
	expInputFloor = new(uint256.Int).Neg(uint256.MustFromDecimal("42139678854452767551"))
	expInputCeil  = uint256.MustFromDecimal("135305999368893231589")

	pow5To18 = uint256.MustFromDecimal("3814697265625")
	ln2Base96 = uint256.MustFromDecimal("54916777467707473351141471128")
	twoTo95   = new(uint256.Int).Lsh(uint256.NewInt(1), 95)

	expC0 = uint256.MustFromDecimal("1346386616545796478920950773328")
	expC1 = uint256.MustFromDecimal("57155421227552351082224309758442")
	expC2 = uint256.MustFromDecimal("94201549194550492254356042504812")
	expC3 = uint256.MustFromDecimal("28719021644029726153956944680412240")
	expC4 = new(uint256.Int).Lsh(uint256.MustFromDecimal("4385272521454847904659076985693276"), 96)
	expD0 = uint256.MustFromDecimal("2855989394907223263936484059900")
	expD1 = uint256.MustFromDecimal("50020603652535783019961831881945")
	expD2 = uint256.MustFromDecimal("533845033583426703283633433725380")
	expD3 = uint256.MustFromDecimal("3604857256930695427073651918091429")
	expD4 = uint256.MustFromDecimal("14423608567350463180887372962807573")
	expD5 = uint256.MustFromDecimal("26449188498355588339934803723976023")
	// Combined scale factor: s * 1e18 / 2^96 in 2^213 basis.
	expScale = uint256.MustFromHex("0x29d9dc38563c32e5c2f6dc192ee70ef65f9978af3")

	lnC0 = uint256.MustFromDecimal("3273285459638523848632254066296")
	lnC1 = uint256.MustFromDecimal("24828157081833163892658089445524")
	lnC2 = uint256.MustFromDecimal("43456485725739037958740375743393")
	lnC3 = uint256.MustFromDecimal("11111509109440967052023855526967")
	lnC4 = uint256.MustFromDecimal("45023709667254063763336534515857")
	lnC5 = uint256.MustFromDecimal("14706773417378608786704636184526")
	lnC6 = new(uint256.Int).Lsh(uint256.MustFromDecimal("795164235651350426258249787498"), 96)
	lnD0 = uint256.MustFromDecimal("5573035233440673466300451813936")
	lnD1 = uint256.MustFromDecimal("71694874799317883764090561454958")
	lnD2 = uint256.MustFromDecimal("283447036172924575727196451306956")
	lnD3 = uint256.MustFromDecimal("401686690394027663651624208769553")
	lnD4 = uint256.MustFromDecimal("204048457590392012362485061816622")
	lnD5 = uint256.MustFromDecimal("31853899698501571402653359427138")
	lnD6 = uint256.MustFromDecimal("909429971244387300277376558375")
	// s * 5e18 * 2^96
	lnScale = uint256.MustFromHex("0x1340daa0d5f769dba1915cef59f0815a5506")
	// ln(2) * 5e18 * 2^192, multiplied by the power-of-two reduction factor k.
	lnTwoK = uint256.MustFromHex("0x267a36c0c95b3975ab3ee5b203a7614a3f75373f047d803ae7b6687f2b3")
	// ln(2^96 / 1e18) * 5e18 * 2^192, restoring the basis conversion skipped
	// on entry.
	lnBase = uint256.MustFromHex("0x57115e47018c7177eebf7cd370a3356a1b7863008a5ae8028c72b8864284")
)

// Pow returns f^y computed as exp(y * ln(f)).
//
// Conventions: Pow(x, 0) == One for all x, Pow(0, y) == Zero for y != 0, and
// Pow(x, One) == x exactly. ln requires f > 0 when interpreted as a signed
// value; exp fails outside its representable range.
func (f FixedPoint) Pow(y FixedPoint) (FixedPoint, error) {
	if y.IsZero() {
		return One(), nil
	}
	if f.IsZero() {
		return Zero(), nil
	}
	if y.Eq(One()) {
		return f, nil
	}

	lnx, err := lnSigned(&f.u)
	if err != nil {
		return FixedPoint{}, err
	}

	// y * ln(x) / 1e18, wrapping in two's complement like the reference.
	ylnx := new(uint256.Int).Mul(&y.u, lnx)
	ylnx.SDiv(ylnx, one)

	res, err := expSigned(ylnx)
	if err != nil {
		return FixedPoint{}, err
	}
	var out FixedPoint
	out.u.Set(res)
	return out, nil
}

// Exp returns e^f for a nonnegative fixed-point input.
func (f FixedPoint) Exp() (FixedPoint, error) {
	res, err := expSigned(new(uint256.Int).Set(&f.u))
	if err != nil {
		return FixedPoint{}, err
	}
	var out FixedPoint
	out.u.Set(res)
	return out, nil
}

// Ln returns ln(f) for f >= 1e18 (the result is unsigned, so inputs below
// one are rejected the same way non-positive inputs are).
func (f FixedPoint) Ln() (FixedPoint, error) {
	if f.Lt(One()) {
		return FixedPoint{}, ErrLnDomain
	}
	res, err := lnSigned(&f.u)
	if err != nil {
		return FixedPoint{}, err
	}
	var out FixedPoint
	out.u.Set(res)
	return out, nil
}

// mulShr96 computes (a * b) >> 96 with an arithmetic shift, the basic step of
// the 2^96-basis polynomial evaluation.
func mulShr96(a, b *uint256.Int) *uint256.Int {
	r := new(uint256.Int).Mul(a, b)
	return r.SRsh(r, 96)
}

// expSigned computes e^x in 1e18 scale for a signed two's-complement input.
func expSigned(x *uint256.Int) (*uint256.Int, error) {
	// Below the floor the result is < 0.5 wei and rounds to zero.
	if !x.Sgt(expInputFloor) {
		return new(uint256.Int), nil
	}
	if !x.Slt(expInputCeil) {
		return nil, ErrExpOverflow
	}

	// Rebase from 1e18 to 2^96 for intermediate precision: multiply by
	// 2^78 / 5^18.
	x = new(uint256.Int).Lsh(x, 78)
	x.SDiv(x, pow5To18)

	// Factor out powers of two: exp(x) = exp(x') * 2^k with
	// k = round(x / ln 2) and x' = x - k ln 2.
	k := new(uint256.Int).Lsh(x, 96)
	k.SDiv(k, ln2Base96)
	k.Add(k, twoTo95)
	k.SRsh(k, 96)
	x.Sub(x, new(uint256.Int).Mul(k, ln2Base96))

	// (6,7)-term rational approximation; p is monic, scaled at the end.
	y := new(uint256.Int).Add(x, expC0)
	y = mulShr96(y, x)
	y.Add(y, expC1)
	p := new(uint256.Int).Add(y, x)
	p.Sub(p, expC2)
	p = mulShr96(p, y)
	p.Add(p, expC3)
	p.Mul(p, x)
	p.Add(p, expC4)

	q := new(uint256.Int).Sub(x, expD0)
	q = mulShr96(q, x)
	q.Add(q, expD1)
	q = mulShr96(q, x)
	q.Sub(q, expD2)
	q = mulShr96(q, x)
	q.Add(q, expD3)
	q = mulShr96(q, x)
	q.Sub(q, expD4)
	q = mulShr96(q, x)
	q.Add(q, expD5)

	r := new(uint256.Int).SDiv(p, q)

	// Undo the range reduction and basis conversion in one multiply, then a
	// single logical shift by 195 - k (k is in [-61, 195]).
	r.Mul(r, expScale)
	shift := 195 - signedToInt64(k)
	if shift >= 256 {
		return new(uint256.Int), nil
	}
	return r.Rsh(r, uint(shift)), nil
}

// lnSigned computes ln(x) in 1e18 scale for a signed two's-complement input;
// x must be strictly positive.
func lnSigned(x *uint256.Int) (*uint256.Int, error) {
	if x.Sign() <= 0 {
		return nil, ErrLnDomain
	}

	// Reduce to (1, 2) * 2^96 via ln(2^k x) = k ln 2 + ln(x) with
	// k = floor(log2 x) - 96.
	k := x.BitLen() - 1 - 96
	xr := new(uint256.Int).Lsh(x, uint(159-k))
	xr.Rsh(xr, 159)

	// (8,8)-term rational approximation; p is monic, q monic by convention.
	p := new(uint256.Int).Add(xr, lnC0)
	p = mulShr96(p, xr)
	p.Add(p, lnC1)
	p = mulShr96(p, xr)
	p.Add(p, lnC2)
	p = mulShr96(p, xr)
	p.Sub(p, lnC3)
	p = mulShr96(p, xr)
	p.Sub(p, lnC4)
	p = mulShr96(p, xr)
	p.Sub(p, lnC5)
	p.Mul(p, xr)
	p.Sub(p, lnC6)

	q := new(uint256.Int).Add(xr, lnD0)
	q = mulShr96(q, xr)
	q.Add(q, lnD1)
	q = mulShr96(q, xr)
	q.Add(q, lnD2)
	q = mulShr96(q, xr)
	q.Add(q, lnD3)
	q = mulShr96(q, xr)
	q.Add(q, lnD4)
	q = mulShr96(q, xr)
	q.Add(q, lnD5)
	q = mulShr96(q, xr)
	q.Add(q, lnD6)

	r := new(uint256.Int).SDiv(p, q)

	// Finalize: multiply by the scale factor, add k ln 2 and the basis
	// correction, then convert back to 1e18 scale.
	r.Mul(r, lnScale)
	r.Add(r, new(uint256.Int).Mul(lnTwoK, int64ToSigned(int64(k))))
	r.Add(r, lnBase)
	return r.SRsh(r, 174), nil
}

// signedToInt64 narrows a small two's-complement value to int64. Inputs here
// are bounded by the range reductions above.
func signedToInt64(v *uint256.Int) int64 {
	if v.Sign() < 0 {
		return -int64(new(uint256.Int).Neg(v).Uint64())
	}
	return int64(v.Uint64())
}

func int64ToSigned(v int64) *uint256.Int {
	if v < 0 {
		return new(uint256.Int).Neg(uint256.NewInt(uint64(-v)))
	}
	return uint256.NewInt(uint64(v))
}
