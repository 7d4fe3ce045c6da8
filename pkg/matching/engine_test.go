package matching

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/delvtech/hyperdrive-sub010/pkg/crypto"
	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
	"github.com/delvtech/hyperdrive-sub010/pkg/hyperdrive"
	"github.com/delvtech/hyperdrive-sub010/pkg/ledger"
	"github.com/delvtech/hyperdrive-sub010/pkg/util"
	"github.com/delvtech/hyperdrive-sub010/pkg/vault"
)

const (
	cpDuration  = uint64(24 * 60 * 60)
	posDuration = 365 * cpDuration
)

var (
	poolAddr = common.HexToAddress("0x00000000000000000000000000000000deadbeef")
	treasury = common.HexToAddress("0x000000000000000000000000000000000000fee5")
)

type fixture struct {
	engine *Engine
	pool   *hyperdrive.Pool
	clock  *util.FixedClock
	domain *crypto.EIP712Signer
	longKey, shortKey *crypto.Signer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	stretch, err := hyperdrive.CalculateTimeStretch(fixedpoint.MustFromDecimal("50000000000000000"))
	if err != nil {
		t.Fatalf("time stretch: %v", err)
	}
	cfg := hyperdrive.PoolConfig{
		InitialSharePrice:    fixedpoint.One(),
		MinimumShareReserves: fixedpoint.One(),
		PositionDuration:     posDuration,
		CheckpointDuration:   cpDuration,
		TimeStretch:          stretch,
		CurveFee:             fixedpoint.Zero(),
		FlatFee:              fixedpoint.Zero(),
		GovernanceFee:        fixedpoint.Zero(),
	}

	v := vault.NewMockVault()
	clock := &util.FixedClock{Time: time.Unix(int64(500*cpDuration), 0)}
	pool, err := hyperdrive.NewPool(cfg, ledger.NewMemoryLedger(), v, clock, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	provider := common.HexToAddress("0x0000000000000000000000000000000000000111")
	if _, err := pool.Initialize(provider, fixedpoint.Scaled(500), fixedpoint.MustFromDecimal("50000000000000000"), hyperdrive.Options{Destination: provider}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	domain := crypto.NewEIP712Signer(crypto.DefaultDomain())
	longKey, _ := crypto.GenerateKey()
	shortKey, _ := crypto.GenerateKey()
	engine := NewEngine(pool, poolAddr, v, domain, crypto.EOAVerifier{}, clock, zap.NewNop(), treasury)
	return &fixture{
		engine:   engine,
		pool:     pool,
		clock:    clock,
		domain:   domain,
		longKey:  longKey,
		shortKey: shortKey,
	}
}

func (f *fixture) openIntent(t *testing.T, key *crypto.Signer, orderType OrderType, bonds, funds fixedpoint.FixedPoint, salt uint64) *OrderIntent {
	t.Helper()
	o := &OrderIntent{
		Trader:             key.Address(),
		Pool:               poolAddr,
		FundAmount:         funds,
		BondAmount:         bonds,
		MinVaultSharePrice: fixedpoint.Zero(),
		Destination:        key.Address(),
		OrderType:          orderType,
		MinMaturityTime:    0,
		MaxMaturityTime:    1 << 62,
		Expiry:             uint64(f.clock.Now().Unix()) + 3600,
		Salt:               salt,
	}
	if err := o.Sign(f.domain, key); err != nil {
		t.Fatalf("sign: %v", err)
	}
	return o
}

func (f *fixture) closeIntent(t *testing.T, key *crypto.Signer, orderType OrderType, maturity uint64, bonds, funds fixedpoint.FixedPoint, salt uint64) *OrderIntent {
	t.Helper()
	o := &OrderIntent{
		Trader:             key.Address(),
		Pool:               poolAddr,
		FundAmount:         funds,
		BondAmount:         bonds,
		MinVaultSharePrice: fixedpoint.Zero(),
		Destination:        key.Address(),
		OrderType:          orderType,
		MinMaturityTime:    maturity,
		MaxMaturityTime:    maturity,
		Expiry:             uint64(f.clock.Now().Unix()) + 3600,
		Salt:               salt,
	}
	if err := o.Sign(f.domain, key); err != nil {
		t.Fatalf("sign: %v", err)
	}
	return o
}

func TestMatchMintAndBurn(t *testing.T) {
	f := newFixture(t)

	bonds := fixedpoint.Scaled(20)
	long := f.openIntent(t, f.longKey, OpenLong, bonds, fixedpoint.Scaled(19), 1)
	short := f.openIntent(t, f.shortKey, OpenShort, bonds, fixedpoint.Scaled(2), 2)

	result, err := f.engine.MatchOrders(long, short)
	if err != nil {
		t.Fatalf("MatchOrders: %v", err)
	}
	if !result.BondsFilled.Eq(bonds) {
		t.Fatalf("filled %s, want %s", result.BondsFilled, bonds)
	}
	// Zero fees at share price one: minting costs exactly par, the rest is
	// returned to the residual recipient.
	want, err := fixedpoint.Scaled(21).Sub(bonds)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Leftover.Eq(want) {
		t.Fatalf("leftover %s, want %s", result.Leftover, want)
	}

	st := f.pool.State()
	if !st.LongsOutstanding.Eq(bonds) || !st.ShortsOutstanding.Eq(bonds) {
		t.Fatalf("outstanding %s/%s after mint", st.LongsOutstanding, st.ShortsOutstanding)
	}

	closeLong := f.closeIntent(t, f.longKey, CloseLong, result.Maturity, bonds, fixedpoint.Scaled(19), 3)
	closeShort := f.closeIntent(t, f.shortKey, CloseShort, result.Maturity, bonds, fixedpoint.One(), 4)
	burn, err := f.engine.MatchOrders(closeLong, closeShort)
	if err != nil {
		t.Fatalf("burn MatchOrders: %v", err)
	}
	if !burn.BondsFilled.Eq(bonds) {
		t.Fatalf("burn filled %s, want %s", burn.BondsFilled, bonds)
	}
	if burn.LongFund.Lt(fixedpoint.Scaled(19)) || burn.ShortFund.Lt(fixedpoint.One()) {
		t.Fatalf("floors violated: long %s, short %s", burn.LongFund, burn.ShortFund)
	}

	st = f.pool.State()
	if !st.LongsOutstanding.IsZero() || !st.ShortsOutstanding.IsZero() {
		t.Fatalf("outstanding %s/%s after burn", st.LongsOutstanding, st.ShortsOutstanding)
	}
}

func TestPartialFillsThenFullyExecuted(t *testing.T) {
	f := newFixture(t)

	long := f.openIntent(t, f.longKey, OpenLong, fixedpoint.Scaled(50), fixedpoint.Scaled(50), 1)
	longHash, err := long.Hash(f.domain)
	if err != nil {
		t.Fatal(err)
	}

	short1 := f.openIntent(t, f.shortKey, OpenShort, fixedpoint.Scaled(20), fixedpoint.Scaled(20), 2)
	result, err := f.engine.MatchOrders(long, short1)
	if err != nil {
		t.Fatalf("first fill: %v", err)
	}
	if !result.BondsFilled.Eq(fixedpoint.Scaled(20)) {
		t.Fatalf("first fill %s, want 20", result.BondsFilled)
	}

	short2 := f.openIntent(t, f.shortKey, OpenShort, fixedpoint.Scaled(30), fixedpoint.Scaled(30), 3)
	result, err = f.engine.MatchOrders(long, short2)
	if err != nil {
		t.Fatalf("second fill: %v", err)
	}
	if !result.BondsFilled.Eq(fixedpoint.Scaled(30)) {
		t.Fatalf("second fill %s, want 30", result.BondsFilled)
	}

	usedBonds, usedFunds := f.engine.Amounts().Used(longHash)
	if !usedBonds.Eq(fixedpoint.Scaled(50)) {
		t.Fatalf("used bonds %s, want 50", usedBonds)
	}
	if usedFunds.Gt(long.FundAmount) {
		t.Fatalf("used funds %s exceed declared %s", usedFunds, long.FundAmount)
	}

	short3 := f.openIntent(t, f.shortKey, OpenShort, fixedpoint.Scaled(10), fixedpoint.Scaled(10), 4)
	_, err = f.engine.MatchOrders(long, short3)
	if !errors.Is(err, ErrOrderFullyExecuted) {
		t.Fatalf("err = %v, want ErrOrderFullyExecuted", err)
	}
}

func TestMatchTransfersPosition(t *testing.T) {
	f := newFixture(t)

	bonds := fixedpoint.Scaled(10)
	long := f.openIntent(t, f.longKey, OpenLong, bonds, fixedpoint.Scaled(11), 1)
	short := f.openIntent(t, f.shortKey, OpenShort, bonds, fixedpoint.Scaled(1), 2)
	minted, err := f.engine.MatchOrders(long, short)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	buyerKey, _ := crypto.GenerateKey()
	buyer := f.openIntent(t, buyerKey, OpenLong, bonds, fixedpoint.Scaled(10), 3)
	buyer.MinMaturityTime = minted.Maturity
	buyer.MaxMaturityTime = minted.Maturity
	if err := buyer.Sign(f.domain, buyerKey); err != nil {
		t.Fatal(err)
	}
	seller := f.closeIntent(t, f.longKey, CloseLong, minted.Maturity, bonds, fixedpoint.Scaled(9), 4)

	before := f.pool.State()
	result, err := f.engine.MatchOrders(buyer, seller)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if !result.BondsFilled.Eq(bonds) {
		t.Fatalf("transferred %s, want %s", result.BondsFilled, bonds)
	}
	if result.Leftover.IsZero() {
		t.Fatal("expected a price-improvement leftover")
	}
	if after := f.pool.State(); after.ShareReserves != before.ShareReserves || after.BondReserves != before.BondReserves {
		t.Fatal("transfer moved pool reserves")
	}
}

func TestMatchRejectsMixedShapes(t *testing.T) {
	f := newFixture(t)

	bonds := fixedpoint.Scaled(10)
	long1 := f.openIntent(t, f.longKey, OpenLong, bonds, fixedpoint.Scaled(11), 1)
	long2 := f.openIntent(t, f.shortKey, OpenLong, bonds, fixedpoint.Scaled(11), 2)
	if _, err := f.engine.MatchOrders(long1, long2); !errors.Is(err, ErrInvalidMatch) {
		t.Fatalf("err = %v, want ErrInvalidMatch", err)
	}
}

func TestMatchValidation(t *testing.T) {
	f := newFixture(t)
	bonds := fixedpoint.Scaled(10)

	t.Run("wrong pool", func(t *testing.T) {
		long := f.openIntent(t, f.longKey, OpenLong, bonds, bonds, 1)
		long.Pool = common.HexToAddress("0x02")
		_ = long.Sign(f.domain, f.longKey)
		short := f.openIntent(t, f.shortKey, OpenShort, bonds, bonds, 2)
		if _, err := f.engine.MatchOrders(long, short); !errors.Is(err, ErrWrongPool) {
			t.Fatalf("err = %v, want ErrWrongPool", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		long := f.openIntent(t, f.longKey, OpenLong, bonds, bonds, 3)
		long.Expiry = uint64(f.clock.Now().Unix())
		_ = long.Sign(f.domain, f.longKey)
		short := f.openIntent(t, f.shortKey, OpenShort, bonds, bonds, 4)
		if _, err := f.engine.MatchOrders(long, short); !errors.Is(err, ErrExpiredOrder) {
			t.Fatalf("err = %v, want ErrExpiredOrder", err)
		}
	})

	t.Run("tampered signature", func(t *testing.T) {
		long := f.openIntent(t, f.longKey, OpenLong, bonds, bonds, 5)
		long.BondAmount = fixedpoint.Scaled(99)
		short := f.openIntent(t, f.shortKey, OpenShort, bonds, bonds, 6)
		if _, err := f.engine.MatchOrders(long, short); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("err = %v, want ErrInvalidSignature", err)
		}
	})

	t.Run("counterparty pin", func(t *testing.T) {
		long := f.openIntent(t, f.longKey, OpenLong, bonds, bonds, 7)
		long.Counterparty = common.HexToAddress("0x09")
		_ = long.Sign(f.domain, f.longKey)
		short := f.openIntent(t, f.shortKey, OpenShort, bonds, bonds, 8)
		if _, err := f.engine.MatchOrders(long, short); !errors.Is(err, ErrCounterpartyMismatch) {
			t.Fatalf("err = %v, want ErrCounterpartyMismatch", err)
		}
	})

	t.Run("settlement mismatch", func(t *testing.T) {
		long := f.openIntent(t, f.longKey, OpenLong, bonds, bonds, 9)
		long.AsBase = true
		_ = long.Sign(f.domain, f.longKey)
		short := f.openIntent(t, f.shortKey, OpenShort, bonds, bonds, 10)
		if _, err := f.engine.MatchOrders(long, short); !errors.Is(err, ErrSettlementMismatch) {
			t.Fatalf("err = %v, want ErrSettlementMismatch", err)
		}
	})

	t.Run("underfunded mint", func(t *testing.T) {
		long := f.openIntent(t, f.longKey, OpenLong, bonds, fixedpoint.Scaled(4), 11)
		short := f.openIntent(t, f.shortKey, OpenShort, bonds, fixedpoint.Scaled(4), 12)
		if _, err := f.engine.MatchOrders(long, short); !errors.Is(err, ErrInsufficientFunding) {
			t.Fatalf("err = %v, want ErrInsufficientFunding", err)
		}
	})
}

func TestCancelOnlyBySigner(t *testing.T) {
	f := newFixture(t)
	bonds := fixedpoint.Scaled(10)

	long := f.openIntent(t, f.longKey, OpenLong, bonds, bonds, 1)

	// A stranger cannot cancel someone else's order.
	forged := *long
	strangerKey, _ := crypto.GenerateKey()
	hash, _ := forged.Hash(f.domain)
	forged.Signature, _ = strangerKey.Sign(hash.Bytes())
	if err := f.engine.Cancel(&forged); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}

	if err := f.engine.Cancel(long); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	short := f.openIntent(t, f.shortKey, OpenShort, bonds, bonds, 2)
	if _, err := f.engine.MatchOrders(long, short); !errors.Is(err, ErrOrderCancelled) {
		t.Fatalf("err = %v, want ErrOrderCancelled", err)
	}
}
