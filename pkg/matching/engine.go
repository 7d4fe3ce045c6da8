package matching

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/delvtech/hyperdrive-sub010/pkg/assetid"
	"github.com/delvtech/hyperdrive-sub010/pkg/crypto"
	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
	"github.com/delvtech/hyperdrive-sub010/pkg/hyperdrive"
	"github.com/delvtech/hyperdrive-sub010/pkg/util"
	"github.com/delvtech/hyperdrive-sub010/pkg/vault"
)

var (
	ErrExpiredOrder         = errors.New("order expired")
	ErrWrongPool            = errors.New("order targets a different pool")
	ErrCounterpartyMismatch = errors.New("counterparty mismatch")
	ErrSettlementMismatch   = errors.New("orders settle in different assets")
	ErrInvalidSignature     = errors.New("invalid order signature")
	ErrInvalidMatch         = errors.New("orders cannot be matched")
	ErrInsufficientFunding  = errors.New("insufficient funding for match")
)

// Engine settles pairs of signed order intents against one pool. Matches
// bypass the public trade curve: a balanced open pair mints positions
// directly, a balanced close pair burns them, and a same-side open/close
// pair changes hands without touching reserves.
type Engine struct {
	pool     *hyperdrive.Pool
	poolAddr common.Address
	vault    vault.Vault
	domain   *crypto.EIP712Signer
	verifier crypto.SignatureVerifier
	amounts  *OrderAmounts
	clock    util.Clock
	logger   *zap.Logger
	// residual receives any funds left over after a settlement.
	residual common.Address
}

func NewEngine(
	pool *hyperdrive.Pool,
	poolAddr common.Address,
	v vault.Vault,
	domain *crypto.EIP712Signer,
	verifier crypto.SignatureVerifier,
	clock util.Clock,
	logger *zap.Logger,
	residual common.Address,
) *Engine {
	return &Engine{
		pool:     pool,
		poolAddr: poolAddr,
		vault:    v,
		domain:   domain,
		verifier: verifier,
		amounts:  NewOrderAmounts(),
		clock:    clock,
		logger:   logger,
		residual: residual,
	}
}

// Amounts exposes fill accounting for inspection.
func (e *Engine) Amounts() *OrderAmounts { return e.amounts }

// MatchResult reports what a settlement executed.
type MatchResult struct {
	BondsFilled fixedpoint.FixedPoint
	Maturity    uint64
	// LongFund and ShortFund are the fund amounts charged to (for opens) or
	// guaranteed to (for closes) each side, in the orders' settlement units.
	LongFund  fixedpoint.FixedPoint
	ShortFund fixedpoint.FixedPoint
	// Leftover went to the engine's residual recipient.
	Leftover fixedpoint.FixedPoint
}

// validated carries an order together with its hash and open remainder.
type validated struct {
	order     *OrderIntent
	hash      common.Hash
	remaining fixedpoint.FixedPoint
}

func (e *Engine) validate(o *OrderIntent, counterparty common.Address) (*validated, error) {
	if err := o.wellFormed(); err != nil {
		return nil, err
	}
	if o.Pool != e.poolAddr {
		return nil, ErrWrongPool
	}
	if o.Expiry != 0 && o.Expiry <= uint64(e.clock.Now().Unix()) {
		return nil, ErrExpiredOrder
	}
	if o.Counterparty != (common.Address{}) && o.Counterparty != counterparty {
		return nil, ErrCounterpartyMismatch
	}

	hash, err := o.Hash(e.domain)
	if err != nil {
		return nil, err
	}
	if e.amounts.IsCancelled(hash) {
		return nil, ErrOrderCancelled
	}
	remaining, err := e.amounts.Remaining(o, hash)
	if err != nil {
		return nil, err
	}
	if remaining.IsZero() {
		return nil, ErrOrderFullyExecuted
	}
	if !e.verifier.Verify(hash.Bytes(), o.Signature, o.Trader) {
		return nil, ErrInvalidSignature
	}

	price, err := e.vault.SharePrice()
	if err != nil {
		return nil, err
	}
	if price.Lt(o.MinVaultSharePrice) {
		return nil, hyperdrive.ErrMinSharePrice
	}
	return &validated{order: o, hash: hash, remaining: remaining}, nil
}

// scaleDown prorates an order's declared fund amount to a partial fill,
// rounding against the payer so a fill can never charge beyond the
// declaration.
func scaleDown(o *OrderIntent, bondMatch fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	return o.FundAmount.MulDivDown(bondMatch, o.BondAmount)
}

// scaleUp prorates a closing order's minimum proceeds, rounding toward the
// receiver so partial fills honor the declared floor.
func scaleUp(o *OrderIntent, bondMatch fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	return o.FundAmount.MulDivUp(bondMatch, o.BondAmount)
}

// MatchOrders validates two intents and settles them atomically. Either both
// orders fill by the same bond amount or nothing changes.
func (e *Engine) MatchOrders(a, b *OrderIntent) (MatchResult, error) {
	va, err := e.validate(a, b.Trader)
	if err != nil {
		return MatchResult{}, fmt.Errorf("first order: %w", err)
	}
	vb, err := e.validate(b, a.Trader)
	if err != nil {
		return MatchResult{}, fmt.Errorf("second order: %w", err)
	}
	if a.AsBase != b.AsBase {
		return MatchResult{}, ErrSettlementMismatch
	}

	long, short := va, vb
	if !a.OrderType.isLong() {
		long, short = vb, va
	}

	switch {
	case a.OrderType.isOpen() && b.OrderType.isOpen() && a.OrderType.isLong() != b.OrderType.isLong():
		return e.settleMint(long, short)
	case !a.OrderType.isOpen() && !b.OrderType.isOpen() && a.OrderType.isLong() != b.OrderType.isLong():
		return e.settleBurn(long, short)
	case a.OrderType.isOpen() != b.OrderType.isOpen() && a.OrderType.isLong() == b.OrderType.isLong():
		opener, closer := va, vb
		if !a.OrderType.isOpen() {
			opener, closer = vb, va
		}
		return e.settleTransfer(opener, closer)
	default:
		return MatchResult{}, fmt.Errorf("%w: %s vs %s", ErrInvalidMatch, a.OrderType, b.OrderType)
	}
}

// settleMint funds a fresh balanced pair from both sides' contributions.
func (e *Engine) settleMint(long, short *validated) (MatchResult, error) {
	maturity := e.pool.LatestCheckpointTime() + e.pool.Config().PositionDuration
	for _, v := range []*validated{long, short} {
		if maturity < v.order.MinMaturityTime || maturity > v.order.MaxMaturityTime {
			return MatchResult{}, fmt.Errorf("%w: maturity %d outside order window", ErrBadMaturityRange, maturity)
		}
	}

	bondMatch := fixedpoint.Min(long.remaining, short.remaining)
	longFund, err := scaleDown(long.order, bondMatch)
	if err != nil {
		return MatchResult{}, err
	}
	shortFund, err := scaleDown(short.order, bondMatch)
	if err != nil {
		return MatchResult{}, err
	}
	total, err := longFund.Add(shortFund)
	if err != nil {
		return MatchResult{}, err
	}

	costBase, err := e.pool.MintCost(bondMatch)
	if err != nil {
		return MatchResult{}, err
	}
	costShares, err := e.vault.ConvertToShares(costBase)
	if err != nil {
		return MatchResult{}, err
	}
	need := costShares
	if long.order.AsBase {
		need = costBase
	}
	if total.Lt(need) {
		return MatchResult{}, fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunding, total, need)
	}
	leftover, err := total.Sub(need)
	if err != nil {
		return MatchResult{}, err
	}

	if err := e.pool.MintMatched(long.order.Trader, short.order.Trader, maturity, bondMatch, costShares); err != nil {
		return MatchResult{}, err
	}
	if err := e.recordBoth(long, short, bondMatch, longFund, shortFund); err != nil {
		return MatchResult{}, err
	}
	e.logger.Info("match minted",
		zap.String("long", long.order.Trader.Hex()),
		zap.String("short", short.order.Trader.Hex()),
		zap.Uint64("maturity", maturity),
		zap.String("bonds", bondMatch.String()),
		zap.String("leftover", leftover.String()),
	)
	return MatchResult{
		BondsFilled: bondMatch,
		Maturity:    maturity,
		LongFund:    longFund,
		ShortFund:   shortFund,
		Leftover:    leftover,
	}, nil
}

// settleBurn retires a balanced pair, paying each side at least its scaled
// minimum and routing any surplus to the residual recipient.
func (e *Engine) settleBurn(long, short *validated) (MatchResult, error) {
	maturity := long.order.MinMaturityTime
	if maturity != short.order.MinMaturityTime {
		return MatchResult{}, fmt.Errorf("%w: orders close different maturities", ErrBadMaturityRange)
	}

	bondMatch := fixedpoint.Min(long.remaining, short.remaining)
	longMin, err := scaleUp(long.order, bondMatch)
	if err != nil {
		return MatchResult{}, err
	}
	shortMin, err := scaleUp(short.order, bondMatch)
	if err != nil {
		return MatchResult{}, err
	}
	longShares, shortShares := longMin, shortMin
	if long.order.AsBase {
		if longShares, err = e.vault.ConvertToShares(longMin); err != nil {
			return MatchResult{}, err
		}
		if shortShares, err = e.vault.ConvertToShares(shortMin); err != nil {
			return MatchResult{}, err
		}
	}

	longPaid, shortPaid, err := e.pool.BurnMatched(
		long.order.Trader, short.order.Trader,
		maturity, bondMatch,
		longShares, shortShares,
		e.residual, long.order.AsBase,
	)
	if err != nil {
		return MatchResult{}, err
	}
	// Fill accounting stays pro rata rounded down so repeated partial fills
	// can never overrun the declared fund amount.
	longFill, err := scaleDown(long.order, bondMatch)
	if err != nil {
		return MatchResult{}, err
	}
	shortFill, err := scaleDown(short.order, bondMatch)
	if err != nil {
		return MatchResult{}, err
	}
	if err := e.recordBoth(long, short, bondMatch, longFill, shortFill); err != nil {
		return MatchResult{}, err
	}
	e.logger.Info("match burned",
		zap.String("long", long.order.Trader.Hex()),
		zap.String("short", short.order.Trader.Hex()),
		zap.Uint64("maturity", maturity),
		zap.String("bonds", bondMatch.String()),
	)
	return MatchResult{
		BondsFilled: bondMatch,
		Maturity:    maturity,
		LongFund:    longPaid,
		ShortFund:   shortPaid,
	}, nil
}

// settleTransfer moves a position from a closer to an opener on the same
// side without touching pool reserves. The opener's scaled offer must cover
// the closer's scaled floor.
func (e *Engine) settleTransfer(opener, closer *validated) (MatchResult, error) {
	maturity := closer.order.MinMaturityTime
	if maturity < opener.order.MinMaturityTime || maturity > opener.order.MaxMaturityTime {
		return MatchResult{}, fmt.Errorf("%w: maturity %d outside opener window", ErrBadMaturityRange, maturity)
	}

	bondMatch := fixedpoint.Min(opener.remaining, closer.remaining)
	openerPay, err := scaleDown(opener.order, bondMatch)
	if err != nil {
		return MatchResult{}, err
	}
	closerMin, err := scaleUp(closer.order, bondMatch)
	if err != nil {
		return MatchResult{}, err
	}
	if openerPay.Lt(closerMin) {
		return MatchResult{}, fmt.Errorf("%w: offer %s below ask %s", ErrInsufficientFunding, openerPay, closerMin)
	}
	leftover, err := openerPay.Sub(closerMin)
	if err != nil {
		return MatchResult{}, err
	}

	kind := assetid.Long
	if !opener.order.OrderType.isLong() {
		kind = assetid.Short
	}
	if err := e.pool.TransferPosition(kind, maturity, closer.order.Trader, opener.order.Trader, bondMatch); err != nil {
		return MatchResult{}, err
	}
	closerFill, err := scaleDown(closer.order, bondMatch)
	if err != nil {
		return MatchResult{}, err
	}
	if err := e.recordBoth(opener, closer, bondMatch, openerPay, closerFill); err != nil {
		return MatchResult{}, err
	}
	e.logger.Info("match transferred",
		zap.String("kind", kind.String()),
		zap.String("from", closer.order.Trader.Hex()),
		zap.String("to", opener.order.Trader.Hex()),
		zap.Uint64("maturity", maturity),
		zap.String("bonds", bondMatch.String()),
	)
	return MatchResult{
		BondsFilled: bondMatch,
		Maturity:    maturity,
		LongFund:    openerPay,
		ShortFund:   closerMin,
		Leftover:    leftover,
	}, nil
}

func (e *Engine) recordBoth(x, y *validated, bonds, xFunds, yFunds fixedpoint.FixedPoint) error {
	if err := e.amounts.Record(x.order, x.hash, bonds, xFunds); err != nil {
		return err
	}
	return e.amounts.Record(y.order, y.hash, bonds, yFunds)
}

// Cancel permanently voids an intent. Only a signature the verifier accepts
// for the intent's trader may cancel it.
func (e *Engine) Cancel(o *OrderIntent) error {
	hash, err := o.Hash(e.domain)
	if err != nil {
		return err
	}
	if !e.verifier.Verify(hash.Bytes(), o.Signature, o.Trader) {
		return ErrInvalidSignature
	}
	e.amounts.Cancel(hash)
	e.logger.Info("order cancelled",
		zap.String("trader", o.Trader.Hex()),
		zap.String("hash", hash.Hex()),
	)
	return nil
}
