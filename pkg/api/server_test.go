package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/delvtech/hyperdrive-sub010/pkg/crypto"
	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
	"github.com/delvtech/hyperdrive-sub010/pkg/hyperdrive"
	"github.com/delvtech/hyperdrive-sub010/pkg/ledger"
	"github.com/delvtech/hyperdrive-sub010/pkg/matching"
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
	server *Server
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
	l := ledger.NewMemoryLedger()
	pool, err := hyperdrive.NewPool(cfg, l, v, clock, zap.NewNop())
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
	engine := matching.NewEngine(pool, poolAddr, v, domain, crypto.EOAVerifier{}, clock, zap.NewNop(), treasury)

	return &fixture{
		server:   NewServer(pool, l, engine, domain, zap.NewNop()),
		clock:    clock,
		domain:   domain,
		longKey:  longKey,
		shortKey: shortKey,
	}
}

func (f *fixture) get(t *testing.T, path string, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return rec
}

func (f *fixture) post(t *testing.T, path string, body interface{}, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("encode body: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return rec
}

func (f *fixture) signedOrder(t *testing.T, key *crypto.Signer, orderType matching.OrderType, bonds, funds fixedpoint.FixedPoint, salt uint64) *matching.OrderIntent {
	t.Helper()
	o := &matching.OrderIntent{
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

func TestHealth(t *testing.T) {
	f := newFixture(t)
	var body map[string]string
	rec := f.get(t, "/health", &body)
	if rec.Code != http.StatusOK {
		t.Fatalf("health returned %d", rec.Code)
	}
	if body["status"] != "ok" {
		t.Fatalf("status = %q", body["status"])
	}
}

func TestGetPoolAndConfig(t *testing.T) {
	f := newFixture(t)

	var pool PoolInfo
	if rec := f.get(t, "/api/v1/pool", &pool); rec.Code != http.StatusOK {
		t.Fatalf("pool returned %d", rec.Code)
	}
	if pool.ShareReserves != fixedpoint.Scaled(500).String() {
		t.Errorf("shareReserves = %s", pool.ShareReserves)
	}
	if pool.SpotPrice == "0" || pool.SpotRate == "0" {
		t.Errorf("spot quotes missing: price=%s rate=%s", pool.SpotPrice, pool.SpotRate)
	}

	var cfg PoolConfigInfo
	if rec := f.get(t, "/api/v1/pool/config", &cfg); rec.Code != http.StatusOK {
		t.Fatalf("config returned %d", rec.Code)
	}
	if cfg.PositionDuration != posDuration || cfg.CheckpointDuration != cpDuration {
		t.Errorf("durations = %d/%d", cfg.PositionDuration, cfg.CheckpointDuration)
	}

	var cp CheckpointInfo
	latest := uint64(500 * cpDuration)
	if rec := f.get(t, fmt.Sprintf("/api/v1/pool/checkpoints/%d", latest), &cp); rec.Code != http.StatusOK {
		t.Fatalf("checkpoint returned %d", rec.Code)
	}
	if cp.Time != latest {
		t.Errorf("checkpoint time = %d, want %d", cp.Time, latest)
	}
	if rec := f.get(t, "/api/v1/pool/checkpoints/12345", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing checkpoint returned %d", rec.Code)
	}
}

func TestMatchOrdersEndToEnd(t *testing.T) {
	f := newFixture(t)

	bonds := fixedpoint.Scaled(10)
	long := f.signedOrder(t, f.longKey, matching.OpenLong, bonds, fixedpoint.Scaled(9), 1)
	short := f.signedOrder(t, f.shortKey, matching.OpenShort, bonds, fixedpoint.Scaled(2), 2)

	var res MatchResponse
	rec := f.post(t, "/api/v1/orders/match", MatchRequest{Long: ToOrderJSON(long), Short: ToOrderJSON(short)}, &res)
	if rec.Code != http.StatusOK {
		t.Fatalf("match returned %d: %s", rec.Code, rec.Body.String())
	}
	if res.Status != "settled" {
		t.Fatalf("status = %q", res.Status)
	}
	if res.BondsFilled != bonds.String() {
		t.Errorf("bondsFilled = %s, want %s", res.BondsFilled, bonds)
	}
	wantMaturity := uint64(500*cpDuration) + posDuration
	if res.Maturity != wantMaturity {
		t.Errorf("maturity = %d, want %d", res.Maturity, wantMaturity)
	}

	longHash, err := long.Hash(f.domain)
	if err != nil {
		t.Fatal(err)
	}
	var status OrderStatus
	if rec := f.get(t, "/api/v1/orders/"+longHash.Hex(), &status); rec.Code != http.StatusOK {
		t.Fatalf("order status returned %d", rec.Code)
	}
	if status.BondsFilled != bonds.String() {
		t.Errorf("order bondsFilled = %s", status.BondsFilled)
	}
	if status.Cancelled {
		t.Error("order reported cancelled")
	}

	var pos PositionInfo
	path := fmt.Sprintf("/api/v1/accounts/%s/positions/long/%d", f.longKey.Address().Hex(), res.Maturity)
	if rec := f.get(t, path, &pos); rec.Code != http.StatusOK {
		t.Fatalf("position returned %d", rec.Code)
	}
	if pos.Balance != bonds.String() {
		t.Errorf("long balance = %s, want %s", pos.Balance, bonds)
	}
}

func TestCancelOrderEndpoint(t *testing.T) {
	f := newFixture(t)

	bonds := fixedpoint.Scaled(10)
	long := f.signedOrder(t, f.longKey, matching.OpenLong, bonds, fixedpoint.Scaled(9), 1)
	short := f.signedOrder(t, f.shortKey, matching.OpenShort, bonds, fixedpoint.Scaled(2), 2)

	var cancelled CancelResponse
	rec := f.post(t, "/api/v1/orders/cancel", CancelRequest{Order: ToOrderJSON(long)}, &cancelled)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel returned %d: %s", rec.Code, rec.Body.String())
	}
	if cancelled.Status != "cancelled" {
		t.Fatalf("status = %q", cancelled.Status)
	}

	rec = f.post(t, "/api/v1/orders/match", MatchRequest{Long: ToOrderJSON(long), Short: ToOrderJSON(short)}, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("match of cancelled order returned %d", rec.Code)
	}
}

func TestRejectsMalformedRequests(t *testing.T) {
	f := newFixture(t)

	if rec := f.get(t, "/api/v1/accounts/nothex/positions/long/86400", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad address returned %d", rec.Code)
	}
	if rec := f.get(t, "/api/v1/accounts/"+treasury.Hex()+"/positions/perp/86400", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad kind returned %d", rec.Code)
	}
	if rec := f.get(t, "/api/v1/orders/nothash", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad hash returned %d", rec.Code)
	}

	long := f.signedOrder(t, f.longKey, matching.OpenLong, fixedpoint.Scaled(10), fixedpoint.Scaled(9), 1)
	bad := ToOrderJSON(long)
	bad.OrderType = "margin_call"
	if rec := f.post(t, "/api/v1/orders/match", MatchRequest{Long: bad, Short: bad}, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad order type returned %d", rec.Code)
	}
}

func TestOrderJSONRoundTrip(t *testing.T) {
	f := newFixture(t)
	o := f.signedOrder(t, f.longKey, matching.CloseShort, fixedpoint.Scaled(7), fixedpoint.Scaled(3), 9)
	o.MinMaturityTime = 86400
	o.MaxMaturityTime = 86400

	got, err := parseOrder(ToOrderJSON(o))
	if err != nil {
		t.Fatalf("parseOrder: %v", err)
	}
	wantHash, err := o.Hash(f.domain)
	if err != nil {
		t.Fatal(err)
	}
	gotHash, err := got.Hash(f.domain)
	if err != nil {
		t.Fatal(err)
	}
	if gotHash != wantHash {
		t.Fatalf("JSON round trip changed the hash: %s != %s", gotHash.Hex(), wantHash.Hex())
	}
}
