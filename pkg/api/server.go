package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/delvtech/hyperdrive-sub010/pkg/assetid"
	"github.com/delvtech/hyperdrive-sub010/pkg/crypto"
	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
	"github.com/delvtech/hyperdrive-sub010/pkg/hyperdrive"
	"github.com/delvtech/hyperdrive-sub010/pkg/ledger"
	"github.com/delvtech/hyperdrive-sub010/pkg/matching"
)

// Server exposes pool state over REST and pushes updates over WebSocket.
// Trades enter as matched pairs of signed intents; the server never holds
// keys and verifies nothing itself, that is the engine's job.
type Server struct {
	pool   *hyperdrive.Pool
	ledger ledger.Ledger
	engine *matching.Engine
	domain *crypto.EIP712Signer
	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger
}

// NewServer wires the REST router and WebSocket hub around a pool and its
// matching engine.
func NewServer(
	pool *hyperdrive.Pool,
	l ledger.Ledger,
	engine *matching.Engine,
	domain *crypto.EIP712Signer,
	logger *zap.Logger,
) *Server {
	s := &Server{
		pool:   pool,
		ledger: l,
		engine: engine,
		domain: domain,
		router: mux.NewRouter(),
		hub:    NewHub(logger.Sugar()),
		log:    logger.Sugar(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Pool endpoints
	api.HandleFunc("/pool", s.handleGetPool).Methods("GET")
	api.HandleFunc("/pool/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/pool/checkpoints/{time}", s.handleGetCheckpoint).Methods("GET")

	// Account endpoints
	api.HandleFunc("/accounts/{address}/positions/{kind}/{maturity}", s.handleGetPosition).Methods("GET")

	// Order endpoints
	api.HandleFunc("/orders/match", s.handleMatchOrders).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/orders/{hash}", s.handleGetOrder).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the CORS-wrapped root handler.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Start runs the WebSocket hub and serves HTTP on addr. Blocks.
func (s *Server) Start(addr string) error {
	go s.hub.Run()
	s.log.Infow("api_listening", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.poolInfo())
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.pool.Config()
	respondJSON(w, PoolConfigInfo{
		InitialSharePrice:    cfg.InitialSharePrice.String(),
		MinimumShareReserves: cfg.MinimumShareReserves.String(),
		PositionDuration:     cfg.PositionDuration,
		CheckpointDuration:   cfg.CheckpointDuration,
		TimeStretch:          cfg.TimeStretch.String(),
		CurveFee:             cfg.CurveFee.String(),
		FlatFee:              cfg.FlatFee.String(),
		GovernanceFee:        cfg.GovernanceFee.String(),
	})
}

func (s *Server) handleGetCheckpoint(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	t, err := strconv.ParseUint(vars["time"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid checkpoint time", err.Error())
		return
	}

	cp, ok := s.pool.CheckpointAt(t)
	if !ok {
		respondError(w, http.StatusNotFound, "checkpoint not found", "")
		return
	}

	respondJSON(w, CheckpointInfo{
		Time:                 cp.Time,
		VaultSharePrice:      cp.VaultSharePrice.String(),
		LongOpenSharePrice:   cp.LongOpenSharePrice.String(),
		MaturedLongProceeds:  cp.MaturedLongProceeds.String(),
		MaturedShortProceeds: cp.MaturedShortProceeds.String(),
	})
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if !common.IsHexAddress(vars["address"]) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}
	addr := common.HexToAddress(vars["address"])

	kind, err := parseKind(vars["kind"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid position kind", err.Error())
		return
	}

	maturity, err := strconv.ParseUint(vars["maturity"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid maturity", err.Error())
		return
	}

	id, err := assetid.Encode(kind, maturity)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid position", err.Error())
		return
	}

	respondJSON(w, PositionInfo{
		Address:  addr.Hex(),
		Kind:     kind.String(),
		Maturity: maturity,
		Balance:  s.ledger.BalanceOf(id, addr).String(),
	})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	raw := vars["hash"]
	if !strings.HasPrefix(raw, "0x") || len(raw) != 66 {
		respondError(w, http.StatusBadRequest, "invalid order hash", "")
		return
	}
	hash := common.HexToHash(raw)

	bonds, funds := s.engine.Amounts().Used(hash)
	respondJSON(w, OrderStatus{
		Hash:        hash.Hex(),
		BondsFilled: bonds.String(),
		FundsUsed:   funds.String(),
		Cancelled:   s.engine.Amounts().IsCancelled(hash),
	})
}

func (s *Server) handleMatchOrders(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	long, err := parseOrder(req.Long)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid long order", err.Error())
		return
	}
	short, err := parseOrder(req.Short)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid short order", err.Error())
		return
	}

	res, err := s.engine.MatchOrders(long, short)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "match rejected", err.Error())
		return
	}

	longHash, _ := long.Hash(s.domain)
	shortHash, _ := short.Hash(s.domain)
	s.log.Infow("match_settled",
		"long", longHash.Hex(), "short", shortHash.Hex(),
		"bonds", res.BondsFilled, "maturity", res.Maturity)

	s.BroadcastFill(longHash, shortHash, res)
	s.BroadcastPool()

	respondJSON(w, MatchResponse{
		Status:      "settled",
		BondsFilled: res.BondsFilled.String(),
		Maturity:    res.Maturity,
		LongFund:    res.LongFund.String(),
		ShortFund:   res.ShortFund.String(),
		Leftover:    res.Leftover.String(),
	})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	o, err := parseOrder(req.Order)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order", err.Error())
		return
	}

	if err := s.engine.Cancel(o); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "cancel rejected", err.Error())
		return
	}

	hash, _ := o.Hash(s.domain)
	respondJSON(w, CancelResponse{Status: "cancelled", Hash: hash.Hex()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast Methods
// ==============================

// BroadcastPool pushes the current pool snapshot to "pool" subscribers.
func (s *Server) BroadcastPool() {
	s.hub.BroadcastToChannel("pool", PoolUpdate{Type: "pool", Pool: s.poolInfo()})
}

// BroadcastFill pushes a settlement to "fills" subscribers.
func (s *Server) BroadcastFill(longHash, shortHash common.Hash, res matching.MatchResult) {
	s.hub.BroadcastToChannel("fills", FillUpdate{
		Type:        "fill",
		LongHash:    longHash.Hex(),
		ShortHash:   shortHash.Hex(),
		BondsFilled: res.BondsFilled.String(),
		Maturity:    res.Maturity,
		Timestamp:   time.Now().UnixMilli(),
	})
}

func (s *Server) poolInfo() PoolInfo {
	state := s.pool.State()
	cfg := s.pool.Config()

	// Spot quotes are undefined before initialization; report zero.
	spotPrice := fixedpoint.Zero()
	spotRate := fixedpoint.Zero()
	if !state.ShareReserves.IsZero() {
		if p, err := hyperdrive.SpotPrice(state, cfg); err == nil {
			spotPrice = p
		}
		if r, err := hyperdrive.SpotRate(state, cfg); err == nil {
			spotRate = r
		}
	}

	return PoolInfo{
		ShareReserves:     state.ShareReserves.String(),
		BondReserves:      state.BondReserves.String(),
		VaultSharePrice:   state.VaultSharePrice.String(),
		LPTotalSupply:     state.LPTotalSupply.String(),
		LongsOutstanding:  state.LongsOutstanding.String(),
		ShortsOutstanding: state.ShortsOutstanding.String(),

		WithdrawalSharesOutstanding:     state.WithdrawalSharesOutstanding.String(),
		WithdrawalSharesReadyToWithdraw: state.WithdrawalSharesReadyToWithdraw.String(),
		WithdrawalSharesProceeds:        state.WithdrawalSharesProceeds.String(),

		SpotPrice: spotPrice.String(),
		SpotRate:  spotRate.String(),
		Timestamp: time.Now().UnixMilli(),
	}
}

// ==============================
// Parsing Helpers
// ==============================

func parseKind(s string) (assetid.Kind, error) {
	switch strings.ToLower(s) {
	case "lp":
		return assetid.LP, nil
	case "long":
		return assetid.Long, nil
	case "short":
		return assetid.Short, nil
	case "withdrawal", "withdrawalshare":
		return assetid.WithdrawalShare, nil
	}
	return 0, fmt.Errorf("unknown kind %q", s)
}

func parseOrderType(s string) (matching.OrderType, error) {
	switch s {
	case "open_long":
		return matching.OpenLong, nil
	case "open_short":
		return matching.OpenShort, nil
	case "close_long":
		return matching.CloseLong, nil
	case "close_short":
		return matching.CloseShort, nil
	}
	return 0, fmt.Errorf("unknown order type %q", s)
}

func parseAddress(s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// parseOrder converts the JSON wire form into a signed intent.
func parseOrder(j OrderJSON) (*matching.OrderIntent, error) {
	trader, err := parseAddress(j.Trader)
	if err != nil {
		return nil, err
	}
	counterparty, err := parseAddress(j.Counterparty)
	if err != nil {
		return nil, err
	}
	pool, err := parseAddress(j.Pool)
	if err != nil {
		return nil, err
	}
	destination, err := parseAddress(j.Destination)
	if err != nil {
		return nil, err
	}

	fund, err := fixedpoint.FromDecimal(j.FundAmount)
	if err != nil {
		return nil, err
	}
	bonds, err := fixedpoint.FromDecimal(j.BondAmount)
	if err != nil {
		return nil, err
	}
	minPrice, err := fixedpoint.FromDecimal(j.MinVaultSharePrice)
	if err != nil {
		return nil, err
	}

	typ, err := parseOrderType(j.OrderType)
	if err != nil {
		return nil, err
	}

	sig := common.FromHex(j.Signature)
	if len(sig) != 65 {
		return nil, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}

	return &matching.OrderIntent{
		Trader:             trader,
		Counterparty:       counterparty,
		Pool:               pool,
		FundAmount:         fund,
		BondAmount:         bonds,
		MinVaultSharePrice: minPrice,
		Destination:        destination,
		AsBase:             j.AsBase,
		OrderType:          typ,
		MinMaturityTime:    j.MinMaturityTime,
		MaxMaturityTime:    j.MaxMaturityTime,
		Expiry:             j.Expiry,
		Salt:               j.Salt,
		Signature:          sig,
	}, nil
}

// ToOrderJSON is the inverse of parseOrder, used by clients and tests.
func ToOrderJSON(o *matching.OrderIntent) OrderJSON {
	counterparty := ""
	if o.Counterparty != (common.Address{}) {
		counterparty = o.Counterparty.Hex()
	}
	return OrderJSON{
		Trader:             o.Trader.Hex(),
		Counterparty:       counterparty,
		Pool:               o.Pool.Hex(),
		FundAmount:         o.FundAmount.String(),
		BondAmount:         o.BondAmount.String(),
		MinVaultSharePrice: o.MinVaultSharePrice.String(),
		Destination:        o.Destination.Hex(),
		AsBase:             o.AsBase,
		OrderType:          o.OrderType.String(),
		MinMaturityTime:    o.MinMaturityTime,
		MaxMaturityTime:    o.MaxMaturityTime,
		Expiry:             o.Expiry,
		Salt:               o.Salt,
		Signature:          "0x" + common.Bytes2Hex(o.Signature),
	}
}

// ==============================
// Helper Functions
// ==============================

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
