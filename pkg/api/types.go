package api

// API response types for REST endpoints and WebSocket messages. Fixed-point
// amounts travel as base-10 strings of the raw 18-decimal value.

// ==============================
// REST Response Types
// ==============================

// PoolInfo is the live reserve and exposure snapshot plus spot quotes.
type PoolInfo struct {
	ShareReserves     string `json:"shareReserves"`
	BondReserves      string `json:"bondReserves"`
	VaultSharePrice   string `json:"vaultSharePrice"`
	LPTotalSupply     string `json:"lpTotalSupply"`
	LongsOutstanding  string `json:"longsOutstanding"`
	ShortsOutstanding string `json:"shortsOutstanding"`

	WithdrawalSharesOutstanding     string `json:"withdrawalSharesOutstanding"`
	WithdrawalSharesReadyToWithdraw string `json:"withdrawalSharesReadyToWithdraw"`
	WithdrawalSharesProceeds        string `json:"withdrawalSharesProceeds"`

	SpotPrice string `json:"spotPrice"`
	SpotRate  string `json:"spotRate"`
	Timestamp int64  `json:"timestamp"` // Unix milliseconds
}

// PoolConfigInfo is the immutable pool configuration.
type PoolConfigInfo struct {
	InitialSharePrice    string `json:"initialSharePrice"`
	MinimumShareReserves string `json:"minimumShareReserves"`
	PositionDuration     uint64 `json:"positionDuration"`
	CheckpointDuration   uint64 `json:"checkpointDuration"`
	TimeStretch          string `json:"timeStretch"`
	CurveFee             string `json:"curveFee"`
	FlatFee              string `json:"flatFee"`
	GovernanceFee        string `json:"governanceFee"`
}

// CheckpointInfo is one maturity bucket's frozen prices and claim pots.
type CheckpointInfo struct {
	Time                 uint64 `json:"time"`
	VaultSharePrice      string `json:"vaultSharePrice"`
	LongOpenSharePrice   string `json:"longOpenSharePrice"`
	MaturedLongProceeds  string `json:"maturedLongProceeds"`
	MaturedShortProceeds string `json:"maturedShortProceeds"`
}

// PositionInfo is one account's balance of a single position token.
type PositionInfo struct {
	Address  string `json:"address"`
	Kind     string `json:"kind"` // "LP", "Long", "Short", "WithdrawalShare"
	Maturity uint64 `json:"maturity"`
	Balance  string `json:"balance"`
}

// OrderStatus reports fill accounting for one order hash.
type OrderStatus struct {
	Hash        string `json:"hash"`
	BondsFilled string `json:"bondsFilled"`
	FundsUsed   string `json:"fundsUsed"`
	Cancelled   bool   `json:"cancelled"`
}

// MatchResponse is returned from a successful POST /orders/match.
type MatchResponse struct {
	Status      string `json:"status"` // "settled"
	BondsFilled string `json:"bondsFilled"`
	Maturity    uint64 `json:"maturity"`
	LongFund    string `json:"longFund"`
	ShortFund   string `json:"shortFund"`
	Leftover    string `json:"leftover"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ==============================
// REST Request Types
// ==============================

// OrderJSON is the wire form of a signed order intent. Addresses are hex,
// amounts raw 18-decimal strings, the signature 65 bytes of hex.
type OrderJSON struct {
	Trader             string `json:"trader"`
	Counterparty       string `json:"counterparty,omitempty"`
	Pool               string `json:"pool"`
	FundAmount         string `json:"fundAmount"`
	BondAmount         string `json:"bondAmount"`
	MinVaultSharePrice string `json:"minVaultSharePrice"`
	Destination        string `json:"destination"`
	AsBase             bool   `json:"asBase"`
	OrderType          string `json:"orderType"` // "open_long", "open_short", "close_long", "close_short"
	MinMaturityTime    uint64 `json:"minMaturityTime"`
	MaxMaturityTime    uint64 `json:"maxMaturityTime"`
	Expiry             uint64 `json:"expiry"`
	Salt               uint64 `json:"salt"`
	Signature          string `json:"signature"`
}

// MatchRequest is the payload for POST /api/v1/orders/match.
type MatchRequest struct {
	Long  OrderJSON `json:"long"`
	Short OrderJSON `json:"short"`
}

// CancelRequest is the payload for POST /api/v1/orders/cancel. The full
// signed intent travels so the server can recompute the hash and verify
// the signature before marking it dead.
type CancelRequest struct {
	Order OrderJSON `json:"order"`
}

// CancelResponse acknowledges a cancellation.
type CancelResponse struct {
	Status string `json:"status"` // "cancelled"
	Hash   string `json:"hash"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by clients to subscribe to channels.
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["pool", "fills"]
}

// PoolUpdate is broadcast on the "pool" channel after state changes.
type PoolUpdate struct {
	Type string   `json:"type"` // "pool"
	Pool PoolInfo `json:"pool"`
}

// FillUpdate is broadcast on the "fills" channel when a match settles.
type FillUpdate struct {
	Type        string `json:"type"` // "fill"
	LongHash    string `json:"longHash"`
	ShortHash   string `json:"shortHash"`
	BondsFilled string `json:"bondsFilled"`
	Maturity    uint64 `json:"maturity"`
	Timestamp   int64  `json:"timestamp"` // Unix milliseconds
}
