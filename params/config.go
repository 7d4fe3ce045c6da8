package params

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
)

// Market holds the pool parameters fixed at startup.
type Market struct {
	// PositionDuration and CheckpointDuration are in seconds.
	PositionDuration   uint64
	CheckpointDuration uint64
	// TargetAPR seeds the time stretch and the initial reserve ratio.
	TargetAPR fixedpoint.FixedPoint
	// InitialContribution is the operator's seed liquidity, in base.
	InitialContribution  fixedpoint.FixedPoint
	MinimumShareReserves fixedpoint.FixedPoint
	CurveFee             fixedpoint.FixedPoint
	FlatFee              fixedpoint.FixedPoint
	GovernanceFee        fixedpoint.FixedPoint
}

type Node struct {
	// APIAddr is the REST/WebSocket listen address.
	APIAddr string
	// P2PListenAddr is the libp2p multiaddr to listen on; empty uses the
	// library defaults.
	P2PListenAddr string
	// Bootstrap peers as full multiaddrs with peer ids.
	Bootstrap []string
	// DataDir holds the pebble database and log files.
	DataDir string
	// PrivateKeyHex is the operator key; a fresh key is generated when empty.
	PrivateKeyHex string
	// Treasury receives settlement leftovers.
	Treasury string
	// ChainID scopes order signatures.
	ChainID int64
}

type Config struct {
	Market Market
	Node   Node
}

func Default() Config {
	return Config{
		Market: Market{
			PositionDuration:   365 * 24 * 60 * 60,
			CheckpointDuration: 24 * 60 * 60,
			// 5% target rate.
			TargetAPR:            fixedpoint.MustFromDecimal("50000000000000000"),
			InitialContribution:  fixedpoint.Scaled(1000),
			MinimumShareReserves: fixedpoint.One(),
			CurveFee:             fixedpoint.Zero(),
			FlatFee:              fixedpoint.Zero(),
			GovernanceFee:        fixedpoint.Zero(),
		},
		Node: Node{
			APIAddr: ":8080",
			DataDir: "data",
			ChainID: 1337,
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("POSITION_DURATION_SECONDS"); v != "" {
		if secs, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Market.PositionDuration = secs
		}
	}
	if v := os.Getenv("CHECKPOINT_DURATION_SECONDS"); v != "" {
		if secs, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Market.CheckpointDuration = secs
		}
	}
	if v := os.Getenv("TARGET_APR_WEI"); v != "" {
		if apr, err := fixedpoint.FromDecimal(v); err == nil {
			cfg.Market.TargetAPR = apr
		}
	}
	if v := os.Getenv("INITIAL_CONTRIBUTION_WEI"); v != "" {
		if amount, err := fixedpoint.FromDecimal(v); err == nil {
			cfg.Market.InitialContribution = amount
		}
	}
	if v := os.Getenv("CURVE_FEE_WEI"); v != "" {
		if fee, err := fixedpoint.FromDecimal(v); err == nil {
			cfg.Market.CurveFee = fee
		}
	}
	if v := os.Getenv("FLAT_FEE_WEI"); v != "" {
		if fee, err := fixedpoint.FromDecimal(v); err == nil {
			cfg.Market.FlatFee = fee
		}
	}
	if v := os.Getenv("GOVERNANCE_FEE_WEI"); v != "" {
		if fee, err := fixedpoint.FromDecimal(v); err == nil {
			cfg.Market.GovernanceFee = fee
		}
	}

	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.Node.APIAddr = v
	}
	if v := os.Getenv("P2P_LISTEN_ADDR"); v != "" {
		cfg.Node.P2PListenAddr = v
	}
	if v := os.Getenv("P2P_BOOTSTRAP"); v != "" {
		cfg.Node.Bootstrap = strings.Split(v, ",")
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Node.DataDir = v
	}
	if v := os.Getenv("NODE_PRIVATE_KEY"); v != "" {
		cfg.Node.PrivateKeyHex = v
	}
	if v := os.Getenv("TREASURY_ADDR"); v != "" {
		cfg.Node.Treasury = v
	}
	if v := os.Getenv("CHAIN_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Node.ChainID = id
		}
	}

	return cfg
}
