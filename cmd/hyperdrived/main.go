package main

import (
	"context"
	"log"
	"math/big"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/delvtech/hyperdrive-sub010/params"
	"github.com/delvtech/hyperdrive-sub010/pkg/api"
	"github.com/delvtech/hyperdrive-sub010/pkg/crypto"
	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
	"github.com/delvtech/hyperdrive-sub010/pkg/hyperdrive"
	"github.com/delvtech/hyperdrive-sub010/pkg/ledger"
	"github.com/delvtech/hyperdrive-sub010/pkg/matching"
	"github.com/delvtech/hyperdrive-sub010/pkg/p2p"
	"github.com/delvtech/hyperdrive-sub010/pkg/storage"
	"github.com/delvtech/hyperdrive-sub010/pkg/util"
	"github.com/delvtech/hyperdrive-sub010/pkg/vault"
)

func main() {
	cfg := params.LoadFromEnv("")

	if err := os.MkdirAll(cfg.Node.DataDir, 0755); err != nil {
		log.Fatalf("data dir: %v", err)
	}

	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = filepath.Join(cfg.Node.DataDir, "node.log")
	}
	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	// ---- Operator key ----
	var operator *crypto.Signer
	if cfg.Node.PrivateKeyHex != "" {
		operator, err = crypto.FromPrivateKeyHex(cfg.Node.PrivateKeyHex)
	} else {
		operator, err = crypto.GenerateKey()
	}
	if err != nil {
		sugar.Fatalw("operator_key_failed", "err", err)
	}
	sugar.Infow("operator", "address", operator.Address().Hex())

	treasury := operator.Address()
	if cfg.Node.Treasury != "" {
		if !common.IsHexAddress(cfg.Node.Treasury) {
			sugar.Fatalw("bad_treasury_address", "addr", cfg.Node.Treasury)
		}
		treasury = common.HexToAddress(cfg.Node.Treasury)
	}

	// ---- Pool ----
	stretch, err := hyperdrive.CalculateTimeStretch(cfg.Market.TargetAPR)
	if err != nil {
		sugar.Fatalw("time_stretch_failed", "err", err)
	}
	poolCfg := hyperdrive.PoolConfig{
		InitialSharePrice:    fixedpoint.One(),
		MinimumShareReserves: cfg.Market.MinimumShareReserves,
		PositionDuration:     cfg.Market.PositionDuration,
		CheckpointDuration:   cfg.Market.CheckpointDuration,
		TimeStretch:          stretch,
		CurveFee:             cfg.Market.CurveFee,
		FlatFee:              cfg.Market.FlatFee,
		GovernanceFee:        cfg.Market.GovernanceFee,
	}

	v := vault.NewMockVault()
	l := ledger.NewMemoryLedger()
	clock := util.RealClock{}
	pool, err := hyperdrive.NewPool(poolCfg, l, v, clock, logger)
	if err != nil {
		sugar.Fatalw("pool_init_failed", "err", err)
	}

	if _, err := pool.Initialize(
		operator.Address(),
		cfg.Market.InitialContribution,
		cfg.Market.TargetAPR,
		hyperdrive.Options{Destination: operator.Address(), AsBase: true},
	); err != nil {
		sugar.Fatalw("pool_seed_failed", "err", err)
	}
	sugar.Infow("pool_initialized",
		"contribution", cfg.Market.InitialContribution,
		"target_apr", cfg.Market.TargetAPR,
		"position_duration", cfg.Market.PositionDuration)

	// ---- Persistence ----
	store, err := storage.NewStore(filepath.Join(cfg.Node.DataDir, "hyperdrive"))
	if err != nil {
		sugar.Fatalw("store_open_failed", "err", err)
	}
	defer store.Close()
	if err := store.SavePoolState(pool.State()); err != nil {
		sugar.Warnw("state_persist_failed", "err", err)
	}

	// ---- Matching engine ----
	// The market is identified by the operator key that runs it.
	poolAddr := operator.Address()
	domain := crypto.EIP712Domain{
		Name:              "Hyperdrive",
		Version:           "1",
		ChainID:           big.NewInt(cfg.Node.ChainID),
		VerifyingContract: common.Address{},
	}
	eip712 := crypto.NewEIP712Signer(domain)
	engine := matching.NewEngine(pool, poolAddr, v, eip712, crypto.EOAVerifier{}, clock, logger, treasury)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- API server ----
	apiServer := api.NewServer(pool, l, engine, eip712, logger)
	go func() {
		if err := apiServer.Start(cfg.Node.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	// ---- Gossip ----
	rly := newRelay(engine, eip712, store, apiServer, sugar)
	net, err := p2p.NewNet(ctx, p2p.Config{
		ListenAddr: cfg.Node.P2PListenAddr,
		Bootstrap:  cfg.Node.Bootstrap,
		Logger:     sugar,
	})
	if err != nil {
		sugar.Fatalw("p2p_init_failed", "err", err)
	}
	defer net.Close()
	net.SetHandlers(p2p.Handlers{
		OnOrder:  rly.handleOrder,
		OnCancel: rly.handleCancel,
	})

	sugar.Infow("node_started",
		"pool", poolAddr.Hex(),
		"api_addr", cfg.Node.APIAddr,
		"peer_id", net.Host().ID().String())

	// ---- Checkpoint loop ----
	// Mint each checkpoint shortly after its boundary passes so maturities
	// settle without waiting for the next trade.
	ticker := time.NewTicker(checkpointPollInterval(cfg.Market.CheckpointDuration))
	defer ticker.Stop()

	lastMinted := pool.LatestCheckpointTime()
	for {
		select {
		case <-ctx.Done():
			sugar.Info("shutting_down")
			return
		case <-ticker.C:
			boundary := pool.Config().ToCheckpoint(uint64(clock.Now().Unix()))
			if boundary <= lastMinted {
				continue
			}
			if err := pool.Checkpoint(boundary); err != nil {
				sugar.Warnw("checkpoint_failed", "time", boundary, "err", err)
				continue
			}
			lastMinted = boundary
			if cp, ok := pool.CheckpointAt(boundary); ok {
				if err := store.SaveCheckpoint(cp); err != nil {
					sugar.Warnw("checkpoint_persist_failed", "time", boundary, "err", err)
				}
			}
			if err := store.SavePoolState(pool.State()); err != nil {
				sugar.Warnw("state_persist_failed", "err", err)
			}
			apiServer.BroadcastPool()
			sugar.Infow("checkpoint_minted", "time", boundary)
		}
	}
}

func checkpointPollInterval(checkpointDuration uint64) time.Duration {
	interval := time.Duration(checkpointDuration) * time.Second / 10
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}
