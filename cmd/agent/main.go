package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"

	"github.com/nullpointer-labs/evmtrader/configs"
	"github.com/nullpointer-labs/evmtrader/internal/aggregate"
	"github.com/nullpointer-labs/evmtrader/internal/chain"
	"github.com/nullpointer-labs/evmtrader/internal/control"
	"github.com/nullpointer-labs/evmtrader/internal/db"
	"github.com/nullpointer-labs/evmtrader/internal/feed"
	"github.com/nullpointer-labs/evmtrader/internal/model"
	"github.com/nullpointer-labs/evmtrader/internal/policy"
	"github.com/nullpointer-labs/evmtrader/internal/router"
	"github.com/nullpointer-labs/evmtrader/internal/supervisor"
	"github.com/nullpointer-labs/evmtrader/internal/trade"
)

func main() {
	_ = godotenv.Load()

	pkHex := os.Getenv("PRIVATE_KEY")
	if pkHex == "" {
		panic("PRIVATE_KEY not set")
	}
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(pkHex, "0x"))
	if err != nil {
		panic(err)
	}
	owner := crypto.PubkeyToAddress(privateKey.PublicKey)

	rpcURL := getenv("RPC_URL", "https://mainnet.base.org")
	serverURL := getenv("SERVER_URL", "")
	configPath := getenv("CONFIG_PATH", "configs/config.yml")
	tradesPath := getenv("TRADES_PATH", "data/trades.json")
	tradeLogPath := getenv("TRADE_LOG_PATH", "data/trades.log")
	controlPort, err := strconv.Atoi(getenv("CONTROL_PORT", "8080"))
	if err != nil {
		panic(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		log.Fatalf("dial %s: %v", rpcURL, err)
	}
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		log.Fatalf("fetch chain id: %v", err)
	}

	chainClnt := chain.NewClient(eth, chainID, owner, privateKey)

	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatalf("load config %s: %v", configPath, err)
	}
	store := control.NewConfigStore(configPath, cfg)

	tokens := trade.TokenAddresses{
		ZORA:    addressOf(cfg.Deployment, model.DeploymentZora),
		CLANKER: addressOf(cfg.Deployment, model.DeploymentClanker),
		WETH:    addressOf(cfg.Deployment, model.DeploymentWeth),
	}
	addrs := router.Addresses{
		V2SwapperProxy:    addressOf(cfg.Deployment, model.DeploymentV2SwapperProxy),
		V3UniswapRouter:   addressOf(cfg.Deployment, model.DeploymentV3UniswapRouter),
		V3AerodromeRouter: addressOf(cfg.Deployment, model.DeploymentV3AerodromeRouter),
		V4UniversalRouter: addressOf(cfg.Deployment, model.DeploymentV4UniversalRouter),
		Permit2:           addressOf(cfg.Deployment, model.DeploymentPermit2),
	}

	swapRouter := router.New(chainClnt, addrs)
	sandbox := policy.New()

	var recorder *db.MySQLRecorder
	if dsn := os.Getenv("MYSQL_DSN"); dsn != "" {
		recorder, err = db.NewMySQLRecorder(dsn)
		if err != nil {
			log.Fatalf("connect trade event recorder: %v", err)
		}
	}

	var lifecycle *trade.Lifecycle
	engine := aggregate.New(store.Get, nil, func(pair string) bool { return lifecycle.HasActiveTrade(pair) })

	feedClnt := feed.New(serverURL, feed.DefaultChainTags, engine)

	lifecycle = trade.New(store.Get, engine, chainClnt, swapRouter, sandbox, tokens, addrs, feedClnt.Prices, recorder, tradesPath, tradeLogPath)
	engine.SetDispatcher(lifecycle)

	controlSrv := control.New(controlPort, lifecycle, engine, chainClnt, store, feedClnt.Ready, chainClnt.NonceReady)

	sup := supervisor.New(supervisor.Meta{
		RPCURL:      rpcURL,
		ServerURL:   serverURL,
		ConfigPath:  configPath,
		ControlPort: controlPort,
	}, chainClnt, engine, lifecycle, feedClnt, controlSrv, store)

	if err := sup.Run(ctx); err != nil {
		log.Printf("supervisor exited with error: %v", err)
		os.Exit(supervisor.ExitCode(err))
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func addressOf(deployment map[string]string, key string) common.Address {
	return common.HexToAddress(deployment[key])
}
