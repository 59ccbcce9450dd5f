package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/lumefi/bridgepool/internal/bridge"
	"github.com/lumefi/bridgepool/internal/config"
	"github.com/lumefi/bridgepool/internal/engine"
	"github.com/lumefi/bridgepool/internal/ledger"
	"github.com/lumefi/bridgepool/internal/logger"
	"github.com/lumefi/bridgepool/internal/pool"
	"github.com/lumefi/bridgepool/internal/query"
	"github.com/lumefi/bridgepool/internal/state"
	"github.com/lumefi/bridgepool/internal/types"
	"github.com/lumefi/bridgepool/internal/web"
	"github.com/lumefi/bridgepool/internal/yieldsource"
)

const (
	LOOP_INTERVAL = 1 * time.Minute
)

// main is the entry point for the bridgepool keeper service.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Bridgepool keeper starting...")

	// Initialize Database Connection (epoch snapshot journal)
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// --- 2. Domain Wiring (with Safety Switch) ---
	// Only the in-process domain binding exists today; halt on anything else
	// so a live binding is never assumed by accident.
	poolMode := os.Getenv("POOL_MODE")
	if poolMode != "sim" {
		log.Fatal().Msg("POOL_MODE is not set to 'sim'. Halting to prevent accidental execution. Set POOL_MODE=sim to run.")
	}

	nearToken := ledger.New("near token")
	farToken := ledger.New("far token")
	messenger := bridge.NewMemoryMessenger()
	gateway := bridge.NewMemoryGateway(nearToken, farToken)
	source := yieldsource.NewMemoryVault()

	nearAddr := types.Address(config.NearPoolAddress)
	farAddr := types.Address(config.FarPoolAddress)

	nearPool, err := pool.NewNearPool(pool.NearPoolConfig{
		Self:                nearAddr,
		FarPool:             farAddr,
		Token:               nearToken,
		Messenger:           messenger.Endpoint(nearAddr),
		Gateway:             gateway,
		BatchTransferPeriod: config.BatchTransferPeriod,
		WithdrawalPeriod:    config.WithdrawalPeriod,
		GasLimit:            config.MessageGasLimit,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create near pool")
	}

	farPool, err := pool.NewFarPool(pool.FarPoolConfig{
		Self:      farAddr,
		NearPool:  nearAddr,
		Token:     farToken,
		Source:    source,
		Gateway:   gateway,
		Messenger: messenger.Endpoint(farAddr),
		GasLimit:  config.MessageGasLimit,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create far pool")
	}

	messenger.Register(nearAddr, nearPool)
	messenger.Register(farAddr, farPool)
	log.Info().
		Str("near_pool", nearAddr.String()).
		Str("far_pool", farAddr.String()).
		Msg("Pool pair wired")

	// --- 3. Start Web Server ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	withdrawals := query.NewWithdrawalSummaryQuery(nearPool)
	webServer := web.NewWebServer(webPort, nearPool, farPool, withdrawals, true)
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting pool API server")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 4. Create Engine Instance with Dependency Injection ---
	log.Info().Msg("Creating engine instance with dependency injection...")

	keeper, err := engine.New(engine.Config{
		Near:    nearPool,
		Far:     farPool,
		Relay:   messenger,
		Journal: true,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create engine instance")
	}

	log.Info().Msg("Engine instance created successfully")

	// --- 5. Start Keeper Loop ---
	log.Info().Str("interval", LOOP_INTERVAL.String()).Msg("Starting keeper loop")

	ctx := context.Background()

	keeper.RunLoop(ctx, LOOP_INTERVAL)
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
