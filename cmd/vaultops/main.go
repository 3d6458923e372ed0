package main

import (
	"context"
	"os"
	"strconv"

	sdkmath "cosmossdk.io/math"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/openvault/adaptors/internal/adaptor/farm"
	"github.com/openvault/adaptors/internal/adaptor/lppool"
	"github.com/openvault/adaptors/internal/config"
	"github.com/openvault/adaptors/internal/ledger"
	"github.com/openvault/adaptors/internal/logger"
	"github.com/openvault/adaptors/internal/protocol"
	"github.com/openvault/adaptors/internal/registry"
	"github.com/openvault/adaptors/internal/state"
	"github.com/openvault/adaptors/internal/strategist"
	"github.com/openvault/adaptors/internal/types"
	"github.com/openvault/adaptors/internal/utils"
	"github.com/openvault/adaptors/internal/vault"
	"github.com/openvault/adaptors/internal/web"
)

const (
	baseDenom    = "uusdc"
	receiptDenom = "lp/balanced/1"
	rewardDenom  = "ureward"
	farmID       = protocol.FarmID(1)

	poolPositionKey = types.PositionKey("balanced-pool-1")
	farmPositionKey = types.PositionKey("farm-stake-1")
)

// main is the entry point for the vault operations rehearsal binary.
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
	log.Info().Str("vault", config.VaultName).Msg("Vault operations rehearsal starting...")

	// Initialize database connection when receipt persistence is on
	if config.PersistReceipts {
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

		// Receipt API is only useful with persistence on
		webPort := os.Getenv("WEB_PORT")
		if webPort == "" {
			webPort = "8080"
		}
		webServer := web.NewWebServer(webPort, config.VaultName)
		go func() {
			log.Info().Str("port", webPort).Msg("Starting receipt API server")
			if err := webServer.Start(); err != nil {
				log.Error().Err(err).Msg("Web server failed to start")
			}
		}()
	}

	// --- 2. Protocol Simulation Setup ---
	fee, err := utils.Float64ToLegacyDec(config.PoolFeePercent)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid pool fee")
	}
	virtualPrice, err := utils.Float64ToLegacyDec(config.PoolVirtualPrice)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid pool virtual price")
	}

	pool, err := protocol.NewBalancedPool(protocol.BalancedPoolConfig{
		Name:         "balanced-1",
		Coins:        []string{baseDenom, "uatom", "uosmo"},
		ReceiptDenom: receiptDenom,
		Rates: []sdkmath.LegacyDec{
			sdkmath.LegacyOneDec(),
			sdkmath.LegacyMustNewDecFromStr("12.5"),
			sdkmath.LegacyMustNewDecFromStr("0.85"),
		},
		VirtualPrice: virtualPrice,
		Fee:          fee.Quo(sdkmath.LegacyNewDec(100)),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build pool simulation")
	}

	farmSim, err := protocol.NewFarmSim("farm-1", rewardDenom, map[protocol.FarmID]protocol.PoolInfo{
		farmID: {ReceiptDenom: receiptDenom, Staker: "farm-1/staker"},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build farm simulation")
	}

	// --- 3. Adaptor and Registry Setup ---
	poolAdaptor := lppool.New()
	farmAdaptor, err := farm.New(farmSim)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build farm adaptor")
	}

	reg := registry.New()
	if err := reg.RegisterAdaptor(poolAdaptor); err != nil {
		log.Fatal().Err(err).Msg("Failed to register pool adaptor")
	}
	if err := reg.RegisterAdaptor(farmAdaptor); err != nil {
		log.Fatal().Err(err).Msg("Failed to register farm adaptor")
	}
	if err := reg.RegisterPosition(poolPositionKey, poolAdaptor.Identifier(), types.PoolPosition{
		Pool:         pool,
		ReceiptDenom: receiptDenom,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to register pool position")
	}
	if err := reg.RegisterPosition(farmPositionKey, farmAdaptor.Identifier(), types.FarmPosition{
		FarmID:       farmID,
		ReceiptDenom: receiptDenom,
		Pool:         pool,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to register farm position")
	}

	// --- 4. Executor Setup ---
	book := ledger.NewBook()
	if err := book.Credit(baseDenom, sdkmath.NewIntFromUint64(config.SeedBaseAmount)); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed the book")
	}

	executor, err := vault.NewExecutor(book, reg, pool, farmSim)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create executor")
	}

	// --- 5. Run the Rehearsal ---
	runner, err := strategist.New(strategist.Config{
		Executor:                 executor,
		Pool:                     pool,
		Farm:                     farmSim,
		FarmID:                   farmID,
		PoolAdaptorID:            poolAdaptor.Identifier(),
		FarmAdaptorID:            farmAdaptor.Identifier(),
		PoolPositionKey:          poolPositionKey,
		FarmPositionKey:          farmPositionKey,
		SlippageTolerancePercent: config.SlippageTolerancePercent,
		RewardAccrual:            sdkmath.NewIntFromUint64(config.RewardAccrualAmount),
		VaultName:                config.VaultName,
		PersistReceipts:          config.PersistReceipts,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create strategist")
	}

	if err := runner.Run(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Rehearsal run failed")
	}

	log.Info().Msg("Rehearsal run finished successfully")
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
