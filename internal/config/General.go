package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// VaultName labels this vault instance in logs and persisted receipts.
	VaultName string

	// SeedBaseAmount is the base-asset balance the rehearsal book starts with,
	// in the base asset's smallest unit.
	SeedBaseAmount uint64

	// PoolFeePercent is the simulated pool's flat fee on mints and redemptions.
	PoolFeePercent float64
	// PoolVirtualPrice is the simulated pool's starting receipt-token price in
	// base-asset terms.
	PoolVirtualPrice float64

	// SlippageTolerancePercent sets how far below the quoted amount the
	// strategist's minimum-output floors sit.
	SlippageTolerancePercent float64

	// RewardAccrualAmount is the farm reward credited per rehearsal cycle, in
	// the reward denom's smallest unit.
	RewardAccrualAmount uint64

	// PersistReceipts enables writing batch receipts to PostgreSQL.
	PersistReceipts bool
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	VaultName, err = getEnv("VAULT_NAME")
	if err != nil {
		return err
	}

	SeedBaseAmount, err = getEnvAsUint64("SEED_BASE_AMOUNT")
	if err != nil {
		return err
	}

	PoolFeePercent, err = getEnvAsFloat64("POOL_FEE_PERCENT")
	if err != nil {
		return err
	}
	if PoolFeePercent < 0 || PoolFeePercent >= 100 {
		return errors.New("POOL_FEE_PERCENT must be in [0, 100)")
	}

	PoolVirtualPrice, err = getEnvAsFloat64("POOL_VIRTUAL_PRICE")
	if err != nil {
		return err
	}
	if PoolVirtualPrice <= 0 {
		return errors.New("POOL_VIRTUAL_PRICE must be positive")
	}

	SlippageTolerancePercent, err = getEnvAsFloat64("SLIPPAGE_TOLERANCE_PERCENT")
	if err != nil {
		return err
	}
	if SlippageTolerancePercent < 0 || SlippageTolerancePercent >= 100 {
		return errors.New("SLIPPAGE_TOLERANCE_PERCENT must be in [0, 100)")
	}

	RewardAccrualAmount, err = getEnvAsUint64("REWARD_ACCRUAL_AMOUNT")
	if err != nil {
		return err
	}

	PersistReceipts, err = getEnvAsBool("PERSIST_RECEIPTS")
	if err != nil {
		return err
	}

	log.Debug().
		Str("VaultName", VaultName).
		Uint64("SeedBaseAmount", SeedBaseAmount).
		Float64("PoolFeePercent", PoolFeePercent).
		Bool("PersistReceipts", PersistReceipts).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsFloat64 retrieves an environment variable as a float64. Returns error if not set or invalid.
func getEnvAsFloat64(key string) (float64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid float64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsBool retrieves an environment variable as a bool. Returns error if not set or invalid.
func getEnvAsBool(key string) (bool, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return false, err
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, errors.New("environment variable " + key + " must be a valid bool, got: " + valueStr)
	}
	return value, nil
}
