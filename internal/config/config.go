package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Service configuration loaded from environment variables. Populated at
// startup by LoadConfig.
var (
	// NearPoolAddress and FarPoolAddress identify the two pool ends; the
	// messenger authenticates cross-domain calls against them.
	NearPoolAddress string
	FarPoolAddress  string

	// BatchTransferPeriod is the epoch length for deposit sweeps.
	BatchTransferPeriod time.Duration
	// WithdrawalPeriod is the epoch length for withdrawal batches.
	WithdrawalPeriod time.Duration

	// MessageGasLimit is passed through to the messenger on every send.
	MessageGasLimit uint64
)

// LoadConfig loads configuration from environment variables and sets the
// global config vars. All listed variables are required.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	NearPoolAddress, err = getEnv("POOL_NEAR_ADDRESS")
	if err != nil {
		return err
	}

	FarPoolAddress, err = getEnv("POOL_FAR_ADDRESS")
	if err != nil {
		return err
	}

	BatchTransferPeriod, err = getEnvAsDuration("BATCH_TRANSFER_PERIOD")
	if err != nil {
		return err
	}

	WithdrawalPeriod, err = getEnvAsDuration("WITHDRAWAL_PERIOD")
	if err != nil {
		return err
	}

	MessageGasLimit, err = getEnvAsUint64("MESSAGE_GAS_LIMIT")
	if err != nil {
		return err
	}

	log.Debug().
		Str("NearPool", NearPoolAddress).
		Str("FarPool", FarPoolAddress).
		Dur("BatchTransferPeriod", BatchTransferPeriod).
		Dur("WithdrawalPeriod", WithdrawalPeriod).
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

// getEnvAsDuration retrieves an environment variable as a time.Duration
// (e.g. "10m", "1h30m"). Returns error if not set or invalid.
func getEnvAsDuration(key string) (time.Duration, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid duration, got: " + valueStr)
	}
	return value, nil
}
