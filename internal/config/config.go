package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Application configuration loaded from environment variables. These are
// populated at startup by LoadConfig.
var (
	// Owner is the account allowed to mutate vault configuration.
	Owner string

	// Asset0Denom and Asset1Denom identify the two underlying assets of the
	// managed position, in venue sort order.
	Asset0Denom string
	Asset1Denom string

	// ProtocolFeeNumerator is the initial protocol fee over the 1e6 denominator.
	ProtocolFeeNumerator uint64
	// SlippageNumerator is the initial slippage tolerance over the 1e6 denominator.
	SlippageNumerator uint64
	// DesiredTickRange is the initial target range width in ticks.
	DesiredTickRange int64

	// VenueTickSpacing and VenueFeePips parameterize the simulated venue in
	// sim mode (the live venue reports its own).
	VenueTickSpacing int64
	VenueFeePips     uint64
	// GenesisTick is the simulated venue's starting price tick.
	GenesisTick int64
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	Owner, err = getEnv("VAULT_OWNER")
	if err != nil {
		return err
	}

	Asset0Denom, err = getEnv("ASSET0_DENOM")
	if err != nil {
		return err
	}

	Asset1Denom, err = getEnv("ASSET1_DENOM")
	if err != nil {
		return err
	}

	ProtocolFeeNumerator, err = getEnvAsUint64("PROTOCOL_FEE_NUMERATOR")
	if err != nil {
		return err
	}

	SlippageNumerator, err = getEnvAsUint64("SLIPPAGE_NUMERATOR")
	if err != nil {
		return err
	}

	DesiredTickRange, err = getEnvAsInt64("DESIRED_TICK_RANGE")
	if err != nil {
		return err
	}

	VenueTickSpacing, err = getEnvAsInt64("VENUE_TICK_SPACING")
	if err != nil {
		return err
	}

	VenueFeePips, err = getEnvAsUint64("VENUE_FEE_PIPS")
	if err != nil {
		return err
	}

	GenesisTick, err = getEnvAsInt64("GENESIS_TICK")
	if err != nil {
		return err
	}

	log.Debug().
		Str("Owner", Owner).
		Str("Asset0", Asset0Denom).
		Str("Asset1", Asset1Denom).
		Int64("DesiredTickRange", DesiredTickRange).
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

// getEnvAsInt64 retrieves an environment variable as an int64. Returns error if not set or invalid.
func getEnvAsInt64(key string) (int64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int64, got: " + valueStr)
	}
	return value, nil
}
