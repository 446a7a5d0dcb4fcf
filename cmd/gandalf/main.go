package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbwebb22/gandalf-protocol/internal/config"
	"github.com/tbwebb22/gandalf-protocol/internal/keeper"
	"github.com/tbwebb22/gandalf-protocol/internal/logger"
	"github.com/tbwebb22/gandalf-protocol/internal/state"
	"github.com/tbwebb22/gandalf-protocol/internal/vault"
	"github.com/tbwebb22/gandalf-protocol/internal/venue"
	"github.com/tbwebb22/gandalf-protocol/internal/web"
)

const (
	LOOP_INTERVAL = 1 * time.Minute
)

// main is the entry point for the vault manager.
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
	log.Info().Msg("Vault manager starting...")

	// Initialize database connection unless persistence is switched off
	persist := os.Getenv("PERSIST_STATE") != "false"
	if persist {
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
	} else {
		log.Warn().Msg("PERSIST_STATE=false: cycle snapshots will not be recorded")
	}

	// --- 2. Venue Initialization (with Safety Switch) ---
	var positions venue.PositionVenue
	var swapper venue.SwapVenue
	var ledger venue.ShareLedger

	vaultMode := os.Getenv("VAULT_MODE")
	if vaultMode == "sim" {
		log.Info().
			Int64("genesis_tick", config.GenesisTick).
			Int64("tick_spacing", config.VenueTickSpacing).
			Uint64("fee_pips", config.VenueFeePips).
			Msg("Initializing simulated venue")
		sim, err := venue.NewSimVenue(config.Asset0Denom, config.Asset1Denom,
			config.GenesisTick, config.VenueTickSpacing, config.VenueFeePips)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize simulated venue")
		}
		positions = sim
		swapper = sim
		ledger = venue.NewSimLedger()
	} else {
		log.Fatal().Msg("VAULT_MODE is not set to 'sim'. Live venue adapters are not wired in this build; halting to prevent accidental execution.")
	}

	// --- 3. Vault Initialization ---
	v, err := vault.New(vault.Config{
		Owner:                config.Owner,
		Asset0Denom:          config.Asset0Denom,
		Asset1Denom:          config.Asset1Denom,
		ProtocolFeeNumerator: config.ProtocolFeeNumerator,
		SlippageNumerator:    config.SlippageNumerator,
		DesiredTickRange:     config.DesiredTickRange,
		Positions:            positions,
		Swapper:              swapper,
		Ledger:               ledger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize vault")
	}

	// --- Start Web Server ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort, v, persist)
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting vault dashboard")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 4. Start Keeper Main Loop ---
	k, err := keeper.New(keeper.Config{Vault: v, Persist: persist})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create keeper")
	}

	log.Info().Str("interval", LOOP_INTERVAL.String()).Msg("Starting keeper main loop")
	ctx := context.Background()
	k.RunLoop(ctx, LOOP_INTERVAL)
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
