package main

import (
	"errors"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/dokzlo13/padlight/internal/app"
	"github.com/dokzlo13/padlight/internal/config"
)

func init() {
	// SDL event polling must stay on one OS thread
	runtime.LockOSThread()
}

func main() {
	flagSet := pflag.NewFlagSet("padlight", pflag.ExitOnError)
	configPath := flagSet.StringP("config", "c", "padlight.yaml", "Path to configuration file")
	logLevel := flagSet.String("log-level", "", "Override the configured log level (debug, info, warn, error)")
	flagSet.Parse(os.Args[1:])

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	// Setup logging
	setupLogging(cfg.Log.Level, cfg.Log.JSON, cfg.Log.Colors)

	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrConfigMissing) {
			log.Fatal().Err(err).Msg("Set the bulb address, network and credential in the config file or environment")
		}
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().Str("config", *configPath).Str("bulb", cfg.Bulb.Address).Msg("Starting padlight")

	// Create application
	application, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	// Create context that cancels on shutdown signal
	ctx := app.SignalContext()

	// Connect and start background services
	if err := application.Start(ctx); err != nil {
		application.Stop()
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	// Drive the bulb until shutdown or unrecoverable disconnect
	runErr := application.Run()

	// Graceful shutdown
	if err := application.Stop(); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}

	if runErr != nil {
		log.Fatal().Err(runErr).Msg("Bulb connection lost")
	}
}

func setupLogging(level string, useJSON bool, colors bool) {
	// ISO 8601 format with timezone
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		// JSON output for production
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		// Text output (with optional colors)
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !colors,
		})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
